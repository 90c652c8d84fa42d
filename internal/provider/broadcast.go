package provider

import (
	"sync"

	"github.com/epicsgo/caserver/internal/dbr"
)

// Broadcast fans value snapshots out to any number of subscribers over
// bounded channels. Publishing never blocks: a subscriber that has
// fallen behind loses the snapshot instead of stalling the value
// source. Cancelling a subscription is done by the subscriber side via
// Unsubscribe; the publisher tolerates gone subscribers.
type Broadcast struct {
	mu     sync.Mutex
	buffer int
	subs   map[int]chan dbr.Dbr
	next   int
	closed bool
}

// NewBroadcast creates a fan-out whose subscriber channels hold up to
// buffer pending snapshots each.
func NewBroadcast(buffer int) *Broadcast {
	if buffer < 1 {
		buffer = 1
	}
	return &Broadcast{buffer: buffer, subs: make(map[int]chan dbr.Dbr)}
}

// Subscribe registers a new receiver. The returned id cancels it.
func (b *Broadcast) Subscribe() (<-chan dbr.Dbr, int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	ch := make(chan dbr.Dbr, b.buffer)
	if b.closed {
		close(ch)
		return ch, -1
	}
	id := b.next
	b.next++
	b.subs[id] = ch
	return ch, id
}

// Unsubscribe removes a receiver and closes its channel.
func (b *Broadcast) Unsubscribe(id int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if ch, ok := b.subs[id]; ok {
		delete(b.subs, id)
		close(ch)
	}
}

// Publish offers a snapshot to every subscriber and reports how many
// were dropped because their buffers were full.
func (b *Broadcast) Publish(d dbr.Dbr) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	dropped := 0
	for _, ch := range b.subs {
		select {
		case ch <- d:
		default:
			dropped++
		}
	}
	return dropped
}

// Close terminates every subscription.
func (b *Broadcast) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for id, ch := range b.subs {
		delete(b.subs, id)
		close(ch)
	}
}

// SubscriberCount reports the live subscription count.
func (b *Broadcast) SubscriberCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}
