package provider

import (
	"testing"
	"time"

	"github.com/epicsgo/caserver/internal/dbr"
)

func snapshot(v int32) dbr.Dbr {
	return &dbr.NumericRecord[int32]{
		Payload:     dbr.Scalar(v),
		LastUpdated: time.Unix(1700000000, 0),
	}
}

func TestBroadcastDeliversToAllSubscribers(t *testing.T) {
	b := NewBroadcast(4)
	ch1, _ := b.Subscribe()
	ch2, _ := b.Subscribe()

	if dropped := b.Publish(snapshot(1)); dropped != 0 {
		t.Fatalf("unexpected drops: %d", dropped)
	}
	for i, ch := range []<-chan dbr.Dbr{ch1, ch2} {
		select {
		case got := <-ch:
			if got.Count() != 1 {
				t.Fatalf("subscriber %d: bad snapshot", i)
			}
		default:
			t.Fatalf("subscriber %d: no snapshot delivered", i)
		}
	}
}

func TestBroadcastDropsWhenSubscriberFull(t *testing.T) {
	b := NewBroadcast(1)
	slow, _ := b.Subscribe()

	if dropped := b.Publish(snapshot(1)); dropped != 0 {
		t.Fatalf("first publish dropped: %d", dropped)
	}
	// The buffer is full now; the next publish must drop, not block.
	done := make(chan int, 1)
	go func() { done <- b.Publish(snapshot(2)) }()
	select {
	case dropped := <-done:
		if dropped != 1 {
			t.Fatalf("expected 1 drop, got %d", dropped)
		}
	case <-time.After(time.Second):
		t.Fatalf("publish blocked on a full subscriber")
	}
	<-slow
}

func TestBroadcastUnsubscribeClosesChannel(t *testing.T) {
	b := NewBroadcast(1)
	ch, id := b.Subscribe()
	b.Unsubscribe(id)

	if _, open := <-ch; open {
		t.Fatalf("channel still open after unsubscribe")
	}
	if got := b.SubscriberCount(); got != 0 {
		t.Fatalf("subscriber count = %d, want 0", got)
	}
	// Publishing to nobody is fine.
	if dropped := b.Publish(snapshot(3)); dropped != 0 {
		t.Fatalf("drops with no subscribers: %d", dropped)
	}
}

func TestBroadcastCloseEndsSubscriptions(t *testing.T) {
	b := NewBroadcast(1)
	ch, _ := b.Subscribe()
	b.Close()
	if _, open := <-ch; open {
		t.Fatalf("channel still open after close")
	}
	late, id := b.Subscribe()
	if id != -1 {
		t.Fatalf("subscription after close got live id %d", id)
	}
	if _, open := <-late; open {
		t.Fatalf("late channel not closed")
	}
}
