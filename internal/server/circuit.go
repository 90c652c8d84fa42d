package server

import (
	"bytes"
	"errors"
	"io"
	"net"
	"sync"

	"github.com/rs/zerolog"
	"github.com/segmentio/ksuid"

	"github.com/epicsgo/caserver/internal/dbr"
	"github.com/epicsgo/caserver/internal/observability"
	"github.com/epicsgo/caserver/internal/protocol"
	"github.com/epicsgo/caserver/internal/provider"
)

// circuit is the per-connection protocol state machine. One goroutine
// reads and dispatches messages; monitor forwarders write replies
// concurrently through sendLocked.
type circuit struct {
	srv  *Server
	conn net.Conn
	id   string
	log  zerolog.Logger

	wmu sync.Mutex

	user string
	host string

	mu      sync.Mutex
	chans   map[uint32]*channel
	subs    map[uint32]*subscription
	nextSID uint32
	done    chan struct{}
}

// channel is one created PV channel on a circuit.
type channel struct {
	sid    uint32
	cid    uint32
	name   string
	prov   provider.Provider
	native dbr.Type
	count  int
	access protocol.AccessRight
}

type subscription struct {
	subID   uint32
	ch      *channel
	typ     dbr.Type
	count   int
	stop    chan struct{}
	release func()
	once    sync.Once
}

func newCircuit(s *Server, conn net.Conn) *circuit {
	id := ksuid.New().String()
	return &circuit{
		srv:  s,
		conn: conn,
		id:   id,
		log: s.log.With().
			Str("circuit", id).
			Str("peer", conn.RemoteAddr().String()).
			Logger(),
		chans: make(map[uint32]*channel),
		subs:  make(map[uint32]*subscription),
		done:  make(chan struct{}),
	}
}

func (c *circuit) serve() {
	observability.CircuitOpened()
	c.log.Info().Msg("circuit open")
	defer func() {
		c.close()
		observability.CircuitClosed()
		c.log.Info().Msg("circuit closed")
	}()

	for {
		msg, err := protocol.ReadMessage(c.conn, c.srv.limits)
		if err != nil {
			if !errors.Is(err, io.EOF) && !errors.Is(err, net.ErrClosed) {
				c.log.Warn().Err(err).Msg("circuit read failed")
			}
			return
		}
		if err := c.dispatch(msg); err != nil {
			c.log.Warn().Err(err).Uint16("command", uint16(msg.Header.Command)).Msg("circuit write failed")
			return
		}
	}
}

func (c *circuit) close() {
	c.mu.Lock()
	select {
	case <-c.done:
	default:
		close(c.done)
	}
	subs := make([]*subscription, 0, len(c.subs))
	for _, sub := range c.subs {
		subs = append(subs, sub)
	}
	c.subs = make(map[uint32]*subscription)
	c.mu.Unlock()

	for _, sub := range subs {
		sub.cancel()
	}
	c.conn.Close()
}

// cancel stops the forwarder and hands the subscription back to the
// provider so its fan-out drops the buffer.
func (sub *subscription) cancel() {
	sub.once.Do(func() {
		close(sub.stop)
		if sub.release != nil {
			sub.release()
		}
	})
}

func (c *circuit) dispatch(msg protocol.Message) error {
	h := msg.Header
	switch h.Command {
	case protocol.CmdVersion:
		// Priority in Param1, client minor version in DataCount.
		return nil
	case protocol.CmdClientName:
		c.user = cString(msg.Payload)
		return nil
	case protocol.CmdHostName:
		c.host = cString(msg.Payload)
		return nil
	case protocol.CmdEcho:
		return c.send(protocol.Message{Header: protocol.Header{Command: protocol.CmdEcho}})
	case protocol.CmdCreateChan:
		return c.handleCreateChan(msg)
	case protocol.CmdClearChannel:
		return c.handleClearChannel(h)
	case protocol.CmdReadNotify:
		return c.handleReadNotify(h)
	case protocol.CmdWrite:
		return c.handleWrite(msg, false)
	case protocol.CmdWriteNotify:
		return c.handleWrite(msg, true)
	case protocol.CmdEventAdd:
		return c.handleEventAdd(msg)
	case protocol.CmdEventCancel:
		return c.handleEventCancel(h)
	default:
		c.log.Debug().Uint16("command", uint16(h.Command)).Msg("unhandled command")
		return c.sendError(h, protocol.ErrBadType, "command not handled")
	}
}

func (c *circuit) handleCreateChan(msg protocol.Message) error {
	cid := msg.Header.Param1
	name := cString(msg.Payload)

	prov, ok := c.srv.reg.Resolve(name)
	if !ok {
		c.log.Warn().Str("pv", name).Msg("channel create for unknown pv")
		return c.send(protocol.Message{Header: protocol.Header{
			Command: protocol.CmdCreateChanFail,
			Param1:  cid,
		}})
	}
	rec, err := prov.ReadValue(name, nil)
	if err != nil {
		c.log.Warn().Err(err).Str("pv", name).Msg("channel create read failed")
		return c.send(protocol.Message{Header: protocol.Header{
			Command: protocol.CmdCreateChanFail,
			Param1:  cid,
		}})
	}

	ch := &channel{
		cid:    cid,
		name:   name,
		prov:   prov,
		native: rec.NativeType(),
		count:  rec.Count(),
		access: prov.AccessRight(name, c.user, c.host),
	}
	c.mu.Lock()
	c.nextSID++
	ch.sid = c.nextSID
	c.chans[ch.sid] = ch
	c.mu.Unlock()
	observability.ChannelCreated()

	c.log.Info().
		Str("pv", name).
		Uint32("sid", ch.sid).
		Str("native", ch.native.Basic.String()).
		Int("count", ch.count).
		Msg("channel created")

	if err := c.send(protocol.Message{Header: protocol.Header{
		Command: protocol.CmdAccessRights,
		Param1:  cid,
		Param2:  ch.access.Mask(),
	}}); err != nil {
		return err
	}
	return c.send(protocol.Message{Header: protocol.Header{
		Command:   protocol.CmdCreateChan,
		DataType:  ch.native.Code(),
		DataCount: uint32(ch.count),
		Param1:    cid,
		Param2:    ch.sid,
	}})
}

func (c *circuit) handleClearChannel(h protocol.Header) error {
	c.mu.Lock()
	ch, ok := c.chans[h.Param1]
	if ok {
		delete(c.chans, h.Param1)
	}
	c.mu.Unlock()
	if !ok {
		return c.sendError(h, protocol.ErrBadChID, "clear of unknown channel")
	}
	observability.ChannelCleared()
	return c.send(protocol.Message{Header: protocol.Header{
		Command: protocol.CmdClearChannel,
		Param1:  ch.sid,
		Param2:  ch.cid,
	}})
}

func (c *circuit) handleReadNotify(h protocol.Header) error {
	ch, ok := c.lookup(h.Param1)
	if !ok {
		return c.sendError(h, protocol.ErrBadChID, "read on unknown channel")
	}
	reply := protocol.Header{
		Command:   protocol.CmdReadNotify,
		DataType:  h.DataType,
		DataCount: h.DataCount,
		Param2:    h.Param2,
	}

	status, n, payload := c.readEncoded(ch, h.DataType, h.DataCount)
	observability.RecordRead(c.srv.cfg.Name, status == protocol.Normal)
	reply.Param1 = uint32(status)
	if status != protocol.Normal {
		reply.DataCount = 0
		return c.send(protocol.Message{Header: reply})
	}
	reply.DataCount = uint32(n)
	return c.send(protocol.Message{Header: reply, Payload: payload})
}

// readEncoded fetches the channel's value and renders it in the
// requested wire type, mapping every failure to its ECA status. The
// returned count is the element count the payload actually covers, not
// the requested one; a request of 0 resolves to the native count.
func (c *circuit) readEncoded(ch *channel, code uint16, count uint32) (protocol.ErrorCondition, int, []byte) {
	if !ch.access.CanRead() {
		return protocol.ErrNoRdAccess, 0, nil
	}
	typ, err := dbr.TypeFromCode(code)
	if err != nil {
		return protocol.ErrBadType, 0, nil
	}
	if int(count) > ch.count {
		return protocol.ErrBadCount, 0, nil
	}
	rec, err := ch.prov.ReadValue(ch.name, &typ)
	if err != nil {
		return protocol.ConditionOf(err, protocol.ErrGetFail), 0, nil
	}
	n, payload, err := dbr.Encode(rec, typ, int(count))
	if err != nil {
		return protocol.ConditionOf(err, protocol.ErrNoConvert), 0, nil
	}
	return protocol.Normal, n, payload
}

func (c *circuit) handleWrite(msg protocol.Message, notify bool) error {
	h := msg.Header
	ch, ok := c.lookup(h.Param1)
	if !ok {
		return c.sendError(h, protocol.ErrBadChID, "write on unknown channel")
	}

	status := protocol.Normal
	switch {
	case !ch.access.CanWrite():
		status = protocol.ErrNoWtAccess
	default:
		tokens, err := writeTokens(h.DataType, h.DataCount, msg.Payload)
		if err != nil {
			status = protocol.ConditionOf(err, protocol.ErrBadType)
		} else if err := ch.prov.WriteValue(ch.name, tokens); err != nil {
			status = protocol.ConditionOf(err, protocol.ErrPutFail)
		}
	}
	observability.RecordWrite(c.srv.cfg.Name, status == protocol.Normal)
	if status != protocol.Normal {
		c.log.Warn().
			Str("pv", ch.name).
			Uint16("status", uint16(status)).
			Msg("write rejected")
	}

	if !notify {
		if status != protocol.Normal {
			return c.sendError(h, status, "write failed")
		}
		return nil
	}
	return c.send(protocol.Message{Header: protocol.Header{
		Command:   protocol.CmdWriteNotify,
		DataType:  h.DataType,
		DataCount: h.DataCount,
		Param1:    uint32(status),
		Param2:    h.Param2,
	}})
}

func (c *circuit) handleEventAdd(msg protocol.Message) error {
	h := msg.Header
	ch, ok := c.lookup(h.Param1)
	if !ok {
		return c.sendError(h, protocol.ErrBadChID, "subscribe on unknown channel")
	}
	typ, err := dbr.TypeFromCode(h.DataType)
	if err != nil {
		return c.sendError(h, protocol.ErrBadType, "subscribe with bad type")
	}
	mask := monitorMask(msg.Payload)

	values, release, err := ch.prov.Monitor(ch.name, mask, nil)
	if err != nil {
		return c.sendError(h, protocol.ConditionOf(err, protocol.ErrEvDisallow), "subscribe refused")
	}

	sub := &subscription{
		subID:   h.Param2,
		ch:      ch,
		typ:     typ,
		count:   int(h.DataCount),
		stop:    make(chan struct{}),
		release: release,
	}
	c.mu.Lock()
	if prev, ok := c.subs[sub.subID]; ok {
		prev.cancel()
	}
	c.subs[sub.subID] = sub
	c.mu.Unlock()

	c.log.Info().
		Str("pv", ch.name).
		Uint32("sub", sub.subID).
		Msg("subscription added")

	// Initial snapshot, then the provider's stream.
	if rec, err := ch.prov.ReadValue(ch.name, &typ); err == nil {
		if err := c.sendEvent(sub, rec); err != nil {
			return err
		}
	}
	go c.forward(sub, values)
	return nil
}

func (c *circuit) forward(sub *subscription, values <-chan dbr.Dbr) {
	for {
		select {
		case <-sub.stop:
			return
		case <-c.done:
			return
		case rec, open := <-values:
			if !open {
				return
			}
			if err := c.sendEvent(sub, rec); err != nil {
				return
			}
			observability.RecordMonitorEvents(c.srv.cfg.Name, 1, 0)
		}
	}
}

func (c *circuit) sendEvent(sub *subscription, rec dbr.Dbr) error {
	n, payload, err := dbr.Encode(rec, sub.typ, sub.count)
	if err != nil {
		c.log.Warn().Err(err).Str("pv", sub.ch.name).Msg("event encode failed")
		return nil
	}
	return c.send(protocol.Message{
		Header: protocol.Header{
			Command:   protocol.CmdEventAdd,
			DataType:  sub.typ.Code(),
			DataCount: uint32(n),
			Param1:    uint32(protocol.Normal),
			Param2:    sub.subID,
		},
		Payload: payload,
	})
}

func (c *circuit) handleEventCancel(h protocol.Header) error {
	c.mu.Lock()
	sub, ok := c.subs[h.Param2]
	if ok {
		delete(c.subs, h.Param2)
	}
	c.mu.Unlock()
	if !ok {
		return c.sendError(h, protocol.ErrBadChID, "cancel of unknown subscription")
	}
	sub.cancel()
	// Empty event-add confirms the cancellation.
	return c.send(protocol.Message{Header: protocol.Header{
		Command:  protocol.CmdEventAdd,
		DataType: h.DataType,
		Param1:   h.Param1,
		Param2:   h.Param2,
	}})
}

func (c *circuit) lookup(sid uint32) (*channel, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	ch, ok := c.chans[sid]
	return ch, ok
}

func (c *circuit) send(msg protocol.Message) error {
	c.wmu.Lock()
	defer c.wmu.Unlock()
	return protocol.WriteMessage(c.conn, msg, c.srv.limits)
}

// sendError reports a per-message failure: the original header followed
// by a terminated error string, padded to the payload granularity.
func (c *circuit) sendError(orig protocol.Header, code protocol.ErrorCondition, text string) error {
	payload := protocol.EncodeHeader(orig)[:protocol.HeaderSize]
	payload = append(payload, text...)
	payload = append(payload, 0)
	if rem := len(payload) % 8; rem != 0 {
		payload = append(payload, make([]byte, 8-rem)...)
	}
	return c.send(protocol.Message{
		Header: protocol.Header{
			Command: protocol.CmdError,
			Param1:  orig.Param1,
			Param2:  uint32(code),
		},
		Payload: payload,
	})
}

// cString strips the terminator and any padding from a string payload.
func cString(b []byte) string {
	if i := bytes.IndexByte(b, 0); i >= 0 {
		b = b[:i]
	}
	return string(b)
}

// monitorMask extracts the event mask from an event-add payload. The
// payload carries three deadband floats and the 16-bit mask.
func monitorMask(payload []byte) protocol.MonitorMask {
	if len(payload) < 14 {
		return protocol.MonitorValue
	}
	return protocol.MonitorMask(uint16(payload[12])<<8 | uint16(payload[13]))
}
