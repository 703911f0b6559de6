package multipacket

import (
    "fmt"

    "go.uber.org/zap"

    "aggmesh/pkg/wire"
)

// OutState is the lifecycle of an outbound message.
type OutState uint8

const (
    Queued OutState = iota
    Sending
    Done
)

func (s OutState) String() string {
    switch s {
    case Queued:
        return "queued"
    case Sending:
        return "sending"
    case Done:
        return "done"
    default:
        return "unknown"
    }
}

type entry struct {
    id        uint16
    target    wire.Addr
    source    wire.Addr
    total     int
    bytesSent int
    nextSeq   uint8
    payload   []byte
    state     OutState
    inflight  int // data bytes of the fragment awaiting its ack
}

// Send queues payload for target and returns at once. The payload is copied.
func (c *Conn) Send(target wire.Addr, payload []byte) error {
    if c.closed {
        return ErrClosed
    }
    if len(payload) == 0 {
        return ErrEmpty
    }
    if len(payload) > c.opts.MaxMessage {
        return fmt.Errorf("%w: %d bytes, limit %d", ErrTooLarge, len(payload), c.opts.MaxMessage)
    }
    if c.queuedBytes+len(payload) > c.opts.MaxQueuedBytes {
        return fmt.Errorf("%w: %d bytes queued", ErrQueueFull, c.queuedBytes)
    }
    e := &entry{
        id:      c.nextID,
        target:  target,
        source:  c.addr,
        total:   len(payload),
        payload: append([]byte(nil), payload...),
    }
    c.nextID++
    c.out.Push(e)
    c.queuedBytes += e.total
    c.stats.MessagesQueued++
    c.log.Debug("message queued", zap.Uint16("id", e.id), zap.Stringer("to", target), zap.Int("len", e.total))
    return nil
}

// sendStep transmits the next fragment of the head message when the
// reliable primitive is idle.
func (c *Conn) sendStep() {
    e, ok := c.out.Peek()
    if !ok || c.rel.IsTransmitting() {
        return
    }
    n := min(c.opts.FrameSize, e.total-e.bytesSent)
    frag := wire.EncodeFragment(wire.FragmentHeader{
        MessageID:  e.id,
        Seq:        e.nextSeq,
        TotalLen:   uint32(e.total),
        Originator: e.source,
    }, e.payload[e.bytesSent:e.bytesSent+n])
    if err := c.rel.Send(e.target, frag, c.opts.MaxRetx); err != nil {
        c.log.Warn("fragment send failed", zap.Uint16("id", e.id), zap.Uint8("seq", e.nextSeq), zap.Error(err))
        return
    }
    e.state = Sending
    e.inflight = n
    c.stats.FragmentsSent++
}

func (c *Conn) onAcked(to wire.Addr, _ uint8) {
    e, ok := c.out.Peek()
    if !ok || e.inflight == 0 || e.target != to {
        return
    }
    e.bytesSent += e.inflight
    e.inflight = 0
    e.nextSeq++
    if e.bytesSent < e.total {
        return
    }
    e.state = Done
    c.pop()
    c.stats.MessagesSent++
    c.h.Sent(c, e.target, e.id)
}

func (c *Conn) onTimedOut(to wire.Addr, retx uint8) {
    e, ok := c.out.Peek()
    if !ok || e.inflight == 0 || e.target != to {
        return
    }
    c.pop()
    c.stats.MessagesFailed++
    c.log.Warn("message abandoned, fragment unacknowledged",
        zap.Uint16("id", e.id), zap.Stringer("to", to), zap.Uint8("seq", e.nextSeq), zap.Uint8("retx", retx))
    if f, ok := c.h.(Failer); ok {
        f.Failed(c, to, e.id, ErrDeliveryFailed)
    }
}

func (c *Conn) pop() {
    if e, ok := c.out.Pop(); ok {
        c.queuedBytes -= e.total
    }
}
