// Package multipacket carries payloads larger than one radio frame between
// neighbours. A payload is cut into frame-sized fragments that travel one at a
// time over the acknowledged unicast primitive and are reassembled at the
// receiver, keyed by message id and originator. Reliability is per fragment:
// a lost or out-of-order fragment abandons the whole message.
package multipacket

import (
    "errors"
    "time"

    "go.uber.org/zap"

    "aggmesh/pkg/clock"
    "aggmesh/pkg/core/queue"
    "aggmesh/pkg/radio"
    "aggmesh/pkg/wire"
)

var (
    ErrClosed         = errors.New("multipacket: connection closed")
    ErrEmpty          = errors.New("multipacket: empty payload")
    ErrTooLarge       = errors.New("multipacket: payload too large")
    ErrQueueFull      = errors.New("multipacket: outbound budget exhausted")
    ErrDeliveryFailed = errors.New("multipacket: fragment not acknowledged")
)

// Handler receives reassembled messages and send completions.
type Handler interface {
    Recv(c *Conn, source wire.Addr, payload []byte)
    Sent(c *Conn, target wire.Addr, id uint16)
}

// Failer is implemented by handlers that want to hear about abandoned sends.
type Failer interface {
    Failed(c *Conn, target wire.Addr, id uint16, err error)
}

// Options tunes the transport. Zero values take the defaults below.
type Options struct {
    FrameSize    int           // fragment data bytes per frame
    SendInterval time.Duration // send step period
    MaxRetx      uint8
    RetxTimeout  time.Duration
    // MaxMessage bounds a single payload, outbound and inbound.
    MaxMessage int
    // MaxQueuedBytes bounds payload bytes waiting in the outbound queue.
    MaxQueuedBytes int
    // MaxReassemblyBytes bounds buffers held by partial inbound messages.
    MaxReassemblyBytes int
    // ReassemblyTimeout expires partial messages that stopped progressing.
    ReassemblyTimeout time.Duration
}

const (
    DefaultFrameSize         = 128
    DefaultSendInterval      = 3 * time.Second
    DefaultMaxRetx           = 4
    DefaultReassemblyTimeout = 2 * time.Minute
)

func (o Options) withDefaults() Options {
    if o.FrameSize <= 0 { o.FrameSize = DefaultFrameSize }
    if o.SendInterval <= 0 { o.SendInterval = DefaultSendInterval }
    if o.MaxRetx == 0 { o.MaxRetx = DefaultMaxRetx }
    if o.MaxMessage <= 0 { o.MaxMessage = o.FrameSize * wire.MaxFragments }
    if o.MaxMessage > o.FrameSize*wire.MaxFragments { o.MaxMessage = o.FrameSize * wire.MaxFragments }
    if o.MaxQueuedBytes <= 0 { o.MaxQueuedBytes = 4 * o.MaxMessage }
    if o.MaxReassemblyBytes <= 0 { o.MaxReassemblyBytes = 4 * o.MaxMessage }
    if o.ReassemblyTimeout <= 0 { o.ReassemblyTimeout = DefaultReassemblyTimeout }
    return o
}

// Stats counts transport activity on one connection.
type Stats struct {
    MessagesQueued    uint64
    MessagesSent      uint64
    MessagesFailed    uint64
    MessagesDelivered uint64
    SingleFrame       uint64 // deliveries that needed no reassembly record
    FragmentsSent     uint64
    FragmentsReceived uint64
    FragmentsDropped  uint64
    RecordsAbandoned  uint64
    RecordsExpired    uint64
}

// Conn is one node's fragment transport endpoint.
type Conn struct {
    addr  wire.Addr
    sched clock.Scheduler
    rel   *radio.Reliable
    h     Handler
    opts  Options
    log   *zap.Logger

    nextID      uint16
    out         queue.FIFO[*entry]
    queuedBytes int
    tick        clock.Timer

    records        map[recordKey]*record
    reassemblyUsed int

    stats  Stats
    closed bool
}

// Open starts a transport on channel ch of mux.
func Open(mux *radio.Mux, sched clock.Scheduler, ch uint16, h Handler, opts Options, log *zap.Logger) (*Conn, error) {
    if log == nil { log = zap.NewNop() }
    opts = opts.withDefaults()
    if opts.FrameSize+wire.FragmentHeaderSize > mux.MTU() {
        return nil, radio.ErrFrameTooLarge
    }
    c := &Conn{
        addr:    mux.Addr(),
        sched:   sched,
        h:       h,
        opts:    opts,
        log:     log.With(zap.Uint16("channel", ch)),
        records: make(map[recordKey]*record),
    }
    rel, err := radio.OpenReliable(mux, sched, ch, linkEvents{c}, opts.RetxTimeout, c.log)
    if err != nil { return nil, err }
    c.rel = rel
    c.tick = sched.AfterFunc(opts.SendInterval, c.onTick)
    return c, nil
}

// Close stops the send step and releases queued and partial messages.
func (c *Conn) Close() {
    if c.closed {
        return
    }
    c.closed = true
    c.tick.Stop()
    c.rel.Close()
    c.out.Clear()
    c.queuedBytes = 0
    clear(c.records)
    c.reassemblyUsed = 0
}

func (c *Conn) Addr() wire.Addr { return c.addr }
func (c *Conn) Stats() Stats     { return c.stats }

// Pending is the number of messages waiting in the outbound queue.
func (c *Conn) Pending() int { return c.out.Len() }

// Reassembling is the number of partially received messages.
func (c *Conn) Reassembling() int { return len(c.records) }

func (c *Conn) onTick() {
    if c.closed {
        return
    }
    c.expireRecords()
    c.sendStep()
    c.tick.Reset()
}

// linkEvents adapts the reliable primitive's callbacks onto the Conn without
// exporting them.
type linkEvents struct{ c *Conn }

func (l linkEvents) Recv(from wire.Addr, payload []byte)  { l.c.onFragment(from, payload) }
func (l linkEvents) Sent(to wire.Addr, retx uint8)        { l.c.onAcked(to, retx) }
func (l linkEvents) TimedOut(to wire.Addr, retx uint8)    { l.c.onTimedOut(to, retx) }
