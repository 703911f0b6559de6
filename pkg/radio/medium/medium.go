// Package medium simulates a shared radio medium on a clock.Scheduler.
// Nodes attach ports; frames reach only the sender's neighbours in the
// configured topology, after a propagation delay and subject to random loss.
package medium

import (
    "errors"
    "math/rand"
    "sort"
    "time"

    "go.uber.org/zap"

    "aggmesh/pkg/clock"
    "aggmesh/pkg/radio"
    "aggmesh/pkg/wire"
)

// DefaultMTU matches the 128 byte packet buffer of the motes the protocol targets.
const DefaultMTU = 128 + wire.FragmentHeaderSize

var ErrAddrInUse = errors.New("medium: address already attached")

// Options tunes the medium.
type Options struct {
    Delay time.Duration // per-hop propagation delay
    Loss  float64       // independent per-receiver frame loss probability, 0..1
    MTU   int           // max frame payload
    Seed  int64
}

// Filter can veto delivery of a frame to a receiver. Returning false drops it.
type Filter func(from, to wire.Addr, f wire.Frame) bool

// Stats counts medium activity.
type Stats struct {
    Transmissions uint64 // frames put on the air
    Deliveries    uint64 // frame copies handed to receivers
    Lost          uint64 // copies dropped by random loss or filter
    Bytes         uint64 // encoded bytes put on the air
}

// Medium connects ports according to an undirected adjacency.
type Medium struct {
    sched  clock.Scheduler
    opts   Options
    rng    *rand.Rand
    log    *zap.Logger
    ports  map[wire.Addr]*Port
    adj    map[wire.Addr]map[wire.Addr]struct{}
    filter Filter
    stats  Stats
}

func New(sched clock.Scheduler, opts Options, log *zap.Logger) *Medium {
    if opts.MTU <= 0 { opts.MTU = DefaultMTU }
    if opts.Delay <= 0 { opts.Delay = 5 * time.Millisecond }
    if log == nil { log = zap.NewNop() }
    return &Medium{
        sched: sched,
        opts:  opts,
        rng:   rand.New(rand.NewSource(opts.Seed)),
        log:   log,
        ports: make(map[wire.Addr]*Port),
        adj:   make(map[wire.Addr]map[wire.Addr]struct{}),
    }
}

// Attach creates the port for address a.
func (m *Medium) Attach(a wire.Addr) (*Port, error) {
    if _, ok := m.ports[a]; ok {
        return nil, ErrAddrInUse
    }
    p := &Port{m: m, addr: a}
    m.ports[a] = p
    return p, nil
}

// Connect makes a and b hear each other.
func (m *Medium) Connect(a, b wire.Addr) {
    if a == b {
        return
    }
    m.link(a, b)
    m.link(b, a)
}

func (m *Medium) link(a, b wire.Addr) {
    if m.adj[a] == nil {
        m.adj[a] = make(map[wire.Addr]struct{})
    }
    m.adj[a][b] = struct{}{}
}

// Disconnect removes the a-b edge.
func (m *Medium) Disconnect(a, b wire.Addr) {
    delete(m.adj[a], b)
    delete(m.adj[b], a)
}

// Neighbors lists the addresses a can reach, sorted.
func (m *Medium) Neighbors(a wire.Addr) []wire.Addr {
    out := make([]wire.Addr, 0, len(m.adj[a]))
    for b := range m.adj[a] {
        out = append(out, b)
    }
    sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
    return out
}

func (m *Medium) SetLoss(p float64) { m.opts.Loss = p }
func (m *Medium) SetFilter(f Filter) { m.filter = f }
func (m *Medium) Stats() Stats       { return m.stats }

func (m *Medium) transmit(from *Port, f wire.Frame) error {
    if len(f.Payload) > m.opts.MTU {
        return radio.ErrFrameTooLarge
    }
    raw, err := f.EncodeFrame()
    if err != nil {
        return err
    }
    m.stats.Transmissions++
    m.stats.Bytes += uint64(len(raw))
    var targets []wire.Addr
    if f.IsBroadcast() {
        targets = m.Neighbors(from.addr)
    } else if _, ok := m.adj[from.addr][f.Header.Dst]; ok {
        targets = []wire.Addr{f.Header.Dst}
    }
    for _, to := range targets {
        dst := m.ports[to]
        if dst == nil {
            continue
        }
        if m.opts.Loss > 0 && m.rng.Float64() < m.opts.Loss {
            m.stats.Lost++
            continue
        }
        if m.filter != nil && !m.filter(from.addr, to, f) {
            m.stats.Lost++
            continue
        }
        m.sched.AfterFunc(m.opts.Delay, func() { m.deliver(dst, raw) })
    }
    return nil
}

func (m *Medium) deliver(to *Port, raw []byte) {
    if to.closed || to.recv == nil {
        return
    }
    var f wire.Frame
    if err := f.DecodeFrame(raw); err != nil {
        m.log.Warn("undecodable frame on medium", zap.Error(err))
        return
    }
    m.stats.Deliveries++
    to.received++
    to.recv(f)
}

// Port is one node's attachment to the medium; it implements radio.Link.
type Port struct {
    m        *Medium
    addr     wire.Addr
    recv     radio.Receiver
    closed   bool
    sent     uint64
    received uint64
}

var _ radio.Link = (*Port)(nil)

func (p *Port) Addr() wire.Addr                { return p.addr }
func (p *Port) MTU() int                       { return p.m.opts.MTU }
func (p *Port) SetReceiver(r radio.Receiver)   { p.recv = r }
func (p *Port) Sent() uint64                   { return p.sent }
func (p *Port) Received() uint64               { return p.received }

func (p *Port) Send(f wire.Frame) error {
    if p.closed {
        return radio.ErrClosed
    }
    f.Header.Src = p.addr
    if err := p.m.transmit(p, f); err != nil {
        return err
    }
    p.sent++
    return nil
}

func (p *Port) Close() error {
    p.closed = true
    return nil
}
