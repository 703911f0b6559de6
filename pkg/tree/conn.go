// Package tree builds a collection tree rooted at the sink and aggregates
// reports along it. Setup messages flood outwards from the sink carrying hop
// counts; every node adopts the neighbour with the smallest hop count as its
// parent. Relays merge their children's reports over a fixed window and
// forward one aggregate to their parent.
package tree

import (
    "errors"
    "math/rand"

    "go.uber.org/zap"

    "aggmesh/pkg/clock"
    "aggmesh/pkg/multipacket"
    "aggmesh/pkg/neighbors"
    "aggmesh/pkg/radio"
    "aggmesh/pkg/wire"
)

var (
    ErrClosed       = errors.New("tree: connection closed")
    ErrIsSink       = errors.New("tree: the sink has no parent to send to")
    ErrNoParent     = errors.New("tree: parent not committed yet")
    ErrSetupTimeout = errors.New("tree: no setup message heard")
)

// Channels are the radio channels a tree connection opens.
type Channels struct {
    Setup uint16 // stubborn broadcast of setup messages
    Data  uint16 // fragment transport towards the parent
}

var DefaultChannels = Channels{Setup: 129, Data: 132}

// Deps are the per-node collaborators.
type Deps struct {
    Mux   *radio.Mux
    Sched clock.Scheduler
    // Rand draws the stubborn rebroadcast interval; nil seeds one from the address.
    Rand *rand.Rand
    // Neighbors records every setup message heard; optional.
    Neighbors *neighbors.Store
    Log       *zap.Logger
}

// Stats counts protocol events on one node.
type Stats struct {
    SetupHeard       uint64
    ReportsReceived  uint64
    ReportsForwarded uint64
    OwnReports       uint64
    Windows          uint64
    SendErrors       uint64
    Delivered        uint64 // sink only
}

// Conn is one node's membership in the tree.
type Conn struct {
    addr   wire.Addr
    sink   wire.Addr
    isSink bool
    h      Handler
    opts   Options
    sched  clock.Scheduler
    rng    *rand.Rand
    nb     *neighbors.Store
    log    *zap.Logger

    stub *radio.Stubborn
    mp   *multipacket.Conn

    state      State
    parent     wire.Addr
    hops       uint32
    isLeaf     bool
    bestParent wire.Addr
    bestHops   uint32
    collecting bool
    data       []byte

    settle, detect, floodEnd, window, leafTick, setupTimeout clock.Timer

    stats Stats
}

// Open joins the tree rooted at sink. dataSize is the size of the
// aggregation buffer handed to h.
func Open(deps Deps, sink wire.Addr, ch Channels, dataSize int, h Handler, opts Options) (*Conn, error) {
    if err := opts.Validate(); err != nil {
        return nil, err
    }
    if deps.Mux == nil || deps.Sched == nil {
        return nil, errors.New("tree: mux and scheduler are required")
    }
    if dataSize < 0 {
        return nil, errors.New("tree: negative data size")
    }
    if h == nil { h = NopHandler{} }
    if deps.Log == nil { deps.Log = zap.NewNop() }
    addr := deps.Mux.Addr()
    rng := deps.Rand
    if rng == nil { rng = rand.New(rand.NewSource(int64(addr))) }

    c := &Conn{
        addr:   addr,
        sink:   sink,
        isSink: addr == sink,
        h:      h,
        opts:   opts,
        sched:  deps.Sched,
        rng:    rng,
        nb:     deps.Neighbors,
        log:    deps.Log.With(zap.Stringer("node", addr)),
        isLeaf: true,
        data:   make([]byte, dataSize),
    }
    var err error
    c.stub, err = radio.OpenStubborn(deps.Mux, deps.Sched, ch.Setup, c.onSetup, c.log)
    if err != nil { return nil, err }
    c.mp, err = multipacket.Open(deps.Mux, deps.Sched, ch.Data, transportEvents{c}, opts.Transport, c.log)
    if err != nil {
        c.stub.Close()
        return nil, err
    }

    if c.isSink {
        c.settle = c.sched.AfterFunc(opts.SettleDelay, c.startSinkFlood)
    } else if opts.SetupTimeout > 0 {
        c.setupTimeout = c.sched.AfterFunc(opts.SetupTimeout, c.onSetupTimeout)
    }
    c.log.Debug("tree connection open", zap.Bool("sink", c.isSink), zap.Int("data_size", dataSize))
    return c, nil
}

// Close stops every timer and releases the channels.
func (c *Conn) Close() {
    if c.state == Closed {
        return
    }
    for _, t := range []clock.Timer{c.settle, c.detect, c.floodEnd, c.window, c.leafTick, c.setupTimeout} {
        if t != nil {
            t.Stop()
        }
    }
    c.stub.Close()
    c.mp.Close()
    c.state = Closed
}

func (c *Conn) Addr() wire.Addr   { return c.addr }
func (c *Conn) Sink() wire.Addr   { return c.sink }
func (c *Conn) IsSink() bool      { return c.isSink }
func (c *Conn) IsLeaf() bool      { return c.isLeaf }
func (c *Conn) IsCollecting() bool { return c.collecting }
func (c *Conn) Parent() wire.Addr { return c.parent }
func (c *Conn) Hops() uint32      { return c.hops }
func (c *Conn) State() State      { return c.state }
func (c *Conn) Stats() Stats      { return c.stats }

// Data is the aggregation buffer. It is only valid inside handler callbacks.
func (c *Conn) Data() []byte { return c.data }

// Transport exposes the fragment transport, for statistics.
func (c *Conn) Transport() *multipacket.Conn { return c.mp }

// Send queues payload for the parent.
func (c *Conn) Send(payload []byte) error {
    switch {
    case c.state == Closed:
        return ErrClosed
    case c.isSink:
        return ErrIsSink
    case c.parent.IsNull():
        return ErrNoParent
    }
    return c.mp.Send(c.parent, payload)
}
