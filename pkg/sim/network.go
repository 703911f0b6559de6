// Package sim runs a whole aggregation network in virtual time: one node per
// topology vertex, all sharing a discrete-event scheduler and a simulated
// radio medium.
package sim

import (
    "errors"
    "fmt"
    "math/rand"
    "time"

    "github.com/google/uuid"
    "go.uber.org/zap"

    "aggmesh/pkg/clock"
    "aggmesh/pkg/config"
    "aggmesh/pkg/memkv"
    "aggmesh/pkg/neighbors"
    "aggmesh/pkg/observability"
    "aggmesh/pkg/radio"
    "aggmesh/pkg/radio/medium"
    "aggmesh/pkg/sensor"
    "aggmesh/pkg/topology"
    "aggmesh/pkg/tree"
    "aggmesh/pkg/wire"
    "aggmesh/pkg/wire/codec"
)

var ErrEmptyTopology = errors.New("sim: topology has no nodes")

// Options describes one simulation run.
type Options struct {
    Graph *topology.Graph
    // Sink defaults to the first node of Graph.
    Sink     wire.Addr
    Tree     tree.Options
    Channels tree.Channels
    Medium   medium.Options
    Format   codec.Format
    // Seed drives the synthetic readings and the stubborn intervals.
    Seed        int64
    NeighborTTL time.Duration
    Log         *zap.Logger
}

// Node is one simulated participant.
type Node struct {
    Addr      wire.Addr
    Port      *medium.Port
    Mux       *radio.Mux
    Tree      *tree.Conn
    Sensor    *sensor.Handler
    Neighbors *neighbors.Store
}

// Delivery is one aggregate that reached the sink.
type Delivery struct {
    At        time.Duration    `json:"at" cbor:"at"`
    Source    string           `json:"source" cbor:"source"`
    Aggregate sensor.Aggregate `json:"aggregate" cbor:"aggregate"`
}

// Network is a built simulation, ready to Run.
type Network struct {
    id     uuid.UUID
    opts   Options
    v      *clock.Virtual
    med    *medium.Medium
    kv     *memkv.Store
    sink   wire.Addr
    nodes  []*Node
    byAddr map[wire.Addr]*Node
    log    *zap.Logger

    deliveries []Delivery
}

var epoch = time.Unix(0, 0).UTC()

// New attaches every node of opts.Graph to a fresh medium and opens its tree
// connection. Nothing runs until Run.
func New(opts Options) (*Network, error) {
    if opts.Graph == nil || opts.Graph.Len() == 0 {
        return nil, ErrEmptyTopology
    }
    if opts.Log == nil { opts.Log = zap.NewNop() }
    if opts.Channels == (tree.Channels{}) { opts.Channels = tree.DefaultChannels }
    if opts.Format == codec.FormatUnknown { opts.Format = codec.FormatCBOR }
    if opts.Sink.IsNull() { opts.Sink = opts.Graph.Nodes()[0] }

    n := &Network{
        id:     uuid.New(),
        opts:   opts,
        v:      clock.NewVirtual(),
        sink:   opts.Sink,
        byAddr: make(map[wire.Addr]*Node),
    }
    n.log = opts.Log.With(zap.String("run", n.id.String()))
    n.med = medium.New(n.v, opts.Medium, n.log)
    n.kv = memkv.New(memkv.Options{Now: func() time.Time { return epoch.Add(n.v.Now()) }})

    reg, err := codec.NewRegistry()
    if err != nil { return nil, err }

    for _, a := range opts.Graph.Nodes() {
        node, err := n.open(a, reg)
        if err != nil {
            return nil, fmt.Errorf("sim: node %v: %w", a, err)
        }
        n.nodes = append(n.nodes, node)
        n.byAddr[a] = node
    }
    if _, ok := n.byAddr[n.sink]; !ok {
        return nil, fmt.Errorf("sim: sink %v is not in the topology", n.sink)
    }
    for _, e := range opts.Graph.Edges() {
        n.med.Connect(e[0], e[1])
    }
    return n, nil
}

func (n *Network) open(a wire.Addr, reg *codec.Registry) (*Node, error) {
    port, err := n.med.Attach(a)
    if err != nil { return nil, err }
    nlog := observability.NodeLogger(n.log, a)
    node := &Node{
        Addr:      a,
        Port:      port,
        Mux:       radio.NewMux(port, nlog),
        Neighbors: neighbors.NewStore(n.kv, a, n.opts.NeighborTTL, nlog),
    }
    node.Sensor = sensor.NewHandler(sensor.NewSynthetic(a, n.opts.Seed), reg, n.opts.Format, n.onSinkDelivery, nlog)
    node.Tree, err = tree.Open(tree.Deps{
        Mux:       node.Mux,
        Sched:     n.v,
        Rand:      rand.New(rand.NewSource(n.opts.Seed ^ int64(a)<<16)),
        Neighbors: node.Neighbors,
        Log:       n.log,
    }, n.sink, n.opts.Channels, sensor.AggregateSize, node.Sensor, n.opts.Tree)
    if err != nil { return nil, err }
    return node, nil
}

func (n *Network) onSinkDelivery(source wire.Addr, agg sensor.Aggregate) {
    n.deliveries = append(n.deliveries, Delivery{At: n.v.Now(), Source: source.String(), Aggregate: agg})
}

func (n *Network) ID() uuid.UUID             { return n.id }
func (n *Network) Sink() wire.Addr           { return n.sink }
func (n *Network) Nodes() []*Node            { return n.nodes }
func (n *Network) Node(a wire.Addr) *Node    { return n.byAddr[a] }
func (n *Network) Medium() *medium.Medium    { return n.med }
func (n *Network) Clock() *clock.Virtual     { return n.v }
func (n *Network) Deliveries() []Delivery    { return n.deliveries }

// Horizon is the time by which setup must have finished everywhere.
func (n *Network) Horizon() time.Duration {
    return n.opts.Tree.SetupHorizon(n.opts.Graph.Eccentricity(n.sink))
}

// Run advances virtual time to d and reports on the network.
func (n *Network) Run(d time.Duration) Report {
    if h := n.Horizon(); d < h {
        n.log.Warn("run ends before setup can finish everywhere", zap.Duration("duration", d), zap.Duration("horizon", h))
    }
    n.log.Info("simulation started", zap.Int("nodes", len(n.nodes)), zap.Stringer("sink", n.sink), zap.Duration("duration", d))
    n.v.Run(d)
    expired := n.kv.Sweep()
    rep := n.Report()
    n.log.Info("simulation finished",
        zap.Uint64("events", n.v.Executed()),
        zap.Int("ready", rep.Ready),
        zap.Int("deliveries", len(rep.Deliveries)),
        zap.Int("neighbors_expired", expired),
        zap.Bool("acyclic", rep.Acyclic))
    return rep
}

// Close stops every node.
func (n *Network) Close() {
    for _, node := range n.nodes {
        node.Tree.Close()
    }
}

// FromConfig builds the topology and options of aggmesh-sim.
func FromConfig(cfg *config.Config, log *zap.Logger) (Options, error) {
    g, err := BuildGraph(cfg.Sim)
    if err != nil { return Options{}, err }
    return Options{
        Graph:       g,
        Tree:        cfg.TreeOptions(),
        Channels:    cfg.Channels(),
        Medium:      cfg.MediumOptions(),
        Format:      cfg.PayloadFormat(),
        Seed:        cfg.Sensor.Seed,
        NeighborTTL: cfg.Tree.NeighborTTL,
        Log:         log,
    }, nil
}

// BuildGraph generates the configured topology.
func BuildGraph(c config.SimConfig) (*topology.Graph, error) {
    switch c.Topology {
    case "line":
        return topology.Line(c.Nodes), nil
    case "grid":
        w := c.GridWidth
        if w <= 0 || w > c.Nodes { w = c.Nodes }
        return topology.Grid(w, (c.Nodes+w-1)/w), nil
    case "random", "":
        return topology.Random(c.Nodes, c.Radius, c.Seed)
    default:
        return nil, fmt.Errorf("sim: unknown topology %q", c.Topology)
    }
}
