package sim

import (
    "bytes"
    "encoding/json"
    "strings"
    "testing"
    "time"

    "github.com/fxamacker/cbor/v2"

    "aggmesh/pkg/config"
    "aggmesh/pkg/topology"
    "aggmesh/pkg/tree"
    "aggmesh/pkg/wire"
)

func TestRandomTopologyBuildsAcyclicTree(t *testing.T) {
    for _, seed := range []int64{1, 2, 3} {
        g, err := topology.Random(25, 0.35, seed)
        if err != nil {
            t.Fatalf("seed %d: topology: %v", seed, err)
        }
        n, err := New(Options{Graph: g, Tree: tree.DefaultOptions(), Seed: seed})
        if err != nil {
            t.Fatalf("seed %d: new: %v", seed, err)
        }
        r := n.Run(15 * time.Minute)
        if !r.Acyclic || !r.HopsConsistent {
            t.Fatalf("seed %d: broken tree: %v", seed, r.Problems)
        }
        if r.Unjoined != 0 || r.Ready != r.Nodes {
            t.Fatalf("seed %d: ready %d/%d, unjoined %d", seed, r.Ready, r.Nodes, r.Unjoined)
        }
        if len(r.Deliveries) == 0 {
            t.Fatalf("seed %d: sink got nothing", seed)
        }
        if r.Leaves == 0 {
            t.Fatalf("seed %d: a tree has at least one leaf", seed)
        }
    }
}

func TestLineReportsEveryHop(t *testing.T) {
    n, err := New(Options{Graph: topology.Line(4), Tree: tree.DefaultOptions()})
    if err != nil {
        t.Fatalf("new: %v", err)
    }
    if n.Sink() != topology.NodeAddr(0) {
        t.Fatalf("sink defaults to the first node, got %v", n.Sink())
    }
    r := n.Run(10 * time.Minute)
    if r.HopOptimal != 3 || r.Diameter != 3 {
        t.Fatalf("hop optimal %d, diameter %d", r.HopOptimal, r.Diameter)
    }
    last := r.PerNode[3]
    if last.Hops != 3 || last.Parent != "3.0" || !last.Leaf {
        t.Fatalf("tail node: %+v", last)
    }
    if r.PerNode[1].Leaf || r.PerNode[1].Children != 1 {
        t.Fatalf("relay 2.0 misclassified: %+v", r.PerNode[1])
    }
    // each relay window holds one tail report plus the relay's own reading
    for _, d := range r.Deliveries {
        if d.Source != "2.0" || d.Aggregate.Count != 3 {
            t.Fatalf("unexpected delivery %+v", d)
        }
    }
    if len(r.Deliveries) == 0 {
        t.Fatalf("no deliveries")
    }
    // one entry per direction of each of the three links
    if r.Store.Keys != 6 || r.Store.Sets != 6 || r.Store.Updates == 0 || r.Store.Expired != 0 || r.Store.Bytes == 0 {
        t.Fatalf("neighbor store: %+v", r.Store)
    }
}

func TestReportEncodings(t *testing.T) {
    n, err := New(Options{Graph: topology.Line(3), Tree: tree.DefaultOptions()})
    if err != nil {
        t.Fatalf("new: %v", err)
    }
    r := n.Run(5 * time.Minute)

    var text bytes.Buffer
    if err := r.Encode(&text, "text"); err != nil {
        t.Fatalf("text: %v", err)
    }
    if !strings.Contains(text.String(), "acyclic true") || !strings.Contains(text.String(), r.RunID) ||
        !strings.Contains(text.String(), "neighbor store: 4 keys") {
        t.Fatalf("text report:\n%s", text.String())
    }

    var js bytes.Buffer
    if err := r.Encode(&js, "json"); err != nil {
        t.Fatalf("json: %v", err)
    }
    var fromJSON Report
    if err := json.Unmarshal(js.Bytes(), &fromJSON); err != nil {
        t.Fatalf("json decode: %v", err)
    }
    if fromJSON.RunID != r.RunID || len(fromJSON.PerNode) != 3 || fromJSON.Store != r.Store {
        t.Fatalf("json report: %+v", fromJSON)
    }

    var cb bytes.Buffer
    if err := r.Encode(&cb, "cbor"); err != nil {
        t.Fatalf("cbor: %v", err)
    }
    var fromCBOR Report
    if err := cbor.Unmarshal(cb.Bytes(), &fromCBOR); err != nil {
        t.Fatalf("cbor decode: %v", err)
    }
    if fromCBOR.Sink != "1.0" || fromCBOR.Nodes != 3 {
        t.Fatalf("cbor report: %+v", fromCBOR)
    }

    if err := r.Encode(&text, "yaml"); err == nil {
        t.Fatalf("unknown format accepted")
    }
}

func TestNewRejectsBadTopology(t *testing.T) {
    if _, err := New(Options{Graph: topology.New(), Tree: tree.DefaultOptions()}); err != ErrEmptyTopology {
        t.Fatalf("empty topology: %v", err)
    }
    if _, err := New(Options{Graph: topology.Line(2), Sink: wire.MakeAddr(9, 9), Tree: tree.DefaultOptions()}); err == nil {
        t.Fatalf("sink outside the topology accepted")
    }
}

func TestFromConfig(t *testing.T) {
    cfg := config.Default()
    cfg.Sim.Topology = "grid"
    cfg.Sim.Nodes = 7
    cfg.Sim.GridWidth = 3
    opts, err := FromConfig(cfg, nil)
    if err != nil {
        t.Fatalf("from config: %v", err)
    }
    if opts.Graph.Len() != 9 {
        t.Fatalf("grid rounds up to full rows, got %d nodes", opts.Graph.Len())
    }
    if opts.Tree.AggregationWait != cfg.Tree.AggregationWait || opts.Medium.Delay != cfg.Sim.Delay {
        t.Fatalf("options not carried over: %+v", opts)
    }
    if _, err := BuildGraph(config.SimConfig{Topology: "ring", Nodes: 3}); err == nil {
        t.Fatalf("unknown topology accepted")
    }
}
