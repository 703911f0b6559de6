package sim

import (
    "encoding/json"
    "fmt"
    "io"
    "strings"
    "text/tabwriter"

    "aggmesh/pkg/memkv"
    "aggmesh/pkg/multipacket"
    "aggmesh/pkg/radio/medium"
    "aggmesh/pkg/tree"
    "aggmesh/pkg/wire"
    "aggmesh/pkg/wire/codec"
)

// NodeReport is the final state of one node.
type NodeReport struct {
    Addr         string            `json:"addr" cbor:"addr"`
    Parent       string            `json:"parent" cbor:"parent"`
    Hops         uint32            `json:"hops" cbor:"hops"`
    ShortestHops uint32            `json:"shortest_hops" cbor:"shortest_hops"`
    Leaf         bool              `json:"leaf" cbor:"leaf"`
    State        string            `json:"state" cbor:"state"`
    Neighbors    int               `json:"neighbors" cbor:"neighbors"`
    Children     int               `json:"children" cbor:"children"`
    FramesSent   uint64            `json:"frames_sent" cbor:"frames_sent"`
    FramesRecv   uint64            `json:"frames_received" cbor:"frames_received"`
    Tree         tree.Stats        `json:"tree" cbor:"tree"`
    Transport    multipacket.Stats `json:"transport" cbor:"transport"`
}

// Report summarises a run and checks the tree it built.
type Report struct {
    RunID    string `json:"run_id" cbor:"run_id"`
    Sink     string `json:"sink" cbor:"sink"`
    Nodes    int    `json:"nodes" cbor:"nodes"`
    Edges    int    `json:"edges" cbor:"edges"`
    Diameter int    `json:"diameter" cbor:"diameter"`
    Elapsed  string `json:"elapsed" cbor:"elapsed"`
    Events   uint64 `json:"events" cbor:"events"`

    Ready          int  `json:"ready" cbor:"ready"`
    Unjoined       int  `json:"unjoined" cbor:"unjoined"`
    Leaves         int  `json:"leaves" cbor:"leaves"`
    Acyclic        bool `json:"acyclic" cbor:"acyclic"`
    HopsConsistent bool `json:"hops_consistent" cbor:"hops_consistent"`
    HopOptimal     int  `json:"hop_optimal" cbor:"hop_optimal"`

    Deliveries []Delivery    `json:"deliveries" cbor:"deliveries"`
    Medium     medium.Stats  `json:"medium" cbor:"medium"`
    Store      memkv.Stats   `json:"store" cbor:"store"`
    PerNode    []NodeReport  `json:"per_node" cbor:"per_node"`
    Problems   []string      `json:"problems,omitempty" cbor:"problems,omitempty"`
}

// Report inspects the network as it is now.
func (n *Network) Report() Report {
    shortest := n.opts.Graph.ShortestHops(n.sink)
    r := Report{
        RunID:          n.id.String(),
        Sink:           n.sink.String(),
        Nodes:          len(n.nodes),
        Edges:          len(n.opts.Graph.Edges()),
        Diameter:       n.opts.Graph.Eccentricity(n.sink),
        Elapsed:        n.v.Now().String(),
        Events:         n.v.Executed(),
        Acyclic:        true,
        HopsConsistent: true,
        Deliveries:     append([]Delivery(nil), n.deliveries...),
        Medium:         n.med.Stats(),
        Store:          n.kv.Metrics(),
    }

    for _, node := range n.nodes {
        c := node.Tree
        nr := NodeReport{
            Addr:         node.Addr.String(),
            Parent:       c.Parent().String(),
            Hops:         c.Hops(),
            ShortestHops: shortest[node.Addr],
            Leaf:         c.IsLeaf(),
            State:        c.State().String(),
            Neighbors:    len(node.Neighbors.List()),
            Children:     len(node.Neighbors.Children()),
            FramesSent:   node.Port.Sent(),
            FramesRecv:   node.Port.Received(),
            Tree:         c.Stats(),
            Transport:    c.Transport().Stats(),
        }
        r.PerNode = append(r.PerNode, nr)

        if c.State() == tree.Ready {
            r.Ready++
        }
        if c.IsLeaf() && !c.IsSink() {
            r.Leaves++
        }
        if c.IsSink() {
            continue
        }
        if c.Parent().IsNull() {
            r.Unjoined++
            continue
        }
        if c.Hops() == shortest[node.Addr] {
            r.HopOptimal++
        }
        if !n.reachesSink(node.Addr) {
            r.Acyclic = false
            r.Problems = append(r.Problems, fmt.Sprintf("%v: parent chain does not reach the sink", node.Addr))
        }
        parent := n.byAddr[c.Parent()]
        switch {
        case parent == nil:
            r.HopsConsistent = false
            r.Problems = append(r.Problems, fmt.Sprintf("%v: parent %v is unknown", node.Addr, c.Parent()))
        case !n.opts.Graph.HasEdge(node.Addr, parent.Addr):
            r.HopsConsistent = false
            r.Problems = append(r.Problems, fmt.Sprintf("%v: parent %v is out of radio range", node.Addr, parent.Addr))
        case parent.Tree.Hops()+1 != c.Hops():
            r.HopsConsistent = false
            r.Problems = append(r.Problems, fmt.Sprintf("%v: %d hops but parent %v has %d", node.Addr, c.Hops(), parent.Addr, parent.Tree.Hops()))
        }
    }
    return r
}

// reachesSink follows parent pointers from a; a cycle or a dangling pointer
// never reaches the sink.
func (n *Network) reachesSink(a wire.Addr) bool {
    cur := a
    for steps := 0; steps <= len(n.nodes); steps++ {
        if cur == n.sink {
            return true
        }
        node := n.byAddr[cur]
        if node == nil || node.Tree.Parent().IsNull() {
            return false
        }
        cur = node.Tree.Parent()
    }
    return false
}

// Encode writes the report as text, json or cbor.
func (r Report) Encode(w io.Writer, format string) error {
    switch strings.ToLower(format) {
    case "", "text":
        return r.writeText(w)
    case "json":
        enc := json.NewEncoder(w)
        enc.SetIndent("", "  ")
        return enc.Encode(r)
    case "cbor":
        c, err := codec.CBOR()
        if err != nil { return err }
        b, err := c.Marshal(r)
        if err != nil { return err }
        _, err = w.Write(b)
        return err
    default:
        return fmt.Errorf("sim: unknown report format %q", format)
    }
}

func (r Report) writeText(w io.Writer) error {
    fmt.Fprintf(w, "run %s: %d nodes, %d edges, sink %s, diameter %d, elapsed %s, %d events\n",
        r.RunID, r.Nodes, r.Edges, r.Sink, r.Diameter, r.Elapsed, r.Events)
    fmt.Fprintf(w, "tree: ready %d/%d, unjoined %d, leaves %d, acyclic %t, hops consistent %t, hop-optimal %d\n",
        r.Ready, r.Nodes, r.Unjoined, r.Leaves, r.Acyclic, r.HopsConsistent, r.HopOptimal)
    fmt.Fprintf(w, "medium: %d transmissions, %d deliveries, %d lost, %d bytes\n",
        r.Medium.Transmissions, r.Medium.Deliveries, r.Medium.Lost, r.Medium.Bytes)
    fmt.Fprintf(w, "neighbor store: %d keys, %d bytes, %d sets, %d updates, %d expired\n",
        r.Store.Keys, r.Store.Bytes, r.Store.Sets, r.Store.Updates, r.Store.Expired)

    tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
    fmt.Fprintln(tw, "NODE\tPARENT\tHOPS\tBEST\tLEAF\tSTATE\tNBRS\tREPORTS\tFWD\tMSG SENT\tMSG FAIL\tFRAG DROP")
    for _, n := range r.PerNode {
        fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%t\t%s\t%d\t%d\t%d\t%d\t%d\t%d\n",
            n.Addr, n.Parent, n.Hops, n.ShortestHops, n.Leaf, n.State, n.Neighbors,
            n.Tree.ReportsReceived, n.Tree.ReportsForwarded,
            n.Transport.MessagesSent, n.Transport.MessagesFailed, n.Transport.FragmentsDropped)
    }
    if err := tw.Flush(); err != nil {
        return err
    }

    fmt.Fprintf(w, "sink deliveries: %d\n", len(r.Deliveries))
    for _, d := range r.Deliveries {
        m := d.Aggregate.Mean()
        fmt.Fprintf(w, "  %10s from %-7s readings %3d  temp %6.2f  hum %6.2f  light %7.1f / %7.1f\n",
            d.At, d.Source, d.Aggregate.Count, m.Temperature, m.Humidity, m.Light1, m.Light2)
    }
    for _, p := range r.Problems {
        fmt.Fprintf(w, "problem: %s\n", p)
    }
    return nil
}
