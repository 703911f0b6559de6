package topology

import (
    "errors"
    "testing"

    "aggmesh/pkg/wire"
)

func TestLineHops(t *testing.T) {
    g := Line(5)
    hops := g.ShortestHops(NodeAddr(0))
    for i := 0; i < 5; i++ {
        if hops[NodeAddr(i)] != uint32(i) {
            t.Fatalf("node %d: hops=%d", i, hops[NodeAddr(i)])
        }
    }
    if g.Eccentricity(NodeAddr(0)) != 4 || len(g.Edges()) != 4 {
        t.Fatalf("unexpected line shape")
    }
}

func TestGridShortestPath(t *testing.T) {
    g := Grid(3, 3)
    p := g.ShortestPath(NodeAddr(0), NodeAddr(8))
    if len(p) != 5 || p[0] != NodeAddr(0) || p[4] != NodeAddr(8) {
        t.Fatalf("path = %v", p)
    }
    for i := 1; i < len(p); i++ {
        if !g.HasEdge(p[i-1], p[i]) {
            t.Fatalf("path uses missing edge %v-%v", p[i-1], p[i])
        }
    }
    if len(g.Edges()) != 12 {
        t.Fatalf("3x3 grid has 12 edges, got %d", len(g.Edges()))
    }
}

func TestRandomIsConnectedAndDeterministic(t *testing.T) {
    g1, err := Random(30, 0.35, 42)
    if err != nil { t.Fatalf("random: %v", err) }
    g2, _ := Random(30, 0.35, 42)
    if !g1.Connected() || g1.Len() != 30 {
        t.Fatalf("random graph not connected")
    }
    e1, e2 := g1.Edges(), g2.Edges()
    if len(e1) != len(e2) {
        t.Fatalf("same seed gave different graphs")
    }
    for i := range e1 {
        if e1[i] != e2[i] {
            t.Fatalf("same seed gave different graphs")
        }
    }
    if _, err := Random(50, 0.01, 1); !errors.Is(err, ErrDisconnected) {
        t.Fatalf("tiny radius: %v", err)
    }
}

func TestNodeAddr(t *testing.T) {
    if NodeAddr(0) != wire.MustParseAddr("1.0") || NodeAddr(254) != wire.MustParseAddr("255.0") {
        t.Fatalf("unexpected addresses %v %v", NodeAddr(0), NodeAddr(254))
    }
    if NodeAddr(255).IsNull() || NodeAddr(255) != wire.MustParseAddr("0.1") {
        t.Fatalf("NodeAddr(255) = %v", NodeAddr(255))
    }
}
