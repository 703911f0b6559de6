// Package topology generates radio connectivity graphs for simulations and
// answers shortest-path questions about them.
package topology

import (
    "container/heap"
    "errors"
    "fmt"
    "math"
    "math/rand"
    "sort"

    "aggmesh/pkg/wire"
)

var ErrDisconnected = errors.New("topology: graph is not connected")

// MaxNodes is the largest graph NodeAddr can address.
const MaxNodes = 0xFFFE

// Point is a node position in the unit square.
type Point struct{ X, Y float64 }

// Graph is an undirected connectivity graph.
type Graph struct {
    nodes []wire.Addr
    adj   map[wire.Addr]map[wire.Addr]struct{}
    pos   map[wire.Addr]Point
}

func New() *Graph {
    return &Graph{adj: make(map[wire.Addr]map[wire.Addr]struct{}), pos: make(map[wire.Addr]Point)}
}

// NodeAddr is the address of the i-th generated node: 1.0, 2.0, ... 255.0, 0.1, ...
func NodeAddr(i int) wire.Addr {
    n := i + 1
    return wire.MakeAddr(uint8(n%256), uint8(n/256))
}

func (g *Graph) AddNode(a wire.Addr) {
    if _, ok := g.adj[a]; ok {
        return
    }
    g.adj[a] = make(map[wire.Addr]struct{})
    g.nodes = append(g.nodes, a)
}

func (g *Graph) AddEdge(a, b wire.Addr) {
    if a == b {
        return
    }
    g.AddNode(a)
    g.AddNode(b)
    g.adj[a][b] = struct{}{}
    g.adj[b][a] = struct{}{}
}

// Nodes returns the nodes in insertion order.
func (g *Graph) Nodes() []wire.Addr { return append([]wire.Addr(nil), g.nodes...) }

func (g *Graph) Len() int { return len(g.nodes) }

func (g *Graph) HasEdge(a, b wire.Addr) bool {
    _, ok := g.adj[a][b]
    return ok
}

// Neighbors returns a's neighbours, sorted.
func (g *Graph) Neighbors(a wire.Addr) []wire.Addr {
    out := make([]wire.Addr, 0, len(g.adj[a]))
    for b := range g.adj[a] {
        out = append(out, b)
    }
    sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
    return out
}

// Edges lists every edge once, with the smaller address first.
func (g *Graph) Edges() [][2]wire.Addr {
    var out [][2]wire.Addr
    for _, a := range g.nodes {
        for _, b := range g.Neighbors(a) {
            if a < b {
                out = append(out, [2]wire.Addr{a, b})
            }
        }
    }
    return out
}

// Position returns the generated position of a, if the graph has one.
func (g *Graph) Position(a wire.Addr) (Point, bool) {
    p, ok := g.pos[a]
    return p, ok
}

// Line connects n nodes in a chain: 1.0 - 2.0 - ... .
func Line(n int) *Graph {
    g := New()
    for i := 0; i < n; i++ {
        g.AddNode(NodeAddr(i))
        g.pos[NodeAddr(i)] = Point{X: float64(i), Y: 0}
        if i > 0 {
            g.AddEdge(NodeAddr(i-1), NodeAddr(i))
        }
    }
    return g
}

// Grid connects w*h nodes to their horizontal and vertical neighbours.
// Node (x, y) is NodeAddr(y*w + x).
func Grid(w, h int) *Graph {
    g := New()
    for y := 0; y < h; y++ {
        for x := 0; x < w; x++ {
            a := NodeAddr(y*w + x)
            g.AddNode(a)
            g.pos[a] = Point{X: float64(x), Y: float64(y)}
            if x > 0 {
                g.AddEdge(NodeAddr(y*w+x-1), a)
            }
            if y > 0 {
                g.AddEdge(NodeAddr((y-1)*w+x), a)
            }
        }
    }
    return g
}

// randomAttempts bounds how many placements Random tries before giving up.
const randomAttempts = 100

// Random scatters n nodes uniformly over the unit square and connects every
// pair closer than radius. Placements are redrawn until the graph is connected.
func Random(n int, radius float64, seed int64) (*Graph, error) {
    if n < 1 || n > MaxNodes {
        return nil, fmt.Errorf("topology: node count %d out of range", n)
    }
    rng := rand.New(rand.NewSource(seed))
    for attempt := 0; attempt < randomAttempts; attempt++ {
        g := New()
        for i := 0; i < n; i++ {
            a := NodeAddr(i)
            g.AddNode(a)
            g.pos[a] = Point{X: rng.Float64(), Y: rng.Float64()}
        }
        for i := 0; i < n; i++ {
            for j := i + 1; j < n; j++ {
                pi, pj := g.pos[NodeAddr(i)], g.pos[NodeAddr(j)]
                if math.Hypot(pi.X-pj.X, pi.Y-pj.Y) <= radius {
                    g.AddEdge(NodeAddr(i), NodeAddr(j))
                }
            }
        }
        if g.Connected() {
            return g, nil
        }
    }
    return nil, fmt.Errorf("%w: %d nodes within radius %.3f after %d placements", ErrDisconnected, n, radius, randomAttempts)
}

// Connected reports whether every node is reachable from the first.
func (g *Graph) Connected() bool {
    if len(g.nodes) == 0 {
        return true
    }
    return len(g.ShortestHops(g.nodes[0])) == len(g.nodes)
}

// ShortestHops returns the hop distance from src to every reachable node,
// Dijkstra over unit edge weights.
func (g *Graph) ShortestHops(src wire.Addr) map[wire.Addr]uint32 {
    dist, _ := g.dijkstra(src)
    return dist
}

// ShortestPath returns a minimum-hop path from src to dst inclusive, or nil.
func (g *Graph) ShortestPath(src, dst wire.Addr) []wire.Addr {
    dist, prev := g.dijkstra(src)
    if _, ok := dist[dst]; !ok {
        return nil
    }
    var rev []wire.Addr
    for at := dst; ; at = prev[at] {
        rev = append(rev, at)
        if at == src {
            break
        }
    }
    path := make([]wire.Addr, len(rev))
    for i := range rev {
        path[i] = rev[len(rev)-1-i]
    }
    return path
}

// Eccentricity is the largest hop distance from src to any reachable node.
func (g *Graph) Eccentricity(src wire.Addr) int {
    ecc := 0
    for _, d := range g.ShortestHops(src) {
        ecc = max(ecc, int(d))
    }
    return ecc
}

func (g *Graph) dijkstra(src wire.Addr) (map[wire.Addr]uint32, map[wire.Addr]wire.Addr) {
    dist := map[wire.Addr]uint32{}
    prev := map[wire.Addr]wire.Addr{}
    if _, ok := g.adj[src]; !ok {
        return dist, prev
    }
    dist[src] = 0
    pq := &nodePQ{}
    heap.Push(pq, nodeItem{id: src, prio: 0})
    visited := map[wire.Addr]bool{}
    for pq.Len() > 0 {
        cur := heap.Pop(pq).(nodeItem)
        if visited[cur.id] { continue }
        visited[cur.id] = true
        for _, nb := range g.Neighbors(cur.id) {
            nd := dist[cur.id] + 1
            if old, ok := dist[nb]; !ok || nd < old {
                dist[nb] = nd
                prev[nb] = cur.id
                heap.Push(pq, nodeItem{id: nb, prio: nd})
            }
        }
    }
    return dist, prev
}

type nodeItem struct { id wire.Addr; prio uint32 }
type nodePQ []nodeItem
func (p nodePQ) Len() int { return len(p) }
func (p nodePQ) Less(i, j int) bool {
    if p[i].prio != p[j].prio { return p[i].prio < p[j].prio }
    return p[i].id < p[j].id
}
func (p nodePQ) Swap(i, j int) { p[i], p[j] = p[j], p[i] }
func (p *nodePQ) Push(x any) { *p = append(*p, x.(nodeItem)) }
func (p *nodePQ) Pop() any { old := *p; n := len(old); x := old[n-1]; *p = old[:n-1]; return x }
