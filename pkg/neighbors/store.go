// Package neighbors keeps a per-node table of the neighbours heard during
// tree setup, backed by the in-memory KV.
package neighbors

import (
    "encoding/json"
    "sort"
    "time"

    "go.uber.org/zap"

    "aggmesh/pkg/memkv"
    "aggmesh/pkg/wire"
)

// DefaultTTL retires neighbours that stopped broadcasting.
const DefaultTTL = 10 * time.Minute

// Neighbor is what one node learned about another from its setup broadcasts.
type Neighbor struct {
    Addr      wire.Addr `json:"addr"`
    Hops      uint32    `json:"hops"`
    Parent    wire.Addr `json:"parent"`          // parent the neighbour declared
    Heard     uint64    `json:"heard"`           // setup messages received
    FirstSeen int64     `json:"first_seen_ns"`   // scheduler time
    LastSeen  int64     `json:"last_seen_ns"`
    IsChild   bool      `json:"is_child"`        // declared this node as parent
}

// Store persists the neighbour table of node self. Several nodes may share
// one memkv.Store; keys are namespaced by the owner address.
type Store struct {
    kv   *memkv.Store
    self wire.Addr
    ttl  time.Duration
    log  *zap.Logger
}

func NewStore(kv *memkv.Store, self wire.Addr, ttl time.Duration, log *zap.Logger) *Store {
    if ttl <= 0 { ttl = DefaultTTL }
    if log == nil { log = zap.NewNop() }
    return &Store{kv: kv, self: self, ttl: ttl, log: log}
}

func (s *Store) prefix() string         { return "nb:" + s.self.String() + ":" }
func (s *Store) key(a wire.Addr) string { return s.prefix() + a.String() }

// Observe records a setup message heard at scheduler time at.
func (s *Store) Observe(msg wire.Setup, at time.Duration) Neighbor {
    var out Neighbor
    ok := s.kv.Update(s.key(msg.Source), s.ttl, func(old []byte) []byte {
        var n Neighbor
        if old != nil {
            if err := json.Unmarshal(old, &n); err != nil {
                s.log.Warn("corrupt neighbor record replaced", zap.Stringer("neighbor", msg.Source), zap.Error(err))
                n = Neighbor{}
            }
        }
        if n.Heard == 0 {
            n.FirstSeen = int64(at)
        }
        n.Addr = msg.Source
        n.Hops = msg.HopCount
        n.Parent = msg.Parent
        n.Heard++
        n.LastSeen = int64(at)
        if msg.Parent == s.self {
            n.IsChild = true
        }
        out = n
        b, _ := json.Marshal(n)
        return b
    })
    if !ok {
        s.log.Warn("neighbor table full", zap.Stringer("neighbor", msg.Source))
        return out
    }
    if out.Heard == 1 {
        s.log.Debug("neighbor discovered", zap.Stringer("neighbor", msg.Source), zap.Uint32("hops", msg.HopCount))
    }
    return out
}

func (s *Store) Get(a wire.Addr) (Neighbor, bool) {
    b, ok := s.kv.Get(s.key(a))
    if !ok { return Neighbor{}, false }
    var n Neighbor
    if err := json.Unmarshal(b, &n); err != nil { return Neighbor{}, false }
    return n, true
}

// List returns the live neighbours ordered by hop count, then address.
func (s *Store) List() []Neighbor {
    keys := s.kv.Keys(s.prefix())
    out := make([]Neighbor, 0, len(keys))
    for _, k := range keys {
        b, ok := s.kv.Get(k)
        if !ok { continue }
        var n Neighbor
        if err := json.Unmarshal(b, &n); err != nil { continue }
        out = append(out, n)
    }
    sort.Slice(out, func(i, j int) bool {
        if out[i].Hops != out[j].Hops { return out[i].Hops < out[j].Hops }
        return out[i].Addr < out[j].Addr
    })
    return out
}

// Children lists neighbours that declared this node as their parent.
func (s *Store) Children() []wire.Addr {
    var out []wire.Addr
    for _, n := range s.List() {
        if n.IsChild { out = append(out, n.Addr) }
    }
    sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
    return out
}

// Forget removes one neighbour.
func (s *Store) Forget(a wire.Addr) { s.kv.Delete(s.key(a)) }
