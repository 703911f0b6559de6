package neighbors

import (
    "testing"
    "time"

    "go.uber.org/zap"
    "go.uber.org/zap/zapcore"
    "go.uber.org/zap/zaptest/observer"

    "aggmesh/pkg/memkv"
    "aggmesh/pkg/wire"
)

func TestObserveAndList(t *testing.T) {
    kv := memkv.New(memkv.Options{})
    self := wire.MustParseAddr("2.0")
    s := NewStore(kv, self, 0, nil)
    other := NewStore(kv, wire.MustParseAddr("9.0"), 0, nil)

    sink := wire.MustParseAddr("1.0")
    leaf := wire.MustParseAddr("3.0")
    s.Observe(wire.Setup{Source: sink, Parent: wire.Null, HopCount: 1}, time.Second)
    s.Observe(wire.Setup{Source: sink, Parent: wire.Null, HopCount: 1}, 3*time.Second)
    s.Observe(wire.Setup{Source: leaf, Parent: self, HopCount: 3}, 40*time.Second)
    other.Observe(wire.Setup{Source: sink, HopCount: 1}, time.Second)

    n, ok := s.Get(sink)
    if !ok || n.Heard != 2 || n.FirstSeen != int64(time.Second) || n.LastSeen != int64(3*time.Second) {
        t.Fatalf("unexpected sink entry %+v", n)
    }
    list := s.List()
    if len(list) != 2 || list[0].Addr != sink || list[1].Addr != leaf {
        t.Fatalf("List = %+v", list)
    }
    if ch := s.Children(); len(ch) != 1 || ch[0] != leaf {
        t.Fatalf("Children = %v", ch)
    }
    if len(other.List()) != 1 {
        t.Fatalf("tables of different nodes must not mix")
    }
    s.Forget(leaf)
    if _, ok := s.Get(leaf); ok {
        t.Fatalf("forgotten neighbor still present")
    }
}

func TestObserveReplacesCorruptRecord(t *testing.T) {
    core, logs := observer.New(zapcore.WarnLevel)
    kv := memkv.New(memkv.Options{})
    self := wire.MustParseAddr("2.0")
    sink := wire.MustParseAddr("1.0")
    s := NewStore(kv, self, 0, zap.New(core))
    kv.Set(s.key(sink), []byte("{not json"), time.Minute)

    n := s.Observe(wire.Setup{Source: sink, Parent: wire.Null, HopCount: 1}, 5*time.Second)
    if n.Heard != 1 || n.FirstSeen != int64(5*time.Second) || n.Hops != 1 {
        t.Fatalf("entry not rebuilt: %+v", n)
    }
    if logs.FilterMessage("corrupt neighbor record replaced").Len() != 1 {
        t.Fatalf("corrupt record not logged: %v", logs.All())
    }
    got, ok := s.Get(sink)
    if !ok || got != n {
        t.Fatalf("stored entry %+v, %v", got, ok)
    }
}
