package udp

import (
    "context"
    "testing"
    "time"

    "aggmesh/pkg/clock"
    "aggmesh/pkg/wire"
)

func TestParseNeighbor(t *testing.T) {
    n, err := ParseNeighbor("2.0@127.0.0.1:7002")
    if err != nil { t.Fatalf("parse: %v", err) }
    if n.Addr != wire.MakeAddr(2, 0) || n.Host != "127.0.0.1:7002" {
        t.Fatalf("unexpected neighbor %+v", n)
    }
    for _, bad := range []string{"", "2.0", "2.0@", "x@127.0.0.1:1", "2.0@nohostport"} {
        if _, err := ParseNeighbor(bad); err == nil {
            t.Fatalf("expected error for %q", bad)
        }
    }
}

func TestLoopbackBroadcast(t *testing.T) {
    loop := clock.NewLoop(16)
    ctx, cancel := context.WithCancel(context.Background())
    defer cancel()
    go loop.Run(ctx)

    b, err := Listen(wire.MakeAddr(2, 0), Options{Listen: "127.0.0.1:0"}, loop, nil)
    if err != nil { t.Fatalf("listen b: %v", err) }
    defer b.Close()
    got := make(chan wire.Frame, 1)
    b.SetReceiver(func(f wire.Frame) { got <- f })

    a, err := Listen(wire.MakeAddr(1, 0), Options{
        Listen:    "127.0.0.1:0",
        Neighbors: []Neighbor{{Addr: b.Addr(), Host: b.LocalAddr().String()}},
    }, loop, nil)
    if err != nil { t.Fatalf("listen a: %v", err) }
    defer a.Close()

    f := wire.Frame{Header: wire.Header{Kind: wire.KindBroadcast, Channel: 129, Dst: wire.Broadcast}, Payload: []byte("hi")}
    if err := a.Send(f); err != nil { t.Fatalf("send: %v", err) }
    select {
    case in := <-got:
        if in.Header.Src != a.Addr() || string(in.Payload) != "hi" || in.Header.Channel != 129 {
            t.Fatalf("unexpected frame %+v", in)
        }
    case <-time.After(2 * time.Second):
        t.Fatalf("no frame received")
    }

    uni := wire.Frame{Header: wire.Header{Kind: wire.KindData, Dst: wire.MakeAddr(9, 0)}}
    if err := a.Send(uni); err == nil {
        t.Fatalf("unicast to unknown neighbor should fail")
    }
}
