package multipacket

import (
    "bytes"
    "errors"
    "math/rand"
    "testing"
    "time"

    "aggmesh/pkg/clock"
    "aggmesh/pkg/radio"
    "aggmesh/pkg/radio/medium"
    "aggmesh/pkg/wire"
)

const testChannel = 132

var (
    addrA = wire.MustParseAddr("1.0")
    addrB = wire.MustParseAddr("2.0")
)

type collector struct {
    recv    [][]byte
    sources []wire.Addr
    sent    []uint16
    failed  []error
    onRecv  func(c *Conn)
}

func (h *collector) Recv(c *Conn, source wire.Addr, payload []byte) {
    if h.onRecv != nil {
        h.onRecv(c)
    }
    h.sources = append(h.sources, source)
    h.recv = append(h.recv, payload)
}
func (h *collector) Sent(_ *Conn, _ wire.Addr, id uint16) { h.sent = append(h.sent, id) }
func (h *collector) Failed(_ *Conn, _ wire.Addr, _ uint16, err error) {
    h.failed = append(h.failed, err)
}

type testNet struct {
    v      *clock.Virtual
    m      *medium.Medium
    a, b   *Conn
    ha, hb *collector
}

func newTestNet(t *testing.T, opts Options) *testNet {
    t.Helper()
    n := &testNet{v: clock.NewVirtual(), ha: &collector{}, hb: &collector{}}
    n.m = medium.New(n.v, medium.Options{Delay: 5 * time.Millisecond}, nil)
    open := func(a wire.Addr, h *collector) *Conn {
        p, err := n.m.Attach(a)
        if err != nil { t.Fatalf("attach: %v", err) }
        c, err := Open(radio.NewMux(p, nil), n.v, testChannel, h, opts, nil)
        if err != nil { t.Fatalf("open: %v", err) }
        return c
    }
    n.a = open(addrA, n.ha)
    n.b = open(addrB, n.hb)
    n.m.Connect(addrA, addrB)
    return n
}

func TestRoundTrip(t *testing.T) {
    n := newTestNet(t, Options{})
    payload := make([]byte, 1000)
    rand.New(rand.NewSource(1)).Read(payload)

    if err := n.a.Send(addrB, payload); err != nil { t.Fatalf("send: %v", err) }
    if n.a.Pending() != 1 {
        t.Fatalf("pending = %d", n.a.Pending())
    }
    n.v.Run(time.Minute)

    if len(n.hb.recv) != 1 || !bytes.Equal(n.hb.recv[0], payload) {
        t.Fatalf("payload not delivered intact")
    }
    if n.hb.sources[0] != addrA {
        t.Fatalf("source = %v", n.hb.sources[0])
    }
    if len(n.ha.sent) != 1 || n.a.Pending() != 0 {
        t.Fatalf("sender not done: sent=%v pending=%d", n.ha.sent, n.a.Pending())
    }
    if n.b.Reassembling() != 0 {
        t.Fatalf("record left behind")
    }
    st := n.a.Stats()
    if st.FragmentsSent != 8 || st.MessagesSent != 1 {
        t.Fatalf("unexpected sender stats %+v", st)
    }
}

func TestSingleFrameNeedsNoRecord(t *testing.T) {
    n := newTestNet(t, Options{})
    n.hb.onRecv = func(c *Conn) {
        if c.Reassembling() != 0 {
            t.Fatalf("single frame message allocated a record")
        }
    }
    if err := n.a.Send(addrB, []byte("short reading")); err != nil { t.Fatalf("send: %v", err) }
    n.v.Run(10 * time.Second)
    if len(n.hb.recv) != 1 || string(n.hb.recv[0]) != "short reading" {
        t.Fatalf("got %q", n.hb.recv)
    }
    if n.b.Stats().SingleFrame != 1 {
        t.Fatalf("single-frame delivery not counted")
    }
}

func TestFragmentsOf300Bytes(t *testing.T) {
    n := newTestNet(t, Options{FrameSize: 128})
    var sizes []int
    var seqs []uint8
    n.m.SetFilter(func(from, to wire.Addr, f wire.Frame) bool {
        if f.Header.Kind == wire.KindData && f.Header.Flags&wire.FlagRetx == 0 {
            fr, err := wire.DecodeFragment(f.Payload)
            if err != nil { t.Fatalf("decode fragment: %v", err) }
            sizes = append(sizes, len(fr.Data))
            seqs = append(seqs, fr.Header.Seq)
        }
        return true
    })
    n.hb.onRecv = func(*Conn) {
        if len(seqs) != 3 || seqs[2] != 2 {
            t.Fatalf("delivered before the fragment with sequence 2: %v", seqs)
        }
    }
    payload := bytes.Repeat([]byte{0xAB}, 300)
    if err := n.a.Send(addrB, payload); err != nil { t.Fatalf("send: %v", err) }

    // first two fragments go out on the 3s and 6s ticks
    n.v.Run(7 * time.Second)
    if len(n.hb.recv) != 0 || n.b.State(0, addrA) != Partial {
        t.Fatalf("message should still be partial")
    }
    n.v.Run(20 * time.Second)
    if len(sizes) != 3 || sizes[0] != 128 || sizes[1] != 128 || sizes[2] != 44 {
        t.Fatalf("fragment sizes = %v", sizes)
    }
    if len(n.hb.recv) != 1 || len(n.hb.recv[0]) != 300 {
        t.Fatalf("want one 300 byte delivery")
    }
    if n.b.State(0, addrA) != Absent || n.b.Reassembling() != 0 {
        t.Fatalf("delivered message still tracked")
    }
}

func fragment(id uint16, seq uint8, total int, data []byte) []byte {
    return wire.EncodeFragment(wire.FragmentHeader{MessageID: id, Seq: seq, TotalLen: uint32(total), Originator: addrA}, data)
}

func TestOutOfOrderDropsMessage(t *testing.T) {
    n := newTestNet(t, Options{})
    chunk := make([]byte, 128)

    n.b.onFragment(addrA, fragment(7, 1, 300, chunk))
    if n.b.Reassembling() != 0 {
        t.Fatalf("non-zero first sequence created a record")
    }

    n.b.onFragment(addrA, fragment(7, 0, 300, chunk))
    if n.b.State(7, addrA) != Partial {
        t.Fatalf("seq 0 should start a record")
    }
    n.b.onFragment(addrA, fragment(7, 2, 300, chunk))
    if n.b.Reassembling() != 0 {
        t.Fatalf("gap should remove the record")
    }
    // the rest of the message can no longer complete
    n.b.onFragment(addrA, fragment(7, 1, 300, chunk))
    n.b.onFragment(addrA, fragment(7, 2, 300, chunk[:44]))
    if len(n.hb.recv) != 0 {
        t.Fatalf("abandoned message delivered")
    }
    st := n.b.Stats()
    if st.RecordsAbandoned != 1 || st.FragmentsDropped != 4 {
        t.Fatalf("unexpected stats %+v", st)
    }
}

func TestRestartAndOverflow(t *testing.T) {
    n := newTestNet(t, Options{})
    chunk := make([]byte, 128)
    n.b.onFragment(addrA, fragment(1, 0, 200, chunk))
    n.b.onFragment(addrA, fragment(1, 0, 200, chunk))
    if n.b.Reassembling() != 1 || n.b.Stats().RecordsAbandoned != 1 {
        t.Fatalf("seq 0 on a live record should restart it")
    }
    // 128 + 128 > 200
    n.b.onFragment(addrA, fragment(1, 1, 200, chunk))
    if n.b.Reassembling() != 0 || len(n.hb.recv) != 0 {
        t.Fatalf("overflowing fragment should abandon the record")
    }
}

func TestStaleRecordsExpire(t *testing.T) {
    n := newTestNet(t, Options{ReassemblyTimeout: 10 * time.Second})
    n.b.onFragment(addrA, fragment(3, 0, 300, make([]byte, 128)))
    n.v.Run(5 * time.Second)
    if n.b.Reassembling() != 1 {
        t.Fatalf("record expired too early")
    }
    n.v.Run(20 * time.Second)
    if n.b.Reassembling() != 0 || n.b.Stats().RecordsExpired != 1 {
        t.Fatalf("stale record not swept")
    }
}

func TestUnacknowledgedFragmentAbandonsMessage(t *testing.T) {
    n := newTestNet(t, Options{MaxRetx: 2, RetxTimeout: time.Second})
    n.m.Disconnect(addrA, addrB)
    if err := n.a.Send(addrB, make([]byte, 300)); err != nil { t.Fatalf("send: %v", err) }
    n.v.Run(time.Minute)
    if len(n.ha.failed) != 1 || !errors.Is(n.ha.failed[0], ErrDeliveryFailed) {
        t.Fatalf("failed callbacks = %v", n.ha.failed)
    }
    if n.a.Pending() != 0 || n.a.Stats().MessagesFailed != 1 {
        t.Fatalf("abandoned message still queued")
    }
}

func TestSendErrors(t *testing.T) {
    n := newTestNet(t, Options{FrameSize: 16, MaxQueuedBytes: 100})
    if err := n.a.Send(addrB, nil); !errors.Is(err, ErrEmpty) {
        t.Fatalf("empty: %v", err)
    }
    if err := n.a.Send(addrB, make([]byte, 16*wire.MaxFragments+1)); !errors.Is(err, ErrTooLarge) {
        t.Fatalf("too large: %v", err)
    }
    if err := n.a.Send(addrB, make([]byte, 80)); err != nil { t.Fatalf("send: %v", err) }
    if err := n.a.Send(addrB, make([]byte, 30)); !errors.Is(err, ErrQueueFull) {
        t.Fatalf("queue budget: %v", err)
    }
    n.a.Close()
    if err := n.a.Send(addrB, []byte("x")); !errors.Is(err, ErrClosed) {
        t.Fatalf("closed: %v", err)
    }
}
