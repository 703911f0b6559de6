// Package udp carries radio frames over UDP datagrams, so nodes can run as
// separate processes. Every configured neighbour is in radio range; a
// broadcast frame is one datagram per neighbour.
package udp

import (
    "errors"
    "fmt"
    "math/rand"
    "net"
    "strings"
    "sync"
    "time"

    "go.uber.org/zap"

    "aggmesh/pkg/clock"
    "aggmesh/pkg/core/queue"
    "aggmesh/pkg/radio"
    "aggmesh/pkg/wire"
)

// Neighbor is a node in radio range and the UDP endpoint it listens on.
type Neighbor struct {
    Addr wire.Addr
    Host string
}

// ParseNeighbor parses "addr@host:port", e.g. "2.0@127.0.0.1:7002".
func ParseNeighbor(s string) (Neighbor, error) {
    a, host, ok := strings.Cut(strings.TrimSpace(s), "@")
    if !ok || host == "" {
        return Neighbor{}, fmt.Errorf("neighbor %q: want addr@host:port", s)
    }
    addr, err := wire.ParseAddr(a)
    if err != nil { return Neighbor{}, err }
    if _, _, err := net.SplitHostPort(host); err != nil {
        return Neighbor{}, fmt.Errorf("neighbor %q: %w", s, err)
    }
    return Neighbor{Addr: addr, Host: host}, nil
}

// Options configures a UDP link.
type Options struct {
    Listen    string
    Neighbors []Neighbor
    MTU       int
    // Loss drops outbound datagrams with this probability, to exercise
    // retransmissions on a loopback testbed.
    Loss float64
    // RateBytes shapes outbound airtime in bytes per second; 0 disables shaping.
    RateBytes  int64
    BurstBytes int64
}

// Link is a radio.Link over a UDP socket. Inbound frames are handed to the
// receiver through the Poster, so they run on the node's event loop.
type Link struct {
    addr   wire.Addr
    mtu    int
    conn   *net.UDPConn
    post   clock.Poster
    log    *zap.Logger
    shaper *queue.TokenBucket
    loss   float64

    mu     sync.Mutex
    peers  map[wire.Addr]*net.UDPAddr
    recv   radio.Receiver
    rng    *rand.Rand
    closed chan struct{}
    once   sync.Once

    shaped uint64
}

var _ radio.Link = (*Link)(nil)

// Listen opens the socket and starts the read loop.
func Listen(addr wire.Addr, opts Options, post clock.Poster, log *zap.Logger) (*Link, error) {
    if log == nil { log = zap.NewNop() }
    if opts.MTU <= 0 { opts.MTU = 128 + wire.FragmentHeaderSize }
    laddr, err := net.ResolveUDPAddr("udp", opts.Listen)
    if err != nil { return nil, err }
    peers := make(map[wire.Addr]*net.UDPAddr, len(opts.Neighbors))
    for _, n := range opts.Neighbors {
        ra, err := net.ResolveUDPAddr("udp", n.Host)
        if err != nil { return nil, fmt.Errorf("resolve neighbor %s: %w", n.Addr, err) }
        peers[n.Addr] = ra
    }
    c, err := net.ListenUDP("udp", laddr)
    if err != nil { return nil, err }
    l := &Link{
        addr:   addr,
        mtu:    opts.MTU,
        conn:   c,
        post:   post,
        log:    log,
        loss:   opts.Loss,
        peers:  peers,
        rng:    rand.New(rand.NewSource(time.Now().UnixNano())),
        closed: make(chan struct{}),
    }
    if opts.RateBytes > 0 {
        l.shaper = queue.NewTokenBucket(opts.RateBytes, opts.BurstBytes)
    }
    go l.readLoop()
    return l, nil
}

func (l *Link) Addr() wire.Addr { return l.addr }
func (l *Link) MTU() int         { return l.mtu }

// LocalAddr is the bound socket address.
func (l *Link) LocalAddr() net.Addr { return l.conn.LocalAddr() }

func (l *Link) SetReceiver(r radio.Receiver) {
    l.mu.Lock()
    l.recv = r
    l.mu.Unlock()
}

// Shaped counts frames dropped by the airtime shaper.
func (l *Link) Shaped() uint64 {
    l.mu.Lock(); defer l.mu.Unlock()
    return l.shaped
}

func (l *Link) Send(f wire.Frame) error {
    select {
    case <-l.closed:
        return radio.ErrClosed
    default:
    }
    if len(f.Payload) > l.mtu {
        return radio.ErrFrameTooLarge
    }
    f.Header.Src = l.addr
    raw, err := f.EncodeFrame()
    if err != nil { return err }

    l.mu.Lock()
    var targets []*net.UDPAddr
    if f.IsBroadcast() {
        for _, ra := range l.peers {
            targets = append(targets, ra)
        }
    } else if ra, ok := l.peers[f.Header.Dst]; ok {
        targets = append(targets, ra)
    }
    l.mu.Unlock()
    if len(targets) == 0 && !f.IsBroadcast() {
        return radio.ErrNoRoute
    }

    if l.shaper != nil {
        if ok, wait := l.shaper.Allow(int64(len(raw) * max(len(targets), 1))); !ok {
            l.mu.Lock()
            l.shaped++
            l.mu.Unlock()
            l.log.Debug("airtime exhausted, frame dropped", zap.Duration("wait", wait))
            return nil
        }
    }
    for _, ra := range targets {
        if l.dropOutbound() {
            continue
        }
        if _, err := l.conn.WriteToUDP(raw, ra); err != nil {
            l.log.Debug("udp write failed", zap.Stringer("to", ra), zap.Error(err))
        }
    }
    return nil
}

func (l *Link) dropOutbound() bool {
    if l.loss <= 0 {
        return false
    }
    l.mu.Lock(); defer l.mu.Unlock()
    return l.rng.Float64() < l.loss
}

func (l *Link) readLoop() {
    buf := make([]byte, 64*1024)
    for {
        n, raddr, err := l.conn.ReadFromUDP(buf)
        if err != nil {
            select {
            case <-l.closed:
                return
            default:
            }
            if errors.Is(err, net.ErrClosed) {
                return
            }
            l.log.Warn("udp read failed", zap.Error(err))
            continue
        }
        var f wire.Frame
        if err := f.DecodeFrame(buf[:n]); err != nil {
            l.log.Debug("dropping malformed datagram", zap.Stringer("from", raddr), zap.Error(err))
            continue
        }
        l.mu.Lock()
        r := l.recv
        l.mu.Unlock()
        if r == nil {
            continue
        }
        if !l.post.Post(func() { r(f) }) {
            return
        }
    }
}

func (l *Link) Close() error {
    var err error
    l.once.Do(func() {
        close(l.closed)
        err = l.conn.Close()
    })
    return err
}
