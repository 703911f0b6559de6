package radio

import (
    "time"

    "go.uber.org/zap"

    "aggmesh/pkg/clock"
    "aggmesh/pkg/wire"
)

// ReliableHandler receives the outcome of acknowledged unicasts.
type ReliableHandler interface {
    Recv(from wire.Addr, payload []byte)
    Sent(to wire.Addr, retx uint8)
    TimedOut(to wire.Addr, retx uint8)
}

// DefaultRetxTimeout is how long to wait for an ack before retransmitting.
const DefaultRetxTimeout = time.Second

// Reliable is an acknowledged point-to-point primitive with a bounded number
// of retransmissions. One frame is in flight at a time; duplicates caused by
// lost acks are re-acknowledged but delivered once.
type Reliable struct {
    mux     *Mux
    sched   clock.Scheduler
    ch      uint16
    h       ReliableHandler
    timeout time.Duration
    log     *zap.Logger

    seq      uint8
    inflight *outstanding
    lastSeq  map[wire.Addr]uint8
}

type outstanding struct {
    dst     wire.Addr
    payload []byte
    seq     uint8
    maxRetx uint8
    retx    uint8
    timer   clock.Timer
}

func OpenReliable(mux *Mux, sched clock.Scheduler, ch uint16, h ReliableHandler, timeout time.Duration, log *zap.Logger) (*Reliable, error) {
    if timeout <= 0 { timeout = DefaultRetxTimeout }
    if log == nil { log = zap.NewNop() }
    r := &Reliable{mux: mux, sched: sched, ch: ch, h: h, timeout: timeout, log: log, lastSeq: make(map[wire.Addr]uint8)}
    if err := mux.Open(ch, r.onFrame); err != nil {
        return nil, err
    }
    return r, nil
}

// IsTransmitting reports whether a frame is waiting for its ack.
func (r *Reliable) IsTransmitting() bool { return r.inflight != nil }

// Send transmits payload to dst, retransmitting up to maxRetx times.
func (r *Reliable) Send(dst wire.Addr, payload []byte, maxRetx uint8) error {
    if r.inflight != nil {
        return ErrBusy
    }
    if len(payload) > r.mux.MTU() {
        return ErrFrameTooLarge
    }
    r.seq++
    o := &outstanding{dst: dst, payload: append([]byte(nil), payload...), seq: r.seq, maxRetx: maxRetx}
    if err := r.transmit(o, 0); err != nil {
        return err
    }
    r.inflight = o
    o.timer = r.sched.AfterFunc(r.timeout, r.expired)
    return nil
}

func (r *Reliable) transmit(o *outstanding, flags uint8) error {
    f := wire.Frame{Header: wire.Header{Kind: wire.KindData, Dst: o.dst, LinkSeq: o.seq, Flags: flags}, Payload: o.payload}
    return r.mux.Send(r.ch, f)
}

func (r *Reliable) expired() {
    o := r.inflight
    if o == nil {
        return
    }
    if o.retx >= o.maxRetx {
        r.inflight = nil
        r.log.Debug("unicast timed out", zap.Stringer("to", o.dst), zap.Uint8("retx", o.retx))
        r.h.TimedOut(o.dst, o.retx)
        return
    }
    o.retx++
    if err := r.transmit(o, wire.FlagRetx); err != nil {
        r.log.Debug("retransmit failed", zap.Stringer("to", o.dst), zap.Error(err))
    }
    o.timer.Reset()
}

func (r *Reliable) onFrame(f wire.Frame) {
    switch f.Header.Kind {
    case wire.KindData:
        if f.Header.Dst != r.mux.Addr() {
            return
        }
        ack := wire.Frame{Header: wire.Header{Kind: wire.KindAck, Dst: f.Header.Src, LinkSeq: f.Header.LinkSeq}}
        if err := r.mux.Send(r.ch, ack); err != nil {
            r.log.Debug("ack send failed", zap.Stringer("to", f.Header.Src), zap.Error(err))
        }
        if last, seen := r.lastSeq[f.Header.Src]; seen && last == f.Header.LinkSeq {
            return
        }
        r.lastSeq[f.Header.Src] = f.Header.LinkSeq
        r.h.Recv(f.Header.Src, f.Payload)
    case wire.KindAck:
        o := r.inflight
        if o == nil || f.Header.Src != o.dst || f.Header.LinkSeq != o.seq {
            return
        }
        o.timer.Stop()
        r.inflight = nil
        r.h.Sent(o.dst, o.retx)
    }
}

// Close drops any in-flight frame without notifying the handler.
func (r *Reliable) Close() {
    if r.inflight != nil {
        r.inflight.timer.Stop()
        r.inflight = nil
    }
    r.mux.Close(r.ch)
}
