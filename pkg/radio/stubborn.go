package radio

import (
    "time"

    "go.uber.org/zap"

    "aggmesh/pkg/clock"
    "aggmesh/pkg/wire"
)

// Stubborn repeats one broadcast payload at a fixed interval until cancelled.
type Stubborn struct {
    mux   *Mux
    sched clock.Scheduler
    ch    uint16
    recv  func(from wire.Addr, payload []byte)
    log   *zap.Logger

    payload []byte
    timer   clock.Timer
    sends   int
}

// OpenStubborn opens channel ch; recv gets every broadcast heard on it.
func OpenStubborn(mux *Mux, sched clock.Scheduler, ch uint16, recv func(from wire.Addr, payload []byte), log *zap.Logger) (*Stubborn, error) {
    if log == nil { log = zap.NewNop() }
    s := &Stubborn{mux: mux, sched: sched, ch: ch, recv: recv, log: log}
    if err := mux.Open(ch, s.onFrame); err != nil {
        return nil, err
    }
    return s, nil
}

// Send starts (or replaces) the stubborn broadcast: one transmission now and
// one every interval afterwards.
func (s *Stubborn) Send(payload []byte, interval time.Duration) error {
    if len(payload) > s.mux.MTU() {
        return ErrFrameTooLarge
    }
    s.Cancel()
    s.payload = append([]byte(nil), payload...)
    s.transmit()
    s.timer = s.sched.AfterFunc(interval, s.tick)
    return nil
}

func (s *Stubborn) tick() {
    if s.payload == nil {
        return
    }
    s.transmit()
    s.timer.Reset()
}

func (s *Stubborn) transmit() {
    f := wire.Frame{Header: wire.Header{Kind: wire.KindBroadcast, Dst: wire.Broadcast}, Payload: s.payload}
    if err := s.mux.Send(s.ch, f); err != nil {
        s.log.Warn("stubborn broadcast send failed", zap.Uint16("channel", s.ch), zap.Error(err))
        return
    }
    s.sends++
}

// Cancel stops repeating. Safe to call when idle.
func (s *Stubborn) Cancel() {
    if s.timer != nil {
        s.timer.Stop()
        s.timer = nil
    }
    s.payload = nil
}

// Active reports whether a broadcast is being repeated.
func (s *Stubborn) Active() bool { return s.payload != nil }

// Sends counts transmissions since open.
func (s *Stubborn) Sends() int { return s.sends }

func (s *Stubborn) Close() {
    s.Cancel()
    s.mux.Close(s.ch)
}

func (s *Stubborn) onFrame(f wire.Frame) {
    if f.Header.Kind != wire.KindBroadcast || s.recv == nil {
        return
    }
    s.recv(f.Header.Src, f.Payload)
}
