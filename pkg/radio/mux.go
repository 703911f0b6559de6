package radio

import (
    "go.uber.org/zap"

    "aggmesh/pkg/wire"
)

// Mux owns a Link and routes inbound frames to the receiver registered for
// the frame's channel. Frames for other nodes or unopened channels are dropped.
type Mux struct {
    link     Link
    log      *zap.Logger
    channels map[uint16]Receiver
    dropped  uint64
}

func NewMux(link Link, log *zap.Logger) *Mux {
    if log == nil { log = zap.NewNop() }
    m := &Mux{link: link, log: log, channels: make(map[uint16]Receiver)}
    link.SetReceiver(m.dispatch)
    return m
}

func (m *Mux) Addr() wire.Addr { return m.link.Addr() }
func (m *Mux) MTU() int         { return m.link.MTU() }
func (m *Mux) Dropped() uint64  { return m.dropped }

// Open registers r for channel ch.
func (m *Mux) Open(ch uint16, r Receiver) error {
    if _, ok := m.channels[ch]; ok {
        return ErrChannelInUse
    }
    m.channels[ch] = r
    return nil
}

// Close unregisters channel ch.
func (m *Mux) Close(ch uint16) { delete(m.channels, ch) }

// Send stamps the local address and channel and hands the frame to the link.
func (m *Mux) Send(ch uint16, f wire.Frame) error {
    f.Header.Channel = ch
    f.Header.Src = m.link.Addr()
    if len(f.Payload) > m.link.MTU() {
        return ErrFrameTooLarge
    }
    return m.link.Send(f)
}

func (m *Mux) dispatch(f wire.Frame) {
    if f.Header.Dst != wire.Broadcast && f.Header.Dst != m.link.Addr() {
        m.dropped++
        return
    }
    r, ok := m.channels[f.Header.Channel]
    if !ok {
        m.dropped++
        m.log.Debug("frame on closed channel", zap.Uint16("channel", f.Header.Channel), zap.Stringer("src", f.Header.Src))
        return
    }
    r(f)
}
