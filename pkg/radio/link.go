package radio

import (
    "errors"

    "aggmesh/pkg/wire"
)

var (
    ErrClosed        = errors.New("radio: link closed")
    ErrFrameTooLarge = errors.New("radio: frame exceeds link MTU")
    ErrChannelInUse  = errors.New("radio: channel already open")
    ErrBusy          = errors.New("radio: transmission in progress")
    ErrNoRoute       = errors.New("radio: destination not in range")
)

// Receiver consumes inbound frames. It runs on the node's event loop.
type Receiver func(f wire.Frame)

// Link is one node's radio.
type Link interface {
    Addr() wire.Addr
    // MTU is the largest frame payload, in bytes, the link can carry.
    MTU() int
    // Send transmits best-effort; loss is silent.
    Send(f wire.Frame) error
    SetReceiver(r Receiver)
    Close() error
}
