package tree

import "aggmesh/pkg/wire"

// Handler is the application side of a tree connection. All methods run on
// the node's event loop.
type Handler interface {
    // Recv is called at the sink for every report that reaches it.
    Recv(c *Conn, source wire.Addr, payload []byte)
    // SetupComplete is called once the node finished its flooding phase.
    SetupComplete(c *Conn)
    // AggregateUpdate folds an incoming child report into buf.
    AggregateUpdate(buf []byte, incoming []byte)
    // AggregateOwn folds this node's own reading into buf.
    AggregateOwn(buf []byte)
    // StorePacket initialises the aggregation buffer, c.Data(), from the
    // first report of a window.
    StorePacket(c *Conn, payload []byte)
    // WriteDataToPacket serialises c.Data() into a fresh payload.
    WriteDataToPacket(c *Conn) ([]byte, error)
}

// SetupFailer is implemented by handlers that want to know when a node gave
// up waiting for setup messages.
type SetupFailer interface {
    SetupFailed(c *Conn, err error)
}

// NopHandler ignores every event. Useful for leaf-only or relay-only nodes
// and as an embedding base.
type NopHandler struct{}

func (NopHandler) Recv(*Conn, wire.Addr, []byte)         {}
func (NopHandler) SetupComplete(*Conn)                   {}
func (NopHandler) AggregateUpdate([]byte, []byte)        {}
func (NopHandler) AggregateOwn([]byte)                   {}
func (NopHandler) StorePacket(*Conn, []byte)             {}
func (NopHandler) WriteDataToPacket(c *Conn) ([]byte, error) {
    return append([]byte(nil), c.Data()...), nil
}
