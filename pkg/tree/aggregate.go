package tree

import (
    "go.uber.org/zap"

    "aggmesh/pkg/multipacket"
    "aggmesh/pkg/wire"
)

func (c *Conn) startLeafReports() {
    if c.isSink || !c.isLeaf || c.opts.LeafInterval <= 0 {
        return
    }
    c.leafTick = c.sched.AfterFunc(c.opts.LeafInterval, c.onLeafTick)
}

// onLeafTick sends this node's own reading. A leaf that turned out to have
// children while collecting leaves its reading to the window instead.
func (c *Conn) onLeafTick() {
    if c.state == Closed {
        return
    }
    c.leafTick.Reset()
    if c.collecting {
        return
    }
    clear(c.data)
    c.h.AggregateOwn(c.data)
    payload, err := c.h.WriteDataToPacket(c)
    clear(c.data)
    if err != nil {
        c.log.Warn("leaf report not encoded", zap.Error(err))
        return
    }
    if c.send(payload) {
        c.stats.OwnReports++
    }
}

func (c *Conn) send(payload []byte) bool {
    if err := c.Send(payload); err != nil {
        c.stats.SendErrors++
        c.log.Warn("report not sent", zap.Stringer("parent", c.parent), zap.Error(err))
        return false
    }
    return true
}

func (c *Conn) onReport(source wire.Addr, payload []byte) {
    if c.state == Closed {
        return
    }
    c.stats.ReportsReceived++
    if c.isSink {
        c.deliverAtSink(source, payload)
        return
    }
    if !c.collecting {
        clear(c.data)
        c.h.StorePacket(c, payload)
        c.collecting = true
        if c.window == nil {
            c.window = c.sched.AfterFunc(c.opts.AggregationWait, c.closeWindow)
        } else {
            c.window.Reset()
        }
        return
    }
    c.h.AggregateUpdate(c.data, payload)
}

func (c *Conn) closeWindow() {
    if c.state == Closed {
        return
    }
    c.stats.Windows++
    c.h.AggregateOwn(c.data)
    payload, err := c.h.WriteDataToPacket(c)
    c.collecting = false
    clear(c.data)
    if err != nil {
        c.log.Warn("aggregate not encoded", zap.Error(err))
        return
    }
    if c.send(payload) {
        c.stats.ReportsForwarded++
    }
}

func (c *Conn) deliverAtSink(source wire.Addr, payload []byte) {
    if c.opts.SinkFoldsOwn {
        clear(c.data)
        c.h.StorePacket(c, payload)
        c.h.AggregateOwn(c.data)
        folded, err := c.h.WriteDataToPacket(c)
        clear(c.data)
        if err != nil {
            c.log.Warn("sink fold not encoded", zap.Error(err))
            return
        }
        payload = folded
    }
    c.stats.Delivered++
    c.h.Recv(c, source, payload)
}

// transportEvents receives the fragment transport callbacks.
type transportEvents struct{ c *Conn }

func (t transportEvents) Recv(_ *multipacket.Conn, source wire.Addr, payload []byte) {
    t.c.onReport(source, payload)
}

func (t transportEvents) Sent(_ *multipacket.Conn, target wire.Addr, id uint16) {
    t.c.log.Debug("report delivered to parent", zap.Stringer("parent", target), zap.Uint16("id", id))
}

func (t transportEvents) Failed(_ *multipacket.Conn, target wire.Addr, id uint16, err error) {
    t.c.stats.SendErrors++
    t.c.log.Warn("report lost", zap.Stringer("parent", target), zap.Uint16("id", id), zap.Error(err))
}
