package tree

import (
    "math"
    "time"

    "go.uber.org/zap"

    "aggmesh/pkg/wire"
)

const stubbornStep = 100 * time.Millisecond

func (c *Conn) startSinkFlood() {
    c.state = Broadcasting
    c.hops = 0
    c.flood(wire.Setup{Source: c.addr, Parent: wire.Null, HopCount: 1})
}

func (c *Conn) onSetup(from wire.Addr, payload []byte) {
    if c.state == Closed {
        return
    }
    var msg wire.Setup
    if err := msg.UnmarshalBinary(payload); err != nil {
        c.log.Debug("malformed setup message", zap.Stringer("from", from), zap.Error(err))
        return
    }
    c.stats.SetupHeard++
    if c.nb != nil {
        c.nb.Observe(msg, c.sched.Now())
    }
    if msg.Parent == c.addr && c.isLeaf {
        c.isLeaf = false
        if c.leafTick != nil && c.leafTick.Stop() {
            c.log.Info("late child detected, leaf reports stopped", zap.Stringer("child", msg.Source))
        } else {
            c.log.Debug("child detected, not a leaf", zap.Stringer("child", msg.Source))
        }
    }
    if c.isSink {
        return
    }

    switch c.state {
    case Uninitialized, Failed:
        if c.state == Failed {
            c.log.Info("setup message after timeout, resuming", zap.Stringer("from", msg.Source))
        }
        if c.setupTimeout != nil {
            c.setupTimeout.Stop()
        }
        c.state = AwaitingParent
        c.bestParent, c.bestHops = msg.Source, msg.HopCount
        c.detect = c.sched.AfterFunc(c.opts.ParentDetectWait, c.commitParent)
        c.log.Debug("parent detection started", zap.Stringer("candidate", msg.Source), zap.Uint32("hops", msg.HopCount))
    case AwaitingParent:
        if msg.HopCount < c.bestHops {
            c.bestParent, c.bestHops = msg.Source, msg.HopCount
        }
    }
}

func (c *Conn) commitParent() {
    c.state = ParentCommitted
    c.parent, c.hops = c.bestParent, c.bestHops
    next := c.hops
    if next < math.MaxUint32 {
        next++
    }
    c.log.Info("parent committed", zap.Stringer("parent", c.parent), zap.Uint32("hops", c.hops))
    c.flood(wire.Setup{Source: c.addr, Parent: c.parent, HopCount: next})
}

// flood stubbornly rebroadcasts msg for StubbornWait, then completes setup.
func (c *Conn) flood(msg wire.Setup) {
    b, _ := msg.MarshalBinary()
    if err := c.stub.Send(b, c.stubbornInterval()); err != nil {
        c.log.Error("setup broadcast failed", zap.Error(err))
    }
    c.floodEnd = c.sched.AfterFunc(c.opts.StubbornWait, c.finishSetup)
}

// stubbornInterval draws from [StubbornMin, StubbornMax] in 100ms steps.
func (c *Conn) stubbornInterval() time.Duration {
    steps := int((c.opts.StubbornMax - c.opts.StubbornMin) / stubbornStep)
    return c.opts.StubbornMin + time.Duration(c.rng.Intn(steps+1))*stubbornStep
}

func (c *Conn) finishSetup() {
    c.stub.Cancel()
    c.state = Ready
    c.log.Info("setup complete",
        zap.Stringer("parent", c.parent), zap.Uint32("hops", c.hops), zap.Bool("leaf", c.isLeaf), zap.Bool("sink", c.isSink))
    c.h.SetupComplete(c)
    c.startLeafReports()
}

func (c *Conn) onSetupTimeout() {
    if c.state != Uninitialized {
        return
    }
    c.state = Failed
    c.log.Warn("no setup message heard", zap.Duration("timeout", c.opts.SetupTimeout))
    if f, ok := c.h.(SetupFailer); ok {
        f.SetupFailed(c, ErrSetupTimeout)
    }
}
