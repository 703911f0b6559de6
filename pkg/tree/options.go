package tree

import (
    "errors"
    "fmt"
    "time"

    "aggmesh/pkg/multipacket"
)

// Options holds the protocol windows. The defaults are the timings of the
// deployed sensor network.
type Options struct {
    // SettleDelay is how long the sink waits before it starts flooding.
    SettleDelay time.Duration
    // StubbornMin and StubbornMax bound the random rebroadcast interval.
    StubbornMin time.Duration
    StubbornMax time.Duration
    // StubbornWait is how long each node keeps rebroadcasting its setup message.
    StubbornWait time.Duration
    // ParentDetectWait is the window, from the first setup message heard,
    // during which a node picks its parent.
    ParentDetectWait time.Duration
    // AggregationWait is how long a relay merges child reports before
    // forwarding.
    AggregationWait time.Duration
    // LeafInterval is the period of a leaf's own reports; 0 disables them.
    LeafInterval time.Duration
    // SetupTimeout fails a node that heard no setup message in time; 0 waits forever.
    SetupTimeout time.Duration
    // SinkFoldsOwn makes the sink fold its own reading into every report
    // before handing it to Recv.
    SinkFoldsOwn bool

    Transport multipacket.Options
}

func DefaultOptions() Options {
    return Options{
        SettleDelay:      10 * time.Second,
        StubbornMin:      2 * time.Second,
        StubbornMax:      4 * time.Second,
        StubbornWait:     60 * time.Second,
        ParentDetectWait: 35 * time.Second,
        AggregationWait:  45 * time.Second,
        LeafInterval:     60 * time.Second,
    }
}

var ErrInvalidOptions = errors.New("tree: invalid options")

// Validate checks the window relations the protocol depends on: a level must
// still be rebroadcasting while the level below is choosing parents, even
// when a child missed the first broadcast and only hears the next one.
func (o Options) Validate() error {
    switch {
    case o.SettleDelay < 0:
        return fmt.Errorf("%w: negative settle delay", ErrInvalidOptions)
    case o.StubbornMin <= 0 || o.StubbornMax < o.StubbornMin:
        return fmt.Errorf("%w: stubborn interval [%v, %v]", ErrInvalidOptions, o.StubbornMin, o.StubbornMax)
    case o.ParentDetectWait <= 0:
        return fmt.Errorf("%w: parent detect wait must be positive", ErrInvalidOptions)
    case o.StubbornWait < o.ParentDetectWait+o.StubbornMax:
        return fmt.Errorf("%w: stubborn wait %v must cover parent detect wait %v plus one rebroadcast %v",
            ErrInvalidOptions, o.StubbornWait, o.ParentDetectWait, o.StubbornMax)
    case o.AggregationWait <= 0:
        return fmt.Errorf("%w: aggregation wait must be positive", ErrInvalidOptions)
    case o.LeafInterval < 0 || o.SetupTimeout < 0:
        return fmt.Errorf("%w: negative interval", ErrInvalidOptions)
    }
    return nil
}

// SetupHorizon bounds the time, from open, by which every node of a network
// with the given diameter (in hops from the sink) has finished setup.
func (o Options) SetupHorizon(diameter int) time.Duration {
    if diameter < 1 {
        diameter = 1
    }
    // each level may miss its parent's first broadcast
    return o.SettleDelay + time.Duration(diameter)*(o.ParentDetectWait+o.StubbornMax) + o.StubbornWait
}

// WindowsForDiameter returns the default windows with a setup timeout that
// lets the farthest node of such a network hear its first setup message.
func WindowsForDiameter(diameter int) Options {
    o := DefaultOptions()
    o.SetupTimeout = o.SetupHorizon(diameter)
    return o
}
