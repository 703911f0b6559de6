package wire

// Kind tells what a frame carries.
type Kind uint8

const (
    KindUnknown Kind = iota
    KindBroadcast    // best-effort broadcast (stubborn flooding)
    KindData         // reliable unicast data (fragments)
    KindAck          // link-layer acknowledgement of a KindData frame
)

func (k Kind) String() string {
    switch k {
    case KindBroadcast:
        return "broadcast"
    case KindData:
        return "data"
    case KindAck:
        return "ack"
    default:
        return "unknown"
    }
}

// Frame flags.
const (
    FlagRetx uint8 = 1 << 0 // frame is a retransmission
)
