package tree

// State is where a node is in tree construction.
type State uint8

const (
    Uninitialized State = iota
    Broadcasting          // sink flooding
    AwaitingParent        // first setup message heard, choosing a parent
    ParentCommitted       // parent chosen, flooding own setup message
    Ready
    Failed
    Closed
)

func (s State) String() string {
    switch s {
    case Uninitialized:
        return "uninitialized"
    case Broadcasting:
        return "broadcasting"
    case AwaitingParent:
        return "awaiting_parent"
    case ParentCommitted:
        return "parent_committed"
    case Ready:
        return "ready"
    case Failed:
        return "failed"
    case Closed:
        return "closed"
    default:
        return "unknown"
    }
}
