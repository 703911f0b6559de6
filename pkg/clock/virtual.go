package clock

import (
    "container/heap"
    "time"
)

// Virtual is a deterministic discrete-event scheduler. Time only advances
// when Run or RunSteps executes the next event; events at the same instant
// run in the order they were scheduled. It is not safe for concurrent use:
// everything, including scheduling, happens on the goroutine calling Run.
type Virtual struct {
    now    time.Duration
    seq    uint64
    events eventQueue
    ran    uint64
}

func NewVirtual() *Virtual {
    v := &Virtual{}
    heap.Init(&v.events)
    return v
}

func (v *Virtual) Now() time.Duration { return v.now }

// AfterFunc schedules fn to run d after the current virtual time.
func (v *Virtual) AfterFunc(d time.Duration, fn func()) Timer {
    t := &virtualTimer{v: v, d: d, fn: fn}
    t.arm()
    return t
}

// Post schedules fn at the current instant, after everything already due now.
func (v *Virtual) Post(fn func()) bool {
    v.schedule(0, fn)
    return true
}

func (v *Virtual) schedule(d time.Duration, fn func()) *event {
    if d < 0 {
        d = 0
    }
    ev := &event{at: v.now + d, seq: v.seq, fn: fn}
    v.seq++
    heap.Push(&v.events, ev)
    return ev
}

// Run executes events until the queue is empty or the next event is later
// than until. The clock finishes at until (or later, never earlier).
func (v *Virtual) Run(until time.Duration) {
    for v.events.Len() > 0 {
        next := v.events[0]
        if next.at > until {
            break
        }
        v.step()
    }
    if until > v.now {
        v.now = until
    }
}

// RunFor runs the scheduler for d of virtual time.
func (v *Virtual) RunFor(d time.Duration) { v.Run(v.now + d) }

// RunSteps executes at most n events, cancelled ones excluded.
func (v *Virtual) RunSteps(n int) int {
    done := 0
    for done < n && v.events.Len() > 0 {
        if v.step() {
            done++
        }
    }
    return done
}

func (v *Virtual) step() bool {
    ev := heap.Pop(&v.events).(*event)
    if ev.cancelled {
        return false
    }
    v.now = ev.at
    ev.fired = true
    v.ran++
    ev.fn()
    return true
}

// Pending counts scheduled events that have not been cancelled.
func (v *Virtual) Pending() int {
    n := 0
    for _, ev := range v.events {
        if !ev.cancelled {
            n++
        }
    }
    return n
}

// Executed is the number of callbacks run so far.
func (v *Virtual) Executed() uint64 { return v.ran }

// NextEventTime returns the time of the next live event, or -1 if idle.
func (v *Virtual) NextEventTime() time.Duration {
    for v.events.Len() > 0 && v.events[0].cancelled {
        heap.Pop(&v.events)
    }
    if v.events.Len() == 0 {
        return -1
    }
    return v.events[0].at
}

type virtualTimer struct {
    v  *Virtual
    d  time.Duration
    fn func()
    ev *event
}

func (t *virtualTimer) arm() { t.ev = t.v.schedule(t.d, t.fn) }

func (t *virtualTimer) Stop() bool {
    if t.ev == nil || t.ev.fired || t.ev.cancelled {
        return false
    }
    t.ev.cancelled = true
    return true
}

func (t *virtualTimer) Reset() {
    t.Stop()
    t.arm()
}

type event struct {
    at        time.Duration
    seq       uint64
    fn        func()
    cancelled bool
    fired     bool
}

type eventQueue []*event

func (q eventQueue) Len() int { return len(q) }
func (q eventQueue) Less(i, j int) bool {
    if q[i].at != q[j].at {
        return q[i].at < q[j].at
    }
    return q[i].seq < q[j].seq
}
func (q eventQueue) Swap(i, j int)  { q[i], q[j] = q[j], q[i] }
func (q *eventQueue) Push(x any)    { *q = append(*q, x.(*event)) }
func (q *eventQueue) Pop() any      { old := *q; n := len(old); ev := old[n-1]; old[n-1] = nil; *q = old[:n-1]; return ev }
