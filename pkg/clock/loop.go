package clock

import (
    "context"
    "sync"
    "time"
)

// Loop is a wall-clock Scheduler that funnels every callback, timers and
// posted I/O work alike, through a single goroutine (the one calling Run).
// Timer methods must be called from inside a callback.
type Loop struct {
    start time.Time
    work  chan func()
    done  chan struct{}
    once  sync.Once
}

func NewLoop(backlog int) *Loop {
    if backlog <= 0 {
        backlog = 256
    }
    return &Loop{start: time.Now(), work: make(chan func(), backlog), done: make(chan struct{})}
}

func (l *Loop) Now() time.Duration { return time.Since(l.start) }

// Post queues fn for the loop goroutine. It blocks while the backlog is full
// and returns false once the loop has stopped.
func (l *Loop) Post(fn func()) bool {
    select {
    case <-l.done:
        return false
    default:
    }
    select {
    case l.work <- fn:
        return true
    case <-l.done:
        return false
    }
}

// Run executes posted work until ctx is done.
func (l *Loop) Run(ctx context.Context) error {
    defer l.stop()
    for {
        select {
        case <-ctx.Done():
            return ctx.Err()
        case fn := <-l.work:
            fn()
        }
    }
}

func (l *Loop) stop() { l.once.Do(func() { close(l.done) }) }

func (l *Loop) AfterFunc(d time.Duration, fn func()) Timer {
    t := &loopTimer{l: l, d: d, fn: fn}
    t.arm()
    return t
}

type loopTimer struct {
    l      *Loop
    d      time.Duration
    fn     func()
    gen    uint64
    active bool
    rt     *time.Timer
}

func (t *loopTimer) arm() {
    t.gen++
    gen := t.gen
    t.active = true
    t.rt = time.AfterFunc(t.d, func() {
        t.l.Post(func() {
            // a Stop or Reset after the wall-clock timer fired bumps gen
            if t.gen != gen || !t.active {
                return
            }
            t.active = false
            t.fn()
        })
    })
}

func (t *loopTimer) Stop() bool {
    if !t.active {
        return false
    }
    t.active = false
    t.gen++
    t.rt.Stop()
    return true
}

func (t *loopTimer) Reset() {
    t.Stop()
    t.arm()
}
