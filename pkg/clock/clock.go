// Package clock provides the scheduled-callback timers every protocol layer
// runs on. A node's callbacks are always invoked one at a time, so protocol
// state needs no locking.
package clock

import "time"

// Timer is a one-shot scheduled callback.
type Timer interface {
    // Stop cancels the pending callback. It reports whether the call stopped
    // a timer that had not fired yet.
    Stop() bool
    // Reset restarts the timer with the duration it was created with.
    Reset()
}

// Scheduler runs callbacks after a delay, strictly one at a time.
type Scheduler interface {
    // Now is the time elapsed since the scheduler started.
    Now() time.Duration
    AfterFunc(d time.Duration, fn func()) Timer
}

// Poster injects work (e.g. an inbound datagram) into the scheduler's callback sequence.
type Poster interface {
    Post(fn func()) bool
}
