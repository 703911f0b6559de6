package clock

import (
    "context"
    "testing"
    "time"
)

func TestVirtualOrdering(t *testing.T) {
    v := NewVirtual()
    var got []string
    v.AfterFunc(2*time.Second, func() { got = append(got, "b") })
    v.AfterFunc(time.Second, func() { got = append(got, "a") })
    v.AfterFunc(2*time.Second, func() { got = append(got, "c") })
    v.Run(10 * time.Second)
    if len(got) != 3 || got[0] != "a" || got[1] != "b" || got[2] != "c" {
        t.Fatalf("unexpected order: %v", got)
    }
    if v.Now() != 10*time.Second {
        t.Fatalf("clock should end at the horizon, got %v", v.Now())
    }
}

func TestVirtualStopAndReset(t *testing.T) {
    v := NewVirtual()
    fired := 0
    var at time.Duration
    tm := v.AfterFunc(5*time.Second, func() { fired++; at = v.Now() })
    v.Run(3 * time.Second)
    tm.Reset()
    v.Run(7 * time.Second)
    if fired != 0 {
        t.Fatalf("reset timer fired early at %v", at)
    }
    v.Run(20 * time.Second)
    if fired != 1 || at != 8*time.Second {
        t.Fatalf("want one firing at 8s, got %d at %v", fired, at)
    }
    if tm.Stop() {
        t.Fatalf("Stop after firing should report false")
    }

    stopped := v.AfterFunc(time.Second, func() { fired++ })
    if !stopped.Stop() {
        t.Fatalf("Stop on pending timer should report true")
    }
    if v.Pending() != 0 {
        t.Fatalf("cancelled timer still pending")
    }
    v.RunFor(5 * time.Second)
    if fired != 1 {
        t.Fatalf("stopped timer fired")
    }
}

func TestVirtualNestedScheduling(t *testing.T) {
    v := NewVirtual()
    ticks := 0
    var tick func()
    tick = func() {
        ticks++
        if ticks < 5 {
            v.AfterFunc(time.Second, tick)
        }
    }
    v.Post(tick)
    if n := v.RunSteps(3); n != 3 {
        t.Fatalf("RunSteps ran %d", n)
    }
    v.Run(time.Minute)
    if ticks != 5 || v.Executed() != 5 {
        t.Fatalf("ticks=%d executed=%d", ticks, v.Executed())
    }
    if v.NextEventTime() != -1 {
        t.Fatalf("scheduler should be idle")
    }
}

func TestLoopSerialisesTimers(t *testing.T) {
    l := NewLoop(16)
    ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
    defer cancel()

    done := make(chan []int, 1)
    var seen []int
    l.Post(func() {
        l.AfterFunc(20*time.Millisecond, func() { seen = append(seen, 2) })
        stop := l.AfterFunc(5*time.Millisecond, func() { seen = append(seen, 99) })
        stop.Stop()
        l.AfterFunc(10*time.Millisecond, func() { seen = append(seen, 1) })
        l.AfterFunc(60*time.Millisecond, func() { done <- seen })
    })
    go func() { _ = l.Run(ctx) }()

    select {
    case got := <-done:
        if len(got) != 2 || got[0] != 1 || got[1] != 2 {
            t.Fatalf("unexpected firing sequence: %v", got)
        }
    case <-ctx.Done():
        t.Fatalf("loop timers did not fire")
    }
}
