package queue

import (
    "testing"
    "time"
)

func TestFIFOOrder(t *testing.T) {
    var q FIFO[int]
    if _, ok := q.Pop(); ok { t.Fatalf("pop on empty queue") }
    for i := 0; i < 100; i++ { q.Push(i) }
    for i := 0; i < 60; i++ {
        v, ok := q.Pop()
        if !ok || v != i { t.Fatalf("pop %d: got %d %v", i, v, ok) }
    }
    q.Push(100)
    if h, _ := q.Peek(); h != 60 { t.Fatalf("peek = %d", h) }
    if q.Len() != 41 { t.Fatalf("len = %d", q.Len()) }
    var seen []int
    q.Each(func(v int) bool { seen = append(seen, v); return len(seen) < 3 })
    if len(seen) != 3 || seen[0] != 60 || seen[2] != 62 { t.Fatalf("each: %v", seen) }
    q.Clear()
    if q.Len() != 0 { t.Fatalf("clear left %d", q.Len()) }
}

func TestTokenBucket(t *testing.T) {
    now := time.Unix(0, 0)
    b := NewTokenBucket(100, 200).WithClock(func() time.Time { return now })
    if ok, _ := b.Allow(200); !ok { t.Fatalf("full bucket should allow capacity") }
    ok, wait := b.Allow(50)
    if ok || wait != 500*time.Millisecond { t.Fatalf("want wait 500ms, got %v %v", ok, wait) }
    now = now.Add(time.Second)
    if ok, _ := b.Allow(50); !ok { t.Fatalf("refilled bucket should allow") }
    if got := b.Available(); got != 50 { t.Fatalf("available after refill = %d", got) }
    if ok, wait := b.Allow(201); ok || wait != 0 { t.Fatalf("request above burst: %v %v", ok, wait) }
}

func TestTokenBucketKeepsFractionalRefill(t *testing.T) {
    now := time.Unix(0, 0)
    b := NewTokenBucket(3, 3).WithClock(func() time.Time { return now })
    if ok, _ := b.Allow(3); !ok { t.Fatalf("full bucket should allow burst") }
    // 3 tokens/s: each 200ms step is worth 0.6 tokens
    for i := 0; i < 5; i++ {
        now = now.Add(200 * time.Millisecond)
        b.Available()
    }
    if got := b.Available(); got != 3 { t.Fatalf("five 200ms steps should refill 3 tokens, got %d", got) }
}
