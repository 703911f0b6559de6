package queue

import (
    "sync"
    "time"
)

// TokenBucket shapes airtime: every byte put on the air costs one token and
// tokens refill at a fixed rate up to a burst.
type TokenBucket struct {
    mu      sync.Mutex
    burst   int64
    rate    int64 // tokens per second
    level   int64
    residue int64 // refill nanoseconds not yet worth a whole token
    stamp   time.Time
    now     func() time.Time
}

// NewTokenBucket starts full. A burst below the rate is raised to the rate.
func NewTokenBucket(ratePerSec, burst int64) *TokenBucket {
    if burst < ratePerSec { burst = ratePerSec }
    return &TokenBucket{burst: burst, level: burst, rate: ratePerSec, now: time.Now}
}

// WithClock swaps the time source, for tests.
func (b *TokenBucket) WithClock(now func() time.Time) *TokenBucket {
    b.mu.Lock(); defer b.mu.Unlock()
    b.now = now
    b.stamp = time.Time{}
    return b
}

func (b *TokenBucket) refill() {
    t := b.now()
    if b.stamp.IsZero() || !t.After(b.stamp) {
        if b.stamp.IsZero() { b.stamp = t }
        return
    }
    ns := b.residue + t.Sub(b.stamp).Nanoseconds()*b.rate
    b.stamp = t
    b.level += ns / int64(time.Second)
    b.residue = ns % int64(time.Second)
    if b.level >= b.burst {
        b.level, b.residue = b.burst, 0
    }
}

// Allow spends n tokens if they are there; otherwise it spends nothing and
// says how long until they would be. A request above the burst never fits
// and reports a zero wait.
func (b *TokenBucket) Allow(n int64) (ok bool, wait time.Duration) {
    b.mu.Lock(); defer b.mu.Unlock()
    if b.rate <= 0 { return true, 0 }
    if n > b.burst { return false, 0 }
    b.refill()
    if b.level >= n {
        b.level -= n
        return true, 0
    }
    missing := (n-b.level)*int64(time.Second) - b.residue
    return false, time.Duration((missing + b.rate - 1) / b.rate)
}

// Available is the number of tokens that could be spent now.
func (b *TokenBucket) Available() int64 {
    b.mu.Lock(); defer b.mu.Unlock()
    b.refill()
    return b.level
}
