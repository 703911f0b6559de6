// Package queue holds the small queueing primitives used by the transports:
// an insertion-ordered FIFO and a token bucket for airtime shaping.
package queue

// FIFO is an insertion-ordered queue. The zero value is ready to use.
// It is not safe for concurrent use; callers run on a single event loop.
type FIFO[T any] struct {
    items []T
    head  int
}

// Push appends v at the tail.
func (q *FIFO[T]) Push(v T) { q.items = append(q.items, v) }

// Len returns the number of queued items.
func (q *FIFO[T]) Len() int { return len(q.items) - q.head }

// Peek returns the head without removing it.
func (q *FIFO[T]) Peek() (T, bool) {
    var zero T
    if q.Len() == 0 {
        return zero, false
    }
    return q.items[q.head], true
}

// Pop removes and returns the head.
func (q *FIFO[T]) Pop() (T, bool) {
    var zero T
    if q.Len() == 0 {
        return zero, false
    }
    v := q.items[q.head]
    q.items[q.head] = zero
    q.head++
    // compact once the dead prefix dominates
    if q.head > 32 && q.head*2 >= len(q.items) {
        n := copy(q.items, q.items[q.head:])
        clear(q.items[n:])
        q.items = q.items[:n]
        q.head = 0
    }
    return v, true
}

// Each visits queued items head to tail until fn returns false.
func (q *FIFO[T]) Each(fn func(T) bool) {
    for _, v := range q.items[q.head:] {
        if !fn(v) {
            return
        }
    }
}

// Clear drops every queued item.
func (q *FIFO[T]) Clear() {
    clear(q.items)
    q.items = q.items[:0]
    q.head = 0
}
