// Package queue bounds the number of concurrent calls to an upstream provider.
// Callers beyond the limit wait in strict FIFO order.
package queue

import (
	"container/list"
	"context"
	"sync"
)

// DefaultMaxConcurrent is the provider concurrency ceiling used when no
// limit is configured.
const DefaultMaxConcurrent = 5

// Stats is a point-in-time snapshot of a Limiter.
type Stats struct {
	ActiveRequests int `json:"active_requests"`
	QueuedRequests int `json:"queued_requests"`
	MaxConcurrent  int `json:"max_concurrent"`
}

// Limiter is a FIFO gate. A released slot is handed directly to the oldest
// waiter, so late arrivals can never overtake queued callers.
type Limiter struct {
	mu      sync.Mutex
	limit   int
	active  int
	waiters list.List // of chan struct{}
}

// New creates a Limiter admitting at most limit concurrent calls.
func New(limit int) *Limiter {
	if limit <= 0 {
		limit = DefaultMaxConcurrent
	}
	return &Limiter{limit: limit}
}

// Do runs fn once a slot is free and returns its result. The slot is released
// on every exit path of fn, including panics.
func Do[T any](ctx context.Context, l *Limiter, fn func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	if err := l.acquire(ctx); err != nil {
		return zero, err
	}
	defer l.release()
	return fn(ctx)
}

// Stats returns the current active and queued counts.
func (l *Limiter) Stats() Stats {
	l.mu.Lock()
	defer l.mu.Unlock()
	return Stats{
		ActiveRequests: l.active,
		QueuedRequests: l.waiters.Len(),
		MaxConcurrent:  l.limit,
	}
}

func (l *Limiter) acquire(ctx context.Context) error {
	l.mu.Lock()
	if l.active < l.limit && l.waiters.Len() == 0 {
		l.active++
		l.mu.Unlock()
		return nil
	}
	if err := ctx.Err(); err != nil {
		l.mu.Unlock()
		return err
	}

	ready := make(chan struct{})
	elem := l.waiters.PushBack(ready)
	l.mu.Unlock()

	select {
	case <-ready:
		return nil
	case <-ctx.Done():
		l.mu.Lock()
		select {
		case <-ready:
			// The slot was handed over while we were cancelled; pass it on.
			l.mu.Unlock()
			l.release()
		default:
			l.waiters.Remove(elem)
			l.mu.Unlock()
		}
		return ctx.Err()
	}
}

func (l *Limiter) release() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if front := l.waiters.Front(); front != nil {
		l.waiters.Remove(front)
		close(front.Value.(chan struct{}))
		return
	}
	l.active--
}
