package crawler

import (
	"context"
	"fmt"
	"sync/atomic"

	"golang.org/x/sync/semaphore"
)

// Limiter caps the number of Fetcher calls in flight. Waiters block on a
// weighted semaphore; nothing spins.
type Limiter struct {
	sem      *semaphore.Weighted
	capacity int
	inFlight atomic.Int64
	peak     atomic.Int64
}

// NewLimiter returns a Limiter with a fixed number of slots.
func NewLimiter(capacity int) (*Limiter, error) {
	if capacity < 1 {
		return nil, fmt.Errorf("limiter capacity must be >= 1, got %d", capacity)
	}
	return &Limiter{
		sem:      semaphore.NewWeighted(int64(capacity)),
		capacity: capacity,
	}, nil
}

// Acquire blocks until a slot is free or ctx ends.
func (l *Limiter) Acquire(ctx context.Context) error {
	if err := l.sem.Acquire(ctx, 1); err != nil {
		return fmt.Errorf("acquire fetch slot: %w", err)
	}
	current := l.inFlight.Add(1)
	for {
		peak := l.peak.Load()
		if current <= peak || l.peak.CompareAndSwap(peak, current) {
			break
		}
	}
	return nil
}

// Release frees one slot, waking at most one waiter.
func (l *Limiter) Release() {
	l.inFlight.Add(-1)
	l.sem.Release(1)
}

// InFlight returns the number of slots currently held.
func (l *Limiter) InFlight() int {
	return int(l.inFlight.Load())
}

// Peak returns the highest number of slots held at once.
func (l *Limiter) Peak() int {
	return int(l.peak.Load())
}

// Capacity returns the configured slot count.
func (l *Limiter) Capacity() int {
	return l.capacity
}
