package crawler

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
)

// Supervisor counts outstanding units of work and closes its done channel
// exactly once, when the count returns to zero after having been positive.
//
// Every Begin must be matched by exactly one End. A missing End hangs the
// crawl; an extra End would end it early, so it panics instead.
type Supervisor struct {
	outstanding atomic.Int64
	finished    atomic.Bool
	done        chan struct{}
	once        sync.Once
}

// NewSupervisor returns a Supervisor with no outstanding work.
func NewSupervisor() *Supervisor {
	return &Supervisor{done: make(chan struct{})}
}

// Begin registers one unit of work. Call it before the work is scheduled.
func (s *Supervisor) Begin() {
	if s.finished.Load() {
		panic("crawler: Supervisor.Begin called after completion")
	}
	s.outstanding.Add(1)
}

// End retires one unit of work and signals completion when none remain.
func (s *Supervisor) End() {
	n := s.outstanding.Add(-1)
	switch {
	case n < 0:
		panic("crawler: Supervisor.End called more times than Begin")
	case n == 0:
		s.once.Do(func() {
			s.finished.Store(true)
			close(s.done)
		})
	}
}

// Outstanding returns the current number of unfinished units of work.
func (s *Supervisor) Outstanding() int64 {
	return s.outstanding.Load()
}

// Done is closed once all work has ended.
func (s *Supervisor) Done() <-chan struct{} {
	return s.done
}

// WaitForCompletion blocks until all work has ended or ctx ends.
func (s *Supervisor) WaitForCompletion(ctx context.Context) error {
	select {
	case <-s.done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("wait for crawl completion: %w", ctx.Err())
	}
}
