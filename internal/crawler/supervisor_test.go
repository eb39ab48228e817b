package crawler

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestSupervisorCompletesWhenAllWorkEnds(t *testing.T) {
	t.Parallel()
	s := NewSupervisor()
	s.Begin()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		s.Begin()
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer s.End()
			time.Sleep(time.Millisecond)
		}()
	}
	select {
	case <-s.Done():
		t.Fatal("completed while the root unit is outstanding")
	default:
	}
	s.End()
	wg.Wait()

	require.NoError(t, s.WaitForCompletion(context.Background()))
	require.Zero(t, s.Outstanding())
	// The signal stays observable.
	require.NoError(t, s.WaitForCompletion(context.Background()))
}

func TestSupervisorMisusePanics(t *testing.T) {
	t.Parallel()
	s := NewSupervisor()
	require.Panics(t, s.End)

	s = NewSupervisor()
	s.Begin()
	s.End()
	require.Panics(t, s.Begin)
}

func TestSupervisorWaitHonorsContext(t *testing.T) {
	t.Parallel()
	s := NewSupervisor()
	s.Begin()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.ErrorIs(t, s.WaitForCompletion(ctx), context.Canceled)
	s.End()
	<-s.Done()
}
