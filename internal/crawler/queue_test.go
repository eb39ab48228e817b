package crawler

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestWorkQueueFIFOAndClose(t *testing.T) {
	t.Parallel()
	q := newWorkQueue()
	for i := 0; i < 3; i++ {
		q.push(task{node: "n", depth: i})
	}
	for i := 0; i < 3; i++ {
		got, ok := q.pop()
		require.True(t, ok)
		require.Equal(t, i, got.depth)
	}

	done := make(chan bool)
	go func() {
		_, ok := q.pop()
		done <- ok
	}()
	time.Sleep(5 * time.Millisecond)
	q.close()
	select {
	case ok := <-done:
		require.False(t, ok)
	case <-time.After(time.Second):
		t.Fatal("pop did not return after close")
	}
	q.push(task{node: "late"})
	_, ok := q.pop()
	require.False(t, ok)
}
