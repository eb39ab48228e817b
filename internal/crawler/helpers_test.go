package crawler

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"github.com/JakeFAU/origin-crawler/internal/progress"
)

// testGraph is an instrumented in-memory Fetcher. It records how many
// fetches were in flight at once and how often each node was fetched.
type testGraph struct {
	edges  map[string][]string
	delay  func() time.Duration
	errFor map[string]error

	inFlight atomic.Int64
	peak     atomic.Int64
	total    atomic.Int64

	mu    sync.Mutex
	calls map[string]int
}

func newTestGraph(edges map[string][]string) *testGraph {
	return &testGraph{edges: edges, calls: make(map[string]int)}
}

func (g *testGraph) withDelay(d time.Duration) *testGraph {
	g.delay = func() time.Duration { return d }
	return g
}

// withJitter sleeps a random duration up to max on each fetch.
func (g *testGraph) withJitter(rng *rand.Rand, max time.Duration) *testGraph {
	var mu sync.Mutex
	g.delay = func() time.Duration {
		mu.Lock()
		defer mu.Unlock()
		return time.Duration(rng.Int63n(int64(max) + 1))
	}
	return g
}

func (g *testGraph) failing(node string, err error) *testGraph {
	if g.errFor == nil {
		g.errFor = make(map[string]error)
	}
	g.errFor[node] = err
	return g
}

func (g *testGraph) FetchNeighbors(ctx context.Context, node string) ([]string, error) {
	current := g.inFlight.Add(1)
	defer g.inFlight.Add(-1)
	for {
		peak := g.peak.Load()
		if current <= peak || g.peak.CompareAndSwap(peak, current) {
			break
		}
	}
	g.total.Add(1)
	g.mu.Lock()
	g.calls[node]++
	g.mu.Unlock()

	if g.delay != nil {
		timer := time.NewTimer(g.delay())
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
	}
	if err, ok := g.errFor[node]; ok {
		return nil, err
	}
	return g.edges[node], nil
}

func (g *testGraph) callCounts() map[string]int {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make(map[string]int, len(g.calls))
	for k, v := range g.calls {
		out[k] = v
	}
	return out
}

// wideGraph builds a same-origin graph where every node links to fanout
// others, including back edges, so admission races are frequent.
func wideGraph(n, fanout int) map[string][]string {
	node := func(i int) string { return fmt.Sprintf("http://example.test/p/%d", i) }
	edges := make(map[string][]string, n)
	for i := 0; i < n; i++ {
		out := make([]string, 0, fanout+1)
		for j := 1; j <= fanout; j++ {
			out = append(out, node((i*fanout+j)%n))
		}
		out = append(out, node(0), "http://elsewhere.test/x")
		edges[node(i)] = out
	}
	return edges
}

var errBoom = errors.New("boom")

// recordingEmitter keeps every emitted progress event.
type recordingEmitter struct {
	mu     sync.Mutex
	events []progress.Event
}

func (r *recordingEmitter) Emit(evt progress.Event) {
	r.mu.Lock()
	r.events = append(r.events, evt)
	r.mu.Unlock()
}

func (r *recordingEmitter) stages() map[progress.Stage]int {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[progress.Stage]int)
	for _, evt := range r.events {
		out[evt.Stage]++
	}
	return out
}
