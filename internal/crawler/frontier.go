package crawler

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"
)

// MemoryFrontier is the in-process Frontier. Admission is a single
// sync.Map.LoadOrStore, so exactly one concurrent caller wins per node.
type MemoryFrontier struct {
	nodes sync.Map
	size  atomic.Int64
}

// NewMemoryFrontier returns an empty frontier.
func NewMemoryFrontier() *MemoryFrontier {
	return &MemoryFrontier{}
}

// NewMemoryFrontierFactory returns a FrontierFactory that builds a fresh
// MemoryFrontier per crawl.
func NewMemoryFrontierFactory() FrontierFactory {
	return func(context.Context, string) (Frontier, error) {
		return NewMemoryFrontier(), nil
	}
}

// TryAdmit stores node if it has not been admitted before and reports
// whether this call was the one that stored it.
func (f *MemoryFrontier) TryAdmit(_ context.Context, node string) (bool, error) {
	if _, loaded := f.nodes.LoadOrStore(node, struct{}{}); loaded {
		return false, nil
	}
	f.size.Add(1)
	return true, nil
}

// Snapshot returns the admitted nodes in lexical order.
func (f *MemoryFrontier) Snapshot(context.Context) ([]string, error) {
	out := make([]string, 0, f.size.Load())
	f.nodes.Range(func(key, _ any) bool {
		out = append(out, key.(string))
		return true
	})
	sort.Strings(out)
	return out, nil
}

// Len returns the number of admitted nodes.
func (f *MemoryFrontier) Len() int {
	return int(f.size.Load())
}
