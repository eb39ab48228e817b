package crawler

import "sync/atomic"

// LimitMode selects how MaxURLs is enforced.
type LimitMode string

// Supported limit modes.
const (
	// LimitStrict reserves a slot with compare-and-swap before admission,
	// so the result never holds more than MaxURLs nodes.
	LimitStrict LimitMode = "strict"
	// LimitSoft checks the count and then admits. Concurrent admitters can
	// overshoot MaxURLs by the number of units admitting at that moment.
	LimitSoft LimitMode = "soft"
)

// Valid reports whether m names a supported mode.
func (m LimitMode) Valid() bool {
	return m == LimitStrict || m == LimitSoft
}

// nodeBudget tracks admitted nodes against an optional cap.
type nodeBudget struct {
	max     int64
	limited bool
	mode    LimitMode
	used    atomic.Int64
}

func newNodeBudget(maxURLs *int, mode LimitMode) *nodeBudget {
	b := &nodeBudget{mode: mode}
	if maxURLs != nil {
		b.limited = true
		b.max = int64(*maxURLs)
	}
	return b
}

func (b *nodeBudget) reached() bool {
	return b.limited && b.used.Load() >= b.max
}

// reserve claims room for one node. A reservation must be refunded if the
// node is not admitted.
func (b *nodeBudget) reserve() bool {
	if !b.limited {
		b.used.Add(1)
		return true
	}
	if b.mode == LimitSoft {
		if b.used.Load() >= b.max {
			return false
		}
		b.used.Add(1)
		return true
	}
	for {
		cur := b.used.Load()
		if cur >= b.max {
			return false
		}
		if b.used.CompareAndSwap(cur, cur+1) {
			return true
		}
	}
}

func (b *nodeBudget) refund() {
	b.used.Add(-1)
}

// force counts a node admitted outside the budget (the seed).
func (b *nodeBudget) force() {
	b.used.Add(1)
}
