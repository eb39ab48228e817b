package crawler

import "sync"

// task is one unit of work: a node and the depth it was discovered at.
type task struct {
	node  string
	depth int
}

// workQueue is the unbounded FIFO behind the pool strategy. Workers are
// also producers, so pushes never block; a bounded queue could deadlock
// once every worker waits to push.
type workQueue struct {
	mu     sync.Mutex
	cond   *sync.Cond
	items  []task
	closed bool
}

func newWorkQueue() *workQueue {
	q := &workQueue{}
	q.cond = sync.NewCond(&q.mu)
	return q
}

func (q *workQueue) push(t task) {
	q.mu.Lock()
	if !q.closed {
		q.items = append(q.items, t)
	}
	q.mu.Unlock()
	q.cond.Signal()
}

// pop blocks until a task is available. It returns false once the queue
// is closed and drained.
func (q *workQueue) pop() (task, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for len(q.items) == 0 && !q.closed {
		q.cond.Wait()
	}
	if len(q.items) == 0 {
		return task{}, false
	}
	t := q.items[0]
	q.items[0] = task{}
	q.items = q.items[1:]
	return t, true
}

func (q *workQueue) close() {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()
	q.cond.Broadcast()
}
