package scheduler

import (
	"sync"

	"github.com/relaygrid/fleetsim/pkg/task"
)

// ingestQueue is the Scheduler's unbounded submission queue. Submit is
// never blocking (§4.C); the placement loop's pop blocks cooperatively
// on an empty queue instead of polling.
type ingestQueue struct {
	mu      sync.Mutex
	cond    *sync.Cond
	items   []*task.Task
	stopped bool
}

func newIngestQueue() *ingestQueue {
	q := &ingestQueue{}
	q.cond = sync.NewCond(&q.mu)
	return q
}

func (q *ingestQueue) push(t *task.Task) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.stopped {
		return
	}
	q.items = append(q.items, t)
	q.cond.Signal()
}

// pop blocks until a task is available or the queue is stopped, in
// which case ok is false.
func (q *ingestQueue) pop() (t *task.Task, ok bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for len(q.items) == 0 && !q.stopped {
		q.cond.Wait()
	}
	if len(q.items) == 0 {
		return nil, false
	}
	t = q.items[0]
	q.items = q.items[1:]
	return t, true
}

func (q *ingestQueue) len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

func (q *ingestQueue) stop() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.stopped = true
	q.cond.Broadcast()
}
