/*
Package node implements a single simulated worker: a FIFO/LIFO queue
serviced by one cooperative processing loop.

A Node owns its queue and busy bit exclusively from inside its
processing loop. Callers may still push tasks and steal from the queue
concurrently; both operations take the node's lock, so no task is ever
both stolen and serviced.
*/
package node

import (
	"context"
	"sync"
	"time"

	"github.com/relaygrid/fleetsim/pkg/log"
	"github.com/relaygrid/fleetsim/pkg/task"
	"github.com/rs/zerolog"
)

const (
	idlePollInterval     = 50 * time.Millisecond
	inactivePollInterval = 500 * time.Millisecond
)

// CompletionReporter receives a task once its node has finished servicing it.
type CompletionReporter interface {
	ReportCompletion(t *task.Task)
}

// Node is a simulated worker with a speed multiplier and a local queue.
type Node struct {
	id     int
	speed  float64
	logger zerolog.Logger

	mu        sync.Mutex
	queue     []*task.Task
	busy      bool
	active    bool
	completed uint64

	stopCh chan struct{}
	doneCh chan struct{}
}

// New creates a Node in the active state with an empty queue.
func New(id int, speed float64) *Node {
	return &Node{
		id:     id,
		speed:  speed,
		logger: log.WithNodeID(id),
		active: true,
		stopCh: make(chan struct{}),
		doneCh: make(chan struct{}),
	}
}

// ID returns the node's fleet index.
func (n *Node) ID() int { return n.id }

// Speed returns the node's speed multiplier.
func (n *Node) Speed() float64 { return n.speed }

// Push appends a task to the back of the queue. If the node is inactive
// the task is dropped silently — the caller (the Scheduler's placement
// loop) is responsible for never targeting an inactive node. Push never
// blocks.
func (n *Node) Push(t *task.Task) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if !n.active {
		n.logger.Warn().Uint64("task_id", t.ID).Msg("dropped push to inactive node")
		return
	}
	n.queue = append(n.queue, t)
}

// Steal removes up to amount tasks from the back of the queue, always
// leaving at least one task behind, and returns them in the order taken
// (youngest first). Returns nil if the node is inactive or has one or
// fewer tasks queued.
func (n *Node) Steal(amount int) []*task.Task {
	n.mu.Lock()
	defer n.mu.Unlock()

	if !n.active || amount <= 0 {
		return nil
	}

	removable := len(n.queue) - 1
	if removable <= 0 {
		return nil
	}
	if amount > removable {
		amount = removable
	}

	stolen := make([]*task.Task, amount)
	for i := 0; i < amount; i++ {
		last := len(n.queue) - 1
		stolen[i] = n.queue[last]
		n.queue = n.queue[:last]
	}
	return stolen
}

// QueueLen returns the current queue size.
func (n *Node) QueueLen() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.queue)
}

// Busy reports whether the node is currently servicing a task.
func (n *Node) Busy() bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.busy
}

// Active reports whether the node currently accepts pushes and service.
func (n *Node) Active() bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.active
}

// Completed returns the number of tasks this node has finished servicing.
func (n *Node) Completed() uint64 {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.completed
}

// SetActive toggles the active flag. Deactivating halts new service and
// new pushes but does not interrupt a task already being serviced.
func (n *Node) SetActive(active bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.active = active
}

// Drain removes and returns every task currently queued, leaving the
// queue empty. Used by a kill to re-home queued work onto the ingest
// queue without losing it.
func (n *Node) Drain() []*task.Task {
	n.mu.Lock()
	defer n.mu.Unlock()
	drained := n.queue
	n.queue = nil
	return drained
}

// Run starts the node's processing loop. It blocks until Stop is called
// or ctx is cancelled.
func (n *Node) Run(ctx context.Context, reporter CompletionReporter) {
	defer close(n.doneCh)

	for {
		if n.sleepUntil(ctx, 0) {
			return
		}

		n.mu.Lock()
		if !n.active {
			n.mu.Unlock()
			if n.sleepUntil(ctx, inactivePollInterval) {
				return
			}
			continue
		}

		if len(n.queue) == 0 {
			n.mu.Unlock()
			if n.sleepUntil(ctx, idlePollInterval) {
				return
			}
			continue
		}

		t := n.queue[0]
		n.queue = n.queue[1:]
		n.busy = true
		n.mu.Unlock()

		serviceTime := time.Duration(t.Demand / n.speed * float64(time.Second))
		if n.sleepUntil(ctx, serviceTime) {
			return
		}

		t.Complete()

		n.mu.Lock()
		n.completed++
		n.busy = false
		n.mu.Unlock()

		reporter.ReportCompletion(t)
	}
}

// Stop signals the processing loop to exit and waits for it to return.
func (n *Node) Stop() {
	close(n.stopCh)
	<-n.doneCh
}

// sleepUntil blocks for d (a no-op for d<=0), returning true if the node
// was asked to stop or the context was cancelled meanwhile.
func (n *Node) sleepUntil(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		select {
		case <-n.stopCh:
			return true
		case <-ctx.Done():
			return true
		default:
			return false
		}
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return false
	case <-n.stopCh:
		return true
	case <-ctx.Done():
		return true
	}
}
