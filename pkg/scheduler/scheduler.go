package scheduler

import (
	"context"
	"math"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/relaygrid/fleetsim/pkg/log"
	"github.com/relaygrid/fleetsim/pkg/metrics"
	"github.com/relaygrid/fleetsim/pkg/node"
	"github.com/relaygrid/fleetsim/pkg/task"
	"github.com/rs/zerolog"
)

const (
	stealInterval     = 250 * time.Millisecond
	noNodeRetryWait   = 1 * time.Second
	latencyWindowCap  = 5000
	latencyWindowKeep = 2000
	statsSampleWindow = 50
)

// Scheduler owns the node fleet, the ingest queue, the active placement
// policy, the work-stealing loop, and completion bookkeeping.
type Scheduler struct {
	nodes  []*node.Node
	ingest *ingestQueue
	logger zerolog.Logger

	mu         sync.RWMutex
	policy     Policy
	rrIndex    int
	latencies  []time.Duration
	migrations atomic.Uint64

	wg      sync.WaitGroup
	closing chan struct{}
}

// New creates a Scheduler over the given fleet with the given initial
// policy. The fleet is fixed for the Scheduler's lifetime.
func New(nodes []*node.Node, initial Policy) *Scheduler {
	return &Scheduler{
		nodes:   nodes,
		ingest:  newIngestQueue(),
		logger:  log.WithComponent("scheduler"),
		policy:  initial,
		closing: make(chan struct{}),
	}
}

// Start launches every node's processing loop, the placement dispatcher,
// and the work-stealing ticker.
func (s *Scheduler) Start() {
	for _, n := range s.nodes {
		s.wg.Add(1)
		go func(n *node.Node) {
			defer s.wg.Done()
			n.Run(context.Background(), s)
		}(n)
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.runPlacement()
	}()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.runStealing()
	}()
}

// Stop halts every node loop, the placement dispatcher, and the
// stealing ticker, and waits for them to exit.
func (s *Scheduler) Stop() {
	close(s.closing)
	s.ingest.stop()
	for _, n := range s.nodes {
		n.Stop()
	}
	s.wg.Wait()
}

// FleetSize returns the number of nodes in the fleet.
func (s *Scheduler) FleetSize() int { return len(s.nodes) }

// Submit enqueues a task into the ingest queue. Non-blocking.
func (s *Scheduler) Submit(t *task.Task) {
	s.ingest.push(t)
	metrics.TasksSubmitted.Inc()
}

// SetPolicy atomically replaces the active policy. It takes effect on
// the next placement decision.
func (s *Scheduler) SetPolicy(p Policy) {
	s.mu.Lock()
	s.policy = p
	s.mu.Unlock()
	s.logger.Info().Str("policy", p.String()).Msg("policy changed")
}

// Policy returns the currently active policy.
func (s *Scheduler) Policy() Policy {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.policy
}

// Kill marks a node inactive and drains its local queue back onto the
// ingest queue, preserving no particular order. Queued work at a failed
// node is never lost. A nonexistent id is a no-op.
func (s *Scheduler) Kill(id int) {
	n := s.nodeByID(id)
	if n == nil {
		return
	}
	n.SetActive(false)
	drained := n.Drain()
	for _, t := range drained {
		s.ingest.push(t)
	}
	s.logger.Warn().Int("node_id", id).Int("requeued", len(drained)).Msg("node killed")
}

// Revive marks a node active again. A nonexistent id is a no-op.
func (s *Scheduler) Revive(id int) {
	n := s.nodeByID(id)
	if n == nil {
		return
	}
	n.SetActive(true)
	s.logger.Info().Int("node_id", id).Msg("node revived")
}

// ReportCompletion is called by a Node when a task finishes. It appends
// the task's latency to the rolling window, truncating to the most
// recent latencyWindowKeep samples once the window exceeds
// latencyWindowCap.
func (s *Scheduler) ReportCompletion(t *task.Task) {
	lat := t.Latency()

	s.mu.Lock()
	s.latencies = append(s.latencies, lat)
	if len(s.latencies) > latencyWindowCap {
		kept := make([]time.Duration, latencyWindowKeep)
		copy(kept, s.latencies[len(s.latencies)-latencyWindowKeep:])
		s.latencies = kept
	}
	s.mu.Unlock()

	metrics.TaskLatency.Observe(lat.Seconds())
	metrics.TasksCompletedTotal.Inc()
}

func (s *Scheduler) nodeByID(id int) *node.Node {
	if id < 0 || id >= len(s.nodes) {
		return nil
	}
	return s.nodes[id]
}

func (s *Scheduler) activeNodes() []*node.Node {
	active := make([]*node.Node, 0, len(s.nodes))
	for _, n := range s.nodes {
		if n.Active() {
			active = append(active, n)
		}
	}
	return active
}

// runPlacement is the single cooperative dispatcher: await one task,
// pick a target under the current policy, push it.
func (s *Scheduler) runPlacement() {
	for {
		t, ok := s.ingest.pop()
		if !ok {
			return
		}
		s.place(t)
	}
}

func (s *Scheduler) place(t *task.Task) {
	active := s.activeNodes()
	if len(active) == 0 {
		select {
		case <-time.After(noNodeRetryWait):
		case <-s.closing:
		}
		s.ingest.push(t)
		return
	}

	target := s.selectTarget(active)
	target.Push(t)
	metrics.PlacementLatency.Observe(time.Since(t.CreatedAt).Seconds())
}

// selectTarget applies the active policy. work_stealing shares
// least_loaded's selection rule at placement time (spec.md §9 Open
// Question 1); it differs only in that the stealing loop also runs.
func (s *Scheduler) selectTarget(active []*node.Node) *node.Node {
	switch s.Policy() {
	case RoundRobin:
		s.mu.Lock()
		idx := s.rrIndex % len(active)
		s.rrIndex++
		s.mu.Unlock()
		return active[idx]
	default:
		return leastLoaded(active)
	}
}

// leastLoaded scans active nodes in fleet order (ascending id) and
// keeps the first strictly-smaller queue length seen, which gives a
// deterministic smallest-id tiebreak for free.
func leastLoaded(active []*node.Node) *node.Node {
	best := active[0]
	bestLen := best.QueueLen()
	for _, n := range active[1:] {
		if l := n.QueueLen(); l < bestLen {
			best, bestLen = n, l
		}
	}
	return best
}

// runStealing periodically rebalances queues across active nodes while
// the active policy is work_stealing.
func (s *Scheduler) runStealing() {
	ticker := time.NewTicker(stealInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.stealOnce()
		case <-s.closing:
			return
		}
	}
}

func (s *Scheduler) stealOnce() {
	if s.Policy() != WorkStealing {
		return
	}

	active := s.activeNodes()
	if len(active) == 0 {
		return
	}

	var idle []*node.Node
	var busiest *node.Node
	maxLen := -1
	for _, n := range active {
		l := n.QueueLen()
		if l == 0 {
			idle = append(idle, n)
		}
		if l > maxLen {
			maxLen = l
			busiest = n
		}
	}

	if len(idle) == 0 || busiest == nil || maxLen <= 1 {
		return
	}

	amount := maxLen / 4
	if amount < 1 {
		amount = 1
	}

	stolen := busiest.Steal(amount)
	if len(stolen) == 0 {
		return
	}

	for i, t := range stolen {
		idle[i%len(idle)].Push(t)
	}

	s.migrations.Add(uint64(len(stolen)))
	metrics.MigrationsTotal.Add(float64(len(stolen)))
	s.logger.Debug().
		Int("from_node", busiest.ID()).
		Int("count", len(stolen)).
		Msg("work stolen")
}

// Snapshot is an immutable telemetry view of the fleet at the instant
// it was produced.
type Snapshot struct {
	Timestamp    time.Time
	Policy       string
	QueueLengths []int
	NodeStatus   []bool
	Completed    []uint64
	Migrations   uint64
	AvgLatency   float64
	P95Latency   float64
	Utilization  float64
}

// Snapshot computes an immutable view of the current fleet state.
func (s *Scheduler) Snapshot() Snapshot {
	n := len(s.nodes)
	snap := Snapshot{
		Timestamp:    time.Now(),
		Policy:       s.Policy().String(),
		QueueLengths: make([]int, n),
		NodeStatus:   make([]bool, n),
		Completed:    make([]uint64, n),
		Migrations:   s.migrations.Load(),
	}

	activeCount, busyCount := 0, 0
	for i, nd := range s.nodes {
		snap.QueueLengths[i] = nd.QueueLen()
		snap.NodeStatus[i] = nd.Active()
		snap.Completed[i] = nd.Completed()
		if nd.Active() {
			activeCount++
			if nd.Busy() {
				busyCount++
			}
		}
	}

	if activeCount > 0 {
		snap.Utilization = round1(float64(busyCount) / float64(activeCount) * 100)
	}

	avg, p95 := s.latencyStats()
	snap.AvgLatency = round3(avg)
	snap.P95Latency = round3(p95)

	return snap
}

// latencyStats computes mean and p95 over the last statsSampleWindow
// recorded latencies.
func (s *Scheduler) latencyStats() (mean, p95 float64) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n := len(s.latencies)
	if n == 0 {
		return 0, 0
	}

	start := 0
	if n > statsSampleWindow {
		start = n - statsSampleWindow
	}
	sample := make([]time.Duration, n-start)
	copy(sample, s.latencies[start:])

	var sum time.Duration
	for _, d := range sample {
		sum += d
	}
	mean = sum.Seconds() / float64(len(sample))

	sort.Slice(sample, func(i, j int) bool { return sample[i] < sample[j] })
	idx := int(math.Floor(0.95 * float64(len(sample))))
	if idx >= len(sample) {
		idx = len(sample) - 1
	}
	p95 = sample[idx].Seconds()
	return mean, p95
}

func round1(v float64) float64 { return math.Round(v*10) / 10 }
func round3(v float64) float64 { return math.Round(v*1000) / 1000 }

// NodeStatuses returns the per-node active flags, satisfying
// metrics.FleetSnapshot.
func (snap Snapshot) NodeStatuses() []bool { return snap.NodeStatus }

// NodeQueueLengths returns the per-node queue lengths, satisfying
// metrics.FleetSnapshot.
func (snap Snapshot) NodeQueueLengths() []int { return snap.QueueLengths }
