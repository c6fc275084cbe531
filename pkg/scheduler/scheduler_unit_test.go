package scheduler

import (
	"testing"
	"time"

	"github.com/relaygrid/fleetsim/pkg/node"
	"github.com/relaygrid/fleetsim/pkg/task"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newFleet(n int) []*node.Node {
	nodes := make([]*node.Node, n)
	for i := range nodes {
		nodes[i] = node.New(i, 1.0)
	}
	return nodes
}

func TestParsePolicy(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    Policy
		wantErr bool
	}{
		{name: "round robin", in: "round_robin", want: RoundRobin},
		{name: "least loaded", in: "least_loaded", want: LeastLoaded},
		{name: "work stealing", in: "work_stealing", want: WorkStealing},
		{name: "unknown value", in: "bogus", wantErr: true},
		{name: "empty string", in: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParsePolicy(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.in, got.String())
		})
	}
}

func TestSelectTargetRoundRobinCycles(t *testing.T) {
	nodes := newFleet(3)
	s := New(nodes, RoundRobin)

	var picked []int
	for i := 0; i < 6; i++ {
		picked = append(picked, s.selectTarget(nodes).ID())
	}
	assert.Equal(t, []int{0, 1, 2, 0, 1, 2}, picked)
}

func TestSelectTargetLeastLoadedPicksSmallestQueue(t *testing.T) {
	nodes := newFleet(3)
	nodes[0].Push(task.New(1, 0.01))
	nodes[0].Push(task.New(2, 0.01))
	nodes[1].Push(task.New(3, 0.01))
	// nodes[2] is empty

	s := New(nodes, LeastLoaded)
	target := s.selectTarget(nodes)
	assert.Equal(t, 2, target.ID())
}

func TestLeastLoadedTiebreaksOnLowestID(t *testing.T) {
	nodes := newFleet(3)
	target := leastLoaded(nodes)
	assert.Equal(t, 0, target.ID())
}

func TestKillDrainsQueueOntoIngest(t *testing.T) {
	nodes := newFleet(2)
	nodes[0].Push(task.New(1, 0.01))
	nodes[0].Push(task.New(2, 0.01))

	s := New(nodes, RoundRobin)
	s.Kill(0)

	assert.False(t, nodes[0].Active())
	assert.Equal(t, 0, nodes[0].QueueLen())
	assert.Equal(t, 2, s.ingest.len())
}

func TestKillUnknownNodeIsNoop(t *testing.T) {
	nodes := newFleet(2)
	s := New(nodes, RoundRobin)
	s.Kill(99)
	s.Kill(-1)
	assert.True(t, nodes[0].Active())
	assert.True(t, nodes[1].Active())
}

func TestReviveReactivatesNode(t *testing.T) {
	nodes := newFleet(1)
	s := New(nodes, RoundRobin)
	s.Kill(0)
	require.False(t, nodes[0].Active())
	s.Revive(0)
	assert.True(t, nodes[0].Active())
}

func TestSetPolicyAndPolicyRoundTrip(t *testing.T) {
	s := New(newFleet(1), RoundRobin)
	s.SetPolicy(WorkStealing)
	assert.Equal(t, WorkStealing, s.Policy())
}

func TestActiveNodesExcludesKilled(t *testing.T) {
	nodes := newFleet(3)
	s := New(nodes, RoundRobin)
	s.Kill(1)
	active := s.activeNodes()
	require.Len(t, active, 2)
	assert.Equal(t, 0, active[0].ID())
	assert.Equal(t, 2, active[1].ID())
}

func TestStealOnceMovesWorkFromBusiestToIdle(t *testing.T) {
	nodes := newFleet(2)
	for i := 0; i < 8; i++ {
		nodes[0].Push(task.New(uint64(i), 0.01))
	}

	s := New(nodes, WorkStealing)
	s.stealOnce()

	assert.Greater(t, nodes[1].QueueLen(), 0)
	assert.Less(t, nodes[0].QueueLen(), 8)
	assert.GreaterOrEqual(t, nodes[0].QueueLen(), 1) // never drained to zero by a steal
}

func TestStealOnceNoopWhenPolicyNotWorkStealing(t *testing.T) {
	nodes := newFleet(2)
	for i := 0; i < 8; i++ {
		nodes[0].Push(task.New(uint64(i), 0.01))
	}

	s := New(nodes, LeastLoaded)
	s.stealOnce()

	assert.Equal(t, 8, nodes[0].QueueLen())
	assert.Equal(t, 0, nodes[1].QueueLen())
}

func TestReportCompletionUpdatesLatencyStats(t *testing.T) {
	s := New(newFleet(1), RoundRobin)

	for i := 0; i < 10; i++ {
		tk := task.New(uint64(i), 0.01)
		tk.CreatedAt = time.Now().Add(-time.Duration(i+1) * time.Millisecond)
		tk.Complete()
		s.ReportCompletion(tk)
	}

	avg, p95 := s.latencyStats()
	assert.Greater(t, avg, 0.0)
	assert.GreaterOrEqual(t, p95, avg)
}

func TestSnapshotReflectsFleetState(t *testing.T) {
	nodes := newFleet(2)
	nodes[0].Push(task.New(1, 0.01))
	s := New(nodes, LeastLoaded)
	s.Kill(1)

	snap := s.Snapshot()
	assert.Equal(t, "least_loaded", snap.Policy)
	assert.Equal(t, []int{1, 0}, snap.QueueLengths)
	assert.Equal(t, []bool{true, false}, snap.NodeStatus)
	assert.Equal(t, []bool{true, false}, snap.NodeStatuses())
	assert.Equal(t, []int{1, 0}, snap.NodeQueueLengths())
}

func TestSubmitIsNonBlockingAndReachesIngest(t *testing.T) {
	s := New(newFleet(1), RoundRobin)
	done := make(chan struct{})
	go func() {
		s.Submit(task.New(1, 0.01))
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Submit blocked")
	}
	assert.Equal(t, 1, s.ingest.len())
}
