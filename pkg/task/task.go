// Package task defines the unit of simulated work that flows through the
// fleet: generated by the workload generator, placed by the scheduler,
// and serviced by a node.
package task

import "time"

// Task is a passive record. It carries no behavior of its own; the
// Scheduler and Node own its lifecycle.
type Task struct {
	ID          uint64
	Demand      float64 // simulated service seconds at unit speed
	CreatedAt   time.Time
	CompletedAt time.Time
}

// New creates a Task with the given id and demand, stamped with the
// current time.
func New(id uint64, demand float64) *Task {
	return &Task{
		ID:        id,
		Demand:    demand,
		CreatedAt: time.Now(),
	}
}

// Complete stamps the task as finished now.
func (t *Task) Complete() {
	t.CompletedAt = time.Now()
}

// Latency returns the wall-clock time between creation and completion.
// Zero if the task has not completed yet.
func (t *Task) Latency() time.Duration {
	if t.CompletedAt.IsZero() {
		return 0
	}
	return t.CompletedAt.Sub(t.CreatedAt)
}
