// Package workload implements the fleet's task producer: a single
// cooperative goroutine that manufactures tasks at a configurable rate
// and submits them to a scheduler.
package workload

import (
	"context"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"github.com/relaygrid/fleetsim/pkg/log"
	"github.com/relaygrid/fleetsim/pkg/task"
	"github.com/rs/zerolog"
)

const (
	microBurstProbability = 0.05
	microBurstSize        = 5
	manualBurstSize       = 15
	manualBurstCooldown   = 1 * time.Second

	defaultRateLow  = 0.3
	defaultRateHigh = 0.8
	demandLow       = 0.3
	demandHigh      = 0.9
)

// Submitter is the subset of scheduler.Scheduler the generator needs.
type Submitter interface {
	Submit(t *task.Task)
}

// Generator is the workload producer described by §4.D: a monotonic
// task id counter, a configurable inter-arrival rate range, and a
// one-shot manual burst flag.
type Generator struct {
	submitter Submitter
	logger    zerolog.Logger
	rng       *rand.Rand

	nextID atomic.Uint64

	mu        sync.Mutex
	rateLow   float64
	rateHigh  float64
	burstFlag bool
	stopCh    chan struct{}
	doneCh    chan struct{}
}

// New creates a Generator over submitter with the default rate range.
// seed controls the deterministic RNG; pass time.Now().UnixNano() for
// a non-deterministic run.
func New(submitter Submitter, seed int64) *Generator {
	return &Generator{
		submitter: submitter,
		logger:    log.WithComponent("generator"),
		rng:       rand.New(rand.NewSource(seed)),
		rateLow:   defaultRateLow,
		rateHigh:  defaultRateHigh,
		stopCh:    make(chan struct{}),
		doneCh:    make(chan struct{}),
	}
}

// TriggerBurst arms the one-shot manual burst: the next loop iteration
// submits manualBurstSize tasks back-to-back instead of the normal
// per-iteration submission.
func (g *Generator) TriggerBurst() {
	g.mu.Lock()
	g.burstFlag = true
	g.mu.Unlock()
	g.logger.Info().Msg("manual burst triggered")
}

// SetRate updates the inter-arrival range. The caller is responsible
// for ensuring 0 < low <= high.
func (g *Generator) SetRate(low, high float64) {
	g.mu.Lock()
	g.rateLow = low
	g.rateHigh = high
	g.mu.Unlock()
	g.logger.Info().Float64("rate_low", low).Float64("rate_high", high).Msg("rate changed")
}

// Rate returns the current inter-arrival range.
func (g *Generator) Rate() (low, high float64) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.rateLow, g.rateHigh
}

// Run executes the generator loop until ctx is canceled or Stop is
// called. It is meant to be run in its own goroutine.
func (g *Generator) Run(ctx context.Context) {
	defer close(g.doneCh)

	for {
		if g.consumeBurstFlag() {
			for i := 0; i < manualBurstSize; i++ {
				g.submitter.Submit(g.newTask())
			}
			if !g.sleep(ctx, manualBurstCooldown) {
				return
			}
			continue
		}

		if g.rng.Float64() < microBurstProbability {
			for i := 0; i < microBurstSize; i++ {
				g.submitter.Submit(g.newTask())
			}
		} else {
			g.submitter.Submit(g.newTask())
		}

		low, high := g.Rate()
		wait := uniform(g.rng, low, high)
		if !g.sleep(ctx, time.Duration(wait*float64(time.Second))) {
			return
		}
	}
}

// Stop halts the generator loop and waits for it to exit.
func (g *Generator) Stop() {
	close(g.stopCh)
	<-g.doneCh
}

func (g *Generator) consumeBurstFlag() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if !g.burstFlag {
		return false
	}
	g.burstFlag = false
	return true
}

func (g *Generator) newTask() *task.Task {
	id := g.nextID.Add(1)
	demand := uniform(g.rng, demandLow, demandHigh)
	return task.New(id, demand)
}

// sleep waits for d, returning false if ctx is canceled or Stop fires
// first.
func (g *Generator) sleep(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return true
	case <-ctx.Done():
		return false
	case <-g.stopCh:
		return false
	}
}

func uniform(rng *rand.Rand, low, high float64) float64 {
	if high <= low {
		return low
	}
	return low + rng.Float64()*(high-low)
}
