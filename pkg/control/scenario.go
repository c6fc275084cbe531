package control

import (
	"time"

	"github.com/relaygrid/fleetsim/pkg/scheduler"
)

// scenario steps through a fixed demonstration sequence: least_loaded,
// a manual burst, a kill/revive cycle on node 0, then a switch to
// work_stealing. Re-entry while already active is ignored.
var scenarioSteps = []struct {
	wait time.Duration
}{
	{wait: 2 * time.Second},
	{wait: 8 * time.Second},
	{wait: 6 * time.Second},
	{wait: 4 * time.Second},
}

// startScenario runs the scripted scenario in its own goroutine,
// guarded by the scenario-active flag so a second start_scenario while
// one is running is a no-op.
func (h *Hub) startScenario() {
	if !h.scenario.CompareAndSwap(false, true) {
		return
	}

	h.wg.Add(1)
	go func() {
		defer h.wg.Done()
		defer h.scenario.Store(false)
		h.runScenario()
	}()
}

func (h *Hub) runScenario() {
	h.scheduler.SetPolicy(scheduler.LeastLoaded)
	if !h.scenarioSleep(scenarioSteps[0].wait) {
		return
	}

	h.generator.TriggerBurst()
	if !h.scenarioSleep(scenarioSteps[1].wait) {
		return
	}

	h.scheduler.Kill(0)
	if !h.scenarioSleep(scenarioSteps[2].wait) {
		return
	}

	h.scheduler.Revive(0)
	if !h.scenarioSleep(scenarioSteps[3].wait) {
		return
	}

	h.scheduler.SetPolicy(scheduler.WorkStealing)
}

// scenarioSleep waits for d, returning false if the hub is shutting
// down so the scenario goroutine exits promptly.
func (h *Hub) scenarioSleep(d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return true
	case <-h.closing:
		return false
	}
}
