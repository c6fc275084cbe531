package control

import "github.com/relaygrid/fleetsim/pkg/scheduler"

// handleCommand dispatches a single parsed command frame. Unknown
// verbs, and verbs with invalid payloads, are ignored silently — this
// is a visualization tool, not an authority (§7).
func (h *Hub) handleCommand(cmd CommandFrame) {
	switch cmd.Cmd {
	case "hello":
		// handshake no-op

	case "burst":
		h.generator.TriggerBurst()

	case "policy":
		policy, err := scheduler.ParsePolicy(cmd.Val)
		if err != nil {
			h.logger.Debug().Str("val", cmd.Val).Msg("ignoring unknown policy value")
			return
		}
		h.scheduler.SetPolicy(policy)

	case "kill":
		h.scheduler.Kill(cmd.ID)

	case "revive":
		h.scheduler.Revive(cmd.ID)

	case "set_rate":
		if cmd.Low <= 0 || cmd.Low > cmd.High {
			h.logger.Debug().Float64("low", cmd.Low).Float64("high", cmd.High).Msg("ignoring invalid rate")
			return
		}
		h.generator.SetRate(cmd.Low, cmd.High)

	case "toggle_record":
		h.recorder.Toggle()

	case "start_scenario":
		h.startScenario()

	case "download":
		// acknowledged; handled client-side

	default:
		h.logger.Debug().Str("cmd", cmd.Cmd).Msg("ignoring unknown command")
	}
}
