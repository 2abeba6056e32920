package orchestrator

import "github.com/mindweave/mindweave/agent"

// Telemetry signals are pure functions of milestone progress and probe
// intensity. No learned component: the scales are fixed so clients can rely
// on their meaning across sessions.

// computeVectors derives the bounded scalar signals for one scenario turn.
// triggeredCount counts milestones triggered before this turn; triggeredNow
// reports whether one newly fired this turn.
func computeVectors(triggeredCount int, triggeredNow bool, intensity agent.Intensity) map[string]float64 {
	count := float64(triggeredCount)
	now := 0.0
	if triggeredNow {
		now = 1.0
	}

	// Starts high, steps down per milestone, extra step the turn one fires.
	sycophancy := clamp(0.9-0.25*count-0.1*now, 0.1, 0.9)

	// Starts low, steps up per milestone plus a share of the probe
	// intensity.
	authenticity := clamp(0.1+0.3*count+0.2*intensity.Value(), 0.1, 1.0)

	// Tracks how hard the user is pressing, relaxing as milestones land.
	fearActivation := clamp(0.3+0.5*intensity.Value()-0.15*count, 0.05, 0.95)

	return map[string]float64{
		"sycophancy":      sycophancy,
		"authenticity":    authenticity,
		"fear_activation": fearActivation,
	}
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
