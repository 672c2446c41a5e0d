package moderation

import "time"

// EscalationPolicy maps a prior violation count to a restriction duration.
// Counts past the last stage all get the maximum duration.
type EscalationPolicy struct {
	stages []time.Duration
}

func NewEscalationPolicy(stages []time.Duration) EscalationPolicy {
	return EscalationPolicy{stages: stages}
}

func (p EscalationPolicy) DurationFor(priorViolations int) time.Duration {
	if len(p.stages) == 0 {
		return 0
	}
	if priorViolations < 0 {
		priorViolations = 0
	}
	if priorViolations >= len(p.stages) {
		return p.stages[len(p.stages)-1]
	}
	return p.stages[priorViolations]
}
