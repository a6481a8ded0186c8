package logging

import "math"

// ProgressThrottle lets a progress log through each time the percentage
// crosses into a new step-sized bucket. Values above 100 count as 100.
type ProgressThrottle struct {
	step float64
	next float64
}

// NewProgressThrottle returns a throttle with the given step in percent.
// Non-positive steps default to 10.
func NewProgressThrottle(step float64) *ProgressThrottle {
	if step <= 0 {
		step = 10
	}
	return &ProgressThrottle{step: step}
}

// Crossed reports whether percent reached the next bucket. A nil throttle
// always reports true.
func (p *ProgressThrottle) Crossed(percent float64) bool {
	if p == nil {
		return true
	}
	if math.IsNaN(percent) {
		return false
	}
	percent = math.Min(percent, 100)
	if percent < p.next {
		return false
	}
	p.next = (math.Floor(percent/p.step) + 1) * p.step
	return true
}
