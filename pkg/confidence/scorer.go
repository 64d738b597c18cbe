// Package confidence implements the bounded confidence-score update
// applied on every feedback event. The score is a simple clamped
// random walk: the exact magnitudes below are load-bearing for audit
// parity with historical scores, so no smoothing or averaging is
// layered on top.
package confidence

import "fmt"

// Impact classifies how strongly a feedback event moves the score.
type Impact string

const (
	ImpactLow    Impact = "low"
	ImpactMedium Impact = "medium"
	ImpactHigh   Impact = "high"
)

// magnitudes maps impact to step size.
var magnitudes = map[Impact]float64{
	ImpactLow:    0.02,
	ImpactMedium: 0.05,
	ImpactHigh:   0.10,
}

// ParseImpact validates an impact string from an external caller.
func ParseImpact(s string) (Impact, error) {
	i := Impact(s)
	if _, ok := magnitudes[i]; !ok {
		return "", fmt.Errorf("unknown feedback impact %q", s)
	}
	return i, nil
}

// Magnitude returns the step size for an impact level, or 0 for an
// unknown one.
func Magnitude(i Impact) float64 {
	return magnitudes[i]
}

// Update computes the new score from the old one. Positive feedback
// adds the impact magnitude, negative subtracts it; the result is
// clamped to [0, 1].
func Update(old float64, positive bool, impact Impact) float64 {
	delta := magnitudes[impact]
	if !positive {
		delta = -delta
	}
	return Clamp(old + delta)
}

// Clamp bounds a score to [0, 1].
func Clamp(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
