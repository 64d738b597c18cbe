//go:build property
// +build property

// Property-based tests for the confidence score update rule.
package confidence_test

import (
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/praxos-io/warden/pkg/confidence"
)

var impacts = []confidence.Impact{
	confidence.ImpactLow,
	confidence.ImpactMedium,
	confidence.ImpactHigh,
}

// TestUpdateClampInvariant verifies the score stays in [0, 1] for any
// feedback sequence starting from any in-range score.
func TestUpdateClampInvariant(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("score stays within [0, 1]", prop.ForAll(
		func(start float64, steps []int) bool {
			score := confidence.Clamp(start)
			for _, s := range steps {
				positive := s%2 == 0
				impact := impacts[abs(s)%len(impacts)]
				score = confidence.Update(score, positive, impact)
				if score < 0.0 || score > 1.0 {
					return false
				}
			}
			return true
		},
		gen.Float64Range(0.0, 1.0),
		gen.SliceOf(gen.Int()),
	))

	properties.TestingRun(t)
}

// TestUpdateDeterminism verifies the update rule is a pure function.
func TestUpdateDeterminism(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	properties.Property("Update(x) == Update(x)", prop.ForAll(
		func(old float64, positive bool, pick int) bool {
			impact := impacts[abs(pick)%len(impacts)]
			return confidence.Update(old, positive, impact) ==
				confidence.Update(old, positive, impact)
		},
		gen.Float64Range(0.0, 1.0),
		gen.Bool(),
		gen.Int(),
	))

	properties.TestingRun(t)
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
