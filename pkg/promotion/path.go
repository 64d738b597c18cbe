package promotion

import (
	"context"
	"fmt"

	"github.com/praxos-io/warden/pkg/maturity"
)

// HopStatus classifies a promotion-path hop relative to the agent's
// current position.
type HopStatus string

const (
	// HopComplete marks tiers the agent has already passed through.
	HopComplete HopStatus = "COMPLETE"
	// HopEvaluated marks the next hops, annotated with a live assessment.
	HopEvaluated HopStatus = "EVALUATED"
	// HopFuture marks hops too far out to evaluate meaningfully.
	HopFuture HopStatus = "FUTURE"
)

// liveHops bounds how many upcoming hops get a live evaluation.
// Earlier hops are historical; later ones would be evaluated against
// statistics that cannot yet exist.
const liveHops = 2

// PathHop is one edge of the maturity chain, annotated for display.
type PathHop struct {
	From        maturity.Level `json:"from"`
	To          maturity.Level `json:"to"`
	Status      HopStatus      `json:"status"`
	Requirement string         `json:"requirement"`
	Assessment  *Assessment    `json:"assessment,omitempty"`
}

// Path renders the full STUDENT→AUTONOMOUS chain for one agent. Hops
// at or below the agent's current tier carry static historical
// requirement text; the next one or two hops carry a live assessment.
func (ev *Evaluator) Path(ctx context.Context, agentID string) ([]PathHop, error) {
	a, err := ev.engine.Store().Load(ctx, agentID)
	if err != nil {
		return nil, fmt.Errorf("promotion path for %q: %w", agentID, err)
	}

	levels := maturity.Levels()
	currentRank := a.Maturity.Rank()

	hops := make([]PathHop, 0, len(levels)-1)
	for i := 0; i < len(levels)-1; i++ {
		from, to := levels[i], levels[i+1]
		hop := PathHop{From: from, To: to, Requirement: ev.requirementText(from)}

		switch distance := to.Rank() - currentRank; {
		case distance <= 0:
			hop.Status = HopComplete
		case distance <= liveHops:
			hop.Status = HopEvaluated
			assessment, err := ev.Evaluate(ctx, agentID, to)
			if err != nil {
				return nil, err
			}
			hop.Assessment = assessment
		default:
			hop.Status = HopFuture
		}
		hops = append(hops, hop)
	}
	return hops, nil
}

// requirementText renders the static requirement for leaving a tier.
// The confidence floor comes from the policy tables so the number here
// can never drift from the engine's transition guard.
func (ev *Evaluator) requirementText(from maturity.Level) string {
	floor, ok := ev.engine.Policy().MinConfidenceForPromotion(from)
	if !ok {
		return "no further promotion"
	}
	th := thresholdsFor(nextOrSame(from))
	return fmt.Sprintf("confidence >= %.1f, positive ratio >= %.2f, at most %d corrections over %d days",
		floor, th.positiveRatio, th.maxCorrections, WindowDays)
}

func nextOrSame(l maturity.Level) maturity.Level {
	if next, ok := l.Next(); ok {
		return next
	}
	return l
}
