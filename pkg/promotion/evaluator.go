// Package promotion computes promotion readiness for governed agents:
// a weighted pass/fail over recent feedback and execution statistics,
// with a deterministic human-readable explanation per criterion.
package promotion

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/praxos-io/warden/pkg/governance"
	"github.com/praxos-io/warden/pkg/maturity"
)

// ErrNoFeedback is the distinguishable no-data condition raised by a
// FeedbackStats collaborator when zero feedback exists in the window.
// The evaluator treats it as the feedback-count criterion failing, not
// as an error.
var ErrNoFeedback = errors.New("no feedback in window")

// ErrAlreadyAutonomous is returned when evaluating an agent at the top
// tier: there is nothing to promote to.
var ErrAlreadyAutonomous = errors.New("agent already at the autonomous tier")

// FeedbackSummary aggregates an agent's feedback over a trailing
// window. RatingCount distinguishes "no ratings recorded" from an
// average of zero.
type FeedbackSummary struct {
	Total         int            `json:"total"`
	PositiveCount int            `json:"positive_count"`
	AverageRating float64        `json:"average_rating"`
	RatingCount   int            `json:"rating_count"`
	TypeCounts    map[string]int `json:"feedback_type_counts"`
}

// FeedbackStats is the analytics collaborator for feedback data.
type FeedbackStats interface {
	Summary(ctx context.Context, agentID string, windowDays int) (*FeedbackSummary, error)
}

// ExecutionStats is the analytics collaborator for execution outcomes.
type ExecutionStats interface {
	CompletedVsTotal(ctx context.Context, agentID string, windowDays int) (completed, total int, err error)
}

// Criterion is one named check with its rendered explanation.
type Criterion struct {
	Name   string `json:"name"`
	Passed bool   `json:"passed"`
	Detail string `json:"detail"`
}

// Assessment is the evaluator's verdict for one agent and target tier.
type Assessment struct {
	AgentID         string         `json:"agent_id"`
	CurrentMaturity maturity.Level `json:"current_maturity"`
	TargetMaturity  maturity.Level `json:"target_maturity"`
	ReadinessScore  float64        `json:"readiness_score"`
	Ready           bool           `json:"ready"`
	CriteriaMet     []Criterion    `json:"criteria_met"`
	CriteriaFailed  []Criterion    `json:"criteria_failed"`
}

const (
	// WindowDays is the trailing statistics window.
	WindowDays = 30

	minFeedbackCount = 10
	minSuccessRate   = 0.85
	readyThreshold   = 0.8

	// correctionType is the feedback type counted against the agent.
	correctionType = "correction"
)

// targetThresholds are the per-target criterion bounds. Promotion into
// the top tier is held to the strict set; promotions below it share
// the baseline set.
type targetThresholds struct {
	positiveRatio  float64
	averageRating  float64
	maxCorrections int
}

func thresholdsFor(target maturity.Level) targetThresholds {
	if target == maturity.Autonomous {
		return targetThresholds{positiveRatio: 0.90, averageRating: 4.5, maxCorrections: 2}
	}
	return targetThresholds{positiveRatio: 0.75, averageRating: 3.8, maxCorrections: 5}
}

// Evaluator consumes analytics statistics and the engine's maturity
// rules. It only ever reads from the engine.
type Evaluator struct {
	engine     *governance.Engine
	feedback   FeedbackStats
	executions ExecutionStats
	logger     *slog.Logger
}

// NewEvaluator wires the evaluator to its collaborators.
func NewEvaluator(engine *governance.Engine, feedback FeedbackStats, executions ExecutionStats) *Evaluator {
	return &Evaluator{
		engine:     engine,
		feedback:   feedback,
		executions: executions,
		logger:     slog.Default().With("component", "promotion"),
	}
}

// Evaluate scores the agent against the named target tier. An empty
// target defaults to the tier directly above the agent's current one.
// Criteria with no underlying data (ratings, executions) are skipped,
// not failed: each remaining criterion contributes 1/N to the score.
func (ev *Evaluator) Evaluate(ctx context.Context, agentID string, target maturity.Level) (*Assessment, error) {
	a, err := ev.engine.Store().Load(ctx, agentID)
	if err != nil {
		return nil, fmt.Errorf("evaluate promotion for %q: %w", agentID, err)
	}
	if a.Maturity == maturity.Autonomous {
		return nil, ErrAlreadyAutonomous
	}

	if target == "" {
		next, _ := a.Maturity.Next()
		target = next
	}
	if !target.Valid() {
		return nil, fmt.Errorf("unknown target maturity %q", target)
	}

	summary, err := ev.feedback.Summary(ctx, agentID, WindowDays)
	if errors.Is(err, ErrNoFeedback) {
		summary = &FeedbackSummary{}
	} else if err != nil {
		return nil, fmt.Errorf("feedback stats for %q: %w", agentID, err)
	}

	th := thresholdsFor(target)
	var criteria []Criterion

	// 1. Enough feedback to judge on. A no-data window fails here
	// rather than erroring out.
	criteria = append(criteria, Criterion{
		Name:   "feedback_count",
		Passed: summary.Total >= minFeedbackCount,
		Detail: intDetail(summary.Total >= minFeedbackCount, summary.Total, ">=", minFeedbackCount),
	})

	// 2. Positive ratio against the target's bound.
	ratio := 0.0
	if summary.Total > 0 {
		ratio = float64(summary.PositiveCount) / float64(summary.Total)
	}
	criteria = append(criteria, Criterion{
		Name:   "positive_ratio",
		Passed: ratio >= th.positiveRatio,
		Detail: floatDetail(ratio >= th.positiveRatio, ratio, ">=", th.positiveRatio),
	})

	// 3. Average rating; skipped entirely when nothing was rated.
	if summary.RatingCount > 0 {
		criteria = append(criteria, Criterion{
			Name:   "average_rating",
			Passed: summary.AverageRating >= th.averageRating,
			Detail: floatDetail(summary.AverageRating >= th.averageRating, summary.AverageRating, ">=", th.averageRating),
		})
	}

	// 4. Corrections, inverse threshold: fewer is better.
	corrections := summary.TypeCounts[correctionType]
	criteria = append(criteria, Criterion{
		Name:   "correction_count",
		Passed: corrections <= th.maxCorrections,
		Detail: intDetail(corrections <= th.maxCorrections, corrections, "<=", th.maxCorrections),
	})

	// 5. Confidence cross-check against the engine's own floor. The
	// fixed check point is the INTERN promotion floor, read from the
	// policy so the constant lives in exactly one place.
	floor, _ := ev.engine.Policy().MinConfidenceForPromotion(maturity.Intern)
	criteria = append(criteria, Criterion{
		Name:   "confidence_score",
		Passed: a.Confidence >= floor,
		Detail: floatDetail(a.Confidence >= floor, a.Confidence, ">=", floor),
	})

	// 6. Execution success rate; a zero-denominator window is skipped,
	// never counted as a failure.
	completed, total, err := ev.executions.CompletedVsTotal(ctx, agentID, WindowDays)
	if err != nil {
		return nil, fmt.Errorf("execution stats for %q: %w", agentID, err)
	}
	if total > 0 {
		rate := float64(completed) / float64(total)
		criteria = append(criteria, Criterion{
			Name:   "execution_success_rate",
			Passed: rate >= minSuccessRate,
			Detail: floatDetail(rate >= minSuccessRate, rate, ">=", minSuccessRate),
		})
	}

	assessment := &Assessment{
		AgentID:         a.ID,
		CurrentMaturity: a.Maturity,
		TargetMaturity:  target,
		CriteriaMet:     []Criterion{},
		CriteriaFailed:  []Criterion{},
	}
	met := 0
	for _, c := range criteria {
		if c.Passed {
			met++
			assessment.CriteriaMet = append(assessment.CriteriaMet, c)
		} else {
			assessment.CriteriaFailed = append(assessment.CriteriaFailed, c)
		}
	}
	if len(criteria) > 0 {
		assessment.ReadinessScore = float64(met) / float64(len(criteria))
	}
	assessment.Ready = assessment.ReadinessScore >= readyThreshold

	return assessment, nil
}

func mark(passed bool) string {
	if passed {
		return "✓"
	}
	return "✗"
}

func intDetail(passed bool, value int, cmp string, threshold int) string {
	return fmt.Sprintf("%s %d (%s %d)", mark(passed), value, cmp, threshold)
}

func floatDetail(passed bool, value float64, cmp string, threshold float64) string {
	return fmt.Sprintf("%s %.2f (%s %.2f)", mark(passed), value, cmp, threshold)
}
