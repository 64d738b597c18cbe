// Package maturity defines the trust-tier model for autonomous agents.
// A maturity level maps to action-complexity ceilings, approval rules,
// and the confidence floors an agent must clear to advance.
package maturity

import "sort"

// Level identifies an agent maturity tier.
type Level string

const (
	Student    Level = "STUDENT"
	Intern     Level = "INTERN"
	Supervised Level = "SUPERVISED"
	Autonomous Level = "AUTONOMOUS"
)

// order fixes the strict total order of tiers.
var order = []Level{Student, Intern, Supervised, Autonomous}

// Valid returns true if the level is a known tier.
func (l Level) Valid() bool {
	switch l {
	case Student, Intern, Supervised, Autonomous:
		return true
	default:
		return false
	}
}

// Rank returns the zero-based position of the level in the tier order,
// or -1 for an unknown level.
func (l Level) Rank() int {
	for i, lvl := range order {
		if lvl == l {
			return i
		}
	}
	return -1
}

// Next returns the tier directly above l. ok is false for AUTONOMOUS
// (nothing above it) and for unknown levels.
func (l Level) Next() (Level, bool) {
	r := l.Rank()
	if r < 0 || r >= len(order)-1 {
		return "", false
	}
	return order[r+1], true
}

// Levels returns the full tier chain in ascending order.
func Levels() []Level {
	out := make([]Level, len(order))
	copy(out, order)
	return out
}

// DefaultComplexity is assigned to action types missing from the
// complexity table. Moderate restriction rather than deny-by-default;
// a deliberate policy choice carried over from the original rollout.
const DefaultComplexity = 2

// defaultActions is the built-in action-complexity table. Values are
// 1 (read-only presentation) through 4 (destructive/irreversible).
var defaultActions = map[string]int{
	"present_chart":   1,
	"present_table":   1,
	"read_resource":   1,
	"stream_chat":     2,
	"draft_message":   2,
	"run_query":       2,
	"submit_form":     3,
	"send_message":    3,
	"update_resource": 3,
	"invoke_webhook":  3,
	"delete":          4,
	"bulk_update":     4,
	"grant_access":    4,
}

// Policy is a pure lookup table: no I/O, no mutation after construction.
// Safe for concurrent use.
type Policy struct {
	actions       map[string]int
	maxComplexity map[Level]int
	minConfidence map[Level]float64
}

// NewPolicy returns the built-in policy tables.
func NewPolicy() *Policy {
	return newPolicy(defaultActions)
}

// NewPolicyWithActions returns a policy whose action table is the
// built-in table overlaid with the given entries. Used by the config
// loader for deployment-specific action catalogs.
func NewPolicyWithActions(overrides map[string]int) *Policy {
	merged := make(map[string]int, len(defaultActions)+len(overrides))
	for k, v := range defaultActions {
		merged[k] = v
	}
	for k, v := range overrides {
		merged[k] = v
	}
	return newPolicy(merged)
}

func newPolicy(actions map[string]int) *Policy {
	return &Policy{
		actions: actions,
		maxComplexity: map[Level]int{
			Student:    1,
			Intern:     2,
			Supervised: 3,
			Autonomous: 4,
		},
		minConfidence: map[Level]float64{
			Student:    0.5,
			Intern:     0.7,
			Supervised: 0.9,
		},
	}
}

// MaxComplexity returns the highest action complexity the level may
// perform. Unknown levels get 0 (nothing allowed).
func (p *Policy) MaxComplexity(l Level) int {
	return p.maxComplexity[l]
}

// RequiresApproval reports whether an allowed action still needs a
// human sign-off. Only SUPERVISED agents acting at their ceiling are
// flagged: STUDENT and INTERN are hard-denied above their ceiling with
// no escalation path, and AUTONOMOUS never requires approval.
func (p *Policy) RequiresApproval(l Level, complexity int) bool {
	return l == Supervised && complexity == p.maxComplexity[Supervised]
}

// MinConfidenceForPromotion returns the confidence floor an agent at
// the given level must reach before advancing one tier. ok is false
// for AUTONOMOUS (no further promotion) and unknown levels.
//
// This is the single source of truth for the floor: the engine's
// auto-transition guard and the promotion evaluator both read it here.
func (p *Policy) MinConfidenceForPromotion(from Level) (float64, bool) {
	v, ok := p.minConfidence[from]
	return v, ok
}

// ActionComplexity returns the complexity classification for an action
// type. Unknown types get DefaultComplexity.
func (p *Policy) ActionComplexity(actionType string) int {
	if c, ok := p.actions[actionType]; ok {
		return c
	}
	return DefaultComplexity
}

// KnownAction reports whether the action type is in the static table.
func (p *Policy) KnownAction(actionType string) bool {
	_, ok := p.actions[actionType]
	return ok
}

// PartitionActions splits the known action catalog at the given
// complexity ceiling. Both slices are sorted for deterministic output.
func (p *Policy) PartitionActions(maxComplexity int) (allowed, restricted []string) {
	for name, c := range p.actions {
		if c <= maxComplexity {
			allowed = append(allowed, name)
		} else {
			restricted = append(restricted, name)
		}
	}
	sort.Strings(allowed)
	sort.Strings(restricted)
	return allowed, restricted
}
