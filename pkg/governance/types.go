package governance

import (
	"context"

	"github.com/praxos-io/warden/pkg/maturity"
)

// Decision is the engine's verdict on one (agent, action) pair. It is
// a value owned by the caller; only its audit projection is persisted.
type Decision struct {
	Allowed               bool   `json:"allowed"`
	RequiresHumanApproval bool   `json:"requires_human_approval"`
	Reason                string `json:"reason"`
	ActionComplexity      int    `json:"action_complexity"`
}

// EnforceStatus is the operational wrapper around a Decision.
type EnforceStatus string

const (
	StatusApproved        EnforceStatus = "APPROVED"
	StatusBlocked         EnforceStatus = "BLOCKED"
	StatusPendingApproval EnforceStatus = "PENDING_APPROVAL"
)

// ActionRequiredApproval is surfaced on blocked results for ops
// tooling that routes denials to a human queue.
const ActionRequiredApproval = "HUMAN_APPROVAL"

// EnforceResult wraps a Decision for callers that gate side effects.
type EnforceResult struct {
	Proceed        bool          `json:"proceed"`
	Status         EnforceStatus `json:"status"`
	ActionRequired string        `json:"action_required,omitempty"`
	Decision       Decision      `json:"decision"`
}

// CapabilitiesView describes what an agent may currently do, derived
// purely from the policy tables. Recomputed per call.
type CapabilitiesView struct {
	AgentID               string         `json:"agent_id"`
	Maturity              maturity.Level `json:"maturity"`
	MaxComplexity         int            `json:"max_complexity"`
	AllowedActionTypes    []string       `json:"allowed_action_types"`
	RestrictedActionTypes []string       `json:"restricted_action_types"`
}

// Snapshot tags a cached decision with the governance state it was
// computed against. A cache entry is live only while the agent's
// current state still equals its snapshot.
type Snapshot struct {
	Maturity   maturity.Level `json:"maturity"`
	Confidence float64        `json:"confidence"`
}

// Policy is the lookup surface the engine consults. *maturity.Policy
// satisfies it; tests substitute counting stubs.
type Policy interface {
	MaxComplexity(l maturity.Level) int
	RequiresApproval(l maturity.Level, complexity int) bool
	MinConfidenceForPromotion(from maturity.Level) (float64, bool)
	ActionComplexity(actionType string) int
	PartitionActions(maxComplexity int) (allowed, restricted []string)
}

// Cache memoizes decisions per (agent, action type). Implementations
// must be safe for concurrent use without external locking and must
// honor the snapshot-match contract on Get.
type Cache interface {
	Get(ctx context.Context, agentID, actionType string, live Snapshot) (Decision, bool)
	Put(ctx context.Context, agentID, actionType string, d Decision, snap Snapshot)
	InvalidateAgent(ctx context.Context, agentID string)
}
