// Package governance implements the agent autonomy governance engine:
// the decision path that gates every action an autonomous agent wants
// to perform, the feedback path that moves its confidence score and
// maturity tier, and the decision cache between them.
package governance

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/praxos-io/warden/pkg/agent"
	"github.com/praxos-io/warden/pkg/audit"
	"github.com/praxos-io/warden/pkg/confidence"
	"github.com/praxos-io/warden/pkg/maturity"
)

// Clock provides the engine's notion of time. Injected for
// deterministic tests; defaults to time.Now.
type Clock func() time.Time

// Engine orchestrates policy lookup, confidence scoring, caching, and
// audit against a loaded agent record. It is stateless per call; all
// shared state lives in the cache and the backing store, and a
// per-agent lock keeps feedback and decision paths from observing torn
// (confidence, maturity) state for the same agent.
type Engine struct {
	store  agent.Store
	policy Policy
	cache  Cache
	sink   audit.Sink
	logger *slog.Logger
	clock  Clock

	locks   map[string]*sync.Mutex
	locksMu sync.Mutex
}

// Option configures an Engine.
type Option func(*Engine)

// WithClock overrides the engine clock.
func WithClock(c Clock) Option {
	return func(e *Engine) { e.clock = c }
}

// WithAuditSink wires the audit sink. Without one, audit records are
// skipped (dev mode only).
func WithAuditSink(s audit.Sink) Option {
	return func(e *Engine) { e.sink = s }
}

// WithLogger overrides the default component logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// NewEngine creates an engine over the given store, policy tables, and
// decision cache. The cache is explicitly constructed and injected so
// tests run isolated and concurrent without global state.
func NewEngine(store agent.Store, policy Policy, cache Cache, opts ...Option) *Engine {
	e := &Engine{
		store:  store,
		policy: policy,
		cache:  cache,
		logger: slog.Default().With("component", "governance"),
		clock:  time.Now,
		locks:  make(map[string]*sync.Mutex),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// agentLock returns the mutex serializing state changes for one agent.
func (e *Engine) agentLock(agentID string) *sync.Mutex {
	e.locksMu.Lock()
	defer e.locksMu.Unlock()
	mu, ok := e.locks[agentID]
	if !ok {
		mu = &sync.Mutex{}
		e.locks[agentID] = mu
	}
	return mu
}

// Decide answers "may this agent perform this action type" and never
// returns an error: an unknown agent or failing store degrades to a
// denial decision so the agent-facing runtime path cannot throw.
func (e *Engine) Decide(ctx context.Context, agentID, actionType string) Decision {
	mu := e.agentLock(agentID)
	mu.Lock()
	defer mu.Unlock()

	a, err := e.store.Load(ctx, agentID)
	if err != nil {
		d := Decision{
			Allowed:          false,
			Reason:           "agent not found",
			ActionComplexity: e.policy.ActionComplexity(actionType),
		}
		if !errors.Is(err, agent.ErrNotFound) {
			// Store outage: still deny, but keep the real cause in the logs.
			e.logger.Error("agent load failed, denying", "agent_id", agentID, "error", err)
		}
		e.writeAudit(ctx, audit.NewEntry(audit.EventDecision, agentID, actionType, map[string]any{
			"allowed": false,
			"reason":  d.Reason,
		}))
		return d
	}

	snap := Snapshot{Maturity: a.Maturity, Confidence: a.Confidence}
	if cached, hit := e.cache.Get(ctx, agentID, actionType, snap); hit {
		e.writeAudit(ctx, e.decisionEntry(a, actionType, cached, true))
		return cached
	}

	d := e.evaluate(a.Maturity, actionType)
	e.cache.Put(ctx, agentID, actionType, d, snap)
	e.writeAudit(ctx, e.decisionEntry(a, actionType, d, false))
	return d
}

// evaluate applies the permission matrix. Pure; no caching, no I/O.
func (e *Engine) evaluate(level maturity.Level, actionType string) Decision {
	complexity := e.policy.ActionComplexity(actionType)
	ceiling := e.policy.MaxComplexity(level)
	allowed := complexity <= ceiling

	d := Decision{
		Allowed:          allowed,
		ActionComplexity: complexity,
	}
	switch {
	case !allowed:
		d.Reason = fmt.Sprintf("action complexity %d exceeds %s ceiling %d", complexity, level, ceiling)
	case e.policy.RequiresApproval(level, complexity):
		d.RequiresHumanApproval = true
		d.Reason = fmt.Sprintf("complexity %d at %s ceiling: human approval required", complexity, level)
	default:
		d.Reason = fmt.Sprintf("complexity %d within %s ceiling %d", complexity, level, ceiling)
	}
	return d
}

// Enforce wraps Decide for callers that gate side effects. Blocked
// results carry an action_required marker for the approval queue.
func (e *Engine) Enforce(ctx context.Context, agentID, actionType string) EnforceResult {
	d := e.Decide(ctx, agentID, actionType)

	switch {
	case d.Allowed && !d.RequiresHumanApproval:
		return EnforceResult{Proceed: true, Status: StatusApproved, Decision: d}
	case d.Allowed:
		return EnforceResult{Proceed: true, Status: StatusPendingApproval, Decision: d}
	default:
		return EnforceResult{
			Proceed:        false,
			Status:         StatusBlocked,
			ActionRequired: ActionRequiredApproval,
			Decision:       d,
		}
	}
}

// ApplyFeedback moves the agent's confidence score and, when the score
// clears the current tier's promotion floor, advances the maturity by
// exactly one tier. The store write, cache invalidation, and state
// mutation are all-or-nothing: a failed save leaves the agent record
// and the cache untouched.
func (e *Engine) ApplyFeedback(ctx context.Context, agentID string, positive bool, impactLevel string) error {
	impact, err := confidence.ParseImpact(impactLevel)
	if err != nil {
		return err
	}

	mu := e.agentLock(agentID)
	mu.Lock()
	defer mu.Unlock()

	a, err := e.store.Load(ctx, agentID)
	if err != nil {
		return fmt.Errorf("apply feedback for %q: %w", agentID, err)
	}

	updated := *a
	updated.Confidence = confidence.Update(a.Confidence, positive, impact)

	// One tier per feedback event, even if the score jumped past two
	// floors at once. Skipping SUPERVISED would skip human oversight.
	promoted := false
	if next, hasNext := updated.Maturity.Next(); hasNext {
		if floor, ok := e.policy.MinConfidenceForPromotion(updated.Maturity); ok && updated.Confidence >= floor {
			updated.Maturity = next
			updated.MaturityEnteredAt = e.clock()
			promoted = true
		}
	}

	if err := e.store.Save(ctx, &updated); err != nil {
		return fmt.Errorf("persist feedback for %q: %w", agentID, err)
	}

	e.cache.InvalidateAgent(ctx, agentID)

	e.writeAudit(ctx, audit.NewEntry(audit.EventFeedback, agentID, "feedback", map[string]any{
		"positive":       positive,
		"impact":         string(impact),
		"old_confidence": a.Confidence,
		"new_confidence": updated.Confidence,
		"old_maturity":   string(a.Maturity),
		"new_maturity":   string(updated.Maturity),
		"promoted":       promoted,
	}))
	if promoted {
		e.logger.Info("agent promoted",
			"agent_id", agentID,
			"from", string(a.Maturity),
			"to", string(updated.Maturity),
			"confidence", updated.Confidence)
	}
	return nil
}

// Capabilities partitions the action catalog at the agent's complexity
// ceiling. Unlike Decide, an unknown agent fails loudly here: this is
// a developer-facing read path, not an agent-facing runtime one.
func (e *Engine) Capabilities(ctx context.Context, agentID string) (*CapabilitiesView, error) {
	a, err := e.store.Load(ctx, agentID)
	if err != nil {
		return nil, fmt.Errorf("capabilities for %q: %w", agentID, err)
	}

	ceiling := e.policy.MaxComplexity(a.Maturity)
	allowed, restricted := e.policy.PartitionActions(ceiling)
	return &CapabilitiesView{
		AgentID:               a.ID,
		Maturity:              a.Maturity,
		MaxComplexity:         ceiling,
		AllowedActionTypes:    allowed,
		RestrictedActionTypes: restricted,
	}, nil
}

// OverrideMaturity is the explicit administrative path for setting a
// tier out of band. It bypasses the one-tier transition guard but
// still invalidates the cache and audits the change. There is no
// automatic demotion; this is the only way down.
func (e *Engine) OverrideMaturity(ctx context.Context, agentID string, level maturity.Level, actor string) error {
	if !level.Valid() {
		return fmt.Errorf("unknown maturity level %q", level)
	}

	mu := e.agentLock(agentID)
	mu.Lock()
	defer mu.Unlock()

	a, err := e.store.Load(ctx, agentID)
	if err != nil {
		return fmt.Errorf("override maturity for %q: %w", agentID, err)
	}

	updated := *a
	updated.Maturity = level
	updated.MaturityEnteredAt = e.clock()
	if err := e.store.Save(ctx, &updated); err != nil {
		return fmt.Errorf("persist override for %q: %w", agentID, err)
	}

	e.cache.InvalidateAgent(ctx, agentID)

	e.writeAudit(ctx, audit.NewEntry(audit.EventOverride, agentID, "maturity_override", map[string]any{
		"actor":        actor,
		"old_maturity": string(a.Maturity),
		"new_maturity": string(level),
	}))
	e.logger.Info("maturity overridden",
		"agent_id", agentID, "actor", actor,
		"from", string(a.Maturity), "to", string(level))
	return nil
}

// Register creates an agent at the bottom tier with the standard
// initial confidence.
func (e *Engine) Register(ctx context.Context, id, name, category string) (*agent.Agent, error) {
	mu := e.agentLock(id)
	mu.Lock()
	defer mu.Unlock()

	if existing, err := e.store.Load(ctx, id); err == nil && existing != nil {
		return nil, fmt.Errorf("agent %q already registered", id)
	} else if err != nil && !errors.Is(err, agent.ErrNotFound) {
		return nil, fmt.Errorf("register %q: %w", id, err)
	}

	a := agent.New(id, name, category, e.clock())
	if err := e.store.Save(ctx, a); err != nil {
		return nil, fmt.Errorf("register %q: %w", id, err)
	}

	e.writeAudit(ctx, audit.NewEntry(audit.EventRegistration, id, "register", map[string]any{
		"name":       name,
		"category":   category,
		"maturity":   string(a.Maturity),
		"confidence": a.Confidence,
	}))
	return a, nil
}

// Policy exposes the engine's policy tables read-only, for the
// promotion evaluator's threshold cross-checks.
func (e *Engine) Policy() Policy {
	return e.policy
}

// Store exposes the backing agent store for read-only collaborators.
func (e *Engine) Store() agent.Store {
	return e.store
}

func (e *Engine) decisionEntry(a *agent.Agent, actionType string, d Decision, cached bool) audit.Entry {
	return audit.NewEntry(audit.EventDecision, a.ID, actionType, map[string]any{
		"allowed":           d.Allowed,
		"requires_approval": d.RequiresHumanApproval,
		"reason":            d.Reason,
		"complexity":        d.ActionComplexity,
		"maturity":          string(a.Maturity),
		"confidence":        a.Confidence,
		"cached":            cached,
	})
}

// writeAudit is fire-and-forget: failures are logged and swallowed so
// they can never change the outcome of the calling operation.
func (e *Engine) writeAudit(ctx context.Context, entry audit.Entry) {
	if e.sink == nil {
		return
	}
	if err := e.sink.Write(ctx, entry); err != nil {
		e.logger.Warn("audit write failed",
			"agent_id", entry.AgentID, "action", entry.Action, "error", err)
	}
}
