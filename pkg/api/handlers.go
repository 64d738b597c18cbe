package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/praxos-io/warden/pkg/agent"
	"github.com/praxos-io/warden/pkg/governance"
	"github.com/praxos-io/warden/pkg/maturity"
	"github.com/praxos-io/warden/pkg/observability"
	"github.com/praxos-io/warden/pkg/promotion"
)

// StatsRecorder receives the raw feedback and execution events the
// promotion evaluator later aggregates.
type StatsRecorder interface {
	RecordFeedback(ctx context.Context, agentID string, positive bool, rating *float64, feedbackType string) error
	RecordExecution(ctx context.Context, agentID string, completed bool) error
}

// Server wires the governance engine and promotion evaluator to HTTP.
type Server struct {
	engine      *governance.Engine
	evaluator   *promotion.Evaluator
	stats       StatsRecorder
	obs         *observability.Provider
	adminSecret string
	logger      *slog.Logger
}

// NewServer creates the HTTP surface. stats and obs may be nil.
func NewServer(engine *governance.Engine, evaluator *promotion.Evaluator, stats StatsRecorder, obs *observability.Provider, adminSecret string) *Server {
	return &Server{
		engine:      engine,
		evaluator:   evaluator,
		stats:       stats,
		obs:         obs,
		adminSecret: adminSecret,
		logger:      slog.Default().With("component", "api"),
	}
}

// Routes builds the route table. Administrative routes are JWT-guarded;
// everything else is reachable by the agent runtime.
func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("POST /v1/agents", s.handleRegister)
	mux.HandleFunc("POST /v1/decisions", s.handleDecide)
	mux.HandleFunc("POST /v1/enforcements", s.handleEnforce)
	mux.HandleFunc("POST /v1/agents/{id}/feedback", s.handleFeedback)
	mux.HandleFunc("POST /v1/agents/{id}/executions", s.handleExecution)
	mux.HandleFunc("GET /v1/agents/{id}/capabilities", s.handleCapabilities)
	mux.HandleFunc("GET /v1/agents/{id}/promotion", s.handlePromotion)
	mux.HandleFunc("GET /v1/agents/{id}/promotion-path", s.handlePromotionPath)

	admin := RequireAdmin(s.adminSecret)
	mux.Handle("PUT /v1/agents/{id}/maturity", admin(http.HandlerFunc(s.handleOverride)))

	return RequestID(mux)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type registerRequest struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Category string `json:"category"`
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteBadRequest(w, "invalid JSON body")
		return
	}
	if req.ID == "" || req.Name == "" {
		WriteBadRequest(w, "id and name are required")
		return
	}

	a, err := s.engine.Register(r.Context(), req.ID, req.Name, req.Category)
	if err != nil {
		WriteError(w, http.StatusConflict, "Conflict", err.Error())
		return
	}
	WriteJSON(w, http.StatusCreated, a)
}

type decideRequest struct {
	AgentID    string `json:"agent_id"`
	ActionType string `json:"action_type"`
}

func (s *Server) handleDecide(w http.ResponseWriter, r *http.Request) {
	var req decideRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteBadRequest(w, "invalid JSON body")
		return
	}
	if req.AgentID == "" || req.ActionType == "" {
		WriteBadRequest(w, "agent_id and action_type are required")
		return
	}

	ctx, span := s.startSpan(r, "governance.decide")
	start := time.Now()
	d := s.engine.Decide(ctx, req.AgentID, req.ActionType)
	s.recordDecision(ctx, d.Allowed, statusFor(d), time.Since(start))
	span.End()

	WriteJSON(w, http.StatusOK, d)
}

func (s *Server) handleEnforce(w http.ResponseWriter, r *http.Request) {
	var req decideRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteBadRequest(w, "invalid JSON body")
		return
	}
	if req.AgentID == "" || req.ActionType == "" {
		WriteBadRequest(w, "agent_id and action_type are required")
		return
	}

	ctx, span := s.startSpan(r, "governance.enforce")
	start := time.Now()
	res := s.engine.Enforce(ctx, req.AgentID, req.ActionType)
	s.recordDecision(ctx, res.Decision.Allowed, string(res.Status), time.Since(start))
	span.End()

	WriteJSON(w, http.StatusOK, res)
}

type feedbackRequest struct {
	Positive bool     `json:"positive"`
	Impact   string   `json:"impact"`
	Rating   *float64 `json:"rating,omitempty"`
	Type     string   `json:"type,omitempty"`
}

func (s *Server) handleFeedback(w http.ResponseWriter, r *http.Request) {
	agentID := r.PathValue("id")

	var req feedbackRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteBadRequest(w, "invalid JSON body")
		return
	}

	ctx, span := s.startSpan(r, "governance.apply_feedback")
	err := s.engine.ApplyFeedback(ctx, agentID, req.Positive, req.Impact)
	span.End()

	switch {
	case err == nil:
		if s.stats != nil {
			if err := s.stats.RecordFeedback(ctx, agentID, req.Positive, req.Rating, req.Type); err != nil {
				s.logger.Error("record feedback stats failed", "agent_id", agentID, "error", err)
			}
		}
		WriteJSON(w, http.StatusAccepted, map[string]string{"status": "applied"})
	case errors.Is(err, agent.ErrNotFound):
		WriteNotFound(w, err.Error())
	default:
		s.logger.Error("apply feedback failed", "agent_id", agentID, "error", err)
		WriteError(w, http.StatusUnprocessableEntity, "Unprocessable Entity", err.Error())
	}
}

type executionRequest struct {
	Completed bool `json:"completed"`
}

// handleExecution records an execution outcome for the promotion
// evaluator's success-rate window.
func (s *Server) handleExecution(w http.ResponseWriter, r *http.Request) {
	agentID := r.PathValue("id")

	var req executionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteBadRequest(w, "invalid JSON body")
		return
	}

	if _, err := s.engine.Store().Load(r.Context(), agentID); err != nil {
		if errors.Is(err, agent.ErrNotFound) {
			WriteNotFound(w, err.Error())
			return
		}
		WriteInternalError(w, err.Error())
		return
	}

	if s.stats == nil {
		WriteError(w, http.StatusNotImplemented, "Not Implemented", "no statistics backend configured")
		return
	}
	if err := s.stats.RecordExecution(r.Context(), agentID, req.Completed); err != nil {
		s.logger.Error("record execution failed", "agent_id", agentID, "error", err)
		WriteInternalError(w, "failed to record execution")
		return
	}
	WriteJSON(w, http.StatusAccepted, map[string]string{"status": "recorded"})
}

func (s *Server) handleCapabilities(w http.ResponseWriter, r *http.Request) {
	caps, err := s.engine.Capabilities(r.Context(), r.PathValue("id"))
	if err != nil {
		if errors.Is(err, agent.ErrNotFound) {
			WriteNotFound(w, err.Error())
			return
		}
		WriteInternalError(w, err.Error())
		return
	}
	WriteJSON(w, http.StatusOK, caps)
}

func (s *Server) handlePromotion(w http.ResponseWriter, r *http.Request) {
	target := maturity.Level(r.URL.Query().Get("target"))
	if target != "" && !target.Valid() {
		WriteBadRequest(w, "unknown target maturity")
		return
	}

	assessment, err := s.evaluator.Evaluate(r.Context(), r.PathValue("id"), target)
	switch {
	case err == nil:
		WriteJSON(w, http.StatusOK, assessment)
	case errors.Is(err, agent.ErrNotFound):
		WriteNotFound(w, err.Error())
	case errors.Is(err, promotion.ErrAlreadyAutonomous):
		WriteError(w, http.StatusConflict, "Conflict", err.Error())
	default:
		s.logger.Error("promotion evaluation failed", "error", err)
		WriteError(w, http.StatusBadGateway, "Bad Gateway", "statistics backend unavailable")
	}
}

func (s *Server) handlePromotionPath(w http.ResponseWriter, r *http.Request) {
	hops, err := s.evaluator.Path(r.Context(), r.PathValue("id"))
	switch {
	case err == nil:
		WriteJSON(w, http.StatusOK, map[string]any{"path": hops})
	case errors.Is(err, agent.ErrNotFound):
		WriteNotFound(w, err.Error())
	default:
		s.logger.Error("promotion path failed", "error", err)
		WriteError(w, http.StatusBadGateway, "Bad Gateway", "statistics backend unavailable")
	}
}

type overrideRequest struct {
	Maturity string `json:"maturity"`
	Actor    string `json:"actor"`
}

func (s *Server) handleOverride(w http.ResponseWriter, r *http.Request) {
	agentID := r.PathValue("id")

	var req overrideRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteBadRequest(w, "invalid JSON body")
		return
	}

	err := s.engine.OverrideMaturity(r.Context(), agentID, maturity.Level(req.Maturity), req.Actor)
	switch {
	case err == nil:
		WriteJSON(w, http.StatusOK, map[string]string{"status": "overridden"})
	case errors.Is(err, agent.ErrNotFound):
		WriteNotFound(w, err.Error())
	default:
		WriteBadRequest(w, err.Error())
	}
}

func (s *Server) startSpan(r *http.Request, name string) (context.Context, trace.Span) {
	if s.obs == nil {
		return r.Context(), noop.Span{}
	}
	return s.obs.StartSpan(r.Context(), name)
}

func (s *Server) recordDecision(ctx context.Context, allowed bool, status string, duration time.Duration) {
	if s.obs != nil {
		s.obs.RecordDecision(ctx, allowed, status, duration)
	}
}

func statusFor(d governance.Decision) string {
	switch {
	case d.RequiresHumanApproval:
		return string(governance.StatusPendingApproval)
	case d.Allowed:
		return string(governance.StatusApproved)
	default:
		return string(governance.StatusBlocked)
	}
}
