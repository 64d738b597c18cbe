package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/praxos-io/warden/pkg/governance"
	"github.com/praxos-io/warden/pkg/maturity"
	"github.com/praxos-io/warden/pkg/promotion"
	"github.com/praxos-io/warden/pkg/store"
)

type staticFeedback struct {
	summary *promotion.FeedbackSummary
	err     error
}

func (s staticFeedback) Summary(ctx context.Context, agentID string, windowDays int) (*promotion.FeedbackSummary, error) {
	return s.summary, s.err
}

type staticExecutions struct {
	completed, total int
	err              error
}

func (s staticExecutions) CompletedVsTotal(ctx context.Context, agentID string, windowDays int) (int, int, error) {
	return s.completed, s.total, s.err
}

func testServer(t *testing.T) (*Server, *store.MemoryAgentStore) {
	t.Helper()
	st := store.NewMemoryAgentStore()
	engine := governance.NewEngine(st, maturity.NewPolicy(), governance.NewMemoryCache())
	evaluator := promotion.NewEvaluator(engine,
		staticFeedback{summary: &promotion.FeedbackSummary{
			Total:         12,
			PositiveCount: 10,
			AverageRating: 4.0,
			RatingCount:   12,
			TypeCounts:    map[string]int{"correction": 3},
		}},
		staticExecutions{completed: 18, total: 20},
	)
	return NewServer(engine, evaluator, nil, nil, "test-secret"), st
}

type recordingStats struct {
	feedback   []string
	executions []bool
}

func (r *recordingStats) RecordFeedback(ctx context.Context, agentID string, positive bool, rating *float64, feedbackType string) error {
	r.feedback = append(r.feedback, agentID)
	return nil
}

func (r *recordingStats) RecordExecution(ctx context.Context, agentID string, completed bool) error {
	r.executions = append(r.executions, completed)
	return nil
}

func doJSON(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHealthEndpoint(t *testing.T) {
	srv, _ := testServer(t)
	rec := doJSON(t, srv.Routes(), http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}

func TestRegisterAndDecide(t *testing.T) {
	srv, _ := testServer(t)
	routes := srv.Routes()

	rec := doJSON(t, routes, http.MethodPost, "/v1/agents",
		`{"id":"scout-1","name":"Scout","category":"research"}`)
	require.Equal(t, http.StatusCreated, rec.Code)

	var created map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	assert.Equal(t, "STUDENT", created["maturity"])

	// A fresh STUDENT may present but not mutate.
	rec = doJSON(t, routes, http.MethodPost, "/v1/decisions",
		`{"agent_id":"scout-1","action_type":"present_chart"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	var d governance.Decision
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &d))
	assert.True(t, d.Allowed)

	rec = doJSON(t, routes, http.MethodPost, "/v1/decisions",
		`{"agent_id":"scout-1","action_type":"delete"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &d))
	assert.False(t, d.Allowed)
	assert.Equal(t, 4, d.ActionComplexity)
}

func TestRegisterDuplicateConflicts(t *testing.T) {
	srv, _ := testServer(t)
	routes := srv.Routes()

	body := `{"id":"dup-1","name":"Dup","category":"ops"}`
	rec := doJSON(t, routes, http.MethodPost, "/v1/agents", body)
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = doJSON(t, routes, http.MethodPost, "/v1/agents", body)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "application/problem+json", rec.Header().Get("Content-Type"))
}

func TestDecideValidation(t *testing.T) {
	srv, _ := testServer(t)
	routes := srv.Routes()

	rec := doJSON(t, routes, http.MethodPost, "/v1/decisions", `{"agent_id":"x"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doJSON(t, routes, http.MethodPost, "/v1/decisions", `not json`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestEnforceEndpoint(t *testing.T) {
	srv, st := testServer(t)
	seed(t, st, "sup-2", maturity.Supervised, 0.8)

	rec := doJSON(t, srv.Routes(), http.MethodPost, "/v1/enforcements",
		`{"agent_id":"sup-2","action_type":"send_message"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var res governance.EnforceResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	assert.True(t, res.Proceed)
	assert.Equal(t, governance.StatusPendingApproval, res.Status)
	assert.Equal(t, governance.ActionRequiredApproval, res.ActionRequired)
}

func TestFeedbackEndpoint(t *testing.T) {
	srv, st := testServer(t)
	seed(t, st, "fb-1", maturity.Student, 0.40)
	routes := srv.Routes()

	rec := doJSON(t, routes, http.MethodPost, "/v1/agents/fb-1/feedback",
		`{"positive":true,"impact":"high"}`)
	assert.Equal(t, http.StatusAccepted, rec.Code)

	a, err := st.Load(context.Background(), "fb-1")
	require.NoError(t, err)
	assert.InDelta(t, 0.50, a.Confidence, 1e-9)

	rec = doJSON(t, routes, http.MethodPost, "/v1/agents/fb-1/feedback",
		`{"positive":true,"impact":"catastrophic"}`)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = doJSON(t, routes, http.MethodPost, "/v1/agents/ghost/feedback",
		`{"positive":true,"impact":"low"}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestExecutionEndpointRecordsOutcomes(t *testing.T) {
	srv, st := testServer(t)
	stats := &recordingStats{}
	srv.stats = stats
	seed(t, st, "ex-1", maturity.Intern, 0.6)
	routes := srv.Routes()

	rec := doJSON(t, routes, http.MethodPost, "/v1/agents/ex-1/executions", `{"completed":true}`)
	assert.Equal(t, http.StatusAccepted, rec.Code)
	rec = doJSON(t, routes, http.MethodPost, "/v1/agents/ex-1/executions", `{"completed":false}`)
	assert.Equal(t, http.StatusAccepted, rec.Code)
	assert.Equal(t, []bool{true, false}, stats.executions)

	rec = doJSON(t, routes, http.MethodPost, "/v1/agents/ghost/executions", `{"completed":true}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	// Feedback events flow into the same recorder.
	rec = doJSON(t, routes, http.MethodPost, "/v1/agents/ex-1/feedback",
		`{"positive":true,"impact":"low","rating":4.5}`)
	assert.Equal(t, http.StatusAccepted, rec.Code)
	assert.Equal(t, []string{"ex-1"}, stats.feedback)
}

func TestCapabilitiesEndpoint(t *testing.T) {
	srv, st := testServer(t)
	seed(t, st, "cap-1", maturity.Intern, 0.6)
	routes := srv.Routes()

	rec := doJSON(t, routes, http.MethodGet, "/v1/agents/cap-1/capabilities", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var caps governance.CapabilitiesView
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &caps))
	assert.Equal(t, 2, caps.MaxComplexity)
	assert.Contains(t, caps.AllowedActionTypes, "run_query")
	assert.NotContains(t, caps.AllowedActionTypes, "send_message")

	rec = doJSON(t, routes, http.MethodGet, "/v1/agents/ghost/capabilities", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestPromotionEndpoint(t *testing.T) {
	srv, st := testServer(t)
	seed(t, st, "pro-1", maturity.Intern, 0.75)
	routes := srv.Routes()

	rec := doJSON(t, routes, http.MethodGet, "/v1/agents/pro-1/promotion", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var assessment promotion.Assessment
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &assessment))
	assert.Equal(t, maturity.Supervised, assessment.TargetMaturity)
	assert.True(t, assessment.Ready)

	rec = doJSON(t, routes, http.MethodGet, "/v1/agents/pro-1/promotion?target=DEMIGOD", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	seed(t, st, "pro-2", maturity.Autonomous, 0.95)
	rec = doJSON(t, routes, http.MethodGet, "/v1/agents/pro-2/promotion", "")
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestPromotionPathEndpoint(t *testing.T) {
	srv, st := testServer(t)
	seed(t, st, "path-1", maturity.Intern, 0.75)

	rec := doJSON(t, srv.Routes(), http.MethodGet, "/v1/agents/path-1/promotion-path", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Path []promotion.PathHop `json:"path"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Path, 3)
	assert.Equal(t, promotion.HopComplete, body.Path[0].Status)
	assert.Equal(t, promotion.HopEvaluated, body.Path[1].Status)
}

func TestMaturityOverrideRequiresAdmin(t *testing.T) {
	srv, st := testServer(t)
	seed(t, st, "ovr-1", maturity.Student, 0.3)
	routes := srv.Routes()

	rec := doJSON(t, routes, http.MethodPut, "/v1/agents/ovr-1/maturity",
		`{"maturity":"SUPERVISED","actor":"ops@praxos.io"}`)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req := httptest.NewRequest(http.MethodPut, "/v1/agents/ovr-1/maturity",
		strings.NewReader(`{"maturity":"SUPERVISED","actor":"ops@praxos.io"}`))
	req.Header.Set("Authorization", "Bearer "+adminToken(t, "test-secret", []string{"admin"}))
	rec = httptest.NewRecorder()
	routes.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	a, err := st.Load(context.Background(), "ovr-1")
	require.NoError(t, err)
	assert.Equal(t, maturity.Supervised, a.Maturity)

	// Unknown tier is rejected even for admins.
	req = httptest.NewRequest(http.MethodPut, "/v1/agents/ovr-1/maturity",
		strings.NewReader(`{"maturity":"DEMIGOD","actor":"ops@praxos.io"}`))
	req.Header.Set("Authorization", "Bearer "+adminToken(t, "test-secret", []string{"admin"}))
	rec = httptest.NewRecorder()
	routes.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
