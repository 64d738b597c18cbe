package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/praxos-io/warden/pkg/agent"
	"github.com/praxos-io/warden/pkg/governance"
	"github.com/praxos-io/warden/pkg/maturity"
	"github.com/praxos-io/warden/pkg/store"
)

func testEngine(t *testing.T) (*governance.Engine, *store.MemoryAgentStore) {
	t.Helper()
	st := store.NewMemoryAgentStore()
	return governance.NewEngine(st, maturity.NewPolicy(), governance.NewMemoryCache()), st
}

func seed(t *testing.T, st *store.MemoryAgentStore, id string, level maturity.Level, conf float64) {
	t.Helper()
	a := agent.New(id, "agent "+id, "ops", time.Now())
	a.Maturity = level
	a.Confidence = conf
	require.NoError(t, st.Save(context.Background(), a))
}

func TestRequestIDGeneratedAndEchoed(t *testing.T) {
	var seen string
	h := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = GetRequestID(r.Context())
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.NotEmpty(t, seen)
	assert.Equal(t, seen, rec.Header().Get("X-Request-ID"))

	rec = httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Request-ID", "req-42")
	h.ServeHTTP(rec, req)
	assert.Equal(t, "req-42", seen)
}

func TestRequireGovernanceBlocksBeforeHandler(t *testing.T) {
	engine, st := testEngine(t)
	seed(t, st, "plant-1", maturity.Student, 0.3)

	ran := false
	h := RequireGovernance(engine, "delete")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ran = true
	}))

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/", nil)
	req.Header.Set("X-Agent-ID", "plant-1")
	h.ServeHTTP(rec, req)

	assert.False(t, ran, "handler must not run for a blocked action")
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "BLOCKED", rec.Header().Get("X-Governance-Status"))
	assert.Equal(t, "HUMAN_APPROVAL", rec.Header().Get("X-Action-Required"))
}

func TestRequireGovernanceAllowsWithinCeiling(t *testing.T) {
	engine, st := testEngine(t)
	seed(t, st, "auto-1", maturity.Autonomous, 0.95)

	ran := false
	h := RequireGovernance(engine, "delete")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ran = true
		w.WriteHeader(http.StatusNoContent)
	}))

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/", nil)
	req.Header.Set("X-Agent-ID", "auto-1")
	h.ServeHTTP(rec, req)

	assert.True(t, ran)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "APPROVED", rec.Header().Get("X-Governance-Status"))
}

func TestRequireGovernancePendingApprovalProceedsWithMarker(t *testing.T) {
	engine, st := testEngine(t)
	seed(t, st, "sup-1", maturity.Supervised, 0.8)

	ran := false
	h := RequireGovernance(engine, "send_message")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ran = true
	}))

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/", nil)
	req.Header.Set("X-Agent-ID", "sup-1")
	h.ServeHTTP(rec, req)

	assert.True(t, ran)
	assert.Equal(t, "PENDING_APPROVAL", rec.Header().Get("X-Governance-Status"))
}

func TestRequireGovernanceMissingAgentHeader(t *testing.T) {
	engine, _ := testEngine(t)

	h := RequireGovernance(engine, "read")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler must not run")
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func adminToken(t *testing.T, secret string, roles []string) string {
	t.Helper()
	claims := &AdminClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
		Roles: roles,
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return token
}

func TestRequireAdmin(t *testing.T) {
	const secret = "test-secret"
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	t.Run("valid admin token", func(t *testing.T) {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPut, "/", nil)
		req.Header.Set("Authorization", "Bearer "+adminToken(t, secret, []string{"admin"}))
		RequireAdmin(secret)(ok).ServeHTTP(rec, req)
		assert.Equal(t, http.StatusNoContent, rec.Code)
	})

	t.Run("missing token", func(t *testing.T) {
		rec := httptest.NewRecorder()
		RequireAdmin(secret)(ok).ServeHTTP(rec, httptest.NewRequest(http.MethodPut, "/", nil))
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("wrong secret", func(t *testing.T) {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPut, "/", nil)
		req.Header.Set("Authorization", "Bearer "+adminToken(t, "other-secret", []string{"admin"}))
		RequireAdmin(secret)(ok).ServeHTTP(rec, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("non-admin role", func(t *testing.T) {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPut, "/", nil)
		req.Header.Set("Authorization", "Bearer "+adminToken(t, secret, []string{"viewer"}))
		RequireAdmin(secret)(ok).ServeHTTP(rec, req)
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})

	t.Run("empty secret fails closed", func(t *testing.T) {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPut, "/", nil)
		req.Header.Set("Authorization", "Bearer "+adminToken(t, "", []string{"admin"}))
		RequireAdmin("")(ok).ServeHTTP(rec, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})
}
