package api

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/praxos-io/warden/pkg/governance"
)

type requestIDKey struct{}

// RequestID injects a unique X-Request-ID into every request context
// and response header, reusing a client-supplied one when present.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = uuid.New().String()
		}
		w.Header().Set("X-Request-ID", requestID)
		ctx := context.WithValue(r.Context(), requestIDKey{}, requestID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// GetRequestID extracts the request ID from the context.
func GetRequestID(ctx context.Context) string {
	if id, ok := ctx.Value(requestIDKey{}).(string); ok {
		return id
	}
	return ""
}

// agentIDHeader carries the acting agent's identity on governed routes.
const agentIDHeader = "X-Agent-ID"

// RequireGovernance gates a handler behind the engine: Enforce runs
// before the handler body, so a blocked action produces no side
// effects at all. Pending-approval requests proceed but carry a
// marker header so downstream layers can queue the human review.
func RequireGovernance(engine *governance.Engine, actionType string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			agentID := r.Header.Get(agentIDHeader)
			if agentID == "" {
				WriteBadRequest(w, "missing "+agentIDHeader+" header")
				return
			}

			res := engine.Enforce(r.Context(), agentID, actionType)
			if !res.Proceed {
				w.Header().Set("X-Governance-Status", string(res.Status))
				w.Header().Set("X-Action-Required", res.ActionRequired)
				WriteForbidden(w, res.Decision.Reason)
				return
			}

			w.Header().Set("X-Governance-Status", string(res.Status))
			next.ServeHTTP(w, r)
		})
	}
}

// AdminClaims are the JWT claims expected on administrative routes.
type AdminClaims struct {
	jwt.RegisteredClaims
	Roles []string `json:"roles"`
}

// RequireAdmin validates a bearer token signed with the shared secret
// and requires the "admin" role. A missing secret fails closed.
func RequireAdmin(secret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if secret == "" {
				WriteUnauthorized(w, "administrative routes disabled: no secret configured")
				return
			}

			authHeader := r.Header.Get("Authorization")
			if !strings.HasPrefix(authHeader, "Bearer ") {
				WriteUnauthorized(w, "missing bearer token")
				return
			}
			tokenStr := strings.TrimPrefix(authHeader, "Bearer ")

			claims := &AdminClaims{}
			token, err := jwt.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (any, error) {
				if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
					return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
				}
				return []byte(secret), nil
			})
			if err != nil || !token.Valid {
				WriteUnauthorized(w, "invalid token")
				return
			}

			for _, role := range claims.Roles {
				if role == "admin" {
					next.ServeHTTP(w, r)
					return
				}
			}
			WriteForbidden(w, "admin role required")
		})
	}
}
