// Package audit records governance decisions and feedback outcomes as
// hash-chained, tamper-evident entries. Audit writes are fire-and-forget
// from the engine's point of view: a failing sink is logged, never
// propagated into a decision path.
package audit

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/gowebpki/jcs"
)

// EventType categorizes an audit entry.
type EventType string

const (
	EventDecision     EventType = "DECISION"
	EventFeedback     EventType = "FEEDBACK"
	EventOverride     EventType = "OVERRIDE"
	EventRegistration EventType = "REGISTRATION"
)

// Entry is a single tamper-evident audit record. PreviousHash links it
// to the preceding entry in the sink's chain; Hash covers every other
// field via JCS canonicalization.
type Entry struct {
	ID           string         `json:"id"`
	Timestamp    time.Time      `json:"timestamp"`
	Type         EventType      `json:"type"`
	AgentID      string         `json:"agent_id"`
	Action       string         `json:"action"`
	Details      map[string]any `json:"details,omitempty"`
	PreviousHash string         `json:"previous_hash"`
	Hash         string         `json:"hash"`
}

// NewEntry builds an unchained entry; the sink assigns PreviousHash
// and Hash on append.
func NewEntry(eventType EventType, agentID, action string, details map[string]any) Entry {
	return Entry{
		ID:        uuid.New().String(),
		Timestamp: time.Now().UTC(),
		Type:      eventType,
		AgentID:   agentID,
		Action:    action,
		Details:   details,
	}
}

// Sink persists audit entries. Implementations are responsible for
// chaining (assigning PreviousHash/Hash) so that chains survive their
// own storage medium.
type Sink interface {
	Write(ctx context.Context, e Entry) error
}

// EntryHash computes the SHA-256 digest of an entry over its JCS
// canonical form, excluding the Hash field itself.
func EntryHash(e Entry) (string, error) {
	data := map[string]any{
		"id":            e.ID,
		"timestamp":     e.Timestamp.UTC().Format(time.RFC3339Nano),
		"type":          string(e.Type),
		"agent_id":      e.AgentID,
		"action":        e.Action,
		"details":       e.Details,
		"previous_hash": e.PreviousHash,
	}

	raw, err := json.Marshal(data)
	if err != nil {
		return "", err
	}
	canonical, err := jcs.Transform(raw)
	if err != nil {
		return "", err
	}

	sum := sha256.Sum256(canonical)
	return hex.EncodeToString(sum[:]), nil
}
