// Package agent defines the governed agent record and the store
// contract the governance engine loads it through.
package agent

import (
	"context"
	"errors"
	"time"

	"github.com/praxos-io/warden/pkg/maturity"
)

// ErrNotFound is returned by stores and capability queries when the
// agent ID is unknown. Runtime decision paths never surface it; they
// degrade to a denial instead.
var ErrNotFound = errors.New("agent not found")

// InitialConfidence is assigned at registration, together with the
// STUDENT tier.
const InitialConfidence = 0.3

// Agent is the governed record. Maturity and confidence are mutated
// only through the engine's feedback path or an explicit
// administrative override; deletion is an external concern.
type Agent struct {
	ID                string         `json:"id"`
	Name              string         `json:"name"`
	Category          string         `json:"category"`
	Maturity          maturity.Level `json:"maturity"`
	Confidence        float64        `json:"confidence"`
	MaturityEnteredAt time.Time      `json:"maturity_entered_at"`
}

// New returns a freshly registered agent at the bottom tier.
func New(id, name, category string, now time.Time) *Agent {
	return &Agent{
		ID:                id,
		Name:              name,
		Category:          category,
		Maturity:          maturity.Student,
		Confidence:        InitialConfidence,
		MaturityEnteredAt: now,
	}
}

// Store is the narrow persistence contract the engine depends on.
// Load returns ErrNotFound (possibly wrapped) for unknown IDs.
type Store interface {
	Load(ctx context.Context, id string) (*Agent, error)
	Save(ctx context.Context, a *Agent) error
}
