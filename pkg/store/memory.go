// Package store provides the persistence backends behind the
// governance engine: an in-memory agent store for tests and dev mode,
// a PostgreSQL agent store for production, and SQLite-backed stores
// for the durable audit chain and promotion statistics.
package store

import (
	"context"
	"sync"

	"github.com/praxos-io/warden/pkg/agent"
)

// MemoryAgentStore is a map-backed agent.Store. Values are copied on
// the way in and out so callers cannot mutate stored state.
type MemoryAgentStore struct {
	mu     sync.RWMutex
	agents map[string]agent.Agent
}

// NewMemoryAgentStore creates an empty store.
func NewMemoryAgentStore() *MemoryAgentStore {
	return &MemoryAgentStore{agents: make(map[string]agent.Agent)}
}

func (s *MemoryAgentStore) Load(ctx context.Context, id string) (*agent.Agent, error) {
	_ = ctx
	s.mu.RLock()
	defer s.mu.RUnlock()

	a, ok := s.agents[id]
	if !ok {
		return nil, agent.ErrNotFound
	}
	out := a
	return &out, nil
}

func (s *MemoryAgentStore) Save(ctx context.Context, a *agent.Agent) error {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	s.agents[a.ID] = *a
	return nil
}

var _ agent.Store = (*MemoryAgentStore)(nil)
