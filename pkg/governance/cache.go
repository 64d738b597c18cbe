package governance

import (
	"context"
	"sync"
)

type cacheEntry struct {
	decision Decision
	snapshot Snapshot
}

// MemoryCache is the default, process-local Cache. Correctness comes
// from snapshot comparison, not TTLs: a stale entry can never be
// served because its stored (maturity, confidence) no longer matches
// the live agent. Eager invalidation on feedback is defense in depth.
type MemoryCache struct {
	mu      sync.RWMutex
	byAgent map[string]map[string]cacheEntry
}

// NewMemoryCache creates an empty cache.
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{byAgent: make(map[string]map[string]cacheEntry)}
}

// Get returns a hit only if an entry exists and its snapshot equals
// the agent's live state.
func (c *MemoryCache) Get(ctx context.Context, agentID, actionType string, live Snapshot) (Decision, bool) {
	_ = ctx
	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, ok := c.byAgent[agentID][actionType]
	if !ok || entry.snapshot != live {
		return Decision{}, false
	}
	return entry.decision, true
}

// Put stores the decision tagged with the snapshot it was computed
// against.
func (c *MemoryCache) Put(ctx context.Context, agentID, actionType string, d Decision, snap Snapshot) {
	_ = ctx
	c.mu.Lock()
	defer c.mu.Unlock()

	actions, ok := c.byAgent[agentID]
	if !ok {
		actions = make(map[string]cacheEntry)
		c.byAgent[agentID] = actions
	}
	actions[actionType] = cacheEntry{decision: d, snapshot: snap}
}

// InvalidateAgent drops every entry for the agent.
func (c *MemoryCache) InvalidateAgent(ctx context.Context, agentID string) {
	_ = ctx
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.byAgent, agentID)
}

// Len returns the number of cached entries across all agents.
func (c *MemoryCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	n := 0
	for _, actions := range c.byAgent {
		n += len(actions)
	}
	return n
}
