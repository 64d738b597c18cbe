package audit

import (
	"context"
	"fmt"
	"sync"
)

// Chain is an in-memory hash-chained Sink. It is the default sink for
// tests and dev mode; production deployments wire the SQLite-backed
// store instead.
type Chain struct {
	mu      sync.Mutex
	entries []Entry
}

// NewChain creates an empty chain.
func NewChain() *Chain {
	return &Chain{entries: make([]Entry, 0)}
}

// Write appends the entry, linking it to the previous one.
func (c *Chain) Write(ctx context.Context, e Entry) error {
	_ = ctx
	c.mu.Lock()
	defer c.mu.Unlock()

	if n := len(c.entries); n > 0 {
		e.PreviousHash = c.entries[n-1].Hash
	}
	hash, err := EntryHash(e)
	if err != nil {
		return err
	}
	e.Hash = hash
	c.entries = append(c.entries, e)
	return nil
}

// Entries returns a copy of the chain.
func (c *Chain) Entries() []Entry {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Entry, len(c.entries))
	copy(out, c.entries)
	return out
}

// Len returns the number of recorded entries.
func (c *Chain) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Verify checks link integrity and per-entry content hashes.
func (c *Chain) Verify() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	for i, e := range c.entries {
		if i == 0 {
			if e.PreviousHash != "" {
				return fmt.Errorf("genesis entry has non-empty previous hash")
			}
		} else if e.PreviousHash != c.entries[i-1].Hash {
			return fmt.Errorf("chain broken at index %d: previous hash mismatch", i)
		}

		computed, err := EntryHash(e)
		if err != nil {
			return fmt.Errorf("recompute hash at index %d: %w", i, err)
		}
		if computed != e.Hash {
			return fmt.Errorf("integrity failure at index %d: computed %s, stored %s", i, computed, e.Hash)
		}
	}
	return nil
}
