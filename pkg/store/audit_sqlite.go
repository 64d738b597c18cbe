package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/praxos-io/warden/pkg/audit"
)

// SQLiteAuditStore is a durable audit.Sink: entries are hash-chained
// on append and survive restarts. The chain head is recovered from the
// last row at open.
type SQLiteAuditStore struct {
	db *sql.DB

	mu       sync.Mutex
	lastHash string
}

// NewSQLiteAuditStore migrates the schema and recovers the chain head.
func NewSQLiteAuditStore(db *sql.DB) (*SQLiteAuditStore, error) {
	s := &SQLiteAuditStore{db: db}
	if err := s.migrate(); err != nil {
		return nil, err
	}
	if err := s.recoverHead(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *SQLiteAuditStore) migrate() error {
	query := `
	CREATE TABLE IF NOT EXISTS audit_entries (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		id TEXT NOT NULL,
		timestamp TEXT NOT NULL,
		type TEXT NOT NULL,
		agent_id TEXT NOT NULL,
		action TEXT NOT NULL,
		details JSON,
		previous_hash TEXT NOT NULL DEFAULT '',
		hash TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_audit_agent ON audit_entries(agent_id);`
	_, err := s.db.ExecContext(context.Background(), query)
	return err
}

func (s *SQLiteAuditStore) recoverHead() error {
	row := s.db.QueryRowContext(context.Background(),
		"SELECT hash FROM audit_entries ORDER BY seq DESC LIMIT 1")
	var hash string
	err := row.Scan(&hash)
	if err == sql.ErrNoRows {
		return nil
	}
	if err != nil {
		return fmt.Errorf("recover audit chain head: %w", err)
	}
	s.lastHash = hash
	return nil
}

// Write chains and persists the entry.
func (s *SQLiteAuditStore) Write(ctx context.Context, e audit.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e.PreviousHash = s.lastHash
	hash, err := audit.EntryHash(e)
	if err != nil {
		return err
	}
	e.Hash = hash

	detailsJSON, _ := json.Marshal(e.Details)
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO audit_entries (id, timestamp, type, agent_id, action, details, previous_hash, hash)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID,
		e.Timestamp.UTC().Format(time.RFC3339Nano),
		string(e.Type),
		e.AgentID,
		e.Action,
		string(detailsJSON),
		e.PreviousHash,
		e.Hash,
	)
	if err != nil {
		return fmt.Errorf("insert audit entry: %w", err)
	}
	s.lastHash = e.Hash
	return nil
}

// ListByAgent returns the most recent entries for one agent, newest
// first, for the ops console.
func (s *SQLiteAuditStore) ListByAgent(ctx context.Context, agentID string, limit int) ([]audit.Entry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, timestamp, type, agent_id, action, details, previous_hash, hash
		 FROM audit_entries WHERE agent_id = ? ORDER BY seq DESC LIMIT ?`,
		agentID, limit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var entries []audit.Entry
	for rows.Next() {
		var e audit.Entry
		var ts, typ, details string
		if err := rows.Scan(&e.ID, &ts, &typ, &e.AgentID, &e.Action, &details, &e.PreviousHash, &e.Hash); err != nil {
			return nil, err
		}
		e.Type = audit.EventType(typ)
		if e.Timestamp, err = time.Parse(time.RFC3339Nano, ts); err != nil {
			return nil, fmt.Errorf("parse audit timestamp: %w", err)
		}
		if details != "" && details != "null" {
			if err := json.Unmarshal([]byte(details), &e.Details); err != nil {
				return nil, fmt.Errorf("parse audit details: %w", err)
			}
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

var _ audit.Sink = (*SQLiteAuditStore)(nil)
