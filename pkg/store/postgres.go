package store

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/lib/pq"

	"github.com/praxos-io/warden/pkg/agent"
	"github.com/praxos-io/warden/pkg/maturity"
)

// PostgresAgentStore implements agent.Store over a relational table.
// Schema:
//
//	CREATE TABLE agents (
//	    id                  TEXT PRIMARY KEY,
//	    name                TEXT NOT NULL,
//	    category            TEXT NOT NULL DEFAULT '',
//	    maturity            TEXT NOT NULL,
//	    confidence          DOUBLE PRECISION NOT NULL,
//	    maturity_entered_at TIMESTAMPTZ NOT NULL
//	);
type PostgresAgentStore struct {
	db *sql.DB
}

// NewPostgresAgentStore wraps an open connection pool.
func NewPostgresAgentStore(db *sql.DB) *PostgresAgentStore {
	return &PostgresAgentStore{db: db}
}

func (s *PostgresAgentStore) Load(ctx context.Context, id string) (*agent.Agent, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT id, name, category, maturity, confidence, maturity_entered_at FROM agents WHERE id = $1",
		id)

	var a agent.Agent
	var level string
	err := row.Scan(&a.ID, &a.Name, &a.Category, &level, &a.Confidence, &a.MaturityEnteredAt)
	if err == sql.ErrNoRows {
		return nil, agent.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load agent %q: %w", id, err)
	}
	a.Maturity = maturity.Level(level)
	return &a, nil
}

func (s *PostgresAgentStore) Save(ctx context.Context, a *agent.Agent) error {
	query := `
		INSERT INTO agents (id, name, category, maturity, confidence, maturity_entered_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			category = EXCLUDED.category,
			maturity = EXCLUDED.maturity,
			confidence = EXCLUDED.confidence,
			maturity_entered_at = EXCLUDED.maturity_entered_at
	`
	_, err := s.db.ExecContext(ctx, query,
		a.ID, a.Name, a.Category, string(a.Maturity), a.Confidence, a.MaturityEnteredAt)
	if err != nil {
		return fmt.Errorf("persist agent %q: %w", a.ID, err)
	}
	return nil
}

var _ agent.Store = (*PostgresAgentStore)(nil)
