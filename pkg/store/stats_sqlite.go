package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/praxos-io/warden/pkg/promotion"
)

// SQLiteStatsStore records per-agent feedback and execution outcomes
// and serves the trailing-window aggregates the promotion evaluator
// reads. It can share a database handle with SQLiteAuditStore.
type SQLiteStatsStore struct {
	db  *sql.DB
	now func() time.Time
}

var (
	_ promotion.FeedbackStats  = (*SQLiteStatsStore)(nil)
	_ promotion.ExecutionStats = (*SQLiteStatsStore)(nil)
)

// NewSQLiteStatsStore migrates the stats schema.
func NewSQLiteStatsStore(db *sql.DB) (*SQLiteStatsStore, error) {
	s := &SQLiteStatsStore{db: db, now: time.Now}
	if err := s.migrate(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *SQLiteStatsStore) migrate() error {
	query := `
	CREATE TABLE IF NOT EXISTS feedback_events (
		id            INTEGER PRIMARY KEY AUTOINCREMENT,
		agent_id      TEXT NOT NULL,
		positive      INTEGER NOT NULL,
		rating        REAL,
		feedback_type TEXT NOT NULL DEFAULT '',
		created_at    TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_feedback_agent_time
		ON feedback_events(agent_id, created_at);

	CREATE TABLE IF NOT EXISTS execution_events (
		id         INTEGER PRIMARY KEY AUTOINCREMENT,
		agent_id   TEXT NOT NULL,
		completed  INTEGER NOT NULL,
		created_at TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_execution_agent_time
		ON execution_events(agent_id, created_at);
	`
	if _, err := s.db.Exec(query); err != nil {
		return fmt.Errorf("migrate stats schema: %w", err)
	}
	return nil
}

// RecordFeedback appends one feedback event. rating is optional and
// feedbackType may be empty.
func (s *SQLiteStatsStore) RecordFeedback(ctx context.Context, agentID string, positive bool, rating *float64, feedbackType string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO feedback_events (agent_id, positive, rating, feedback_type, created_at)
		 VALUES (?, ?, ?, ?, ?)`,
		agentID, positive, rating, feedbackType, s.now().UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("record feedback for %q: %w", agentID, err)
	}
	return nil
}

// RecordExecution appends one execution outcome.
func (s *SQLiteStatsStore) RecordExecution(ctx context.Context, agentID string, completed bool) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO execution_events (agent_id, completed, created_at)
		 VALUES (?, ?, ?)`,
		agentID, completed, s.now().UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("record execution for %q: %w", agentID, err)
	}
	return nil
}

// Summary aggregates feedback in the trailing window. Zero events in
// the window reports promotion.ErrNoFeedback so the evaluator can
// treat it as a failed criterion rather than an outage.
func (s *SQLiteStatsStore) Summary(ctx context.Context, agentID string, windowDays int) (*promotion.FeedbackSummary, error) {
	cutoff := s.now().UTC().AddDate(0, 0, -windowDays).Format(time.RFC3339Nano)

	var (
		summary   promotion.FeedbackSummary
		avgRating sql.NullFloat64
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*),
		        COALESCE(SUM(positive), 0),
		        AVG(rating),
		        COUNT(rating)
		 FROM feedback_events
		 WHERE agent_id = ? AND created_at >= ?`,
		agentID, cutoff,
	).Scan(&summary.Total, &summary.PositiveCount, &avgRating, &summary.RatingCount)
	if err != nil {
		return nil, fmt.Errorf("feedback summary for %q: %w", agentID, err)
	}
	if summary.Total == 0 {
		return nil, promotion.ErrNoFeedback
	}
	if avgRating.Valid {
		summary.AverageRating = avgRating.Float64
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT feedback_type, COUNT(*)
		 FROM feedback_events
		 WHERE agent_id = ? AND created_at >= ? AND feedback_type != ''
		 GROUP BY feedback_type`,
		agentID, cutoff)
	if err != nil {
		return nil, fmt.Errorf("feedback type counts for %q: %w", agentID, err)
	}
	defer rows.Close()

	summary.TypeCounts = make(map[string]int)
	for rows.Next() {
		var (
			kind  string
			count int
		)
		if err := rows.Scan(&kind, &count); err != nil {
			return nil, fmt.Errorf("scan feedback type count: %w", err)
		}
		summary.TypeCounts[kind] = count
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate feedback type counts: %w", err)
	}
	return &summary, nil
}

// CompletedVsTotal counts execution outcomes in the trailing window.
func (s *SQLiteStatsStore) CompletedVsTotal(ctx context.Context, agentID string, windowDays int) (completed, total int, err error) {
	cutoff := s.now().UTC().AddDate(0, 0, -windowDays).Format(time.RFC3339Nano)
	err = s.db.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(completed), 0), COUNT(*)
		 FROM execution_events
		 WHERE agent_id = ? AND created_at >= ?`,
		agentID, cutoff,
	).Scan(&completed, &total)
	if err != nil {
		return 0, 0, fmt.Errorf("execution stats for %q: %w", agentID, err)
	}
	return completed, total, nil
}
