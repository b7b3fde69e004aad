package metrics

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"ai-trip-planner/internal/shared"
)

// ExecutionMetric records metadata for a single pipeline execution step:
// either an LLM agent call (agent name plus token counts) or a pipeline
// stage timing (session plus stage).
type ExecutionMetric struct {
	SessionID        string
	AgentName        string
	Stage            string
	Model            string
	PromptTokens     int
	CompletionTokens int
	LatencyMS        int64
	Success          bool
	Timestamp        time.Time
}

// Store handles persistence of metrics to SQLite.
type Store struct {
	db *sql.DB
}

// NewStore initializes the Store with an existing database connection.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// Record saves a metric to the database.
func (s *Store) Record(ctx context.Context, m ExecutionMetric) error {
	ts := m.Timestamp
	if ts.IsZero() {
		ts = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO execution_metrics (
			session_id, agent_name, stage, model, prompt_tokens,
			completion_tokens, latency_ms, success, timestamp
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		m.SessionID, m.AgentName, m.Stage, m.Model,
		m.PromptTokens, m.CompletionTokens, m.LatencyMS, m.Success, ts,
	)
	if err != nil {
		return fmt.Errorf("failed to record metric: %w", err)
	}
	return nil
}

// RecordMeta records metrics directly from shared.AgentMeta. Calls that
// consumed no tokens are skipped.
func (s *Store) RecordMeta(ctx context.Context, sessionID string, meta shared.AgentMeta) error {
	if meta.Usage.PromptTokens == 0 && meta.Usage.CompletionTokens == 0 {
		return nil
	}
	return s.Record(ctx, ExecutionMetric{
		SessionID:        sessionID,
		AgentName:        meta.AgentName,
		Model:            meta.Usage.Model,
		PromptTokens:     meta.Usage.PromptTokens,
		CompletionTokens: meta.Usage.CompletionTokens,
		LatencyMS:        meta.Latency.Milliseconds(),
		Success:          true,
	})
}

// RecordStage records a pipeline stage timing for a session.
func (s *Store) RecordStage(ctx context.Context, sessionID, stage string, duration time.Duration, success bool) error {
	return s.Record(ctx, ExecutionMetric{
		SessionID: sessionID,
		Stage:     stage,
		LatencyMS: duration.Milliseconds(),
		Success:   success,
	})
}

// DailyUsage represents token totals for a single day.
type DailyUsage struct {
	Date            string
	TotalPrompt     int
	TotalCompletion int
	TotalExecution  int
}

// GetDailyUsage retrieves usage for the last N days, newest day first.
func (s *Store) GetDailyUsage(ctx context.Context, days int) ([]DailyUsage, error) {
	since := time.Now().AddDate(0, 0, -days).Format("2006-01-02 15:04:05")
	rows, err := s.db.QueryContext(ctx, `
		SELECT DATE(timestamp) AS day,
		       SUM(prompt_tokens), SUM(completion_tokens), COUNT(*)
		FROM execution_metrics
		WHERE timestamp >= ?
		GROUP BY day ORDER BY day DESC`, since)
	if err != nil {
		return nil, fmt.Errorf("failed to query daily usage: %w", err)
	}
	defer rows.Close()

	var results []DailyUsage
	for rows.Next() {
		var (
			u                DailyUsage
			day              sql.NullString
			prompt, complete sql.NullFloat64
		)
		if err := rows.Scan(&day, &prompt, &complete, &u.TotalExecution); err != nil {
			return nil, fmt.Errorf("failed to scan daily usage: %w", err)
		}
		if day.Valid {
			u.Date = day.String
		} else {
			u.Date = "Unknown"
		}
		u.TotalPrompt = int(prompt.Float64)
		u.TotalCompletion = int(complete.Float64)
		results = append(results, u)
	}
	return results, rows.Err()
}

// Cleanup removes records older than the specified number of days and
// returns how many were deleted.
func (s *Store) Cleanup(ctx context.Context, olderThanDays int) (int64, error) {
	threshold := time.Now().AddDate(0, 0, -olderThanDays)
	res, err := s.db.ExecContext(ctx,
		"DELETE FROM execution_metrics WHERE timestamp < ?", threshold)
	if err != nil {
		return 0, fmt.Errorf("failed to clean up metrics: %w", err)
	}
	return res.RowsAffected()
}
