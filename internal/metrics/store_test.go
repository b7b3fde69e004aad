package metrics

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"ai-trip-planner/internal/shared"

	_ "modernc.org/sqlite"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()

	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })

	_, err = db.Exec(`
		CREATE TABLE execution_metrics (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			session_id TEXT NOT NULL DEFAULT '',
			agent_name TEXT NOT NULL DEFAULT '',
			stage TEXT NOT NULL DEFAULT '',
			model TEXT NOT NULL DEFAULT '',
			prompt_tokens INTEGER NOT NULL DEFAULT 0,
			completion_tokens INTEGER NOT NULL DEFAULT 0,
			latency_ms INTEGER NOT NULL DEFAULT 0,
			success INTEGER NOT NULL DEFAULT 1,
			timestamp TIMESTAMP NOT NULL
		);
	`)
	if err != nil {
		t.Fatal(err)
	}

	return NewStore(db)
}

func TestRecordAndDailyUsage(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	err := store.RecordMeta(ctx, "session-1", shared.AgentMeta{
		AgentName: "Verifier",
		Usage:     shared.TokenUsage{PromptTokens: 120, CompletionTokens: 30, Model: "gemini-1.5-flash"},
		Latency:   800 * time.Millisecond,
	})
	if err != nil {
		t.Fatalf("RecordMeta failed: %v", err)
	}
	if err := store.RecordStage(ctx, "session-1", "scraping", 2*time.Second, true); err != nil {
		t.Fatalf("RecordStage failed: %v", err)
	}

	usage, err := store.GetDailyUsage(ctx, 7)
	if err != nil {
		t.Fatalf("GetDailyUsage failed: %v", err)
	}
	if len(usage) != 1 {
		t.Fatalf("got %d days, want 1", len(usage))
	}
	if usage[0].TotalPrompt != 120 || usage[0].TotalCompletion != 30 {
		t.Errorf("tokens = %d/%d", usage[0].TotalPrompt, usage[0].TotalCompletion)
	}
	if usage[0].TotalExecution != 2 {
		t.Errorf("executions = %d, want 2", usage[0].TotalExecution)
	}
}

func TestRecordMetaSkipsEmptyUsage(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	if err := store.RecordMeta(ctx, "session-1", shared.AgentMeta{AgentName: "Verifier"}); err != nil {
		t.Fatalf("RecordMeta failed: %v", err)
	}
	usage, err := store.GetDailyUsage(ctx, 7)
	if err != nil {
		t.Fatal(err)
	}
	if len(usage) != 0 {
		t.Errorf("expected no rows, got %d", len(usage))
	}
}

func TestCleanup(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	old := ExecutionMetric{Stage: "scraping", Timestamp: time.Now().AddDate(0, 0, -45)}
	recent := ExecutionMetric{Stage: "routing", Timestamp: time.Now()}
	for _, m := range []ExecutionMetric{old, recent} {
		if err := store.Record(ctx, m); err != nil {
			t.Fatal(err)
		}
	}

	deleted, err := store.Cleanup(ctx, 30)
	if err != nil {
		t.Fatalf("Cleanup failed: %v", err)
	}
	if deleted != 1 {
		t.Errorf("deleted = %d, want 1", deleted)
	}
}
