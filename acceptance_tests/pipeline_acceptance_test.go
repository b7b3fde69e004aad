package acceptance_tests

import (
	"context"
	"database/sql"
	"strings"
	"testing"
	"time"

	_ "modernc.org/sqlite"

	"ai-trip-planner/internal/export"
	"ai-trip-planner/internal/geo"
	"ai-trip-planner/internal/planner"
	"ai-trip-planner/internal/poi"
	"ai-trip-planner/internal/social"
	"ai-trip-planner/internal/storage"
	"ai-trip-planner/internal/verify"
)

func setupDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })

	_, err = db.Exec(`
		CREATE TABLE planning_sessions (
			id TEXT PRIMARY KEY,
			destination TEXT NOT NULL,
			start_date TEXT NOT NULL,
			end_date TEXT NOT NULL,
			personas TEXT NOT NULL,
			constraints TEXT NOT NULL DEFAULT '{}',
			max_per_day INTEGER NOT NULL DEFAULT 5,
			stage TEXT NOT NULL DEFAULT 'pending',
			error_detail TEXT,
			total_scraped INTEGER NOT NULL DEFAULT 0,
			total_verified INTEGER NOT NULL DEFAULT 0,
			total_included INTEGER NOT NULL DEFAULT 0,
			document_url TEXT,
			map_url TEXT,
			created_at TIMESTAMP NOT NULL,
			updated_at TIMESTAMP NOT NULL,
			completed_at TIMESTAMP
		);
		CREATE TABLE pois (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			session_id TEXT NOT NULL,
			candidate_id INTEGER NOT NULL,
			name TEXT NOT NULL,
			lat REAL, lng REAL,
			verdict TEXT NOT NULL,
			confidence REAL NOT NULL DEFAULT 0,
			rationale TEXT, note TEXT,
			flags TEXT NOT NULL DEFAULT '[]',
			day_number INTEGER, stop_order INTEGER
		);
		CREATE TABLE itinerary_days (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			session_id TEXT NOT NULL,
			day_number INTEGER NOT NULL,
			date TEXT,
			travel_km REAL NOT NULL DEFAULT 0
		);
	`)
	if err != nil {
		t.Fatal(err)
	}
	return db
}

// TestFullPipeline runs the whole planning flow offline: candidates come
// from the built-in catalog, verification fails open without an LLM backend,
// the geocoder resolves against city centres, and the exporter writes a real
// PDF into a temp directory.
func TestFullPipeline(t *testing.T) {
	ctx := context.Background()
	db := setupDB(t)

	repo := planner.NewSessionRepository(db)
	source := social.NewMockSource()
	verifier := verify.NewVerifier(nil, source)

	artifacts, err := storage.NewArtifactStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}

	orchestrator := planner.NewOrchestrator(
		repo, source, geo.NewCityGeocoder(), verifier, export.NewExporter(artifacts), nil)
	runner := planner.NewRunner(orchestrator)

	session, err := planner.NewSession("Tokyo",
		time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2026, 4, 3, 0, 0, 0, 0, time.UTC),
		[]poi.Persona{poi.PersonaFoodie, poi.PersonaPhotography},
		poi.Constraints{}, 4)
	if err != nil {
		t.Fatal(err)
	}
	if err := repo.Create(ctx, session); err != nil {
		t.Fatal(err)
	}

	runner.Start(session)
	runner.Wait()

	final, err := repo.Get(ctx, session.ID)
	if err != nil {
		t.Fatal(err)
	}
	if final.Stage != planner.StageCompleted {
		t.Fatalf("stage = %s (%s), want completed", final.Stage, final.ErrorDetail)
	}
	if final.TotalScraped == 0 || final.TotalIncluded == 0 {
		t.Errorf("counters = scraped %d included %d", final.TotalScraped, final.TotalIncluded)
	}
	if final.CompletedAt == nil {
		t.Error("expected completed_at to be set")
	}

	// Offline verification includes everything with a caution flag.
	result, err := repo.Result(ctx, session.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(result.Days) != 3 {
		t.Fatalf("got %d days, want 3", len(result.Days))
	}
	totalStops := 0
	for _, day := range result.Days {
		if len(day.Stops) > 4 {
			t.Errorf("day %d over capacity with %d stops", day.DayNumber, len(day.Stops))
		}
		totalStops += len(day.Stops)
		for _, stop := range day.Stops {
			if stop.Verdict != poi.VerdictInclude {
				t.Errorf("stop %q has verdict %s", stop.Name, stop.Verdict)
			}
		}
	}
	if totalStops == 0 {
		t.Fatal("itinerary has no stops")
	}

	// Export artifacts were produced.
	if !strings.HasSuffix(final.DocumentURL, ".pdf") {
		t.Errorf("document url = %q", final.DocumentURL)
	}
	name := strings.TrimPrefix(final.DocumentURL, "/outputs/")
	if !artifacts.Exists(name) {
		t.Errorf("artifact %q not written", name)
	}
	if totalStops >= 2 && !strings.HasPrefix(final.MapURL, "https://www.google.com/maps/dir/") {
		t.Errorf("map url = %q", final.MapURL)
	}
}

// TestFullPipelineRerunsAreIsolated runs two sessions back to back and checks
// they do not share state.
func TestFullPipelineRerunsAreIsolated(t *testing.T) {
	ctx := context.Background()
	db := setupDB(t)

	repo := planner.NewSessionRepository(db)
	source := social.NewMockSource()
	verifier := verify.NewVerifier(nil, source)
	artifacts, err := storage.NewArtifactStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	orchestrator := planner.NewOrchestrator(
		repo, source, geo.NewCityGeocoder(), verifier, export.NewExporter(artifacts), nil)
	runner := planner.NewRunner(orchestrator)

	var ids []string
	for _, dest := range []string{"Kyoto", "Osaka"} {
		s, err := planner.NewSession(dest,
			time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC),
			time.Date(2026, 5, 2, 0, 0, 0, 0, time.UTC),
			[]poi.Persona{poi.PersonaChilling}, poi.Constraints{}, 3)
		if err != nil {
			t.Fatal(err)
		}
		if err := repo.Create(ctx, s); err != nil {
			t.Fatal(err)
		}
		runner.Start(s)
		ids = append(ids, s.ID)
	}
	runner.Wait()

	for _, id := range ids {
		final, err := repo.Get(ctx, id)
		if err != nil {
			t.Fatal(err)
		}
		if final.Stage != planner.StageCompleted {
			t.Errorf("session %s stage = %s (%s)", id, final.Stage, final.ErrorDetail)
		}
		result, err := repo.Result(ctx, id)
		if err != nil {
			t.Fatal(err)
		}
		for _, day := range result.Days {
			if len(day.Stops) > 3 {
				t.Errorf("session %s day %d over capacity", id, day.DayNumber)
			}
		}
	}
}
