package api

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	_ "modernc.org/sqlite"

	"ai-trip-planner/internal/planner"
	"ai-trip-planner/internal/poi"
)

type fakeStarter struct {
	started   []string
	cancelled []string
}

func (f *fakeStarter) Start(s *planner.Session) {
	f.started = append(f.started, s.ID)
}

func (f *fakeStarter) Cancel(sessionID string) bool {
	f.cancelled = append(f.cancelled, sessionID)
	return true
}

func newTestAPI(t *testing.T) (*gin.Engine, *planner.SessionRepository, *fakeStarter) {
	t.Helper()
	gin.SetMode(gin.TestMode)

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

	repo := planner.NewSessionRepository(db)
	starter := &fakeStarter{}
	server := NewServer(repo, starter, nil)

	r := gin.New()
	v1 := r.Group("/api/v1")
	v1.POST("/plan", server.CreatePlan)
	v1.GET("/plan/:id/status", server.PlanStatus)
	v1.GET("/plan/:id/result", server.PlanResult)
	v1.DELETE("/plan/:id", server.CancelPlan)

	return r, repo, starter
}

func postPlan(t *testing.T, r *gin.Engine, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/plan", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestCreatePlan(t *testing.T) {
	r, repo, starter := newTestAPI(t)

	w := postPlan(t, r, `{
		"destination": "Tokyo",
		"start_date": "2026-04-01",
		"end_date": "2026-04-03",
		"personas": ["foodie", "photography"],
		"constraints": {"allergies": ["shellfish"], "budget": "mid-range"},
		"max_pois_per_day": 4
	}`)

	if w.Code != http.StatusAccepted {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}

	var resp struct {
		SessionID string `json:"session_id"`
		Stage     string `json:"stage"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Stage != "pending" {
		t.Errorf("stage = %q", resp.Stage)
	}
	if len(starter.started) != 1 || starter.started[0] != resp.SessionID {
		t.Errorf("started = %v", starter.started)
	}

	s, err := repo.Get(context.Background(), resp.SessionID)
	if err != nil {
		t.Fatalf("session not persisted: %v", err)
	}
	if s.Destination != "Tokyo" || s.MaxPerDay != 4 {
		t.Errorf("session = %+v", s)
	}
}

func TestCreatePlanValidation(t *testing.T) {
	r, _, starter := newTestAPI(t)

	cases := map[string]string{
		"missing destination": `{"start_date":"2026-04-01","end_date":"2026-04-02","personas":["foodie"]}`,
		"bad date":            `{"destination":"Tokyo","start_date":"04/01/2026","end_date":"2026-04-02","personas":["foodie"]}`,
		"unknown persona":     `{"destination":"Tokyo","start_date":"2026-04-01","end_date":"2026-04-02","personas":["skydiving"]}`,
		"reversed dates":      `{"destination":"Tokyo","start_date":"2026-04-05","end_date":"2026-04-01","personas":["foodie"]}`,
	}
	for name, body := range cases {
		if w := postPlan(t, r, body); w.Code != http.StatusBadRequest {
			t.Errorf("%s: status = %d", name, w.Code)
		}
	}
	if len(starter.started) != 0 {
		t.Errorf("no pipeline should start on validation failure, got %v", starter.started)
	}
}

func TestPlanStatusNotFound(t *testing.T) {
	r, _, _ := newTestAPI(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/plan/nope/status", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d", w.Code)
	}
}

func createSession(t *testing.T, repo *planner.SessionRepository) *planner.Session {
	t.Helper()
	s, err := planner.NewSession("Kyoto",
		time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2026, 5, 2, 0, 0, 0, 0, time.UTC),
		[]poi.Persona{poi.PersonaChilling}, poi.Constraints{}, 3)
	if err != nil {
		t.Fatal(err)
	}
	if err := repo.Create(context.Background(), s); err != nil {
		t.Fatal(err)
	}
	return s
}

func TestPlanStatusProgress(t *testing.T) {
	r, repo, _ := newTestAPI(t)
	ctx := context.Background()
	s := createSession(t, repo)

	if err := repo.AdvanceStage(ctx, s.ID, planner.StageScraping); err != nil {
		t.Fatal(err)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/plan/"+s.ID+"/status", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var resp struct {
		Stage           string `json:"stage"`
		ProgressMessage string `json:"progress_message"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Stage != "scraping" {
		t.Errorf("stage = %q", resp.Stage)
	}
	if resp.ProgressMessage == "" {
		t.Error("expected a progress message")
	}
}

func TestPlanStatusFailedIncludesDetail(t *testing.T) {
	r, repo, _ := newTestAPI(t)
	ctx := context.Background()
	s := createSession(t, repo)
	if err := repo.MarkFailed(ctx, s.ID, "no viable destinations"); err != nil {
		t.Fatal(err)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/plan/"+s.ID+"/status", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	var resp struct {
		ProgressMessage string `json:"progress_message"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.ProgressMessage != "Planning failed: no viable destinations" {
		t.Errorf("message = %q", resp.ProgressMessage)
	}
}

func TestPlanResultWhileRunning(t *testing.T) {
	r, repo, _ := newTestAPI(t)
	s := createSession(t, repo)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/plan/"+s.ID+"/result", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusAccepted {
		t.Errorf("status = %d, want 202 while in progress", w.Code)
	}
}

func TestPlanResultCompleted(t *testing.T) {
	r, repo, _ := newTestAPI(t)
	ctx := context.Background()
	s := createSession(t, repo)

	days := []poi.ItineraryDay{{
		Index:    1,
		TravelKm: 2.5,
		Stops: []poi.Verified{{
			Candidate: poi.Candidate{
				ID: 1, Name: "Fushimi Inari",
				Coords: &poi.Coordinates{Lat: 34.9671, Lng: 135.7727},
			},
			Verdict:    poi.VerdictInclude,
			Confidence: 0.9,
		}},
	}}
	if err := repo.SaveItinerary(ctx, s, days); err != nil {
		t.Fatal(err)
	}
	for _, stage := range []planner.Stage{planner.StageScraping, planner.StageVerifying, planner.StageRouting, planner.StageExporting} {
		if err := repo.AdvanceStage(ctx, s.ID, stage); err != nil {
			t.Fatal(err)
		}
	}
	if err := repo.SetArtifacts(ctx, s.ID, "/outputs/itinerary_test.pdf", "https://maps.example/x"); err != nil {
		t.Fatal(err)
	}
	if err := repo.MarkCompleted(ctx, s.ID); err != nil {
		t.Fatal(err)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/plan/"+s.ID+"/result", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	var resp struct {
		Days []struct {
			DayNumber int `json:"day_number"`
			Stops     []struct {
				Name string `json:"name"`
			} `json:"stops"`
		} `json:"days"`
		DocumentURL string `json:"document_url"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if len(resp.Days) != 1 || len(resp.Days[0].Stops) != 1 || resp.Days[0].Stops[0].Name != "Fushimi Inari" {
		t.Errorf("days = %+v", resp.Days)
	}
	if resp.DocumentURL != "/outputs/itinerary_test.pdf" {
		t.Errorf("document_url = %q", resp.DocumentURL)
	}
}

func TestCancelPlan(t *testing.T) {
	r, repo, starter := newTestAPI(t)
	s := createSession(t, repo)

	req := httptest.NewRequest(http.MethodDelete, "/api/v1/plan/"+s.ID, nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if len(starter.cancelled) != 1 || starter.cancelled[0] != s.ID {
		t.Errorf("cancelled = %v", starter.cancelled)
	}
	if _, err := repo.Get(context.Background(), s.ID); err == nil {
		t.Error("session should be deleted after cancel")
	}
}
