package planner

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"ai-trip-planner/internal/poi"
)

// Stage is a planning session's position in the pipeline.
type Stage string

const (
	StagePending   Stage = "pending"
	StageScraping  Stage = "scraping"
	StageVerifying Stage = "verifying"
	StageRouting   Stage = "routing"
	StageExporting Stage = "exporting"
	StageCompleted Stage = "completed"
	StageFailed    Stage = "failed"
)

// stageRank orders the forward path. Transitions are monotonic and
// one-directional; only the failed state is reachable out of order.
var stageRank = map[Stage]int{
	StagePending:   0,
	StageScraping:  1,
	StageVerifying: 2,
	StageRouting:   3,
	StageExporting: 4,
	StageCompleted: 5,
}

// Terminal reports whether no further transition is possible.
func (s Stage) Terminal() bool {
	return s == StageCompleted || s == StageFailed
}

// CanTransition reports whether from -> to is a legal stage transition:
// exactly one step forward along the pipeline, or into failed from any
// non-terminal stage.
func CanTransition(from, to Stage) bool {
	if from.Terminal() {
		return false
	}
	if to == StageFailed {
		return true
	}
	fromRank, ok1 := stageRank[from]
	toRank, ok2 := stageRank[to]
	return ok1 && ok2 && toRank == fromRank+1
}

// ErrNoViableDestinations is the session-terminal outcome when zero POIs
// survive verification filtering. It is a legitimate business result, not an
// internal error; the pipeline wraps it with the specific cause.
var ErrNoViableDestinations = errors.New("no viable destinations")

// Session is one planning request's lifecycle record.
type Session struct {
	ID          string          `json:"session_id"`
	Destination string          `json:"destination"`
	StartDate   time.Time       `json:"start_date"`
	EndDate     time.Time       `json:"end_date"`
	Personas    []poi.Persona   `json:"personas"`
	Constraints poi.Constraints `json:"constraints"`
	MaxPerDay   int             `json:"max_pois_per_day"`

	Stage       Stage  `json:"stage"`
	ErrorDetail string `json:"error_detail,omitempty"`

	TotalScraped  int `json:"total_scraped"`
	TotalVerified int `json:"total_verified"`
	TotalIncluded int `json:"total_included"`

	DocumentURL string `json:"document_url,omitempty"`
	MapURL      string `json:"map_url,omitempty"`

	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// NewSession validates the request parameters and builds a pending session.
func NewSession(destination string, start, end time.Time, personas []poi.Persona, constraints poi.Constraints, maxPerDay int) (*Session, error) {
	if destination == "" {
		return nil, fmt.Errorf("destination must not be empty")
	}
	if end.Before(start) {
		return nil, fmt.Errorf("end date %s is before start date %s",
			end.Format("2006-01-02"), start.Format("2006-01-02"))
	}
	if len(personas) == 0 {
		return nil, fmt.Errorf("select at least one travel style")
	}
	for _, p := range personas {
		if _, ok := poi.ParsePersona(string(p)); !ok {
			return nil, fmt.Errorf("unknown persona %q", p)
		}
	}
	if maxPerDay < 1 {
		return nil, fmt.Errorf("max POIs per day must be positive, got %d", maxPerDay)
	}

	now := time.Now().UTC()
	return &Session{
		ID:          uuid.NewString(),
		Destination: destination,
		StartDate:   start,
		EndDate:     end,
		Personas:    personas,
		Constraints: constraints,
		MaxPerDay:   maxPerDay,
		Stage:       StagePending,
		CreatedAt:   now,
		UpdatedAt:   now,
	}, nil
}

// Days returns the inclusive day count of the session's date range.
func (s *Session) Days() int {
	return int(s.EndDate.Sub(s.StartDate).Hours()/24) + 1
}

// StopSummary is the stable per-stop shape a result query returns.
type StopSummary struct {
	Name       string          `json:"name"`
	Coords     poi.Coordinates `json:"coords"`
	Verdict    poi.Verdict     `json:"verdict"`
	Confidence float64         `json:"confidence"`
	Rationale  string          `json:"rationale,omitempty"`
	Note       string          `json:"note,omitempty"`
	Flags      []poi.Flag      `json:"flags,omitempty"`
	StopOrder  int             `json:"stop_order"`
}

// DaySummary is one day record in a session result.
type DaySummary struct {
	DayNumber int           `json:"day_number"`
	Date      string        `json:"date,omitempty"`
	TravelKm  float64       `json:"travel_km"`
	Stops     []StopSummary `json:"stops"`
}

// Result is the persisted state shape returned for a session: the session
// record plus its ordered day records. Once a session completes this shape
// does not change.
type Result struct {
	Session *Session     `json:"session"`
	Days    []DaySummary `json:"days,omitempty"`
}
