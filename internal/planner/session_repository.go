package planner

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"ai-trip-planner/internal/poi"
)

// ErrSessionNotFound is returned when a lookup misses.
var ErrSessionNotFound = errors.New("planning session not found")

// ErrStaleTransition is returned when a stage write is rejected because the
// session is already terminal or gone. Pipeline goroutines treat it as a
// cancellation signal and stop writing.
var ErrStaleTransition = errors.New("stage transition rejected")

const dateLayout = "2006-01-02"

// SessionRepository handles persistence of planning sessions, their POIs and
// itinerary days. All writes for one session come from a single pipeline
// goroutine, so per-session writes are serialized by construction; the stage
// guard below additionally rejects writes that race a delete or a terminal
// transition.
type SessionRepository struct {
	db *sql.DB
}

// NewSessionRepository creates a new SessionRepository.
func NewSessionRepository(db *sql.DB) *SessionRepository {
	return &SessionRepository{db: db}
}

// Create inserts a new session record.
func (r *SessionRepository) Create(ctx context.Context, s *Session) error {
	personas, err := json.Marshal(s.Personas)
	if err != nil {
		return fmt.Errorf("failed to marshal personas: %w", err)
	}
	constraints, err := json.Marshal(s.Constraints)
	if err != nil {
		return fmt.Errorf("failed to marshal constraints: %w", err)
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO planning_sessions (
			id, destination, start_date, end_date, personas, constraints,
			max_per_day, stage, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		s.ID, s.Destination,
		s.StartDate.Format(dateLayout), s.EndDate.Format(dateLayout),
		string(personas), string(constraints),
		s.MaxPerDay, string(s.Stage), s.CreatedAt, s.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}
	return nil
}

// Get retrieves a session by ID.
func (r *SessionRepository) Get(ctx context.Context, id string) (*Session, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, destination, start_date, end_date, personas, constraints,
		       max_per_day, stage, error_detail, total_scraped, total_verified,
		       total_included, document_url, map_url, created_at, updated_at,
		       completed_at
		FROM planning_sessions WHERE id = ?`, id)

	var (
		s                        Session
		startDate, endDate       string
		personas, constraints    string
		errDetail, docURL, mapUL sql.NullString
		completedAt              sql.NullTime
	)
	err := row.Scan(
		&s.ID, &s.Destination, &startDate, &endDate, &personas, &constraints,
		&s.MaxPerDay, (*string)(&s.Stage), &errDetail, &s.TotalScraped,
		&s.TotalVerified, &s.TotalIncluded, &docURL, &mapUL,
		&s.CreatedAt, &s.UpdatedAt, &completedAt,
	)
	if err == sql.ErrNoRows {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}

	if s.StartDate, err = time.Parse(dateLayout, startDate); err != nil {
		return nil, fmt.Errorf("corrupt start date %q: %w", startDate, err)
	}
	if s.EndDate, err = time.Parse(dateLayout, endDate); err != nil {
		return nil, fmt.Errorf("corrupt end date %q: %w", endDate, err)
	}
	if err := json.Unmarshal([]byte(personas), &s.Personas); err != nil {
		return nil, fmt.Errorf("corrupt personas: %w", err)
	}
	if err := json.Unmarshal([]byte(constraints), &s.Constraints); err != nil {
		return nil, fmt.Errorf("corrupt constraints: %w", err)
	}
	s.ErrorDetail = errDetail.String
	s.DocumentURL = docURL.String
	s.MapURL = mapUL.String
	if completedAt.Valid {
		t := completedAt.Time
		s.CompletedAt = &t
	}
	return &s, nil
}

// AdvanceStage moves a session to the next stage. The write is guarded so a
// session that is already terminal (or deleted) is never revived; in that
// case ErrStaleTransition is returned and the caller stops its pipeline.
func (r *SessionRepository) AdvanceStage(ctx context.Context, id string, to Stage) error {
	current, err := r.currentStage(ctx, id)
	if err != nil {
		return err
	}
	if !CanTransition(current, to) {
		return fmt.Errorf("%w: %s -> %s", ErrStaleTransition, current, to)
	}

	res, err := r.db.ExecContext(ctx, `
		UPDATE planning_sessions SET stage = ?, updated_at = ?
		WHERE id = ? AND stage = ?`,
		string(to), time.Now().UTC(), id, string(current),
	)
	if err != nil {
		return fmt.Errorf("failed to advance stage: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: session %s changed concurrently", ErrStaleTransition, id)
	}
	return nil
}

// MarkFailed transitions a session into the terminal failed state with a
// human-readable detail. Already-terminal sessions are left untouched.
func (r *SessionRepository) MarkFailed(ctx context.Context, id, detail string) error {
	now := time.Now().UTC()
	res, err := r.db.ExecContext(ctx, `
		UPDATE planning_sessions
		SET stage = ?, error_detail = ?, updated_at = ?, completed_at = ?
		WHERE id = ? AND stage NOT IN (?, ?)`,
		string(StageFailed), detail, now, now,
		id, string(StageCompleted), string(StageFailed),
	)
	if err != nil {
		return fmt.Errorf("failed to mark session failed: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrStaleTransition
	}
	return nil
}

// MarkCompleted finishes a session, recording its completion time.
func (r *SessionRepository) MarkCompleted(ctx context.Context, id string) error {
	now := time.Now().UTC()
	res, err := r.db.ExecContext(ctx, `
		UPDATE planning_sessions
		SET stage = ?, updated_at = ?, completed_at = ?
		WHERE id = ? AND stage = ?`,
		string(StageCompleted), now, now, id, string(StageExporting),
	)
	if err != nil {
		return fmt.Errorf("failed to complete session: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrStaleTransition
	}
	return nil
}

// UpdateCounters records pipeline statistics as stages report them.
func (r *SessionRepository) UpdateCounters(ctx context.Context, id string, scraped, verified, included int) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE planning_sessions
		SET total_scraped = ?, total_verified = ?, total_included = ?, updated_at = ?
		WHERE id = ?`,
		scraped, verified, included, time.Now().UTC(), id,
	)
	if err != nil {
		return fmt.Errorf("failed to update counters: %w", err)
	}
	return nil
}

// SetArtifacts attaches export artifact URLs to a session.
func (r *SessionRepository) SetArtifacts(ctx context.Context, id, documentURL, mapURL string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE planning_sessions SET document_url = ?, map_url = ?, updated_at = ?
		WHERE id = ?`,
		documentURL, mapURL, time.Now().UTC(), id,
	)
	if err != nil {
		return fmt.Errorf("failed to set artifacts: %w", err)
	}
	return nil
}

// SaveItinerary persists the optimizer's day partition for a session in one
// transaction: day rows plus ordered POI rows.
func (r *SessionRepository) SaveItinerary(ctx context.Context, s *Session, days []poi.ItineraryDay) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, day := range days {
		date := s.StartDate.AddDate(0, 0, day.Index-1).Format(dateLayout)
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO itinerary_days (session_id, day_number, date, travel_km)
			VALUES (?, ?, ?, ?)`,
			s.ID, day.Index, date, day.TravelKm,
		); err != nil {
			return fmt.Errorf("failed to insert day %d: %w", day.Index, err)
		}

		for order, stop := range day.Stops {
			flags, err := json.Marshal(stop.Flags)
			if err != nil {
				return fmt.Errorf("failed to marshal flags: %w", err)
			}
			coords := stop.Candidate.Coords
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO pois (
					session_id, candidate_id, name, lat, lng, verdict,
					confidence, rationale, note, flags, day_number, stop_order
				) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
				s.ID, stop.Candidate.ID, stop.Candidate.Name,
				coords.Lat, coords.Lng, string(stop.Verdict),
				stop.Confidence, stop.Rationale, stop.Note, string(flags),
				day.Index, order+1,
			); err != nil {
				return fmt.Errorf("failed to insert poi %q: %w", stop.Candidate.Name, err)
			}
		}
	}

	return tx.Commit()
}

// Result assembles the stable result shape: the session record plus its
// ordered day records with POI summaries.
func (r *SessionRepository) Result(ctx context.Context, id string) (*Result, error) {
	s, err := r.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	dayRows, err := r.db.QueryContext(ctx, `
		SELECT day_number, date, travel_km FROM itinerary_days
		WHERE session_id = ? ORDER BY day_number`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to query itinerary days: %w", err)
	}
	defer dayRows.Close()

	var days []DaySummary
	byNumber := make(map[int]int)
	for dayRows.Next() {
		var (
			d    DaySummary
			date sql.NullString
		)
		if err := dayRows.Scan(&d.DayNumber, &date, &d.TravelKm); err != nil {
			return nil, fmt.Errorf("failed to scan day: %w", err)
		}
		d.Date = date.String
		byNumber[d.DayNumber] = len(days)
		days = append(days, d)
	}
	if err := dayRows.Err(); err != nil {
		return nil, err
	}

	poiRows, err := r.db.QueryContext(ctx, `
		SELECT name, lat, lng, verdict, confidence, rationale, note, flags,
		       day_number, stop_order
		FROM pois WHERE session_id = ? AND day_number IS NOT NULL
		ORDER BY day_number, stop_order`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to query pois: %w", err)
	}
	defer poiRows.Close()

	for poiRows.Next() {
		var (
			stop            StopSummary
			rationale, note sql.NullString
			flags           string
			dayNumber       int
		)
		if err := poiRows.Scan(
			&stop.Name, &stop.Coords.Lat, &stop.Coords.Lng,
			(*string)(&stop.Verdict), &stop.Confidence, &rationale, &note,
			&flags, &dayNumber, &stop.StopOrder,
		); err != nil {
			return nil, fmt.Errorf("failed to scan poi: %w", err)
		}
		stop.Rationale = rationale.String
		stop.Note = note.String
		if err := json.Unmarshal([]byte(flags), &stop.Flags); err != nil {
			return nil, fmt.Errorf("corrupt flags: %w", err)
		}
		if idx, ok := byNumber[dayNumber]; ok {
			days[idx].Stops = append(days[idx].Stops, stop)
		}
	}
	if err := poiRows.Err(); err != nil {
		return nil, err
	}

	return &Result{Session: s, Days: days}, nil
}

// Delete purges a session and everything it owns.
func (r *SessionRepository) Delete(ctx context.Context, id string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	// Child rows first: cascading deletes require a pragma that not every
	// sqlite connection enables.
	for _, table := range []string{"pois", "itinerary_days"} {
		if _, err := tx.ExecContext(ctx,
			fmt.Sprintf("DELETE FROM %s WHERE session_id = ?", table), id); err != nil {
			return fmt.Errorf("failed to delete from %s: %w", table, err)
		}
	}
	res, err := tx.ExecContext(ctx, "DELETE FROM planning_sessions WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrSessionNotFound
	}
	return tx.Commit()
}

func (r *SessionRepository) currentStage(ctx context.Context, id string) (Stage, error) {
	var stage string
	err := r.db.QueryRowContext(ctx,
		"SELECT stage FROM planning_sessions WHERE id = ?", id).Scan(&stage)
	if err == sql.ErrNoRows {
		return "", ErrSessionNotFound
	}
	if err != nil {
		return "", fmt.Errorf("failed to read stage: %w", err)
	}
	return Stage(stage), nil
}
