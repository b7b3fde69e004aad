package planner

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"time"

	"ai-trip-planner/internal/geo"
	"ai-trip-planner/internal/optimizer"
	"ai-trip-planner/internal/poi"
	"ai-trip-planner/internal/shared"
	"ai-trip-planner/internal/social"
)

// Exporter renders a finished itinerary into shareable artifacts and returns
// their URLs.
type Exporter interface {
	Export(ctx context.Context, s *Session, days []poi.ItineraryDay) (documentURL, mapURL string, err error)
}

// MetricsRecorder receives per-session pipeline timings and per-agent token
// usage. Recording failures are non-fatal; the orchestrator logs and
// continues.
type MetricsRecorder interface {
	RecordStage(ctx context.Context, sessionID, stage string, duration time.Duration, success bool) error
	RecordMeta(ctx context.Context, sessionID string, meta shared.AgentMeta) error
}

// Orchestrator drives one planning session through the full pipeline:
// scraping, verification, routing and export. Each stage is persisted before
// its work begins, so a crash leaves the session showing the stage that was
// in flight.
type Orchestrator struct {
	repo     *SessionRepository
	source   social.Source
	geocoder geo.Resolver
	verifier Verifier
	exporter Exporter
	metrics  MetricsRecorder
}

// Verifier is the subset of the verification engine the orchestrator needs.
type Verifier interface {
	VerifyAll(ctx context.Context, cands []poi.Candidate, personas []poi.Persona, constraints poi.Constraints, start, end time.Time) ([]poi.Verified, []shared.AgentMeta)
}

// NewOrchestrator wires the pipeline. exporter and metrics may be nil; export
// then degrades to no artifacts and timings are not recorded.
func NewOrchestrator(repo *SessionRepository, source social.Source, geocoder geo.Resolver, verifier Verifier, exporter Exporter, metrics MetricsRecorder) *Orchestrator {
	return &Orchestrator{
		repo:     repo,
		source:   source,
		geocoder: geocoder,
		verifier: verifier,
		exporter: exporter,
		metrics:  metrics,
	}
}

// minCandidates is the threshold below which scraping retries once with
// broadened queries: twice the day count, floored at four.
func minCandidates(days int) int {
	if n := days * 2; n > 4 {
		return n
	}
	return 4
}

// Run executes the whole pipeline for a session. It is the only writer for
// the session while running. A context cancellation stops the pipeline
// between stages; stage-guard rejections mean the session was deleted or
// failed externally, and the pipeline stops without further writes.
func (o *Orchestrator) Run(ctx context.Context, s *Session) {
	if err := o.run(ctx, s); err != nil {
		if errors.Is(err, ErrStaleTransition) || errors.Is(err, ErrSessionNotFound) {
			log.Printf("session %s: pipeline stopped: %v", s.ID, err)
			return
		}
		if errors.Is(err, context.Canceled) {
			log.Printf("session %s: cancelled", s.ID)
			return
		}
		log.Printf("session %s: pipeline failed: %v", s.ID, err)
		if markErr := o.repo.MarkFailed(context.Background(), s.ID, err.Error()); markErr != nil {
			log.Printf("session %s: failed to record failure: %v", s.ID, markErr)
		}
	}
}

func (o *Orchestrator) run(ctx context.Context, s *Session) error {
	candidates, err := o.scrape(ctx, s)
	if err != nil {
		return err
	}

	verified, err := o.verify(ctx, s, candidates)
	if err != nil {
		return err
	}

	days, err := o.route(ctx, s, verified)
	if err != nil {
		return err
	}

	if err := o.export(ctx, s, days); err != nil {
		return err
	}

	return o.repo.MarkCompleted(ctx, s.ID)
}

// scrape gathers candidates from the content source, geocoding any that
// arrive without coordinates. When the first pass returns too few candidates
// it retries once with broadened queries and merges the results.
func (o *Orchestrator) scrape(ctx context.Context, s *Session) ([]poi.Candidate, error) {
	if err := o.repo.AdvanceStage(ctx, s.ID, StageScraping); err != nil {
		return nil, err
	}
	started := time.Now()

	candidates, err := o.source.Search(ctx, s.Destination, s.Personas, false)
	if err != nil {
		o.recordStage(s.ID, "scraping", started, false)
		return nil, fmt.Errorf("scraping failed: %w", err)
	}

	if len(candidates) < minCandidates(s.Days()) {
		log.Printf("session %s: only %d candidates, retrying with broad queries", s.ID, len(candidates))
		broad, err := o.source.Search(ctx, s.Destination, s.Personas, true)
		if err != nil {
			log.Printf("session %s: broad retry failed: %v", s.ID, err)
		} else {
			candidates = mergeCandidates(candidates, broad)
		}
	}

	// Candidate IDs come from heterogeneous sources; renumber by position so
	// downstream ID-based tie-breaks are well defined.
	for i := range candidates {
		candidates[i].ID = i + 1
	}

	o.geocode(ctx, s.Destination, candidates)

	if err := o.repo.UpdateCounters(ctx, s.ID, len(candidates), 0, 0); err != nil {
		return nil, err
	}
	o.recordStage(s.ID, "scraping", started, true)
	return candidates, nil
}

// geocode fills in coordinates for candidates that arrived without them.
// Unresolvable candidates keep nil coordinates and are dropped from routing
// later; they still appear in verification counts.
func (o *Orchestrator) geocode(ctx context.Context, destination string, candidates []poi.Candidate) {
	if o.geocoder == nil {
		return
	}
	for i := range candidates {
		if candidates[i].Coords != nil {
			continue
		}
		text := destination + " " + candidates[i].Name
		if candidates[i].Address != "" {
			text += " " + candidates[i].Address
		}
		if coords, ok := o.geocoder.Resolve(ctx, text); ok {
			c := coords
			candidates[i].Coords = &c
		}
	}
}

func (o *Orchestrator) verify(ctx context.Context, s *Session, candidates []poi.Candidate) ([]poi.Verified, error) {
	if err := o.repo.AdvanceStage(ctx, s.ID, StageVerifying); err != nil {
		return nil, err
	}
	started := time.Now()

	verified, metas := o.verifier.VerifyAll(ctx, candidates, s.Personas, s.Constraints, s.StartDate, s.EndDate)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	for _, m := range metas {
		if m.Usage.TotalTokens > 0 {
			log.Printf("session %s: %s used %d tokens in %s", s.ID, m.AgentName, m.Usage.TotalTokens, m.Latency)
		}
		o.recordMeta(s.ID, m)
	}

	included := 0
	for _, v := range verified {
		if v.Verdict == poi.VerdictInclude {
			included++
		}
	}
	if err := o.repo.UpdateCounters(ctx, s.ID, len(candidates), len(verified), included); err != nil {
		return nil, err
	}
	o.recordStage(s.ID, "verifying", started, true)
	return verified, nil
}

func (o *Orchestrator) route(ctx context.Context, s *Session, verified []poi.Verified) ([]poi.ItineraryDay, error) {
	if err := o.repo.AdvanceStage(ctx, s.ID, StageRouting); err != nil {
		return nil, err
	}
	started := time.Now()

	routable := make([]poi.Verified, 0, len(verified))
	for _, v := range verified {
		if v.Routable() {
			routable = append(routable, v)
		}
	}
	if len(routable) == 0 {
		o.recordStage(s.ID, "routing", started, false)
		if len(verified) == 0 {
			return nil, fmt.Errorf("%w: no candidates were found for this destination", ErrNoViableDestinations)
		}
		return nil, fmt.Errorf("%w: every candidate was excluded during verification", ErrNoViableDestinations)
	}

	days := s.Days()
	routable = capByConfidence(routable, days*s.MaxPerDay)

	itinerary, err := optimizer.Optimize(routable, days, s.MaxPerDay)
	if err != nil {
		o.recordStage(s.ID, "routing", started, false)
		return nil, fmt.Errorf("routing failed: %w", err)
	}

	if err := o.repo.SaveItinerary(ctx, s, itinerary); err != nil {
		return nil, err
	}
	o.recordStage(s.ID, "routing", started, true)
	return itinerary, nil
}

func (o *Orchestrator) export(ctx context.Context, s *Session, days []poi.ItineraryDay) error {
	if err := o.repo.AdvanceStage(ctx, s.ID, StageExporting); err != nil {
		return err
	}
	started := time.Now()

	if o.exporter == nil {
		return nil
	}
	docURL, mapURL, err := o.exporter.Export(ctx, s, days)
	if err != nil {
		// Export problems never fail a planned trip; the itinerary is
		// already persisted.
		log.Printf("session %s: export degraded: %v", s.ID, err)
		o.recordStage(s.ID, "exporting", started, false)
		return nil
	}
	if err := o.repo.SetArtifacts(ctx, s.ID, docURL, mapURL); err != nil {
		return err
	}
	o.recordStage(s.ID, "exporting", started, true)
	return nil
}

func (o *Orchestrator) recordStage(sessionID, stage string, started time.Time, success bool) {
	if o.metrics == nil {
		return
	}
	if err := o.metrics.RecordStage(context.Background(), sessionID, stage, time.Since(started), success); err != nil {
		log.Printf("session %s: metrics recording failed: %v", sessionID, err)
	}
}

func (o *Orchestrator) recordMeta(sessionID string, meta shared.AgentMeta) {
	if o.metrics == nil {
		return
	}
	if err := o.metrics.RecordMeta(context.Background(), sessionID, meta); err != nil {
		log.Printf("session %s: metrics recording failed: %v", sessionID, err)
	}
}

// mergeCandidates appends broad-search results that are not already present,
// matching by name.
func mergeCandidates(base, extra []poi.Candidate) []poi.Candidate {
	seen := make(map[string]bool, len(base))
	for _, c := range base {
		seen[c.Name] = true
	}
	for _, c := range extra {
		if seen[c.Name] {
			continue
		}
		seen[c.Name] = true
		base = append(base, c)
	}
	return base
}

// capByConfidence trims the routable set to the itinerary's capacity, keeping
// the highest-confidence POIs. Ties keep the lower ID.
func capByConfidence(pois []poi.Verified, capacity int) []poi.Verified {
	if len(pois) <= capacity {
		return pois
	}
	sorted := make([]poi.Verified, len(pois))
	copy(sorted, pois)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].Confidence != sorted[j].Confidence {
			return sorted[i].Confidence > sorted[j].Confidence
		}
		return sorted[i].Candidate.ID < sorted[j].Candidate.ID
	})
	return sorted[:capacity]
}
