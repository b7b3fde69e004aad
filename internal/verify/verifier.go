package verify

import (
	"bytes"
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"strings"
	"text/template"
	"time"

	"golang.org/x/sync/errgroup"

	"ai-trip-planner/internal/llm"
	"ai-trip-planner/internal/poi"
	"ai-trip-planner/internal/shared"
	"ai-trip-planner/internal/social"
)

//go:embed verify_prompt.md
var verifyPrompt string

const (
	// evidenceLimit caps how many recent posts are gathered per candidate.
	evidenceLimit = 5

	agentName = "Verifier"
)

var personaHints = map[poi.Persona]string{
	poi.PersonaPhotography: "scenic views, good lighting, Instagram-worthy spots, unique architecture",
	poi.PersonaChilling:    "relaxed atmosphere, cafes, parks, low-key hangouts, peaceful vibes",
	poi.PersonaFoodie:      "authentic cuisine, local specialties, interesting dining experiences",
	poi.PersonaExercise:    "hiking, outdoor activities, sports facilities, wellness centres",
}

// Request bundles everything the engine needs to verify one candidate.
type Request struct {
	Candidate   poi.Candidate
	Personas    []poi.Persona
	Constraints poi.Constraints
	StartDate   time.Time
	EndDate     time.Time
}

// Verifier gathers recent evidence for each candidate and asks the reasoning
// backend for an include/exclude verdict. Every failure mode degrades to a
// fail-open verdict: lack of data or a broken backend must never block an
// itinerary, and one candidate's failure never propagates past its own
// result.
type Verifier struct {
	textGen llm.TextGenerator
	source  social.Source

	// Concurrency limits the verification fan-out; Timeout bounds each
	// backend call.
	Concurrency int
	Timeout     time.Duration
}

// NewVerifier creates a Verifier. textGen may be nil, in which case every
// candidate receives the neutral unverified verdict.
func NewVerifier(textGen llm.TextGenerator, source social.Source) *Verifier {
	return &Verifier{
		textGen:     textGen,
		source:      source,
		Concurrency: 4,
		Timeout:     20 * time.Second,
	}
}

// verdictPayload is the strict-JSON shape the backend must reply with.
type verdictPayload struct {
	IsOpen           *bool   `json:"is_open"`
	StatusConfidence float64 `json:"status_confidence"`
	SeasonalMatch    *bool   `json:"seasonal_match"`
	PersonaScore     float64 `json:"persona_score"`
	Recommendation   string  `json:"recommendation"`
	Reasoning        string  `json:"reasoning"`
	AgentNote        string  `json:"agent_note"`
}

// Verify runs the three-criteria reality check for a single candidate.
func (v *Verifier) Verify(ctx context.Context, req Request) (poi.Verified, shared.AgentMeta) {
	start := time.Now()
	meta := shared.AgentMeta{AgentName: agentName}

	posts := v.gatherEvidence(ctx, req.Candidate.Name)
	if len(posts) == 0 {
		meta.Latency = time.Since(start)
		return failOpen(req.Candidate, poi.FlagNoRecentPosts, 0.3,
			"No recent posts found; including with caution."), meta
	}

	if v.textGen == nil {
		meta.Latency = time.Since(start)
		return failOpen(req.Candidate, poi.FlagUnverified, 0.5,
			"Verification backend not configured; including by default."), meta
	}

	prompt, err := buildPrompt(req, posts)
	if err != nil {
		meta.Latency = time.Since(start)
		return failOpen(req.Candidate, poi.FlagUnverified, 0.5,
			"Verification prompt could not be built; including by default."), meta
	}

	callCtx, cancel := context.WithTimeout(ctx, v.Timeout)
	defer cancel()

	resp, err := v.textGen.GenerateContent(callCtx, prompt)
	meta.Usage = resp.Usage
	meta.Latency = time.Since(start)
	if err != nil {
		return failOpen(req.Candidate, poi.FlagUnverified, 0.5,
			"Verification backend unavailable; including by default."), meta
	}

	payload, err := parseVerdict(resp.Content)
	if err != nil {
		return failOpen(req.Candidate, poi.FlagUnverified, 0.5,
			"Verification response could not be parsed; including by default."), meta
	}

	return assemble(req.Candidate, payload), meta
}

// VerifyAll verifies candidates with bounded parallelism. Outcomes may be
// produced in any order but the returned slice is keyed by candidate position
// so aggregation is deterministic. Per-candidate calls share no mutable
// state: each goroutine writes only its own slot.
func (v *Verifier) VerifyAll(ctx context.Context, cands []poi.Candidate, personas []poi.Persona, constraints poi.Constraints, start, end time.Time) ([]poi.Verified, []shared.AgentMeta) {
	results := make([]poi.Verified, len(cands))
	metas := make([]shared.AgentMeta, len(cands))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(v.Concurrency)

	for i, cand := range cands {
		g.Go(func() error {
			results[i], metas[i] = v.Verify(gctx, Request{
				Candidate:   cand,
				Personas:    personas,
				Constraints: constraints,
				StartDate:   start,
				EndDate:     end,
			})
			return nil
		})
	}
	g.Wait()

	return results, metas
}

func (v *Verifier) gatherEvidence(ctx context.Context, name string) []string {
	posts, err := v.source.RecentPosts(ctx, name, evidenceLimit)
	if err != nil {
		return nil
	}

	texts := make([]string, 0, len(posts))
	for _, p := range posts {
		if p.Content == "" {
			continue
		}
		texts = append(texts, p.Content)
	}
	return texts
}

// assemble combines the backend's three criteria into a final verdict.
// The status criterion overrides everything; seasonality only lowers
// confidence unless it coincides with weak persona alignment.
func assemble(cand poi.Candidate, p verdictPayload) poi.Verified {
	verdict := poi.VerdictInclude
	if strings.EqualFold(p.Recommendation, "EXCLUDE") {
		verdict = poi.VerdictExclude
	}

	var flags []poi.Flag

	if p.IsOpen != nil && !*p.IsOpen {
		verdict = poi.VerdictExclude
		flags = append(flags, poi.FlagClosed)
	}

	offSeason := p.SeasonalMatch != nil && !*p.SeasonalMatch
	if offSeason {
		flags = append(flags, poi.FlagOffSeason)
	}

	if p.PersonaScore < 3.0 {
		flags = append(flags, poi.FlagPersonaMismatch)
		if p.PersonaScore < 2.0 || offSeason {
			verdict = poi.VerdictExclude
		}
	}

	// Persona alignment contributes the dominant share of confidence.
	confidence := 0.7*clamp01(p.PersonaScore/10) + 0.3*clamp01(p.StatusConfidence)
	if offSeason {
		confidence *= 0.8
	}

	return poi.Verified{
		Candidate:  cand,
		Verdict:    verdict,
		Confidence: clamp01(confidence),
		Rationale:  p.Reasoning,
		Note:       p.AgentNote,
		Flags:      flags,
	}
}

func failOpen(cand poi.Candidate, flag poi.Flag, confidence float64, rationale string) poi.Verified {
	return poi.Verified{
		Candidate:  cand,
		Verdict:    poi.VerdictInclude,
		Confidence: confidence,
		Rationale:  rationale,
		Note:       fmt.Sprintf("Limited verification data for %s. Recommend confirming status before visiting.", cand.Name),
		Flags:      []poi.Flag{flag},
	}
}

// parseVerdict decodes the backend reply, tolerating markdown fences the
// model sometimes adds despite instructions.
func parseVerdict(raw string) (verdictPayload, error) {
	raw = strings.TrimSpace(raw)
	if strings.HasPrefix(raw, "```") {
		parts := strings.Split(raw, "```")
		if len(parts) > 1 {
			raw = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(parts[1]), "json"))
		}
	}

	var p verdictPayload
	if err := json.Unmarshal([]byte(raw), &p); err != nil {
		return verdictPayload{}, fmt.Errorf("failed to parse verdict JSON: %w", err)
	}
	return p, nil
}

type promptData struct {
	Name         string
	Personas     string
	PersonaHints string
	StartDate    string
	EndDate      string
	Allergies    string
	Budget       string
	Posts        []string
}

func buildPrompt(req Request, posts []string) (string, error) {
	if len(posts) > evidenceLimit {
		posts = posts[:evidenceLimit]
	}

	names := make([]string, 0, len(req.Personas))
	hints := make([]string, 0, len(req.Personas))
	for _, p := range req.Personas {
		names = append(names, string(p))
		if h, ok := personaHints[p]; ok {
			hints = append(hints, h)
		}
	}
	if len(hints) == 0 {
		hints = append(hints, "general travel experiences")
	}

	tmpl, err := template.New("verify").Funcs(template.FuncMap{
		"inc": func(i int) int { return i + 1 },
	}).Parse(verifyPrompt)
	if err != nil {
		return "", err
	}

	var buf bytes.Buffer
	err = tmpl.Execute(&buf, promptData{
		Name:         req.Candidate.Name,
		Personas:     strings.Join(names, " & "),
		PersonaHints: strings.Join(hints, "; "),
		StartDate:    req.StartDate.Format("2006-01-02"),
		EndDate:      req.EndDate.Format("2006-01-02"),
		Allergies:    strings.Join(req.Constraints.Allergies, ", "),
		Budget:       string(req.Constraints.Budget),
		Posts:        posts,
	})
	if err != nil {
		return "", err
	}
	return buf.String(), nil
}

func clamp01(f float64) float64 {
	if f < 0 {
		return 0
	}
	if f > 1 {
		return 1
	}
	return f
}
