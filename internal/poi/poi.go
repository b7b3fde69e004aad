package poi

// Persona is a named travel-style preference used to bias discovery,
// verification and filtering.
type Persona string

const (
	PersonaPhotography Persona = "photography"
	PersonaChilling    Persona = "chilling"
	PersonaFoodie      Persona = "foodie"
	PersonaExercise    Persona = "exercise"
)

// AllPersonas lists every supported persona.
func AllPersonas() []Persona {
	return []Persona{PersonaPhotography, PersonaChilling, PersonaFoodie, PersonaExercise}
}

// ParsePersona validates a raw string against the supported persona set.
func ParsePersona(s string) (Persona, bool) {
	switch Persona(s) {
	case PersonaPhotography, PersonaChilling, PersonaFoodie, PersonaExercise:
		return Persona(s), true
	}
	return "", false
}

// BudgetTier is the traveler's stated spending level.
type BudgetTier string

const (
	BudgetLow    BudgetTier = "budget"
	BudgetMid    BudgetTier = "mid-range"
	BudgetLuxury BudgetTier = "luxury"
)

// Constraints are the traveler's hard preferences that verification must
// respect.
type Constraints struct {
	Allergies []string   `json:"allergies,omitempty"`
	Budget    BudgetTier `json:"budget,omitempty"`
}

// Coordinates is a WGS84 lat/lng pair.
type Coordinates struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Origin records whether a candidate came from the live social source or the
// offline catalog.
type Origin string

const (
	OriginLive      Origin = "live"
	OriginSynthetic Origin = "synthetic"
)

// Candidate is a raw, unverified location proposal extracted from social
// content. Candidates are read-only once created; verification supersedes
// them with a Verified record instead of mutating in place.
type Candidate struct {
	ID          int          `json:"id"`
	Name        string       `json:"name"`
	Address     string       `json:"address,omitempty"`
	Snippet     string       `json:"snippet,omitempty"`
	SourceURL   string       `json:"source_url,omitempty"`
	Likes       int          `json:"likes"`
	PersonaTags []Persona    `json:"persona_tags,omitempty"`
	Coords      *Coordinates `json:"coords,omitempty"`
	Origin      Origin       `json:"origin"`
}

// Verdict is the verification engine's include/exclude decision.
type Verdict string

const (
	VerdictInclude Verdict = "include"
	VerdictExclude Verdict = "exclude"
)

// Flag marks a caveat attached to a verification verdict.
type Flag string

const (
	FlagClosed          Flag = "closed"
	FlagOffSeason       Flag = "off-season"
	FlagPersonaMismatch Flag = "persona-mismatch"
	FlagUnverified      Flag = "unverified"
	FlagNoRecentPosts   Flag = "no-recent-posts"
)

// Verified is a Candidate enriched with a verification verdict.
type Verified struct {
	Candidate  Candidate `json:"candidate"`
	Verdict    Verdict   `json:"verdict"`
	Confidence float64   `json:"confidence"`
	Rationale  string    `json:"rationale,omitempty"`
	Note       string    `json:"note,omitempty"`
	Flags      []Flag    `json:"flags,omitempty"`
}

// HasFlag reports whether the verdict carries the given flag.
func (v Verified) HasFlag(f Flag) bool {
	for _, have := range v.Flags {
		if have == f {
			return true
		}
	}
	return false
}

// Routable reports whether the POI may proceed to route optimization:
// an include verdict with resolved coordinates.
func (v Verified) Routable() bool {
	return v.Verdict == VerdictInclude && v.Candidate.Coords != nil
}

// ItineraryDay is one day's ordered sequence of stops. Index is 1-based and
// contiguous across a session's date span; Stops is the visiting order.
type ItineraryDay struct {
	Index    int        `json:"day_number"`
	Stops    []Verified `json:"stops"`
	TravelKm float64    `json:"travel_km"`
}
