package social

import (
	"context"
	"fmt"
	"log"

	"ai-trip-planner/internal/poi"
)

type template struct {
	name    string
	snippet string
	score   float64
}

// Persona-specific POI templates used when the live source is unavailable.
// Scores bias the synthetic engagement signal per template.
var personaTemplates = map[poi.Persona][]template{
	poi.PersonaPhotography: {
		{"%s Golden Hour Viewpoint", "Famous for stunning sunset photography. Best light at 6-7pm.", 9.2},
		{"%s Street Art District", "Colourful murals and instagrammable walls around every corner.", 8.8},
		{"%s Misty Mountain Overlook", "Cloud-level panorama perfect for landscape shots.", 9.5},
		{"%s Old Architecture Quarter", "Preserved historic facades with excellent natural lighting.", 8.5},
		{"%s Reflection Pool Garden", "Symmetrical reflections ideal for mirror photography.", 8.0},
		{"%s Abandoned Factory Loft", "Urban-decay aesthetic popular with portrait photographers.", 7.8},
		{"%s Lantern Festival Square", "Glowing lanterns make for magical long-exposure shots.", 9.0},
		{"%s Cliffside Cafe", "Glass-floor cafe perched on a cliff with unobstructed views.", 8.6},
	},
	poi.PersonaChilling: {
		{"%s Riverside Cafe Row", "Laid-back waterside cafes with hammocks and slow WiFi.", 9.0},
		{"%s Secret Garden Park", "Hidden green space locals use to read and nap.", 8.7},
		{"%s Rooftop Lounge Bar", "Sunset cocktails with zero dress code.", 8.3},
		{"%s Specialty Coffee Alley", "Tiny independent roasters tucked in a cobblestone lane.", 9.1},
		{"%s Floating Library Barge", "Books, tea, and gentle river waves.", 8.0},
		{"%s Night Market Food Court", "Low-key evening street food with plastic stools.", 8.5},
		{"%s Lakeside Hammock Spot", "Free hammock zone, no booking needed.", 7.9},
		{"%s Cat Cafe & Bookstore", "Resident cats, vintage paperbacks, and homemade cake.", 8.8},
	},
	poi.PersonaFoodie: {
		{"%s Morning Wet Market", "Where locals shop at 6am - freshest produce in the city.", 9.3},
		{"%s Night Street Food Strip", "Sizzling skewers and mystery noodles under neon signs.", 9.5},
		{"%s Heritage Dumpling Shop", "Family recipe unchanged for 80 years. Cash only.", 9.0},
		{"%s Spice Bazaar", "Sensory overload of local spices, dried fruits and nuts.", 8.6},
		{"%s Rooftop Farm-to-Table", "Chef grows 40% of ingredients on the roof.", 8.4},
		{"%s Craft Brewery & Taproom", "Regional ales brewed on-site, free tasting flights on Fridays.", 8.0},
		{"%s Michelin Bib Gourmand Stall", "Cheap eats that made the Michelin list - 2-hour queue typical.", 9.2},
		{"%s Dessert Alley", "Eight dessert shops in a row, try the signature soft-serve.", 8.3},
	},
	poi.PersonaExercise: {
		{"%s Coastal Hiking Trail", "8km cliffside trail with ocean views, moderate difficulty.", 9.4},
		{"%s Sunrise Yoga Deck", "Outdoor platform overlooking the valley, free drop-in class.", 8.5},
		{"%s Kayak Launch Point", "Rentals available, guided tours through mangrove channels.", 9.0},
		{"%s Volcano Summit Trek", "Strenuous 4-hour ascent rewarded with 360 crater views.", 9.6},
		{"%s Urban Cycling Circuit", "16km signed cycle loop through parks and riverside paths.", 8.2},
		{"%s Rock Climbing Crag", "Natural limestone face with routes for all skill levels.", 8.8},
		{"%s Open-Water Swimming Cove", "Calm sheltered bay, regular early-morning swim club.", 8.0},
		{"%s Forest Canopy Walkway", "Suspension bridges 40m above the jungle floor.", 9.1},
	},
}

// MockSource is the offline candidate source: a fixed persona-keyed catalog
// that guarantees the pipeline always has input.
type MockSource struct{}

// NewMockSource returns the synthetic catalog source.
func NewMockSource() *MockSource {
	return &MockSource{}
}

// Search returns catalog candidates for each requested persona. Output is
// fully deterministic for a given destination and persona set.
func (m *MockSource) Search(_ context.Context, destination string, personas []poi.Persona, _ bool) ([]poi.Candidate, error) {
	if len(personas) == 0 {
		personas = []poi.Persona{poi.PersonaChilling}
	}

	perPersona := maxCandidates / len(personas)
	if perPersona < 1 {
		perPersona = 1
	}

	var out []poi.Candidate
	for _, p := range personas {
		templates := personaTemplates[p]
		if templates == nil {
			templates = personaTemplates[poi.PersonaChilling]
		}
		for i, tpl := range templates {
			if i == perPersona {
				break
			}
			out = append(out, poi.Candidate{
				Name:        fmt.Sprintf(tpl.name, destination),
				Address:     destination,
				Snippet:     tpl.snippet,
				Likes:       engagementFor(tpl.score, i),
				PersonaTags: []poi.Persona{p},
				Origin:      poi.OriginSynthetic,
			})
		}
	}

	if len(out) > maxCandidates {
		out = out[:maxCandidates]
	}
	return out, nil
}

// RecentPosts fabricates a small set of positive recent posts, enough for the
// verifier to reach an include verdict offline.
func (m *MockSource) RecentPosts(_ context.Context, poiName string, n int) ([]Post, error) {
	bodies := []string{
		"Just visited " + poiName + " - still open and absolutely worth it! No renovation signs.",
		poiName + " was great this weekend. Crowds are manageable on weekday mornings.",
		"Went to " + poiName + " yesterday. Highly recommend, place is thriving.",
	}
	if n > len(bodies) {
		n = len(bodies)
	}

	posts := make([]Post, 0, n)
	for i := 0; i < n; i++ {
		posts = append(posts, Post{
			ID:      fmt.Sprintf("mock_%d", i),
			Title:   "My visit to " + poiName,
			Content: bodies[i],
			Likes:   50 + i*10,
		})
	}
	return posts, nil
}

func engagementFor(score float64, rank int) int {
	likes := int(score*20) - rank*15
	if likes < 10 {
		likes = 10
	}
	return likes
}

// FallbackSource tries the primary source and substitutes the fallback when
// the primary errors out. An empty-but-successful result is passed through
// unchanged; the pipeline treats an empty candidate set as recoverable.
type FallbackSource struct {
	Primary  Source
	Fallback Source
}

// NewFallbackSource wraps primary with the given fallback.
func NewFallbackSource(primary, fallback Source) *FallbackSource {
	return &FallbackSource{Primary: primary, Fallback: fallback}
}

// Search delegates to the primary source, substituting fallback candidates on
// error.
func (f *FallbackSource) Search(ctx context.Context, destination string, personas []poi.Persona, broad bool) ([]poi.Candidate, error) {
	cands, err := f.Primary.Search(ctx, destination, personas, broad)
	if err != nil {
		log.Printf("social source unavailable, substituting catalog candidates: %v", err)
		return f.Fallback.Search(ctx, destination, personas, broad)
	}
	return cands, nil
}

// RecentPosts delegates to the primary source, substituting fallback posts on
// error.
func (f *FallbackSource) RecentPosts(ctx context.Context, poiName string, n int) ([]Post, error) {
	posts, err := f.Primary.RecentPosts(ctx, poiName, n)
	if err != nil {
		return f.Fallback.RecentPosts(ctx, poiName, n)
	}
	return posts, nil
}
