package social

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"

	"ai-trip-planner/internal/config"
	"ai-trip-planner/internal/poi"
)

func TestMockSearchDeterministic(t *testing.T) {
	src := NewMockSource()
	ctx := context.Background()
	personas := []poi.Persona{poi.PersonaFoodie, poi.PersonaPhotography}

	first, err := src.Search(ctx, "Tokyo", personas, false)
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 3; i++ {
		again, err := src.Search(ctx, "Tokyo", personas, false)
		if err != nil {
			t.Fatal(err)
		}
		if !reflect.DeepEqual(first, again) {
			t.Fatalf("run %d differed from first run", i)
		}
	}
}

func TestMockSearchSplitsAcrossPersonas(t *testing.T) {
	src := NewMockSource()
	cands, err := src.Search(context.Background(), "Osaka",
		[]poi.Persona{poi.PersonaFoodie, poi.PersonaExercise}, false)
	if err != nil {
		t.Fatal(err)
	}
	if len(cands) == 0 || len(cands) > maxCandidates {
		t.Fatalf("got %d candidates", len(cands))
	}

	counts := make(map[poi.Persona]int)
	for _, c := range cands {
		if len(c.PersonaTags) != 1 {
			t.Fatalf("candidate %q has tags %v", c.Name, c.PersonaTags)
		}
		counts[c.PersonaTags[0]]++
		if c.Origin != poi.OriginSynthetic {
			t.Errorf("candidate %q origin = %s", c.Name, c.Origin)
		}
	}
	if counts[poi.PersonaFoodie] == 0 || counts[poi.PersonaExercise] == 0 {
		t.Errorf("persona split = %v", counts)
	}
}

func TestMockRecentPosts(t *testing.T) {
	src := NewMockSource()
	posts, err := src.RecentPosts(context.Background(), "Senso-ji", 3)
	if err != nil {
		t.Fatal(err)
	}
	if len(posts) != 3 {
		t.Fatalf("got %d posts", len(posts))
	}
	for _, p := range posts {
		if p.Content == "" {
			t.Errorf("post %s has empty content", p.ID)
		}
	}

	capped, err := src.RecentPosts(context.Background(), "Senso-ji", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(capped) != 3 {
		t.Errorf("got %d posts, catalog holds 3", len(capped))
	}
}

type errorSource struct{}

func (errorSource) Search(context.Context, string, []poi.Persona, bool) ([]poi.Candidate, error) {
	return nil, errors.New("connection refused")
}

func (errorSource) RecentPosts(context.Context, string, int) ([]Post, error) {
	return nil, errors.New("connection refused")
}

type emptySource struct{}

func (emptySource) Search(context.Context, string, []poi.Persona, bool) ([]poi.Candidate, error) {
	return nil, nil
}

func (emptySource) RecentPosts(context.Context, string, int) ([]Post, error) {
	return nil, nil
}

func TestFallbackOnError(t *testing.T) {
	src := NewFallbackSource(errorSource{}, NewMockSource())
	cands, err := src.Search(context.Background(), "Kyoto", []poi.Persona{poi.PersonaChilling}, false)
	if err != nil {
		t.Fatalf("fallback should absorb the error, got %v", err)
	}
	if len(cands) == 0 {
		t.Fatal("expected catalog candidates")
	}

	posts, err := src.RecentPosts(context.Background(), "Somewhere", 3)
	if err != nil || len(posts) == 0 {
		t.Errorf("posts = %d, err = %v", len(posts), err)
	}
}

func TestFallbackPassesThroughEmptySuccess(t *testing.T) {
	src := NewFallbackSource(emptySource{}, NewMockSource())
	cands, err := src.Search(context.Background(), "Kyoto", []poi.Persona{poi.PersonaChilling}, false)
	if err != nil {
		t.Fatal(err)
	}
	if len(cands) != 0 {
		t.Errorf("empty success must not trigger the fallback, got %d candidates", len(cands))
	}
}

func TestExtractCandidatesNumberedList(t *testing.T) {
	note := Note{
		ID:    "n1",
		Title: "Tokyo 3-day guide",
		HTML: `<p>My favourites:</p>
<p>1. Senso-ji Temple
2. Nakamise Shopping Street
3. Tokyo Skytree</p>
<script>track()</script>`,
		URL:   "https://example.com/n1",
		Likes: 120,
	}

	cands := extractCandidates(note)
	if len(cands) != 3 {
		t.Fatalf("got %d candidates: %+v", len(cands), cands)
	}
	if cands[0].Name != "Senso-ji Temple" {
		t.Errorf("first name = %q", cands[0].Name)
	}
	for _, c := range cands {
		if c.Origin != poi.OriginLive {
			t.Errorf("candidate %q origin = %s", c.Name, c.Origin)
		}
		if c.SourceURL != "https://example.com/n1" {
			t.Errorf("candidate %q source = %q", c.Name, c.SourceURL)
		}
	}
}

func TestExtractCandidatesTitleFallback(t *testing.T) {
	note := Note{
		ID:    "n2",
		Title: "Hidden gem cafe in Shimokitazawa",
		HTML:  "<p>Quiet place, great pour-over, no queue on weekdays.</p>",
	}
	cands := extractCandidates(note)
	if len(cands) != 1 {
		t.Fatalf("got %d candidates", len(cands))
	}
	if cands[0].Name != "Hidden gem cafe in Shimokitazawa" {
		t.Errorf("name = %q", cands[0].Name)
	}
}

func TestCleanHTMLStripsBoilerplate(t *testing.T) {
	text := cleanHTML(`<nav>menu</nav><p>real content</p><script>evil()</script><footer>foot</footer>`)
	if text != "real content" {
		t.Errorf("cleaned = %q", text)
	}
}

func TestClientSearch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/notes" {
			http.NotFound(w, r)
			return
		}
		if r.URL.Query().Get("key") != "test-key" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		fmt.Fprint(w, `{"notes":[{
			"id": "n1",
			"title": "Tokyo spots",
			"html": "<p>1. Senso-ji Temple is a must<br>2. Shibuya Sky at sunset</p>",
			"url": "https://notes.example/n1",
			"liked_count": 321
		}]}`)
	}))
	defer server.Close()

	client := NewContentClient(&config.Config{
		SocialAPIURL: server.URL,
		SocialAPIKey: "test-key",
	})

	cands, err := client.Search(context.Background(), "Tokyo", []poi.Persona{poi.PersonaFoodie}, false)
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(cands) == 0 {
		t.Fatal("expected candidates")
	}
	// The same note comes back for every query; de-duplication keeps one copy.
	seen := make(map[string]int)
	for _, c := range cands {
		seen[c.Name]++
	}
	for name, n := range seen {
		if n > 1 {
			t.Errorf("candidate %q appears %d times", name, n)
		}
	}
	if cands[0].Likes != 321 {
		t.Errorf("likes = %d", cands[0].Likes)
	}
}

func TestClientSearchUpstreamError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	client := NewContentClient(&config.Config{SocialAPIURL: server.URL})
	if _, err := client.Search(context.Background(), "Tokyo", []poi.Persona{poi.PersonaFoodie}, false); err == nil {
		t.Fatal("expected an error from a failing upstream")
	}
}
