package social

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"ai-trip-planner/internal/config"
	"ai-trip-planner/internal/poi"
)

const (
	maxCandidates  = 20
	maxPOIsPerNote = 5
)

// Note is a single travel note returned by the content API.
type Note struct {
	ID      string `json:"id"`
	Title   string `json:"title"`
	HTML    string `json:"html"`
	URL     string `json:"url"`
	Likes   int    `json:"liked_count"`
	Created string `json:"created_at"`
}

// notesResponse is the top-level structure of the content API response.
type notesResponse struct {
	Notes []Note `json:"notes"`
}

// ContentClient fetches travel notes from the social content API and extracts
// POI candidates from them.
type ContentClient struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
}

// NewContentClient creates a client for the configured content API.
func NewContentClient(cfg *config.Config) *ContentClient {
	return &ContentClient{
		httpClient: &http.Client{Timeout: 10 * time.Second},
		baseURL:    strings.TrimRight(cfg.SocialAPIURL, "/"),
		apiKey:     cfg.SocialAPIKey,
	}
}

// Search queries the content API once per persona-biased query, extracts POI
// candidates from each note, and de-duplicates them by name.
func (c *ContentClient) Search(ctx context.Context, destination string, personas []poi.Persona, broad bool) ([]poi.Candidate, error) {
	var (
		candidates []poi.Candidate
		seen       = make(map[string]struct{})
	)

	for _, query := range buildQueries(destination, personas, broad) {
		notes, err := c.searchNotes(ctx, query, 15)
		if err != nil {
			return nil, fmt.Errorf("social search %q: %w", query, err)
		}
		for _, note := range notes {
			for _, cand := range extractCandidates(note) {
				if _, dup := seen[cand.Name]; dup {
					continue
				}
				seen[cand.Name] = struct{}{}
				candidates = append(candidates, cand)
			}
		}
	}

	if len(candidates) > maxCandidates {
		candidates = candidates[:maxCandidates]
	}
	return candidates, nil
}

// RecentPosts fetches the most recent posts mentioning a specific POI.
func (c *ContentClient) RecentPosts(ctx context.Context, poiName string, n int) ([]Post, error) {
	notes, err := c.searchNotes(ctx, poiName, n)
	if err != nil {
		return nil, fmt.Errorf("recent posts for %q: %w", poiName, err)
	}

	posts := make([]Post, 0, len(notes))
	for _, note := range notes {
		content := cleanHTML(note.HTML)
		if content == "" {
			continue
		}
		posts = append(posts, Post{
			ID:      note.ID,
			Title:   note.Title,
			Content: content,
			Likes:   note.Likes,
		})
		if len(posts) == n {
			break
		}
	}
	return posts, nil
}

func (c *ContentClient) searchNotes(ctx context.Context, query string, limit int) ([]Note, error) {
	endpoint := fmt.Sprintf("%s/api/v1/notes?query=%s&limit=%d&key=%s",
		c.baseURL, url.QueryEscape(query), limit, url.QueryEscape(c.apiKey))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("content api error: status %d", resp.StatusCode)
	}

	var body notesResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	return body.Notes, nil
}

// cleanHTML strips markup and boilerplate, returning readable note text.
func cleanHTML(html string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return ""
	}
	doc.Find("script, style, nav, footer, iframe").Each(func(i int, s *goquery.Selection) {
		s.Remove()
	})
	return strings.TrimSpace(doc.Text())
}

// listItemPattern matches numbered or bulleted location entries inside travel
// guide notes ("1. ...", "① ...", "📍 ...").
var listItemPattern = regexp.MustCompile(`(?m)(?:^|\n)[①②③④⑤⑥⑦⑧⑨⑩📍\d]+[.、\s]+([^\n]{3,60})`)

var addressPatterns = []*regexp.Regexp{
	regexp.MustCompile(`〒[\d\-]+\s+[^\n]{5,80}`),
	regexp.MustCompile(`地址[：:]([^\n]{5,80})`),
	regexp.MustCompile(`🏠[：:]?\s*([^\n]{5,80})`),
	regexp.MustCompile(`位于([^\n]{5,60})`),
}

// extractCandidates parses a note and extracts individual POI entries. Falls
// back to treating the note title itself as one POI when no list is found.
func extractCandidates(note Note) []poi.Candidate {
	content := cleanHTML(note.HTML)
	text := note.Title + "\n" + content

	var out []poi.Candidate
	for _, m := range listItemPattern.FindAllStringSubmatch(text, -1) {
		name := strings.TrimRight(strings.TrimSpace(m[1]), "：:，,。.")
		if len([]rune(name)) < 3 {
			continue
		}
		out = append(out, poi.Candidate{
			Name:      truncateRunes(name, 120),
			Address:   extractAddress(text, name),
			Snippet:   truncateRunes(content, 500),
			SourceURL: note.URL,
			Likes:     note.Likes,
			Origin:    poi.OriginLive,
		})
		if len(out) == maxPOIsPerNote {
			break
		}
	}

	if len(out) == 0 && note.Title != "" {
		out = append(out, poi.Candidate{
			Name:      truncateRunes(note.Title, 120),
			Snippet:   truncateRunes(content, 500),
			SourceURL: note.URL,
			Likes:     note.Likes,
			Origin:    poi.OriginLive,
		})
	}
	return out
}

// extractAddress looks for an address pattern near the POI name.
func extractAddress(text, poiName string) string {
	search := text
	if pos := strings.Index(text, poiName); pos >= 0 {
		search = truncateRunes(text[pos:], 500)
	} else {
		search = truncateRunes(text, 500)
	}

	for _, pat := range addressPatterns {
		m := pat.FindStringSubmatch(search)
		if m == nil {
			continue
		}
		if len(m) > 1 {
			return strings.TrimSpace(m[1])
		}
		return strings.TrimSpace(m[0])
	}
	return ""
}

func truncateRunes(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
