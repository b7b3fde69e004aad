package social

import (
	"context"

	"ai-trip-planner/internal/poi"
)

// Post is a single piece of recent social content about a location. The
// verification engine uses posts as evidence for its reality check.
type Post struct {
	ID      string `json:"id"`
	Title   string `json:"title"`
	Content string `json:"content"`
	Likes   int    `json:"likes"`
}

// Source produces candidate POIs and recent evidence posts for a destination.
// Search with broad=true widens the query set; the orchestrator uses it on a
// retry pass when the first harvest was too thin.
type Source interface {
	Search(ctx context.Context, destination string, personas []poi.Persona, broad bool) ([]poi.Candidate, error)
	RecentPosts(ctx context.Context, poiName string, n int) ([]Post, error)
}

// Persona-keyed query fragments appended to the destination when searching
// the social source. These mirror the hashtag vocabulary of the upstream
// platform.
var personaKeywords = map[poi.Persona]string{
	poi.PersonaPhotography: "拍照打卡",
	poi.PersonaChilling:    "咖啡厅",
	poi.PersonaFoodie:      "美食推荐",
	poi.PersonaExercise:    "徒步",
}

// buildQueries produces one general query plus one per requested persona.
func buildQueries(destination string, personas []poi.Persona, broad bool) []string {
	queries := []string{destination + "旅游攻略"}
	for _, p := range personas {
		if kw, ok := personaKeywords[p]; ok {
			queries = append(queries, destination+kw)
		}
	}
	if broad {
		queries = append(queries, destination+"景点推荐")
	}
	return queries
}
