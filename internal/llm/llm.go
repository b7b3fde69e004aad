package llm

import (
	"context"

	"ai-trip-planner/internal/shared"
)

// ContentResponse contains the generated text and metadata like token usage.
type ContentResponse struct {
	Content string
	Usage   shared.TokenUsage
}

// TextGenerator is an interface for generating text from a prompt. The
// verification engine depends only on this interface, so the reasoning
// backend can be swapped or stubbed without touching orchestration logic.
type TextGenerator interface {
	GenerateContent(ctx context.Context, prompt string) (ContentResponse, error)
}

// Closer is an interface for closing resources.
type Closer interface {
	Close() error
}

// Client is a text generation backend that owns its API connection. Callers
// that manage the backend lifecycle hold a Client; everything else depends
// on TextGenerator alone.
type Client interface {
	TextGenerator
	Closer
}
