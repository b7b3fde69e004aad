package shared

import (
	"time"
)

// TokenUsage is the token accounting for one backend call, as reported by
// the model API.
type TokenUsage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
	Model            string
}

// AgentMeta travels alongside each verification result and carries the
// agent's token usage and call latency. The metrics store persists these
// per session.
type AgentMeta struct {
	AgentName string
	Usage     TokenUsage
	Latency   time.Duration
}
