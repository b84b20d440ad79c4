// Package llm is the boundary to the generative completion service. The
// pipeline treats it as an unreliable oracle: callers own the interpretation
// of its output and the handling of its failures.
package llm

import (
	"context"
	"strings"
)

type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type Client interface {
	Complete(ctx context.Context, messages []Message) (string, error)
}

// StripFence removes a surrounding markdown code fence from model output.
// Models frequently wrap SQL or JSON in ```sql / ```json blocks even when
// told not to.
func StripFence(value string) string {
	trimmed := strings.TrimSpace(value)
	if !strings.HasPrefix(trimmed, "```") {
		return trimmed
	}
	trimmed = strings.TrimPrefix(trimmed, "```sql")
	trimmed = strings.TrimPrefix(trimmed, "```json")
	trimmed = strings.TrimPrefix(trimmed, "```")
	trimmed = strings.TrimSuffix(trimmed, "```")
	return strings.TrimSpace(trimmed)
}
