package completion

import "context"

// Message represents a chat message
type Message struct {
	Role    string `json:"role"` // user, assistant, system
	Content string `json:"content"`
}

// Roles understood by the completion endpoint.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Request is the internal request structure
type Request struct {
	Messages    []Message
	Model       string   // optional: overrides the configured model
	MaxTokens   *int     // optional max tokens
	Temperature *float64 // optional temperature
}

// Usage represents token usage information
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Result is the internal result structure
type Result struct {
	Text         string
	Model        string
	FinishReason string
	Usage        Usage
}

// Completer produces a drafted reply for a message history.
type Completer interface {
	Complete(ctx context.Context, req Request) (Result, error)
}
