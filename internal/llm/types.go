package llm

import "errors"

// Role represents the role of a message sender in a conversation.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message represents a single message in a conversation.
type Message struct {
	Role    Role
	Content string
}

// CompletionRequest contains the parameters for an LLM completion request.
type CompletionRequest struct {
	Model       string
	Messages    []Message
	MaxTokens   int
	Temperature float64
	TopP        float64
	TopK        int
}

// CompletionResponse contains the result of an LLM completion request.
type CompletionResponse struct {
	Content      string
	InputTokens  int
	OutputTokens int
	Model        string
	FinishReason string
}

// TotalTokens returns input plus output tokens.
func (r *CompletionResponse) TotalTokens() int { return r.InputTokens + r.OutputTokens }

var (
	// ErrRateLimited is wrapped by provider errors caused by per-minute limits.
	ErrRateLimited = errors.New("rate limited")
	// ErrQuotaExceeded is wrapped by provider errors caused by exhausted daily quota.
	ErrQuotaExceeded = errors.New("quota exceeded")
	// ErrNotConfigured is returned when no provider has been configured.
	ErrNotConfigured = errors.New("llm provider not configured")
)

// EstimateTokens provides a rough token count estimation for the given text.
// Uses the approximation of 1 token per 4 characters.
func EstimateTokens(text string) int {
	n := len(text) / 4
	if n == 0 && len(text) > 0 {
		return 1
	}
	return n
}
