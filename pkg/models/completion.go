package models

import (
	"context"
	"errors"
)

// Message roles understood by the completion API.
const (
	RoleSystem = "system"
	RoleUser   = "user"
)

// Sentinel errors for completion client failures. Handlers translate these
// into a single failure message on the job row; they never reach an end user
// as raw transport errors.
var (
	ErrCompletionUnreachable = errors.New("completion api unreachable")
	ErrCompletionTimeout     = errors.New("completion api timeout")
	ErrCompletionFailed      = errors.New("completion request failed")
	ErrQuotaExceeded         = errors.New("completion api quota exceeded")
	ErrEmptyCompletion       = errors.New("completion api returned empty content")
	ErrInvalidCompletion     = errors.New("completion api returned invalid response")
)

// CompletionClient is the core interface every completion backend implements.
// Never call a specific provider directly — always inject this interface.
type CompletionClient interface {
	// Complete sends an ordered list of role-tagged messages and returns the
	// first candidate completion. Implementations enforce their own request
	// timeout and map transport failures onto the sentinel errors above.
	Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error)
	// Name returns the provider identifier (e.g., "openai", "anthropic").
	Name() string
}

// Message is one role-tagged entry in a completion request.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// CompletionRequest is the input to a completion call.
type CompletionRequest struct {
	Model       string
	Messages    []Message
	MaxTokens   int
	Temperature float64
}

// TokenUsage is the provider-reported token breakdown for one call.
type TokenUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// CompletionResponse holds the first candidate completion.
type CompletionResponse struct {
	Text  string
	Model string
	Usage TokenUsage
}
