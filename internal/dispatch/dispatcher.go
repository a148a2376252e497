// Package dispatch routes claimed jobs to their per-type handlers. Each
// handler validates its payload, calls the completion API, and shapes the
// response into the job's result map.
package dispatch

import (
	"context"
	"errors"
	"fmt"

	"github.com/replyforge/replyforge/pkg/models"
)

// ErrUnknownJobType marks a job whose type has no registered handler.
var ErrUnknownJobType = errors.New("unknown job type")

// ValidationError marks a payload that failed a handler's input checks.
// Validation failures are terminal: the job fails without any completion
// API call.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid payload: field %q %s", e.Field, e.Reason)
}

func missingField(field string) *ValidationError {
	return &ValidationError{Field: field, Reason: "is required and must be a non-empty string"}
}

// Handler executes one job type: validate payload, call the completion API,
// shape the result.
type Handler func(ctx context.Context, payload map[string]any) (map[string]any, error)

// Dispatcher maps job types to handlers. The registry is built once at
// construction; unknown types hit a single default branch.
type Dispatcher struct {
	client   models.CompletionClient
	prompts  PromptBuilder
	handlers map[string]Handler
}

// New builds a Dispatcher with all recognized job types registered.
func New(client models.CompletionClient, prompts PromptBuilder) *Dispatcher {
	d := &Dispatcher{
		client:  client,
		prompts: prompts,
	}
	d.handlers = map[string]Handler{
		models.JobTypeAIGeneration:      d.handleAIGeneration,
		models.JobTypeReviewProcessing:  d.handleReviewProcessing,
		models.JobTypePromptAnalysis:    d.handlePromptAnalysis,
		models.JobTypeSentimentAnalysis: d.handleSentimentAnalysis,
	}
	return d
}

// Dispatch runs the handler registered for jobType. Returns
// ErrUnknownJobType for unregistered types, a ValidationError for bad
// payloads, or the handler's own error when the completion call fails.
func (d *Dispatcher) Dispatch(ctx context.Context, jobType string, payload map[string]any) (map[string]any, error) {
	handler, ok := d.handlers[jobType]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownJobType, jobType)
	}
	return handler(ctx, payload)
}
