// Package mock provides a scriptable CompletionClient for tests.
package mock

import (
	"context"
	"sync"

	"github.com/replyforge/replyforge/pkg/models"
)

// Client satisfies models.CompletionClient for testing. It records every
// request so tests can assert on call counts and message content.
type Client struct {
	Name_        string
	CompleteFunc func(ctx context.Context, req models.CompletionRequest) (*models.CompletionResponse, error)

	mu    sync.Mutex
	calls []models.CompletionRequest
}

func (c *Client) Name() string {
	if c.Name_ == "" {
		return "mock"
	}
	return c.Name_
}

func (c *Client) Complete(ctx context.Context, req models.CompletionRequest) (*models.CompletionResponse, error) {
	c.mu.Lock()
	c.calls = append(c.calls, req)
	c.mu.Unlock()

	if c.CompleteFunc != nil {
		return c.CompleteFunc(ctx, req)
	}
	return &models.CompletionResponse{Text: "mock completion", Model: "mock-v1"}, nil
}

// Calls returns a copy of every request seen so far.
func (c *Client) Calls() []models.CompletionRequest {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]models.CompletionRequest, len(c.calls))
	copy(out, c.calls)
	return out
}

// CallCount returns the number of Complete invocations.
func (c *Client) CallCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.calls)
}

// NewClient returns a mock that replies with the given text.
func NewClient(text string) *Client {
	return &Client{
		CompleteFunc: func(_ context.Context, _ models.CompletionRequest) (*models.CompletionResponse, error) {
			return &models.CompletionResponse{
				Text:  text,
				Model: "mock-v1",
				Usage: models.TokenUsage{PromptTokens: 10, CompletionTokens: 20, TotalTokens: 30},
			}, nil
		},
	}
}

// NewFailingClient returns a mock that always returns the given error.
func NewFailingClient(err error) *Client {
	return &Client{
		Name_: "mock-failing",
		CompleteFunc: func(_ context.Context, _ models.CompletionRequest) (*models.CompletionResponse, error) {
			return nil, err
		},
	}
}

// Compile-time check that Client implements CompletionClient.
var _ models.CompletionClient = (*Client)(nil)
