package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/replyforge/replyforge/internal/config"
	"github.com/replyforge/replyforge/pkg/models"
)

// Client implements models.CompletionClient against the OpenAI chat
// completions endpoint.
type Client struct {
	cfg    config.OpenAIConfig
	client *http.Client
}

// NewClient creates a new OpenAI client with a hard request timeout.
func NewClient(cfg config.OpenAIConfig, timeout time.Duration) *Client {
	return &Client{
		cfg:    cfg,
		client: &http.Client{Timeout: timeout},
	}
}

func (c *Client) Name() string { return "openai" }

func (c *Client) Complete(ctx context.Context, req models.CompletionRequest) (*models.CompletionResponse, error) {
	model := req.Model
	if model == "" {
		model = c.cfg.Model
	}

	body, err := json.Marshal(chatRequest{
		Model:       model,
		Messages:    req.Messages,
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
	})
	if err != nil {
		return nil, fmt.Errorf("encoding request: %w", err)
	}

	u := fmt.Sprintf("%s/v1/chat/completions", c.cfg.BaseURL)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	if c.cfg.Project != "" {
		httpReq.Header.Set("OpenAI-Project", c.cfg.Project)
	}

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, classifyError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, fmt.Errorf("%w: status %d", models.ErrQuotaExceeded, resp.StatusCode)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: status %d", models.ErrCompletionFailed, resp.StatusCode)
	}

	var chatResp chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&chatResp); err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrInvalidCompletion, err)
	}

	if len(chatResp.Choices) == 0 {
		return nil, fmt.Errorf("%w: no choices", models.ErrInvalidCompletion)
	}

	text := chatResp.Choices[0].Message.Content
	if strings.TrimSpace(text) == "" {
		return nil, models.ErrEmptyCompletion
	}

	return &models.CompletionResponse{
		Text:  text,
		Model: chatResp.Model,
		Usage: chatResp.Usage,
	}, nil
}

// classifyError maps transport-level errors to sentinel errors.
func classifyError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return fmt.Errorf("%w: %v", models.ErrCompletionTimeout, err)
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return fmt.Errorf("%w: %v", models.ErrCompletionTimeout, err)
		}
		return fmt.Errorf("%w: %v", models.ErrCompletionUnreachable, err)
	}

	return fmt.Errorf("%w: %v", models.ErrCompletionUnreachable, err)
}

// --- OpenAI wire types ---

type chatRequest struct {
	Model       string           `json:"model"`
	Messages    []models.Message `json:"messages"`
	MaxTokens   int              `json:"max_tokens,omitempty"`
	Temperature float64          `json:"temperature"`
}

type chatResponse struct {
	Model   string            `json:"model"`
	Choices []chatChoice      `json:"choices"`
	Usage   models.TokenUsage `json:"usage"`
}

type chatChoice struct {
	Message chatMessage `json:"message"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Compile-time check that Client implements CompletionClient.
var _ models.CompletionClient = (*Client)(nil)
