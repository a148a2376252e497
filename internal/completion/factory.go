// Package completion selects and constructs the external text-completion
// backend. All callers depend on models.CompletionClient, never on a concrete
// provider.
package completion

import (
	"fmt"

	"github.com/replyforge/replyforge/internal/completion/anthropic"
	"github.com/replyforge/replyforge/internal/completion/openai"
	"github.com/replyforge/replyforge/internal/config"
	"github.com/replyforge/replyforge/pkg/models"
)

// NewClient constructs the appropriate completion client based on config.
// Called once at process startup.
func NewClient(cfg config.CompletionConfig) (models.CompletionClient, error) {
	switch cfg.Provider {
	case "openai":
		return openai.NewClient(cfg.OpenAI, cfg.Timeout), nil
	case "anthropic":
		return anthropic.NewClient(cfg.Anthropic, cfg.Timeout), nil
	default:
		return nil, fmt.Errorf("unknown completion provider %q: must be one of openai, anthropic", cfg.Provider)
	}
}
