package generate

import (
	"context"
	"fmt"

	"github.com/livetemplate/listingkit/internal/config"
)

// Backend sends one system and user prompt pair to a model and returns the
// text of its answer.
type Backend interface {
	Name() string
	Complete(ctx context.Context, system, user string) (string, error)
}

// NewBackend builds the backend selected by cfg.Provider.
func NewBackend(ctx context.Context, cfg config.AIConfig) (Backend, error) {
	switch cfg.GetProvider() {
	case "gemini":
		return NewGeminiBackend(ctx, cfg.GetAPIKey(), cfg.GetModel())
	case "anthropic":
		return NewAnthropicBackend(cfg.GetAPIKey(), cfg.GetModel(), 0)
	case "openai":
		return NewOpenAIBackend(cfg.GetAPIKey(), cfg.GetModel(), cfg.GetBaseURL())
	default:
		return nil, fmt.Errorf("unknown AI provider %q", cfg.Provider)
	}
}
