// Package llm provides single-prompt completion clients for language model APIs.
package llm

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/festy23/pitcrew/internal/config"
)

// ErrNotConfigured is returned by the disabled client when no API key is set.
var ErrNotConfigured = errors.New("llm: no API key configured")

// ErrEmptyResponse is returned when the model produced no text.
var ErrEmptyResponse = errors.New("llm: empty response")

// Completer sends one user prompt and returns the model's text reply.
type Completer interface {
	Name() string
	Complete(ctx context.Context, prompt string, maxTokens int) (string, error)
}

// New selects a client by cfg.Provider. Without an API key it returns a client
// that always fails, so analysis degrades to its fallback.
func New(cfg config.AIConfig, logger *zap.SugaredLogger) Completer {
	if cfg.APIKey() == "" {
		logger.Warnw("No API key configured, AI analysis will use fallback results", "provider", cfg.Provider)
		return Disabled{}
	}

	switch cfg.Provider {
	case config.AIProviderOpenAI:
		return NewOpenAI(cfg.OpenAIBaseURL, cfg.OpenAIAPIKey, cfg.OpenAIModel)
	default:
		return NewAnthropic(cfg.AnthropicURL, cfg.AnthropicAPIKey, cfg.AnthropicModel, logger)
	}
}

// Disabled is a Completer that always returns ErrNotConfigured.
type Disabled struct{}

func (Disabled) Name() string { return "disabled" }

func (Disabled) Complete(context.Context, string, int) (string, error) {
	return "", ErrNotConfigured
}
