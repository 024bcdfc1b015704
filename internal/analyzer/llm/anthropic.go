package llm

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"go.uber.org/zap"

	"github.com/festy23/pitcrew/pkg/retry"
)

// DefaultAnthropicURL is the API root; the SDK appends the messages path.
const DefaultAnthropicURL = "https://api.anthropic.com"

// RateLimitError is returned on HTTP 429 and is retried.
type RateLimitError struct{}

func (*RateLimitError) Error() string { return "rate limited" }

// AuthError is returned on HTTP 401/403 and is never retried.
type AuthError struct {
	Message string
}

func (e *AuthError) Error() string { return "authentication error: " + e.Message }

// Anthropic calls the Anthropic messages API.
type Anthropic struct {
	client *anthropic.Client
	model  string
	policy retry.Config
	logger *zap.SugaredLogger
}

// NewAnthropic creates an Anthropic client. baseURL may be the API root or the full
// messages endpoint; empty selects DefaultAnthropicURL.
// Request deadlines come from the caller's context.
func NewAnthropic(baseURL, apiKey, model string, logger *zap.SugaredLogger) *Anthropic {
	baseURL = strings.TrimSuffix(strings.TrimSuffix(baseURL, "/"), "/v1/messages")
	if baseURL == "" {
		baseURL = DefaultAnthropicURL
	}

	// SDK retries are off; policy decides what is retried.
	client := anthropic.NewClient(
		option.WithoutEnvironmentDefaults(),
		option.WithBaseURL(baseURL),
		option.WithAPIKey(apiKey),
		option.WithMaxRetries(0),
	)
	return &Anthropic{
		client: &client,
		model:  model,
		policy: retry.Config{
			MaxAttempts:  3,
			InitialDelay: time.Second,
			MaxDelay:     4 * time.Second,
			Multiplier:   2,
			Retryable: func(err error) bool {
				var rl *RateLimitError
				return errors.As(err, &rl)
			},
		},
		logger: logger,
	}
}

func (a *Anthropic) Name() string { return "anthropic" }

// Complete sends prompt as a single user message.
func (a *Anthropic) Complete(ctx context.Context, prompt string, maxTokens int) (string, error) {
	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(a.model),
		MaxTokens: int64(maxTokens),
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	}

	return retry.DoWithResult(ctx, a.policy, func() (string, error) {
		return a.send(ctx, params)
	})
}

func (a *Anthropic) send(ctx context.Context, params anthropic.MessageNewParams) (string, error) {
	msg, err := a.client.Messages.New(ctx, params)
	if err != nil {
		return "", a.classify(err)
	}

	var text strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}
	if text.Len() == 0 {
		return "", ErrEmptyResponse
	}

	a.logger.Debugw("Anthropic completion",
		"model", a.model, "input_tokens", msg.Usage.InputTokens, "output_tokens", msg.Usage.OutputTokens)
	return text.String(), nil
}

func (a *Anthropic) classify(err error) error {
	var apiErr *anthropic.Error
	if !errors.As(err, &apiErr) {
		return err
	}
	switch apiErr.StatusCode {
	case http.StatusTooManyRequests:
		a.logger.Warnw("Anthropic rate limited", "model", a.model)
		return &RateLimitError{}
	case http.StatusUnauthorized, http.StatusForbidden:
		return &AuthError{Message: apiErr.Error()}
	default:
		return err
	}
}
