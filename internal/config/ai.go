package config

import (
	"fmt"
	"time"
)

// AI provider names accepted by AI_PROVIDER.
const (
	AIProviderAnthropic = "anthropic"
	AIProviderOpenAI    = "openai"
)

// AIConfig configures the language model used for analysis.
type AIConfig struct {
	Provider string

	AnthropicAPIKey string
	AnthropicModel  string
	AnthropicURL    string

	OpenAIAPIKey  string
	OpenAIBaseURL string
	OpenAIModel   string

	MaxTokens int
	Timeout   time.Duration
	// DiffLimit is the number of diff characters included in the prompt.
	DiffLimit int
}

// LoadAIConfigFromEnv loads AI configuration from environment variables.
func LoadAIConfigFromEnv() AIConfig {
	return AIConfig{
		Provider:        GetEnv("AI_PROVIDER", AIProviderAnthropic),
		AnthropicAPIKey: GetEnv("ANTHROPIC_API_KEY", ""),
		AnthropicModel:  GetEnv("ANTHROPIC_MODEL", "claude-sonnet-4-20250514"),
		AnthropicURL:    GetEnv("ANTHROPIC_API_URL", "https://api.anthropic.com"),
		OpenAIAPIKey:    GetEnv("OPENAI_API_KEY", ""),
		OpenAIBaseURL:   GetEnv("OPENAI_BASE_URL", ""),
		OpenAIModel:     GetEnv("OPENAI_MODEL", "gpt-4o-mini"),
		MaxTokens:       GetEnvInt("AI_MAX_TOKENS", 1024),
		Timeout:         GetEnvDuration("AI_TIMEOUT", 20*time.Second),
		DiffLimit:       GetEnvInt("AI_DIFF_LIMIT", 5000),
	}
}

// Validate validates AI configuration. Missing API keys are allowed; the analyzer
// then always returns its fallback result.
func (c AIConfig) Validate() error {
	switch c.Provider {
	case AIProviderAnthropic, AIProviderOpenAI:
	default:
		return fmt.Errorf("invalid AI_PROVIDER: %s (must be: anthropic, openai)", c.Provider)
	}
	if c.MaxTokens <= 0 {
		return fmt.Errorf("MaxTokens must be greater than 0")
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("Timeout must be greater than 0")
	}
	if c.DiffLimit <= 0 {
		return fmt.Errorf("DiffLimit must be greater than 0")
	}
	return nil
}

// APIKey returns the key of the selected provider.
func (c AIConfig) APIKey() string {
	if c.Provider == AIProviderOpenAI {
		return c.OpenAIAPIKey
	}
	return c.AnthropicAPIKey
}
