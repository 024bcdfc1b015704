package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"
)

// ProvidersConfig holds source-control credentials and webhook settings.
type ProvidersConfig struct {
	GitHubToken         string
	GitHubAPIURL        string
	GitHubWebhookSecret string

	BitbucketToken         string
	BitbucketAPIURL        string
	BitbucketWebhookSecret string

	Timeout time.Duration
	// CallbackBaseURL is the public URL webhooks are registered against.
	CallbackBaseURL string
}

// LoadProvidersConfigFromEnv loads provider configuration from environment variables.
func LoadProvidersConfigFromEnv() ProvidersConfig {
	return ProvidersConfig{
		GitHubToken:            GetEnv("GITHUB_TOKEN", ""),
		GitHubAPIURL:           GetEnv("GITHUB_API_URL", ""),
		GitHubWebhookSecret:    GetEnv("GITHUB_WEBHOOK_SECRET", ""),
		BitbucketToken:         GetEnv("BITBUCKET_TOKEN", ""),
		BitbucketAPIURL:        GetEnv("BITBUCKET_API_URL", ""),
		BitbucketWebhookSecret: GetEnv("BITBUCKET_WEBHOOK_SECRET", ""),
		Timeout:                GetEnvDuration("PROVIDER_TIMEOUT", 30*time.Second),
		CallbackBaseURL:        strings.TrimSuffix(GetEnv("WEBHOOK_CALLBACK_BASE_URL", ""), "/"),
	}
}

// Validate validates provider configuration.
func (c ProvidersConfig) Validate() error {
	if c.Timeout <= 0 {
		return fmt.Errorf("Timeout must be greater than 0")
	}
	for name, raw := range map[string]string{
		"GITHUB_API_URL":            c.GitHubAPIURL,
		"BITBUCKET_API_URL":         c.BitbucketAPIURL,
		"WEBHOOK_CALLBACK_BASE_URL": c.CallbackBaseURL,
	} {
		if raw == "" {
			continue
		}
		u, err := url.Parse(raw)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("invalid %s: %q", name, raw)
		}
	}
	return nil
}
