// Package config loads process configuration from the environment once at startup.
package config

import "fmt"

// Config holds application configuration.
type Config struct {
	Server    ServerConfig
	Logger    LoggerConfig
	Review    ReviewConfig
	AI        AIConfig
	Providers ProvidersConfig
	// GinMode is the Gin framework mode (debug, release, test).
	GinMode string
}

// LoadFromEnv loads all configuration from environment variables.
func LoadFromEnv() Config {
	return Config{
		Server:    LoadServerConfigFromEnv(),
		Logger:    LoadLoggerConfigFromEnv(),
		Review:    LoadReviewConfigFromEnv(),
		AI:        LoadAIConfigFromEnv(),
		Providers: LoadProvidersConfigFromEnv(),
		GinMode:   GetEnv("GIN_MODE", "release"),
	}
}

// Validate validates all configuration.
func (c Config) Validate() error {
	if err := c.Server.Validate(); err != nil {
		return fmt.Errorf("server config validation failed: %w", err)
	}
	if err := c.Logger.Validate(); err != nil {
		return fmt.Errorf("logger config validation failed: %w", err)
	}
	if err := c.Review.Validate(); err != nil {
		return fmt.Errorf("review config validation failed: %w", err)
	}
	if err := c.AI.Validate(); err != nil {
		return fmt.Errorf("ai config validation failed: %w", err)
	}
	if err := c.Providers.Validate(); err != nil {
		return fmt.Errorf("providers config validation failed: %w", err)
	}
	if c.Server.WriteTimeout <= c.Review.Timeout {
		return fmt.Errorf("SERVER_WRITE_TIMEOUT (%s) must exceed REVIEW_TIMEOUT (%s)", c.Server.WriteTimeout, c.Review.Timeout)
	}

	switch c.GinMode {
	case "debug", "release", "test":
	default:
		return fmt.Errorf("invalid GIN_MODE: %s (must be: debug, release, test)", c.GinMode)
	}
	return nil
}
