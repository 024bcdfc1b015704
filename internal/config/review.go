package config

import (
	"fmt"
	"time"
)

// Thresholds splits risk scores into low, medium and high bands.
// A score below Medium is low, below High is medium, otherwise high.
type Thresholds struct {
	Medium int
	High   int
}

// Validate checks 0 <= Medium < High <= 100.
func (t Thresholds) Validate() error {
	if t.Medium < 0 || t.High > 100 || t.Medium >= t.High {
		return fmt.Errorf("invalid risk thresholds %d/%d (need 0 <= medium < high <= 100)", t.Medium, t.High)
	}
	return nil
}

// ReviewConfig controls when the pipeline reviews and how results are published.
type ReviewConfig struct {
	// ReviewOnUpdate also analyzes PRs on update events, not only on creation.
	ReviewOnUpdate bool
	// PostComments publishes the formatted review back to the provider.
	PostComments         bool
	MaxDescriptionLength int
	// CommentRisk bands risk in posted comments.
	CommentRisk Thresholds
	// DisplayRisk bands risk in API responses and statistics.
	DisplayRisk Thresholds
	// Timeout is one deadline shared by the diff fetch, analysis and comment post of a review.
	Timeout time.Duration
}

// LoadReviewConfigFromEnv loads review configuration from environment variables.
func LoadReviewConfigFromEnv() ReviewConfig {
	return ReviewConfig{
		ReviewOnUpdate:       GetEnvBool("REVIEW_ON_UPDATE", false),
		PostComments:         GetEnvBool("POST_COMMENTS", true),
		MaxDescriptionLength: GetEnvInt("DESCRIPTION_MAX_LENGTH", 5000),
		CommentRisk: Thresholds{
			Medium: GetEnvInt("COMMENT_RISK_MEDIUM", 30),
			High:   GetEnvInt("COMMENT_RISK_HIGH", 60),
		},
		DisplayRisk: Thresholds{
			Medium: GetEnvInt("DISPLAY_RISK_MEDIUM", 30),
			High:   GetEnvInt("DISPLAY_RISK_HIGH", 70),
		},
		Timeout: GetEnvDuration("REVIEW_TIMEOUT", 75*time.Second),
	}
}

// Validate validates review configuration.
func (c ReviewConfig) Validate() error {
	if c.MaxDescriptionLength <= 0 {
		return fmt.Errorf("MaxDescriptionLength must be greater than 0")
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("Timeout must be greater than 0")
	}
	if err := c.CommentRisk.Validate(); err != nil {
		return fmt.Errorf("comment risk: %w", err)
	}
	if err := c.DisplayRisk.Validate(); err != nil {
		return fmt.Errorf("display risk: %w", err)
	}
	return nil
}
