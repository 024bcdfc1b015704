// Package model provides domain models and data transfer objects for the pullrequest module.
package model

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// Provider identifies a source-control provider.
type Provider string

const (
	// ProviderGitHub is github.com.
	ProviderGitHub Provider = "github"
	// ProviderBitbucket is bitbucket.org.
	ProviderBitbucket Provider = "bitbucket"
)

// Valid reports whether p is a supported provider.
func (p Provider) Valid() bool {
	return p == ProviderGitHub || p == ProviderBitbucket
}

// Status is the canonical pull request state.
type Status string

const (
	StatusOpen   Status = "open"
	StatusMerged Status = "merged"
	StatusClosed Status = "closed"
	StatusDraft  Status = "draft"
)

// Severity ranks a review issue.
type Severity string

const (
	SeverityHigh   Severity = "high"
	SeverityMedium Severity = "medium"
	SeverityLow    Severity = "low"
)

// Rank returns a numeric rank for sorting (higher = more severe).
func (s Severity) Rank() int {
	switch s {
	case SeverityHigh:
		return 3
	case SeverityMedium:
		return 2
	case SeverityLow:
		return 1
	default:
		return 0
	}
}

// ParseSeverity normalizes analyzer output; unknown values become low.
func ParseSeverity(s string) Severity {
	switch Severity(s) {
	case SeverityHigh, SeverityMedium, SeverityLow:
		return Severity(s)
	default:
		return SeverityLow
	}
}

// Repository represents a source-control repository.
// Matches the repositories table schema.
type Repository struct {
	ID             uint          `gorm:"primaryKey;column:id"                                                                                                     json:"id"`
	Provider       Provider      `gorm:"column:provider;type:varchar(20);not null;uniqueIndex:idx_repositories_provider_repo_id,priority:1;uniqueIndex:idx_repositories_owner_full_name,priority:2" json:"provider"`
	ProviderRepoID string        `gorm:"column:provider_repo_id;type:varchar(255);not null;uniqueIndex:idx_repositories_provider_repo_id,priority:2"               json:"providerRepoId"`
	OwnerID        *uint         `gorm:"column:owner_id;uniqueIndex:idx_repositories_owner_full_name,priority:1"                                                  json:"ownerId,omitempty"`
	Name           string        `gorm:"column:name;type:varchar(255);not null"                                                                                   json:"name"`
	FullName       string        `gorm:"column:full_name;type:varchar(255);not null;uniqueIndex:idx_repositories_owner_full_name,priority:3"                      json:"fullName"`
	URL            string        `gorm:"column:url;type:varchar(500);not null"                                                                                    json:"url"`
	IsActive       bool          `gorm:"column:is_active;not null;default:true"                                                                                   json:"isActive"`
	WebhookID      *string       `gorm:"column:webhook_id;type:varchar(255)"                                                                                      json:"webhookId,omitempty"`
	CreatedAt      time.Time     `gorm:"column:created_at"                                                                                                        json:"createdAt"`
	UpdatedAt      time.Time     `gorm:"column:updated_at"                                                                                                        json:"updatedAt"`
	PullRequests   []PullRequest `gorm:"foreignKey:RepositoryID;constraint:OnDelete:CASCADE"                                                                      json:"-"`
}

// TableName specifies the table name for GORM.
func (Repository) TableName() string {
	return "repositories"
}

// PullRequest represents a pull request, unique per (repository, number).
// Matches the pull_requests table schema.
type PullRequest struct {
	ID           uint        `gorm:"primaryKey;column:id"                                                                     json:"id"`
	RepositoryID uint        `gorm:"column:repository_id;not null;uniqueIndex:idx_pull_requests_repository_number,priority:1" json:"repositoryId"`
	Number       int         `gorm:"column:pr_number;not null;uniqueIndex:idx_pull_requests_repository_number,priority:2"     json:"number"`
	Title        string      `gorm:"column:title;type:varchar(500);not null"                                                  json:"title"`
	Description  string      `gorm:"column:description;type:text;not null;default:''"                                         json:"description"`
	Author       string      `gorm:"column:author;type:varchar(255);not null"                                                 json:"author"`
	Status       Status      `gorm:"column:status;type:varchar(20);not null;index:idx_pull_requests_status"                   json:"status"`
	SourceBranch string      `gorm:"column:source_branch;type:varchar(255);not null"                                          json:"sourceBranch"`
	TargetBranch string      `gorm:"column:target_branch;type:varchar(255);not null"                                          json:"targetBranch"`
	URL          string      `gorm:"column:url;type:varchar(500);not null"                                                    json:"url"`
	CreatedAt    time.Time   `gorm:"column:created_at"                                                                        json:"createdAt"`
	UpdatedAt    time.Time   `gorm:"column:updated_at"                                                                        json:"updatedAt"`
	Repository   *Repository `gorm:"foreignKey:RepositoryID"                                                                  json:"repository,omitempty"`
	AIReview     *AIReview   `gorm:"foreignKey:PullRequestID;constraint:OnDelete:CASCADE"                                     json:"aiReview,omitempty"`
}

// TableName specifies the table name for GORM.
func (PullRequest) TableName() string {
	return "pull_requests"
}

// AIReview is the single analysis stored for a pull request.
// Matches the ai_reviews table schema.
type AIReview struct {
	ID              uint          `gorm:"primaryKey;column:id"                                          json:"id"`
	PullRequestID   uint          `gorm:"column:pull_request_id;not null;uniqueIndex"                   json:"pullRequestId"`
	RiskScore       int           `gorm:"column:risk_score;not null;default:0;index"                    json:"riskScore"`
	Summary         string        `gorm:"column:summary;type:text;not null"                             json:"summary"`
	DeploymentReady bool          `gorm:"column:deployment_ready;not null;default:false;index"          json:"deploymentReady"`
	AnalysisData    AnalysisData  `gorm:"column:analysis_data;type:jsonb;not null"                      json:"analysisData"`
	CreatedAt       time.Time     `gorm:"column:created_at;index"                                       json:"createdAt"`
	Issues          []ReviewIssue `gorm:"foreignKey:AIReviewID;constraint:OnDelete:CASCADE"             json:"issues,omitempty"`
}

// TableName specifies the table name for GORM.
func (AIReview) TableName() string {
	return "ai_reviews"
}

// MaxIssueTextLength is the width of the review_issues title and file_path columns, in characters.
const MaxIssueTextLength = 500

// ReviewIssue is a single finding of an AI review.
// Matches the review_issues table schema.
type ReviewIssue struct {
	ID         uint      `gorm:"primaryKey;column:id"                                                  json:"id"`
	AIReviewID uint      `gorm:"column:ai_review_id;not null;index:idx_review_issues_review_severity"  json:"aiReviewId"`
	Severity   Severity  `gorm:"column:severity;type:varchar(10);not null;index:idx_review_issues_review_severity" json:"severity"`
	Title      string    `gorm:"column:title;type:varchar(500);not null"                               json:"title"`
	FilePath   string    `gorm:"column:file_path;type:varchar(500);not null"                           json:"filePath"`
	LineNumber *int      `gorm:"column:line_number"                                                    json:"lineNumber,omitempty"`
	Suggestion string    `gorm:"column:suggestion;type:text;not null"                                  json:"suggestion"`
	CreatedAt  time.Time `gorm:"column:created_at"                                                     json:"createdAt"`
}

// TableName specifies the table name for GORM.
func (ReviewIssue) TableName() string {
	return "review_issues"
}

// AnalysisData is the raw analyzer payload kept for audit and comment rendering.
type AnalysisData map[string]any

// Value implements driver.Valuer.
func (a AnalysisData) Value() (driver.Value, error) {
	if a == nil {
		return "{}", nil
	}
	b, err := json.Marshal(a)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal analysis data: %w", err)
	}
	return string(b), nil
}

// Scan implements sql.Scanner.
func (a *AnalysisData) Scan(value any) error {
	var raw []byte
	switch v := value.(type) {
	case nil:
		*a = AnalysisData{}
		return nil
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return fmt.Errorf("unsupported analysis data type %T", value)
	}

	data := AnalysisData{}
	if err := json.Unmarshal(raw, &data); err != nil {
		return fmt.Errorf("failed to unmarshal analysis data: %w", err)
	}
	*a = data
	return nil
}

// Strings returns a string list stored under key, skipping non-string entries.
func (a AnalysisData) Strings(key string) []string {
	items, ok := a[key].([]any)
	if !ok {
		if typed, ok := a[key].([]string); ok {
			return typed
		}
		return nil
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}
