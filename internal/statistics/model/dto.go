// Package model provides data transfer objects for statistics module.
package model

import pullrequestModel "github.com/festy23/pitcrew/internal/pullrequest/model"

// PullRequestStatistics counts pull requests by status and review coverage.
type PullRequestStatistics struct {
	TotalPRs      int `json:"total_prs"`
	OpenPRs       int `json:"open_prs"`
	MergedPRs     int `json:"merged_prs"`
	ClosedPRs     int `json:"closed_prs"`
	DraftPRs      int `json:"draft_prs"`
	ReviewedPRs   int `json:"reviewed_prs"`
	UnreviewedPRs int `json:"unreviewed_prs"`
}

// PullRequestStatisticsResponse represents response for pull request statistics.
type PullRequestStatisticsResponse struct {
	Statistics PullRequestStatistics `json:"statistics"`
}

// RiskBands counts reviews per display risk band.
type RiskBands struct {
	Low    int `json:"low"`
	Medium int `json:"medium"`
	High   int `json:"high"`
}

// FileIssueCount is the number of issues reported against one file.
type FileIssueCount struct {
	FilePath string `json:"file_path"`
	Count    int    `json:"count"`
}

// ReviewStatistics aggregates all stored reviews. Unavailable counts reviews
// stored with the fallback summary.
type ReviewStatistics struct {
	TotalReviews     int              `json:"total_reviews"`
	AverageRiskScore float64          `json:"average_risk_score"`
	DeploymentReady  int              `json:"deployment_ready"`
	Unavailable      int              `json:"unavailable"`
	RiskBands        RiskBands        `json:"risk_bands"`
	Issues           IssueStatistics  `json:"issues"`
	TopFiles         []FileIssueCount `json:"top_files"`
}

// ReviewStatisticsResponse represents response for review statistics.
type ReviewStatisticsResponse struct {
	Statistics ReviewStatistics `json:"statistics"`
}

// PullRequestIssuesResponse breaks down the issues of one review.
type PullRequestIssuesResponse struct {
	PullRequestID uint                                      `json:"pull_request_id"`
	Statistics    IssueStatistics                           `json:"statistics"`
	ByFile        map[string][]pullrequestModel.ReviewIssue `json:"by_file"`
}
