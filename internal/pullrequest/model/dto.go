package model

import "time"

// RepositoryInfo is the provider-agnostic repository identity carried by a webhook.
type RepositoryInfo struct {
	Provider       Provider `json:"provider"`
	ProviderRepoID string   `json:"providerRepoId"`
	Name           string   `json:"name"`
	FullName       string   `json:"fullName"`
	URL            string   `json:"url"`
}

// PullRequestInfo is the provider-agnostic pull request identity carried by a webhook.
type PullRequestInfo struct {
	Number       int       `json:"number"`
	Title        string    `json:"title"`
	Description  string    `json:"description"`
	Author       string    `json:"author"`
	Status       Status    `json:"status"`
	SourceBranch string    `json:"sourceBranch"`
	TargetBranch string    `json:"targetBranch"`
	URL          string    `json:"url"`
	CreatedAt    time.Time `json:"createdAt"`
}

// PullRequestEvent is a normalized pull request webhook.
type PullRequestEvent struct {
	// Action is the provider action or event key (e.g. "opened", "pullrequest:created").
	Action      string          `json:"action"`
	Repository  RepositoryInfo  `json:"repository"`
	PullRequest PullRequestInfo `json:"pullRequest"`
}

// StatusResponse is the webhook acknowledgement body.
type StatusResponse struct {
	Status string `json:"status"`
}

// ErrorResponse is the error body returned by pullrequest endpoints.
type ErrorResponse struct {
	Error string `json:"error"`
}

// ReviewResponse is a stored review with its rendered forms.
type ReviewResponse struct {
	Review   *AIReview     `json:"review"`
	Issues   []ReviewIssue `json:"issues"`
	RiskBand string        `json:"riskBand"`
	Summary  string        `json:"summary"`
}
