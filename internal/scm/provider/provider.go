// Package provider defines the source-control client contract shared by GitHub and Bitbucket.
package provider

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// DefaultTimeout bounds every provider REST call.
const DefaultTimeout = 30 * time.Second

// Client is implemented once per provider. Callers select an implementation by the
// repository's provider and never branch on the provider string themselves.
type Client interface {
	// Name returns the provider identifier ("github" or "bitbucket").
	Name() string

	// FetchRepos lists repositories visible to the token holder.
	FetchRepos(ctx context.Context, token string) ([]Repo, error)
	// FetchDiff returns the unified diff of a pull request.
	FetchDiff(ctx context.Context, repo RepoRef, number int, token string) (string, error)
	// PostComment adds a top-level comment to a pull request.
	PostComment(ctx context.Context, repo RepoRef, number int, token, text string) error
	// RegisterWebhook subscribes callbackURL to pull request events and returns the hook id.
	RegisterWebhook(ctx context.Context, repo RepoRef, callbackURL, token string) (string, error)
	// UnregisterWebhook removes repo.WebhookID. A hook that is already gone is not an error.
	UnregisterWebhook(ctx context.Context, repo RepoRef, token string) error
}

// RepoRef addresses a repository on its provider.
type RepoRef struct {
	// FullName is "owner/name" on GitHub and "workspace/slug" on Bitbucket.
	FullName  string
	WebhookID string
}

// Split returns the owner (workspace) and name (slug) parts of FullName.
func (r RepoRef) Split() (owner, name string, err error) {
	owner, name, ok := strings.Cut(r.FullName, "/")
	if !ok || owner == "" || name == "" {
		return "", "", fmt.Errorf("invalid repository full name %q", r.FullName)
	}
	return owner, name, nil
}

// Repo is a repository returned by FetchRepos.
type Repo struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	FullName string `json:"fullName"`
	URL      string `json:"url"`
}
