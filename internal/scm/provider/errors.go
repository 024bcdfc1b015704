package provider

import (
	"errors"
	"fmt"
)

// Kind classifies a provider failure.
type Kind string

const (
	KindDiffFetchFailed           Kind = "diff_fetch_failed"
	KindCommentPostFailed         Kind = "comment_post_failed"
	KindWebhookRegistrationFailed Kind = "webhook_registration_failed"
	KindWebhookRemovalFailed      Kind = "webhook_removal_failed"
	KindRepoListFailed            Kind = "repo_list_failed"
)

var (
	// ErrNotFound is returned when the provider answers 404.
	ErrNotFound = errors.New("not found in provider")
	// ErrUnauthorized is returned when the provider rejects the token.
	ErrUnauthorized = errors.New("no provider authorization")
	// ErrNoToken is returned when no access token is configured for a provider.
	ErrNoToken = errors.New("no access token configured")
)

// Error wraps a failed provider call with the operation that failed.
type Error struct {
	Provider string
	Kind     Kind
	Cause    error
}

// NewError wraps cause under kind for provider.
func NewError(provider string, kind Kind, cause error) *Error {
	return &Error{Provider: provider, Kind: kind, Cause: cause}
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s: %v", e.Provider, e.Kind, e.Cause)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// IsKind reports whether err is a provider Error of the given kind.
func IsKind(err error, kind Kind) bool {
	var pErr *Error
	return errors.As(err, &pErr) && pErr.Kind == kind
}

// StatusError carries an unexpected HTTP status from a provider.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d: %s", e.StatusCode, e.Body)
}
