package scm

import (
	"context"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/festy23/pitcrew/internal/scm/provider"
	"github.com/festy23/pitcrew/pkg/retry"
)

// Stable retries idempotent reads of the wrapped client. Writes pass through once
// so comments and hooks are never duplicated.
type Stable struct {
	underlying provider.Client
	policy     retry.Config
	logger     *zap.SugaredLogger
}

var _ provider.Client = (*Stable)(nil)

// NewStable wraps underlying with policy.
func NewStable(underlying provider.Client, policy retry.Config, logger *zap.SugaredLogger) *Stable {
	return &Stable{underlying: underlying, policy: policy, logger: logger}
}

// Transient reports whether a provider error is worth retrying.
func Transient(err error) bool {
	if errors.Is(err, provider.ErrNotFound) || errors.Is(err, provider.ErrUnauthorized) ||
		errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return false
	}
	var sErr *provider.StatusError
	if errors.As(err, &sErr) {
		return sErr.StatusCode >= http.StatusInternalServerError || sErr.StatusCode == http.StatusTooManyRequests
	}
	return true
}

func (s *Stable) Name() string {
	return s.underlying.Name()
}

func (s *Stable) FetchRepos(ctx context.Context, token string) ([]provider.Repo, error) {
	attempt := 0
	return retry.DoWithResult(ctx, s.policy, func() ([]provider.Repo, error) {
		attempt++
		repos, err := s.underlying.FetchRepos(ctx, token)
		if err != nil && attempt < s.policy.MaxAttempts && s.policy.ShouldRetry(err) {
			s.logger.Warnw("Retrying repository listing", "provider", s.Name(), "attempt", attempt, "error", err)
		}
		return repos, err
	})
}

func (s *Stable) FetchDiff(ctx context.Context, repo provider.RepoRef, number int, token string) (string, error) {
	attempt := 0
	return retry.DoWithResult(ctx, s.policy, func() (string, error) {
		attempt++
		diff, err := s.underlying.FetchDiff(ctx, repo, number, token)
		if err != nil && attempt < s.policy.MaxAttempts && s.policy.ShouldRetry(err) {
			s.logger.Warnw("Retrying diff fetch",
				"provider", s.Name(), "repository", repo.FullName, "pr_number", number, "attempt", attempt, "error", err)
		}
		return diff, err
	})
}

func (s *Stable) PostComment(ctx context.Context, repo provider.RepoRef, number int, token, text string) error {
	return s.underlying.PostComment(ctx, repo, number, token, text)
}

func (s *Stable) RegisterWebhook(ctx context.Context, repo provider.RepoRef, callbackURL, token string) (string, error) {
	return s.underlying.RegisterWebhook(ctx, repo, callbackURL, token)
}

func (s *Stable) UnregisterWebhook(ctx context.Context, repo provider.RepoRef, token string) error {
	return s.underlying.UnregisterWebhook(ctx, repo, token)
}
