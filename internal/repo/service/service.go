// Package service provides repository listing and webhook management.
package service

import (
	"context"

	"go.uber.org/zap"

	pullrequestModel "github.com/festy23/pitcrew/internal/pullrequest/model"
	"github.com/festy23/pitcrew/internal/pullrequest/repository"
	repoModel "github.com/festy23/pitcrew/internal/repo/model"
	"github.com/festy23/pitcrew/internal/scm/provider"
)

// Service defines repository management operations.
type Service interface {
	// ListAvailable lists provider repositories visible to the configured token.
	ListAvailable(ctx context.Context, p pullrequestModel.Provider) ([]provider.Repo, error)

	// RegisterWebhook subscribes the repository to pull request events and marks it active.
	// A repository that already holds a webhook id keeps it; no second hook is created.
	RegisterWebhook(ctx context.Context, repositoryID uint) (*pullrequestModel.Repository, error)

	// UnregisterWebhook removes the subscription, clears the webhook id and deactivates the repository.
	UnregisterWebhook(ctx context.Context, repositoryID uint) (*pullrequestModel.Repository, error)
}

// Providers resolves the client and token for a provider.
type Providers interface {
	ClientWithToken(p pullrequestModel.Provider) (provider.Client, string, error)
}

type service struct {
	repo            repository.Repository
	providers       Providers
	callbackBaseURL string
	logger          *zap.SugaredLogger
}

// New creates a new repository management service.
func New(repo repository.Repository, providers Providers, callbackBaseURL string, logger *zap.SugaredLogger) Service {
	return &service{
		repo:            repo,
		providers:       providers,
		callbackBaseURL: callbackBaseURL,
		logger:          logger,
	}
}

func (s *service) ListAvailable(ctx context.Context, p pullrequestModel.Provider) ([]provider.Repo, error) {
	if !p.Valid() {
		return nil, repoModel.ErrInvalidProvider
	}
	client, token, err := s.providers.ClientWithToken(p)
	if err != nil {
		return nil, err
	}
	repos, err := client.FetchRepos(ctx, token)
	if err != nil {
		return nil, err
	}
	if repos == nil {
		repos = []provider.Repo{}
	}
	return repos, nil
}

func (s *service) RegisterWebhook(ctx context.Context, repositoryID uint) (*pullrequestModel.Repository, error) {
	if s.callbackBaseURL == "" {
		return nil, repoModel.ErrCallbackURLMissing
	}
	repo, err := s.repo.GetRepository(ctx, repositoryID)
	if err != nil {
		return nil, err
	}
	if repo.WebhookID != nil && *repo.WebhookID != "" {
		s.logger.Infow("webhook already registered",
			"repository_id", repo.ID,
			"repository", repo.FullName,
			"webhook_id", *repo.WebhookID,
		)
		if repo.IsActive {
			return repo, nil
		}
		return s.repo.SetWebhook(ctx, repo.ID, repo.WebhookID, true)
	}
	client, token, err := s.providers.ClientWithToken(repo.Provider)
	if err != nil {
		return nil, provider.NewError(string(repo.Provider), provider.KindWebhookRegistrationFailed, err)
	}

	callback := s.callbackBaseURL + "/webhooks/" + string(repo.Provider)
	hookID, err := client.RegisterWebhook(ctx, provider.RepoRef{FullName: repo.FullName}, callback, token)
	if err != nil {
		return nil, err
	}

	updated, err := s.repo.SetWebhook(ctx, repo.ID, &hookID, true)
	if err != nil {
		return nil, err
	}
	s.logger.Infow("webhook registered",
		"repository_id", repo.ID,
		"repository", repo.FullName,
		"webhook_id", hookID,
	)
	return updated, nil
}

func (s *service) UnregisterWebhook(ctx context.Context, repositoryID uint) (*pullrequestModel.Repository, error) {
	repo, err := s.repo.GetRepository(ctx, repositoryID)
	if err != nil {
		return nil, err
	}

	if repo.WebhookID != nil && *repo.WebhookID != "" {
		client, token, err := s.providers.ClientWithToken(repo.Provider)
		if err != nil {
			return nil, provider.NewError(string(repo.Provider), provider.KindWebhookRemovalFailed, err)
		}
		ref := provider.RepoRef{FullName: repo.FullName, WebhookID: *repo.WebhookID}
		if err := client.UnregisterWebhook(ctx, ref, token); err != nil {
			return nil, err
		}
	}

	updated, err := s.repo.SetWebhook(ctx, repo.ID, nil, false)
	if err != nil {
		return nil, err
	}
	s.logger.Infow("webhook unregistered", "repository_id", repo.ID, "repository", repo.FullName)
	return updated, nil
}
