// Package scm builds provider clients and resolves their credentials.
package scm

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/festy23/pitcrew/internal/config"
	"github.com/festy23/pitcrew/internal/pullrequest/model"
	"github.com/festy23/pitcrew/internal/scm/bitbucket"
	"github.com/festy23/pitcrew/internal/scm/github"
	"github.com/festy23/pitcrew/internal/scm/provider"
	"github.com/festy23/pitcrew/pkg/retry"
)

// Credentials resolves the access token used for a provider.
type Credentials interface {
	Token(p model.Provider) (string, error)
}

// StaticCredentials maps providers to tokens read at startup.
type StaticCredentials map[model.Provider]string

// Token returns the configured token or provider.ErrNoToken.
func (s StaticCredentials) Token(p model.Provider) (string, error) {
	token := s[p]
	if token == "" {
		return "", fmt.Errorf("%w for %s", provider.ErrNoToken, p)
	}
	return token, nil
}

// Factory hands out one client per provider.
type Factory struct {
	clients     map[model.Provider]provider.Client
	credentials Credentials
}

// NewFactory builds GitHub and Bitbucket clients wrapped with read retries.
func NewFactory(cfg config.ProvidersConfig, logger *zap.SugaredLogger) *Factory {
	policy := retry.ProviderConfig(Transient)
	clients := map[model.Provider]provider.Client{
		model.ProviderGitHub: NewStable(github.New(github.Config{
			BaseURL:       cfg.GitHubAPIURL,
			WebhookSecret: cfg.GitHubWebhookSecret,
			Timeout:       cfg.Timeout,
		}, logger), policy, logger),
		model.ProviderBitbucket: NewStable(bitbucket.New(bitbucket.Config{
			BaseURL: cfg.BitbucketAPIURL,
			Timeout: cfg.Timeout,
		}, logger), policy, logger),
	}
	credentials := StaticCredentials{
		model.ProviderGitHub:    cfg.GitHubToken,
		model.ProviderBitbucket: cfg.BitbucketToken,
	}
	return NewFactoryWithClients(clients, credentials)
}

// NewFactoryWithClients assembles a factory from prepared clients.
func NewFactoryWithClients(clients map[model.Provider]provider.Client, credentials Credentials) *Factory {
	return &Factory{clients: clients, credentials: credentials}
}

// Client returns the client for p.
func (f *Factory) Client(p model.Provider) (provider.Client, error) {
	c, ok := f.clients[p]
	if !ok {
		return nil, fmt.Errorf("%w: %s", model.ErrUnsupportedProvider, p)
	}
	return c, nil
}

// ClientWithToken returns the client for p together with its access token.
func (f *Factory) ClientWithToken(p model.Provider) (provider.Client, string, error) {
	c, err := f.Client(p)
	if err != nil {
		return nil, "", err
	}
	token, err := f.credentials.Token(p)
	if err != nil {
		return nil, "", err
	}
	return c, token, nil
}
