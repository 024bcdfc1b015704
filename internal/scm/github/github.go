// Package github implements provider.Client on the GitHub REST API.
package github

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	gh "github.com/google/go-github/v45/github"
	"go.uber.org/zap"
	"golang.org/x/oauth2"

	"github.com/festy23/pitcrew/internal/scm/provider"
)

// ProviderName is the provider identifier.
const ProviderName = "github"

const maxRepoPages = 10

// hookEvents are the pull request lifecycle events a registered webhook subscribes to.
var hookEvents = []string{"pull_request", "pull_request_review", "pull_request_review_comment"}

// Config configures the GitHub client.
type Config struct {
	// BaseURL overrides the API root, e.g. for GitHub Enterprise. Empty means api.github.com.
	BaseURL string
	// WebhookSecret is embedded in registered hooks when set.
	WebhookSecret string
	// Timeout bounds each request; zero selects provider.DefaultTimeout.
	Timeout time.Duration
}

// Client talks to GitHub with a per-call token.
type Client struct {
	cfg    Config
	logger *zap.SugaredLogger
}

var _ provider.Client = (*Client)(nil)

// New creates a GitHub client.
func New(cfg Config, logger *zap.SugaredLogger) *Client {
	return &Client{cfg: cfg, logger: logger}
}

// Name returns the provider identifier.
func (c *Client) Name() string {
	return ProviderName
}

func (c *Client) client(token string) (*gh.Client, error) {
	timeout := provider.DefaultTimeout
	if c.cfg.Timeout > 0 {
		timeout = c.cfg.Timeout
	}
	httpClient := &http.Client{
		Timeout: timeout,
		Transport: &oauth2.Transport{
			Source: oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token}),
		},
	}

	client := gh.NewClient(httpClient)
	if c.cfg.BaseURL != "" {
		base := c.cfg.BaseURL
		if !strings.HasSuffix(base, "/") {
			base += "/"
		}
		u, err := url.Parse(base)
		if err != nil {
			return nil, err
		}
		client.BaseURL = u
	}
	return client, nil
}

func (c *Client) unwrapError(err error) error {
	var er *gh.ErrorResponse
	if errors.As(err, &er) && er.Response != nil {
		switch er.Response.StatusCode {
		case http.StatusNotFound:
			return provider.ErrNotFound
		case http.StatusUnauthorized:
			return provider.ErrUnauthorized
		default:
			return &provider.StatusError{StatusCode: er.Response.StatusCode, Body: er.Message}
		}
	}
	return err
}

// FetchRepos lists repositories of the authenticated user.
func (c *Client) FetchRepos(ctx context.Context, token string) ([]provider.Repo, error) {
	client, err := c.client(token)
	if err != nil {
		return nil, provider.NewError(ProviderName, provider.KindRepoListFailed, err)
	}

	opts := &gh.RepositoryListOptions{ListOptions: gh.ListOptions{PerPage: 100}}
	var repos []provider.Repo
	for page := 0; page < maxRepoPages; page++ {
		list, resp, err := client.Repositories.List(ctx, "", opts)
		if err != nil {
			return nil, provider.NewError(ProviderName, provider.KindRepoListFailed, c.unwrapError(err))
		}
		for _, r := range list {
			repos = append(repos, provider.Repo{
				ID:       strconv.FormatInt(r.GetID(), 10),
				Name:     r.GetName(),
				FullName: r.GetFullName(),
				URL:      r.GetHTMLURL(),
			})
		}
		if resp == nil || resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}
	return repos, nil
}

// FetchDiff requests the pull request in the diff media type.
func (c *Client) FetchDiff(ctx context.Context, repo provider.RepoRef, number int, token string) (string, error) {
	owner, name, err := repo.Split()
	if err != nil {
		return "", provider.NewError(ProviderName, provider.KindDiffFetchFailed, err)
	}
	client, err := c.client(token)
	if err != nil {
		return "", provider.NewError(ProviderName, provider.KindDiffFetchFailed, err)
	}

	diff, _, err := client.PullRequests.GetRaw(ctx, owner, name, number, gh.RawOptions{Type: gh.Diff})
	if err != nil {
		return "", provider.NewError(ProviderName, provider.KindDiffFetchFailed, c.unwrapError(err))
	}
	return diff, nil
}

// PostComment creates an issue comment on the pull request.
func (c *Client) PostComment(ctx context.Context, repo provider.RepoRef, number int, token, text string) error {
	owner, name, err := repo.Split()
	if err != nil {
		return provider.NewError(ProviderName, provider.KindCommentPostFailed, err)
	}
	client, err := c.client(token)
	if err != nil {
		return provider.NewError(ProviderName, provider.KindCommentPostFailed, err)
	}

	if _, _, err := client.Issues.CreateComment(ctx, owner, name, number, &gh.IssueComment{Body: gh.String(text)}); err != nil {
		return provider.NewError(ProviderName, provider.KindCommentPostFailed, c.unwrapError(err))
	}
	return nil
}

// RegisterWebhook creates a json web hook for pull request events.
func (c *Client) RegisterWebhook(ctx context.Context, repo provider.RepoRef, callbackURL, token string) (string, error) {
	owner, name, err := repo.Split()
	if err != nil {
		return "", provider.NewError(ProviderName, provider.KindWebhookRegistrationFailed, err)
	}
	client, err := c.client(token)
	if err != nil {
		return "", provider.NewError(ProviderName, provider.KindWebhookRegistrationFailed, err)
	}

	config := map[string]interface{}{
		"url":          callbackURL,
		"content_type": "json",
		"insecure_ssl": "0",
	}
	if c.cfg.WebhookSecret != "" {
		config["secret"] = c.cfg.WebhookSecret
	}

	hook, _, err := client.Repositories.CreateHook(ctx, owner, name, &gh.Hook{
		Config: config,
		Events: hookEvents,
		Active: gh.Bool(true),
	})
	if err != nil {
		return "", provider.NewError(ProviderName, provider.KindWebhookRegistrationFailed, c.unwrapError(err))
	}

	id := strconv.FormatInt(hook.GetID(), 10)
	c.logger.Infow("Registered webhook", "provider", ProviderName, "repository", repo.FullName, "webhook_id", id)
	return id, nil
}

// UnregisterWebhook deletes the hook; 404 counts as already removed.
func (c *Client) UnregisterWebhook(ctx context.Context, repo provider.RepoRef, token string) error {
	if repo.WebhookID == "" {
		return nil
	}
	owner, name, err := repo.Split()
	if err != nil {
		return provider.NewError(ProviderName, provider.KindWebhookRemovalFailed, err)
	}
	hookID, err := strconv.ParseInt(repo.WebhookID, 10, 64)
	if err != nil {
		return provider.NewError(ProviderName, provider.KindWebhookRemovalFailed, err)
	}
	client, err := c.client(token)
	if err != nil {
		return provider.NewError(ProviderName, provider.KindWebhookRemovalFailed, err)
	}

	if _, err := client.Repositories.DeleteHook(ctx, owner, name, hookID); err != nil {
		err = c.unwrapError(err)
		if errors.Is(err, provider.ErrNotFound) {
			c.logger.Warnw("Webhook already removed", "provider", ProviderName, "repository", repo.FullName, "webhook_id", repo.WebhookID)
			return nil
		}
		return provider.NewError(ProviderName, provider.KindWebhookRemovalFailed, err)
	}
	return nil
}
