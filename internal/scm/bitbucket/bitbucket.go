// Package bitbucket implements provider.Client on the Bitbucket Cloud 2.0 REST API.
package bitbucket

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	bb "github.com/ktrysmt/go-bitbucket"
	"go.uber.org/zap"

	"github.com/festy23/pitcrew/internal/scm/provider"
)

// ProviderName is the provider identifier.
const ProviderName = "bitbucket"

// DefaultBaseURL is the Bitbucket Cloud API root.
const DefaultBaseURL = "https://api.bitbucket.org"

const (
	hookDescription = "PitCrew AI Code Review"
	memberRole      = "member"
	maxRepoPages    = 10
)

var hookEvents = []string{
	"pullrequest:created",
	"pullrequest:updated",
	"pullrequest:fulfilled",
	"pullrequest:rejected",
	"pullrequest:comment_created",
}

// Config configures the Bitbucket client.
type Config struct {
	// BaseURL overrides the API root. Empty means DefaultBaseURL.
	BaseURL string
	// Timeout bounds each call, pagination included; zero selects provider.DefaultTimeout.
	Timeout time.Duration
}

// Client talks to Bitbucket with a per-call bearer token.
type Client struct {
	apiURL  string
	timeout time.Duration
	logger  *zap.SugaredLogger
}

var _ provider.Client = (*Client)(nil)

// New creates a Bitbucket client.
func New(cfg Config, logger *zap.SugaredLogger) *Client {
	baseURL := strings.TrimSuffix(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = provider.DefaultTimeout
	}
	return &Client{
		apiURL:  baseURL + "/2.0",
		timeout: timeout,
		logger:  logger,
	}
}

// Name returns the provider identifier.
func (c *Client) Name() string {
	return ProviderName
}

// contextTransport attaches ctx to every outgoing request, including
// pagination and redirect follow-ups the SDK issues on its own.
type contextTransport struct {
	ctx  context.Context
	base http.RoundTripper
}

func (t *contextTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	return t.base.RoundTrip(req.WithContext(t.ctx))
}

// client builds an SDK client for one call. Most SDK methods never bind the
// request to a context, so ctx is carried by the transport instead. The
// returned cancel must be called once the call is done.
func (c *Client) client(ctx context.Context, token string) (*bb.Client, context.CancelFunc, error) {
	client, err := bb.NewOAuthbearerTokenWithBaseUrlStr(token, c.apiURL)
	if err != nil {
		return nil, nil, err
	}
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	client.HttpClient = &http.Client{
		Transport: &contextTransport{ctx: ctx, base: http.DefaultTransport},
	}
	client.LimitPages = maxRepoPages
	return client, cancel, nil
}

func (c *Client) unwrapError(err error) error {
	var se *bb.UnexpectedResponseStatusError
	if errors.As(err, &se) {
		switch se.StatusCode {
		case http.StatusNotFound:
			return provider.ErrNotFound
		case http.StatusUnauthorized:
			return provider.ErrUnauthorized
		default:
			return &provider.StatusError{StatusCode: se.StatusCode, Body: string(se.Body)}
		}
	}
	return err
}

// FetchRepos lists repositories the token holder is a member of, workspace by workspace.
func (c *Client) FetchRepos(ctx context.Context, token string) ([]provider.Repo, error) {
	client, cancel, err := c.client(ctx, token)
	if err != nil {
		return nil, provider.NewError(ProviderName, provider.KindRepoListFailed, err)
	}
	defer cancel()

	workspaces, err := client.Workspaces.List()
	if err != nil {
		return nil, provider.NewError(ProviderName, provider.KindRepoListFailed, c.unwrapError(err))
	}

	var repos []provider.Repo
	for _, ws := range workspaces.Workspaces {
		res, err := client.Repositories.ListForAccount(&bb.RepositoriesOptions{Owner: ws.Slug, Role: memberRole})
		if err != nil {
			return nil, provider.NewError(ProviderName, provider.KindRepoListFailed, c.unwrapError(err))
		}
		for _, r := range res.Items {
			repos = append(repos, provider.Repo{
				ID:       r.Uuid,
				Name:     r.Name,
				FullName: r.Full_name,
				URL:      htmlLink(r.Links),
			})
		}
	}
	return repos, nil
}

// FetchDiff requests the pull request diff sub-resource.
func (c *Client) FetchDiff(ctx context.Context, repo provider.RepoRef, number int, token string) (string, error) {
	workspace, slug, err := repo.Split()
	if err != nil {
		return "", provider.NewError(ProviderName, provider.KindDiffFetchFailed, err)
	}
	client, cancel, err := c.client(ctx, token)
	if err != nil {
		return "", provider.NewError(ProviderName, provider.KindDiffFetchFailed, err)
	}
	defer cancel()

	res, err := client.Repositories.PullRequests.Diff(&bb.PullRequestsOptions{
		Owner:    url.PathEscape(workspace),
		RepoSlug: url.PathEscape(slug),
		ID:       strconv.Itoa(number),
	})
	if err != nil {
		return "", provider.NewError(ProviderName, provider.KindDiffFetchFailed, c.unwrapError(err))
	}

	body, ok := res.(io.ReadCloser)
	if !ok {
		return "", nil
	}
	defer body.Close()

	raw, err := io.ReadAll(body)
	if err != nil {
		return "", provider.NewError(ProviderName, provider.KindDiffFetchFailed, fmt.Errorf("failed to read diff: %w", err))
	}
	return string(raw), nil
}

// PostComment adds a comment to the pull request.
func (c *Client) PostComment(ctx context.Context, repo provider.RepoRef, number int, token, text string) error {
	workspace, slug, err := repo.Split()
	if err != nil {
		return provider.NewError(ProviderName, provider.KindCommentPostFailed, err)
	}
	client, cancel, err := c.client(ctx, token)
	if err != nil {
		return provider.NewError(ProviderName, provider.KindCommentPostFailed, err)
	}
	defer cancel()

	opts := &bb.PullRequestCommentOptions{
		Owner:         url.PathEscape(workspace),
		RepoSlug:      url.PathEscape(slug),
		PullRequestID: strconv.Itoa(number),
		Content:       text,
	}
	if _, err := client.Repositories.PullRequests.AddComment(opts.WithContext(ctx)); err != nil {
		return provider.NewError(ProviderName, provider.KindCommentPostFailed, c.unwrapError(err))
	}
	return nil
}

// RegisterWebhook subscribes callbackURL to pull request events and returns the hook uuid.
func (c *Client) RegisterWebhook(ctx context.Context, repo provider.RepoRef, callbackURL, token string) (string, error) {
	workspace, slug, err := repo.Split()
	if err != nil {
		return "", provider.NewError(ProviderName, provider.KindWebhookRegistrationFailed, err)
	}
	client, cancel, err := c.client(ctx, token)
	if err != nil {
		return "", provider.NewError(ProviderName, provider.KindWebhookRegistrationFailed, err)
	}
	defer cancel()

	opts := &bb.WebhooksOptions{
		Owner:       url.PathEscape(workspace),
		RepoSlug:    url.PathEscape(slug),
		Description: hookDescription,
		Url:         callbackURL,
		Active:      true,
		Events:      hookEvents,
	}
	hook, err := client.Repositories.Webhooks.Create(opts.WithContext(ctx))
	if err != nil {
		return "", provider.NewError(ProviderName, provider.KindWebhookRegistrationFailed, c.unwrapError(err))
	}
	if hook.Uuid == "" {
		return "", provider.NewError(ProviderName, provider.KindWebhookRegistrationFailed, errors.New("response has no hook uuid"))
	}

	c.logger.Infow("Registered webhook", "provider", ProviderName, "repository", repo.FullName, "webhook_id", hook.Uuid)
	return hook.Uuid, nil
}

// UnregisterWebhook deletes the hook; 404 counts as already removed.
func (c *Client) UnregisterWebhook(ctx context.Context, repo provider.RepoRef, token string) error {
	if repo.WebhookID == "" {
		return nil
	}
	workspace, slug, err := repo.Split()
	if err != nil {
		return provider.NewError(ProviderName, provider.KindWebhookRemovalFailed, err)
	}
	client, cancel, err := c.client(ctx, token)
	if err != nil {
		return provider.NewError(ProviderName, provider.KindWebhookRemovalFailed, err)
	}
	defer cancel()

	_, err = client.Repositories.Webhooks.Delete(&bb.WebhooksOptions{
		Owner:    url.PathEscape(workspace),
		RepoSlug: url.PathEscape(slug),
		Uuid:     url.PathEscape(repo.WebhookID),
	})
	if err != nil {
		if errors.Is(c.unwrapError(err), provider.ErrNotFound) {
			c.logger.Warnw("Webhook already removed", "provider", ProviderName, "repository", repo.FullName, "webhook_id", repo.WebhookID)
			return nil
		}
		return provider.NewError(ProviderName, provider.KindWebhookRemovalFailed, c.unwrapError(err))
	}
	return nil
}

func htmlLink(links map[string]interface{}) string {
	html, ok := links["html"].(map[string]interface{})
	if !ok {
		return ""
	}
	href, _ := html["href"].(string)
	return href
}
