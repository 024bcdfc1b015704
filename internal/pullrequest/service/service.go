// Package service provides business logic layer for pullrequest module.
package service

import (
	"context"
	"errors"
	"time"
	"unicode/utf8"

	"github.com/tidwall/gjson"
	"go.uber.org/zap"

	"github.com/festy23/pitcrew/internal/analyzer"
	"github.com/festy23/pitcrew/internal/comment"
	"github.com/festy23/pitcrew/internal/config"
	"github.com/festy23/pitcrew/internal/metrics"
	"github.com/festy23/pitcrew/internal/pullrequest/model"
	"github.com/festy23/pitcrew/internal/pullrequest/repository"
	"github.com/festy23/pitcrew/internal/scm/provider"
	"github.com/festy23/pitcrew/internal/webhook/payload"
	"github.com/festy23/pitcrew/internal/webhook/signature"
)

// Webhook acknowledgement statuses.
const (
	StatusSuccess = "success"
	StatusPong    = "pong"
	StatusIgnored = "ignored"
)

// Review triggers, used as metric labels.
const (
	TriggerWebhook = "webhook"
	TriggerManual  = "manual"
)

// Service defines the interface for pullrequest business logic operations.
type Service interface {
	// HandleWebhook verifies, normalizes and persists one delivery, then reviews
	// the pull request when policy allows. Returns the acknowledgement status.
	HandleWebhook(ctx context.Context, req WebhookRequest) (string, error)

	// TriggerReview fetches the diff and stores a review for an existing pull request.
	// Returns model.ErrReviewExists if it is already reviewed.
	TriggerReview(ctx context.Context, pullRequestID uint) (*model.ReviewResponse, error)

	// GetReview returns the stored review of a pull request.
	GetReview(ctx context.Context, pullRequestID uint) (*model.ReviewResponse, error)
}

// WebhookRequest is one raw delivery.
type WebhookRequest struct {
	Provider model.Provider
	// Event is X-GitHub-Event or X-Event-Key.
	Event     string
	Signature string
	Body      []byte
}

// Analyzer produces an assessment for a diff. It never fails.
type Analyzer interface {
	Analyze(ctx context.Context, meta analyzer.Metadata, diff string) analyzer.Result
}

// Providers resolves the client and token for a provider.
type Providers interface {
	ClientWithToken(p model.Provider) (provider.Client, string, error)
}

// Config holds the pipeline policy and webhook secrets.
type Config struct {
	Review          config.ReviewConfig
	GitHubSecret    string
	BitbucketSecret string
}

type service struct {
	repo       repository.Repository
	providers  Providers
	analyzer   Analyzer
	verifier   *signature.Verifier
	normalizer *payload.Normalizer
	formatter  *comment.Formatter
	cfg        Config
	metrics    metrics.Recorder
	logger     *zap.SugaredLogger
}

// New creates a new pullrequest service instance.
func New(
	repo repository.Repository,
	providers Providers,
	az Analyzer,
	cfg Config,
	recorder metrics.Recorder,
	logger *zap.SugaredLogger,
) Service {
	if recorder == nil {
		recorder = metrics.Nop{}
	}
	return &service{
		repo:       repo,
		providers:  providers,
		analyzer:   az,
		verifier:   signature.New(logger),
		normalizer: payload.New(cfg.Review.MaxDescriptionLength),
		formatter:  comment.New(cfg.Review.CommentRisk),
		cfg:        cfg,
		metrics:    recorder,
		logger:     logger,
	}
}

// HandleWebhook runs the passive review path. Diff failures and existing reviews
// do not fail the delivery.
func (s *service) HandleWebhook(ctx context.Context, req WebhookRequest) (string, error) {
	p := string(req.Provider)

	secret, err := s.secret(req.Provider)
	if err != nil {
		return "", err
	}
	if !s.verifier.Verify(req.Body, req.Signature, secret, signature.SHA256) {
		s.metrics.WebhookReceived(p, "rejected_signature")
		s.logger.Warnw("webhook signature mismatch", "provider", p, "event", req.Event)
		return "", model.ErrSignatureInvalid
	}

	if !gjson.ValidBytes(req.Body) {
		s.metrics.WebhookReceived(p, "rejected_validation")
		return "", model.ErrInvalidPayload
	}

	switch status := classify(req.Provider, req.Event); status {
	case StatusPong, StatusIgnored:
		s.metrics.WebhookReceived(p, status)
		s.logger.Debugw("webhook event not processed", "provider", p, "event", req.Event, "status", status)
		return status, nil
	}

	event, err := s.normalizer.Normalize(req.Body, req.Provider, req.Event)
	if err != nil {
		s.metrics.WebhookReceived(p, "rejected_validation")
		return "", err
	}
	s.logger.Infow("webhook received", payload.Summary(req.Body, req.Provider)...)

	repo, err := s.repo.UpsertRepository(ctx, event.Repository)
	if err != nil {
		s.metrics.WebhookReceived(p, "error")
		return "", err
	}
	pr, created, err := s.repo.UpsertPullRequest(ctx, repo.ID, event.PullRequest)
	if err != nil {
		s.metrics.WebhookReceived(p, "error")
		return "", err
	}
	pr.Repository = repo
	s.logger.Debugw("pull request persisted", "pull_request_id", pr.ID, "created", created)
	s.metrics.WebhookReceived(p, StatusSuccess)

	if !created && !s.cfg.Review.ReviewOnUpdate {
		return StatusSuccess, nil
	}

	_, err = s.review(ctx, pr, TriggerWebhook)
	switch {
	case err == nil:
	case errors.Is(err, model.ErrReviewExists):
		s.logger.Debugw("pull request already reviewed", "pull_request_id", pr.ID)
	case provider.IsKind(err, provider.KindDiffFetchFailed):
		s.logger.Warnw("diff fetch failed, review deferred", "pull_request_id", pr.ID, "error", err)
	default:
		return "", err
	}
	return StatusSuccess, nil
}

// TriggerReview runs the manual review path.
func (s *service) TriggerReview(ctx context.Context, pullRequestID uint) (*model.ReviewResponse, error) {
	pr, err := s.repo.GetPullRequest(ctx, pullRequestID)
	if err != nil {
		return nil, err
	}
	review, err := s.review(ctx, pr, TriggerManual)
	if err != nil {
		return nil, err
	}
	return s.response(review), nil
}

// GetReview returns the stored review of a pull request.
func (s *service) GetReview(ctx context.Context, pullRequestID uint) (*model.ReviewResponse, error) {
	if _, err := s.repo.GetPullRequest(ctx, pullRequestID); err != nil {
		return nil, err
	}
	review, err := s.repo.GetReview(ctx, pullRequestID)
	if err != nil {
		return nil, err
	}
	return s.response(review), nil
}

// review takes a persisted pull request through diff fetch, analysis, storage and comment.
func (s *service) review(ctx context.Context, pr *model.PullRequest, trigger string) (*model.AIReview, error) {
	if _, err := s.repo.GetReview(ctx, pr.ID); err == nil {
		s.metrics.ReviewFinished(trigger, "conflict")
		return nil, model.ErrReviewExists
	} else if !errors.Is(err, model.ErrReviewNotFound) {
		return nil, err
	}

	repo := pr.Repository
	if repo == nil {
		var err error
		if repo, err = s.repo.GetRepository(ctx, pr.RepositoryID); err != nil {
			return nil, err
		}
	}

	client, token, err := s.providers.ClientWithToken(repo.Provider)
	if err != nil {
		s.metrics.ReviewFinished(trigger, "diff_failed")
		return nil, provider.NewError(string(repo.Provider), provider.KindDiffFetchFailed, err)
	}

	// Outbound calls share one deadline; database writes keep the caller's context.
	callCtx, cancel := s.deadline(ctx)
	defer cancel()

	ref := provider.RepoRef{FullName: repo.FullName}
	diff, err := client.FetchDiff(callCtx, ref, pr.Number, token)
	if err != nil {
		s.metrics.ReviewFinished(trigger, "diff_failed")
		if !provider.IsKind(err, provider.KindDiffFetchFailed) {
			err = provider.NewError(client.Name(), provider.KindDiffFetchFailed, err)
		}
		return nil, err
	}
	s.logger.Debugw("diff fetched", "pull_request_id", pr.ID, "bytes", len(diff))

	start := time.Now()
	result := s.analyzer.Analyze(callCtx, analyzer.Metadata{Title: pr.Title, Description: pr.Description}, diff)
	s.metrics.AnalysisDuration(time.Since(start))
	if result.Degraded != nil {
		s.metrics.AnalysisFallback(result.Degraded.Reason)
	}

	review := toReview(pr.ID, result)
	if err := s.repo.CreateReview(ctx, review); err != nil {
		if errors.Is(err, model.ErrReviewExists) {
			s.metrics.ReviewFinished(trigger, "conflict")
		}
		return nil, err
	}
	s.metrics.ReviewFinished(trigger, "stored")
	s.logger.Infow("review stored",
		"pull_request_id", pr.ID,
		"review_id", review.ID,
		"risk_score", review.RiskScore,
		"issues", len(review.Issues),
		"trigger", trigger,
	)

	s.publish(callCtx, client, token, ref, pr, review)
	return review, nil
}

func (s *service) deadline(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.cfg.Review.Timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.cfg.Review.Timeout)
}

// publish posts the formatted review. Failures are logged only.
func (s *service) publish(
	ctx context.Context,
	client provider.Client,
	token string,
	ref provider.RepoRef,
	pr *model.PullRequest,
	review *model.AIReview,
) {
	if !s.cfg.Review.PostComments {
		s.logger.Debugw("comment posting disabled", "pull_request_id", pr.ID)
		return
	}

	text := s.formatter.Full(review, review.Issues)
	if err := client.PostComment(ctx, ref, pr.Number, token, text); err != nil {
		s.metrics.CommentPosted(client.Name(), false)
		s.logger.Errorw("failed to post review comment",
			"pull_request_id", pr.ID,
			"provider", client.Name(),
			"error", err,
		)
		return
	}
	s.metrics.CommentPosted(client.Name(), true)
}

func (s *service) response(review *model.AIReview) *model.ReviewResponse {
	issues := comment.SortIssues(review.Issues)
	return &model.ReviewResponse{
		Review:   review,
		Issues:   issues,
		RiskBand: comment.RiskBand(review.RiskScore, s.cfg.Review.DisplayRisk).Label,
		Summary:  comment.Summary(review, len(issues)),
	}
}

func (s *service) secret(p model.Provider) (string, error) {
	switch p {
	case model.ProviderGitHub:
		return s.cfg.GitHubSecret, nil
	case model.ProviderBitbucket:
		return s.cfg.BitbucketSecret, nil
	default:
		return "", model.ErrUnsupportedProvider
	}
}

// classify returns StatusPong or StatusIgnored for events that carry no pull
// request change, and StatusSuccess for events that must be processed.
func classify(p model.Provider, event string) string {
	switch p {
	case model.ProviderGitHub:
		switch event {
		case "ping":
			return StatusPong
		case "pull_request":
			return StatusSuccess
		}
	case model.ProviderBitbucket:
		switch event {
		case "pullrequest:created", "pullrequest:updated", "pullrequest:fulfilled", "pullrequest:rejected":
			return StatusSuccess
		}
	}
	return StatusIgnored
}

func toReview(pullRequestID uint, result analyzer.Result) *model.AIReview {
	issues := make([]model.ReviewIssue, 0, len(result.Issues))
	for _, issue := range result.Issues {
		issues = append(issues, model.ReviewIssue{
			Severity:   model.ParseSeverity(issue.Severity),
			Title:      truncate(issue.Title, model.MaxIssueTextLength),
			FilePath:   truncate(issue.File, model.MaxIssueTextLength),
			LineNumber: issue.Line,
			Suggestion: issue.Suggestion,
		})
	}
	return &model.AIReview{
		PullRequestID:   pullRequestID,
		RiskScore:       result.RiskScore,
		Summary:         result.Summary,
		DeploymentReady: result.DeploymentReady,
		AnalysisData:    model.AnalysisData(result.Data()),
		Issues:          issues,
	}
}

func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}
