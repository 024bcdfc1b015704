package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/sjson"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/festy23/pitcrew/internal/analyzer"
	"github.com/festy23/pitcrew/internal/config"
	"github.com/festy23/pitcrew/internal/pullrequest/model"
	"github.com/festy23/pitcrew/internal/pullrequest/repository"
	"github.com/festy23/pitcrew/internal/scm"
	"github.com/festy23/pitcrew/internal/scm/provider"
	"github.com/festy23/pitcrew/internal/webhook/payload"
	"github.com/festy23/pitcrew/internal/webhook/signature"
)

const (
	githubSecret = "gh-secret"
	githubToken  = "gh-token"
	sampleDiff   = "diff --git a/db.go b/db.go\n+query := fmt.Sprintf(sql, id)\n"
)

var paymentsRef = provider.RepoRef{FullName: "acme/payments"}

type mockClient struct {
	mock.Mock
}

var _ provider.Client = (*mockClient)(nil)

func (m *mockClient) Name() string { return "github" }

func (m *mockClient) FetchRepos(ctx context.Context, token string) ([]provider.Repo, error) {
	args := m.Called(ctx, token)
	repos, _ := args.Get(0).([]provider.Repo)
	return repos, args.Error(1)
}

func (m *mockClient) FetchDiff(ctx context.Context, repo provider.RepoRef, number int, token string) (string, error) {
	args := m.Called(ctx, repo, number, token)
	return args.String(0), args.Error(1)
}

func (m *mockClient) PostComment(ctx context.Context, repo provider.RepoRef, number int, token, text string) error {
	return m.Called(ctx, repo, number, token, text).Error(0)
}

func (m *mockClient) RegisterWebhook(ctx context.Context, repo provider.RepoRef, callbackURL, token string) (string, error) {
	args := m.Called(ctx, repo, callbackURL, token)
	return args.String(0), args.Error(1)
}

func (m *mockClient) UnregisterWebhook(ctx context.Context, repo provider.RepoRef, token string) error {
	return m.Called(ctx, repo, token).Error(0)
}

type stubAnalyzer struct {
	result analyzer.Result
	calls  int32
}

func (s *stubAnalyzer) Analyze(_ context.Context, _ analyzer.Metadata, _ string) analyzer.Result {
	atomic.AddInt32(&s.calls, 1)
	return s.result
}

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	err = db.AutoMigrate(&model.Repository{}, &model.PullRequest{}, &model.AIReview{}, &model.ReviewIssue{})
	require.NoError(t, err)
	return db
}

func riskyResult() analyzer.Result {
	line := 12
	return analyzer.Result{
		Summary:   "Builds SQL from user input",
		RiskScore: 85,
		Issues: []analyzer.Issue{
			{Severity: "low", Title: "Naming", File: "util.go", Suggestion: "Rename helper"},
			{Severity: "high", Title: "SQL injection", File: "db.go", Line: &line, Suggestion: "Use bound parameters"},
		},
		Recommendations: []string{"Add tests"},
		Blockers:        []string{"SQL injection"},
		DeploymentReady: false,
	}
}

func reviewConfig() config.ReviewConfig {
	return config.ReviewConfig{
		PostComments:         true,
		MaxDescriptionLength: payload.DefaultMaxDescriptionLength,
		CommentRisk:          config.Thresholds{Medium: 30, High: 60},
		DisplayRisk:          config.Thresholds{Medium: 30, High: 70},
	}
}

type fixture struct {
	db       *gorm.DB
	client   *mockClient
	analyzer *stubAnalyzer
	svc      Service
}

func newFixture(t *testing.T, review config.ReviewConfig, creds scm.StaticCredentials) *fixture {
	t.Helper()
	db := setupTestDB(t)
	logger := zap.NewNop().Sugar()
	client := &mockClient{}
	az := &stubAnalyzer{result: riskyResult()}
	if creds == nil {
		creds = scm.StaticCredentials{model.ProviderGitHub: githubToken}
	}
	factory := scm.NewFactoryWithClients(map[model.Provider]provider.Client{model.ProviderGitHub: client}, creds)

	svc := New(repository.New(db, logger), factory, az, Config{
		Review:       review,
		GitHubSecret: githubSecret,
	}, nil, logger)

	t.Cleanup(func() { client.AssertExpectations(t) })
	return &fixture{db: db, client: client, analyzer: az, svc: svc}
}

func githubBody(action string, number int) []byte {
	return []byte(fmt.Sprintf(`{
  "action": %q,
  "pull_request": {
    "number": %d,
    "title": "Add retries",
    "body": "Retries transient failures",
    "state": "open",
    "draft": false,
    "merged": false,
    "user": {"login": "octocat"},
    "head": {"ref": "feature/retry"},
    "base": {"ref": "main"},
    "html_url": "https://github.com/acme/payments/pull/%d",
    "created_at": "2025-03-01T10:00:00Z"
  },
  "repository": {
    "id": 123456,
    "name": "payments",
    "full_name": "acme/payments",
    "html_url": "https://github.com/acme/payments"
  }
}`, action, number, number))
}

func signedRequest(t *testing.T, event string, body []byte) WebhookRequest {
	t.Helper()
	sig, err := signature.Sign(body, githubSecret, signature.SHA256)
	require.NoError(t, err)
	return WebhookRequest{Provider: model.ProviderGitHub, Event: event, Signature: sig, Body: body}
}

func countRows(t *testing.T, db *gorm.DB, m any) int64 {
	t.Helper()
	var n int64
	require.NoError(t, db.Model(m).Count(&n).Error)
	return n
}

func TestHandleWebhook_NewPullRequestIsReviewed(t *testing.T) {
	f := newFixture(t, reviewConfig(), nil)
	ctx := context.Background()

	f.client.On("FetchDiff", mock.Anything, paymentsRef, 42, githubToken).Return(sampleDiff, nil).Once()
	f.client.On("PostComment", mock.Anything, paymentsRef, 42, githubToken, mock.MatchedBy(func(text string) bool {
		return strings.Contains(text, "🚨") && strings.Contains(text, "### 🔴 High Severity Issues")
	})).Return(nil).Once()

	status, err := f.svc.HandleWebhook(ctx, signedRequest(t, "pull_request", githubBody("opened", 42)))
	require.NoError(t, err)
	assert.Equal(t, StatusSuccess, status)

	assert.Equal(t, int64(1), countRows(t, f.db, &model.PullRequest{}))
	assert.Equal(t, int64(1), countRows(t, f.db, &model.AIReview{}))
	assert.Equal(t, int64(2), countRows(t, f.db, &model.ReviewIssue{}))

	var pr model.PullRequest
	require.NoError(t, f.db.First(&pr).Error)
	resp, err := f.svc.GetReview(ctx, pr.ID)
	require.NoError(t, err)
	assert.Equal(t, 85, resp.Review.RiskScore)
	assert.Equal(t, "High Risk", resp.RiskBand)
	assert.Equal(t, "❌ Blocked • Risk: 85/100 • Issues: 2", resp.Summary)
	require.Len(t, resp.Issues, 2)
	assert.Equal(t, model.SeverityHigh, resp.Issues[0].Severity)
	require.NotNil(t, resp.Issues[0].LineNumber)
	assert.Equal(t, 12, *resp.Issues[0].LineNumber)
}

func TestHandleWebhook_ReplayIsIdempotent(t *testing.T) {
	f := newFixture(t, reviewConfig(), nil)
	ctx := context.Background()

	f.client.On("FetchDiff", mock.Anything, paymentsRef, 42, githubToken).Return(sampleDiff, nil).Once()
	f.client.On("PostComment", mock.Anything, paymentsRef, 42, githubToken, mock.Anything).Return(nil).Once()

	req := signedRequest(t, "pull_request", githubBody("opened", 42))
	for i := 0; i < 2; i++ {
		status, err := f.svc.HandleWebhook(ctx, req)
		require.NoError(t, err)
		assert.Equal(t, StatusSuccess, status)
	}

	assert.Equal(t, int64(1), countRows(t, f.db, &model.Repository{}))
	assert.Equal(t, int64(1), countRows(t, f.db, &model.PullRequest{}))
	assert.Equal(t, int64(1), countRows(t, f.db, &model.AIReview{}))
	assert.EqualValues(t, 1, f.analyzer.calls)
}

func TestHandleWebhook_ReviewOnUpdate(t *testing.T) {
	cfg := reviewConfig()
	cfg.ReviewOnUpdate = true
	f := newFixture(t, cfg, nil)
	ctx := context.Background()

	f.client.On("FetchDiff", mock.Anything, paymentsRef, 42, githubToken).Return("", provider.NewError("github", provider.KindDiffFetchFailed, errors.New("timeout"))).Once()
	f.client.On("FetchDiff", mock.Anything, paymentsRef, 42, githubToken).Return(sampleDiff, nil).Once()
	f.client.On("PostComment", mock.Anything, paymentsRef, 42, githubToken, mock.Anything).Return(nil).Once()

	_, err := f.svc.HandleWebhook(ctx, signedRequest(t, "pull_request", githubBody("opened", 42)))
	require.NoError(t, err)
	assert.Equal(t, int64(0), countRows(t, f.db, &model.AIReview{}))

	_, err = f.svc.HandleWebhook(ctx, signedRequest(t, "pull_request", githubBody("synchronize", 42)))
	require.NoError(t, err)
	assert.Equal(t, int64(1), countRows(t, f.db, &model.AIReview{}))

	// already reviewed: a no-op, no further diff fetch
	status, err := f.svc.HandleWebhook(ctx, signedRequest(t, "pull_request", githubBody("edited", 42)))
	require.NoError(t, err)
	assert.Equal(t, StatusSuccess, status)
	assert.Equal(t, int64(1), countRows(t, f.db, &model.AIReview{}))
}

func TestHandleWebhook_Rejections(t *testing.T) {
	f := newFixture(t, reviewConfig(), nil)
	ctx := context.Background()
	body := githubBody("opened", 42)

	t.Run("bad signature", func(t *testing.T) {
		req := signedRequest(t, "pull_request", body)
		req.Body = append([]byte{}, body...)
		req.Body[len(req.Body)-2] = ' '
		_, err := f.svc.HandleWebhook(ctx, req)
		assert.ErrorIs(t, err, model.ErrSignatureInvalid)
	})

	t.Run("missing signature", func(t *testing.T) {
		req := signedRequest(t, "pull_request", body)
		req.Signature = ""
		_, err := f.svc.HandleWebhook(ctx, req)
		assert.ErrorIs(t, err, model.ErrSignatureInvalid)
	})

	t.Run("malformed json", func(t *testing.T) {
		_, err := f.svc.HandleWebhook(ctx, signedRequest(t, "pull_request", []byte(`{"action":`)))
		assert.ErrorIs(t, err, model.ErrInvalidPayload)
	})

	t.Run("missing field", func(t *testing.T) {
		broken, err := sjson.DeleteBytes(body, "pull_request.head.ref")
		require.NoError(t, err)
		_, err = f.svc.HandleWebhook(ctx, signedRequest(t, "pull_request", broken))

		var vErr *payload.ValidationError
		require.ErrorAs(t, err, &vErr)
		assert.Equal(t, "pull_request.head.ref", vErr.Field)
	})

	t.Run("unsupported provider", func(t *testing.T) {
		_, err := f.svc.HandleWebhook(ctx, WebhookRequest{Provider: "gitlab", Body: body})
		assert.ErrorIs(t, err, model.ErrUnsupportedProvider)
	})

	assert.Equal(t, int64(0), countRows(t, f.db, &model.Repository{}))
	assert.Equal(t, int64(0), countRows(t, f.db, &model.PullRequest{}))
}

func TestHandleWebhook_NonPullRequestEvents(t *testing.T) {
	f := newFixture(t, reviewConfig(), nil)
	ctx := context.Background()

	status, err := f.svc.HandleWebhook(ctx, signedRequest(t, "ping", []byte(`{"zen":"Keep it logically awesome."}`)))
	require.NoError(t, err)
	assert.Equal(t, StatusPong, status)

	status, err = f.svc.HandleWebhook(ctx, signedRequest(t, "push", []byte(`{"ref":"refs/heads/main"}`)))
	require.NoError(t, err)
	assert.Equal(t, StatusIgnored, status)

	assert.Equal(t, int64(0), countRows(t, f.db, &model.PullRequest{}))
}

func TestHandleWebhook_DiffFailureIsDeferred(t *testing.T) {
	f := newFixture(t, reviewConfig(), nil)
	ctx := context.Background()

	f.client.On("FetchDiff", mock.Anything, paymentsRef, 42, githubToken).Return("", provider.ErrNotFound).Once()

	status, err := f.svc.HandleWebhook(ctx, signedRequest(t, "pull_request", githubBody("opened", 42)))
	require.NoError(t, err)
	assert.Equal(t, StatusSuccess, status)
	assert.Equal(t, int64(1), countRows(t, f.db, &model.PullRequest{}))
	assert.Equal(t, int64(0), countRows(t, f.db, &model.AIReview{}))
	assert.EqualValues(t, 0, f.analyzer.calls)
}

func TestHandleWebhook_ReviewDeadline(t *testing.T) {
	cfg := reviewConfig()
	cfg.Timeout = 50 * time.Millisecond
	f := newFixture(t, cfg, nil)

	f.client.On("FetchDiff", mock.Anything, paymentsRef, 42, githubToken).
		Run(func(args mock.Arguments) {
			ctx := args.Get(0).(context.Context)
			_, ok := ctx.Deadline()
			assert.True(t, ok)
			<-ctx.Done()
		}).
		Return("", provider.NewError("github", provider.KindDiffFetchFailed, context.DeadlineExceeded)).Once()

	start := time.Now()
	status, err := f.svc.HandleWebhook(context.Background(), signedRequest(t, "pull_request", githubBody("opened", 42)))
	require.NoError(t, err)
	assert.Equal(t, StatusSuccess, status)
	assert.Less(t, time.Since(start), 5*time.Second)
	assert.Equal(t, int64(1), countRows(t, f.db, &model.PullRequest{}))
	assert.Equal(t, int64(0), countRows(t, f.db, &model.AIReview{}))
}

func TestHandleWebhook_NoTokenIsDeferred(t *testing.T) {
	f := newFixture(t, reviewConfig(), scm.StaticCredentials{})

	status, err := f.svc.HandleWebhook(context.Background(), signedRequest(t, "pull_request", githubBody("opened", 42)))
	require.NoError(t, err)
	assert.Equal(t, StatusSuccess, status)
	assert.Equal(t, int64(0), countRows(t, f.db, &model.AIReview{}))
}

func TestHandleWebhook_CommentFailureDoesNotFail(t *testing.T) {
	f := newFixture(t, reviewConfig(), nil)

	f.client.On("FetchDiff", mock.Anything, paymentsRef, 42, githubToken).Return(sampleDiff, nil).Once()
	f.client.On("PostComment", mock.Anything, paymentsRef, 42, githubToken, mock.Anything).
		Return(provider.NewError("github", provider.KindCommentPostFailed, provider.ErrUnauthorized)).Once()

	status, err := f.svc.HandleWebhook(context.Background(), signedRequest(t, "pull_request", githubBody("opened", 42)))
	require.NoError(t, err)
	assert.Equal(t, StatusSuccess, status)
	assert.Equal(t, int64(1), countRows(t, f.db, &model.AIReview{}))
}

func TestHandleWebhook_CommentsDisabled(t *testing.T) {
	cfg := reviewConfig()
	cfg.PostComments = false
	f := newFixture(t, cfg, nil)

	f.client.On("FetchDiff", mock.Anything, paymentsRef, 42, githubToken).Return(sampleDiff, nil).Once()

	_, err := f.svc.HandleWebhook(context.Background(), signedRequest(t, "pull_request", githubBody("opened", 42)))
	require.NoError(t, err)
	f.client.AssertNotCalled(t, "PostComment", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestHandleWebhook_FallbackIsStored(t *testing.T) {
	f := newFixture(t, reviewConfig(), nil)
	f.analyzer.result = analyzer.Fallback(analyzer.FallbackSummary)
	f.analyzer.result.Degraded = &analyzer.Degraded{Reason: analyzer.ReasonLLMError, Err: errors.New("boom")}

	f.client.On("FetchDiff", mock.Anything, paymentsRef, 42, githubToken).Return(sampleDiff, nil).Once()
	f.client.On("PostComment", mock.Anything, paymentsRef, 42, githubToken, mock.Anything).Return(nil).Once()

	_, err := f.svc.HandleWebhook(context.Background(), signedRequest(t, "pull_request", githubBody("opened", 42)))
	require.NoError(t, err)

	var review model.AIReview
	require.NoError(t, f.db.First(&review).Error)
	assert.Equal(t, analyzer.FallbackSummary, review.Summary)
	assert.Equal(t, 50, review.RiskScore)
	assert.False(t, review.DeploymentReady)
	assert.Equal(t, analyzer.ReasonLLMError, review.AnalysisData["degraded"])
}

func TestTriggerReview(t *testing.T) {
	cfg := reviewConfig()
	cfg.PostComments = false
	f := newFixture(t, cfg, nil)
	ctx := context.Background()

	f.client.On("FetchDiff", mock.Anything, paymentsRef, 42, githubToken).Return("", errors.New("connection reset")).Once()
	f.client.On("FetchDiff", mock.Anything, paymentsRef, 42, githubToken).Return(sampleDiff, nil).Once()

	_, err := f.svc.HandleWebhook(ctx, signedRequest(t, "pull_request", githubBody("opened", 42)))
	require.NoError(t, err)

	var pr model.PullRequest
	require.NoError(t, f.db.First(&pr).Error)

	t.Run("review not found before trigger", func(t *testing.T) {
		_, err := f.svc.GetReview(ctx, pr.ID)
		assert.ErrorIs(t, err, model.ErrReviewNotFound)
	})

	t.Run("first trigger succeeds", func(t *testing.T) {
		resp, err := f.svc.TriggerReview(ctx, pr.ID)
		require.NoError(t, err)
		assert.Equal(t, "High Risk", resp.RiskBand)
		assert.Len(t, resp.Issues, 2)
	})

	t.Run("second trigger conflicts", func(t *testing.T) {
		_, err := f.svc.TriggerReview(ctx, pr.ID)
		assert.ErrorIs(t, err, model.ErrReviewExists)
	})

	t.Run("unknown pull request", func(t *testing.T) {
		_, err := f.svc.TriggerReview(ctx, 999)
		assert.ErrorIs(t, err, model.ErrPullRequestNotFound)

		_, err = f.svc.GetReview(ctx, 999)
		assert.ErrorIs(t, err, model.ErrPullRequestNotFound)
	})

	assert.Equal(t, int64(1), countRows(t, f.db, &model.AIReview{}))
}

func TestTriggerReview_DiffFailure(t *testing.T) {
	f := newFixture(t, reviewConfig(), nil)
	ctx := context.Background()

	f.client.On("FetchDiff", mock.Anything, paymentsRef, 42, githubToken).Return("", errors.New("timeout")).Twice()

	_, err := f.svc.HandleWebhook(ctx, signedRequest(t, "pull_request", githubBody("opened", 42)))
	require.NoError(t, err)

	var pr model.PullRequest
	require.NoError(t, f.db.First(&pr).Error)

	_, err = f.svc.TriggerReview(ctx, pr.ID)
	require.Error(t, err)
	assert.True(t, provider.IsKind(err, provider.KindDiffFetchFailed))
	assert.Equal(t, int64(1), countRows(t, f.db, &model.PullRequest{}))
}

func TestToReview_TruncatesIssueText(t *testing.T) {
	long := strings.Repeat("é", model.MaxIssueTextLength+100)
	review := toReview(7, analyzer.Result{
		RiskScore: 40,
		Summary:   "long fields",
		Issues: []analyzer.Issue{
			{Severity: "high", Title: long, File: long},
			{Severity: "low", Title: "short", File: "a.go"},
		},
	})

	require.Len(t, review.Issues, 2)
	assert.Equal(t, model.MaxIssueTextLength, utf8.RuneCountInString(review.Issues[0].Title))
	assert.Equal(t, model.MaxIssueTextLength, utf8.RuneCountInString(review.Issues[0].FilePath))
	assert.Equal(t, "short", review.Issues[1].Title)
	assert.Equal(t, "a.go", review.Issues[1].FilePath)
}

func TestClassify(t *testing.T) {
	tests := []struct {
		provider model.Provider
		event    string
		want     string
	}{
		{model.ProviderGitHub, "ping", StatusPong},
		{model.ProviderGitHub, "pull_request", StatusSuccess},
		{model.ProviderGitHub, "issues", StatusIgnored},
		{model.ProviderBitbucket, "pullrequest:created", StatusSuccess},
		{model.ProviderBitbucket, "pullrequest:updated", StatusSuccess},
		{model.ProviderBitbucket, "pullrequest:comment_created", StatusIgnored},
		{model.ProviderBitbucket, "repo:push", StatusIgnored},
	}
	for _, tt := range tests {
		t.Run(string(tt.provider)+"/"+tt.event, func(t *testing.T) {
			assert.Equal(t, tt.want, classify(tt.provider, tt.event))
		})
	}
}
