//go:build e2e
// +build e2e

package e2e

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/sjson"

	"github.com/festy23/pitcrew/internal/pullrequest/model"
	statisticsModel "github.com/festy23/pitcrew/internal/statistics/model"
	"github.com/festy23/pitcrew/internal/webhook/signature"
)

func (s *E2ETestSuite) TestWebhook_CreatedDeliveryStoresReview() {
	w := s.deliver(s.bitbucketPayload(), "pullrequest:created")
	require.Equal(s.T(), http.StatusOK, w.Code, w.Body.String())
	assert.JSONEq(s.T(), `{"status":"success"}`, w.Body.String())

	var pr model.PullRequest
	require.NoError(s.T(), s.db.Preload("Repository").First(&pr).Error)
	assert.Equal(s.T(), 7, pr.Number)
	assert.Equal(s.T(), model.StatusOpen, pr.Status)
	assert.Equal(s.T(), "Jane Doe", pr.Author)
	require.NotNil(s.T(), pr.Repository)
	assert.Equal(s.T(), "acme/billing", pr.Repository.FullName)

	var review model.AIReview
	require.NoError(s.T(), s.db.Preload("Issues").First(&review).Error)
	assert.Equal(s.T(), 45, review.RiskScore)
	assert.False(s.T(), review.DeploymentReady)
	assert.Len(s.T(), review.Issues, 2)

	assert.Equal(s.T(), 1, s.bitbucket.commentCount())

	w = s.get("/pullRequests/1/review")
	require.Equal(s.T(), http.StatusOK, w.Code)
	var resp model.ReviewResponse
	require.NoError(s.T(), json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(s.T(), "Medium Risk", resp.RiskBand)
	require.Len(s.T(), resp.Issues, 2)
	assert.Equal(s.T(), model.SeverityHigh, resp.Issues[0].Severity)
}

func (s *E2ETestSuite) TestWebhook_UpdateRefreshesWithoutSecondReview() {
	body := s.bitbucketPayload()
	require.Equal(s.T(), http.StatusOK, s.deliver(body, "pullrequest:created").Code)

	updated, err := sjson.SetBytes(body, "pullrequest.title", "Fix invoice rounding (v2)")
	require.NoError(s.T(), err)
	updated, err = sjson.SetBytes(updated, "pullrequest.state", "MERGED")
	require.NoError(s.T(), err)
	require.Equal(s.T(), http.StatusOK, s.deliver(updated, "pullrequest:fulfilled").Code)

	var pr model.PullRequest
	require.NoError(s.T(), s.db.First(&pr).Error)
	assert.Equal(s.T(), "Fix invoice rounding (v2)", pr.Title)
	assert.Equal(s.T(), model.StatusMerged, pr.Status)

	assert.Equal(s.T(), int64(1), s.count("pull_requests"))
	assert.Equal(s.T(), int64(1), s.count("ai_reviews"))
	assert.Equal(s.T(), 1, s.bitbucket.commentCount())
}

func (s *E2ETestSuite) TestWebhook_ConcurrentReplaysAreIdempotent() {
	body := s.bitbucketPayload()
	sig, err := signature.Sign(body, bitbucketSecret, signature.SHA256)
	require.NoError(s.T(), err)

	const deliveries = 8
	codes := make(chan int, deliveries)
	var wg sync.WaitGroup
	for i := 0; i < deliveries; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			codes <- s.deliverSigned(body, sig, "pullrequest:created").Code
		}()
	}
	wg.Wait()
	close(codes)

	for code := range codes {
		assert.Equal(s.T(), http.StatusOK, code)
	}
	assert.Equal(s.T(), int64(1), s.count("repositories"))
	assert.Equal(s.T(), int64(1), s.count("pull_requests"))
	assert.Equal(s.T(), int64(1), s.count("ai_reviews"))
	assert.Equal(s.T(), int64(2), s.count("review_issues"))
	assert.Equal(s.T(), 1, s.bitbucket.commentCount())
}

func (s *E2ETestSuite) TestWebhook_BadSignatureStoresNothing() {
	tampered, err := sjson.SetBytes(s.bitbucketPayload(), "pullrequest.title", "tampered")
	require.NoError(s.T(), err)

	req := httptest.NewRequest(http.MethodPost, "/webhooks/bitbucket", bytes.NewReader(tampered))
	req.Header.Set("X-Event-Key", "pullrequest:created")
	req.Header.Set("X-Hub-Signature", "sha256=deadbeef")
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)

	assert.Equal(s.T(), http.StatusForbidden, w.Code)
	assert.Equal(s.T(), int64(0), s.count("pull_requests"))
}

func (s *E2ETestSuite) TestWebhook_ManualReviewConflict() {
	require.Equal(s.T(), http.StatusOK, s.deliver(s.bitbucketPayload(), "pullrequest:created").Code)

	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/pullRequests/1/review", nil))
	assert.Equal(s.T(), http.StatusBadRequest, w.Code)

	w = httptest.NewRecorder()
	s.router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/pullRequests/99/review", nil))
	assert.Equal(s.T(), http.StatusNotFound, w.Code)
}

func (s *E2ETestSuite) TestStatistics_AfterReview() {
	require.Equal(s.T(), http.StatusOK, s.deliver(s.bitbucketPayload(), "pullrequest:created").Code)

	w := s.get("/statistics/pullrequests")
	require.Equal(s.T(), http.StatusOK, w.Code)
	var prStats statisticsModel.PullRequestStatisticsResponse
	require.NoError(s.T(), json.Unmarshal(w.Body.Bytes(), &prStats))
	assert.Equal(s.T(), statisticsModel.PullRequestStatistics{
		TotalPRs:    1,
		OpenPRs:     1,
		ReviewedPRs: 1,
	}, prStats.Statistics)

	w = s.get("/statistics/reviews")
	require.Equal(s.T(), http.StatusOK, w.Code)
	var reviewStats statisticsModel.ReviewStatisticsResponse
	require.NoError(s.T(), json.Unmarshal(w.Body.Bytes(), &reviewStats))
	stats := reviewStats.Statistics
	assert.Equal(s.T(), 1, stats.TotalReviews)
	assert.InDelta(s.T(), 45.0, stats.AverageRiskScore, 0.001)
	assert.Equal(s.T(), statisticsModel.RiskBands{Medium: 1}, stats.RiskBands)
	assert.Equal(s.T(), 1, stats.Issues.High)
	assert.Equal(s.T(), 1, stats.Issues.Low)
	require.Len(s.T(), stats.TopFiles, 1)
	assert.Equal(s.T(), statisticsModel.FileIssueCount{FilePath: "billing.go", Count: 2}, stats.TopFiles[0])

	w = s.get("/statistics/pullrequests/1/issues")
	require.Equal(s.T(), http.StatusOK, w.Code)
	var issues statisticsModel.PullRequestIssuesResponse
	require.NoError(s.T(), json.Unmarshal(w.Body.Bytes(), &issues))
	assert.Equal(s.T(), 24, issues.Statistics.SeverityScore)
	assert.Len(s.T(), issues.ByFile["billing.go"], 2)
}
