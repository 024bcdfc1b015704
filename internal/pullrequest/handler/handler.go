// Package handler provides HTTP handlers for pullrequest endpoints.
package handler

import (
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/festy23/pitcrew/internal/middleware"
	"github.com/festy23/pitcrew/internal/pullrequest/model"
	"github.com/festy23/pitcrew/internal/pullrequest/service"
	"github.com/festy23/pitcrew/internal/scm/provider"
	"github.com/festy23/pitcrew/internal/webhook/payload"
)

// MaxWebhookBodyBytes caps the size of a webhook delivery.
const MaxWebhookBodyBytes = 5 << 20

// Provider webhook headers.
const (
	HeaderGitHubEvent        = "X-GitHub-Event"
	HeaderGitHubSignature    = "X-Hub-Signature-256"
	HeaderBitbucketEvent     = "X-Event-Key"
	HeaderBitbucketSignature = "X-Hub-Signature"
)

// Handler handles HTTP requests for pullrequest endpoints.
type Handler struct {
	service service.Service
	logger  *zap.SugaredLogger
}

// New creates a new pullrequest handler instance.
func New(svc service.Service, logger *zap.SugaredLogger) *Handler {
	return &Handler{service: svc, logger: logger}
}

// GitHubWebhook handles POST /webhooks/github request.
// @Summary Receive a GitHub pull_request or ping delivery
// @Tags Webhooks
// @Accept json
// @Produce json
// @Success 200 {object} model.StatusResponse "success, pong or ignored"
// @Failure 400 {object} model.ErrorResponse "Malformed JSON or missing field"
// @Failure 403 {object} model.ErrorResponse "Invalid signature"
// @Router /webhooks/github [post] //nolint:godot // Swagger annotation should not end with period
func (h *Handler) GitHubWebhook(c *gin.Context) {
	h.webhook(c, model.ProviderGitHub, c.GetHeader(HeaderGitHubEvent), c.GetHeader(HeaderGitHubSignature))
}

// BitbucketWebhook handles POST /webhooks/bitbucket request.
// @Summary Receive a Bitbucket pullrequest:* delivery
// @Tags Webhooks
// @Accept json
// @Produce json
// @Success 200 {object} model.StatusResponse "success or ignored"
// @Failure 400 {object} model.ErrorResponse "Malformed JSON or missing field"
// @Failure 403 {object} model.ErrorResponse "Invalid signature"
// @Router /webhooks/bitbucket [post] //nolint:godot // Swagger annotation should not end with period
func (h *Handler) BitbucketWebhook(c *gin.Context) {
	h.webhook(c, model.ProviderBitbucket, c.GetHeader(HeaderBitbucketEvent), c.GetHeader(HeaderBitbucketSignature))
}

// TestWebhook handles GET /webhooks/test request.
func (h *Handler) TestWebhook(c *gin.Context) {
	c.JSON(http.StatusOK, model.StatusResponse{Status: "ok"})
}

func (h *Handler) webhook(c *gin.Context, p model.Provider, event, sig string) {
	body, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, MaxWebhookBodyBytes))
	if err != nil {
		errorResponse(c, "failed to read request body", http.StatusBadRequest)
		return
	}

	status, err := h.service.HandleWebhook(c.Request.Context(), service.WebhookRequest{
		Provider:  p,
		Event:     event,
		Signature: sig,
		Body:      body,
	})
	if err != nil {
		var vErr *payload.ValidationError
		switch {
		case errors.Is(err, model.ErrSignatureInvalid):
			errorResponse(c, "Invalid signature", http.StatusForbidden)
		case errors.Is(err, model.ErrInvalidPayload):
			errorResponse(c, "Invalid JSON", http.StatusBadRequest)
		case errors.As(err, &vErr):
			errorResponse(c, vErr.Error(), http.StatusBadRequest)
		default:
			h.logger.Errorw("webhook processing failed",
				"provider", p,
				"event", event,
				"request_id", middleware.GetRequestID(c),
				"error", err,
			)
			errorResponse(c, "internal server error", http.StatusInternalServerError)
		}
		return
	}

	c.JSON(http.StatusOK, model.StatusResponse{Status: status})
}

// GetReview handles GET /pullRequests/:id/review request.
// @Summary Get the stored AI review of a pull request
// @Tags PullRequests
// @Produce json
// @Param id path int true "Pull request id"
// @Success 200 {object} model.ReviewResponse
// @Failure 404 {object} model.ErrorResponse "Pull request or review not found"
// @Router /pullRequests/{id}/review [get] //nolint:godot // Swagger annotation should not end with period
func (h *Handler) GetReview(c *gin.Context) {
	id, ok := pullRequestID(c)
	if !ok {
		return
	}

	resp, err := h.service.GetReview(c.Request.Context(), id)
	if err != nil {
		h.reviewError(c, id, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// TriggerReview handles POST /pullRequests/:id/review request.
// @Summary Fetch the diff and run the AI review of a pull request
// @Tags PullRequests
// @Produce json
// @Param id path int true "Pull request id"
// @Success 200 {object} model.ReviewResponse
// @Failure 400 {object} model.ErrorResponse "Review already exists"
// @Failure 404 {object} model.ErrorResponse "Pull request not found"
// @Failure 500 {object} model.ErrorResponse "Diff fetch failed"
// @Router /pullRequests/{id}/review [post] //nolint:godot // Swagger annotation should not end with period
func (h *Handler) TriggerReview(c *gin.Context) {
	id, ok := pullRequestID(c)
	if !ok {
		return
	}

	resp, err := h.service.TriggerReview(c.Request.Context(), id)
	if err != nil {
		h.reviewError(c, id, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *Handler) reviewError(c *gin.Context, id uint, err error) {
	switch {
	case errors.Is(err, model.ErrPullRequestNotFound):
		errorResponse(c, "pull request not found", http.StatusNotFound)
	case errors.Is(err, model.ErrReviewNotFound):
		errorResponse(c, "review not found", http.StatusNotFound)
	case errors.Is(err, model.ErrReviewExists):
		errorResponse(c, err.Error(), http.StatusBadRequest)
	case provider.IsKind(err, provider.KindDiffFetchFailed):
		h.logger.Errorw("diff fetch failed", "pull_request_id", id, "error", err)
		errorResponse(c, "failed to fetch diff", http.StatusInternalServerError)
	default:
		h.logger.Errorw("review request failed", "pull_request_id", id, "error", err)
		errorResponse(c, "internal server error", http.StatusInternalServerError)
	}
}

func pullRequestID(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		errorResponse(c, "invalid pull request id", http.StatusBadRequest)
		return 0, false
	}
	return uint(id), true
}
