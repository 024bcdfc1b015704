// Package handler provides HTTP handlers for statistics endpoints.
package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	pullrequestModel "github.com/festy23/pitcrew/internal/pullrequest/model"
	"github.com/festy23/pitcrew/internal/statistics/service"
)

// Handler handles HTTP requests for statistics endpoints.
type Handler struct {
	service service.Service
	logger  *zap.SugaredLogger
}

// New creates a new statistics handler instance.
func New(svc service.Service, logger *zap.SugaredLogger) *Handler {
	return &Handler{service: svc, logger: logger}
}

// GetPullRequestStatistics handles GET /statistics/pullrequests request.
// @Summary Get statistics for pull requests
// @Tags Statistics
// @Produce json
// @Success 200 {object} model.PullRequestStatisticsResponse
// @Failure 500 {object} pullrequestModel.ErrorResponse
// @Router /statistics/pullrequests [get] //nolint:godot // Swagger annotation should not end with period
func (h *Handler) GetPullRequestStatistics(c *gin.Context) {
	resp, err := h.service.GetPullRequestStatistics(c.Request.Context())
	if err != nil {
		h.logger.Errorw("error getting pull request statistics", "error", err)
		errorResponse(c, "internal server error", http.StatusInternalServerError)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// GetReviewStatistics handles GET /statistics/reviews request.
// @Summary Get statistics for AI reviews and their issues
// @Tags Statistics
// @Produce json
// @Success 200 {object} model.ReviewStatisticsResponse
// @Failure 500 {object} pullrequestModel.ErrorResponse
// @Router /statistics/reviews [get] //nolint:godot // Swagger annotation should not end with period
func (h *Handler) GetReviewStatistics(c *gin.Context) {
	resp, err := h.service.GetReviewStatistics(c.Request.Context())
	if err != nil {
		h.logger.Errorw("error getting review statistics", "error", err)
		errorResponse(c, "internal server error", http.StatusInternalServerError)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// GetPullRequestIssues handles GET /statistics/pullrequests/:id/issues request.
// @Summary Get issue statistics of one pull request, grouped by file
// @Tags Statistics
// @Produce json
// @Param id path int true "Pull request id"
// @Success 200 {object} model.PullRequestIssuesResponse
// @Failure 404 {object} pullrequestModel.ErrorResponse "Review not found"
// @Router /statistics/pullrequests/{id}/issues [get] //nolint:godot // Swagger annotation should not end with period
func (h *Handler) GetPullRequestIssues(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		errorResponse(c, "invalid pull request id", http.StatusBadRequest)
		return
	}

	resp, err := h.service.GetPullRequestIssues(c.Request.Context(), uint(id))
	if err != nil {
		if errors.Is(err, pullrequestModel.ErrReviewNotFound) {
			errorResponse(c, "review not found", http.StatusNotFound)
			return
		}
		h.logger.Errorw("error getting pull request issues", "pull_request_id", id, "error", err)
		errorResponse(c, "internal server error", http.StatusInternalServerError)
		return
	}

	c.JSON(http.StatusOK, resp)
}
