// Package handler provides HTTP handlers for repository management endpoints.
package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	pullrequestModel "github.com/festy23/pitcrew/internal/pullrequest/model"
	repoModel "github.com/festy23/pitcrew/internal/repo/model"
	"github.com/festy23/pitcrew/internal/repo/service"
	"github.com/festy23/pitcrew/internal/scm/provider"
)

// Handler handles HTTP requests for repository endpoints.
type Handler struct {
	service service.Service
	logger  *zap.SugaredLogger
}

// New creates a new repository handler instance.
func New(svc service.Service, logger *zap.SugaredLogger) *Handler {
	return &Handler{service: svc, logger: logger}
}

// ListAvailable handles GET /repositories/available?provider= request.
// @Summary List provider repositories visible to the configured token
// @Tags Repositories
// @Produce json
// @Param provider query string true "github or bitbucket"
// @Success 200 {object} repoModel.AvailableResponse
// @Failure 400 {object} pullrequestModel.ErrorResponse "Unknown provider or no token"
// @Failure 401 {object} pullrequestModel.ErrorResponse "Token rejected by provider"
// @Router /repositories/available [get] //nolint:godot // Swagger annotation should not end with period
func (h *Handler) ListAvailable(c *gin.Context) {
	p := pullrequestModel.Provider(c.Query("provider"))

	repos, err := h.service.ListAvailable(c.Request.Context(), p)
	if err != nil {
		h.providerError(c, err, "failed to list repositories")
		return
	}
	c.JSON(http.StatusOK, repoModel.AvailableResponse{Provider: string(p), Repositories: repos})
}

// RegisterWebhook handles POST /repositories/:id/webhook request.
// @Summary Register the PitCrew webhook on a repository
// @Tags Repositories
// @Produce json
// @Param id path int true "Repository id"
// @Success 200 {object} pullrequestModel.Repository
// @Failure 404 {object} pullrequestModel.ErrorResponse "Repository not found"
// @Failure 500 {object} pullrequestModel.ErrorResponse "Registration failed"
// @Router /repositories/{id}/webhook [post] //nolint:godot // Swagger annotation should not end with period
func (h *Handler) RegisterWebhook(c *gin.Context) {
	id, ok := repositoryID(c)
	if !ok {
		return
	}
	repo, err := h.service.RegisterWebhook(c.Request.Context(), id)
	if err != nil {
		h.providerError(c, err, "failed to register webhook")
		return
	}
	c.JSON(http.StatusOK, repo)
}

// UnregisterWebhook handles DELETE /repositories/:id/webhook request.
// @Summary Remove the PitCrew webhook and deactivate a repository
// @Tags Repositories
// @Produce json
// @Param id path int true "Repository id"
// @Success 200 {object} pullrequestModel.Repository
// @Failure 404 {object} pullrequestModel.ErrorResponse "Repository not found"
// @Failure 500 {object} pullrequestModel.ErrorResponse "Removal failed"
// @Router /repositories/{id}/webhook [delete] //nolint:godot // Swagger annotation should not end with period
func (h *Handler) UnregisterWebhook(c *gin.Context) {
	id, ok := repositoryID(c)
	if !ok {
		return
	}
	repo, err := h.service.UnregisterWebhook(c.Request.Context(), id)
	if err != nil {
		h.providerError(c, err, "failed to unregister webhook")
		return
	}
	c.JSON(http.StatusOK, repo)
}

func (h *Handler) providerError(c *gin.Context, err error, message string) {
	switch {
	case errors.Is(err, repoModel.ErrInvalidProvider), errors.Is(err, pullrequestModel.ErrUnsupportedProvider):
		errorResponse(c, repoModel.ErrInvalidProvider.Error(), http.StatusBadRequest)
	case errors.Is(err, provider.ErrNoToken):
		errorResponse(c, err.Error(), http.StatusBadRequest)
	case errors.Is(err, pullrequestModel.ErrRepositoryNotFound):
		errorResponse(c, "repository not found", http.StatusNotFound)
	case errors.Is(err, provider.ErrUnauthorized):
		errorResponse(c, "provider rejected the access token", http.StatusUnauthorized)
	default:
		h.logger.Errorw(message, "error", err)
		errorResponse(c, message, http.StatusInternalServerError)
	}
}

func repositoryID(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		errorResponse(c, "invalid repository id", http.StatusBadRequest)
		return 0, false
	}
	return uint(id), true
}

func errorResponse(c *gin.Context, message string, statusCode int) {
	c.JSON(statusCode, pullrequestModel.ErrorResponse{Error: message})
}
