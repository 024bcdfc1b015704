// Package health provides the health check endpoint.
package health

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/festy23/pitcrew/internal/database/database"
)

const checkTimeout = 5 * time.Second

// Statuses reported by Check.
const (
	StatusOK        = "ok"
	StatusUnhealthy = "unhealthy"
)

// Handler handles health check requests.
type Handler struct {
	db     *gorm.DB
	logger *zap.SugaredLogger
}

// New creates a new health handler instance.
func New(db *gorm.DB, logger *zap.SugaredLogger) *Handler {
	return &Handler{
		db:     db,
		logger: logger,
	}
}

// Response represents health check response.
type Response struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

// Check handles GET /health. It answers 503 when the database does not respond.
//
// @Summary Service health
// @Tags health
// @Produce json
// @Success 200 {object} Response
// @Failure 503 {object} Response
// @Router /health [get] //nolint:godot
func (h *Handler) Check(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), checkTimeout)
	defer cancel()

	resp := Response{Status: StatusOK, Checks: map[string]string{"database": StatusOK}}
	if err := database.HealthCheck(ctx, h.db); err != nil {
		if h.logger != nil {
			h.logger.Warnw("health check failed", "component", "database", "error", err)
		}
		resp.Status = StatusUnhealthy
		resp.Checks["database"] = StatusUnhealthy
		c.JSON(http.StatusServiceUnavailable, resp)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// RegisterRoutes registers GET /health.
func RegisterRoutes(r *gin.Engine, db *gorm.DB, logger *zap.SugaredLogger) {
	r.GET("/health", New(db, logger).Check)
}
