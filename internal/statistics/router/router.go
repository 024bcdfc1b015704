// Package router provides statistics module routes registration.
package router

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/festy23/pitcrew/internal/config"
	"github.com/festy23/pitcrew/internal/statistics/handler"
	"github.com/festy23/pitcrew/internal/statistics/repository"
	"github.com/festy23/pitcrew/internal/statistics/service"
)

// RegisterRoutes registers statistics module routes.
func RegisterRoutes(r *gin.Engine, db *gorm.DB, displayRisk config.Thresholds, logger *zap.SugaredLogger) {
	repo := repository.New(db, logger)
	svc := service.New(repo, displayRisk, logger)
	h := handler.New(svc, logger)

	stats := r.Group("/statistics")
	stats.GET("/pullrequests", h.GetPullRequestStatistics)
	stats.GET("/pullrequests/:id/issues", h.GetPullRequestIssues)
	stats.GET("/reviews", h.GetReviewStatistics)
}
