// Package router provides pullrequest module routes registration.
package router

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/festy23/pitcrew/internal/metrics"
	"github.com/festy23/pitcrew/internal/pullrequest/handler"
	"github.com/festy23/pitcrew/internal/pullrequest/repository"
	"github.com/festy23/pitcrew/internal/pullrequest/service"
)

// Dependencies are the collaborators of the review pipeline.
type Dependencies struct {
	Providers service.Providers
	Analyzer  service.Analyzer
	Config    service.Config
	Metrics   metrics.Recorder
}

// RegisterRoutes registers webhook and review routes.
func RegisterRoutes(r *gin.Engine, db *gorm.DB, deps Dependencies, logger *zap.SugaredLogger) {
	repo := repository.New(db, logger)
	svc := service.New(repo, deps.Providers, deps.Analyzer, deps.Config, deps.Metrics, logger)
	h := handler.New(svc, logger)

	webhooks := r.Group("/webhooks")
	webhooks.POST("/github", h.GitHubWebhook)
	webhooks.POST("/bitbucket", h.BitbucketWebhook)
	webhooks.GET("/test", h.TestWebhook)

	r.GET("/pullRequests/:id/review", h.GetReview)
	r.POST("/pullRequests/:id/review", h.TriggerReview)
}
