// Package router provides repository module routes registration.
package router

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/festy23/pitcrew/internal/pullrequest/repository"
	"github.com/festy23/pitcrew/internal/repo/handler"
	"github.com/festy23/pitcrew/internal/repo/service"
)

// RegisterRoutes registers repository module routes.
func RegisterRoutes(r *gin.Engine, db *gorm.DB, providers service.Providers, callbackBaseURL string, logger *zap.SugaredLogger) {
	repo := repository.New(db, logger)
	svc := service.New(repo, providers, callbackBaseURL, logger)
	h := handler.New(svc, logger)

	repos := r.Group("/repositories")
	repos.GET("/available", h.ListAvailable)
	repos.POST("/:id/webhook", h.RegisterWebhook)
	repos.DELETE("/:id/webhook", h.UnregisterWebhook)
}
