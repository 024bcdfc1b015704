// Package main provides the entry point for the HTTP server.
package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/festy23/pitcrew/internal/analyzer"
	"github.com/festy23/pitcrew/internal/analyzer/llm"
	"github.com/festy23/pitcrew/internal/config"
	"github.com/festy23/pitcrew/internal/database/database"
	"github.com/festy23/pitcrew/internal/database/migrate"
	"github.com/festy23/pitcrew/internal/health"
	"github.com/festy23/pitcrew/internal/metrics"
	"github.com/festy23/pitcrew/internal/middleware"
	pullrequestRouter "github.com/festy23/pitcrew/internal/pullrequest/router"
	"github.com/festy23/pitcrew/internal/pullrequest/service"
	repoRouter "github.com/festy23/pitcrew/internal/repo/router"
	"github.com/festy23/pitcrew/internal/scm"
	statisticsRouter "github.com/festy23/pitcrew/internal/statistics/router"
	"github.com/festy23/pitcrew/pkg/logger"
)

const connectTimeout = 2 * time.Minute

func main() {
	if err := run(); err != nil {
		log.Fatalf("server: %v", err)
	}
}

func run() error {
	cfg := config.LoadFromEnv()
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	sugar, err := logger.NewWithConfig(cfg.Logger)
	if err != nil {
		return fmt.Errorf("failed to build logger: %w", err)
	}
	defer func() { _ = sugar.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	connectCtx, cancel := context.WithTimeout(ctx, connectTimeout)
	db, err := database.New(connectCtx, sugar)
	cancel()
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := database.Close(db); closeErr != nil {
			sugar.Errorw("failed to close database", "error", closeErr)
		}
	}()

	if err := migrate.Migrate(db); err != nil {
		return err
	}
	sugar.Infow("migrations applied", "path", migrate.GetMigrationsPath())

	m := metrics.New()
	if sqlDB, err := database.SQLDB(db); err == nil {
		m.Registry().MustRegister(collectors.NewDBStatsCollector(sqlDB, "pitcrew"))
	}

	gin.SetMode(cfg.GinMode)
	r := newRouter(db, cfg, m, sugar)

	srv := &http.Server{
		Addr:         cfg.Server.GetAddress(),
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		sugar.Infow("server starting", "address", srv.Addr, "ai_provider", cfg.AI.Provider)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("failed to start server: %w", err)
		}
	case <-ctx.Done():
	}

	sugar.Infow("shutting down", "timeout", cfg.Server.ShutdownTimeout)
	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancelShutdown()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}
	sugar.Info("server stopped")
	return nil
}

// newRouter wires every module onto one engine.
func newRouter(db *gorm.DB, cfg config.Config, m *metrics.Metrics, sugar *zap.SugaredLogger) *gin.Engine {
	r := gin.New()
	r.Use(middleware.RequestID(), middleware.Logger(sugar), m.Middleware(), middleware.Recovery(sugar))

	providers := scm.NewFactory(cfg.Providers, sugar)
	az := analyzer.New(llm.New(cfg.AI, sugar), analyzer.Config{
		DiffLimit: cfg.AI.DiffLimit,
		MaxTokens: cfg.AI.MaxTokens,
		Timeout:   cfg.AI.Timeout,
	}, sugar)

	health.RegisterRoutes(r, db, sugar)
	m.RegisterRoutes(r)
	pullrequestRouter.RegisterRoutes(r, db, pullrequestRouter.Dependencies{
		Providers: providers,
		Analyzer:  az,
		Config: service.Config{
			Review:          cfg.Review,
			GitHubSecret:    cfg.Providers.GitHubWebhookSecret,
			BitbucketSecret: cfg.Providers.BitbucketWebhookSecret,
		},
		Metrics: m,
	}, sugar)
	repoRouter.RegisterRoutes(r, db, providers, cfg.Providers.CallbackBaseURL, sugar)
	statisticsRouter.RegisterRoutes(r, db, cfg.Review.DisplayRisk, sugar)

	return r
}
