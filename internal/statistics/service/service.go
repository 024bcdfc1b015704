// Package service provides business logic layer for statistics module.
package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/festy23/pitcrew/internal/config"
	"github.com/festy23/pitcrew/internal/statistics/model"
	"github.com/festy23/pitcrew/internal/statistics/repository"
)

// Service defines the interface for statistics business logic operations.
type Service interface {
	// GetPullRequestStatistics returns statistics for pull requests.
	GetPullRequestStatistics(ctx context.Context) (*model.PullRequestStatisticsResponse, error)

	// GetReviewStatistics returns statistics for stored reviews.
	GetReviewStatistics(ctx context.Context) (*model.ReviewStatisticsResponse, error)

	// GetPullRequestIssues returns issue statistics of one pull request's review.
	GetPullRequestIssues(ctx context.Context, pullRequestID uint) (*model.PullRequestIssuesResponse, error)
}

type service struct {
	repo        repository.Repository
	displayRisk config.Thresholds
	logger      *zap.SugaredLogger
}

// New creates a new statistics service instance. displayRisk bands review risk scores.
func New(repo repository.Repository, displayRisk config.Thresholds, logger *zap.SugaredLogger) Service {
	return &service{
		repo:        repo,
		displayRisk: displayRisk,
		logger:      logger,
	}
}

// GetPullRequestStatistics returns statistics for pull requests.
func (s *service) GetPullRequestStatistics(ctx context.Context) (*model.PullRequestStatisticsResponse, error) {
	stats, err := s.repo.GetPullRequestStatistics(ctx)
	if err != nil {
		s.logger.Errorw("GetPullRequestStatistics failed", "error", err)
		return nil, err
	}

	s.logger.Debugw("GetPullRequestStatistics completed", "total_prs", stats.TotalPRs)
	return &model.PullRequestStatisticsResponse{Statistics: *stats}, nil
}

// GetReviewStatistics returns statistics for stored reviews.
func (s *service) GetReviewStatistics(ctx context.Context) (*model.ReviewStatisticsResponse, error) {
	stats, err := s.repo.GetReviewStatistics(ctx, s.displayRisk)
	if err != nil {
		s.logger.Errorw("GetReviewStatistics failed", "error", err)
		return nil, err
	}

	s.logger.Debugw("GetReviewStatistics completed", "total_reviews", stats.TotalReviews)
	return &model.ReviewStatisticsResponse{Statistics: *stats}, nil
}

// GetPullRequestIssues returns issue statistics of one pull request's review.
func (s *service) GetPullRequestIssues(ctx context.Context, pullRequestID uint) (*model.PullRequestIssuesResponse, error) {
	issues, err := s.repo.GetReviewIssues(ctx, pullRequestID)
	if err != nil {
		return nil, err
	}
	return &model.PullRequestIssuesResponse{
		PullRequestID: pullRequestID,
		Statistics:    model.CountIssues(issues),
		ByFile:        model.GroupByFile(issues),
	}, nil
}
