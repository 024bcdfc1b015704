// Package repository provides data access layer for statistics module.
package repository

import (
	"context"
	"errors"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/festy23/pitcrew/internal/analyzer"
	"github.com/festy23/pitcrew/internal/config"
	pullrequestModel "github.com/festy23/pitcrew/internal/pullrequest/model"
	"github.com/festy23/pitcrew/internal/statistics/model"
)

// topFilesLimit bounds ReviewStatistics.TopFiles.
const topFilesLimit = 10

// Repository defines the interface for statistics data access operations.
type Repository interface {
	// GetPullRequestStatistics returns pull request counts by status and review coverage.
	GetPullRequestStatistics(ctx context.Context) (*model.PullRequestStatistics, error)

	// GetReviewStatistics aggregates reviews, banding risk scores with bands.
	GetReviewStatistics(ctx context.Context, bands config.Thresholds) (*model.ReviewStatistics, error)

	// GetReviewIssues returns the issues of a pull request's review.
	GetReviewIssues(ctx context.Context, pullRequestID uint) ([]pullrequestModel.ReviewIssue, error)
}

type repository struct {
	db     *gorm.DB
	logger *zap.SugaredLogger
}

// New creates a new statistics repository instance.
func New(db *gorm.DB, logger *zap.SugaredLogger) Repository {
	return &repository{
		db:     db,
		logger: logger,
	}
}

// GetPullRequestStatistics returns pull request counts by status and review coverage.
func (r *repository) GetPullRequestStatistics(ctx context.Context) (*model.PullRequestStatistics, error) {
	r.logger.Debugw("GetPullRequestStatistics called")

	var result struct {
		TotalPRs    int64 `gorm:"column:total_prs"`
		OpenPRs     int64 `gorm:"column:open_prs"`
		MergedPRs   int64 `gorm:"column:merged_prs"`
		ClosedPRs   int64 `gorm:"column:closed_prs"`
		DraftPRs    int64 `gorm:"column:draft_prs"`
		ReviewedPRs int64 `gorm:"column:reviewed_prs"`
	}

	err := r.db.WithContext(ctx).
		Table("pull_requests").
		Select(`
			COUNT(*) as total_prs,
			COALESCE(SUM(CASE WHEN pull_requests.status = ? THEN 1 ELSE 0 END), 0) as open_prs,
			COALESCE(SUM(CASE WHEN pull_requests.status = ? THEN 1 ELSE 0 END), 0) as merged_prs,
			COALESCE(SUM(CASE WHEN pull_requests.status = ? THEN 1 ELSE 0 END), 0) as closed_prs,
			COALESCE(SUM(CASE WHEN pull_requests.status = ? THEN 1 ELSE 0 END), 0) as draft_prs,
			COUNT(ai_reviews.id) as reviewed_prs
		`,
			pullrequestModel.StatusOpen,
			pullrequestModel.StatusMerged,
			pullrequestModel.StatusClosed,
			pullrequestModel.StatusDraft,
		).
		Joins("LEFT JOIN ai_reviews ON ai_reviews.pull_request_id = pull_requests.id").
		Scan(&result).Error
	if err != nil {
		r.logger.Errorw("GetPullRequestStatistics database error", "error", err)
		return nil, err
	}

	stats := &model.PullRequestStatistics{
		TotalPRs:      int(result.TotalPRs),
		OpenPRs:       int(result.OpenPRs),
		MergedPRs:     int(result.MergedPRs),
		ClosedPRs:     int(result.ClosedPRs),
		DraftPRs:      int(result.DraftPRs),
		ReviewedPRs:   int(result.ReviewedPRs),
		UnreviewedPRs: int(result.TotalPRs - result.ReviewedPRs),
	}

	r.logger.Debugw("GetPullRequestStatistics completed", "total_prs", stats.TotalPRs)
	return stats, nil
}

// GetReviewStatistics aggregates reviews, banding risk scores with bands.
func (r *repository) GetReviewStatistics(ctx context.Context, bands config.Thresholds) (*model.ReviewStatistics, error) {
	r.logger.Debugw("GetReviewStatistics called", "medium", bands.Medium, "high", bands.High)

	var reviews struct {
		Total       int64   `gorm:"column:total_reviews"`
		AvgRisk     float64 `gorm:"column:avg_risk"`
		Ready       int64   `gorm:"column:ready"`
		Unavailable int64   `gorm:"column:unavailable"`
		Low         int64   `gorm:"column:low"`
		Medium      int64   `gorm:"column:medium"`
		High        int64   `gorm:"column:high"`
	}
	err := r.db.WithContext(ctx).
		Table("ai_reviews").
		Select(`
			COUNT(*) as total_reviews,
			COALESCE(AVG(risk_score), 0) as avg_risk,
			COALESCE(SUM(CASE WHEN deployment_ready THEN 1 ELSE 0 END), 0) as ready,
			COALESCE(SUM(CASE WHEN summary = ? THEN 1 ELSE 0 END), 0) as unavailable,
			COALESCE(SUM(CASE WHEN risk_score < ? THEN 1 ELSE 0 END), 0) as low,
			COALESCE(SUM(CASE WHEN risk_score >= ? AND risk_score < ? THEN 1 ELSE 0 END), 0) as medium,
			COALESCE(SUM(CASE WHEN risk_score >= ? THEN 1 ELSE 0 END), 0) as high
		`,
			analyzer.FallbackSummary,
			bands.Medium,
			bands.Medium, bands.High,
			bands.High,
		).
		Scan(&reviews).Error
	if err != nil {
		r.logger.Errorw("GetReviewStatistics database error", "error", err)
		return nil, err
	}

	var issues struct {
		Total  int64 `gorm:"column:total"`
		High   int64 `gorm:"column:high"`
		Medium int64 `gorm:"column:medium"`
		Low    int64 `gorm:"column:low"`
		Files  int64 `gorm:"column:files"`
	}
	err = r.db.WithContext(ctx).
		Table("review_issues").
		Select(`
			COUNT(*) as total,
			COALESCE(SUM(CASE WHEN severity = ? THEN 1 ELSE 0 END), 0) as high,
			COALESCE(SUM(CASE WHEN severity = ? THEN 1 ELSE 0 END), 0) as medium,
			COALESCE(SUM(CASE WHEN severity = ? THEN 1 ELSE 0 END), 0) as low,
			COUNT(DISTINCT file_path) as files
		`,
			pullrequestModel.SeverityHigh,
			pullrequestModel.SeverityMedium,
			pullrequestModel.SeverityLow,
		).
		Scan(&issues).Error
	if err != nil {
		r.logger.Errorw("GetReviewStatistics issue query error", "error", err)
		return nil, err
	}

	var topFiles []model.FileIssueCount
	err = r.db.WithContext(ctx).
		Table("review_issues").
		Select("file_path, COUNT(*) as count").
		Group("file_path").
		Order("count DESC, file_path ASC").
		Limit(topFilesLimit).
		Scan(&topFiles).Error
	if err != nil {
		r.logger.Errorw("GetReviewStatistics top files query error", "error", err)
		return nil, err
	}
	if topFiles == nil {
		topFiles = []model.FileIssueCount{}
	}

	stats := &model.ReviewStatistics{
		TotalReviews:     int(reviews.Total),
		AverageRiskScore: reviews.AvgRisk,
		DeploymentReady:  int(reviews.Ready),
		Unavailable:      int(reviews.Unavailable),
		RiskBands: model.RiskBands{
			Low:    int(reviews.Low),
			Medium: int(reviews.Medium),
			High:   int(reviews.High),
		},
		Issues: model.IssueStatistics{
			Total:         int(issues.Total),
			High:          int(issues.High),
			Medium:        int(issues.Medium),
			Low:           int(issues.Low),
			FilesAffected: int(issues.Files),
			SeverityScore: model.Score(int(issues.High), int(issues.Medium), int(issues.Low)),
		},
		TopFiles: topFiles,
	}

	r.logger.Debugw("GetReviewStatistics completed", "total_reviews", stats.TotalReviews)
	return stats, nil
}

// GetReviewIssues returns the issues of a pull request's review in stored order.
func (r *repository) GetReviewIssues(ctx context.Context, pullRequestID uint) ([]pullrequestModel.ReviewIssue, error) {
	var review pullrequestModel.AIReview
	err := r.db.WithContext(ctx).
		Preload("Issues", func(db *gorm.DB) *gorm.DB { return db.Order("id") }).
		Where("pull_request_id = ?", pullRequestID).
		First(&review).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pullrequestModel.ErrReviewNotFound
		}
		return nil, err
	}
	return review.Issues, nil
}
