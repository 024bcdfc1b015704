// Package repository provides data access layer for pullrequest module.
package repository

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/festy23/pitcrew/internal/pullrequest/model"
)

// Repository defines the interface for pullrequest data access operations.
type Repository interface {
	// UpsertRepository returns the repository keyed by (provider, provider repo id), creating it if absent.
	UpsertRepository(ctx context.Context, info model.RepositoryInfo) (*model.Repository, error)

	// UpsertPullRequest creates or updates the pull request keyed by (repository, number).
	// created reports whether this call inserted the row.
	UpsertPullRequest(
		ctx context.Context,
		repositoryID uint,
		info model.PullRequestInfo,
	) (pr *model.PullRequest, created bool, err error)

	// GetPullRequest finds a pull request with its repository.
	GetPullRequest(ctx context.Context, id uint) (*model.PullRequest, error)

	// GetReview returns the review of a pull request with its issues.
	GetReview(ctx context.Context, pullRequestID uint) (*model.AIReview, error)

	// CreateReview stores a review and its issues in one transaction.
	// Returns model.ErrReviewExists if the pull request already has one.
	CreateReview(ctx context.Context, review *model.AIReview) error

	// GetRepository finds a repository by id.
	GetRepository(ctx context.Context, id uint) (*model.Repository, error)

	// SetWebhook stores the webhook id and active flag of a repository.
	SetWebhook(ctx context.Context, id uint, webhookID *string, active bool) (*model.Repository, error)
}

type repository struct {
	db     *gorm.DB
	logger *zap.SugaredLogger
}

// New creates a new pullrequest repository instance.
func New(db *gorm.DB, logger *zap.SugaredLogger) Repository {
	return &repository{db: db, logger: logger}
}

// UpsertRepository inserts with ON CONFLICT DO NOTHING and then reads the row,
// so concurrent first deliveries converge on one repository.
func (r *repository) UpsertRepository(ctx context.Context, info model.RepositoryInfo) (*model.Repository, error) {
	repo := &model.Repository{
		Provider:       info.Provider,
		ProviderRepoID: info.ProviderRepoID,
		Name:           info.Name,
		FullName:       info.FullName,
		URL:            info.URL,
		IsActive:       true,
	}

	result := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "provider"}, {Name: "provider_repo_id"}},
			DoNothing: true,
		}).
		Create(repo)
	if result.Error != nil {
		return nil, result.Error
	}
	if result.RowsAffected == 1 {
		r.logger.Infow("Created repository", "repository_id", repo.ID, "provider", info.Provider, "full_name", info.FullName)
	}

	var existing model.Repository
	err := r.db.WithContext(ctx).
		Where("provider = ? AND provider_repo_id = ?", info.Provider, info.ProviderRepoID).
		First(&existing).Error
	if err != nil {
		return nil, err
	}
	return &existing, nil
}

// UpsertPullRequest inserts with ON CONFLICT DO NOTHING; when the row already
// exists the mutable fields are updated in place.
func (r *repository) UpsertPullRequest(
	ctx context.Context,
	repositoryID uint,
	info model.PullRequestInfo,
) (*model.PullRequest, bool, error) {
	pr := &model.PullRequest{
		RepositoryID: repositoryID,
		Number:       info.Number,
		Title:        info.Title,
		Description:  info.Description,
		Author:       info.Author,
		Status:       info.Status,
		SourceBranch: info.SourceBranch,
		TargetBranch: info.TargetBranch,
		URL:          info.URL,
		CreatedAt:    info.CreatedAt,
	}

	db := r.db.WithContext(ctx)
	result := db.
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "repository_id"}, {Name: "pr_number"}},
			DoNothing: true,
		}).
		Create(pr)
	if result.Error != nil {
		return nil, false, result.Error
	}
	created := result.RowsAffected == 1

	if !created {
		err := db.Model(&model.PullRequest{}).
			Where("repository_id = ? AND pr_number = ?", repositoryID, info.Number).
			Updates(map[string]interface{}{
				"title":         info.Title,
				"description":   info.Description,
				"author":        info.Author,
				"status":        info.Status,
				"source_branch": info.SourceBranch,
				"target_branch": info.TargetBranch,
				"url":           info.URL,
				"updated_at":    time.Now(),
			}).Error
		if err != nil {
			return nil, false, err
		}
	}

	var stored model.PullRequest
	err := db.Where("repository_id = ? AND pr_number = ?", repositoryID, info.Number).First(&stored).Error
	if err != nil {
		return nil, false, err
	}
	return &stored, created, nil
}

// GetPullRequest finds a pull request with its repository.
func (r *repository) GetPullRequest(ctx context.Context, id uint) (*model.PullRequest, error) {
	var pr model.PullRequest
	err := r.db.WithContext(ctx).Preload("Repository").First(&pr, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, model.ErrPullRequestNotFound
		}
		return nil, err
	}
	return &pr, nil
}

// GetReview returns the review of a pull request with issues in stored order.
func (r *repository) GetReview(ctx context.Context, pullRequestID uint) (*model.AIReview, error) {
	var review model.AIReview
	err := r.db.WithContext(ctx).
		Preload("Issues", func(db *gorm.DB) *gorm.DB { return db.Order("id") }).
		Where("pull_request_id = ?", pullRequestID).
		First(&review).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, model.ErrReviewNotFound
		}
		return nil, err
	}
	return &review, nil
}

// CreateReview stores review and review.Issues together. The existence check and
// the unique index on pull_request_id both map to model.ErrReviewExists.
func (r *repository) CreateReview(ctx context.Context, review *model.AIReview) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&model.AIReview{}).Where("pull_request_id = ?", review.PullRequestID).Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return model.ErrReviewExists
		}
		return tx.Create(review).Error
	})
	if err != nil {
		if isDuplicateError(err) {
			return model.ErrReviewExists
		}
		return err
	}
	return nil
}

// GetRepository finds a repository by id.
func (r *repository) GetRepository(ctx context.Context, id uint) (*model.Repository, error) {
	var repo model.Repository
	if err := r.db.WithContext(ctx).First(&repo, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, model.ErrRepositoryNotFound
		}
		return nil, err
	}
	return &repo, nil
}

// SetWebhook stores the webhook id and active flag of a repository.
func (r *repository) SetWebhook(ctx context.Context, id uint, webhookID *string, active bool) (*model.Repository, error) {
	result := r.db.WithContext(ctx).Model(&model.Repository{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"webhook_id": webhookID,
			"is_active":  active,
			"updated_at": time.Now(),
		})
	if result.Error != nil {
		return nil, result.Error
	}
	if result.RowsAffected == 0 {
		return nil, model.ErrRepositoryNotFound
	}
	return r.GetRepository(ctx, id)
}

// isDuplicateError reports unique constraint violations from postgres or sqlite.
func isDuplicateError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "duplicate key") || strings.Contains(msg, "UNIQUE constraint")
}
