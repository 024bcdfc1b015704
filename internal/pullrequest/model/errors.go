package model

import "errors"

var (
	// ErrRepositoryNotFound indicates that the requested repository does not exist.
	ErrRepositoryNotFound = errors.New("repository not found")
	// ErrPullRequestNotFound indicates that the requested pull request does not exist.
	ErrPullRequestNotFound = errors.New("pull request not found")
	// ErrReviewNotFound indicates that the pull request has no AI review yet.
	ErrReviewNotFound = errors.New("review not found")
	// ErrReviewExists indicates that an AI review already exists for the pull request.
	ErrReviewExists = errors.New("review already exists for this pull request")
	// ErrSignatureInvalid indicates that the webhook signature did not match.
	ErrSignatureInvalid = errors.New("invalid webhook signature")
	// ErrInvalidPayload indicates that the webhook body is not valid JSON.
	ErrInvalidPayload = errors.New("invalid JSON payload")
	// ErrUnsupportedProvider indicates a provider other than github or bitbucket.
	ErrUnsupportedProvider = errors.New("unsupported provider")
)
