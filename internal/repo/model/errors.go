// Package model provides request and response types for repository management.
package model

import "errors"

var (
	// ErrCallbackURLMissing is returned when WEBHOOK_CALLBACK_BASE_URL is not configured.
	ErrCallbackURLMissing = errors.New("webhook callback URL not configured")
	// ErrInvalidProvider is returned for an unknown provider query parameter.
	ErrInvalidProvider = errors.New("provider must be github or bitbucket")
)
