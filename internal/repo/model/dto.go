package model

import "github.com/festy23/pitcrew/internal/scm/provider"

// AvailableResponse lists repositories the configured token can see.
type AvailableResponse struct {
	Provider     string          `json:"provider"`
	Repositories []provider.Repo `json:"repositories"`
}
