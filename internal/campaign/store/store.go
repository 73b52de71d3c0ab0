// Package store persists campaign groups. Two backends exist: an
// in-process map for single-node deployments and tests, and Redis for
// anything that must survive a restart.
package store

import (
	"context"
	"errors"

	"callpilot_backend/internal/campaign/domain"
)

// ErrNotFound is returned when a group or session reference does not exist.
var ErrNotFound = errors.New("store: not found")

// SessionRef locates the result a voice session belongs to.
type SessionRef struct {
	GroupID    string `json:"group_id"`
	CampaignID string `json:"campaign_id"`
	ProviderID string `json:"provider_id"`
}

// GroupStore is the persistence port for campaign groups.
//
// Save writes the full group document. Callers serialize concurrent
// writers above this layer; the store only guarantees each Save is
// atomic.
type GroupStore interface {
	Save(ctx context.Context, g *domain.Group) error
	Get(ctx context.Context, groupID string) (*domain.Group, error)
	ListByOwner(ctx context.Context, ownerID string) ([]*domain.Group, error)
	Delete(ctx context.Context, groupID string) error

	BindSession(ctx context.Context, sessionID string, ref SessionRef) error
	ResolveSession(ctx context.Context, sessionID string) (SessionRef, error)

	// Campaign ids arrive alone on webhook callbacks; the index maps
	// them back to their group.
	BindCampaign(ctx context.Context, campaignID, groupID string) error
	ResolveCampaign(ctx context.Context, campaignID string) (string, error)
}
