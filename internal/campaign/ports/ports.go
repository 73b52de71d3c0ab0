// Package ports declares the campaign module's outbound dependencies.
// Implementations live in internal/directory, internal/voice and
// internal/calendarsvc; tests substitute fakes.
package ports

import (
	"context"

	"callpilot_backend/internal/campaign/domain"
)

// DirectorySearch is a provider lookup request.
type DirectorySearch struct {
	ServiceType string
	Location    string
	MaxDistance float64
	Limit       int
}

// DirectoryResult carries the candidates plus the geocoded origin the
// distances were measured from.
type DirectoryResult struct {
	Providers []domain.Provider
	OriginLat float64
	OriginLng float64
}

// Directory finds candidate providers for a service type near a location.
type Directory interface {
	Search(ctx context.Context, req DirectorySearch) (DirectoryResult, error)
}

// StartSession is the request to open one negotiation call.
type StartSession struct {
	PhoneNumber   string
	CampaignID    string
	ProviderID    string
	ProviderName  string
	ServiceType   string
	PreferredDate string
	BestOffer     string
	CallIndex     int
}

// SessionState is what the negotiation channel reports when polled.
type SessionState struct {
	Ended      bool
	Status     string
	Transcript []domain.TranscriptEntry
}

// Voice is the negotiation channel: it opens outbound conversational
// sessions and answers status polls.
type Voice interface {
	StartSession(ctx context.Context, req StartSession) (sessionID string, err error)
	SessionState(ctx context.Context, sessionID string) (SessionState, error)
}

// Calendar checks the user's availability and records confirmed bookings.
type Calendar interface {
	IsFree(ctx context.Context, slot domain.Slot) (bool, error)
	CreateEvent(ctx context.Context, summary, description string, slot domain.Slot) (eventID string, err error)
}
