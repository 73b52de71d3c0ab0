// Package events provides domain event definitions for decoupled,
// event-driven communication between modules.
// Infrastructure (Bus, Handler) is in platform/events.
package events

import (
	"callpilot_backend/internal/campaign/domain"
	"callpilot_backend/platform/events"
)

// Re-export platform types for convenience
type (
	Event       = events.Event
	Bus         = events.Bus
	Handler     = events.Handler
	HandlerFunc = events.HandlerFunc
	BaseEvent   = events.BaseEvent
)

// Re-export platform functions
var NewBaseEvent = events.NewBaseEvent

// =============================================================================
// Campaign Domain Events
// =============================================================================
// Every event carries the group id: live listeners subscribe per group.

// CampaignStatusChanged is published whenever a campaign's lifecycle
// status moves.
type CampaignStatusChanged struct {
	BaseEvent
	GroupID    string                `json:"groupId"`
	CampaignID string                `json:"campaignId"`
	Status     domain.CampaignStatus `json:"status"`
	Message    string                `json:"message,omitempty"`
}

func (e CampaignStatusChanged) EventName() string { return "campaign.status" }

// ProvidersFound is published after the directory search resolves
// candidates for a campaign.
type ProvidersFound struct {
	BaseEvent
	GroupID    string            `json:"groupId"`
	CampaignID string            `json:"campaignId"`
	Providers  []domain.Provider `json:"providers"`
}

func (e ProvidersFound) EventName() string { return "campaign.providers_found" }

// CallStarted is published when a provider call is dispatched.
type CallStarted struct {
	BaseEvent
	GroupID      string `json:"groupId"`
	CampaignID   string `json:"campaignId"`
	ProviderID   string `json:"providerId"`
	ProviderName string `json:"providerName"`
}

func (e CallStarted) EventName() string { return "campaign.call_started" }

// CallConnected is published once the negotiation channel accepts the
// session and returns its id.
type CallConnected struct {
	BaseEvent
	GroupID    string `json:"groupId"`
	CampaignID string `json:"campaignId"`
	ProviderID string `json:"providerId"`
	SessionID  string `json:"sessionId"`
}

func (e CallConnected) EventName() string { return "campaign.call_connected" }

// TranscriptUpdate streams conversation fragments as they arrive.
type TranscriptUpdate struct {
	BaseEvent
	GroupID    string                   `json:"groupId"`
	CampaignID string                   `json:"campaignId"`
	ProviderID string                   `json:"providerId"`
	Entries    []domain.TranscriptEntry `json:"entries"`
}

func (e TranscriptUpdate) EventName() string { return "campaign.transcript_update" }

// BookingConfirmed is published when a call secures an appointment.
type BookingConfirmed struct {
	BaseEvent
	GroupID      string      `json:"groupId"`
	CampaignID   string      `json:"campaignId"`
	ProviderID   string      `json:"providerId"`
	ProviderName string      `json:"providerName"`
	Slot         domain.Slot `json:"slot"`
}

func (e BookingConfirmed) EventName() string { return "campaign.booking_confirmed" }

// NoAvailability is published when a provider reports no open slots.
type NoAvailability struct {
	BaseEvent
	GroupID      string `json:"groupId"`
	CampaignID   string `json:"campaignId"`
	ProviderID   string `json:"providerId"`
	ProviderName string `json:"providerName"`
	Reason       string `json:"reason,omitempty"`
}

func (e NoAvailability) EventName() string { return "campaign.no_availability" }

// CallEnded is published when a session reaches any terminal state.
type CallEnded struct {
	BaseEvent
	GroupID     string              `json:"groupId"`
	CampaignID  string              `json:"campaignId"`
	ProviderID  string              `json:"providerId"`
	Status      domain.ResultStatus `json:"status"`
	DurationSec int                 `json:"durationSec,omitempty"`
}

func (e CallEnded) EventName() string { return "campaign.call_ended" }

// CampaignComplete is published when every session in a campaign has
// resolved and the results are ranked.
type CampaignComplete struct {
	BaseEvent
	GroupID    string         `json:"groupId"`
	CampaignID string         `json:"campaignId"`
	BestMatch  *domain.Result `json:"bestMatch,omitempty"`
}

func (e CampaignComplete) EventName() string { return "campaign.complete" }

// CampaignError is published when a campaign aborts.
type CampaignError struct {
	BaseEvent
	GroupID    string `json:"groupId"`
	CampaignID string `json:"campaignId"`
	Message    string `json:"message"`
}

func (e CampaignError) EventName() string { return "campaign.error" }

// ScoreUpdate is published whenever results are re-scored mid-campaign.
type ScoreUpdate struct {
	BaseEvent
	GroupID    string  `json:"groupId"`
	CampaignID string  `json:"campaignId"`
	ProviderID string  `json:"providerId"`
	Score      float64 `json:"score"`
}

func (e ScoreUpdate) EventName() string { return "campaign.score_update" }

// BookingRecorded is published when the user confirms an appointment,
// after the calendar event is created. Notification and scheduling
// handlers hang off this one.
type BookingRecorded struct {
	BaseEvent
	GroupID string         `json:"groupId"`
	OwnerID string         `json:"ownerId"`
	Booking domain.Booking `json:"booking"`
}

func (e BookingRecorded) EventName() string { return "campaign.booking_recorded" }

// GroupEvent is implemented by all campaign events so the notification
// layer can route them to the right listeners.
type GroupEvent interface {
	Event
	Group() string
}

func (e CampaignStatusChanged) Group() string { return e.GroupID }
func (e ProvidersFound) Group() string        { return e.GroupID }
func (e CallStarted) Group() string           { return e.GroupID }
func (e CallConnected) Group() string         { return e.GroupID }
func (e TranscriptUpdate) Group() string      { return e.GroupID }
func (e BookingConfirmed) Group() string      { return e.GroupID }
func (e NoAvailability) Group() string        { return e.GroupID }
func (e CallEnded) Group() string             { return e.GroupID }
func (e CampaignComplete) Group() string      { return e.GroupID }
func (e CampaignError) Group() string         { return e.GroupID }
func (e ScoreUpdate) Group() string           { return e.GroupID }
func (e BookingRecorded) Group() string       { return e.GroupID }

// AllCampaignEventNames lists every event name a group listener cares about.
func AllCampaignEventNames() []string {
	return []string{
		CampaignStatusChanged{}.EventName(),
		ProvidersFound{}.EventName(),
		CallStarted{}.EventName(),
		CallConnected{}.EventName(),
		TranscriptUpdate{}.EventName(),
		BookingConfirmed{}.EventName(),
		NoAvailability{}.EventName(),
		CallEnded{}.EventName(),
		CampaignComplete{}.EventName(),
		CampaignError{}.EventName(),
		ScoreUpdate{}.EventName(),
		BookingRecorded{}.EventName(),
	}
}
