// Package transport defines the campaign module's HTTP request and
// response shapes.
package transport

import (
	"callpilot_backend/internal/campaign/domain"
	"callpilot_backend/internal/campaign/optimize"
)

// WeightsRequest carries the four scoring weights as percentages, the
// way the booking UI sends them (40 means 0.4).
type WeightsRequest struct {
	Availability float64 `json:"availability" validate:"gte=0,lte=100"`
	Rating       float64 `json:"rating" validate:"gte=0,lte=100"`
	Distance     float64 `json:"distance" validate:"gte=0,lte=100"`
	Preference   float64 `json:"preference" validate:"gte=0,lte=100"`
}

// ToWeights converts percentage weights to fractions.
func (w *WeightsRequest) ToWeights() domain.Weights {
	return domain.Weights{
		Availability: w.Availability / 100,
		Rating:       w.Rating / 100,
		Distance:     w.Distance / 100,
		Preference:   w.Preference / 100,
	}
}

// StartGroupRequest is the request body for starting a campaign group.
type StartGroupRequest struct {
	ServiceTypes        []string        `json:"service_types" validate:"required,min=1,dive,min=1,max=100"`
	Location            string          `json:"location" validate:"required,max=200"`
	MaxDistanceMiles    float64         `json:"max_distance_miles" validate:"gt=0,lte=100"`
	MaxProvidersPerType int             `json:"max_providers_per_type" validate:"gte=0,lte=10"`
	PreferredDate       string          `json:"preferred_date,omitempty" validate:"max=50"`
	Weights             *WeightsRequest `json:"weights,omitempty"`
	PreferredProviders  []string        `json:"preferred_providers,omitempty" validate:"dive,max=200"`
}

// StartGroupResponse acknowledges a started group.
type StartGroupResponse struct {
	GroupID       string `json:"group_id"`
	Status        string `json:"status"`
	CampaignCount int    `json:"campaign_count"`
	Message       string `json:"message"`
}

// GroupResponse is the full group document returned on reads.
type GroupResponse struct {
	*domain.Group
}

// ConfirmResponse acknowledges a user-confirmed booking.
type ConfirmResponse struct {
	Booking *domain.Booking `json:"booking"`
	Message string          `json:"message"`
}

// OptimizeResponse wraps the optimizer's schedule.
type OptimizeResponse struct {
	optimize.Schedule
}
