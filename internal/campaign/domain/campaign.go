// Package domain holds the campaign bounded context's core types:
// groups, campaigns, providers, and per-provider negotiation results.
package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Provider is a candidate business discovered by the directory search.
// Immutable once attached to a campaign's candidate list.
type Provider struct {
	ID                 string  `json:"provider_id"`
	Name               string  `json:"name"`
	Phone              string  `json:"phone"`
	NationalPhone      string  `json:"national_phone,omitempty"`
	InternationalPhone string  `json:"international_phone,omitempty"`
	Address            string  `json:"address"`
	Lat                float64 `json:"lat"`
	Lng                float64 `json:"lng"`
	Rating             float64 `json:"rating"`
	ReviewCount        int     `json:"total_reviews"`
	DistanceMiles      float64 `json:"distance_miles"`
	TravelMinutes      int     `json:"travel_minutes"`
	OpenNow            *bool   `json:"open_now,omitempty"`
	Website            string  `json:"website,omitempty"`
}

// DialNumber returns the best number to reach the provider on, empty when none.
func (p Provider) DialNumber() string {
	if p.InternationalPhone != "" {
		return p.InternationalPhone
	}
	return p.Phone
}

// Weights are the four scoring criteria weights, conceptually summing to 1.
type Weights struct {
	Availability float64 `json:"availability"`
	Rating       float64 `json:"rating"`
	Distance     float64 `json:"distance"`
	Preference   float64 `json:"preference"`
}

// DefaultWeights mirror the product defaults (40/30/20/10).
func DefaultWeights() Weights {
	return Weights{Availability: 0.4, Rating: 0.3, Distance: 0.2, Preference: 0.1}
}

// Campaign is one service-type search-and-negotiate unit within a group.
type Campaign struct {
	ID                 string         `json:"campaign_id"`
	GroupID            string         `json:"group_id"`
	ServiceType        string         `json:"service_type"`
	Location           string         `json:"location"`
	MaxDistance        float64        `json:"max_distance"`
	MaxProviders       int            `json:"max_providers"`
	PreferredDate      string         `json:"preferred_date"`
	Weights            Weights        `json:"weights"`
	PreferredProviders []string       `json:"preferred_providers"`
	Status             CampaignStatus `json:"status"`
	Providers          []Provider     `json:"providers"`
	Results            []*Result      `json:"results"`
	BestMatch          *Result        `json:"best_match,omitempty"`
	OriginLat          float64        `json:"origin_lat"`
	OriginLng          float64        `json:"origin_lng"`
	CreatedAt          time.Time      `json:"created_at"`
	CompletedAt        *time.Time     `json:"completed_at,omitempty"`
}

// FindProvider returns the candidate with the given id, or nil.
func (c *Campaign) FindProvider(providerID string) *Provider {
	for i := range c.Providers {
		if c.Providers[i].ID == providerID {
			return &c.Providers[i]
		}
	}
	return nil
}

// FindResult returns the result for the given provider id, or nil.
// At most one result exists per provider.
func (c *Campaign) FindResult(providerID string) *Result {
	for _, r := range c.Results {
		if r.ProviderID == providerID {
			return r
		}
	}
	return nil
}

// IsPreferred reports whether the provider name matches an entry in the
// user's preferred list. Matching is case-insensitive and tolerates a
// substring in either direction ("Smile Dental" matches "Smile Dental Care").
func (c *Campaign) IsPreferred(providerName string) bool {
	return MatchesPreferred(providerName, c.PreferredProviders)
}

// MatchesPreferred implements the preferred-provider name match.
func MatchesPreferred(providerName string, preferred []string) bool {
	name := strings.ToLower(strings.TrimSpace(providerName))
	if name == "" {
		return false
	}
	for _, p := range preferred {
		pref := strings.ToLower(strings.TrimSpace(p))
		if pref == "" {
			continue
		}
		if strings.Contains(name, pref) || strings.Contains(pref, name) {
			return true
		}
	}
	return false
}

// Group is one user request, possibly spanning multiple service types.
type Group struct {
	ID        string      `json:"group_id"`
	OwnerID   string      `json:"owner_id"`
	Status    GroupStatus `json:"status"`
	Campaigns []*Campaign `json:"campaigns"`
	Bookings  []Booking   `json:"bookings,omitempty"`
	CreatedAt time.Time   `json:"created_at"`
}

// FindCampaign returns the child campaign with the given id, or nil.
func (g *Group) FindCampaign(campaignID string) *Campaign {
	for _, c := range g.Campaigns {
		if c.ID == campaignID {
			return c
		}
	}
	return nil
}

// Booking is a user-confirmed appointment.
type Booking struct {
	ID              string    `json:"booking_id"`
	CampaignID      string    `json:"campaign_id"`
	ProviderID      string    `json:"provider_id"`
	ProviderName    string    `json:"provider_name"`
	ServiceType     string    `json:"service_type"`
	Slot            Slot      `json:"slot"`
	CalendarEventID string    `json:"calendar_event_id,omitempty"`
	ConfirmedAt     time.Time `json:"confirmed_at"`
}

// NewGroupID returns a process-unique group id.
func NewGroupID() string {
	return "grp_" + shortHex()
}

// NewCampaignID returns a process-unique campaign id.
func NewCampaignID() string {
	return "camp_" + shortHex()
}

// NewBookingID returns a process-unique booking id.
func NewBookingID() string {
	return "bkg_" + shortHex()
}

func shortHex() string {
	id := uuid.New()
	return strings.ReplaceAll(id.String(), "-", "")[:12]
}
