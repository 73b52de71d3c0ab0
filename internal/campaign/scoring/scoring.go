// Package scoring ranks negotiation results by a four-component
// weighted criteria model. All functions are pure.
package scoring

import (
	"math"
	"sort"
	"time"

	"callpilot_backend/internal/campaign/domain"
)

// Context carries the campaign-level inputs the score depends on.
type Context struct {
	Weights        domain.Weights
	PreferredNames []string
	MaxDistance    float64
	DateRangeDays  int
	Now            time.Time
}

const preferredBoost = 1.5

// Score computes a result's score in [0, 1]. Only booked results score
// above zero; everything else is 0 so unresolved or failed calls never
// outrank a real appointment.
func Score(r *domain.Result, p *domain.Provider, ctx Context) float64 {
	if r == nil || r.Status != domain.ResultBooked {
		return 0
	}

	availability := availabilityComponent(r.Slot, ctx.DateRangeDays, ctx.Now)

	var rating float64
	if p != nil {
		rating = math.Min(p.Rating/5.0, 1.0)
	}

	var distance float64
	if p != nil && ctx.MaxDistance > 0 {
		distance = math.Max(0, 1-math.Min(p.DistanceMiles/ctx.MaxDistance, 1))
	}

	var preference float64
	name := r.ProviderName
	if name == "" && p != nil {
		name = p.Name
	}
	preferred := domain.MatchesPreferred(name, ctx.PreferredNames)
	if preferred {
		preference = 1
	}

	w := ctx.Weights
	total := w.Availability*availability + w.Rating*rating + w.Distance*distance + w.Preference*preference
	if preferred {
		total = math.Min(total*preferredBoost, 1.0)
	}
	return round3(total)
}

// availabilityComponent rewards earlier slots linearly across the search
// window and floors at zero for slots beyond it.
func availabilityComponent(slot domain.Slot, dateRangeDays int, now time.Time) float64 {
	if slot.IsZero() || dateRangeDays <= 0 {
		return 0
	}
	date, err := time.Parse("2006-01-02", slot.Date)
	if err != nil {
		return 0
	}
	if now.IsZero() {
		now = time.Now()
	}
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	daysOut := date.Sub(today).Hours() / 24
	return math.Max(0, 1-daysOut/float64(dateRangeDays))
}

// Rank scores every result in the campaign and returns them sorted by
// score descending. Ties keep insertion order. Each result's Score and
// Preferred fields are updated in place.
func Rank(c *domain.Campaign, ctx Context) []*domain.Result {
	ranked := make([]*domain.Result, len(c.Results))
	copy(ranked, c.Results)
	for _, r := range ranked {
		r.Score = Score(r, c.FindProvider(r.ProviderID), ctx)
		r.Preferred = domain.MatchesPreferred(r.ProviderName, ctx.PreferredNames)
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Score > ranked[j].Score
	})
	return ranked
}

// BestBooked returns the highest-scored booked result, or nil.
func BestBooked(c *domain.Campaign, ctx Context) *domain.Result {
	for _, r := range Rank(c, ctx) {
		if r.Bookable() {
			return r
		}
	}
	return nil
}

func round3(v float64) float64 {
	return math.Round(v*1000) / 1000
}
