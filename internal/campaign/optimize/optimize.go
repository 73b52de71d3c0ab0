// Package optimize picks the best non-conflicting combination of booked
// appointments across the campaigns of a group.
package optimize

import (
	"math"
	"sort"

	"callpilot_backend/internal/campaign/domain"
)

// Appointment is one chosen (campaign, result) pair in the schedule.
type Appointment struct {
	CampaignID    string      `json:"campaign_id"`
	ServiceType   string      `json:"service_type"`
	ProviderID    string      `json:"provider_id"`
	ProviderName  string      `json:"provider_name"`
	Slot          domain.Slot `json:"slot"`
	Score         float64     `json:"score"`
	Lat           float64     `json:"lat"`
	Lng           float64     `json:"lng"`
	DistanceMiles float64     `json:"distance_miles"`
}

// Schedule is the optimizer's answer. When Optimized is false, Reason
// explains why and the remaining fields are zero.
type Schedule struct {
	Optimized         bool          `json:"optimized"`
	Reason            string        `json:"reason,omitempty"`
	Appointments      []Appointment `json:"appointments,omitempty"`
	TotalScore        float64       `json:"total_score"`
	TotalTravelMiles  float64       `json:"total_travel_miles"`
	ConflictsResolved int           `json:"conflicts_resolved"`
}

const (
	earthRadiusMiles = 3959
	travelBonusMax   = 0.2
	travelNormMiles  = 30
)

// Run finds the highest-scoring set of one booked appointment per
// completed campaign such that no two appointments overlap in time.
// It never fails: every degenerate input maps to a Schedule with
// Optimized=false and a reason.
func Run(g *domain.Group) Schedule {
	var completed []*domain.Campaign
	for _, c := range g.Campaigns {
		if c.Status == domain.CampaignCompleted {
			completed = append(completed, c)
		}
	}
	if len(completed) == 0 {
		return Schedule{Optimized: false, Reason: "No completed campaigns"}
	}

	options := make([][]Appointment, 0, len(completed))
	for _, c := range completed {
		options = append(options, bookedOptions(c))
	}

	if len(options) == 1 {
		return singleCampaignSchedule(options[0])
	}

	best, bestScore, conflicts := searchCombinations(options)
	if best == nil {
		return Schedule{
			Optimized:         false,
			Reason:            "All combinations have time conflicts",
			ConflictsResolved: conflicts,
		}
	}

	// Re-sort the winning combination into visit order and recompute
	// travel along that route.
	route := append([]Appointment(nil), best...)
	sort.SliceStable(route, func(i, j int) bool {
		return route[i].Slot.SortKey() < route[j].Slot.SortKey()
	})

	return Schedule{
		Optimized:         true,
		Appointments:      route,
		TotalScore:        round3(bestScore),
		TotalTravelMiles:  round1(routeTravel(route)),
		ConflictsResolved: conflicts,
	}
}

// bookedOptions lists a campaign's bookable results best-score first.
// A campaign with none contributes a single sentinel entry so the
// cross-product below still covers every campaign.
func bookedOptions(c *domain.Campaign) []Appointment {
	var opts []Appointment
	for _, r := range c.Results {
		if !r.Bookable() {
			continue
		}
		var lat, lng, dist float64
		if p := c.FindProvider(r.ProviderID); p != nil {
			lat, lng, dist = p.Lat, p.Lng, p.DistanceMiles
		}
		opts = append(opts, Appointment{
			CampaignID:    c.ID,
			ServiceType:   c.ServiceType,
			ProviderID:    r.ProviderID,
			ProviderName:  r.ProviderName,
			Slot:          r.Slot,
			Score:         r.Score,
			Lat:           lat,
			Lng:           lng,
			DistanceMiles: dist,
		})
	}
	if len(opts) == 0 {
		return []Appointment{{CampaignID: c.ID, ServiceType: c.ServiceType, ProviderName: "No options"}}
	}
	sort.SliceStable(opts, func(i, j int) bool { return opts[i].Score > opts[j].Score })
	return opts
}

func singleCampaignSchedule(opts []Appointment) Schedule {
	best := opts[0]
	if best.ProviderID == "" {
		return Schedule{Optimized: false, Reason: "No bookable appointments found"}
	}
	return Schedule{
		Optimized:        true,
		Appointments:     []Appointment{best},
		TotalScore:       best.Score,
		TotalTravelMiles: best.DistanceMiles,
	}
}

// searchCombinations walks the full cross-product of per-campaign
// options. Combinations containing a sentinel are skipped; conflicting
// combinations are counted and skipped; the rest compete on summed
// score plus a travel bonus.
func searchCombinations(options [][]Appointment) (best []Appointment, bestScore float64, conflicts int) {
	bestScore = -1

	idx := make([]int, len(options))
	combo := make([]Appointment, len(options))
	for {
		for i, j := range idx {
			combo[i] = options[i][j]
		}

		if usable(combo) {
			if conflicted(combo) {
				conflicts++
			} else {
				score := comboScore(combo)
				if score > bestScore {
					bestScore = score
					best = append(best[:0:0], combo...)
				}
			}
		}

		// Advance the mixed-radix counter.
		i := len(idx) - 1
		for ; i >= 0; i-- {
			idx[i]++
			if idx[i] < len(options[i]) {
				break
			}
			idx[i] = 0
		}
		if i < 0 {
			return best, bestScore, conflicts
		}
	}
}

func usable(combo []Appointment) bool {
	for _, a := range combo {
		if a.ProviderID == "" {
			return false
		}
	}
	return true
}

func conflicted(combo []Appointment) bool {
	for i := 0; i < len(combo); i++ {
		for j := i + 1; j < len(combo); j++ {
			if combo[i].Slot.Conflicts(combo[j].Slot) {
				return true
			}
		}
	}
	return false
}

func comboScore(combo []Appointment) float64 {
	var score float64
	for _, a := range combo {
		score += a.Score
	}
	travel := routeTravel(combo)
	if travel > 0 {
		score += math.Max(0, travelBonusMax*(1-travel/travelNormMiles))
	}
	return score
}

func routeTravel(route []Appointment) float64 {
	var total float64
	for i := 0; i < len(route)-1; i++ {
		total += HaversineMiles(route[i].Lat, route[i].Lng, route[i+1].Lat, route[i+1].Lng)
	}
	return total
}

// HaversineMiles is the great-circle distance between two coordinates.
func HaversineMiles(lat1, lng1, lat2, lng2 float64) float64 {
	dLat := radians(lat2 - lat1)
	dLng := radians(lng2 - lng1)
	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(radians(lat1))*math.Cos(radians(lat2))*math.Sin(dLng/2)*math.Sin(dLng/2)
	return earthRadiusMiles * 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
}

func radians(deg float64) float64 { return deg * math.Pi / 180 }

func round3(v float64) float64 { return math.Round(v*1000) / 1000 }
func round1(v float64) float64 { return math.Round(v*10) / 10 }
