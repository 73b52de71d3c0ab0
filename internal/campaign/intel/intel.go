// Package intel derives negotiation context from a campaign's results
// so later calls in the same campaign can leverage earlier offers.
package intel

import (
	"fmt"

	"callpilot_backend/internal/campaign/domain"
)

const (
	strongOfferThreshold = 0.7
	decentOfferThreshold = 0.5
)

// BestOffer renders the leverage line injected into subsequently
// dispatched calls. Among results that are booked or carry an offered
// slot, the highest-scored wins. Empty string when no offers exist yet.
func BestOffer(c *domain.Campaign) string {
	var best *domain.Result
	offers := 0
	for _, r := range c.Results {
		if r.Status != domain.ResultBooked && r.Slot.IsZero() {
			continue
		}
		offers++
		if best == nil || r.Score > best.Score {
			best = r
		}
	}
	if best == nil {
		return ""
	}

	line := fmt.Sprintf("%s at %s at %s", best.Slot.Date, best.Slot.Time, best.ProviderName)
	switch {
	case best.Score > strongOfferThreshold:
		line += " (strong offer, only accept clearly better)"
	case best.Score > decentOfferThreshold:
		line += " (decent offer, may be better options)"
	}
	if offers > 1 {
		line += fmt.Sprintf(" [%d offers so far]", offers)
	}
	return line
}
