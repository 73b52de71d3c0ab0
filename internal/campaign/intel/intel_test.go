package intel

import (
	"strings"
	"testing"

	"callpilot_backend/internal/campaign/domain"
)

func TestBestOfferEmptyWithoutOffers(t *testing.T) {
	c := &domain.Campaign{Results: []*domain.Result{
		{ProviderID: "p1", Status: domain.ResultDialing},
		{ProviderID: "p2", Status: domain.ResultFailed},
	}}
	if got := BestOffer(c); got != "" {
		t.Fatalf("got %q, want empty", got)
	}
}

func TestBestOfferPicksHighestScore(t *testing.T) {
	c := &domain.Campaign{Results: []*domain.Result{
		{ProviderID: "p1", ProviderName: "First Clinic", Status: domain.ResultBooked,
			Slot: domain.Slot{Date: "2026-09-03", Time: "10:00"}, Score: 0.4},
		{ProviderID: "p2", ProviderName: "Second Clinic", Status: domain.ResultBooked,
			Slot: domain.Slot{Date: "2026-09-04", Time: "15:00"}, Score: 0.6},
	}}
	got := BestOffer(c)
	if !strings.HasPrefix(got, "2026-09-04 at 15:00 at Second Clinic") {
		t.Fatalf("got %q", got)
	}
	if !strings.Contains(got, "decent offer") {
		t.Fatalf("missing decent-offer hint: %q", got)
	}
	if !strings.Contains(got, "[2 offers so far]") {
		t.Fatalf("missing offer count: %q", got)
	}
}

func TestBestOfferStrongHint(t *testing.T) {
	c := &domain.Campaign{Results: []*domain.Result{
		{ProviderID: "p1", ProviderName: "Top Clinic", Status: domain.ResultBooked,
			Slot: domain.Slot{Date: "2026-09-02", Time: "09:00"}, Score: 0.85},
	}}
	got := BestOffer(c)
	if !strings.Contains(got, "strong offer, only accept clearly better") {
		t.Fatalf("got %q", got)
	}
	if strings.Contains(got, "offers so far") {
		t.Fatalf("single offer must not carry a count: %q", got)
	}
}

func TestBestOfferCountsUnbookedSlotCarriers(t *testing.T) {
	// A negotiating call that already extracted a slot counts as an offer.
	c := &domain.Campaign{Results: []*domain.Result{
		{ProviderID: "p1", ProviderName: "Booked Clinic", Status: domain.ResultBooked,
			Slot: domain.Slot{Date: "2026-09-03", Time: "10:00"}, Score: 0.3},
		{ProviderID: "p2", ProviderName: "Talking Clinic", Status: domain.ResultNegotiating,
			Slot: domain.Slot{Date: "2026-09-05", Time: "11:00"}, Score: 0},
	}}
	got := BestOffer(c)
	if !strings.Contains(got, "[2 offers so far]") {
		t.Fatalf("got %q", got)
	}
	if !strings.HasPrefix(got, "2026-09-03 at 10:00 at Booked Clinic") {
		t.Fatalf("got %q", got)
	}
}
