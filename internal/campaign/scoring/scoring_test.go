package scoring

import (
	"testing"
	"time"

	"callpilot_backend/internal/campaign/domain"
)

var testNow = time.Date(2026, 9, 1, 10, 0, 0, 0, time.UTC)

func baseContext() Context {
	return Context{
		Weights:       domain.DefaultWeights(),
		MaxDistance:   10,
		DateRangeDays: 7,
		Now:           testNow,
	}
}

func TestScoreWorkedExample(t *testing.T) {
	// Slot 3 days out in a 7-day window, rating 4.5, 2 of 10 miles,
	// not preferred: 0.4*(4/7) + 0.3*0.9 + 0.2*0.8 = 0.658571 -> 0.659.
	r := &domain.Result{
		Status:       domain.ResultBooked,
		ProviderID:   "p1",
		ProviderName: "Bright Smiles",
		Slot:         domain.Slot{Date: "2026-09-04", Time: "10:00"},
	}
	p := &domain.Provider{ID: "p1", Name: "Bright Smiles", Rating: 4.5, DistanceMiles: 2}

	got := Score(r, p, baseContext())
	if got != 0.659 {
		t.Fatalf("score = %v, want 0.659", got)
	}
}

func TestScoreZeroUnlessBooked(t *testing.T) {
	p := &domain.Provider{ID: "p1", Rating: 5, DistanceMiles: 0}
	slot := domain.Slot{Date: "2026-09-02", Time: "09:00"}
	for _, st := range []domain.ResultStatus{
		domain.ResultQueued, domain.ResultNegotiating, domain.ResultCompleted,
		domain.ResultNoAvailability, domain.ResultFailed, domain.ResultTimeout,
	} {
		r := &domain.Result{Status: st, ProviderID: "p1", Slot: slot}
		if got := Score(r, p, baseContext()); got != 0 {
			t.Errorf("score for status %s = %v, want 0", st, got)
		}
	}
}

func TestScorePreferredBoostCapped(t *testing.T) {
	ctx := baseContext()
	ctx.PreferredNames = []string{"Smile Dental"}

	r := &domain.Result{
		Status:       domain.ResultBooked,
		ProviderID:   "p1",
		ProviderName: "Smile Dental Care",
		Slot:         domain.Slot{Date: "2026-09-01", Time: "09:00"},
	}
	p := &domain.Provider{ID: "p1", Name: "Smile Dental Care", Rating: 5, DistanceMiles: 0}

	// Raw weighted sum is 0.4+0.3+0.2+0.1 = 1.0; the boost must not
	// push past the cap.
	if got := Score(r, p, ctx); got != 1.0 {
		t.Fatalf("score = %v, want capped 1.0", got)
	}
}

func TestScoreFarSlotAndDistanceFloorAtZero(t *testing.T) {
	ctx := baseContext()
	r := &domain.Result{
		Status:     domain.ResultBooked,
		ProviderID: "p1",
		Slot:       domain.Slot{Date: "2026-09-20", Time: "10:00"}, // past the window
	}
	p := &domain.Provider{ID: "p1", Rating: 0, DistanceMiles: 50} // past max distance

	if got := Score(r, p, ctx); got != 0 {
		t.Fatalf("score = %v, want 0", got)
	}
}

func TestRankStableAndDescending(t *testing.T) {
	c := &domain.Campaign{
		Providers: []domain.Provider{
			{ID: "near", Rating: 4, DistanceMiles: 1},
			{ID: "far", Rating: 4, DistanceMiles: 9},
			{ID: "tieA", Rating: 3, DistanceMiles: 5},
			{ID: "tieB", Rating: 3, DistanceMiles: 5},
		},
		Results: []*domain.Result{
			{ProviderID: "tieA", Status: domain.ResultBooked, Slot: domain.Slot{Date: "2026-09-03", Time: "10:00"}},
			{ProviderID: "far", Status: domain.ResultBooked, Slot: domain.Slot{Date: "2026-09-03", Time: "11:00"}},
			{ProviderID: "tieB", Status: domain.ResultBooked, Slot: domain.Slot{Date: "2026-09-03", Time: "12:00"}},
			{ProviderID: "near", Status: domain.ResultBooked, Slot: domain.Slot{Date: "2026-09-03", Time: "13:00"}},
		},
	}
	ranked := Rank(c, baseContext())
	if ranked[0].ProviderID != "near" {
		t.Fatalf("first = %s, want near", ranked[0].ProviderID)
	}
	if ranked[len(ranked)-1].ProviderID != "far" {
		t.Fatalf("last = %s, want far", ranked[len(ranked)-1].ProviderID)
	}
	// Equal scores keep insertion order.
	var tiePos []string
	for _, r := range ranked {
		if r.ProviderID == "tieA" || r.ProviderID == "tieB" {
			tiePos = append(tiePos, r.ProviderID)
		}
	}
	if tiePos[0] != "tieA" || tiePos[1] != "tieB" {
		t.Fatalf("tie order = %v, want [tieA tieB]", tiePos)
	}
}
