package domain

import (
	"testing"
	"time"
)

func TestCanTransitionForwardOnly(t *testing.T) {
	cases := []struct {
		from, to ResultStatus
		want     bool
	}{
		{ResultQueued, ResultDialing, true},
		{ResultDialing, ResultConnected, true},
		{ResultConnected, ResultNegotiating, true},
		{ResultNegotiating, ResultCompleted, true},
		{ResultCompleted, ResultBooked, true},
		{ResultCompleted, ResultNoAvailability, true},
		{ResultBooked, ResultCompleted, false},
		{ResultBooked, ResultNoAvailability, false},
		{ResultBooked, ResultFailed, false},
		{ResultNoAvailability, ResultBooked, false},
		{ResultNegotiating, ResultDialing, false},
		{ResultQueued, ResultQueued, false},
		{ResultQueued, ResultTimeout, true},
		{ResultDialing, ResultFailed, true},
	}
	for _, tc := range cases {
		if got := CanTransition(tc.from, tc.to); got != tc.want {
			t.Errorf("CanTransition(%s, %s) = %v, want %v", tc.from, tc.to, got, tc.want)
		}
	}
}

func TestApplyDuplicateCompletionKeepsFirstOutcome(t *testing.T) {
	r := &Result{Status: ResultNegotiating, ProviderID: "p1"}

	// Push webhook lands first with a booking.
	slot := Slot{Date: "2026-09-03", Time: "14:00"}
	if !r.Apply(ResultPatch{Status: ResultBooked, Slot: &slot}) {
		t.Fatal("expected booked transition to advance")
	}

	// Poll loop sees the session end and reports a generic completion.
	if r.Apply(ResultPatch{Status: ResultCompleted}) {
		t.Fatal("completed must not override booked")
	}
	if r.Status != ResultBooked {
		t.Fatalf("status = %s, want booked", r.Status)
	}
	if r.Slot != slot {
		t.Fatalf("slot = %+v, want %+v", r.Slot, slot)
	}
}

func TestApplyLateEnrichmentMergesDataFields(t *testing.T) {
	r := &Result{Status: ResultBooked, Slot: Slot{Date: "2026-09-03", Time: "10:00"}}

	ended := time.Date(2026, 9, 1, 12, 5, 0, 0, time.UTC)
	advanced := r.Apply(ResultPatch{
		Status:       ResultCompleted,
		EndedAt:      &ended,
		DurationSec:  IntPtr(142),
		Transcript:   []TranscriptEntry{{Role: "agent", Text: "Hello"}},
		RecordingURL: StringPtr("https://recordings.example/conv-1.mp3"),
	})
	if advanced {
		t.Fatal("stale status must not advance")
	}
	if r.EndedAt == nil || !r.EndedAt.Equal(ended) {
		t.Fatal("ended_at not merged from stale patch")
	}
	if r.DurationSec != 142 {
		t.Fatalf("duration = %d, want 142", r.DurationSec)
	}
	if len(r.Transcript) != 1 {
		t.Fatalf("transcript len = %d, want 1", len(r.Transcript))
	}
	if r.RecordingURL != "https://recordings.example/conv-1.mp3" {
		t.Fatalf("recording url = %q", r.RecordingURL)
	}
}

func TestApplyTranscriptDeltaAppends(t *testing.T) {
	r := &Result{Status: ResultNegotiating, Transcript: []TranscriptEntry{{Role: "agent", Text: "Hi"}}}
	r.Apply(ResultPatch{TranscriptDelta: []TranscriptEntry{{Role: "provider", Text: "Hello"}}})
	if len(r.Transcript) != 2 {
		t.Fatalf("transcript len = %d, want 2", len(r.Transcript))
	}
	if r.Transcript[1].Role != "provider" {
		t.Fatalf("appended role = %s, want provider", r.Transcript[1].Role)
	}
}

func TestSlotConflicts(t *testing.T) {
	a := Slot{Date: "2026-09-03", Time: "14:00"}
	cases := []struct {
		b    Slot
		want bool
	}{
		{Slot{Date: "2026-09-03", Time: "14:00"}, true},
		{Slot{Date: "2026-09-03", Time: "14:30"}, true},
		{Slot{Date: "2026-09-03", Time: "15:00"}, false},
		{Slot{Date: "2026-09-03", Time: "13:00"}, false},
		{Slot{Date: "2026-09-04", Time: "14:00"}, false},
		{Slot{Date: "", Time: ""}, false},
		{Slot{Date: "2026-09-03", Time: "bogus"}, false},
	}
	for _, tc := range cases {
		if got := a.Conflicts(tc.b); got != tc.want {
			t.Errorf("Conflicts(%v, %v) = %v, want %v", a, tc.b, got, tc.want)
		}
	}
}

func TestMatchesPreferred(t *testing.T) {
	preferred := []string{"Smile Dental"}
	cases := []struct {
		name string
		want bool
	}{
		{"Smile Dental Care", true},
		{"smile dental", true},
		{"Smile", true}, // candidate name contained in the preferred entry
		{"Bright Teeth", false},
		{"", false},
	}
	for _, tc := range cases {
		if got := MatchesPreferred(tc.name, preferred); got != tc.want {
			t.Errorf("MatchesPreferred(%q) = %v, want %v", tc.name, got, tc.want)
		}
	}
}

func TestNewIDsCarryPrefixes(t *testing.T) {
	if g := NewGroupID(); len(g) != 16 || g[:4] != "grp_" {
		t.Fatalf("group id %q malformed", g)
	}
	if c := NewCampaignID(); len(c) != 17 || c[:5] != "camp_" {
		t.Fatalf("campaign id %q malformed", c)
	}
}
