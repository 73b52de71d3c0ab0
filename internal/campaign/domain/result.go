package domain

import "time"

// TranscriptEntry is one exchange in the negotiation conversation.
type TranscriptEntry struct {
	Role      string `json:"role"`
	Text      string `json:"text"`
	OffsetSec int    `json:"offset_sec,omitempty"`
}

// Result tracks one provider call within a campaign from dial to terminal
// state. Completion signals may arrive twice (push webhook and poll loop);
// Apply keeps the record consistent by only moving status forward.
type Result struct {
	CampaignID    string            `json:"campaign_id"`
	ProviderID    string            `json:"provider_id"`
	ProviderName  string            `json:"provider_name"`
	SessionID     string            `json:"session_id,omitempty"`
	Status        ResultStatus      `json:"status"`
	Slot          Slot              `json:"slot,omitzero"`
	OfferedSlots  []Slot            `json:"offered_slots,omitempty"`
	Price         string            `json:"price,omitempty"`
	Notes         string            `json:"notes,omitempty"`
	FailureReason string            `json:"failure_reason,omitempty"`
	Transcript    []TranscriptEntry `json:"transcript,omitempty"`
	RecordingURL  string            `json:"recording_url,omitempty"`
	Score         float64           `json:"score"`
	Preferred     bool              `json:"preferred"`
	StartedAt     time.Time         `json:"started_at,omitzero"`
	EndedAt       *time.Time        `json:"ended_at,omitempty"`
	DurationSec   int               `json:"duration_sec,omitempty"`
}

// ResultPatch carries a partial update for a result. Nil fields are left
// untouched. Transcript replaces the whole conversation; TranscriptDelta
// appends entries.
type ResultPatch struct {
	Status          ResultStatus
	SessionID       string
	Slot            *Slot
	OfferedSlots    []Slot
	Price           *string
	Notes           *string
	FailureReason   *string
	Transcript      []TranscriptEntry
	TranscriptDelta []TranscriptEntry
	RecordingURL    *string
	EndedAt         *time.Time
	DurationSec     *int
}

// Apply merges the patch into the result. Status only moves forward; a
// patch carrying a stale or repeated status still merges its data fields
// so a late post-call webhook can enrich a booked result with transcript
// and duration. Returns true when the status actually advanced.
func (r *Result) Apply(p ResultPatch) bool {
	advanced := false
	if p.Status != "" && CanTransition(r.Status, p.Status) {
		r.Status = p.Status
		advanced = true
	}
	if p.SessionID != "" && r.SessionID == "" {
		r.SessionID = p.SessionID
	}
	if p.Slot != nil && !p.Slot.IsZero() {
		r.Slot = *p.Slot
	}
	if len(p.OfferedSlots) > 0 {
		r.OfferedSlots = p.OfferedSlots
	}
	if p.Price != nil {
		r.Price = *p.Price
	}
	if p.Notes != nil {
		r.Notes = *p.Notes
	}
	if p.FailureReason != nil {
		r.FailureReason = *p.FailureReason
	}
	if len(p.Transcript) > 0 {
		r.Transcript = p.Transcript
	}
	if len(p.TranscriptDelta) > 0 {
		r.Transcript = append(r.Transcript, p.TranscriptDelta...)
	}
	if p.RecordingURL != nil {
		r.RecordingURL = *p.RecordingURL
	}
	if p.EndedAt != nil && r.EndedAt == nil {
		r.EndedAt = p.EndedAt
	}
	if p.DurationSec != nil && r.DurationSec == 0 {
		r.DurationSec = *p.DurationSec
	}
	return advanced
}

// Bookable reports whether the result carries an appointment a user
// could confirm.
func (r *Result) Bookable() bool {
	return r.Status == ResultBooked && !r.Slot.IsZero()
}

// StringPtr is a convenience for building patches.
func StringPtr(s string) *string { return &s }

// IntPtr is a convenience for building patches.
func IntPtr(i int) *int { return &i }
