package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"callpilot_backend/internal/campaign/domain"
	"callpilot_backend/internal/campaign/scoring"
	"callpilot_backend/internal/campaign/store"
	"callpilot_backend/internal/events"
	"callpilot_backend/platform/apperr"
)

// MergeResult is the single write path for per-provider results. Every
// signal source (tracker, poll loop, tool webhook, post-call webhook)
// funnels through here; the forward-only status guard makes duplicate
// and out-of-order deliveries harmless. Returns the owning group id.
func (s *Service) MergeResult(ctx context.Context, campaignID, providerID string, patch domain.ResultPatch) (string, error) {
	const op = "campaign.MergeResult"

	groupID, err := s.store.ResolveCampaign(ctx, campaignID)
	if errors.Is(err, store.ErrNotFound) {
		return "", apperr.New(apperr.KindNotFound, "unknown campaign").WithOp(op)
	}
	if err != nil {
		return "", apperr.Wrap(apperr.KindInternal, "failed to resolve campaign", err).WithOp(op)
	}

	unlock := s.lockGroup(groupID)
	g, err := s.store.Get(ctx, groupID)
	if err != nil {
		unlock()
		return "", apperr.Wrap(apperr.KindInternal, "failed to load group", err).WithOp(op)
	}
	c := g.FindCampaign(campaignID)
	if c == nil {
		unlock()
		return "", apperr.New(apperr.KindNotFound, "unknown campaign").WithOp(op)
	}

	r := c.FindResult(providerID)
	if r == nil {
		r = &domain.Result{
			CampaignID: campaignID,
			ProviderID: providerID,
			Status:     domain.ResultQueued,
			StartedAt:  time.Now().UTC(),
		}
		if p := c.FindProvider(providerID); p != nil {
			r.ProviderName = p.Name
		}
		c.Results = append(c.Results, r)
	}

	before := r.Status
	r.Apply(patch)
	r.Score = scoring.Score(r, c.FindProvider(providerID), s.scoringContext(c))

	if err := s.store.Save(ctx, g); err != nil {
		unlock()
		return "", apperr.Wrap(apperr.KindInternal, "failed to persist result", err).WithOp(op)
	}
	after := *r
	unlock()

	s.publishMergeEvents(ctx, groupID, campaignID, before, &after, patch)
	return groupID, nil
}

// MergeBySession routes a session-keyed signal (post-call webhook) to
// the owning campaign and provider.
func (s *Service) MergeBySession(ctx context.Context, sessionID string, patch domain.ResultPatch) (store.SessionRef, error) {
	const op = "campaign.MergeBySession"

	ref, err := s.store.ResolveSession(ctx, sessionID)
	if errors.Is(err, store.ErrNotFound) {
		return store.SessionRef{}, apperr.New(apperr.KindNotFound, "unknown session").WithOp(op)
	}
	if err != nil {
		return store.SessionRef{}, apperr.Wrap(apperr.KindInternal, "failed to resolve session", err).WithOp(op)
	}
	if _, err := s.MergeResult(ctx, ref.CampaignID, ref.ProviderID, patch); err != nil {
		return store.SessionRef{}, err
	}
	return ref, nil
}

func (s *Service) publishMergeEvents(ctx context.Context, groupID, campaignID string, before domain.ResultStatus, r *domain.Result, patch domain.ResultPatch) {
	if len(patch.TranscriptDelta) > 0 {
		s.bus.Publish(ctx, events.TranscriptUpdate{
			BaseEvent:  events.NewBaseEvent(),
			GroupID:    groupID,
			CampaignID: campaignID,
			ProviderID: r.ProviderID,
			Entries:    patch.TranscriptDelta,
		})
	}
	if before == r.Status {
		return
	}
	switch r.Status {
	case domain.ResultBooked:
		s.bus.Publish(ctx, events.BookingConfirmed{
			BaseEvent:    events.NewBaseEvent(),
			GroupID:      groupID,
			CampaignID:   campaignID,
			ProviderID:   r.ProviderID,
			ProviderName: r.ProviderName,
			Slot:         r.Slot,
		})
		s.bus.Publish(ctx, events.ScoreUpdate{
			BaseEvent:  events.NewBaseEvent(),
			GroupID:    groupID,
			CampaignID: campaignID,
			ProviderID: r.ProviderID,
			Score:      r.Score,
		})
	case domain.ResultNoAvailability:
		s.bus.Publish(ctx, events.NoAvailability{
			BaseEvent:    events.NewBaseEvent(),
			GroupID:      groupID,
			CampaignID:   campaignID,
			ProviderID:   r.ProviderID,
			ProviderName: r.ProviderName,
			Reason:       r.FailureReason,
		})
	}
}

// CheckSlot answers a mid-call availability probe against the user's
// calendar. When no calendar is wired, afternoons at 14:00 are reported
// busy so negotiation agents exercise the alternative-slot path.
func (s *Service) CheckSlot(ctx context.Context, slot domain.Slot) (bool, string) {
	if slot.IsZero() {
		return true, "Could not parse date/time, assuming available."
	}
	if s.calendar != nil {
		free, err := s.calendar.IsFree(ctx, slot)
		if err == nil {
			if !free {
				return false, fmt.Sprintf("Conflict on %s at %s. Ask for alternative.", slot.Date, slot.Time)
			}
			return true, fmt.Sprintf("User is free on %s at %s. Proceed to confirm.", slot.Date, slot.Time)
		}
		s.log.Warn("calendar check failed, using fallback", "error", err)
	}
	if len(slot.Time) >= 3 && slot.Time[:3] == "14:" {
		return false, fmt.Sprintf("Conflict on %s at %s. Ask for alternative.", slot.Date, slot.Time)
	}
	return true, fmt.Sprintf("User is free on %s at %s. Proceed to confirm.", slot.Date, slot.Time)
}

// Confirm records the user's final choice of a booked result, creates
// the calendar event, and publishes BookingRecorded for downstream
// notification and reminder handlers.
func (s *Service) Confirm(ctx context.Context, ownerID, campaignID, providerID string) (*domain.Booking, error) {
	const op = "campaign.Confirm"

	groupID, err := s.store.ResolveCampaign(ctx, campaignID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, apperr.New(apperr.KindNotFound, "unknown campaign").WithOp(op)
	}
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, "failed to resolve campaign", err).WithOp(op)
	}

	unlock := s.lockGroup(groupID)
	defer unlock()

	g, err := s.GetGroup(ctx, ownerID, groupID)
	if err != nil {
		return nil, err
	}
	c := g.FindCampaign(campaignID)
	if c == nil {
		return nil, apperr.New(apperr.KindNotFound, "unknown campaign").WithOp(op)
	}
	r := c.FindResult(providerID)
	if r == nil || !r.Bookable() {
		return nil, apperr.New(apperr.KindConflict, "provider has no confirmed appointment to book").WithOp(op)
	}
	for _, b := range g.Bookings {
		if b.CampaignID == campaignID && b.ProviderID == providerID {
			return &b, nil
		}
	}

	booking := domain.Booking{
		ID:           domain.NewBookingID(),
		CampaignID:   campaignID,
		ProviderID:   providerID,
		ProviderName: r.ProviderName,
		ServiceType:  c.ServiceType,
		Slot:         r.Slot,
		ConfirmedAt:  time.Now().UTC(),
	}
	if s.calendar != nil {
		summary := fmt.Sprintf("%s at %s", c.ServiceType, r.ProviderName)
		desc := fmt.Sprintf("Booked by CallPilot\nProvider: %s\nService: %s\nNotes: %s", r.ProviderName, c.ServiceType, r.Notes)
		eventID, err := s.calendar.CreateEvent(ctx, summary, desc, r.Slot)
		if err != nil {
			s.log.Warn("calendar event creation failed", "error", err)
		} else {
			booking.CalendarEventID = eventID
		}
	}
	g.Bookings = append(g.Bookings, booking)

	if err := s.store.Save(ctx, g); err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, "failed to persist booking", err).WithOp(op)
	}

	s.bus.Publish(ctx, events.BookingRecorded{
		BaseEvent: events.NewBaseEvent(),
		GroupID:   groupID,
		OwnerID:   ownerID,
		Booking:   booking,
	})
	s.log.WithGroupID(groupID).Info("booking confirmed",
		"campaign", campaignID, "provider", r.ProviderName, "date", r.Slot.Date, "time", r.Slot.Time)
	return &booking, nil
}
