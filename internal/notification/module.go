// Package notification turns domain events into outward signals: live SSE
// streams for connected clients, a confirmation email when a booking is
// recorded, and a reminder scheduled ahead of the appointment. Domain
// modules publish events and stay unaware of any of this.
package notification

import (
	"context"
	"strings"
	"time"

	"callpilot_backend/internal/events"
	apphttp "callpilot_backend/internal/http"
	"callpilot_backend/internal/notification/sse"
	"callpilot_backend/internal/scheduler"
	"callpilot_backend/platform/logger"
)

// reminderLead is how far before the slot the reminder fires.
const reminderLead = time.Hour

// Module implements http.Module and fans domain events out to listeners.
type Module struct {
	sse       *sse.Service
	sender    *Sender
	reminders scheduler.ReminderScheduler
	log       *logger.Logger
}

// NewModule wires the event subscriptions. sender and reminders may be nil
// when email delivery or the task queue is not configured.
func NewModule(bus events.Bus, sender *Sender, reminders scheduler.ReminderScheduler, log *logger.Logger) *Module {
	m := &Module{
		sse:       sse.New(log),
		sender:    sender,
		reminders: reminders,
		log:       log,
	}

	for _, name := range events.AllCampaignEventNames() {
		bus.Subscribe(name, events.HandlerFunc(m.handleEvent))
	}

	return m
}

// Name returns the module identifier.
func (m *Module) Name() string {
	return "notification"
}

// RegisterRoutes mounts the live event stream.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	ctx.V1.GET("/groups/:id/events", m.sse.Handler())
}

// SSE exposes the stream service for shutdown.
func (m *Module) SSE() *sse.Service {
	return m.sse
}

func (m *Module) handleEvent(ctx context.Context, event events.Event) error {
	ge, ok := event.(events.GroupEvent)
	if !ok {
		return nil
	}

	m.sse.Publish(ge.Group(), sse.Event{Type: ge.EventName(), Data: ge})

	if recorded, ok := event.(events.BookingRecorded); ok {
		m.onBookingRecorded(ctx, recorded)
	}
	return nil
}

// onBookingRecorded sends the confirmation email and schedules the
// reminder. Both are best-effort; failures only log.
func (m *Module) onBookingRecorded(ctx context.Context, event events.BookingRecorded) {
	booking := event.Booking

	if m.sender != nil {
		if to, ok := ownerEmail(event.OwnerID); ok {
			if err := m.sender.SendBookingConfirmation(ctx, to, booking); err != nil {
				m.log.Error("booking confirmation email failed",
					"booking_id", booking.ID, "error", err.Error())
			}
		}
	}

	if m.reminders == nil {
		return
	}
	start, _, ok := booking.Slot.Window()
	if !ok {
		return
	}
	runAt := start.Add(-reminderLead)
	if runAt.Before(time.Now().UTC()) {
		return
	}

	err := m.reminders.ScheduleBookingReminder(ctx, scheduler.BookingReminderPayload{
		GroupID:   event.GroupID,
		BookingID: booking.ID,
	}, runAt)
	if err != nil {
		m.log.Error("reminder scheduling failed", "booking_id", booking.ID, "error", err.Error())
		return
	}
	m.log.Info("booking reminder scheduled", "booking_id", booking.ID, "run_at", runAt)
}

// ownerEmail treats owner ids that look like addresses as the recipient.
// Opaque ids have no reachable mailbox.
func ownerEmail(ownerID string) (string, bool) {
	if strings.Contains(ownerID, "@") {
		return ownerID, true
	}
	return "", false
}

var _ apphttp.Module = (*Module)(nil)
