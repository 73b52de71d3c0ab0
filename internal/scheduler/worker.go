package scheduler

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/hibiken/asynq"

	"callpilot_backend/internal/campaign/domain"
	"callpilot_backend/internal/campaign/store"
	"callpilot_backend/platform/config"
	"callpilot_backend/platform/logger"
)

// ReminderMailer delivers the reminder email. Implemented by the
// notification sender; nil disables delivery.
type ReminderMailer interface {
	SendBookingReminder(ctx context.Context, toEmail string, booking domain.Booking) error
}

type Worker struct {
	server *asynq.Server
	mux    *asynq.ServeMux
	store  store.GroupStore
	mailer ReminderMailer
	log    *logger.Logger
}

func NewWorker(cfg config.SchedulerConfig, st store.GroupStore, mailer ReminderMailer, log *logger.Logger) (*Worker, error) {
	redisURL := cfg.GetRedisURL()
	if redisURL == "" {
		return nil, fmt.Errorf("redis url not configured")
	}

	opt, err := redisClientOpt(redisURL, cfg.GetRedisTLSInsecure())
	if err != nil {
		return nil, err
	}

	queue := cfg.GetAsynqQueueName()
	if queue == "" {
		queue = "default"
	}

	concurrency := cfg.GetAsynqConcurrency()
	if concurrency < 1 {
		concurrency = 10
	}

	server := asynq.NewServer(opt, asynq.Config{
		Concurrency: concurrency,
		Queues: map[string]int{
			queue: 1,
		},
	})

	mux := asynq.NewServeMux()
	w := &Worker{
		server: server,
		mux:    mux,
		store:  st,
		mailer: mailer,
		log:    log,
	}

	mux.HandleFunc(TaskBookingReminder, w.handleBookingReminder)

	return w, nil
}

func (w *Worker) Run(ctx context.Context) {
	if w == nil || w.server == nil {
		return
	}

	go func() {
		<-ctx.Done()
		w.server.Shutdown()
	}()

	if err := w.server.Run(w.mux); err != nil {
		w.log.Error("scheduler worker stopped", "error", err)
	}
}

func (w *Worker) handleBookingReminder(ctx context.Context, task *asynq.Task) error {
	payload, err := ParseBookingReminderPayload(task)
	if err != nil {
		return err
	}

	group, err := w.store.Get(ctx, payload.GroupID)
	if err != nil {
		// The group may have been deleted since scheduling; nothing to remind.
		w.log.Warn("reminder for missing group", "group_id", payload.GroupID)
		return nil
	}

	booking, ok := findBooking(group, payload.BookingID)
	if !ok {
		w.log.Warn("reminder for missing booking", "booking_id", payload.BookingID)
		return nil
	}

	if start, _, ok := booking.Slot.Window(); ok && start.Before(time.Now().UTC()) {
		return nil
	}

	if w.mailer == nil || !strings.Contains(group.OwnerID, "@") {
		w.log.Info("booking reminder due, no mail recipient",
			"group_id", group.ID, "booking_id", booking.ID)
		return nil
	}

	if err := w.mailer.SendBookingReminder(ctx, group.OwnerID, booking); err != nil {
		return fmt.Errorf("send reminder: %w", err)
	}

	w.log.Info("booking reminder sent", "group_id", group.ID, "booking_id", booking.ID)
	return nil
}

func findBooking(group *domain.Group, bookingID string) (domain.Booking, bool) {
	for _, b := range group.Bookings {
		if b.ID == bookingID {
			return b, true
		}
	}
	return domain.Booking{}, false
}
