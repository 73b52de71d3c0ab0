// Package calendarsvc checks availability and records confirmed bookings
// on the user's calendar through a Google Calendar style REST API.
package calendarsvc

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"callpilot_backend/internal/campaign/domain"
	"callpilot_backend/internal/campaign/ports"
	"callpilot_backend/platform/config"
	"callpilot_backend/platform/logger"
)

const eventTimeZone = "UTC"

// Service implements ports.Calendar over the events collection of the
// user's primary calendar.
type Service struct {
	client *http.Client
	cfg    config.CalendarConfig
	log    *logger.Logger
}

var _ ports.Calendar = (*Service)(nil)

// NewService returns nil when the calendar integration is disabled; callers
// treat a nil Calendar as "no calendar connected".
func NewService(cfg config.CalendarConfig, log *logger.Logger) *Service {
	if !cfg.IsCalendarEnabled() {
		return nil
	}
	return &Service{
		client: &http.Client{Timeout: 10 * time.Second},
		cfg:    cfg,
		log:    log,
	}
}

type eventList struct {
	Items []struct {
		Summary string `json:"summary"`
	} `json:"items"`
}

// IsFree reports whether the slot's window has no events on the calendar.
func (s *Service) IsFree(ctx context.Context, slot domain.Slot) (bool, error) {
	start, end, ok := slot.Window()
	if !ok {
		return false, fmt.Errorf("unparseable slot %q %q", slot.Date, slot.Time)
	}

	params := url.Values{}
	params.Set("timeMin", start.UTC().Format(time.RFC3339))
	params.Set("timeMax", end.UTC().Format(time.RFC3339))
	params.Set("singleEvents", "true")
	params.Set("orderBy", "startTime")
	params.Set("key", s.cfg.GetCalendarAPIKey())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		s.cfg.GetCalendarAPIURL()+"/calendars/primary/events?"+params.Encode(), nil)
	if err != nil {
		return false, err
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return false, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return false, fmt.Errorf("upstream api error: %d", resp.StatusCode)
	}

	var out eventList
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return false, err
	}

	if len(out.Items) > 0 {
		s.log.Info("calendar conflict", "date", slot.Date, "time", slot.Time, "events", len(out.Items))
		return false, nil
	}
	return true, nil
}

type eventTime struct {
	DateTime string `json:"dateTime"`
	TimeZone string `json:"timeZone"`
}

type eventBody struct {
	Summary     string    `json:"summary"`
	Description string    `json:"description"`
	Start       eventTime `json:"start"`
	End         eventTime `json:"end"`
}

type eventCreated struct {
	ID string `json:"id"`
}

// CreateEvent books the slot on the calendar and returns the event ID.
func (s *Service) CreateEvent(ctx context.Context, summary, description string, slot domain.Slot) (string, error) {
	start, end, ok := slot.Window()
	if !ok {
		return "", fmt.Errorf("unparseable slot %q %q", slot.Date, slot.Time)
	}

	body := eventBody{
		Summary:     summary,
		Description: description,
		Start:       eventTime{DateTime: start.UTC().Format(time.RFC3339), TimeZone: eventTimeZone},
		End:         eventTime{DateTime: end.UTC().Format(time.RFC3339), TimeZone: eventTimeZone},
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return "", err
	}

	params := url.Values{}
	params.Set("key", s.cfg.GetCalendarAPIKey())

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		s.cfg.GetCalendarAPIURL()+"/calendars/primary/events?"+params.Encode(), bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("upstream api error: %d", resp.StatusCode)
	}

	var out eventCreated
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", err
	}

	s.log.Info("calendar event created", "event_id", out.ID, "date", slot.Date, "time", slot.Time)
	return out.ID, nil
}
