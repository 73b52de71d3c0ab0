package webhook

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"callpilot_backend/internal/campaign/domain"
	"callpilot_backend/internal/campaign/store"
	"callpilot_backend/platform/logger"
)

// CampaignService is the slice of the campaign service the callbacks need.
type CampaignService interface {
	MergeResult(ctx context.Context, campaignID, providerID string, patch domain.ResultPatch) (string, error)
	MergeBySession(ctx context.Context, sessionID string, patch domain.ResultPatch) (store.SessionRef, error)
	CheckSlot(ctx context.Context, slot domain.Slot) (bool, string)
}

// Handler handles callbacks from the negotiation channel: mid-call tool
// invocations and the post-call report.
type Handler struct {
	svc CampaignService
	log *logger.Logger
}

func NewHandler(svc CampaignService, log *logger.Logger) *Handler {
	return &Handler{svc: svc, log: log}
}

// parseToolBody decodes a tool call payload. Some agent platforms wrap the
// arguments in a "properties" or "parameters" envelope; both are unwrapped.
func parseToolBody(c *gin.Context, dest any) error {
	raw, err := io.ReadAll(io.LimitReader(c.Request.Body, 1<<20))
	if err != nil {
		return err
	}

	var envelope map[string]json.RawMessage
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return err
	}
	for _, key := range []string{"properties", "parameters"} {
		if inner, ok := envelope[key]; ok {
			var unwrapped map[string]json.RawMessage
			if json.Unmarshal(inner, &unwrapped) == nil {
				raw = inner
				envelope = unwrapped
			}
		}
	}

	return json.Unmarshal(raw, dest)
}

type checkCalendarRequest struct {
	ProposedDate string `json:"proposed_date"`
	ProposedTime string `json:"proposed_time"`
	CampaignID   string `json:"campaign_id"`
	ProviderID   string `json:"provider_id"`
}

// CheckCalendar answers the agent's mid-call availability question.
// POST /webhooks/check-calendar
func (h *Handler) CheckCalendar(c *gin.Context) {
	var req checkCalendarRequest
	if err := parseToolBody(c, &req); err != nil {
		c.JSON(http.StatusOK, gin.H{"available": true, "message": "Could not parse date/time, assuming available."})
		return
	}

	h.log.WebhookEvent("check_calendar", req.CampaignID)

	// A tool call means the conversation reached negotiation.
	if req.CampaignID != "" && req.ProviderID != "" {
		if _, err := h.svc.MergeResult(c.Request.Context(), req.CampaignID, req.ProviderID,
			domain.ResultPatch{Status: domain.ResultNegotiating}); err != nil {
			h.log.Warn("tool call on unknown campaign", "campaign_id", req.CampaignID, "error", err.Error())
		}
	}

	available, message := h.svc.CheckSlot(c.Request.Context(),
		domain.Slot{Date: req.ProposedDate, Time: req.ProposedTime})
	c.JSON(http.StatusOK, gin.H{"available": available, "message": message})
}

type confirmBookingRequest struct {
	CampaignID      string `json:"campaign_id"`
	ProviderID      string `json:"provider_id"`
	ProviderName    string `json:"provider_name"`
	AppointmentDate string `json:"appointment_date"`
	AppointmentTime string `json:"appointment_time"`
	ServiceType     string `json:"service_type"`
	Notes           string `json:"notes"`
}

// ConfirmBooking records a slot the provider agreed to during the call.
// POST /webhooks/confirm-booking
func (h *Handler) ConfirmBooking(c *gin.Context) {
	var req confirmBookingRequest
	if err := parseToolBody(c, &req); err != nil {
		c.JSON(http.StatusOK, gin.H{"success": false, "message": "invalid payload"})
		return
	}

	h.log.WebhookEvent("confirm_booking", req.CampaignID)

	slot := domain.Slot{Date: req.AppointmentDate, Time: req.AppointmentTime}
	patch := domain.ResultPatch{
		Status: domain.ResultBooked,
		Slot:   &slot,
	}
	if req.Notes != "" {
		patch.Notes = domain.StringPtr(req.Notes)
	}

	if _, err := h.svc.MergeResult(c.Request.Context(), req.CampaignID, req.ProviderID, patch); err != nil {
		h.log.Warn("booking merge failed", "campaign_id", req.CampaignID, "error", err.Error())
		c.JSON(http.StatusOK, gin.H{"success": false, "message": "unknown campaign"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": fmt.Sprintf("Booked with %s on %s at %s for %s.",
			req.ProviderName, req.AppointmentDate, req.AppointmentTime, req.ServiceType),
	})
}

type noAvailabilityRequest struct {
	CampaignID   string `json:"campaign_id"`
	ProviderID   string `json:"provider_id"`
	ProviderName string `json:"provider_name"`
	Reason       string `json:"reason"`
}

// NoAvailability records that the provider could not offer a slot.
// POST /webhooks/no-availability
func (h *Handler) NoAvailability(c *gin.Context) {
	var req noAvailabilityRequest
	if err := parseToolBody(c, &req); err != nil {
		c.JSON(http.StatusOK, gin.H{"success": false, "message": "invalid payload"})
		return
	}

	h.log.WebhookEvent("no_availability", req.CampaignID)

	reason := req.Reason
	if reason == "" {
		reason = "No reason given"
	}

	patch := domain.ResultPatch{
		Status:        domain.ResultNoAvailability,
		FailureReason: domain.StringPtr(reason),
	}
	if _, err := h.svc.MergeResult(c.Request.Context(), req.CampaignID, req.ProviderID, patch); err != nil {
		h.log.Warn("no-availability merge failed", "campaign_id", req.CampaignID, "error", err.Error())
		c.JSON(http.StatusOK, gin.H{"success": false, "message": "unknown campaign"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": fmt.Sprintf("%s has no availability: %s", req.ProviderName, reason),
	})
}

type postCallRequest struct {
	ConversationID string `json:"conversation_id"`
	RecordingURL   string `json:"recording_url"`
	Transcript     []struct {
		Role           string `json:"role"`
		Message        string `json:"message"`
		TimeInCallSecs int    `json:"time_in_call_secs"`
	} `json:"transcript"`
	Analysis *struct {
		Success       bool   `json:"success"`
		FailureReason string `json:"failure_reason"`
		Summary       string `json:"summary"`
	} `json:"analysis"`
	Metadata *struct {
		CallDurationSecs int `json:"call_duration_secs"`
	} `json:"metadata"`
}

// PostCall ingests the end-of-call report: transcript, analysis verdict and
// call metadata, keyed by conversation id.
// POST /webhooks/post-call
func (h *Handler) PostCall(c *gin.Context) {
	var req postCallRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusOK, gin.H{"status": "ignored", "reason": "invalid_payload"})
		return
	}
	if req.ConversationID == "" {
		c.JSON(http.StatusOK, gin.H{"status": "ignored", "reason": "missing_conversation_id"})
		return
	}

	h.log.WebhookEvent("post_call", req.ConversationID)

	patch := domain.ResultPatch{Status: domain.ResultCompleted}
	if req.Analysis != nil {
		switch {
		case req.Analysis.Success:
			patch.Status = domain.ResultBooked
		case req.Analysis.FailureReason == "no_availability":
			patch.Status = domain.ResultNoAvailability
			patch.FailureReason = domain.StringPtr(req.Analysis.FailureReason)
		}
		if req.Analysis.Summary != "" {
			patch.Notes = domain.StringPtr(req.Analysis.Summary)
		}
	}
	for _, entry := range req.Transcript {
		patch.Transcript = append(patch.Transcript, domain.TranscriptEntry{
			Role:      entry.Role,
			Text:      entry.Message,
			OffsetSec: entry.TimeInCallSecs,
		})
	}
	if req.RecordingURL != "" {
		patch.RecordingURL = domain.StringPtr(req.RecordingURL)
	}
	if req.Metadata != nil && req.Metadata.CallDurationSecs > 0 {
		patch.DurationSec = domain.IntPtr(req.Metadata.CallDurationSecs)
	}

	if _, err := h.svc.MergeBySession(c.Request.Context(), req.ConversationID, patch); err != nil {
		c.JSON(http.StatusOK, gin.H{"status": "ignored", "reason": "unknown_conversation"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "processed"})
}
