// Package webhook is the callback surface for the negotiation channel.
// The voice agent invokes tool endpoints mid-conversation and posts a
// final report when the call ends.
package webhook

import (
	apphttp "callpilot_backend/internal/http"
	"callpilot_backend/platform/logger"
)

// Module implements http.Module for the callback routes.
type Module struct {
	handler *Handler
}

func NewModule(svc CampaignService, log *logger.Logger) *Module {
	return &Module{handler: NewHandler(svc, log)}
}

// Name returns the module identifier.
func (m *Module) Name() string {
	return "webhook"
}

// RegisterRoutes mounts the callback routes. They carry no owner identity;
// payloads are matched to campaigns by campaign and conversation ids.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	ctx.Webhooks.POST("/check-calendar", m.handler.CheckCalendar)
	ctx.Webhooks.POST("/confirm-booking", m.handler.ConfirmBooking)
	ctx.Webhooks.POST("/no-availability", m.handler.NoAvailability)
	ctx.Webhooks.POST("/post-call", m.handler.PostCall)
}

var _ apphttp.Module = (*Module)(nil)
