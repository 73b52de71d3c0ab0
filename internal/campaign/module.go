// Package campaign provides the campaign orchestration domain module.
package campaign

import (
	"callpilot_backend/internal/campaign/dispatch"
	"callpilot_backend/internal/campaign/handler"
	"callpilot_backend/internal/campaign/ports"
	"callpilot_backend/internal/campaign/service"
	"callpilot_backend/internal/campaign/store"
	"callpilot_backend/internal/events"
	apphttp "callpilot_backend/internal/http"
	"callpilot_backend/platform/config"
	"callpilot_backend/platform/logger"
	"callpilot_backend/platform/validator"
)

// Module represents the campaign orchestration domain module
type Module struct {
	handler *handler.Handler
	svc     *service.Service
}

// NewModule creates a new campaign module with all dependencies wired
func NewModule(st store.GroupStore, dir ports.Directory, voice ports.Voice, calendar ports.Calendar, bus events.Bus, cfg config.CampaignConfig, log *logger.Logger, val *validator.Validator) *Module {
	disp := dispatch.New(voice, bus, log, dispatch.Config{
		Stagger:      cfg.GetCallStagger(),
		SettleDelay:  cfg.GetWaveSettleDelay(),
		PollInterval: cfg.GetPollInterval(),
		MaxWait:      cfg.GetMaxCallWait(),
	})
	svc := service.New(st, dir, calendar, disp, bus, log, cfg)
	h := handler.New(svc, val)

	return &Module{handler: h, svc: svc}
}

// Name returns the module name for logging
func (m *Module) Name() string {
	return "campaign"
}

// Service exposes the campaign service to sibling modules (webhooks).
func (m *Module) Service() *service.Service {
	return m.svc
}

// RegisterRoutes registers the module's routes under /api/v1
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	m.handler.RegisterRoutes(ctx.V1)
}

// Compile-time check that Module implements http.Module
var _ apphttp.Module = (*Module)(nil)
