// Package handler exposes the campaign group API over HTTP.
package handler

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"callpilot_backend/internal/campaign/service"
	"callpilot_backend/internal/campaign/transport"
	"callpilot_backend/platform/httpkit"
	"callpilot_backend/platform/validator"
)

const (
	msgInvalidRequest   = "invalid request"
	msgValidationFailed = "validation failed"
)

// Handler handles HTTP requests for campaign groups
type Handler struct {
	svc *service.Service
	val *validator.Validator
}

// New creates a new campaign handler
func New(svc *service.Service, val *validator.Validator) *Handler {
	return &Handler{svc: svc, val: val}
}

// RegisterRoutes registers the campaign group routes
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/groups", h.StartGroup)
	rg.GET("/groups", h.ListGroups)
	rg.GET("/groups/:id", h.GetGroup)
	rg.POST("/groups/:id/cancel", h.CancelGroup)
	rg.POST("/groups/:id/optimize", h.Optimize)
	rg.POST("/campaigns/:id/confirm/:providerId", h.Confirm)
}

// StartGroup handles POST /api/v1/groups
func (h *Handler) StartGroup(c *gin.Context) {
	var req transport.StartGroupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, err.Error())
		return
	}

	in := service.StartGroupRequest{
		ServiceTypes:       req.ServiceTypes,
		Location:           req.Location,
		MaxDistance:        req.MaxDistanceMiles,
		MaxProviders:       req.MaxProvidersPerType,
		PreferredDate:      req.PreferredDate,
		PreferredProviders: req.PreferredProviders,
	}
	if req.Weights != nil {
		w := req.Weights.ToWeights()
		in.Weights = &w
	}

	g, err := h.svc.StartGroup(c.Request.Context(), httpkit.OwnerID(c), in)
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.JSON(c, http.StatusCreated, transport.StartGroupResponse{
		GroupID:       g.ID,
		Status:        string(g.Status),
		CampaignCount: len(g.Campaigns),
		Message:       fmt.Sprintf("Started %d campaigns", len(g.Campaigns)),
	})
}

// ListGroups handles GET /api/v1/groups
func (h *Handler) ListGroups(c *gin.Context) {
	groups, err := h.svc.ListGroups(c.Request.Context(), httpkit.OwnerID(c))
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, gin.H{"groups": groups, "total": len(groups)})
}

// GetGroup handles GET /api/v1/groups/:id
func (h *Handler) GetGroup(c *gin.Context) {
	g, err := h.svc.GetGroup(c.Request.Context(), httpkit.OwnerID(c), c.Param("id"))
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, transport.GroupResponse{Group: g})
}

// CancelGroup handles POST /api/v1/groups/:id/cancel
func (h *Handler) CancelGroup(c *gin.Context) {
	g, err := h.svc.CancelGroup(c.Request.Context(), httpkit.OwnerID(c), c.Param("id"))
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, transport.GroupResponse{Group: g})
}

// Optimize handles POST /api/v1/groups/:id/optimize
func (h *Handler) Optimize(c *gin.Context) {
	sched, err := h.svc.Optimize(c.Request.Context(), httpkit.OwnerID(c), c.Param("id"))
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, transport.OptimizeResponse{Schedule: sched})
}

// Confirm handles POST /api/v1/campaigns/:id/confirm/:providerId
func (h *Handler) Confirm(c *gin.Context) {
	booking, err := h.svc.Confirm(c.Request.Context(), httpkit.OwnerID(c), c.Param("id"), c.Param("providerId"))
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, transport.ConfirmResponse{
		Booking: booking,
		Message: fmt.Sprintf("Booked with %s on %s at %s", booking.ProviderName, booking.Slot.Date, booking.Slot.Time),
	})
}
