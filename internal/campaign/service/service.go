// Package service owns campaign group state and drives the concurrent
// negotiation workflow: group creation, campaign runners, result
// merging, confirmation, and schedule optimization.
package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"callpilot_backend/internal/campaign/dispatch"
	"callpilot_backend/internal/campaign/domain"
	"callpilot_backend/internal/campaign/optimize"
	"callpilot_backend/internal/campaign/ports"
	"callpilot_backend/internal/campaign/store"
	"callpilot_backend/internal/events"
	"callpilot_backend/platform/apperr"
	"callpilot_backend/platform/config"
	"callpilot_backend/platform/logger"
)

// StartGroupRequest is the validated input for a new campaign group.
type StartGroupRequest struct {
	ServiceTypes       []string
	Location           string
	MaxDistance        float64
	MaxProviders       int
	PreferredDate      string
	Weights            *domain.Weights
	PreferredProviders []string
}

// Service coordinates campaign runners, webhook merges, and reads.
type Service struct {
	store    store.GroupStore
	dir      ports.Directory
	calendar ports.Calendar
	disp     *dispatch.Dispatcher
	bus      events.Bus
	log      *logger.Logger
	cfg      config.CampaignConfig

	// groupLocks serializes read-modify-write cycles on one group
	// document; runners and webhook handlers race on the same group.
	mu         sync.Mutex
	groupLocks map[string]*sync.Mutex
	cancels    map[string]context.CancelFunc
}

func New(st store.GroupStore, dir ports.Directory, calendar ports.Calendar, disp *dispatch.Dispatcher, bus events.Bus, log *logger.Logger, cfg config.CampaignConfig) *Service {
	return &Service{
		store:      st,
		dir:        dir,
		calendar:   calendar,
		disp:       disp,
		bus:        bus,
		log:        log,
		cfg:        cfg,
		groupLocks: make(map[string]*sync.Mutex),
		cancels:    make(map[string]context.CancelFunc),
	}
}

func (s *Service) lockGroup(groupID string) func() {
	s.mu.Lock()
	l, ok := s.groupLocks[groupID]
	if !ok {
		l = &sync.Mutex{}
		s.groupLocks[groupID] = l
	}
	s.mu.Unlock()
	l.Lock()
	return l.Unlock
}

// StartGroup registers one campaign per service type and launches their
// runners. It returns as soon as the group is persisted; the runners
// keep going on a context detached from the request.
func (s *Service) StartGroup(ctx context.Context, ownerID string, req StartGroupRequest) (*domain.Group, error) {
	const op = "campaign.StartGroup"

	if len(req.ServiceTypes) == 0 {
		return nil, apperr.New(apperr.KindValidation, "at least one service type is required").WithOp(op)
	}
	if max := s.cfg.GetMaxCampaignsPerGroup(); len(req.ServiceTypes) > max {
		return nil, apperr.New(apperr.KindValidation, fmt.Sprintf("at most %d service types per group", max)).WithOp(op)
	}

	maxProviders := req.MaxProviders
	if maxProviders <= 0 || maxProviders > s.cfg.GetMaxProvidersPerCampaign() {
		maxProviders = s.cfg.GetMaxProvidersPerCampaign()
	}
	weights := domain.DefaultWeights()
	if req.Weights != nil {
		weights = *req.Weights
	}

	g := &domain.Group{
		ID:        domain.NewGroupID(),
		OwnerID:   ownerID,
		Status:    domain.GroupRunning,
		CreatedAt: time.Now().UTC(),
	}
	for _, svc := range req.ServiceTypes {
		g.Campaigns = append(g.Campaigns, &domain.Campaign{
			ID:                 domain.NewCampaignID(),
			GroupID:            g.ID,
			ServiceType:        svc,
			Location:           req.Location,
			MaxDistance:        req.MaxDistance,
			MaxProviders:       maxProviders,
			PreferredDate:      req.PreferredDate,
			Weights:            weights,
			PreferredProviders: req.PreferredProviders,
			Status:             domain.CampaignSearching,
			CreatedAt:          time.Now().UTC(),
		})
	}

	if err := s.store.Save(ctx, g); err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, "failed to persist group", err).WithOp(op)
	}
	for _, c := range g.Campaigns {
		if err := s.store.BindCampaign(ctx, c.ID, g.ID); err != nil {
			return nil, apperr.Wrap(apperr.KindInternal, "failed to index campaign", err).WithOp(op)
		}
	}

	// Cancellation token for the whole group. Detached from the HTTP
	// request context on purpose: the work outlives the request.
	groupCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	s.mu.Lock()
	s.cancels[g.ID] = cancel
	s.mu.Unlock()

	for _, c := range g.Campaigns {
		go s.runCampaign(groupCtx, g.ID, c.ID)
	}

	s.log.WithGroupID(g.ID).Info("campaign group started",
		"owner", ownerID, "campaigns", len(g.Campaigns), "location", req.Location)
	return g, nil
}

// GetGroup returns the group, scoped to its owner.
func (s *Service) GetGroup(ctx context.Context, ownerID, groupID string) (*domain.Group, error) {
	const op = "campaign.GetGroup"
	g, err := s.store.Get(ctx, groupID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, apperr.New(apperr.KindNotFound, "group not found").WithOp(op)
	}
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, "failed to load group", err).WithOp(op)
	}
	if g.OwnerID != ownerID {
		return nil, apperr.New(apperr.KindNotFound, "group not found").WithOp(op)
	}
	return g, nil
}

// ListGroups returns every group the owner has started.
func (s *Service) ListGroups(ctx context.Context, ownerID string) ([]*domain.Group, error) {
	groups, err := s.store.ListByOwner(ctx, ownerID)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, "failed to list groups", err).WithOp("campaign.ListGroups")
	}
	return groups, nil
}

// CancelGroup flips the group and its non-terminal campaigns to
// cancelled and fires the group's cancellation token. In-flight
// sessions stop at their next suspension point; late webhook results
// still merge but a cancelled campaign never feeds the optimizer.
func (s *Service) CancelGroup(ctx context.Context, ownerID, groupID string) (*domain.Group, error) {
	const op = "campaign.CancelGroup"

	unlock := s.lockGroup(groupID)
	g, err := s.GetGroup(ctx, ownerID, groupID)
	if err != nil {
		unlock()
		return nil, err
	}
	g.Status = domain.GroupCancelled
	for _, c := range g.Campaigns {
		if !c.Status.IsTerminal() {
			c.Status = domain.CampaignCancelled
		}
	}
	if err := s.store.Save(ctx, g); err != nil {
		unlock()
		return nil, apperr.Wrap(apperr.KindInternal, "failed to persist cancellation", err).WithOp(op)
	}
	unlock()

	s.mu.Lock()
	cancel := s.cancels[groupID]
	delete(s.cancels, groupID)
	s.mu.Unlock()
	if cancel != nil {
		cancel()
	}

	for _, c := range g.Campaigns {
		if c.Status == domain.CampaignCancelled {
			s.bus.Publish(ctx, events.CampaignStatusChanged{
				BaseEvent:  events.NewBaseEvent(),
				GroupID:    g.ID,
				CampaignID: c.ID,
				Status:     domain.CampaignCancelled,
			})
		}
	}
	s.log.WithGroupID(groupID).Info("campaign group cancelled")
	return g, nil
}

// Optimize runs the cross-campaign schedule optimizer over the group's
// current state. Cancelled campaigns are excluded.
func (s *Service) Optimize(ctx context.Context, ownerID, groupID string) (optimize.Schedule, error) {
	g, err := s.GetGroup(ctx, ownerID, groupID)
	if err != nil {
		return optimize.Schedule{}, err
	}
	return optimize.Run(g), nil
}
