package service

import (
	"context"
	"fmt"
	"sort"
	"time"

	"callpilot_backend/internal/campaign/dispatch"
	"callpilot_backend/internal/campaign/domain"
	"callpilot_backend/internal/campaign/intel"
	"callpilot_backend/internal/campaign/ports"
	"callpilot_backend/internal/campaign/scoring"
	"callpilot_backend/internal/campaign/store"
	"callpilot_backend/internal/events"
)

// runCampaign drives one campaign end to end: directory search,
// distance filtering, wave dispatch, then final ranking. Each runner is
// isolated; a fault here never touches sibling campaigns.
func (s *Service) runCampaign(ctx context.Context, groupID, campaignID string) {
	log := s.log.WithGroupID(groupID).WithCampaign(campaignID)

	defer func() {
		if r := recover(); r != nil {
			log.Error("campaign runner panic", "panic", r)
			s.failCampaign(ctx, groupID, campaignID, fmt.Sprintf("internal fault: %v", r))
		}
	}()

	g, err := s.store.Get(ctx, groupID)
	if err != nil {
		log.Error("runner could not load group", "error", err)
		return
	}
	c := g.FindCampaign(campaignID)
	if c == nil {
		log.Error("runner could not find campaign")
		return
	}

	s.publishStatus(ctx, groupID, campaignID, domain.CampaignSearching,
		fmt.Sprintf("Searching for %s providers near %s", c.ServiceType, c.Location))

	res, err := s.dir.Search(ctx, ports.DirectorySearch{
		ServiceType: c.ServiceType,
		Location:    c.Location,
		MaxDistance: c.MaxDistance,
		Limit:       s.cfg.GetMaxProvidersPerCampaign(),
	})
	if err != nil {
		log.Error("directory search failed", "error", err)
	}
	providers := selectCandidates(res.Providers, c.MaxDistance, c.MaxProviders)

	if len(providers) == 0 {
		s.setCampaignTerminal(ctx, groupID, campaignID, domain.CampaignNoProviders, nil)
		s.publishStatus(ctx, groupID, campaignID, domain.CampaignNoProviders,
			fmt.Sprintf("No %s providers found near %s", c.ServiceType, c.Location))
		return
	}

	// Persist the candidate list and flip to calling before dispatch so
	// webhook handlers can resolve providers mid-call.
	unlock := s.lockGroup(groupID)
	g, err = s.store.Get(ctx, groupID)
	if err == nil {
		if cc := g.FindCampaign(campaignID); cc != nil {
			cc.Providers = providers
			cc.OriginLat = res.OriginLat
			cc.OriginLng = res.OriginLng
			cc.Status = domain.CampaignCalling
			c = cc
		}
		err = s.store.Save(ctx, g)
	}
	unlock()
	if err != nil {
		log.Error("failed to persist candidates", "error", err)
		s.failCampaign(ctx, groupID, campaignID, "failed to persist candidates")
		return
	}

	s.bus.Publish(ctx, events.ProvidersFound{
		BaseEvent:  events.NewBaseEvent(),
		GroupID:    groupID,
		CampaignID: campaignID,
		Providers:  providers,
	})
	s.publishStatus(ctx, groupID, campaignID, domain.CampaignCalling,
		fmt.Sprintf("Calling %d %s providers...", len(providers), c.ServiceType))

	view := dispatch.CampaignView{
		GroupID:       groupID,
		CampaignID:    campaignID,
		ServiceType:   c.ServiceType,
		PreferredDate: c.PreferredDate,
		Preferred:     c.PreferredProviders,
	}
	s.disp.Run(ctx, view, providers, s.dispatchHooks(groupID, campaignID))

	// Every tracker has exited; the result list is settled.
	s.finishCampaign(ctx, groupID, campaignID)
}

// selectCandidates filters out-of-range providers, sorts by rating desc
// then distance asc, and caps the list.
func selectCandidates(providers []domain.Provider, maxDistance float64, limit int) []domain.Provider {
	out := make([]domain.Provider, 0, len(providers))
	for _, p := range providers {
		if maxDistance > 0 && p.DistanceMiles > maxDistance {
			continue
		}
		out = append(out, p)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Rating != out[j].Rating {
			return out[i].Rating > out[j].Rating
		}
		return out[i].DistanceMiles < out[j].DistanceMiles
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

// dispatchHooks binds the wave dispatcher to this service's merge and
// intelligence paths.
func (s *Service) dispatchHooks(groupID, campaignID string) dispatch.Hooks {
	return dispatch.Hooks{
		Merge: func(ctx context.Context, providerID string, patch domain.ResultPatch) {
			if _, err := s.MergeResult(ctx, campaignID, providerID, patch); err != nil {
				s.log.WithCampaign(campaignID).Error("tracker merge failed", "provider", providerID, "error", err)
			}
		},
		Status: func(providerID string) (domain.ResultStatus, bool) {
			g, err := s.store.Get(context.Background(), groupID)
			if err != nil {
				return "", false
			}
			c := g.FindCampaign(campaignID)
			if c == nil {
				return "", false
			}
			r := c.FindResult(providerID)
			if r == nil {
				return "", false
			}
			return r.Status, true
		},
		BestOffer: func() string {
			g, err := s.store.Get(context.Background(), groupID)
			if err != nil {
				return ""
			}
			c := g.FindCampaign(campaignID)
			if c == nil {
				return ""
			}
			return intel.BestOffer(c)
		},
		BindSession: func(ctx context.Context, sessionID, providerID string) error {
			return s.store.BindSession(ctx, sessionID, store.SessionRef{
				GroupID:    groupID,
				CampaignID: campaignID,
				ProviderID: providerID,
			})
		},
	}
}

// finishCampaign ranks the settled results, records the best match, and
// marks the campaign completed unless it was cancelled underneath us.
func (s *Service) finishCampaign(ctx context.Context, groupID, campaignID string) {
	log := s.log.WithGroupID(groupID).WithCampaign(campaignID)

	unlock := s.lockGroup(groupID)
	defer unlock()

	g, err := s.store.Get(ctx, groupID)
	if err != nil {
		log.Error("failed to load group for ranking", "error", err)
		return
	}
	c := g.FindCampaign(campaignID)
	if c == nil {
		return
	}

	sctx := s.scoringContext(c)
	ranked := scoring.Rank(c, sctx)
	c.Results = ranked
	c.BestMatch = nil
	for _, r := range ranked {
		if r.Bookable() {
			c.BestMatch = r
			break
		}
	}

	if !c.Status.IsTerminal() {
		c.Status = domain.CampaignCompleted
	}
	now := time.Now().UTC()
	c.CompletedAt = &now

	if err := s.store.Save(ctx, g); err != nil {
		log.Error("failed to persist ranked campaign", "error", err)
		return
	}

	s.bus.Publish(ctx, events.CampaignComplete{
		BaseEvent:  events.NewBaseEvent(),
		GroupID:    groupID,
		CampaignID: campaignID,
		BestMatch:  c.BestMatch,
	})
	s.publishStatus(ctx, groupID, campaignID, c.Status, "")
	log.Info("campaign finished", "status", c.Status, "results", len(c.Results))
}

func (s *Service) scoringContext(c *domain.Campaign) scoring.Context {
	return scoring.Context{
		Weights:        c.Weights,
		PreferredNames: c.PreferredProviders,
		MaxDistance:    c.MaxDistance,
		DateRangeDays:  s.cfg.GetDateRangeDays(),
		Now:            time.Now().UTC(),
	}
}

func (s *Service) setCampaignTerminal(ctx context.Context, groupID, campaignID string, status domain.CampaignStatus, mutate func(*domain.Campaign)) {
	unlock := s.lockGroup(groupID)
	defer unlock()
	g, err := s.store.Get(ctx, groupID)
	if err != nil {
		return
	}
	c := g.FindCampaign(campaignID)
	if c == nil {
		return
	}
	if !c.Status.IsTerminal() {
		c.Status = status
	}
	if mutate != nil {
		mutate(c)
	}
	now := time.Now().UTC()
	c.CompletedAt = &now
	if err := s.store.Save(ctx, g); err != nil {
		s.log.WithCampaign(campaignID).Error("failed to persist terminal status", "error", err)
	}
}

func (s *Service) failCampaign(ctx context.Context, groupID, campaignID, message string) {
	s.setCampaignTerminal(ctx, groupID, campaignID, domain.CampaignError, nil)
	s.bus.Publish(ctx, events.CampaignError{
		BaseEvent:  events.NewBaseEvent(),
		GroupID:    groupID,
		CampaignID: campaignID,
		Message:    message,
	})
}

func (s *Service) publishStatus(ctx context.Context, groupID, campaignID string, status domain.CampaignStatus, message string) {
	s.bus.Publish(ctx, events.CampaignStatusChanged{
		BaseEvent:  events.NewBaseEvent(),
		GroupID:    groupID,
		CampaignID: campaignID,
		Status:     status,
		Message:    message,
	})
}
