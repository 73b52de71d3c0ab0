// Package dispatch launches negotiation sessions in waves and tracks
// each session from dial to terminal state.
//
// Preferred providers go out first; the second wave waits a settle
// delay so it inherits the first wave's best offer as leverage.
package dispatch

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"callpilot_backend/internal/campaign/domain"
	"callpilot_backend/internal/campaign/ports"
	"callpilot_backend/internal/events"
	"callpilot_backend/platform/logger"
	"callpilot_backend/platform/phone"
)

// Config bounds the dispatcher's timing.
type Config struct {
	Stagger      time.Duration
	SettleDelay  time.Duration
	PollInterval time.Duration
	MaxWait      time.Duration
}

// Hooks connect a running dispatch to the campaign state owned by the
// service layer. Merge must be safe for concurrent use; all hooks are
// called from tracker goroutines.
type Hooks struct {
	// Merge folds a patch into the provider's result and re-scores.
	Merge func(ctx context.Context, providerID string, patch domain.ResultPatch)
	// Status reports the provider's current result status, if any.
	Status func(providerID string) (domain.ResultStatus, bool)
	// BestOffer renders the campaign's current leverage line.
	BestOffer func() string
	// BindSession maps an external session id back to this provider.
	BindSession func(ctx context.Context, sessionID, providerID string) error
}

// CampaignView is the read-only slice of campaign state the dispatcher
// needs.
type CampaignView struct {
	GroupID       string
	CampaignID    string
	ServiceType   string
	PreferredDate string
	Preferred     []string
}

// Dispatcher runs the wave launch schedule for one campaign at a time.
type Dispatcher struct {
	voice ports.Voice
	bus   events.Bus
	log   *logger.Logger
	cfg   Config
}

func New(voice ports.Voice, bus events.Bus, log *logger.Logger, cfg Config) *Dispatcher {
	return &Dispatcher{voice: voice, bus: bus, log: log, cfg: cfg}
}

// Run dispatches every candidate and blocks until all session trackers
// have exited, so the caller always ranks a settled result list.
// Cancelling ctx stops future launches and poll loops; in-flight
// upstream calls finish on their own.
func (d *Dispatcher) Run(ctx context.Context, view CampaignView, providers []domain.Provider, hooks Hooks) {
	preferred, others := partition(providers, view.Preferred)

	var g errgroup.Group
	index := 0
	launch := func(wave []domain.Provider) {
		for i := range wave {
			if ctx.Err() != nil {
				return
			}
			p := wave[i]
			idx := index
			index++
			g.Go(func() error {
				d.track(ctx, view, p, idx, hooks)
				return nil
			})
			sleep(ctx, d.cfg.Stagger)
		}
	}

	launch(preferred)
	if len(preferred) > 0 && len(others) > 0 {
		sleep(ctx, d.cfg.SettleDelay)
	}
	launch(others)

	_ = g.Wait()
}

// partition splits candidates into preferred and others, preserving the
// incoming order within each half.
func partition(providers []domain.Provider, preferredNames []string) (preferred, others []domain.Provider) {
	for _, p := range providers {
		if domain.MatchesPreferred(p.Name, preferredNames) {
			preferred = append(preferred, p)
		} else {
			others = append(others, p)
		}
	}
	return preferred, others
}

// track drives one session: dial, register the session mapping, then
// wait for a terminal signal from either the push webhooks or the poll
// loop, whichever lands first.
func (d *Dispatcher) track(ctx context.Context, view CampaignView, p domain.Provider, index int, hooks Hooks) {
	log := d.log.WithGroupID(view.GroupID).WithCampaign(view.CampaignID)

	hooks.Merge(ctx, p.ID, domain.ResultPatch{Status: domain.ResultDialing})

	number := p.DialNumber()
	if !phone.IsDialable(number) {
		log.Warn("provider has no dialable number", "provider", p.Name, "raw", number)
		hooks.Merge(ctx, p.ID, domain.ResultPatch{
			Status:        domain.ResultFailed,
			FailureReason: domain.StringPtr("no phone number"),
		})
		d.publishEnded(ctx, view, p.ID, 0, hooks)
		return
	}

	d.bus.Publish(ctx, events.CallStarted{
		BaseEvent:    events.NewBaseEvent(),
		GroupID:      view.GroupID,
		CampaignID:   view.CampaignID,
		ProviderID:   p.ID,
		ProviderName: p.Name,
	})

	sessionID, err := d.voice.StartSession(ctx, ports.StartSession{
		PhoneNumber:   number,
		CampaignID:    view.CampaignID,
		ProviderID:    p.ID,
		ProviderName:  p.Name,
		ServiceType:   view.ServiceType,
		PreferredDate: view.PreferredDate,
		BestOffer:     hooks.BestOffer(),
		CallIndex:     index,
	})
	if err != nil {
		log.Error("session start failed", "provider", p.Name, "error", err)
		hooks.Merge(ctx, p.ID, domain.ResultPatch{
			Status:        domain.ResultFailed,
			FailureReason: domain.StringPtr(err.Error()),
		})
		d.publishEnded(ctx, view, p.ID, 0, hooks)
		return
	}

	if err := hooks.BindSession(ctx, sessionID, p.ID); err != nil {
		log.Error("session bind failed", "session", sessionID, "error", err)
	}
	hooks.Merge(ctx, p.ID, domain.ResultPatch{Status: domain.ResultConnected, SessionID: sessionID})
	d.bus.Publish(ctx, events.CallConnected{
		BaseEvent:  events.NewBaseEvent(),
		GroupID:    view.GroupID,
		CampaignID: view.CampaignID,
		ProviderID: p.ID,
		SessionID:  sessionID,
	})

	d.wait(ctx, view, p, sessionID, hooks)
}

// wait is the bounded dual-signal loop. A webhook resolving the result
// stops the polling early; otherwise the poll detecting session end
// synthesizes a completion; the deadline marks a timeout.
func (d *Dispatcher) wait(ctx context.Context, view CampaignView, p domain.Provider, sessionID string, hooks Hooks) {
	started := time.Now()
	deadline := started.Add(d.cfg.MaxWait)

	for time.Now().Before(deadline) {
		if !sleep(ctx, d.cfg.PollInterval) {
			return
		}

		if st, ok := hooks.Status(p.ID); ok && st.IsResolved() {
			d.publishEnded(ctx, view, p.ID, int(time.Since(started).Seconds()), hooks)
			return
		}

		state, err := d.voice.SessionState(ctx, sessionID)
		if err != nil {
			d.log.Warn("session poll failed", "session", sessionID, "error", err)
			continue
		}
		if state.Ended {
			ended := time.Now()
			hooks.Merge(ctx, p.ID, domain.ResultPatch{
				Status:      domain.ResultCompleted,
				Transcript:  state.Transcript,
				EndedAt:     &ended,
				DurationSec: domain.IntPtr(int(ended.Sub(started).Seconds())),
			})
			d.publishEnded(ctx, view, p.ID, int(ended.Sub(started).Seconds()), hooks)
			return
		}
	}

	hooks.Merge(ctx, p.ID, domain.ResultPatch{
		Status:        domain.ResultTimeout,
		FailureReason: domain.StringPtr("no terminal signal before deadline"),
	})
	d.publishEnded(ctx, view, p.ID, int(d.cfg.MaxWait.Seconds()), hooks)
}

func (d *Dispatcher) publishEnded(ctx context.Context, view CampaignView, providerID string, durationSec int, hooks Hooks) {
	status := domain.ResultCompleted
	if st, ok := hooks.Status(providerID); ok {
		status = st
	}
	d.bus.Publish(ctx, events.CallEnded{
		BaseEvent:   events.NewBaseEvent(),
		GroupID:     view.GroupID,
		CampaignID:  view.CampaignID,
		ProviderID:  providerID,
		Status:      status,
		DurationSec: durationSec,
	})
}

// sleep waits for d or until ctx is cancelled; false means cancelled.
func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
