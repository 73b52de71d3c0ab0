package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"callpilot_backend/internal/campaign/dispatch"
	"callpilot_backend/internal/campaign/domain"
	"callpilot_backend/internal/campaign/ports"
	"callpilot_backend/internal/campaign/store"
	"callpilot_backend/internal/events"
	"callpilot_backend/platform/apperr"
	"callpilot_backend/platform/logger"
)

type testConfig struct{}

func (testConfig) GetMaxCampaignsPerGroup() int      { return 4 }
func (testConfig) GetMaxProvidersPerCampaign() int   { return 5 }
func (testConfig) GetCallStagger() time.Duration     { return time.Millisecond }
func (testConfig) GetWaveSettleDelay() time.Duration { return 2 * time.Millisecond }
func (testConfig) GetPollInterval() time.Duration    { return time.Millisecond }
func (testConfig) GetMaxCallWait() time.Duration     { return 100 * time.Millisecond }
func (testConfig) GetDateRangeDays() int             { return 7 }

type fakeDirectory struct {
	providers []domain.Provider
	err       error
}

func (f *fakeDirectory) Search(context.Context, ports.DirectorySearch) (ports.DirectoryResult, error) {
	if f.err != nil {
		return ports.DirectoryResult{}, f.err
	}
	return ports.DirectoryResult{Providers: f.providers, OriginLat: 30.26, OriginLng: -97.74}, nil
}

type fakeVoice struct {
	ended bool
}

func (f *fakeVoice) StartSession(_ context.Context, req ports.StartSession) (string, error) {
	return "sess-" + req.ProviderID, nil
}

func (f *fakeVoice) SessionState(context.Context, string) (ports.SessionState, error) {
	return ports.SessionState{Ended: f.ended}, nil
}

type fakeCalendar struct {
	free    bool
	freeErr error
	events  int
}

func (f *fakeCalendar) IsFree(context.Context, domain.Slot) (bool, error) {
	return f.free, f.freeErr
}

func (f *fakeCalendar) CreateEvent(context.Context, string, string, domain.Slot) (string, error) {
	f.events++
	return "evt-1", nil
}

func newTestService(dir ports.Directory, voice ports.Voice, cal ports.Calendar) *Service {
	log := logger.New("test")
	bus := events.NewInMemoryBus(log)
	cfg := testConfig{}
	disp := dispatch.New(voice, bus, log, dispatch.Config{
		Stagger:      cfg.GetCallStagger(),
		SettleDelay:  cfg.GetWaveSettleDelay(),
		PollInterval: cfg.GetPollInterval(),
		MaxWait:      cfg.GetMaxCallWait(),
	})
	return New(store.NewMemoryStore(), dir, cal, disp, bus, log, cfg)
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not reached in time")
}

func TestStartGroupRegistersAndRuns(t *testing.T) {
	dir := &fakeDirectory{providers: []domain.Provider{
		{ID: "p1", Name: "Clinic One", Phone: "+15125550101", Rating: 4.5, DistanceMiles: 2},
		{ID: "p2", Name: "Clinic Two", Phone: "+15125550102", Rating: 4.0, DistanceMiles: 3},
	}}
	svc := newTestService(dir, &fakeVoice{ended: true}, nil)
	ctx := context.Background()

	g, err := svc.StartGroup(ctx, "owner-1", StartGroupRequest{
		ServiceTypes: []string{"dentist", "optician"},
		Location:     "Austin, TX",
		MaxDistance:  10,
	})
	if err != nil {
		t.Fatalf("start group: %v", err)
	}
	if len(g.Campaigns) != 2 {
		t.Fatalf("campaigns = %d, want 2", len(g.Campaigns))
	}
	for _, c := range g.Campaigns {
		if c.Status != domain.CampaignSearching {
			t.Fatalf("initial status = %s, want searching", c.Status)
		}
	}

	// Every session ends on the first poll, so both campaigns settle.
	waitFor(t, func() bool {
		cur, err := svc.GetGroup(ctx, "owner-1", g.ID)
		if err != nil {
			return false
		}
		for _, c := range cur.Campaigns {
			if c.Status != domain.CampaignCompleted {
				return false
			}
		}
		return true
	})

	cur, _ := svc.GetGroup(ctx, "owner-1", g.ID)
	for _, c := range cur.Campaigns {
		if len(c.Results) != 2 {
			t.Fatalf("results = %d, want 2", len(c.Results))
		}
		for _, r := range c.Results {
			if r.Status != domain.ResultCompleted {
				t.Fatalf("result status = %s, want completed", r.Status)
			}
		}
	}
}

func TestStartGroupRejectsTooManyServiceTypes(t *testing.T) {
	svc := newTestService(&fakeDirectory{}, &fakeVoice{}, nil)
	_, err := svc.StartGroup(context.Background(), "owner-1", StartGroupRequest{
		ServiceTypes: []string{"a", "b", "c", "d", "e"},
	})
	var ae *apperr.Error
	if !errors.As(err, &ae) || ae.Kind != apperr.KindValidation {
		t.Fatalf("err = %v, want validation error", err)
	}
}

func TestDirectoryFailureEndsInNoProviders(t *testing.T) {
	dir := &fakeDirectory{err: errors.New("places quota exceeded")}
	svc := newTestService(dir, &fakeVoice{ended: true}, nil)
	ctx := context.Background()

	g, err := svc.StartGroup(ctx, "owner-1", StartGroupRequest{
		ServiceTypes: []string{"dentist"}, Location: "Austin, TX", MaxDistance: 10,
	})
	if err != nil {
		t.Fatalf("start group: %v", err)
	}
	waitFor(t, func() bool {
		cur, err := svc.GetGroup(ctx, "owner-1", g.ID)
		return err == nil && cur.Campaigns[0].Status == domain.CampaignNoProviders
	})
}

func TestMergeResultWebhookThenPollKeepsBooking(t *testing.T) {
	svc := newTestService(&fakeDirectory{}, &fakeVoice{}, nil)
	ctx := context.Background()
	g, campaignID := seedCallingGroup(t, svc)

	slot := domain.Slot{Date: "2026-09-03", Time: "10:00"}
	gid, err := svc.MergeResult(ctx, campaignID, "p1", domain.ResultPatch{
		Status: domain.ResultBooked, Slot: &slot,
	})
	if err != nil {
		t.Fatalf("merge booked: %v", err)
	}
	if gid != g.ID {
		t.Fatalf("group id = %s, want %s", gid, g.ID)
	}

	// Poll-side completion lands second and must not clobber the booking.
	if _, err := svc.MergeResult(ctx, campaignID, "p1", domain.ResultPatch{Status: domain.ResultCompleted}); err != nil {
		t.Fatalf("merge completed: %v", err)
	}

	cur, _ := svc.GetGroup(ctx, "owner-1", g.ID)
	r := cur.Campaigns[0].FindResult("p1")
	if r.Status != domain.ResultBooked {
		t.Fatalf("status = %s, want booked", r.Status)
	}
	if r.Score <= 0 {
		t.Fatalf("score = %v, want > 0", r.Score)
	}
}

func TestMergeResultUnknownCampaign(t *testing.T) {
	svc := newTestService(&fakeDirectory{}, &fakeVoice{}, nil)
	_, err := svc.MergeResult(context.Background(), "camp_nope", "p1", domain.ResultPatch{})
	var ae *apperr.Error
	if !errors.As(err, &ae) || ae.Kind != apperr.KindNotFound {
		t.Fatalf("err = %v, want not found", err)
	}
}

func TestCancelGroupStillMergesLateResults(t *testing.T) {
	svc := newTestService(&fakeDirectory{}, &fakeVoice{}, nil)
	ctx := context.Background()
	g, campaignID := seedCallingGroup(t, svc)

	cancelled, err := svc.CancelGroup(ctx, "owner-1", g.ID)
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if cancelled.Status != domain.GroupCancelled {
		t.Fatalf("group status = %s", cancelled.Status)
	}
	if cancelled.Campaigns[0].Status != domain.CampaignCancelled {
		t.Fatalf("campaign status = %s", cancelled.Campaigns[0].Status)
	}

	// A webhook that raced the cancellation still lands.
	slot := domain.Slot{Date: "2026-09-03", Time: "10:00"}
	if _, err := svc.MergeResult(ctx, campaignID, "p1", domain.ResultPatch{
		Status: domain.ResultBooked, Slot: &slot,
	}); err != nil {
		t.Fatalf("late merge: %v", err)
	}
	cur, _ := svc.GetGroup(ctx, "owner-1", g.ID)
	if cur.Campaigns[0].FindResult("p1").Status != domain.ResultBooked {
		t.Fatal("late result not merged")
	}

	// Cancelled campaigns never feed the optimizer.
	sched, err := svc.Optimize(ctx, "owner-1", g.ID)
	if err != nil {
		t.Fatalf("optimize: %v", err)
	}
	if sched.Optimized || sched.Reason != "No completed campaigns" {
		t.Fatalf("schedule = %+v", sched)
	}
}

func TestConfirmBooking(t *testing.T) {
	cal := &fakeCalendar{free: true}
	svc := newTestService(&fakeDirectory{}, &fakeVoice{}, cal)
	ctx := context.Background()
	g, campaignID := seedCallingGroup(t, svc)

	slot := domain.Slot{Date: "2026-09-03", Time: "10:00"}
	if _, err := svc.MergeResult(ctx, campaignID, "p1", domain.ResultPatch{
		Status: domain.ResultBooked, Slot: &slot,
	}); err != nil {
		t.Fatalf("merge: %v", err)
	}

	b, err := svc.Confirm(ctx, "owner-1", campaignID, "p1")
	if err != nil {
		t.Fatalf("confirm: %v", err)
	}
	if b.CalendarEventID != "evt-1" || b.Slot != slot {
		t.Fatalf("booking = %+v", b)
	}

	// Confirming again returns the existing booking without a second event.
	b2, err := svc.Confirm(ctx, "owner-1", campaignID, "p1")
	if err != nil {
		t.Fatalf("second confirm: %v", err)
	}
	if b2.ID != b.ID || cal.events != 1 {
		t.Fatalf("duplicate confirm created a new booking (events=%d)", cal.events)
	}

	cur, _ := svc.GetGroup(ctx, "owner-1", g.ID)
	if len(cur.Bookings) != 1 {
		t.Fatalf("bookings = %d, want 1", len(cur.Bookings))
	}
}

func TestConfirmRejectsUnbookedResult(t *testing.T) {
	svc := newTestService(&fakeDirectory{}, &fakeVoice{}, nil)
	ctx := context.Background()
	_, campaignID := seedCallingGroup(t, svc)

	if _, err := svc.MergeResult(ctx, campaignID, "p1", domain.ResultPatch{
		Status: domain.ResultNoAvailability,
	}); err != nil {
		t.Fatalf("merge: %v", err)
	}
	_, err := svc.Confirm(ctx, "owner-1", campaignID, "p1")
	var ae *apperr.Error
	if !errors.As(err, &ae) || ae.Kind != apperr.KindConflict {
		t.Fatalf("err = %v, want conflict", err)
	}
}

func TestCheckSlotFallbackBusyAtTwo(t *testing.T) {
	svc := newTestService(&fakeDirectory{}, &fakeVoice{}, nil)
	ctx := context.Background()

	free, _ := svc.CheckSlot(ctx, domain.Slot{Date: "2026-09-03", Time: "14:00"})
	if free {
		t.Fatal("14:00 must report busy without a calendar")
	}
	free, _ = svc.CheckSlot(ctx, domain.Slot{Date: "2026-09-03", Time: "10:00"})
	if !free {
		t.Fatal("10:00 must report free without a calendar")
	}
	free, msg := svc.CheckSlot(ctx, domain.Slot{})
	if !free || msg == "" {
		t.Fatal("unparseable slot must assume available")
	}
}

// seedCallingGroup builds a group whose single campaign already has
// candidates and is in the calling phase, without running a dispatcher.
func seedCallingGroup(t *testing.T, svc *Service) (*domain.Group, string) {
	t.Helper()
	ctx := context.Background()

	g := &domain.Group{
		ID:      domain.NewGroupID(),
		OwnerID: "owner-1",
		Status:  domain.GroupRunning,
	}
	c := &domain.Campaign{
		ID:          domain.NewCampaignID(),
		GroupID:     g.ID,
		ServiceType: "dentist",
		Location:    "Austin, TX",
		MaxDistance: 10,
		Weights:     domain.DefaultWeights(),
		Status:      domain.CampaignCalling,
		Providers: []domain.Provider{
			{ID: "p1", Name: "Clinic One", Phone: "+15125550101", Rating: 4.5, DistanceMiles: 2},
		},
	}
	g.Campaigns = []*domain.Campaign{c}
	if err := svc.store.Save(ctx, g); err != nil {
		t.Fatalf("seed save: %v", err)
	}
	if err := svc.store.BindCampaign(ctx, c.ID, g.ID); err != nil {
		t.Fatalf("seed bind: %v", err)
	}
	return g, c.ID
}
