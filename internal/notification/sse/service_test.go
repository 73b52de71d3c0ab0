package sse

import (
	"testing"

	"callpilot_backend/platform/logger"
)

func TestPublishReachesGroupListenersOnly(t *testing.T) {
	svc := New(logger.New("test"))

	a := &client{groupID: "grp_a", events: make(chan Event, 4)}
	b := &client{groupID: "grp_b", events: make(chan Event, 4)}
	svc.addClient(a)
	svc.addClient(b)

	svc.Publish("grp_a", Event{Type: "campaign.status"})

	select {
	case got := <-a.events:
		if got.Type != "campaign.status" {
			t.Errorf("event type = %q", got.Type)
		}
	default:
		t.Fatal("listener in grp_a received nothing")
	}

	select {
	case got := <-b.events:
		t.Fatalf("listener in grp_b received %+v", got)
	default:
	}
}

func TestFullBufferDropsInsteadOfBlocking(t *testing.T) {
	svc := New(logger.New("test"))

	c := &client{groupID: "grp_a", events: make(chan Event, 1)}
	svc.addClient(c)

	svc.Publish("grp_a", Event{Type: "first"})
	svc.Publish("grp_a", Event{Type: "second"}) // dropped, buffer full

	if got := <-c.events; got.Type != "first" {
		t.Errorf("event type = %q", got.Type)
	}
	select {
	case got := <-c.events:
		t.Fatalf("unexpected buffered event %+v", got)
	default:
	}
}

func TestRemoveClientClosesChannel(t *testing.T) {
	svc := New(logger.New("test"))

	c := &client{groupID: "grp_a", events: make(chan Event, 1)}
	svc.addClient(c)
	svc.removeClient(c)

	if _, ok := <-c.events; ok {
		t.Error("channel still open after removal")
	}
	if n := svc.ListenerCount("grp_a"); n != 0 {
		t.Errorf("listener count = %d", n)
	}

	// Publishing to an empty room is a no-op.
	svc.Publish("grp_a", Event{Type: "late"})
}

func TestPublishDuringDisconnectDoesNotPanic(t *testing.T) {
	svc := New(logger.New("test"))

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 200; i++ {
			svc.Publish("grp_a", Event{Type: "campaign.status"})
		}
	}()

	// Churn listeners while the publisher runs; a publish must never
	// hit a channel that removeClient already closed.
	for i := 0; i < 200; i++ {
		c := &client{groupID: "grp_a", events: make(chan Event, 1)}
		svc.addClient(c)
		svc.removeClient(c)
	}
	<-done

	if n := svc.ListenerCount("grp_a"); n != 0 {
		t.Errorf("listener count = %d", n)
	}
}
