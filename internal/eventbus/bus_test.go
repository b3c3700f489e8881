package eventbus

import (
	"testing"
	"time"

	"pkt.systems/termdeck/schema"
)

func TestSubscribeAndPublish(t *testing.T) {
	bus := New(nil)
	ch, cancel := bus.Subscribe()
	defer cancel()

	event := schema.SessionEvent{
		Type:    schema.SessionCreated,
		Session: schema.SessionSnapshot{ID: "s1", Scope: schema.ScopeInteractive},
	}
	bus.OnSessionEvent(event)

	select {
	case got := <-ch:
		if got.Type != EventSession {
			t.Fatalf("expected session event, got %v", got.Type)
		}
		if got.Session.Session.ID != "s1" {
			t.Fatalf("unexpected payload: %+v", got.Session)
		}
	case <-time.After(500 * time.Millisecond):
		t.Fatalf("timed out waiting for event")
	}
}

func TestTurnSnapshotCarriesSource(t *testing.T) {
	bus := New(nil)
	ch, cancel := bus.Subscribe()
	defer cancel()

	bus.OnTurnSnapshot("agent", schema.TurnSnapshot{Status: schema.TurnStreaming})
	select {
	case got := <-ch:
		if got.Type != EventTurn || got.Source != "agent" {
			t.Fatalf("unexpected event: %+v", got)
		}
		if got.Turn.Status != schema.TurnStreaming {
			t.Fatalf("unexpected turn payload: %+v", got.Turn)
		}
	case <-time.After(500 * time.Millisecond):
		t.Fatalf("timed out waiting for event")
	}
}

func TestUnsubscribeClosesChannel(t *testing.T) {
	bus := New(nil)
	ch, cancel := bus.Subscribe()
	cancel()
	if _, ok := <-ch; ok {
		t.Fatalf("expected channel to be closed")
	}
}

func TestPublishDoesNotBlockWhenFull(t *testing.T) {
	bus := New(nil)
	bus.depth = 1
	_, cancel := bus.Subscribe()
	defer cancel()

	var sendCh chan Event
	bus.mu.Lock()
	for ch := range bus.subs {
		sendCh = ch
		break
	}
	bus.mu.Unlock()
	if sendCh == nil {
		t.Fatalf("expected subscriber channel")
	}
	sendCh <- Event{Type: EventLayout}
	done := make(chan struct{})
	go func() {
		bus.OnLayoutEvent(schema.LayoutEvent{})
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(500 * time.Millisecond):
		t.Fatalf("publish blocked on full channel")
	}
}
