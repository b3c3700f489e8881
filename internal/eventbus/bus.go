// Package eventbus fans core and turn events out to UI subscribers.
package eventbus

import (
	"context"
	"sync"

	"pkt.systems/pslog"
	"pkt.systems/termdeck/schema"
)

// EventType identifies the event payload.
type EventType string

const (
	// EventSession carries session lifecycle updates.
	EventSession EventType = "session"
	// EventLayout carries pane layout updates.
	EventLayout EventType = "layout"
	// EventTurn carries turn state snapshots.
	EventTurn EventType = "turn"
)

// Event represents a UI-facing event emitted by the deck.
type Event struct {
	Type    EventType
	Session schema.SessionEvent
	Layout  schema.LayoutEvent
	Turn    schema.TurnSnapshot
	// Source names the turn controller that produced a turn event.
	Source string
}

// Bus fans events out to subscribers. Slow subscribers drop events rather
// than block publishers.
type Bus struct {
	mu    sync.Mutex
	subs  map[chan Event]struct{}
	log   pslog.Logger
	depth int
}

// New constructs a Bus.
func New(logger pslog.Logger) *Bus {
	if logger == nil {
		logger = pslog.Ctx(context.Background())
	}
	return &Bus{
		subs:  make(map[chan Event]struct{}),
		log:   logger,
		depth: 256,
	}
}

// Subscribe registers a subscriber and returns a channel + cancel.
func (b *Bus) Subscribe() (<-chan Event, func()) {
	if b == nil {
		return nil, func() {}
	}
	ch := make(chan Event, b.depth)
	b.mu.Lock()
	b.subs[ch] = struct{}{}
	count := len(b.subs)
	b.mu.Unlock()
	if b.log != nil {
		b.log.Debug("eventbus subscribe", "subs", count)
	}
	return ch, func() {
		b.mu.Lock()
		delete(b.subs, ch)
		b.mu.Unlock()
		close(ch)
		if b.log != nil {
			b.log.Debug("eventbus unsubscribe")
		}
	}
}

// OnSessionEvent publishes a session lifecycle event.
func (b *Bus) OnSessionEvent(event schema.SessionEvent) {
	b.publish(Event{Type: EventSession, Session: event})
}

// OnLayoutEvent publishes a layout event.
func (b *Bus) OnLayoutEvent(event schema.LayoutEvent) {
	b.publish(Event{Type: EventLayout, Layout: event})
}

// OnTurnSnapshot publishes a turn snapshot from the named controller.
func (b *Bus) OnTurnSnapshot(source string, snap schema.TurnSnapshot) {
	b.publish(Event{Type: EventTurn, Turn: snap, Source: source})
}

func (b *Bus) publish(event Event) {
	if b == nil {
		return
	}
	b.mu.Lock()
	subs := make([]chan Event, 0, len(b.subs))
	for sub := range b.subs {
		subs = append(subs, sub)
	}
	b.mu.Unlock()
	if len(subs) == 0 {
		return
	}
	dropped := 0
	for _, sub := range subs {
		select {
		case sub <- event:
		default:
			dropped++
		}
	}
	if dropped > 0 && b.log != nil {
		b.log.Trace("eventbus dropped", "count", dropped, "type", event.Type)
	}
}
