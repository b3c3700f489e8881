package core

import "pkt.systems/termdeck/schema"

// EventSink receives session and layout events from the core service.
type EventSink interface {
	OnSessionEvent(event schema.SessionEvent)
	OnLayoutEvent(event schema.LayoutEvent)
}
