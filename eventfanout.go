package termdeck

import (
	"pkt.systems/termdeck/core"
	"pkt.systems/termdeck/schema"
)

type eventFanout struct {
	sinks []core.EventSink
}

func (f eventFanout) OnSessionEvent(event schema.SessionEvent) {
	for _, sink := range f.sinks {
		if sink == nil {
			continue
		}
		sink.OnSessionEvent(event)
	}
}

func (f eventFanout) OnLayoutEvent(event schema.LayoutEvent) {
	for _, sink := range f.sinks {
		if sink == nil {
			continue
		}
		sink.OnLayoutEvent(event)
	}
}
