package core

import "pkt.systems/pslog"

// ServiceDeps captures dependencies for the core service.
type ServiceDeps struct {
	Dialer    Dialer
	Surfaces  SurfaceFactory
	EventSink EventSink
	Scheduler Scheduler
	Logger    pslog.Logger
}
