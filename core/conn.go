package core

import (
	"context"

	"pkt.systems/termdeck/schema"
)

// ConnEventType tags transport lifecycle events delivered to the service.
type ConnEventType string

const (
	// ConnEventOpened indicates the transport is open for traffic.
	ConnEventOpened ConnEventType = "opened"
	// ConnEventData carries bytes received from the remote side.
	ConnEventData ConnEventType = "data"
	// ConnEventClosed indicates the transport closed cleanly.
	ConnEventClosed ConnEventType = "closed"
	// ConnEventFailed indicates the transport failed.
	ConnEventFailed ConnEventType = "failed"
)

// ConnEvent is one transport event. Implementations deliver events in order
// from a single goroutine: opened first, then any number of data events, then
// exactly one closed or failed event.
type ConnEvent struct {
	Type ConnEventType
	Data []byte
	// Err is set on failed events.
	Err error
}

// DialRequest describes one transport attach for a session.
type DialRequest struct {
	Endpoint  string
	SessionID schema.SessionID
	// OnEvent receives ordered transport events. Required.
	OnEvent func(event ConnEvent)
}

// Conn is a byte stream transport to a remote terminal host. Send never
// blocks: implementations queue writes until the transport opens and drop
// them once it has ended.
type Conn interface {
	Send(data []byte)
	Close()
}

// Dialer establishes stream connections to the terminal host.
type Dialer interface {
	Dial(ctx context.Context, req DialRequest) (Conn, error)
}
