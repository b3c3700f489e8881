package core

import (
	"context"

	"pkt.systems/termdeck/schema"
)

// Service is the transport-agnostic API for managing terminal sessions and
// the pane layout.
type Service interface {
	OpenSession(ctx context.Context, req schema.OpenSessionRequest) (schema.OpenSessionResponse, error)
	CloseSession(ctx context.Context, req schema.CloseSessionRequest) (schema.CloseSessionResponse, error)
	ActivateSession(ctx context.Context, req schema.ActivateSessionRequest) (schema.ActivateSessionResponse, error)
	ListSessions(ctx context.Context, req schema.ListSessionsRequest) (schema.ListSessionsResponse, error)
	WriteSession(ctx context.Context, req schema.WriteSessionRequest) (schema.WriteSessionResponse, error)
	RunInScope(ctx context.Context, req schema.RunInScopeRequest) (schema.RunInScopeResponse, error)
	ResizeSession(ctx context.Context, req schema.ResizeSessionRequest) (schema.ResizeSessionResponse, error)
	SetLayout(ctx context.Context, req schema.SetLayoutRequest) (schema.SetLayoutResponse, error)
	SetSplitRatio(ctx context.Context, req schema.SetSplitRatioRequest) (schema.SetSplitRatioResponse, error)
	SetAgentCollapsed(ctx context.Context, req schema.SetAgentCollapsedRequest) (schema.SetAgentCollapsedResponse, error)
	Shutdown(ctx context.Context) error
}
