package schema

// Session lifecycle.

// OpenSessionRequest describes a request to open a terminal session.
type OpenSessionRequest struct {
	Scope Scope
	// Activate makes the new session the active one in its scope.
	Activate bool
}

// OpenSessionResponse reports the created session.
type OpenSessionResponse struct {
	Session SessionSnapshot
}

// CloseSessionRequest describes a request to close a terminal session.
type CloseSessionRequest struct {
	SessionID SessionID
}

// CloseSessionResponse reports the closed session and the new active sibling.
type CloseSessionResponse struct {
	Session SessionSnapshot
	Active  SessionID
}

// ActivateSessionRequest describes a request to activate a session.
type ActivateSessionRequest struct {
	SessionID SessionID
}

// ActivateSessionResponse reports the activated session.
type ActivateSessionResponse struct {
	Session SessionSnapshot
}

// ListSessionsRequest describes a request to list sessions.
type ListSessionsRequest struct {
	// Scope filters the listing; empty lists all scopes.
	Scope Scope
}

// ListSessionsResponse reports sessions in creation order plus active ids.
type ListSessionsResponse struct {
	Sessions          []SessionSnapshot
	ActiveInteractive SessionID
	ActiveAgent       SessionID
	Layout            LayoutSnapshot
}

// Terminal I/O.

// WriteSessionRequest injects bytes into a session as if typed.
type WriteSessionRequest struct {
	SessionID SessionID
	Data      []byte
}

// WriteSessionResponse reports whether the bytes were forwarded.
type WriteSessionResponse struct {
	Sent bool
}

// RunInScopeRequest writes bytes to the active session of a scope, creating
// a session first when none is usable.
type RunInScopeRequest struct {
	Scope Scope
	Data  []byte
	// AutoShow uncollapses the agent terminal pane when targeting the agent scope.
	AutoShow bool
}

// RunInScopeResponse reports the session that received the bytes.
type RunInScopeResponse struct {
	SessionID SessionID
	Sent      bool
}

// ResizeSessionRequest asks the service to renegotiate a session's geometry
// from its surface's fitted size.
type ResizeSessionRequest struct {
	SessionID SessionID
}

// ResizeSessionResponse reports whether a resize control message was sent.
type ResizeSessionResponse struct {
	Sent     bool
	Geometry Geometry
}

// Layout.

// SetLayoutRequest selects the interactive pane arrangement.
type SetLayoutRequest struct {
	Mode LayoutMode
}

// SetLayoutResponse reports the resulting layout.
type SetLayoutResponse struct {
	Layout LayoutSnapshot
}

// SetSplitRatioRequest adjusts the agent chat/terminal split.
type SetSplitRatioRequest struct {
	Ratio float64
}

// SetSplitRatioResponse reports the clamped ratio.
type SetSplitRatioResponse struct {
	Layout LayoutSnapshot
}

// SetAgentCollapsedRequest hides or shows the agent terminal pane. The
// underlying connection is preserved either way.
type SetAgentCollapsedRequest struct {
	Collapsed bool
}

// SetAgentCollapsedResponse reports the resulting layout.
type SetAgentCollapsedResponse struct {
	Layout LayoutSnapshot
}

// Turns.

// TurnRequest describes one agent invocation. Immutable once submitted.
type TurnRequest struct {
	Message          string               `json:"message"`
	ThreadID         ThreadID             `json:"threadId,omitempty"`
	Model            ModelID              `json:"model,omitempty"`
	SandboxMode      string               `json:"sandboxMode,omitempty"`
	ApprovalPolicy   string               `json:"approvalPolicy,omitempty"`
	ReasoningEffort  ModelReasoningEffort `json:"modelReasoningEffort,omitempty"`
	WorkingDirectory string               `json:"workingDirectory,omitempty"`
	APIKey           string               `json:"apiKey,omitempty"`
	BaseURL          string               `json:"baseUrl,omitempty"`
}
