package schema

// SessionID identifies a terminal session.
type SessionID string

// ConnID identifies a stream connection.
type ConnID string

// ThreadID identifies an agent conversation thread.
type ThreadID string

// ModelID identifies an LLM model.
type ModelID string

// ModelReasoningEffort selects the reasoning effort for a turn.
type ModelReasoningEffort string

// Scope partitions terminal sessions by owner.
type Scope string

const (
	// ScopeInteractive holds user-driven terminal sessions.
	ScopeInteractive Scope = "interactive"
	// ScopeAgent holds terminal sessions owned by the agent view.
	ScopeAgent Scope = "agent"
)

// Valid reports whether the scope is one of the known scopes.
func (s Scope) Valid() bool {
	return s == ScopeInteractive || s == ScopeAgent
}

// ConnState describes the transport state of a stream connection.
type ConnState string

const (
	// ConnConnecting indicates the transport is being established.
	ConnConnecting ConnState = "connecting"
	// ConnOpen indicates the transport is open for traffic.
	ConnOpen ConnState = "open"
	// ConnClosing indicates a local close is in progress.
	ConnClosing ConnState = "closing"
	// ConnClosed indicates the transport closed cleanly.
	ConnClosed ConnState = "closed"
	// ConnFailed indicates the transport failed.
	ConnFailed ConnState = "failed"
)

// LayoutMode selects how interactive sessions are arranged into panes.
type LayoutMode string

const (
	// LayoutSingle shows one pane.
	LayoutSingle LayoutMode = "single"
	// LayoutVSplit shows two panes side by side.
	LayoutVSplit LayoutMode = "vsplit"
	// LayoutHSplit shows two panes stacked.
	LayoutHSplit LayoutMode = "hsplit"
	// LayoutQuad shows four panes in a grid.
	LayoutQuad LayoutMode = "quad"
)

// PaneCapacity returns the maximum number of visible panes for the mode.
func (m LayoutMode) PaneCapacity() int {
	switch m {
	case LayoutVSplit, LayoutHSplit:
		return 2
	case LayoutQuad:
		return 4
	default:
		return 1
	}
}

// Valid reports whether the layout mode is one of the known modes.
func (m LayoutMode) Valid() bool {
	switch m {
	case LayoutSingle, LayoutVSplit, LayoutHSplit, LayoutQuad:
		return true
	default:
		return false
	}
}

// TurnStatus describes the lifecycle state of one agent turn.
type TurnStatus string

const (
	// TurnIdle indicates no turn has been submitted.
	TurnIdle TurnStatus = "idle"
	// TurnSubmitting indicates the request is in flight, no bytes received.
	TurnSubmitting TurnStatus = "submitting"
	// TurnStreaming indicates the event stream is being consumed.
	TurnStreaming TurnStatus = "streaming"
	// TurnCompleted indicates the turn finished.
	TurnCompleted TurnStatus = "completed"
	// TurnFailed indicates the turn failed before or during streaming.
	TurnFailed TurnStatus = "failed"
	// TurnCancelled indicates the turn was cancelled by the caller.
	TurnCancelled TurnStatus = "cancelled"
)

// Terminal reports whether the status is a terminal state.
func (s TurnStatus) Terminal() bool {
	switch s {
	case TurnCompleted, TurnFailed, TurnCancelled:
		return true
	default:
		return false
	}
}

// Geometry is a terminal surface size in character cells.
type Geometry struct {
	Cols int
	Rows int
}
