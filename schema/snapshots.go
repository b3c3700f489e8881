package schema

// SessionSnapshot is a read-only view of session state for transports and sinks.
type SessionSnapshot struct {
	ID        SessionID
	Scope     Scope
	ConnState ConnState
	Geometry  Geometry
	Visible   bool
	Active    bool
	Seq       uint64
}

// LayoutSnapshot describes the current pane arrangement.
type LayoutSnapshot struct {
	Mode LayoutMode
	// Visible lists interactive sessions in pane order: the active session
	// first, then remaining sessions newest-first, truncated to the pane
	// capacity of Mode.
	Visible []SessionID
	// SplitRatio is the agent chat pane share of the agent split, in [0.2, 0.8].
	SplitRatio float64
	// AgentCollapsed reports whether the agent terminal pane is hidden.
	AgentCollapsed bool
}

// TurnSnapshot is a render-ready view of one turn's accumulated state.
type TurnSnapshot struct {
	Status TurnStatus
	// Progress holds the most recent human-readable progress lines, oldest first.
	Progress []string
	// ProgressTotal counts every progress line emitted this turn, including
	// lines evicted from the bounded Progress window.
	ProgressTotal int
	// Answer is the current best-known final answer text.
	Answer string
	// ThreadID is the resolved thread id for continuation, if any.
	ThreadID ThreadID
	// Usage is the last reported token usage, if any.
	Usage *TurnUsage
	// ReturnCode is the executor exit code from the done record, if seen.
	ReturnCode *int
	// Incomplete reports that the stream ended without a done record.
	Incomplete bool
	// Err is the failure description for failed turns.
	Err string
}
