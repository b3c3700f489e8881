package schema

import "time"

// ServiceConfig defines defaults and limits for the terminal service.
type ServiceConfig struct {
	// TerminalEndpoint is the websocket URL of the remote PTY host.
	TerminalEndpoint string
	// MinCols and MinRows guard resize negotiation: geometry below either
	// threshold is never pushed to the remote side.
	MinCols int
	MinRows int
	// FitDelay is the settle delay before measuring a surface that may have
	// just become visible.
	FitDelay time.Duration
	// FitMaxAttempts bounds the fit retry loop for still-invisible surfaces.
	FitMaxAttempts int
	// DefaultLayout is the interactive layout applied at startup.
	DefaultLayout LayoutMode
	// DefaultSplitRatio is the agent chat pane share when no state is persisted.
	DefaultSplitRatio float64
}

const (
	// DefaultMinCols is the minimum negotiable column count.
	DefaultMinCols = 2
	// DefaultMinRows is the minimum negotiable row count.
	DefaultMinRows = 2
	// DefaultFitDelay is the surface settle delay before measuring.
	DefaultFitDelay = 60 * time.Millisecond
	// DefaultFitMaxAttempts bounds fit retries for invisible surfaces.
	DefaultFitMaxAttempts = 10
	// DefaultSplitRatio is the initial agent chat pane share.
	DefaultSplitRatio = 0.5
)

// TurnConfig defines defaults and limits for turn controllers.
type TurnConfig struct {
	// Endpoint is the turn stream URL.
	Endpoint string
	// ProgressMaxEntries caps the retained progress log; oldest entries are
	// evicted first.
	ProgressMaxEntries int
	// DefaultSandboxMode is applied when a request does not set one.
	DefaultSandboxMode string
	// DefaultApprovalPolicy is applied when a request does not set one.
	DefaultApprovalPolicy string
}

const (
	// DefaultProgressMaxEntries caps the turn progress log.
	DefaultProgressMaxEntries = 400
	// DefaultSandboxMode is the sandbox policy applied when unset.
	DefaultSandboxMode = "workspace-write"
	// DefaultApprovalPolicy is the approval policy applied when unset.
	DefaultApprovalPolicy = "never"
)
