// Package turn drives agent turns against a streaming NDJSON endpoint and
// folds the event stream into render-ready snapshots.
package turn

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"pkt.systems/pslog"
	"pkt.systems/termdeck/internal/logx"
	"pkt.systems/termdeck/internal/turnwire"
	"pkt.systems/termdeck/schema"
)

// loginCommand is typed into an interactive terminal when the turn endpoint
// rejects a request as unauthenticated.
const loginCommand = "codex login --device-auth\n"

// SessionWriter injects bytes into a scoped terminal session. The core
// service satisfies it.
type SessionWriter interface {
	RunInScope(ctx context.Context, req schema.RunInScopeRequest) (schema.RunInScopeResponse, error)
}

// ControllerDeps captures dependencies for a turn controller.
type ControllerDeps struct {
	// Client performs the streaming POST. Defaults to a client without a
	// timeout; turn streams are long-lived.
	Client *http.Client
	// Remediator receives the device-auth login command on the first
	// authentication failure. Optional.
	Remediator SessionWriter
	// Render is invoked with a fresh snapshot after every state change.
	Render func(snap schema.TurnSnapshot)
	Logger pslog.Logger
}

// Controller runs one turn at a time against the configured endpoint.
// Submitting while a turn is in flight cancels the previous turn first.
type Controller struct {
	cfg        schema.TurnConfig
	client     *http.Client
	remediator SessionWriter
	render     func(snap schema.TurnSnapshot)
	logger     pslog.Logger

	mu         sync.Mutex
	state      *State
	threadID   schema.ThreadID
	cancel     context.CancelFunc
	done       chan struct{}
	remediated bool
}

// NewController constructs a turn controller.
func NewController(cfg schema.TurnConfig, deps ControllerDeps) (*Controller, error) {
	normalized, err := schema.NormalizeTurnConfig(cfg)
	if err != nil {
		return nil, err
	}
	cfg = normalized
	client := deps.Client
	if client == nil {
		client = &http.Client{}
	}
	logger := deps.Logger
	if logger == nil {
		logger = pslog.Ctx(context.Background())
	}
	return &Controller{
		cfg:        cfg,
		client:     client,
		remediator: deps.Remediator,
		render:     deps.Render,
		logger:     logger,
		state:      NewState(cfg.ProgressMaxEntries),
	}, nil
}

// Submit starts a new turn. Any in-flight turn is cancelled and drained
// first, so the stream loop never interleaves two turns.
func (c *Controller) Submit(ctx context.Context, req schema.TurnRequest) error {
	if ctx == nil {
		return errors.New("missing context")
	}
	if strings.TrimSpace(req.Message) == "" {
		return schema.ErrEmptyMessage
	}
	log := logx.Ctx(ctx)

	c.mu.Lock()
	prevCancel := c.cancel
	prevDone := c.done
	c.mu.Unlock()
	if prevCancel != nil {
		log.Debug("turn submit cancels in-flight turn")
		prevCancel()
	}
	if prevDone != nil {
		<-prevDone
	}

	c.mu.Lock()
	if c.cancel != nil {
		c.mu.Unlock()
		return schema.ErrTurnBusy
	}
	if req.ThreadID == "" {
		req.ThreadID = c.threadID
	}
	if req.SandboxMode == "" {
		req.SandboxMode = c.cfg.DefaultSandboxMode
	}
	if req.ApprovalPolicy == "" {
		req.ApprovalPolicy = c.cfg.DefaultApprovalPolicy
	}
	c.state.Begin()
	snap := c.state.Snapshot()
	runCtx, cancel := context.WithCancel(detachContext(ctx))
	done := make(chan struct{})
	c.cancel = cancel
	c.done = done
	c.mu.Unlock()

	c.renderSnap(snap)
	log.Info("turn submitted", "thread", req.ThreadID, "model", req.Model, "message_len", len(req.Message))
	go func() {
		c.run(runCtx, req)
		cancel()
		c.mu.Lock()
		if c.done == done {
			c.cancel = nil
			c.done = nil
		}
		close(done)
		c.mu.Unlock()
	}()
	return nil
}

// Cancel aborts the in-flight turn, if any. Accumulated answer text and
// progress survive the cancellation.
func (c *Controller) Cancel(ctx context.Context) {
	c.mu.Lock()
	cancel := c.cancel
	c.mu.Unlock()
	if cancel == nil {
		return
	}
	logx.Ctx(ctx).Info("turn cancel requested")
	cancel()
}

// Busy reports whether a turn is currently in flight.
func (c *Controller) Busy() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cancel != nil
}

// Snapshot returns the current turn state.
func (c *Controller) Snapshot() schema.TurnSnapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.Snapshot()
}

// ThreadID returns the thread id used for turn continuation.
func (c *Controller) ThreadID() schema.ThreadID {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.threadID
}

// SetThreadID seeds the continuation thread, typically from persisted state.
func (c *Controller) SetThreadID(threadID schema.ThreadID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.threadID = threadID
}

// ResetThread drops the continuation thread so the next turn starts fresh.
func (c *Controller) ResetThread() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.threadID = ""
}

func (c *Controller) run(ctx context.Context, req schema.TurnRequest) {
	log := logx.WithThread(logx.Ctx(ctx), req.ThreadID)
	body, err := json.Marshal(req)
	if err != nil {
		c.fail(err)
		return
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.Endpoint, bytes.NewReader(body))
	if err != nil {
		c.fail(err)
		return
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/x-ndjson")

	started := time.Now()
	resp, err := c.client.Do(httpReq)
	if err != nil {
		if ctx.Err() != nil {
			c.cancelled()
			return
		}
		log.Warn("turn request failed", "err", err)
		c.fail(err)
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		log.Warn("turn rejected", "status", resp.StatusCode)
		c.fail(schema.ErrNeedsAuth)
		c.remediate(log)
		return
	}
	if resp.StatusCode != http.StatusOK {
		log.Warn("turn rejected", "status", resp.StatusCode)
		c.fail(fmt.Errorf("turn endpoint returned %s", resp.Status))
		return
	}

	decoder := turnwire.NewDecoder()
	buf := make([]byte, 32*1024)
	events := 0
	for {
		n, readErr := resp.Body.Read(buf)
		if n > 0 {
			for _, event := range decoder.Feed(buf[:n]) {
				events++
				c.apply(event)
			}
		}
		if readErr == nil {
			continue
		}
		if readErr == io.EOF {
			for _, event := range decoder.Flush() {
				events++
				c.apply(event)
			}
			c.finishStream()
			log.Info("turn stream finished", "events", events, "duration_ms", time.Since(started).Milliseconds())
		} else if ctx.Err() != nil {
			c.cancelled()
			log.Info("turn cancelled", "events", events)
		} else {
			log.Warn("turn stream error", "err", readErr)
			c.fail(readErr)
		}
		return
	}
}

func (c *Controller) apply(event schema.TurnEvent) {
	c.mu.Lock()
	c.state.Apply(event)
	snap := c.state.Snapshot()
	if snap.ThreadID != "" {
		c.threadID = snap.ThreadID
	}
	c.mu.Unlock()
	c.renderSnap(snap)
}

func (c *Controller) finishStream() {
	c.mu.Lock()
	c.state.FinishStream()
	snap := c.state.Snapshot()
	if snap.ThreadID != "" {
		c.threadID = snap.ThreadID
	}
	c.mu.Unlock()
	c.renderSnap(snap)
}

func (c *Controller) fail(err error) {
	c.mu.Lock()
	c.state.Fail(err)
	snap := c.state.Snapshot()
	c.mu.Unlock()
	c.renderSnap(snap)
}

func (c *Controller) cancelled() {
	c.mu.Lock()
	c.state.Cancel()
	snap := c.state.Snapshot()
	c.mu.Unlock()
	c.renderSnap(snap)
}

// remediate types the device-auth login into an interactive terminal, at
// most once per controller lifetime.
func (c *Controller) remediate(log pslog.Logger) {
	c.mu.Lock()
	already := c.remediated
	c.remediated = true
	c.mu.Unlock()
	if already || c.remediator == nil {
		return
	}
	resp, err := c.remediator.RunInScope(context.Background(), schema.RunInScopeRequest{
		Scope:    schema.ScopeInteractive,
		Data:     []byte(loginCommand),
		AutoShow: true,
	})
	if err != nil {
		log.Warn("turn auth remediation failed", "err", err)
		return
	}
	log.Info("turn auth remediation started", "session", resp.SessionID)
}

func (c *Controller) renderSnap(snap schema.TurnSnapshot) {
	if c.render == nil {
		return
	}
	c.render(snap)
}

func detachContext(ctx context.Context) context.Context {
	base := context.Background()
	if logger := pslog.Ctx(ctx); logger != nil {
		base = pslog.ContextWithLogger(base, logger)
	}
	return base
}
