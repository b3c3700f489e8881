// Package termdeck composes the terminal session service and the turn
// controllers into one deck: scoped terminal panes, a chat conversation,
// and an autonomous agent conversation sharing a persisted UI state.
package termdeck

import (
	"context"
	"errors"
	"sync"

	"pkt.systems/pslog"
	"pkt.systems/termdeck/core"
	"pkt.systems/termdeck/internal/eventbus"
	"pkt.systems/termdeck/internal/uistate"
	"pkt.systems/termdeck/schema"
	"pkt.systems/termdeck/turn"
)

// Turn event sources on the bus.
const (
	SourceChat  = "chat"
	SourceAgent = "agent"
)

// Deck is the composed application surface behind the CLI.
type Deck interface {
	// Start restores persisted UI state and opens the initial session.
	Start(ctx context.Context) error
	// Wait blocks until the deck context ends or a component fails.
	Wait() error
	// Stop persists UI state and shuts everything down.
	Stop(ctx context.Context) error

	Service() core.Service
	Events() *eventbus.Bus

	SubmitChat(ctx context.Context, req schema.TurnRequest) error
	SubmitAgent(ctx context.Context, req schema.TurnRequest) error
	CancelChat(ctx context.Context)
	CancelAgent(ctx context.Context)
	ChatSnapshot() schema.TurnSnapshot
	AgentSnapshot() schema.TurnSnapshot
	// ResetThreads clears both persisted conversation threads.
	ResetThreads()

	// RunInTerminal types bytes into the active session of a scope.
	RunInTerminal(ctx context.Context, scope schema.Scope, data []byte) (schema.RunInScopeResponse, error)
}

// DeckConfig configures the composition.
type DeckConfig struct {
	Service schema.ServiceConfig
	Turn    schema.TurnConfig
	// DefaultModel is applied to turn requests that do not name one.
	DefaultModel schema.ModelID
}

// DeckDeps captures dependencies required to build the deck.
type DeckDeps struct {
	ServiceDeps core.ServiceDeps
	// Store persists layout and thread state. Optional; nil disables
	// persistence.
	Store *uistate.Store
	// TurnDeps seeds both controllers; Render and Remediator are wired by
	// the deck itself.
	TurnDeps turn.ControllerDeps
}

// New constructs a deck.
func New(cfg DeckConfig, deps DeckDeps) (Deck, error) {
	serviceDeps := deps.ServiceDeps
	logger := serviceDeps.Logger
	if logger == nil {
		logger = pslog.Ctx(context.Background())
	}
	bus := eventbus.New(logger)

	sinks := make([]core.EventSink, 0, 2)
	if serviceDeps.EventSink != nil {
		sinks = append(sinks, serviceDeps.EventSink)
	}
	sinks = append(sinks, bus)
	if len(sinks) == 1 {
		serviceDeps.EventSink = sinks[0]
	} else {
		serviceDeps.EventSink = eventFanout{sinks: sinks}
	}

	service, err := core.NewService(cfg.Service, serviceDeps)
	if err != nil {
		return nil, err
	}

	d := &deck{
		cfg:     cfg,
		service: service,
		bus:     bus,
		store:   deps.Store,
		logger:  logger,
	}

	chatDeps := deps.TurnDeps
	chatDeps.Remediator = service
	chatDeps.Logger = logger.With("turn", SourceChat)
	chatDeps.Render = func(snap schema.TurnSnapshot) { d.onTurnSnapshot(SourceChat, snap) }
	chat, err := turn.NewController(cfg.Turn, chatDeps)
	if err != nil {
		return nil, err
	}

	agentDeps := deps.TurnDeps
	agentDeps.Remediator = service
	agentDeps.Logger = logger.With("turn", SourceAgent)
	agentDeps.Render = func(snap schema.TurnSnapshot) { d.onTurnSnapshot(SourceAgent, snap) }
	agent, err := turn.NewController(cfg.Turn, agentDeps)
	if err != nil {
		return nil, err
	}

	d.chat = chat
	d.agent = agent
	return d, nil
}

type deck struct {
	cfg     DeckConfig
	service core.Service
	chat    *turn.Controller
	agent   *turn.Controller
	bus     *eventbus.Bus
	store   *uistate.Store
	logger  pslog.Logger

	mu      sync.Mutex
	ctx     context.Context
	cancel  context.CancelFunc
	started bool
}

func (d *deck) Start(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	d.mu.Lock()
	if d.started {
		d.mu.Unlock()
		d.logger.Warn("deck start rejected", "reason", "already started")
		return errors.New("deck already started")
	}
	d.ctx, d.cancel = context.WithCancel(ctx)
	d.started = true
	d.mu.Unlock()

	d.restoreState(d.ctx)

	if _, err := d.service.OpenSession(d.ctx, schema.OpenSessionRequest{
		Scope:    schema.ScopeInteractive,
		Activate: true,
	}); err != nil {
		return err
	}
	d.logger.Info("deck started")
	return nil
}

func (d *deck) Wait() error {
	d.mu.Lock()
	ctx := d.ctx
	started := d.started
	d.mu.Unlock()
	if !started {
		return errors.New("deck not started")
	}
	<-ctx.Done()
	return nil
}

func (d *deck) Stop(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	d.mu.Lock()
	cancel := d.cancel
	started := d.started
	d.mu.Unlock()
	if !started {
		return nil
	}
	d.logger.Info("deck stop requested")

	d.chat.Cancel(ctx)
	d.agent.Cancel(ctx)
	d.persistState(ctx)
	err := d.service.Shutdown(ctx)
	if cancel != nil {
		cancel()
	}
	if err != nil {
		d.logger.Warn("deck stop incomplete", "err", err)
		return err
	}
	d.logger.Info("deck stopped")
	return nil
}

func (d *deck) Service() core.Service { return d.service }

func (d *deck) Events() *eventbus.Bus { return d.bus }

func (d *deck) SubmitChat(ctx context.Context, req schema.TurnRequest) error {
	return d.chat.Submit(ctx, d.withDefaults(req))
}

func (d *deck) SubmitAgent(ctx context.Context, req schema.TurnRequest) error {
	return d.agent.Submit(ctx, d.withDefaults(req))
}

func (d *deck) CancelChat(ctx context.Context) { d.chat.Cancel(ctx) }

func (d *deck) CancelAgent(ctx context.Context) { d.agent.Cancel(ctx) }

func (d *deck) ChatSnapshot() schema.TurnSnapshot { return d.chat.Snapshot() }

func (d *deck) AgentSnapshot() schema.TurnSnapshot { return d.agent.Snapshot() }

func (d *deck) ResetThreads() {
	d.chat.ResetThread()
	d.agent.ResetThread()
	d.persistState(context.Background())
	d.logger.Info("deck threads reset")
}

func (d *deck) RunInTerminal(ctx context.Context, scope schema.Scope, data []byte) (schema.RunInScopeResponse, error) {
	return d.service.RunInScope(ctx, schema.RunInScopeRequest{
		Scope:    scope,
		Data:     data,
		AutoShow: scope == schema.ScopeAgent,
	})
}

func (d *deck) withDefaults(req schema.TurnRequest) schema.TurnRequest {
	if req.Model == "" {
		req.Model = d.cfg.DefaultModel
	}
	return req
}

// onTurnSnapshot forwards every snapshot to the bus and persists thread
// continuity when a turn settles.
func (d *deck) onTurnSnapshot(source string, snap schema.TurnSnapshot) {
	d.bus.OnTurnSnapshot(source, snap)
	if snap.Status.Terminal() {
		d.persistState(context.Background())
	}
}

// restoreState applies the persisted snapshot: layout first, then threads.
func (d *deck) restoreState(ctx context.Context) {
	if d.store == nil {
		return
	}
	snap, ok, err := d.store.Load()
	if err != nil {
		d.logger.Warn("deck state restore failed", "err", err)
		return
	}
	if !ok {
		return
	}
	if snap.Layout.Mode.Valid() {
		if _, err := d.service.SetLayout(ctx, schema.SetLayoutRequest{Mode: snap.Layout.Mode}); err != nil {
			d.logger.Warn("deck layout restore failed", "err", err)
		}
	}
	if snap.Layout.SplitRatio > 0 {
		if _, err := d.service.SetSplitRatio(ctx, schema.SetSplitRatioRequest{Ratio: snap.Layout.SplitRatio}); err != nil {
			d.logger.Warn("deck split restore failed", "err", err)
		}
	}
	if snap.Layout.AgentCollapsed {
		if _, err := d.service.SetAgentCollapsed(ctx, schema.SetAgentCollapsedRequest{Collapsed: true}); err != nil {
			d.logger.Warn("deck collapse restore failed", "err", err)
		}
	}
	d.chat.SetThreadID(snap.Threads.Chat)
	d.agent.SetThreadID(snap.Threads.Agent)
	d.logger.Debug("deck state restored",
		"layout", snap.Layout.Mode,
		"chat_thread", string(snap.Threads.Chat),
		"agent_thread", string(snap.Threads.Agent))
}

func (d *deck) persistState(ctx context.Context) {
	if d.store == nil {
		return
	}
	listing, err := d.service.ListSessions(ctx, schema.ListSessionsRequest{})
	if err != nil {
		d.logger.Warn("deck state persist skipped", "err", err)
		return
	}
	snap := uistate.Snapshot{
		Layout: uistate.LayoutState{
			Mode:           listing.Layout.Mode,
			SplitRatio:     listing.Layout.SplitRatio,
			AgentCollapsed: listing.Layout.AgentCollapsed,
		},
		Threads: uistate.ThreadState{
			Chat:  d.chat.ThreadID(),
			Agent: d.agent.ThreadID(),
		},
		Model: d.cfg.DefaultModel,
	}
	if err := d.store.Save(snap); err != nil {
		d.logger.Warn("deck state persist failed", "err", err)
	}
}
