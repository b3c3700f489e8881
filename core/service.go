package core

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"pkt.systems/pslog"
	"pkt.systems/termdeck/internal/logx"
	"pkt.systems/termdeck/schema"
)

// service implements the core service behavior.
type service struct {
	cfg      schema.ServiceConfig
	dialer   Dialer
	surfaces SurfaceFactory
	sink     EventSink
	sched    Scheduler
	logger   pslog.Logger

	mu             sync.Mutex
	scopes         map[schema.Scope]*scopeState
	pending        map[schema.SessionID][]ConnEvent
	seq            uint64
	layout         schema.LayoutMode
	splitRatio     float64
	agentCollapsed bool
}

type scopeState struct {
	sessions map[schema.SessionID]*session
	order    []schema.SessionID
	active   schema.SessionID
}

// NewService constructs the core service implementation.
func NewService(cfg schema.ServiceConfig, deps ServiceDeps) (Service, error) {
	normalized, err := schema.NormalizeServiceConfig(cfg)
	if err != nil {
		return nil, err
	}
	cfg = normalized
	if deps.Dialer == nil {
		return nil, errors.New("dialer is required")
	}
	if deps.Scheduler == nil {
		deps.Scheduler = NewTimerScheduler()
	}
	logger := deps.Logger
	if logger == nil {
		logger = pslog.Ctx(context.Background())
	}
	return &service{
		cfg:        cfg,
		dialer:     deps.Dialer,
		surfaces:   deps.Surfaces,
		sink:       deps.EventSink,
		sched:      deps.Scheduler,
		logger:     logger,
		scopes:     make(map[schema.Scope]*scopeState),
		pending:    make(map[schema.SessionID][]ConnEvent),
		layout:     cfg.DefaultLayout,
		splitRatio: cfg.DefaultSplitRatio,
	}, nil
}

func (s *service) OpenSession(ctx context.Context, req schema.OpenSessionRequest) (schema.OpenSessionResponse, error) {
	if ctx == nil {
		return schema.OpenSessionResponse{}, errors.New("missing context")
	}
	scope, err := normalizeScope(req.Scope)
	if err != nil {
		return schema.OpenSessionResponse{}, err
	}
	log := logx.WithScope(ctx, scope)
	log.Info("service session open start", "activate", req.Activate)

	sessionID := schema.SessionID(newID())
	var surface Surface
	if s.surfaces != nil {
		surface, err = s.surfaces.NewSurface(sessionID)
		if err != nil {
			log.Warn("service session open failed", "err", err)
			return schema.OpenSessionResponse{}, err
		}
	}
	// Conn events can fire from inside Dial, before the session is
	// registered. Buffer them under the session id until registration
	// completes so an immediate open or failure is not lost.
	s.mu.Lock()
	s.pending[sessionID] = nil
	s.mu.Unlock()

	conn, err := s.dialer.Dial(ctx, DialRequest{
		Endpoint:  s.cfg.TerminalEndpoint,
		SessionID: sessionID,
		OnEvent:   func(event ConnEvent) { s.handleConnEvent(sessionID, event) },
	})
	if err != nil {
		s.mu.Lock()
		delete(s.pending, sessionID)
		s.mu.Unlock()
		if surface != nil {
			surface.Close()
		}
		log.Warn("service session open failed", "err", err)
		return schema.OpenSessionResponse{}, err
	}
	if surface != nil {
		surface.OnInput(func(data []byte) { conn.Send(data) })
	}

	s.mu.Lock()
	state := s.getOrCreateScopeStateLocked(scope)
	s.seq++
	sess := &session{
		ID:        sessionID,
		Scope:     scope,
		Seq:       s.seq,
		ConnState: schema.ConnConnecting,
		conn:      conn,
		surface:   surface,
	}
	state.sessions[sessionID] = sess
	state.order = append(state.order, sessionID)
	if req.Activate || state.active == "" {
		state.active = sessionID
	}
	shown := s.applyLayoutLocked()
	created := schema.SessionEvent{Type: schema.SessionCreated, Session: sess.Snapshot(state.active == sessionID)}
	layout := s.layoutSnapshotLocked()
	s.mu.Unlock()

	s.emitSessionEvent(created)
	s.emitLayoutEvent(layout)
	s.drainPending(sessionID)
	for _, id := range shown {
		s.scheduleFit(id, 0)
	}
	logx.WithSession(log, sessionID).Info("service session opened")
	return schema.OpenSessionResponse{Session: created.Session}, nil
}

// drainPending replays conn events buffered during OpenSession in arrival
// order, then removes the buffer so later events apply directly. Events
// arriving mid-drain keep buffering until a pass finds the queue empty.
func (s *service) drainPending(sessionID schema.SessionID) {
	for {
		s.mu.Lock()
		queued := s.pending[sessionID]
		if len(queued) == 0 {
			delete(s.pending, sessionID)
			s.mu.Unlock()
			return
		}
		s.pending[sessionID] = nil
		s.mu.Unlock()
		for _, event := range queued {
			s.applyConnEvent(sessionID, event)
		}
	}
}

func (s *service) CloseSession(ctx context.Context, req schema.CloseSessionRequest) (schema.CloseSessionResponse, error) {
	if ctx == nil {
		return schema.CloseSessionResponse{}, errors.New("missing context")
	}
	s.mu.Lock()
	sess, state := s.findSessionLocked(req.SessionID)
	if sess == nil {
		s.mu.Unlock()
		logx.Ctx(ctx).Warn("service session close failed", "err", schema.ErrSessionNotFound)
		return schema.CloseSessionResponse{}, schema.ErrSessionNotFound
	}
	log := logx.WithScopeSession(ctx, sess.Scope, sess.ID)
	if len(state.sessions) <= 1 {
		s.mu.Unlock()
		log.Warn("service session close rejected", "err", schema.ErrLastSession)
		return schema.CloseSessionResponse{}, schema.ErrLastSession
	}
	delete(state.sessions, req.SessionID)
	state.order = removeSessionID(state.order, req.SessionID)
	if state.active == req.SessionID {
		state.active = ""
		if len(state.order) > 0 {
			state.active = state.order[len(state.order)-1]
		}
	}
	sess.Visible = false
	shown := s.applyLayoutLocked()
	closed := schema.SessionEvent{Type: schema.SessionClosed, Session: sess.Snapshot(false)}
	layout := s.layoutSnapshotLocked()
	active := state.active
	conn := sess.conn
	surface := sess.surface
	s.mu.Unlock()

	if conn != nil {
		conn.Close()
	}
	if surface != nil {
		surface.Close()
	}
	s.emitSessionEvent(closed)
	s.emitLayoutEvent(layout)
	for _, id := range shown {
		s.scheduleFit(id, 0)
	}
	log.Info("service session closed", "active", active)
	return schema.CloseSessionResponse{Session: closed.Session, Active: active}, nil
}

func (s *service) ActivateSession(ctx context.Context, req schema.ActivateSessionRequest) (schema.ActivateSessionResponse, error) {
	s.mu.Lock()
	sess, state := s.findSessionLocked(req.SessionID)
	if sess == nil {
		s.mu.Unlock()
		logx.Ctx(ctx).Warn("service session activate failed", "err", schema.ErrSessionNotFound)
		return schema.ActivateSessionResponse{}, schema.ErrSessionNotFound
	}
	log := logx.WithScopeSession(ctx, sess.Scope, sess.ID)
	state.active = sess.ID
	shown := s.applyLayoutLocked()
	activated := schema.SessionEvent{Type: schema.SessionActivated, Session: sess.Snapshot(true)}
	layout := s.layoutSnapshotLocked()
	s.mu.Unlock()

	s.emitSessionEvent(activated)
	s.emitLayoutEvent(layout)
	for _, id := range shown {
		s.scheduleFit(id, 0)
	}
	s.scheduleFit(req.SessionID, 0)
	if s.sched != nil {
		id := req.SessionID
		s.sched.After(s.cfg.FitDelay, func() { s.focusIfActive(id) })
	}
	log.Info("service session activated")
	return schema.ActivateSessionResponse{Session: activated.Session}, nil
}

func (s *service) ListSessions(ctx context.Context, req schema.ListSessionsRequest) (schema.ListSessionsResponse, error) {
	if req.Scope != "" && !req.Scope.Valid() {
		return schema.ListSessionsResponse{}, schema.ErrInvalidScope
	}
	log := logx.WithScope(ctx, req.Scope)

	s.mu.Lock()
	defer s.mu.Unlock()
	resp := schema.ListSessionsResponse{Layout: s.layoutSnapshotLocked().Layout}
	for _, scope := range []schema.Scope{schema.ScopeInteractive, schema.ScopeAgent} {
		if req.Scope != "" && req.Scope != scope {
			continue
		}
		state := s.scopes[scope]
		if state == nil {
			continue
		}
		for _, id := range state.order {
			sess := state.sessions[id]
			if sess == nil {
				continue
			}
			resp.Sessions = append(resp.Sessions, sess.Snapshot(id == state.active))
		}
	}
	if state := s.scopes[schema.ScopeInteractive]; state != nil {
		resp.ActiveInteractive = state.active
	}
	if state := s.scopes[schema.ScopeAgent]; state != nil {
		resp.ActiveAgent = state.active
	}
	log.Trace("service sessions listed", "count", len(resp.Sessions))
	return resp, nil
}

func (s *service) WriteSession(ctx context.Context, req schema.WriteSessionRequest) (schema.WriteSessionResponse, error) {
	if len(req.Data) == 0 {
		return schema.WriteSessionResponse{}, nil
	}
	s.mu.Lock()
	sess, _ := s.findSessionLocked(req.SessionID)
	if sess == nil {
		s.mu.Unlock()
		logx.Ctx(ctx).Warn("service write failed", "err", schema.ErrSessionNotFound)
		return schema.WriteSessionResponse{}, schema.ErrSessionNotFound
	}
	log := logx.WithScopeSession(ctx, sess.Scope, sess.ID)
	conn := sess.conn
	usable := sess.ConnState == schema.ConnOpen || sess.ConnState == schema.ConnConnecting
	connState := sess.ConnState
	s.mu.Unlock()

	if !usable || conn == nil {
		log.Debug("service write dropped", "state", connState)
		return schema.WriteSessionResponse{}, nil
	}
	conn.Send(req.Data)
	log.Trace("service write forwarded", "bytes", len(req.Data))
	return schema.WriteSessionResponse{Sent: true}, nil
}

func (s *service) RunInScope(ctx context.Context, req schema.RunInScopeRequest) (schema.RunInScopeResponse, error) {
	if ctx == nil {
		return schema.RunInScopeResponse{}, errors.New("missing context")
	}
	scope, err := normalizeScope(req.Scope)
	if err != nil {
		return schema.RunInScopeResponse{}, err
	}
	log := logx.WithScope(ctx, scope)

	var layoutEvent *schema.LayoutEvent
	var shown []schema.SessionID
	s.mu.Lock()
	state := s.getOrCreateScopeStateLocked(scope)
	if req.AutoShow && scope == schema.ScopeAgent && s.agentCollapsed {
		s.agentCollapsed = false
		shown = s.applyLayoutLocked()
		event := s.layoutSnapshotLocked()
		layoutEvent = &event
	}
	sess := state.sessions[state.active]
	usable := sess != nil && (sess.ConnState == schema.ConnOpen || sess.ConnState == schema.ConnConnecting)
	sessionID := state.active
	s.mu.Unlock()

	if layoutEvent != nil {
		s.emitLayoutEvent(*layoutEvent)
		for _, id := range shown {
			s.scheduleFit(id, 0)
		}
	}
	if !usable {
		openResp, err := s.OpenSession(ctx, schema.OpenSessionRequest{Scope: scope, Activate: true})
		if err != nil {
			log.Warn("service scoped run failed", "err", err)
			return schema.RunInScopeResponse{}, err
		}
		sessionID = openResp.Session.ID
	}
	writeResp, err := s.WriteSession(ctx, schema.WriteSessionRequest{SessionID: sessionID, Data: req.Data})
	if err != nil {
		return schema.RunInScopeResponse{}, err
	}
	logx.WithSession(log, sessionID).Debug("service scoped run", "sent", writeResp.Sent, "bytes", len(req.Data))
	return schema.RunInScopeResponse{SessionID: sessionID, Sent: writeResp.Sent}, nil
}

func (s *service) ResizeSession(ctx context.Context, req schema.ResizeSessionRequest) (schema.ResizeSessionResponse, error) {
	s.mu.Lock()
	sess, _ := s.findSessionLocked(req.SessionID)
	if sess == nil {
		s.mu.Unlock()
		logx.Ctx(ctx).Warn("service resize failed", "err", schema.ErrSessionNotFound)
		return schema.ResizeSessionResponse{}, schema.ErrSessionNotFound
	}
	log := logx.WithScopeSession(ctx, sess.Scope, sess.ID)
	if !sess.Visible || sess.surface == nil {
		s.mu.Unlock()
		log.Debug("service resize skipped", "reason", "not visible")
		return schema.ResizeSessionResponse{}, nil
	}
	geom, ok := sess.surface.Size()
	if !ok || geom.Cols < s.cfg.MinCols || geom.Rows < s.cfg.MinRows {
		s.mu.Unlock()
		log.Debug("service resize skipped", "cols", geom.Cols, "rows", geom.Rows)
		return schema.ResizeSessionResponse{Geometry: geom}, nil
	}
	sess.Geometry = geom
	conn := sess.conn
	open := sess.ConnState == schema.ConnOpen
	s.mu.Unlock()

	if !open || conn == nil {
		log.Debug("service resize deferred", "cols", geom.Cols, "rows", geom.Rows)
		return schema.ResizeSessionResponse{Geometry: geom}, nil
	}
	conn.Send(resizeMessage(geom))
	log.Debug("service resize sent", "cols", geom.Cols, "rows", geom.Rows)
	return schema.ResizeSessionResponse{Sent: true, Geometry: geom}, nil
}

func (s *service) SetLayout(ctx context.Context, req schema.SetLayoutRequest) (schema.SetLayoutResponse, error) {
	log := logx.Ctx(ctx)
	if !req.Mode.Valid() {
		log.Warn("service layout rejected", "err", schema.ErrInvalidLayout, "mode", req.Mode)
		return schema.SetLayoutResponse{}, schema.ErrInvalidLayout
	}
	s.mu.Lock()
	s.layout = req.Mode
	s.applyLayoutLocked()
	event := s.layoutSnapshotLocked()
	s.mu.Unlock()

	s.emitLayoutEvent(event)
	for _, id := range event.Layout.Visible {
		s.scheduleFit(id, 0)
	}
	log.Info("service layout set", "mode", req.Mode, "panes", len(event.Layout.Visible))
	return schema.SetLayoutResponse{Layout: event.Layout}, nil
}

func (s *service) SetSplitRatio(ctx context.Context, req schema.SetSplitRatioRequest) (schema.SetSplitRatioResponse, error) {
	log := logx.Ctx(ctx)
	ratio := schema.ClampSplitRatio(req.Ratio)

	s.mu.Lock()
	s.splitRatio = ratio
	event := s.layoutSnapshotLocked()
	var agentActive schema.SessionID
	if state := s.scopes[schema.ScopeAgent]; state != nil {
		agentActive = state.active
	}
	s.mu.Unlock()

	s.emitLayoutEvent(event)
	if agentActive != "" {
		s.scheduleFit(agentActive, 0)
	}
	log.Debug("service split ratio set", "ratio", ratio)
	return schema.SetSplitRatioResponse{Layout: event.Layout}, nil
}

func (s *service) SetAgentCollapsed(ctx context.Context, req schema.SetAgentCollapsedRequest) (schema.SetAgentCollapsedResponse, error) {
	log := logx.Ctx(ctx)

	s.mu.Lock()
	s.agentCollapsed = req.Collapsed
	shown := s.applyLayoutLocked()
	event := s.layoutSnapshotLocked()
	s.mu.Unlock()

	s.emitLayoutEvent(event)
	for _, id := range shown {
		s.scheduleFit(id, 0)
	}
	log.Info("service agent pane toggled", "collapsed", req.Collapsed)
	return schema.SetAgentCollapsedResponse{Layout: event.Layout}, nil
}

func (s *service) Shutdown(ctx context.Context) error {
	_ = ctx
	s.mu.Lock()
	var conns []Conn
	var surfaces []Surface
	for _, state := range s.scopes {
		for _, sess := range state.sessions {
			if sess.conn != nil {
				conns = append(conns, sess.conn)
			}
			if sess.surface != nil {
				surfaces = append(surfaces, sess.surface)
			}
			sess.ConnState = schema.ConnClosing
		}
	}
	s.mu.Unlock()
	for _, conn := range conns {
		conn.Close()
	}
	for _, surface := range surfaces {
		surface.Close()
	}
	s.logger.Info("service shutdown complete", "sessions", len(conns))
	return nil
}

func (s *service) handleConnEvent(sessionID schema.SessionID, event ConnEvent) {
	s.mu.Lock()
	if queued, buffering := s.pending[sessionID]; buffering {
		s.pending[sessionID] = append(queued, event)
		s.mu.Unlock()
		return
	}
	s.mu.Unlock()
	s.applyConnEvent(sessionID, event)
}

func (s *service) applyConnEvent(sessionID schema.SessionID, event ConnEvent) {
	switch event.Type {
	case ConnEventOpened:
		s.mu.Lock()
		sess, _ := s.findSessionLocked(sessionID)
		if sess == nil {
			s.mu.Unlock()
			return
		}
		sess.ConnState = schema.ConnOpen
		s.mu.Unlock()
		logx.WithSession(s.logger, sessionID).Debug("service conn opened")
		s.scheduleFit(sessionID, 0)
	case ConnEventData:
		s.mu.Lock()
		sess, _ := s.findSessionLocked(sessionID)
		var surface Surface
		if sess != nil {
			surface = sess.surface
		}
		s.mu.Unlock()
		if surface != nil {
			surface.Write(event.Data)
		}
	case ConnEventClosed, ConnEventFailed:
		s.mu.Lock()
		sess, state := s.findSessionLocked(sessionID)
		if sess == nil {
			s.mu.Unlock()
			return
		}
		notice := "connection closed"
		reason := ""
		if event.Type == ConnEventFailed {
			sess.ConnState = schema.ConnFailed
			notice = "connection failed"
			reason = "transport failed"
			if event.Err != nil {
				notice = fmt.Sprintf("connection failed: %v", event.Err)
				reason = event.Err.Error()
			}
		} else {
			sess.ConnState = schema.ConnClosed
		}
		surface := sess.surface
		disconnected := schema.SessionEvent{
			Type:    schema.SessionDisconnected,
			Session: sess.Snapshot(state.active == sessionID),
			Reason:  reason,
		}
		s.mu.Unlock()

		if surface != nil {
			surface.Notice(notice)
		}
		s.emitSessionEvent(disconnected)
		log := logx.WithSession(s.logger, sessionID)
		if event.Type == ConnEventFailed {
			log.Warn("service conn failed", "err", event.Err)
		} else {
			log.Debug("service conn closed")
		}
	}
}

// scheduleFit defers a fit pass for the session. While the surface cannot be
// measured the pass reschedules itself up to cfg.FitMaxAttempts times.
func (s *service) scheduleFit(sessionID schema.SessionID, attempt int) {
	if s.sched == nil || attempt >= s.cfg.FitMaxAttempts {
		return
	}
	s.sched.After(s.cfg.FitDelay, func() {
		if s.fitOnce(sessionID) {
			return
		}
		s.scheduleFit(sessionID, attempt+1)
	})
}

// fitOnce measures the session surface and pushes the geometry when the
// resize guard allows it. It reports true when the retry loop should stop.
func (s *service) fitOnce(sessionID schema.SessionID) bool {
	s.mu.Lock()
	sess, _ := s.findSessionLocked(sessionID)
	if sess == nil {
		s.mu.Unlock()
		return true
	}
	if !sess.Visible || sess.surface == nil {
		s.mu.Unlock()
		return false
	}
	geom, ok := sess.surface.Size()
	if !ok || geom.Cols < s.cfg.MinCols || geom.Rows < s.cfg.MinRows {
		s.mu.Unlock()
		return false
	}
	sess.Geometry = geom
	conn := sess.conn
	open := sess.ConnState == schema.ConnOpen
	s.mu.Unlock()

	if open && conn != nil {
		conn.Send(resizeMessage(geom))
	}
	return true
}

// focusIfActive focuses the session surface when the session still exists
// and is still the active one in its scope.
func (s *service) focusIfActive(sessionID schema.SessionID) {
	s.mu.Lock()
	sess, state := s.findSessionLocked(sessionID)
	var surface Surface
	if sess != nil && state.active == sessionID {
		surface = sess.surface
	}
	s.mu.Unlock()
	if surface != nil {
		surface.Focus()
	}
}

func (s *service) emitSessionEvent(event schema.SessionEvent) {
	if s.sink == nil {
		return
	}
	s.sink.OnSessionEvent(event)
}

func (s *service) emitLayoutEvent(event schema.LayoutEvent) {
	if s.sink == nil {
		return
	}
	s.sink.OnLayoutEvent(event)
}

func (s *service) findSessionLocked(id schema.SessionID) (*session, *scopeState) {
	for _, state := range s.scopes {
		if sess := state.sessions[id]; sess != nil {
			return sess, state
		}
	}
	return nil, nil
}

func (s *service) getOrCreateScopeStateLocked(scope schema.Scope) *scopeState {
	state := s.scopes[scope]
	if state == nil {
		state = &scopeState{sessions: make(map[schema.SessionID]*session)}
		s.scopes[scope] = state
	}
	return state
}

// resizeMessage encodes the in-band geometry control line understood by the
// remote terminal host.
func resizeMessage(geom schema.Geometry) []byte {
	return []byte(fmt.Sprintf("\x01resize:%d:%d", geom.Cols, geom.Rows))
}

func normalizeScope(scope schema.Scope) (schema.Scope, error) {
	if !scope.Valid() {
		return "", schema.ErrInvalidScope
	}
	return scope, nil
}

func removeSessionID(order []schema.SessionID, id schema.SessionID) []schema.SessionID {
	for i, current := range order {
		if current == id {
			return append(order[:i], order[i+1:]...)
		}
	}
	return order
}
