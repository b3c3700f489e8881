package core

import (
	"context"
	"sync"
	"testing"
	"time"

	"pkt.systems/termdeck/schema"
)

type fakeConn struct {
	mu     sync.Mutex
	sent   [][]byte
	closed bool
}

func (c *fakeConn) Send(data []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sent = append(c.sent, append([]byte(nil), data...))
}

func (c *fakeConn) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
}

func (c *fakeConn) sentStrings() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, 0, len(c.sent))
	for _, data := range c.sent {
		out = append(out, string(data))
	}
	return out
}

func (c *fakeConn) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

type fakeDialer struct {
	mu       sync.Mutex
	err      error
	conns    map[schema.SessionID]*fakeConn
	handlers map[schema.SessionID]func(ConnEvent)
	// emitOnDial is delivered synchronously from inside Dial, before it
	// returns, the way a dialer that connects or fails immediately would.
	emitOnDial []ConnEvent
}

func newFakeDialer() *fakeDialer {
	return &fakeDialer{
		conns:    make(map[schema.SessionID]*fakeConn),
		handlers: make(map[schema.SessionID]func(ConnEvent)),
	}
}

func (d *fakeDialer) Dial(ctx context.Context, req DialRequest) (Conn, error) {
	_ = ctx
	d.mu.Lock()
	if d.err != nil {
		d.mu.Unlock()
		return nil, d.err
	}
	conn := &fakeConn{}
	d.conns[req.SessionID] = conn
	d.handlers[req.SessionID] = req.OnEvent
	emit := d.emitOnDial
	d.mu.Unlock()
	for _, event := range emit {
		req.OnEvent(event)
	}
	return conn, nil
}

func (d *fakeDialer) conn(t *testing.T, id schema.SessionID) *fakeConn {
	t.Helper()
	d.mu.Lock()
	defer d.mu.Unlock()
	conn := d.conns[id]
	if conn == nil {
		t.Fatalf("no conn dialed for session %s", id)
	}
	return conn
}

func (d *fakeDialer) deliver(t *testing.T, id schema.SessionID, event ConnEvent) {
	t.Helper()
	d.mu.Lock()
	handler := d.handlers[id]
	d.mu.Unlock()
	if handler == nil {
		t.Fatalf("no conn handler for session %s", id)
	}
	handler(event)
}

type fakeSurface struct {
	mu         sync.Mutex
	geom       schema.Geometry
	measurable bool
	visible    bool
	writes     [][]byte
	notices    []string
	focused    int
	closed     bool
	input      func(data []byte)
}

func (s *fakeSurface) Write(data []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.writes = append(s.writes, append([]byte(nil), data...))
}

func (s *fakeSurface) Size() (schema.Geometry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.geom, s.measurable
}

func (s *fakeSurface) SetVisible(visible bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.visible = visible
}

func (s *fakeSurface) Focus() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.focused++
}

func (s *fakeSurface) Notice(text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.notices = append(s.notices, text)
}

func (s *fakeSurface) OnInput(fn func(data []byte)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.input = fn
}

func (s *fakeSurface) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
}

type fakeSurfaceFactory struct {
	mu         sync.Mutex
	geom       schema.Geometry
	measurable bool
	surfaces   map[schema.SessionID]*fakeSurface
}

func newFakeSurfaceFactory(geom schema.Geometry) *fakeSurfaceFactory {
	return &fakeSurfaceFactory{
		geom:       geom,
		measurable: true,
		surfaces:   make(map[schema.SessionID]*fakeSurface),
	}
}

func (f *fakeSurfaceFactory) NewSurface(sessionID schema.SessionID) (Surface, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	surface := &fakeSurface{geom: f.geom, measurable: f.measurable}
	f.surfaces[sessionID] = surface
	return surface, nil
}

func (f *fakeSurfaceFactory) surface(t *testing.T, id schema.SessionID) *fakeSurface {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	surface := f.surfaces[id]
	if surface == nil {
		t.Fatalf("no surface created for session %s", id)
	}
	return surface
}

// manualScheduler queues deferred work until the test drains it.
type manualScheduler struct {
	mu        sync.Mutex
	queue     []func()
	scheduled int
}

func (m *manualScheduler) After(d time.Duration, fn func()) {
	_ = d
	m.mu.Lock()
	defer m.mu.Unlock()
	m.queue = append(m.queue, fn)
	m.scheduled++
}

func (m *manualScheduler) drain() {
	for {
		m.mu.Lock()
		if len(m.queue) == 0 {
			m.mu.Unlock()
			return
		}
		fn := m.queue[0]
		m.queue = m.queue[1:]
		m.mu.Unlock()
		fn()
	}
}

func (m *manualScheduler) scheduledCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.scheduled
}

type sinkRecorder struct {
	mu       sync.Mutex
	sessions []schema.SessionEvent
	layouts  []schema.LayoutEvent
}

func (r *sinkRecorder) OnSessionEvent(event schema.SessionEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions = append(r.sessions, event)
}

func (r *sinkRecorder) OnLayoutEvent(event schema.LayoutEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.layouts = append(r.layouts, event)
}

func (r *sinkRecorder) lastLayout(t *testing.T) schema.LayoutSnapshot {
	t.Helper()
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.layouts) == 0 {
		t.Fatalf("no layout events recorded")
	}
	return r.layouts[len(r.layouts)-1].Layout
}

func (r *sinkRecorder) sessionEvents(kind schema.SessionEventType) []schema.SessionEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []schema.SessionEvent
	for _, event := range r.sessions {
		if event.Type == kind {
			out = append(out, event)
		}
	}
	return out
}

type testRig struct {
	svc      Service
	dialer   *fakeDialer
	surfaces *fakeSurfaceFactory
	sched    *manualScheduler
	sink     *sinkRecorder
}

func newTestRig(t *testing.T) *testRig {
	t.Helper()
	dialer := newFakeDialer()
	surfaces := newFakeSurfaceFactory(schema.Geometry{Cols: 120, Rows: 40})
	sched := &manualScheduler{}
	sink := &sinkRecorder{}
	svc, err := NewService(schema.ServiceConfig{TerminalEndpoint: "ws://host/terminal"}, ServiceDeps{
		Dialer:    dialer,
		Surfaces:  surfaces,
		EventSink: sink,
		Scheduler: sched,
	})
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	return &testRig{svc: svc, dialer: dialer, surfaces: surfaces, sched: sched, sink: sink}
}

func (r *testRig) open(t *testing.T, scope schema.Scope) schema.SessionID {
	t.Helper()
	resp, err := r.svc.OpenSession(context.Background(), schema.OpenSessionRequest{Scope: scope})
	if err != nil {
		t.Fatalf("OpenSession: %v", err)
	}
	return resp.Session.ID
}

func (r *testRig) openConnected(t *testing.T, scope schema.Scope) schema.SessionID {
	t.Helper()
	id := r.open(t, scope)
	r.dialer.deliver(t, id, ConnEvent{Type: ConnEventOpened})
	return id
}

func TestNewServiceRequiresDialer(t *testing.T) {
	_, err := NewService(schema.ServiceConfig{TerminalEndpoint: "ws://host/terminal"}, ServiceDeps{})
	if err == nil {
		t.Fatalf("expected error for missing dialer")
	}
}
