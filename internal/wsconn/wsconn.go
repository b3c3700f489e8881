// Package wsconn provides the websocket transport behind core.Dialer.
// Each session gets one websocket connection carrying raw terminal bytes.
package wsconn

import (
	"context"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"pkt.systems/pslog"
	"pkt.systems/termdeck/core"
)

const defaultHandshakeTimeout = 10 * time.Second

// DialerConfig configures the websocket dialer.
type DialerConfig struct {
	// Token, when set, is appended to the endpoint as a token query parameter.
	Token string
	// HandshakeTimeout bounds the websocket handshake. Zero means 10s.
	HandshakeTimeout time.Duration
	Logger           pslog.Logger
}

// Dialer opens websocket connections for terminal sessions.
type Dialer struct {
	token  string
	ws     *websocket.Dialer
	logger pslog.Logger
}

// NewDialer returns a Dialer implementing core.Dialer.
func NewDialer(cfg DialerConfig) *Dialer {
	timeout := cfg.HandshakeTimeout
	if timeout <= 0 {
		timeout = defaultHandshakeTimeout
	}
	logger := cfg.Logger
	if logger == nil {
		logger = pslog.Ctx(context.Background())
	}
	return &Dialer{
		token:  cfg.Token,
		ws:     &websocket.Dialer{HandshakeTimeout: timeout},
		logger: logger,
	}
}

// Dial starts a connection attempt and returns immediately. Events arrive on
// req.OnEvent from a single goroutine: opened first, then data, then exactly
// one closed or failed.
func (d *Dialer) Dial(ctx context.Context, req core.DialRequest) (core.Conn, error) {
	if req.Endpoint == "" {
		return nil, fmt.Errorf("wsconn: endpoint is empty")
	}
	if req.OnEvent == nil {
		return nil, fmt.Errorf("wsconn: event callback is nil")
	}
	target, err := attachQuery(req.Endpoint, string(req.SessionID), d.token)
	if err != nil {
		return nil, fmt.Errorf("wsconn: %w", err)
	}
	c := &conn{
		dialer:  d.ws,
		url:     target,
		onEvent: req.OnEvent,
		logger:  sessionLogger(d.logger, req),
	}
	go c.run(ctx)
	return c, nil
}

func sessionLogger(logger pslog.Logger, req core.DialRequest) pslog.Logger {
	if req.SessionID == "" {
		return logger
	}
	return logger.With("session", string(req.SessionID))
}

func attachQuery(endpoint, sessionID, token string) (string, error) {
	u, err := url.Parse(endpoint)
	if err != nil {
		return "", err
	}
	q := u.Query()
	if sessionID != "" {
		q.Set("session", sessionID)
	}
	if token != "" {
		q.Set("token", token)
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// conn is a single websocket session connection. Sends queue until the
// handshake completes; the run goroutine delivers all events in order.
type conn struct {
	dialer  *websocket.Dialer
	url     string
	onEvent func(core.ConnEvent)
	logger  pslog.Logger

	mu       sync.Mutex
	ws       *websocket.Conn
	pending  [][]byte
	closing  bool
	finished bool
}

func (c *conn) Send(data []byte) {
	if len(data) == 0 {
		return
	}
	c.mu.Lock()
	if c.finished || c.closing {
		c.mu.Unlock()
		return
	}
	if c.ws == nil {
		buf := make([]byte, len(data))
		copy(buf, data)
		c.pending = append(c.pending, buf)
		c.mu.Unlock()
		return
	}
	ws := c.ws
	err := ws.WriteMessage(websocket.BinaryMessage, data)
	c.mu.Unlock()
	if err != nil {
		c.logger.Debug("wsconn write failed", "error", err)
	}
}

func (c *conn) Close() {
	c.mu.Lock()
	if c.closing {
		c.mu.Unlock()
		return
	}
	c.closing = true
	ws := c.ws
	c.mu.Unlock()
	if ws != nil {
		deadline := time.Now().Add(time.Second)
		_ = ws.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), deadline)
		_ = ws.Close()
	}
}

func (c *conn) run(ctx context.Context) {
	ws, resp, err := c.dialer.DialContext(ctx, c.url, nil)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	if err != nil {
		c.logger.Warn("wsconn dial failed", "error", err)
		c.finish(core.ConnEvent{Type: core.ConnEventFailed, Err: err})
		return
	}

	c.mu.Lock()
	if c.closing {
		c.mu.Unlock()
		_ = ws.Close()
		c.finish(core.ConnEvent{Type: core.ConnEventClosed})
		return
	}
	c.ws = ws
	pending := c.pending
	c.pending = nil
	c.mu.Unlock()

	c.onEvent(core.ConnEvent{Type: core.ConnEventOpened})
	for _, msg := range pending {
		c.mu.Lock()
		err := ws.WriteMessage(websocket.BinaryMessage, msg)
		c.mu.Unlock()
		if err != nil {
			break
		}
	}

	for {
		_, data, err := ws.ReadMessage()
		if err != nil {
			c.mu.Lock()
			requested := c.closing
			c.mu.Unlock()
			_ = ws.Close()
			if requested || isExpectedClose(err) {
				c.finish(core.ConnEvent{Type: core.ConnEventClosed})
			} else {
				c.logger.Debug("wsconn read failed", "error", err)
				c.finish(core.ConnEvent{Type: core.ConnEventFailed, Err: err})
			}
			return
		}
		if len(data) > 0 {
			c.onEvent(core.ConnEvent{Type: core.ConnEventData, Data: data})
		}
	}
}

// finish emits the single terminal event.
func (c *conn) finish(event core.ConnEvent) {
	c.mu.Lock()
	if c.finished {
		c.mu.Unlock()
		return
	}
	c.finished = true
	c.pending = nil
	c.mu.Unlock()
	c.onEvent(event)
}

func isExpectedClose(err error) bool {
	return websocket.IsCloseError(err,
		websocket.CloseNormalClosure,
		websocket.CloseGoingAway,
		websocket.CloseNoStatusReceived)
}
