// Package ptyhost serves local PTY-backed shells over websocket. It is the
// development stand-in for a remote terminal endpoint: one websocket
// connection drives one shell process.
package ptyhost

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"os"
	"os/exec"
	"strconv"
	"sync"
	"time"

	"github.com/creack/pty"
	"github.com/gorilla/websocket"
	"pkt.systems/pslog"
)

// Resize control messages arrive in-band on the byte stream.
var resizePrefix = []byte("\x01resize:")

// Config configures the host.
type Config struct {
	// Command is the program started per connection. Empty means $SHELL
	// falling back to /bin/sh.
	Command []string
	// Token, when set, is required as a token query parameter on upgrade.
	Token  string
	Logger pslog.Logger
}

// Host upgrades websocket connections and bridges them onto PTYs.
type Host struct {
	cfg      Config
	logger   pslog.Logger
	upgrader websocket.Upgrader

	mu     sync.Mutex
	active int
}

// New constructs a Host.
func New(cfg Config) *Host {
	logger := cfg.Logger
	if logger == nil {
		logger = pslog.Ctx(context.Background())
	}
	return &Host{
		cfg:    cfg,
		logger: logger,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// Active returns the number of live shell connections.
func (h *Host) Active() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.active
}

// ServeHTTP implements http.Handler.
func (h *Host) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if h.cfg.Token != "" && r.URL.Query().Get("token") != h.cfg.Token {
		h.logger.Warn("pty host rejected connection", "remote", r.RemoteAddr)
		http.Error(w, "invalid token", http.StatusUnauthorized)
		return
	}
	sessionID := r.URL.Query().Get("session")
	log := h.logger
	if sessionID != "" {
		log = log.With("session", sessionID)
	}
	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn("pty host upgrade failed", "error", err)
		return
	}
	go h.serve(ws, log)
}

func (h *Host) serve(ws *websocket.Conn, log pslog.Logger) {
	defer ws.Close()

	cmd := exec.Command(h.commandName(), h.commandArgs()...)
	cmd.Env = append(os.Environ(), "TERM=xterm-256color")
	ptmx, err := pty.Start(cmd)
	if err != nil {
		log.Warn("pty host shell start failed", "error", err)
		deadline := time.Now().Add(time.Second)
		_ = ws.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseInternalServerErr, "shell start failed"), deadline)
		return
	}
	_ = pty.Setsize(ptmx, &pty.Winsize{Cols: 80, Rows: 24})

	h.mu.Lock()
	h.active++
	h.mu.Unlock()
	log.Info("pty host shell started", "pid", cmd.Process.Pid)
	defer func() {
		_ = ptmx.Close()
		_ = cmd.Process.Kill()
		_, _ = cmd.Process.Wait()
		h.mu.Lock()
		h.active--
		h.mu.Unlock()
		log.Info("pty host shell stopped")
	}()

	var writeMu sync.Mutex
	done := make(chan struct{})

	// PTY to websocket.
	go func() {
		defer close(done)
		buf := make([]byte, 32*1024)
		for {
			n, err := ptmx.Read(buf)
			if n > 0 {
				writeMu.Lock()
				werr := ws.WriteMessage(websocket.BinaryMessage, buf[:n])
				writeMu.Unlock()
				if werr != nil {
					return
				}
			}
			if err != nil {
				writeMu.Lock()
				deadline := time.Now().Add(time.Second)
				_ = ws.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), deadline)
				writeMu.Unlock()
				return
			}
		}
	}()

	// Websocket to PTY.
	for {
		_, data, err := ws.ReadMessage()
		if err != nil {
			break
		}
		if cols, rows, ok := parseResize(data); ok {
			if err := pty.Setsize(ptmx, &pty.Winsize{Cols: uint16(cols), Rows: uint16(rows)}); err != nil {
				log.Debug("pty host resize failed", "error", err)
			} else {
				log.Trace("pty host resized", "cols", cols, "rows", rows)
			}
			continue
		}
		if _, err := ptmx.Write(data); err != nil {
			break
		}
	}
	_ = ptmx.Close()
	<-done
}

func (h *Host) commandName() string {
	if len(h.cfg.Command) > 0 {
		return h.cfg.Command[0]
	}
	if shell := os.Getenv("SHELL"); shell != "" {
		return shell
	}
	return "/bin/sh"
}

func (h *Host) commandArgs() []string {
	if len(h.cfg.Command) > 1 {
		return h.cfg.Command[1:]
	}
	return nil
}

// parseResize decodes a resize control message. The format is
// "\x01resize:<cols>:<rows>" with positive decimal dimensions.
func parseResize(data []byte) (cols, rows int, ok bool) {
	if !bytes.HasPrefix(data, resizePrefix) {
		return 0, 0, false
	}
	rest := data[len(resizePrefix):]
	sep := bytes.IndexByte(rest, ':')
	if sep <= 0 {
		return 0, 0, false
	}
	cols, err := strconv.Atoi(string(rest[:sep]))
	if err != nil {
		return 0, 0, false
	}
	rows, err = strconv.Atoi(string(rest[sep+1:]))
	if err != nil {
		return 0, 0, false
	}
	if cols <= 0 || rows <= 0 || cols > 1<<15 || rows > 1<<15 {
		return 0, 0, false
	}
	return cols, rows, true
}

// Endpoint formats the websocket URL for a host listening on addr.
func Endpoint(addr string) string {
	return fmt.Sprintf("ws://%s/term", addr)
}
