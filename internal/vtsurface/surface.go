// Package vtsurface renders terminal sessions through an in-memory vt10x
// screen model. Hidden surfaces keep absorbing output; showing one replays
// the modeled screen so the pane is current without any scrollback replay.
package vtsurface

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/hinshun/vt10x"
	"pkt.systems/pslog"
	"pkt.systems/termdeck/core"
	"pkt.systems/termdeck/schema"
)

// FactoryConfig configures surface creation.
type FactoryConfig struct {
	// Output receives the bytes of whichever surfaces are visible.
	Output io.Writer
	// Initial is the geometry surfaces start with. Zero means unmeasured
	// until SetSize is called.
	Initial schema.Geometry
	Logger  pslog.Logger
}

// Factory creates vt10x-backed surfaces.
type Factory struct {
	out     io.Writer
	initial schema.Geometry
	logger  pslog.Logger

	mu       sync.Mutex
	surfaces map[schema.SessionID]*Surface
	focused  schema.SessionID
}

// NewFactory returns a Factory implementing core.SurfaceFactory.
func NewFactory(cfg FactoryConfig) (*Factory, error) {
	if cfg.Output == nil {
		return nil, fmt.Errorf("vtsurface: output writer is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = pslog.Ctx(context.Background())
	}
	return &Factory{
		out:      cfg.Output,
		initial:  cfg.Initial,
		logger:   logger,
		surfaces: make(map[schema.SessionID]*Surface),
	}, nil
}

// NewSurface creates the surface for a session.
func (f *Factory) NewSurface(sessionID schema.SessionID) (core.Surface, error) {
	cols, rows := f.initial.Cols, f.initial.Rows
	if cols <= 0 || rows <= 0 {
		cols, rows = 80, 24
	}
	s := &Surface{
		id:      sessionID,
		factory: f,
		vt:      vt10x.New(vt10x.WithSize(cols, rows)),
		geom:    f.initial,
		logger:  f.logger.With("session", string(sessionID)),
	}
	s.measurable = f.initial.Cols > 0 && f.initial.Rows > 0
	f.mu.Lock()
	f.surfaces[sessionID] = s
	f.mu.Unlock()
	return s, nil
}

// Focused returns the session whose surface currently receives input.
func (f *Factory) Focused() schema.SessionID {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.focused
}

// RouteInput delivers user keystrokes to the focused surface.
func (f *Factory) RouteInput(data []byte) {
	f.mu.Lock()
	s := f.surfaces[f.focused]
	f.mu.Unlock()
	if s != nil {
		s.handleInput(data)
	}
}

// SetSize updates the geometry of every surface. The deck calls this when
// the host terminal or the layout changes.
func (f *Factory) SetSize(sessionID schema.SessionID, geom schema.Geometry) {
	f.mu.Lock()
	s := f.surfaces[sessionID]
	f.mu.Unlock()
	if s != nil {
		s.SetSize(geom)
	}
}

func (f *Factory) setFocused(sessionID schema.SessionID) {
	f.mu.Lock()
	f.focused = sessionID
	f.mu.Unlock()
}

func (f *Factory) drop(sessionID schema.SessionID) {
	f.mu.Lock()
	delete(f.surfaces, sessionID)
	if f.focused == sessionID {
		f.focused = ""
	}
	f.mu.Unlock()
}

// Surface is one session's pane.
type Surface struct {
	id      schema.SessionID
	factory *Factory
	logger  pslog.Logger

	mu         sync.Mutex
	vt         vt10x.Terminal
	geom       schema.Geometry
	measurable bool
	visible    bool
	closed     bool
	onInput    func([]byte)
}

var _ core.Surface = (*Surface)(nil)

func (s *Surface) Write(data []byte) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	_, _ = s.vt.Write(data)
	visible := s.visible
	s.mu.Unlock()
	if visible {
		_, _ = s.factory.out.Write(data)
	}
}

func (s *Surface) Size() (schema.Geometry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || !s.measurable {
		return schema.Geometry{}, false
	}
	return s.geom, true
}

// SetSize changes the pane geometry and resizes the screen model.
func (s *Surface) SetSize(geom schema.Geometry) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.geom = geom
	s.measurable = geom.Cols > 0 && geom.Rows > 0
	if s.measurable {
		s.vt.Resize(geom.Cols, geom.Rows)
	}
	s.mu.Unlock()
}

func (s *Surface) SetVisible(visible bool) {
	s.mu.Lock()
	if s.closed || s.visible == visible {
		s.mu.Unlock()
		return
	}
	s.visible = visible
	var snapshot []byte
	if visible && s.measurable {
		snapshot = s.renderLocked()
	}
	s.mu.Unlock()
	if len(snapshot) > 0 {
		_, _ = s.factory.out.Write(snapshot)
	}
}

func (s *Surface) Focus() {
	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return
	}
	s.factory.setFocused(s.id)
}

func (s *Surface) Notice(text string) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	line := []byte("\r\n\x1b[7m " + text + " \x1b[0m\r\n")
	_, _ = s.vt.Write(line)
	visible := s.visible
	s.mu.Unlock()
	if visible {
		_, _ = s.factory.out.Write(line)
	}
}

func (s *Surface) OnInput(fn func(data []byte)) {
	s.mu.Lock()
	s.onInput = fn
	s.mu.Unlock()
}

func (s *Surface) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.onInput = nil
	s.mu.Unlock()
	s.factory.drop(s.id)
}

func (s *Surface) handleInput(data []byte) {
	s.mu.Lock()
	fn := s.onInput
	s.mu.Unlock()
	if fn != nil {
		fn(data)
	}
}

// renderLocked replays the modeled screen as escape sequences. Caller holds mu.
func (s *Surface) renderLocked() []byte {
	var buf bytes.Buffer
	cols, rows := s.vt.Size()
	buf.WriteString("\x1b[2J\x1b[H")
	lastFG, lastBG := vt10x.DefaultFG, vt10x.DefaultBG
	for row := 0; row < rows; row++ {
		for col := 0; col < cols; col++ {
			cell := s.vt.Cell(col, row)
			if cell.FG != lastFG || cell.BG != lastBG {
				buf.WriteString("\x1b[0m")
				if cell.FG != vt10x.DefaultFG && cell.FG < 256 {
					fmt.Fprintf(&buf, "\x1b[38;5;%dm", cell.FG)
				}
				if cell.BG != vt10x.DefaultBG && cell.BG < 256 {
					fmt.Fprintf(&buf, "\x1b[48;5;%dm", cell.BG)
				}
				lastFG, lastBG = cell.FG, cell.BG
			}
			if cell.Char == 0 {
				buf.WriteRune(' ')
			} else {
				buf.WriteRune(cell.Char)
			}
		}
		if row < rows-1 {
			buf.WriteString("\r\n")
		}
	}
	buf.WriteString("\x1b[0m")
	cursor := s.vt.Cursor()
	fmt.Fprintf(&buf, "\x1b[%d;%dH", cursor.Y+1, cursor.X+1)
	return buf.Bytes()
}
