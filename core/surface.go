package core

import "pkt.systems/termdeck/schema"

// Surface is a local render target for one terminal session.
type Surface interface {
	// Write renders bytes received from the remote side.
	Write(data []byte)
	// Size returns the fitted geometry. ok is false while the surface cannot
	// be measured, typically because it has not been laid out yet.
	Size() (geom schema.Geometry, ok bool)
	// SetVisible shows or hides the surface without dropping its state.
	SetVisible(visible bool)
	// Focus directs keyboard input to the surface.
	Focus()
	// Notice renders an out-of-band status line on the surface.
	Notice(text string)
	// OnInput registers the handler for user keystrokes.
	OnInput(fn func(data []byte))
	Close()
}

// SurfaceFactory creates surfaces for new sessions.
type SurfaceFactory interface {
	NewSurface(sessionID schema.SessionID) (Surface, error)
}
