package core

import "pkt.systems/termdeck/schema"

// session tracks the state of a single terminal session.
type session struct {
	ID        schema.SessionID
	Scope     schema.Scope
	Seq       uint64
	ConnState schema.ConnState
	Geometry  schema.Geometry
	Visible   bool
	conn      Conn
	surface   Surface
}

// Snapshot returns a transport-friendly view of the session.
func (s *session) Snapshot(active bool) schema.SessionSnapshot {
	return schema.SessionSnapshot{
		ID:        s.ID,
		Scope:     s.Scope,
		ConnState: s.ConnState,
		Geometry:  s.Geometry,
		Visible:   s.Visible,
		Active:    active,
		Seq:       s.Seq,
	}
}
