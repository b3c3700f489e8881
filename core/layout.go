package core

import "pkt.systems/termdeck/schema"

// applyLayoutLocked recomputes visibility for every session and returns the
// ids of sessions that just became visible.
func (s *service) applyLayoutLocked() []schema.SessionID {
	var shown []schema.SessionID
	if state := s.scopes[schema.ScopeInteractive]; state != nil {
		visible := s.visibleInteractiveLocked(state)
		set := make(map[schema.SessionID]bool, len(visible))
		for _, id := range visible {
			set[id] = true
		}
		for _, id := range state.order {
			sess := state.sessions[id]
			if sess == nil {
				continue
			}
			if s.setVisibleLocked(sess, set[id]) {
				shown = append(shown, id)
			}
		}
	}
	if state := s.scopes[schema.ScopeAgent]; state != nil {
		for _, id := range state.order {
			sess := state.sessions[id]
			if sess == nil {
				continue
			}
			want := id == state.active && !s.agentCollapsed
			if s.setVisibleLocked(sess, want) {
				shown = append(shown, id)
			}
		}
	}
	return shown
}

func (s *service) setVisibleLocked(sess *session, want bool) bool {
	if sess.Visible == want {
		return false
	}
	sess.Visible = want
	if sess.surface != nil {
		sess.surface.SetVisible(want)
	}
	return want
}

// visibleInteractiveLocked lists the interactive sessions in pane order: the
// active session first, then the remaining sessions newest-first, truncated
// to the pane capacity of the current layout mode.
func (s *service) visibleInteractiveLocked(state *scopeState) []schema.SessionID {
	capacity := s.layout.PaneCapacity()
	visible := make([]schema.SessionID, 0, capacity)
	if state.active != "" {
		if _, ok := state.sessions[state.active]; ok {
			visible = append(visible, state.active)
		}
	}
	for i := len(state.order) - 1; i >= 0 && len(visible) < capacity; i-- {
		id := state.order[i]
		if id == state.active {
			continue
		}
		visible = append(visible, id)
	}
	return visible
}

func (s *service) layoutSnapshotLocked() schema.LayoutEvent {
	snap := schema.LayoutSnapshot{
		Mode:           s.layout,
		SplitRatio:     s.splitRatio,
		AgentCollapsed: s.agentCollapsed,
	}
	if state := s.scopes[schema.ScopeInteractive]; state != nil {
		snap.Visible = s.visibleInteractiveLocked(state)
	}
	return schema.LayoutEvent{Layout: snap}
}
