package turn

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"pkt.systems/termdeck/schema"
)

// State folds turn stream events into a render-ready snapshot. It is not
// safe for concurrent use; the controller serializes access.
type State struct {
	max    int
	snap   schema.TurnSnapshot
	failed bool
	done   bool
}

// NewState returns an idle state with the given progress log cap.
func NewState(maxProgress int) *State {
	if maxProgress <= 0 {
		maxProgress = schema.DefaultProgressMaxEntries
	}
	return &State{max: maxProgress, snap: schema.TurnSnapshot{Status: schema.TurnIdle}}
}

// Begin resets the state for a new turn.
func (s *State) Begin() {
	s.snap = schema.TurnSnapshot{Status: schema.TurnSubmitting}
	s.failed = false
	s.done = false
}

// Apply folds one decoded event into the state.
func (s *State) Apply(event schema.TurnEvent) {
	if s.snap.Status == schema.TurnSubmitting {
		s.snap.Status = schema.TurnStreaming
	}
	switch event.Type {
	case schema.EventThreadStarted:
		s.addProgress("thread started")
	case schema.EventTurnStarted:
		s.addProgress("turn started")
	case schema.EventItemStarted, schema.EventItemUpdated, schema.EventItemCompleted:
		s.applyItem(event)
	case schema.EventTurnCompleted:
		if event.Usage != nil {
			usage := *event.Usage
			s.snap.Usage = &usage
		}
	case schema.EventTurnFailed:
		s.failed = true
		if event.Error != nil && event.Error.Message != "" {
			s.snap.Err = event.Error.Message
			s.addProgress("turn failed: " + firstLine(event.Error.Message))
		} else {
			s.addProgress("turn failed")
		}
	case schema.EventError:
		if event.Message != "" {
			s.snap.Err = event.Message
			s.addProgress("error: " + firstLine(event.Message))
		}
	case schema.EventStderr:
		if event.Message != "" {
			s.addProgress("stderr: " + firstLine(event.Message))
		}
	case schema.EventLog:
		if event.Message != "" {
			s.addProgress(firstLine(event.Message))
		}
	case schema.EventDone:
		s.done = true
		if event.DoneThreadID != "" {
			s.snap.ThreadID = event.DoneThreadID
		}
		if event.FinalResponse != "" {
			s.snap.Answer = event.FinalResponse
		}
		if event.ReturnCode != nil {
			code := *event.ReturnCode
			s.snap.ReturnCode = &code
			if code != 0 {
				s.failed = true
				if s.snap.Err == "" {
					s.snap.Err = fmt.Sprintf("agent exited with code %d", code)
				}
			}
		}
		s.finalize()
	}
	// First-seen thread id wins; only the done record may override it.
	if event.ThreadID != "" && s.snap.ThreadID == "" {
		s.snap.ThreadID = event.ThreadID
	}
}

func (s *State) applyItem(event schema.TurnEvent) {
	item := event.Item
	if item == nil {
		return
	}
	switch item.Type {
	case schema.ItemAgentMessage:
		if item.Text != "" {
			s.snap.Answer = item.Text
		}
	case schema.ItemReasoning:
		if event.Type == schema.EventItemCompleted && item.Text != "" {
			s.addProgress(firstLine(item.Text))
		}
	case schema.ItemCommandExecution:
		if item.Command == "" {
			return
		}
		if event.Type == schema.EventItemStarted {
			s.addProgress("$ " + firstLine(item.Command))
		} else if event.Type == schema.EventItemCompleted && item.ExitCode != nil && *item.ExitCode != 0 {
			s.addProgress(fmt.Sprintf("$ %s (exit %d)", firstLine(item.Command), *item.ExitCode))
		}
	case schema.ItemFileChange:
		if event.Type == schema.EventItemCompleted {
			s.addProgress("files changed")
		}
	case schema.ItemMcpToolCall:
		if event.Type == schema.EventItemStarted {
			name := item.ToolName
			if name == "" {
				name = item.Name
			}
			if name != "" {
				s.addProgress("tool: " + name)
			}
		}
	case schema.ItemWebSearch:
		if event.Type == schema.EventItemStarted && item.Query != "" {
			s.addProgress("search: " + item.Query)
		}
	case schema.ItemTodoList:
		if event.Type != schema.EventItemStarted {
			s.addProgress("plan updated")
		}
	}
}

// FinishStream marks the end of the byte stream. A stream that ends without
// a done record still finalizes, flagged incomplete.
func (s *State) FinishStream() {
	if s.snap.Status.Terminal() {
		return
	}
	if !s.done {
		s.snap.Incomplete = true
	}
	s.finalize()
}

// Fail finalizes the turn as failed with the given cause.
func (s *State) Fail(err error) {
	if s.snap.Status.Terminal() {
		return
	}
	s.failed = true
	if err != nil {
		s.snap.Err = err.Error()
	}
	s.snap.Status = schema.TurnFailed
}

// Cancel marks the turn cancelled. Answer and progress accumulated so far
// are preserved.
func (s *State) Cancel() {
	if s.snap.Status.Terminal() {
		return
	}
	s.snap.Status = schema.TurnCancelled
}

// Snapshot returns an independent copy of the current state.
func (s *State) Snapshot() schema.TurnSnapshot {
	snap := s.snap
	snap.Progress = append([]string(nil), s.snap.Progress...)
	if s.snap.Usage != nil {
		usage := *s.snap.Usage
		snap.Usage = &usage
	}
	if s.snap.ReturnCode != nil {
		code := *s.snap.ReturnCode
		snap.ReturnCode = &code
	}
	return snap
}

func (s *State) finalize() {
	if s.failed {
		s.snap.Status = schema.TurnFailed
		return
	}
	s.snap.Status = schema.TurnCompleted
}

func (s *State) addProgress(line string) {
	if line == "" {
		return
	}
	s.snap.Progress = append(s.snap.Progress, line)
	s.snap.ProgressTotal++
	if len(s.snap.Progress) > s.max {
		s.snap.Progress = s.snap.Progress[len(s.snap.Progress)-s.max:]
	}
}

func firstLine(text string) string {
	text = strings.TrimSpace(text)
	if i := strings.IndexByte(text, '\n'); i >= 0 {
		text = strings.TrimSpace(text[:i])
	}
	const maxLen = 120
	if len(text) > maxLen {
		cut := maxLen
		// Back up to a rune boundary so the cut never splits a UTF-8 sequence.
		for cut > 0 && !utf8.RuneStart(text[cut]) {
			cut--
		}
		text = text[:cut] + "…"
	}
	return text
}
