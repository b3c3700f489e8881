package schema

import "encoding/json"

// TurnEventType is the top-level type tag on a turn stream record.
type TurnEventType string

const (
	// EventThreadStarted indicates a new thread started.
	EventThreadStarted TurnEventType = "thread.started"
	// EventTurnStarted indicates a turn started.
	EventTurnStarted TurnEventType = "turn.started"
	// EventTurnCompleted indicates a turn completed successfully.
	EventTurnCompleted TurnEventType = "turn.completed"
	// EventTurnFailed indicates a turn failed upstream.
	EventTurnFailed TurnEventType = "turn.failed"
	// EventItemStarted indicates an item started.
	EventItemStarted TurnEventType = "item.started"
	// EventItemUpdated indicates an item updated.
	EventItemUpdated TurnEventType = "item.updated"
	// EventItemCompleted indicates an item completed.
	EventItemCompleted TurnEventType = "item.completed"
	// EventStderr carries executor stderr captured after a non-zero exit.
	EventStderr TurnEventType = "stderr"
	// EventLog carries a non-JSON executor output line.
	EventLog TurnEventType = "log"
	// EventError carries a stream-level error.
	EventError TurnEventType = "error"
	// EventDone terminates the stream with the turn outcome.
	EventDone TurnEventType = "done"
)

// ItemType describes the item payload type in item.* events.
type ItemType string

const (
	// ItemAgentMessage represents assistant output.
	ItemAgentMessage ItemType = "agent_message"
	// ItemReasoning represents reasoning content.
	ItemReasoning ItemType = "reasoning"
	// ItemCommandExecution represents a command execution item.
	ItemCommandExecution ItemType = "command_execution"
	// ItemFileChange represents a file change item.
	ItemFileChange ItemType = "file_change"
	// ItemMcpToolCall represents an MCP tool call item.
	ItemMcpToolCall ItemType = "mcp_tool_call"
	// ItemWebSearch represents a web search item.
	ItemWebSearch ItemType = "web_search"
	// ItemTodoList represents a todo list item.
	ItemTodoList ItemType = "todo_list"
)

// TurnEvent is the decoded shape of one turn stream record. Records with an
// unrecognized Type still decode into a TurnEvent so callers can log them.
type TurnEvent struct {
	Type     TurnEventType `json:"type"`
	ThreadID ThreadID      `json:"thread_id,omitempty"`
	Usage    *TurnUsage    `json:"usage,omitempty"`
	Item     *TurnItem     `json:"item,omitempty"`
	Error    *TurnError    `json:"error,omitempty"`
	Message  string        `json:"message,omitempty"`

	// Fields carried only by the terminating done record.
	DoneThreadID  ThreadID `json:"threadId,omitempty"`
	FinalResponse string   `json:"finalResponse,omitempty"`
	ReturnCode    *int     `json:"returnCode,omitempty"`

	Raw json.RawMessage `json:"-"`
}

// TurnUsage captures token usage reported with turn.completed.
type TurnUsage struct {
	InputTokens       int `json:"input_tokens,omitempty"`
	CachedInputTokens int `json:"cached_input_tokens,omitempty"`
	OutputTokens      int `json:"output_tokens,omitempty"`
}

// TurnItem captures item payloads from item.* events.
type TurnItem struct {
	ID       string   `json:"id,omitempty"`
	Type     ItemType `json:"type,omitempty"`
	Text     string   `json:"text,omitempty"`
	Name     string   `json:"name,omitempty"`
	ToolName string   `json:"tool_name,omitempty"`
	Command  string   `json:"command,omitempty"`
	ExitCode *int     `json:"exit_code,omitempty"`
	Status   string   `json:"status,omitempty"`
	Query    string   `json:"query,omitempty"`
}

// TurnError captures stream-level error payloads.
type TurnError struct {
	Message string `json:"message,omitempty"`
}

// SessionEventType describes session lifecycle events emitted to sinks.
type SessionEventType string

const (
	// SessionCreated indicates a session was created.
	SessionCreated SessionEventType = "created"
	// SessionClosed indicates a session was closed.
	SessionClosed SessionEventType = "closed"
	// SessionActivated indicates a session became active in its scope.
	SessionActivated SessionEventType = "activated"
	// SessionDisconnected indicates a session's transport ended.
	SessionDisconnected SessionEventType = "disconnected"
)

// SessionEvent reports a session lifecycle change.
type SessionEvent struct {
	Type    SessionEventType
	Session SessionSnapshot
	// Reason carries a diagnostic for disconnected events.
	Reason string
}

// LayoutEvent reports the result of a layout pass.
type LayoutEvent struct {
	Layout LayoutSnapshot
}
