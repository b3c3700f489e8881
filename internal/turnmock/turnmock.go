// Package turnmock serves scripted NDJSON turn streams for development and
// testing without a real agent backend.
package turnmock

import (
	"context"
	"encoding/binary"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"hash/fnv"
	"net/http"
	"strings"
	"time"

	"pkt.systems/pslog"
	"pkt.systems/termdeck/schema"
)

// Config configures the mock endpoint.
type Config struct {
	// Delay is the pause between stream records. Zero means 30ms.
	Delay time.Duration
	// APIKey, when set, requires a matching Authorization bearer token.
	// Requests without it get a 401, which exercises auth remediation.
	APIKey string
	Logger pslog.Logger
}

// Handler streams mock turns. One POST produces one complete NDJSON stream.
type Handler struct {
	delay  time.Duration
	apiKey string
	logger pslog.Logger
}

// New constructs a Handler.
func New(cfg Config) *Handler {
	delay := cfg.Delay
	if delay <= 0 {
		delay = 30 * time.Millisecond
	}
	logger := cfg.Logger
	if logger == nil {
		logger = pslog.Ctx(context.Background())
	}
	return &Handler{delay: delay, apiKey: cfg.APIKey, logger: logger}
}

// ServeHTTP implements http.Handler.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if h.apiKey != "" && r.Header.Get("Authorization") != "Bearer "+h.apiKey {
		h.logger.Warn("turn mock rejected request", "remote", r.RemoteAddr)
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	var req schema.TurnRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		http.Error(w, "message is required", http.StatusBadRequest)
		return
	}

	name, seed := pickScenario(req)
	threadID := req.ThreadID
	if threadID == "" {
		threadID = mockThreadID(seed)
	}
	h.logger.Info("turn mock stream started", "scenario", name, "thread", string(threadID))

	w.Header().Set("Content-Type", "application/x-ndjson")
	w.WriteHeader(http.StatusOK)
	stream := &streamWriter{w: w, ctx: r.Context(), delay: h.delay}

	stream.event(map[string]any{"type": "thread.started", "thread_id": threadID})
	stream.event(map[string]any{"type": "turn.started"})

	answer, failed := runScenario(name, seed, req, stream)

	if stream.err != nil {
		h.logger.Debug("turn mock stream aborted", "scenario", name, "error", stream.err)
		return
	}
	if failed {
		stream.write(map[string]any{
			"type":       "done",
			"threadId":   threadID,
			"returnCode": 1,
		})
		return
	}
	stream.event(map[string]any{
		"type": "turn.completed",
		"usage": map[string]any{
			"input_tokens":        len(req.Message) + 12,
			"cached_input_tokens": len(req.Message) / 3,
			"output_tokens":       int(20 + seed%50),
		},
	})
	stream.write(map[string]any{
		"type":          "done",
		"threadId":      threadID,
		"finalResponse": answer,
		"returnCode":    0,
	})
}

// pickScenario selects a scenario from an explicit "scenario:<name>" message
// prefix, falling back to a stable hash of the request.
func pickScenario(req schema.TurnRequest) (string, uint64) {
	seed := hashSeed(req)
	names := []string{"summary", "command", "filechange", "websearch", "todo", "failure"}
	if rest, ok := strings.CutPrefix(req.Message, "scenario:"); ok {
		name, _, _ := strings.Cut(rest, " ")
		for _, candidate := range names {
			if candidate == name {
				return candidate, seed
			}
		}
	}
	return names[seed%uint64(len(names))], seed
}

func hashSeed(req schema.TurnRequest) uint64 {
	hasher := fnv.New64a()
	_, _ = hasher.Write([]byte(req.Message))
	_, _ = hasher.Write([]byte(req.ThreadID))
	_, _ = hasher.Write([]byte(req.Model))
	return hasher.Sum64()
}

func mockThreadID(seed uint64) schema.ThreadID {
	var buf [16]byte
	binary.LittleEndian.PutUint64(buf[0:8], seed)
	binary.LittleEndian.PutUint64(buf[8:16], seed^0x9e3779b97f4a7c15)
	return schema.ThreadID("mock-" + hex.EncodeToString(buf[:]))
}

func runScenario(name string, seed uint64, req schema.TurnRequest, stream *streamWriter) (answer string, failed bool) {
	switch name {
	case "command":
		exit := 0
		stream.item("item.started", map[string]any{
			"id": "item_0", "type": "command_execution",
			"command": "bash -lc ls", "status": "in_progress",
		})
		stream.item("item.completed", map[string]any{
			"id": "item_0", "type": "command_execution",
			"command": "bash -lc ls", "exit_code": exit, "status": "completed",
		})
		answer = "Command finished. Here is a brief summary of the output."
	case "filechange":
		stream.item("item.completed", map[string]any{
			"id": "item_0", "type": "file_change", "status": "completed",
		})
		answer = "Updated documentation and added a stub main file."
	case "websearch":
		stream.item("item.started", map[string]any{
			"id": "item_0", "type": "web_search", "query": "golang ndjson streaming",
		})
		stream.item("item.completed", map[string]any{
			"id": "item_0", "type": "web_search", "query": "golang ndjson streaming",
		})
		answer = "Found a few approaches; recommending bufio.Reader with ReadBytes."
	case "todo":
		stream.item("item.started", map[string]any{
			"id": "item_0", "type": "todo_list",
		})
		stream.item("item.completed", map[string]any{
			"id": "item_0", "type": "todo_list",
		})
		answer = "All checklist items complete. Summary follows."
	case "failure":
		stream.item("item.completed", map[string]any{
			"id": "item_0", "type": "reasoning",
			"text": "Attempting operation that will fail.",
		})
		stream.event(map[string]any{
			"type":  "turn.failed",
			"error": map[string]any{"message": "mock failure: simulated turn error"},
		})
		return "", true
	default: // summary
		stream.item("item.completed", map[string]any{
			"id": "item_0", "type": "reasoning",
			"text": "Summarizing repo state before answering.",
		})
		answer = mockAnswer(seed, req.Message)
	}
	stream.item("item.completed", map[string]any{
		"id": "item_1", "type": "agent_message", "text": answer,
	})
	return answer, false
}

func mockAnswer(seed uint64, message string) string {
	templates := []string{
		"Mock response: handled request %q.",
		"Mock response: completed task for %q.",
		"Mock response: produced summary for %q.",
		"Mock response: generated output for %q.",
	}
	idx := int(seed % uint64(len(templates)))
	return fmt.Sprintf(templates[idx], message)
}

// streamWriter emits NDJSON records with flushing and cancellation checks.
// The first error sticks and suppresses further writes.
type streamWriter struct {
	w     http.ResponseWriter
	ctx   context.Context
	delay time.Duration
	err   error
}

func (s *streamWriter) item(eventType string, item map[string]any) {
	s.event(map[string]any{"type": eventType, "item": item})
}

// event writes a record and then pauses for the configured delay.
func (s *streamWriter) event(record map[string]any) {
	s.write(record)
	if s.err != nil {
		return
	}
	select {
	case <-s.ctx.Done():
		s.err = s.ctx.Err()
	case <-time.After(s.delay):
	}
}

func (s *streamWriter) write(record map[string]any) {
	if s.err != nil {
		return
	}
	if err := s.ctx.Err(); err != nil {
		s.err = err
		return
	}
	data, err := json.Marshal(record)
	if err != nil {
		s.err = err
		return
	}
	if _, err := s.w.Write(append(data, '\n')); err != nil {
		s.err = err
		return
	}
	if flusher, ok := s.w.(http.Flusher); ok {
		flusher.Flush()
	}
}
