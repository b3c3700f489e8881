// Package turnwire decodes the newline-delimited JSON event stream produced
// by an agent turn endpoint.
package turnwire

import (
	"bytes"
	"encoding/json"

	"pkt.systems/termdeck/schema"
)

// Decoder splits an incrementally delivered byte stream into turn events.
// Network chunking may cut a record anywhere; the trailing partial line is
// buffered between Feed calls.
type Decoder struct {
	pending []byte
}

// NewDecoder constructs an empty decoder.
func NewDecoder() *Decoder {
	return &Decoder{}
}

// Feed appends chunk to the internal buffer and returns all events decoded
// from complete lines. Lines that are blank or not valid JSON are dropped.
// Records with an unrecognized type tag are returned as-is so callers can
// still log them.
func (d *Decoder) Feed(chunk []byte) []schema.TurnEvent {
	if len(chunk) > 0 {
		d.pending = append(d.pending, chunk...)
	}
	var events []schema.TurnEvent
	for {
		idx := bytes.IndexByte(d.pending, '\n')
		if idx < 0 {
			break
		}
		line := d.pending[:idx]
		d.pending = d.pending[idx+1:]
		if event, ok := decodeLine(line); ok {
			events = append(events, event)
		}
	}
	return events
}

// Flush decodes any buffered trailing line as if the stream had ended with a
// newline. Call once after the stream closes.
func (d *Decoder) Flush() []schema.TurnEvent {
	if len(d.pending) == 0 {
		return nil
	}
	line := d.pending
	d.pending = nil
	if event, ok := decodeLine(line); ok {
		return []schema.TurnEvent{event}
	}
	return nil
}

func decodeLine(line []byte) (schema.TurnEvent, bool) {
	line = bytes.TrimSpace(line)
	if len(line) == 0 {
		return schema.TurnEvent{}, false
	}
	var event schema.TurnEvent
	if err := json.Unmarshal(line, &event); err != nil {
		return schema.TurnEvent{}, false
	}
	event.Raw = append([]byte(nil), line...)
	return event, true
}
