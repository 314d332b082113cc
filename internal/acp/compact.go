package acp

import (
	"bytes"
	"encoding/json"
)

// CompactHistory rewrites a chat's event log per §4.5.6: consecutive
// MessageChunks merge into one, consecutive ThoughtChunks merge into one,
// and ToolCall+ToolCallUpdate pairs sharing an id collapse into exactly
// one ToolCall (final title/locations) followed by one ToolCallUpdate
// (final status/content/locations). Flush order preserves the first
// appearance of each group. Orphan ToolCallUpdates (no matching ToolCall
// in the buffer) pass through unchanged. Idempotent: compacting an
// already-compacted log returns it unchanged.
func CompactHistory(events []Event) []Event {
	var out []Event
	var msgBuf, thoughtBuf *Event
	toolCalls := map[string]*Event{}       // id -> buffered ToolCall
	toolUpdates := map[string]*Event{}     // id -> buffered ToolCallUpdate
	var order []string                     // first-appearance order of tool-call ids pending flush
	seenOrder := map[string]bool{}

	flushText := func() {
		if msgBuf != nil {
			out = append(out, *msgBuf)
			msgBuf = nil
		}
		if thoughtBuf != nil {
			out = append(out, *thoughtBuf)
			thoughtBuf = nil
		}
	}
	flushTools := func() {
		for _, id := range order {
			if tc, ok := toolCalls[id]; ok {
				out = append(out, *tc)
			}
			if tu, ok := toolUpdates[id]; ok {
				out = append(out, *tu)
			}
		}
		toolCalls = map[string]*Event{}
		toolUpdates = map[string]*Event{}
		order = nil
		seenOrder = map[string]bool{}
	}
	flushAll := func() {
		flushText()
		flushTools()
	}

	for _, e := range events {
		switch e.Kind {
		case KindMessageChunk:
			flushTools()
			if thoughtBuf != nil {
				out = append(out, *thoughtBuf)
				thoughtBuf = nil
			}
			if msgBuf != nil {
				msgBuf.Text += e.Text
			} else {
				c := e
				msgBuf = &c
			}
		case KindThoughtChunk:
			flushTools()
			if msgBuf != nil {
				out = append(out, *msgBuf)
				msgBuf = nil
			}
			if thoughtBuf != nil {
				thoughtBuf.Text += e.Text
			} else {
				c := e
				thoughtBuf = &c
			}
		case KindToolCall:
			flushText()
			c := e
			toolCalls[e.ToolCallID] = &c
			if !seenOrder[e.ToolCallID] {
				order = append(order, e.ToolCallID)
				seenOrder[e.ToolCallID] = true
			}
		case KindToolCallUpdate:
			flushText()
			if _, ok := toolCalls[e.ToolCallID]; !ok {
				// Orphan update: no buffered ToolCall for this id. Pass
				// through immediately rather than buffering indefinitely.
				out = append(out, e)
				continue
			}
			c := e
			toolUpdates[e.ToolCallID] = &c
			if !seenOrder[e.ToolCallID] {
				order = append(order, e.ToolCallID)
				seenOrder[e.ToolCallID] = true
			}
		default:
			flushAll()
			out = append(out, e)
		}
	}
	flushAll()
	return out
}

// EncodeJSONL serialises events as newline-delimited JSON.
func EncodeJSONL(events []Event) ([]byte, error) {
	var buf bytes.Buffer
	for _, e := range events {
		data, err := json.Marshal(e)
		if err != nil {
			return nil, err
		}
		buf.Write(data)
		buf.WriteByte('\n')
	}
	return buf.Bytes(), nil
}

// DecodeJSONL parses a chat history JSONL blob into events.
func DecodeJSONL(data []byte) ([]Event, error) {
	var events []Event
	dec := json.NewDecoder(bytes.NewReader(data))
	for {
		var e Event
		if err := dec.Decode(&e); err != nil {
			break
		}
		events = append(events, e)
	}
	return events, nil
}
