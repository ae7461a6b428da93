// Package cook normalises raw capture logs into the deduplicated artifact
// the viewer and downstream tools consume.
//
// Each trace record is classified as OpenAI or Claude dialect, streamed
// responses are reassembled from their stored SSE lines, and both dialects
// translate into one canonical message and tool model. Identical messages
// and tool definitions across records intern to a single table entry, so a
// conversation replayed call after call stores each turn once.
package cook

import (
	"fmt"
	"log/slog"

	"github.com/llmpath/llmpath/internal/trace"
)

// Cooker interns messages and tools across records and accumulates the
// artifact. The zero value is not usable; call NewCooker.
type Cooker struct {
	messageIDs map[string]string // canonical hash -> message id
	toolIDs    map[string]string // canonical hash -> tool id
	artifact   Artifact
}

func NewCooker() *Cooker {
	return &Cooker{
		messageIDs: make(map[string]string),
		toolIDs:    make(map[string]string),
		artifact: Artifact{
			Messages: []Message{},
			Tools:    []Tool{},
			Requests: []Request{},
		},
	}
}

// addMessage interns a canonical message and returns its id. Ids are handed
// out in first-seen order, so identical inputs always produce identical
// tables.
func (c *Cooker) addMessage(m Message) string {
	h := messageHash(&m)
	if id, ok := c.messageIDs[h]; ok {
		return id
	}
	m.ID = fmt.Sprintf("m%d", len(c.artifact.Messages))
	c.messageIDs[h] = m.ID
	c.artifact.Messages = append(c.artifact.Messages, m)
	return m.ID
}

// addTool interns a tool definition and returns its id.
func (c *Cooker) addTool(t Tool) string {
	h := toolHash(&t)
	if id, ok := c.toolIDs[h]; ok {
		return id
	}
	t.ID = fmt.Sprintf("t%d", len(c.artifact.Tools))
	c.toolIDs[h] = t.ID
	c.artifact.Tools = append(c.artifact.Tools, t)
	return t.ID
}

// cookedCall carries one record's resolved references while it is being
// translated.
type cookedCall struct {
	requestMessages  []string
	responseMessages []string
	tools            []string
	toolSeen         map[string]bool
}

func newCookedCall() cookedCall {
	return cookedCall{
		requestMessages:  []string{},
		responseMessages: []string{},
		tools:            []string{},
		toolSeen:         make(map[string]bool),
	}
}

// addTool records a tool reference, keeping the per-call list a set.
func (call *cookedCall) addTool(id string) {
	if call.toolSeen[id] {
		return
	}
	call.toolSeen[id] = true
	call.tools = append(call.tools, id)
}

// CookRecord translates one trace record into a request slot. Records that
// cannot be translated still produce a slot, flagged with an error, so the
// artifact keeps one entry per captured call no matter what came over the
// wire.
func (c *Cooker) CookRecord(rec *trace.Record, format Format) Request {
	out := Request{
		ID:               rec.ID,
		RequestMessages:  []string{},
		ResponseMessages: []string{},
		Tools:            []string{},
		DurationMS:       rec.DurationMS,
	}
	if t := rec.Time(); !t.IsZero() {
		out.Timestamp = t.UnixMilli()
	}

	req := mapValue(rec.Request)
	if req == nil {
		out.Error = "request body is not a JSON object"
		slog.Warn("cook: skipping unparseable record", "id", rec.ID)
		return out
	}

	dialect := DetectDialect(rec)
	switch format {
	case FormatOpenAI:
		dialect = DialectOpenAI
	case FormatClaude:
		dialect = DialectClaude
	}

	resp := rec.Response
	if lines, ok := sseLines(resp); ok {
		if dialect == DialectClaude {
			resp = reassembleClaude(lines)
		} else {
			resp = reassembleOpenAI(lines)
		}
	}
	respMap := mapValue(resp)

	var call cookedCall
	if dialect == DialectClaude {
		call = c.cookClaudeRequest(req)
	} else {
		call = c.cookOpenAIRequest(req)
	}
	out.RequestMessages = call.requestMessages
	out.Tools = call.tools

	out.Model = stringValue(respMap["model"])
	if out.Model == "" {
		out.Model = stringValue(req["model"])
	}

	if rec.Error != "" {
		out.Error = rec.Error
		out.ResponseMessages = []string{c.addMessage(Message{
			Role:    "assistant",
			Content: "Error: " + rec.Error,
		})}
		return out
	}
	if dialect == DialectClaude {
		out.ResponseMessages = c.cookClaudeResponse(respMap)
	} else {
		out.ResponseMessages = c.cookOpenAIResponse(respMap)
	}
	return out
}

// Artifact returns the accumulated artifact.
func (c *Cooker) Artifact() *Artifact {
	return &c.artifact
}

// Cook translates records in file order. The output is deterministic: the
// same records always yield byte-identical artifacts.
func Cook(records []trace.Record, format Format) *Artifact {
	c := NewCooker()
	for i := range records {
		slot := c.CookRecord(&records[i], format)
		c.artifact.Requests = append(c.artifact.Requests, slot)
	}
	return c.Artifact()
}
