package cook

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/llmpath/llmpath/internal/trace"
)

// Dialect identifies which provider wire convention a trace record follows.
type Dialect int

const (
	DialectOpenAI Dialect = iota
	DialectClaude
)

func (d Dialect) String() string {
	switch d {
	case DialectOpenAI:
		return "openai"
	case DialectClaude:
		return "claude"
	default:
		return "unknown"
	}
}

// Format selects how records are classified during a cook run. Auto detects
// per record; the other two force a single dialect for every record.
type Format int

const (
	FormatAuto Format = iota
	FormatOpenAI
	FormatClaude
)

// ParseFormat parses the --format flag value.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(s) {
	case "", "auto":
		return FormatAuto, nil
	case "openai":
		return FormatOpenAI, nil
	case "claude":
		return FormatClaude, nil
	default:
		return FormatAuto, fmt.Errorf("unknown format %q (want auto, openai, or claude)", s)
	}
}

// claudeEventTypes are the streaming payload types emitted by the Claude
// Messages API. OpenAI streams carry none of these.
var claudeEventTypes = map[string]bool{
	"message_start":       true,
	"content_block_start": true,
	"content_block_delta": true,
	"message_delta":       true,
	"message_stop":        true,
}

// claudeBlockTypes are request content block types that only the Claude
// convention produces.
var claudeBlockTypes = map[string]bool{
	"tool_use":    true,
	"tool_result": true,
	"thinking":    true,
}

// DetectDialect classifies one record as Claude or OpenAI. The record is
// Claude when any of the following holds, and OpenAI otherwise:
//
//  1. a streamed response contains a Claude event type
//  2. the request "system" field is a list of blocks
//  3. the first tool definition carries "input_schema"
//  4. any request message contains a tool_use, tool_result, or thinking block
func DetectDialect(rec *trace.Record) Dialect {
	if lines, ok := sseLines(rec.Response); ok {
		for _, line := range lines {
			data, ok := strings.CutPrefix(line, "data:")
			if !ok {
				continue
			}
			var payload struct {
				Type string `json:"type"`
			}
			if err := json.Unmarshal([]byte(strings.TrimSpace(data)), &payload); err != nil {
				continue
			}
			if claudeEventTypes[payload.Type] {
				return DialectClaude
			}
		}
	}

	req := mapValue(rec.Request)
	if _, ok := req["system"].([]any); ok {
		return DialectClaude
	}
	if tools := sliceValue(req["tools"]); len(tools) > 0 {
		if first := mapValue(tools[0]); first != nil {
			if _, ok := first["input_schema"]; ok {
				return DialectClaude
			}
		}
	}
	for _, raw := range sliceValue(req["messages"]) {
		for _, rawBlock := range sliceValue(mapValue(raw)["content"]) {
			if claudeBlockTypes[stringValue(mapValue(rawBlock)["type"])] {
				return DialectClaude
			}
		}
	}
	return DialectOpenAI
}

// sseLines unwraps the stored line list of a streamed response. The proxy
// stores streamed bodies as {"stream": true, "sse_lines": [...]}; after a
// round trip through JSON the list decodes as []any.
func sseLines(resp any) ([]string, bool) {
	m := mapValue(resp)
	if m == nil || !boolValue(m["stream"]) {
		return nil, false
	}
	switch v := m["sse_lines"].(type) {
	case []string:
		return v, true
	case []any:
		lines := make([]string, 0, len(v))
		for _, e := range v {
			if s, ok := e.(string); ok {
				lines = append(lines, s)
			}
		}
		return lines, true
	}
	return nil, true
}
