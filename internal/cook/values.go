package cook

import (
	"encoding/json"
	"strings"
)

// Trace record bodies are stored as decoded JSON, so the cook works over
// generic values. These accessors keep the type assertions in one place;
// each returns the zero value when the shape does not match.

func mapValue(v any) map[string]any {
	m, _ := v.(map[string]any)
	return m
}

func sliceValue(v any) []any {
	s, _ := v.([]any)
	return s
}

func stringValue(v any) string {
	s, _ := v.(string)
	return s
}

func boolValue(v any) bool {
	b, _ := v.(bool)
	return b
}

// textContent flattens a message content value to plain text. A string is
// returned as-is; a block list concatenates text parts in order, replacing
// every image part with the literal "[image]". Anything else becomes "".
func textContent(v any) string {
	switch content := v.(type) {
	case string:
		return content
	case []any:
		var b strings.Builder
		for _, raw := range content {
			part := mapValue(raw)
			if part == nil {
				continue
			}
			switch stringValue(part["type"]) {
			case "text":
				b.WriteString(stringValue(part["text"]))
			case "image", "image_url":
				b.WriteString("[image]")
			}
		}
		return b.String()
	}
	return ""
}

// parseToolArguments decodes a tool-argument JSON string. Empty input means
// a call with no arguments, so it normalises to the empty object; strings
// that fail to parse are preserved under a "raw" key rather than dropped.
func parseToolArguments(s string) any {
	if strings.TrimSpace(s) == "" {
		return map[string]any{}
	}
	var v any
	if err := json.Unmarshal([]byte(s), &v); err != nil {
		return map[string]any{"raw": s}
	}
	return v
}

// schemaOrEmpty returns a tool parameter schema, defaulting to the empty
// object when the definition carried none.
func schemaOrEmpty(v any) any {
	if v == nil {
		return map[string]any{}
	}
	return v
}
