package cook

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
)

// hashLen is how many hex characters of the SHA-256 digest identify a
// message or tool. 64 bits is plenty for the table sizes a single capture
// log produces.
const hashLen = 16

// canonicalJSON renders v deterministically: object keys sorted (the
// encoder's map behaviour) and HTML escaping off so the same text always
// hashes the same.
func canonicalJSON(v any) []byte {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte("\n"))
}

func hashValue(v any) string {
	sum := sha256.Sum256(canonicalJSON(v))
	return hex.EncodeToString(sum[:])[:hashLen]
}

// messageHash identifies a message by its canonical fields, with
// unspecified fields encoded as null so "no value" and "zero value" agree
// across dialects.
func messageHash(m *Message) string {
	var calls any
	if m.ToolCalls != nil {
		list := make([]any, 0, len(m.ToolCalls))
		for _, tc := range m.ToolCalls {
			list = append(list, map[string]any{
				"name":      tc.Name,
				"arguments": tc.Arguments,
				"id":        tc.ID,
			})
		}
		calls = list
	}
	var toolUseID any
	if m.ToolUseID != "" {
		toolUseID = m.ToolUseID
	}
	var isError any
	if m.IsError != nil {
		isError = *m.IsError
	}
	return hashValue(map[string]any{
		"role":        m.Role,
		"content":     m.Content,
		"tool_calls":  calls,
		"tool_use_id": toolUseID,
		"is_error":    isError,
	})
}

// toolHash identifies a tool definition by name, description, and schema.
func toolHash(t *Tool) string {
	return hashValue(map[string]any{
		"name":        t.Name,
		"description": t.Description,
		"parameters":  t.Parameters,
	})
}
