// Package trace implements the capture log: an append-only JSONL file of
// proxied LLM request/response pairs, plus tolerant readers and an in-memory
// query index over it.
package trace

import (
	"time"

	"github.com/google/uuid"
)

// Record is a single captured upstream call. The proxy creates one record per
// request at arrival time and fills in the response side when the upstream
// body has been fully consumed.
//
// Request holds the decoded JSON body when the body was JSON, otherwise a
// {"content_type": ..., "raw": ...} wrapper. Response holds the decoded
// upstream body, a {"stream": true, "sse_lines": [...]} wrapper for SSE, or
// a {"raw": ...} wrapper for non-JSON bodies; it stays nil when the call
// failed before any response arrived.
type Record struct {
	ID         string `json:"id"`
	Timestamp  string `json:"timestamp"`
	Request    any    `json:"request"`
	Response   any    `json:"response"`
	DurationMS int64  `json:"duration_ms"`
	Error      string `json:"error,omitempty"`
}

// NewRecord creates a record with a fresh UUID and the current UTC time,
// carrying the given request body.
func NewRecord(request any) *Record {
	return &Record{
		ID:        uuid.NewString(),
		Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
		Request:   request,
	}
}

// Time parses the record timestamp. Returns the zero time when the
// timestamp is missing or malformed.
func (r *Record) Time() time.Time {
	t, err := time.Parse(time.RFC3339Nano, r.Timestamp)
	if err != nil {
		return time.Time{}
	}
	return t
}

// Model digs the model name out of the request body. Returns "" when the
// request is not a JSON object or carries no model field.
func (r *Record) Model() string {
	req, ok := r.Request.(map[string]any)
	if !ok {
		return ""
	}
	model, _ := req["model"].(string)
	return model
}
