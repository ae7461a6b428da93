package cook

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Message is a deduplicated canonical message with a stable short id.
//
// The role discriminates which optional fields apply:
//   - "tool_use":    ToolCalls is set
//   - "tool_result": ToolUseID and IsError are set
//   - everything else carries only Content
type Message struct {
	ID        string     `json:"id"`
	Role      string     `json:"role"` // system | user | assistant | tool_use | tool_result | thinking
	Content   string     `json:"content"`
	ToolCalls []ToolCall `json:"tool_calls,omitempty"`
	ToolUseID string     `json:"tool_use_id,omitempty"`
	IsError   *bool      `json:"is_error,omitempty"`
}

// ToolCall is one tool invocation inside a tool_use message. Arguments is
// the decoded argument object; argument strings that fail to parse as JSON
// are wrapped as {"raw": s}.
type ToolCall struct {
	Name      string `json:"name"`
	Arguments any    `json:"arguments"`
	ID        string `json:"id"`
}

// Tool is a deduplicated tool definition with a stable short id.
type Tool struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Parameters  any    `json:"parameters"`
}

// Request is one cooked trace record. All message and tool references are
// ids resolving within the same Artifact; ParentID is nil for forest roots.
// Error flags records that could not be fully cooked or whose upstream call
// failed.
type Request struct {
	ID               string   `json:"id"`
	ParentID         *string  `json:"parent_id"`
	Timestamp        int64    `json:"timestamp"` // epoch milliseconds
	RequestMessages  []string `json:"request_messages"`
	ResponseMessages []string `json:"response_messages"`
	Model            string   `json:"model"`
	Tools            []string `json:"tools"`
	DurationMS       int64    `json:"duration_ms"`
	Error            string   `json:"error,omitempty"`
}

// Artifact is the derived document consumed by the viewer.
type Artifact struct {
	Messages []Message `json:"messages"`
	Tools    []Tool    `json:"tools"`
	Requests []Request `json:"requests"`
}

// WriteFile writes the artifact as indented JSON, atomically replacing path.
// The document is staged in a temp file in the target directory and renamed
// into place so readers never observe a half-written artifact.
func (a *Artifact) WriteFile(path string) error {
	dir := filepath.Dir(path)
	if dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating output directory %s: %w", dir, err)
		}
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("creating temp artifact: %w", err)
	}
	defer os.Remove(tmp.Name())

	enc := json.NewEncoder(tmp)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(a); err != nil {
		tmp.Close()
		return fmt.Errorf("encoding artifact: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("flushing artifact: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing temp artifact: %w", err)
	}

	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("replacing artifact %s: %w", path, err)
	}
	return nil
}

// ReadFile loads an artifact written by WriteFile.
func ReadFile(path string) (*Artifact, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading artifact %s: %w", path, err)
	}
	var a Artifact
	if err := json.Unmarshal(data, &a); err != nil {
		return nil, fmt.Errorf("parsing artifact %s: %w", path, err)
	}
	return &a, nil
}
