package cook

import "encoding/json"

// claudeEvent covers every Claude streaming payload the reassembler
// consumes. The wire multiplexes several event shapes through one envelope;
// which fields are set depends on the "type" value.
type claudeEvent struct {
	Type    string `json:"type"`
	Index   int    `json:"index"`
	Message *struct {
		ID    string `json:"id"`
		Model string `json:"model"`
		Role  string `json:"role"`
	} `json:"message"`
	ContentBlock *struct {
		Type string `json:"type"`
		ID   string `json:"id"`
		Name string `json:"name"`
		Text string `json:"text"`
	} `json:"content_block"`
	Delta *struct {
		Type        string `json:"type"`
		Text        string `json:"text"`
		Thinking    string `json:"thinking"`
		Signature   string `json:"signature"`
		PartialJSON string `json:"partial_json"`
		StopReason  string `json:"stop_reason"`
	} `json:"delta"`
}

// claudeBlock accumulates one content block across its delta events.
type claudeBlock struct {
	blockType   string
	id          string
	name        string
	text        string
	thinking    string
	signature   string
	partialJSON string
}

// reassembleClaude rebuilds the non-streaming Messages response from stored
// stream lines. Blocks are tracked by stream index: text and thinking
// deltas concatenate, and tool input fragments accumulate as partial_json
// until the block completes, at which point the pieces parse as one JSON
// document. Events that fail to parse are skipped.
func reassembleClaude(lines []string) map[string]any {
	blocks := make(map[int]*claudeBlock)
	maxIndex := -1

	var id, model, role, stopReason string
	for _, event := range parseSSELines(lines) {
		if event.Data == "" {
			continue
		}
		var ev claudeEvent
		if err := json.Unmarshal([]byte(event.Data), &ev); err != nil {
			continue
		}
		switch ev.Type {
		case "message_start":
			if ev.Message != nil {
				id = ev.Message.ID
				model = ev.Message.Model
				role = ev.Message.Role
			}
		case "content_block_start":
			if ev.ContentBlock == nil {
				continue
			}
			blocks[ev.Index] = &claudeBlock{
				blockType: ev.ContentBlock.Type,
				id:        ev.ContentBlock.ID,
				name:      ev.ContentBlock.Name,
				text:      ev.ContentBlock.Text,
			}
			if ev.Index > maxIndex {
				maxIndex = ev.Index
			}
		case "content_block_delta":
			block := blocks[ev.Index]
			if block == nil || ev.Delta == nil {
				continue
			}
			switch ev.Delta.Type {
			case "text_delta":
				block.text += ev.Delta.Text
			case "thinking_delta":
				block.thinking += ev.Delta.Thinking
			case "signature_delta":
				block.signature += ev.Delta.Signature
			case "input_json_delta":
				block.partialJSON += ev.Delta.PartialJSON
			}
		case "message_delta":
			if ev.Delta != nil && ev.Delta.StopReason != "" {
				stopReason = ev.Delta.StopReason
			}
		}
	}

	content := make([]any, 0, len(blocks))
	for i := 0; i <= maxIndex; i++ {
		block, ok := blocks[i]
		if !ok {
			continue
		}
		switch block.blockType {
		case "text":
			content = append(content, map[string]any{"type": "text", "text": block.text})
		case "thinking":
			b := map[string]any{"type": "thinking", "thinking": block.thinking}
			if block.signature != "" {
				b["signature"] = block.signature
			}
			content = append(content, b)
		case "tool_use":
			content = append(content, map[string]any{
				"type":  "tool_use",
				"id":    block.id,
				"name":  block.name,
				"input": parseToolArguments(block.partialJSON),
			})
		default:
			content = append(content, map[string]any{"type": block.blockType})
		}
	}

	if role == "" {
		role = "assistant"
	}
	out := map[string]any{
		"id":      id,
		"model":   model,
		"role":    role,
		"content": content,
	}
	if stopReason != "" {
		out["stop_reason"] = stopReason
	}
	return out
}
