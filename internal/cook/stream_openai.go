package cook

import "encoding/json"

// openaiChunk is the subset of one OpenAI streaming payload the reassembler
// consumes. Tool call fragments arrive keyed by index, with the function
// arguments split across chunks as string pieces.
type openaiChunk struct {
	ID      string `json:"id"`
	Model   string `json:"model"`
	Choices []struct {
		Delta struct {
			Role      string `json:"role"`
			Content   string `json:"content"`
			ToolCalls []struct {
				Index    int    `json:"index"`
				ID       string `json:"id"`
				Function struct {
					Name      string `json:"name"`
					Arguments string `json:"arguments"`
				} `json:"function"`
			} `json:"tool_calls"`
		} `json:"delta"`
		FinishReason *string `json:"finish_reason"`
	} `json:"choices"`
}

// reassembleOpenAI rebuilds the non-streaming chat completion shape from
// stored stream lines: content deltas concatenate in arrival order and tool
// call fragments accumulate per index. Chunks that fail to parse are
// skipped; a degraded stream still yields whatever was received.
func reassembleOpenAI(lines []string) map[string]any {
	type toolCallAccum struct {
		id        string
		name      string
		arguments string
	}
	calls := make(map[int]*toolCallAccum)
	maxIndex := -1

	var id, model, role, content, finishReason string
	for _, event := range parseSSELines(lines) {
		if event.Data == "" || event.Data == "[DONE]" {
			continue
		}
		var chunk openaiChunk
		if err := json.Unmarshal([]byte(event.Data), &chunk); err != nil {
			continue
		}
		if id == "" {
			id = chunk.ID
		}
		if model == "" {
			model = chunk.Model
		}
		if len(chunk.Choices) == 0 {
			continue
		}
		choice := chunk.Choices[0]
		if role == "" {
			role = choice.Delta.Role
		}
		content += choice.Delta.Content
		if choice.FinishReason != nil && *choice.FinishReason != "" {
			finishReason = *choice.FinishReason
		}
		for _, tc := range choice.Delta.ToolCalls {
			accum := calls[tc.Index]
			if accum == nil {
				accum = &toolCallAccum{}
				calls[tc.Index] = accum
				if tc.Index > maxIndex {
					maxIndex = tc.Index
				}
			}
			if tc.ID != "" {
				accum.id = tc.ID
			}
			if tc.Function.Name != "" {
				accum.name = tc.Function.Name
			}
			accum.arguments += tc.Function.Arguments
		}
	}

	if role == "" {
		role = "assistant"
	}
	message := map[string]any{"role": role, "content": content}
	if len(calls) > 0 {
		toolCalls := make([]any, 0, len(calls))
		for i := 0; i <= maxIndex; i++ {
			accum, ok := calls[i]
			if !ok {
				continue
			}
			toolCalls = append(toolCalls, map[string]any{
				"id":   accum.id,
				"type": "function",
				"function": map[string]any{
					"name":      accum.name,
					"arguments": accum.arguments,
				},
			})
		}
		message["tool_calls"] = toolCalls
	}

	choice := map[string]any{"message": message}
	if finishReason != "" {
		choice["finish_reason"] = finishReason
	}
	return map[string]any{
		"id":      id,
		"model":   model,
		"choices": []any{choice},
	}
}
