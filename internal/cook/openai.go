package cook

// cookOpenAIRequest translates the prompt side of one OpenAI
// chat-completions call into canonical references. Request messages map one
// to one:
//
//	system/user/assistant  -> same role, content flattened to text
//	assistant + tool_calls -> role "tool_use" with parsed call arguments
//	tool                   -> role "tool_result" with tool_call_id, is_error false
//
// Tool definitions unwrap their "function" envelope.
func (c *Cooker) cookOpenAIRequest(req map[string]any) cookedCall {
	call := newCookedCall()

	for _, raw := range sliceValue(req["messages"]) {
		msg := mapValue(raw)
		if msg == nil {
			continue
		}
		role := stringValue(msg["role"])
		content := textContent(msg["content"])
		var id string
		switch {
		case role == "tool":
			isError := false
			id = c.addMessage(Message{
				Role:      "tool_result",
				Content:   content,
				ToolUseID: stringValue(msg["tool_call_id"]),
				IsError:   &isError,
			})
		case role == "assistant" && len(sliceValue(msg["tool_calls"])) > 0:
			id = c.addMessage(Message{
				Role:      "tool_use",
				Content:   content,
				ToolCalls: parseOpenAIToolCalls(sliceValue(msg["tool_calls"])),
			})
		default:
			id = c.addMessage(Message{Role: role, Content: content})
		}
		call.requestMessages = append(call.requestMessages, id)
	}

	for _, raw := range sliceValue(req["tools"]) {
		fn := mapValue(mapValue(raw)["function"])
		if fn == nil {
			continue
		}
		call.addTool(c.addTool(Tool{
			Name:        stringValue(fn["name"]),
			Description: stringValue(fn["description"]),
			Parameters:  schemaOrEmpty(fn["parameters"]),
		}))
	}
	return call
}

// cookOpenAIResponse reduces the first choice to one canonical message.
// A missing or unrecognisable response yields an empty assistant message so
// every call still has a response slot.
func (c *Cooker) cookOpenAIResponse(resp map[string]any) []string {
	choices := sliceValue(resp["choices"])
	if len(choices) == 0 {
		return []string{c.addMessage(Message{Role: "assistant", Content: ""})}
	}
	msg := mapValue(mapValue(choices[0])["message"])
	role := stringValue(msg["role"])
	if role == "" {
		role = "assistant"
	}
	content := textContent(msg["content"])
	if toolCalls := sliceValue(msg["tool_calls"]); len(toolCalls) > 0 {
		return []string{c.addMessage(Message{
			Role:      "tool_use",
			Content:   content,
			ToolCalls: parseOpenAIToolCalls(toolCalls),
		})}
	}
	return []string{c.addMessage(Message{Role: role, Content: content})}
}

// parseOpenAIToolCalls converts wire tool calls to the canonical form. The
// wire carries arguments as a JSON string; an object is accepted too since
// some clients pre-decode it.
func parseOpenAIToolCalls(raw []any) []ToolCall {
	calls := make([]ToolCall, 0, len(raw))
	for _, rc := range raw {
		tc := mapValue(rc)
		if tc == nil {
			continue
		}
		fn := mapValue(tc["function"])
		var args any
		switch a := fn["arguments"].(type) {
		case string:
			args = parseToolArguments(a)
		case nil:
			args = map[string]any{}
		default:
			args = a
		}
		calls = append(calls, ToolCall{
			Name:      stringValue(fn["name"]),
			Arguments: args,
			ID:        stringValue(tc["id"]),
		})
	}
	return calls
}
