package cook

// cookClaudeRequest translates the prompt side of one Claude Messages call
// into canonical references. The Claude request interleaves text, thinking,
// tool_use, and tool_result blocks inside message content; translation
// splits those into separate canonical messages while preserving block
// order:
//
//	system string            -> one system message
//	system block list        -> one system message per text block
//	user text/image blocks   -> user message (images become "[image]")
//	user tool_result block   -> tool_result message with is_error copied
//	assistant text block     -> assistant message
//	assistant thinking block -> thinking message
//	assistant tool_use blocks -> one tool_use message per turn, aggregated
func (c *Cooker) cookClaudeRequest(req map[string]any) cookedCall {
	call := newCookedCall()

	if sys, ok := req["system"]; ok {
		switch system := sys.(type) {
		case string:
			call.requestMessages = append(call.requestMessages,
				c.addMessage(Message{Role: "system", Content: system}))
		case []any:
			for _, raw := range system {
				block := mapValue(raw)
				if stringValue(block["type"]) != "text" {
					continue
				}
				call.requestMessages = append(call.requestMessages,
					c.addMessage(Message{Role: "system", Content: stringValue(block["text"])}))
			}
		}
	}

	for _, raw := range sliceValue(req["messages"]) {
		msg := mapValue(raw)
		if msg == nil {
			continue
		}
		if stringValue(msg["role"]) == "assistant" {
			c.cookClaudeAssistantTurn(msg, &call)
		} else {
			c.cookClaudeUserTurn(msg, &call)
		}
	}

	for _, raw := range sliceValue(req["tools"]) {
		tool := mapValue(raw)
		if tool == nil {
			continue
		}
		call.addTool(c.addTool(Tool{
			Name:        stringValue(tool["name"]),
			Description: stringValue(tool["description"]),
			Parameters:  schemaOrEmpty(tool["input_schema"]),
		}))
	}
	return call
}

// cookClaudeUserTurn emits the canonical messages for one user turn. Text
// and image blocks accumulate into user messages; each tool_result block
// flushes the accumulated text so the result lands at its original position
// in the turn.
func (c *Cooker) cookClaudeUserTurn(msg map[string]any, call *cookedCall) {
	role := stringValue(msg["role"])
	if content, ok := msg["content"].(string); ok {
		call.requestMessages = append(call.requestMessages,
			c.addMessage(Message{Role: role, Content: content}))
		return
	}

	var pending string
	flush := func() {
		if pending == "" {
			return
		}
		call.requestMessages = append(call.requestMessages,
			c.addMessage(Message{Role: role, Content: pending}))
		pending = ""
	}
	for _, raw := range sliceValue(msg["content"]) {
		block := mapValue(raw)
		if block == nil {
			continue
		}
		switch stringValue(block["type"]) {
		case "text":
			pending += stringValue(block["text"])
		case "image":
			pending += "[image]"
		case "tool_result":
			flush()
			isError := boolValue(block["is_error"])
			call.requestMessages = append(call.requestMessages, c.addMessage(Message{
				Role:      "tool_result",
				Content:   textContent(block["content"]),
				ToolUseID: stringValue(block["tool_use_id"]),
				IsError:   &isError,
			}))
		}
	}
	flush()
}

// cookClaudeAssistantTurn emits the canonical messages for one assistant
// turn. Every tool_use block in the turn aggregates into a single tool_use
// message appended after the turn's text and thinking messages.
func (c *Cooker) cookClaudeAssistantTurn(msg map[string]any, call *cookedCall) {
	if content, ok := msg["content"].(string); ok {
		call.requestMessages = append(call.requestMessages,
			c.addMessage(Message{Role: "assistant", Content: content}))
		return
	}

	var toolCalls []ToolCall
	for _, raw := range sliceValue(msg["content"]) {
		block := mapValue(raw)
		if block == nil {
			continue
		}
		switch stringValue(block["type"]) {
		case "text":
			call.requestMessages = append(call.requestMessages,
				c.addMessage(Message{Role: "assistant", Content: stringValue(block["text"])}))
		case "thinking":
			call.requestMessages = append(call.requestMessages,
				c.addMessage(Message{Role: "thinking", Content: stringValue(block["thinking"])}))
		case "tool_use":
			toolCalls = append(toolCalls, ToolCall{
				Name:      stringValue(block["name"]),
				Arguments: schemaOrEmpty(block["input"]),
				ID:        stringValue(block["id"]),
			})
		}
	}
	if len(toolCalls) > 0 {
		call.requestMessages = append(call.requestMessages,
			c.addMessage(Message{Role: "tool_use", Content: "", ToolCalls: toolCalls}))
	}
}

// cookClaudeResponse reduces a Messages response to at most two canonical
// messages: an optional thinking message (all thinking blocks concatenated)
// followed by the main message, which is a tool_use when the response
// requested tools and a plain assistant message otherwise.
func (c *Cooker) cookClaudeResponse(resp map[string]any) []string {
	var ids []string
	var thinking, text string
	var toolCalls []ToolCall

	switch content := resp["content"].(type) {
	case string:
		text = content
	case []any:
		for _, raw := range content {
			block := mapValue(raw)
			if block == nil {
				continue
			}
			switch stringValue(block["type"]) {
			case "text":
				text += stringValue(block["text"])
			case "thinking":
				thinking += stringValue(block["thinking"])
			case "image":
				text += "[image]"
			case "tool_use":
				toolCalls = append(toolCalls, ToolCall{
					Name:      stringValue(block["name"]),
					Arguments: schemaOrEmpty(block["input"]),
					ID:        stringValue(block["id"]),
				})
			}
		}
	}

	if thinking != "" {
		ids = append(ids, c.addMessage(Message{Role: "thinking", Content: thinking}))
	}
	if len(toolCalls) > 0 {
		ids = append(ids, c.addMessage(Message{
			Role:      "tool_use",
			Content:   text,
			ToolCalls: toolCalls,
		}))
		return ids
	}
	return append(ids, c.addMessage(Message{Role: "assistant", Content: text}))
}
