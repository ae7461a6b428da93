package cook

import (
	"reflect"
	"testing"
)

func TestCookClaude_InterleavedBlocks(t *testing.T) {
	artifact, slot := cookOne(t, `{
		"id": "r1",
		"timestamp": "2025-01-15T10:00:00Z",
		"request": {
			"model": "claude-sonnet-4",
			"system": "Be terse.",
			"messages": [
				{"role": "user", "content": "Check the weather in Paris."},
				{"role": "assistant", "content": [
					{"type": "thinking", "thinking": "User wants weather; call the tool."},
					{"type": "tool_use", "id": "tu_1", "name": "get_weather", "input": {"city": "Paris"}}
				]},
				{"role": "user", "content": [
					{"type": "tool_result", "tool_use_id": "tu_1", "is_error": false,
					 "content": [{"type": "text", "text": "15C"}]}
				]}
			],
			"tools": [{"name": "get_weather", "description": "Weather lookup",
			           "input_schema": {"type": "object"}}]
		},
		"response": {
			"model": "claude-sonnet-4",
			"content": [{"type": "text", "text": "15C in Paris."}]
		}
	}`)

	want := []string{"m0", "m1", "m2", "m3", "m4"}
	if !reflect.DeepEqual(slot.RequestMessages, want) {
		t.Fatalf("expected request messages %v, got %v", want, slot.RequestMessages)
	}

	system := messageByID(t, artifact, "m0")
	if system.Role != "system" || system.Content != "Be terse." {
		t.Errorf("unexpected system message: %+v", system)
	}
	user := messageByID(t, artifact, "m1")
	if user.Role != "user" || user.Content != "Check the weather in Paris." {
		t.Errorf("unexpected user message: %+v", user)
	}
	thinking := messageByID(t, artifact, "m2")
	if thinking.Role != "thinking" || thinking.Content != "User wants weather; call the tool." {
		t.Errorf("unexpected thinking message: %+v", thinking)
	}
	toolUse := messageByID(t, artifact, "m3")
	if toolUse.Role != "tool_use" || toolUse.Content != "" {
		t.Errorf("unexpected tool_use message: %+v", toolUse)
	}
	if len(toolUse.ToolCalls) != 1 {
		t.Fatalf("expected 1 tool call, got %d", len(toolUse.ToolCalls))
	}
	if toolUse.ToolCalls[0].Name != "get_weather" || toolUse.ToolCalls[0].ID != "tu_1" {
		t.Errorf("unexpected tool call: %+v", toolUse.ToolCalls[0])
	}
	if mapValue(toolUse.ToolCalls[0].Arguments)["city"] != "Paris" {
		t.Errorf("expected input carried as arguments, got %v", toolUse.ToolCalls[0].Arguments)
	}
	result := messageByID(t, artifact, "m4")
	if result.Role != "tool_result" || result.Content != "15C" {
		t.Errorf("unexpected tool_result message: %+v", result)
	}
	if result.ToolUseID != "tu_1" || result.IsError == nil || *result.IsError {
		t.Errorf("unexpected tool_result fields: %+v", result)
	}

	tool := toolByID(t, artifact, slot.Tools[0])
	if tool.Name != "get_weather" || tool.Description != "Weather lookup" {
		t.Errorf("unexpected tool: %+v", tool)
	}
	if mapValue(tool.Parameters)["type"] != "object" {
		t.Errorf("expected input_schema mapped to parameters, got %v", tool.Parameters)
	}
}

func TestCookClaude_SystemBlockList(t *testing.T) {
	artifact, slot := cookOne(t, `{
		"id": "r1",
		"timestamp": "2025-01-15T10:00:00Z",
		"request": {
			"model": "claude-sonnet-4",
			"system": [
				{"type": "text", "text": "First instruction."},
				{"type": "text", "text": "Second instruction."}
			],
			"messages": [{"role": "user", "content": "hi"}]
		},
		"response": {"model": "claude-sonnet-4", "content": [{"type": "text", "text": "hello"}]}
	}`)
	if len(slot.RequestMessages) != 3 {
		t.Fatalf("expected 3 request messages, got %v", slot.RequestMessages)
	}
	first := messageByID(t, artifact, slot.RequestMessages[0])
	second := messageByID(t, artifact, slot.RequestMessages[1])
	if first.Role != "system" || first.Content != "First instruction." {
		t.Errorf("unexpected first system message: %+v", first)
	}
	if second.Role != "system" || second.Content != "Second instruction." {
		t.Errorf("unexpected second system message: %+v", second)
	}
}

func TestCookClaude_TextAroundToolResult(t *testing.T) {
	artifact, slot := cookOne(t, `{
		"id": "r1",
		"timestamp": "2025-01-15T10:00:00Z",
		"request": {
			"model": "claude-sonnet-4",
			"messages": [{"role": "user", "content": [
				{"type": "text", "text": "Here is the result: "},
				{"type": "tool_result", "tool_use_id": "tu_1", "content": "42"},
				{"type": "text", "text": "What next?"}
			]}]
		},
		"response": {"model": "claude-sonnet-4", "content": [{"type": "text", "text": "ok"}]}
	}`)
	if len(slot.RequestMessages) != 3 {
		t.Fatalf("expected text/result/text split, got %v", slot.RequestMessages)
	}
	before := messageByID(t, artifact, slot.RequestMessages[0])
	result := messageByID(t, artifact, slot.RequestMessages[1])
	after := messageByID(t, artifact, slot.RequestMessages[2])
	if before.Role != "user" || before.Content != "Here is the result: " {
		t.Errorf("unexpected leading text: %+v", before)
	}
	if result.Role != "tool_result" || result.Content != "42" {
		t.Errorf("unexpected tool_result: %+v", result)
	}
	if result.IsError == nil || *result.IsError {
		t.Errorf("expected is_error default false, got %v", result.IsError)
	}
	if after.Role != "user" || after.Content != "What next?" {
		t.Errorf("unexpected trailing text: %+v", after)
	}
}

func TestCookClaude_ToolResultErrorCopied(t *testing.T) {
	artifact, slot := cookOne(t, `{
		"id": "r1",
		"timestamp": "2025-01-15T10:00:00Z",
		"request": {
			"model": "claude-sonnet-4",
			"messages": [{"role": "user", "content": [
				{"type": "tool_result", "tool_use_id": "tu_1", "is_error": true, "content": "boom"}
			]}]
		},
		"response": {"model": "claude-sonnet-4", "content": [{"type": "text", "text": "sorry"}]}
	}`)
	result := messageByID(t, artifact, slot.RequestMessages[0])
	if result.IsError == nil || !*result.IsError {
		t.Errorf("expected is_error true, got %v", result.IsError)
	}
}

func TestCookClaude_ImageBlocksBecomePlaceholders(t *testing.T) {
	artifact, slot := cookOne(t, `{
		"id": "r1",
		"timestamp": "2025-01-15T10:00:00Z",
		"request": {
			"model": "claude-sonnet-4",
			"messages": [{"role": "user", "content": [
				{"type": "text", "text": "Look: "},
				{"type": "image", "source": {"type": "base64", "data": "xyz"}}
			]}]
		},
		"response": {"model": "claude-sonnet-4", "content": [{"type": "text", "text": "seen"}]}
	}`)
	msg := messageByID(t, artifact, slot.RequestMessages[0])
	if msg.Content != "Look: [image]" {
		t.Errorf("expected image placeholder, got %q", msg.Content)
	}
}

func TestCookClaude_ResponseThinkingAndToolUse(t *testing.T) {
	artifact, slot := cookOne(t, `{
		"id": "r1",
		"timestamp": "2025-01-15T10:00:00Z",
		"request": {"model": "claude-sonnet-4", "messages": [{"role": "user", "content": "weather?"}],
		            "tools": [{"name": "get_weather", "input_schema": {}}]},
		"response": {
			"model": "claude-sonnet-4",
			"content": [
				{"type": "thinking", "thinking": "Need the tool."},
				{"type": "text", "text": "Checking now."},
				{"type": "tool_use", "id": "tu_1", "name": "get_weather", "input": {"city": "Paris"}}
			]
		}
	}`)
	if len(slot.ResponseMessages) != 2 {
		t.Fatalf("expected thinking + main response, got %v", slot.ResponseMessages)
	}
	thinking := messageByID(t, artifact, slot.ResponseMessages[0])
	if thinking.Role != "thinking" || thinking.Content != "Need the tool." {
		t.Errorf("unexpected thinking message: %+v", thinking)
	}
	main := messageByID(t, artifact, slot.ResponseMessages[1])
	if main.Role != "tool_use" {
		t.Fatalf("expected tool_use main response, got %q", main.Role)
	}
	if main.Content != "Checking now." {
		t.Errorf("expected text carried on main message, got %q", main.Content)
	}
	if len(main.ToolCalls) != 1 || main.ToolCalls[0].Name != "get_weather" {
		t.Errorf("unexpected tool calls: %+v", main.ToolCalls)
	}
}

func TestCookClaude_MultipleToolUseBlocksAggregate(t *testing.T) {
	artifact, slot := cookOne(t, `{
		"id": "r1",
		"timestamp": "2025-01-15T10:00:00Z",
		"request": {
			"model": "claude-sonnet-4",
			"messages": [
				{"role": "user", "content": "both please"},
				{"role": "assistant", "content": [
					{"type": "tool_use", "id": "tu_1", "name": "get_weather", "input": {}},
					{"type": "tool_use", "id": "tu_2", "name": "get_time", "input": {}}
				]}
			]
		},
		"response": {"model": "claude-sonnet-4", "content": [{"type": "text", "text": "done"}]}
	}`)
	if len(slot.RequestMessages) != 2 {
		t.Fatalf("expected user + one aggregated tool_use, got %v", slot.RequestMessages)
	}
	toolUse := messageByID(t, artifact, slot.RequestMessages[1])
	if len(toolUse.ToolCalls) != 2 {
		t.Fatalf("expected 2 aggregated calls, got %d", len(toolUse.ToolCalls))
	}
	if toolUse.ToolCalls[0].ID != "tu_1" || toolUse.ToolCalls[1].ID != "tu_2" {
		t.Errorf("expected call order preserved, got %+v", toolUse.ToolCalls)
	}
}
