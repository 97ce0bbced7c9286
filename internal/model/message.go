// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package model contains the provider-neutral data structures for
// conversations: messages, tool calls, and normalized API responses.
package model

import (
	"strings"
)

// =============================================================================
// ROLE TYPE
// =============================================================================

// Role represents the sender of a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
	RoleTool      Role = "tool"
)

// String returns the string representation of the role.
func (r Role) String() string {
	return string(r)
}

// DisplayName returns a human-readable name for the role.
func (r Role) DisplayName() string {
	switch r {
	case RoleUser:
		return "You"
	case RoleAssistant:
		return "Assistant"
	case RoleSystem:
		return "System"
	case RoleTool:
		return "Tool"
	default:
		return string(r)
	}
}

// =============================================================================
// TOOL CALL TYPE
// =============================================================================

// ToolCall is a model-issued request to execute a named capability.
// The ID is vendor-assigned and unique within one response; the handler
// must produce exactly one tool message per call, keyed by this ID.
type ToolCall struct {
	ID       string       `json:"id"`
	Type     string       `json:"type"` // always "function"
	Function FunctionCall `json:"function"`
}

// FunctionCall holds the encoded tool/action name and JSON arguments.
type FunctionCall struct {
	// Name encodes the target as "<toolID>_<actionName>".
	Name string `json:"name"`

	// Arguments is a JSON object encoded as a string. It may be empty or
	// malformed; parsers must tolerate both.
	Arguments string `json:"arguments"`
}

// NewToolCall creates a function tool call.
func NewToolCall(id, name, arguments string) ToolCall {
	return ToolCall{
		ID:   id,
		Type: "function",
		Function: FunctionCall{
			Name:      name,
			Arguments: arguments,
		},
	}
}

// =============================================================================
// MESSAGE TYPE
// =============================================================================

// ChatMessage represents one conversational turn. Messages are immutable
// once appended to a Session; compaction replaces them in bulk, never
// edits them in place.
type ChatMessage struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`

	// ToolCallID links a role=tool message back to the assistant tool
	// call that spawned it. Set only on tool messages.
	ToolCallID string `json:"tool_call_id,omitempty"`

	// ToolCalls is set only on assistant messages that request tool
	// execution.
	ToolCalls []ToolCall `json:"tool_calls,omitempty"`
}

// NewUserMessage creates a new user message.
func NewUserMessage(content string) ChatMessage {
	return ChatMessage{Role: RoleUser, Content: content}
}

// NewAssistantMessage creates a new assistant message.
func NewAssistantMessage(content string) ChatMessage {
	return ChatMessage{Role: RoleAssistant, Content: content}
}

// NewSystemMessage creates a new system message.
func NewSystemMessage(content string) ChatMessage {
	return ChatMessage{Role: RoleSystem, Content: content}
}

// NewToolMessage creates a tool result message linked to a tool call.
func NewToolMessage(toolCallID, content string) ChatMessage {
	return ChatMessage{Role: RoleTool, Content: content, ToolCallID: toolCallID}
}

// =============================================================================
// MESSAGE METHODS
// =============================================================================

// HasToolCalls returns true if the message requests tool execution.
func (m *ChatMessage) HasToolCalls() bool {
	return len(m.ToolCalls) > 0
}

// IsEmpty returns true if the message carries neither text nor tool calls.
func (m *ChatMessage) IsEmpty() bool {
	return m.Content == "" && len(m.ToolCalls) == 0
}

// Preview returns a truncated preview of the message content.
// Uses rune-based truncation to handle Unicode correctly.
func (m *ChatMessage) Preview(maxLen int) string {
	content := strings.ReplaceAll(m.Content, "\n", " ")
	runes := []rune(content)
	if len(runes) <= maxLen {
		return content
	}
	return string(runes[:maxLen-3]) + "..."
}

// EstimateTokens gives a rough estimate of the message token count.
// Uses the approximation of ~4 characters per token, plus the encoded
// size of any tool calls the message carries.
func (m *ChatMessage) EstimateTokens() int {
	total := EstimateTokens(m.Content)
	for _, tc := range m.ToolCalls {
		total += EstimateTokens(tc.Function.Name)
		total += EstimateTokens(tc.Function.Arguments)
	}
	return total
}

// EstimateTokens estimates the token count of a raw string.
func EstimateTokens(s string) int {
	return (len(s) + 3) / 4
}

// EstimateMessagesTokens sums the token estimates of a message list.
func EstimateMessagesTokens(msgs []ChatMessage) int {
	total := 0
	for i := range msgs {
		total += msgs[i].EstimateTokens()
	}
	return total
}
