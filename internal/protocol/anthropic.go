// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// anthropic.go adapts the neutral model to the content-block wire
// format: assistant tool requests are tool_use blocks inside one
// message, and tool results travel as user-authored tool_result blocks
// rather than a dedicated role.
package protocol

import (
	"encoding/json"

	"github.com/morganforge/tiller/internal/model"
	"github.com/morganforge/tiller/internal/tools"
)

// =============================================================================
// WIRE TYPES
// =============================================================================

// AnthropicTool is a tool definition with a JSON Schema input_schema.
type AnthropicTool struct {
	Name        string       `json:"name"`
	Description string       `json:"description"`
	InputSchema OpenAISchema `json:"input_schema"`
}

// AnthropicMessage is one wire message; content is always a block list.
type AnthropicMessage struct {
	Role    string           `json:"role"`
	Content []AnthropicBlock `json:"content"`
}

// AnthropicBlock is a typed content block. Which fields are set depends
// on Type: "text" uses Text, "tool_use" uses ID/Name/Input, and
// "tool_result" uses ToolUseID/Content/IsError.
type AnthropicBlock struct {
	Type      string          `json:"type"`
	Text      string          `json:"text,omitempty"`
	ID        string          `json:"id,omitempty"`
	Name      string          `json:"name,omitempty"`
	Input     json.RawMessage `json:"input,omitempty"`
	ToolUseID string          `json:"tool_use_id,omitempty"`
	Content   string          `json:"content,omitempty"`
	IsError   bool            `json:"is_error,omitempty"`
}

// =============================================================================
// TOOL CONVERSION
// =============================================================================

// ToAnthropicTools converts registry tools to block-format definitions,
// one entry per tool action. The input schema shape is shared with the
// function-calling format.
func ToAnthropicTools(toolList []*tools.Tool) []AnthropicTool {
	var out []AnthropicTool
	for _, t := range toolList {
		for _, action := range t.Actions {
			out = append(out, AnthropicTool{
				Name:        EncodeToolName(t.ID, action.Name),
				Description: action.Description,
				InputSchema: toOpenAISchema(action.Parameters),
			})
		}
	}
	return out
}

// =============================================================================
// MESSAGE CONVERSION
// =============================================================================

// ToAnthropicMessages serializes neutral history into the block format.
// System messages are extracted into the returned system string (joined
// with newlines when there is more than one) since this vendor takes
// the system prompt as a top-level request field. Consecutive role=tool
// messages collapse into a single user message of tool_result blocks.
// Trailing unanswered tool calls serialize like any other assistant
// turn.
func ToAnthropicMessages(history []model.ChatMessage) (system string, msgs []AnthropicMessage) {
	var systemParts []string

	for _, msg := range history {
		switch msg.Role {
		case model.RoleSystem:
			systemParts = append(systemParts, msg.Content)

		case model.RoleAssistant:
			var blocks []AnthropicBlock
			if msg.Content != "" {
				blocks = append(blocks, AnthropicBlock{Type: "text", Text: msg.Content})
			}
			for _, tc := range msg.ToolCalls {
				blocks = append(blocks, AnthropicBlock{
					Type:  "tool_use",
					ID:    tc.ID,
					Name:  tc.Function.Name,
					Input: json.RawMessage(normalizeArguments(tc.Function.Arguments)),
				})
			}
			if len(blocks) == 0 {
				blocks = append(blocks, AnthropicBlock{Type: "text", Text: ""})
			}
			msgs = append(msgs, AnthropicMessage{Role: "assistant", Content: blocks})

		case model.RoleTool:
			block := AnthropicBlock{
				Type:      "tool_result",
				ToolUseID: msg.ToolCallID,
				Content:   msg.Content,
			}
			if n := len(msgs); n > 0 && msgs[n-1].Role == "user" && isToolResultMessage(msgs[n-1]) {
				msgs[n-1].Content = append(msgs[n-1].Content, block)
			} else {
				msgs = append(msgs, AnthropicMessage{Role: "user", Content: []AnthropicBlock{block}})
			}

		default:
			msgs = append(msgs, AnthropicMessage{
				Role:    "user",
				Content: []AnthropicBlock{{Type: "text", Text: msg.Content}},
			})
		}
	}

	return joinSystem(systemParts), msgs
}

func joinSystem(parts []string) string {
	switch len(parts) {
	case 0:
		return ""
	case 1:
		return parts[0]
	}
	out := parts[0]
	for _, p := range parts[1:] {
		out += "\n" + p
	}
	return out
}

func isToolResultMessage(msg AnthropicMessage) bool {
	return len(msg.Content) > 0 && msg.Content[0].Type == "tool_result"
}

// FromAnthropicMessages expands wire messages back to neutral history.
// A user message made of tool_result blocks becomes one role=tool
// message per block, restoring the logical turns the block format
// collapsed.
func FromAnthropicMessages(system string, msgs []AnthropicMessage) []model.ChatMessage {
	var out []model.ChatMessage
	if system != "" {
		out = append(out, model.NewSystemMessage(system))
	}

	for _, msg := range msgs {
		if msg.Role == "user" && isToolResultMessage(msg) {
			for _, block := range msg.Content {
				out = append(out, model.NewToolMessage(block.ToolUseID, block.Content))
			}
			continue
		}

		text, toolCalls := ParseAnthropicContent(msg.Content)
		neutral := model.ChatMessage{
			Role:      model.Role(msg.Role),
			Content:   text,
			ToolCalls: toolCalls,
		}
		out = append(out, neutral)
	}
	return out
}

// ParseAnthropicContent splits a block list into assistant text and
// tool calls, preserving block order for the calls.
func ParseAnthropicContent(blocks []AnthropicBlock) (text string, toolCalls []model.ToolCall) {
	for _, block := range blocks {
		switch block.Type {
		case "text":
			if text != "" && block.Text != "" {
				text += "\n"
			}
			text += block.Text
		case "tool_use":
			args := string(block.Input)
			toolCalls = append(toolCalls, model.ToolCall{
				ID:   block.ID,
				Type: "function",
				Function: model.FunctionCall{
					Name:      block.Name,
					Arguments: normalizeArguments(args),
				},
			})
		}
	}
	return text, toolCalls
}

// =============================================================================
// FINISH REASON MAPPING
// =============================================================================

// FinishReasonFromAnthropic maps a stop_reason to the neutral model.
// Unrecognized reasons map to stop.
func FinishReasonFromAnthropic(reason string) model.FinishReason {
	switch reason {
	case "end_turn", "stop_sequence":
		return model.FinishStop
	case "tool_use":
		return model.FinishToolCalls
	case "max_tokens":
		return model.FinishLength
	default:
		return model.FinishStop
	}
}
