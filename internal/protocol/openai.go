// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// openai.go adapts the neutral model to the OpenAI-style function
// calling wire format: one message per role, tool results linked by
// tool_call_id.
package protocol

import (
	"github.com/morganforge/tiller/internal/model"
	"github.com/morganforge/tiller/internal/tools"
)

// =============================================================================
// WIRE TYPES
// =============================================================================

// OpenAITool is a tool definition in the function-calling schema.
type OpenAITool struct {
	Type     string         `json:"type"`
	Function OpenAIFunction `json:"function"`
}

// OpenAIFunction describes one callable function.
type OpenAIFunction struct {
	Name        string       `json:"name"`
	Description string       `json:"description"`
	Parameters  OpenAISchema `json:"parameters"`
}

// OpenAISchema is the JSON Schema object describing function parameters.
type OpenAISchema struct {
	Type       string                    `json:"type"`
	Properties map[string]OpenAIProperty `json:"properties"`
	Required   []string                  `json:"required,omitempty"`
}

// OpenAIProperty describes a single parameter in the schema.
type OpenAIProperty struct {
	Type        string      `json:"type"`
	Description string      `json:"description,omitempty"`
	Default     interface{} `json:"default,omitempty"`
}

// OpenAIMessage is one chat message on the wire.
type OpenAIMessage struct {
	Role       string           `json:"role"`
	Content    string           `json:"content"`
	ToolCallID string           `json:"tool_call_id,omitempty"`
	ToolCalls  []OpenAIToolCall `json:"tool_calls,omitempty"`
}

// OpenAIToolCall is a model-issued function invocation.
type OpenAIToolCall struct {
	ID       string             `json:"id"`
	Type     string             `json:"type"`
	Function OpenAIFunctionCall `json:"function"`
}

// OpenAIFunctionCall carries the function name and raw JSON arguments.
type OpenAIFunctionCall struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

// =============================================================================
// TOOL CONVERSION
// =============================================================================

// ToOpenAITools converts registry tools to function-calling definitions,
// one function per tool action.
func ToOpenAITools(toolList []*tools.Tool) []OpenAITool {
	var out []OpenAITool
	for _, t := range toolList {
		for _, action := range t.Actions {
			out = append(out, OpenAITool{
				Type: "function",
				Function: OpenAIFunction{
					Name:        EncodeToolName(t.ID, action.Name),
					Description: action.Description,
					Parameters:  toOpenAISchema(action.Parameters),
				},
			})
		}
	}
	return out
}

func toOpenAISchema(params []tools.Parameter) OpenAISchema {
	schema := OpenAISchema{
		Type:       "object",
		Properties: make(map[string]OpenAIProperty, len(params)),
	}
	for _, p := range params {
		prop := OpenAIProperty{
			Type:        p.Type.WireType(),
			Description: p.Description,
		}
		if p.Default != nil {
			prop.Default = p.Default
		}
		schema.Properties[p.Name] = prop
		if p.Required {
			schema.Required = append(schema.Required, p.Name)
		}
	}
	return schema
}

// =============================================================================
// MESSAGE CONVERSION
// =============================================================================

// ToOpenAIMessages serializes neutral history for the wire. Empty tool
// call arguments are normalized to "{}" since some endpoints reject
// non-JSON empty strings.
func ToOpenAIMessages(history []model.ChatMessage) []OpenAIMessage {
	out := make([]OpenAIMessage, 0, len(history))
	for _, msg := range history {
		wire := OpenAIMessage{
			Role:       msg.Role.String(),
			Content:    msg.Content,
			ToolCallID: msg.ToolCallID,
		}
		for _, tc := range msg.ToolCalls {
			wire.ToolCalls = append(wire.ToolCalls, OpenAIToolCall{
				ID:   tc.ID,
				Type: tc.Type,
				Function: OpenAIFunctionCall{
					Name:      tc.Function.Name,
					Arguments: normalizeArguments(tc.Function.Arguments),
				},
			})
		}
		out = append(out, wire)
	}
	return out
}

// FromOpenAIMessages converts wire messages back to the neutral model.
func FromOpenAIMessages(wire []OpenAIMessage) []model.ChatMessage {
	out := make([]model.ChatMessage, 0, len(wire))
	for _, msg := range wire {
		neutral := model.ChatMessage{
			Role:       model.Role(msg.Role),
			Content:    msg.Content,
			ToolCallID: msg.ToolCallID,
			ToolCalls:  ParseOpenAIToolCalls(msg.ToolCalls),
		}
		out = append(out, neutral)
	}
	return out
}

// ParseOpenAIToolCalls extracts tool calls from a response, keeping
// only type=function entries.
func ParseOpenAIToolCalls(raw []OpenAIToolCall) []model.ToolCall {
	var out []model.ToolCall
	for _, tc := range raw {
		if tc.Type != "function" {
			continue
		}
		out = append(out, model.ToolCall{
			ID:   tc.ID,
			Type: tc.Type,
			Function: model.FunctionCall{
				Name:      tc.Function.Name,
				Arguments: normalizeArguments(tc.Function.Arguments),
			},
		})
	}
	return out
}

func normalizeArguments(args string) string {
	if args == "" {
		return "{}"
	}
	return args
}

// =============================================================================
// RESULT AND FINISH REASON MAPPING
// =============================================================================

// BuildToolResultMessage produces the role=tool message carrying one
// tool call's outcome. Errors are prefixed so the model can tell a
// failure apart from output that happens to look like one.
func BuildToolResultMessage(toolCallID, content string, isError bool) model.ChatMessage {
	if isError {
		content = "Error: " + content
	}
	return model.NewToolMessage(toolCallID, content)
}

// FinishReasonFromOpenAI maps a wire finish_reason to the neutral
// model. Unrecognized reasons map to stop so partial output still
// reaches the user.
func FinishReasonFromOpenAI(reason string) model.FinishReason {
	switch reason {
	case "stop":
		return model.FinishStop
	case "tool_calls", "function_call":
		return model.FinishToolCalls
	case "length":
		return model.FinishLength
	default:
		return model.FinishStop
	}
}
