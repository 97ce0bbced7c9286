// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// handler.go turns model-issued tool calls into role=tool result
// messages. The handler never fails: every kind of problem (unknown
// tool, missing action, bad arguments, execution error) becomes an
// error-flavored tool message so the conversation can continue.
package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/morganforge/tiller/internal/model"
	"github.com/morganforge/tiller/internal/protocol"
	"github.com/morganforge/tiller/internal/tools"
)

// ToolHandler resolves and executes tool calls against the registry.
type ToolHandler struct {
	registry *tools.Registry
	executor *tools.Executor
}

// NewToolHandler wires a handler to its registry and executor.
func NewToolHandler(registry *tools.Registry, executor *tools.Executor) *ToolHandler {
	return &ToolHandler{registry: registry, executor: executor}
}

// HandleToolCalls executes each call and returns exactly one role=tool
// message per call, in call order, unconditionally.
func (h *ToolHandler) HandleToolCalls(ctx context.Context, calls []model.ToolCall) []model.ChatMessage {
	out := make([]model.ChatMessage, 0, len(calls))
	for _, call := range calls {
		out = append(out, h.handleOne(ctx, call))
	}
	return out
}

// handleOne resolves and runs a single call. All failure paths return
// an error message bound to the call's ID.
func (h *ToolHandler) handleOne(ctx context.Context, call model.ToolCall) model.ChatMessage {
	fail := func(format string, args ...interface{}) model.ChatMessage {
		msg := fmt.Sprintf(format, args...)
		log.Printf("[TOOLS] call %s failed: %s", call.ID, msg)
		return protocol.BuildToolResultMessage(call.ID, msg, true)
	}

	toolID, actionName, err := protocol.DecodeToolName(call.Function.Name, h.registry.IDs())
	if err != nil {
		return fail("invalid tool name %q", call.Function.Name)
	}

	tool := h.registry.GetTool(toolID)
	if tool == nil {
		return fail("unknown tool %q", toolID)
	}
	if !tool.Installed {
		if tool.InstallHint != "" {
			return fail("tool %q is not installed (%s)", toolID, tool.InstallHint)
		}
		return fail("tool %q is not installed", toolID)
	}

	action := tool.Action(actionName)
	if action == nil {
		return fail("tool %q has no action %q", toolID, actionName)
	}

	params, err := parseArguments(call.Function.Arguments)
	if err != nil {
		return fail("invalid arguments for %s: %v", call.Function.Name, err)
	}

	result, err := h.executor.Execute(ctx, tool, action, params)
	if err != nil {
		return fail("%v", err)
	}
	if !result.Success {
		msg := result.Error
		if msg == "" {
			msg = result.Stderr
		}
		if msg == "" {
			msg = fmt.Sprintf("%s exited with code %d", call.Function.Name, result.ExitCode)
		}
		return fail("%s", msg)
	}

	return protocol.BuildToolResultMessage(call.ID, formatOutput(result), false)
}

// parseArguments decodes the call's JSON arguments. An empty string
// counts as no arguments.
func parseArguments(raw string) (map[string]interface{}, error) {
	if raw == "" || raw == "{}" {
		return map[string]interface{}{}, nil
	}
	var params map[string]interface{}
	if err := json.Unmarshal([]byte(raw), &params); err != nil {
		return nil, err
	}
	return params, nil
}

// formatOutput picks what the model gets to see from a successful run.
func formatOutput(result tools.Result) string {
	out := result.Stdout
	if out == "" {
		out = result.Stderr
	}
	if out == "" {
		out = "(no output)"
	}
	if result.Truncated {
		out += "\n[output truncated]"
	}
	return out
}
