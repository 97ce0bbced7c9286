// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package tools provides the tool registry and executor for tiller.
//
// A Tool groups a set of Actions behind a stable ID. The registry answers
// lookup, installed, and capability queries for the orchestration core;
// the executor validates parameters and runs actions with timeouts and
// output caps.
package tools

import (
	"context"
	"sort"
)

// =============================================================================
// PARAMETER TYPES
// =============================================================================

// ParamType is the semantic type of an action parameter. The file and
// directory types degrade to plain strings in vendor wire schemas.
type ParamType string

const (
	TypeString    ParamType = "string"
	TypeNumber    ParamType = "number"
	TypeBoolean   ParamType = "boolean"
	TypeFile      ParamType = "file"
	TypeDirectory ParamType = "directory"
)

// WireType returns the JSON Schema type used when the parameter is
// exposed to a vendor. Vendors have no path types.
func (t ParamType) WireType() string {
	switch t {
	case TypeNumber:
		return "number"
	case TypeBoolean:
		return "boolean"
	default:
		return "string"
	}
}

// Parameter defines a single action parameter.
type Parameter struct {
	// Name of the parameter
	Name string

	// Type is the semantic parameter type
	Type ParamType

	// Description explains the parameter to the model
	Description string

	// Required indicates if the parameter must be provided
	Required bool

	// Default is the default value applied when absent (optional)
	Default interface{}
}

// =============================================================================
// ACTION DEFINITION
// =============================================================================

// ActionRunner executes a single action with validated parameters.
type ActionRunner interface {
	Run(ctx context.Context, env Env, params map[string]interface{}) (Result, error)
}

// RunnerFunc adapts a function to the ActionRunner interface.
type RunnerFunc func(ctx context.Context, env Env, params map[string]interface{}) (Result, error)

// Run implements ActionRunner.
func (f RunnerFunc) Run(ctx context.Context, env Env, params map[string]interface{}) (Result, error) {
	return f(ctx, env, params)
}

// Action is one invokable operation a tool exposes.
type Action struct {
	// Name is the action identifier (e.g., "status", "run", "fetch")
	Name string

	// Description explains what the action does
	Description string

	// Parameters defines the action's parameter schema
	Parameters []Parameter

	// Runner executes the action
	Runner ActionRunner
}

// =============================================================================
// TOOL DEFINITION
// =============================================================================

// Tool represents a local capability exposed to the model.
type Tool struct {
	// ID is the stable tool identifier (e.g., "git", "shell")
	ID string

	// Description explains what the tool does
	Description string

	// Installed reports whether the underlying binary or facility is
	// available on this machine.
	Installed bool

	// InstallHint tells the user how to install a missing tool.
	InstallHint string

	// Capabilities tags the tool for capability-based selection
	// (e.g., "vcs", "filesystem", "network", "execute").
	Capabilities []string

	// Keywords trigger keyword-based selection against user text.
	Keywords []string

	// Actions are the operations the tool exposes.
	Actions []Action
}

// Action returns the named action, or nil if the tool has no such action.
func (t *Tool) Action(name string) *Action {
	for i := range t.Actions {
		if t.Actions[i].Name == name {
			return &t.Actions[i]
		}
	}
	return nil
}

// HasCapability returns true if the tool carries the given capability tag.
func (t *Tool) HasCapability(cap string) bool {
	for _, c := range t.Capabilities {
		if c == cap {
			return true
		}
	}
	return false
}

// =============================================================================
// TOOL REGISTRY
// =============================================================================

// Registry holds all available tools, keyed by ID.
type Registry struct {
	tools map[string]*Tool
	order []string
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		tools: make(map[string]*Tool),
	}
}

// NewBuiltinRegistry creates a registry with the built-in tools
// registered and their installed state probed.
func NewBuiltinRegistry() *Registry {
	r := NewRegistry()
	r.RegisterBuiltins()
	return r
}

// Register adds a tool to the registry. Registration order is preserved
// for deterministic listings.
func (r *Registry) Register(tool *Tool) {
	if _, exists := r.tools[tool.ID]; !exists {
		r.order = append(r.order, tool.ID)
	}
	r.tools[tool.ID] = tool
}

// GetTool retrieves a tool by ID. Returns nil if not registered.
func (r *Registry) GetTool(id string) *Tool {
	return r.tools[id]
}

// All returns all registered tools in registration order.
func (r *Registry) All() []*Tool {
	result := make([]*Tool, 0, len(r.tools))
	for _, id := range r.order {
		result = append(result, r.tools[id])
	}
	return result
}

// GetInstalled returns all tools whose Installed flag is set.
func (r *Registry) GetInstalled() []*Tool {
	result := make([]*Tool, 0, len(r.tools))
	for _, id := range r.order {
		if t := r.tools[id]; t.Installed {
			result = append(result, t)
		}
	}
	return result
}

// GetByCapability returns installed tools carrying the capability tag.
func (r *Registry) GetByCapability(cap string) []*Tool {
	result := make([]*Tool, 0)
	for _, id := range r.order {
		if t := r.tools[id]; t.Installed && t.HasCapability(cap) {
			result = append(result, t)
		}
	}
	return result
}

// IDs returns all registered tool IDs sorted longest-first. The protocol
// layer uses this ordering to decode encoded tool names unambiguously
// when IDs themselves contain underscores.
func (r *Registry) IDs() []string {
	ids := make([]string, len(r.order))
	copy(ids, r.order)
	sort.Slice(ids, func(i, j int) bool {
		if len(ids[i]) != len(ids[j]) {
			return len(ids[i]) > len(ids[j])
		}
		return ids[i] < ids[j]
	})
	return ids
}

// Count returns the number of registered tools.
func (r *Registry) Count() int {
	return len(r.tools)
}
