// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package tools

import (
	"context"
	"sync"
	"time"
)

// =============================================================================
// EXECUTION RESULT
// =============================================================================

// Result holds the outcome of one action execution.
type Result struct {
	// Success indicates if the action executed successfully
	Success bool

	// Stdout is the action's standard output
	Stdout string

	// Stderr is the action's standard error output
	Stderr string

	// ExitCode is the process exit code (0 for non-process actions)
	ExitCode int

	// Error is the error message for failed executions
	Error string

	// Truncated indicates output was cut at the size cap
	Truncated bool

	// Duration is how long execution took
	Duration time.Duration
}

// Env carries execution environment settings into action runners.
type Env struct {
	// WorkDir is the working directory for the action
	WorkDir string

	// MaxOutputSize caps stdout/stderr bytes kept per execution
	MaxOutputSize int
}

// =============================================================================
// VALIDATION ERRORS
// =============================================================================

// ValidationError represents a parameter validation failure.
type ValidationError struct {
	Param   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Param + ": " + e.Message
}

// =============================================================================
// EXECUTOR
// =============================================================================

// DefaultActionTimeout is applied when the caller's context has no deadline.
const DefaultActionTimeout = 30 * time.Second

// defaultMaxOutputSize caps captured output per execution.
const defaultMaxOutputSize = 30000

// Executor validates parameters and runs tool actions with timeout
// handling and output caps. It is the concrete implementation of the
// opaque executor the orchestration core depends on.
type Executor struct {
	mu            sync.Mutex
	workDir       string
	maxOutputSize int
	maxTimeout    time.Duration
}

// NewExecutor creates an executor rooted at the given working directory.
func NewExecutor(workDir string) *Executor {
	if workDir == "" {
		workDir = "."
	}
	return &Executor{
		workDir:       workDir,
		maxOutputSize: defaultMaxOutputSize,
		maxTimeout:    10 * time.Minute,
	}
}

// SetWorkDir updates the working directory for subsequent executions.
func (e *Executor) SetWorkDir(dir string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.workDir = dir
}

// WorkDir returns the current working directory.
func (e *Executor) WorkDir() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.workDir
}

// Execute validates params against the action schema, applies defaults,
// and runs the action. Errors are reported in the Result rather than
// raised wherever the action itself fails; the returned error is
// reserved for validation and dispatch problems the caller must handle.
func (e *Executor) Execute(ctx context.Context, tool *Tool, action *Action, params map[string]interface{}) (Result, error) {
	start := time.Now()

	validated, err := ValidateParams(action, params)
	if err != nil {
		return Result{}, err
	}

	if action.Runner == nil {
		return Result{}, &ValidationError{Param: action.Name, Message: "action has no runner"}
	}

	// Apply the default timeout when the caller set no deadline.
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, DefaultActionTimeout)
		defer cancel()
	}

	e.mu.Lock()
	env := Env{WorkDir: e.workDir, MaxOutputSize: e.maxOutputSize}
	e.mu.Unlock()

	result, runErr := action.Runner.Run(ctx, env, validated)
	result.Duration = time.Since(start)

	if runErr != nil {
		result.Success = false
		if result.Error == "" {
			result.Error = runErr.Error()
		}
	}

	// Enforce the output cap even when a runner ignores it.
	if len(result.Stdout) > env.MaxOutputSize {
		result.Stdout = result.Stdout[:env.MaxOutputSize]
		result.Truncated = true
	}
	if len(result.Stderr) > env.MaxOutputSize {
		result.Stderr = result.Stderr[:env.MaxOutputSize]
		result.Truncated = true
	}

	return result, nil
}

// =============================================================================
// PARAMETER VALIDATION
// =============================================================================

// ValidateParams checks params against the action schema and returns a
// new map with defaults applied. Unknown parameters are dropped.
func ValidateParams(action *Action, params map[string]interface{}) (map[string]interface{}, error) {
	validated := make(map[string]interface{}, len(action.Parameters))

	for i := range action.Parameters {
		param := &action.Parameters[i]
		val, exists := params[param.Name]

		if !exists || val == nil {
			if param.Required {
				return nil, &ValidationError{
					Param:   param.Name,
					Message: "required parameter is missing",
				}
			}
			if param.Default != nil {
				validated[param.Name] = param.Default
			}
			continue
		}

		if err := validateType(param, val); err != nil {
			return nil, err
		}
		validated[param.Name] = val
	}

	return validated, nil
}

// validateType validates a parameter value against its semantic type.
// File and directory parameters validate as strings; path existence is
// the action's concern, not the schema's.
func validateType(param *Parameter, val interface{}) error {
	switch param.Type {
	case TypeString, TypeFile, TypeDirectory:
		if _, ok := val.(string); !ok {
			return &ValidationError{Param: param.Name, Message: "expected string"}
		}
	case TypeNumber:
		switch val.(type) {
		case int, int32, int64, float32, float64:
			// OK
		default:
			return &ValidationError{Param: param.Name, Message: "expected number"}
		}
	case TypeBoolean:
		if _, ok := val.(bool); !ok {
			return &ValidationError{Param: param.Name, Message: "expected boolean"}
		}
	}
	return nil
}

// =============================================================================
// PARAM ACCESS HELPERS
// =============================================================================

// StringParam returns a string parameter or the fallback.
func StringParam(params map[string]interface{}, name, fallback string) string {
	if v, ok := params[name].(string); ok {
		return v
	}
	return fallback
}

// IntParam returns a numeric parameter as int or the fallback. JSON
// decoding yields float64 for all numbers, so both forms are accepted.
func IntParam(params map[string]interface{}, name string, fallback int) int {
	switch v := params[name].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	}
	return fallback
}

// BoolParam returns a boolean parameter or the fallback.
func BoolParam(params map[string]interface{}, name string, fallback bool) bool {
	if v, ok := params[name].(bool); ok {
		return v
	}
	return fallback
}
