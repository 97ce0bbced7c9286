// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// builtins.go defines the built-in tools: git, shell, file, and web.
// Discovery is a LookPath probe per tool; tools backed by the standard
// library are always installed.
package tools

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"
)

// =============================================================================
// BUILTIN REGISTRATION
// =============================================================================

// RegisterBuiltins registers the built-in tools and probes their
// installed state.
func (r *Registry) RegisterBuiltins() {
	r.Register(GitTool())
	r.Register(ShellTool())
	r.Register(FileTool())
	r.Register(WebTool())
}

// binaryInstalled reports whether the named binary is on PATH.
func binaryInstalled(name string) bool {
	_, err := exec.LookPath(name)
	return err == nil
}

// =============================================================================
// PROCESS EXECUTION
// =============================================================================

// runCommand executes a binary with arguments in the environment's
// working directory, capturing stdout and stderr separately.
func runCommand(ctx context.Context, env Env, name string, args ...string) (Result, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = env.WorkDir

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()

	result := Result{
		Stdout: stdout.String(),
		Stderr: stderr.String(),
	}

	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			result.ExitCode = exitErr.ExitCode()
			result.Error = fmt.Sprintf("%s exited with code %d", name, result.ExitCode)
			return result, nil
		}
		if ctx.Err() != nil {
			result.Error = "execution timed out: " + ctx.Err().Error()
			return result, nil
		}
		result.Error = err.Error()
		return result, nil
	}

	result.Success = true
	return result, nil
}

// =============================================================================
// GIT TOOL
// =============================================================================

// GitTool exposes read-oriented git operations.
func GitTool() *Tool {
	return &Tool{
		ID:           "git",
		Description:  "Inspect the git repository in the working directory",
		Installed:    binaryInstalled("git"),
		InstallHint:  "install git from https://git-scm.com/downloads",
		Capabilities: []string{"vcs"},
		Keywords:     []string{"git", "commit", "branch", "diff", "repository", "repo"},
		Actions: []Action{
			{
				Name:        "status",
				Description: "Show the working tree status",
				Runner: RunnerFunc(func(ctx context.Context, env Env, params map[string]interface{}) (Result, error) {
					return runCommand(ctx, env, "git", "status", "--short", "--branch")
				}),
			},
			{
				Name:        "log",
				Description: "Show recent commits",
				Parameters: []Parameter{
					{Name: "count", Type: TypeNumber, Description: "Number of commits to show", Default: 10},
				},
				Runner: RunnerFunc(func(ctx context.Context, env Env, params map[string]interface{}) (Result, error) {
					count := IntParam(params, "count", 10)
					return runCommand(ctx, env, "git", "log", "--oneline", "-n", strconv.Itoa(count))
				}),
			},
			{
				Name:        "diff",
				Description: "Show uncommitted changes, optionally limited to one path",
				Parameters: []Parameter{
					{Name: "path", Type: TypeFile, Description: "Limit the diff to this path"},
				},
				Runner: RunnerFunc(func(ctx context.Context, env Env, params map[string]interface{}) (Result, error) {
					args := []string{"diff"}
					if path := StringParam(params, "path", ""); path != "" {
						args = append(args, "--", path)
					}
					return runCommand(ctx, env, "git", args...)
				}),
			},
		},
	}
}

// =============================================================================
// SHELL TOOL
// =============================================================================

// ShellTool runs a single command line through the system shell.
func ShellTool() *Tool {
	return &Tool{
		ID:           "shell",
		Description:  "Run a shell command in the working directory",
		Installed:    true,
		Capabilities: []string{"execute"},
		Keywords:     []string{"run", "execute", "command", "shell", "terminal"},
		Actions: []Action{
			{
				Name:        "run",
				Description: "Execute a command and return its output",
				Parameters: []Parameter{
					{Name: "command", Type: TypeString, Description: "The command line to run", Required: true},
					{Name: "timeout", Type: TypeNumber, Description: "Timeout in seconds", Default: 30},
				},
				Runner: RunnerFunc(func(ctx context.Context, env Env, params map[string]interface{}) (Result, error) {
					command := StringParam(params, "command", "")
					timeout := IntParam(params, "timeout", 30)
					if timeout > 0 {
						var cancel context.CancelFunc
						ctx, cancel = context.WithTimeout(ctx, time.Duration(timeout)*time.Second)
						defer cancel()
					}
					return runCommand(ctx, env, shellBinary(), "-c", command)
				}),
			},
		},
	}
}

// shellBinary returns the shell used for the shell tool, honoring $SHELL.
func shellBinary() string {
	if sh := os.Getenv("SHELL"); sh != "" {
		return sh
	}
	return "/bin/sh"
}

// =============================================================================
// FILE TOOL
// =============================================================================

// maxFileReadSize caps how much of a file the read action returns.
const maxFileReadSize = 256 * 1024

// FileTool exposes read, write, and list operations on the filesystem.
func FileTool() *Tool {
	return &Tool{
		ID:           "file",
		Description:  "Read, write, and list files in the working directory",
		Installed:    true,
		Capabilities: []string{"filesystem"},
		Keywords:     []string{"file", "read", "write", "edit", "directory", "folder", "list"},
		Actions: []Action{
			{
				Name:        "read",
				Description: "Read a file's contents",
				Parameters: []Parameter{
					{Name: "path", Type: TypeFile, Description: "Path of the file to read", Required: true},
				},
				Runner: RunnerFunc(runFileRead),
			},
			{
				Name:        "write",
				Description: "Write content to a file, replacing what is there",
				Parameters: []Parameter{
					{Name: "path", Type: TypeFile, Description: "Path of the file to write", Required: true},
					{Name: "content", Type: TypeString, Description: "Content to write", Required: true},
				},
				Runner: RunnerFunc(runFileWrite),
			},
			{
				Name:        "list",
				Description: "List directory entries",
				Parameters: []Parameter{
					{Name: "path", Type: TypeDirectory, Description: "Directory to list", Default: "."},
				},
				Runner: RunnerFunc(runFileList),
			},
		},
	}
}

// resolvePath joins relative paths onto the working directory.
func resolvePath(env Env, path string) string {
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(env.WorkDir, path)
}

func runFileRead(ctx context.Context, env Env, params map[string]interface{}) (Result, error) {
	path := resolvePath(env, StringParam(params, "path", ""))

	info, err := os.Stat(path)
	if err != nil {
		return Result{Error: err.Error()}, nil
	}
	if info.IsDir() {
		return Result{Error: path + " is a directory"}, nil
	}

	f, err := os.Open(path)
	if err != nil {
		return Result{Error: err.Error()}, nil
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, maxFileReadSize))
	if err != nil {
		return Result{Error: err.Error()}, nil
	}

	return Result{
		Success:   true,
		Stdout:    string(data),
		Truncated: info.Size() > maxFileReadSize,
	}, nil
}

func runFileWrite(ctx context.Context, env Env, params map[string]interface{}) (Result, error) {
	path := resolvePath(env, StringParam(params, "path", ""))
	content := StringParam(params, "content", "")

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return Result{Error: err.Error()}, nil
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		return Result{Error: err.Error()}, nil
	}

	return Result{
		Success: true,
		Stdout:  fmt.Sprintf("wrote %d bytes to %s", len(content), path),
	}, nil
}

func runFileList(ctx context.Context, env Env, params map[string]interface{}) (Result, error) {
	path := resolvePath(env, StringParam(params, "path", "."))

	entries, err := os.ReadDir(path)
	if err != nil {
		return Result{Error: err.Error()}, nil
	}

	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() {
			name += "/"
		}
		names = append(names, name)
	}
	sort.Strings(names)

	return Result{Success: true, Stdout: strings.Join(names, "\n")}, nil
}

// =============================================================================
// WEB TOOL
// =============================================================================

// maxFetchSize caps how much of a response body the fetch action keeps.
const maxFetchSize = 1 * 1024 * 1024

// webFetchTimeout bounds a single fetch independent of the caller.
const webFetchTimeout = 30 * time.Second

// WebTool fetches web content over HTTP(S).
func WebTool() *Tool {
	return &Tool{
		ID:           "web",
		Description:  "Fetch content from a URL",
		Installed:    true,
		Capabilities: []string{"network"},
		Keywords:     []string{"http", "url", "fetch", "download", "website", "web"},
		Actions: []Action{
			{
				Name:        "fetch",
				Description: "Fetch a URL and return the response body",
				Parameters: []Parameter{
					{Name: "url", Type: TypeString, Description: "The URL to fetch", Required: true},
				},
				Runner: RunnerFunc(runWebFetch),
			},
		},
	}
}

func runWebFetch(ctx context.Context, env Env, params map[string]interface{}) (Result, error) {
	rawURL := StringParam(params, "url", "")
	if !strings.HasPrefix(rawURL, "http://") && !strings.HasPrefix(rawURL, "https://") {
		return Result{Error: "url must start with http:// or https://"}, nil
	}

	ctx, cancel := context.WithTimeout(ctx, webFetchTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return Result{Error: err.Error()}, nil
	}
	req.Header.Set("User-Agent", "tiller/1.0")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return Result{Error: err.Error()}, nil
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxFetchSize))
	if err != nil {
		return Result{Error: err.Error()}, nil
	}

	result := Result{
		Stdout:    string(body),
		Truncated: int64(len(body)) == maxFetchSize,
	}
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		result.Success = true
	} else {
		result.Error = fmt.Sprintf("HTTP %d %s", resp.StatusCode, http.StatusText(resp.StatusCode))
	}
	return result, nil
}
