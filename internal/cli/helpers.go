// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// helpers.go - Shared wiring used by every CLI command handler.
package cli

import (
	"fmt"
	"os"
	"time"

	"golang.org/x/term"

	"github.com/morganforge/tiller/internal/client"
	"github.com/morganforge/tiller/internal/config"
	"github.com/morganforge/tiller/internal/service"
	"github.com/morganforge/tiller/internal/session"
	"github.com/morganforge/tiller/internal/storage"
	"github.com/morganforge/tiller/internal/tools"
)

// LoadConfig loads configuration and applies command-line overrides.
func LoadConfig(args Args) (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if args.Provider != "" {
		cfg.Provider = args.Provider
	}
	if args.Model != "" {
		cfg.ActiveProvider().Model = args.Model
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// NewClient builds the AI client for the configured provider.
func NewClient(cfg *config.Config) (client.Client, error) {
	p := cfg.ActiveProvider()
	cc := client.Config{
		APIKey:     p.APIKey,
		Model:      p.Model,
		BaseURL:    p.BaseURL,
		Timeout:    time.Duration(p.TimeoutSecs) * time.Second,
		MaxRetries: p.MaxRetries,
	}

	switch cfg.Provider {
	case "openai":
		return client.NewOpenAIClient(cc), nil
	case "anthropic":
		return client.NewAnthropicClient(cc), nil
	default:
		return nil, fmt.Errorf("unknown provider %q", cfg.Provider)
	}
}

// NewService wires a complete AI service from configuration.
func NewService(cfg *config.Config) (*service.Service, error) {
	c, err := NewClient(cfg)
	if err != nil {
		return nil, err
	}

	workDir := cfg.Tools.WorkDir
	if workDir == "" {
		workDir, err = os.Getwd()
		if err != nil {
			return nil, err
		}
	}

	registry := tools.NewRegistry()
	registry.RegisterBuiltins()
	executor := tools.NewExecutor(workDir)
	sess := session.New(cfg.ContextWindow)

	return service.New(c, sess, registry, executor, workDir), nil
}

// OpenStore opens the conversation store at its default location.
func OpenStore() (*storage.Store, error) {
	path, err := storage.DefaultPath()
	if err != nil {
		return nil, err
	}
	return storage.Open(path)
}

// IsStdoutTTY reports whether stdout is attached to a terminal.
// Markdown rendering and colors are disabled for piped output.
func IsStdoutTTY() bool {
	return term.IsTerminal(int(os.Stdout.Fd()))
}

// Errorf writes a formatted error line to stderr.
func Errorf(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, "Error: "+format+"\n", args...)
}
