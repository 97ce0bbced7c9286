// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// ============================================================================
// DEFAULTS
// ============================================================================

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg.Provider != "anthropic" {
		t.Errorf("default provider = %q, want anthropic", cfg.Provider)
	}
	if cfg.ContextWindow != 128000 {
		t.Errorf("default context window = %d, want 128000", cfg.ContextWindow)
	}
	if cfg.OpenAI.Model == "" || cfg.Anthropic.Model == "" {
		t.Error("default provider models must be set")
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config should validate: %v", err)
	}
}

// ============================================================================
// LOAD / SAVE
// ============================================================================

func TestSaveLoadTOMLRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")

	cfg := Default()
	cfg.Provider = "openai"
	cfg.ContextWindow = 32000
	cfg.OpenAI.APIKey = "sk-test-123"
	cfg.OpenAI.Model = "gpt-4o-mini"
	cfg.UI.Theme = "light"

	if err := SaveTo(cfg, path); err != nil {
		t.Fatalf("SaveTo: %v", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat: %v", err)
	}
	if info.Mode().Perm() != 0600 {
		t.Errorf("config file mode = %v, want 0600", info.Mode().Perm())
	}

	loaded, err := LoadFromPath(path)
	if err != nil {
		t.Fatalf("LoadFromPath: %v", err)
	}
	if loaded.Provider != "openai" {
		t.Errorf("provider = %q, want openai", loaded.Provider)
	}
	if loaded.ContextWindow != 32000 {
		t.Errorf("context window = %d, want 32000", loaded.ContextWindow)
	}
	if loaded.OpenAI.APIKey != "sk-test-123" {
		t.Errorf("api key = %q, want sk-test-123", loaded.OpenAI.APIKey)
	}
	if loaded.UI.Theme != "light" {
		t.Errorf("theme = %q, want light", loaded.UI.Theme)
	}
}

func TestLoadJSONFallback(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")

	cfg := Default()
	cfg.Provider = "openai"
	cfg.OpenAI.Model = "gpt-4o"
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		t.Fatalf("write: %v", err)
	}

	loaded, err := LoadFromPath(path)
	if err != nil {
		t.Fatalf("LoadFromPath: %v", err)
	}
	if loaded.Provider != "openai" {
		t.Errorf("provider = %q, want openai", loaded.Provider)
	}
	if loaded.OpenAI.Model != "gpt-4o" {
		t.Errorf("model = %q, want gpt-4o", loaded.OpenAI.Model)
	}
}

func TestLoadFromPathMissing(t *testing.T) {
	_, err := LoadFromPath(filepath.Join(t.TempDir(), "nope.toml"))
	if err == nil {
		t.Error("expected error loading missing file")
	}
}

// ============================================================================
// ENV OVERRIDES
// ============================================================================

func TestEnvOverrides(t *testing.T) {
	t.Setenv("TILLER_PROVIDER", "openai")
	t.Setenv("TILLER_CONTEXT_WINDOW", "64000")
	t.Setenv("TILLER_OPENAI_API_KEY", "sk-env-key")
	t.Setenv("TILLER_MODEL", "gpt-4-turbo")
	t.Setenv("TILLER_WORK_DIR", "/tmp/work")

	cfg := Default()
	cfg.ApplyEnvOverrides()

	if cfg.Provider != "openai" {
		t.Errorf("provider = %q, want openai", cfg.Provider)
	}
	if cfg.ContextWindow != 64000 {
		t.Errorf("context window = %d, want 64000", cfg.ContextWindow)
	}
	if cfg.OpenAI.APIKey != "sk-env-key" {
		t.Errorf("openai key = %q, want sk-env-key", cfg.OpenAI.APIKey)
	}
	if cfg.OpenAI.Model != "gpt-4-turbo" {
		t.Errorf("model = %q, want gpt-4-turbo", cfg.OpenAI.Model)
	}
	if cfg.Tools.WorkDir != "/tmp/work" {
		t.Errorf("work dir = %q, want /tmp/work", cfg.Tools.WorkDir)
	}
}

func TestEnvOverridesProviderKeyFallback(t *testing.T) {
	t.Setenv("ANTHROPIC_API_KEY", "sk-ant-fallback")

	cfg := Default()
	cfg.ApplyEnvOverrides()

	if cfg.Anthropic.APIKey != "sk-ant-fallback" {
		t.Errorf("anthropic key = %q, want sk-ant-fallback", cfg.Anthropic.APIKey)
	}
}

func TestEnvOverridesTillerKeyWins(t *testing.T) {
	t.Setenv("TILLER_ANTHROPIC_API_KEY", "sk-explicit")
	t.Setenv("ANTHROPIC_API_KEY", "sk-generic")

	cfg := Default()
	cfg.ApplyEnvOverrides()

	if cfg.Anthropic.APIKey != "sk-explicit" {
		t.Errorf("anthropic key = %q, want sk-explicit", cfg.Anthropic.APIKey)
	}
}

// ============================================================================
// VALIDATION
// ============================================================================

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"valid default", func(c *Config) {}, false},
		{"unknown provider", func(c *Config) { c.Provider = "gemini" }, true},
		{"zero context window", func(c *Config) { c.ContextWindow = 0 }, true},
		{"negative context window", func(c *Config) { c.ContextWindow = -1 }, true},
		{"negative timeout", func(c *Config) { c.Anthropic.TimeoutSecs = -5 }, true},
		{"negative retries", func(c *Config) { c.Anthropic.MaxRetries = -1 }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestActiveProvider(t *testing.T) {
	cfg := Default()

	cfg.Provider = "openai"
	if got := cfg.ActiveProvider(); got != &cfg.OpenAI {
		t.Error("ActiveProvider should return OpenAI section")
	}

	cfg.Provider = "anthropic"
	if got := cfg.ActiveProvider(); got != &cfg.Anthropic {
		t.Error("ActiveProvider should return Anthropic section")
	}
}

func TestSaveToAtomic(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")

	cfg := Default()
	if err := SaveTo(cfg, path); err != nil {
		t.Fatalf("first save: %v", err)
	}
	cfg.UI.Theme = "light"
	if err := SaveTo(cfg, path); err != nil {
		t.Fatalf("second save: %v", err)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("readdir: %v", err)
	}
	if len(entries) != 1 {
		t.Errorf("expected 1 file after rewrite, got %d", len(entries))
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if !strings.Contains(string(data), "light") {
		t.Error("rewritten config should contain updated theme")
	}
}
