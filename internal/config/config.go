// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package config loads and persists tiller configuration. TOML is the
// primary format with JSON as a fallback; environment variables
// override both. The resolved values are passed into constructors at
// startup, never read through module-level state.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/morganforge/tiller/internal/util"
)

// =============================================================================
// CONFIG TYPES
// =============================================================================

// Config is the root configuration.
type Config struct {
	Version string `toml:"version" json:"version"`

	// Provider selects which vendor handles chat calls: "openai" or
	// "anthropic".
	Provider string `toml:"provider" json:"provider"`

	// ContextWindow is the session token budget.
	ContextWindow int `toml:"context_window" json:"context_window"`

	OpenAI    ProviderConfig `toml:"openai" json:"openai"`
	Anthropic ProviderConfig `toml:"anthropic" json:"anthropic"`
	Tools     ToolsConfig    `toml:"tools" json:"tools"`
	UI        UIConfig       `toml:"ui" json:"ui"`
}

// ProviderConfig holds one vendor's connection settings.
type ProviderConfig struct {
	APIKey      string `toml:"api_key" json:"api_key"`
	Model       string `toml:"model" json:"model"`
	BaseURL     string `toml:"base_url" json:"base_url"`
	TimeoutSecs int    `toml:"timeout_secs" json:"timeout_secs"`
	MaxRetries  int    `toml:"max_retries" json:"max_retries"`
}

// ToolsConfig controls local tool execution.
type ToolsConfig struct {
	// WorkDir is where tool actions run; empty means the process's
	// current directory.
	WorkDir string `toml:"work_dir" json:"work_dir"`

	// ActionTimeoutSecs bounds a single tool action.
	ActionTimeoutSecs int `toml:"action_timeout_secs" json:"action_timeout_secs"`
}

// UIConfig controls terminal presentation.
type UIConfig struct {
	Theme      string `toml:"theme" json:"theme"`
	ShowTokens bool   `toml:"show_tokens" json:"show_tokens"`
	VimMode    bool   `toml:"vim_mode" json:"vim_mode"`
}

// =============================================================================
// DEFAULTS
// =============================================================================

// Default returns the baseline configuration.
func Default() *Config {
	return &Config{
		Version:       "1.0.0",
		Provider:      "anthropic",
		ContextWindow: 128000,

		OpenAI: ProviderConfig{
			Model:       "gpt-4o",
			TimeoutSecs: 60,
			MaxRetries:  3,
		},
		Anthropic: ProviderConfig{
			Model:       "claude-sonnet-4-20250514",
			TimeoutSecs: 60,
			MaxRetries:  3,
		},
		Tools: ToolsConfig{
			ActionTimeoutSecs: 30,
		},
		UI: UIConfig{
			Theme:      "dark",
			ShowTokens: true,
		},
	}
}

// =============================================================================
// PATHS
// =============================================================================

// Dir returns the tiller configuration directory.
func Dir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("finding home directory: %w", err)
	}
	return filepath.Join(home, ".tiller"), nil
}

// PathTOML returns the primary config file path.
func PathTOML() (string, error) {
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}

// PathJSON returns the fallback config file path.
func PathJSON() (string, error) {
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.json"), nil
}

// =============================================================================
// LOAD
// =============================================================================

// Load reads configuration from disk, preferring TOML over JSON, then
// applies environment overrides and validates. Missing files are not
// an error; defaults apply.
func Load() (*Config, error) {
	cfg := Default()

	if path, err := PathTOML(); err == nil {
		if _, statErr := os.Stat(path); statErr == nil {
			return finishLoad(cfg, LoadTOML(cfg, path))
		}
	}
	if path, err := PathJSON(); err == nil {
		if _, statErr := os.Stat(path); statErr == nil {
			return finishLoad(cfg, LoadJSON(cfg, path))
		}
	}
	return finishLoad(cfg, nil)
}

// LoadFromPath reads configuration from an explicit file, picking the
// decoder by extension.
func LoadFromPath(path string) (*Config, error) {
	cfg := Default()
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		return finishLoad(cfg, LoadTOML(cfg, path))
	case ".json":
		return finishLoad(cfg, LoadJSON(cfg, path))
	default:
		return nil, fmt.Errorf("unsupported config format %q", filepath.Ext(path))
	}
}

func finishLoad(cfg *Config, loadErr error) (*Config, error) {
	if loadErr != nil {
		return nil, loadErr
	}
	cfg.ApplyEnvOverrides()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// LoadTOML decodes a TOML file over cfg.
func LoadTOML(cfg *Config, path string) error {
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return fmt.Errorf("decoding %s: %w", path, err)
	}
	return nil
}

// LoadJSON decodes a JSON file over cfg.
func LoadJSON(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading %s: %w", path, err)
	}
	if err := json.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("decoding %s: %w", path, err)
	}
	return nil
}

// =============================================================================
// ENVIRONMENT OVERRIDES
// =============================================================================

// ApplyEnvOverrides lets the environment win over file values. The
// plain vendor variables (OPENAI_API_KEY, ANTHROPIC_API_KEY) are
// honored when no TILLER_ variant is set.
func (c *Config) ApplyEnvOverrides() {
	if v := os.Getenv("TILLER_PROVIDER"); v != "" {
		c.Provider = v
	}
	if v := os.Getenv("TILLER_CONTEXT_WINDOW"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.ContextWindow = n
		}
	}

	applyKeyOverride(&c.OpenAI.APIKey, "TILLER_OPENAI_API_KEY", "OPENAI_API_KEY")
	applyKeyOverride(&c.Anthropic.APIKey, "TILLER_ANTHROPIC_API_KEY", "ANTHROPIC_API_KEY")

	if v := os.Getenv("TILLER_MODEL"); v != "" {
		c.ActiveProvider().Model = v
	}
	if v := os.Getenv("TILLER_WORK_DIR"); v != "" {
		c.Tools.WorkDir = v
	}
}

func applyKeyOverride(target *string, names ...string) {
	for _, name := range names {
		if v := os.Getenv(name); v != "" {
			*target = v
			return
		}
	}
}

// =============================================================================
// VALIDATION
// =============================================================================

// Validate checks the fields a typo would most likely break.
func (c *Config) Validate() error {
	switch c.Provider {
	case "openai", "anthropic":
	default:
		return fmt.Errorf("provider must be openai or anthropic, got %q", c.Provider)
	}
	if c.ContextWindow <= 0 {
		return fmt.Errorf("context_window must be positive, got %d", c.ContextWindow)
	}
	active := c.ActiveProvider()
	if active.TimeoutSecs < 0 {
		return fmt.Errorf("timeout_secs must not be negative")
	}
	if active.MaxRetries < 0 {
		return fmt.Errorf("max_retries must not be negative")
	}
	return nil
}

// ActiveProvider returns the settings for the selected vendor.
func (c *Config) ActiveProvider() *ProviderConfig {
	if c.Provider == "openai" {
		return &c.OpenAI
	}
	return &c.Anthropic
}

// =============================================================================
// SAVE
// =============================================================================

// Save writes the configuration to the primary TOML path atomically.
// API keys end up on disk, so the file is not group or world readable.
func Save(cfg *Config) error {
	path, err := PathTOML()
	if err != nil {
		return err
	}
	return SaveTo(cfg, path)
}

// SaveTo writes the configuration to an explicit TOML path.
func SaveTo(cfg *Config, path string) error {
	var sb strings.Builder
	if err := toml.NewEncoder(&sb).Encode(cfg); err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}
	return util.AtomicWriteFile(path, []byte(sb.String()), 0600)
}
