// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// config_cmd.go - Configuration management commands.
//
//	tiller config                 Show the active configuration
//	tiller config show            Same
//	tiller config get <key>       Print one value
//	tiller config set <key> <val> Update and save
//	tiller config path            Print the config file location
package cli

import (
	"fmt"
	"os"
	"strconv"

	"github.com/morganforge/tiller/internal/config"
)

// HandleConfig dispatches the config subcommands.
func HandleConfig(args Args) {
	parser := NewArgParser(args.Raw)

	cfg, err := config.Load()
	if err != nil {
		Errorf("loading config: %v", err)
		os.Exit(1)
	}

	switch parser.Subcommand() {
	case "", "show":
		showConfig(cfg)

	case "get":
		key := parser.Positional(1)
		if key == "" {
			Errorf("usage: tiller config get <key>")
			os.Exit(1)
		}
		value, ok := configValue(cfg, key)
		if !ok {
			Errorf("unknown key %q", key)
			os.Exit(1)
		}
		fmt.Println(value)

	case "set":
		key, value := parser.Positional(1), parser.Positional(2)
		if key == "" || value == "" {
			Errorf("usage: tiller config set <key> <value>")
			os.Exit(1)
		}
		if err := setConfigValue(cfg, key, value); err != nil {
			Errorf("%v", err)
			os.Exit(1)
		}
		if err := cfg.Validate(); err != nil {
			Errorf("%v", err)
			os.Exit(1)
		}
		if err := config.Save(cfg); err != nil {
			Errorf("saving config: %v", err)
			os.Exit(1)
		}
		fmt.Printf("%s = %s\n", key, value)

	case "path":
		path, err := config.PathTOML()
		if err != nil {
			Errorf("%v", err)
			os.Exit(1)
		}
		fmt.Println(path)

	default:
		Errorf("unknown subcommand %q, try show|get|set|path", parser.Subcommand())
		os.Exit(1)
	}
}

func showConfig(cfg *config.Config) {
	fmt.Printf("provider         %s\n", cfg.Provider)
	fmt.Printf("context_window   %d\n", cfg.ContextWindow)
	fmt.Printf("openai.model     %s\n", cfg.OpenAI.Model)
	fmt.Printf("openai.api_key   %s\n", maskKey(cfg.OpenAI.APIKey))
	fmt.Printf("anthropic.model  %s\n", cfg.Anthropic.Model)
	fmt.Printf("anthropic.api_key %s\n", maskKey(cfg.Anthropic.APIKey))
	fmt.Printf("tools.work_dir   %s\n", cfg.Tools.WorkDir)
	fmt.Printf("ui.theme         %s\n", cfg.UI.Theme)
}

// maskKey hides all but the tail of an API key.
func maskKey(key string) string {
	if key == "" {
		return "(not set)"
	}
	if len(key) <= 8 {
		return "****"
	}
	return "****" + key[len(key)-4:]
}

// configValue resolves a dotted key to its current value.
func configValue(cfg *config.Config, key string) (string, bool) {
	switch key {
	case "provider":
		return cfg.Provider, true
	case "context_window":
		return strconv.Itoa(cfg.ContextWindow), true
	case "openai.model":
		return cfg.OpenAI.Model, true
	case "anthropic.model":
		return cfg.Anthropic.Model, true
	case "openai.base_url":
		return cfg.OpenAI.BaseURL, true
	case "anthropic.base_url":
		return cfg.Anthropic.BaseURL, true
	case "tools.work_dir":
		return cfg.Tools.WorkDir, true
	case "ui.theme":
		return cfg.UI.Theme, true
	default:
		return "", false
	}
}

// setConfigValue writes a dotted key. API keys are accepted here so
// scripted setups work, but the setup wizard is the better path.
func setConfigValue(cfg *config.Config, key, value string) error {
	switch key {
	case "provider":
		cfg.Provider = value
	case "context_window":
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("context_window must be a number: %v", err)
		}
		cfg.ContextWindow = n
	case "openai.model":
		cfg.OpenAI.Model = value
	case "anthropic.model":
		cfg.Anthropic.Model = value
	case "openai.api_key":
		cfg.OpenAI.APIKey = value
	case "anthropic.api_key":
		cfg.Anthropic.APIKey = value
	case "openai.base_url":
		cfg.OpenAI.BaseURL = value
	case "anthropic.base_url":
		cfg.Anthropic.BaseURL = value
	case "tools.work_dir":
		cfg.Tools.WorkDir = value
	case "ui.theme":
		if value != "dark" && value != "light" {
			return fmt.Errorf("theme must be dark or light")
		}
		cfg.UI.Theme = value
	default:
		return fmt.Errorf("unknown key %q", key)
	}
	return nil
}
