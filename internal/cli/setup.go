// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// setup.go - First-run wizard for tiller.
//
// Walks through provider choice, model, and API key, then writes the
// config file. API keys are read without echo.
package cli

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"golang.org/x/term"

	"github.com/morganforge/tiller/internal/config"
)

// HandleSetup runs the interactive setup wizard.
func HandleSetup(args Args) {
	fmt.Println("tiller setup")
	fmt.Println()

	cfg, err := config.Load()
	if err != nil {
		// Start fresh when the existing file is broken.
		cfg = config.Default()
	}

	providers := []string{"anthropic", "openai"}
	idx := promptChoice("Provider", providers, indexOf(providers, cfg.Provider))
	cfg.Provider = providers[idx]

	active := cfg.ActiveProvider()
	active.Model = promptString("Model", active.Model)

	key := promptSecure(fmt.Sprintf("%s API key (enter to keep current)", cfg.Provider))
	if key != "" {
		active.APIKey = key
	}

	workDir := promptString("Tool working directory (empty for cwd)", cfg.Tools.WorkDir)
	cfg.Tools.WorkDir = workDir

	if err := cfg.Validate(); err != nil {
		Errorf("%v", err)
		os.Exit(1)
	}
	if err := config.Save(cfg); err != nil {
		Errorf("saving config: %v", err)
		os.Exit(1)
	}

	path, _ := config.PathTOML()
	fmt.Println()
	fmt.Println("Saved", path)
	fmt.Println("Run tiller to start chatting.")
}

func indexOf(options []string, value string) int {
	for i, opt := range options {
		if opt == value {
			return i
		}
	}
	return 0
}

// promptString asks for a line of input with a default.
func promptString(prompt, defaultVal string) string {
	if defaultVal != "" {
		fmt.Printf("%s [%s]: ", prompt, defaultVal)
	} else {
		fmt.Printf("%s: ", prompt)
	}

	reader := bufio.NewReader(os.Stdin)
	input, err := reader.ReadString('\n')
	if err != nil {
		return defaultVal
	}
	input = strings.TrimSpace(input)
	if input == "" {
		return defaultVal
	}
	return input
}

// promptSecure reads a secret without echoing it to the terminal.
func promptSecure(prompt string) string {
	fmt.Printf("%s: ", prompt)

	keyBytes, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Println()
	if err != nil {
		// Not a terminal, fall back to a normal read.
		return promptString(prompt, "")
	}
	return strings.TrimSpace(string(keyBytes))
}

// promptChoice presents numbered options and returns the chosen index.
func promptChoice(prompt string, options []string, defaultIdx int) int {
	fmt.Println(prompt + ":")
	for i, opt := range options {
		marker := " "
		if i == defaultIdx {
			marker = "*"
		}
		fmt.Printf("  %s %d) %s\n", marker, i+1, opt)
	}

	input := promptString("Choice", fmt.Sprintf("%d", defaultIdx+1))
	var n int
	if _, err := fmt.Sscanf(input, "%d", &n); err != nil || n < 1 || n > len(options) {
		return defaultIdx
	}
	return n - 1
}
