// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// cli.go - CLI parsing and command routing for tiller.
package cli

import (
	"fmt"
	"os"
	"strings"
)

// Version information (can be overridden at build time)
var (
	Version   = "0.1.0"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// Command represents the CLI command to execute.
type Command int

const (
	CmdTUI Command = iota
	CmdAsk
	CmdChat
	CmdConfig
	CmdSetup
	CmdHistory
	CmdVersion
	CmdHelp
)

// Args holds parsed CLI arguments.
type Args struct {
	// Global flags
	Quiet    bool
	Verbose  bool
	JSON     bool
	Model    string
	Provider string

	// Command-specific
	Query string
	File  string

	// Raw args remaining after the command name
	Raw []string
}

const usageText = `tiller - conversational AI for the terminal

Tiller is a terminal client for OpenAI and Anthropic models with
tool calling, conversation persistence, and context management.

Usage:
  tiller                     Start the TUI (default)
  tiller ask "question"      Ask a single question
  tiller chat                Interactive chat in the terminal
  tiller config [show|get|set|path]
                             Configuration management
  tiller setup               First-run wizard
  tiller history [list|show|search|export|delete|clear]
                             Saved conversation management
  tiller version             Show version
  tiller help                Show this help

Global flags:
  -m, --model NAME           Override the configured model
  --provider NAME            Override the provider (openai|anthropic)
  --json                     Machine-readable output where supported
  -q, --quiet                Minimal output
  -v, --verbose              Verbose output

Examples:
  tiller ask "What does this error mean?" --file build.log
  tiller ask --json "Summarize the repo layout"
  tiller config set provider openai
  tiller history search "refactor"
`

// PrintUsage writes the usage text to stdout.
func PrintUsage() {
	fmt.Print(usageText)
}

// Parse reads os.Args and returns the command to run plus its
// arguments.
func Parse() (Command, Args) {
	raw := os.Args[1:]

	remaining, parsed := parseGlobalFlags(raw)

	if len(remaining) == 0 {
		return CmdTUI, parsed
	}

	cmd := strings.ToLower(remaining[0])
	remaining = remaining[1:]
	parsed.Raw = remaining

	switch cmd {
	case "tui":
		return CmdTUI, parsed

	case "ask":
		parseAskArgs(&parsed, remaining)
		return CmdAsk, parsed

	case "chat":
		return CmdChat, parsed

	case "config":
		return CmdConfig, parsed

	case "setup":
		return CmdSetup, parsed

	case "history", "conversations":
		return CmdHistory, parsed

	case "version", "-V", "--version":
		return CmdVersion, parsed

	case "help", "-h", "--help":
		return CmdHelp, parsed

	default:
		// Bare question, treat it like ask.
		parsed.Query = strings.Join(append([]string{cmd}, remaining...), " ")
		return CmdAsk, parsed
	}
}

// parseGlobalFlags strips flags that apply to every command.
func parseGlobalFlags(raw []string) ([]string, Args) {
	var args Args
	var remaining []string

	i := 0
	for i < len(raw) {
		switch raw[i] {
		case "-q", "--quiet":
			args.Quiet = true
			i++
		case "-v", "--verbose":
			args.Verbose = true
			i++
		case "--json":
			args.JSON = true
			i++
		case "-m", "--model":
			if i+1 < len(raw) {
				args.Model = raw[i+1]
				i += 2
			} else {
				i++
			}
		case "--provider":
			if i+1 < len(raw) {
				args.Provider = raw[i+1]
				i += 2
			} else {
				i++
			}
		default:
			remaining = append(remaining, raw[i])
			i++
		}
	}

	return remaining, args
}

// parseAskArgs pulls the --file flag and joins the rest into the query.
func parseAskArgs(args *Args, remaining []string) {
	var queryParts []string

	i := 0
	for i < len(remaining) {
		switch remaining[i] {
		case "-f", "--file":
			if i+1 < len(remaining) {
				args.File = remaining[i+1]
				i += 2
			} else {
				i++
			}
		default:
			queryParts = append(queryParts, remaining[i])
			i++
		}
	}

	args.Query = strings.Join(queryParts, " ")
}

// HandleVersion prints build information.
func HandleVersion(args Args) {
	if args.JSON {
		fmt.Printf("{\"version\":%q,\"commit\":%q,\"built\":%q}\n", Version, GitCommit, BuildDate)
		return
	}
	fmt.Printf("tiller %s (commit %s, built %s)\n", Version, GitCommit, BuildDate)
}
