// tiller - conversational AI for the terminal.
//
// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/morganforge/tiller/internal/cli"
	"github.com/morganforge/tiller/internal/config"
	"github.com/morganforge/tiller/internal/ui/chat"
)

// Version information (set at build time)
var (
	Version   = "0.1.0"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

func init() {
	cli.Version = Version
	cli.GitCommit = GitCommit
	cli.BuildDate = BuildDate
}

func main() {
	cmd, args := cli.Parse()

	switch cmd {
	case cli.CmdTUI:
		runTUI(args)
	case cli.CmdAsk:
		cli.HandleAsk(args)
	case cli.CmdChat:
		cli.HandleChat(args)
	case cli.CmdConfig:
		cli.HandleConfig(args)
	case cli.CmdSetup:
		cli.HandleSetup(args)
	case cli.CmdHistory:
		if err := cli.HandleHistory(args); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	case cli.CmdVersion:
		cli.HandleVersion(args)
	case cli.CmdHelp:
		cli.PrintUsage()
	default:
		cli.PrintUsage()
		os.Exit(1)
	}
}

// runTUI starts the full-screen chat interface.
func runTUI(args cli.Args) {
	cfg, err := cli.LoadConfig(args)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: loading config: %v\n", err)
		fmt.Fprintln(os.Stderr, "Run tiller setup to create one.")
		os.Exit(1)
	}

	svc, err := cli.NewService(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	store, err := cli.OpenStore()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: opening conversation store: %v\n", err)
		os.Exit(1)
	}
	defer store.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	model := chat.New(ctx, svc, store, cfg)
	program := tea.NewProgram(model, tea.WithAltScreen(), tea.WithMouseCellMotion())

	// Surface on-disk config edits in the status area. Changes apply
	// on the next start.
	if path, err := config.PathTOML(); err == nil {
		go func() {
			_ = config.Watch(ctx, path, func(*config.Config) {
				program.Send(chat.StatusNoteMsg{Note: "config changed on disk, restart to apply"})
			})
		}()
	}

	if _, err := program.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
