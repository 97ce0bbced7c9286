// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// ask.go - Single query command handler for the tiller CLI.
//
// Handles "tiller ask", which sends one question through the full
// service pipeline (tool selection, tool rounds, compaction) and
// prints the reply.
//
// Examples:
//
//	tiller ask "What is a context window?"
//	tiller ask "Review this code:" --file main.go
//	tiller ask --json "List the TODO comments"
package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/charmbracelet/glamour"
)

// markdownRenderer is the shared glamour renderer for terminal output.
var markdownRenderer *glamour.TermRenderer

func init() {
	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(80),
	)
	if err != nil {
		// Plain text fallback when the renderer cannot initialize.
		return
	}
	markdownRenderer = r
}

// renderMarkdown renders markdown for terminal display, returning the
// original content if rendering fails.
func renderMarkdown(content string) string {
	if markdownRenderer == nil {
		return content
	}
	rendered, err := markdownRenderer.Render(content)
	if err != nil {
		return content
	}
	return rendered
}

// displayResponse prints a reply, rendering markdown only on a TTY so
// piped output stays clean.
func displayResponse(response string) {
	if IsStdoutTTY() {
		fmt.Print(renderMarkdown(response))
	} else {
		fmt.Println(response)
	}
}

// HandleAsk runs a one-shot question and prints the answer.
func HandleAsk(args Args) {
	if args.Query == "" {
		Errorf("usage: tiller ask \"question\"")
		os.Exit(1)
	}

	cfg, err := LoadConfig(args)
	if err != nil {
		Errorf("loading config: %v", err)
		os.Exit(1)
	}

	svc, err := NewService(cfg)
	if err != nil {
		Errorf("%v", err)
		os.Exit(1)
	}

	query := args.Query
	if args.File != "" {
		data, err := os.ReadFile(args.File)
		if err != nil {
			Errorf("reading %s: %v", args.File, err)
			os.Exit(1)
		}
		query = fmt.Sprintf("%s\n\n```\n%s\n```", query, data)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	reply, err := svc.SendMessage(ctx, query, nil)
	if err != nil {
		Errorf("%v", err)
		os.Exit(1)
	}

	if args.JSON {
		st := svc.GetSessionStatus()
		out, _ := json.Marshal(map[string]interface{}{
			"response": reply,
			"model":    cfg.ActiveProvider().Model,
			"tokens":   st.EstimatedTokens,
		})
		fmt.Println(string(out))
		return
	}

	displayResponse(reply)
}
