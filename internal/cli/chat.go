// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// chat.go - Interactive terminal chat for tiller without the full TUI.
//
// Uses liner for input history and editing. Slash commands mirror the
// TUI: /help, /clear, /tokens, /save, /load, /list, /quit.
package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/peterh/liner"

	"github.com/morganforge/tiller/internal/config"
	"github.com/morganforge/tiller/internal/service"
	"github.com/morganforge/tiller/internal/storage"
)

// historyFileName is where liner persists input history.
const historyFileName = "history"

// =============================================================================
// INPUT
// =============================================================================

// ChatInput wraps liner with persistent history.
type ChatInput struct {
	line        *liner.State
	historyPath string
}

// NewChatInput creates the line editor and loads saved history.
func NewChatInput() *ChatInput {
	line := liner.NewLiner()
	line.SetCtrlCAborts(true)

	c := &ChatInput{line: line}
	if dir, err := config.Dir(); err == nil {
		c.historyPath = filepath.Join(dir, historyFileName)
		if f, err := os.Open(c.historyPath); err == nil {
			line.ReadHistory(f)
			f.Close()
		}
	}
	return c
}

// Read prompts for one line of input.
func (c *ChatInput) Read(prompt string) (string, error) {
	input, err := c.line.Prompt(prompt)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(input) != "" {
		c.line.AppendHistory(input)
	}
	return input, nil
}

// Close saves history and restores the terminal.
func (c *ChatInput) Close() {
	if c.historyPath != "" {
		if f, err := os.Create(c.historyPath); err == nil {
			c.line.WriteHistory(f)
			f.Close()
		}
	}
	c.line.Close()
}

// =============================================================================
// CHAT LOOP
// =============================================================================

// HandleChat runs the interactive REPL.
func HandleChat(args Args) {
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

	store, err := OpenStore()
	if err != nil {
		Errorf("opening conversation store: %v", err)
		os.Exit(1)
	}
	defer store.Close()

	input := NewChatInput()
	defer input.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if !args.Quiet {
		fmt.Printf("tiller chat  (%s / %s)\n", cfg.Provider, cfg.ActiveProvider().Model)
		fmt.Println("Type /help for commands, /quit to exit.")
		fmt.Println()
	}

	var conversationID string
	for {
		text, err := input.Read("> ")
		if err != nil {
			// Ctrl-C or EOF ends the session.
			fmt.Println()
			return
		}
		text = strings.TrimSpace(text)
		if text == "" {
			continue
		}

		if strings.HasPrefix(text, "/") {
			if done := runChatCommand(ctx, svc, store, cfg, &conversationID, text); done {
				return
			}
			continue
		}

		reply, err := svc.SendMessage(ctx, text, nil)
		if err != nil {
			Errorf("%v", err)
			continue
		}
		displayResponse(reply)
		fmt.Println()
	}
}

// runChatCommand executes a slash command. Returns true when the
// session should end.
func runChatCommand(ctx context.Context, svc *service.Service, store *storage.Store, cfg *config.Config, conversationID *string, text string) bool {
	name, rest := text, ""
	if i := strings.IndexByte(text, ' '); i >= 0 {
		name, rest = text[:i], strings.TrimSpace(text[i+1:])
	}

	switch strings.ToLower(name) {
	case "/help":
		fmt.Println("/help /clear /tokens /save /load [id] /list /quit")

	case "/clear":
		svc.ClearHistory()
		*conversationID = ""
		fmt.Println("conversation cleared")

	case "/tokens":
		st := svc.GetSessionStatus()
		fmt.Printf("%d messages, %d/%d tokens (%.1f%%)\n",
			st.MessageCount, st.EstimatedTokens, st.ContextWindow, st.UsagePercent)

	case "/save":
		history := svc.GetHistory()
		if len(history) == 0 {
			fmt.Println("nothing to save")
			break
		}
		id, err := store.Save(ctx, &storage.Conversation{
			ID:       *conversationID,
			Model:    cfg.ActiveProvider().Model,
			Messages: history,
		})
		if err != nil {
			Errorf("save failed: %v", err)
			break
		}
		*conversationID = id
		fmt.Println("saved", id)

	case "/load":
		var conv *storage.Conversation
		var err error
		if rest == "" {
			conv, err = store.LoadLatest(ctx)
		} else {
			conv, err = store.Load(ctx, rest)
		}
		if err != nil {
			Errorf("load failed: %v", err)
			break
		}
		svc.RestoreHistory(conv.Messages)
		*conversationID = conv.ID
		fmt.Printf("loaded %q (%d messages)\n", conv.Title, len(conv.Messages))

	case "/list":
		metas, err := store.List(ctx)
		if err != nil {
			Errorf("list failed: %v", err)
			break
		}
		for _, meta := range metas {
			fmt.Printf("%s  %-30s  %d msgs\n", meta.ID[:8], meta.Title, meta.MessageCount)
		}

	case "/quit", "/exit":
		return true

	default:
		fmt.Printf("unknown command %s, try /help\n", name)
	}
	return false
}
