// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package chat provides the chat view for the tiller TUI.
//
// This file implements the slash commands available at the prompt.
package chat

import (
	"context"
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/morganforge/tiller/internal/storage"
)

// commandTimeout bounds the storage calls behind slash commands.
const commandTimeout = 10 * time.Second

// splitCommand separates "/save my title" into ("save", "my title").
func splitCommand(input string) (name, args string) {
	input = strings.TrimPrefix(input, "/")
	if i := strings.IndexByte(input, ' '); i >= 0 {
		return strings.ToLower(input[:i]), strings.TrimSpace(input[i+1:])
	}
	return strings.ToLower(input), ""
}

// helpText lists every slash command with a short description.
func helpText() string {
	lines := []string{
		"/help           show this help",
		"/clear          clear the conversation",
		"/tokens         show context window usage",
		"/save           save the conversation",
		"/load [id]      load a conversation (latest without id)",
		"/list           list saved conversations",
		"/delete <id>    delete a saved conversation",
		"/quit           exit tiller",
	}
	return strings.Join(lines, "\n")
}

func (m *Model) runCommand(input string) (tea.Model, tea.Cmd) {
	name, args := splitCommand(input)

	switch name {
	case "help":
		m.statusNote = helpText()

	case "clear":
		m.svc.ClearHistory()
		m.conversationID = ""
		m.statusNote = "conversation cleared"

	case "tokens":
		st := m.svc.GetSessionStatus()
		m.statusNote = fmt.Sprintf("%d messages, %d/%d tokens (%.1f%%)",
			st.MessageCount, st.EstimatedTokens, st.ContextWindow, st.UsagePercent)

	case "save":
		m.statusNote = m.saveConversation()

	case "load":
		m.statusNote = m.loadConversation(args)

	case "list":
		m.statusNote = m.listConversations()

	case "delete":
		m.statusNote = m.deleteConversation(args)

	case "quit", "exit":
		m.q.Stop()
		return m, tea.Quit

	default:
		m.statusNote = fmt.Sprintf("unknown command /%s, try /help", name)
	}

	m.refresh()
	return m, nil
}

func (m *Model) saveConversation() string {
	history := historyWithoutSystem(m.svc.GetHistory())
	if len(history) == 0 {
		return "nothing to save"
	}

	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()

	id, err := m.store.Save(ctx, &storage.Conversation{
		ID:       m.conversationID,
		Model:    m.cfg.ActiveProvider().Model,
		Messages: history,
	})
	if err != nil {
		return "save failed: " + err.Error()
	}
	m.conversationID = id
	return "saved " + id
}

func (m *Model) loadConversation(id string) string {
	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()

	var conv *storage.Conversation
	var err error
	if id == "" {
		conv, err = m.store.LoadLatest(ctx)
	} else {
		conv, err = m.store.Load(ctx, id)
	}
	if err != nil {
		return "load failed: " + err.Error()
	}

	m.svc.RestoreHistory(conv.Messages)
	m.conversationID = conv.ID
	return fmt.Sprintf("loaded %q (%d messages)", conv.Title, len(conv.Messages))
}

func (m *Model) listConversations() string {
	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()

	metas, err := m.store.List(ctx)
	if err != nil {
		return "list failed: " + err.Error()
	}
	if len(metas) == 0 {
		return "no saved conversations"
	}

	var b strings.Builder
	for _, meta := range metas {
		fmt.Fprintf(&b, "%s  %-30s  %d msgs  %s\n",
			meta.ID[:8], meta.Title, meta.MessageCount,
			meta.UpdatedAt.Format("2006-01-02 15:04"))
	}
	return strings.TrimRight(b.String(), "\n")
}

func (m *Model) deleteConversation(id string) string {
	if id == "" {
		return "usage: /delete <id>"
	}

	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()

	if err := m.store.Delete(ctx, id); err != nil {
		return "delete failed: " + err.Error()
	}
	if id == m.conversationID {
		m.conversationID = ""
	}
	return "deleted " + id
}
