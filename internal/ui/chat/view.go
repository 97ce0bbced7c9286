// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package chat provides the chat view for the tiller TUI.
//
// This file contains the Bubble Tea view rendering.
package chat

import (
	"strings"

	"github.com/charmbracelet/bubbles/viewport"

	"github.com/morganforge/tiller/internal/model"
	"github.com/morganforge/tiller/internal/ui/components"
)

func historyWithoutSystem(msgs []model.ChatMessage) []model.ChatMessage {
	out := make([]model.ChatMessage, 0, len(msgs))
	for _, msg := range msgs {
		if msg.Role != model.RoleSystem {
			out = append(out, msg)
		}
	}
	return out
}

func viewportModel(width, height int) viewport.Model {
	vp := viewport.New(width, height)
	vp.MouseWheelEnabled = true
	return vp
}

// View renders the full chat screen.
func (m *Model) View() string {
	if !m.ready {
		return "loading..."
	}

	var b strings.Builder
	b.WriteString(m.renderHeader())
	b.WriteByte('\n')
	b.WriteString(m.viewport.View())
	b.WriteByte('\n')
	b.WriteString(m.renderInput())
	b.WriteByte('\n')
	b.WriteString(m.statusBar.View())
	return b.String()
}

func (m *Model) renderHeader() string {
	title := m.theme.HeaderTitle.Render("tiller")
	model := m.theme.HeaderModel.Render(m.cfg.Provider + " / " + m.cfg.ActiveProvider().Model)
	return m.theme.Header.Render(title + "  " + model)
}

func (m *Model) renderInput() string {
	line := m.input.View()
	if m.state == components.StatusThinking || m.state == components.StatusRunningTool {
		line = m.spin.View() + " " + m.theme.ThinkingText.Render(m.state.String())
	}
	return m.theme.InputContainer.Width(m.width - 2).Render(line)
}

// renderTranscript renders the session history as message bubbles,
// preceded by the welcome banner when the conversation is empty.
func (m *Model) renderTranscript() string {
	history := m.svc.GetHistory()

	var parts []string
	if len(historyWithoutSystem(history)) == 0 {
		parts = append(parts, m.welcome.View())
	}

	for _, msg := range history {
		if msg.Role == model.RoleSystem {
			continue
		}
		bubble := components.NewMessageBubble(m.theme, msg)
		bubble.SetWidth(m.width)
		parts = append(parts, bubble.View())
	}

	if m.lastErr != nil {
		parts = append(parts, m.theme.ErrorBox.Render(m.lastErr.Error()))
	}
	if m.statusNote != "" {
		parts = append(parts, m.theme.ThinkingText.Render(m.statusNote))
	}

	return strings.Join(parts, "\n\n")
}
