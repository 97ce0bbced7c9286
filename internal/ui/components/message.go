// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package components provides the visual UI components for the tiller TUI.
package components

import (
	"strings"

	"github.com/morganforge/tiller/internal/model"
	"github.com/morganforge/tiller/internal/ui/styles"
)

// =============================================================================
// MESSAGE BUBBLE COMPONENT
// =============================================================================

// MessageBubble renders a single conversation turn.
type MessageBubble struct {
	Message model.ChatMessage
	Width   int

	theme *styles.Theme
}

// NewMessageBubble creates a bubble for one message.
func NewMessageBubble(theme *styles.Theme, msg model.ChatMessage) *MessageBubble {
	return &MessageBubble{
		Message: msg,
		Width:   80,
		theme:   theme,
	}
}

// SetWidth sets the render width.
func (b *MessageBubble) SetWidth(width int) {
	b.Width = width
}

// View renders the message according to its role.
func (b *MessageBubble) View() string {
	switch b.Message.Role {
	case model.RoleUser:
		return b.renderUser()
	case model.RoleAssistant:
		return b.renderAssistant()
	case model.RoleTool:
		return b.renderTool()
	default:
		return b.Message.Content
	}
}

func (b *MessageBubble) renderUser() string {
	label := b.theme.RoleLabel.Render("you")
	bubble := b.theme.UserBubble.MaxWidth(b.contentWidth()).Render(b.Message.Content)
	return label + "\n" + bubble
}

func (b *MessageBubble) renderAssistant() string {
	content := b.Message.Content
	if content == "" && b.Message.HasToolCalls() {
		names := make([]string, 0, len(b.Message.ToolCalls))
		for _, call := range b.Message.ToolCalls {
			names = append(names, call.Function.Name)
		}
		content = "[calling " + strings.Join(names, ", ") + "]"
	}

	label := b.theme.RoleLabel.Render("assistant")
	body := b.renderMarkdownish(content)
	bubble := b.theme.AssistantBubble.MaxWidth(b.contentWidth()).Render(body)
	return label + "\n" + bubble
}

func (b *MessageBubble) renderTool() string {
	style := b.theme.ToolSuccess
	if strings.HasPrefix(b.Message.Content, "Error:") {
		style = b.theme.ToolError
	}
	content := b.Message.Content
	if max := b.Width * 8; len(content) > max {
		content = content[:max] + "\n[truncated]"
	}
	return b.theme.RoleLabel.Render("tool") + "\n" + style.Render(content)
}

func (b *MessageBubble) contentWidth() int {
	w := b.Width - 4
	if w < 20 {
		w = 20
	}
	return w
}

// renderMarkdownish highlights fenced code blocks and leaves the
// prose alone. Full markdown layout is left to the terminal.
func (b *MessageBubble) renderMarkdownish(content string) string {
	if !strings.Contains(content, "```") {
		return content
	}

	var out strings.Builder
	rest := content
	for {
		start := strings.Index(rest, "```")
		if start < 0 {
			out.WriteString(rest)
			break
		}
		out.WriteString(rest[:start])
		rest = rest[start+3:]

		end := strings.Index(rest, "```")
		if end < 0 {
			// Unclosed fence, emit as-is.
			out.WriteString("```")
			out.WriteString(rest)
			break
		}

		block := rest[:end]
		rest = rest[end+3:]

		language := ""
		if nl := strings.IndexByte(block, '\n'); nl >= 0 {
			language = strings.TrimSpace(block[:nl])
			block = block[nl+1:]
		}
		out.WriteString(NewCodeBlock(b.theme, language, block).View())
	}
	return out.String()
}
