// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package components provides the visual UI components for the tiller TUI.
package components

import (
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/morganforge/tiller/internal/ui/styles"
)

// =============================================================================
// WELCOME SCREEN
// =============================================================================

// Welcome is the banner shown before the first message.
type Welcome struct {
	Version  string
	Provider string
	Model    string
	Width    int

	theme *styles.Theme
}

// NewWelcome creates the welcome banner.
func NewWelcome(theme *styles.Theme) *Welcome {
	return &Welcome{
		Version: "dev",
		Width:   80,
		theme:   theme,
	}
}

// View renders the banner.
func (w *Welcome) View() string {
	title := lipgloss.NewStyle().
		Foreground(styles.Cyan).
		Bold(true).
		Render("tiller")

	sub := lipgloss.NewStyle().
		Foreground(styles.TextSecondary).
		Render(w.Provider + " / " + w.Model + "  (" + w.Version + ")")

	hints := []string{
		w.theme.HelpKey.Render("Enter") + w.theme.HelpDesc.Render(" send"),
		w.theme.HelpKey.Render("Esc") + w.theme.HelpDesc.Render(" stop"),
		w.theme.HelpKey.Render("/help") + w.theme.HelpDesc.Render(" commands"),
		w.theme.HelpKey.Render("Ctrl+C") + w.theme.HelpDesc.Render(" quit"),
	}

	body := title + "\n" + sub + "\n\n" + strings.Join(hints, "   ")
	return lipgloss.NewStyle().
		Padding(1, 2).
		Width(w.Width).
		Render(body)
}
