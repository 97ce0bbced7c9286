// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package styles provides the visual styling system for the tiller TUI.
package styles

import (
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
)

// Theme holds all the styled components for the application.
// It detects the terminal's color capability and adjusts accordingly.
type Theme struct {
	// Terminal capabilities
	IsDark       bool
	HasTrueColor bool
	ColorProfile termenv.Profile

	// Layout dimensions
	Width  int
	Height int

	// ==========================================================================
	// HEADER STYLES
	// ==========================================================================

	Header      lipgloss.Style
	HeaderTitle lipgloss.Style
	HeaderModel lipgloss.Style

	// ==========================================================================
	// MESSAGE STYLES
	// ==========================================================================

	UserBubble      lipgloss.Style
	AssistantBubble lipgloss.Style
	RoleLabel       lipgloss.Style
	ToolSuccess     lipgloss.Style
	ToolError       lipgloss.Style

	// ==========================================================================
	// INPUT AREA STYLES
	// ==========================================================================

	InputContainer lipgloss.Style
	InputPrompt    lipgloss.Style

	// ==========================================================================
	// STATUS BAR STYLES
	// ==========================================================================

	StatusBar      lipgloss.Style
	StatusProvider lipgloss.Style
	StatusTokensOK lipgloss.Style
	StatusTokensHi lipgloss.Style
	StatusQueue    lipgloss.Style

	// ==========================================================================
	// MISC STYLES
	// ==========================================================================

	Spinner      lipgloss.Style
	ThinkingText lipgloss.Style
	ErrorBox     lipgloss.Style
	HelpKey      lipgloss.Style
	HelpDesc     lipgloss.Style
	CodeBlock    lipgloss.Style
	CodeBadge    lipgloss.Style
}

// NewTheme builds a theme sized to the current terminal.
func NewTheme(width, height int) *Theme {
	profile := termenv.ColorProfile()

	t := &Theme{
		IsDark:       lipgloss.HasDarkBackground(),
		HasTrueColor: profile == termenv.TrueColor,
		ColorProfile: profile,
		Width:        width,
		Height:       height,
	}

	t.Header = lipgloss.NewStyle().
		Background(SurfaceDim).
		Padding(0, 1).
		Width(width)
	t.HeaderTitle = lipgloss.NewStyle().
		Foreground(Cyan).
		Bold(true)
	t.HeaderModel = lipgloss.NewStyle().
		Foreground(TextSecondary)

	t.UserBubble = lipgloss.NewStyle().
		Foreground(UserBubbleFg).
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(UserBubbleBorder).
		Padding(0, 2)
	t.AssistantBubble = lipgloss.NewStyle().
		Foreground(AssistantBubbleFg).
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(AssistantBubbleBorder).
		Padding(0, 2)
	t.RoleLabel = lipgloss.NewStyle().
		Foreground(TextMuted).
		Italic(true)
	t.ToolSuccess = lipgloss.NewStyle().
		Foreground(ToolSuccessFg)
	t.ToolError = lipgloss.NewStyle().
		Foreground(ToolErrorFg)

	t.InputContainer = lipgloss.NewStyle().
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(Overlay).
		Padding(0, 1)
	t.InputPrompt = lipgloss.NewStyle().
		Foreground(Cyan).
		Bold(true)

	t.StatusBar = lipgloss.NewStyle().
		Background(SurfaceDim).
		Foreground(TextSecondary).
		Padding(0, 1).
		Width(width)
	t.StatusProvider = lipgloss.NewStyle().
		Foreground(Cyan).
		Bold(true)
	t.StatusTokensOK = lipgloss.NewStyle().
		Foreground(Emerald)
	t.StatusTokensHi = lipgloss.NewStyle().
		Foreground(Amber).
		Bold(true)
	t.StatusQueue = lipgloss.NewStyle().
		Foreground(Purple)

	t.Spinner = lipgloss.NewStyle().
		Foreground(Purple)
	t.ThinkingText = lipgloss.NewStyle().
		Foreground(TextMuted).
		Italic(true)
	t.ErrorBox = lipgloss.NewStyle().
		Foreground(Rose).
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(Rose).
		Padding(0, 1)
	t.HelpKey = lipgloss.NewStyle().
		Foreground(Cyan)
	t.HelpDesc = lipgloss.NewStyle().
		Foreground(TextMuted)
	t.CodeBlock = lipgloss.NewStyle().
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(Overlay).
		Padding(0, 1)
	t.CodeBadge = lipgloss.NewStyle().
		Background(Overlay).
		Foreground(TextSecondary).
		Padding(0, 1)

	return t
}

// Resize updates the layout-dependent styles for a new terminal size.
func (t *Theme) Resize(width, height int) {
	t.Width = width
	t.Height = height
	t.Header = t.Header.Width(width)
	t.StatusBar = t.StatusBar.Width(width)
}
