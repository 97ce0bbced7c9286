// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package components provides the visual UI components for the tiller TUI.
package components

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/morganforge/tiller/internal/session"
	"github.com/morganforge/tiller/internal/ui/styles"
)

// =============================================================================
// STATUS BAR COMPONENT
// =============================================================================

// Status represents the current application status.
type Status int

const (
	StatusReady Status = iota
	StatusThinking
	StatusRunningTool
	StatusCompacting
	StatusError
)

// String returns the display string for the status.
func (s Status) String() string {
	switch s {
	case StatusReady:
		return "Ready"
	case StatusThinking:
		return "Thinking..."
	case StatusRunningTool:
		return "Running tool..."
	case StatusCompacting:
		return "Compacting..."
	case StatusError:
		return "Error"
	default:
		return "Unknown"
	}
}

// tokenWarnPercent marks when the context gauge switches to the
// warning style. It mirrors the threshold that triggers compaction.
const tokenWarnPercent = 85.0

// StatusBar is the bottom status bar showing provider, model, context
// usage and queue depth.
type StatusBar struct {
	Provider string
	Model    string
	Status   Status
	Session  session.Status
	QueueLen int
	Width    int

	theme *styles.Theme
}

// NewStatusBar creates a status bar bound to a theme.
func NewStatusBar(theme *styles.Theme) *StatusBar {
	return &StatusBar{
		Width: 80,
		theme: theme,
	}
}

// View renders the status bar.
func (s *StatusBar) View() string {
	provider := s.theme.StatusProvider.Render(s.Provider)
	model := s.Model

	tokenStyle := s.theme.StatusTokensOK
	if s.Session.UsagePercent >= tokenWarnPercent {
		tokenStyle = s.theme.StatusTokensHi
	}
	tokens := tokenStyle.Render(fmt.Sprintf("%d/%d tok (%.0f%%)",
		s.Session.EstimatedTokens, s.Session.ContextWindow, s.Session.UsagePercent))

	parts := []string{provider, model, tokens, s.Status.String()}
	if s.Session.Compacted {
		parts = append(parts, "compacted")
	}
	if s.QueueLen > 0 {
		parts = append(parts, s.theme.StatusQueue.Render(fmt.Sprintf("queue:%d", s.QueueLen)))
	}

	line := strings.Join(parts, "  |  ")
	if w := lipgloss.Width(line); s.Width > w {
		line += strings.Repeat(" ", s.Width-w-2)
	}
	return s.theme.StatusBar.Render(line)
}
