// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package chat provides the chat view for the tiller TUI.
//
// This file contains the Bubble Tea update loop.
package chat

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/morganforge/tiller/internal/ui/components"
)

// Init starts the spinner and the worker event pump.
func (m *Model) Init() tea.Cmd {
	return tea.Batch(
		m.spin.Tick,
		m.waitForEvent(),
		m.input.Focus(),
	)
}

// Update handles all incoming messages.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.resize(msg.Width, msg.Height)
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spin, cmd = m.spin.Update(msg)
		return m, cmd

	case TurnStartedMsg:
		m.state = components.StatusThinking
		m.statusNote = ""
		m.refresh()
		return m, m.waitForEvent()

	case TurnCompletedMsg:
		m.state = components.StatusReady
		m.lastErr = nil
		m.refresh()
		return m, m.waitForEvent()

	case TurnFailedMsg:
		m.state = components.StatusError
		m.lastErr = msg.Err
		m.refresh()
		return m, m.waitForEvent()

	case QueueEmptyMsg:
		if m.state != components.StatusError {
			m.state = components.StatusReady
		}
		return m, m.waitForEvent()

	case QueueStoppedMsg:
		m.state = components.StatusReady
		if msg.Discarded > 0 {
			m.statusNote = fmt.Sprintf("stopped, %d queued message(s) discarded", msg.Discarded)
		} else {
			m.statusNote = "stopped"
		}
		m.refresh()
		return m, m.waitForEvent()

	case StatusNoteMsg:
		m.statusNote = msg.Note
		m.refresh()
		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	cmds = append(cmds, cmd)
	m.viewport, cmd = m.viewport.Update(msg)
	cmds = append(cmds, cmd)
	return m, tea.Batch(cmds...)
}

func (m *Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		m.q.Stop()
		return m, tea.Quit

	case key.Matches(msg, m.keys.Stop):
		m.q.Stop()
		return m, nil

	case key.Matches(msg, m.keys.Submit):
		return m.handleSubmit()

	case key.Matches(msg, m.keys.PageUp):
		m.viewport.HalfViewUp()
		return m, nil

	case key.Matches(msg, m.keys.PageDown):
		m.viewport.HalfViewDown()
		return m, nil
	}

	var cmds []tea.Cmd
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	cmds = append(cmds, cmd)
	m.viewport, cmd = m.viewport.Update(msg)
	cmds = append(cmds, cmd)
	return m, tea.Batch(cmds...)
}

func (m *Model) handleSubmit() (tea.Model, tea.Cmd) {
	text := strings.TrimSpace(m.input.Value())
	if text == "" {
		return m, nil
	}
	m.input.Reset()

	if strings.HasPrefix(text, "/") {
		return m.runCommand(text)
	}

	m.q.Enqueue(text, nil)
	m.statusNote = ""
	return m, nil
}

func (m *Model) resize(width, height int) {
	m.width = width
	m.height = height
	m.theme.Resize(width, height)
	m.statusBar.Width = width
	m.welcome.Width = width

	// Header, input box, and status bar share the vertical space
	// with the viewport.
	chromeHeight := 5
	vpHeight := height - chromeHeight
	if vpHeight < 3 {
		vpHeight = 3
	}

	if !m.ready {
		m.viewport = viewportModel(width, vpHeight)
		m.ready = true
	} else {
		m.viewport.Width = width
		m.viewport.Height = vpHeight
	}
	m.refresh()
}

// refresh re-renders the transcript into the viewport and follows the
// tail.
func (m *Model) refresh() {
	if !m.ready {
		return
	}
	m.viewport.SetContent(m.renderTranscript())
	m.viewport.GotoBottom()
	m.statusBar.Session = m.svc.GetSessionStatus()
	m.statusBar.QueueLen = m.q.Len()
	m.statusBar.Status = m.state
}
