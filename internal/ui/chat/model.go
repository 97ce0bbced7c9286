// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package chat provides the chat view for the tiller TUI.
package chat

import (
	"context"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/morganforge/tiller/internal/config"
	"github.com/morganforge/tiller/internal/queue"
	"github.com/morganforge/tiller/internal/service"
	"github.com/morganforge/tiller/internal/storage"
	"github.com/morganforge/tiller/internal/ui/components"
	"github.com/morganforge/tiller/internal/ui/styles"
)

// eventBuffer sizes the channel bridging queue callbacks into the
// Bubble Tea loop. Callbacks fire one at a time, so a small buffer
// keeps the worker from ever blocking on the UI.
const eventBuffer = 16

// =============================================================================
// CHAT MODEL
// =============================================================================

// Model is the Bubble Tea model for the chat view.
type Model struct {
	// Styling
	theme *styles.Theme

	// Dimensions
	width  int
	height int
	ready  bool

	// Conversation plumbing
	svc   *service.Service
	q     *queue.Queue
	store *storage.Store
	cfg   *config.Config

	// Events bridged from the queue worker
	events chan tea.Msg

	// UI components
	viewport  viewport.Model
	input     textinput.Model
	spin      spinner.Model
	statusBar *components.StatusBar
	welcome   *components.Welcome
	keys      KeyMap

	// State
	state      components.Status
	statusNote string
	lastErr    error

	// Current conversation id, set after /save or /load
	conversationID string
}

// New wires the chat model to a service, a conversation store, and the
// loaded configuration. The queue worker runs until ctx is cancelled.
func New(ctx context.Context, svc *service.Service, store *storage.Store, cfg *config.Config) *Model {
	theme := styles.NewTheme(80, 24)

	input := textinput.New()
	input.Placeholder = "Ask anything. /help for commands."
	input.Prompt = "> "
	input.Focus()

	spin := spinner.New()
	spin.Spinner = spinner.Dot
	spin.Style = theme.Spinner

	bar := components.NewStatusBar(theme)
	bar.Provider = cfg.Provider
	bar.Model = cfg.ActiveProvider().Model

	welcome := components.NewWelcome(theme)
	welcome.Provider = cfg.Provider
	welcome.Model = cfg.ActiveProvider().Model

	m := &Model{
		theme:     theme,
		svc:       svc,
		store:     store,
		cfg:       cfg,
		events:    make(chan tea.Msg, eventBuffer),
		input:     input,
		spin:      spin,
		statusBar: bar,
		welcome:   welcome,
		keys:      DefaultKeyMap(),
		state:     components.StatusReady,
	}

	m.q = queue.New(ctx, m.process, queue.Callbacks{
		OnMessageStart: func(msg queue.QueuedMessage) {
			m.events <- TurnStartedMsg{ID: msg.ID}
		},
		OnMessageComplete: func(msg queue.QueuedMessage, reply string) {
			m.events <- TurnCompletedMsg{ID: msg.ID, Reply: reply}
		},
		OnMessageError: func(msg queue.QueuedMessage, err error) {
			m.events <- TurnFailedMsg{ID: msg.ID, Err: err}
		},
		OnQueueEmpty: func() {
			m.events <- QueueEmptyMsg{}
		},
		OnStopped: func(discarded int) {
			m.events <- QueueStoppedMsg{Discarded: discarded}
		},
	})

	return m
}

// process is the queue worker body. It drives one full conversation
// turn through the AI service.
func (m *Model) process(ctx context.Context, msg queue.QueuedMessage) (string, error) {
	return m.svc.SendMessage(ctx, msg.Content, nil)
}

// waitForEvent returns a command that delivers the next worker event
// to the Update loop.
func (m *Model) waitForEvent() tea.Cmd {
	return func() tea.Msg {
		return <-m.events
	}
}
