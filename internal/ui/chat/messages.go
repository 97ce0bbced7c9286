// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package chat provides the chat view for the tiller TUI.
//
// This file defines the Bubble Tea message types emitted by the
// background queue worker. All message types are immutable.
package chat

// TurnStartedMsg signals that the worker picked up a queued message.
type TurnStartedMsg struct {
	ID string
}

// TurnCompletedMsg delivers the assistant's reply for a finished turn.
type TurnCompletedMsg struct {
	ID    string
	Reply string
}

// TurnFailedMsg reports a turn that ended in an error.
type TurnFailedMsg struct {
	ID  string
	Err error
}

// QueueEmptyMsg signals that the queue drained.
type QueueEmptyMsg struct{}

// QueueStoppedMsg reports how many pending messages a stop discarded.
type QueueStoppedMsg struct {
	Discarded int
}

// StatusNoteMsg carries a transient line for the status area, such as
// a config reload notice.
type StatusNoteMsg struct {
	Note string
}
