// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package session tracks conversation history against a token budget.
// History is append-only except for CompactWith, which atomically
// replaces everything with a single summary turn.
package session

import (
	"sync"

	"github.com/morganforge/tiller/internal/model"
)

// =============================================================================
// CONSTANTS
// =============================================================================

// CompactThresholdPercent is the usage high-water mark past which the
// conversation should be compacted into a summary.
const CompactThresholdPercent = 85.0

// DefaultContextWindow is used when the model's window is unknown.
const DefaultContextWindow = 8192

// =============================================================================
// TYPES
// =============================================================================

// CompactCheck is the result of a ShouldCompact probe.
type CompactCheck struct {
	ShouldCompact bool
	UsagePercent  float64
	// RealMessageCount excludes a prior compaction summary so repeated
	// compaction is not mistaken for an empty conversation.
	RealMessageCount int
}

// TrimResult reports what EnsureSpace removed.
type TrimResult struct {
	TrimmedCount int
	FreedTokens  int
}

// Status is a read-only snapshot for display.
type Status struct {
	MessageCount    int
	EstimatedTokens int
	ContextWindow   int
	UsagePercent    float64
	Compacted       bool
}

// Session owns one conversation's history and token accounting. All
// methods are safe for concurrent use, though the queue normally
// guarantees a single writer.
type Session struct {
	mu            sync.Mutex
	contextWindow int
	systemPrompt  string
	systemTokens  int

	messages  []model.ChatMessage
	perMsg    []int // token estimate per message, aligned with messages
	total     int
	compacted bool // history currently begins with a compaction summary
}

// New creates a session with the given context window in tokens.
func New(contextWindow int) *Session {
	if contextWindow <= 0 {
		contextWindow = DefaultContextWindow
	}
	return &Session{contextWindow: contextWindow}
}

// =============================================================================
// HISTORY MUTATION
// =============================================================================

// SetSystemPrompt sets the prompt prepended to every history snapshot.
// The prompt itself is never dropped, but its tokens count against the
// window, so installing a larger prompt can trim old history.
func (s *Session) SetSystemPrompt(prompt string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.systemPrompt = prompt
	s.systemTokens = model.EstimateTokens(prompt)
	s.trimLocked()
}

// usedLocked is total usage, history plus the system prompt. Vendor
// usage totals already cover the prompt; counting it again errs on the
// early-compaction side, which is the safe side for an estimate.
func (s *Session) usedLocked() int {
	return s.systemTokens + s.total
}

// AddUserMessage appends a user turn and re-estimates usage.
func (s *Session) AddUserMessage(text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.appendLocked(model.NewUserMessage(text), 0)
}

// AddAssistantMessage appends an assistant turn. When vendor usage
// stats are present they are authoritative for the whole conversation;
// otherwise the message is estimated by length.
func (s *Session) AddAssistantMessage(msg model.ChatMessage, usage *model.Usage) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if usage != nil && usage.TotalTokens > 0 {
		s.messages = append(s.messages, msg)
		s.perMsg = append(s.perMsg, usage.CompletionTokens)
		s.total = usage.TotalTokens
		s.trimLocked()
		return
	}
	s.appendLocked(msg, 0)
}

// AddToolMessage appends a tool-result turn, accounted like any other.
func (s *Session) AddToolMessage(msg model.ChatMessage) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.appendLocked(msg, 0)
}

// Restore replaces the history with a saved conversation, estimating
// token usage from scratch. The system prompt is preserved.
func (s *Session) Restore(msgs []model.ChatMessage) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.messages = nil
	s.perMsg = nil
	s.total = 0
	s.compacted = false
	for _, msg := range msgs {
		s.appendLocked(msg, 0)
	}
}

// appendLocked adds a message with the given token count, estimating
// when tokens is zero, then trims if the budget is blown.
func (s *Session) appendLocked(msg model.ChatMessage, tokens int) {
	if tokens <= 0 {
		tokens = msg.EstimateTokens()
	}
	s.messages = append(s.messages, msg)
	s.perMsg = append(s.perMsg, tokens)
	s.total += tokens
	s.trimLocked()
}

// trimLocked drops oldest messages until the system prompt plus
// history fits the window. The newest message always survives.
func (s *Session) trimLocked() {
	for s.usedLocked() > s.contextWindow && len(s.messages) > 1 {
		s.dropOldestLocked()
	}
}

func (s *Session) dropOldestLocked() {
	s.total -= s.perMsg[0]
	if s.total < 0 {
		s.total = 0
	}
	s.messages = s.messages[1:]
	s.perMsg = s.perMsg[1:]
	// Dropping the summary turn means the history no longer starts
	// with one.
	s.compacted = false
}

// =============================================================================
// COMPACTION
// =============================================================================

// ShouldCompact reports whether adding estimatedNewTokens would push
// usage past the high-water mark.
func (s *Session) ShouldCompact(estimatedNewTokens int) CompactCheck {
	s.mu.Lock()
	defer s.mu.Unlock()

	projected := s.usedLocked() + estimatedNewTokens
	percent := float64(projected) / float64(s.contextWindow) * 100

	real := len(s.messages)
	if s.compacted && real > 0 {
		real--
	}

	return CompactCheck{
		ShouldCompact:    percent >= CompactThresholdPercent,
		UsagePercent:     percent,
		RealMessageCount: real,
	}
}

// CompactWith atomically replaces the entire history with a single
// assistant-authored summary turn.
func (s *Session) CompactWith(summary string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	msg := model.NewAssistantMessage(summary)
	tokens := msg.EstimateTokens()

	s.messages = []model.ChatMessage{msg}
	s.perMsg = []int{tokens}
	s.total = tokens
	s.compacted = true
}

// EnsureSpace drops oldest messages until requiredTokens fit or only
// the newest turn remains. The newest message is never dropped.
func (s *Session) EnsureSpace(requiredTokens int) TrimResult {
	s.mu.Lock()
	defer s.mu.Unlock()

	var result TrimResult
	for s.contextWindow-s.usedLocked() < requiredTokens && len(s.messages) > 1 {
		result.FreedTokens += s.perMsg[0]
		result.TrimmedCount++
		s.dropOldestLocked()
	}
	return result
}

// =============================================================================
// ACCESSORS
// =============================================================================

// History returns a defensive copy of the conversation, with the
// system prompt as the first message when one is set.
func (s *Session) History() []model.ChatMessage {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]model.ChatMessage, 0, len(s.messages)+1)
	if s.systemPrompt != "" {
		out = append(out, model.NewSystemMessage(s.systemPrompt))
	}
	return append(out, s.messages...)
}

// AvailableTokens is the budget remaining after the system prompt and
// history, floored at zero.
func (s *Session) AvailableTokens() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	available := s.contextWindow - s.usedLocked()
	if available < 0 {
		return 0
	}
	return available
}

// ContextWindow returns the session's token budget.
func (s *Session) ContextWindow() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.contextWindow
}

// EstimatedTokens returns current history usage, excluding the system
// prompt.
func (s *Session) EstimatedTokens() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.total
}

// MessageCount returns the number of history turns, excluding the
// system prompt.
func (s *Session) MessageCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.messages)
}

// GetStatus returns a display snapshot.
func (s *Session) GetStatus() Status {
	s.mu.Lock()
	defer s.mu.Unlock()

	// UsagePercent includes the system prompt so the displayed gauge
	// tracks the same budget the compaction probe uses.
	return Status{
		MessageCount:    len(s.messages),
		EstimatedTokens: s.total,
		ContextWindow:   s.contextWindow,
		UsagePercent:    float64(s.usedLocked()) / float64(s.contextWindow) * 100,
		Compacted:       s.compacted,
	}
}

// Clear empties the history and accounting. The system prompt survives.
func (s *Session) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.messages = nil
	s.perMsg = nil
	s.total = 0
	s.compacted = false
}
