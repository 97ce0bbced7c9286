// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package service orchestrates one conversational turn: compaction,
// tool selection, the vendor call, and the bounded tool-call round
// loop. It owns the Session exclusively; callers serialize turns
// through the queue.
package service

import (
	"context"
	"fmt"
	"log"

	"github.com/morganforge/tiller/internal/client"
	"github.com/morganforge/tiller/internal/detect"
	"github.com/morganforge/tiller/internal/match"
	"github.com/morganforge/tiller/internal/model"
	"github.com/morganforge/tiller/internal/session"
	"github.com/morganforge/tiller/internal/tools"
)

// =============================================================================
// CONSTANTS
// =============================================================================

// MaxToolRounds caps consecutive tool-call rounds within one turn.
// Hitting the cap resolves to MaxRoundsMessage rather than an error so
// a runaway chain degrades to a visible reply.
const MaxToolRounds = 5

// MaxRoundsMessage is returned when a turn exhausts its tool rounds.
const MaxRoundsMessage = "I reached the maximum number of tool call rounds for this request. Here is what I have so far; please narrow the request and try again."

// compactPrompt asks the model to fold history into one summary turn.
const compactPrompt = "Summarize the conversation so far in a compact form that preserves all facts, decisions, file paths, and open questions. Reply with only the summary."

// =============================================================================
// SERVICE
// =============================================================================

// Service drives conversations for one session.
type Service struct {
	client   client.Client
	session  *session.Session
	registry *tools.Registry
	handler  *ToolHandler
	workDir  string
}

// New wires an orchestrator. The session is owned exclusively by this
// service from here on.
func New(c client.Client, sess *session.Session, registry *tools.Registry, executor *tools.Executor, workDir string) *Service {
	return &Service{
		client:   c,
		session:  sess,
		registry: registry,
		handler:  NewToolHandler(registry, executor),
		workDir:  workDir,
	}
}

// =============================================================================
// MESSAGE PROCESSING
// =============================================================================

// SendMessage runs one full turn and returns the assistant's reply
// text. When mctx is nil the per-turn context is rebuilt from the
// working directory.
func (s *Service) SendMessage(ctx context.Context, userText string, mctx *match.Context) (string, error) {
	// Compaction is a synchronous prerequisite: a failed summary call
	// fails the turn instead of being swallowed.
	if err := s.maybeCompact(ctx, model.EstimateTokens(userText)); err != nil {
		return "", fmt.Errorf("compacting conversation: %w", err)
	}

	s.session.AddUserMessage(userText)

	if mctx == nil {
		mctx = &match.Context{WorkDir: s.workDir, Project: detect.Detect(s.workDir)}
	}
	selected := match.SelectTools(s.registry, userText, *mctx)

	return s.runToolRounds(ctx, selected)
}

// runToolRounds calls the vendor repeatedly, executing tool calls
// between rounds, until the model stops asking for tools or the round
// cap is hit.
func (s *Service) runToolRounds(ctx context.Context, selected []*tools.Tool) (string, error) {
	for round := 0; round <= MaxToolRounds; round++ {
		resp, err := s.client.Chat(ctx, s.session.History(), selected)
		if err != nil {
			return "", err
		}

		s.session.AddAssistantMessage(resp.Message, resp.Usage)

		if resp.FinishReason != model.FinishToolCalls {
			return resp.Message.Content, nil
		}
		if round == MaxToolRounds {
			break
		}

		log.Printf("[SERVICE] round %d: executing %d tool calls", round+1, len(resp.Message.ToolCalls))
		for _, msg := range s.handler.HandleToolCalls(ctx, resp.Message.ToolCalls) {
			s.session.AddToolMessage(msg)
		}
	}

	log.Printf("[SERVICE] tool round cap reached (%d)", MaxToolRounds)
	return MaxRoundsMessage, nil
}

// maybeCompact summarizes and replaces the history when the projected
// usage crosses the high-water mark. The summary is produced by a
// nested vendor call with no tools offered.
func (s *Service) maybeCompact(ctx context.Context, estimatedNewTokens int) error {
	check := s.session.ShouldCompact(estimatedNewTokens)
	if !check.ShouldCompact || check.RealMessageCount == 0 {
		return nil
	}

	log.Printf("[SERVICE] compacting session at %.1f%% usage", check.UsagePercent)

	history := append(s.session.History(), model.NewUserMessage(compactPrompt))
	resp, err := s.client.Chat(ctx, history, nil)
	if err != nil {
		return err
	}
	if resp.Message.Content == "" {
		return fmt.Errorf("summary call returned empty content")
	}

	s.session.CompactWith(resp.Message.Content)
	return nil
}

// =============================================================================
// SESSION DELEGATION
// =============================================================================

// The accessors below delegate to Session; its invariants live there
// and nowhere else.

func (s *Service) SetSystemPrompt(prompt string) { s.session.SetSystemPrompt(prompt) }

func (s *Service) GetHistory() []model.ChatMessage { return s.session.History() }

func (s *Service) ClearHistory() { s.session.Clear() }

func (s *Service) RestoreHistory(msgs []model.ChatMessage) { s.session.Restore(msgs) }

func (s *Service) GetContextWindow() int { return s.session.ContextWindow() }

func (s *Service) GetSessionStatus() session.Status { return s.session.GetStatus() }

func (s *Service) GetAvailableTokens() int { return s.session.AvailableTokens() }

func (s *Service) ShouldCompact(n int) session.CompactCheck { return s.session.ShouldCompact(n) }

func (s *Service) CompactWith(summary string) { s.session.CompactWith(summary) }

// GetConfig exposes the underlying client configuration.
func (s *Service) GetConfig() client.Config { return s.client.GetConfig() }
