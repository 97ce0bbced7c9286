// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package service

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/morganforge/tiller/internal/client"
	"github.com/morganforge/tiller/internal/match"
	"github.com/morganforge/tiller/internal/model"
	"github.com/morganforge/tiller/internal/session"
	"github.com/morganforge/tiller/internal/tools"
)

// =============================================================================
// FAKES
// =============================================================================

// fakeClient replays scripted responses and records what it was sent.
type fakeClient struct {
	responses []*model.AIResponse
	err       error
	calls     int
	lastSent  []model.ChatMessage
	lastTools []*tools.Tool
}

func (f *fakeClient) Chat(ctx context.Context, messages []model.ChatMessage, toolList []*tools.Tool) (*model.AIResponse, error) {
	f.calls++
	f.lastSent = messages
	f.lastTools = toolList
	if f.err != nil {
		return nil, f.err
	}
	resp := f.responses[0]
	if len(f.responses) > 1 {
		f.responses = f.responses[1:]
	}
	return resp, nil
}

func (f *fakeClient) GetConfig() client.Config {
	return client.Config{Model: "fake"}
}

func textResponse(content string) *model.AIResponse {
	return &model.AIResponse{
		Message:      model.NewAssistantMessage(content),
		FinishReason: model.FinishStop,
	}
}

func toolCallResponse(calls ...model.ToolCall) *model.AIResponse {
	msg := model.NewAssistantMessage("")
	msg.ToolCalls = calls
	return &model.AIResponse{Message: msg, FinishReason: model.FinishToolCalls}
}

func serviceRegistry() *tools.Registry {
	r := tools.NewRegistry()
	r.Register(&tools.Tool{
		ID: "echo", Installed: true,
		Keywords: []string{"echo"},
		Actions: []tools.Action{{
			Name: "say",
			Parameters: []tools.Parameter{
				{Name: "text", Type: tools.TypeString, Required: true},
			},
			Runner: tools.RunnerFunc(func(ctx context.Context, env tools.Env, params map[string]interface{}) (tools.Result, error) {
				return tools.Result{Success: true, Stdout: tools.StringParam(params, "text", "")}, nil
			}),
		}},
	})
	r.Register(&tools.Tool{
		ID: "ghost", Installed: false, InstallHint: "install ghost first",
		Actions: []tools.Action{{Name: "walk", Runner: tools.RunnerFunc(
			func(ctx context.Context, env tools.Env, params map[string]interface{}) (tools.Result, error) {
				return tools.Result{Success: true}, nil
			})}},
	})
	return r
}

func newTestService(fc *fakeClient, window int) *Service {
	registry := serviceRegistry()
	return New(fc, session.New(window), registry, tools.NewExecutor("."), ".")
}

// =============================================================================
// TOOL HANDLER TESTS
// =============================================================================

func TestHandleToolCallsExactlyNInOrder(t *testing.T) {
	registry := serviceRegistry()
	h := NewToolHandler(registry, tools.NewExecutor("."))

	calls := []model.ToolCall{
		model.NewToolCall("c1", "echo_say", `{"text":"one"}`),
		model.NewToolCall("c2", "nonexistent_action", "{}"),
		model.NewToolCall("c1", "echo_say", `{"text":"duplicate id"}`),
		model.NewToolCall("c4", "echo_say", `not json at all`),
	}

	msgs := h.HandleToolCalls(context.Background(), calls)
	if len(msgs) != len(calls) {
		t.Fatalf("got %d messages, want exactly %d", len(msgs), len(calls))
	}
	for i, msg := range msgs {
		if msg.Role != model.RoleTool {
			t.Errorf("msg %d role = %q", i, msg.Role)
		}
		if msg.ToolCallID != calls[i].ID {
			t.Errorf("msg %d tool_call_id = %q, want %q", i, msg.ToolCallID, calls[i].ID)
		}
	}
	if msgs[0].Content != "one" {
		t.Errorf("msgs[0] = %q", msgs[0].Content)
	}
	for _, i := range []int{1, 3} {
		if !strings.HasPrefix(msgs[i].Content, "Error: ") {
			t.Errorf("msg %d should be an error, got %q", i, msgs[i].Content)
		}
	}
}

func TestHandleToolCallsNotInstalled(t *testing.T) {
	h := NewToolHandler(serviceRegistry(), tools.NewExecutor("."))

	msgs := h.HandleToolCalls(context.Background(), []model.ToolCall{
		model.NewToolCall("c1", "ghost_walk", "{}"),
	})
	if len(msgs) != 1 {
		t.Fatalf("got %d messages", len(msgs))
	}
	if !strings.Contains(msgs[0].Content, "install ghost first") {
		t.Errorf("content = %q, want the install hint", msgs[0].Content)
	}
}

func TestHandleToolCallsMissingAction(t *testing.T) {
	h := NewToolHandler(serviceRegistry(), tools.NewExecutor("."))

	msgs := h.HandleToolCalls(context.Background(), []model.ToolCall{
		model.NewToolCall("c1", "echo_shout", "{}"),
	})
	if !strings.Contains(msgs[0].Content, "no action") {
		t.Errorf("content = %q", msgs[0].Content)
	}
}

func TestHandleToolCallsValidationFailure(t *testing.T) {
	h := NewToolHandler(serviceRegistry(), tools.NewExecutor("."))

	// echo_say requires "text"; leaving it out must produce an error
	// message, not a panic or a dropped entry.
	msgs := h.HandleToolCalls(context.Background(), []model.ToolCall{
		model.NewToolCall("c1", "echo_say", "{}"),
	})
	if len(msgs) != 1 || !strings.HasPrefix(msgs[0].Content, "Error: ") {
		t.Errorf("msgs = %+v", msgs)
	}
}

func TestHandleToolCallsEmpty(t *testing.T) {
	h := NewToolHandler(serviceRegistry(), tools.NewExecutor("."))
	if msgs := h.HandleToolCalls(context.Background(), nil); len(msgs) != 0 {
		t.Errorf("got %d messages, want 0", len(msgs))
	}
}

// =============================================================================
// SEND MESSAGE TESTS
// =============================================================================

func TestSendMessagePlainText(t *testing.T) {
	fc := &fakeClient{responses: []*model.AIResponse{textResponse("hello back")}}
	s := newTestService(fc, 100000)

	reply, err := s.SendMessage(context.Background(), "hi there", &match.Context{})
	if err != nil {
		t.Fatalf("SendMessage: %v", err)
	}
	if reply != "hello back" {
		t.Errorf("reply = %q", reply)
	}
	if fc.calls != 1 {
		t.Errorf("client calls = %d, want 1", fc.calls)
	}

	history := s.GetHistory()
	if len(history) != 2 {
		t.Fatalf("history length = %d, want user + assistant", len(history))
	}
}

func TestSendMessageToolRound(t *testing.T) {
	fc := &fakeClient{responses: []*model.AIResponse{
		toolCallResponse(model.NewToolCall("c1", "echo_say", `{"text":"ran"}`)),
		textResponse("done"),
	}}
	s := newTestService(fc, 100000)

	reply, err := s.SendMessage(context.Background(), "echo something", &match.Context{})
	if err != nil {
		t.Fatalf("SendMessage: %v", err)
	}
	if reply != "done" {
		t.Errorf("reply = %q", reply)
	}
	if fc.calls != 2 {
		t.Errorf("client calls = %d, want 2", fc.calls)
	}

	// user, assistant(tool_calls), tool, assistant.
	history := s.GetHistory()
	if len(history) != 4 {
		t.Fatalf("history length = %d, want 4", len(history))
	}
	if history[2].Role != model.RoleTool || history[2].Content != "ran" {
		t.Errorf("tool turn = %+v", history[2])
	}
	// The second round must see the tool result.
	if len(fc.lastSent) != 3 {
		t.Errorf("second call sent %d messages, want 3", len(fc.lastSent))
	}
}

func TestSendMessageMaxRounds(t *testing.T) {
	fc := &fakeClient{responses: []*model.AIResponse{
		toolCallResponse(model.NewToolCall("c1", "echo_say", `{"text":"again"}`)),
	}}
	s := newTestService(fc, 1000000)

	reply, err := s.SendMessage(context.Background(), "echo forever", &match.Context{})
	if err != nil {
		t.Fatalf("SendMessage: %v", err)
	}
	if reply != MaxRoundsMessage {
		t.Errorf("reply = %q, want the max-rounds message", reply)
	}
	if fc.calls != MaxToolRounds+1 {
		t.Errorf("client calls = %d, want %d", fc.calls, MaxToolRounds+1)
	}
}

func TestSendMessageClientError(t *testing.T) {
	fc := &fakeClient{err: errors.New("network down")}
	s := newTestService(fc, 100000)

	_, err := s.SendMessage(context.Background(), "hi", &match.Context{})
	if err == nil {
		t.Fatal("expected the client error to propagate")
	}
}

func TestSendMessageOffersSelectedTools(t *testing.T) {
	fc := &fakeClient{responses: []*model.AIResponse{textResponse("sure")}}
	s := newTestService(fc, 100000)

	if _, err := s.SendMessage(context.Background(), "please echo this", &match.Context{}); err != nil {
		t.Fatal(err)
	}
	if len(fc.lastTools) != 1 || fc.lastTools[0].ID != "echo" {
		t.Errorf("offered tools = %+v, want [echo]", fc.lastTools)
	}

	if _, err := s.SendMessage(context.Background(), "tell me a joke", &match.Context{}); err != nil {
		t.Fatal(err)
	}
	if len(fc.lastTools) != 0 {
		t.Errorf("offered tools = %+v, want none", fc.lastTools)
	}
}

// =============================================================================
// COMPACTION TESTS
// =============================================================================

func TestSendMessageAutoCompacts(t *testing.T) {
	fc := &fakeClient{responses: []*model.AIResponse{
		textResponse("the conversation summary"),
		textResponse("fresh reply"),
	}}
	s := newTestService(fc, 1000)

	// Fill the session past the high-water mark.
	s.CompactWith(strings.Repeat("abcd", 900))
	s.session.AddUserMessage("old question")

	reply, err := s.SendMessage(context.Background(), "new question", &match.Context{})
	if err != nil {
		t.Fatalf("SendMessage: %v", err)
	}
	if reply != "fresh reply" {
		t.Errorf("reply = %q", reply)
	}
	if fc.calls != 2 {
		t.Fatalf("client calls = %d, want summary + turn", fc.calls)
	}

	// History is now summary, new user turn, assistant reply.
	history := s.GetHistory()
	if len(history) != 3 {
		t.Fatalf("history length = %d, want 3", len(history))
	}
	if history[0].Content != "the conversation summary" {
		t.Errorf("history[0] = %q", history[0].Content)
	}
}

func TestSendMessageCompactionFailurePropagates(t *testing.T) {
	fc := &fakeClient{err: errors.New("summary endpoint down")}
	s := newTestService(fc, 1000)
	s.CompactWith(strings.Repeat("abcd", 900))
	s.session.AddUserMessage("old question")

	_, err := s.SendMessage(context.Background(), "new question", &match.Context{})
	if err == nil {
		t.Fatal("compaction failure must fail the turn")
	}
	if !strings.Contains(err.Error(), "compacting") {
		t.Errorf("err = %v", err)
	}
}

// =============================================================================
// DELEGATION TESTS
// =============================================================================

func TestServiceDelegatesToSession(t *testing.T) {
	s := newTestService(&fakeClient{responses: []*model.AIResponse{textResponse("ok")}}, 2000)

	s.SetSystemPrompt("be terse")
	if got := s.GetHistory(); len(got) != 1 || got[0].Role != model.RoleSystem {
		t.Errorf("history = %+v", got)
	}
	if s.GetContextWindow() != 2000 {
		t.Errorf("GetContextWindow = %d", s.GetContextWindow())
	}
	// "be terse" estimates to 2 tokens, charged against the window.
	if s.GetAvailableTokens() != 1998 {
		t.Errorf("GetAvailableTokens = %d", s.GetAvailableTokens())
	}

	s.ClearHistory()
	if s.GetSessionStatus().MessageCount != 0 {
		t.Error("ClearHistory did not clear")
	}
}
