// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package components

import (
	"regexp"
	"strings"
	"testing"

	"github.com/morganforge/tiller/internal/model"
	"github.com/morganforge/tiller/internal/session"
	"github.com/morganforge/tiller/internal/ui/styles"
)

func testTheme() *styles.Theme {
	return styles.NewTheme(80, 24)
}

var ansiPattern = regexp.MustCompile(`\x1b\[[0-9;]*m`)

// stripANSI removes color escapes so tests can assert on the text the
// highlighter and styles wrap.
func stripANSI(s string) string {
	return ansiPattern.ReplaceAllString(s, "")
}

func TestStatusString(t *testing.T) {
	tests := []struct {
		status Status
		want   string
	}{
		{StatusReady, "Ready"},
		{StatusThinking, "Thinking..."},
		{StatusRunningTool, "Running tool..."},
		{StatusCompacting, "Compacting..."},
		{StatusError, "Error"},
		{Status(99), "Unknown"},
	}
	for _, tt := range tests {
		if got := tt.status.String(); got != tt.want {
			t.Errorf("Status(%d).String() = %q, want %q", tt.status, got, tt.want)
		}
	}
}

func TestStatusBarView(t *testing.T) {
	bar := NewStatusBar(testTheme())
	bar.Provider = "anthropic"
	bar.Model = "claude-sonnet-4-20250514"
	bar.Status = StatusReady
	bar.Session = session.Status{
		EstimatedTokens: 1000,
		ContextWindow:   8192,
		UsagePercent:    12.2,
	}

	view := bar.View()
	if !strings.Contains(view, "anthropic") {
		t.Error("status bar should show provider")
	}
	if !strings.Contains(view, "1000/8192") {
		t.Error("status bar should show token usage")
	}
	if !strings.Contains(view, "Ready") {
		t.Error("status bar should show status")
	}
	if strings.Contains(view, "queue:") {
		t.Error("status bar should omit queue segment when empty")
	}
}

func TestStatusBarQueueAndCompacted(t *testing.T) {
	bar := NewStatusBar(testTheme())
	bar.Provider = "openai"
	bar.QueueLen = 3
	bar.Session = session.Status{Compacted: true, ContextWindow: 100}

	view := bar.View()
	if !strings.Contains(view, "queue:3") {
		t.Error("status bar should show queue depth")
	}
	if !strings.Contains(view, "compacted") {
		t.Error("status bar should show compacted marker")
	}
}

func TestMessageBubbleRoles(t *testing.T) {
	theme := testTheme()

	user := NewMessageBubble(theme, model.NewUserMessage("hello there"))
	if !strings.Contains(user.View(), "hello there") {
		t.Error("user bubble should contain the content")
	}

	asst := NewMessageBubble(theme, model.NewAssistantMessage("hi back"))
	if !strings.Contains(asst.View(), "hi back") {
		t.Error("assistant bubble should contain the content")
	}

	tool := NewMessageBubble(theme, model.NewToolMessage("call_1", "clean tree"))
	if !strings.Contains(tool.View(), "clean tree") {
		t.Error("tool bubble should contain the content")
	}
}

func TestMessageBubbleToolCallPlaceholder(t *testing.T) {
	msg := model.ChatMessage{
		Role: model.RoleAssistant,
		ToolCalls: []model.ToolCall{
			model.NewToolCall("call_1", "git_status", "{}"),
		},
	}

	view := NewMessageBubble(testTheme(), msg).View()
	if !strings.Contains(view, "git_status") {
		t.Error("empty assistant turn should name the tool being called")
	}
}

func TestMessageBubbleCodeFence(t *testing.T) {
	content := "look:\n```go\npackage main\n```\ndone"
	view := stripANSI(NewMessageBubble(testTheme(), model.NewAssistantMessage(content)).View())

	if !strings.Contains(view, "package main") {
		t.Error("code fence body should survive rendering")
	}
	if !strings.Contains(view, "look:") || !strings.Contains(view, "done") {
		t.Error("prose around the fence should survive rendering")
	}
}

func TestMessageBubbleUnclosedFence(t *testing.T) {
	content := "start ```go\nfunc main()"
	view := stripANSI(NewMessageBubble(testTheme(), model.NewAssistantMessage(content)).View())
	if !strings.Contains(view, "func main()") {
		t.Error("unclosed fence content should still render")
	}
}

func TestHighlightCodeFallback(t *testing.T) {
	code := "not really code at all"
	if got := highlightCode(code, "nosuchlanguage"); got == "" {
		t.Error("highlight should never return empty output")
	}
}

func TestWelcomeView(t *testing.T) {
	w := NewWelcome(testTheme())
	w.Provider = "anthropic"
	w.Model = "claude-sonnet-4-20250514"

	view := w.View()
	if !strings.Contains(view, "tiller") {
		t.Error("welcome should show the app name")
	}
	if !strings.Contains(view, "/help") {
		t.Error("welcome should hint at slash commands")
	}
}
