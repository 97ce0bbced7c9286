// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package client

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/morganforge/tiller/internal/model"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

func openAIServer(t *testing.T, handler http.HandlerFunc) (*httptest.Server, *OpenAIClient) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	c := NewOpenAIClient(Config{
		APIKey:     "test-key",
		Model:      "test-model",
		BaseURL:    srv.URL,
		Timeout:    5 * time.Second,
		MaxRetries: 1,
	})
	return srv, c
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

func textCompletion(content, finishReason string) map[string]interface{} {
	return map[string]interface{}{
		"choices": []map[string]interface{}{
			{
				"message":       map[string]interface{}{"role": "assistant", "content": content},
				"finish_reason": finishReason,
			},
		},
		"usage": map[string]int{"prompt_tokens": 10, "completion_tokens": 5, "total_tokens": 15},
	}
}

// =============================================================================
// CONFIG TESTS
// =============================================================================

func TestConfigDefaults(t *testing.T) {
	c := NewOpenAIClient(Config{APIKey: "k", Model: "m"})
	cfg := c.GetConfig()

	if cfg.Timeout != DefaultTimeout {
		t.Errorf("Timeout = %v, want %v", cfg.Timeout, DefaultTimeout)
	}
	if cfg.MaxRetries != DefaultMaxRetries {
		t.Errorf("MaxRetries = %d, want %d", cfg.MaxRetries, DefaultMaxRetries)
	}
	if cfg.BaseURL != defaultOpenAIBaseURL {
		t.Errorf("BaseURL = %q", cfg.BaseURL)
	}
}

func TestGetConfigReturnsCopy(t *testing.T) {
	c := NewOpenAIClient(Config{APIKey: "k", Model: "m"})
	cfg := c.GetConfig()
	cfg.Model = "mutated"

	if c.GetConfig().Model != "m" {
		t.Error("GetConfig must return a copy, not a live reference")
	}
}

func TestChatWithoutAPIKey(t *testing.T) {
	c := NewOpenAIClient(Config{Model: "m"})
	_, err := c.Chat(context.Background(), []model.ChatMessage{model.NewUserMessage("hi")}, nil)
	if !errors.Is(err, ErrNotConfigured) {
		t.Errorf("err = %v, want ErrNotConfigured", err)
	}
}

// =============================================================================
// OPENAI CLIENT TESTS
// =============================================================================

func TestOpenAIChatText(t *testing.T) {
	_, c := openAIServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("path = %q", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("Authorization = %q", got)
		}
		writeJSON(w, textCompletion("hello there", "stop"))
	})

	resp, err := c.Chat(context.Background(), []model.ChatMessage{model.NewUserMessage("hi")}, nil)
	if err != nil {
		t.Fatalf("Chat: %v", err)
	}
	if resp.Message.Content != "hello there" {
		t.Errorf("Content = %q", resp.Message.Content)
	}
	if resp.FinishReason != model.FinishStop {
		t.Errorf("FinishReason = %q", resp.FinishReason)
	}
	if resp.Usage == nil || resp.Usage.TotalTokens != 15 {
		t.Errorf("Usage = %+v", resp.Usage)
	}
}

func TestOpenAIChatToolCalls(t *testing.T) {
	_, c := openAIServer(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]interface{}{
			"choices": []map[string]interface{}{{
				"message": map[string]interface{}{
					"role":    "assistant",
					"content": "",
					"tool_calls": []map[string]interface{}{{
						"id":   "call_1",
						"type": "function",
						"function": map[string]string{
							"name":      "git_status",
							"arguments": "{}",
						},
					}},
				},
				"finish_reason": "tool_calls",
			}},
		})
	})

	resp, err := c.Chat(context.Background(), []model.ChatMessage{model.NewUserMessage("status?")}, nil)
	if err != nil {
		t.Fatalf("Chat: %v", err)
	}
	if resp.FinishReason != model.FinishToolCalls {
		t.Errorf("FinishReason = %q", resp.FinishReason)
	}
	if resp.Message.Content != "" {
		t.Errorf("tool-only responses should carry empty text, got %q", resp.Message.Content)
	}
	if len(resp.Message.ToolCalls) != 1 || resp.Message.ToolCalls[0].ID != "call_1" {
		t.Errorf("ToolCalls = %+v", resp.Message.ToolCalls)
	}
}

func TestOpenAIUnknownFinishReasonMapsToStop(t *testing.T) {
	_, c := openAIServer(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, textCompletion("partial output", "brand_new_reason"))
	})

	resp, err := c.Chat(context.Background(), []model.ChatMessage{model.NewUserMessage("hi")}, nil)
	if err != nil {
		t.Fatalf("Chat: %v", err)
	}
	if resp.FinishReason != model.FinishStop {
		t.Errorf("unknown finish reason should fail open to stop, got %q", resp.FinishReason)
	}
	if resp.Message.Content != "partial output" {
		t.Errorf("partial output was discarded: %q", resp.Message.Content)
	}
}

func TestOpenAIRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	_, c := openAIServer(t, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			http.Error(w, "upstream hiccup", http.StatusInternalServerError)
			return
		}
		writeJSON(w, textCompletion("recovered", "stop"))
	})

	resp, err := c.Chat(context.Background(), []model.ChatMessage{model.NewUserMessage("hi")}, nil)
	if err != nil {
		t.Fatalf("Chat: %v", err)
	}
	if resp.Message.Content != "recovered" {
		t.Errorf("Content = %q", resp.Message.Content)
	}
	if calls.Load() != 2 {
		t.Errorf("server saw %d calls, want 2", calls.Load())
	}
}

func TestOpenAIDoesNotRetryAuthErrors(t *testing.T) {
	var calls atomic.Int32
	_, c := openAIServer(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, `{"error":"bad key"}`, http.StatusUnauthorized)
	})

	_, err := c.Chat(context.Background(), []model.ChatMessage{model.NewUserMessage("hi")}, nil)
	if !errors.Is(err, ErrInvalidAPIKey) {
		t.Errorf("err = %v, want ErrInvalidAPIKey", err)
	}
	if calls.Load() != 1 {
		t.Errorf("server saw %d calls, want 1 (no retry)", calls.Load())
	}
}

func TestOpenAICancellationAbortsRetry(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	_, c := openAIServer(t, func(w http.ResponseWriter, r *http.Request) {
		cancel()
		http.Error(w, "oops", http.StatusInternalServerError)
	})

	_, err := c.Chat(ctx, []model.ChatMessage{model.NewUserMessage("hi")}, nil)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}

func TestOpenAIMalformedResponse(t *testing.T) {
	var calls atomic.Int32
	_, c := openAIServer(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Write([]byte("this is not json"))
	})

	_, err := c.Chat(context.Background(), []model.ChatMessage{model.NewUserMessage("hi")}, nil)
	var perr *ProtocolError
	if !errors.As(err, &perr) {
		t.Fatalf("err = %v, want ProtocolError", err)
	}
	if calls.Load() != 1 {
		t.Errorf("malformed responses must not be retried, saw %d calls", calls.Load())
	}
}

func TestOpenAIEmptyChoices(t *testing.T) {
	_, c := openAIServer(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]interface{}{"choices": []interface{}{}})
	})

	_, err := c.Chat(context.Background(), []model.ChatMessage{model.NewUserMessage("hi")}, nil)
	var perr *ProtocolError
	if !errors.As(err, &perr) {
		t.Errorf("err = %v, want ProtocolError", err)
	}
}

func TestOpenAIToolCallsFinishWithoutCalls(t *testing.T) {
	// finish_reason=tool_calls with an empty call list violates the
	// response invariant and must surface as a protocol error.
	_, c := openAIServer(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]interface{}{
			"choices": []interface{}{
				map[string]interface{}{
					"finish_reason": "tool_calls",
					"message":       map[string]interface{}{"role": "assistant", "content": ""},
				},
			},
		})
	})

	_, err := c.Chat(context.Background(), []model.ChatMessage{model.NewUserMessage("hi")}, nil)
	var perr *ProtocolError
	if !errors.As(err, &perr) {
		t.Errorf("err = %v, want ProtocolError", err)
	}
}

// =============================================================================
// ANTHROPIC CLIENT TESTS
// =============================================================================

func TestAnthropicChat(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/messages" {
			t.Errorf("path = %q", r.URL.Path)
		}
		if got := r.Header.Get("x-api-key"); got != "test-key" {
			t.Errorf("x-api-key = %q", got)
		}
		if got := r.Header.Get("anthropic-version"); got == "" {
			t.Error("missing anthropic-version header")
		}

		var req map[string]interface{}
		json.NewDecoder(r.Body).Decode(&req)
		if req["system"] != "be helpful" {
			t.Errorf("system = %v, want be helpful", req["system"])
		}
		if msgs := req["messages"].([]interface{}); len(msgs) != 1 {
			t.Errorf("system prompt must be removed from the message list, got %d messages", len(msgs))
		}

		writeJSON(w, map[string]interface{}{
			"content": []map[string]interface{}{
				{"type": "text", "text": "hello"},
			},
			"stop_reason": "end_turn",
			"usage":       map[string]int{"input_tokens": 8, "output_tokens": 2},
		})
	}))
	t.Cleanup(srv.Close)

	c := NewAnthropicClient(Config{
		APIKey: "test-key", Model: "test-model", BaseURL: srv.URL,
		Timeout: 5 * time.Second, MaxRetries: 1,
	})

	history := []model.ChatMessage{
		model.NewSystemMessage("be helpful"),
		model.NewUserMessage("hi"),
	}
	resp, err := c.Chat(context.Background(), history, nil)
	if err != nil {
		t.Fatalf("Chat: %v", err)
	}
	if resp.Message.Content != "hello" {
		t.Errorf("Content = %q", resp.Message.Content)
	}
	if resp.FinishReason != model.FinishStop {
		t.Errorf("FinishReason = %q", resp.FinishReason)
	}
	if resp.Usage == nil || resp.Usage.TotalTokens != 10 {
		t.Errorf("Usage = %+v", resp.Usage)
	}
}

func TestAnthropicToolUseResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]interface{}{
			"content": []map[string]interface{}{
				{"type": "text", "text": "checking"},
				{"type": "tool_use", "id": "tu_1", "name": "git_status", "input": map[string]interface{}{}},
			},
			"stop_reason": "tool_use",
		})
	}))
	t.Cleanup(srv.Close)

	c := NewAnthropicClient(Config{
		APIKey: "k", Model: "m", BaseURL: srv.URL,
		Timeout: 5 * time.Second, MaxRetries: 1,
	})
	resp, err := c.Chat(context.Background(), []model.ChatMessage{model.NewUserMessage("status?")}, nil)
	if err != nil {
		t.Fatalf("Chat: %v", err)
	}
	if resp.FinishReason != model.FinishToolCalls {
		t.Errorf("FinishReason = %q", resp.FinishReason)
	}
	if len(resp.Message.ToolCalls) != 1 || resp.Message.ToolCalls[0].Function.Name != "git_status" {
		t.Errorf("ToolCalls = %+v", resp.Message.ToolCalls)
	}
	if resp.Message.Content != "checking" {
		t.Errorf("Content = %q", resp.Message.Content)
	}
}

// =============================================================================
// RETRY SUPPORT TESTS
// =============================================================================

func TestCalculateBackoff(t *testing.T) {
	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{0, 500 * time.Millisecond},
		{1, 1 * time.Second},
		{2, 2 * time.Second},
		{3, 4 * time.Second},
		{4, 8 * time.Second},
		{5, 10 * time.Second},
		{10, 10 * time.Second},
	}
	for _, tt := range tests {
		if got := calculateBackoff(tt.attempt); got != tt.want {
			t.Errorf("calculateBackoff(%d) = %v, want %v", tt.attempt, got, tt.want)
		}
	}
}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"canceled", context.Canceled, false},
		{"deadline", context.DeadlineExceeded, false},
		{"protocol", &ProtocolError{Reason: "bad"}, false},
		{"bad key", ErrInvalidAPIKey, false},
		{"http 400", &APIError{Status: 400}, false},
		{"http 429", &APIError{Status: 429}, true},
		{"http 500", &APIError{Status: 500}, true},
		{"network", errors.New("connection reset"), true},
	}
	for _, tt := range tests {
		if got := isRetryable(tt.err); got != tt.want {
			t.Errorf("isRetryable(%s) = %v, want %v", tt.name, got, tt.want)
		}
	}
}
