// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// anthropic.go implements Client against the content-block messages
// endpoint: system prompt as a top-level field, x-api-key auth, tool
// results as user-authored blocks.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"

	"golang.org/x/time/rate"

	"github.com/morganforge/tiller/internal/model"
	"github.com/morganforge/tiller/internal/protocol"
	"github.com/morganforge/tiller/internal/tools"
)

const (
	defaultAnthropicBaseURL = "https://api.anthropic.com/v1"
	anthropicVersion        = "2023-06-01"

	// defaultMaxTokens is the response cap the messages endpoint requires.
	defaultMaxTokens = 4096
)

// =============================================================================
// WIRE TYPES
// =============================================================================

type anthropicRequest struct {
	Model     string                      `json:"model"`
	MaxTokens int                         `json:"max_tokens"`
	System    string                      `json:"system,omitempty"`
	Messages  []protocol.AnthropicMessage `json:"messages"`
	Tools     []protocol.AnthropicTool    `json:"tools,omitempty"`
}

type anthropicResponse struct {
	Content    []protocol.AnthropicBlock `json:"content"`
	StopReason string                    `json:"stop_reason"`
	Usage      *anthropicUsage           `json:"usage"`
}

type anthropicUsage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

// =============================================================================
// CLIENT
// =============================================================================

// AnthropicClient talks to the content-block messages endpoint.
type AnthropicClient struct {
	config  Config
	http    *http.Client
	limiter *rate.Limiter
}

// NewAnthropicClient builds a client from resolved configuration.
func NewAnthropicClient(cfg Config) *AnthropicClient {
	cfg = cfg.withDefaults()
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultAnthropicBaseURL
	}
	return &AnthropicClient{
		config:  cfg,
		http:    newHTTPClient(cfg.Timeout),
		limiter: newLimiter(),
	}
}

// GetConfig returns a copy of the client configuration.
func (c *AnthropicClient) GetConfig() Config {
	return c.config
}

// Chat sends the conversation and parses the model's reply.
func (c *AnthropicClient) Chat(ctx context.Context, messages []model.ChatMessage, toolList []*tools.Tool) (*model.AIResponse, error) {
	if c.config.APIKey == "" {
		return nil, ErrNotConfigured
	}

	system, wireMessages := protocol.ToAnthropicMessages(messages)
	req := anthropicRequest{
		Model:     c.config.Model,
		MaxTokens: defaultMaxTokens,
		System:    system,
		Messages:  wireMessages,
	}
	if len(toolList) > 0 {
		req.Tools = protocol.ToAnthropicTools(toolList)
	}

	payload, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("encoding request: %w", err)
	}

	return doWithRetry(ctx, c.config.MaxRetries, func() (*model.AIResponse, error) {
		return c.post(ctx, payload)
	})
}

func (c *AnthropicClient) post(ctx context.Context, payload []byte) (*model.AIResponse, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.config.BaseURL+"/messages", bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", c.config.APIKey)
	req.Header.Set("anthropic-version", anthropicVersion)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}

	body, err := readResponse(resp)
	if err != nil {
		return nil, err
	}
	if err := checkStatus(resp, body); err != nil {
		log.Printf("[CLIENT] chat call failed: HTTP %d", resp.StatusCode)
		return nil, err
	}

	return parseAnthropicResponse(body)
}

// =============================================================================
// RESPONSE PARSING
// =============================================================================

func parseAnthropicResponse(body []byte) (*model.AIResponse, error) {
	var wire anthropicResponse
	if err := json.Unmarshal(body, &wire); err != nil {
		return nil, &ProtocolError{Reason: "malformed response body: " + err.Error()}
	}
	if len(wire.Content) == 0 && wire.StopReason == "" {
		return nil, &ProtocolError{Reason: "response has no content"}
	}

	text, toolCalls := protocol.ParseAnthropicContent(wire.Content)
	resp := &model.AIResponse{
		Message: model.ChatMessage{
			Role:      model.RoleAssistant,
			Content:   text,
			ToolCalls: toolCalls,
		},
		FinishReason: protocol.FinishReasonFromAnthropic(wire.StopReason),
	}
	if wire.Usage != nil {
		resp.Usage = &model.Usage{
			PromptTokens:     wire.Usage.InputTokens,
			CompletionTokens: wire.Usage.OutputTokens,
			TotalTokens:      wire.Usage.InputTokens + wire.Usage.OutputTokens,
		}
	}

	if resp.FinishReason == model.FinishToolCalls && len(resp.Message.ToolCalls) == 0 {
		return nil, &ProtocolError{Reason: "stop_reason=tool_use with no tool_use blocks"}
	}

	return resp, nil
}
