// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// openai.go implements Client against OpenAI-compatible
// chat-completion endpoints (function-calling wire format).
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

// defaultOpenAIBaseURL serves OpenAI-compatible endpoints.
const defaultOpenAIBaseURL = "https://api.openai.com/v1"

// =============================================================================
// WIRE TYPES
// =============================================================================

type openAIRequest struct {
	Model    string                   `json:"model"`
	Messages []protocol.OpenAIMessage `json:"messages"`
	Tools    []protocol.OpenAITool    `json:"tools,omitempty"`
}

type openAIResponse struct {
	Choices []openAIChoice `json:"choices"`
	Usage   *openAIUsage   `json:"usage"`
}

type openAIChoice struct {
	Message      protocol.OpenAIMessage `json:"message"`
	FinishReason string                 `json:"finish_reason"`
}

type openAIUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// =============================================================================
// CLIENT
// =============================================================================

// OpenAIClient talks to an OpenAI-compatible endpoint.
type OpenAIClient struct {
	config  Config
	http    *http.Client
	limiter *rate.Limiter
}

// NewOpenAIClient builds a client from resolved configuration.
func NewOpenAIClient(cfg Config) *OpenAIClient {
	cfg = cfg.withDefaults()
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultOpenAIBaseURL
	}
	return &OpenAIClient{
		config:  cfg,
		http:    newHTTPClient(cfg.Timeout),
		limiter: newLimiter(),
	}
}

// GetConfig returns a copy of the client configuration.
func (c *OpenAIClient) GetConfig() Config {
	return c.config
}

// Chat sends the conversation and parses the model's reply.
func (c *OpenAIClient) Chat(ctx context.Context, messages []model.ChatMessage, toolList []*tools.Tool) (*model.AIResponse, error) {
	if c.config.APIKey == "" {
		return nil, ErrNotConfigured
	}

	req := openAIRequest{
		Model:    c.config.Model,
		Messages: protocol.ToOpenAIMessages(messages),
	}
	if len(toolList) > 0 {
		req.Tools = protocol.ToOpenAITools(toolList)
	}

	payload, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("encoding request: %w", err)
	}

	return doWithRetry(ctx, c.config.MaxRetries, func() (*model.AIResponse, error) {
		return c.post(ctx, payload)
	})
}

func (c *OpenAIClient) post(ctx context.Context, payload []byte) (*model.AIResponse, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.config.BaseURL+"/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.config.APIKey)

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

	return parseOpenAIResponse(body)
}

// =============================================================================
// RESPONSE PARSING
// =============================================================================

func parseOpenAIResponse(body []byte) (*model.AIResponse, error) {
	var wire openAIResponse
	if err := json.Unmarshal(body, &wire); err != nil {
		return nil, &ProtocolError{Reason: "malformed response body: " + err.Error()}
	}
	if len(wire.Choices) == 0 {
		return nil, &ProtocolError{Reason: "response has no choices"}
	}

	choice := wire.Choices[0]
	resp := &model.AIResponse{
		Message: model.ChatMessage{
			Role:      model.RoleAssistant,
			Content:   choice.Message.Content,
			ToolCalls: protocol.ParseOpenAIToolCalls(choice.Message.ToolCalls),
		},
		FinishReason: protocol.FinishReasonFromOpenAI(choice.FinishReason),
	}
	if wire.Usage != nil {
		resp.Usage = &model.Usage{
			PromptTokens:     wire.Usage.PromptTokens,
			CompletionTokens: wire.Usage.CompletionTokens,
			TotalTokens:      wire.Usage.TotalTokens,
		}
	}

	// A tool_calls finish with no parsed calls would stall the round
	// loop waiting for results that cannot exist.
	if resp.FinishReason == model.FinishToolCalls && len(resp.Message.ToolCalls) == 0 {
		return nil, &ProtocolError{Reason: "finish_reason=tool_calls with no tool calls"}
	}

	return resp, nil
}
