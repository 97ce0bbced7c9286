// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

// =============================================================================
// FINISH REASON
// =============================================================================

// FinishReason is the normalized reason a vendor stopped generating.
type FinishReason string

const (
	// FinishStop indicates the model completed its reply normally.
	FinishStop FinishReason = "stop"

	// FinishToolCalls indicates the model requests tool execution.
	FinishToolCalls FinishReason = "tool_calls"

	// FinishLength indicates generation hit the output token limit.
	FinishLength FinishReason = "length"

	// FinishError indicates the vendor reported an error mid-generation.
	FinishError FinishReason = "error"
)

// =============================================================================
// USAGE
// =============================================================================

// Usage holds vendor-reported token counts for one request.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Add accumulates another usage report into this one.
func (u *Usage) Add(other Usage) {
	u.PromptTokens += other.PromptTokens
	u.CompletionTokens += other.CompletionTokens
	u.TotalTokens += other.TotalTokens
}

// =============================================================================
// AI RESPONSE
// =============================================================================

// AIResponse is the normalized result of one network round.
//
// Invariant: FinishReason == FinishToolCalls implies Message.ToolCalls is
// non-empty; clients reject a vendor response that reports tool_calls
// without actually including any as a protocol error.
type AIResponse struct {
	// Message is the assistant turn parsed from the vendor response.
	Message ChatMessage

	// FinishReason is the normalized stop reason. Unrecognized vendor
	// reasons map to FinishStop so partial output still reaches the user.
	FinishReason FinishReason

	// Usage is the vendor-reported token accounting, when available.
	Usage *Usage
}

// HasToolCalls returns true if the response requests tool execution.
func (r *AIResponse) HasToolCalls() bool {
	return r.FinishReason == FinishToolCalls && r.Message.HasToolCalls()
}
