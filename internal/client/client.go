// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package client talks to LLM chat-completion APIs. Each vendor gets
// its own implementation of the Client interface; shape-specific
// request and response handling stays inside that implementation and
// its paired protocol adapter.
package client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"github.com/morganforge/tiller/internal/model"
	"github.com/morganforge/tiller/internal/tools"
)

// =============================================================================
// CONSTANTS
// =============================================================================

const (
	// DefaultTimeout bounds a single chat call including retries' waits.
	DefaultTimeout = 60 * time.Second

	// DefaultMaxRetries is how many times a failed call is reattempted.
	DefaultMaxRetries = 3

	// retryBaseDelay doubles per attempt up to retryMaxDelay.
	retryBaseDelay = 500 * time.Millisecond
	retryMaxDelay  = 10 * time.Second

	// maxResponseSize caps how much of a response body is read.
	maxResponseSize = 10 * 1024 * 1024

	// requestsPerSecond rate-limits outbound calls per client.
	requestsPerSecond = 2
)

// =============================================================================
// ERRORS
// =============================================================================

var (
	// ErrNotConfigured means the client has no API key.
	ErrNotConfigured = errors.New("client not configured: missing API key")

	// ErrInvalidAPIKey means the vendor rejected the credentials.
	ErrInvalidAPIKey = errors.New("invalid API key")

	// ErrRateLimited means the vendor returned 429.
	ErrRateLimited = errors.New("rate limited, slow down")

	// ErrModelNotFound means the configured model does not exist.
	ErrModelNotFound = errors.New("model not found")
)

// APIError is a non-2xx response from a vendor endpoint. The body is
// kept for diagnosability.
type APIError struct {
	Status int
	Body   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("API error: HTTP %d %s: %s", e.Status, http.StatusText(e.Status), e.Body)
}

// ProtocolError is a well-formed HTTP response whose body does not
// match the vendor's schema. Never retried.
type ProtocolError struct {
	Reason string
}

func (e *ProtocolError) Error() string {
	return "protocol error: " + e.Reason
}

// =============================================================================
// CLIENT INTERFACE
// =============================================================================

// Client is a chat-completion endpoint. Implementations convert the
// neutral history and tool list to their vendor's wire format, make one
// HTTP POST, and parse the response back.
type Client interface {
	// Chat sends the conversation and returns the model's next turn.
	// toolList may be nil when no tools should be offered.
	Chat(ctx context.Context, messages []model.ChatMessage, toolList []*tools.Tool) (*model.AIResponse, error)

	// GetConfig returns a copy of the client configuration.
	GetConfig() Config
}

// Config holds the resolved settings for one client. It is passed and
// returned by value so callers never share a live reference.
type Config struct {
	APIKey     string
	Model      string
	BaseURL    string
	Timeout    time.Duration
	MaxRetries int
}

// withDefaults fills zero-valued fields.
func (c Config) withDefaults() Config {
	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}
	if c.MaxRetries < 0 {
		c.MaxRetries = 0
	} else if c.MaxRetries == 0 {
		c.MaxRetries = DefaultMaxRetries
	}
	return c
}

// =============================================================================
// RETRY SUPPORT
// =============================================================================

// calculateBackoff returns the delay before the given attempt, doubling
// from the base and capped.
func calculateBackoff(attempt int) time.Duration {
	delay := retryBaseDelay * (1 << uint(attempt))
	if delay > retryMaxDelay {
		delay = retryMaxDelay
	}
	return delay
}

// isRetryable reports whether an error is worth another attempt.
// Cancellation and timeouts abort immediately, and malformed responses
// never improve on retry.
func isRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var perr *ProtocolError
	if errors.As(err, &perr) {
		return false
	}
	var aerr *APIError
	if errors.As(err, &aerr) {
		// Client errors other than 429 will fail identically next time.
		if aerr.Status >= 400 && aerr.Status < 500 && aerr.Status != http.StatusTooManyRequests {
			return false
		}
	}
	if errors.Is(err, ErrInvalidAPIKey) || errors.Is(err, ErrModelNotFound) {
		return false
	}
	return true
}

// doWithRetry runs call up to maxRetries+1 times with exponential
// backoff, respecting context cancellation between attempts.
func doWithRetry(ctx context.Context, maxRetries int, call func() (*model.AIResponse, error)) (*model.AIResponse, error) {
	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(calculateBackoff(attempt - 1)):
			}
		}

		resp, err := call()
		if err == nil {
			return resp, nil
		}
		lastErr = err
		if !isRetryable(err) {
			return nil, err
		}
	}
	return nil, fmt.Errorf("request failed after %d attempts: %w", maxRetries+1, lastErr)
}

// =============================================================================
// SHARED HTTP HELPERS
// =============================================================================

// newHTTPClient builds the transport shared by the vendor clients.
func newHTTPClient(timeout time.Duration) *http.Client {
	return &http.Client{Timeout: timeout}
}

// newLimiter builds the per-client request limiter.
func newLimiter() *rate.Limiter {
	return rate.NewLimiter(rate.Limit(requestsPerSecond), 1)
}

// readResponse drains a response body with a size cap.
func readResponse(resp *http.Response) ([]byte, error) {
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}
	return body, nil
}

// checkStatus converts a non-2xx response into a typed error.
func checkStatus(resp *http.Response, body []byte) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	switch resp.StatusCode {
	case http.StatusUnauthorized, http.StatusForbidden:
		return fmt.Errorf("%w: %s", ErrInvalidAPIKey, truncateBody(body))
	case http.StatusNotFound:
		return fmt.Errorf("%w: %s", ErrModelNotFound, truncateBody(body))
	case http.StatusTooManyRequests:
		return fmt.Errorf("%w: %s", ErrRateLimited, truncateBody(body))
	}
	return &APIError{Status: resp.StatusCode, Body: truncateBody(body)}
}

func truncateBody(body []byte) string {
	const max = 512
	if len(body) > max {
		return string(body[:max]) + "..."
	}
	return string(body)
}
