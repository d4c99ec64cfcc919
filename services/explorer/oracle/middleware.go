// Copyright (C) 2025 MoaNote (CBNU-MoaNote-CapstonDesign)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package oracle

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/time/rate"
)

// Middleware wraps a Client with cross-cutting behavior.
type Middleware func(Client) Client

// Chain applies middlewares so the first listed one is outermost.
func Chain(client Client, middlewares ...Middleware) Client {
	for i := len(middlewares) - 1; i >= 0; i-- {
		client = middlewares[i](client)
	}
	return client
}

// CallLogConfig controls the call-logging decorator.
type CallLogConfig struct {
	// MaxPromptChars caps the logged prompt preview. Zero means the
	// default of 120.
	MaxPromptChars int

	// RedactPrompts replaces prompt previews with a placeholder.
	// Questions and source excerpts can both be sensitive.
	RedactPrompts bool
}

// WithCallLogging logs every oracle round trip: provider, model,
// message count, duration, token usage, and a redactable prompt
// preview.
func WithCallLogging(cfg CallLogConfig) Middleware {
	if cfg.MaxPromptChars <= 0 {
		cfg.MaxPromptChars = 120
	}
	return func(next Client) Client {
		return &loggingClient{next: next, cfg: cfg}
	}
}

type loggingClient struct {
	next Client
	cfg  CallLogConfig
}

func (c *loggingClient) Complete(ctx context.Context, request *Request) (*Response, error) {
	slog.Debug("oracle request",
		slog.String("provider", c.next.Name()),
		slog.String("model", c.next.Model()),
		slog.Int("messages", messageCount(request)),
		slog.String("prompt_preview", c.preview(request)),
	)

	start := time.Now()
	resp, err := c.next.Complete(ctx, request)
	if err != nil {
		slog.Warn("oracle request failed",
			slog.String("provider", c.next.Name()),
			slog.Duration("duration", time.Since(start)),
			slog.String("error", err.Error()),
		)
		return nil, err
	}

	slog.Debug("oracle response",
		slog.String("provider", c.next.Name()),
		slog.Duration("duration", time.Since(start)),
		slog.Int("tokens_used", resp.TokensUsed),
		slog.Int("content_len", len(resp.Content)),
	)
	return resp, nil
}

func (c *loggingClient) Name() string  { return c.next.Name() }
func (c *loggingClient) Model() string { return c.next.Model() }

// preview returns the tail user message, truncated or redacted.
func (c *loggingClient) preview(request *Request) string {
	if c.cfg.RedactPrompts {
		return "[redacted]"
	}
	if request == nil || len(request.Messages) == 0 {
		return ""
	}
	content := request.Messages[len(request.Messages)-1].Content
	if len(content) > c.cfg.MaxPromptChars {
		return content[:c.cfg.MaxPromptChars] + "..."
	}
	return content
}

func messageCount(request *Request) int {
	if request == nil {
		return 0
	}
	return len(request.Messages)
}

// WithRateLimit smooths oracle calls to requestsPerMinute, blocking in
// Complete until the limiter admits the call or the context ends.
// A non-positive limit disables the decorator.
func WithRateLimit(requestsPerMinute int) Middleware {
	return func(next Client) Client {
		if requestsPerMinute <= 0 {
			return next
		}
		limiter := rate.NewLimiter(rate.Limit(requestsPerMinute)/60, 1)
		return &rateLimitedClient{next: next, limiter: limiter}
	}
}

type rateLimitedClient struct {
	next    Client
	limiter *rate.Limiter
}

func (c *rateLimitedClient) Complete(ctx context.Context, request *Request) (*Response, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	return c.next.Complete(ctx, request)
}

func (c *rateLimitedClient) Name() string  { return c.next.Name() }
func (c *rateLimitedClient) Model() string { return c.next.Model() }
