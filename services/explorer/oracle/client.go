// Copyright (C) 2025 MoaNote (CBNU-MoaNote-CapstonDesign)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package oracle provides the decision-oracle client interface and its
// providers.
//
// The oracle is the language model consulted at each branching point of
// the exploration pipeline. It is always an explicit dependency, never
// a singleton: a nil Client means "no oracle configured" and makes the
// pipeline take its deterministic fallback at every decision point.
//
// Thread Safety:
//
//	All Client implementations in this package are safe for
//	concurrent use.
package oracle

import (
	"context"
	"time"
)

// Message roles.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Client defines the interface for oracle interactions.
//
// Implementations must be safe for concurrent use.
type Client interface {
	// Complete sends a prompt to the oracle and returns a response.
	//
	// Inputs:
	//   ctx - Context for cancellation and timeout
	//   request - The completion request
	//
	// Outputs:
	//   *Response - The oracle response
	//   error - Non-nil if the request failed
	Complete(ctx context.Context, request *Request) (*Response, error)

	// Name returns the provider name (e.g., "openai", "ollama").
	Name() string

	// Model returns the model being used.
	Model() string
}

// Request represents a completion request to the oracle.
type Request struct {
	// SystemPrompt is the system message.
	SystemPrompt string `json:"system_prompt,omitempty"`

	// Messages is the conversation, oldest first.
	Messages []Message `json:"messages"`

	// MaxTokens limits the response length. Zero means the
	// provider default.
	MaxTokens int `json:"max_tokens,omitempty"`

	// Temperature controls randomness (0.0-1.0).
	Temperature float64 `json:"temperature,omitempty"`
}

// Message represents one conversation message.
type Message struct {
	// Role is "user", "assistant", or "system".
	Role string `json:"role"`

	// Content is the text content.
	Content string `json:"content"`
}

// Response represents an oracle response.
type Response struct {
	// Content is the text response.
	Content string `json:"content"`

	// StopReason indicates why generation stopped.
	// Values: "end", "max_tokens"
	StopReason string `json:"stop_reason"`

	// TokensUsed is the total tokens consumed (input + output).
	TokensUsed int `json:"tokens_used"`

	// InputTokens is the input token count.
	InputTokens int `json:"input_tokens"`

	// OutputTokens is the output token count.
	OutputTokens int `json:"output_tokens"`

	// Duration is how long the request took.
	Duration time.Duration `json:"duration"`

	// Model is the model that generated this response.
	Model string `json:"model,omitempty"`
}

// NewRequest builds the single-turn request shape every pipeline
// decision point uses: one system prompt, one user message.
func NewRequest(systemPrompt, userPrompt string) *Request {
	return &Request{
		SystemPrompt: systemPrompt,
		Messages:     []Message{{Role: RoleUser, Content: userPrompt}},
	}
}
