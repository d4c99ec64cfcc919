// Copyright (C) 2025 MoaNote (CBNU-MoaNote-CapstonDesign)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package oracle

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	openai "github.com/sashabaranov/go-openai"
)

// OpenAIConfig configures the OpenAI provider.
type OpenAIConfig struct {
	// Model is the chat model name. Defaults to gpt-4o-mini.
	Model string

	// BaseURL overrides the API endpoint, for OpenAI-compatible
	// servers. Empty means the official endpoint.
	BaseURL string

	// Key is the sealed API key.
	Key *Secret

	// Temperature is the default sampling temperature for requests
	// that do not set their own.
	Temperature float64
}

// OpenAIClient talks to the OpenAI chat completion API.
type OpenAIClient struct {
	client      *openai.Client
	model       string
	temperature float64
}

// NewOpenAIClient creates an OpenAI-backed oracle client.
func NewOpenAIClient(cfg OpenAIConfig) (*OpenAIClient, error) {
	if cfg.Key.IsZero() {
		return nil, fmt.Errorf("openai: API key not configured")
	}
	key, err := cfg.Key.Reveal()
	if err != nil {
		return nil, fmt.Errorf("openai: %w", err)
	}

	clientCfg := openai.DefaultConfig(key)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}

	model := cfg.Model
	if model == "" {
		model = "gpt-4o-mini"
		slog.Warn("oracle model not set, defaulting to gpt-4o-mini")
	}

	slog.Info("initializing openai oracle", slog.String("model", model))
	return &OpenAIClient{
		client:      openai.NewClientWithConfig(clientCfg),
		model:       model,
		temperature: cfg.Temperature,
	}, nil
}

// Complete implements Client.
func (c *OpenAIClient) Complete(ctx context.Context, request *Request) (*Response, error) {
	if request == nil {
		return nil, fmt.Errorf("openai: nil request")
	}

	messages := make([]openai.ChatCompletionMessage, 0, len(request.Messages)+1)
	if request.SystemPrompt != "" {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: request.SystemPrompt,
		})
	}
	for _, m := range request.Messages {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    m.Role,
			Content: m.Content,
		})
	}

	req := openai.ChatCompletionRequest{
		Model:    c.model,
		Messages: messages,
	}
	temperature := request.Temperature
	if temperature == 0 {
		temperature = c.temperature
	}
	if temperature > 0 {
		req.Temperature = float32(temperature)
	}
	if request.MaxTokens > 0 {
		req.MaxCompletionTokens = request.MaxTokens
	}

	start := time.Now()
	resp, err := c.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("openai chat completion: %w", err)
	}
	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		return nil, fmt.Errorf("openai: %w", ErrEmptyResponse)
	}

	choice := resp.Choices[0]
	return &Response{
		Content:      choice.Message.Content,
		StopReason:   stopReason(string(choice.FinishReason)),
		TokensUsed:   resp.Usage.TotalTokens,
		InputTokens:  resp.Usage.PromptTokens,
		OutputTokens: resp.Usage.CompletionTokens,
		Duration:     time.Since(start),
		Model:        resp.Model,
	}, nil
}

// Name implements Client.
func (c *OpenAIClient) Name() string {
	return "openai"
}

// Model implements Client.
func (c *OpenAIClient) Model() string {
	return c.model
}

// stopReason maps provider finish reasons onto the package vocabulary.
func stopReason(finish string) string {
	switch finish {
	case "stop", "end_turn", "":
		return "end"
	case "length", "max_tokens":
		return "max_tokens"
	default:
		return finish
	}
}
