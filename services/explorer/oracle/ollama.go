// Copyright (C) 2025 MoaNote (CBNU-MoaNote-CapstonDesign)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package oracle

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

// DefaultOllamaBaseURL is the local Ollama endpoint.
const DefaultOllamaBaseURL = "http://localhost:11434"

// OllamaConfig configures the Ollama provider.
type OllamaConfig struct {
	// BaseURL is the Ollama server. Defaults to DefaultOllamaBaseURL.
	BaseURL string

	// Model is the model name. Required.
	Model string

	// Temperature is the default sampling temperature for requests
	// that do not set their own.
	Temperature float64

	// HTTPClient overrides the HTTP client, mainly for tests.
	HTTPClient *http.Client
}

// OllamaClient talks to a local Ollama server over its chat API.
type OllamaClient struct {
	httpClient  *http.Client
	baseURL     string
	model       string
	temperature float64
}

type ollamaChatRequest struct {
	Model    string         `json:"model"`
	Messages []Message      `json:"messages"`
	Stream   bool           `json:"stream"`
	Options  map[string]any `json:"options,omitempty"`
}

type ollamaChatResponse struct {
	Message         Message `json:"message"`
	Done            bool    `json:"done"`
	PromptEvalCount int     `json:"prompt_eval_count"`
	EvalCount       int     `json:"eval_count"`
}

// NewOllamaClient creates an Ollama-backed oracle client.
func NewOllamaClient(cfg OllamaConfig) (*OllamaClient, error) {
	if cfg.Model == "" {
		return nil, fmt.Errorf("ollama: model not configured")
	}
	baseURL := strings.TrimSuffix(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = DefaultOllamaBaseURL
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 5 * time.Minute}
	}

	slog.Info("initializing ollama oracle",
		slog.String("base_url", baseURL),
		slog.String("model", cfg.Model),
	)
	return &OllamaClient{
		httpClient:  httpClient,
		baseURL:     baseURL,
		model:       cfg.Model,
		temperature: cfg.Temperature,
	}, nil
}

// Complete implements Client.
func (c *OllamaClient) Complete(ctx context.Context, request *Request) (*Response, error) {
	if request == nil {
		return nil, fmt.Errorf("ollama: nil request")
	}

	messages := make([]Message, 0, len(request.Messages)+1)
	if request.SystemPrompt != "" {
		messages = append(messages, Message{Role: RoleSystem, Content: request.SystemPrompt})
	}
	messages = append(messages, request.Messages...)

	options := make(map[string]any)
	temperature := request.Temperature
	if temperature == 0 {
		temperature = c.temperature
	}
	if temperature > 0 {
		options["temperature"] = temperature
	}
	if request.MaxTokens > 0 {
		options["num_predict"] = request.MaxTokens
	}

	payload := ollamaChatRequest{
		Model:    c.model,
		Messages: messages,
		Stream:   false,
		Options:  options,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal ollama request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/chat", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build ollama request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("ollama chat call: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read ollama response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		if resp.StatusCode == http.StatusNotFound && bytes.Contains(respBody, []byte("not found")) {
			return nil, fmt.Errorf("model %q not found, run: ollama pull %s", c.model, c.model)
		}
		return nil, fmt.Errorf("ollama chat failed with status %d: %s", resp.StatusCode, respBody)
	}

	var chat ollamaChatResponse
	if err := json.Unmarshal(respBody, &chat); err != nil {
		return nil, fmt.Errorf("parse ollama response: %w", err)
	}
	if chat.Message.Content == "" {
		return nil, fmt.Errorf("ollama: %w", ErrEmptyResponse)
	}
	if chat.Message.Role != RoleAssistant {
		slog.Warn("ollama response role was not assistant", slog.String("role", chat.Message.Role))
	}

	return &Response{
		Content:      chat.Message.Content,
		StopReason:   "end",
		TokensUsed:   chat.PromptEvalCount + chat.EvalCount,
		InputTokens:  chat.PromptEvalCount,
		OutputTokens: chat.EvalCount,
		Duration:     time.Since(start),
		Model:        c.model,
	}, nil
}

// Name implements Client.
func (c *OllamaClient) Name() string {
	return "ollama"
}

// Model implements Client.
func (c *OllamaClient) Model() string {
	return c.model
}
