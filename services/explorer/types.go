// Copyright (C) 2025 MoaNote (CBNU-MoaNote-CapstonDesign)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package explorer

import (
	"github.com/CBNU-MoaNote-CapstonDesign/codebase-explorer-langgraph/services/explorer/ast"
)

// ErrorResponse is the standard error payload for all endpoints.
type ErrorResponse struct {
	// Error is a human-readable error message.
	Error string `json:"error"`

	// Code is a machine-readable error code.
	Code string `json:"code,omitempty"`

	// Details provides additional context.
	Details string `json:"details,omitempty"`
}

// HealthResponse is the response for GET /v1/explorer/health.
type HealthResponse struct {
	// Status is "healthy" or "degraded".
	Status string `json:"status"`

	// Version is the service version.
	Version string `json:"version"`
}

// ReadyResponse is the response for GET /v1/explorer/ready.
type ReadyResponse struct {
	// Ready is true if the service can answer questions right now.
	Ready bool `json:"ready"`

	// IndexPresent is true if a signature index is loaded or on disk.
	IndexPresent bool `json:"index_present"`

	// Oracle names the configured oracle provider, or "none".
	Oracle string `json:"oracle"`
}

// RebuildRequest is the request for POST /v1/explorer/index/rebuild.
type RebuildRequest struct {
	// Force rebuilds even when an index file already exists.
	Force bool `json:"force"`
}

// RebuildResponse summarizes an index build.
type RebuildResponse struct {
	// Files is the number of files in the index.
	Files int `json:"files"`

	// Signatures is the total signature count across all files.
	Signatures int `json:"signatures"`

	// Rebuilt is false when an existing index was reused.
	Rebuilt bool `json:"rebuilt"`

	// ElapsedMs is the wall time of the operation.
	ElapsedMs int64 `json:"elapsed_ms"`
}

// ParseRequest is the request for POST /v1/explorer/parse. File paths
// are relative to the configured project root; absolute paths and
// traversal sequences are rejected.
type ParseRequest struct {
	Files []string `json:"files" validate:"required,min=1,dive,relpath"`
}

// ParseError records one file that could not be parsed.
type ParseError struct {
	File  string `json:"file"`
	Error string `json:"error"`
}

// ParseResponse is the response for POST /v1/explorer/parse. Files
// that fail to parse appear in Errors; an unsupported extension is an
// error, not a silent skip.
type ParseResponse struct {
	Trees  []*ast.DetailedTree `json:"trees"`
	Errors []ParseError        `json:"errors"`
}

// QuestionRequest is the request for POST /v1/explorer/question and
// the first frame of the question WebSocket.
type QuestionRequest struct {
	Question string `json:"question" validate:"required"`
}
