// Copyright (C) 2025 MoaNote (CBNU-MoaNote-CapstonDesign)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package explorer

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/CBNU-MoaNote-CapstonDesign/codebase-explorer-langgraph/services/explorer/config"
	"github.com/CBNU-MoaNote-CapstonDesign/codebase-explorer-langgraph/services/explorer/index"
)

// ServiceVersion is the explorer service version.
const ServiceVersion = "0.1.0"

// Handlers holds the HTTP handlers for the explorer service.
type Handlers struct {
	svc *Service
}

// NewHandlers creates handlers backed by the given service.
func NewHandlers(svc *Service) *Handlers {
	return &Handlers{svc: svc}
}

// HandleHealth handles GET /v1/explorer/health.
//
// Always returns 200 while the process is running.
func (h *Handlers) HandleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, HealthResponse{
		Status:  "healthy",
		Version: ServiceVersion,
	})
}

// HandleReady handles GET /v1/explorer/ready.
//
// Ready means a signature index is available, so questions can be
// answered without a prior rebuild. Returns 503 otherwise.
func (h *Handlers) HandleReady(c *gin.Context) {
	indexPresent := h.svc.IndexPresent()

	resp := ReadyResponse{
		Ready:        indexPresent,
		IndexPresent: indexPresent,
		Oracle:       h.svc.OracleName(),
	}

	if !resp.Ready {
		c.Header("Retry-After", "10")
		c.JSON(http.StatusServiceUnavailable, resp)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// HandleGetIndex handles GET /v1/explorer/index.
//
// Response:
//
//	200 OK: the FilteredIndex
//	503 Service Unavailable: no index has been built yet
func (h *Handlers) HandleGetIndex(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	logger := slog.With("request_id", requestID, "handler", "HandleGetIndex")

	idx, err := h.svc.Index(c.Request.Context())
	if err != nil {
		statusCode := http.StatusInternalServerError
		errCode := "INDEX_FAILED"

		if errors.Is(err, index.ErrIndexNotBuilt) {
			statusCode = http.StatusServiceUnavailable
			errCode = "INDEX_NOT_BUILT"
		}

		logger.Warn("Index unavailable", "error", err)
		c.JSON(statusCode, ErrorResponse{
			Error: err.Error(),
			Code:  errCode,
		})
		return
	}

	c.JSON(http.StatusOK, idx)
}

// HandleRebuildIndex handles POST /v1/explorer/index/rebuild.
//
// Request Body:
//
//	RebuildRequest
//
// Response:
//
//	200 OK: RebuildResponse
//	400 Bad Request: Invalid request body
//	500 Internal Server Error: Build or write failure
func (h *Handlers) HandleRebuildIndex(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	logger := slog.With("request_id", requestID, "handler", "HandleRebuildIndex")

	var req RebuildRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		logger.Warn("Invalid request body", "error", err)
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error: "Invalid request body",
			Code:  "INVALID_REQUEST",
		})
		return
	}

	logger.Info("Rebuilding index", "force", req.Force)

	resp, err := h.svc.Rebuild(c.Request.Context(), req.Force)
	if err != nil {
		logger.Error("Rebuild failed", "error", err)
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error: err.Error(),
			Code:  "REBUILD_FAILED",
		})
		return
	}

	logger.Info("Index ready",
		"files", resp.Files,
		"signatures", resp.Signatures,
		"rebuilt", resp.Rebuilt,
		"elapsed_ms", resp.ElapsedMs)

	c.JSON(http.StatusOK, resp)
}

// HandleParse handles POST /v1/explorer/parse.
//
// File paths must be relative to the project root; absolute paths and
// traversal sequences are rejected before any file is touched. Files
// that fail to parse are reported per file in the response.
//
// Request Body:
//
//	ParseRequest
//
// Response:
//
//	200 OK: ParseResponse
//	400 Bad Request: Invalid body or disallowed path
func (h *Handlers) HandleParse(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	logger := slog.With("request_id", requestID, "handler", "HandleParse")

	var req ParseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		logger.Warn("Invalid request body", "error", err)
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error: "Invalid request body",
			Code:  "INVALID_REQUEST",
		})
		return
	}

	if err := config.ValidateStruct(&req); err != nil {
		logger.Warn("Invalid parse request", "error", err)
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "Files must be non-empty root-relative paths",
			Code:    "INVALID_PATH",
			Details: err.Error(),
		})
		return
	}

	resp := h.svc.Parse(c.Request.Context(), req.Files)

	logger.Info("Parsed files",
		"requested", len(req.Files),
		"parsed", len(resp.Trees),
		"errors", len(resp.Errors))

	c.JSON(http.StatusOK, resp)
}

// HandleQuestion handles POST /v1/explorer/question.
//
// Runs the full exploration pipeline and returns the final result
// with its per-iteration trace.
//
// Request Body:
//
//	QuestionRequest
//
// Response:
//
//	200 OK: pipeline.Result
//	400 Bad Request: Missing question
//	503 Service Unavailable: No index has been built yet
func (h *Handlers) HandleQuestion(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	logger := slog.With("request_id", requestID, "handler", "HandleQuestion")

	var req QuestionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		logger.Warn("Invalid request body", "error", err)
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error: "Invalid request body",
			Code:  "INVALID_REQUEST",
		})
		return
	}

	if err := config.ValidateStruct(&req); err != nil {
		logger.Warn("Missing question", "error", err)
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error: "Question must not be empty",
			Code:  "INVALID_REQUEST",
		})
		return
	}

	logger.Info("Answering question", "question_chars", len(req.Question))

	result, err := h.svc.Question(c.Request.Context(), req.Question, nil)
	if err != nil {
		statusCode := http.StatusInternalServerError
		errCode := "QUESTION_FAILED"

		if errors.Is(err, index.ErrIndexNotBuilt) {
			statusCode = http.StatusServiceUnavailable
			errCode = "INDEX_NOT_BUILT"
			c.Header("Retry-After", "10")
		}

		logger.Error("Question failed", "error", err)
		c.JSON(statusCode, ErrorResponse{
			Error: err.Error(),
			Code:  errCode,
		})
		return
	}

	logger.Info("Question answered",
		"mode_used", result.ModeUsed,
		"iterations", len(result.Trace),
		"followups", len(result.Followups))

	c.JSON(http.StatusOK, result)
}

// getOrCreateRequestID returns the request ID from the X-Request-ID
// header, generating one when absent. The ID is echoed on the
// response.
func getOrCreateRequestID(c *gin.Context) string {
	requestID := c.GetHeader("X-Request-ID")
	if requestID == "" {
		requestID = uuid.NewString()
	}
	c.Header("X-Request-ID", requestID)
	return requestID
}
