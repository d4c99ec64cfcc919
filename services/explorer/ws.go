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
	"github.com/gorilla/websocket"

	"github.com/CBNU-MoaNote-CapstonDesign/codebase-explorer-langgraph/services/explorer/index"
	"github.com/CBNU-MoaNote-CapstonDesign/codebase-explorer-langgraph/services/explorer/pipeline"
)

// wsFrame is one message on the question stream.
type wsFrame struct {
	// Type is "stage", "result" or "error".
	Type string `json:"type"`

	// Event is set on "stage" frames.
	Event *pipeline.StageEvent `json:"event,omitempty"`

	// Result is set on the final "result" frame.
	Result *pipeline.Result `json:"result,omitempty"`

	Error string `json:"error,omitempty"`
	Code  string `json:"code,omitempty"`
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
}

func sendJSON(ws *websocket.Conn, v interface{}) error {
	err := ws.WriteJSON(v)
	if err != nil {
		slog.Warn("Failed to write WebSocket JSON", "error", err)
	}
	return err
}

// HandleQuestionWS handles GET /v1/explorer/question/ws.
//
// The client sends QuestionRequest frames. For each one the service
// streams a "stage" frame per pipeline stage event and finishes with
// a single "result" frame, or an "error" frame when the run fails.
// All frames for one question are written before the next question is
// read.
func (h *Handlers) HandleQuestionWS(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	logger := slog.With("request_id", requestID, "handler", "HandleQuestionWS")

	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logger.Error("Failed to upgrade the websocket", "error", err)
		return
	}
	defer ws.Close()
	logger.Info("Websocket client connected")

	for {
		var req QuestionRequest
		if err := ws.ReadJSON(&req); err != nil {
			logger.Info("Websocket client disconnected", "error", err.Error())
			break
		}

		if req.Question == "" {
			if sendJSON(ws, wsFrame{
				Type:  "error",
				Error: "Question must not be empty",
				Code:  "INVALID_REQUEST",
			}) != nil {
				return
			}
			continue
		}

		logger.Info("Answering question over websocket", "question_chars", len(req.Question))

		// The observer runs on the pipeline goroutine, which is this
		// handler goroutine, so frame writes are already serialized.
		observer := func(ev pipeline.StageEvent) {
			event := ev
			sendJSON(ws, wsFrame{Type: "stage", Event: &event})
		}

		result, err := h.svc.Question(c.Request.Context(), req.Question, observer)
		if err != nil {
			code := "QUESTION_FAILED"
			if errors.Is(err, index.ErrIndexNotBuilt) {
				code = "INDEX_NOT_BUILT"
			}
			logger.Error("Question failed", "error", err)
			if sendJSON(ws, wsFrame{Type: "error", Error: err.Error(), Code: code}) != nil {
				return
			}
			continue
		}

		if sendJSON(ws, wsFrame{Type: "result", Result: result}) != nil {
			return
		}
	}
}
