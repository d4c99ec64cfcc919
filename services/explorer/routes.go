// Copyright (C) 2025 MoaNote (CBNU-MoaNote-CapstonDesign)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package explorer

import (
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/CBNU-MoaNote-CapstonDesign/codebase-explorer-langgraph/pkg/telemetry"
)

// RegisterRoutes registers all explorer routes on the given router
// group.
//
// Routes:
//
//	GET  /explorer/health        - Service health check
//	GET  /explorer/ready         - Readiness including index presence
//	GET  /explorer/index         - The current signature index
//	POST /explorer/index/rebuild - Build and persist the index
//	POST /explorer/parse         - Parse files into detailed trees
//	POST /explorer/question      - Answer a question about the codebase
//	GET  /explorer/question/ws   - Question with streamed stage events
func RegisterRoutes(rg *gin.RouterGroup, handlers *Handlers) {
	explorer := rg.Group("/explorer")
	{
		explorer.GET("/health", handlers.HandleHealth)
		explorer.GET("/ready", handlers.HandleReady)
		explorer.GET("/index", handlers.HandleGetIndex)
		explorer.POST("/index/rebuild", handlers.HandleRebuildIndex)
		explorer.POST("/parse", handlers.HandleParse)
		explorer.POST("/question", handlers.HandleQuestion)
		explorer.GET("/question/ws", handlers.HandleQuestionWS)
	}
}

// NewRouter builds the service's gin engine: recovery, trace
// propagation through otelgin, the versioned explorer routes and the
// Prometheus scrape endpoint.
func NewRouter(handlers *Handlers, debug bool) *gin.Engine {
	if debug {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(otelgin.Middleware("codebase-explorer"))

	v1 := router.Group("/v1")
	RegisterRoutes(v1, handlers)

	router.GET("/metrics", gin.WrapH(telemetry.MetricsHandler()))
	return router
}
