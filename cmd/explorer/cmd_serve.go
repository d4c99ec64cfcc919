// Copyright (C) 2025 MoaNote (CBNU-MoaNote-CapstonDesign)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/CBNU-MoaNote-CapstonDesign/codebase-explorer-langgraph/pkg/logging"
	"github.com/CBNU-MoaNote-CapstonDesign/codebase-explorer-langgraph/pkg/telemetry"
	"github.com/CBNU-MoaNote-CapstonDesign/codebase-explorer-langgraph/services/explorer"
)

const shutdownTimeout = 10 * time.Second

func runServeCommand(cmd *cobra.Command, args []string) {
	cfg, err := loadConfig()
	if err != nil {
		log.Fatalf("Error: %v", err)
	}

	logger := logging.New(logging.Config{
		Level:   logging.ParseLevel(cfg.Logging.Level),
		LogDir:  cfg.Logging.Dir,
		Service: "explorer",
		JSON:    cfg.Logging.JSON,
	})
	defer logger.Close()
	logger.SetDefault()

	tcfg := telemetry.DefaultConfig()
	tcfg.ServiceVersion = explorer.ServiceVersion
	if cfg.Telemetry.TraceExporter != "" {
		tcfg.TraceExporter = cfg.Telemetry.TraceExporter
	}
	if cfg.Telemetry.MetricExporter != "" {
		tcfg.MetricExporter = cfg.Telemetry.MetricExporter
	}
	if cfg.Telemetry.OTLPEndpoint != "" {
		tcfg.OTLPEndpoint = cfg.Telemetry.OTLPEndpoint
	}
	shutdownTelemetry, err := telemetry.Init(context.Background(), tcfg)
	if err != nil {
		log.Fatalf("Error: failed to initialize telemetry: %v", err)
	}

	svc, err := explorer.NewService(cfg)
	if err != nil {
		log.Fatalf("Error: %v", err)
	}

	if cfg.Server.WatchIndex {
		if err := svc.WatchIndex(context.Background()); err != nil {
			slog.Warn("Index watch unavailable", "error", err)
		}
	}

	handlers := explorer.NewHandlers(svc)
	router := explorer.NewRouter(handlers, cfg.Server.Debug)

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Handle graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-quit
		slog.Info("Shutting down explorer server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("Server shutdown failed", "error", err)
		}
	}()

	if stdoutIsTTY() {
		printServeBanner(cfg.Server.Port, svc.OracleName())
	}

	slog.Info("Starting explorer server",
		"address", addr,
		"oracle", svc.OracleName(),
		"watch_index", cfg.Server.WatchIndex)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("Failed to start server", "error", err)
		os.Exit(1)
	}

	svc.Close()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := shutdownTelemetry(shutdownCtx); err != nil {
		slog.Warn("Telemetry shutdown failed", "error", err)
	}
	slog.Info("Explorer server stopped")
}

func printServeBanner(port int, oracleName string) {
	banner := `
╔═══════════════════════════════════════════════════════════════╗
║                   CODEBASE EXPLORER SERVER                    ║
╠═══════════════════════════════════════════════════════════════╣
║                                                               ║
║  Signature-index exploration with oracle-guided answers.      ║
║  Oracle: %-50s   ║
║                                                               ║
║  Quick Start:                                                 ║
║  ┌─────────────────────────────────────────────────────────┐  ║
║  │ # Health check                                          │  ║
║  │ curl http://localhost:%d/v1/explorer/health           │  ║
║  │                                                         │  ║
║  │ # Build the index, then ask                             │  ║
║  │ curl -X POST \                                          │  ║
║  │   http://localhost:%d/v1/explorer/index/rebuild       │  ║
║  │ curl -X POST -d '{"question":"how is state saved?"}' \  │  ║
║  │   http://localhost:%d/v1/explorer/question            │  ║
║  └─────────────────────────────────────────────────────────┘  ║
║                                                               ║
║  Metrics: http://localhost:%d/metrics                       ║
╚═══════════════════════════════════════════════════════════════╝
`
	fmt.Printf(banner, oracleName, port, port, port, port)
}
