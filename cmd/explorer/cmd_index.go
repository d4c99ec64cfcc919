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
	"os"
	"os/signal"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/CBNU-MoaNote-CapstonDesign/codebase-explorer-langgraph/pkg/logging"
	"github.com/CBNU-MoaNote-CapstonDesign/codebase-explorer-langgraph/services/explorer"
)

func runIndexCommand(cmd *cobra.Command, args []string) {
	cfg, err := loadConfig()
	if err != nil {
		log.Fatalf("Error: %v", err)
	}

	interactive := stdoutIsTTY()

	logger := logging.New(logging.Config{
		Level:   logging.ParseLevel(cfg.Logging.Level),
		LogDir:  cfg.Logging.Dir,
		Service: "explorer",
		JSON:    cfg.Logging.JSON,
		Quiet:   interactive && !flagVerbose,
	})
	defer logger.Close()
	logger.SetDefault()

	svc, err := explorer.NewService(cfg)
	if err != nil {
		log.Fatalf("Error: %v", err)
	}
	defer svc.Close()

	if !interactive {
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		stats, err := svc.Rebuild(ctx, flagForce)
		if err != nil {
			log.Fatalf("Error: %v", err)
		}
		fmt.Print(renderIndexSummary(stats, false))
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	events := make(chan tea.Msg, 1)
	go func() {
		stats, err := svc.Rebuild(ctx, flagForce)
		events <- taskDoneMsg{stats: stats, err: err}
	}()

	p := tea.NewProgram(newTaskModel(events, cancel, "Indexing "+cfg.Root), tea.WithOutput(os.Stderr))
	finalModel, err := p.Run()
	if err != nil {
		log.Fatalf("Error: %v", err)
	}

	m, ok := finalModel.(taskModel)
	if !ok {
		log.Fatalf("Error: unexpected model type %T", finalModel)
	}
	if m.err != nil {
		if errors.Is(m.err, context.Canceled) {
			fmt.Fprintln(os.Stderr, mutedStyle.Render("Canceled."))
			return
		}
		log.Fatalf("Error: %v", m.err)
	}

	fmt.Print(renderIndexSummary(m.stats, true))
}
