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
	"strings"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"

	"github.com/CBNU-MoaNote-CapstonDesign/codebase-explorer-langgraph/pkg/logging"
	"github.com/CBNU-MoaNote-CapstonDesign/codebase-explorer-langgraph/services/explorer"
	"github.com/CBNU-MoaNote-CapstonDesign/codebase-explorer-langgraph/services/explorer/index"
	"github.com/CBNU-MoaNote-CapstonDesign/codebase-explorer-langgraph/services/explorer/pipeline"
)

func runAskCommand(cmd *cobra.Command, args []string) {
	cfg, err := loadConfig()
	if err != nil {
		log.Fatalf("Error: %v", err)
	}

	interactive := stdinIsTTY() && stdoutIsTTY()

	question := strings.TrimSpace(strings.Join(args, " "))
	if question == "" {
		if !interactive {
			log.Fatalf("Error: a question is required when stdin is not a terminal")
		}
		question = promptForQuestion()
	}

	// Interactive runs keep the terminal for the spinner; logs go to
	// the file only, unless --verbose asks for them on stderr.
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

	if interactive {
		askWithSpinner(svc, question)
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	result, err := svc.Question(ctx, question, nil)
	if err != nil {
		failAsk(err)
	}
	fmt.Print(renderAnswer(result, false))
	if flagTrace {
		fmt.Print(renderTrace(result, false))
	}
}

// promptForQuestion collects the question interactively when none was
// given on the command line.
func promptForQuestion() string {
	var question string
	form := huh.NewForm(huh.NewGroup(
		huh.NewInput().
			Title("What do you want to know about this codebase?").
			Value(&question),
	))
	if err := form.Run(); err != nil {
		log.Fatalf("Error: %v", err)
	}
	question = strings.TrimSpace(question)
	if question == "" {
		log.Fatalf("Error: no question given")
	}
	return question
}

// askWithSpinner runs the question pipeline on its own goroutine and
// animates stage progress until the result lands. The spinner writes
// to stderr so the answer on stdout stays pipeable.
func askWithSpinner(svc *explorer.Service, question string) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	events := make(chan tea.Msg, 64)
	observer := func(ev pipeline.StageEvent) {
		events <- stageMsg(ev)
	}

	go func() {
		result, err := svc.Question(ctx, question, observer)
		events <- runDoneMsg{result: result, err: err}
	}()

	p := tea.NewProgram(newRunModel(events, cancel), tea.WithOutput(os.Stderr))
	finalModel, err := p.Run()
	if err != nil {
		log.Fatalf("Error: %v", err)
	}

	m, ok := finalModel.(runModel)
	if !ok {
		log.Fatalf("Error: unexpected model type %T", finalModel)
	}
	if m.err != nil {
		if errors.Is(m.err, context.Canceled) {
			fmt.Fprintln(os.Stderr, mutedStyle.Render("Canceled."))
			return
		}
		failAsk(m.err)
	}

	fmt.Print(renderAnswer(m.result, true))
	if flagTrace {
		fmt.Print(renderTrace(m.result, true))
	}
}

func failAsk(err error) {
	if errors.Is(err, index.ErrIndexNotBuilt) {
		log.Fatalf("Error: no index found; run \"explorer index\" first")
	}
	log.Fatalf("Error: %v", err)
}
