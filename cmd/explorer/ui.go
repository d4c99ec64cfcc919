// Copyright (C) 2025 MoaNote (CBNU-MoaNote-CapstonDesign)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"

	"github.com/CBNU-MoaNote-CapstonDesign/codebase-explorer-langgraph/services/explorer"
	"github.com/CBNU-MoaNote-CapstonDesign/codebase-explorer-langgraph/services/explorer/pipeline"
)

// Color scheme
var (
	primaryColor = lipgloss.Color("#00D9FF")
	successColor = lipgloss.Color("#10B981")
	errorColor   = lipgloss.Color("#EF4444")
	mutedColor   = lipgloss.Color("#6B7280")
	textColor    = lipgloss.Color("#F9FAFB")
	codeColor    = lipgloss.Color("#FCD34D")
)

var (
	headingStyle = lipgloss.NewStyle().Foreground(primaryColor).Bold(true)
	answerStyle  = lipgloss.NewStyle().Foreground(textColor)
	successStyle = lipgloss.NewStyle().Foreground(successColor)
	errorStyle   = lipgloss.NewStyle().Foreground(errorColor)
	mutedStyle   = lipgloss.NewStyle().Foreground(mutedColor)
	fileStyle    = lipgloss.NewStyle().Foreground(codeColor)
)

// stageLabels maps pipeline stages to the short labels shown next to
// the spinner.
var stageLabels = map[pipeline.Stage]string{
	pipeline.StageLoadIndex:    "Loading index",
	pipeline.StageDecideFiles:  "Choosing files",
	pipeline.StageFetchDetail:  "Parsing files",
	pipeline.StagePrune:        "Pruning trees",
	pipeline.StageSelectRanges: "Selecting ranges",
	pipeline.StageLoadSlices:   "Reading code",
	pipeline.StageAnswer:       "Writing answer",
}

func stdinIsTTY() bool {
	return isatty.IsTerminal(os.Stdin.Fd()) || isatty.IsCygwinTerminal(os.Stdin.Fd())
}

func stdoutIsTTY() bool {
	return isatty.IsTerminal(os.Stdout.Fd()) || isatty.IsCygwinTerminal(os.Stdout.Fd())
}

// stageMsg carries one pipeline stage event into the bubbletea loop.
type stageMsg pipeline.StageEvent

// runDoneMsg ends the exploration spinner.
type runDoneMsg struct {
	result *pipeline.Result
	err    error
}

// taskDoneMsg ends the single-task spinner used by the index command.
type taskDoneMsg struct {
	stats *explorer.RebuildResponse
	err   error
}

// waitForEvent relays the next message from ch to the program. The
// returned command must be re-issued after every delivery.
func waitForEvent(ch chan tea.Msg) tea.Cmd {
	return func() tea.Msg {
		return <-ch
	}
}

func newSpinner() spinner.Model {
	s := spinner.New()
	s.Spinner = spinner.Points
	s.Style = lipgloss.NewStyle().Foreground(primaryColor)
	return s
}

// runModel animates a question run. Stage events stream in over the
// events channel while the pipeline executes on its own goroutine;
// ctrl+c cancels the run context and waits for the pipeline to wind
// down rather than quitting immediately.
type runModel struct {
	spinner   spinner.Model
	events    chan tea.Msg
	cancel    context.CancelFunc
	stage     string
	iteration int
	detail    string
	canceling bool

	result *pipeline.Result
	err    error
}

func newRunModel(events chan tea.Msg, cancel context.CancelFunc) runModel {
	return runModel{
		spinner: newSpinner(),
		events:  events,
		cancel:  cancel,
		stage:   "Starting",
	}
}

func (m runModel) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, waitForEvent(m.events))
}

func (m runModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "esc":
			if !m.canceling {
				m.canceling = true
				m.cancel()
			}
			return m, nil
		}

	case stageMsg:
		if label, ok := stageLabels[msg.Stage]; ok {
			m.stage = label
		}
		m.iteration = msg.Iteration
		m.detail = msg.Detail
		return m, waitForEvent(m.events)

	case runDoneMsg:
		m.result = msg.result
		m.err = msg.err
		return m, tea.Quit

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	return m, nil
}

func (m runModel) View() string {
	if m.result != nil || m.err != nil {
		return ""
	}
	if m.canceling {
		return mutedStyle.Render("Canceling...") + "\n"
	}

	line := fmt.Sprintf("%s %s", m.spinner.View(), m.stage)
	if m.iteration > 0 {
		line += mutedStyle.Render(fmt.Sprintf(" (pass %d)", m.iteration))
	}
	if m.detail != "" {
		line += "\n  " + mutedStyle.Render(m.detail)
	}
	return line + "\n"
}

// taskModel animates a one-shot task such as an index rebuild.
type taskModel struct {
	spinner   spinner.Model
	events    chan tea.Msg
	cancel    context.CancelFunc
	label     string
	canceling bool

	stats *explorer.RebuildResponse
	err   error
	done  bool
}

func newTaskModel(events chan tea.Msg, cancel context.CancelFunc, label string) taskModel {
	return taskModel{
		spinner: newSpinner(),
		events:  events,
		cancel:  cancel,
		label:   label,
	}
}

func (m taskModel) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, waitForEvent(m.events))
}

func (m taskModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "esc":
			if !m.canceling {
				m.canceling = true
				m.cancel()
			}
			return m, nil
		}

	case taskDoneMsg:
		m.stats = msg.stats
		m.err = msg.err
		m.done = true
		return m, tea.Quit

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	return m, nil
}

func (m taskModel) View() string {
	if m.done {
		return ""
	}
	if m.canceling {
		return mutedStyle.Render("Canceling...") + "\n"
	}
	return fmt.Sprintf("%s %s\n", m.spinner.View(), m.label)
}

func renderAnswer(result *pipeline.Result, styled bool) string {
	var b strings.Builder

	if styled {
		b.WriteString(headingStyle.Render("Answer"))
		b.WriteString("\n\n")
		b.WriteString(answerStyle.Render(result.Answer))
	} else {
		b.WriteString(result.Answer)
	}
	b.WriteString("\n")

	if len(result.Followups) > 0 {
		b.WriteString("\n")
		if styled {
			b.WriteString(headingStyle.Render("Follow-up questions"))
			b.WriteString("\n")
		} else {
			b.WriteString("Follow-up questions:\n")
		}
		for _, f := range result.Followups {
			b.WriteString("  - " + f + "\n")
		}
	}

	return b.String()
}

func renderTrace(result *pipeline.Result, styled bool) string {
	var b strings.Builder

	if styled {
		b.WriteString("\n" + headingStyle.Render("Trace") + "\n")
	} else {
		b.WriteString("\nTrace:\n")
	}
	b.WriteString(fmt.Sprintf("mode: %s, passes: %d\n", result.ModeUsed, len(result.Trace)))

	for _, it := range result.Trace {
		b.WriteString(fmt.Sprintf("pass %d:\n", it.Iteration))
		for _, f := range it.Requested {
			name := f
			if styled {
				name = fileStyle.Render(f)
			}
			b.WriteString("  requested " + name + "\n")
		}
		for _, fe := range it.Errors {
			line := fmt.Sprintf("  failed %s: %s", fe.File, fe.Error)
			if styled {
				line = errorStyle.Render(line)
			}
			b.WriteString(line + "\n")
		}
	}

	return b.String()
}

func renderIndexSummary(stats *explorer.RebuildResponse, styled bool) string {
	action := "Reused existing index"
	if stats.Rebuilt {
		action = "Indexed"
	}
	line := fmt.Sprintf("%s %d files, %d signatures (%dms)",
		action, stats.Files, stats.Signatures, stats.ElapsedMs)
	if styled {
		return successStyle.Render(line) + "\n"
	}
	return line + "\n"
}
