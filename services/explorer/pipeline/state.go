// Copyright (C) 2025 MoaNote (CBNU-MoaNote-CapstonDesign)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package pipeline

import (
	"github.com/google/uuid"

	"github.com/CBNU-MoaNote-CapstonDesign/codebase-explorer-langgraph/services/explorer/ast"
	"github.com/CBNU-MoaNote-CapstonDesign/codebase-explorer-langgraph/services/explorer/coderange"
	"github.com/CBNU-MoaNote-CapstonDesign/codebase-explorer-langgraph/services/explorer/index"
	"github.com/CBNU-MoaNote-CapstonDesign/codebase-explorer-langgraph/services/explorer/prune"
)

// FileError records one file that could not be processed.
type FileError struct {
	File  string `json:"file"`
	Error string `json:"error"`
}

// IterationTrace is the audit record of one pipeline iteration.
type IterationTrace struct {
	Iteration int         `json:"iteration"`
	Requested []string    `json:"requested"`
	Parsed    []string    `json:"parsed"`
	Errors    []FileError `json:"errors,omitempty"`
	Prune     prune.Trace `json:"prune"`
}

// State is the single mutable record threaded through one run. It is
// owned exclusively by that run and never shared across questions.
type State struct {
	ID       string
	Question string
	Stage    Stage

	// Index is the signature index the run explores.
	Index *index.FilteredIndex

	// Per-iteration working set, reset by decide_files.
	Requested []string
	Selected  []string
	Parsed    []string
	Errors    []FileError

	// Trees accumulates detailed trees across iterations; a loop-back
	// only parses files not fetched before.
	Trees  []*ast.DetailedTree
	Pruned []*ast.DetailedTree

	Plan       *prune.Plan
	DroppedAll bool
	PruneTrace prune.Trace

	Ranges []coderange.CodeRange
	Slices []coderange.CodeSlice

	Answer    string
	Followups []string
	WantFiles []string
	ModeUsed  string

	// Iteration counts completed loop-backs: 0 on the first pass.
	Iteration int

	// Fetched is the cumulative set of files attempted in any
	// iteration, successful or not.
	Fetched map[string]bool

	Trace []IterationTrace
}

// NewState creates the state for one question.
func NewState(question string) *State {
	return &State{
		ID:       uuid.NewString()[:12],
		Question: question,
		Fetched:  make(map[string]bool),
	}
}

// Result is the final outcome of a run.
type Result struct {
	Answer    string           `json:"answer"`
	Followups []string         `json:"followups"`
	WantFiles []string         `json:"wantFiles"`
	ModeUsed  string           `json:"modeUsed"`
	Trace     []IterationTrace `json:"trace"`
}

// Result snapshots the run outcome in the shape external callers see.
func (s *State) Result() *Result {
	return &Result{
		Answer:    s.Answer,
		Followups: s.Followups,
		WantFiles: s.WantFiles,
		ModeUsed:  s.ModeUsed,
		Trace:     s.Trace,
	}
}
