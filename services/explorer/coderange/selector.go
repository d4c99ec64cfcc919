// Copyright (C) 2025 MoaNote (CBNU-MoaNote-CapstonDesign)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package coderange

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/CBNU-MoaNote-CapstonDesign/codebase-explorer-langgraph/services/explorer/ast"
	"github.com/CBNU-MoaNote-CapstonDesign/codebase-explorer-langgraph/services/explorer/budget"
	"github.com/CBNU-MoaNote-CapstonDesign/codebase-explorer-langgraph/services/explorer/oracle"
)

const selectSystemPrompt = `You select source line ranges for a codebase exploration assistant.
Given per-file summaries of parsed code and a question, choose the smallest
line spans that could answer the question. Prefer a few tight ranges over
one broad one.`

// defaultTopTypes is how many node types a file summary lists.
const defaultTopTypes = 5

// Selector asks the oracle which literal line ranges to read.
//
// Every failure mode degrades to an empty range set: no oracle, a
// transport error, or a reply without the expected JSON all mean the
// pipeline continues on tree data alone.
type Selector struct {
	// Oracle answers the range-selection prompt. Nil selects nothing.
	Oracle oracle.Client

	// MaxTokens caps the reply length. Zero keeps the provider default.
	MaxTokens int

	// TopTypes overrides how many node types each file summary lists.
	// Zero means defaultTopTypes.
	TopTypes int
}

// Select summarizes each tree and asks the oracle for line ranges.
// The reply is expected to carry a JSON object of the form
//
//	{"ranges": [{"file": ..., "startLine": ..., "endLine": ..., "rationale": ...}]}
//
// and anything else yields an empty set.
func (s *Selector) Select(ctx context.Context, question string, trees []*ast.DetailedTree) []CodeRange {
	if s == nil || s.Oracle == nil || len(trees) == 0 {
		return nil
	}

	request := oracle.NewRequest(selectSystemPrompt, s.buildPrompt(question, trees))
	request.MaxTokens = s.MaxTokens

	response, err := s.Oracle.Complete(ctx, request)
	if err != nil {
		slog.Warn("range selection failed, continuing without code slices",
			slog.String("error", err.Error()),
		)
		return nil
	}

	raw, ok := oracle.ExtractJSON(response.Content)
	if !ok {
		slog.Warn("range selection reply carried no JSON object")
		return nil
	}
	var parsed struct {
		Ranges []CodeRange `json:"ranges"`
	}
	if err := json.Unmarshal([]byte(raw), &parsed); err != nil {
		slog.Warn("range selection reply did not match the expected shape",
			slog.String("error", err.Error()),
		)
		return nil
	}
	return parsed.Ranges
}

func (s *Selector) buildPrompt(question string, trees []*ast.DetailedTree) string {
	topTypes := s.TopTypes
	if topTypes <= 0 {
		topTypes = defaultTopTypes
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Question: %s\n\nFiles available for reading:\n\n", question)
	for _, tree := range trees {
		if tree == nil {
			continue
		}
		b.WriteString(summarizeTree(tree, topTypes))
		b.WriteByte('\n')
	}
	b.WriteString(`Reply with only JSON:
{"ranges": [{"file": "path", "startLine": 1, "endLine": 40, "rationale": "why"}]}
Line numbers are 1-based and inclusive.`)
	return b.String()
}

// summarizeTree renders the compact per-file metadata the oracle picks
// ranges from: node count plus the dominant node types.
func summarizeTree(tree *ast.DetailedTree, topTypes int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "file: %s\n", tree.FilePath)
	if tree.Language != "" {
		fmt.Fprintf(&b, "language: %s\n", tree.Language)
	}
	fmt.Fprintf(&b, "nodes: %d\n", budget.CountNodesQuick(tree.Root, 0))

	types := budget.TopKTypes(tree.Root, topTypes, budget.WithNormalize())
	if len(types) > 0 {
		parts := make([]string, 0, len(types))
		for _, tc := range types {
			parts = append(parts, fmt.Sprintf("%s(%d)", tc.Type, tc.Count))
		}
		fmt.Fprintf(&b, "top node types: %s\n", strings.Join(parts, ", "))
	}
	return b.String()
}
