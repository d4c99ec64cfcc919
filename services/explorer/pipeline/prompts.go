// Copyright (C) 2025 MoaNote (CBNU-MoaNote-CapstonDesign)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package pipeline

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/CBNU-MoaNote-CapstonDesign/codebase-explorer-langgraph/services/explorer/ast"
	"github.com/CBNU-MoaNote-CapstonDesign/codebase-explorer-langgraph/services/explorer/budget"
	"github.com/CBNU-MoaNote-CapstonDesign/codebase-explorer-langgraph/services/explorer/coderange"
	"github.com/CBNU-MoaNote-CapstonDesign/codebase-explorer-langgraph/services/explorer/index"
)

const decideSystemPrompt = `You are a codebase exploration assistant. Given a signature index of a
project and a question, choose which files to inspect in detail. Pick the
smallest set that could answer the question.`

const pruneSystemPrompt = `You are a codebase exploration assistant deciding which parsed files to
keep in a limited context window. Keep only what the question needs: keep
files in full, slice out the relevant parts, or drop them.`

const answerSystemPrompt = `You are a codebase exploration assistant. Answer the question using only
the parsed trees and code excerpts provided. Cite files you used. If the
provided context is not enough, say what else you would need.`

// decideReply is the expected decide_files reply shape.
type decideReply struct {
	Files  []string `json:"files"`
	Reason string   `json:"reason"`
}

// answerReply is the expected answer reply shape.
type answerReply struct {
	Answer    string   `json:"answer"`
	Followups []string `json:"followups"`
	WantFiles []string `json:"wantFiles"`
}

// decidePrompt renders the file-selection request: the question, the
// compact signature index, and on a loop-back the cumulative context.
func decidePrompt(question string, idx *index.FilteredIndex, fetched, wanted []string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Question: %s\n\nSignature index:\n\n%s", question, renderIndex(idx))
	if len(fetched) > 0 {
		fmt.Fprintf(&b, "\nAlready inspected (do not pick again): %s\n", strings.Join(fetched, ", "))
	}
	if len(wanted) > 0 {
		fmt.Fprintf(&b, "The previous answer asked for: %s\n", strings.Join(wanted, ", "))
	}
	b.WriteString(`
Reply with only JSON:
{"files": ["path", ...], "reason": "why these files"}
Use paths exactly as they appear in the index.`)
	return b.String()
}

// renderIndex renders the signature index one file per block, compact
// enough to show every file yet carry each declaration.
func renderIndex(idx *index.FilteredIndex) string {
	var b strings.Builder
	for i := range idx.Index {
		entry := &idx.Index[i]
		fmt.Fprintf(&b, "%s (%s)\n", entry.File, entry.Lang)
		for _, sig := range entry.AST {
			fmt.Fprintf(&b, "  %s\n", renderSignature(sig))
		}
	}
	return b.String()
}

func renderSignature(sig *index.Signature) string {
	if sig.Kind == index.KindClass {
		names := make([]string, 0, len(sig.Methods))
		for _, m := range sig.Methods {
			names = append(names, m.Name)
		}
		return fmt.Sprintf("class %s { %s }", sig.Name, strings.Join(names, ", "))
	}
	return fmt.Sprintf("%s(%s)", sig.Name, strings.Join(sig.Params, ", "))
}

// prunePrompt renders the prune request: per-tree statistics plus the
// plan vocabulary.
func prunePrompt(question string, trees []*ast.DetailedTree) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Question: %s\n\nParsed files:\n\n", question)
	for _, tree := range trees {
		if tree == nil {
			continue
		}
		fmt.Fprintf(&b, "file: %s (%s)\n", tree.FilePath, tree.Language)
		fmt.Fprintf(&b, "nodes: %d, approx tokens: %d\n",
			budget.CountNodesQuick(tree.Root, 0),
			budget.EstimateTree(tree),
		)
		if types := budget.TopKTypes(tree.Root, 5, budget.WithNormalize()); len(types) > 0 {
			parts := make([]string, 0, len(types))
			for _, tc := range types {
				parts = append(parts, fmt.Sprintf("%s(%d)", tc.Type, tc.Count))
			}
			fmt.Fprintf(&b, "top node types: %s\n", strings.Join(parts, ", "))
		}
		b.WriteByte('\n')
	}
	b.WriteString(`Reply with only JSON:
{"mode": "KEEP_SOME", "keep_full": ["path"], "slice": [{"file": "path", "by": {"types": ["node_type"], "symbols": ["name"], "maxNodes": 40}, "paths": ["0.1"]}], "drop": ["path"], "rationale": "why"}
Modes: KEEP_SOME keeps, slices and drops per file; KEEP_MIN keeps only sliced essentials; DROP_ALL discards everything.
Files you do not mention are dropped.`)
	return b.String()
}

// answerPrompt renders the final request: pruned trees as JSON plus the
// literal code slices.
func answerPrompt(question string, pruned []*ast.DetailedTree, slices []coderange.CodeSlice) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Question: %s\n", question)

	if len(pruned) > 0 {
		treeJSON, err := json.Marshal(pruned)
		if err == nil {
			fmt.Fprintf(&b, "\nParsed trees (compressed):\n%s\n", treeJSON)
		}
	}
	if len(slices) > 0 {
		b.WriteString("\nCode excerpts:\n")
		for _, s := range slices {
			fmt.Fprintf(&b, "\n--- %s:%d-%d", s.File, s.StartLine, s.EndLine)
			if s.Rationale != "" {
				fmt.Fprintf(&b, " (%s)", s.Rationale)
			}
			b.WriteByte('\n')
			b.WriteString(s.Code)
			b.WriteByte('\n')
		}
	}

	b.WriteString(`
Reply with only JSON:
{"answer": "your answer", "followups": ["suggested follow-up question", ...], "wantFiles": ["path of a file you would need", ...]}
Leave followups and wantFiles empty unless more context is genuinely required.`)
	return b.String()
}
