// Copyright (C) 2025 MoaNote (CBNU-MoaNote-CapstonDesign)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package prune

import (
	"encoding/json"
	"sort"
	"strings"

	"github.com/CBNU-MoaNote-CapstonDesign/codebase-explorer-langgraph/services/explorer/ast"
	"github.com/CBNU-MoaNote-CapstonDesign/codebase-explorer-langgraph/services/explorer/budget"
)

// Config holds the engine's safety limits.
type Config struct {
	// AllowDropAll permits DROP_ALL plans to discard every tree.
	// Default: true
	AllowDropAll bool

	// EnforceLimits enables the server-side hard caps below. The
	// caps run after the plan, so even a cooperative oracle cannot
	// overfill the context window.
	// Default: true
	EnforceLimits bool

	// MaxFilesPerPrompt caps how many trees survive pruning.
	// Zero disables the cap.
	// Default: 8
	MaxFilesPerPrompt int

	// MaxASTTokens is the static token cap on the surviving trees.
	// It applies only when Window is not configured. Zero disables
	// the cap.
	// Default: 12000
	MaxASTTokens int

	// Window, when its ContextWindow is set, derives a dynamic
	// token budget from the model's context window and the prompt
	// overhead. It takes priority over MaxASTTokens.
	// Default: budget.DefaultWindowConfig()
	Window budget.WindowConfig
}

// DefaultConfig returns the production limits.
func DefaultConfig() Config {
	return Config{
		AllowDropAll:      true,
		EnforceLimits:     true,
		MaxFilesPerPrompt: 8,
		MaxASTTokens:      12000,
		Window:            budget.DefaultWindowConfig(),
	}
}

// Trace records what one Apply call did, for the pipeline trace and
// the request log.
type Trace struct {
	Mode         string   `json:"mode"`
	PlannedFiles []string `json:"plannedFiles"`
	Kept         []string `json:"kept"`
	Dropped      []string `json:"dropped"`
	TokensBefore int      `json:"tokensBefore"`
	TokensAfter  int      `json:"tokensAfter"`
}

// Result is the outcome of applying a plan to a set of trees.
type Result struct {
	// Pruned holds the surviving trees in input order, full or
	// sliced per the plan.
	Pruned []*ast.DetailedTree

	// DroppedAll reports whether nothing survived. The pipeline
	// uses it to suppress the expansion loop.
	DroppedAll bool

	// Applied is the plan that was actually applied, after any
	// fallback substitution.
	Applied *Plan

	Trace Trace
}

// Engine applies prune plans under the configured limits.
//
// An Engine is stateless and safe for concurrent use.
type Engine struct {
	cfg Config
}

// NewEngine returns an engine with the given limits.
func NewEngine(cfg Config) *Engine {
	return &Engine{cfg: cfg}
}

// Apply resolves the plan against the trees.
//
// A nil plan falls back to DefaultPlan over the input files. When the
// plan is DROP_ALL and drop-all is permitted, everything is discarded
// and no further rules run. Otherwise each file resolves through the
// first matching rule: drop list, then keep_full, then its slice rule
// (predicate hints first, then paths; the file survives only if the
// slice is non-empty). Files the plan never mentions are dropped.
// Finally, when EnforceLimits is set, the count cap runs before the
// token cap.
func (e *Engine) Apply(trees []*ast.DetailedTree, plan *Plan, question string) Result {
	if plan == nil {
		files := make([]string, 0, len(trees))
		for _, t := range trees {
			if t != nil {
				files = append(files, t.FilePath)
			}
		}
		plan = DefaultPlan(files)
	}

	trace := Trace{
		Mode:         plan.Mode.String(),
		PlannedFiles: plannedFiles(plan),
		TokensBefore: budget.Estimate(trees),
	}

	if plan.Mode == ModeDropAll && e.cfg.AllowDropAll {
		for _, t := range trees {
			if t != nil {
				trace.Dropped = append(trace.Dropped, t.FilePath)
			}
		}
		trace.Kept = []string{}
		trace.TokensAfter = 0
		return Result{
			Pruned:     make([]*ast.DetailedTree, 0),
			DroppedAll: true,
			Applied:    plan,
			Trace:      trace,
		}
	}

	dropSet := make(map[string]bool, len(plan.Drop))
	for _, f := range plan.Drop {
		dropSet[f] = true
	}
	keepSet := make(map[string]bool, len(plan.KeepFull))
	for _, f := range plan.KeepFull {
		keepSet[f] = true
	}
	ruleByFile := make(map[string]SliceRule, len(plan.Slice))
	for _, r := range plan.Slice {
		if _, dup := ruleByFile[r.File]; !dup {
			ruleByFile[r.File] = r
		}
	}

	kept := make([]*ast.DetailedTree, 0, len(trees))
	for _, t := range trees {
		if t == nil {
			continue
		}
		switch {
		case dropSet[t.FilePath]:
			trace.Dropped = append(trace.Dropped, t.FilePath)
		case keepSet[t.FilePath]:
			kept = append(kept, t)
		default:
			rule, ok := ruleByFile[t.FilePath]
			if !ok {
				// Unmentioned files are dropped.
				trace.Dropped = append(trace.Dropped, t.FilePath)
				continue
			}
			sliced := applyRule(t, rule)
			if ast.IsNonEmptySlice(sliced) {
				kept = append(kept, sliced)
			} else {
				trace.Dropped = append(trace.Dropped, t.FilePath)
			}
		}
	}

	if e.cfg.EnforceLimits {
		limited := RankAndTrim(kept, question, e.cfg.MaxFilesPerPrompt)
		limited = TrimToTokenBudget(limited, e.astBudget(question, limited))
		still := make(map[*ast.DetailedTree]bool, len(limited))
		for _, t := range limited {
			still[t] = true
		}
		for _, t := range kept {
			if !still[t] {
				trace.Dropped = append(trace.Dropped, t.FilePath)
			}
		}
		kept = limited
	}

	trace.Kept = make([]string, 0, len(kept))
	for _, t := range kept {
		trace.Kept = append(trace.Kept, t.FilePath)
	}
	trace.TokensAfter = budget.Estimate(kept)

	return Result{
		Pruned:     kept,
		DroppedAll: len(kept) == 0,
		Applied:    plan,
		Trace:      trace,
	}
}

// plannedFiles collects every file the plan mentions, deduplicated in
// first-mention order.
func plannedFiles(plan *Plan) []string {
	seen := make(map[string]bool)
	out := make([]string, 0, len(plan.KeepFull)+len(plan.Slice)+len(plan.Drop))
	add := func(f string) {
		if !seen[f] {
			seen[f] = true
			out = append(out, f)
		}
	}
	for _, f := range plan.KeepFull {
		add(f)
	}
	for _, r := range plan.Slice {
		add(r.File)
	}
	for _, f := range plan.Drop {
		add(f)
	}
	return out
}

// applyRule reduces a tree per one slice rule. Predicate hints apply
// first, paths narrow the result. A rule carrying neither selects
// nothing, so the file is dropped rather than kept in full.
func applyRule(tree *ast.DetailedTree, rule SliceRule) *ast.DetailedTree {
	var hints ast.SliceHints
	if rule.By != nil {
		hints = *rule.By
	}
	if hints.IsZero() && len(rule.Paths) == 0 {
		return ast.SliceByPaths(tree, nil)
	}
	out := tree
	if !hints.IsZero() {
		out = ast.SliceByHints(out, hints)
	}
	if len(rule.Paths) > 0 {
		out = ast.SliceByPaths(out, rule.Paths)
	}
	return out
}

// RankAndTrim keeps at most k trees, ranked by a relevance score. The
// score is +3 when the file path contains the question
// case-insensitively, plus min(3, number of top-level nodes). Ties
// carry no defined order. k <= 0 disables the cap and returns the
// input unchanged.
func RankAndTrim(trees []*ast.DetailedTree, question string, k int) []*ast.DetailedTree {
	if k <= 0 {
		return trees
	}
	q := strings.ToLower(strings.TrimSpace(question))
	type scored struct {
		tree  *ast.DetailedTree
		score int
	}
	ranked := make([]scored, 0, len(trees))
	for _, t := range trees {
		if t == nil {
			continue
		}
		s := 0
		if q != "" && strings.Contains(strings.ToLower(t.FilePath), q) {
			s += 3
		}
		if t.Root != nil {
			n := len(t.Root.Children)
			if n > 3 {
				n = 3
			}
			s += n
		}
		ranked = append(ranked, scored{tree: t, score: s})
	}
	sort.Slice(ranked, func(i, j int) bool {
		return ranked[i].score > ranked[j].score
	})
	if len(ranked) > k {
		ranked = ranked[:k]
	}
	out := make([]*ast.DetailedTree, 0, len(ranked))
	for _, r := range ranked {
		out = append(out, r.tree)
	}
	return out
}

// TrimToTokenBudget keeps the longest prefix of trees whose combined
// estimate stays within tokenBudget. The first tree that would push
// the total over the budget stops the scan; nothing after it is
// reconsidered. tokenBudget <= 0 disables the cap.
func TrimToTokenBudget(trees []*ast.DetailedTree, tokenBudget int) []*ast.DetailedTree {
	if tokenBudget <= 0 {
		return trees
	}
	kept := make([]*ast.DetailedTree, 0, len(trees))
	for _, t := range trees {
		if budget.Estimate(append(kept, t)) > tokenBudget {
			break
		}
		kept = append(kept, t)
	}
	return kept
}

// astBudget picks the token budget for the surviving trees: the
// window-derived dynamic budget when a context window is configured,
// the static cap otherwise.
func (e *Engine) astBudget(question string, kept []*ast.DetailedTree) int {
	if e.cfg.Window.ContextWindow > 0 {
		files := make([]string, 0, len(kept))
		for _, t := range kept {
			files = append(files, t.FilePath)
		}
		serialized, _ := json.Marshal(files)
		return e.cfg.Window.Usable(budget.Overhead(question, string(serialized)))
	}
	return e.cfg.MaxASTTokens
}
