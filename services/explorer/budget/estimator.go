// Copyright (C) 2025 MoaNote (CBNU-MoaNote-CapstonDesign)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package budget estimates the prompt cost of serialized syntax trees
// and derives usable token budgets from a model's context window.
//
// Token estimates are heuristic: roughly four bytes of sample text per
// token plus one token per ten nodes of structural overhead (type
// names, positions, braces). The estimates only need to be consistent,
// not exact, because the safety fraction in WindowConfig absorbs the
// error.
package budget

import (
	"sort"
	"strings"

	"github.com/CBNU-MoaNote-CapstonDesign/codebase-explorer-langgraph/services/explorer/ast"
)

const (
	// charsPerToken approximates text cost at four bytes per token.
	charsPerToken = 4

	// nodesPerToken approximates per-node structural overhead.
	nodesPerToken = 10
)

// Estimate returns the approximate token cost of serializing trees
// into a prompt.
//
// Sample bytes and node counts are summed across all trees first, and
// each grand total is rounded up once. Nil trees and nil roots
// contribute nothing.
func Estimate(trees []*ast.DetailedTree) int {
	var chars, nodes int
	for _, t := range trees {
		if t == nil || t.Root == nil {
			continue
		}
		c, n := measure(t.Root)
		chars += c
		nodes += n
	}
	return ceilDiv(chars, charsPerToken) + ceilDiv(nodes, nodesPerToken)
}

// EstimateTree returns the approximate token cost of a single tree.
func EstimateTree(tree *ast.DetailedTree) int {
	if tree == nil {
		return 0
	}
	return Estimate([]*ast.DetailedTree{tree})
}

// measure walks the subtree iteratively and returns its total sample
// bytes and node count.
func measure(root *ast.Node) (chars, nodes int) {
	stack := []*ast.Node{root}
	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if n == nil {
			continue
		}
		chars += len(n.Sample)
		nodes++
		stack = append(stack, n.Children...)
	}
	return chars, nodes
}

func ceilDiv(n, d int) int {
	return (n + d - 1) / d
}

// CountNodesQuick counts nodes in the subtree rooted at root, stopping
// as soon as limit nodes have been visited. A limit <= 0 counts the
// whole subtree.
//
// The early stop makes this cheap enough to run on every tree before
// deciding whether a full summary is worth computing.
func CountNodesQuick(root *ast.Node, limit int) int {
	if root == nil {
		return 0
	}

	count := 0
	stack := []*ast.Node{root}
	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if n == nil {
			continue
		}
		count++
		if limit > 0 && count >= limit {
			return count
		}
		stack = append(stack, n.Children...)
	}
	return count
}

// TypeCount pairs a node type with its occurrence count.
type TypeCount struct {
	Type  string `json:"type"`
	Count int    `json:"count"`
}

// TypeCountOption configures TopKTypes.
type TypeCountOption func(*typeCountOptions)

type typeCountOptions struct {
	normalize bool
	stop      map[string]struct{}
}

// WithNormalize lower-cases node types before counting, merging
// grammar variants that differ only in case.
func WithNormalize() TypeCountOption {
	return func(o *typeCountOptions) { o.normalize = true }
}

// WithStopTypes excludes the given node types from the count. The
// excluded node's children are still visited. When WithNormalize is
// also set, stop types are matched case-insensitively.
func WithStopTypes(types ...string) TypeCountOption {
	return func(o *typeCountOptions) {
		if o.stop == nil {
			o.stop = make(map[string]struct{}, len(types))
		}
		for _, t := range types {
			o.stop[t] = struct{}{}
		}
	}
}

// TopKTypes returns the k most frequent node types in the subtree at
// root, counted exactly over a full traversal.
//
// Results are ordered by descending count. Types with equal counts
// keep the order in which they were first encountered during the
// document-order walk, so output is deterministic for a given tree.
// A nil root or k <= 0 returns nil.
func TopKTypes(root *ast.Node, k int, opts ...TypeCountOption) []TypeCount {
	if root == nil || k <= 0 {
		return nil
	}

	var o typeCountOptions
	for _, opt := range opts {
		opt(&o)
	}
	stop := o.stop
	if o.normalize && len(stop) > 0 {
		lowered := make(map[string]struct{}, len(stop))
		for t := range stop {
			lowered[strings.ToLower(t)] = struct{}{}
		}
		stop = lowered
	}

	counts := make(map[string]int)
	var order []string // first-encountered sequence, the tie-break key

	stack := []*ast.Node{root}
	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if n == nil {
			continue
		}
		// Push children reversed so the stack pops in document order.
		for i := len(n.Children) - 1; i >= 0; i-- {
			stack = append(stack, n.Children[i])
		}

		typ := n.Type
		if o.normalize {
			typ = strings.ToLower(typ)
		}
		if _, skip := stop[typ]; skip {
			continue
		}
		if _, seen := counts[typ]; !seen {
			order = append(order, typ)
		}
		counts[typ]++
	}

	result := make([]TypeCount, len(order))
	for i, typ := range order {
		result[i] = TypeCount{Type: typ, Count: counts[typ]}
	}
	sort.SliceStable(result, func(i, j int) bool {
		return result[i].Count > result[j].Count
	})
	if len(result) > k {
		result = result[:k]
	}
	return result
}
