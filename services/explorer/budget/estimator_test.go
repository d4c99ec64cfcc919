// Copyright (C) 2025 MoaNote (CBNU-MoaNote-CapstonDesign)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package budget

import (
	"testing"

	"github.com/CBNU-MoaNote-CapstonDesign/codebase-explorer-langgraph/services/explorer/ast"
)

func mkNode(typ, sample string, children ...*ast.Node) *ast.Node {
	return &ast.Node{Type: typ, Sample: sample, Children: children}
}

func mkTree(path string, root *ast.Node) *ast.DetailedTree {
	return &ast.DetailedTree{FilePath: path, Language: "c", Root: root}
}

// testTree builds a 10-node tree with a known type vocabulary:
// translation_unit x1, function_definition x2, identifier x2,
// parameter_list x2, comment x3.
func testTree() *ast.DetailedTree {
	root := mkNode("translation_unit", "int add",
		mkNode("function_definition", "int add(int a, int b)",
			mkNode("identifier", "add"),
			mkNode("parameter_list", "(int a, int b)"),
		),
		mkNode("function_definition", "int sub(int a, int b)",
			mkNode("identifier", "sub"),
			mkNode("parameter_list", "(int a, int b)"),
		),
		mkNode("comment", "// one"),
		mkNode("comment", "// two"),
		mkNode("comment", "// three"),
	)
	return mkTree("src/math.c", root)
}

func TestEstimate_KnownTotals(t *testing.T) {
	// 16 sample bytes across 4 nodes: ceil(16/4) + ceil(4/10) = 4 + 1.
	tree := mkTree("a.c", mkNode("a", "1234",
		mkNode("b", "1234"),
		mkNode("c", "1234"),
		mkNode("d", "1234"),
	))

	got := Estimate([]*ast.DetailedTree{tree})
	want := 5
	if got != want {
		t.Errorf("Estimate() = %d, want %d", got, want)
	}
}

func TestEstimate_CeilsGrandTotalsOnce(t *testing.T) {
	// Each tree alone rounds up; the grand total does not.
	t1 := mkTree("a.c", mkNode("x", "ab")) // 2 bytes, 1 node
	t2 := mkTree("b.c", mkNode("y", "cd")) // 2 bytes, 1 node

	perTree := EstimateTree(t1) + EstimateTree(t2)
	combined := Estimate([]*ast.DetailedTree{t1, t2})

	// ceil(2/4)+ceil(1/10) = 2 per tree, 4 summed; combined is
	// ceil(4/4)+ceil(2/10) = 2.
	if perTree != 4 {
		t.Errorf("per-tree sum = %d, want 4", perTree)
	}
	if combined != 2 {
		t.Errorf("Estimate(combined) = %d, want 2", combined)
	}
}

func TestEstimate_Monotonic(t *testing.T) {
	trees := []*ast.DetailedTree{
		testTree(),
		mkTree("a.c", mkNode("x", "hello")),
		mkTree("b.c", mkNode("y", "")),
		mkTree("c.c", mkNode("z", "world",
			mkNode("w", "nested sample text"),
		)),
	}

	prev := Estimate(nil)
	if prev != 0 {
		t.Fatalf("Estimate(nil) = %d, want 0", prev)
	}
	for i := 1; i <= len(trees); i++ {
		cur := Estimate(trees[:i])
		if cur < prev {
			t.Errorf("Estimate(%d trees) = %d, less than Estimate(%d trees) = %d",
				i, cur, i-1, prev)
		}
		prev = cur
	}
}

func TestEstimate_NilSafe(t *testing.T) {
	trees := []*ast.DetailedTree{
		nil,
		{FilePath: "empty.c", Language: "c", Root: nil},
	}
	if got := Estimate(trees); got != 0 {
		t.Errorf("Estimate(nil entries) = %d, want 0", got)
	}
	if got := EstimateTree(nil); got != 0 {
		t.Errorf("EstimateTree(nil) = %d, want 0", got)
	}
}

func TestCountNodesQuick_FullCount(t *testing.T) {
	tree := testTree()
	if got := CountNodesQuick(tree.Root, 0); got != 10 {
		t.Errorf("CountNodesQuick(cap=0) = %d, want 10", got)
	}
	if got := CountNodesQuick(tree.Root, 100); got != 10 {
		t.Errorf("CountNodesQuick(cap=100) = %d, want 10", got)
	}
}

func TestCountNodesQuick_StopsAtCap(t *testing.T) {
	tree := testTree()
	for _, limit := range []int{1, 3, 7} {
		if got := CountNodesQuick(tree.Root, limit); got != limit {
			t.Errorf("CountNodesQuick(cap=%d) = %d, want %d", limit, got, limit)
		}
	}
}

func TestCountNodesQuick_NilRoot(t *testing.T) {
	if got := CountNodesQuick(nil, 10); got != 0 {
		t.Errorf("CountNodesQuick(nil) = %d, want 0", got)
	}
}

func TestTopKTypes_CountConservation(t *testing.T) {
	tree := testTree()
	total := CountNodesQuick(tree.Root, 0)

	// k at least as large as the vocabulary captures every node.
	counts := TopKTypes(tree.Root, 100)
	sum := 0
	for _, tc := range counts {
		sum += tc.Count
	}
	if sum != total {
		t.Errorf("sum of counts = %d, want total node count %d", sum, total)
	}
}

func TestTopKTypes_OrderAndTies(t *testing.T) {
	tree := testTree()
	got := TopKTypes(tree.Root, 100)

	want := []TypeCount{
		{Type: "comment", Count: 3},
		{Type: "function_definition", Count: 2},
		{Type: "identifier", Count: 2},
		{Type: "parameter_list", Count: 2},
		{Type: "translation_unit", Count: 1},
	}
	if len(got) != len(want) {
		t.Fatalf("got %d entries, want %d: %v", len(got), len(want), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("entry %d = %+v, want %+v", i, got[i], want[i])
		}
	}
	for i := 1; i < len(got); i++ {
		if got[i].Count > got[i-1].Count {
			t.Errorf("counts not non-increasing at %d: %v", i, got)
		}
	}
}

func TestTopKTypes_Truncation(t *testing.T) {
	tree := testTree()
	got := TopKTypes(tree.Root, 2)
	if len(got) != 2 {
		t.Fatalf("got %d entries, want 2", len(got))
	}
	if got[0].Type != "comment" || got[1].Type != "function_definition" {
		t.Errorf("top 2 = %v, want comment then function_definition", got)
	}
}

func TestTopKTypes_WithNormalize(t *testing.T) {
	root := mkNode("Block",
		"",
		mkNode("block", ""),
		mkNode("BLOCK", ""),
		mkNode("ident", ""),
	)
	got := TopKTypes(root, 10, WithNormalize())
	if len(got) != 2 {
		t.Fatalf("got %d entries, want 2 after case merge: %v", len(got), got)
	}
	if got[0].Type != "block" || got[0].Count != 3 {
		t.Errorf("got[0] = %+v, want {block 3}", got[0])
	}
}

func TestTopKTypes_WithStopTypes(t *testing.T) {
	tree := testTree()
	got := TopKTypes(tree.Root, 100, WithStopTypes("comment", "translation_unit"))

	for _, tc := range got {
		if tc.Type == "comment" || tc.Type == "translation_unit" {
			t.Errorf("stop type %q present in result", tc.Type)
		}
	}
	// Children of a stopped node are still counted.
	sum := 0
	for _, tc := range got {
		sum += tc.Count
	}
	if sum != 10-3-1 {
		t.Errorf("sum with stops = %d, want 6", sum)
	}
}

func TestTopKTypes_StopTypesNormalized(t *testing.T) {
	root := mkNode("Comment", "", mkNode("identifier", ""))
	got := TopKTypes(root, 10, WithNormalize(), WithStopTypes("comment"))
	if len(got) != 1 || got[0].Type != "identifier" {
		t.Errorf("got %v, want only identifier", got)
	}
}

func TestTopKTypes_Empty(t *testing.T) {
	if got := TopKTypes(nil, 5); got != nil {
		t.Errorf("TopKTypes(nil) = %v, want nil", got)
	}
	if got := TopKTypes(mkNode("x", ""), 0); got != nil {
		t.Errorf("TopKTypes(k=0) = %v, want nil", got)
	}
}
