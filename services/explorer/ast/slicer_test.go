package ast

import (
	"testing"
)

// buildSliceTree constructs a small cpp-shaped tree by hand:
//
//	translation_unit
//	├── function_definition "int add(int a, int b) { return a + b; }"
//	│   ├── identifier "add"
//	│   └── parameter_list "(int a, int b)"
//	└── class_specifier "class Account { int sum(); }"
//	    └── type_identifier "Account"
func buildSliceTree() *DetailedTree {
	fn := &Node{
		Type:   "function_definition",
		Sample: "int add(int a, int b) { return a + b; }",
		Children: []*Node{
			{Type: "identifier", Sample: "add"},
			{Type: "parameter_list", Sample: "(int a, int b)"},
		},
	}
	cls := &Node{
		Type:   "class_specifier",
		Sample: "class Account { int sum(); }",
		Children: []*Node{
			{Type: "type_identifier", Sample: "Account"},
		},
	}
	root := &Node{
		Type:     "translation_unit",
		Sample:   "int add(int a, int b) { return a + b; }\nclass Account { int sum(); }",
		Children: []*Node{fn, cls},
	}
	return &DetailedTree{FilePath: "src/acc.cpp", Language: "cpp", Root: root}
}

func TestSliceByHints_TypeMatch(t *testing.T) {
	tree := buildSliceTree()

	out := SliceByHints(tree, SliceHints{HintTypes: []string{"identifier", "type_identifier"}})

	if out.Root.Type != SliceRootType {
		t.Errorf("root type = %q, want %q", out.Root.Type, SliceRootType)
	}
	if out.FilePath != "src/acc.cpp" || out.Language != "cpp" {
		t.Errorf("file/language not carried over: %q %q", out.FilePath, out.Language)
	}
	if len(out.Root.Children) != 2 {
		t.Fatalf("matched %d nodes, want 2", len(out.Root.Children))
	}

	// Document order: the function's identifier comes before the class's
	// type_identifier.
	if out.Root.Children[0].Sample != "add" {
		t.Errorf("first match sample = %q, want %q", out.Root.Children[0].Sample, "add")
	}
	if out.Root.Children[1].Sample != "Account" {
		t.Errorf("second match sample = %q, want %q", out.Root.Children[1].Sample, "Account")
	}
}

func TestSliceByHints_MatchesAreChildless(t *testing.T) {
	tree := buildSliceTree()

	out := SliceByHints(tree, SliceHints{HintTypes: []string{"function_definition"}})

	if len(out.Root.Children) != 1 {
		t.Fatalf("matched %d nodes, want 1", len(out.Root.Children))
	}
	kept := out.Root.Children[0]
	if kept.Children != nil {
		t.Errorf("predicate slice must flatten: kept node has %d children", len(kept.Children))
	}
	// The source node keeps its children; only the copy is flattened.
	if len(tree.Root.Children[0].Children) != 2 {
		t.Error("input tree was mutated")
	}
}

func TestSliceByHints_SymbolSubstring(t *testing.T) {
	tree := buildSliceTree()

	out := SliceByHints(tree, SliceHints{Symbols: []string{"Account"}})

	// Root sample, class_specifier and type_identifier all mention Account.
	if len(out.Root.Children) != 3 {
		t.Fatalf("matched %d nodes, want 3", len(out.Root.Children))
	}
}

func TestSliceByHints_MaxNodesHaltsTraversal(t *testing.T) {
	tree := buildSliceTree()

	out := SliceByHints(tree, SliceHints{
		HintTypes: []string{"identifier", "type_identifier"},
		MaxNodes:  1,
	})

	if len(out.Root.Children) != 1 {
		t.Fatalf("matched %d nodes, want exactly 1", len(out.Root.Children))
	}
	if out.Root.Children[0].Sample != "add" {
		t.Errorf("kept %q, want first match %q", out.Root.Children[0].Sample, "add")
	}
}

func TestSliceByHints_NoMatch(t *testing.T) {
	tree := buildSliceTree()

	out := SliceByHints(tree, SliceHints{HintTypes: []string{"enum_specifier"}})

	if IsNonEmptySlice(out) {
		t.Error("expected empty slice for unmatched hints")
	}
}

func TestSliceByHints_EmptySymbolIgnored(t *testing.T) {
	tree := buildSliceTree()

	out := SliceByHints(tree, SliceHints{Symbols: []string{""}})

	if len(out.Root.Children) != 0 {
		t.Errorf("empty symbol matched %d nodes, want 0", len(out.Root.Children))
	}
}

func TestSliceByHints_NilTree(t *testing.T) {
	out := SliceByHints(nil, SliceHints{HintTypes: []string{"identifier"}})

	if out == nil || out.Root == nil {
		t.Fatal("expected non-nil empty slice for nil tree")
	}
	if IsNonEmptySlice(out) {
		t.Error("expected empty slice for nil tree")
	}
}

func TestSliceByPaths_RetainsNesting(t *testing.T) {
	tree := buildSliceTree()

	out := SliceByPaths(tree, []string{"0"})

	if len(out.Root.Children) != 1 {
		t.Fatalf("resolved %d paths, want 1", len(out.Root.Children))
	}
	kept := out.Root.Children[0]
	if kept.Type != "function_definition" {
		t.Errorf("kept type = %q, want function_definition", kept.Type)
	}
	if len(kept.Children) != 2 {
		t.Errorf("path slice must retain nesting: kept node has %d children, want 2", len(kept.Children))
	}
	// Immutable trees are shared, not copied.
	if kept != tree.Root.Children[0] {
		t.Error("expected subtree to be shared with the input tree")
	}
}

func TestSliceByPaths_NestedPath(t *testing.T) {
	tree := buildSliceTree()

	out := SliceByPaths(tree, []string{"0.1"})

	if len(out.Root.Children) != 1 {
		t.Fatalf("resolved %d paths, want 1", len(out.Root.Children))
	}
	if out.Root.Children[0].Type != "parameter_list" {
		t.Errorf("resolved type = %q, want parameter_list", out.Root.Children[0].Type)
	}
}

func TestSliceByPaths_InvalidSegmentsNeverError(t *testing.T) {
	tree := buildSliceTree()

	tests := []struct {
		name  string
		paths []string
		want  int
	}{
		{"non-numeric", []string{"banana"}, 0},
		{"out of range", []string{"0.99"}, 0},
		{"negative", []string{"-1"}, 0},
		{"empty path", []string{""}, 0},
		{"deep miss", []string{"0.1.5"}, 0},
		{"mixed valid and invalid", []string{"banana", "1", "0.99"}, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := SliceByPaths(tree, tt.paths)
			if len(out.Root.Children) != tt.want {
				t.Errorf("resolved %d subtrees, want %d", len(out.Root.Children), tt.want)
			}
		})
	}
}

func TestIsNonEmptySlice(t *testing.T) {
	if IsNonEmptySlice(nil) {
		t.Error("nil tree should be empty")
	}
	if IsNonEmptySlice(&DetailedTree{}) {
		t.Error("tree without root should be empty")
	}
	if IsNonEmptySlice(&DetailedTree{Root: &Node{Type: SliceRootType}}) {
		t.Error("childless root should be empty")
	}
	if !IsNonEmptySlice(&DetailedTree{Root: &Node{Type: SliceRootType, Children: []*Node{{Type: "identifier"}}}}) {
		t.Error("root with a child should be non-empty")
	}
}

func TestSliceHints_IsZero(t *testing.T) {
	if !(SliceHints{}).IsZero() {
		t.Error("zero-value hints should report IsZero")
	}
	if (SliceHints{MaxNodes: 5}).IsZero() {
		t.Error("hints with MaxNodes should not be zero")
	}
	if (SliceHints{Symbols: []string{"x"}}).IsZero() {
		t.Error("hints with symbols should not be zero")
	}
}
