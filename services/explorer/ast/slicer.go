package ast

import (
	"strconv"
	"strings"
)

// SliceRootType is the Type of the synthetic root holding slice results.
const SliceRootType = "slice"

// SliceHints is the predicate an oracle supplies to narrow a tree:
// keep nodes whose type is listed or whose sample mentions a symbol.
type SliceHints struct {
	// Symbols are substrings matched against node samples.
	// Empty entries are ignored.
	Symbols []string `json:"symbols"`

	// HintTypes are exact tree-sitter type names to keep.
	HintTypes []string `json:"types"`

	// MaxNodes stops the traversal after this many matches.
	// Zero or negative means uncapped.
	MaxNodes int `json:"maxNodes"`
}

// IsZero reports whether the hints carry no criteria at all.
func (h SliceHints) IsZero() bool {
	return len(h.Symbols) == 0 && len(h.HintTypes) == 0 && h.MaxNodes == 0
}

// SliceByHints collects matching nodes into a flat synthetic tree.
//
// Description:
//
//	Walks the tree depth-first in document order (explicit stack) and
//	appends each matching node to a synthetic root as a childless copy:
//	the predicate slice flattens structure, keeping only the node's own
//	type, span, and sample. Traversal halts entirely once MaxNodes
//	matches have been collected, so a tight cap also bounds work.
//
// Outputs:
//
//	*DetailedTree - Same file and language, root Type "slice". An empty
//	result (no children) means nothing matched.
func SliceByHints(tree *DetailedTree, hints SliceHints) *DetailedTree {
	out := emptySlice(tree)
	if tree == nil || tree.Root == nil {
		return out
	}

	matched := 0
	stack := []*Node{tree.Root}

	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if matchesHints(n, hints) {
			out.Root.Children = append(out.Root.Children, &Node{
				Type:          n.Type,
				StartPosition: n.StartPosition,
				EndPosition:   n.EndPosition,
				Sample:        n.Sample,
			})
			matched++
			if hints.MaxNodes > 0 && matched >= hints.MaxNodes {
				break
			}
		}

		// Push children reversed so they pop in document order.
		for i := len(n.Children) - 1; i >= 0; i-- {
			stack = append(stack, n.Children[i])
		}
	}

	return out
}

// SliceByPaths keeps the subtrees addressed by child-index paths.
//
// Description:
//
//	Each path is a dot-separated list of non-negative child indices
//	resolved from the root ("0.2.1" = root's child 0, its child 2, its
//	child 1). Resolved subtrees become top-level children of the
//	synthetic root and retain their internal nesting. Paths with
//	non-numeric or out-of-range segments are skipped silently; a fully
//	unresolvable set yields an empty slice, never an error.
//
//	Trees are immutable once built, so subtrees are shared with the
//	input rather than copied.
func SliceByPaths(tree *DetailedTree, paths []string) *DetailedTree {
	out := emptySlice(tree)
	if tree == nil || tree.Root == nil {
		return out
	}

	for _, path := range paths {
		if n := resolvePath(tree.Root, path); n != nil {
			out.Root.Children = append(out.Root.Children, n)
		}
	}

	return out
}

// IsNonEmptySlice reports whether a slice kept at least one node.
func IsNonEmptySlice(tree *DetailedTree) bool {
	return tree != nil && tree.Root != nil && len(tree.Root.Children) > 0
}

// emptySlice builds the synthetic result tree for a source tree.
func emptySlice(tree *DetailedTree) *DetailedTree {
	out := &DetailedTree{Root: &Node{Type: SliceRootType}}
	if tree != nil {
		out.FilePath = tree.FilePath
		out.Language = tree.Language
	}
	return out
}

// matchesHints reports whether a node satisfies the slice predicate:
// exact type match, or any non-empty symbol appearing in the sample.
func matchesHints(n *Node, h SliceHints) bool {
	for _, t := range h.HintTypes {
		if n.Type == t {
			return true
		}
	}
	for _, s := range h.Symbols {
		if s != "" && strings.Contains(n.Sample, s) {
			return true
		}
	}
	return false
}

// resolvePath follows dot-separated child indices from the root.
// Returns nil when any segment fails to parse or is out of range.
func resolvePath(root *Node, path string) *Node {
	cur := root
	for _, seg := range strings.Split(path, ".") {
		idx, err := strconv.Atoi(strings.TrimSpace(seg))
		if err != nil || idx < 0 || idx >= len(cur.Children) {
			return nil
		}
		cur = cur.Children[idx]
	}
	return cur
}
