// Package ast converts tree-sitter syntax trees into a serializable,
// language-agnostic node form and slices that form down to the parts a
// question needs.
//
// The package deliberately treats tree-sitter as a black box: everything
// downstream (budgeting, pruning, range selection) operates on the
// converted Node representation, never on raw tree-sitter handles.
//
// Design principles:
//   - Language-agnostic: one Node shape for every supported grammar
//   - Named nodes only: syntax trivia (punctuation, keywords) is omitted
//   - Bounded samples: node text is a prefix capped at SampleLimit runes
//   - Immutable after conversion: trees are shared freely across stages
package ast

// SampleLimit is the maximum number of characters of source text
// retained per node. Samples are prefixes of the node's span, never
// the full text of large nodes.
const SampleLimit = 200

// Point is a zero-based position in a source file, matching the
// tree-sitter convention (row 0 is the first line, column 0 the first
// byte of the line).
type Point struct {
	// Row is the 0-indexed line number.
	Row uint32 `json:"row"`

	// Column is the 0-indexed byte offset within the line.
	Column uint32 `json:"column"`
}

// Node is one named syntax-tree node in serializable form.
//
// Children appear in parse order. Anonymous tree-sitter nodes
// (operators, keywords, brackets) are not represented; the tree
// contains only named grammar productions.
type Node struct {
	// Type is the tree-sitter grammar production name.
	// Examples: "function_definition", "class_declaration".
	Type string `json:"type"`

	// StartPosition is where the node's span begins.
	StartPosition Point `json:"startPosition"`

	// EndPosition is where the node's span ends (exclusive).
	EndPosition Point `json:"endPosition"`

	// Sample is a prefix of the node's source text, at most
	// SampleLimit characters. Never the full span for large nodes.
	Sample string `json:"sample"`

	// Children are the named child nodes in parse order.
	// Nil for leaves and for flattened slice copies.
	Children []*Node `json:"children,omitempty"`
}

// DetailedTree is the full converted syntax tree of one source file.
//
// A DetailedTree is immutable once built and lives for the duration of
// a single exploration run; it is never persisted.
type DetailedTree struct {
	// FilePath is the project-relative path of the parsed file,
	// always forward-slash separated.
	FilePath string `json:"filePath"`

	// Language is the registry name of the grammar used to parse.
	// Examples: "c", "cpp", "typescript".
	Language string `json:"language"`

	// Root is the converted root node, or nil when conversion
	// produced nothing.
	Root *Node `json:"root"`
}
