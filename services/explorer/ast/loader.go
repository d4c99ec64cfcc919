package ast

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	sitter "github.com/smacker/go-tree-sitter"
)

// File size constants for input validation.
const (
	// DefaultMaxFileSize is the maximum file size the loader will accept (10MB).
	DefaultMaxFileSize = 10 * 1024 * 1024

	// WarnFileSize is the threshold at which a warning is logged (1MB).
	WarnFileSize = 1 * 1024 * 1024

	// MaxTreeNodes caps how many named nodes a single conversion will
	// produce. Conversion stops quietly at the cap; the partial tree is
	// still usable.
	MaxTreeNodes = 500_000
)

// LoaderOption configures a Loader instance.
type LoaderOption func(*Loader)

// WithMaxFileSize sets the maximum file size the loader will accept.
func WithMaxFileSize(bytes int64) LoaderOption {
	return func(l *Loader) {
		if bytes > 0 {
			l.maxFileSize = bytes
		}
	}
}

// Loader parses source files into DetailedTrees.
//
// Description:
//
//	Loader resolves project-relative paths under a fixed root, selects
//	the grammar by file extension, parses with tree-sitter, and converts
//	the raw tree into the serializable Node form (named nodes only,
//	samples capped at SampleLimit runes).
//
// Thread Safety:
//
//	Loader instances are safe for concurrent use. Each Parse call
//	creates its own tree-sitter parser internally.
//
// Example:
//
//	loader := ast.NewLoader("/repo", ast.DefaultRegistry())
//	tree, err := loader.Parse(ctx, "src/acc.cpp")
//	if err != nil {
//	    return err
//	}
//	fmt.Println(tree.Root.Type)
type Loader struct {
	root        string
	registry    *Registry
	maxFileSize int64
}

// NewLoader creates a Loader rooted at the given project directory.
// A nil registry falls back to DefaultRegistry().
func NewLoader(root string, reg *Registry, opts ...LoaderOption) *Loader {
	if reg == nil {
		reg = DefaultRegistry()
	}

	l := &Loader{
		root:        root,
		registry:    reg,
		maxFileSize: DefaultMaxFileSize,
	}

	for _, opt := range opts {
		opt(l)
	}

	return l
}

// Root returns the project root the loader resolves paths under.
func (l *Loader) Root() string {
	return l.root
}

// Registry returns the language registry backing this loader.
func (l *Loader) Registry() *Registry {
	return l.registry
}

// Parse reads and parses one file under the loader's root.
//
// Description:
//
//	Parse resolves relPath under the project root, selects the grammar
//	by extension, and converts the parsed tree. Unlike most per-file
//	problems, an unsupported extension is a hard failure surfaced to the
//	caller (wrapped ErrUnsupportedExtension), not a silent skip.
//
// Inputs:
//   - ctx: Context for cancellation. Checked before and after parsing.
//   - relPath: Project-relative path. Forward or native slashes accepted;
//     the resulting tree always carries the forward-slash form.
//
// Outputs:
//   - *DetailedTree: Converted tree. Never nil on success.
//   - error: ErrUnsupportedExtension, ErrFileTooLarge, ErrInvalidUTF8,
//     ErrParseFailed, read errors, or context errors.
//
// Thread Safety: safe for concurrent use.
func (l *Loader) Parse(ctx context.Context, relPath string) (*DetailedTree, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("parse canceled before start: %w", err)
	}

	rel := filepath.ToSlash(relPath)
	ext := strings.ToLower(filepath.Ext(rel))
	lang, ok := l.registry.ByExtension(ext)
	if !ok {
		return nil, fmt.Errorf("%s: %w", rel, ErrUnsupportedExtension)
	}

	abs := filepath.Join(l.root, filepath.FromSlash(rel))
	content, err := os.ReadFile(abs)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", rel, err)
	}

	return l.parseContent(ctx, content, rel, lang)
}

// ParseSource parses in-memory content as the named language.
//
// Used by tests and by the HTTP parse endpoint when content arrives
// without a backing file. The language must be a registered name
// ("c", "cpp", "typescript", ...).
func (l *Loader) ParseSource(ctx context.Context, content []byte, relPath, language string) (*DetailedTree, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("parse canceled before start: %w", err)
	}

	lang, ok := l.registry.ByName(language)
	if !ok {
		return nil, fmt.Errorf("language %s: %w", language, ErrUnsupportedExtension)
	}

	return l.parseContent(ctx, content, filepath.ToSlash(relPath), lang)
}

// parseContent validates content, runs tree-sitter, and converts the tree.
func (l *Loader) parseContent(ctx context.Context, content []byte, rel string, lang *Language) (*DetailedTree, error) {
	if int64(len(content)) > l.maxFileSize {
		return nil, fmt.Errorf("%w: size %d exceeds limit %d", ErrFileTooLarge, len(content), l.maxFileSize)
	}

	if len(content) > WarnFileSize {
		slog.Warn("parsing large file",
			slog.String("file", rel),
			slog.Int("size_bytes", len(content)))
	}

	if !utf8.Valid(content) {
		return nil, fmt.Errorf("%s: %w", rel, ErrInvalidUTF8)
	}

	// New parser per call: tree-sitter parsers are not concurrency-safe.
	parser := lang.NewParser()
	tree, err := parser.ParseCtx(ctx, nil, content)
	if err != nil {
		return nil, fmt.Errorf("%s: %w: %v", rel, ErrParseFailed, err)
	}
	defer tree.Close()

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("parse canceled after tree-sitter: %w", err)
	}

	rootNode := tree.RootNode()
	if rootNode == nil {
		return nil, fmt.Errorf("%s: %w: nil root node", rel, ErrParseFailed)
	}

	return &DetailedTree{
		FilePath: rel,
		Language: lang.Name,
		Root:     convertTree(rootNode, content, MaxTreeNodes),
	}, nil
}

// convertTree walks the raw tree iteratively and mirrors its named
// nodes. The explicit stack keeps deeply nested sources from growing
// the goroutine stack; maxNodes bounds total work.
func convertTree(src *sitter.Node, content []byte, maxNodes int) *Node {
	root := newNode(src, content)
	visited := 1

	type frame struct {
		src *sitter.Node
		dst *Node
	}
	stack := []frame{{src: src, dst: root}}

	for len(stack) > 0 {
		f := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		n := int(f.src.NamedChildCount())
		for i := 0; i < n; i++ {
			if visited >= maxNodes {
				return root
			}
			childSrc := f.src.NamedChild(i)
			childDst := newNode(childSrc, content)
			f.dst.Children = append(f.dst.Children, childDst)
			visited++
			stack = append(stack, frame{src: childSrc, dst: childDst})
		}
	}

	return root
}

// newNode converts a single tree-sitter node, capturing its type,
// span, and a bounded text sample.
func newNode(src *sitter.Node, content []byte) *Node {
	return &Node{
		Type: src.Type(),
		StartPosition: Point{
			Row:    src.StartPoint().Row,
			Column: src.StartPoint().Column,
		},
		EndPosition: Point{
			Row:    src.EndPoint().Row,
			Column: src.EndPoint().Column,
		},
		Sample: sampleText(content, src),
	}
}

// sampleText returns at most SampleLimit runes from the start of the
// node's span.
func sampleText(content []byte, src *sitter.Node) string {
	start, end := int(src.StartByte()), int(src.EndByte())
	if start < 0 || start > len(content) {
		return ""
	}
	if end > len(content) {
		end = len(content)
	}

	span := content[start:end]
	// A rune occupies at most utf8.UTFMax bytes; avoid materializing
	// huge spans only to truncate them.
	if len(span) > SampleLimit*utf8.UTFMax {
		span = span[:SampleLimit*utf8.UTFMax]
	}

	return truncateRunes(string(span), SampleLimit)
}

// truncateRunes returns the prefix of s holding at most limit runes.
func truncateRunes(s string, limit int) string {
	if limit <= 0 {
		return ""
	}
	count := 0
	for i := range s {
		if count == limit {
			return s[:i]
		}
		count++
	}
	return s
}
