package ast

import (
	"sync"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/c"
	"github.com/smacker/go-tree-sitter/cpp"
	"github.com/smacker/go-tree-sitter/golang"
	"github.com/smacker/go-tree-sitter/javascript"
	"github.com/smacker/go-tree-sitter/typescript/tsx"
	"github.com/smacker/go-tree-sitter/typescript/typescript"
)

// Language binds a registry name to a tree-sitter grammar and the file
// extensions it claims.
type Language struct {
	// Name is the canonical lowercase language name ("c", "cpp",
	// "javascript", "typescript", "tsx", "go").
	Name string

	// Grammar is the tree-sitter language handle.
	Grammar *sitter.Language

	// Extensions lists the file extensions this language handles,
	// lowercase and including the leading dot.
	Extensions []string
}

// NewParser returns a fresh tree-sitter parser configured for this
// language. Parsers are not safe for concurrent use, so callers create
// one per parse.
func (l *Language) NewParser() *sitter.Parser {
	p := sitter.NewParser()
	p.SetLanguage(l.Grammar)
	return p
}

// Registry maps language names and file extensions to Language entries.
//
// Thread Safety: all methods are safe for concurrent use. Registration
// uses write locks, lookups use read locks.
type Registry struct {
	mu sync.RWMutex

	byName map[string]*Language
	byExt  map[string]*Language
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		byName: make(map[string]*Language),
		byExt:  make(map[string]*Language),
	}
}

// Register adds a language under its name and all of its extensions.
// Later registrations overwrite earlier ones for the same key.
func (r *Registry) Register(lang *Language) {
	if lang == nil {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.byName[lang.Name] = lang
	for _, ext := range lang.Extensions {
		r.byExt[ext] = lang
	}
}

// ByName returns the language registered under the given name.
func (r *Registry) ByName(name string) (*Language, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	lang, ok := r.byName[name]
	return lang, ok
}

// ByExtension returns the language claiming the given extension.
// The extension must include the leading dot and be lowercase.
func (r *Registry) ByExtension(ext string) (*Language, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	lang, ok := r.byExt[ext]
	return lang, ok
}

// Names returns all registered language names.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.byName))
	for name := range r.byName {
		names = append(names, name)
	}
	return names
}

// Extensions returns all registered file extensions.
func (r *Registry) Extensions() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	exts := make([]string, 0, len(r.byExt))
	for ext := range r.byExt {
		exts = append(exts, ext)
	}
	return exts
}

// DefaultRegistry returns a registry with every supported grammar.
//
// C headers (.h) are parsed with the C++ grammar: it accepts plain C
// declarations while also handling classes and qualified names that
// appear in C++ headers with the same extension.
func DefaultRegistry() *Registry {
	r := NewRegistry()

	r.Register(&Language{
		Name:       "c",
		Grammar:    c.GetLanguage(),
		Extensions: []string{".c"},
	})
	r.Register(&Language{
		Name:       "cpp",
		Grammar:    cpp.GetLanguage(),
		Extensions: []string{".cpp", ".cc", ".cxx", ".hpp", ".hh", ".h"},
	})
	r.Register(&Language{
		Name:       "javascript",
		Grammar:    javascript.GetLanguage(),
		Extensions: []string{".js", ".jsx", ".mjs", ".cjs"},
	})
	r.Register(&Language{
		Name:       "typescript",
		Grammar:    typescript.GetLanguage(),
		Extensions: []string{".ts", ".mts", ".cts"},
	})
	r.Register(&Language{
		Name:       "tsx",
		Grammar:    tsx.GetLanguage(),
		Extensions: []string{".tsx"},
	})
	r.Register(&Language{
		Name:       "go",
		Grammar:    golang.GetLanguage(),
		Extensions: []string{".go"},
	})

	return r
}
