// Copyright (C) 2025 MoaNote (CBNU-MoaNote-CapstonDesign)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package index

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/CBNU-MoaNote-CapstonDesign/codebase-explorer-langgraph/services/explorer/ast"
)

// excludedDirs are directory names never worth indexing: version
// control, dependency caches, build output, editor state and snapshot
// fixtures.
var excludedDirs = map[string]struct{}{
	".git":          {},
	".hg":           {},
	".svn":          {},
	"node_modules":  {},
	"vendor":        {},
	".venv":         {},
	"venv":          {},
	"__pycache__":   {},
	"build":         {},
	"dist":          {},
	"out":           {},
	"target":        {},
	"coverage":      {},
	".next":         {},
	".cache":        {},
	".idea":         {},
	".vscode":       {},
	"__snapshots__": {},
}

// BuilderOption configures a Builder.
type BuilderOption func(*Builder)

// WithWorkers caps the number of concurrent parse workers. Values
// below one are ignored.
func WithWorkers(n int) BuilderOption {
	return func(b *Builder) {
		if n > 0 {
			b.workers = n
		}
	}
}

// Builder walks a project tree and produces the signature index.
//
// Description:
//
//	The builder walks root skipping excluded directories, parses every
//	file with a supported extension, and extracts shallow signatures
//	concurrently. Output ordering is fixed by sorting the file list
//	before fan-out, so worker scheduling never changes the result.
//
// Thread Safety: A Builder is immutable after construction and safe
// for concurrent Build calls.
type Builder struct {
	root     string
	registry *ast.Registry
	workers  int
}

// NewBuilder creates a Builder over the project root. A nil registry
// falls back to the default language set.
func NewBuilder(root string, reg *ast.Registry, opts ...BuilderOption) *Builder {
	if reg == nil {
		reg = ast.DefaultRegistry()
	}
	b := &Builder{
		root:     root,
		registry: reg,
		workers:  runtime.NumCPU(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Build walks the project and returns a fresh index.
//
// Per-file parse failures are logged at warn and the file omitted;
// only walk errors and context cancellation abort the build.
func (b *Builder) Build(ctx context.Context) (*FilteredIndex, error) {
	files, err := b.collectFiles()
	if err != nil {
		return nil, fmt.Errorf("walk %s: %w", b.root, err)
	}

	entries := make([]*FileEntry, len(files))

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(b.workers)
	for i, rel := range files {
		g.Go(func() error {
			entry, err := b.indexFile(gCtx, rel)
			if err != nil {
				if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
					return err
				}
				slog.Warn("skipping unparseable file",
					slog.String("file", rel),
					slog.String("error", err.Error()))
				return nil
			}
			entries[i] = entry
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("index build: %w", err)
	}

	idx := &FilteredIndex{
		Root:        b.root,
		Files:       make([]string, 0, len(files)),
		Index:       make([]FileEntry, 0, len(files)),
		GeneratedAt: time.Now().UTC(),
	}
	for _, entry := range entries {
		if entry == nil {
			continue
		}
		idx.Files = append(idx.Files, entry.File)
		idx.Index = append(idx.Index, *entry)
	}
	return idx, nil
}

// collectFiles returns the sorted project-relative paths of all files
// with a supported extension.
func (b *Builder) collectFiles() ([]string, error) {
	var files []string
	err := filepath.WalkDir(b.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if _, skip := excludedDirs[d.Name()]; skip && path != b.root {
				return filepath.SkipDir
			}
			return nil
		}
		if _, ok := b.registry.ByExtension(strings.ToLower(filepath.Ext(path))); !ok {
			return nil
		}
		rel, err := filepath.Rel(b.root, path)
		if err != nil {
			return err
		}
		files = append(files, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(files)
	return files, nil
}

// indexFile parses a single file and extracts its signatures.
func (b *Builder) indexFile(ctx context.Context, rel string) (*FileEntry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	lang, ok := b.registry.ByExtension(strings.ToLower(filepath.Ext(rel)))
	if !ok {
		return nil, fmt.Errorf("%s: %w", rel, ast.ErrUnsupportedExtension)
	}

	content, err := os.ReadFile(filepath.Join(b.root, filepath.FromSlash(rel)))
	if err != nil {
		return nil, err
	}
	if len(content) > ast.DefaultMaxFileSize {
		return nil, fmt.Errorf("%s: %w", rel, ast.ErrFileTooLarge)
	}

	sigs, err := Extract(ctx, lang, content)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", rel, err)
	}
	return &FileEntry{File: rel, Lang: lang.Name, AST: sigs}, nil
}
