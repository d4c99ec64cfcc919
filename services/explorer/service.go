// Copyright (C) 2025 MoaNote (CBNU-MoaNote-CapstonDesign)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package explorer provides the codebase exploration HTTP service.
//
// The service exposes endpoints for:
//   - Building and serving the signature index
//   - Parsing files into detailed syntax trees
//   - Answering questions through the exploration pipeline
//   - Streaming per-stage progress over WebSocket
package explorer

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/CBNU-MoaNote-CapstonDesign/codebase-explorer-langgraph/services/explorer/ast"
	"github.com/CBNU-MoaNote-CapstonDesign/codebase-explorer-langgraph/services/explorer/coderange"
	"github.com/CBNU-MoaNote-CapstonDesign/codebase-explorer-langgraph/services/explorer/config"
	"github.com/CBNU-MoaNote-CapstonDesign/codebase-explorer-langgraph/services/explorer/index"
	"github.com/CBNU-MoaNote-CapstonDesign/codebase-explorer-langgraph/services/explorer/oracle"
	"github.com/CBNU-MoaNote-CapstonDesign/codebase-explorer-langgraph/services/explorer/pipeline"
	"github.com/CBNU-MoaNote-CapstonDesign/codebase-explorer-langgraph/services/explorer/prune"
)

const (
	// defaultTreeTTL is how long a cached tree may serve reads before
	// it is re-parsed even when the file looks unchanged.
	defaultTreeTTL = 5 * time.Minute

	// maxCachedTrees caps the tree cache; the oldest entries are
	// evicted past it.
	maxCachedTrees = 256
)

// Service is the codebase exploration service.
//
// Thread Safety:
//
//	Service is safe for concurrent use. Multiple goroutines can call
//	any combination of methods simultaneously.
type Service struct {
	cfg      config.Config
	registry *ast.Registry
	parser   *ast.Loader
	pruner   *prune.Engine
	loader   *coderange.Loader

	// oracle is nil when provider is none; the pipeline then takes
	// its deterministic fallbacks.
	oracle oracle.Client

	mu  sync.RWMutex
	idx *index.FilteredIndex

	treeMu  sync.Mutex
	trees   map[string]*cachedTree
	treeTTL time.Duration

	watcher *indexWatcher
}

// cachedTree is one entry of the parsed-tree cache. The stat fields
// pin the file state the tree was parsed from.
type cachedTree struct {
	tree     *ast.DetailedTree
	size     int64
	modTime  time.Time
	storedAt time.Time
	expires  time.Time
}

// NewService creates the exploration service from a resolved config.
// It fails only when the configured oracle cannot be constructed, for
// example when the API key environment variable is unset.
func NewService(cfg config.Config) (*Service, error) {
	client, err := newOracleClient(cfg.Oracle)
	if err != nil {
		return nil, err
	}

	reg := ast.DefaultRegistry()
	return &Service{
		cfg:      cfg,
		registry: reg,
		parser:   ast.NewLoader(cfg.Root, reg),
		pruner:   prune.NewEngine(cfg.PruneConfig()),
		loader: &coderange.Loader{
			Root:     cfg.Root,
			MaxFiles: cfg.Budget.MaxCodeFiles,
			MaxBytes: cfg.Budget.MaxCodeBytes,
		},
		oracle:  client,
		trees:   make(map[string]*cachedTree),
		treeTTL: defaultTreeTTL,
	}, nil
}

// newOracleClient builds the configured oracle client wrapped in the
// standard middleware chain: rate limiting outermost so queue time is
// not booked against the provider, call logging innermost.
func newOracleClient(cfg config.OracleConfig) (oracle.Client, error) {
	var client oracle.Client
	switch cfg.Provider {
	case "", "none":
		return nil, nil
	case "openai":
		key, err := oracle.LoadKey(cfg.APIKeyEnv)
		if err != nil {
			return nil, fmt.Errorf("oracle key: %w", err)
		}
		c, err := oracle.NewOpenAIClient(oracle.OpenAIConfig{
			Model:       cfg.Model,
			BaseURL:     cfg.BaseURL,
			Key:         key,
			Temperature: cfg.Temperature,
		})
		if err != nil {
			return nil, err
		}
		client = c
	case "ollama":
		c, err := oracle.NewOllamaClient(oracle.OllamaConfig{
			BaseURL:     cfg.BaseURL,
			Model:       cfg.Model,
			Temperature: cfg.Temperature,
		})
		if err != nil {
			return nil, err
		}
		client = c
	default:
		return nil, fmt.Errorf("unknown oracle provider %q", cfg.Provider)
	}

	var middlewares []oracle.Middleware
	if cfg.RequestsPerMinute > 0 {
		middlewares = append(middlewares, oracle.WithRateLimit(cfg.RequestsPerMinute))
	}
	middlewares = append(middlewares, oracle.WithCallLogging(oracle.CallLogConfig{}))
	return oracle.Chain(client, middlewares...), nil
}

// Index returns the current signature index, loading it from disk on
// first use. A missing index file maps to index.ErrIndexNotBuilt.
func (s *Service) Index(ctx context.Context) (*index.FilteredIndex, error) {
	s.mu.RLock()
	idx := s.idx
	s.mu.RUnlock()
	if idx != nil {
		return idx, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.idx != nil {
		return s.idx, nil
	}
	idx, err := index.Load(s.cfg.IndexPath)
	if err != nil {
		return nil, err
	}
	s.idx = idx
	return idx, nil
}

// Rebuild builds the signature index and persists it by atomic
// replace. Without force, an existing index file is reused as is.
func (s *Service) Rebuild(ctx context.Context, force bool) (*RebuildResponse, error) {
	start := time.Now()

	var idx *index.FilteredIndex
	rebuilt := true
	if !force {
		loaded, err := index.Load(s.cfg.IndexPath)
		if err == nil {
			idx = loaded
			rebuilt = false
		} else if !errors.Is(err, index.ErrIndexNotBuilt) {
			return nil, err
		}
	}

	if idx == nil {
		b := index.NewBuilder(s.cfg.Root, s.registry)
		built, err := b.Build(ctx)
		if err != nil {
			return nil, fmt.Errorf("build index: %w", err)
		}
		if err := index.Write(built, s.cfg.IndexPath); err != nil {
			return nil, err
		}
		idx = built
	}

	s.setIndex(idx)

	signatures := 0
	for i := range idx.Index {
		signatures += len(idx.Index[i].AST)
	}
	return &RebuildResponse{
		Files:      len(idx.Files),
		Signatures: signatures,
		Rebuilt:    rebuilt,
		ElapsedMs:  time.Since(start).Milliseconds(),
	}, nil
}

// Parse parses the given root-relative files into detailed trees.
// Files that cannot be parsed are reported per file; the response
// never fails as a whole.
func (s *Service) Parse(ctx context.Context, files []string) *ParseResponse {
	resp := &ParseResponse{
		Trees:  make([]*ast.DetailedTree, 0, len(files)),
		Errors: make([]ParseError, 0),
	}
	for _, rel := range files {
		if ctx.Err() != nil {
			break
		}
		tree, err := s.parseCached(ctx, rel)
		if err != nil {
			resp.Errors = append(resp.Errors, ParseError{File: rel, Error: err.Error()})
			continue
		}
		resp.Trees = append(resp.Trees, tree)
	}
	return resp
}

// Question runs the exploration pipeline for one question. The
// observer, when non-nil, receives stage events as the run progresses.
func (s *Service) Question(ctx context.Context, question string, obs pipeline.Observer) (*pipeline.Result, error) {
	orch, err := s.newPipeline(obs)
	if err != nil {
		return nil, err
	}
	return orch.Run(ctx, question)
}

// newPipeline assembles a pipeline over the service's shared parser,
// pruner and loader. Orchestrators are cheap; one is built per run so
// each run gets its own observer.
func (s *Service) newPipeline(obs pipeline.Observer) (*pipeline.Orchestrator, error) {
	deps := pipeline.Deps{
		LoadIndex: s.Index,
		Parser:    s.parser,
		Pruner:    s.pruner,
		Loader:    s.loader,
		Oracle:    s.oracle,
		Observer:  obs,
	}
	if s.oracle != nil {
		deps.Selector = &coderange.Selector{Oracle: s.oracle}
	}
	cfg := pipeline.Config{
		MaxAnswerTokens: s.cfg.Oracle.MaxAnswerTokens,
		MaxCodeTokens:   s.cfg.Budget.MaxCodeTokens,
		MaxLoops:        s.cfg.Limits.MaxLoops,
	}
	return pipeline.New(cfg, deps)
}

// IndexPresent reports whether an index is loaded or available on
// disk.
func (s *Service) IndexPresent() bool {
	s.mu.RLock()
	loaded := s.idx != nil
	s.mu.RUnlock()
	if loaded {
		return true
	}
	_, err := os.Stat(s.cfg.IndexPath)
	return err == nil
}

// OracleName names the configured oracle provider, or "none".
func (s *Service) OracleName() string {
	if s.oracle == nil {
		return "none"
	}
	return s.oracle.Name()
}

// TreeCount returns the number of cached trees.
func (s *Service) TreeCount() int {
	s.treeMu.Lock()
	defer s.treeMu.Unlock()
	return len(s.trees)
}

// Close releases background resources. Safe to call more than once.
func (s *Service) Close() {
	if s.watcher != nil {
		s.watcher.Stop()
	}
}

// parseCached returns the detailed tree for one file, serving from the
// cache when the entry is within its TTL and the file on disk has the
// same size and modification time it was parsed with.
func (s *Service) parseCached(ctx context.Context, rel string) (*ast.DetailedTree, error) {
	abs := filepath.Join(s.cfg.Root, rel)

	s.treeMu.Lock()
	if e, ok := s.trees[rel]; ok {
		if s.treeValid(e, abs) {
			tree := e.tree
			s.treeMu.Unlock()
			return tree, nil
		}
		delete(s.trees, rel)
	}
	s.treeMu.Unlock()

	tree, err := s.parser.Parse(ctx, rel)
	if err != nil {
		return nil, err
	}

	e := &cachedTree{tree: tree, storedAt: time.Now()}
	if info, err := os.Stat(abs); err == nil {
		e.size = info.Size()
		e.modTime = info.ModTime()
	}
	if s.treeTTL > 0 {
		e.expires = e.storedAt.Add(s.treeTTL)
	}

	s.treeMu.Lock()
	s.trees[rel] = e
	s.evictTreesIfNeeded()
	s.treeMu.Unlock()
	return tree, nil
}

// treeValid reports whether a cache entry may still serve reads.
func (s *Service) treeValid(e *cachedTree, abs string) bool {
	if !e.expires.IsZero() && time.Now().After(e.expires) {
		return false
	}
	info, err := os.Stat(abs)
	if err != nil {
		return false
	}
	return info.Size() == e.size && info.ModTime().Equal(e.modTime)
}

// evictTreesIfNeeded removes the oldest trees past capacity. Caller
// must hold treeMu.
func (s *Service) evictTreesIfNeeded() {
	for len(s.trees) > maxCachedTrees {
		var oldest string
		oldestAt := time.Now()
		for rel, e := range s.trees {
			if e.storedAt.Before(oldestAt) {
				oldestAt = e.storedAt
				oldest = rel
			}
		}
		if oldest == "" {
			return
		}
		delete(s.trees, oldest)
	}
}

// setIndex swaps the in-memory index.
func (s *Service) setIndex(idx *index.FilteredIndex) {
	s.mu.Lock()
	s.idx = idx
	s.mu.Unlock()
}

// dropIndex forgets the in-memory index, so the next read either
// reloads from disk or reports index.ErrIndexNotBuilt.
func (s *Service) dropIndex() {
	s.mu.Lock()
	s.idx = nil
	s.mu.Unlock()
}
