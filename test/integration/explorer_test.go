// Copyright (C) 2025 MoaNote (CBNU-MoaNote-CapstonDesign)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Integration tests for the exploration service.
//
// These tests run the real wiring end to end: tree-sitter parses, the
// concurrent index builder, the prune engine and the stage machine,
// with only the oracle replaced by a scripted mock. Everything is
// hermetic; no external services are contacted.
package integration

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/CBNU-MoaNote-CapstonDesign/codebase-explorer-langgraph/services/explorer"
	"github.com/CBNU-MoaNote-CapstonDesign/codebase-explorer-langgraph/services/explorer/ast"
	"github.com/CBNU-MoaNote-CapstonDesign/codebase-explorer-langgraph/services/explorer/coderange"
	"github.com/CBNU-MoaNote-CapstonDesign/codebase-explorer-langgraph/services/explorer/config"
	"github.com/CBNU-MoaNote-CapstonDesign/codebase-explorer-langgraph/services/explorer/index"
	"github.com/CBNU-MoaNote-CapstonDesign/codebase-explorer-langgraph/services/explorer/oracle"
	"github.com/CBNU-MoaNote-CapstonDesign/codebase-explorer-langgraph/services/explorer/pipeline"
	"github.com/CBNU-MoaNote-CapstonDesign/codebase-explorer-langgraph/services/explorer/prune"
)

// fixtureProject writes a small multi-language project and returns its
// root. The C++ pair carries a qualified method so the signature index
// has something non-trivial to extract.
func fixtureProject(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	files := map[string]string{
		"src/account.h": `#pragma once
class Account {
public:
    int sum(int a, int b);
private:
    int balance;
};
`,
		"src/account.cpp": `#include "account.h"

int Account::sum(int a, int b) {
    balance = a + b;
    return balance;
}
`,
		"src/report.js": `function formatReport(rows) {
  return rows.join("\n");
}

const sumRows = (rows) => rows.reduce((a, b) => a + b, 0);
`,
		"README.md": "fixture project\n",
	}
	for name, content := range files {
		path := filepath.Join(root, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
	return root
}

func fixtureConfig(root string) config.Config {
	cfg := config.Default()
	cfg.Root = root
	cfg.IndexPath = filepath.Join(root, ".explorer", "index.json")
	return cfg
}

// TestServiceHTTPFlow walks the whole HTTP surface with no oracle
// configured: rebuild the index, report ready, serve the index, parse
// files, and answer a question on fallbacks alone.
func TestServiceHTTPFlow(t *testing.T) {
	gin.SetMode(gin.TestMode)
	root := fixtureProject(t)

	svc, err := explorer.NewService(fixtureConfig(root))
	require.NoError(t, err)
	defer svc.Close()

	router := gin.New()
	explorer.RegisterRoutes(router.Group("/v1"), explorer.NewHandlers(svc))

	t.Log("Question before any index exists must be retryable")
	w := postJSON(t, router, "/v1/explorer/question", `{"question":"how are sums computed?"}`)
	require.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.NotEmpty(t, w.Header().Get("Retry-After"))

	t.Log("Rebuilding the index")
	w = postJSON(t, router, "/v1/explorer/index/rebuild", `{"force":true}`)
	require.Equal(t, http.StatusOK, w.Code)
	var rebuild explorer.RebuildResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &rebuild))
	assert.True(t, rebuild.Rebuilt)
	assert.Equal(t, 3, rebuild.Files, "README.md must not be indexed")
	assert.Greater(t, rebuild.Signatures, 0)

	t.Log("Readiness reflects the fresh index")
	req, _ := http.NewRequest("GET", "/v1/explorer/ready", nil)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	var ready explorer.ReadyResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &ready))
	assert.True(t, ready.Ready)
	assert.Equal(t, "none", ready.Oracle)

	t.Log("The served index preserves qualified C++ names")
	req, _ = http.NewRequest("GET", "/v1/explorer/index", nil)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	var idx index.FilteredIndex
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &idx))
	assert.Equal(t, []string{"src/account.cpp", "src/account.h", "src/report.js"}, idx.Files)
	entry, ok := idx.Entry("src/account.cpp")
	require.True(t, ok)
	names := make([]string, 0, len(entry.AST))
	for _, sig := range entry.AST {
		names = append(names, sig.Name)
	}
	assert.Contains(t, names, "Account::sum")

	t.Log("Parsing an explicit file list")
	w = postJSON(t, router, "/v1/explorer/parse", `{"files":["src/report.js","docs/missing.md"]}`)
	require.Equal(t, http.StatusOK, w.Code)
	var parsed explorer.ParseResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &parsed))
	require.Len(t, parsed.Trees, 1)
	assert.Equal(t, "src/report.js", parsed.Trees[0].FilePath)
	require.Len(t, parsed.Errors, 1)
	assert.Equal(t, "docs/missing.md", parsed.Errors[0].File)

	t.Log("A question without an oracle completes on fallbacks")
	w = postJSON(t, router, "/v1/explorer/question", `{"question":"how are sums computed?"}`)
	require.Equal(t, http.StatusOK, w.Code)
	var result pipeline.Result
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &result))
	assert.NotEmpty(t, result.Answer)
	assert.Equal(t, "KEEP_SOME", result.ModeUsed, "fallback plan keeps fetched files")
	require.Len(t, result.Trace, 1, "no oracle means no expansion loop")
	assert.Equal(t, result.Trace[0].Requested, result.Trace[0].Parsed)
	assert.Greater(t, result.Trace[0].Prune.TokensBefore, 0)
}

// TestPipelineOracleDrivenExploration scripts the oracle through a
// full two-iteration run over real parses: the first answer asks for
// the header, the loop fetches it, and the second answer stands.
func TestPipelineOracleDrivenExploration(t *testing.T) {
	root := fixtureProject(t)
	ctx := context.Background()

	reg := ast.DefaultRegistry()
	idx, err := index.NewBuilder(root, reg).Build(ctx)
	require.NoError(t, err)

	mock := oracle.NewMockClient().
		// Iteration 0: decide, plan, ranges, answer wanting more.
		QueueContent(`{"files":["src/account.cpp"],"reason":"implementation first"}`).
		QueueContent(`{"mode":"KEEP_SOME","keep_full":["src/account.cpp"],"slice":[],"drop":[],"rationale":"small file"}`).
		QueueContent(`{"ranges":[{"file":"src/account.cpp","startLine":3,"endLine":6,"rationale":"sum body"}]}`).
		QueueContent(`{"answer":"sum adds into balance","followups":["I need to see more files: the class header"],"wantFiles":["src/account.h","src/account.cpp"]}`).
		// Iteration 1: the cpp file is filtered out as already fetched.
		QueueContent(`{"files":["src/account.h"],"reason":"header for the declaration"}`).
		QueueContent(`{"mode":"KEEP_SOME","keep_full":["src/account.cpp","src/account.h"],"slice":[],"drop":[]}`).
		QueueContent(`{"ranges":[{"file":"src/account.h","startLine":2,"endLine":7,"rationale":"class body"}]}`).
		QueueContent(`{"answer":"Account::sum stores a+b in the private balance field","followups":[]}`)

	orch, err := pipeline.New(
		pipeline.Config{MaxCodeTokens: 4000},
		pipeline.Deps{
			LoadIndex: func(context.Context) (*index.FilteredIndex, error) { return idx, nil },
			Parser:    ast.NewLoader(root, reg),
			Pruner:    prune.NewEngine(prune.DefaultConfig()),
			Loader:    &coderange.Loader{Root: root, MaxFiles: 4, MaxBytes: 32 * 1024},
			Oracle:    mock,
			Selector:  &coderange.Selector{Oracle: mock},
		},
	)
	require.NoError(t, err)

	result, err := orch.Run(ctx, "how does Account::sum work?")
	require.NoError(t, err)

	assert.Equal(t, "Account::sum stores a+b in the private balance field", result.Answer)
	assert.Empty(t, result.Followups)
	assert.Equal(t, 8, mock.CallCount(), "four oracle decisions per iteration")

	require.Len(t, result.Trace, 2)
	first, second := result.Trace[0], result.Trace[1]

	assert.Equal(t, 0, first.Iteration)
	assert.Equal(t, []string{"src/account.cpp"}, first.Parsed)
	assert.Equal(t, []string{"src/account.cpp"}, first.Prune.Kept)

	assert.Equal(t, 1, second.Iteration)
	assert.Equal(t, []string{"src/account.h"}, second.Parsed, "already-fetched files are not re-parsed")
	assert.ElementsMatch(t, []string{"src/account.cpp", "src/account.h"}, second.Prune.Kept,
		"the second prune runs over the cumulative tree set")
	assert.GreaterOrEqual(t, second.Prune.TokensBefore, first.Prune.TokensBefore)
}

func postJSON(t *testing.T, router *gin.Engine, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req, _ := http.NewRequest("POST", path, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}
