// Copyright (C) 2025 MoaNote (CBNU-MoaNote-CapstonDesign)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package explorer

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/CBNU-MoaNote-CapstonDesign/codebase-explorer-langgraph/services/explorer/ast"
	"github.com/CBNU-MoaNote-CapstonDesign/codebase-explorer-langgraph/services/explorer/index"
)

// waitFor polls cond until it holds or the timeout expires.
func waitFor(t *testing.T, timeout time.Duration, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func TestWatchIndex_ReloadOnReplace(t *testing.T) {
	root := writeProject(t)
	svc := newTestService(t, root)
	defer svc.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if _, err := svc.Rebuild(ctx, true); err != nil {
		t.Fatalf("Rebuild: %v", err)
	}
	if err := svc.WatchIndex(ctx); err != nil {
		t.Fatalf("WatchIndex: %v", err)
	}

	idx, err := svc.Index(ctx)
	if err != nil {
		t.Fatalf("Index: %v", err)
	}
	if len(idx.Files) != 3 {
		t.Fatalf("expected 3 files before replace, got %d", len(idx.Files))
	}

	// Grow the project and replace the index file out of band, the
	// way a concurrent `explorer index` run would.
	extra := filepath.Join(root, "src", "extra.js")
	if err := os.WriteFile(extra, []byte("function extra() {\n  return 1;\n}\n"), 0o644); err != nil {
		t.Fatalf("write extra file: %v", err)
	}
	b := index.NewBuilder(root, ast.DefaultRegistry())
	fresh, err := b.Build(ctx)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if err := index.Write(fresh, svc.cfg.IndexPath); err != nil {
		t.Fatalf("Write: %v", err)
	}

	waitFor(t, 5*time.Second, "index reload", func() bool {
		cur, err := svc.Index(ctx)
		return err == nil && len(cur.Files) == 4
	})
}

func TestWatchIndex_RemoveDropsIndex(t *testing.T) {
	root := writeProject(t)
	svc := newTestService(t, root)
	defer svc.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if _, err := svc.Rebuild(ctx, true); err != nil {
		t.Fatalf("Rebuild: %v", err)
	}
	if err := svc.WatchIndex(ctx); err != nil {
		t.Fatalf("WatchIndex: %v", err)
	}

	if err := os.Remove(svc.cfg.IndexPath); err != nil {
		t.Fatalf("remove index: %v", err)
	}

	waitFor(t, 5*time.Second, "index drop", func() bool {
		_, err := svc.Index(ctx)
		return errors.Is(err, index.ErrIndexNotBuilt)
	})
}

func TestWatchIndex_StopIsIdempotent(t *testing.T) {
	root := writeProject(t)
	svc := newTestService(t, root)

	ctx := context.Background()
	if err := svc.WatchIndex(ctx); err != nil {
		t.Fatalf("WatchIndex: %v", err)
	}
	if err := svc.WatchIndex(ctx); err != nil {
		t.Errorf("second WatchIndex: %v", err)
	}

	svc.Close()
	svc.Close()
}
