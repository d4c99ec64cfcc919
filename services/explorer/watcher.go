// Copyright (C) 2025 MoaNote (CBNU-MoaNote-CapstonDesign)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package explorer

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/CBNU-MoaNote-CapstonDesign/codebase-explorer-langgraph/services/explorer/index"
)

// watchDebounce batches rapid successive index file events into one
// reload.
const watchDebounce = 200 * time.Millisecond

// indexWatcher reloads the in-memory index when the index file is
// replaced on disk. Index writes are whole-file atomic renames, so a
// replace arrives as a single Create event on the watched directory.
type indexWatcher struct {
	svc      *Service
	path     string
	watcher  *fsnotify.Watcher
	debounce time.Duration
	done     chan struct{}
	stopOnce sync.Once
}

// WatchIndex starts watching the index file for replacement. Readers
// keep seeing the previous index until a complete new file lands; a
// removed index maps subsequent reads to index.ErrIndexNotBuilt.
// The watcher stops when ctx is canceled or the service is closed.
func (s *Service) WatchIndex(ctx context.Context) error {
	if s.watcher != nil {
		return nil
	}

	abs, err := filepath.Abs(s.cfg.IndexPath)
	if err != nil {
		return err
	}

	// The directory must exist before it can be watched, even when no
	// index has been built yet.
	dir := filepath.Dir(abs)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := fw.Add(dir); err != nil {
		fw.Close()
		return err
	}

	w := &indexWatcher{
		svc:      s,
		path:     abs,
		watcher:  fw,
		debounce: watchDebounce,
		done:     make(chan struct{}),
	}
	s.watcher = w

	go w.loop(ctx)
	slog.Info("watching index file", "path", abs)
	return nil
}

// Stop stops the watcher. Safe to call more than once.
func (w *indexWatcher) Stop() {
	w.stopOnce.Do(func() {
		close(w.done)
		w.watcher.Close()
	})
}

// loop converts file events on the index path into reloads, debounced
// so an atomic replace preceded by temp-file churn reloads once.
func (w *indexWatcher) loop(ctx context.Context) {
	timer := time.NewTimer(w.debounce)
	if !timer.Stop() {
		<-timer.C
	}
	pending := false

	for {
		select {
		case <-ctx.Done():
			w.Stop()
			return

		case <-w.done:
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != w.path {
				continue
			}
			if event.Has(fsnotify.Remove) {
				slog.Warn("index file removed", "path", w.path)
				w.svc.dropIndex()
				continue
			}
			if event.Has(fsnotify.Create) || event.Has(fsnotify.Write) || event.Has(fsnotify.Rename) {
				if pending && !timer.Stop() {
					select {
					case <-timer.C:
					default:
					}
				}
				timer.Reset(w.debounce)
				pending = true
			}

		case <-timer.C:
			if !pending {
				continue
			}
			pending = false
			w.reload()

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			slog.Warn("index watcher error", "error", err)
		}
	}
}

// reload swaps in the index now on disk. A load failure keeps the
// previous in-memory copy.
func (w *indexWatcher) reload() {
	idx, err := index.Load(w.path)
	if err != nil {
		slog.Warn("index reload failed", "path", w.path, "error", err)
		return
	}
	w.svc.setIndex(idx)
	slog.Info("index reloaded", "path", w.path, "files", len(idx.Files))
}
