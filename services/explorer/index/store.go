// Copyright (C) 2025 MoaNote (CBNU-MoaNote-CapstonDesign)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package index

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// Write persists the index as pretty-printed JSON.
//
// The write goes through a temp file in the target directory followed
// by a rename, so a crashed build never leaves a truncated index
// behind for Load to choke on.
func Write(idx *FilteredIndex, path string) error {
	data, err := json.MarshalIndent(idx, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal index: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create index dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".index-*.json")
	if err != nil {
		return fmt.Errorf("create temp index: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write index: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close index: %w", err)
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("chmod index: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("rename index: %w", err)
	}
	return nil
}

// Load reads a previously written index. A missing file maps to
// ErrIndexNotBuilt so callers can distinguish "build one" from real
// I/O failures.
func Load(path string) (*FilteredIndex, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%s: %w", path, ErrIndexNotBuilt)
		}
		return nil, fmt.Errorf("read index: %w", err)
	}

	var idx FilteredIndex
	if err := json.Unmarshal(data, &idx); err != nil {
		return nil, fmt.Errorf("decode index %s: %w", path, err)
	}
	return &idx, nil
}

// Ensure returns the index stored at path, building and persisting a
// fresh one when the file is absent or force is set.
func Ensure(ctx context.Context, b *Builder, path string, force bool) (*FilteredIndex, error) {
	if !force {
		idx, err := Load(path)
		if err == nil {
			return idx, nil
		}
		if !errors.Is(err, ErrIndexNotBuilt) {
			return nil, err
		}
	}

	idx, err := b.Build(ctx)
	if err != nil {
		return nil, err
	}
	if err := Write(idx, path); err != nil {
		return nil, err
	}
	return idx, nil
}
