// Copyright (C) 2025 MoaNote (CBNU-MoaNote-CapstonDesign)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package coderange

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

// ReadFileLines returns the 1-based inclusive line span [start, end]
// of the file at path. Out-of-range bounds clamp instead of failing:
// start is raised to 1, end is raised to start, and an end past the
// last line reads to end of file. A start past the last line returns
// an empty string.
func ReadFileLines(path string, start, end int) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}

	if start < 1 {
		start = 1
	}
	if end < start {
		end = start
	}

	lines := strings.Split(string(data), "\n")
	if start > len(lines) {
		return "", nil
	}
	if end > len(lines) {
		end = len(lines)
	}
	return strings.Join(lines[start-1:end], "\n"), nil
}

// Loader reads selected line ranges from disk under file and byte
// caps. Oracle-chosen ranges are suggestions, not guarantees, so every
// per-range failure downgrades to a skip.
type Loader struct {
	// Root is the directory range file paths resolve against.
	Root string

	// MaxFiles caps how many ranges are considered, in given order.
	// Zero or negative means no cap.
	MaxFiles int

	// MaxBytes caps the cumulative size of loaded code. Zero or
	// negative means no cap.
	MaxBytes int
}

// Load reads each range in order and returns the loaded slices.
// Ranges past MaxFiles are ignored, ranges whose file cannot be read
// are skipped, and the first range that would push the cumulative size
// past MaxBytes stops acceptance outright. Accepted slices are always
// whole, never truncated mid-range.
func (l *Loader) Load(ranges []CodeRange) []CodeSlice {
	candidates := ranges
	if l.MaxFiles > 0 && len(candidates) > l.MaxFiles {
		candidates = candidates[:l.MaxFiles]
	}

	slices := make([]CodeSlice, 0, len(candidates))
	total := 0
	for _, r := range candidates {
		code, err := ReadFileLines(filepath.Join(l.Root, r.File), r.StartLine, r.EndLine)
		if err != nil {
			slog.Warn("skipping unreadable code range",
				slog.String("file", r.File),
				slog.String("error", err.Error()),
			)
			continue
		}
		if l.MaxBytes > 0 && total+len(code) > l.MaxBytes {
			break
		}
		total += len(code)
		slices = append(slices, CodeSlice{CodeRange: r, Code: code})
	}
	return slices
}

// EnforceTokenBudget keeps the longest prefix of slices whose summed
// approximate token cost stays within b, at four characters per token.
// The first slice that would overflow stops acceptance, matching the
// byte cap's whole-slice rule. A budget of zero or less disables the
// cap.
func EnforceTokenBudget(slices []CodeSlice, b int) []CodeSlice {
	if b <= 0 {
		return slices
	}

	total := 0
	for i, s := range slices {
		cost := (len(s.Code) + 3) / 4
		if total+cost > b {
			return slices[:i]
		}
		total += cost
	}
	return slices
}
