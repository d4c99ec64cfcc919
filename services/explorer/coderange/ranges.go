// Copyright (C) 2025 MoaNote (CBNU-MoaNote-CapstonDesign)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package coderange turns tree metadata into literal source line
// ranges and loads them from disk under file and byte caps.
//
// Compressed trees tell the oracle where the interesting code lives;
// this package is the step that goes back to the real file and reads
// the chosen lines verbatim, so the final answer can quote actual
// source instead of reconstructed samples.
package coderange

// CodeRange identifies a span of source lines worth reading in full.
// Lines are 1-based and inclusive on both ends.
type CodeRange struct {
	File      string `json:"file"`
	StartLine int    `json:"startLine"`
	EndLine   int    `json:"endLine"`
	Rationale string `json:"rationale,omitempty"`
}

// CodeSlice is a CodeRange with its source text loaded.
type CodeSlice struct {
	CodeRange
	Code string `json:"code"`
}
