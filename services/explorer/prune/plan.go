// Copyright (C) 2025 MoaNote (CBNU-MoaNote-CapstonDesign)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package prune applies oracle-issued prune plans to detailed syntax
// trees, deciding per file whether it is kept in full, reduced to a
// slice, or dropped before anything reaches the oracle's context
// window.
package prune

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/CBNU-MoaNote-CapstonDesign/codebase-explorer-langgraph/services/explorer/ast"
)

// Mode is the closed set of plan modes. Plans arrive as JSON from the
// oracle; an unknown mode string fails ParsePlan rather than being
// coerced, so a hallucinated mode triggers the deterministic fallback.
type Mode int

const (
	// ModeDropAll discards every tree: the question is answerable
	// from the shallow index alone.
	ModeDropAll Mode = iota

	// ModeKeepSome keeps a mix of full files, slices and drops.
	ModeKeepSome

	// ModeKeepMin keeps only minimal slices.
	ModeKeepMin
)

// String returns the wire name of the mode.
func (m Mode) String() string {
	switch m {
	case ModeDropAll:
		return "DROP_ALL"
	case ModeKeepSome:
		return "KEEP_SOME"
	case ModeKeepMin:
		return "KEEP_MIN"
	default:
		return "UNKNOWN"
	}
}

// MarshalJSON encodes the mode as its wire name.
func (m Mode) MarshalJSON() ([]byte, error) {
	return json.Marshal(m.String())
}

// UnmarshalJSON decodes a mode from its wire name.
func (m *Mode) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	switch s {
	case "DROP_ALL":
		*m = ModeDropAll
	case "KEEP_SOME":
		*m = ModeKeepSome
	case "KEEP_MIN":
		*m = ModeKeepMin
	default:
		return fmt.Errorf("unknown prune mode %q", s)
	}
	return nil
}

// SliceRule names one file and how to slice it. By is a pointer so an
// absent "by" object is distinguishable from an empty one.
type SliceRule struct {
	File  string          `json:"file"`
	By    *ast.SliceHints `json:"by,omitempty"`
	Paths []string        `json:"paths,omitempty"`
}

// Plan is the oracle's pruning instruction set for one iteration.
//
// Files listed nowhere in the plan are dropped: silence means
// exclusion, so an oracle that forgets a file cannot silently bloat
// the context window.
type Plan struct {
	Mode      Mode        `json:"mode"`
	KeepFull  []string    `json:"keep_full,omitempty"`
	Slice     []SliceRule `json:"slice,omitempty"`
	Drop      []string    `json:"drop,omitempty"`
	Rationale string      `json:"rationale,omitempty"`
}

// ErrMissingMode is returned when a plan omits the mode field.
var ErrMissingMode = errors.New("prune plan missing mode")

// ParsePlan decodes an oracle reply into a Plan.
//
// The mode field is required: a plan without one is malformed, not a
// default. Callers fall back to DefaultPlan on any error here.
func ParsePlan(data []byte) (*Plan, error) {
	var probe struct {
		Mode *json.RawMessage `json:"mode"`
	}
	if err := json.Unmarshal(data, &probe); err != nil {
		return nil, fmt.Errorf("parse prune plan: %w", err)
	}
	if probe.Mode == nil {
		return nil, ErrMissingMode
	}

	var p Plan
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("parse prune plan: %w", err)
	}
	return &p, nil
}

// DefaultPlan keeps every given file in full. It is the deterministic
// fallback when the oracle's plan cannot be obtained or parsed.
func DefaultPlan(files []string) *Plan {
	return &Plan{
		Mode:      ModeKeepSome,
		KeepFull:  append([]string(nil), files...),
		Rationale: "fallback: keeping all fetched files in full",
	}
}
