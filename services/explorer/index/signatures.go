// Copyright (C) 2025 MoaNote (CBNU-MoaNote-CapstonDesign)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package index builds and persists the shallow cross-file signature
// index: one compact entry per source file listing its functions,
// methods and classes. The index seeds file selection for a question;
// full syntax trees are only loaded for the files it points at.
package index

import (
	"encoding/json"
	"fmt"
	"time"
)

// Kind discriminates the signature variants.
type Kind int

const (
	// KindFunction is a free function.
	KindFunction Kind = iota

	// KindMethod is a function attached to a class or receiver.
	KindMethod

	// KindClass is a class or struct with member methods.
	KindClass
)

// String returns the wire name of the kind.
func (k Kind) String() string {
	switch k {
	case KindFunction:
		return "function"
	case KindMethod:
		return "method"
	case KindClass:
		return "class"
	default:
		return "unknown"
	}
}

// MarshalJSON encodes the kind as its string name.
func (k Kind) MarshalJSON() ([]byte, error) {
	return json.Marshal(k.String())
}

// UnmarshalJSON decodes a kind from its string name. Unknown names
// are an error so corrupted index files fail loudly at load time.
func (k *Kind) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	switch s {
	case "function":
		*k = KindFunction
	case "method":
		*k = KindMethod
	case "class":
		*k = KindClass
	default:
		return fmt.Errorf("unknown signature kind %q", s)
	}
	return nil
}

// Where records whether a signature came from a definition or a
// forward declaration.
type Where string

const (
	WhereDefinition  Where = "definition"
	WhereDeclaration Where = "declaration"
)

// Signature is one extracted declaration.
//
// It is a tagged variant: functions and methods carry Name, Params and
// Where; classes carry Name and Methods. Params hold the verbatim
// source text of each parameter in order, and qualified names such as
// "Account::sum" are preserved exactly as written.
type Signature struct {
	Kind    Kind         `json:"kind"`
	Name    string       `json:"name"`
	Params  []string     `json:"params,omitempty"`
	Where   Where        `json:"where,omitempty"`
	Methods []*Signature `json:"methods,omitempty"`
}

// FileEntry holds the signatures extracted from a single file.
type FileEntry struct {
	File string       `json:"file"`
	Lang string       `json:"lang"`
	AST  []*Signature `json:"ast"`
}

// FilteredIndex is the project-wide signature index.
//
// Files and Index are sorted lexicographically by relative path, so
// two builds of the same tree are byte-identical apart from
// GeneratedAt.
type FilteredIndex struct {
	Root        string      `json:"root"`
	Files       []string    `json:"files"`
	Index       []FileEntry `json:"index"`
	GeneratedAt time.Time   `json:"generatedAt"`
}

// Entry returns the index entry for a relative path, if present.
func (idx *FilteredIndex) Entry(file string) (*FileEntry, bool) {
	for i := range idx.Index {
		if idx.Index[i].File == file {
			return &idx.Index[i], true
		}
	}
	return nil, false
}
