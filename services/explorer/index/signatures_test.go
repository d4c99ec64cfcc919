// Copyright (C) 2025 MoaNote (CBNU-MoaNote-CapstonDesign)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package index

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestKind_JSON(t *testing.T) {
	tests := []struct {
		kind Kind
		want string
	}{
		{KindFunction, `"function"`},
		{KindMethod, `"method"`},
		{KindClass, `"class"`},
	}
	for _, tc := range tests {
		data, err := json.Marshal(tc.kind)
		if err != nil {
			t.Fatalf("Marshal(%v) error: %v", tc.kind, err)
		}
		if string(data) != tc.want {
			t.Errorf("Marshal(%v) = %s, want %s", tc.kind, data, tc.want)
		}

		var back Kind
		if err := json.Unmarshal(data, &back); err != nil {
			t.Fatalf("Unmarshal(%s) error: %v", data, err)
		}
		if back != tc.kind {
			t.Errorf("roundtrip = %v, want %v", back, tc.kind)
		}
	}
}

func TestKind_UnmarshalUnknown(t *testing.T) {
	var k Kind
	err := json.Unmarshal([]byte(`"macro"`), &k)
	if err == nil {
		t.Fatal("expected error for unknown kind")
	}
	if !strings.Contains(err.Error(), "macro") {
		t.Errorf("error %q does not name the bad kind", err)
	}
}

func TestSignature_ClassJSON(t *testing.T) {
	cls := &Signature{
		Kind: KindClass,
		Name: "Account",
		Methods: []*Signature{
			{Kind: KindMethod, Name: "sum", Params: []string{"int a", "int b"}, Where: WhereDeclaration},
		},
	}
	data, err := json.Marshal(cls)
	if err != nil {
		t.Fatal(err)
	}

	s := string(data)
	for _, want := range []string{`"kind":"class"`, `"name":"Account"`, `"kind":"method"`, `"where":"declaration"`} {
		if !strings.Contains(s, want) {
			t.Errorf("JSON %s missing %s", s, want)
		}
	}
	// Classes carry no params or where of their own.
	if strings.Contains(s, `"name":"Account","params"`) {
		t.Errorf("class JSON unexpectedly has params: %s", s)
	}
}

func TestFilteredIndex_Entry(t *testing.T) {
	idx := &FilteredIndex{
		Index: []FileEntry{
			{File: "a.ts", Lang: "typescript"},
			{File: "b.ts", Lang: "typescript"},
		},
	}
	if e, ok := idx.Entry("b.ts"); !ok || e.File != "b.ts" {
		t.Errorf("Entry(b.ts) = %v, %v", e, ok)
	}
	if _, ok := idx.Entry("missing.ts"); ok {
		t.Error("Entry(missing) = ok, want miss")
	}
}
