// Copyright (C) 2025 MoaNote (CBNU-MoaNote-CapstonDesign)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package coderange

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/CBNU-MoaNote-CapstonDesign/codebase-explorer-langgraph/services/explorer/ast"
	"github.com/CBNU-MoaNote-CapstonDesign/codebase-explorer-langgraph/services/explorer/oracle"
)

func mkNode(typ string, children ...*ast.Node) *ast.Node {
	return &ast.Node{Type: typ, Children: children}
}

func saveTree() *ast.DetailedTree {
	return &ast.DetailedTree{
		FilePath: "src/save.c",
		Language: "c",
		Root: mkNode("program",
			mkNode("function_definition"),
			mkNode("function_definition"),
			mkNode("comment"),
		),
	}
}

func TestSelector_Select(t *testing.T) {
	mock := oracle.NewMockClient().QueueContent("Here are my picks:\n" +
		"```json\n" +
		`{"ranges": [{"file": "src/save.c", "startLine": 10, "endLine": 42, "rationale": "save path handling"}]}` +
		"\n```")

	selector := &Selector{Oracle: mock, MaxTokens: 300}
	got := selector.Select(context.Background(), "where is the save path built?", []*ast.DetailedTree{saveTree()})

	if len(got) != 1 {
		t.Fatalf("Select returned %d ranges, want 1", len(got))
	}
	want := CodeRange{File: "src/save.c", StartLine: 10, EndLine: 42, Rationale: "save path handling"}
	if got[0] != want {
		t.Errorf("range = %+v, want %+v", got[0], want)
	}

	request := mock.LastRequest()
	if request == nil {
		t.Fatal("no request recorded")
	}
	if request.MaxTokens != 300 {
		t.Errorf("MaxTokens = %d, not propagated", request.MaxTokens)
	}
	prompt := request.Messages[len(request.Messages)-1].Content
	for _, piece := range []string{
		"where is the save path built?",
		"file: src/save.c",
		"language: c",
		"nodes: 4",
		"function_definition(2)",
		`{"ranges":`,
	} {
		if !strings.Contains(prompt, piece) {
			t.Errorf("prompt missing %q:\n%s", piece, prompt)
		}
	}
}

func TestSelector_NilReceiverAndOracle(t *testing.T) {
	var nilSelector *Selector
	if got := nilSelector.Select(context.Background(), "q", []*ast.DetailedTree{saveTree()}); got != nil {
		t.Errorf("nil selector returned %+v", got)
	}

	selector := &Selector{}
	if got := selector.Select(context.Background(), "q", []*ast.DetailedTree{saveTree()}); got != nil {
		t.Errorf("nil oracle returned %+v", got)
	}
}

func TestSelector_NoTrees(t *testing.T) {
	mock := oracle.NewMockClient()
	selector := &Selector{Oracle: mock}

	if got := selector.Select(context.Background(), "q", nil); got != nil {
		t.Errorf("Select with no trees = %+v", got)
	}
	if mock.CallCount() != 0 {
		t.Errorf("oracle called %d times with nothing to summarize", mock.CallCount())
	}
}

func TestSelector_OracleError(t *testing.T) {
	mock := oracle.NewMockClient().WithError(errors.New("provider down"))
	selector := &Selector{Oracle: mock}

	if got := selector.Select(context.Background(), "q", []*ast.DetailedTree{saveTree()}); len(got) != 0 {
		t.Errorf("Select after oracle failure = %+v, want empty", got)
	}
}

func TestSelector_MalformedReply(t *testing.T) {
	cases := map[string]string{
		"no json":     "I cannot point at specific lines.",
		"wrong shape": `{"ranges": "src/save.c lines 1-40"}`,
	}
	for name, reply := range cases {
		t.Run(name, func(t *testing.T) {
			mock := oracle.NewMockClient().QueueContent(reply)
			selector := &Selector{Oracle: mock}

			if got := selector.Select(context.Background(), "q", []*ast.DetailedTree{saveTree()}); len(got) != 0 {
				t.Errorf("Select = %+v, want empty", got)
			}
		})
	}
}

func TestSelector_SkipsNilTrees(t *testing.T) {
	mock := oracle.NewMockClient().QueueContent(`{"ranges": []}`)
	selector := &Selector{Oracle: mock}

	got := selector.Select(context.Background(), "q", []*ast.DetailedTree{nil, saveTree()})
	if len(got) != 0 {
		t.Errorf("Select = %+v", got)
	}

	prompt := mock.LastRequest().Messages[0].Content
	if strings.Count(prompt, "file: ") != 1 {
		t.Errorf("nil tree leaked into the prompt:\n%s", prompt)
	}
}
