// Copyright (C) 2025 MoaNote (CBNU-MoaNote-CapstonDesign)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package oracle

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

func TestMockClient_Defaults(t *testing.T) {
	mock := NewMockClient()

	if mock.Name() != "mock" {
		t.Errorf("Name() = %q, want %q", mock.Name(), "mock")
	}
	if mock.Model() != "mock-model" {
		t.Errorf("Model() = %q, want %q", mock.Model(), "mock-model")
	}

	resp, err := mock.Complete(context.Background(), NewRequest("", "hello"))
	if err != nil {
		t.Fatalf("Complete returned error: %v", err)
	}
	if resp.Content != "mock response" {
		t.Errorf("default Content = %q", resp.Content)
	}
}

func TestMockClient_QueueOrder(t *testing.T) {
	mock := NewMockClient().
		QueueContent("first").
		QueueContent("second")

	for i, want := range []string{"first", "second"} {
		resp, err := mock.Complete(context.Background(), NewRequest("", "q"))
		if err != nil {
			t.Fatalf("call %d: %v", i, err)
		}
		if resp.Content != want {
			t.Errorf("call %d: Content = %q, want %q", i, resp.Content, want)
		}
		if resp.Model != "mock-model" {
			t.Errorf("call %d: queued response missing model stamp, got %q", i, resp.Model)
		}
	}

	// Queue exhausted, falls back to the default.
	resp, err := mock.Complete(context.Background(), NewRequest("", "q"))
	if err != nil {
		t.Fatalf("fallback call: %v", err)
	}
	if resp.Content != "mock response" {
		t.Errorf("after draining the queue Content = %q, want default", resp.Content)
	}
}

func TestMockClient_WithError(t *testing.T) {
	sentinel := errors.New("boom")
	mock := NewMockClient().WithError(sentinel)

	if _, err := mock.Complete(context.Background(), NewRequest("", "q")); !errors.Is(err, sentinel) {
		t.Errorf("Complete error = %v, want sentinel", err)
	}
	if mock.CallCount() != 1 {
		t.Errorf("errors must still be recorded as calls, CallCount = %d", mock.CallCount())
	}
}

func TestMockClient_WithResponseFunc(t *testing.T) {
	mock := NewMockClient().WithResponseFunc(func(request *Request) (*Response, error) {
		last := request.Messages[len(request.Messages)-1].Content
		return &Response{Content: fmt.Sprintf("echo: %s", last)}, nil
	})

	resp, err := mock.Complete(context.Background(), NewRequest("", "ping"))
	if err != nil {
		t.Fatalf("Complete returned error: %v", err)
	}
	if resp.Content != "echo: ping" {
		t.Errorf("Content = %q", resp.Content)
	}
}

func TestMockClient_RecordsCalls(t *testing.T) {
	mock := NewMockClient()

	_, _ = mock.Complete(context.Background(), NewRequest("sys", "one"))
	_, _ = mock.Complete(context.Background(), NewRequest("sys", "two"))

	if mock.CallCount() != 2 {
		t.Fatalf("CallCount = %d, want 2", mock.CallCount())
	}
	last := mock.LastRequest()
	if last == nil || last.Messages[len(last.Messages)-1].Content != "two" {
		t.Errorf("LastRequest did not capture the most recent call: %+v", last)
	}
	calls := mock.Calls()
	if len(calls) != 2 {
		t.Fatalf("Calls() returned %d entries", len(calls))
	}

	// The returned slice is a copy.
	calls[0] = nil
	if mock.Calls()[0] == nil {
		t.Error("mutating the Calls() result changed the mock's record")
	}
}

func TestMockClient_CanceledContext(t *testing.T) {
	mock := NewMockClient()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := mock.Complete(ctx, NewRequest("", "q")); err == nil {
		t.Error("expected context error")
	}
}

func TestMockClient_Verify(t *testing.T) {
	mock := NewMockClient().QueueContent("unused")

	if err := mock.Verify(); err == nil {
		t.Error("Verify should fail with unconsumed responses")
	}

	_, _ = mock.Complete(context.Background(), NewRequest("", "q"))
	if err := mock.Verify(); err != nil {
		t.Errorf("Verify after draining the queue: %v", err)
	}
}

func TestMockClient_Reset(t *testing.T) {
	mock := NewMockClient().QueueContent("stale")
	_, _ = mock.Complete(context.Background(), NewRequest("", "q"))

	mock.Reset()

	if mock.CallCount() != 0 {
		t.Errorf("CallCount after Reset = %d", mock.CallCount())
	}
	if mock.LastRequest() != nil {
		t.Error("LastRequest after Reset should be nil")
	}
	if err := mock.Verify(); err != nil {
		t.Errorf("Verify after Reset: %v", err)
	}
}
