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
	"testing"
)

// tagClient prefixes its tag onto the inner provider name, making
// wrapping order observable.
type tagClient struct {
	Client
	tag string
}

func (c *tagClient) Name() string {
	return c.tag + "." + c.Client.Name()
}

func tagged(tag string) Middleware {
	return func(next Client) Client {
		return &tagClient{Client: next, tag: tag}
	}
}

func TestChain_FirstListedIsOutermost(t *testing.T) {
	mock := NewMockClient()

	got := Chain(mock, tagged("outer"), tagged("inner"))

	if name := got.Name(); name != "outer.inner.mock" {
		t.Errorf("Chain order wrong: Name() = %q, want %q", name, "outer.inner.mock")
	}
}

func TestChain_Empty(t *testing.T) {
	mock := NewMockClient()

	if got := Chain(mock); got != Client(mock) {
		t.Errorf("Chain with no middlewares should return the client unchanged")
	}
}

func TestWithCallLogging_PassThrough(t *testing.T) {
	mock := NewMockClient()
	mock.QueueContent("the answer")

	wrapped := WithCallLogging(CallLogConfig{})(mock)

	resp, err := wrapped.Complete(context.Background(), NewRequest("sys", "question"))
	if err != nil {
		t.Fatalf("Complete returned error: %v", err)
	}
	if resp.Content != "the answer" {
		t.Errorf("Content = %q, want %q", resp.Content, "the answer")
	}
	if mock.CallCount() != 1 {
		t.Errorf("inner client called %d times, want 1", mock.CallCount())
	}
	if wrapped.Name() != "mock" || wrapped.Model() != "mock-model" {
		t.Errorf("logging decorator must delegate Name/Model, got %q/%q", wrapped.Name(), wrapped.Model())
	}
}

func TestWithCallLogging_ErrorPassThrough(t *testing.T) {
	sentinel := errors.New("provider down")
	mock := NewMockClient().WithError(sentinel)

	wrapped := WithCallLogging(CallLogConfig{RedactPrompts: true})(mock)

	_, err := wrapped.Complete(context.Background(), NewRequest("sys", "question"))
	if !errors.Is(err, sentinel) {
		t.Errorf("error not passed through: got %v", err)
	}
}

func TestWithCallLogging_Preview(t *testing.T) {
	c := &loggingClient{cfg: CallLogConfig{MaxPromptChars: 5}}

	if got := c.preview(NewRequest("", "123456789")); got != "12345..." {
		t.Errorf("preview = %q, want truncation at 5 chars", got)
	}
	if got := c.preview(NewRequest("", "abc")); got != "abc" {
		t.Errorf("preview = %q, want untruncated content", got)
	}
	if got := c.preview(nil); got != "" {
		t.Errorf("preview(nil) = %q, want empty", got)
	}

	c.cfg.RedactPrompts = true
	if got := c.preview(NewRequest("", "secret question")); got != "[redacted]" {
		t.Errorf("redacted preview = %q", got)
	}
}

func TestWithRateLimit_Disabled(t *testing.T) {
	mock := NewMockClient()

	if got := WithRateLimit(0)(mock); got != Client(mock) {
		t.Errorf("WithRateLimit(0) should return the client unchanged")
	}
	if got := WithRateLimit(-5)(mock); got != Client(mock) {
		t.Errorf("WithRateLimit(-5) should return the client unchanged")
	}
}

func TestWithRateLimit_FirstCallImmediate(t *testing.T) {
	mock := NewMockClient()
	mock.QueueContent("ok")

	wrapped := WithRateLimit(60)(mock)

	resp, err := wrapped.Complete(context.Background(), NewRequest("", "q"))
	if err != nil {
		t.Fatalf("first call should pass the burst allowance: %v", err)
	}
	if resp.Content != "ok" {
		t.Errorf("Content = %q, want %q", resp.Content, "ok")
	}
}

func TestWithRateLimit_CanceledContext(t *testing.T) {
	mock := NewMockClient()
	wrapped := WithRateLimit(1)(mock)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := wrapped.Complete(ctx, NewRequest("", "q")); err == nil {
		t.Error("expected error from canceled context")
	}
	if mock.CallCount() != 0 {
		t.Errorf("inner client reached despite canceled context: %d calls", mock.CallCount())
	}
}
