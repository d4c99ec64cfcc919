// Copyright (C) 2025 MoaNote (CBNU-MoaNote-CapstonDesign)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package oracle

import (
	"context"
	"fmt"
	"sync"
)

// MockClient is a scripted oracle for tests.
//
// Thread Safety:
//
//	MockClient is safe for concurrent use.
type MockClient struct {
	mu sync.RWMutex

	name  string
	model string

	// responses are consumed in order; the default response covers
	// calls past the end of the queue.
	responses       []*Response
	defaultResponse *Response

	// responseFunc, when set, overrides the queue entirely.
	responseFunc func(*Request) (*Response, error)

	errorToReturn error

	calls []*Request
}

// NewMockClient creates a mock oracle with a bland default response.
func NewMockClient() *MockClient {
	return &MockClient{
		name:  "mock",
		model: "mock-model",
		defaultResponse: &Response{
			Content:    "mock response",
			StopReason: "end",
		},
	}
}

// WithModel sets the reported model name.
func (c *MockClient) WithModel(model string) *MockClient {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.model = model
	return c
}

// WithError makes every Complete call fail with err.
func (c *MockClient) WithError(err error) *MockClient {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.errorToReturn = err
	return c
}

// WithResponseFunc generates responses dynamically from the request.
func (c *MockClient) WithResponseFunc(f func(*Request) (*Response, error)) *MockClient {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.responseFunc = f
	return c
}

// QueueResponse appends a response to the reply queue.
func (c *MockClient) QueueResponse(response *Response) *MockClient {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.responses = append(c.responses, response)
	return c
}

// QueueContent appends a plain-text reply to the queue.
func (c *MockClient) QueueContent(content string) *MockClient {
	return c.QueueResponse(&Response{
		Content:      content,
		StopReason:   "end",
		OutputTokens: len(content) / 4,
	})
}

// Complete implements Client.
func (c *MockClient) Complete(ctx context.Context, request *Request) (*Response, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.calls = append(c.calls, request)

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if c.errorToReturn != nil {
		return nil, c.errorToReturn
	}
	if c.responseFunc != nil {
		return c.responseFunc(request)
	}
	if len(c.responses) > 0 {
		response := c.responses[0]
		c.responses = c.responses[1:]
		response.Model = c.model
		return response, nil
	}

	response := *c.defaultResponse
	response.Model = c.model
	return &response, nil
}

// Name implements Client.
func (c *MockClient) Name() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.name
}

// Model implements Client.
func (c *MockClient) Model() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.model
}

// CallCount returns how many Complete calls were made.
func (c *MockClient) CallCount() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.calls)
}

// Calls returns a copy of all recorded requests.
func (c *MockClient) Calls() []*Request {
	c.mu.RLock()
	defer c.mu.RUnlock()
	calls := make([]*Request, len(c.calls))
	copy(calls, c.calls)
	return calls
}

// LastRequest returns the most recent request, or nil.
func (c *MockClient) LastRequest() *Request {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if len(c.calls) == 0 {
		return nil
	}
	return c.calls[len(c.calls)-1]
}

// Verify returns an error if queued responses were not all consumed.
func (c *MockClient) Verify() error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if len(c.responses) > 0 {
		return fmt.Errorf("mock: %d queued responses not consumed", len(c.responses))
	}
	return nil
}

// Reset clears queued responses, recorded calls and error state.
func (c *MockClient) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.responses = nil
	c.calls = nil
	c.errorToReturn = nil
	c.responseFunc = nil
}

var _ Client = (*MockClient)(nil)
