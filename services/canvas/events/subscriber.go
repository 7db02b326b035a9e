// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package events provides the tool-event transport for the canvas service.
//
// This file contains the SSE subscriber: the HTTP layer that connects to
// the upstream tool-event stream, feeds the decoder, and delivers messages
// through callbacks.
package events

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/AleutianAI/AleutianCanvas/services/canvas/datatypes"
)

// =============================================================================
// Errors
// =============================================================================

// ErrNoCredential is returned when no bearer credential is available at
// connection time. The transport never attempts an anonymous connection.
var ErrNoCredential = errors.New("no bearer credential available")

// ConnError is the typed connection failure surfaced on a non-2xx response
// or a missing body.
type ConnError struct {
	// StatusCode is the HTTP status, 0 when the request itself failed.
	StatusCode int

	// Reason describes the failure.
	Reason string
}

func (e *ConnError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("event stream connect failed: status %d: %s", e.StatusCode, e.Reason)
	}
	return fmt.Sprintf("event stream connect failed: %s", e.Reason)
}

// =============================================================================
// Subscriber
// =============================================================================

// TokenProvider returns the bearer credential available at attempt time.
// An empty string means no credential; the subscriber will not connect.
type TokenProvider func() string

// Callbacks receives subscription lifecycle and message notifications.
//
// OnOpen fires exactly once, after response headers are accepted and before
// the first message. OnError fires for stream read failures; it never fires
// after cancellation, including for the abort the cancellation causes.
type Callbacks struct {
	OnOpen    func()
	OnMessage func(datatypes.ToolEventMessage)
	OnError   func(error)
}

// Subscriber connects to an upstream tool-event stream.
//
// # Thread Safety
//
// Subscriber is safe for concurrent use; each Subscribe call produces an
// independent Subscription.
type Subscriber struct {
	client *http.Client
	url    string
	token  TokenProvider
}

// NewSubscriber creates a subscriber for the given events URL.
//
// # Inputs
//
//   - client: HTTP client. Nil uses a client without timeout (streams are
//     long-lived; cancellation is the stop mechanism).
//   - url: The GET endpoint serving text/event-stream.
//   - token: Bearer credential provider. Must not be nil.
func NewSubscriber(client *http.Client, url string, token TokenProvider) *Subscriber {
	if client == nil {
		client = &http.Client{}
	}
	return &Subscriber{client: client, url: url, token: token}
}

// Subscription is the cancellation handle for one open stream.
type Subscription struct {
	ctx    context.Context
	cancel context.CancelFunc

	mu       sync.Mutex
	canceled bool
	done     chan struct{}
}

// Cancel stops the underlying read and suppresses every further callback,
// including the error callback for the abort this causes. Mutations already
// dispatched are not rolled back.
func (s *Subscription) Cancel() {
	s.mu.Lock()
	s.canceled = true
	s.mu.Unlock()
	s.cancel()
}

// Done is closed when the read loop has fully stopped.
func (s *Subscription) Done() <-chan struct{} {
	return s.done
}

// suppressed reports whether callbacks must stop: either Cancel was called
// or the parent context was cancelled, which behaves identically.
func (s *Subscription) suppressed() bool {
	if s.ctx.Err() != nil {
		return true
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.canceled
}

// Subscribe opens the stream and starts delivering messages.
//
// # Description
//
// The connection attempt carries the bearer credential available at attempt
// time; with no credential available the transport does not connect at all.
// On a non-2xx response or a missing body a *ConnError is returned and no
// callback fires. On success cb.OnOpen fires once, then messages flow until
// EOF, read error, or cancellation.
//
// # Inputs
//
//   - ctx: Parent context. Its cancellation behaves like Cancel.
//   - cb: Callback set. OnMessage must not be nil.
//
// # Outputs
//
//   - *Subscription: Cancellation handle.
//   - error: ErrNoCredential, *ConnError, or a request build failure.
func (s *Subscriber) Subscribe(ctx context.Context, cb Callbacks) (*Subscription, error) {
	credential := s.token()
	if credential == "" {
		return nil, ErrNoCredential
	}

	ctx, cancel := context.WithCancel(ctx)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("build event stream request: %w", err)
	}
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Authorization", "Bearer "+credential)

	resp, err := s.client.Do(req)
	if err != nil {
		cancel()
		return nil, &ConnError{Reason: err.Error()}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		_ = resp.Body.Close()
		cancel()
		return nil, &ConnError{StatusCode: resp.StatusCode, Reason: string(body)}
	}
	if resp.Body == nil {
		cancel()
		return nil, &ConnError{StatusCode: resp.StatusCode, Reason: "response has no body"}
	}

	sub := &Subscription{ctx: ctx, cancel: cancel, done: make(chan struct{})}

	if cb.OnOpen != nil {
		cb.OnOpen()
	}

	go s.readLoop(resp.Body, sub, cb)
	return sub, nil
}

// readLoop pumps the response body through the decoder until the stream
// ends. Callback suppression is checked before every delivery so Cancel
// takes effect even mid-chunk.
func (s *Subscriber) readLoop(body io.ReadCloser, sub *Subscription, cb Callbacks) {
	defer close(sub.done)
	defer func() {
		if err := body.Close(); err != nil {
			slog.Error("failed to close event stream body", "error", err)
		}
	}()

	decoder := NewDecoder()
	buf := make([]byte, 4096)
	started := time.Now()
	delivered := 0

	for {
		n, err := body.Read(buf)
		if n > 0 {
			for _, msg := range decoder.Feed(buf[:n]) {
				if sub.suppressed() {
					return
				}
				delivered++
				cb.OnMessage(msg)
			}
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				if decoder.Pending() {
					slog.Warn("event stream ended mid-record",
						"delivered", delivered,
						"duration_ms", time.Since(started).Milliseconds(),
					)
				}
				return
			}
			if sub.suppressed() {
				return
			}
			if cb.OnError != nil {
				cb.OnError(fmt.Errorf("read event stream: %w", err))
			}
			return
		}
	}
}
