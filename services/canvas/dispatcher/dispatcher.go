// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package dispatcher wires the tool-call pipeline together for one session.
//
// # Description
//
// A Session receives decoded ToolEventMessages (from the SSE subscriber or
// from the manual injection endpoint) and drives each through the dedup
// ledger, the action normalizer, the
// mutation executor, and the result reporter.
//
// Delivery is level-triggered: the same frame may be offered many times
// before its call completes, so Offer must stay cheap and idempotent. Once
// a frame's arguments are structurally complete and the ledger releases the
// id, the call is queued as a "became actionable" event and executed in its
// own goroutine: distinct calls progress concurrently, each suspending
// independently on its own I/O.
//
// A panic anywhere in a call's handling is recovered at this boundary and
// converted to FunctionResult{success:false}; one bad action never crashes
// the session.
package dispatcher

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/AleutianAI/AleutianCanvas/services/canvas/actions"
	"github.com/AleutianAI/AleutianCanvas/services/canvas/datatypes"
	"github.com/AleutianAI/AleutianCanvas/services/canvas/executor"
	"github.com/AleutianAI/AleutianCanvas/services/canvas/ledger"
	"github.com/AleutianAI/AleutianCanvas/services/canvas/observability"
	"github.com/AleutianAI/AleutianCanvas/services/canvas/reporter"
)

var tracer = otel.Tracer("github.com/AleutianAI/AleutianCanvas/services/canvas/dispatcher")

// actionableCall is one released tool call queued for execution.
type actionableCall struct {
	msg              datatypes.ToolEventMessage
	serverOriginated bool
}

// Session drives the pipeline for one canvas conversation.
//
// # Thread Safety
//
// Offer and Close are safe for concurrent use.
type Session struct {
	Id string

	ledger     *ledger.CallLedger
	normalizer *actions.Normalizer
	executor   *executor.Executor
	reporter   *reporter.Reporter

	queue  chan actionableCall
	wg     sync.WaitGroup
	closed chan struct{}
	once   sync.Once
}

// NewSession creates a session with a fresh ledger arena.
func NewSession(id string, normalizer *actions.Normalizer, exec *executor.Executor, rep *reporter.Reporter) *Session {
	return &Session{
		Id:         id,
		ledger:     ledger.New(),
		normalizer: normalizer,
		executor:   exec,
		reporter:   rep,
		queue:      make(chan actionableCall, 64),
		closed:     make(chan struct{}),
	}
}

// Start launches the dispatch loop. The loop drains the actionable queue
// and runs each call in its own goroutine until ctx ends or Close is
// called.
func (s *Session) Start(ctx context.Context) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		for {
			select {
			case call, ok := <-s.queue:
				if !ok {
					return
				}
				s.wg.Add(1)
				go func() {
					defer s.wg.Done()
					s.execute(ctx, call)
				}()
			case <-ctx.Done():
				return
			case <-s.closed:
				return
			}
		}
	}()
}

// Offer presents one decoded frame to the session.
//
// # Description
//
// tool-result frames and frames with incomplete arguments are observed but
// not executed. A complete tool-call frame is released exactly once per
// toolCallId; redelivered frames are suppressed and counted. Offer never
// blocks on execution; it only queues.
//
// # Outputs
//
//   - bool: true if the frame was released for execution by this offer.
func (s *Session) Offer(msg datatypes.ToolEventMessage, serverOriginated bool) bool {
	if msg.Type != datatypes.ToolEventCall {
		return false
	}

	complete := msg.InputComplete()
	if !s.ledger.ShouldHandle(msg.ToolCallId, complete) {
		if complete && s.ledger.Phase(msg.ToolCallId) == datatypes.CallDispatched {
			observability.DedupSuppressionsTotal.Inc()
		}
		return false
	}

	select {
	case s.queue <- actionableCall{msg: msg, serverOriginated: serverOriginated}:
		return true
	case <-s.closed:
		return false
	}
}

// execute runs one released call through normalize → apply → report.
func (s *Session) execute(ctx context.Context, call actionableCall) {
	ctx, span := tracer.Start(ctx, "dispatcher.execute")
	span.SetAttributes(
		attribute.String("session_id", s.Id),
		attribute.String("tool", call.msg.ToolName),
		attribute.String("tool_call_id", call.msg.ToolCallId),
	)
	defer span.End()

	var result datatypes.FunctionResult
	func() {
		defer func() {
			if r := recover(); r != nil {
				slog.Error("recovered panic dispatching tool call",
					"session_id", s.Id,
					"tool", call.msg.ToolName,
					"panic", r,
				)
				result = datatypes.Fail(fmt.Sprintf("internal error handling %s: %v", call.msg.ToolName, r))
			}
		}()

		action, err := s.normalizer.Normalize(call.msg.ToolName, call.msg.Input)
		if err != nil {
			result = datatypes.Fail(err.Error())
			return
		}
		result = s.executor.Apply(ctx, action)
	}()

	s.reporter.Report(ctx, call.msg.ToolCallId, call.msg.ToolName, result, call.serverOriginated)
}

// Close stops intake and waits for in-flight calls. Dispatched mutations
// are never rolled back; the ledger arena is discarded with the session.
func (s *Session) Close() {
	s.once.Do(func() {
		close(s.closed)
	})
	s.wg.Wait()
}

// LedgerSize exposes the tracked call count for the session snapshot API.
func (s *Session) LedgerSize() int {
	return s.ledger.Size()
}

// =============================================================================
// Session Manager
// =============================================================================

// Manager tracks the open sessions of one service instance.
type Manager struct {
	mu         sync.Mutex
	sessions   map[string]*Session
	normalizer *actions.Normalizer
	executor   *executor.Executor
	reporter   *reporter.Reporter
}

// NewManager creates an empty session manager over shared pipeline stages.
func NewManager(normalizer *actions.Normalizer, exec *executor.Executor, rep *reporter.Reporter) *Manager {
	return &Manager{
		sessions:   make(map[string]*Session),
		normalizer: normalizer,
		executor:   exec,
		reporter:   rep,
	}
}

// Open returns the session for the id, creating and starting it on first
// use.
func (m *Manager) Open(ctx context.Context, id string) *Session {
	m.mu.Lock()
	defer m.mu.Unlock()

	if existing, ok := m.sessions[id]; ok {
		return existing
	}
	session := NewSession(id, m.normalizer, m.executor, m.reporter)
	session.Start(ctx)
	m.sessions[id] = session
	observability.ActiveSessions.Inc()
	return session
}

// Get returns the session for the id, or nil.
func (m *Manager) Get(id string) *Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sessions[id]
}

// Close tears down one session, discarding its ledger arena wholesale.
func (m *Manager) Close(id string) {
	m.mu.Lock()
	session, ok := m.sessions[id]
	if ok {
		delete(m.sessions, id)
	}
	m.mu.Unlock()

	if ok {
		session.Close()
		observability.ActiveSessions.Dec()
		slog.Info("session closed", "session_id", id, "ledger_size", session.LedgerSize())
	}
}

// CloseAll tears down every session, for service shutdown.
func (m *Manager) CloseAll() {
	m.mu.Lock()
	ids := make([]string, 0, len(m.sessions))
	for id := range m.sessions {
		ids = append(ids, id)
	}
	m.mu.Unlock()

	for _, id := range ids {
		m.Close(id)
	}
}
