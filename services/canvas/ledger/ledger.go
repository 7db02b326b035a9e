// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package ledger provides at-most-once gating for tool-call ids.
//
// # Description
//
// The event layer redelivers frames: stream replay, retry, and a server
// session feeding the same conversation as the local stream can all present
// one logical call more than once. The ledger is the sole correctness
// mechanism preventing a node from being created twice or a video job from
// being triggered twice. It tracks three phases per call id:
//
//   - unseen: never observed
//   - arguments-pending: observed while arguments were still streaming;
//     such frames are NOT marked seen and must not be deduped against
//   - dispatched: a structurally complete frame was released for execution;
//     all later sightings are suppressed
//
// Entries are insert-only for the lifetime of a session and the whole
// arena is discarded at session teardown. The ledger is deliberately not a
// bounded cache: a session's in-flight call population is small and the
// arena dies with the session.
//
// # Thread Safety
//
// All methods are safe for concurrent use.
package ledger

import (
	"log/slog"
	"sync"

	"github.com/AleutianAI/AleutianCanvas/services/canvas/datatypes"
)

// CallLedger gates tool-call execution per session.
type CallLedger struct {
	mu     sync.Mutex
	phases map[string]datatypes.CallPhase
}

// New creates an empty session-scoped ledger.
func New() *CallLedger {
	return &CallLedger{
		phases: make(map[string]datatypes.CallPhase),
	}
}

// ShouldHandle reports whether a frame for the call id may execute, and
// advances the ledger when it may.
//
// # Description
//
// The level-triggered discovery loop may present the same frame many times
// before the call completes, so this check must be cheap and idempotent.
// Only a structurally complete frame (inputComplete true) moves the id to
// dispatched; an incomplete frame records arguments-pending and returns
// false without consuming the id, so the eventual complete frame still
// executes exactly once.
//
// # Inputs
//
//   - toolCallId: The logical call id. Empty ids are rejected.
//   - inputComplete: Whether the frame's arguments are structurally
//     complete (non-empty object or explicit input-available marker).
//
// # Outputs
//
//   - bool: true exactly once per id, on its first complete frame.
func (l *CallLedger) ShouldHandle(toolCallId string, inputComplete bool) bool {
	if toolCallId == "" {
		return false
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	phase := l.phases[toolCallId]
	if phase == datatypes.CallDispatched {
		slog.Debug("suppressing redelivered tool call",
			"tool_call_id", toolCallId,
			"phase", phase.String(),
		)
		return false
	}

	if !inputComplete {
		l.phases[toolCallId] = datatypes.CallArgumentsPending
		return false
	}

	l.phases[toolCallId] = datatypes.CallDispatched
	return true
}

// Phase returns the ledger's current view of the call id.
func (l *CallLedger) Phase(toolCallId string) datatypes.CallPhase {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.phases[toolCallId]
}

// Size returns the number of tracked call ids.
func (l *CallLedger) Size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.phases)
}
