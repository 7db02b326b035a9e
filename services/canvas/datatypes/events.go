// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package datatypes provides data structures for the canvas service.
//
// This file contains the tool-call event protocol types: the wire unit
// decoded from the event stream, the in-flight call state machine, and the
// universal FunctionResult envelope.
package datatypes

import "encoding/json"

// =============================================================================
// Tool Event Protocol
// =============================================================================

// ToolEventType distinguishes the two wire-level tool event shapes.
type ToolEventType string

const (
	// ToolEventCall announces a tool invocation, possibly with arguments
	// still streaming in.
	ToolEventCall ToolEventType = "tool-call"

	// ToolEventResult carries the outcome of a previously announced call.
	ToolEventResult ToolEventType = "tool-result"
)

// ToolEventMessage is one decoded unit from the event transport.
//
// # Description
//
// ToolCallId is globally unique per logical call within a session, but the
// same id may be observed multiple times due to stream replay or duplicate
// delivery. The dedup ledger collapses repeats to one effective execution.
//
// Input may be nil or an empty object while arguments are still streaming
// token-by-token; such frames are observed but not actionable. A frame is
// structurally complete when Input is a non-empty object or InputAvailable
// is set by the sender.
type ToolEventMessage struct {
	// Type is tool-call or tool-result.
	Type ToolEventType `json:"type"`

	// ToolCallId identifies the logical call.
	ToolCallId string `json:"toolCallId"`

	// ToolName names the requested tool.
	ToolName string `json:"toolName"`

	// Input holds the raw, model-supplied arguments. May be partial.
	Input map[string]any `json:"input,omitempty"`

	// InputAvailable marks the arguments as complete even when Input is
	// an empty object (tools with no parameters).
	InputAvailable bool `json:"inputAvailable,omitempty"`

	// Output carries a result payload for tool-result frames.
	Output any `json:"output,omitempty"`

	// ErrorText carries a failure reason for tool-result frames.
	ErrorText string `json:"errorText,omitempty"`
}

// InputComplete reports whether the call's arguments are structurally
// complete and the frame is actionable by the dispatcher.
func (m *ToolEventMessage) InputComplete() bool {
	if m.InputAvailable {
		return true
	}
	return len(m.Input) > 0
}

// =============================================================================
// In-Flight Call State
// =============================================================================

// CallPhase is the dedup ledger's view of one toolCallId.
type CallPhase int

const (
	// CallUnseen means the id has never been observed.
	CallUnseen CallPhase = iota

	// CallArgumentsPending means the id was observed with incomplete
	// arguments. Pending frames must not be deduped against; only a
	// structurally complete frame advances the ledger.
	CallArgumentsPending

	// CallDispatched means a complete frame was handed to the executor.
	// Every later sighting of the id is suppressed.
	CallDispatched
)

// String returns the phase name for logging.
func (p CallPhase) String() string {
	switch p {
	case CallUnseen:
		return "unseen"
	case CallArgumentsPending:
		return "arguments-pending"
	case CallDispatched:
		return "dispatched"
	default:
		return "unknown"
	}
}

// =============================================================================
// Function Result Envelope
// =============================================================================

// FunctionResult is the canonical outcome of any normalized action.
//
// # Description
//
// This is the only shape the result reporter may emit: no component returns
// a bare value or lets a panic escape past the dispatch boundary. Error
// strings are surfaced verbatim to the end user through the conversation, so
// they must be human-readable and specific, never a generic failure.
type FunctionResult struct {
	// Success indicates whether the action applied.
	Success bool `json:"success"`

	// Data carries action-specific output (e.g. data.nodeId after create).
	Data map[string]any `json:"data,omitempty"`

	// Error is the human-readable failure reason.
	Error string `json:"error,omitempty"`
}

// OK builds a success result with the given data payload.
func OK(data map[string]any) FunctionResult {
	return FunctionResult{Success: true, Data: data}
}

// Fail builds a failure result with the given reason.
func Fail(reason string) FunctionResult {
	return FunctionResult{Success: false, Error: reason}
}

// MarshalOutput renders the result's data payload for the server callback.
// Failures render as nil output; the reason travels in errorText instead.
func (r FunctionResult) MarshalOutput() (json.RawMessage, error) {
	if !r.Success {
		return nil, nil
	}
	if r.Data == nil {
		return json.RawMessage(`{}`), nil
	}
	return json.Marshal(r.Data)
}

// ToolResultReport is the body POSTed back to the origin server so its
// conversation state stays consistent with the local outcome.
type ToolResultReport struct {
	ToolCallId string          `json:"toolCallId"`
	ToolName   string          `json:"toolName"`
	Output     json.RawMessage `json:"output,omitempty"`
	ErrorText  string          `json:"errorText,omitempty"`
}
