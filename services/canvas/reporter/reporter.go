// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package reporter relays action outcomes back into the conversation and to
// the origin server.
//
// # Description
//
// Every normalized action, success or failure, becomes a FunctionResult
// and is (a) attached to the originating conversation turn so the user sees
// the pending → success/error transition for that call, and (b) for calls a
// server session also knows about, POSTed back as
// {toolCallId, toolName, output|errorText}.
//
// Delivery of (b) is best-effort: failure is logged and counted, never
// retried indefinitely, and never blocks or rolls back (a). The local
// result is authoritative for the user-visible outcome.
package reporter

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/AleutianAI/AleutianCanvas/services/canvas/datatypes"
	"github.com/AleutianAI/AleutianCanvas/services/canvas/observability"
)

// =============================================================================
// Conversation Sink
// =============================================================================

// ConversationSink receives per-call outcomes for the visible conversation.
// The UI layer implements this; tests use an in-memory recorder.
type ConversationSink interface {
	// ResultReady attaches the result to the turn that issued the call.
	ResultReady(toolCallId, toolName string, result datatypes.FunctionResult)
}

// LogSink records outcomes in the structured log. It stands in for the
// conversation UI in headless deployments and in the CLI.
type LogSink struct{}

func (LogSink) ResultReady(toolCallId, toolName string, result datatypes.FunctionResult) {
	if result.Success {
		slog.Info("tool call succeeded", "tool_call_id", toolCallId, "tool", toolName)
		return
	}
	slog.Warn("tool call failed", "tool_call_id", toolCallId, "tool", toolName, "error", result.Error)
}

var _ ConversationSink = LogSink{}

// =============================================================================
// Reporter
// =============================================================================

// Reporter converts outcomes into FunctionResults and relays them.
//
// # Thread Safety
//
// Safe for concurrent use; each Report issues an independent delivery.
type Reporter struct {
	client     *http.Client
	resultsURL string
	token      func() string
	sink       ConversationSink
}

// New creates a reporter.
//
// # Inputs
//
//   - client: HTTP client for the result callback. Nil uses a default.
//   - resultsURL: POST endpoint for server-originated calls. Empty
//     disables the callback entirely.
//   - token: Bearer credential provider for the callback.
//   - sink: Conversation sink. Must not be nil.
func New(client *http.Client, resultsURL string, token func() string, sink ConversationSink) *Reporter {
	if client == nil {
		client = &http.Client{}
	}
	return &Reporter{client: client, resultsURL: resultsURL, token: token, sink: sink}
}

// Report delivers one call's outcome.
//
// # Description
//
// The conversation sink is always notified first; the server callback is
// attempted only for server-originated calls and only when a results URL is
// configured. Callback failure is logged and counted but does not affect
// the return; the local result has already been recorded.
func (r *Reporter) Report(ctx context.Context, toolCallId, toolName string, result datatypes.FunctionResult, serverOriginated bool) {
	r.sink.ResultReady(toolCallId, toolName, result)

	if !serverOriginated || r.resultsURL == "" {
		return
	}
	if err := r.postBack(ctx, toolCallId, toolName, result); err != nil {
		observability.ReportFailuresTotal.Inc()
		slog.Error("result callback delivery failed",
			"tool_call_id", toolCallId,
			"tool", toolName,
			"error", err,
		)
	}
}

func (r *Reporter) postBack(ctx context.Context, toolCallId, toolName string, result datatypes.FunctionResult) error {
	output, err := result.MarshalOutput()
	if err != nil {
		return fmt.Errorf("marshal result output: %w", err)
	}

	report := datatypes.ToolResultReport{
		ToolCallId: toolCallId,
		ToolName:   toolName,
		Output:     output,
		ErrorText:  result.Error,
	}
	body, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("marshal result report: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.resultsURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build result request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if r.token != nil {
		if credential := r.token(); credential != "" {
			req.Header.Set("Authorization", "Bearer "+credential)
		}
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return fmt.Errorf("post result: %w", err)
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			slog.Error("failed to close result response body", "error", err)
		}
	}()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("result endpoint returned %d: %s", resp.StatusCode, string(raw))
	}
	return nil
}
