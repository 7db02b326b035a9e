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
// This file contains the streaming decoder. The decoder is an explicit type
// with Feed(bytes) semantics, independent of any particular HTTP client, so
// it can be tested with synthetic byte chunks including inputs split at
// record boundaries. The subscriber in subscriber.go layers HTTP on top.
//
// Single Responsibility:
//
//	The decoder ONLY decodes. It performs no I/O and holds no connection
//	state; it buffers partial records between Feed calls and emits parsed
//	messages in arrival order.
package events

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"

	"github.com/AleutianAI/AleutianCanvas/services/canvas/datatypes"
)

// =============================================================================
// Streaming Decoder
// =============================================================================

// Decoder incrementally decodes a text/event-stream byte sequence into
// ToolEventMessage values.
//
// # Description
//
// The wire format frames records with a blank line; each record is made of
// one or more "data:" lines. The decoder tolerates:
//
//   - records split anywhere across Feed chunks (buffered until the
//     terminating blank line arrives)
//   - CRLF or LF line endings, including a CR/LF pair split across chunks
//   - multiple data: lines per record, joined with a newline before the
//     JSON parse
//   - comment lines (leading ":"), which are skipped
//   - malformed JSON, which is logged and dropped without aborting the
//     stream
//
// # Thread Safety
//
// Decoder is NOT safe for concurrent use. Each stream owns one decoder.
type Decoder struct {
	buf       bytes.Buffer
	dataLines []string
}

// NewDecoder creates a decoder with empty buffer state.
func NewDecoder() *Decoder {
	return &Decoder{}
}

// Feed appends a chunk and returns every message completed by it.
//
// # Inputs
//
//   - chunk: The next bytes read from the stream. May be empty, may end
//     mid-line or mid-record.
//
// # Outputs
//
//   - []datatypes.ToolEventMessage: Zero or more decoded messages, in
//     arrival order.
func (d *Decoder) Feed(chunk []byte) []datatypes.ToolEventMessage {
	d.buf.Write(chunk)

	var out []datatypes.ToolEventMessage
	for {
		line, ok := d.nextLine()
		if !ok {
			return out
		}

		if line == "" {
			// Blank line terminates the record.
			if msg := d.flushRecord(); msg != nil {
				out = append(out, *msg)
			}
			continue
		}
		if strings.HasPrefix(line, ":") {
			continue
		}
		if value, ok := strings.CutPrefix(line, "data:"); ok {
			d.dataLines = append(d.dataLines, strings.TrimPrefix(value, " "))
		}
		// Other SSE fields (event:, id:, retry:) carry nothing the tool
		// protocol uses and are skipped.
	}
}

// nextLine extracts one newline-terminated line from the buffer, stripping
// the trailing CR if present. A trailing partial line stays buffered for
// the next Feed call.
func (d *Decoder) nextLine() (string, bool) {
	raw := d.buf.Bytes()
	idx := bytes.IndexByte(raw, '\n')
	if idx < 0 {
		return "", false
	}
	line := string(raw[:idx])
	d.buf.Next(idx + 1)
	return strings.TrimSuffix(line, "\r"), true
}

// flushRecord joins the accumulated data lines and parses the JSON payload.
// An unparsable record is logged and dropped; the stream continues.
func (d *Decoder) flushRecord() *datatypes.ToolEventMessage {
	if len(d.dataLines) == 0 {
		return nil
	}
	payload := strings.Join(d.dataLines, "\n")
	d.dataLines = nil

	var msg datatypes.ToolEventMessage
	if err := json.Unmarshal([]byte(payload), &msg); err != nil {
		slog.Warn("dropping malformed tool event record",
			"error", err,
			"payload_bytes", len(payload),
		)
		return nil
	}
	return &msg
}

// Pending reports whether the decoder is holding an unterminated record.
// Used by the subscriber to log truncated streams at disconnect.
func (d *Decoder) Pending() bool {
	return d.buf.Len() > 0 || len(d.dataLines) > 0
}
