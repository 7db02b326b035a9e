// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package runner

// remote.go contains the network-backed generation runner. The generation
// service itself is an opaque collaborator; this client only submits a node
// snapshot and decodes the returned data patch.

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/AleutianAI/AleutianCanvas/services/canvas/datatypes"
)

// RemoteRunner submits generation jobs to the media backend.
//
// # Thread Safety
//
// Safe for concurrent use; each Run issues an independent request.
type RemoteRunner struct {
	client *http.Client
	url    string
	token  func() string
}

// NewRemoteRunner creates a runner posting to the given generation URL.
// token provides the bearer credential at request time.
func NewRemoteRunner(client *http.Client, url string, token func() string) *RemoteRunner {
	if client == nil {
		client = &http.Client{}
	}
	return &RemoteRunner{client: client, url: url, token: token}
}

type generateRequest struct {
	NodeId string             `json:"nodeId"`
	Kind   datatypes.NodeKind `json:"kind"`
	Data   map[string]any     `json:"data"`
}

type generateResponse struct {
	Output map[string]any `json:"output"`
	Error  string         `json:"error,omitempty"`
}

// Run submits the node and returns the backend's data patch.
//
// No timeout is applied here: cancellation of ctx is the only stop. A hung
// generation hangs this action alone.
func (r *RemoteRunner) Run(ctx context.Context, node *datatypes.Node) (map[string]any, error) {
	started := time.Now()

	body, err := json.Marshal(generateRequest{
		NodeId: node.Id,
		Kind:   node.Kind,
		Data:   node.Data,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal generation request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build generation request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if r.token != nil {
		if credential := r.token(); credential != "" {
			req.Header.Set("Authorization", "Bearer "+credential)
		}
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("generation request: %w", err)
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			slog.Error("failed to close generation response body", "error", err)
		}
	}()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return nil, fmt.Errorf("generation backend returned %d: %s", resp.StatusCode, string(raw))
	}

	var decoded generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("decode generation response: %w", err)
	}
	if decoded.Error != "" {
		return nil, fmt.Errorf("generation failed: %s", decoded.Error)
	}

	slog.Debug("remote generation finished",
		"node_id", node.Id,
		"kind", node.Kind,
		"duration_ms", time.Since(started).Milliseconds(),
	)
	return decoded.Output, nil
}
