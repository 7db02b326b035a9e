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

// mock.go contains the local simulation backend used for kinds that do not
// need the generation service, and for development without network access.

import (
	"context"
	"fmt"
	"time"

	"github.com/AleutianAI/AleutianCanvas/services/canvas/datatypes"
)

// MockRunner simulates node execution locally.
//
// The produced patch mirrors the remote backend's field names so the
// executor's media summary extraction works identically against both.
type MockRunner struct {
	// Delay is an optional artificial latency per run, for UI development.
	Delay time.Duration
}

// NewMockRunner creates a mock runner without artificial latency.
func NewMockRunner() *MockRunner {
	return &MockRunner{}
}

// Run synthesizes a plausible result for the node's kind.
func (m *MockRunner) Run(ctx context.Context, node *datatypes.Node) (map[string]any, error) {
	if m.Delay > 0 {
		select {
		case <-time.After(m.Delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	switch node.Kind {
	case datatypes.KindText:
		prompt, _ := node.Data["prompt"].(string)
		return map[string]any{
			"generatedText": fmt.Sprintf("mock text for %q", prompt),
		}, nil
	case datatypes.KindSubtitle:
		return map[string]any{
			"url": fmt.Sprintf("mock://subtitle/%s.vtt", node.Id),
		}, nil
	case datatypes.KindCharacter:
		return map[string]any{
			"url": fmt.Sprintf("mock://character/%s.png", node.Id),
		}, nil
	case datatypes.KindImage:
		return map[string]any{
			"url":     fmt.Sprintf("mock://image/%s.png", node.Id),
			"results": []any{fmt.Sprintf("mock://image/%s.png", node.Id)},
		}, nil
	default:
		return map[string]any{
			"url": fmt.Sprintf("mock://%s/%s", node.Kind, node.Id),
		}, nil
	}
}
