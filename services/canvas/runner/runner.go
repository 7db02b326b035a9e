// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package runner provides node execution backends for the canvas service.
//
// # Description
//
// Node kind determines whether execution is delegated to a remote runner
// (network-backed generation) or a mock runner (local simulation). The
// routing table is a closed set membership test on kind held in config, not
// a heuristic. Runners are opaque collaborators behind a narrow interface:
// they receive a node snapshot and return a data patch; they never mutate
// the graph themselves.
package runner

import (
	"context"

	"github.com/AleutianAI/AleutianCanvas/services/canvas/config"
	"github.com/AleutianAI/AleutianCanvas/services/canvas/datatypes"
)

// NodeRunner executes one node and returns the data fields the run
// produced (result URLs, generated text, job metadata).
//
// # Description
//
// Run blocks until the execution finishes or ctx is cancelled. There is no
// built-in timeout: a hung backend hangs the corresponding action's
// completion but does not block other in-flight actions.
//
// Implementations must be safe for concurrent use.
type NodeRunner interface {
	Run(ctx context.Context, node *datatypes.Node) (map[string]any, error)
}

// Router selects the runner for a node kind.
type Router struct {
	cfg    *config.Config
	remote NodeRunner
	mock   NodeRunner
}

// NewRouter creates a router over the two backends. Either backend may be
// shared across routers.
func NewRouter(cfg *config.Config, remote, mock NodeRunner) *Router {
	return &Router{cfg: cfg, remote: remote, mock: mock}
}

// For returns the runner responsible for the kind. Remote kinds fall back
// to the mock backend when no generation service is configured.
func (r *Router) For(kind datatypes.NodeKind) NodeRunner {
	if r.cfg.RemoteKind(kind) && r.remote != nil {
		return r.remote
	}
	return r.mock
}
