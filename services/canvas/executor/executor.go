// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package executor applies canonical actions to the canvas graph.
//
// # Description
//
// The executor owns the graph store passed to its constructor and is the
// single writer: every create/update/delete/connect mutation flows through
// Apply. Uniqueness, referential integrity, and remix lineage are enforced
// here and nowhere else.
//
// Apply matches the closed action sum type exhaustively and converts every
// outcome, including a panic inside a handler, into a FunctionResult.
// Nothing throws past this boundary; one bad action can never crash the
// host session.
//
// # Thread Safety
//
// Apply is safe for concurrent use. Distinct actions may be in flight
// concurrently, each progressing on its own schedule; the store serializes
// the individual mutation primitives.
package executor

import (
	"context"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/AleutianAI/AleutianCanvas/services/canvas/config"
	"github.com/AleutianAI/AleutianCanvas/services/canvas/datatypes"
	"github.com/AleutianAI/AleutianCanvas/services/canvas/graph"
	"github.com/AleutianAI/AleutianCanvas/services/canvas/observability"
	"github.com/AleutianAI/AleutianCanvas/services/canvas/runner"
)

var tracer = otel.Tracer("github.com/AleutianAI/AleutianCanvas/services/canvas/executor")

// Executor applies canonical actions to one canvas graph.
type Executor struct {
	store  *graph.Store
	cfg    *config.Config
	router *runner.Router
}

// New creates an executor owning the given store.
//
// # Inputs
//
//   - store: The graph state this executor is the single writer for.
//   - cfg: Loaded pipeline configuration.
//   - router: Kind-based runner routing. May be nil when run actions are
//     not used (snapshot-only tooling).
func New(store *graph.Store, cfg *config.Config, router *runner.Router) *Executor {
	return &Executor{store: store, cfg: cfg, router: router}
}

// Store exposes the owned graph for read-only snapshot handlers.
func (e *Executor) Store() *graph.Store {
	return e.store
}

// resolveRef maps a tool argument's node reference to an id. Tool arguments
// may carry a node label in place of an id; labels resolve to the first
// matching node in insertion order.
func (e *Executor) resolveRef(ref string) (string, error) {
	id, err := e.store.ResolveNode(ref)
	if err != nil {
		return "", fmt.Errorf("node %s does not exist on the canvas", ref)
	}
	return id, nil
}

// Apply executes one canonical action and returns its FunctionResult.
//
// # Description
//
// The switch over the action sum type is exhaustive; the default arm only
// fires if a new variant is added without a handler, and reports it rather
// than panicking. A panic inside any handler is recovered here and
// converted to a failure result.
func (e *Executor) Apply(ctx context.Context, action datatypes.Action) (result datatypes.FunctionResult) {
	ctx, span := tracer.Start(ctx, "executor.Apply")
	span.SetAttributes(attribute.String("tool", action.Tool()))
	defer span.End()

	defer func() {
		if r := recover(); r != nil {
			slog.Error("recovered panic in action handler",
				"tool", action.Tool(),
				"panic", r,
			)
			result = datatypes.Fail(fmt.Sprintf("internal error executing %s: %v", action.Tool(), r))
		}
		outcome := "success"
		if !result.Success {
			outcome = "error"
			span.SetStatus(codes.Error, result.Error)
		}
		observability.ToolCallsTotal.WithLabelValues(action.Tool(), outcome).Inc()
	}()

	switch a := action.(type) {
	case datatypes.CreateNodeAction:
		result = e.applyCreate(a)
	case datatypes.UpdateNodeAction:
		result = e.applyUpdate(a)
	case datatypes.UpdateNodesAction:
		result = e.applyUpdateMany(a)
	case datatypes.DeleteNodesAction:
		result = e.applyDelete(a)
	case datatypes.ConnectNodesAction:
		result = e.applyConnect(a)
	case datatypes.DisconnectNodesAction:
		result = e.applyDisconnect(a)
	case datatypes.DuplicateNodesAction:
		result = e.applyDuplicate(a)
	case datatypes.RunNodeAction:
		result = e.applyRun(ctx, a)
	case datatypes.RunDagAction:
		result = e.applyRunDag(ctx, a)
	case datatypes.AutoLayoutAction:
		result = e.applyLayout(a)
	default:
		result = datatypes.Fail(fmt.Sprintf("no handler for tool %s", action.Tool()))
	}
	return result
}
