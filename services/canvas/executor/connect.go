// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package executor

// connect.go contains edge wiring and node duplication.

import (
	"errors"
	"fmt"

	"github.com/AleutianAI/AleutianCanvas/services/canvas/datatypes"
	"github.com/AleutianAI/AleutianCanvas/services/canvas/graph"
)

func (e *Executor) applyConnect(a datatypes.ConnectNodesAction) datatypes.FunctionResult {
	// Endpoint references may be node labels; resolve before wiring.
	source, err := e.resolveRef(a.SourceNodeId)
	if err != nil {
		return datatypes.Fail(fmt.Sprintf("cannot connect: %v", err))
	}
	target, err := e.resolveRef(a.TargetNodeId)
	if err != nil {
		return datatypes.Fail(fmt.Sprintf("cannot connect: %v", err))
	}

	edgeId, err := e.store.AddEdge(&datatypes.Edge{
		Source:       source,
		Target:       target,
		SourceHandle: a.SourceHandle,
		TargetHandle: a.TargetHandle,
	})
	if err != nil {
		// Connecting an already-connected pair is an explicit error, not a
		// silent success. Keeping the failure visible lets the model learn
		// the edge exists instead of assuming it created a second one.
		if errors.Is(err, graph.ErrDuplicateEdge) {
			return datatypes.Fail(fmt.Sprintf("nodes %s and %s are already connected", a.SourceNodeId, a.TargetNodeId))
		}
		if errors.Is(err, graph.ErrNodeNotFound) {
			return datatypes.Fail(fmt.Sprintf("cannot connect: %v", err))
		}
		return datatypes.Fail(fmt.Sprintf("could not connect nodes: %v", err))
	}
	return datatypes.OK(map[string]any{"edgeId": edgeId})
}

func (e *Executor) applyDisconnect(a datatypes.DisconnectNodesAction) datatypes.FunctionResult {
	source, target := a.SourceNodeId, a.TargetNodeId
	if a.EdgeId == "" {
		// Best-effort label resolution; an unresolvable reference falls
		// through to the edge lookup, which reports the missing edge.
		if id, err := e.resolveRef(source); err == nil {
			source = id
		}
		if id, err := e.resolveRef(target); err == nil {
			target = id
		}
	}
	err := e.store.RemoveEdge(a.EdgeId, source, target)
	if err != nil {
		if errors.Is(err, graph.ErrEdgeNotFound) {
			return datatypes.Fail(fmt.Sprintf("no matching edge found: %v", err))
		}
		return datatypes.Fail(fmt.Sprintf("could not disconnect: %v", err))
	}
	return datatypes.OK(nil)
}

func (e *Executor) applyDuplicate(a datatypes.DuplicateNodesAction) datatypes.FunctionResult {
	if len(a.NodeIds) == 0 {
		return datatypes.Fail("duplicateNodes requires at least one target node id")
	}

	cloneIds := make([]string, 0, len(a.NodeIds))
	var failures []string
	for i, ref := range a.NodeIds {
		nodeId, err := e.resolveRef(ref)
		if err != nil {
			failures = append(failures, err.Error())
			continue
		}
		source, err := e.store.GetNode(nodeId)
		if err != nil {
			failures = append(failures, fmt.Sprintf("node %s does not exist on the canvas", ref))
			continue
		}

		clone := source.Clone()
		clone.Id = ""
		clone.Status = datatypes.StatusIdle
		// Offset grows with the clone index so clones never exactly
		// overlap their source or each other.
		offset := e.cfg.Layout.CloneOffset * float64(i+1)
		clone.Position = datatypes.Position{
			X: source.Position.X + offset,
			Y: source.Position.Y + offset,
		}

		cloneId, err := e.store.AddNode(clone)
		if err != nil {
			failures = append(failures, fmt.Sprintf("could not duplicate %s: %v", ref, err))
			continue
		}
		cloneIds = append(cloneIds, cloneId)
	}

	data := map[string]any{
		"nodeIds":   cloneIds,
		"processed": len(cloneIds),
		"requested": len(a.NodeIds),
	}
	if len(failures) > 0 {
		data["failures"] = failures
	}
	if len(cloneIds) == 0 {
		return datatypes.FunctionResult{
			Success: false,
			Data:    data,
			Error:   fmt.Sprintf("no nodes duplicated: %s", failures[0]),
		}
	}
	return datatypes.OK(data)
}
