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

// create.go contains node creation: idempotence-by-identity, the storyboard
// short-circuit, remix validation and lineage stamping, deterministic grid
// placement, and the automatic remix edge.

import (
	"fmt"
	"log/slog"

	"github.com/AleutianAI/AleutianCanvas/services/canvas/datatypes"
)

func (e *Executor) applyCreate(a datatypes.CreateNodeAction) datatypes.FunctionResult {
	// The model re-issues equivalent creates after partial failures or
	// ambiguous retries. An existing node with the same explicit label (or
	// id) and kind satisfies the request; return it instead of duplicating.
	if a.LabelExplicit {
		if existing := e.store.FindByLabelAndKind(a.Label, a.Kind); existing != nil {
			slog.Debug("create satisfied by existing node",
				"node_id", existing.Id,
				"label", a.Label,
				"kind", a.Kind,
			)
			return datatypes.OK(map[string]any{
				"nodeId":   existing.Id,
				"existing": true,
			})
		}
	}

	// Storyboards only exist inside a composition; standalone creation is
	// redirected even though the kind passes the allowed-type gate.
	if a.Kind == datatypes.KindStoryboard {
		return datatypes.Fail("standalone storyboard nodes are not supported; create a composeVideo node and add storyboard shots to it")
	}

	var remixSource *datatypes.Node
	if a.RemixSourceId != "" {
		source, failure := e.validateRemixSource(a.RemixSourceId)
		if failure != nil {
			return *failure
		}
		remixSource = source
	}

	node := &datatypes.Node{
		Kind:   a.Kind,
		Label:  a.Label,
		Data:   a.Data,
		Status: datatypes.StatusIdle,
	}
	if node.Data == nil {
		node.Data = map[string]any{}
	}

	if remixSource != nil {
		// Inherit the source prompt only when the new node has none of its
		// own, and stamp lineage for display.
		if prompt, _ := node.Data["prompt"].(string); prompt == "" {
			if sourcePrompt, _ := remixSource.Data["prompt"].(string); sourcePrompt != "" {
				node.Data["prompt"] = sourcePrompt
			}
		}
		node.Data["remixSourceId"] = remixSource.Id
		node.Data["remixSourceLabel"] = remixSource.Label
	}

	if a.Position != nil {
		node.Position = *a.Position
	} else {
		node.Position = e.cfg.GridPosition(e.store.NodeCount())
	}

	// For explicit labels the lookup and insert must happen in one locked
	// step: two concurrent creates with the same (label, kind) identity
	// would otherwise both miss the check above and insert twice.
	var nodeId string
	if a.LabelExplicit {
		id, existing, err := e.store.FindOrAddNode(a.Label, a.Kind, node)
		if err != nil {
			return datatypes.Fail(fmt.Sprintf("could not add node: %v", err))
		}
		if existing {
			return datatypes.OK(map[string]any{
				"nodeId":   id,
				"existing": true,
			})
		}
		nodeId = id
	} else {
		id, err := e.store.AddNode(node)
		if err != nil {
			return datatypes.Fail(fmt.Sprintf("could not add node: %v", err))
		}
		nodeId = id
	}

	// A remix link also wires a visible edge from the source, on the fixed
	// remix handle. This is automatic, not a separately requested connect.
	if remixSource != nil {
		if _, err := e.store.AddEdge(&datatypes.Edge{
			Source:       remixSource.Id,
			Target:       nodeId,
			SourceHandle: datatypes.RemixEdgeHandle,
		}); err != nil {
			slog.Warn("remix edge not created", "error", err, "node_id", nodeId)
		}
	}

	slog.Info("node created",
		"node_id", nodeId,
		"kind", node.Kind,
		"label", node.Label,
		"remix", remixSource != nil,
	)
	return datatypes.OK(map[string]any{"nodeId": nodeId})
}

// validateRemixSource enforces the remix gate: the referenced node must
// exist, its kind must be video-like, and its status must be exactly
// success. Each violated condition produces a distinct message because the
// text reaches the end user verbatim.
func (e *Executor) validateRemixSource(remixRef string) (*datatypes.Node, *datatypes.FunctionResult) {
	remixId, err := e.store.ResolveNode(remixRef)
	if err != nil {
		failure := datatypes.Fail(fmt.Sprintf("remix source %s does not exist on the canvas", remixRef))
		return nil, &failure
	}
	source, err := e.store.GetNode(remixId)
	if err != nil {
		failure := datatypes.Fail(fmt.Sprintf("remix source %s does not exist on the canvas", remixRef))
		return nil, &failure
	}
	if !datatypes.VideoLikeKinds[source.Kind] {
		failure := datatypes.Fail(fmt.Sprintf("remix requires a video or storyboard source; node %s is %s", remixRef, source.Kind))
		return nil, &failure
	}
	if source.Status != datatypes.StatusSuccess {
		failure := datatypes.Fail(fmt.Sprintf("remix source %s has not completed successfully yet (status: %s)", remixRef, source.Status))
		return nil, &failure
	}
	return source, nil
}
