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

// update.go contains single and batch node updates and batch deletion.
// Batch semantics: elements are attempted strictly in input order, one
// element's failure never aborts the rest, and the overall result reports
// the processed count.

import (
	"fmt"

	"github.com/AleutianAI/AleutianCanvas/services/canvas/datatypes"
	"github.com/AleutianAI/AleutianCanvas/services/canvas/observability"
)

// Free-text fields measured for observability on write. Measurement never
// blocks or alters the write.
var measuredTextFields = []string{"prompt", "negativePrompt", "keywords"}

func (e *Executor) applyUpdate(a datatypes.UpdateNodeAction) datatypes.FunctionResult {
	nodeId, err := e.updateOne(a.NodeId, a.Label, a.Patch)
	if err != nil {
		return datatypes.Fail(err.Error())
	}
	return datatypes.OK(map[string]any{"nodeId": nodeId})
}

// updateOne applies the two independent operations: label rename and
// shallow data patch. Either, both, or neither may be present. ref may be
// a node id or a label; the resolved id is returned.
func (e *Executor) updateOne(ref string, label *string, patch map[string]any) (string, error) {
	if label == nil && len(patch) == 0 {
		return "", fmt.Errorf("update for node %s carries no label and no data changes", ref)
	}

	nodeId, err := e.resolveRef(ref)
	if err != nil {
		return "", err
	}
	if label != nil {
		if err := e.store.RenameNode(nodeId, *label); err != nil {
			return "", fmt.Errorf("node %s does not exist on the canvas", ref)
		}
	}
	if len(patch) > 0 {
		if err := e.store.PatchNodeData(nodeId, patch); err != nil {
			return "", fmt.Errorf("node %s does not exist on the canvas", ref)
		}
		measureTextWrites(patch)
	}
	return nodeId, nil
}

// measureTextWrites records free-text sizes for observability.
func measureTextWrites(patch map[string]any) {
	for _, field := range measuredTextFields {
		switch v := patch[field].(type) {
		case string:
			observability.PromptCharsWritten.WithLabelValues(field).Observe(float64(len([]rune(v))))
		case []any:
			observability.PromptCharsWritten.WithLabelValues(field).Observe(float64(len(v)))
		}
	}
}

func (e *Executor) applyUpdateMany(a datatypes.UpdateNodesAction) datatypes.FunctionResult {
	if len(a.NodeIds) == 0 {
		return datatypes.Fail("updateNodes requires at least one target node id")
	}

	processed := 0
	var failures []string
	for _, ref := range a.NodeIds {
		if _, err := e.updateOne(ref, a.Label, a.Patch); err != nil {
			failures = append(failures, err.Error())
			continue
		}
		processed++
	}

	data := map[string]any{
		"processed": processed,
		"requested": len(a.NodeIds),
	}
	if len(failures) > 0 {
		data["failures"] = failures
	}
	if processed == 0 {
		return datatypes.FunctionResult{
			Success: false,
			Data:    data,
			Error:   fmt.Sprintf("no nodes updated: %s", failures[0]),
		}
	}
	return datatypes.OK(data)
}

func (e *Executor) applyDelete(a datatypes.DeleteNodesAction) datatypes.FunctionResult {
	if len(a.NodeIds) == 0 {
		return datatypes.Fail("deleteNodes requires at least one target node id")
	}

	processed := 0
	prunedEdges := 0
	var failures []string
	for _, ref := range a.NodeIds {
		nodeId, err := e.resolveRef(ref)
		if err != nil {
			failures = append(failures, err.Error())
			continue
		}
		pruned, err := e.store.RemoveNode(nodeId)
		if err != nil {
			failures = append(failures, fmt.Sprintf("node %s does not exist on the canvas", ref))
			continue
		}
		processed++
		prunedEdges += pruned
	}

	data := map[string]any{
		"processed":   processed,
		"requested":   len(a.NodeIds),
		"prunedEdges": prunedEdges,
	}
	if len(failures) > 0 {
		data["failures"] = failures
	}
	if processed == 0 {
		return datatypes.FunctionResult{
			Success: false,
			Data:    data,
			Error:   fmt.Sprintf("no nodes deleted: %s", failures[0]),
		}
	}
	return datatypes.OK(data)
}
