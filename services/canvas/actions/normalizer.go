// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package actions turns raw model-supplied tool parameters into canonical,
// validated actions.
//
// # Description
//
// The normalizer is the only constructor of datatypes.Action values. It
// applies a fixed rule order: tool-name resolution, payload unwrapping,
// type aliasing, the allowed-type gate, label defaulting, prompt
// reconciliation, implicit prompt seeding, model whitelist clamping,
// orientation canonicalization, and remix-id extraction. Rejections carry
// a specific, human-readable reason because the text is surfaced verbatim
// to the end user through the conversation.
//
// The normalizer never touches the graph: remix existence/kind/status
// checks belong to the executor, which owns the state those checks read.
//
// # Thread Safety
//
// Normalizer is immutable after construction and safe for concurrent use.
package actions

import (
	"fmt"
	"strings"

	"github.com/AleutianAI/AleutianCanvas/services/canvas/config"
	"github.com/AleutianAI/AleutianCanvas/services/canvas/datatypes"
)

// Data field names the normalizer rewrites.
const (
	fieldPrompt      = "prompt"
	fieldVideoPrompt = "videoPrompt"
	fieldImageModel  = "imageModel"
	fieldVideoModel  = "videoModel"
	fieldOrientation = "orientation"
	fieldRemixSource = "remixFromNodeId"
)

// Normalizer validates and rewrites raw tool-call input.
type Normalizer struct {
	cfg *config.Config
}

// NewNormalizer creates a normalizer bound to a loaded configuration.
func NewNormalizer(cfg *config.Config) *Normalizer {
	return &Normalizer{cfg: cfg}
}

// Normalize turns {toolName, rawInput} into a canonical action.
//
// # Outputs
//
//   - datatypes.Action: The canonical action, nil on rejection.
//   - error: The rejection reason, worded for end-user display.
func (n *Normalizer) Normalize(toolName string, rawInput map[string]any) (datatypes.Action, error) {
	params := unwrapPayload(rawInput)

	switch toolName {
	case datatypes.ToolCreateNode:
		return n.normalizeCreate(params)
	case datatypes.ToolUpdateNode:
		return n.normalizeUpdate(params)
	case datatypes.ToolUpdateNodes:
		return n.normalizeUpdateMany(params)
	case datatypes.ToolDeleteNodes:
		return datatypes.DeleteNodesAction{NodeIds: targetIds(params)}, nil
	case datatypes.ToolConnectNodes:
		return n.normalizeConnect(params)
	case datatypes.ToolDisconnectNodes:
		return n.normalizeDisconnect(params)
	case datatypes.ToolDuplicateNodes:
		return datatypes.DuplicateNodesAction{NodeIds: targetIds(params)}, nil
	case datatypes.ToolRunNode:
		return n.normalizeRun(params)
	case datatypes.ToolRunDag:
		return datatypes.RunDagAction{Concurrency: getInt(params, "concurrency", 0)}, nil
	case datatypes.ToolAutoLayout:
		return n.normalizeLayout(params)
	default:
		return nil, fmt.Errorf("unknown tool: %s", toolName)
	}
}

// unwrapPayload discards a payload wrapper and merges its contents over any
// sibling keys. Sibling keys win on conflict.
func unwrapPayload(rawInput map[string]any) map[string]any {
	if rawInput == nil {
		return map[string]any{}
	}
	wrapped := getMap(rawInput, "payload")
	if wrapped == nil {
		return rawInput
	}

	merged := make(map[string]any, len(wrapped)+len(rawInput))
	for k, v := range wrapped {
		merged[k] = v
	}
	for k, v := range rawInput {
		if k == "payload" {
			continue
		}
		merged[k] = v
	}
	return merged
}

// targetIds collects batch target ids, accepting both the plural and the
// singular parameter spelling.
func targetIds(params map[string]any) []string {
	ids := getStringSlice(params, "nodeIds")
	if len(ids) == 0 {
		ids = getStringSlice(params, "nodeId")
	}
	return ids
}

// -----------------------------------------------------------------------------
// createNode
// -----------------------------------------------------------------------------

func (n *Normalizer) normalizeCreate(params map[string]any) (datatypes.Action, error) {
	rawType := getString(params, "type", "")
	kind := n.cfg.ResolveKindAlias(rawType)

	if !n.cfg.CreateAllowed(kind) {
		return nil, fmt.Errorf("node type %q is not creatable; allowed types: %s",
			rawType, strings.Join(n.cfg.AllowedKindNames(), ", "))
	}

	label := strings.TrimSpace(getString(params, "label", ""))
	labelExplicit := label != ""
	if !labelExplicit {
		label = n.cfg.DefaultLabel(kind)
	}

	data := map[string]any{}
	for k, v := range getMap(params, "config") {
		data[k] = v
	}

	n.reconcilePrompts(kind, data)
	n.seedPrompt(kind, label, data)
	n.clampModels(kind, data)
	n.canonicalizeOrientation(kind, data)

	// Remix reference: the top-level parameter wins over one nested in the
	// config payload. Existence/kind/status validation is the executor's.
	remixId := getString(params, fieldRemixSource, "")
	if remixId == "" {
		remixId = getString(data, fieldRemixSource, "")
	}
	delete(data, fieldRemixSource)

	return datatypes.CreateNodeAction{
		Kind:          kind,
		Label:         label,
		LabelExplicit: labelExplicit,
		Data:          data,
		Position:      getPosition(params, "position"),
		RemixSourceId: remixId,
	}, nil
}

// reconcilePrompts copies the legacy videoPrompt field into prompt when the
// primary is empty, never the reverse, and strips videoPrompt entirely for
// kinds that do not use it so stale values cannot leak across kinds.
func (n *Normalizer) reconcilePrompts(kind datatypes.NodeKind, data map[string]any) {
	videoPrompt := getString(data, fieldVideoPrompt, "")
	if datatypes.VideoLikeKinds[kind] {
		if getString(data, fieldPrompt, "") == "" && videoPrompt != "" {
			data[fieldPrompt] = videoPrompt
		}
		return
	}
	delete(data, fieldVideoPrompt)
}

// seedPrompt fills prompt from the resolved label for image-family kinds,
// keeping every creatable image node immediately runnable.
func (n *Normalizer) seedPrompt(kind datatypes.NodeKind, label string, data map[string]any) {
	if !datatypes.ImageFamilyKinds[kind] {
		return
	}
	if getString(data, fieldPrompt, "") == "" {
		data[fieldPrompt] = label
	}
}

// clampModels replaces any model selector outside the kind's allow-list,
// including empty or absent values, with the designated default. This is a
// safety clamp and never produces an error.
func (n *Normalizer) clampModels(kind datatypes.NodeKind, data map[string]any) {
	if datatypes.ImageFamilyKinds[kind] {
		data[fieldImageModel] = n.cfg.ImageModels.Clamp(getString(data, fieldImageModel, ""))
	}
	if datatypes.VideoLikeKinds[kind] {
		data[fieldVideoModel] = n.cfg.VideoModels.Clamp(getString(data, fieldVideoModel, ""))
	}
}

// canonicalizeOrientation guarantees an orientation value for video and
// storyboard kinds, even when the input omitted one.
func (n *Normalizer) canonicalizeOrientation(kind datatypes.NodeKind, data map[string]any) {
	if !datatypes.OrientedKinds[kind] {
		return
	}
	data[fieldOrientation] = n.cfg.Orientations.Canonicalize(getString(data, fieldOrientation, ""))
}

// -----------------------------------------------------------------------------
// updateNode / updateNodes
// -----------------------------------------------------------------------------

func (n *Normalizer) normalizeUpdate(params map[string]any) (datatypes.Action, error) {
	nodeId := getString(params, "nodeId", "")
	if nodeId == "" {
		return nil, fmt.Errorf("updateNode requires a nodeId")
	}
	label, patch := updateFields(params)
	return datatypes.UpdateNodeAction{NodeId: nodeId, Label: label, Patch: patch}, nil
}

func (n *Normalizer) normalizeUpdateMany(params map[string]any) (datatypes.Action, error) {
	label, patch := updateFields(params)
	return datatypes.UpdateNodesAction{
		NodeIds: targetIds(params),
		Label:   label,
		Patch:   patch,
	}, nil
}

// updateFields extracts the two independent update operations: a label
// rename and a shallow data patch. Either, both, or neither may be present.
func updateFields(params map[string]any) (*string, map[string]any) {
	var label *string
	if raw, ok := params["label"]; ok {
		if s, ok := raw.(string); ok {
			trimmed := strings.TrimSpace(s)
			label = &trimmed
		}
	}
	patch := getMap(params, "data")
	if patch == nil {
		patch = getMap(params, "config")
	}
	return label, patch
}

// -----------------------------------------------------------------------------
// connectNodes / disconnectNodes
// -----------------------------------------------------------------------------

func (n *Normalizer) normalizeConnect(params map[string]any) (datatypes.Action, error) {
	source := getString(params, "sourceNodeId", "")
	target := getString(params, "targetNodeId", "")
	if source == "" || target == "" {
		return nil, fmt.Errorf("connectNodes requires sourceNodeId and targetNodeId")
	}
	return datatypes.ConnectNodesAction{
		SourceNodeId: source,
		TargetNodeId: target,
		SourceHandle: getString(params, "sourceHandle", ""),
		TargetHandle: getString(params, "targetHandle", ""),
	}, nil
}

func (n *Normalizer) normalizeDisconnect(params map[string]any) (datatypes.Action, error) {
	edgeId := getString(params, "edgeId", "")
	source := getString(params, "sourceNodeId", "")
	target := getString(params, "targetNodeId", "")
	if edgeId == "" && (source == "" || target == "") {
		return nil, fmt.Errorf("disconnectNodes requires an edgeId or both sourceNodeId and targetNodeId")
	}
	return datatypes.DisconnectNodesAction{
		EdgeId:       edgeId,
		SourceNodeId: source,
		TargetNodeId: target,
	}, nil
}

// -----------------------------------------------------------------------------
// runNode / autoLayout
// -----------------------------------------------------------------------------

func (n *Normalizer) normalizeRun(params map[string]any) (datatypes.Action, error) {
	nodeId := getString(params, "nodeId", "")
	if nodeId == "" {
		return nil, fmt.Errorf("runNode requires a nodeId")
	}
	return datatypes.RunNodeAction{NodeId: nodeId}, nil
}

func (n *Normalizer) normalizeLayout(params map[string]any) (datatypes.Action, error) {
	raw := strings.ToLower(strings.TrimSpace(getString(params, "layoutType", "")))
	switch datatypes.LayoutType(raw) {
	case datatypes.LayoutGrid, datatypes.LayoutHorizontal, datatypes.LayoutHierarchical:
		return datatypes.AutoLayoutAction{LayoutType: datatypes.LayoutType(raw)}, nil
	case "":
		return datatypes.AutoLayoutAction{LayoutType: datatypes.LayoutGrid}, nil
	default:
		return nil, fmt.Errorf("autoLayout layoutType %q is not supported; use grid, horizontal, or hierarchical", raw)
	}
}
