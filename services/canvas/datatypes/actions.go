// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package datatypes provides data structures for the canvas service.
//
// This file contains the canonical action types produced by the action
// normalizer. Actions form a closed sum type over the supported tool names
// so the executor can match them exhaustively: adding a tool is a
// compile-time-checked addition, not a silently-missing map entry.
package datatypes

// =============================================================================
// Tool Names
// =============================================================================

// Supported tool names. These are the stable contract between the pipeline
// and the upstream tool-declaration layer.
const (
	ToolCreateNode      = "createNode"
	ToolUpdateNode      = "updateNode"
	ToolUpdateNodes     = "updateNodes"
	ToolDeleteNodes     = "deleteNodes"
	ToolConnectNodes    = "connectNodes"
	ToolDisconnectNodes = "disconnectNodes"
	ToolDuplicateNodes  = "duplicateNodes"
	ToolRunNode         = "runNode"
	ToolRunDag          = "runDag"
	ToolAutoLayout      = "autoLayout"
)

// =============================================================================
// Action Sum Type
// =============================================================================

// Action is a normalized, validated mutation request.
//
// Actions are produced only by the action normalizer, never constructed
// directly from raw model input. The executor's Apply switch is the single
// consumer; its default arm rejects any unrecognized variant.
type Action interface {
	// Tool returns the originating tool name.
	Tool() string

	// sealed prevents out-of-package variants so the executor switch
	// stays exhaustive.
	sealed()
}

// CreateNodeAction requests insertion of a new node.
type CreateNodeAction struct {
	// Kind is the resolved node kind after alias mapping.
	Kind NodeKind

	// Label is the resolved label (explicit or per-kind default).
	Label string

	// LabelExplicit records whether the caller supplied the label. The
	// executor's idempotence-by-identity check only fires on explicit,
	// non-empty labels.
	LabelExplicit bool

	// Data is the normalized kind-specific configuration.
	Data map[string]any

	// Position is the explicit coordinate, nil for grid assignment.
	Position *Position

	// RemixSourceId is the forwarded remix reference, empty when absent.
	// The executor validates existence, kind, and status.
	RemixSourceId string
}

func (CreateNodeAction) Tool() string { return ToolCreateNode }
func (CreateNodeAction) sealed()      {}

// UpdateNodeAction requests a label rename and/or a shallow data patch on a
// single node. Either, both, or neither operation may be present.
type UpdateNodeAction struct {
	NodeId string

	// Label is the new label, nil to leave unchanged.
	Label *string

	// Patch is shallow-merged over existing data, nil for no patch.
	Patch map[string]any
}

func (UpdateNodeAction) Tool() string { return ToolUpdateNode }
func (UpdateNodeAction) sealed()      {}

// UpdateNodesAction applies the same rename/patch to many nodes in input
// order. One element's failure does not abort the remaining elements.
type UpdateNodesAction struct {
	NodeIds []string
	Label   *string
	Patch   map[string]any
}

func (UpdateNodesAction) Tool() string { return ToolUpdateNodes }
func (UpdateNodesAction) sealed()      {}

// DeleteNodesAction removes the listed nodes, cascading edge removal.
type DeleteNodesAction struct {
	NodeIds []string
}

func (DeleteNodesAction) Tool() string { return ToolDeleteNodes }
func (DeleteNodesAction) sealed()      {}

// ConnectNodesAction creates a directed edge.
type ConnectNodesAction struct {
	SourceNodeId string
	TargetNodeId string
	SourceHandle string
	TargetHandle string
}

func (ConnectNodesAction) Tool() string { return ToolConnectNodes }
func (ConnectNodesAction) sealed()      {}

// DisconnectNodesAction removes an edge, resolved by edge id or by
// (source, target) lookup.
type DisconnectNodesAction struct {
	EdgeId       string
	SourceNodeId string
	TargetNodeId string
}

func (DisconnectNodesAction) Tool() string { return ToolDisconnectNodes }
func (DisconnectNodesAction) sealed()      {}

// DuplicateNodesAction clones the listed nodes with fresh ids and a fixed
// per-clone pixel offset multiplied by index.
type DuplicateNodesAction struct {
	NodeIds []string
}

func (DuplicateNodesAction) Tool() string { return ToolDuplicateNodes }
func (DuplicateNodesAction) sealed()      {}

// RunNodeAction dispatches one node to its kind-routed runner.
type RunNodeAction struct {
	NodeId string
}

func (RunNodeAction) Tool() string { return ToolRunNode }
func (RunNodeAction) sealed()      {}

// RunDagAction executes the whole graph in topological order with bounded
// concurrency.
type RunDagAction struct {
	// Concurrency is the maximum simultaneous node runs, 0 for default.
	Concurrency int
}

func (RunDagAction) Tool() string { return ToolRunDag }
func (RunDagAction) sealed()      {}

// LayoutType selects an auto-layout algorithm.
type LayoutType string

const (
	LayoutGrid         LayoutType = "grid"
	LayoutHorizontal   LayoutType = "horizontal"
	LayoutHierarchical LayoutType = "hierarchical"
)

// AutoLayoutAction repositions every node with the selected algorithm.
type AutoLayoutAction struct {
	LayoutType LayoutType
}

func (AutoLayoutAction) Tool() string { return ToolAutoLayout }
func (AutoLayoutAction) sealed()      {}
