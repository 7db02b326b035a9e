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
// This file contains the node/edge graph entities shared by the graph store,
// the mutation executor, and the HTTP snapshot handlers. Event and action
// types live in events.go and actions.go respectively.
package datatypes

import "encoding/json"

// =============================================================================
// Node Kinds
// =============================================================================

// NodeKind identifies the closed set of node types the canvas understands.
//
// # Description
//
// The kind determines which configuration fields are legal on a node, which
// model whitelist applies, and whether execution routes to the remote or the
// mock runner. Free-form kind strings supplied by the model are mapped onto
// this enum by the action normalizer's alias table; unrecognized strings pass
// through unchanged to stay forward-compatible with server-declared kinds.
type NodeKind string

const (
	// KindText is a plain text node (mock execution).
	KindText NodeKind = "text"

	// KindImage is an image node holding a generated or uploaded image.
	KindImage NodeKind = "image"

	// KindTextToImage is a text-to-image generation node (remote execution).
	KindTextToImage NodeKind = "textToImage"

	// KindComposeVideo is a video composition node (remote execution).
	KindComposeVideo NodeKind = "composeVideo"

	// KindVideo is a finished video asset. Not directly creatable; it exists
	// as a remix source produced by earlier generations.
	KindVideo NodeKind = "video"

	// KindStoryboard is a storyboard node. Standalone creation is rejected
	// with a redirect hint toward composeVideo.
	KindStoryboard NodeKind = "storyboard"

	// KindAudio is an audio track node (remote execution).
	KindAudio NodeKind = "audio"

	// KindSubtitle is a subtitle overlay node (mock execution).
	KindSubtitle NodeKind = "subtitle"

	// KindCharacter is a reusable character reference node (mock execution).
	KindCharacter NodeKind = "character"
)

// ImageFamilyKinds are the kinds that receive implicit prompt seeding from
// the resolved label when the caller supplies no prompt. Every creatable
// image node must be immediately runnable.
var ImageFamilyKinds = map[NodeKind]bool{
	KindImage:       true,
	KindTextToImage: true,
}

// VideoLikeKinds are the kinds a remix may derive from. The remix source must
// additionally have StatusSuccess.
var VideoLikeKinds = map[NodeKind]bool{
	KindComposeVideo: true,
	KindVideo:        true,
	KindStoryboard:   true,
}

// OrientedKinds are the kinds whose data carries a canonical orientation
// after normalization, even when the input omitted one.
var OrientedKinds = map[NodeKind]bool{
	KindComposeVideo: true,
	KindStoryboard:   true,
}

// =============================================================================
// Node Status
// =============================================================================

// NodeStatus tracks a node's execution lifecycle.
type NodeStatus string

const (
	// StatusIdle means the node has never run.
	StatusIdle NodeStatus = "idle"

	// StatusRunning means a runner currently owns the node.
	StatusRunning NodeStatus = "running"

	// StatusSuccess means the last run completed and results are present.
	StatusSuccess NodeStatus = "success"

	// StatusError means the last run failed; Data["error"] holds the reason.
	StatusError NodeStatus = "error"
)

// =============================================================================
// Graph Entities
// =============================================================================

// Position is a 2D canvas coordinate.
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Node is a vertex in the workflow graph.
//
// # Description
//
// Nodes are created and mutated exclusively through the mutation executor.
// Data is an open mapping of kind-specific fields (prompt, negativePrompt,
// keywords, imageModel, videoModel, remixSourceId, result URLs, status
// payloads). The executor enforces id uniqueness and remix referential
// integrity at its boundary; nothing else writes a Node.
//
// # Invariants
//
//   - Id is unique across the graph and never reused.
//   - Data["remixSourceId"], if present, references an existing node whose
//     kind is video-like and whose status is StatusSuccess.
type Node struct {
	// Id is the unique node identifier, generated at creation.
	Id string `json:"id"`

	// Kind is the node type from the closed enum.
	Kind NodeKind `json:"kind"`

	// Label is the human-readable name, defaulted from Kind when absent.
	Label string `json:"label"`

	// Data holds kind-specific configuration and results.
	Data map[string]any `json:"data"`

	// Position is the canvas coordinate, grid-assigned when omitted.
	Position Position `json:"position"`

	// Status is the execution lifecycle state.
	Status NodeStatus `json:"status"`
}

// Clone returns a deep copy of the node. Data values are copied via JSON
// round-trip so nested maps do not alias the original.
func (n *Node) Clone() *Node {
	cp := *n
	cp.Data = make(map[string]any, len(n.Data))
	for k, v := range n.Data {
		cp.Data[k] = cloneValue(v)
	}
	return &cp
}

func cloneValue(v any) any {
	switch v.(type) {
	case nil, bool, string, float64, int, int64:
		return v
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return v
	}
	var out any
	if err := json.Unmarshal(raw, &out); err != nil {
		return v
	}
	return out
}

// Edge is a directed connection between two nodes.
//
// Both endpoints must reference existing nodes at creation time, and no two
// edges may share an identical (source, target) pair. Edges referencing a
// deleted node are pruned in the same mutation that removes the node.
type Edge struct {
	// Id is the unique edge identifier.
	Id string `json:"id"`

	// Source is the origin node id.
	Source string `json:"source"`

	// Target is the destination node id.
	Target string `json:"target"`

	// SourceHandle is the optional origin port name.
	SourceHandle string `json:"sourceHandle,omitempty"`

	// TargetHandle is the optional destination port name.
	TargetHandle string `json:"targetHandle,omitempty"`
}

// RemixEdgeHandle is the fixed logical handle used for the automatic edge
// wired from a remix source to its derived node.
const RemixEdgeHandle = "remix"

// =============================================================================
// Snapshot
// =============================================================================

// GraphSnapshot is the read-only JSON view of the canvas served to the UI.
type GraphSnapshot struct {
	Nodes []*Node `json:"nodes"`
	Edges []*Edge `json:"edges"`
}
