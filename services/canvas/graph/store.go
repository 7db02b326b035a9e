// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package graph provides the owned node/edge state for one canvas.
//
// # Description
//
// Store is an explicit graph-state object handed to the mutation executor's
// constructor. Every mutation goes through a create/update/delete/connect
// primitive on the store; no component reads-then-writes the node or edge
// collections directly, because the uniqueness and referential-integrity
// invariants are only enforced at this boundary.
//
// # Thread Safety
//
// All methods are safe for concurrent use. A single RWMutex serializes
// writers; reads return deep copies so callers never alias live state.
package graph

import (
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/AleutianAI/AleutianCanvas/services/canvas/datatypes"
)

// =============================================================================
// Errors
// =============================================================================

// ErrNodeNotFound is returned when a node id does not resolve.
var ErrNodeNotFound = errors.New("node not found")

// ErrEdgeNotFound is returned when an edge cannot be resolved by id or by
// (source, target) lookup.
var ErrEdgeNotFound = errors.New("edge not found")

// ErrDuplicateEdge is returned when an edge with an identical
// (source, target) pair already exists.
var ErrDuplicateEdge = errors.New("edge already exists")

// =============================================================================
// Store
// =============================================================================

// Store holds the nodes and edges of one canvas session.
//
// Insertion order of nodes is preserved: deterministic grid placement and
// horizontal layout both depend on it.
type Store struct {
	mu    sync.RWMutex
	nodes map[string]*datatypes.Node
	order []string
	edges map[string]*datatypes.Edge
}

// NewStore creates an empty graph store.
func NewStore() *Store {
	return &Store{
		nodes: make(map[string]*datatypes.Node),
		edges: make(map[string]*datatypes.Edge),
	}
}

// =============================================================================
// Node Primitives
// =============================================================================

// AddNode inserts a node, generating an id when the node has none.
//
// # Outputs
//
//   - string: The node's id.
//   - error: Non-nil if the id is already taken.
func (s *Store) AddNode(node *datatypes.Node) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addNodeLocked(node)
}

// addNodeLocked inserts under an already-held write lock.
func (s *Store) addNodeLocked(node *datatypes.Node) (string, error) {
	if node.Id == "" {
		node.Id = uuid.New().String()
	}
	if _, exists := s.nodes[node.Id]; exists {
		return "", fmt.Errorf("add node %s: id already in use", node.Id)
	}
	if node.Data == nil {
		node.Data = make(map[string]any)
	}
	if node.Status == "" {
		node.Status = datatypes.StatusIdle
	}

	s.nodes[node.Id] = node
	s.order = append(s.order, node.Id)
	return node.Id, nil
}

// GetNode returns a deep copy of the node, or ErrNodeNotFound.
func (s *Store) GetNode(id string) (*datatypes.Node, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	node, ok := s.nodes[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNodeNotFound, id)
	}
	return node.Clone(), nil
}

// NodeCount returns the number of nodes. Used for grid placement.
func (s *Store) NodeCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.nodes)
}

// FindByLabelAndKind returns a copy of the first node (in insertion order)
// matching the label-or-id plus kind pair, or nil. This backs the
// executor's idempotence-by-identity check on create.
func (s *Store) FindByLabelAndKind(labelOrId string, kind datatypes.NodeKind) *datatypes.Node {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if node := s.findByLabelAndKindLocked(labelOrId, kind); node != nil {
		return node.Clone()
	}
	return nil
}

func (s *Store) findByLabelAndKindLocked(labelOrId string, kind datatypes.NodeKind) *datatypes.Node {
	for _, id := range s.order {
		node := s.nodes[id]
		if node == nil || node.Kind != kind {
			continue
		}
		if node.Label == labelOrId || node.Id == labelOrId {
			return node
		}
	}
	return nil
}

// FindOrAddNode returns the id of an existing node matching the label-or-id
// plus kind pair or, absent one, inserts node. Lookup and insert happen in
// one locked step, so two racing creates with the same identity can never
// both insert.
//
// # Outputs
//
//   - string: Id of the surviving node.
//   - bool: True when an existing node satisfied the request.
//   - error: Non-nil if the insert failed.
func (s *Store) FindOrAddNode(labelOrId string, kind datatypes.NodeKind, node *datatypes.Node) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing := s.findByLabelAndKindLocked(labelOrId, kind); existing != nil {
		return existing.Id, true, nil
	}
	id, err := s.addNodeLocked(node)
	return id, false, err
}

// ResolveNode maps a node reference to an id. The reference may be an id
// or a node label; labels resolve to the first matching node in insertion
// order.
func (s *Store) ResolveNode(ref string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, ok := s.nodes[ref]; ok {
		return ref, nil
	}
	for _, id := range s.order {
		if node := s.nodes[id]; node != nil && node.Label == ref {
			return id, nil
		}
	}
	return "", fmt.Errorf("%w: %s", ErrNodeNotFound, ref)
}

// RenameNode sets the node's label.
func (s *Store) RenameNode(id, label string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	node, ok := s.nodes[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNodeNotFound, id)
	}
	node.Label = label
	return nil
}

// PatchNodeData shallow-merges patch over the node's existing data. Keys in
// the patch win; keys absent from the patch are untouched.
func (s *Store) PatchNodeData(id string, patch map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	node, ok := s.nodes[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNodeNotFound, id)
	}
	for k, v := range patch {
		node.Data[k] = v
	}
	return nil
}

// SetNodeStatus transitions the node's execution status.
func (s *Store) SetNodeStatus(id string, status datatypes.NodeStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	node, ok := s.nodes[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNodeNotFound, id)
	}
	node.Status = status
	return nil
}

// MoveNode sets the node's position.
func (s *Store) MoveNode(id string, pos datatypes.Position) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	node, ok := s.nodes[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNodeNotFound, id)
	}
	node.Position = pos
	return nil
}

// RemoveNode deletes the node and, in the same atomic step, every edge
// whose source or target equals the deleted id. The graph never holds a
// dangling edge, even transiently.
//
// # Outputs
//
//   - int: Number of cascade-removed edges.
//   - error: ErrNodeNotFound if the id does not resolve.
func (s *Store) RemoveNode(id string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.nodes[id]; !ok {
		return 0, fmt.Errorf("%w: %s", ErrNodeNotFound, id)
	}

	delete(s.nodes, id)
	for i, ordered := range s.order {
		if ordered == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}

	pruned := 0
	for edgeId, edge := range s.edges {
		if edge.Source == id || edge.Target == id {
			delete(s.edges, edgeId)
			pruned++
		}
	}
	return pruned, nil
}

// =============================================================================
// Edge Primitives
// =============================================================================

// AddEdge inserts a directed edge after checking endpoint existence and
// (source, target) uniqueness.
//
// # Outputs
//
//   - string: The edge's id.
//   - error: ErrNodeNotFound for an unresolved endpoint, ErrDuplicateEdge
//     for an identical pair.
func (s *Store) AddEdge(edge *datatypes.Edge) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.nodes[edge.Source]; !ok {
		return "", fmt.Errorf("%w: source %s", ErrNodeNotFound, edge.Source)
	}
	if _, ok := s.nodes[edge.Target]; !ok {
		return "", fmt.Errorf("%w: target %s", ErrNodeNotFound, edge.Target)
	}
	for _, existing := range s.edges {
		if existing.Source == edge.Source && existing.Target == edge.Target {
			return "", fmt.Errorf("%w: %s -> %s", ErrDuplicateEdge, edge.Source, edge.Target)
		}
	}

	if edge.Id == "" {
		edge.Id = uuid.New().String()
	}
	s.edges[edge.Id] = edge
	return edge.Id, nil
}

// RemoveEdge deletes an edge resolved directly by id, or by (source, target)
// lookup when the id is empty.
func (s *Store) RemoveEdge(edgeId, source, target string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if edgeId != "" {
		if _, ok := s.edges[edgeId]; !ok {
			return fmt.Errorf("%w: %s", ErrEdgeNotFound, edgeId)
		}
		delete(s.edges, edgeId)
		return nil
	}

	for id, edge := range s.edges {
		if edge.Source == source && edge.Target == target {
			delete(s.edges, id)
			return nil
		}
	}
	return fmt.Errorf("%w: %s -> %s", ErrEdgeNotFound, source, target)
}

// EdgesFrom returns copies of the edges originating at the node.
func (s *Store) EdgesFrom(source string) []*datatypes.Edge {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*datatypes.Edge
	for _, edge := range s.edges {
		if edge.Source == source {
			cp := *edge
			out = append(out, &cp)
		}
	}
	return out
}

// =============================================================================
// Snapshot
// =============================================================================

// Snapshot returns a deep copy of the whole graph in node insertion order.
func (s *Store) Snapshot() datatypes.GraphSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := datatypes.GraphSnapshot{
		Nodes: make([]*datatypes.Node, 0, len(s.order)),
		Edges: make([]*datatypes.Edge, 0, len(s.edges)),
	}
	for _, id := range s.order {
		if node := s.nodes[id]; node != nil {
			snap.Nodes = append(snap.Nodes, node.Clone())
		}
	}
	for _, edge := range s.edges {
		cp := *edge
		snap.Edges = append(snap.Edges, &cp)
	}
	return snap
}

// NodeIdsInOrder returns node ids in insertion order. Layout and runDag
// iterate over this to keep results deterministic.
func (s *Store) NodeIdsInOrder() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, len(s.order))
	copy(out, s.order)
	return out
}
