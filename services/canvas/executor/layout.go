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

// layout.go contains the auto-layout algorithms. Placement is deterministic
// over node insertion order; aesthetic tuning belongs to the rendering
// layer, not this pipeline.

import (
	"fmt"

	"github.com/AleutianAI/AleutianCanvas/services/canvas/datatypes"
)

func (e *Executor) applyLayout(a datatypes.AutoLayoutAction) datatypes.FunctionResult {
	order := e.store.NodeIdsInOrder()
	if len(order) == 0 {
		return datatypes.Fail("the canvas has no nodes to lay out")
	}

	var positions map[string]datatypes.Position
	switch a.LayoutType {
	case datatypes.LayoutGrid:
		positions = e.gridLayout(order)
	case datatypes.LayoutHorizontal:
		positions = e.horizontalLayout(order)
	case datatypes.LayoutHierarchical:
		positions = e.hierarchicalLayout(order)
	default:
		return datatypes.Fail(fmt.Sprintf("layout %q is not supported", a.LayoutType))
	}

	moved := 0
	for nodeId, pos := range positions {
		if err := e.store.MoveNode(nodeId, pos); err == nil {
			moved++
		}
	}
	return datatypes.OK(map[string]any{
		"layout": string(a.LayoutType),
		"moved":  moved,
	})
}

func (e *Executor) gridLayout(order []string) map[string]datatypes.Position {
	positions := make(map[string]datatypes.Position, len(order))
	for i, nodeId := range order {
		positions[nodeId] = e.cfg.GridPosition(i)
	}
	return positions
}

func (e *Executor) horizontalLayout(order []string) map[string]datatypes.Position {
	positions := make(map[string]datatypes.Position, len(order))
	for i, nodeId := range order {
		positions[nodeId] = datatypes.Position{
			X: float64(i) * e.cfg.Layout.ColumnWidth,
			Y: 0,
		}
	}
	return positions
}

// hierarchicalLayout places nodes in columns by dependency depth: roots in
// column 0, each node one column right of its deepest upstream node.
func (e *Executor) hierarchicalLayout(order []string) map[string]datatypes.Position {
	waves, err := e.topologicalWaves()
	if err != nil {
		// A cyclic graph still gets a layout: fall back to the grid so the
		// action reports the cycle through runDag, not autoLayout.
		return e.gridLayout(order)
	}

	positions := make(map[string]datatypes.Position, len(order))
	for depth, wave := range waves {
		for row, nodeId := range wave {
			positions[nodeId] = datatypes.Position{
				X: float64(depth) * e.cfg.Layout.ColumnWidth,
				Y: float64(row) * e.cfg.Layout.RowHeight,
			}
		}
	}
	return positions
}
