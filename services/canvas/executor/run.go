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

// run.go contains node execution dispatch and whole-graph runs. Kind routes
// to the remote or mock runner; after a run the executor re-reads the
// node's fresh data and extracts a compact media summary for display.

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/AleutianAI/AleutianCanvas/services/canvas/datatypes"
	"github.com/AleutianAI/AleutianCanvas/services/canvas/observability"
)

func (e *Executor) applyRun(ctx context.Context, a datatypes.RunNodeAction) datatypes.FunctionResult {
	if e.router == nil {
		return datatypes.Fail("node execution is not configured")
	}
	summary, err := e.runNode(ctx, a.NodeId)
	if err != nil {
		return datatypes.Fail(err.Error())
	}
	return datatypes.OK(summary)
}

// runNode executes one node through its routed backend and returns the
// media summary built from the node's post-run data. ref may be a node id
// or a label.
func (e *Executor) runNode(ctx context.Context, ref string) (map[string]any, error) {
	nodeId, err := e.resolveRef(ref)
	if err != nil {
		return nil, err
	}
	node, err := e.store.GetNode(nodeId)
	if err != nil {
		return nil, fmt.Errorf("node %s does not exist on the canvas", ref)
	}

	backend := "mock"
	if e.cfg.RemoteKind(node.Kind) {
		backend = "remote"
	}

	if err := e.store.SetNodeStatus(nodeId, datatypes.StatusRunning); err != nil {
		return nil, fmt.Errorf("node %s does not exist on the canvas", nodeId)
	}

	started := time.Now()
	patch, runErr := e.router.For(node.Kind).Run(ctx, node)
	observability.RunDurationSeconds.WithLabelValues(backend).Observe(time.Since(started).Seconds())

	if runErr != nil {
		observability.NodeRunsTotal.WithLabelValues(string(node.Kind), backend, "error").Inc()
		_ = e.store.PatchNodeData(nodeId, map[string]any{"error": runErr.Error()})
		_ = e.store.SetNodeStatus(nodeId, datatypes.StatusError)
		return nil, fmt.Errorf("running node %s failed: %v", nodeId, runErr)
	}

	if len(patch) > 0 {
		if err := e.store.PatchNodeData(nodeId, patch); err != nil {
			return nil, fmt.Errorf("node %s disappeared during its run", nodeId)
		}
	}
	if err := e.store.SetNodeStatus(nodeId, datatypes.StatusSuccess); err != nil {
		return nil, fmt.Errorf("node %s disappeared during its run", nodeId)
	}
	observability.NodeRunsTotal.WithLabelValues(string(node.Kind), backend, "success").Inc()

	// Re-read fresh data for the summary; the patch alone may be partial.
	fresh, err := e.store.GetNode(nodeId)
	if err != nil {
		return nil, fmt.Errorf("node %s disappeared during its run", nodeId)
	}
	summary := mediaSummary(fresh.Data)
	summary["nodeId"] = nodeId
	return summary, nil
}

// mediaSummary extracts the primary URL and any result list from post-run
// node data. Every field may be absent; extraction never throws.
func mediaSummary(data map[string]any) map[string]any {
	summary := map[string]any{}

	for _, key := range []string{"url", "imageUrl", "videoUrl", "audioUrl", "coverUrl"} {
		if s, ok := data[key].(string); ok && s != "" {
			summary["url"] = s
			break
		}
	}
	for _, key := range []string{"results", "images", "videos"} {
		if list, ok := data[key].([]any); ok && len(list) > 0 {
			summary["results"] = list
			break
		}
	}
	if s, ok := data["generatedText"].(string); ok && s != "" {
		summary["text"] = s
	}
	return summary
}

// -----------------------------------------------------------------------------
// runDag
// -----------------------------------------------------------------------------

func (e *Executor) applyRunDag(ctx context.Context, a datatypes.RunDagAction) datatypes.FunctionResult {
	if e.router == nil {
		return datatypes.Fail("node execution is not configured")
	}

	waves, err := e.topologicalWaves()
	if err != nil {
		return datatypes.Fail(err.Error())
	}
	if len(waves) == 0 {
		return datatypes.Fail("the canvas has no nodes to run")
	}

	concurrency := e.cfg.DagConcurrency(a.Concurrency)
	slog.Info("running canvas dag",
		"waves", len(waves),
		"concurrency", concurrency,
	)

	processed := 0
	var mu sync.Mutex
	failures := map[string]string{}

	for _, wave := range waves {
		g, waveCtx := errgroup.WithContext(ctx)
		g.SetLimit(concurrency)
		for _, nodeId := range wave {
			g.Go(func() error {
				if _, err := e.runNode(waveCtx, nodeId); err != nil {
					mu.Lock()
					failures[nodeId] = err.Error()
					mu.Unlock()
					// Recorded, not propagated: independent branches
					// keep running.
					return nil
				}
				mu.Lock()
				processed++
				mu.Unlock()
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return datatypes.Fail(fmt.Sprintf("dag run aborted: %v", err))
		}
		if ctx.Err() != nil {
			return datatypes.Fail(fmt.Sprintf("dag run cancelled: %v", ctx.Err()))
		}
	}

	data := map[string]any{
		"processed": processed,
		"requested": processed + len(failures),
	}
	if len(failures) > 0 {
		data["failures"] = failures
	}
	return datatypes.OK(data)
}

// topologicalWaves groups node ids into dependency waves via Kahn's
// algorithm: every node in wave n has all its upstream nodes in earlier
// waves. A cycle produces a specific error naming the stuck nodes.
func (e *Executor) topologicalWaves() ([][]string, error) {
	snap := e.store.Snapshot()

	indegree := make(map[string]int, len(snap.Nodes))
	downstream := make(map[string][]string)
	for _, node := range snap.Nodes {
		indegree[node.Id] = 0
	}
	for _, edge := range snap.Edges {
		if _, ok := indegree[edge.Target]; !ok {
			continue
		}
		indegree[edge.Target]++
		downstream[edge.Source] = append(downstream[edge.Source], edge.Target)
	}

	// Seed with roots in insertion order for deterministic output.
	var wave []string
	for _, node := range snap.Nodes {
		if indegree[node.Id] == 0 {
			wave = append(wave, node.Id)
		}
	}

	var waves [][]string
	placed := 0
	for len(wave) > 0 {
		waves = append(waves, wave)
		placed += len(wave)

		var next []string
		for _, nodeId := range wave {
			for _, target := range downstream[nodeId] {
				indegree[target]--
				if indegree[target] == 0 {
					next = append(next, target)
				}
			}
		}
		wave = next
	}

	if placed < len(snap.Nodes) {
		var stuck []string
		for _, node := range snap.Nodes {
			if indegree[node.Id] > 0 {
				stuck = append(stuck, node.Id)
			}
		}
		return nil, fmt.Errorf("the canvas contains a cycle involving nodes: %v", stuck)
	}
	return waves, nil
}
