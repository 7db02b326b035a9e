// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package handlers

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/AleutianAI/AleutianCanvas/services/canvas/graph"
)

// HealthCheck reports liveness for the canvas service.
func HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// GetSnapshot returns every node and edge on the canvas in insertion order.
func GetSnapshot(store *graph.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		snapshot := store.Snapshot()
		c.JSON(http.StatusOK, snapshot)
	}
}

// GetNode returns a single node by id.
func GetNode(store *graph.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.Param("nodeId")
		node, err := store.GetNode(id)
		if err != nil {
			slog.Warn("node lookup failed", "node_id", id, "error", err)
			c.JSON(http.StatusNotFound, gin.H{"error": "node not found"})
			return
		}
		c.JSON(http.StatusOK, node)
	}
}
