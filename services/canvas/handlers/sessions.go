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

	"github.com/AleutianAI/AleutianCanvas/pkg/validation"
	"github.com/AleutianAI/AleutianCanvas/services/canvas/datatypes"
	"github.com/AleutianAI/AleutianCanvas/services/canvas/dispatcher"
)

// ToolCallRequest is the manual injection payload. It mirrors the wire
// shape of a streamed tool-call frame so curl and integration tests can
// exercise the full pipeline without a model session.
type ToolCallRequest struct {
	ToolCallId string         `json:"toolCallId" binding:"required"`
	ToolName   string         `json:"toolName" binding:"required"`
	Input      map[string]any `json:"input"`
}

// InjectToolCall feeds one synthetic tool-call frame into a session's
// pipeline. Injected calls are locally originated, so their results go to
// the conversation sink only and are never posted back upstream.
func InjectToolCall(manager *dispatcher.Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		sessionId, err := validation.SanitizeSessionId(c.Param("sessionId"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		var req ToolCallRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		slog.Info("injecting tool call",
			"session_id", sessionId,
			"tool", req.ToolName,
			"tool_call_id", req.ToolCallId,
		)

		session := manager.Open(c.Request.Context(), sessionId)
		released := session.Offer(datatypes.ToolEventMessage{
			Type:           datatypes.ToolEventCall,
			ToolCallId:     req.ToolCallId,
			ToolName:       req.ToolName,
			Input:          req.Input,
			InputAvailable: true,
		}, false)

		if !released {
			c.JSON(http.StatusOK, gin.H{
				"accepted": false,
				"reason":   "tool call id already dispatched",
			})
			return
		}
		c.JSON(http.StatusAccepted, gin.H{"accepted": true})
	}
}

// GetSession reports the dedup ledger size for one open session.
func GetSession(manager *dispatcher.Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		sessionId := c.Param("sessionId")
		session := manager.Get(sessionId)
		if session == nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"sessionId":    sessionId,
			"trackedCalls": session.LedgerSize(),
		})
	}
}

// CloseSession tears down one session and discards its ledger.
func CloseSession(manager *dispatcher.Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		sessionId := c.Param("sessionId")
		if manager.Get(sessionId) == nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
			return
		}
		manager.Close(sessionId)
		c.JSON(http.StatusOK, gin.H{"status": "success", "closed_session_id": sessionId})
	}
}
