// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package routes

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/AleutianAI/AleutianCanvas/services/canvas/dispatcher"
	"github.com/AleutianAI/AleutianCanvas/services/canvas/graph"
	"github.com/AleutianAI/AleutianCanvas/services/canvas/handlers"
	"github.com/AleutianAI/AleutianCanvas/services/canvas/middleware"
)

func SetupRoutes(router *gin.Engine, store *graph.Store, manager *dispatcher.Manager, authSecret string) {

	router.GET("/health", handlers.HealthCheck)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// API version 1 group
	v1 := router.Group("/v1")
	v1.Use(middleware.BearerAuth(authSecret))
	{
		canvas := v1.Group("/canvas")
		{
			canvas.GET("/snapshot", handlers.GetSnapshot(store))
			canvas.GET("/nodes/:nodeId", handlers.GetNode(store))
			// Session administration routes
			sessions := canvas.Group("/sessions")
			{
				sessions.GET("/:sessionId", handlers.GetSession(manager))
				sessions.POST("/:sessionId/tool-calls", handlers.InjectToolCall(manager))
				sessions.DELETE("/:sessionId", handlers.CloseSession(manager))
			}
		}
	}
}
