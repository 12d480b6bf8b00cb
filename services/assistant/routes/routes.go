// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package routes

import (
	"github.com/AleutianAI/OpsPilot/services/assistant/coordinator"
	"github.com/AleutianAI/OpsPilot/services/assistant/handlers"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// SetupRoutes registers the assistant API on the router.
func SetupRoutes(router *gin.Engine, coord *coordinator.Coordinator, backend handlers.Pinger) {
	router.GET("/health", handlers.HealthCheck(backend))
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// API version 1 group
	v1 := router.Group("/v1")
	{
		v1.POST("/query", handlers.HandleQuery(coord))
		v1.POST("/feedback", handlers.HandleFeedback(coord))

		// Session administration routes
		sessions := v1.Group("/sessions")
		{
			sessions.GET("", handlers.ListSessions(coord.Sessions()))
			sessions.GET("/:userId/history", handlers.GetSessionHistory(coord.Sessions()))
			sessions.DELETE("/:userId", handlers.DeleteSession(coord.Sessions()))
		}
	}
}
