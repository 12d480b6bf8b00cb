// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
)

// Pinger reports backend reachability.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthCheck reports service and backend health.
//
// GET /health
func HealthCheck(backend Pinger) gin.HandlerFunc {
	return func(c *gin.Context) {
		status := gin.H{"status": "ok"}
		if backend != nil {
			if err := backend.Ping(c.Request.Context()); err != nil {
				c.JSON(http.StatusServiceUnavailable,
					gin.H{"status": "degraded", "backend": "unreachable"})
				return
			}
			status["backend"] = "ok"
		}
		c.JSON(http.StatusOK, status)
	}
}
