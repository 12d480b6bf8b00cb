// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package handlers contains the gin handlers for the assistant API.
package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/AleutianAI/OpsPilot/services/assistant/coordinator"
	"github.com/AleutianAI/OpsPilot/services/assistant/datatypes"
	"github.com/gin-gonic/gin"
)

// HandleQuery processes one conversational turn.
//
// POST /v1/query
//
//	{"user_id": "alice", "user_query": "How many critical incidents this month?"}
//
// The response keeps the legacy field names (user_input,
// generated_sql_query, model_response) so existing clients keep working.
func HandleQuery(coord *coordinator.Coordinator) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req datatypes.QueryRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
			return
		}
		if err := req.Validate(); err != nil {
			slog.Warn("query request failed validation", "error", err)
			c.JSON(http.StatusBadRequest, gin.H{"error": "user_id and user_query are required; user_query is limited to 8KB"})
			return
		}

		result, err := coord.ProcessTurn(c.Request.Context(), req.UserID, req.UserQuery)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				c.JSON(http.StatusRequestTimeout, gin.H{"error": "request cancelled"})
				return
			}
			slog.Error("turn processing failed", "user_id", req.UserID, "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to process query"})
			return
		}

		c.JSON(http.StatusOK, datatypes.QueryResponse{
			UserInput:      req.UserQuery,
			GeneratedQuery: result.GeneratedSQL,
			ModelResponse:  result.Turn.Answer,
			Intent:         result.Turn.Intent,
			TurnID:         result.Turn.ID,
			Persisted:      result.Persisted,
		})
	}
}
