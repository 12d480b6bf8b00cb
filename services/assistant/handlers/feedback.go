// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/AleutianAI/OpsPilot/services/assistant/coordinator"
	"github.com/AleutianAI/OpsPilot/services/assistant/datatypes"
	"github.com/AleutianAI/OpsPilot/services/assistant/store"
	"github.com/gin-gonic/gin"
)

// HandleFeedback records a like/dislike rating and optional comment
// against a prior turn.
//
// POST /v1/feedback
//
//	{"user_id": "alice", "turn_id": "<uuid>", "feedback": "like", "comments": "spot on"}
//
// Submissions are idempotent on (user, turn, rating); a duplicate
// updates the comment and is acknowledged as such.
func HandleFeedback(coord *coordinator.Coordinator) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req datatypes.FeedbackRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
			return
		}
		if err := req.Validate(); err != nil {
			slog.Warn("feedback request failed validation", "error", err)
			c.JSON(http.StatusBadRequest, gin.H{"error": "turn_id must be a UUID and feedback one of like/dislike"})
			return
		}
		if req.Rating == "" && req.Comment == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "at least one of feedback or comments is required"})
			return
		}

		result, err := coord.RecordFeedback(c.Request.Context(), req.UserID, req.TurnID,
			datatypes.Rating(req.Rating), req.Comment)
		if err != nil {
			switch {
			case errors.Is(err, store.ErrNotFound):
				c.JSON(http.StatusNotFound, gin.H{"error": "no session for user"})
			case errors.Is(err, coordinator.ErrTurnNotFound):
				c.JSON(http.StatusNotFound, gin.H{"error": "turn not found in session"})
			default:
				slog.Error("feedback recording failed", "user_id", req.UserID, "error", err)
				c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to record feedback"})
			}
			return
		}

		resp := datatypes.FeedbackResponse{Duplicate: !result.NewEntry}
		if req.Rating != "" {
			resp.FeedbackMessage = "Feedback recorded."
			if !result.NewEntry {
				resp.FeedbackMessage = "Feedback already recorded."
			}
		}
		if req.Comment != "" {
			resp.CommentMessage = "Comment recorded."
		}
		c.JSON(http.StatusOK, resp)
	}
}
