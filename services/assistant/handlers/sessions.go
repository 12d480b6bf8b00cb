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

	"github.com/AleutianAI/OpsPilot/services/assistant/store"
	"github.com/gin-gonic/gin"
)

// ListSessions returns summaries of every stored session.
//
// GET /v1/sessions
func ListSessions(sessions store.SessionStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		summaries, err := sessions.List(c.Request.Context())
		if err != nil {
			slog.Error("failed to list sessions", "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list sessions"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"sessions": summaries, "count": len(summaries)})
	}
}

// GetSessionHistory returns a user's full conversation, turns and
// feedback included.
//
// GET /v1/sessions/:userId/history
func GetSessionHistory(sessions store.SessionStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := c.Param("userId")
		session, err := sessions.Get(c.Request.Context(), userID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "no session for user"})
				return
			}
			slog.Error("failed to load session", "user_id", userID, "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load session"})
			return
		}
		c.JSON(http.StatusOK, session)
	}
}

// DeleteSession removes a user's conversation history.
//
// DELETE /v1/sessions/:userId
func DeleteSession(sessions store.SessionStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := c.Param("userId")
		slog.Info("Received a request to delete a session", "user_id", userID)

		if err := sessions.Delete(c.Request.Context(), userID); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "no session for user"})
				return
			}
			slog.Error("failed to delete session", "user_id", userID, "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to delete session"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "success", "deleted_user_id": userID})
	}
}
