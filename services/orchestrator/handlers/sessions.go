// Copyright (C) 2025 Thery AI (hello@theryai.app)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package handlers

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/theryai/thery-go/services/orchestrator/services"
	"github.com/theryai/thery-go/services/orchestrator/session"
)

// createSessionRequest optionally binds a session to an existing user.
type createSessionRequest struct {
	UserID string `json:"user_id"`
}

// CreateSession mints a new session, optionally bound to a known user.
//
// The user_id is accepted as a query parameter, with a JSON body field as
// fallback. An unknown or absent user_id mints a fresh user as well; the
// response flags report which identifiers are new.
func CreateSession(registry session.Registry) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req createSessionRequest
		// Body is optional: an empty body means a brand-new user.
		if c.Request.ContentLength > 0 {
			if err := c.ShouldBindJSON(&req); err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
				return
			}
		}
		userID := c.Query("user_id")
		if userID == "" {
			userID = req.UserID
		}

		data, err := registry.CreateSession(c.Request.Context(), userID)
		if err != nil {
			slog.Error("Failed to create session", "userId", userID, "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create session"})
			return
		}
		c.JSON(http.StatusCreated, data)
	}
}

// GetSession returns stored metadata for a session.
func GetSession(registry session.Registry) gin.HandlerFunc {
	return func(c *gin.Context) {
		sessionID := c.Param("sessionId")
		info, err := registry.SessionInfo(c.Request.Context(), sessionID)
		if err != nil {
			if session.IsSessionInvalid(err) {
				c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
				return
			}
			slog.Error("Failed to load session info", "sessionId", sessionID, "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load session"})
			return
		}
		c.JSON(http.StatusOK, info)
	}
}

// DeleteSession removes a session and its conversation history.
func DeleteSession(svc *services.ConversationService) gin.HandlerFunc {
	return func(c *gin.Context) {
		sessionID := c.Param("sessionId")
		slog.Info("Received a request to delete a session", "sessionId", sessionID)

		if err := svc.EndSession(c.Request.Context(), sessionID); err != nil {
			if session.IsSessionInvalid(err) {
				c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
				return
			}
			slog.Error("Failed to delete session", "sessionId", sessionID, "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to fully delete session"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "success", "deleted_session_id": sessionID})
	}
}
