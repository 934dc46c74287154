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
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/theryai/thery-go/services/orchestrator/agents"
	"github.com/theryai/thery-go/services/orchestrator/datatypes"
	"github.com/theryai/thery-go/services/orchestrator/services"
	"github.com/theryai/thery-go/services/orchestrator/session"
)

// postMessageRequest is the inbound chat message payload.
type postMessageRequest struct {
	Message string `json:"message"`
	// UserID lets a caller with an expired session keep their identity
	// when the service mints a replacement session.
	UserID string `json:"user_id,omitempty"`
}

// PostMessage runs one conversation turn on the given session.
//
// # Description
//
// The path session ID is validated by the conversation service: a live
// session is reused, an expired one is transparently replaced (the
// response flags say so), and the reply always carries the session the
// turn actually ran on. An invalid session is deliberately NOT a 404 on
// this endpoint, unlike the read and delete endpoints: recovery by
// minting keeps the conversation going, and is_new_session reports the
// replacement to the caller.
func PostMessage(svc *services.ConversationService) gin.HandlerFunc {
	return func(c *gin.Context) {
		sessionID := c.Param("sessionId")

		var req postMessageRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
			return
		}
		msg := datatypes.MessageRequest{Message: req.Message}
		if err := msg.Validate(); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		resp, err := svc.Process(c.Request.Context(), sessionID, req.UserID, req.Message)
		if err != nil {
			slog.Error("Conversation turn failed", "sessionId", sessionID, "error", err)
			if agents.IsMissingPrimaryEmotion(err) || agents.IsEmptyResponse(err) {
				c.JSON(http.StatusBadGateway, gin.H{"error": "processing failed"})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": "processing failed"})
			return
		}
		c.JSON(http.StatusOK, resp)
	}
}

// GetMessages returns the recent turns for a session as an ordered array,
// oldest first.
//
// The limit query parameter is clamped into [1, MaxHistoryLimit] and
// defaults to DefaultHistoryLimit.
func GetMessages(svc *services.ConversationService) gin.HandlerFunc {
	return func(c *gin.Context) {
		sessionID := c.Param("sessionId")

		limit := datatypes.DefaultHistoryLimit
		if raw := c.Query("limit"); raw != "" {
			parsed, err := strconv.Atoi(raw)
			if err != nil || parsed < 1 {
				c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive integer"})
				return
			}
			limit = parsed
		}
		if limit > datatypes.MaxHistoryLimit {
			limit = datatypes.MaxHistoryLimit
		}

		turns, err := svc.History(c.Request.Context(), sessionID, limit)
		if err != nil {
			if session.IsSessionInvalid(err) {
				c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
				return
			}
			slog.Error("Failed to load session history", "sessionId", sessionID, "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load history"})
			return
		}
		c.JSON(http.StatusOK, turns)
	}
}
