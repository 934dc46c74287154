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

	"github.com/theryai/thery-go/services/orchestrator/session"
)

// CreateUser mints a new user identifier.
func CreateUser(registry session.Registry) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, err := registry.CreateUser(c.Request.Context())
		if err != nil {
			slog.Error("Failed to create user", "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create user"})
			return
		}
		slog.Info("Created new user", "userId", userID)
		c.JSON(http.StatusCreated, gin.H{"user_id": userID})
	}
}
