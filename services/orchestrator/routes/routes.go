// Copyright (C) 2025 Thery AI (hello@theryai.app)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package routes

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/theryai/thery-go/services/orchestrator/handlers"
	"github.com/theryai/thery-go/services/orchestrator/services"
	"github.com/theryai/thery-go/services/orchestrator/session"
)

// SetupRoutes registers the full HTTP surface on the router.
func SetupRoutes(router *gin.Engine, svc *services.ConversationService, registry session.Registry) {
	router.GET("/health", handlers.HealthCheck)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// API version 1 group
	v1 := router.Group("/v1")
	{
		v1.POST("/users", handlers.CreateUser(registry))
		v1.GET("/chat/ws", handlers.HandleChatWebSocket(svc, registry))

		sessions := v1.Group("/sessions")
		{
			sessions.POST("", handlers.CreateSession(registry))
			sessions.GET("/:sessionId", handlers.GetSession(registry))
			sessions.DELETE("/:sessionId", handlers.DeleteSession(svc))
			sessions.POST("/:sessionId/messages", handlers.PostMessage(svc))
			sessions.GET("/:sessionId/messages", handlers.GetMessages(svc))
		}
	}
}
