package handlers

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/theryai/thery-go/services/orchestrator/datatypes"
	"github.com/theryai/thery-go/services/orchestrator/services"
	"github.com/theryai/thery-go/services/orchestrator/session"
)

// WSRequest is one inbound chat message on the socket.
type WSRequest struct {
	Message string `json:"message"`
	Action  string `json:"action,omitempty"` // e.g. "end_session"
}

// WSResponse mirrors the HTTP ConversationResponse for socket clients.
type WSResponse struct {
	Response           string                      `json:"response"`
	SessionData        datatypes.SessionData       `json:"session_data"`
	EmotionAnalysis    datatypes.EmotionalAnalysis `json:"emotion_analysis"`
	SafetyLevel        string                      `json:"safety_level"`
	SuggestedResources []string                    `json:"suggested_resources,omitempty"`
	Error              string                      `json:"error,omitempty"`
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
	ReadBufferSize:  64 * 1024,
	WriteBufferSize: 64 * 1024,
}

func sendJSON(ws *websocket.Conn, v interface{}) error {
	err := ws.WriteJSON(v)
	if err != nil {
		slog.Warn("Failed to write WebSocket JSON", "error", err)
	}
	return err
}

// HandleChatWebSocket runs a persistent chat connection.
//
// # Description
//
// On connect the handler mints a session immediately and sends its
// identifiers to the client, then loops reading messages and replying
// with full conversation responses. The "end_session" action deletes the
// session and closes the loop.
func HandleChatWebSocket(svc *services.ConversationService, registry session.Registry) gin.HandlerFunc {
	return func(c *gin.Context) {
		ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			slog.Error("failed to upgrade the websocket", "error", err)
			return
		}
		defer ws.Close()
		slog.Info("Websocket client connected")

		// Mint the session up front so the client can resume over HTTP
		// later with the same identifiers.
		data, err := registry.CreateSession(c.Request.Context(), c.Query("user_id"))
		if err != nil {
			slog.Error("Failed to create websocket session", "error", err)
			_ = sendJSON(ws, gin.H{"error": "failed to create session"})
			return
		}
		slog.Info("New websocket session started", "sessionId", data.SessionID, "userId", data.UserID)

		if err := sendJSON(ws, gin.H{
			"action":     "session_created",
			"session_id": data.SessionID,
			"user_id":    data.UserID,
		}); err != nil {
			return
		}

		for {
			var req WSRequest
			if err := ws.ReadJSON(&req); err != nil {
				slog.Info("Websocket client disconnected", "error", err.Error())
				break
			}

			ctx := c.Request.Context()

			if req.Action == "end_session" {
				if err := svc.EndSession(ctx, data.SessionID); err != nil {
					slog.Error("Failed to end websocket session", "sessionId", data.SessionID, "error", err)
				}
				_ = sendJSON(ws, gin.H{"action": "session_ended", "session_id": data.SessionID})
				return
			}

			msg := datatypes.MessageRequest{Message: req.Message}
			if err := msg.Validate(); err != nil {
				if sendJSON(ws, WSResponse{Error: err.Error()}) != nil {
					return
				}
				continue
			}

			resp, err := svc.Process(ctx, data.SessionID, data.UserID, req.Message)
			if err != nil {
				slog.Error("Websocket conversation turn failed", "sessionId", data.SessionID, "error", err)
				if sendJSON(ws, WSResponse{Error: "processing failed"}) != nil {
					return
				}
				continue
			}

			// The session may have been silently replaced if it expired
			// mid-connection; track the replacement.
			data = resp.SessionData

			if sendJSON(ws, WSResponse{
				Response:           resp.Response,
				SessionData:        resp.SessionData,
				EmotionAnalysis:    resp.EmotionAnalysis,
				SafetyLevel:        resp.SafetyLevel,
				SuggestedResources: resp.SuggestedResources,
			}) != nil {
				return
			}
		}
	}
}
