// Copyright (C) 2025 Thery AI (hello@theryai.app)
// Tests for the session and message handlers

package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/theryai/thery-go/services/llm"
	"github.com/theryai/thery-go/services/orchestrator/agents"
	"github.com/theryai/thery-go/services/orchestrator/datatypes"
	"github.com/theryai/thery-go/services/orchestrator/memory"
	"github.com/theryai/thery-go/services/orchestrator/services"
	"github.com/theryai/thery-go/services/orchestrator/session"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// =============================================================================
// Test Setup
// =============================================================================

// stubLLM answers the analysis prompt with a fixed labeled reply and every
// other prompt with a fixed response.
type stubLLM struct{}

func (stubLLM) Generate(_ context.Context, prompt string, _ llm.GenerationParams) (string, error) {
	if strings.HasPrefix(prompt, "Analyze the emotional content") {
		return "1. Primary emotion: Anxiety\n2. Intensity: 6\n6. Confidence score: 0.8", nil
	}
	return "I hear you. That sounds like a lot to carry.", nil
}

func newTestRouter(t *testing.T) (*gin.Engine, session.Registry, *services.ConversationService) {
	t.Helper()

	registry := session.NewMemoryRegistry(time.Hour)
	svc := services.NewConversationService(
		registry,
		memory.NewMemoryTurnLog(),
		nil,
		agents.NewEmotionAnalyzer(stubLLM{}, 0),
		agents.NewContextAggregator(nil, nil, 0),
		agents.NewResponseGenerator(stubLLM{}, 0),
		0,
	)

	router := gin.New()
	router.GET("/health", HealthCheck)
	router.POST("/v1/users", CreateUser(registry))
	router.POST("/v1/sessions", CreateSession(registry))
	router.GET("/v1/sessions/:sessionId", GetSession(registry))
	router.DELETE("/v1/sessions/:sessionId", DeleteSession(svc))
	router.POST("/v1/sessions/:sessionId/messages", PostMessage(svc))
	router.GET("/v1/sessions/:sessionId/messages", GetMessages(svc))
	return router, registry, svc
}

func doJSON(router *gin.Engine, method, path string, body any) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	if body != nil {
		raw, _ := json.Marshal(body)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req, _ := http.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

// =============================================================================
// HealthCheck Tests
// =============================================================================

func TestHealthCheck_ReturnsOK(t *testing.T) {
	router, _, _ := newTestRouter(t)

	w := doJSON(router, "GET", "/health", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	var response map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	assert.Equal(t, "ok", response["status"])
}

// =============================================================================
// CreateUser Tests
// =============================================================================

func TestCreateUser_ReturnsNewID(t *testing.T) {
	router, _, _ := newTestRouter(t)

	w := doJSON(router, "POST", "/v1/users", nil)
	assert.Equal(t, http.StatusCreated, w.Code)

	var response map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	assert.NotEmpty(t, response["user_id"])
}

// =============================================================================
// CreateSession / GetSession Tests
// =============================================================================

func TestCreateSession_EmptyBody(t *testing.T) {
	router, _, _ := newTestRouter(t)

	w := doJSON(router, "POST", "/v1/sessions", nil)
	assert.Equal(t, http.StatusCreated, w.Code)

	var data datatypes.SessionData
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &data))
	assert.NotEmpty(t, data.SessionID)
	assert.NotEmpty(t, data.UserID)
	assert.True(t, data.IsNewUser)
	assert.True(t, data.IsNewSession)
}

func TestCreateSession_WithKnownUser(t *testing.T) {
	router, registry, _ := newTestRouter(t)

	userID, err := registry.CreateUser(context.Background())
	require.NoError(t, err)

	w := doJSON(router, "POST", "/v1/sessions", gin.H{"user_id": userID})
	assert.Equal(t, http.StatusCreated, w.Code)

	var data datatypes.SessionData
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &data))
	assert.Equal(t, userID, data.UserID)
	assert.False(t, data.IsNewUser)
}

func TestCreateSession_QueryParamUser(t *testing.T) {
	router, registry, _ := newTestRouter(t)

	userID, err := registry.CreateUser(context.Background())
	require.NoError(t, err)

	// No body at all: the query parameter alone binds the user.
	w := doJSON(router, "POST", "/v1/sessions?user_id="+userID, nil)
	assert.Equal(t, http.StatusCreated, w.Code)

	var data datatypes.SessionData
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &data))
	assert.Equal(t, userID, data.UserID)
	assert.False(t, data.IsNewUser)
	assert.True(t, data.IsNewSession)
}

func TestCreateSession_QueryParamWinsOverBody(t *testing.T) {
	router, registry, _ := newTestRouter(t)

	queryUser, err := registry.CreateUser(context.Background())
	require.NoError(t, err)
	bodyUser, err := registry.CreateUser(context.Background())
	require.NoError(t, err)

	w := doJSON(router, "POST", "/v1/sessions?user_id="+queryUser, gin.H{"user_id": bodyUser})
	assert.Equal(t, http.StatusCreated, w.Code)

	var data datatypes.SessionData
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &data))
	assert.Equal(t, queryUser, data.UserID)
}

func TestCreateSession_MalformedBody(t *testing.T) {
	router, _, _ := newTestRouter(t)

	req, _ := http.NewRequest("POST", "/v1/sessions", strings.NewReader("{not json"))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGetSession_ReturnsInfo(t *testing.T) {
	router, registry, _ := newTestRouter(t)

	data, err := registry.CreateSession(context.Background(), "")
	require.NoError(t, err)

	w := doJSON(router, "GET", "/v1/sessions/"+data.SessionID, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	var info datatypes.SessionInfo
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &info))
	assert.Equal(t, data.SessionID, info.SessionID)
	assert.Equal(t, data.UserID, info.UserID)
}

func TestGetSession_Unknown(t *testing.T) {
	router, _, _ := newTestRouter(t)

	w := doJSON(router, "GET", "/v1/sessions/does-not-exist", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

// =============================================================================
// PostMessage Tests
// =============================================================================

func TestPostMessage_FullTurn(t *testing.T) {
	router, registry, svc := newTestRouter(t)

	data, err := registry.CreateSession(context.Background(), "")
	require.NoError(t, err)

	w := doJSON(router, "POST", "/v1/sessions/"+data.SessionID+"/messages",
		gin.H{"message": "I feel anxious about work"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp datatypes.ConversationResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))

	assert.Equal(t, data.SessionID, resp.SessionData.SessionID)
	assert.NotEmpty(t, resp.Response)
	assert.Equal(t, "Anxiety", resp.EmotionAnalysis.PrimaryEmotion)
	assert.GreaterOrEqual(t, resp.EmotionAnalysis.Intensity, datatypes.MinIntensity)
	assert.LessOrEqual(t, resp.EmotionAnalysis.Intensity, datatypes.MaxIntensity)
	assert.Equal(t, datatypes.SafetyStandard, resp.SafetyLevel)

	// The turn shows up in history once persistence drains. History is a
	// bare ordered array of turns.
	svc.WaitForPersistence()
	w = doJSON(router, "GET", "/v1/sessions/"+data.SessionID+"/messages", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var history []datatypes.Turn
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &history))
	require.Len(t, history, 1)
	assert.Equal(t, "I feel anxious about work", history[0].Query)
}

func TestGetMessages_EmptyHistoryIsEmptyArray(t *testing.T) {
	router, registry, _ := newTestRouter(t)

	data, err := registry.CreateSession(context.Background(), "")
	require.NoError(t, err)

	w := doJSON(router, "GET", "/v1/sessions/"+data.SessionID+"/messages", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "[]", strings.TrimSpace(w.Body.String()))
}

func TestPostMessage_UnknownSessionMintsReplacement(t *testing.T) {
	router, _, _ := newTestRouter(t)

	w := doJSON(router, "POST", "/v1/sessions/expired-session/messages",
		gin.H{"message": "hello"})
	require.Equal(t, http.StatusOK, w.Code)

	var resp datatypes.ConversationResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.NotEqual(t, "expired-session", resp.SessionData.SessionID)
	assert.True(t, resp.SessionData.IsNewSession)
}

func TestPostMessage_EmptyMessage(t *testing.T) {
	router, _, _ := newTestRouter(t)

	w := doJSON(router, "POST", "/v1/sessions/s1/messages", gin.H{"message": ""})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestPostMessage_OversizedMessage(t *testing.T) {
	router, _, _ := newTestRouter(t)

	w := doJSON(router, "POST", "/v1/sessions/s1/messages",
		gin.H{"message": strings.Repeat("a", datatypes.MaxMessageBytes+1)})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestPostMessage_MalformedBody(t *testing.T) {
	router, _, _ := newTestRouter(t)

	req, _ := http.NewRequest("POST", "/v1/sessions/s1/messages", strings.NewReader("not json"))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

// =============================================================================
// GetMessages Tests
// =============================================================================

func TestGetMessages_InvalidLimit(t *testing.T) {
	router, registry, _ := newTestRouter(t)

	data, err := registry.CreateSession(context.Background(), "")
	require.NoError(t, err)

	for _, raw := range []string{"0", "-5", "abc"} {
		w := doJSON(router, "GET", "/v1/sessions/"+data.SessionID+"/messages?limit="+raw, nil)
		assert.Equal(t, http.StatusBadRequest, w.Code, "limit=%s", raw)
	}
}

func TestGetMessages_UnknownSession(t *testing.T) {
	router, _, _ := newTestRouter(t)

	w := doJSON(router, "GET", "/v1/sessions/missing/messages", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

// =============================================================================
// DeleteSession Tests
// =============================================================================

func TestDeleteSession_RemovesSession(t *testing.T) {
	router, registry, _ := newTestRouter(t)

	data, err := registry.CreateSession(context.Background(), "")
	require.NoError(t, err)

	w := doJSON(router, "DELETE", "/v1/sessions/"+data.SessionID, nil)
	require.Equal(t, http.StatusOK, w.Code)

	var response map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	assert.Equal(t, "success", response["status"])
	assert.Equal(t, data.SessionID, response["deleted_session_id"])

	w = doJSON(router, "GET", "/v1/sessions/"+data.SessionID, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestDeleteSession_Unknown(t *testing.T) {
	router, _, _ := newTestRouter(t)

	w := doJSON(router, "DELETE", "/v1/sessions/missing", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}
