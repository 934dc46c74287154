// Copyright (C) 2025 Thery AI (hello@theryai.app)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package datatypes provides data structures for the orchestrator service.
//
// This file contains the conversation domain model: the emotional analysis
// record, retrieved context, session identity flags, the immutable Turn, and
// the externally visible ConversationResponse.
package datatypes

import (
	"time"

	"github.com/google/uuid"
)

// =============================================================================
// Emotional Analysis
// =============================================================================

// Bounds and defaults for analysis fields. Malformed model output is clamped
// or defaulted into these ranges, never propagated out of range.
const (
	// MinIntensity is the lowest emotional intensity the model may report.
	MinIntensity = 1

	// MaxIntensity is the highest emotional intensity the model may report.
	MaxIntensity = 10

	// DefaultIntensity is the mid-scale fallback used when the model omits
	// or malforms the intensity field.
	DefaultIntensity = 5

	// DefaultConfidence is the fallback used when the model omits or
	// malforms the confidence score.
	DefaultConfidence = 0.5
)

// EmotionalAnalysis is the typed result of analyzing one user message.
//
// # Description
//
// Derived fresh per turn by the emotion analyzer; never persisted outside its
// owning Turn. Intensity is always within [MinIntensity, MaxIntensity] and
// ConfidenceScore within [0, 1]: the parser clamps and defaults, so consumers
// never see an out-of-range value.
//
// # Fields
//
//   - PrimaryEmotion: Required. The dominant emotion. A model reply the
//     analyzer cannot extract this field from is rejected outright.
//   - Intensity: Integer scale 1-10, defaulted to 5 when unparseable.
//   - SecondaryEmotions: Ordered list of accompanying emotions.
//   - Triggers: What appears to have provoked the emotional state.
//   - CopingStrategies: Model-suggested coping strategies.
//   - ConfidenceScore: Model self-assessed confidence in [0, 1],
//     defaulted to 0.5 when unparseable.
type EmotionalAnalysis struct {
	PrimaryEmotion    string   `json:"primary_emotion"`
	Intensity         int      `json:"intensity"`
	SecondaryEmotions []string `json:"secondary_emotions"`
	Triggers          []string `json:"triggers"`
	CopingStrategies  []string `json:"coping_strategies"`
	ConfidenceScore   float64  `json:"confidence_score"`
}

// ClampIntensity forces v into the valid intensity range.
func ClampIntensity(v int) int {
	if v < MinIntensity {
		return MinIntensity
	}
	if v > MaxIntensity {
		return MaxIntensity
	}
	return v
}

// ClampConfidence forces v into [0, 1].
func ClampConfidence(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// =============================================================================
// Retrieved Context
// =============================================================================

// ContextInfo carries the retrieved context for one query.
//
// # Description
//
// Derived fresh per turn from the two external retrieval sources. The
// combined context is always the deterministic concatenation of the web and
// vector contexts (web first, blank line, vector) and is never edited
// independently - use NewContextInfo to construct values.
type ContextInfo struct {
	Query           string `json:"query"`
	WebContext      string `json:"web_context"`
	VectorContext   string `json:"vector_context"`
	CombinedContext string `json:"combined_context"`
}

// NewContextInfo builds a ContextInfo with the combined context derived from
// its parts. Web context comes first by convention so the concatenation is
// reproducible regardless of which retrieval call finished first.
func NewContextInfo(query, webContext, vectorContext string) ContextInfo {
	return ContextInfo{
		Query:           query,
		WebContext:      webContext,
		VectorContext:   vectorContext,
		CombinedContext: webContext + "\n\n" + vectorContext,
	}
}

// =============================================================================
// Session Identity
// =============================================================================

// SessionData identifies the session a response belongs to, with flags
// telling the caller whether identity state was minted during the request.
type SessionData struct {
	UserID       string `json:"user_id"`
	SessionID    string `json:"session_id"`
	IsNewUser    bool   `json:"is_new_user"`
	IsNewSession bool   `json:"is_new_session"`
}

// SessionInfo is the stored metadata for one session.
//
// A session always maps to exactly one user for its entire lifetime. Activity
// is refreshed on every validated access; expiry is enforced by the backing
// store's own TTL mechanism, not recomputed in application logic.
type SessionInfo struct {
	SessionID  string    `json:"session_id"`
	UserID     string    `json:"user_id"`
	CreatedAt  time.Time `json:"created_at"`
	LastActive time.Time `json:"last_activity_at"`
}

// =============================================================================
// Turn
// =============================================================================

// Turn is one request/response exchange, immutable once written.
//
// # Description
//
// Appended to the per-session turn log after a successful generation; never
// updated or deleted individually, only bulk-cleared when the session ends.
// ChatID is globally unique, assigned at creation, never reused.
type Turn struct {
	ChatID             string            `json:"chat_id"`
	SessionID          string            `json:"session_id"`
	Query              string            `json:"query"`
	EmotionAnalysis    EmotionalAnalysis `json:"emotion_analysis"`
	Context            ContextInfo       `json:"context"`
	Response           string            `json:"response"`
	SafetyLevel        string            `json:"safety_level"`
	SuggestedResources []string          `json:"suggested_resources"`
	Timestamp          time.Time         `json:"timestamp"`
}

// NewTurn creates a Turn with a fresh chat ID and timestamp.
func NewTurn(sessionID, query string) *Turn {
	return &Turn{
		ChatID:    uuid.New().String(),
		SessionID: sessionID,
		Query:     query,
		Timestamp: time.Now().UTC(),
	}
}

// =============================================================================
// Conversation Response
// =============================================================================

// ConversationResponse is the externally visible result of one turn.
//
// # Description
//
// Wraps the session identity flags, the assistant's reply, the per-turn
// emotional analysis and retrieved context, the original query, a safety
// assessment, and suggested external resources. This is the shape returned
// from POST /v1/sessions/:sessionId/messages and over the chat websocket.
type ConversationResponse struct {
	SessionData        SessionData       `json:"session_data"`
	Response           string            `json:"response"`
	EmotionAnalysis    EmotionalAnalysis `json:"emotion_analysis"`
	Context            ContextInfo       `json:"context"`
	Query              string            `json:"query"`
	SafetyLevel        string            `json:"safety_level"`
	SuggestedResources []string          `json:"suggested_resources"`
}
