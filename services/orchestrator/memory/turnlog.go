// Copyright (C) 2025 Thery AI (hello@theryai.app)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package memory provides the per-session turn history store and the
// secondary conversation-memory sink.
//
// The turn log is an append-only, TTL-bounded record of past turns used to
// reconstruct conversational context for prompting. The vector memory sink
// additionally writes each turn into Weaviate so later sessions can retrieve
// semantically related exchanges.
package memory

import (
	"context"
	"fmt"
	"strings"

	"github.com/theryai/thery-go/services/orchestrator/datatypes"
)

// TurnLog defines the contract for per-session turn history.
//
// # Description
//
// Turns are appended in arrival order and retrieved oldest-first within the
// requested window. The log's TTL is refreshed on every append so history
// does not outlive its session by more than a bounded grace period.
//
// # Failure Semantics
//
// Backend unavailability on append or read is a hard failure surfaced to the
// caller - losing history silently would corrupt downstream prompt
// construction. RenderTranscript is the one exception: an empty or missing
// session renders as an empty string, never an error.
type TurnLog interface {
	// AppendTurn adds turn to the end of the session's log and refreshes
	// the log's TTL.
	AppendTurn(ctx context.Context, sessionID string, turn *datatypes.Turn) error

	// RecentTurns returns the most recent limit turns in chronological
	// order, oldest of the selected window first.
	RecentTurns(ctx context.Context, sessionID string, limit int) ([]datatypes.Turn, error)

	// RenderTranscript formats the most recent limit turns into a
	// human-readable transcript for prompt inclusion. Returns "" for an
	// empty or unknown session.
	RenderTranscript(ctx context.Context, sessionID string, limit int) (string, error)

	// Clear deletes all turns for the session.
	Clear(ctx context.Context, sessionID string) error
}

// FormatTranscript renders turns oldest-first into the transcript shape the
// response prompt expects:
//
//	User: ...
//	Assistant: ...
//	Emotions: ... (Intensity: ...)
//
// Pure function; both drivers share it so the rendering never diverges from
// what the tests assert.
func FormatTranscript(turns []datatypes.Turn) string {
	if len(turns) == 0 {
		return ""
	}
	var b strings.Builder
	for _, turn := range turns {
		fmt.Fprintf(&b, "User: %s\n", turn.Query)
		fmt.Fprintf(&b, "Assistant: %s\n", turn.Response)
		fmt.Fprintf(&b, "Emotions: %s (Intensity: %d)\n",
			turn.EmotionAnalysis.PrimaryEmotion, turn.EmotionAnalysis.Intensity)
	}
	return b.String()
}
