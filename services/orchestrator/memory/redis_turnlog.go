// Copyright (C) 2025 Thery AI (hello@theryai.app)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"

	"github.com/theryai/thery-go/services/orchestrator/datatypes"
)

var turnLogTracer = otel.Tracer("thery.orchestrator.memory")

const (
	historyKeyPrefix = "history:"

	// defaultHistoryTTL matches the session TTL default so history and
	// session expire together.
	defaultHistoryTTL = 24 * time.Hour
)

// RedisTurnLog implements TurnLog on a Redis list.
//
// # Description
//
// Each session's turns live in history:{session_id} as JSON-serialized Turn
// records, RPUSHed in append order. Every append re-issues EXPIRE with the
// session TTL so history tracks the session's sliding window. Reads use a
// negative LRANGE offset to fetch only the requested tail.
type RedisTurnLog struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisTurnLog creates a turn log backed by the given Redis client.
func NewRedisTurnLog(client *redis.Client, ttl time.Duration) *RedisTurnLog {
	if ttl <= 0 {
		ttl = defaultHistoryTTL
	}
	return &RedisTurnLog{client: client, ttl: ttl}
}

// AppendTurn implements TurnLog.
func (l *RedisTurnLog) AppendTurn(ctx context.Context, sessionID string, turn *datatypes.Turn) error {
	ctx, span := turnLogTracer.Start(ctx, "RedisTurnLog.AppendTurn")
	defer span.End()

	payload, err := json.Marshal(turn)
	if err != nil {
		return fmt.Errorf("failed to serialize the turn: %w", err)
	}

	key := historyKeyPrefix + sessionID
	pipe := l.client.TxPipeline()
	pipe.RPush(ctx, key, payload)
	pipe.Expire(ctx, key, l.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to append the turn to the history log: %w", err)
	}
	slog.Debug("Appended turn to history", "sessionId", sessionID, "chatId", turn.ChatID)
	return nil
}

// RecentTurns implements TurnLog.
func (l *RedisTurnLog) RecentTurns(ctx context.Context, sessionID string, limit int) ([]datatypes.Turn, error) {
	ctx, span := turnLogTracer.Start(ctx, "RedisTurnLog.RecentTurns")
	defer span.End()

	if limit <= 0 {
		limit = datatypes.DefaultHistoryLimit
	}
	raw, err := l.client.LRange(ctx, historyKeyPrefix+sessionID, int64(-limit), -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read the history log: %w", err)
	}

	turns := make([]datatypes.Turn, 0, len(raw))
	for _, entry := range raw {
		var turn datatypes.Turn
		if err := json.Unmarshal([]byte(entry), &turn); err != nil {
			// A corrupt entry is skipped rather than poisoning the
			// whole window; the log is append-only so this cannot
			// reorder the remaining turns.
			slog.Warn("Skipping unreadable history entry", "sessionId", sessionID, "error", err)
			continue
		}
		turns = append(turns, turn)
	}
	return turns, nil
}

// RenderTranscript implements TurnLog.
func (l *RedisTurnLog) RenderTranscript(ctx context.Context, sessionID string, limit int) (string, error) {
	turns, err := l.RecentTurns(ctx, sessionID, limit)
	if err != nil {
		return "", err
	}
	return FormatTranscript(turns), nil
}

// Clear implements TurnLog.
func (l *RedisTurnLog) Clear(ctx context.Context, sessionID string) error {
	ctx, span := turnLogTracer.Start(ctx, "RedisTurnLog.Clear")
	defer span.End()

	if err := l.client.Del(ctx, historyKeyPrefix+sessionID).Err(); err != nil {
		return fmt.Errorf("failed to clear the history log: %w", err)
	}
	slog.Info("Cleared session history", "sessionId", sessionID)
	return nil
}

// Compile-time interface compliance.
var _ TurnLog = (*RedisTurnLog)(nil)
