// Copyright (C) 2025 Thery AI (hello@theryai.app)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package session

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"

	"github.com/theryai/thery-go/services/orchestrator/datatypes"
)

var redisTracer = otel.Tracer("thery.orchestrator.session")

// Key prefixes for the session layout. Per-session state lives in a hash
// with a TTL; user markers have no TTL.
const (
	userKeyPrefix     = "user:"
	sessionKeyPrefix  = "session:"
	userSessionSuffix = ":sessions"

	// defaultSessionTTL is used when the caller passes a non-positive TTL.
	defaultSessionTTL = 24 * time.Hour
)

// RedisRegistry implements Registry on a Redis key-value store.
//
// # Description
//
// Layout:
//
//	user:{user_id}           -> "1" (existence marker, no TTL)
//	user:{user_id}:sessions  -> set of session ids
//	session:{session_id}     -> hash {user_id, created_at, activity}, EXPIRE ttl
//
// Sliding expiry is delegated entirely to Redis: ValidateSession rewrites
// the activity field and re-issues EXPIRE, so an idle session disappears on
// its own without any cleanup loop.
//
// # Thread Safety
//
// Safe for concurrent use; go-redis clients are goroutine-safe.
type RedisRegistry struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisRegistry creates a registry backed by the given Redis client.
// The client's lifecycle is owned by the caller's startup/shutdown sequence;
// Close here does not close the shared client.
func NewRedisRegistry(client *redis.Client, ttl time.Duration) *RedisRegistry {
	if ttl <= 0 {
		ttl = defaultSessionTTL
	}
	return &RedisRegistry{client: client, ttl: ttl}
}

// CreateUser implements Registry.
func (r *RedisRegistry) CreateUser(ctx context.Context) (string, error) {
	ctx, span := redisTracer.Start(ctx, "RedisRegistry.CreateUser")
	defer span.End()

	userID := uuid.New().String()
	if err := r.client.Set(ctx, userKeyPrefix+userID, "1", 0).Err(); err != nil {
		return "", fmt.Errorf("failed to store the user marker: %w", err)
	}
	slog.Info("Created new user", "userId", userID)
	return userID, nil
}

// CreateSession implements Registry.
//
// If userID refers to a known user it is reused; an unknown or empty userID
// mints a fresh user. The session hash and its TTL are written atomically
// via a pipeline.
func (r *RedisRegistry) CreateSession(ctx context.Context, userID string) (datatypes.SessionData, error) {
	ctx, span := redisTracer.Start(ctx, "RedisRegistry.CreateSession")
	defer span.End()

	isNewUser := false
	if userID != "" {
		exists, err := r.client.Exists(ctx, userKeyPrefix+userID).Result()
		if err != nil {
			return datatypes.SessionData{}, fmt.Errorf("failed to check user existence: %w", err)
		}
		if exists == 0 {
			userID = ""
		}
	}
	if userID == "" {
		var err error
		userID, err = r.CreateUser(ctx)
		if err != nil {
			return datatypes.SessionData{}, err
		}
		isNewUser = true
	}

	sessionID := uuid.New().String()
	now := time.Now().UTC()
	key := sessionKeyPrefix + sessionID

	pipe := r.client.TxPipeline()
	pipe.HSet(ctx, key, map[string]interface{}{
		"user_id":    userID,
		"created_at": strconv.FormatInt(now.UnixMilli(), 10),
		"activity":   strconv.FormatInt(now.UnixMilli(), 10),
	})
	pipe.Expire(ctx, key, r.ttl)
	pipe.SAdd(ctx, userKeyPrefix+userID+userSessionSuffix, sessionID)
	if _, err := pipe.Exec(ctx); err != nil {
		return datatypes.SessionData{}, fmt.Errorf("failed to store the session hash: %w", err)
	}

	slog.Info("Created new session", "sessionId", sessionID, "userId", userID, "newUser", isNewUser)
	return datatypes.SessionData{
		UserID:       userID,
		SessionID:    sessionID,
		IsNewUser:    isNewUser,
		IsNewSession: true,
	}, nil
}

// ValidateSession implements Registry.
//
// Every successful validation rewrites the activity timestamp and re-issues
// EXPIRE, sliding the expiry horizon forward.
func (r *RedisRegistry) ValidateSession(ctx context.Context, sessionID string) (string, error) {
	ctx, span := redisTracer.Start(ctx, "RedisRegistry.ValidateSession")
	defer span.End()

	key := sessionKeyPrefix + sessionID
	userID, err := r.client.HGet(ctx, key, "user_id").Result()
	if err == redis.Nil {
		return "", ErrSessionInvalid
	}
	if err != nil {
		return "", fmt.Errorf("failed to look up the session: %w", err)
	}

	pipe := r.client.TxPipeline()
	pipe.HSet(ctx, key, "activity", strconv.FormatInt(time.Now().UTC().UnixMilli(), 10))
	pipe.Expire(ctx, key, r.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		// The lookup succeeded; losing the refresh only shortens the
		// sliding window, so log rather than fail the validation.
		slog.Warn("Failed to refresh session activity", "sessionId", sessionID, "error", err)
	}
	return userID, nil
}

// SessionInfo implements Registry.
func (r *RedisRegistry) SessionInfo(ctx context.Context, sessionID string) (*datatypes.SessionInfo, error) {
	ctx, span := redisTracer.Start(ctx, "RedisRegistry.SessionInfo")
	defer span.End()

	fields, err := r.client.HGetAll(ctx, sessionKeyPrefix+sessionID).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read the session hash: %w", err)
	}
	if len(fields) == 0 {
		return nil, ErrSessionInvalid
	}

	info := &datatypes.SessionInfo{
		SessionID: sessionID,
		UserID:    fields["user_id"],
	}
	if ms, err := strconv.ParseInt(fields["created_at"], 10, 64); err == nil {
		info.CreatedAt = time.UnixMilli(ms).UTC()
	}
	if ms, err := strconv.ParseInt(fields["activity"], 10, 64); err == nil {
		info.LastActive = time.UnixMilli(ms).UTC()
	}
	return info, nil
}

// DeleteSession implements Registry.
func (r *RedisRegistry) DeleteSession(ctx context.Context, sessionID string) error {
	ctx, span := redisTracer.Start(ctx, "RedisRegistry.DeleteSession")
	defer span.End()

	key := sessionKeyPrefix + sessionID
	userID, err := r.client.HGet(ctx, key, "user_id").Result()
	if err == redis.Nil {
		return ErrSessionInvalid
	}
	if err != nil {
		return fmt.Errorf("failed to look up the session for deletion: %w", err)
	}

	pipe := r.client.TxPipeline()
	pipe.Del(ctx, key)
	pipe.SRem(ctx, userKeyPrefix+userID+userSessionSuffix, sessionID)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to delete the session: %w", err)
	}
	slog.Info("Deleted session", "sessionId", sessionID, "userId", userID)
	return nil
}

// Close implements Registry. The Redis client is shared process-wide and
// closed by the owning service, not here.
func (r *RedisRegistry) Close() error {
	return nil
}

// Compile-time interface compliance.
var _ Registry = (*RedisRegistry)(nil)
