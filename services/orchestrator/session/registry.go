// Copyright (C) 2025 Thery AI (hello@theryai.app)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package session provides the identity and session registry.
//
// The registry issues opaque user and session identifiers and tracks session
// liveness through a sliding TTL: every validated access refreshes the
// expiry horizon, and expiry itself is enforced by the backing store's own
// TTL mechanism rather than recomputed in application logic.
//
// Two drivers exist: RedisRegistry for production and MemoryRegistry for
// tests and lightweight single-process deployments.
package session

import (
	"context"
	"errors"

	"github.com/theryai/thery-go/services/orchestrator/datatypes"
)

// ErrSessionInvalid is returned by ValidateSession when the session is
// unknown or its TTL has elapsed. Callers must treat this as "session
// expired" and mint a new session, not as a client-facing failure.
var ErrSessionInvalid = errors.New("session invalid or expired")

// Registry defines the contract for user/session identity management.
//
// # Description
//
// A session always maps to exactly one user for its entire lifetime. Users
// never expire; their existence is implied by the presence of the user
// marker key. Sessions expire after the configured TTL measured from last
// activity, not from creation.
//
// # Thread Safety
//
// Implementations must be safe for concurrent use. Concurrent validations
// of the same session are not mutually exclusive; last-writer-wins on the
// activity timestamp is the only ordering guarantee.
type Registry interface {
	// CreateUser mints a fresh globally-unique user identifier.
	CreateUser(ctx context.Context) (string, error)

	// CreateSession mints a new session bound to userID. If userID is empty
	// or unknown, a new user is minted as well and IsNewUser is set on the
	// returned SessionData. IsNewSession is always true.
	CreateSession(ctx context.Context, userID string) (datatypes.SessionData, error)

	// ValidateSession returns the user bound to sessionID and refreshes the
	// session's sliding expiry. Returns ErrSessionInvalid if the session is
	// unknown or expired.
	ValidateSession(ctx context.Context, sessionID string) (string, error)

	// SessionInfo returns stored metadata for the session without
	// refreshing its expiry. Returns ErrSessionInvalid if unknown.
	SessionInfo(ctx context.Context, sessionID string) (*datatypes.SessionInfo, error)

	// DeleteSession removes the session and its user linkage. Returns
	// ErrSessionInvalid if the session does not exist.
	DeleteSession(ctx context.Context, sessionID string) error

	// Close releases the registry's resources.
	Close() error
}

// IsSessionInvalid reports whether err signals an unknown or expired
// session. Handlers use this to map the condition to a 404 rather than a
// 500.
func IsSessionInvalid(err error) bool {
	return errors.Is(err, ErrSessionInvalid)
}
