// Copyright (C) 2025 Thery AI (hello@theryai.app)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// This file contains request types and limits for the conversation
// endpoints.

package datatypes

import (
	"github.com/go-playground/validator/v10"
)

// =============================================================================
// Limits
// =============================================================================

const (
	// MaxMessageBytes is the maximum size of a single user message.
	// Larger payloads are rejected before any model call is made.
	MaxMessageBytes = 32 * 1024 // 32KB

	// MaxHistoryLimit caps how many prior turns a caller may request.
	MaxHistoryLimit = 100

	// DefaultHistoryLimit is the window used when the caller does not
	// specify one.
	DefaultHistoryLimit = 10
)

// =============================================================================
// Shared Validator Instance
// =============================================================================

// conversationValidate is the validator instance for conversation datatypes.
// Initialized in init() with custom validators.
var conversationValidate *validator.Validate

func init() {
	conversationValidate = validator.New()
	_ = conversationValidate.RegisterValidation("maxbytes", validateMaxBytes)
}

// validateMaxBytes enforces MaxMessageBytes on a string field. Checks byte
// length, not rune count, so oversized multi-byte payloads are caught too.
func validateMaxBytes(fl validator.FieldLevel) bool {
	return len(fl.Field().String()) <= MaxMessageBytes
}

// =============================================================================
// Message Request
// =============================================================================

// MessageRequest is the body of POST /v1/sessions/:sessionId/messages.
//
// # Description
//
// Carries one user message for the session in the URL. The session itself is
// resolved server-side; expired or unknown sessions are reported via the
// response flags, not rejected.
//
// # Validation
//
//   - Message: required, non-empty, at most 32KB (maxbytes)
type MessageRequest struct {
	Message string `json:"message" validate:"required,min=1,maxbytes"`
}

// Validate validates the MessageRequest fields.
//
// # Outputs
//
//   - error: Non-nil if validation failed, with details about which field.
func (r *MessageRequest) Validate() error {
	return conversationValidate.Struct(r)
}
