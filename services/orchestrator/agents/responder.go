// Copyright (C) 2025 Thery AI (hello@theryai.app)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package agents

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"

	"github.com/theryai/thery-go/services/llm"
	"github.com/theryai/thery-go/services/orchestrator/datatypes"
)

var responderTracer = otel.Tracer("thery.orchestrator.agents.responder")

// ErrEmptyResponse indicates the model returned an empty reply. An empty
// assistant message is never shown to the user.
var ErrEmptyResponse = errors.New("model returned an empty response")

// IsEmptyResponse reports whether err is the empty-reply failure.
func IsEmptyResponse(err error) bool {
	return errors.Is(err, ErrEmptyResponse)
}

const responderPersona = `You are a compassionate, supportive mental wellness companion.
You are not a licensed therapist and you never claim to be one. You listen
carefully, validate feelings without judgment, and offer practical,
evidence-based coping suggestions. If the user expresses thoughts of
self-harm or crisis, gently encourage them to contact a crisis line or a
mental health professional. Keep responses warm, specific to what the user
said, and concise.`

// PromptInputs carries everything the response prompt embeds.
type PromptInputs struct {
	Query           string
	EmotionAnalysis datatypes.EmotionalAnalysis
	Context         datatypes.ContextInfo
	ChatHistory     string
}

// RenderResponsePrompt builds the final generation prompt.
//
// The four inputs are embedded verbatim under labeled sections. Rendering
// is pure so tests can assert on the exact prompt text.
func RenderResponsePrompt(in PromptInputs) string {
	var b strings.Builder
	b.WriteString(responderPersona)
	b.WriteString("\n\nGiven the following information:\n\n")
	fmt.Fprintf(&b, "User Query: %s\n\n", in.Query)
	fmt.Fprintf(&b, "Emotional Analysis: primary emotion %s (intensity %d/10, confidence %.2f)",
		in.EmotionAnalysis.PrimaryEmotion,
		in.EmotionAnalysis.Intensity,
		in.EmotionAnalysis.ConfidenceScore)
	if len(in.EmotionAnalysis.SecondaryEmotions) > 0 {
		fmt.Fprintf(&b, "; secondary emotions: %s", strings.Join(in.EmotionAnalysis.SecondaryEmotions, ", "))
	}
	if len(in.EmotionAnalysis.Triggers) > 0 {
		fmt.Fprintf(&b, "; triggers: %s", strings.Join(in.EmotionAnalysis.Triggers, ", "))
	}
	if len(in.EmotionAnalysis.CopingStrategies) > 0 {
		fmt.Fprintf(&b, "; suggested coping strategies: %s", strings.Join(in.EmotionAnalysis.CopingStrategies, ", "))
	}
	b.WriteString("\n\n")
	fmt.Fprintf(&b, "Context: %s\n\n", in.Context.CombinedContext)
	if in.ChatHistory != "" {
		fmt.Fprintf(&b, "Conversation so far:\n%s\n", in.ChatHistory)
	}
	b.WriteString(`
Generate a response that:
1. Acknowledges the emotional state
2. Provides relevant, evidence-based support
3. Incorporates context appropriately
4. Maintains a supportive and empathetic tone
5. Includes specific coping strategies when appropriate`)
	return b.String()
}

// ResponseGenerator produces the assistant's reply for a turn.
//
// # Thread Safety
//
// ResponseGenerator is safe for concurrent use.
type ResponseGenerator struct {
	client  llm.LLMClient
	timeout time.Duration
}

// NewResponseGenerator creates a generator backed by the given model client.
func NewResponseGenerator(client llm.LLMClient, timeout time.Duration) *ResponseGenerator {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &ResponseGenerator{client: client, timeout: timeout}
}

// Generate builds the response prompt and invokes the model.
//
// # Outputs
//
//   - string: The trimmed reply text. Never empty.
//   - error: Non-nil on model failure or an empty reply (ErrEmptyResponse).
func (r *ResponseGenerator) Generate(ctx context.Context, in PromptInputs) (string, error) {
	ctx, span := responderTracer.Start(ctx, "ResponseGenerator.Generate")
	defer span.End()

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	reply, err := r.client.Generate(ctx, RenderResponsePrompt(in), llm.GenerationParams{})
	if err != nil {
		return "", fmt.Errorf("response generation call failed: %w", err)
	}
	reply = strings.TrimSpace(reply)
	if reply == "" {
		return "", ErrEmptyResponse
	}
	return reply, nil
}
