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
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/otel"

	"github.com/theryai/thery-go/services/llm"
	"github.com/theryai/thery-go/services/orchestrator/datatypes"
)

var emotionTracer = otel.Tracer("thery.orchestrator.agents.emotion")

// ErrMissingPrimaryEmotion indicates the model's analysis never named a
// primary emotion. Every other field degrades to a default; this one
// aborts the turn because an analysis without it is unusable downstream.
var ErrMissingPrimaryEmotion = errors.New("analysis response contained no primary emotion")

// IsMissingPrimaryEmotion reports whether err is the mandatory-field
// parse failure.
func IsMissingPrimaryEmotion(err error) bool {
	return errors.Is(err, ErrMissingPrimaryEmotion)
}

const emotionPromptTemplate = `Analyze the emotional content in the following text:
Text: %s

Provide analysis in the following format:
1. Primary emotion: [single emotion]
2. Intensity: [number between 1 and 10]
3. Secondary emotions: [comma-separated list of emotions]
4. Emotional triggers: [comma-separated list of triggers]
5. Suggested coping strategies: [comma-separated list of strategies]
6. Confidence score: [number between 0 and 1]

Example:
1. Primary emotion: Anxiety
2. Intensity: 7
3. Secondary emotions: Fear, Worry
4. Emotional triggers: Work deadline, Family conflict
5. Suggested coping strategies: Deep breathing, Journaling, Talking to a friend
6. Confidence score: 0.85`

// EmotionAnalyzer detects the emotional content of user messages.
//
// # Description
//
// EmotionAnalyzer sends the user's text to the language model with a
// fixed-format instruction prompt and parses the labeled reply into an
// EmotionalAnalysis. Numeric and list fields degrade to safe defaults
// when the model's formatting drifts; only a missing primary emotion is
// a hard failure.
//
// # Thread Safety
//
// EmotionAnalyzer is safe for concurrent use.
type EmotionAnalyzer struct {
	client  llm.LLMClient
	timeout time.Duration
}

// NewEmotionAnalyzer creates an analyzer backed by the given model client.
func NewEmotionAnalyzer(client llm.LLMClient, timeout time.Duration) *EmotionAnalyzer {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &EmotionAnalyzer{client: client, timeout: timeout}
}

// Analyze runs emotion detection on the given text.
//
// # Inputs
//
//   - ctx: Context for cancellation. A per-call timeout is layered on top.
//   - text: The user's message.
//
// # Outputs
//
//   - datatypes.EmotionalAnalysis: The parsed analysis with all fields
//     clamped into their declared ranges.
//   - error: Non-nil if the model call fails or the reply names no
//     primary emotion (ErrMissingPrimaryEmotion).
func (a *EmotionAnalyzer) Analyze(ctx context.Context, text string) (datatypes.EmotionalAnalysis, error) {
	ctx, span := emotionTracer.Start(ctx, "EmotionAnalyzer.Analyze")
	defer span.End()

	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	prompt := fmt.Sprintf(emotionPromptTemplate, text)
	reply, err := a.client.Generate(ctx, prompt, llm.GenerationParams{})
	if err != nil {
		return datatypes.EmotionalAnalysis{}, fmt.Errorf("emotion analysis call failed: %w", err)
	}

	return ParseEmotionReply(reply)
}

// ParseEmotionReply parses a labeled analysis reply into a typed record.
//
// # Description
//
// The reply is split into lines and each line on its first colon. The
// left side is matched case-insensitively against the six expected field
// names as a substring, so numbering, markdown bullets, and reordering
// are all tolerated. Unrecognized lines are ignored.
//
// Failure policy is deliberately asymmetric: intensity defaults to 5 and
// confidence to 0.5 when absent or malformed, list fields default to
// empty, but a reply that never names a primary emotion fails outright.
func ParseEmotionReply(reply string) (datatypes.EmotionalAnalysis, error) {
	analysis := datatypes.EmotionalAnalysis{
		Intensity:         datatypes.DefaultIntensity,
		SecondaryEmotions: []string{},
		Triggers:          []string{},
		CopingStrategies:  []string{},
		ConfidenceScore:   datatypes.DefaultConfidence,
	}

	for _, line := range strings.Split(reply, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		label, value, found := strings.Cut(line, ":")
		if !found {
			continue
		}
		label = strings.ToLower(label)
		value = strings.TrimSpace(value)

		switch {
		case strings.Contains(label, "primary emotion"):
			if value != "" {
				analysis.PrimaryEmotion = value
			}
		case strings.Contains(label, "intensity"):
			analysis.Intensity = parseIntField(value, datatypes.DefaultIntensity)
		case strings.Contains(label, "secondary emotions"):
			analysis.SecondaryEmotions = splitList(value)
		case strings.Contains(label, "triggers"):
			analysis.Triggers = splitList(value)
		case strings.Contains(label, "coping strategies"):
			analysis.CopingStrategies = splitList(value)
		case strings.Contains(label, "confidence"):
			analysis.ConfidenceScore = parseFloatField(value, datatypes.DefaultConfidence)
		}
	}

	if analysis.PrimaryEmotion == "" {
		return datatypes.EmotionalAnalysis{}, ErrMissingPrimaryEmotion
	}

	analysis.Intensity = datatypes.ClampIntensity(analysis.Intensity)
	analysis.ConfidenceScore = datatypes.ClampConfidence(analysis.ConfidenceScore)
	return analysis, nil
}

// parseIntField reads the leading integer from a value like "7" or
// "7 (high)". Returns the fallback on any parse failure.
func parseIntField(value string, fallback int) int {
	fields := strings.Fields(value)
	if len(fields) == 0 {
		return fallback
	}
	n, err := strconv.Atoi(strings.TrimRight(fields[0], ".,/"))
	if err != nil {
		return fallback
	}
	return n
}

func parseFloatField(value string, fallback float64) float64 {
	fields := strings.Fields(value)
	if len(fields) == 0 {
		return fallback
	}
	f, err := strconv.ParseFloat(strings.TrimRight(fields[0], ".,"), 64)
	if err != nil {
		return fallback
	}
	return f
}

// splitList splits a comma-separated value, trimming whitespace and
// dropping empty entries.
func splitList(value string) []string {
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		out = append(out, p)
	}
	return out
}
