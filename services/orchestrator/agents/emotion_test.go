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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/theryai/thery-go/services/llm"
	"github.com/theryai/thery-go/services/orchestrator/datatypes"
)

// =============================================================================
// Mock LLM Client
// =============================================================================

// mockLLMClient implements llm.LLMClient with a canned reply.
type mockLLMClient struct {
	Reply      string
	Err        error
	CallCount  int
	LastPrompt string
}

func (m *mockLLMClient) Generate(ctx context.Context, prompt string, params llm.GenerationParams) (string, error) {
	m.CallCount++
	m.LastPrompt = prompt
	return m.Reply, m.Err
}

const wellFormedReply = `1. Primary emotion: Anxiety
2. Intensity: 7
3. Secondary emotions: Fear, Worry
4. Emotional triggers: Work deadline, Family conflict
5. Suggested coping strategies: Deep breathing, Journaling, Talking to a friend
6. Confidence score: 0.85`

// =============================================================================
// ParseEmotionReply Tests
// =============================================================================

func TestParseEmotionReply_WellFormed(t *testing.T) {
	analysis, err := ParseEmotionReply(wellFormedReply)
	require.NoError(t, err)

	assert.Equal(t, "Anxiety", analysis.PrimaryEmotion)
	assert.Equal(t, 7, analysis.Intensity)
	assert.Equal(t, []string{"Fear", "Worry"}, analysis.SecondaryEmotions)
	assert.Equal(t, []string{"Work deadline", "Family conflict"}, analysis.Triggers)
	assert.Equal(t, []string{"Deep breathing", "Journaling", "Talking to a friend"}, analysis.CopingStrategies)
	assert.InDelta(t, 0.85, analysis.ConfidenceScore, 1e-9)
}

func TestParseEmotionReply_MissingPrimaryEmotion(t *testing.T) {
	reply := `Intensity: 7
Secondary emotions: Fear`

	_, err := ParseEmotionReply(reply)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrMissingPrimaryEmotion))
	assert.True(t, IsMissingPrimaryEmotion(err))
}

func TestParseEmotionReply_EmptyPrimaryEmotionValue(t *testing.T) {
	reply := `Primary emotion:
Intensity: 7`

	_, err := ParseEmotionReply(reply)
	assert.True(t, IsMissingPrimaryEmotion(err))
}

func TestParseEmotionReply_MissingOptionalFieldsDefault(t *testing.T) {
	analysis, err := ParseEmotionReply("Primary emotion: Sadness")
	require.NoError(t, err)

	assert.Equal(t, "Sadness", analysis.PrimaryEmotion)
	assert.Equal(t, datatypes.DefaultIntensity, analysis.Intensity)
	assert.Empty(t, analysis.SecondaryEmotions)
	assert.Empty(t, analysis.Triggers)
	assert.Empty(t, analysis.CopingStrategies)
	assert.InDelta(t, datatypes.DefaultConfidence, analysis.ConfidenceScore, 1e-9)
}

func TestParseEmotionReply_MalformedIntensityDefaults(t *testing.T) {
	reply := `Primary emotion: Anger
Intensity: very high`

	analysis, err := ParseEmotionReply(reply)
	require.NoError(t, err)
	assert.Equal(t, datatypes.DefaultIntensity, analysis.Intensity)
}

func TestParseEmotionReply_IntensityWithTrailingText(t *testing.T) {
	reply := `Primary emotion: Anger
Intensity: 8 (quite high)`

	analysis, err := ParseEmotionReply(reply)
	require.NoError(t, err)
	assert.Equal(t, 8, analysis.Intensity)
}

func TestParseEmotionReply_ClampsOutOfRangeValues(t *testing.T) {
	tests := []struct {
		name          string
		reply         string
		wantIntensity int
		wantConf      float64
	}{
		{
			name:          "intensity above max",
			reply:         "Primary emotion: Rage\nIntensity: 15\nConfidence score: 0.5",
			wantIntensity: datatypes.MaxIntensity,
			wantConf:      0.5,
		},
		{
			name:          "intensity below min",
			reply:         "Primary emotion: Calm\nIntensity: 0\nConfidence score: 0.5",
			wantIntensity: datatypes.MinIntensity,
			wantConf:      0.5,
		},
		{
			name:          "confidence above one",
			reply:         "Primary emotion: Joy\nIntensity: 3\nConfidence score: 1.7",
			wantIntensity: 3,
			wantConf:      1.0,
		},
		{
			name:          "confidence below zero",
			reply:         "Primary emotion: Joy\nIntensity: 3\nConfidence score: -0.2",
			wantIntensity: 3,
			wantConf:      0.0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			analysis, err := ParseEmotionReply(tt.reply)
			require.NoError(t, err)
			assert.Equal(t, tt.wantIntensity, analysis.Intensity)
			assert.InDelta(t, tt.wantConf, analysis.ConfidenceScore, 1e-9)
		})
	}
}

func TestParseEmotionReply_CaseInsensitiveLabels(t *testing.T) {
	reply := `PRIMARY EMOTION: Grief
INTENSITY: 6
CONFIDENCE SCORE: 0.9`

	analysis, err := ParseEmotionReply(reply)
	require.NoError(t, err)
	assert.Equal(t, "Grief", analysis.PrimaryEmotion)
	assert.Equal(t, 6, analysis.Intensity)
	assert.InDelta(t, 0.9, analysis.ConfidenceScore, 1e-9)
}

func TestParseEmotionReply_ToleratesMarkdownBullets(t *testing.T) {
	reply := `- **Primary emotion**: Loneliness
- **Intensity**: 4`

	analysis, err := ParseEmotionReply(reply)
	require.NoError(t, err)
	assert.Equal(t, "Loneliness", analysis.PrimaryEmotion)
	assert.Equal(t, 4, analysis.Intensity)
}

func TestParseEmotionReply_IgnoresUnrecognizedLines(t *testing.T) {
	reply := `Here is my analysis of the text.
Primary emotion: Frustration
Intensity: 5
Some closing remark without a colon
Random label: ignored value`

	analysis, err := ParseEmotionReply(reply)
	require.NoError(t, err)
	assert.Equal(t, "Frustration", analysis.PrimaryEmotion)
}

func TestParseEmotionReply_ListSplittingDropsEmptyEntries(t *testing.T) {
	reply := `Primary emotion: Stress
Secondary emotions: Worry, , Fatigue,`

	analysis, err := ParseEmotionReply(reply)
	require.NoError(t, err)
	assert.Equal(t, []string{"Worry", "Fatigue"}, analysis.SecondaryEmotions)
}

func TestParseEmotionReply_EmptyListValue(t *testing.T) {
	reply := `Primary emotion: Contentment
Secondary emotions:
Emotional triggers: None`

	analysis, err := ParseEmotionReply(reply)
	require.NoError(t, err)
	assert.Empty(t, analysis.SecondaryEmotions)
	assert.Equal(t, []string{"None"}, analysis.Triggers)
}

// =============================================================================
// EmotionAnalyzer Tests
// =============================================================================

func TestEmotionAnalyzer_Analyze_Success(t *testing.T) {
	mock := &mockLLMClient{Reply: wellFormedReply}
	analyzer := NewEmotionAnalyzer(mock, 0)

	analysis, err := analyzer.Analyze(context.Background(), "I feel anxious about work")
	require.NoError(t, err)

	assert.Equal(t, "Anxiety", analysis.PrimaryEmotion)
	assert.Equal(t, 1, mock.CallCount)
	assert.Contains(t, mock.LastPrompt, "I feel anxious about work")
	assert.Contains(t, mock.LastPrompt, "Primary emotion:")
}

func TestEmotionAnalyzer_Analyze_ModelError(t *testing.T) {
	mock := &mockLLMClient{Err: errors.New("backend down")}
	analyzer := NewEmotionAnalyzer(mock, 0)

	_, err := analyzer.Analyze(context.Background(), "hello")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "emotion analysis call failed")
}

func TestEmotionAnalyzer_Analyze_UnparseableReply(t *testing.T) {
	mock := &mockLLMClient{Reply: "I cannot analyze that."}
	analyzer := NewEmotionAnalyzer(mock, 0)

	_, err := analyzer.Analyze(context.Background(), "hello")
	assert.True(t, IsMissingPrimaryEmotion(err))
}
