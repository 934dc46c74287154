// Copyright (C) 2025 Thery AI (hello@theryai.app)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package datatypes

import "testing"

// =============================================================================
// AssessSafety Tests
// =============================================================================

func TestAssessSafety_StandardTurn(t *testing.T) {
	level, resources := AssessSafety("I had a pretty good day", EmotionalAnalysis{
		PrimaryEmotion: "Contentment",
		Intensity:      3,
	})

	if level != SafetyStandard {
		t.Errorf("expected %q, got %q", SafetyStandard, level)
	}
	if len(resources) != 0 {
		t.Errorf("expected no resources for a standard turn, got %v", resources)
	}
}

func TestAssessSafety_HighIntensityElevates(t *testing.T) {
	level, resources := AssessSafety("everything is too much right now", EmotionalAnalysis{
		PrimaryEmotion: "Anxiety",
		Intensity:      8,
	})

	if level != SafetyElevated {
		t.Errorf("expected %q, got %q", SafetyElevated, level)
	}
	if len(resources) == 0 {
		t.Error("expected self-help resources for an elevated turn")
	}
}

func TestAssessSafety_IntensitySevenStaysStandard(t *testing.T) {
	level, _ := AssessSafety("rough week", EmotionalAnalysis{
		PrimaryEmotion: "Stress",
		Intensity:      7,
	})

	if level != SafetyStandard {
		t.Errorf("expected %q, got %q", SafetyStandard, level)
	}
}

func TestAssessSafety_CrisisTermInMessage(t *testing.T) {
	level, resources := AssessSafety("sometimes I think about suicide", EmotionalAnalysis{
		PrimaryEmotion: "Sadness",
		Intensity:      4,
	})

	if level != SafetyCrisis {
		t.Errorf("expected %q, got %q", SafetyCrisis, level)
	}
	if len(resources) == 0 {
		t.Error("expected crisis resources")
	}
}

func TestAssessSafety_CrisisTermInAnalysisFields(t *testing.T) {
	tests := []struct {
		name     string
		analysis EmotionalAnalysis
	}{
		{
			name:     "primary emotion",
			analysis: EmotionalAnalysis{PrimaryEmotion: "Hopelessness", Intensity: 5},
		},
		{
			name: "secondary emotions",
			analysis: EmotionalAnalysis{
				PrimaryEmotion:    "Sadness",
				Intensity:         5,
				SecondaryEmotions: []string{"Suicidal ideation"},
			},
		},
		{
			name: "triggers",
			analysis: EmotionalAnalysis{
				PrimaryEmotion: "Fear",
				Intensity:      5,
				Triggers:       []string{"urge to self-harm"},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			level, _ := AssessSafety("a neutral message", tt.analysis)
			if level != SafetyCrisis {
				t.Errorf("expected %q, got %q", SafetyCrisis, level)
			}
		})
	}
}

func TestAssessSafety_CrisisOutranksIntensity(t *testing.T) {
	level, resources := AssessSafety("I want to end my life", EmotionalAnalysis{
		PrimaryEmotion: "Despair",
		Intensity:      10,
	})

	if level != SafetyCrisis {
		t.Errorf("crisis terms must win over intensity, got %q", level)
	}
	if len(resources) == 0 {
		t.Error("expected crisis resources")
	}
}

func TestAssessSafety_MatchingIsCaseInsensitive(t *testing.T) {
	level, _ := AssessSafety("I feel HOPELESS about all of it", EmotionalAnalysis{
		PrimaryEmotion: "Sadness",
		Intensity:      4,
	})

	if level != SafetyCrisis {
		t.Errorf("expected %q, got %q", SafetyCrisis, level)
	}
}
