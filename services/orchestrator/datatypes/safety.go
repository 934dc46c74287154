// Copyright (C) 2025 Thery AI (hello@theryai.app)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package datatypes

import "strings"

// =============================================================================
// Safety Assessment
// =============================================================================

// Safety levels attached to every turn. The assessment is a deterministic
// function of the emotional analysis, not a model call, so it cannot fail and
// cannot be skipped.
const (
	SafetyStandard = "standard"
	SafetyElevated = "elevated"
	SafetyCrisis   = "crisis"
)

// crisisTerms are scanned against the raw user message plus the primary
// emotion, secondary emotions, and triggers. Any hit escalates the turn
// to crisis level.
var crisisTerms = []string{
	"suicide",
	"suicidal",
	"self-harm",
	"self harm",
	"kill myself",
	"end my life",
	"hopeless",
}

// crisisResources are surfaced whenever a turn is assessed at crisis level.
var crisisResources = []string{
	"988 Suicide & Crisis Lifeline (call or text 988)",
	"Crisis Text Line (text HOME to 741741)",
	"International Association for Suicide Prevention: https://www.iasp.info/resources/Crisis_Centres/",
}

// elevatedResources are surfaced for high-intensity but non-crisis turns.
var elevatedResources = []string{
	"Grounding exercise: name 5 things you can see, 4 you can touch, 3 you can hear",
	"NAMI HelpLine: 1-800-950-6264",
}

// AssessSafety derives a safety level and resource list for a turn.
//
// # Description
//
// Escalation rules, checked in order:
//  1. Any crisis term in the user's message, the primary emotion, the
//     secondary emotions, or the triggers -> crisis, with crisis-line
//     resources.
//  2. Intensity at or above 8 -> elevated, with self-help resources.
//  3. Otherwise -> standard, no resources.
//
// # Inputs
//
//   - message: The raw user message for this turn.
//   - analysis: A fully parsed EmotionalAnalysis. Intensity is assumed to be
//     within its declared range (the parser guarantees this).
//
// # Outputs
//
//   - string: One of SafetyStandard, SafetyElevated, SafetyCrisis.
//   - []string: Suggested external resources; empty for standard turns.
func AssessSafety(message string, analysis EmotionalAnalysis) (string, []string) {
	if containsCrisisTerm(message, analysis) {
		return SafetyCrisis, crisisResources
	}
	if analysis.Intensity >= 8 {
		return SafetyElevated, elevatedResources
	}
	return SafetyStandard, []string{}
}

func containsCrisisTerm(message string, analysis EmotionalAnalysis) bool {
	fields := make([]string, 0, 2+len(analysis.SecondaryEmotions)+len(analysis.Triggers))
	fields = append(fields, message, analysis.PrimaryEmotion)
	fields = append(fields, analysis.SecondaryEmotions...)
	fields = append(fields, analysis.Triggers...)

	for _, field := range fields {
		lower := strings.ToLower(field)
		for _, term := range crisisTerms {
			if strings.Contains(lower, term) {
				return true
			}
		}
	}
	return false
}
