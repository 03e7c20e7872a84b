package cascade

import "math"

// GateDecision is the outcome of the confidence gate.
type GateDecision struct {
	SkipSecondary bool
	TopID         string
	TopConfidence float64
}

// Decide picks the highest-confidence identifier and reports whether it
// clears tau. The comparison is strict: a top confidence equal to tau
// escalates. Ties go to the identifier listed first. NaN confidences never
// win unless every confidence is NaN.
func Decide(m ConfidenceMap, tau float64) (GateDecision, error) {
	if len(m) == 0 {
		return GateDecision{}, &EmptyInputError{Op: "confidence gate"}
	}
	best := -1
	for i, s := range m {
		if math.IsNaN(s.Confidence) {
			continue
		}
		if best < 0 || s.Confidence > m[best].Confidence {
			best = i
		}
	}
	if best < 0 {
		best = 0
	}
	top := m[best]
	return GateDecision{
		SkipSecondary: top.Confidence > tau,
		TopID:         top.ID,
		TopConfidence: top.Confidence,
	}, nil
}
