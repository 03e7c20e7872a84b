package api

import "entomo/internal/cascade"

// FromResult converts a cascade result to its transport form.
func FromResult(r cascade.Result) Result {
	out := Result{
		RequestID:          r.RequestID,
		UsedSecondaryModel: r.UsedSecondaryModel,
		Threshold:          r.Threshold,
		TopIdentifier:      r.TopIdentifier,
		TopConfidence:      r.TopConfidence,
		PrimaryTopK:        make([]Score, 0, len(r.PrimaryTopK)),
		SecondaryRawText:   r.SecondaryRawText,
		FinalIdentifier:    r.FinalIdentifier,
		Fallback:           r.Fallback,
		FallbackReason:     r.FallbackReason,
	}
	for _, s := range r.PrimaryTopK {
		out.PrimaryTopK = append(out.PrimaryTopK, Score{ID: s.ID, Confidence: s.Confidence})
	}
	if len(r.Candidates) > 0 {
		out.Candidates = make([]Candidate, 0, len(r.Candidates))
		for _, c := range r.Candidates {
			out.Candidates = append(out.Candidates, Candidate{ID: c.ID, Index: c.Index, Confidence: c.Confidence})
		}
	}
	if !r.CompletedAt.IsZero() {
		out.CompletedAt = r.CompletedAt.UTC().Format(dateTimeFormat)
	}
	return out
}
