package cascade

import (
	"strings"

	"golang.org/x/text/cases"
)

// Choice is a candidate as the secondary model sees it: the identifier to
// return and the label printed in the prompt.
type Choice struct {
	ID    string
	Label string
}

// Choices pairs each candidate with its prompt label. The label comes from the
// knowledge record keyed by the candidate's index and falls back to the
// identifier.
func Choices(cands []Candidate, store KnowledgeLookup) []Choice {
	out := make([]Choice, len(cands))
	for i, c := range cands {
		label := c.ID
		if store != nil {
			if rec, ok := store.Record(c.Index); ok && rec.Label != "" {
				label = rec.Label
			}
		}
		out[i] = Choice{ID: c.ID, Label: label}
	}
	return out
}

// Match returns the first choice, in order, whose label or identifier occurs
// in text under Unicode case folding.
func Match(text string, choices []Choice) (string, bool) {
	if strings.TrimSpace(text) == "" {
		return "", false
	}
	// A Caser keeps state, so each call gets its own.
	fold := cases.Fold()
	folded := fold.String(text)
	for _, c := range choices {
		for _, needle := range []string{c.Label, c.ID} {
			if needle == "" {
				continue
			}
			if strings.Contains(folded, fold.String(needle)) {
				return c.ID, true
			}
		}
	}
	return "", false
}

// Reconcile maps free text from the secondary model back to a candidate
// identifier, returning fallback when no candidate is named.
func Reconcile(text string, choices []Choice, fallback string) string {
	if id, ok := Match(text, choices); ok {
		return id
	}
	return fallback
}
