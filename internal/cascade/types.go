package cascade

import (
	"math"
	"sort"

	"entomo/internal/knowledge"
)

// Score is one primary classifier output: an identifier and its confidence in
// percent.
type Score struct {
	ID         string  `json:"id"`
	Confidence float64 `json:"confidence"`
}

// ConfidenceMap is the primary classifier output in the order the classifier
// produced it. Identifiers are unique.
type ConfidenceMap []Score

// NewConfidenceMap builds a map from scores, keeping the first occurrence of a
// repeated identifier.
func NewConfidenceMap(scores ...Score) ConfidenceMap {
	seen := make(map[string]struct{}, len(scores))
	out := make(ConfidenceMap, 0, len(scores))
	for _, s := range scores {
		if _, dup := seen[s.ID]; dup {
			continue
		}
		seen[s.ID] = struct{}{}
		out = append(out, s)
	}
	return out
}

// FromMap builds a ConfidenceMap from an unordered map. Entries are ordered by
// descending confidence, then identifier, so the result is deterministic.
func FromMap(values map[string]float64) ConfidenceMap {
	out := make(ConfidenceMap, 0, len(values))
	for id, conf := range values {
		out = append(out, Score{ID: id, Confidence: conf})
	}
	sort.Slice(out, func(i, j int) bool {
		if higher(out[i].Confidence, out[j].Confidence) {
			return true
		}
		if higher(out[j].Confidence, out[i].Confidence) {
			return false
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// Get returns the confidence for id.
func (m ConfidenceMap) Get(id string) (float64, bool) {
	for _, s := range m {
		if s.ID == id {
			return s.Confidence, true
		}
	}
	return 0, false
}

// Contains reports whether id is present.
func (m ConfidenceMap) Contains(id string) bool {
	_, ok := m.Get(id)
	return ok
}

// Clone returns a copy that shares nothing with m.
func (m ConfidenceMap) Clone() ConfidenceMap {
	if m == nil {
		return nil
	}
	out := make(ConfidenceMap, len(m))
	copy(out, m)
	return out
}

// Top returns at most n scores ordered by descending confidence. Equal
// confidences keep classifier order.
func Top(m ConfidenceMap, n int) []Score {
	if n <= 0 || len(m) == 0 {
		return []Score{}
	}
	sorted := m.Clone()
	sort.SliceStable(sorted, func(i, j int) bool {
		return higher(sorted[i].Confidence, sorted[j].Confidence)
	})
	if n < len(sorted) {
		sorted = sorted[:n]
	}
	return sorted
}

// higher orders confidences descending with NaN after every number.
func higher(a, b float64) bool {
	if math.IsNaN(a) {
		return false
	}
	if math.IsNaN(b) {
		return true
	}
	return a > b
}

// KnowledgeLookup resolves candidate keys to knowledge records.
type KnowledgeLookup interface {
	Record(key string) (knowledge.Record, bool)
}

// IndexLookup resolves a primary identifier to its external class index.
type IndexLookup interface {
	Lookup(id string) (string, bool)
}
