package cascade

// Candidate is a primary identifier offered to the secondary model.
type Candidate struct {
	ID         string  `json:"id"`
	Index      string  `json:"index"`
	Confidence float64 `json:"confidence"`
}

// SelectTopK returns the k highest-confidence entries that have a class index,
// in descending confidence order. Entries are cut to k before unindexed ones
// are dropped, so fewer than k candidates may come back. k <= 0 yields an
// empty slice.
func SelectTopK(m ConfidenceMap, k int, index IndexLookup) []Candidate {
	top := Top(m, k)
	out := make([]Candidate, 0, len(top))
	if index == nil {
		return out
	}
	for _, s := range top {
		idx, ok := index.Lookup(s.ID)
		if !ok {
			continue
		}
		out = append(out, Candidate{ID: s.ID, Index: idx, Confidence: s.Confidence})
	}
	return out
}

// Indices returns the external index of each candidate, in order.
func Indices(cands []Candidate) []string {
	out := make([]string, len(cands))
	for i, c := range cands {
		out[i] = c.Index
	}
	return out
}

// IDs returns the identifier of each candidate, in order.
func IDs(cands []Candidate) []string {
	out := make([]string, len(cands))
	for i, c := range cands {
		out[i] = c.ID
	}
	return out
}
