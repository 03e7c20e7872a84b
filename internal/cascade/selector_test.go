package cascade_test

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"entomo/internal/cascade"
	"entomo/internal/knowledge"
)

func TestSelectTopK(t *testing.T) {
	m := scores("aphid", 10, "antlion", 60, "weevil", 58, "mantis", 55)
	tests := []struct {
		name string
		k    int
		want []cascade.Candidate
	}{
		{
			name: "drops unindexed after truncation",
			k:    2,
			want: []cascade.Candidate{{ID: "antlion", Index: "12", Confidence: 60}},
		},
		{
			name: "k larger than map",
			k:    10,
			want: []cascade.Candidate{
				{ID: "antlion", Index: "12", Confidence: 60},
				{ID: "mantis", Index: "7", Confidence: 55},
				{ID: "aphid", Index: "4", Confidence: 10},
			},
		},
		{name: "zero k", k: 0, want: []cascade.Candidate{}},
		{name: "negative k", k: -3, want: []cascade.Candidate{}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := cascade.SelectTopK(m, tc.k, testIndex())
			if diff := cmp.Diff(tc.want, got); diff != "" {
				t.Fatalf("SelectTopK mismatch (-want +got):\n%s", diff)
			}
			if tc.k > 0 && len(got) > tc.k {
				t.Fatalf("returned %d candidates for k=%d", len(got), tc.k)
			}
		})
	}
}

func TestSelectTopKOrderAndInputUntouched(t *testing.T) {
	index := knowledge.ClassIndex{"a": "1", "b": "2", "c": "3", "d": "4"}
	m := scores("a", 5, "b", 30, "c", 30, "d", 90)
	before := m.Clone()

	got := cascade.SelectTopK(m, 4, index)
	if diff := cmp.Diff([]string{"d", "b", "c", "a"}, cascade.IDs(got)); diff != "" {
		t.Fatalf("order mismatch (-want +got):\n%s", diff)
	}
	for i := 1; i < len(got); i++ {
		if got[i].Confidence > got[i-1].Confidence {
			t.Fatalf("not descending: %v", got)
		}
	}
	if diff := cmp.Diff([]string{"4", "2", "3", "1"}, cascade.Indices(got)); diff != "" {
		t.Fatalf("indices mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(before, m); diff != "" {
		t.Fatalf("input mutated (-before +after):\n%s", diff)
	}
}

func TestSelectTopKWithoutIndex(t *testing.T) {
	if got := cascade.SelectTopK(scores("a", 5), 3, nil); len(got) != 0 {
		t.Fatalf("expected no candidates without an index, got %v", got)
	}
}
