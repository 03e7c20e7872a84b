package cascade_test

import (
	"testing"

	"entomo/internal/cascade"
)

func TestReconcile(t *testing.T) {
	choices := []cascade.Choice{
		{ID: "antlion", Label: "Antlion"},
		{ID: "mantis", Label: "Praying Mantis"},
	}
	tests := []struct {
		name string
		text string
		want string
	}{
		{"label match", "I believe this is a praying mantis", "mantis"},
		{"identifier match", "mantis", "mantis"},
		{"case insensitive", "ANTLION!", "antlion"},
		{"first candidate wins", "maybe a mantis, or an antlion", "antlion"},
		{"no match", "unknown insect", "fallback"},
		{"empty", "", "fallback"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := cascade.Reconcile(tc.text, choices, "fallback"); got != tc.want {
				t.Fatalf("Reconcile(%q) = %q, want %q", tc.text, got, tc.want)
			}
		})
	}
}

func TestReconcileUnicodeFolding(t *testing.T) {
	choices := []cascade.Choice{{ID: "strasse-kaefer", Label: "Straße"}}
	if got := cascade.Reconcile("eine STRASSE", choices, "x"); got != "strasse-kaefer" {
		t.Fatalf("expected folded match, got %q", got)
	}
}

func TestReconcileResultIsAlwaysAChoiceOrFallback(t *testing.T) {
	choices := []cascade.Choice{{ID: "a", Label: "alpha"}, {ID: "b", Label: "beta"}}
	texts := []string{"alphabet", "BETA", "gamma", "", "a", "zzz"}
	for _, text := range texts {
		got := cascade.Reconcile(text, choices, "top")
		if got != "a" && got != "b" && got != "top" {
			t.Fatalf("Reconcile(%q) = %q outside candidate set", text, got)
		}
	}
}

func TestChoicesUseKnowledgeLabels(t *testing.T) {
	cands := []cascade.Candidate{{ID: "antlion", Index: "12"}, {ID: "aphid", Index: "4"}}
	got := cascade.Choices(cands, testStore())
	if got[0].Label != "antlion" || got[1].Label != "aphid" {
		t.Fatalf("unexpected labels %+v", got)
	}
}
