package cascade_test

import (
	"strings"
	"testing"

	"entomo/internal/cascade"
)

func TestBuildPromptLayout(t *testing.T) {
	prompt := cascade.BuildPrompt([]string{"12", "99"}, testStore())

	want := "I'm showing you an image of an insect. Your task is to identify which type of insect this is from the provided candidates, " +
		"using both the visual appearance and the knowledge provided about each candidate. " +
		"YOUR OUTPUT should be just the insect candidate name, no need of any justification.\n\n" +
		"Candidates:\n" +
		"1. antlion\n" +
		"Knowledge: Long slender wings with dense venation.\n\n" +
		"2. 99\n" +
		"Knowledge: No specific visual knowledge available for this candidate.\n\n" +
		"\nAnalyze the image carefully and compare the visual characteristics of the insect with the knowledge provided for each candidate. " +
		"Then, give your prediction on which candidate is most likely correct. " +
		"YOUR OUTPUT should be just the insect candidate name, no need of any justification."
	if prompt != want {
		t.Fatalf("unexpected prompt:\n%s", prompt)
	}
}

func TestBuildPromptDeterministic(t *testing.T) {
	keys := []string{"7", "12", "4"}
	first := cascade.BuildPrompt(keys, testStore())
	for i := 0; i < 10; i++ {
		if again := cascade.BuildPrompt(keys, testStore()); again != first {
			t.Fatal("prompt differs between identical calls")
		}
	}
	if strings.Index(first, "1. mantis") > strings.Index(first, "2. antlion") {
		t.Fatal("candidates not listed in input order")
	}
}

func TestBuildPromptWithoutStore(t *testing.T) {
	prompt := cascade.BuildPrompt([]string{"mantis"}, nil)
	if !strings.Contains(prompt, "1. mantis\nKnowledge: No specific visual knowledge available for this candidate.\n\n") {
		t.Fatalf("expected raw key and fallback knowledge, got:\n%s", prompt)
	}
}
