package cascade

import (
	"strconv"
	"strings"
)

const (
	promptPreamble = "I'm showing you an image of an insect. " +
		"Your task is to identify which type of insect this is from the provided candidates, " +
		"using both the visual appearance and the knowledge provided about each candidate. " +
		"YOUR OUTPUT should be just the insect candidate name, no need of any justification.\n\n" +
		"Candidates:\n"
	promptClosing = "\nAnalyze the image carefully and compare the visual characteristics of the insect " +
		"with the knowledge provided for each candidate. " +
		"Then, give your prediction on which candidate is most likely correct. " +
		"YOUR OUTPUT should be just the insect candidate name, no need of any justification."
	noKnowledge = "No specific visual knowledge available for this candidate."
)

// BuildPrompt renders the secondary-model prompt for keys in the given order.
// Each key is listed by its knowledge label, or by the key itself when the
// store has no label, followed by its visual knowledge line. The output is a
// pure function of its inputs.
func BuildPrompt(keys []string, store KnowledgeLookup) string {
	var sb strings.Builder
	sb.WriteString(promptPreamble)
	for i, key := range keys {
		label, desc := key, noKnowledge
		if store != nil {
			if rec, ok := store.Record(key); ok {
				if rec.Label != "" {
					label = rec.Label
				}
				if rec.VisualDescription != "" {
					desc = rec.VisualDescription
				}
			}
		}
		sb.WriteString(strconv.Itoa(i + 1))
		sb.WriteString(". ")
		sb.WriteString(label)
		sb.WriteString("\nKnowledge: ")
		sb.WriteString(desc)
		sb.WriteString("\n\n")
	}
	sb.WriteString(promptClosing)
	return sb.String()
}
