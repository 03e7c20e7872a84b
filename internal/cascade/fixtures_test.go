package cascade_test

import (
	"context"
	"sync"
	"time"

	"entomo/internal/cascade"
	"entomo/internal/knowledge"
	"entomo/internal/services/vlm"
)

var testImage = vlm.NewImage("bug.png", "image/png", []byte{0x89, 'P', 'N', 'G'})

func testIndex() knowledge.ClassIndex {
	return knowledge.ClassIndex{"antlion": "12", "mantis": "7", "aphid": "4"}
}

func testStore() *knowledge.Store {
	return knowledge.NewStore(map[string]knowledge.Record{
		"12": {Label: "antlion", VisualDescription: "Long slender wings with dense venation."},
		"7":  {Label: "mantis", VisualDescription: "Raptorial forelegs held folded."},
	})
}

func scores(pairs ...any) cascade.ConfidenceMap {
	out := make([]cascade.Score, 0, len(pairs)/2)
	for i := 0; i+1 < len(pairs); i += 2 {
		out = append(out, cascade.Score{ID: pairs[i].(string), Confidence: float64(pairs[i+1].(int))})
	}
	return cascade.NewConfidenceMap(out...)
}

type fakeModel struct {
	mu      sync.Mutex
	text    string
	err     error
	prompts []string
}

func (f *fakeModel) Generate(_ context.Context, prompt string, _ vlm.Image) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.prompts = append(f.prompts, prompt)
	return f.text, f.err
}

func (f *fakeModel) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.prompts)
}

type countingRecorder struct {
	mu        sync.Mutex
	outcomes  []cascade.Outcome
	secondary int
	failures  int
}

func (r *countingRecorder) ObserveOutcome(o cascade.Outcome) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.outcomes = append(r.outcomes, o)
}

func (r *countingRecorder) ObserveSecondary(_ time.Duration, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.secondary++
	if err != nil {
		r.failures++
	}
}
