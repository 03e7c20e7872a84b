package cascade_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"entomo/internal/cascade"
	"entomo/internal/services/vlm"
)

func TestClassifySkipsSecondaryAboveThreshold(t *testing.T) {
	model := &fakeModel{text: "mantis"}
	rec := &countingRecorder{}
	orch := cascade.NewOrchestrator(testStore(), testIndex(), model, cascade.WithRecorder(rec))

	result, err := orch.Classify(context.Background(), cascade.Request{
		Image:     testImage,
		Scores:    scores("antlion", 85, "mantis", 40),
		TopK:      2,
		Threshold: 70,
	})
	if err != nil {
		t.Fatalf("Classify: %v", err)
	}
	if result.UsedSecondaryModel {
		t.Fatal("expected secondary model to be skipped")
	}
	if result.FinalIdentifier != "antlion" {
		t.Fatalf("final = %q, want antlion", result.FinalIdentifier)
	}
	if model.calls() != 0 {
		t.Fatalf("secondary model called %d times", model.calls())
	}
	if result.RequestID == "" {
		t.Fatal("expected generated request id")
	}
	if diff := cmp.Diff([]cascade.Outcome{cascade.OutcomePrimary}, rec.outcomes); diff != "" {
		t.Fatalf("outcomes mismatch (-want +got):\n%s", diff)
	}
}

func TestClassifyReconcilesSecondaryAnswer(t *testing.T) {
	model := &fakeModel{text: "I believe this is a mantis"}
	orch := cascade.NewOrchestrator(testStore(), testIndex(), model)

	result, err := orch.Classify(context.Background(), cascade.Request{
		Image:     testImage,
		Scores:    scores("antlion", 60, "mantis", 55, "aphid", 10),
		TopK:      2,
		Threshold: 70,
	})
	if err != nil {
		t.Fatalf("Classify: %v", err)
	}
	if !result.UsedSecondaryModel {
		t.Fatal("expected secondary model to be used")
	}
	if result.FinalIdentifier != "mantis" {
		t.Fatalf("final = %q, want mantis", result.FinalIdentifier)
	}
	if result.Fallback {
		t.Fatal("did not expect fallback")
	}
	if result.SecondaryRawText != "I believe this is a mantis" {
		t.Fatalf("unexpected raw text %q", result.SecondaryRawText)
	}
	if diff := cmp.Diff([]string{"antlion", "mantis"}, cascade.IDs(result.Candidates)); diff != "" {
		t.Fatalf("candidates mismatch (-want +got):\n%s", diff)
	}
	if len(model.prompts) != 1 || model.prompts[0] != result.Prompt {
		t.Fatal("prompt sent to the model differs from the recorded prompt")
	}
	if !strings.Contains(result.Prompt, "1. antlion\n") || !strings.Contains(result.Prompt, "2. mantis\n") {
		t.Fatalf("prompt does not list candidates in order:\n%s", result.Prompt)
	}
	if strings.Contains(result.Prompt, "aphid") {
		t.Fatal("prompt lists a candidate outside top-K")
	}
}

func TestClassifyFallsBackWhenNoCandidateNamed(t *testing.T) {
	rec := &countingRecorder{}
	orch := cascade.NewOrchestrator(testStore(), testIndex(), &fakeModel{text: "unknown insect"}, cascade.WithRecorder(rec))

	result, err := orch.Classify(context.Background(), cascade.Request{
		Image:     testImage,
		Scores:    scores("antlion", 60, "mantis", 55, "aphid", 10),
		TopK:      2,
		Threshold: 70,
	})
	if err != nil {
		t.Fatalf("Classify: %v", err)
	}
	if result.FinalIdentifier != "antlion" || !result.Fallback {
		t.Fatalf("expected fallback to antlion, got %q (fallback=%v)", result.FinalIdentifier, result.Fallback)
	}
	if rec.outcomes[0] != cascade.OutcomeFallback {
		t.Fatalf("unexpected outcome %v", rec.outcomes)
	}
}

func TestClassifyRecoversFromSecondaryFailure(t *testing.T) {
	rec := &countingRecorder{}
	orch := cascade.NewOrchestrator(testStore(), testIndex(), &fakeModel{err: errors.New("model crashed")}, cascade.WithRecorder(rec))

	result, err := orch.Classify(context.Background(), cascade.Request{
		Image:     testImage,
		Scores:    scores("antlion", 60, "mantis", 55, "aphid", 10),
		TopK:      2,
		Threshold: 70,
	})
	var secErr *cascade.SecondaryModelError
	if !errors.As(err, &secErr) {
		t.Fatalf("expected *SecondaryModelError, got %v", err)
	}
	if result.FinalIdentifier != "antlion" {
		t.Fatalf("final = %q, want antlion", result.FinalIdentifier)
	}
	if result.SecondaryRawText != "Error: model crashed" {
		t.Fatalf("unexpected raw text %q", result.SecondaryRawText)
	}
	if !result.UsedSecondaryModel || !result.Fallback {
		t.Fatalf("unexpected flags %+v", result)
	}
	if rec.failures != 1 {
		t.Fatalf("expected one failed secondary observation, got %d", rec.failures)
	}
}

func TestClassifyWithoutIndexedCandidates(t *testing.T) {
	model := &fakeModel{text: "mantis"}
	orch := cascade.NewOrchestrator(testStore(), nil, model)

	result, err := orch.Classify(context.Background(), cascade.Request{
		Image:     testImage,
		Scores:    scores("weevil", 30),
		TopK:      3,
		Threshold: 70,
	})
	if !errors.Is(err, cascade.ErrNoCandidates) {
		t.Fatalf("expected ErrNoCandidates, got %v", err)
	}
	if result.FinalIdentifier != "weevil" {
		t.Fatalf("final = %q, want weevil", result.FinalIdentifier)
	}
	if model.calls() != 0 {
		t.Fatal("model must not be called without candidates")
	}
}

func TestClassifyWithoutModel(t *testing.T) {
	orch := cascade.NewOrchestrator(testStore(), testIndex(), nil)
	result, err := orch.Classify(context.Background(), cascade.Request{
		Scores:    scores("antlion", 30, "mantis", 20),
		TopK:      2,
		Threshold: 70,
	})
	if !errors.Is(err, vlm.ErrNotConfigured) || !cascade.IsSecondaryFailure(err) {
		t.Fatalf("expected wrapped ErrNotConfigured, got %v", err)
	}
	if result.FinalIdentifier != "antlion" {
		t.Fatalf("final = %q, want antlion", result.FinalIdentifier)
	}
}

func TestClassifyRejectsEmptyInput(t *testing.T) {
	rec := &countingRecorder{}
	orch := cascade.NewOrchestrator(testStore(), testIndex(), &fakeModel{}, cascade.WithRecorder(rec))
	_, err := orch.Classify(context.Background(), cascade.Request{TopK: 2, Threshold: 70})
	if !errors.Is(err, cascade.ErrEmptyInput) {
		t.Fatalf("expected ErrEmptyInput, got %v", err)
	}
	if rec.outcomes[0] != cascade.OutcomeRejected {
		t.Fatalf("unexpected outcome %v", rec.outcomes)
	}
}

func TestClassifySecondaryTimeout(t *testing.T) {
	slow := vlm.ModelFunc(func(ctx context.Context, _ string, _ vlm.Image) (string, error) {
		<-ctx.Done()
		return "", ctx.Err()
	})
	orch := cascade.NewOrchestrator(testStore(), testIndex(), slow, cascade.WithSecondaryTimeout(20*time.Millisecond))

	result, err := orch.Classify(context.Background(), cascade.Request{
		Image:     testImage,
		Scores:    scores("antlion", 60, "mantis", 55),
		TopK:      2,
		Threshold: 70,
	})
	if !cascade.IsSecondaryFailure(err) || !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected secondary timeout, got %v", err)
	}
	if result.FinalIdentifier != "antlion" || !strings.HasPrefix(result.SecondaryRawText, "Error: ") {
		t.Fatalf("unexpected result %+v", result)
	}
}

func TestClassifyCancelledDiscardsResult(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	started := make(chan struct{})
	model := vlm.ModelFunc(func(ctx context.Context, _ string, _ vlm.Image) (string, error) {
		close(started)
		<-ctx.Done()
		return "mantis", nil
	})
	orch := cascade.NewOrchestrator(testStore(), testIndex(), model)

	done := make(chan struct{})
	var result cascade.Result
	var err error
	go func() {
		defer close(done)
		result, err = orch.Classify(ctx, cascade.Request{
			Image:     testImage,
			Scores:    scores("antlion", 60, "mantis", 55),
			TopK:      2,
			Threshold: 70,
		})
	}()
	<-started
	cancel()
	<-done

	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if diff := cmp.Diff(cascade.Result{}, result); diff != "" {
		t.Fatalf("expected zero result (-want +got):\n%s", diff)
	}
}

func TestClassifyDoesNotMutateInput(t *testing.T) {
	orch := cascade.NewOrchestrator(testStore(), testIndex(), &fakeModel{text: "mantis"})
	m := scores("aphid", 10, "antlion", 60, "mantis", 55)
	before := m.Clone()
	if _, err := orch.Classify(context.Background(), cascade.Request{Image: testImage, Scores: m, TopK: 3, Threshold: 70}); err != nil {
		t.Fatalf("Classify: %v", err)
	}
	if diff := cmp.Diff(before, m); diff != "" {
		t.Fatalf("input mutated (-before +after):\n%s", diff)
	}
}

func TestClassifyFinalAlwaysFromInput(t *testing.T) {
	answers := []string{"mantis", "antlion", "", "a ladybird", "APHID"}
	for _, answer := range answers {
		orch := cascade.NewOrchestrator(testStore(), testIndex(), &fakeModel{text: answer})
		m := scores("antlion", 40, "mantis", 35, "aphid", 25)
		result, _ := orch.Classify(context.Background(), cascade.Request{Image: testImage, Scores: m, TopK: 3, Threshold: 70})
		if !m.Contains(result.FinalIdentifier) {
			t.Fatalf("answer %q produced final %q outside the input", answer, result.FinalIdentifier)
		}
	}
}
