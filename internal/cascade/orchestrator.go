package cascade

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"entomo/internal/logging"
	"entomo/internal/services"
	"entomo/internal/services/vlm"
)

// Outcome labels how a request was resolved.
type Outcome string

const (
	OutcomePrimary   Outcome = "primary"
	OutcomeSecondary Outcome = "secondary"
	OutcomeFallback  Outcome = "fallback"
	OutcomeRejected  Outcome = "rejected"
)

// Recorder receives per-request measurements.
type Recorder interface {
	ObserveOutcome(outcome Outcome)
	ObserveSecondary(elapsed time.Duration, err error)
}

type nopRecorder struct{}

func (nopRecorder) ObserveOutcome(Outcome) {}
func (nopRecorder) ObserveSecondary(time.Duration, error) {}

// Request is one classification.
type Request struct {
	// RequestID correlates logs and history; generated when empty.
	RequestID string
	Image     vlm.Image
	Scores    ConfidenceMap
	TopK      int
	Threshold float64
}

// Result is the outcome of one classification.
type Result struct {
	RequestID          string      `json:"request_id"`
	UsedSecondaryModel bool        `json:"used_secondary_model"`
	Threshold          float64     `json:"threshold"`
	TopIdentifier      string      `json:"top_identifier"`
	TopConfidence      float64     `json:"top_confidence"`
	PrimaryTopK        []Score     `json:"primary_top_k"`
	Candidates         []Candidate `json:"candidates,omitempty"`
	Prompt             string      `json:"prompt,omitempty"`
	SecondaryRawText   string      `json:"secondary_raw_text,omitempty"`
	FinalIdentifier    string      `json:"final_identifier"`
	Fallback           bool        `json:"fallback"`
	FallbackReason     string      `json:"fallback_reason,omitempty"`
	CompletedAt        time.Time   `json:"completed_at"`
}

// Orchestrator runs the cascade. It is safe for concurrent use.
type Orchestrator struct {
	store            KnowledgeLookup
	index            IndexLookup
	model            vlm.Model
	logger           *slog.Logger
	recorder         Recorder
	secondaryTimeout time.Duration
	now              func() time.Time
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *Orchestrator) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithRecorder sets the metrics recorder.
func WithRecorder(recorder Recorder) Option {
	return func(o *Orchestrator) {
		if recorder != nil {
			o.recorder = recorder
		}
	}
}

// WithSecondaryTimeout caps each secondary-model call. Zero leaves the call
// bounded only by the caller's context.
func WithSecondaryTimeout(d time.Duration) Option {
	return func(o *Orchestrator) {
		if d > 0 {
			o.secondaryTimeout = d
		}
	}
}

// WithClock overrides the completion timestamp source.
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) {
		if now != nil {
			o.now = now
		}
	}
}

// NewOrchestrator wires the cascade. store and index are read-only for the
// orchestrator's lifetime; model may be nil, in which case every escalated
// request falls back to the primary top.
func NewOrchestrator(store KnowledgeLookup, index IndexLookup, model vlm.Model, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		store:    store,
		index:    index,
		model:    model,
		recorder: nopRecorder{},
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}
	o.logger = logging.NewComponentLogger(o.logger, "cascade")
	return o
}

// Classify runs one request through the cascade.
//
// A secondary-model failure is recovered: the returned Result names the
// primary top with Fallback set, and the error is a *SecondaryModelError.
// When ctx ends before the request completes, Classify returns ctx.Err() and
// a zero Result.
func (o *Orchestrator) Classify(ctx context.Context, req Request) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}
	requestID := req.RequestID
	if requestID == "" {
		requestID = uuid.NewString()
	}
	ctx = services.WithRequestID(ctx, requestID)
	logger := logging.WithContext(ctx, o.logger)

	scores := req.Scores.Clone()
	decision, err := Decide(scores, req.Threshold)
	if err != nil {
		o.recorder.ObserveOutcome(OutcomeRejected)
		return Result{}, err
	}

	result := Result{
		RequestID:     requestID,
		Threshold:     req.Threshold,
		TopIdentifier: decision.TopID,
		TopConfidence: decision.TopConfidence,
		PrimaryTopK:   Top(scores, req.TopK),
	}

	if decision.SkipSecondary {
		logger.Info("primary confidence above threshold",
			logging.Args(append(logging.DecisionAttrs("confidence_gate", "skip_secondary",
				fmt.Sprintf("top %.2f > threshold %.2f", decision.TopConfidence, req.Threshold)),
				logging.String("final", decision.TopID),
			)...)...,
		)
		result.FinalIdentifier = decision.TopID
		return o.finish(result, OutcomePrimary), nil
	}

	logger.Info("escalating to secondary model",
		logging.Args(append(logging.DecisionAttrs("confidence_gate", "escalate",
			fmt.Sprintf("top %.2f <= threshold %.2f", decision.TopConfidence, req.Threshold)),
			logging.String("top", decision.TopID),
		)...)...,
	)
	result.UsedSecondaryModel = true
	result.Candidates = SelectTopK(scores, req.TopK, o.index)
	if len(result.Candidates) == 0 {
		return o.fallBack(logger, result, ErrNoCandidates)
	}
	result.Prompt = BuildPrompt(Indices(result.Candidates), o.store)
	if o.model == nil {
		return o.fallBack(logger, result, vlm.ErrNotConfigured)
	}

	text, err := o.generate(ctx, result.Prompt, req.Image)
	if ctxErr := ctx.Err(); ctxErr != nil {
		logger.Debug("discarding secondary result for cancelled request", logging.Error(ctxErr))
		return Result{}, ctxErr
	}
	if err != nil {
		return o.fallBack(logger, result, err)
	}

	result.SecondaryRawText = text
	id, matched := Match(text, Choices(result.Candidates, o.store))
	outcome := OutcomeSecondary
	if matched {
		result.FinalIdentifier = id
	} else {
		result.FinalIdentifier = decision.TopID
		result.Fallback = true
		result.FallbackReason = "secondary output named no candidate"
		outcome = OutcomeFallback
	}
	logger.Info("secondary output reconciled",
		logging.Args(append(logging.DecisionAttrs("reconcile", result.FinalIdentifier, reconcileReason(matched)),
			logging.Int("candidates", len(result.Candidates)),
		)...)...,
	)
	return o.finish(result, outcome), nil
}

func (o *Orchestrator) generate(ctx context.Context, prompt string, img vlm.Image) (string, error) {
	callCtx := ctx
	if o.secondaryTimeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, o.secondaryTimeout)
		defer cancel()
	}
	start := time.Now()
	text, err := o.model.Generate(callCtx, prompt, img)
	o.recorder.ObserveSecondary(time.Since(start), err)
	if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
		err = services.Wrap(services.ErrTimeout, "cascade", "secondary model", fmt.Sprintf("no answer within %s", o.secondaryTimeout), err)
	}
	return text, err
}

func (o *Orchestrator) fallBack(logger *slog.Logger, result Result, cause error) (Result, error) {
	logging.WarnWithContext(logger, "secondary model failed; using primary top",
		"secondary_model_failed",
		logging.String(logging.FieldErrorHint, "check the vision-language model endpoint and class index"),
		logging.String(logging.FieldImpact, "result falls back to the primary classifier"),
		logging.String("final", result.TopIdentifier),
		logging.Error(cause),
	)
	result.SecondaryRawText = "Error: " + cause.Error()
	result.FinalIdentifier = result.TopIdentifier
	result.Fallback = true
	result.FallbackReason = "secondary model failed"
	return o.finish(result, OutcomeFallback), &SecondaryModelError{Err: cause}
}

func (o *Orchestrator) finish(result Result, outcome Outcome) Result {
	o.recorder.ObserveOutcome(outcome)
	result.CompletedAt = o.now().UTC()
	return result
}

func reconcileReason(matched bool) string {
	if matched {
		return "secondary output named a candidate"
	}
	return "no candidate named; kept primary top"
}
