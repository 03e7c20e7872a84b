package cascade

import (
	"context"
	"fmt"
	"math"
	"sync"

	"github.com/google/uuid"

	"entomo/internal/services"
	"entomo/internal/services/vlm"
)

// Session holds the threshold and top-K chosen by one user and serialises
// their requests: starting a new classification cancels the one in flight.
type Session struct {
	id   string
	orch *Orchestrator

	mu        sync.Mutex
	threshold float64
	topK      int
	epoch     uint64
	cancel    context.CancelFunc
	last      *Result
}

// NewSession creates a session. An empty id is replaced with a random one.
func NewSession(id string, orch *Orchestrator, threshold float64, topK int) (*Session, error) {
	if err := checkThreshold(threshold); err != nil {
		return nil, err
	}
	if topK < 1 {
		return nil, fmt.Errorf("session: top_k must be at least 1, got %d", topK)
	}
	if id == "" {
		id = uuid.NewString()
	}
	return &Session{id: id, orch: orch, threshold: threshold, topK: topK}, nil
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// Threshold returns the current threshold.
func (s *Session) Threshold() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.threshold
}

// SetThreshold changes the threshold for requests started afterwards. A
// request already in flight keeps the value it started with.
func (s *Session) SetThreshold(tau float64) error {
	if err := checkThreshold(tau); err != nil {
		return err
	}
	s.mu.Lock()
	s.threshold = tau
	s.mu.Unlock()
	return nil
}

// TopK returns the candidate count.
func (s *Session) TopK() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.topK
}

// SetTopK changes the candidate count for requests started afterwards.
func (s *Session) SetTopK(k int) error {
	if k < 1 {
		return fmt.Errorf("session: top_k must be at least 1, got %d", k)
	}
	s.mu.Lock()
	s.topK = k
	s.mu.Unlock()
	return nil
}

// Classify runs the cascade with the session's current settings. A request
// superseded by a later Classify or by Cancel returns ErrSuperseded.
func (s *Session) Classify(ctx context.Context, img vlm.Image, scores ConfidenceMap) (Result, error) {
	ctx, cancel := context.WithCancel(services.WithSessionID(ctx, s.id))
	defer cancel()

	s.mu.Lock()
	if s.cancel != nil {
		s.cancel()
	}
	s.epoch++
	epoch := s.epoch
	req := Request{Image: img, Scores: scores, TopK: s.topK, Threshold: s.threshold}
	s.cancel = cancel
	s.mu.Unlock()

	result, err := s.orch.Classify(ctx, req)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.epoch != epoch {
		return Result{}, ErrSuperseded
	}
	s.cancel = nil
	if result.FinalIdentifier != "" {
		stored := result
		s.last = &stored
	}
	return result, err
}

// Cancel aborts the request in flight, if any.
func (s *Session) Cancel() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	s.epoch++
}

// Last returns the most recent completed result.
func (s *Session) Last() (Result, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.last == nil {
		return Result{}, false
	}
	return *s.last, true
}

func checkThreshold(tau float64) error {
	if math.IsNaN(tau) || math.IsInf(tau, 0) {
		return fmt.Errorf("%w: %v", ErrInvalidThreshold, tau)
	}
	return nil
}
