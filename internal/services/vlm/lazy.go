package vlm

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/singleflight"
)

// Factory constructs a Model.
type Factory func(ctx context.Context) (Model, error)

// Lazy is a process-wide model handle constructed on first use. Concurrent
// first calls share one construction; a failed construction is retried on the
// next call.
type Lazy struct {
	factory Factory

	mu    sync.Mutex
	model Model
	group singleflight.Group
}

// NewLazy wraps factory.
func NewLazy(factory Factory) *Lazy {
	return &Lazy{factory: factory}
}

// EnsureInitialized returns the shared model, constructing it if needed. The
// construction itself is not cancelled by ctx so a waiting caller giving up
// does not fail the others.
func (l *Lazy) EnsureInitialized(ctx context.Context) (Model, error) {
	if model := l.current(); model != nil {
		return model, nil
	}
	if l.factory == nil {
		return nil, ErrNotConfigured
	}
	ch := l.group.DoChan("model", func() (any, error) {
		if model := l.current(); model != nil {
			return model, nil
		}
		model, err := l.factory(context.WithoutCancel(ctx))
		if err != nil {
			return nil, fmt.Errorf("initialize model: %w", err)
		}
		if model == nil {
			return nil, fmt.Errorf("initialize model: %w", ErrNotConfigured)
		}
		l.mu.Lock()
		l.model = model
		l.mu.Unlock()
		return model, nil
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(Model), nil
	}
}

// Initialized reports whether the model has been constructed.
func (l *Lazy) Initialized() bool {
	return l.current() != nil
}

// Generate initializes the model if needed and delegates to it.
func (l *Lazy) Generate(ctx context.Context, prompt string, img Image) (string, error) {
	model, err := l.EnsureInitialized(ctx)
	if err != nil {
		return "", err
	}
	return model.Generate(ctx, prompt, img)
}

func (l *Lazy) current() Model {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.model
}
