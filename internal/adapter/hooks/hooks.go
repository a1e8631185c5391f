// Package hooks contains the lifecycle hook registry and its execution
// pipeline.
//
// Handlers are kept in per-(phase, action) chains and run in registration
// order. A chain shares one mutable document with all of its handlers; the
// first handler to fail truncates the chain, and the document as mutated up
// to that point stays visible through the returned [domain.HookError]. Over
// a batch, each document gets its own chain run concurrently: one failing
// chain fails the batch, but the other documents keep their mutations.
package hooks

import (
	"context"
	"sync"

	"github.com/seamdb/seam/domain"
	"github.com/seamdb/seam/pkg/doc"
)

// Registry implements domain.HookRegistry.
type Registry struct {
	mu     sync.RWMutex
	chains map[domain.Phase]map[domain.Action][]domain.Hook
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		chains: make(map[domain.Phase]map[domain.Action][]domain.Hook),
	}
}

// Register implements domain.HookRegistry. Unsupported phase/action pairs
// are rejected here, at registration time.
func (r *Registry) Register(phase domain.Phase, action domain.Action, h domain.Hook) error {
	if !domain.Supported(phase, action) {
		return domain.NewErrConfiguration("unsupported hook %s-%s", phase, action)
	}
	if h == nil {
		return domain.NewErrConfiguration("hook %s-%s must not be nil", phase, action)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	actions, ok := r.chains[phase]
	if !ok {
		actions = make(map[domain.Action][]domain.Hook)
		r.chains[phase] = actions
	}
	actions[action] = append(actions[action], h)
	return nil
}

// Chain returns the registration-ordered handlers for the phase/action pair.
func (r *Registry) Chain(phase domain.Phase, action domain.Action) []domain.Hook {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.chains[phase][action]
}

// Run invokes the chain sequentially over the document. On failure the
// returned error is a [domain.HookError] carrying the partially mutated
// document.
func (r *Registry) Run(ctx context.Context, phase domain.Phase, action domain.Action, d doc.M) error {
	for _, h := range r.Chain(phase, action) {
		if err := h(ctx, d); err != nil {
			return &domain.HookError{Phase: phase, Action: action, Err: err, Payload: d}
		}
	}
	return nil
}

// RunEach fans the chain out over the documents, one concurrent run per
// document. The first error observed is returned (order among runs is not
// guaranteed); documents whose chains succeeded keep their mutations either
// way. A single-document batch behaves exactly like [Registry.Run].
func (r *Registry) RunEach(ctx context.Context, phase domain.Phase, action domain.Action, docs doc.List) error {
	if len(r.Chain(phase, action)) == 0 || len(docs) == 0 {
		return nil
	}
	if len(docs) == 1 {
		return r.Run(ctx, phase, action, docs[0])
	}

	var wg sync.WaitGroup
	var mu sync.Mutex
	var first error
	for _, d := range docs {
		wg.Add(1)
		go func(d doc.M) {
			defer wg.Done()
			if err := r.Run(ctx, phase, action, d); err != nil {
				mu.Lock()
				if first == nil {
					first = err
				}
				mu.Unlock()
			}
		}(d)
	}
	wg.Wait()
	return first
}
