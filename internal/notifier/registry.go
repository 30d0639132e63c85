package notifier

import (
	"context"
	"fmt"
	"sync"

	"github.com/newthinker/prism/internal/core"
)

// Registry manages notifier instances in registration order.
type Registry struct {
	mu        sync.RWMutex
	notifiers map[string]Notifier
	order     []string
}

// NewRegistry creates a new notifier registry
func NewRegistry() *Registry {
	return &Registry{
		notifiers: make(map[string]Notifier),
	}
}

// Register adds a notifier to the registry
func (r *Registry) Register(n Notifier) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	name := n.Name()
	if _, exists := r.notifiers[name]; exists {
		return fmt.Errorf("notifier %s already registered", name)
	}

	r.notifiers[name] = n
	r.order = append(r.order, name)
	return nil
}

// Get retrieves a notifier by name
func (r *Registry) Get(name string) (Notifier, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	n, exists := r.notifiers[name]
	if !exists {
		return nil, fmt.Errorf("notifier %s not found", name)
	}
	return n, nil
}

// GetAll returns all registered notifiers
func (r *Registry) GetAll() []Notifier {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]Notifier, 0, len(r.order))
	for _, name := range r.order {
		result = append(result, r.notifiers[name])
	}
	return result
}

// Len reports how many notifiers are registered.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.order)
}

// NotifyAll sends a result to every notifier. The map holds failures by
// notifier name and is empty when all succeeded.
func (r *Registry) NotifyAll(ctx context.Context, result core.AnalysisResult) map[string]error {
	return r.each(func(n Notifier) error { return n.Send(ctx, result) })
}

// NotifyAllBatch sends several results to every notifier.
func (r *Registry) NotifyAllBatch(ctx context.Context, results []core.AnalysisResult) map[string]error {
	if len(results) == 0 {
		return map[string]error{}
	}
	return r.each(func(n Notifier) error { return n.SendBatch(ctx, results) })
}

// NotifyText sends a free-form message to every notifier.
func (r *Registry) NotifyText(ctx context.Context, text string) map[string]error {
	return r.each(func(n Notifier) error { return n.Notify(ctx, text) })
}

func (r *Registry) each(send func(Notifier) error) map[string]error {
	errs := make(map[string]error)
	for _, n := range r.GetAll() {
		if err := send(n); err != nil {
			errs[n.Name()] = core.WrapError(core.ErrNotifierFailed, err)
		}
	}
	return errs
}
