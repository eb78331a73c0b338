package command

import (
	"context"
	"sort"
	"sync"

	cxerrors "github.com/codexlab/codexcore/internal/errors"
)

// Handler implements one registered verb.
type Handler func(ctx context.Context, cc *Context, args []string) (Result, error)

// Registry is the string-addressable table of command handlers.
type Registry struct {
	mu          sync.RWMutex
	handlers    map[string]Handler
	descriptors map[string]Descriptor
}

// NewRegistry builds an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		handlers:    make(map[string]Handler),
		descriptors: make(map[string]Descriptor),
	}
}

// Register adds handler under name with no descriptor, replacing any
// existing handler for that name.
func (r *Registry) Register(name string, handler Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[name] = handler
	delete(r.descriptors, name)
}

// RegisterWithDescriptor adds handler under name along with a one-line
// summary surfaced by Describe and commands.list.
func (r *Registry) RegisterWithDescriptor(name, summary string, handler Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[name] = handler
	r.descriptors[name] = Descriptor{Name: name, Summary: summary}
}

// Run dispatches to the handler registered for name, returning
// UnknownCommand if none exists.
func (r *Registry) Run(ctx context.Context, cc *Context, name string, args []string) (Result, error) {
	r.mu.RLock()
	handler, ok := r.handlers[name]
	r.mu.RUnlock()
	if !ok {
		return Result{}, cxerrors.UnknownCommand(name)
	}
	return handler(ctx, cc, args)
}

// Describe returns the descriptor registered for name, if any.
func (r *Registry) Describe(name string) (Descriptor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.descriptors[name]
	return d, ok
}

// Names returns every registered verb, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.handlers))
	for name := range r.handlers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
