package providers

import (
	"errors"
	"fmt"
	"sort"
	"sync"
)

// Builder creates a provider bound to one configuration
type Builder func(cfg Config, opts Options) (Provider, error)

// Registry maps backend kinds to the builders linked into this binary.
// Backend packages register themselves from init, so a backend compiled out
// with its build tag is simply absent here.
type Registry struct {
	mu       sync.RWMutex
	builders map[Kind]Builder
}

// NewRegistry creates a new, empty provider registry
func NewRegistry() *Registry {
	return &Registry{
		builders: make(map[Kind]Builder),
	}
}

// Register adds a builder for a backend kind
func (r *Registry) Register(kind Kind, builder Builder) error {
	if builder == nil {
		return errors.New("provider builder cannot be nil")
	}
	if !kind.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidProvider, kind)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.builders[kind]; exists {
		return ErrProviderAlreadyRegistered
	}

	r.builders[kind] = builder
	return nil
}

// Available reports whether the backend's adapter is linked in
func (r *Registry) Available(kind Kind) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, ok := r.builders[kind]
	return ok
}

// Registered returns the linked-in backend kinds in a stable order
func (r *Registry) Registered() []Kind {
	r.mu.RLock()
	defer r.mu.RUnlock()

	kinds := make([]Kind, 0, len(r.builders))
	for kind := range r.builders {
		kinds = append(kinds, kind)
	}
	sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })
	return kinds
}

// Initialize builds the adapter handle for cfg.
// It fails with ErrInvalidProvider for an unknown kind and with a
// *MissingLibraryError when the backend was compiled out.
func (r *Registry) Initialize(cfg Config, opts Options) (Provider, error) {
	if !cfg.Provider.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidProvider, cfg.Provider)
	}

	r.mu.RLock()
	builder, ok := r.builders[cfg.Provider]
	r.mu.RUnlock()

	if !ok {
		return nil, &MissingLibraryError{Provider: cfg.Provider, BuildTag: "no" + string(cfg.Provider)}
	}

	provider, err := builder(cfg, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize %s provider: %w", cfg.Provider, err)
	}

	return provider, nil
}

// Global default registry
var defaultRegistry *Registry
var registryOnce sync.Once

// DefaultRegistry returns the global default registry
func DefaultRegistry() *Registry {
	registryOnce.Do(func() {
		defaultRegistry = NewRegistry()
	})
	return defaultRegistry
}

// Register registers a builder in the default registry.
// It panics on a duplicate so a mis-wired binary fails at startup.
func Register(kind Kind, builder Builder) {
	if err := DefaultRegistry().Register(kind, builder); err != nil {
		panic(fmt.Sprintf("providers: register %s: %v", kind, err))
	}
}

// Available reports whether kind is linked into the default registry
func Available(kind Kind) bool {
	return DefaultRegistry().Available(kind)
}

// Initialize builds an adapter from the default registry
func Initialize(cfg Config, opts Options) (Provider, error) {
	return DefaultRegistry().Initialize(cfg, opts)
}
