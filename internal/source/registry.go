package source

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"
)

// Registry holds the configured sources and manages their registration
// lifecycle. Safe for concurrent use.
type Registry struct {
	logger *zap.Logger

	mu         sync.RWMutex
	sources    map[string]Source
	registered map[string]bool
}

// NewRegistry creates an empty source registry.
func NewRegistry(logger *zap.Logger) *Registry {
	return &Registry{
		logger:     logger.Named("sources"),
		sources:    make(map[string]Source),
		registered: make(map[string]bool),
	}
}

// Add places a source in the registry. Returns an error on a duplicate name.
func (r *Registry) Add(src Source) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	name := src.Name()
	if _, exists := r.sources[name]; exists {
		return fmt.Errorf("source %q already added", name)
	}
	r.sources[name] = src
	return nil
}

// RegisterAll registers every source against sink. A source that fails to
// register (typically a revoked OS permission) is logged and skipped; call
// detection continues degraded on the remaining sources. Returns the number
// of sources successfully registered.
func (r *Registry) RegisterAll(ctx context.Context, sink EventSink) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	registered := 0
	for name, src := range r.sources {
		if r.registered[name] {
			registered++
			continue
		}
		if err := src.Register(ctx, sink); err != nil {
			r.logger.Warn("Signal source registration failed, continuing without it",
				zap.String("source", name),
				zap.Error(err),
			)
			continue
		}
		r.registered[name] = true
		registered++
		r.logger.Info("Signal source registered", zap.String("source", name))
	}
	return registered
}

// UnregisterAll detaches every registered source.
func (r *Registry) UnregisterAll() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for name, src := range r.sources {
		if !r.registered[name] {
			continue
		}
		if err := src.Unregister(); err != nil {
			r.logger.Warn("Signal source unregister failed",
				zap.String("source", name),
				zap.Error(err),
			)
		}
		r.registered[name] = false
	}
}

// Registered reports whether the named source is currently registered.
func (r *Registry) Registered(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.registered[name]
}

// Count returns the number of sources in the registry.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sources)
}
