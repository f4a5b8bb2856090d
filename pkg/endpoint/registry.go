package endpoint

import (
	"fmt"
	"sort"
	"sync"

	"github.com/rs/zerolog"
)

// Registry maps endpoint names to descriptors. One registry belongs to one loader.
type Registry struct {
	mu        sync.RWMutex
	endpoints map[string]Endpoint
	logger    zerolog.Logger
}

// NewRegistry creates an empty registry.
func NewRegistry(logger zerolog.Logger) *Registry {
	return &Registry{
		endpoints: make(map[string]Endpoint),
		logger:    logger,
	}
}

// Replace swaps the whole registry for the given list.
// Duplicate names are logged and the later descriptor wins.
func (r *Registry) Replace(list []Endpoint) error {
	next, err := r.build(make(map[string]Endpoint, len(list)), list)
	if err != nil {
		return err
	}

	r.mu.Lock()
	r.endpoints = next
	r.mu.Unlock()
	return nil
}

// Add merges the given descriptors into the registry.
func (r *Registry) Add(list []Endpoint) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	next := make(map[string]Endpoint, len(r.endpoints)+len(list))
	for name, ep := range r.endpoints {
		next[name] = ep
	}

	next, err := r.build(next, list)
	if err != nil {
		return err
	}
	r.endpoints = next
	return nil
}

func (r *Registry) build(into map[string]Endpoint, list []Endpoint) (map[string]Endpoint, error) {
	for i, raw := range list {
		ep := raw.Normalize()
		if err := ep.Validate(); err != nil {
			return nil, fmt.Errorf("endpoint #%d: %w", i, err)
		}
		if _, exists := into[ep.Name]; exists {
			r.logger.Warn().
				Str("endpoint", ep.Name).
				Msg("Endpoint registered more than once, overwriting previous definition")
		}
		into[ep.Name] = ep
	}
	return into, nil
}

// Get returns the descriptor registered under name.
func (r *Registry) Get(name string) (Endpoint, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ep, ok := r.endpoints[name]
	return ep, ok
}

// Names returns all registered names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.endpoints))
	for name := range r.endpoints {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Len returns the number of registered endpoints.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.endpoints)
}
