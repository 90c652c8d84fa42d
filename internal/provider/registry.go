package provider

import (
	"errors"
	"fmt"
	"strings"
	"sync"
)

var (
	ErrProviderExists = errors.New("provider already registered")
	ErrProviderNil    = errors.New("provider is nil")
	ErrInvalidID      = errors.New("invalid provider id")
)

// Registry stores providers by stable identifier and resolves PV
// ownership in registration order.
type Registry struct {
	mu    sync.RWMutex
	order []string
	items map[string]Provider
}

// NewRegistry creates an empty provider registry.
func NewRegistry() *Registry {
	return &Registry{items: make(map[string]Provider)}
}

// Register adds a provider under id.
func (r *Registry) Register(id string, p Provider) error {
	if p == nil {
		return ErrProviderNil
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return fmt.Errorf("%w: empty", ErrInvalidID)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.items[id]; ok {
		return fmt.Errorf("%w: %s", ErrProviderExists, id)
	}
	r.items[id] = p
	r.order = append(r.order, id)
	return nil
}

// Resolve returns the first registered provider claiming pvName.
func (r *Registry) Resolve(pvName string) (Provider, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, id := range r.order {
		if p := r.items[id]; p.Provides(pvName) {
			return p, true
		}
	}
	return nil, false
}

// IDs returns the registered identifiers in registration order.
func (r *Registry) IDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}
