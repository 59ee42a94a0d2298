package feature

import (
	"fmt"
	"sort"
	"sync"
)

// Registry maps feature ids to their implementations.
// It is safe for concurrent reads; Register should only be called at startup.
type Registry struct {
	mu       sync.RWMutex
	features map[uint32]Feature
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{features: make(map[uint32]Feature)}
}

// Register adds a feature. Panics on duplicate id to surface misconfiguration early.
func (r *Registry) Register(f Feature) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if prev, exists := r.features[f.ID()]; exists {
		panic(fmt.Sprintf("feature registry: id %d already registered by %q", f.ID(), prev.Name()))
	}
	r.features[f.ID()] = f
}

// Get returns the feature for the given id.
func (r *Registry) Get(id uint32) (Feature, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	f, ok := r.features[id]
	if !ok {
		return nil, fmt.Errorf("no feature registered for id %d", id)
	}
	return f, nil
}

// Info is the public description of a registered feature.
type Info struct {
	ID          uint32 `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// List returns all registered features ordered by id.
func (r *Registry) List() []Info {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Info, 0, len(r.features))
	for _, f := range r.features {
		out = append(out, Info{ID: f.ID(), Name: f.Name(), Description: f.Description()})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
