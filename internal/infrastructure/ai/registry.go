package ai

import (
	"fmt"
	"sort"
	"sync"

	"github.com/codepilot/assistant-api/internal/core/domain"
	"github.com/codepilot/assistant-api/internal/core/ports"
)

// modeled is implemented by adapters that report their model name.
type modeled interface {
	Model() string
}

// Registry holds the configured adapters. Providers in the catalog without
// an adapter are listed as unavailable.
type Registry struct {
	mu         sync.RWMutex
	catalog    Catalog
	generators map[domain.AIProvider]ports.Generator
}

// NewRegistry creates an empty registry over catalog.
func NewRegistry(catalog Catalog) *Registry {
	return &Registry{
		catalog:    catalog,
		generators: make(map[domain.AIProvider]ports.Generator),
	}
}

// Register adds an adapter, replacing any earlier one for the same provider.
func (r *Registry) Register(g ports.Generator) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.generators[g.ID()] = g
}

// Get returns the adapter for p.
func (r *Registry) Get(p domain.AIProvider) (ports.Generator, error) {
	if !p.Valid() {
		return nil, fmt.Errorf("%w: %q", domain.ErrUnknownProvider, p)
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	g, ok := r.generators[p]
	if !ok {
		return nil, fmt.Errorf("%w: %s is not configured", domain.ErrProviderUnavailable, p)
	}
	return g, nil
}

// List describes every provider in the catalog, ordered by id.
func (r *Registry) List() []ports.ProviderInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]ports.ProviderInfo, 0, len(r.catalog))
	for id, e := range r.catalog {
		info := ports.ProviderInfo{ID: id, DisplayName: e.DisplayName, Model: e.DefaultModel}
		if g, ok := r.generators[id]; ok {
			info.Available = true
			if m, ok := g.(modeled); ok {
				info.Model = m.Model()
			}
		}
		out = append(out, info)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
