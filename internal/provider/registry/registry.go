package registry

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/davidbz/pixelcredit/internal/domain"
)

// Registry implements the ProberRegistry interface.
type Registry struct {
	mu      sync.RWMutex
	probers map[domain.Provider]domain.CostProber
}

// NewRegistry creates a new prober registry.
func NewRegistry() *Registry {
	return &Registry{
		mu:      sync.RWMutex{},
		probers: make(map[domain.Provider]domain.CostProber),
	}
}

// Register adds a prober to the registry.
func (r *Registry) Register(_ context.Context, prober domain.CostProber) error {
	if prober == nil {
		return errors.New("prober cannot be nil")
	}

	provider := prober.Provider()
	if provider == "" {
		return errors.New("prober provider cannot be empty")
	}
	if _, err := domain.ParseProvider(string(provider)); err != nil {
		return fmt.Errorf("cannot register prober: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.probers[provider]; exists {
		return fmt.Errorf("prober for %s already registered", provider)
	}

	r.probers[provider] = prober

	return nil
}

// Get retrieves the prober of a provider family.
func (r *Registry) Get(_ context.Context, provider domain.Provider) (domain.CostProber, error) {
	if provider == "" {
		return nil, errors.New("provider cannot be empty")
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	prober, exists := r.probers[provider]
	if !exists {
		return nil, fmt.Errorf("prober for %s: %w", provider, domain.ErrNotFound)
	}

	return prober, nil
}

// All returns every prober ordered by provider, so reports are stable.
func (r *Registry) All(_ context.Context) []domain.CostProber {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]domain.CostProber, 0, len(r.probers))
	for _, prober := range r.probers {
		out = append(out, prober)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Provider() < out[j].Provider()
	})

	return out
}
