package collector

import (
	"context"
	"fmt"

	"P3Recon/internal/domain"
)

// Collector gathers one source's evidence for a candidate. Implementations
// fill only their own SignalBundle section and degrade to a zero-count,
// Unavailable-flagged section instead of returning an error when their
// source is down; a returned error means a programming fault or a cancelled
// context, never a flaky upstream.
type Collector interface {
	Name() string
	Collect(ctx context.Context, candidate domain.Candidate) (domain.SignalBundle, error)
}

// Registry keeps a mapping from collector names to their implementations,
// preserving registration order for deterministic runs.
type Registry struct {
	collectors map[string]Collector
	order      []string
}

// NewRegistry builds an empty registry.
func NewRegistry() *Registry {
	return &Registry{collectors: map[string]Collector{}}
}

// Register adds or replaces a collector implementation.
func (r *Registry) Register(c Collector) {
	if r.collectors == nil {
		r.collectors = map[string]Collector{}
	}
	if _, exists := r.collectors[c.Name()]; !exists {
		r.order = append(r.order, c.Name())
	}
	r.collectors[c.Name()] = c
}

// Resolve returns a collector by name or an error if it is absent.
func (r *Registry) Resolve(name string) (Collector, error) {
	if c, ok := r.collectors[name]; ok {
		return c, nil
	}
	return nil, fmt.Errorf("collector %s is not registered", name)
}

// All returns collectors in registration order.
func (r *Registry) All() []Collector {
	out := make([]Collector, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.collectors[name])
	}
	return out
}
