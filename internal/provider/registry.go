package provider

import (
	"context"
	"log"
	"sort"
)

// Registry holds the configured adapters. It is built once at startup and
// injected; nothing in the package keeps global state.
type Registry struct {
	primary  string
	adapters map[string]Adapter
}

func NewRegistry(primary string) *Registry {
	return &Registry{primary: primary, adapters: make(map[string]Adapter)}
}

func (r *Registry) Register(a Adapter) {
	r.adapters[a.Name()] = a
}

func (r *Registry) Get(name string) (Adapter, error) {
	a, ok := r.adapters[name]
	if !ok {
		log.Printf("layer=registry component=provider method=Get provider=%s err=%v", name, ErrUnknownProvider)
		return nil, ErrUnknownProvider
	}
	return a, nil
}

// Pick returns the caller-preferred adapter when named, the primary
// otherwise.
func (r *Registry) Pick(preferred string) (Adapter, error) {
	if preferred != "" {
		return r.Get(preferred)
	}
	return r.Get(r.primary)
}

func (r *Registry) Enabled(name string) bool {
	_, ok := r.adapters[name]
	return ok
}

func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.adapters))
	for name := range r.adapters {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Health probes every adapter that can be probed. Adapters without a
// Pinger report no entry.
func (r *Registry) Health(ctx context.Context) map[string]error {
	out := make(map[string]error)
	for name, a := range r.adapters {
		p, ok := a.(Pinger)
		if !ok {
			continue
		}
		out[name] = p.Ping(ctx)
	}
	return out
}
