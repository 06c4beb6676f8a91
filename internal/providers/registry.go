package providers

import (
	"fmt"
	"sort"
	"sync"

	"github.com/agext/levenshtein"
)

// Registry maps resource types to the provider serving them.
type Registry struct {
	mu        sync.RWMutex
	providers map[string]Provider // provider name -> provider
	types     map[string]Provider // resource type -> provider
}

func NewRegistry() *Registry {
	return &Registry{
		providers: make(map[string]Provider),
		types:     make(map[string]Provider),
	}
}

// Register adds a provider and claims all its resource types.
func (r *Registry) Register(p Provider) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.providers[p.Name()]; exists {
		return fmt.Errorf("provider %q registered twice", p.Name())
	}
	r.providers[p.Name()] = p

	for _, resType := range p.ResourceTypes() {
		if prev, exists := r.types[resType]; exists {
			return fmt.Errorf("resource type %q claimed by both %q and %q", resType, prev.Name(), p.Name())
		}
		r.types[resType] = p
	}
	return nil
}

// ForType returns the provider serving a resource type. Unknown types
// get a "did you mean" hint based on edit distance.
func (r *Registry) ForType(resType string) (Provider, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.types[resType]
	if !ok {
		if suggestion := r.suggestLocked(resType); suggestion != "" {
			return nil, fmt.Errorf("unknown resource type %q; did you mean %q?", resType, suggestion)
		}
		return nil, fmt.Errorf("unknown resource type %q", resType)
	}
	return p, nil
}

// Provider returns a provider by name.
func (r *Registry) Provider(name string) (Provider, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.providers[name]
	if !ok {
		return nil, fmt.Errorf("unknown provider %q", name)
	}
	return p, nil
}

// Types returns all registered resource types, sorted.
func (r *Registry) Types() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]string, 0, len(r.types))
	for t := range r.types {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

func (r *Registry) suggestLocked(input string) string {
	best := ""
	bestDist := 3 // more than two edits away is not a useful suggestion
	for t := range r.types {
		if d := levenshtein.Distance(input, t, nil); d < bestDist {
			best = t
			bestDist = d
		}
	}
	return best
}
