package channel

import (
	"fmt"
	"strings"
	"sync"
)

// Registry holds all registered provider normalizers. It must be created via
// NewRegistry and passed explicitly to components that need it.
type Registry struct {
	mu          sync.RWMutex
	normalizers map[string]Normalizer
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		normalizers: map[string]Normalizer{},
	}
}

// Register adds a normalizer to the registry.
func (r *Registry) Register(n Normalizer) error {
	if n == nil {
		return fmt.Errorf("normalizer is nil")
	}
	provider := normalizeProvider(n.Provider())
	if provider == "" {
		return fmt.Errorf("provider id is required")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.normalizers[provider]; exists {
		return fmt.Errorf("provider already registered: %s", provider)
	}
	r.normalizers[provider] = n
	return nil
}

// MustRegister calls Register and panics on error.
func (r *Registry) MustRegister(n Normalizer) {
	if err := r.Register(n); err != nil {
		panic(err)
	}
}

// Get returns the normalizer for the given provider id.
func (r *Registry) Get(provider string) (Normalizer, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	n, ok := r.normalizers[normalizeProvider(provider)]
	return n, ok
}

// Providers returns all registered provider ids.
func (r *Registry) Providers() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	items := make([]string, 0, len(r.normalizers))
	for provider := range r.normalizers {
		items = append(items, provider)
	}
	return items
}

func normalizeProvider(raw string) string {
	return strings.TrimSpace(strings.ToLower(raw))
}
