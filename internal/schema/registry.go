package schema

import (
	"sort"
	"sync"

	"atfxcore/pkg/odserr"
)

// Registry owns base schemas by version. Callers construct one and pass it to
// whatever needs base schemas; there is no package-level instance.
type Registry struct {
	mu      sync.RWMutex
	schemas map[string]*BaseSchema
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{schemas: make(map[string]*BaseSchema)}
}

// Register adds s. A version can only be registered once.
func (r *Registry) Register(s *BaseSchema) error {
	if s == nil {
		return odserr.BadParameterf("nil base schema")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.schemas[s.version]; ok {
		return odserr.BadOperationf("base schema %s already registered", s.version)
	}
	r.schemas[s.version] = s
	return nil
}

// Get returns the base schema of version.
func (r *Registry) Get(version string) (*BaseSchema, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if s, ok := r.schemas[version]; ok {
		return s, nil
	}
	return nil, odserr.NotFoundf("base schema %s", version)
}

// GetOrLoad returns the registered schema of version or loads and registers
// it. load runs under the registry lock, so a version is loaded at most once.
func (r *Registry) GetOrLoad(version string, load func(version string) (*BaseSchema, error)) (*BaseSchema, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.schemas[version]; ok {
		return s, nil
	}
	s, err := load(version)
	if err != nil {
		return nil, err
	}
	if s.version != version {
		return nil, odserr.BadParameterf("loader returned base schema %s for version %s", s.version, version)
	}
	r.schemas[version] = s
	return s, nil
}

// Versions returns the registered versions in sorted order.
func (r *Registry) Versions() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.schemas))
	for v := range r.schemas {
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}
