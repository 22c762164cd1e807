package metadata

import "sync"

// Registry holds the primary entity and its dependent collections.
type Registry struct {
	mu         sync.RWMutex
	primary    *Entity
	dependents []*Entity
	byName     map[string]*Entity
}

// NewRegistry returns a registry loaded with the employee draft schema.
func NewRegistry() *Registry {
	r := &Registry{}
	r.Load(Employee, dependents)
	return r
}

// Primary returns the primary entity.
func (r *Registry) Primary() *Entity {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.primary
}

// Dependents returns dependent collections in reconciliation order.
func (r *Registry) Dependents() []*Entity {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Entity, len(r.dependents))
	copy(out, r.dependents)
	return out
}

// GetDependent returns the dependent collection with the given payload key, or nil.
func (r *Registry) GetDependent(name string) *Entity {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.byName[name]
}

// AllEntities returns the primary entity followed by every dependent.
func (r *Registry) AllEntities() []*Entity {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]*Entity{r.primary}, r.dependents...)
}

// Load replaces the schema.
func (r *Registry) Load(primary *Entity, deps []*Entity) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.primary = primary
	r.dependents = deps
	r.byName = make(map[string]*Entity, len(deps))
	for _, e := range deps {
		r.byName[e.Name] = e
	}
}
