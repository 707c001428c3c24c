package agent

import (
	"fmt"
	"sync"
)

// ErrReservedName is returned when a worker tries to take the coordinator's name.
var ErrReservedName = fmt.Errorf("name %q is reserved", CoordinatorName)

// Registry maps worker names to descriptors. The coordinator is always present
// and cannot be replaced. A Registry is built once per refinement iteration and
// then only read.
type Registry struct {
	mu          sync.RWMutex
	coordinator Descriptor
	workers     map[string]Descriptor
	order       []string
}

// NewRegistry creates a registry holding only the coordinator.
func NewRegistry(coordinator Descriptor) *Registry {
	coordinator.Name = CoordinatorName
	return &Registry{
		coordinator: coordinator,
		workers:     make(map[string]Descriptor),
	}
}

// Register inserts d, replacing any earlier worker of the same name.
func (r *Registry) Register(d Descriptor) error {
	if d.Name == CoordinatorName {
		return ErrReservedName
	}
	if d.Name == "" {
		return fmt.Errorf("descriptor has no name")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.workers[d.Name]; !exists {
		r.order = append(r.order, d.Name)
	}
	r.workers[d.Name] = d
	return nil
}

// Resolve returns the descriptor registered under name.
func (r *Registry) Resolve(name string) (Descriptor, bool) {
	if name == CoordinatorName {
		return r.coordinator, true
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	d, ok := r.workers[name]
	return d, ok
}

// Coordinator returns the coordinator descriptor.
func (r *Registry) Coordinator() Descriptor {
	return r.coordinator
}

// Workers returns the non-coordinator descriptors in first-registration order.
func (r *Registry) Workers() []Descriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Descriptor, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.workers[name])
	}
	return out
}

// Len returns the number of registered workers, excluding the coordinator.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.workers)
}
