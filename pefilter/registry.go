package pefilter

import "sync"

// Registry hands out opaque non-zero ids for filters so they can cross a
// C boundary. Ids are never reused.
type Registry struct {
	mu      sync.Mutex
	next    uintptr
	filters map[uintptr]Filter
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{filters: map[uintptr]Filter{}}
}

// Register stores f and returns its id.
func (r *Registry) Register(f Filter) uintptr {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.next++
	r.filters[r.next] = f
	return r.next
}

// Lookup returns the filter registered under id.
func (r *Registry) Lookup(id uintptr) (Filter, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	f, ok := r.filters[id]
	if !ok {
		return nil, ErrInvalidHandle
	}
	return f, nil
}

// Release destroys the filter registered under id and forgets it. Releasing
// an unknown or already released id returns ErrInvalidHandle.
func (r *Registry) Release(id uintptr) error {
	r.mu.Lock()
	f, ok := r.filters[id]
	delete(r.filters, id)
	r.mu.Unlock()
	if !ok {
		return ErrInvalidHandle
	}
	return f.Destroy()
}

// Len returns the number of live ids.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.filters)
}
