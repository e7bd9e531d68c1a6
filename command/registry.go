package command

import "sync"

// Registry is the in-memory set of command definitions the dispatcher
// consults on every trigger. It is loaded from the database at startup and
// kept in sync by the admin API. Lookups are by normalized key. All accessors
// hand out copies; the usage counter advances through IncrementCount so the
// engine and the HTTP handlers never touch a shared struct.
type Registry struct {
	mu    sync.RWMutex
	defs  map[string]*Definition
	order []string
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{defs: make(map[string]*Definition)}
}

// Replace swaps the full definition set, preserving the given order.
func (r *Registry) Replace(defs []Definition) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.defs = make(map[string]*Definition, len(defs))
	r.order = r.order[:0]
	for i := range defs {
		d := defs[i]
		key := d.Key()
		if _, exists := r.defs[key]; exists {
			continue
		}
		r.defs[key] = &d
		r.order = append(r.order, key)
	}
}

// Get returns a copy of the definition for a normalized key.
func (r *Registry) Get(key string) (Definition, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.defs[NormalizeKey(key)]
	if !ok {
		return Definition{}, false
	}
	return *d, true
}

// IncrementCount advances the usage counter after a successful execution and
// returns the new value. Reports false for an unknown key (the definition was
// deleted mid-flight).
func (r *Registry) IncrementCount(key string) (int, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.defs[NormalizeKey(key)]
	if !ok {
		return 0, false
	}
	d.Count++
	return d.Count, true
}

// Upsert inserts or replaces a definition, appending new keys at the end.
func (r *Registry) Upsert(d Definition) {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := d.Key()
	if _, exists := r.defs[key]; !exists {
		r.order = append(r.order, key)
	}
	r.defs[key] = &d
}

// Delete removes a definition, reporting whether it existed.
func (r *Registry) Delete(key string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	key = NormalizeKey(key)
	if _, exists := r.defs[key]; !exists {
		return false
	}
	delete(r.defs, key)
	for i, k := range r.order {
		if k == key {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	return true
}

// List returns copies of every definition in display order.
func (r *Registry) List() []Definition {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Definition, 0, len(r.order))
	for _, k := range r.order {
		if d, ok := r.defs[k]; ok {
			out = append(out, *d)
		}
	}
	return out
}

// Len reports the number of registered definitions.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.defs)
}
