package params

import "sync"

// Registry is the ordered collection of parameters a portal exposes.
//
// Ids are not required to be unique. Lookups return the first parameter
// registered under an id, while updates are applied to every parameter
// carrying it.
type Registry struct {
	mu     sync.RWMutex
	params []*Parameter
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// Add appends p in registration order. It fails only for a nil parameter.
func (r *Registry) Add(p *Parameter) bool {
	if p == nil {
		return false
	}
	r.mu.Lock()
	r.params = append(r.params, p)
	r.mu.Unlock()
	return true
}

// Len returns the number of registered parameters.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.params)
}

// Get returns the first parameter registered under id.
func (r *Registry) Get(id string) (*Parameter, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, p := range r.params {
		if p.id == id {
			return p, true
		}
	}
	return nil, false
}

// Snapshots returns copies of all parameters in registration order.
func (r *Registry) Snapshots() []Snapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Snapshot, 0, len(r.params))
	for _, p := range r.params {
		out = append(out, p.Snapshot())
	}
	return out
}

// SetValue offers v to every parameter registered under id and reports
// whether at least one accepted it.
func (r *Registry) SetValue(id, v string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	applied := false
	for _, p := range r.params {
		if p.id == id && p.SetValue(v) {
			applied = true
		}
	}
	return applied
}

// UpdateResult describes the outcome of a bulk update.
type UpdateResult struct {
	Applied  []string
	Rejected []string
}

// Update offers each registered parameter the value found for its id in
// values. Parameters without an entry are left alone, as are entries that
// name no parameter.
func (r *Registry) Update(values map[string]string) UpdateResult {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var res UpdateResult
	for _, p := range r.params {
		v, ok := values[p.id]
		if !ok {
			continue
		}
		if p.SetValue(v) {
			res.Applied = append(res.Applied, p.id)
		} else {
			res.Rejected = append(res.Rejected, p.id)
		}
	}
	return res
}
