package providers

import (
	"fmt"
	"sort"
)

// Registry holds the enabled adapters. It is built once at startup and only read
// afterwards, so it needs no locking.
type Registry struct {
	adapters map[ID]Adapter
}

// NewRegistry registers adapters by ID. It fails on duplicates and on adapters
// that do not verify email ownership: enabling such a provider would let anyone
// who can register that email upstream take over the local account.
func NewRegistry(adapters ...Adapter) (*Registry, error) {
	r := &Registry{adapters: make(map[ID]Adapter, len(adapters))}
	for _, a := range adapters {
		if a == nil {
			continue
		}
		id := a.ID()
		if _, ok := ParseID(string(id)); !ok {
			return nil, fmt.Errorf("providers: unknown provider id %q", id)
		}
		if !a.VerifiesEmail() {
			return nil, fmt.Errorf("%w: %s", ErrEmailNotVerifiable, id)
		}
		if _, dup := r.adapters[id]; dup {
			return nil, fmt.Errorf("providers: %s registered twice", id)
		}
		r.adapters[id] = a
	}
	return r, nil
}

// Resolve looks name up exactly as received. No network or store access happens
// here; unknown names never reach adapter code.
func (r *Registry) Resolve(name string) (Adapter, error) {
	if r == nil {
		return nil, ErrNotRegistered
	}
	a, ok := r.adapters[ID(name)]
	if !ok {
		return nil, ErrNotRegistered
	}
	return a, nil
}

// Enabled returns the registered identifiers sorted by name.
func (r *Registry) Enabled() []ID {
	if r == nil {
		return nil
	}
	ids := make([]ID, 0, len(r.adapters))
	for id := range r.adapters {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}
