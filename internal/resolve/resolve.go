// Package resolve maps producer-chosen temporary identifiers to the real
// key values the database generated for them.
//
// A Resolver lives for exactly one load operation. It is created inside
// the transaction that performs the load and dropped with it, so a failed
// or cancelled load never leaks mappings into a retry.
package resolve

import (
	"maps"
	"sync"
)

// TempID is a temporary identifier standing in for a key value that does
// not exist until its row is inserted.
type TempID string

func (id TempID) String() string { return string(id) }

// AsTempID reports whether v is a temporary identifier.
func AsTempID(v any) (TempID, bool) {
	switch id := v.(type) {
	case TempID:
		return id, true
	case *TempID:
		if id != nil {
			return *id, true
		}
	}
	return "", false
}

type key struct {
	table string
	id    TempID
}

// Resolver is safe for concurrent use. Tables of one plan level may
// register and look up identifiers from several goroutines.
type Resolver struct {
	mu       sync.RWMutex
	resolved map[key]map[string]any
}

// New returns an empty Resolver.
func New() *Resolver {
	return &Resolver{resolved: make(map[key]map[string]any)}
}

// RegisterResolved records the key column values of the row inserted for
// (table, id). Registering the same pair twice fails with
// *DuplicateTempIDError and leaves the first registration in place.
func (r *Resolver) RegisterResolved(table string, id TempID, values map[string]any) error {
	k := key{table, id}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, dup := r.resolved[k]; dup {
		return &DuplicateTempIDError{Table: table, ID: id}
	}
	r.resolved[k] = maps.Clone(values)
	return nil
}

// Substitute returns the real value of column in the row registered for
// (table, id). ok is false while that row has not been inserted yet; this
// is the signal to defer the reference, not an error.
func (r *Resolver) Substitute(table, column string, id TempID) (value any, ok bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	vals, found := r.resolved[key{table, id}]
	if !found {
		return nil, false
	}
	value, ok = vals[column]
	return value, ok
}

// Len returns the number of registered identifiers.
func (r *Resolver) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.resolved)
}
