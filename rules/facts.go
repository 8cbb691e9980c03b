package rules

import (
	"fmt"
	"sort"
)

// FactSet is the caller-owned mapping that tables read conditions from and
// write outputs into. It is not safe for concurrent mutation; give each
// evaluation its own FactSet. A nil *FactSet reads as empty but cannot be
// written to.
type FactSet struct {
	values map[string]Value
}

// NewFactSet creates an empty fact set
func NewFactSet() *FactSet {
	return &FactSet{values: make(map[string]Value)}
}

// FactSetFrom converts native Go values (as decoded from JSON, for example)
// into a fact set
func FactSetFrom(m map[string]any) (*FactSet, error) {
	fs := &FactSet{values: make(map[string]Value, len(m))}
	for k, raw := range m {
		v, err := ValueOf(raw)
		if err != nil {
			return nil, fmt.Errorf("fact %q: %w", k, err)
		}
		fs.values[k] = v
	}
	return fs, nil
}

// Get returns the value stored under key, or a *KeyNotFoundError
func (fs *FactSet) Get(key string) (Value, error) {
	v, ok := fs.Lookup(key)
	if !ok {
		return Value{}, &KeyNotFoundError{Key: key}
	}
	return v, nil
}

// Lookup returns the value stored under key and whether it was present
func (fs *FactSet) Lookup(key string) (Value, bool) {
	if fs == nil {
		return Value{}, false
	}
	v, ok := fs.values[key]
	return v, ok
}

// Set overwrites the value stored under key
func (fs *FactSet) Set(key string, v Value) {
	if fs.values == nil {
		fs.values = make(map[string]Value)
	}
	fs.values[key] = v
}

// Len returns the number of facts
func (fs *FactSet) Len() int {
	if fs == nil {
		return 0
	}
	return len(fs.values)
}

// Keys returns the fact names in sorted order
func (fs *FactSet) Keys() []string {
	if fs == nil {
		return nil
	}
	keys := make([]string, 0, len(fs.values))
	for k := range fs.values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Map returns a copy of the facts as native Go values
func (fs *FactSet) Map() map[string]any {
	if fs == nil {
		return map[string]any{}
	}
	m := make(map[string]any, len(fs.values))
	for k, v := range fs.values {
		m[k] = v.Interface()
	}
	return m
}

// Clone returns an independent copy of the fact set
func (fs *FactSet) Clone() *FactSet {
	if fs == nil {
		return NewFactSet()
	}
	c := &FactSet{values: make(map[string]Value, len(fs.values))}
	for k, v := range fs.values {
		c.values[k] = v
	}
	return c
}
