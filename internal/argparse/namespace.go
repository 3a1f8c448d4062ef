package argparse

import "sort"

// Namespace is the flat, prefixed key-to-value bag produced by parsing.
// Reconstruction consumes keys through Take so that a parent record only
// ever sees the keys its children have not already claimed.
type Namespace struct {
	values map[string]any
}

// NewNamespace returns an empty namespace.
func NewNamespace() *Namespace {
	return &Namespace{values: map[string]any{}}
}

// Set stores a value under an internal key, replacing any previous value.
func (n *Namespace) Set(key string, v any) {
	n.values[key] = v
}

// Peek reads a value without consuming the key.
func (n *Namespace) Peek(key string) (any, bool) {
	v, ok := n.values[key]
	return v, ok
}

// Has reports whether the key is present.
func (n *Namespace) Has(key string) bool {
	_, ok := n.values[key]
	return ok
}

// Take reads and removes a value. Every consumer of the namespace claims
// its keys through Take; a key left over after full reconstruction points
// at an internal bug.
func (n *Namespace) Take(key string) (any, bool) {
	v, ok := n.values[key]
	if ok {
		delete(n.values, key)
	}
	return v, ok
}

// Len returns the number of unconsumed keys.
func (n *Namespace) Len() int { return len(n.values) }

// RemainingKeys lists the unconsumed keys in sorted order.
func (n *Namespace) RemainingKeys() []string {
	keys := make([]string, 0, len(n.values))
	for k := range n.values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
