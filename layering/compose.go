// Package layering holds strong-to-weak composition helpers shared by the
// layer stack engine.
package layering

import (
	"cmp"
	"slices"
)

// ComposeFirstWins composes maps ordered from strongest to weakest. A key
// keeps the value of the strongest map that defines it. The result is a new
// map; nil when every input is empty.
func ComposeFirstWins[K comparable, V any](layers ...map[K]V) map[K]V {
	var out map[K]V
	for _, layer := range layers {
		for key, value := range layer {
			if out == nil {
				out = make(map[K]V, len(layer))
			}
			if _, ok := out[key]; ok {
				continue
			}
			out[key] = value
		}
	}
	return out
}

// Clone returns a shallow copy of m, nil for an empty map.
func Clone[K comparable, V any](m map[K]V) map[K]V {
	if len(m) == 0 {
		return nil
	}
	out := make(map[K]V, len(m))
	for key, value := range m {
		out[key] = value
	}
	return out
}

// SortedKeys returns the keys of m in ascending order.
func SortedKeys[K cmp.Ordered, V any](m map[K]V) []K {
	keys := make([]K, 0, len(m))
	for key := range m {
		keys = append(keys, key)
	}
	slices.Sort(keys)
	return keys
}

// Equal reports whether two maps hold the same keys and equal values.
func Equal[K, V comparable](a, b map[K]V) bool {
	if len(a) != len(b) {
		return false
	}
	for key, value := range a {
		other, ok := b[key]
		if !ok || other != value {
			return false
		}
	}
	return true
}
