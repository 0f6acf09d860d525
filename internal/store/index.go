// ABOUTME: Index primitives backing the store's tables
// ABOUTME: An ordered multimap allowing duplicate keys with stable insertion order

package store

import "sort"

// Multi is an ordered multimap. Keys may repeat; entries with equal
// keys keep their insertion order. It backs the by-time and by-text
// indices, where several entities can share a timestamp or a title.
type Multi[K any, V any] struct {
	cmp     func(a, b K) int
	entries []multiEntry[K, V]
}

type multiEntry[K any, V any] struct {
	key   K
	value V
}

// NewMulti creates an empty multimap ordered by cmp.
func NewMulti[K any, V any](cmp func(a, b K) int) *Multi[K, V] {
	return &Multi[K, V]{cmp: cmp}
}

// Insert adds value under key, after any existing entries with an
// equal key.
func (m *Multi[K, V]) Insert(key K, value V) {
	i := m.upperBound(key)
	m.entries = append(m.entries, multiEntry[K, V]{})
	copy(m.entries[i+1:], m.entries[i:])
	m.entries[i] = multiEntry[K, V]{key: key, value: value}
}

// First returns the first value stored under key, or the zero value
// and false when the key is absent.
func (m *Multi[K, V]) First(key K) (V, bool) {
	i := m.lowerBound(key)
	if i < len(m.entries) && m.cmp(m.entries[i].key, key) == 0 {
		return m.entries[i].value, true
	}
	var zero V
	return zero, false
}

// At returns every value stored under key, in insertion order.
func (m *Multi[K, V]) At(key K) []V {
	lo, hi := m.lowerBound(key), m.upperBound(key)
	out := make([]V, 0, hi-lo)
	for _, e := range m.entries[lo:hi] {
		out = append(out, e.value)
	}
	return out
}

// Delete removes every entry stored under key and reports how many
// were removed.
func (m *Multi[K, V]) Delete(key K) int {
	lo, hi := m.lowerBound(key), m.upperBound(key)
	if lo == hi {
		return 0
	}
	m.entries = append(m.entries[:lo], m.entries[hi:]...)
	return hi - lo
}

// DeleteWhere removes entries under key for which match returns true.
func (m *Multi[K, V]) DeleteWhere(key K, match func(V) bool) int {
	lo, hi := m.lowerBound(key), m.upperBound(key)
	removed := 0
	kept := m.entries[:lo]
	for _, e := range m.entries[lo:hi] {
		if match(e.value) {
			removed++
		} else {
			kept = append(kept, e)
		}
	}
	m.entries = append(kept, m.entries[hi:]...)
	return removed
}

// All returns every value in key order.
func (m *Multi[K, V]) All() []V {
	out := make([]V, 0, len(m.entries))
	for _, e := range m.entries {
		out = append(out, e.value)
	}
	return out
}

// Len reports the number of stored entries.
func (m *Multi[K, V]) Len() int {
	return len(m.entries)
}

func (m *Multi[K, V]) lowerBound(key K) int {
	return sort.Search(len(m.entries), func(i int) bool {
		return m.cmp(m.entries[i].key, key) >= 0
	})
}

func (m *Multi[K, V]) upperBound(key K) int {
	return sort.Search(len(m.entries), func(i int) bool {
		return m.cmp(m.entries[i].key, key) > 0
	})
}
