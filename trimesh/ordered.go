package trimesh

import (
	"slices"
)

// OrderedMap is a sorted container keyed by an explicit comparator
type OrderedMap[K any, V any] struct {
	cmp    func(a, b K) int
	keys   []K
	values []V
}

// NewOrderedMap returns an empty map ordered by cmp
func NewOrderedMap[K any, V any](cmp func(a, b K) int) *OrderedMap[K, V] {
	return &OrderedMap[K, V]{cmp: cmp}
}

func (om *OrderedMap[K, V]) search(key K) (int, bool) {
	return slices.BinarySearchFunc(om.keys, key, om.cmp)
}

// Get returns the value stored under key
func (om *OrderedMap[K, V]) Get(key K) (V, bool) {
	if i, found := om.search(key); found {
		return om.values[i], true
	}
	var zero V
	return zero, false
}

// Put stores value under key and reports whether the key was new
func (om *OrderedMap[K, V]) Put(key K, value V) bool {
	i, found := om.search(key)
	if found {
		om.values[i] = value
		return false
	}
	om.keys = slices.Insert(om.keys, i, key)
	om.values = slices.Insert(om.values, i, value)
	return true
}

// GetOrPut returns the existing value for key, or stores and returns value
func (om *OrderedMap[K, V]) GetOrPut(key K, value V) (V, bool) {
	i, found := om.search(key)
	if found {
		return om.values[i], true
	}
	om.keys = slices.Insert(om.keys, i, key)
	om.values = slices.Insert(om.values, i, value)
	return value, false
}

// Len returns the number of entries
func (om *OrderedMap[K, V]) Len() int {
	return len(om.keys)
}

// Ascend calls fn for each entry in key order until fn returns false
func (om *OrderedMap[K, V]) Ascend(fn func(key K, value V) bool) {
	for i := range om.keys {
		if !fn(om.keys[i], om.values[i]) {
			return
		}
	}
}

// Keys returns the keys in order
func (om *OrderedMap[K, V]) Keys() []K {
	return slices.Clone(om.keys)
}
