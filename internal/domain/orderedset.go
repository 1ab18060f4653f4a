package domain

import "encoding/json"

// OrderedSet is an insertion-ordered set. It serializes as a JSON array.
type OrderedSet[T comparable] struct {
	items []T
	index map[T]int
}

// NewOrderedSet creates a set holding the given items in order, skipping duplicates
func NewOrderedSet[T comparable](items ...T) OrderedSet[T] {
	var s OrderedSet[T]
	for _, item := range items {
		s.Add(item)
	}
	return s
}

func (s *OrderedSet[T]) ensureIndex() {
	if s.index != nil {
		return
	}
	s.index = make(map[T]int, len(s.items))
	for i, item := range s.items {
		s.index[item] = i
	}
}

// Add appends item if absent and reports whether it was added
func (s *OrderedSet[T]) Add(item T) bool {
	s.ensureIndex()
	if _, ok := s.index[item]; ok {
		return false
	}
	s.index[item] = len(s.items)
	s.items = append(s.items, item)
	return true
}

// Remove deletes item if present and reports whether it was removed
func (s *OrderedSet[T]) Remove(item T) bool {
	s.ensureIndex()
	i, ok := s.index[item]
	if !ok {
		return false
	}
	s.items = append(s.items[:i], s.items[i+1:]...)
	delete(s.index, item)
	for j := i; j < len(s.items); j++ {
		s.index[s.items[j]] = j
	}
	return true
}

// Contains reports whether item is in the set
func (s *OrderedSet[T]) Contains(item T) bool {
	s.ensureIndex()
	_, ok := s.index[item]
	return ok
}

// Len returns the number of items
func (s *OrderedSet[T]) Len() int {
	return len(s.items)
}

// Items returns a copy of the items in insertion order
func (s *OrderedSet[T]) Items() []T {
	out := make([]T, len(s.items))
	copy(out, s.items)
	return out
}

// MarshalJSON encodes the set as an array, never null
func (s OrderedSet[T]) MarshalJSON() ([]byte, error) {
	if s.items == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(s.items)
}

// UnmarshalJSON decodes an array, dropping duplicates
func (s *OrderedSet[T]) UnmarshalJSON(data []byte) error {
	var items []T
	if err := json.Unmarshal(data, &items); err != nil {
		return err
	}
	*s = NewOrderedSet(items...)
	return nil
}
