package ecs

// Removable is implemented by all component stores so the Registry can
// bulk-remove an entity's data from every store on destroy.
type Removable interface {
	Remove(id EntityID)
}

// Store is a sparse-set component store: values live in a dense slice and a
// map resolves ids to dense slots. Iteration follows the dense order, which
// depends only on the sequence of Set/Remove calls, so two runs that mutate
// the store identically iterate it identically. Removal swaps the last
// element into the freed slot.
type Store[T any] struct {
	index map[EntityID]int
	ids   []EntityID
	data  []T
}

func NewStore[T any](capacity int) *Store[T] {
	return &Store[T]{
		index: make(map[EntityID]int, capacity),
		ids:   make([]EntityID, 0, capacity),
		data:  make([]T, 0, capacity),
	}
}

// Set inserts or overwrites the component for id.
func (s *Store[T]) Set(id EntityID, c T) {
	if i, ok := s.index[id]; ok {
		s.data[i] = c
		return
	}
	s.index[id] = len(s.data)
	s.ids = append(s.ids, id)
	s.data = append(s.data, c)
}

// Get returns a pointer into the dense slice. The pointer is valid until the
// next Set of a new id or Remove on this store.
func (s *Store[T]) Get(id EntityID) (*T, bool) {
	i, ok := s.index[id]
	if !ok {
		return nil, false
	}
	return &s.data[i], true
}

func (s *Store[T]) Remove(id EntityID) {
	i, ok := s.index[id]
	if !ok {
		return
	}
	last := len(s.data) - 1
	if i != last {
		s.data[i] = s.data[last]
		s.ids[i] = s.ids[last]
		s.index[s.ids[i]] = i
	}
	var zero T
	s.data[last] = zero
	s.data = s.data[:last]
	s.ids = s.ids[:last]
	delete(s.index, id)
}

func (s *Store[T]) Has(id EntityID) bool {
	_, ok := s.index[id]
	return ok
}

func (s *Store[T]) Len() int {
	return len(s.data)
}

// Each visits components in dense order. fn must not add or remove
// entries of this store.
func (s *Store[T]) Each(fn func(EntityID, *T)) {
	for i := range s.data {
		fn(s.ids[i], &s.data[i])
	}
}

// IDs returns a copy of the ids in dense order, appended to buf.
func (s *Store[T]) IDs(buf []EntityID) []EntityID {
	return append(buf, s.ids...)
}
