package ecs

// Each2 iterates over entities that have both component A and B, in the
// dense order of sa.
func Each2[A, B any](sa *Store[A], sb *Store[B], fn func(EntityID, *A, *B)) {
	for i := range sa.data {
		id := sa.ids[i]
		if j, ok := sb.index[id]; ok {
			fn(id, &sa.data[i], &sb.data[j])
		}
	}
}

// Each3 iterates over entities that have components A, B, and C, in the
// dense order of sa.
func Each3[A, B, C any](sa *Store[A], sb *Store[B], sc *Store[C], fn func(EntityID, *A, *B, *C)) {
	for i := range sa.data {
		id := sa.ids[i]
		j, ok := sb.index[id]
		if !ok {
			continue
		}
		if k, ok := sc.index[id]; ok {
			fn(id, &sa.data[i], &sb.data[j], &sc.data[k])
		}
	}
}
