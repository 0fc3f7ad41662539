package spatial

import (
	"sync/atomic"

	"github.com/hordecore/server/internal/core/ecs"
)

// Index is the shared handle producers query through. Exactly one rebuilder
// publishes snapshots; any number of readers load the current one. A reader
// always sees a complete snapshot, either the old or the new one.
type Index struct {
	current atomic.Pointer[Snapshot]
	version atomic.Uint64
}

func NewIndex() *Index {
	idx := &Index{}
	idx.current.Store(emptySnapshot)
	return idx
}

// Snapshot returns the latest published snapshot. Before the first rebuild
// this is an empty snapshot, so queries return nothing rather than fail.
func (i *Index) Snapshot() *Snapshot {
	return i.current.Load()
}

// Rebuild builds a snapshot from points, stamps it with the next version
// and publishes it.
func (i *Index) Rebuild(points []Point) *Snapshot {
	s := buildVersion(points, i.version.Add(1))
	i.current.Store(s)
	return s
}

// QueryRadius queries the current snapshot.
func (i *Index) QueryRadius(x, y, r float32) []ecs.EntityID {
	return i.Snapshot().QueryRadius(x, y, r)
}
