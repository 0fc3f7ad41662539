package system

import (
	"time"

	"github.com/hordecore/server/internal/core/event"
	coresys "github.com/hordecore/server/internal/core/system"
	"github.com/hordecore/server/internal/spatial"
	"github.com/hordecore/server/internal/world"
	"go.uber.org/zap"
)

// IndexSystem rebuilds the spatial index from current hostile positions on
// the first tick and then every rebuild interval of simulated time.
// Between rebuilds producers query a snapshot at most one interval stale.
// Phase 3 (Index).
type IndexSystem struct {
	world    *world.State
	index    *spatial.Index
	bus      *event.Bus
	interval *coresys.Interval
	points   []spatial.Point
	log      *zap.Logger
}

func NewIndexSystem(ws *world.State, index *spatial.Index, bus *event.Bus, every time.Duration, log *zap.Logger) *IndexSystem {
	return &IndexSystem{
		world:    ws,
		index:    index,
		bus:      bus,
		interval: coresys.NewInterval(every, true),
		log:      log,
	}
}

func (s *IndexSystem) Phase() coresys.Phase { return coresys.PhaseIndex }

func (s *IndexSystem) Update(dt time.Duration) {
	if !s.interval.Tick(dt) {
		return
	}
	start := time.Now()
	s.points = s.world.Collidables(s.points[:0])
	snap := s.index.Rebuild(s.points)
	took := time.Since(start)

	event.Emit(s.bus, event.IndexRebuilt{Version: snap.Version(), Points: snap.Len(), Took: took})
	s.log.Debug("spatial index rebuilt",
		zap.Uint64("version", snap.Version()),
		zap.Int("points", snap.Len()),
		zap.Duration("took", took),
	)
}
