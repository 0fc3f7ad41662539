package system

import (
	"math"
	"math/rand/v2"
	"time"

	"github.com/hordecore/server/internal/core/event"
	coresys "github.com/hordecore/server/internal/core/system"
	"github.com/hordecore/server/internal/population"
	"github.com/hordecore/server/internal/world"
)

// SpawnArea is the ring around the player new hostiles appear in.
type SpawnArea struct {
	MinDistance float32
	MaxDistance float32
}

// SpawnSystem proposes a batch of positions around the player every
// interval and lets the population controller admit what fits.
// Phase 2 (Spawn).
type SpawnSystem struct {
	world    *world.State
	ctrl     *population.Controller
	bus      *event.Bus
	rng      *rand.Rand
	area     SpawnArea
	interval *coresys.Interval

	batch    []population.Vec2
	admitted int
}

func NewSpawnSystem(ws *world.State, ctrl *population.Controller, bus *event.Bus, rng *rand.Rand, area SpawnArea, every time.Duration) *SpawnSystem {
	return &SpawnSystem{
		world:    ws,
		ctrl:     ctrl,
		bus:      bus,
		rng:      rng,
		area:     area,
		interval: coresys.NewInterval(every, true),
	}
}

func (s *SpawnSystem) Phase() coresys.Phase { return coresys.PhaseSpawn }

func (s *SpawnSystem) Update(dt time.Duration) {
	s.admitted = 0
	if !s.interval.Tick(dt) {
		return
	}
	center, ok := s.world.Position(s.world.Player())
	if !ok {
		return
	}

	// Never propose more than could be admitted; the controller still has
	// the final say.
	want := min(s.ctrl.Caps().PerPass, s.ctrl.Headroom())
	if want <= 0 {
		return
	}
	s.batch = s.batch[:0]
	for i := 0; i < want; i++ {
		x, y := s.around(center)
		s.batch = append(s.batch, population.Vec2{X: x, Y: y})
	}

	s.admitted = s.ctrl.SpawnBatch(s.batch)
	for i, id := range s.ctrl.Spawned() {
		p := s.batch[i]
		event.Emit(s.bus, event.ActorSpawned{ID: id, X: p.X, Y: p.Y})
	}
}

// Admitted returns how many hostiles this tick's pass admitted.
func (s *SpawnSystem) Admitted() int { return s.admitted }

func (s *SpawnSystem) around(c world.Position) (float32, float32) {
	angle := s.rng.Float64() * 2 * math.Pi
	dist := float64(s.area.MinDistance)
	if span := float64(s.area.MaxDistance - s.area.MinDistance); span > 0 {
		dist += s.rng.Float64() * span
	}
	return c.X + float32(dist*math.Cos(angle)), c.Y + float32(dist*math.Sin(angle))
}
