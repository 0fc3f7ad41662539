package world

import (
	"math"
	"time"

	"github.com/hordecore/server/internal/cooldown"
	"github.com/hordecore/server/internal/core/ecs"
	"github.com/hordecore/server/internal/damage"
	"github.com/hordecore/server/internal/data"
	"github.com/hordecore/server/internal/spatial"
)

// Targets returns the damage pipeline's view of the world.
func (s *State) Targets() damage.Targets { return targets{s} }

type targets struct{ s *State }

func (t targets) Health(id ecs.EntityID) (*damage.Health, bool) {
	return t.s.healths.Get(id)
}

func (t targets) Cooldown(id ecs.EntityID) (cooldown.Channel, time.Duration, bool) {
	c, ok := t.s.cooldowns.Get(id)
	if !ok {
		return 0, 0, false
	}
	return c.channel, c.duration, true
}

// Hostiles adapts the hostile set to the population controller. pick
// chooses the template for each admitted spawn.
func (s *State) Hostiles(pick func() *data.ActorTemplate) *HostilePopulation {
	return &HostilePopulation{s: s, pick: pick}
}

// HostilePopulation is the hostile set seen as an admission-controlled
// population.
type HostilePopulation struct {
	s    *State
	pick func() *data.ActorTemplate
}

func (p *HostilePopulation) Live() int { return p.s.hostiles.Len() }

func (p *HostilePopulation) Spawn(x, y float32) ecs.EntityID {
	return p.s.SpawnHostile(p.pick(), x, y)
}

func (p *HostilePopulation) EachDead(fn func(ecs.EntityID)) {
	ecs.Each2(p.s.hostiles, p.s.healths, func(id ecs.EntityID, _ *struct{}, h *damage.Health) {
		if !h.Alive() {
			fn(id)
		}
	})
}

func (p *HostilePopulation) Remove(id ecs.EntityID) { p.s.Destroy(id) }

// Collidables appends one index point per hostile to buf. Dead hostiles
// stay collidable until the sweep removes them.
func (s *State) Collidables(buf []spatial.Point) []spatial.Point {
	ecs.Each2(s.hostiles, s.positions, func(id ecs.EntityID, _ *struct{}, p *Position) {
		buf = append(buf, spatial.Point{X: p.X, Y: p.Y, ID: id})
	})
	return buf
}

func sqrt32(v float32) float32 { return float32(math.Sqrt(float64(v))) }
