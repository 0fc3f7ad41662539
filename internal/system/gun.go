package system

import (
	"math/rand/v2"
	"time"

	"github.com/hordecore/server/internal/core/ecs"
	coresys "github.com/hordecore/server/internal/core/system"
	"github.com/hordecore/server/internal/spatial"
	"github.com/hordecore/server/internal/world"
)

// GunConfig is the player's automatic weapon.
type GunConfig struct {
	Interval  time.Duration
	PerShot   int
	Speed     float32
	Lifetime  time.Duration
	Damage    float32
	AimRadius float32
	Spread    float32
}

// GunSystem expires projectiles whose lifetime ran out and, every interval,
// fires a volley at the nearest living hostile within aim range.
// Phase 2 (Spawn).
type GunSystem struct {
	world    *world.State
	index    *spatial.Index
	rng      *rand.Rand
	cfg      GunConfig
	interval *coresys.Interval

	near  []ecs.EntityID
	fired int
}

func NewGunSystem(ws *world.State, index *spatial.Index, rng *rand.Rand, cfg GunConfig) *GunSystem {
	return &GunSystem{
		world:    ws,
		index:    index,
		rng:      rng,
		cfg:      cfg,
		interval: coresys.NewInterval(cfg.Interval, true),
	}
}

func (s *GunSystem) Phase() coresys.Phase { return coresys.PhaseSpawn }

func (s *GunSystem) Update(dt time.Duration) {
	s.world.EachProjectile(func(id ecs.EntityID, _ *world.Position, p *world.Projectile) {
		p.Remaining -= dt
		if p.Remaining <= 0 {
			s.world.MarkForDestruction(id)
		}
	})

	if !s.interval.Tick(dt) {
		return
	}
	player := s.world.Player()
	origin, ok := s.world.Position(player)
	if !ok {
		return
	}
	target, ok := s.nearest(origin)
	if !ok {
		return
	}

	ax, ay := unit(target.X-origin.X, target.Y-origin.Y)
	spec := world.ProjectileSpec{
		Shooter:  player,
		Speed:    s.cfg.Speed,
		Damage:   s.cfg.Damage,
		Lifetime: s.cfg.Lifetime,
	}
	for i := 0; i < s.cfg.PerShot; i++ {
		dx := ax + s.jitter()
		dy := ay + s.jitter()
		s.world.SpawnProjectile(spec, origin.X, origin.Y, dx, dy)
	}
	s.fired += s.cfg.PerShot
}

// Fired returns the total number of projectiles spawned.
func (s *GunSystem) Fired() int { return s.fired }

func (s *GunSystem) jitter() float32 {
	if s.cfg.Spread == 0 {
		return 0
	}
	return (s.rng.Float32()*2 - 1) * s.cfg.Spread
}

// nearest returns the position of the closest living hostile in aim range.
// Ties go to the first id in snapshot order.
func (s *GunSystem) nearest(origin world.Position) (world.Position, bool) {
	s.near = s.index.Snapshot().AppendRadius(s.near[:0], origin.X, origin.Y, s.cfg.AimRadius)
	var best world.Position
	bestD := float32(-1)
	for _, id := range s.near {
		if cur, _, ok := s.world.Health(id); !ok || cur <= 0 {
			continue
		}
		p, ok := s.world.Position(id)
		if !ok {
			continue
		}
		dx, dy := p.X-origin.X, p.Y-origin.Y
		if d := dx*dx + dy*dy; bestD < 0 || d < bestD {
			best, bestD = p, d
		}
	}
	return best, bestD >= 0
}
