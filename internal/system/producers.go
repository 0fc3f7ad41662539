package system

import (
	"time"

	"github.com/hordecore/server/internal/cooldown"
	"github.com/hordecore/server/internal/core/ecs"
	coresys "github.com/hordecore/server/internal/core/system"
	"github.com/hordecore/server/internal/damage"
	"github.com/hordecore/server/internal/spatial"
	"github.com/hordecore/server/internal/world"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// CooldownSystem advances every cooldown timer and clears the damage flash
// of actors whose cooldown just ended. It runs ahead of the producers so
// readiness reflects this tick. Phase 4 (DamageSend).
type CooldownSystem struct {
	tracker *cooldown.Tracker
	world   *world.State
}

func NewCooldownSystem(tracker *cooldown.Tracker, ws *world.State) *CooldownSystem {
	return &CooldownSystem{tracker: tracker, world: ws}
}

func (s *CooldownSystem) Phase() coresys.Phase { return coresys.PhaseDamageSend }

func (s *CooldownSystem) Update(dt time.Duration) {
	s.tracker.Tick(dt, func(id ecs.EntityID, ch cooldown.Channel) {
		if ch == cooldown.ChannelDamage {
			s.world.ClearFlash(id)
		}
	})
}

// ProjectileHitConfig controls projectile hit detection.
type ProjectileHitConfig struct {
	HitRadius float32
	// PerTarget additionally requires every hit to lie within the target
	// template's hurt radius. HitRadius is then the widest query radius.
	PerTarget    bool
	DespawnOnHit bool
	// Workers and Threshold bound the parallel query fan-out: below
	// Threshold projectiles, or with one worker, queries run inline.
	Workers   int
	Threshold int
}

type shot struct {
	id  ecs.EntityID
	x   float32
	y   float32
	dmg float32
	src ecs.EntityID
}

type hit struct {
	shot   int // index into shots
	target ecs.EntityID
}

// ProjectileHitSystem queries the index around every projectile and sends
// one projectile damage event per hostile in range. Queries against the
// immutable snapshot may fan out across goroutines; hits are merged in
// chunk order so the event order equals the sequential order.
// Phase 4 (DamageSend).
type ProjectileHitSystem struct {
	world    *world.State
	index    *spatial.Index
	pipeline *damage.Pipeline
	cfg      ProjectileHitConfig
	log      *zap.Logger

	shots  []shot
	chunks [][]hit
	sent   int
}

func NewProjectileHitSystem(ws *world.State, index *spatial.Index, p *damage.Pipeline, cfg ProjectileHitConfig, log *zap.Logger) *ProjectileHitSystem {
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}
	return &ProjectileHitSystem{
		world:    ws,
		index:    index,
		pipeline: p,
		cfg:      cfg,
		log:      log,
		chunks:   make([][]hit, cfg.Workers),
	}
}

func (s *ProjectileHitSystem) Phase() coresys.Phase { return coresys.PhaseDamageSend }

func (s *ProjectileHitSystem) Update(_ time.Duration) {
	s.sent = 0
	s.shots = s.shots[:0]
	s.world.EachProjectile(func(id ecs.EntityID, pos *world.Position, p *world.Projectile) {
		s.shots = append(s.shots, shot{id: id, x: pos.X, y: pos.Y, dmg: p.Damage, src: p.Shooter})
	})
	if len(s.shots) == 0 {
		return
	}

	snap := s.index.Snapshot()
	if snap.Len() == 0 {
		return
	}
	workers := s.cfg.Workers
	if len(s.shots) < s.cfg.Threshold || workers == 1 {
		workers = 1
	}
	s.query(snap, workers)

	for _, chunk := range s.chunks[:workers] {
		for _, h := range chunk {
			sh := &s.shots[h.shot]
			s.pipeline.Send(h.target, damage.Context{
				Amount:   sh.dmg,
				Kind:     damage.KindProjectile,
				Attacker: sh.src,
			})
			s.sent++
		}
	}
	if s.cfg.DespawnOnHit {
		s.despawnHitters(workers)
	}
}

// Sent returns the number of events sent this tick.
func (s *ProjectileHitSystem) Sent() int { return s.sent }

func (s *ProjectileHitSystem) query(snap *spatial.Snapshot, workers int) {
	size := (len(s.shots) + workers - 1) / workers
	run := func(w int) {
		lo := w * size
		hi := min(lo+size, len(s.shots))
		out := s.chunks[w][:0]
		var buf []ecs.EntityID
		for i := lo; i < hi; i++ {
			buf = snap.AppendRadius(buf[:0], s.shots[i].x, s.shots[i].y, s.cfg.HitRadius)
			for _, target := range buf {
				if s.cfg.PerTarget && !s.reaches(&s.shots[i], target) {
					continue
				}
				out = append(out, hit{shot: i, target: target})
			}
		}
		s.chunks[w] = out
	}

	if workers == 1 {
		run(0)
		return
	}
	var g errgroup.Group
	for w := 0; w < workers; w++ {
		g.Go(func() error {
			run(w)
			return nil
		})
	}
	// Queries cannot fail; Wait only joins the workers.
	_ = g.Wait()
}

// reaches reports whether sh lies within target's hurt radius. Targets
// without a template or position pass; the pipeline rejects missing ones.
// Only reads world state, so it is safe from the query workers.
func (s *ProjectileHitSystem) reaches(sh *shot, target ecs.EntityID) bool {
	a, ok := s.world.Actor(target)
	if !ok || a.Template == nil {
		return true
	}
	pos, ok := s.world.Position(target)
	if !ok {
		return true
	}
	dx := float64(pos.X) - float64(sh.x)
	dy := float64(pos.Y) - float64(sh.y)
	r := float64(a.Template.HurtRadius)
	return dx*dx+dy*dy <= r*r
}

func (s *ProjectileHitSystem) despawnHitters(workers int) {
	last := -1
	for _, chunk := range s.chunks[:workers] {
		for _, h := range chunk {
			if h.shot == last {
				continue
			}
			last = h.shot
			sh := &s.shots[h.shot]
			if p, ok := s.world.Projectile(sh.id); ok {
				p.Hits++
			}
			s.world.MarkForDestruction(sh.id)
		}
	}
}

// ContactSystem checks, every interval, which hostiles overlap the player's
// hurt radius and sends one contact damage event per hostile onto the
// player. Hostiles removed since the last rebuild are skipped.
// Phase 4 (DamageSend).
type ContactSystem struct {
	world    *world.State
	index    *spatial.Index
	pipeline *damage.Pipeline
	interval *coresys.Interval
	near     []ecs.EntityID
	sent     int
}

func NewContactSystem(ws *world.State, index *spatial.Index, p *damage.Pipeline, every time.Duration) *ContactSystem {
	return &ContactSystem{
		world:    ws,
		index:    index,
		pipeline: p,
		interval: coresys.NewInterval(every, true),
	}
}

func (s *ContactSystem) Phase() coresys.Phase { return coresys.PhaseDamageSend }

func (s *ContactSystem) Update(dt time.Duration) {
	s.sent = 0
	if !s.interval.Tick(dt) {
		return
	}
	player := s.world.Player()
	pos, ok := s.world.Position(player)
	if !ok {
		return
	}
	pa, ok := s.world.Actor(player)
	if !ok {
		return
	}

	s.near = s.index.Snapshot().AppendRadius(s.near[:0], pos.X, pos.Y, pa.Template.HurtRadius)
	for _, id := range s.near {
		a, ok := s.world.Actor(id)
		if !ok || a.Template.ContactDamage <= 0 {
			continue
		}
		s.pipeline.Send(player, damage.Context{
			Amount:   a.Template.ContactDamage,
			Kind:     damage.KindContact,
			Attacker: id,
		})
		s.sent++
	}
}

// Sent returns the number of events sent this tick.
func (s *ContactSystem) Sent() int { return s.sent }
