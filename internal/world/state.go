// Package world owns actor state: the ECS world, its component stores and
// the constructors that assemble complete actors.
package world

import (
	"errors"
	"fmt"
	"time"

	"github.com/hordecore/server/internal/cooldown"
	"github.com/hordecore/server/internal/core/ecs"
	"github.com/hordecore/server/internal/damage"
	"github.com/hordecore/server/internal/data"
)

// ErrNoActor is returned by explicit operations on an id that no longer
// names a live actor.
var ErrNoActor = errors.New("no such actor")

// Kind classifies an actor.
type Kind uint8

const (
	KindPlayer Kind = iota + 1
	KindHostile
	KindProjectile
)

func (k Kind) String() string {
	switch k {
	case KindPlayer:
		return "player"
	case KindHostile:
		return "hostile"
	case KindProjectile:
		return "projectile"
	default:
		return "unknown"
	}
}

// Position is written only by the movement system.
type Position struct {
	X, Y float32
}

// Velocity in units per second.
type Velocity struct {
	X, Y float32
}

// Actor carries the template an actor was built from.
type Actor struct {
	Kind     Kind
	Template *data.ActorTemplate
}

// Projectile is a position-only actor with a bounded lifetime.
type Projectile struct {
	Shooter   ecs.EntityID
	Damage    float32
	Remaining time.Duration
	Hits      int
}

type cooldownSpec struct {
	channel  cooldown.Channel
	duration time.Duration
}

// ProjectileSpec describes what a gun fires.
type ProjectileSpec struct {
	Shooter  ecs.EntityID
	Speed    float32
	Damage   float32
	Lifetime time.Duration
}

// State holds every actor record. Accessed only from the game loop
// goroutine; no locks.
type State struct {
	ecs *ecs.World

	positions   *ecs.Store[Position]
	velocities  *ecs.Store[Velocity]
	healths     *ecs.Store[damage.Health]
	cooldowns   *ecs.Store[cooldownSpec]
	actors      *ecs.Store[Actor]
	hostiles    *ecs.Store[struct{}]
	projectiles *ecs.Store[Projectile]
	flash       *ecs.Store[struct{}]

	tracker *cooldown.Tracker
	player  ecs.EntityID
}

// NewState creates an empty world. The cooldown tracker is registered with
// the ECS registry so destroyed actors lose their timers.
func NewState(tracker *cooldown.Tracker, capacity int) *State {
	s := &State{
		ecs:         ecs.NewWorld(),
		positions:   ecs.NewStore[Position](capacity),
		velocities:  ecs.NewStore[Velocity](capacity),
		healths:     ecs.NewStore[damage.Health](capacity),
		cooldowns:   ecs.NewStore[cooldownSpec](capacity),
		actors:      ecs.NewStore[Actor](capacity),
		hostiles:    ecs.NewStore[struct{}](capacity),
		projectiles: ecs.NewStore[Projectile](256),
		flash:       ecs.NewStore[struct{}](64),
		tracker:     tracker,
	}
	reg := s.ecs.Registry()
	reg.Register(s.positions)
	reg.Register(s.velocities)
	reg.Register(s.healths)
	reg.Register(s.cooldowns)
	reg.Register(s.actors)
	reg.Register(s.hostiles)
	reg.Register(s.projectiles)
	reg.Register(s.flash)
	reg.Register(tracker)
	return s
}

// SpawnPlayer builds the player. A world holds at most one player; spawning
// again replaces the previous one.
func (s *State) SpawnPlayer(tmpl *data.ActorTemplate, x, y float32) ecs.EntityID {
	if !s.player.IsZero() {
		s.Destroy(s.player)
	}
	id := s.spawnLiving(KindPlayer, tmpl, x, y)
	s.player = id
	return id
}

// SpawnHostile builds one hostile actor.
func (s *State) SpawnHostile(tmpl *data.ActorTemplate, x, y float32) ecs.EntityID {
	id := s.spawnLiving(KindHostile, tmpl, x, y)
	s.hostiles.Set(id, struct{}{})
	return id
}

func (s *State) spawnLiving(kind Kind, tmpl *data.ActorTemplate, x, y float32) ecs.EntityID {
	id := s.ecs.CreateEntity()
	s.positions.Set(id, Position{X: x, Y: y})
	s.velocities.Set(id, Velocity{})
	s.healths.Set(id, damage.NewHealth(tmpl.MaxHealth))
	if tmpl.DamageCooldown > 0 {
		s.cooldowns.Set(id, cooldownSpec{channel: cooldown.ChannelDamage, duration: tmpl.DamageCooldown})
	}
	s.actors.Set(id, Actor{Kind: kind, Template: tmpl})
	return id
}

// SpawnProjectile builds a projectile moving along (dx, dy), which need not
// be normalised. Projectiles carry no health.
func (s *State) SpawnProjectile(spec ProjectileSpec, x, y, dx, dy float32) ecs.EntityID {
	id := s.ecs.CreateEntity()
	s.positions.Set(id, Position{X: x, Y: y})
	vx, vy := normalize(dx, dy)
	s.velocities.Set(id, Velocity{X: vx * spec.Speed, Y: vy * spec.Speed})
	s.actors.Set(id, Actor{Kind: KindProjectile})
	s.projectiles.Set(id, Projectile{
		Shooter:   spec.Shooter,
		Damage:    spec.Damage,
		Remaining: spec.Lifetime,
	})
	return id
}

// Destroy removes id from every store immediately. Returns false for stale ids.
func (s *State) Destroy(id ecs.EntityID) bool {
	if id == s.player {
		s.player = 0
	}
	return s.ecs.Destroy(id)
}

// MarkForDestruction defers removal to FlushDestroyQueue.
func (s *State) MarkForDestruction(id ecs.EntityID) {
	s.ecs.MarkForDestruction(id)
}

// FlushDestroyQueue destroys every queued actor and returns how many were
// still alive.
func (s *State) FlushDestroyQueue() int {
	n := s.ecs.FlushDestroyQueue()
	if !s.player.IsZero() && !s.ecs.Alive(s.player) {
		s.player = 0
	}
	return n
}

// Alive reports whether id still names an actor (dead-but-unswept included).
func (s *State) Alive(id ecs.EntityID) bool { return s.ecs.Alive(id) }

// Player returns the player id, zero when there is none.
func (s *State) Player() ecs.EntityID { return s.player }

// Health returns current and max health for HUD bars.
func (s *State) Health(id ecs.EntityID) (current, max float32, ok bool) {
	h, ok := s.healths.Get(id)
	if !ok {
		return 0, 0, false
	}
	return h.Current(), h.Max(), true
}

// Heal adds amount to id's health, clamped to max. Dead actors can be
// healed back; the sweep only removes actors still at 0 when it runs.
func (s *State) Heal(id ecs.EntityID, amount float32) error {
	h, ok := s.healths.Get(id)
	if !ok {
		return fmt.Errorf("heal %d: %w", id, ErrNoActor)
	}
	return h.Heal(amount)
}

// Position returns id's position.
func (s *State) Position(id ecs.EntityID) (Position, bool) {
	p, ok := s.positions.Get(id)
	if !ok {
		return Position{}, false
	}
	return *p, true
}

// SetVelocity replaces id's velocity. Returns false for actors without one.
func (s *State) SetVelocity(id ecs.EntityID, v Velocity) bool {
	cur, ok := s.velocities.Get(id)
	if !ok {
		return false
	}
	*cur = v
	return true
}

// Actor returns id's kind and template.
func (s *State) Actor(id ecs.EntityID) (Actor, bool) {
	a, ok := s.actors.Get(id)
	if !ok {
		return Actor{}, false
	}
	return *a, true
}

// Projectile returns id's projectile record.
func (s *State) Projectile(id ecs.EntityID) (*Projectile, bool) {
	return s.projectiles.Get(id)
}

// HostileCount returns the number of hostiles, dead-but-unswept included.
func (s *State) HostileCount() int { return s.hostiles.Len() }

// ProjectileCount returns the number of live projectiles.
func (s *State) ProjectileCount() int { return s.projectiles.Len() }

// ActorCount returns every allocated actor, projectiles included.
func (s *State) ActorCount() int { return s.ecs.Live() }

// SetFlash marks id as recently damaged.
func (s *State) SetFlash(id ecs.EntityID) {
	if s.ecs.Alive(id) {
		s.flash.Set(id, struct{}{})
	}
}

// ClearFlash removes the damage-flash marker.
func (s *State) ClearFlash(id ecs.EntityID) { s.flash.Remove(id) }

// Flashing reports whether id carries the damage-flash marker.
func (s *State) Flashing(id ecs.EntityID) bool { return s.flash.Has(id) }

// Move integrates every velocity over dt.
func (s *State) Move(dt time.Duration) {
	sec := float32(dt.Seconds())
	ecs.Each2(s.velocities, s.positions, func(_ ecs.EntityID, v *Velocity, p *Position) {
		p.X += v.X * sec
		p.Y += v.Y * sec
	})
}

// EachHostile visits every hostile with its position and template.
func (s *State) EachHostile(fn func(id ecs.EntityID, pos *Position, a *Actor)) {
	ecs.Each3(s.hostiles, s.positions, s.actors, func(id ecs.EntityID, _ *struct{}, p *Position, a *Actor) {
		fn(id, p, a)
	})
}

// EachProjectile visits every projectile with its position.
func (s *State) EachProjectile(fn func(id ecs.EntityID, pos *Position, p *Projectile)) {
	ecs.Each2(s.projectiles, s.positions, func(id ecs.EntityID, pr *Projectile, p *Position) {
		fn(id, p, pr)
	})
}

// EachLiving visits every actor that has health.
func (s *State) EachLiving(fn func(id ecs.EntityID, h *damage.Health, a *Actor)) {
	ecs.Each2(s.healths, s.actors, fn)
}

func normalize(x, y float32) (float32, float32) {
	l := x*x + y*y
	if l == 0 {
		return 0, 0
	}
	inv := 1 / sqrt32(l)
	return x * inv, y * inv
}
