// Package sim assembles one simulation run: world state, spatial index,
// damage pipeline, population controller and the phase-ordered systems.
package sim

import (
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/hordecore/server/internal/config"
	"github.com/hordecore/server/internal/cooldown"
	"github.com/hordecore/server/internal/core/ecs"
	"github.com/hordecore/server/internal/core/event"
	coresys "github.com/hordecore/server/internal/core/system"
	"github.com/hordecore/server/internal/damage"
	"github.com/hordecore/server/internal/data"
	"github.com/hordecore/server/internal/population"
	"github.com/hordecore/server/internal/scripting"
	"github.com/hordecore/server/internal/spatial"
	"github.com/hordecore/server/internal/system"
	"github.com/hordecore/server/internal/world"
	"go.uber.org/zap"
)

// Options wires a run to its inputs and outputs. Config and Actors are
// required; everything else is optional.
type Options struct {
	Config *config.Config
	Actors *data.ActorTable
	Lua    *scripting.Engine
	Input  system.MoveInput
	Sinks  []system.FrameSink
	Log    *zap.Logger
}

// Sim is one run. Tick must be called from a single goroutine.
type Sim struct {
	cfg     *config.Config
	seed    uint64
	started time.Time

	clock    system.Clock
	world    *world.State
	tracker  *cooldown.Tracker
	index    *spatial.Index
	bus      *event.Bus
	pipeline *damage.Pipeline
	ctrl     *population.Controller
	runner   *coresys.Runner
	stats    damage.Stats
	outcome  *system.OutcomeObserver
	output   *system.OutputSystem

	log *zap.Logger
}

// New builds a run and spawns the player at the origin.
func New(opts Options) (*Sim, error) {
	cfg := opts.Config
	if cfg == nil || opts.Actors == nil {
		return nil, fmt.Errorf("sim: config and actor table are required")
	}
	log := opts.Log
	if log == nil {
		log = zap.NewNop()
	}

	seed := cfg.Sim.Seed
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}
	spawnRng := rand.New(rand.NewPCG(seed, 1))
	gunRng := rand.New(rand.NewPCG(seed, 2))

	s := &Sim{
		cfg:     cfg,
		seed:    seed,
		started: time.Now(),
		tracker: cooldown.NewTracker(),
		index:   spatial.NewIndex(),
		bus:     event.NewBus(),
		runner:  coresys.NewRunner(),
		log:     log,
	}
	s.world = world.NewState(s.tracker, min(cfg.Population.MaxLive+1, 1<<16))
	s.pipeline = damage.NewPipeline(s.world.Targets(), s.tracker, log.Named("damage"))

	tables := opts.Actors
	pick := func() *data.ActorTemplate {
		return tables.PickHostile(spawnRng.IntN(tables.TotalWeight()))
	}
	s.ctrl = population.NewController(s.world.Hostiles(pick), population.Caps{
		MaxLive: cfg.Population.MaxLive,
		PerPass: population.PerPassFromRate(cfg.Population.SpawnRatePerSecond, cfg.Population.SpawnInterval),
	}, log.Named("population"))

	if opts.Lua != nil {
		if hook := opts.Lua.DamageHook(s.kindOf); hook != nil {
			s.pipeline.AddBeforeHook(hook)
		}
	}
	s.outcome = system.NewOutcomeObserver(s.world, s.bus, &s.clock)
	s.pipeline.AddObserver(&s.stats)
	s.pipeline.AddObserver(s.outcome)

	hitRadius, perTarget := cfg.Gun.HitRadius, false
	if hitRadius == 0 {
		hitRadius, perTarget = tables.MaxHurtRadius(), true
	}

	spawn := system.NewSpawnSystem(s.world, s.ctrl, s.bus, spawnRng, system.SpawnArea{
		MinDistance: cfg.Population.SpawnMinDistance,
		MaxDistance: cfg.Population.SpawnMaxDistance,
	}, cfg.Population.SpawnInterval)
	before, apply, after := system.NewDamageSystems(s.pipeline)

	s.runner.Register(system.NewEventDispatchSystem(s.bus))
	s.runner.Register(system.NewMovementSystem(s.world, opts.Input))
	s.runner.Register(spawn)
	if cfg.Gun.Enabled {
		s.runner.Register(system.NewGunSystem(s.world, s.index, gunRng, system.GunConfig{
			Interval:  cfg.Gun.Interval,
			PerShot:   cfg.Gun.PerShot,
			Speed:     cfg.Gun.Speed,
			Lifetime:  cfg.Gun.Lifetime,
			Damage:    cfg.Gun.Damage,
			AimRadius: cfg.Gun.AimRadius,
			Spread:    cfg.Gun.Spread,
		}))
	}
	s.runner.Register(system.NewIndexSystem(s.world, s.index, s.bus, cfg.Sim.IndexRebuildInterval, log.Named("index")))
	s.runner.Register(system.NewCooldownSystem(s.tracker, s.world))
	s.runner.Register(system.NewProjectileHitSystem(s.world, s.index, s.pipeline, system.ProjectileHitConfig{
		HitRadius:    hitRadius,
		PerTarget:    perTarget,
		DespawnOnHit: cfg.Gun.DespawnOnHit,
		Workers:      cfg.Sim.QueryWorkers,
		Threshold:    cfg.Sim.ParallelThreshold,
	}, log.Named("projectile")))
	s.runner.Register(system.NewContactSystem(s.world, s.index, s.pipeline, cfg.Contact.Interval))
	s.runner.Register(before)
	s.runner.Register(apply)
	s.runner.Register(after)
	s.runner.Register(system.NewRegenSystem(s.world, opts.Lua, log.Named("regen")))
	s.output = system.NewOutputSystem(system.FrameSources{
		Clock:    &s.clock,
		World:    s.world,
		Index:    s.index,
		Pipeline: s.pipeline,
		Control:  s.ctrl,
		Spawn:    spawn,
		Outcome:  s.outcome,
	}, cfg.Feed.MaxOutcomes, log.Named("output"), opts.Sinks...)
	s.runner.Register(s.output)
	s.runner.Register(system.NewCleanupSystem(s.world, s.ctrl, s.bus, log.Named("cleanup")))

	s.world.SpawnPlayer(tables.Player(), 0, 0)

	log.Info("simulation ready",
		zap.Uint64("seed", seed),
		zap.Int("systems", s.runner.Len()),
		zap.Int("max_live", cfg.Population.MaxLive),
		zap.Int("per_pass", s.ctrl.Caps().PerPass),
	)
	return s, nil
}

// Tick advances the simulation by dt. After the player dies Tick still
// runs, so observers and sinks see the final frames.
func (s *Sim) Tick(dt time.Duration) {
	s.clock.Advance(dt)
	s.runner.Tick(dt)
}

// Over reports whether the player has died.
func (s *Sim) Over() bool { return s.outcome.Over() }

// HealPlayer heals the player by amount.
func (s *Sim) HealPlayer(amount float32) error {
	return s.world.Heal(s.world.Player(), amount)
}

// AttachSink adds a frame sink from the next tick on.
func (s *Sim) AttachSink(sink system.FrameSink) {
	s.output.AddSink(sink)
}

// SubscribeGameOver registers fn for the player's death.
func (s *Sim) SubscribeGameOver(fn func(event.PlayerDied)) {
	event.Subscribe(s.bus, fn)
}

func (s *Sim) Seed() uint64                       { return s.seed }
func (s *Sim) Clock() system.Clock                { return s.clock }
func (s *Sim) World() *world.State                { return s.world }
func (s *Sim) Index() *spatial.Index              { return s.index }
func (s *Sim) Pipeline() *damage.Pipeline         { return s.pipeline }
func (s *Sim) Population() *population.Controller { return s.ctrl }
func (s *Sim) Stats() *damage.Stats               { return &s.stats }

func (s *Sim) kindOf(id ecs.EntityID) string {
	a, ok := s.world.Actor(id)
	if !ok {
		return "none"
	}
	return a.Kind.String()
}
