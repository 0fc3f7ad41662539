package system_test

import (
	"errors"
	"math"
	"math/rand/v2"
	"reflect"
	"slices"
	"testing"
	"time"

	"github.com/hordecore/server/internal/cooldown"
	"github.com/hordecore/server/internal/core/ecs"
	"github.com/hordecore/server/internal/core/event"
	"github.com/hordecore/server/internal/damage"
	"github.com/hordecore/server/internal/data"
	"github.com/hordecore/server/internal/net/frame"
	"github.com/hordecore/server/internal/population"
	"github.com/hordecore/server/internal/scripting"
	"github.com/hordecore/server/internal/spatial"
	"github.com/hordecore/server/internal/system"
	"github.com/hordecore/server/internal/world"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
)

const testActors = `
actors:
  - name: player
    role: player
    max_health: 100
    damage_cooldown: 300ms
    speed: 80
    hurt_radius: 5
    regen_per_second: 5
  - name: grunt
    role: hostile
    max_health: 50
    damage_cooldown: 150ms
    speed: 40
    hurt_radius: 6
    contact_damage: 20
  - name: runt
    role: hostile
    max_health: 10
    damage_cooldown: 150ms
    speed: 60
    hurt_radius: 1
    contact_damage: 5
`

type fixture struct {
	table    *data.ActorTable
	tracker  *cooldown.Tracker
	world    *world.State
	index    *spatial.Index
	bus      *event.Bus
	pipeline *damage.Pipeline
	clock    system.Clock
	log      *zap.Logger
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	table, err := data.ParseActorTable([]byte(testActors))
	if err != nil {
		t.Fatalf("ParseActorTable: %v", err)
	}
	f := &fixture{
		table:   table,
		tracker: cooldown.NewTracker(),
		index:   spatial.NewIndex(),
		bus:     event.NewBus(),
		log:     zaptest.NewLogger(t),
	}
	f.world = world.NewState(f.tracker, 64)
	f.pipeline = damage.NewPipeline(f.world.Targets(), f.tracker, f.log)
	return f
}

func (f *fixture) player(x, y float32) ecs.EntityID {
	return f.world.SpawnPlayer(f.table.Player(), x, y)
}

func (f *fixture) hostile(x, y float32) ecs.EntityID {
	return f.world.SpawnHostile(f.table.Get("grunt"), x, y)
}

func (f *fixture) rebuild() {
	f.index.Rebuild(f.world.Collidables(nil))
}

func (f *fixture) controller(maxLive, perPass int) *population.Controller {
	pop := f.world.Hostiles(func() *data.ActorTemplate { return f.table.Get("grunt") })
	return population.NewController(pop, population.Caps{MaxLive: maxLive, PerPass: perPass}, f.log)
}

func (f *fixture) hit(target ecs.EntityID, amount float32) {
	f.pipeline.Send(target, damage.Context{Amount: amount, Kind: damage.KindProjectile})
}

// dispatch makes events emitted so far visible to subscribers.
func (f *fixture) dispatch() {
	f.bus.SwapBuffers()
	f.bus.DispatchAll()
}

func collect[T any](f *fixture) *[]T {
	var got []T
	event.Subscribe(f.bus, func(e T) { got = append(got, e) })
	return &got
}

func TestMovementSteersHostilesTowardPlayer(t *testing.T) {
	f := newFixture(t)
	p := f.player(0, 0)
	h := f.hostile(100, 0)

	move := system.NewMovementSystem(f.world, system.MoveFunc(func() (float32, float32) { return 3, 0 }))
	move.Update(time.Second)

	// Hostiles steer toward where the player stood at the start of the tick.
	if pos, _ := f.world.Position(h); pos.X != 60 || pos.Y != 0 {
		t.Errorf("hostile at %+v, want (60,0)", pos)
	}
	// Input is normalised before scaling by speed.
	if pos, _ := f.world.Position(p); pos.X != 80 || pos.Y != 0 {
		t.Errorf("player at %+v, want (80,0)", pos)
	}
}

func TestMovementStopsDeadHostiles(t *testing.T) {
	f := newFixture(t)
	f.player(0, 0)
	h := f.hostile(100, 0)
	f.hit(h, 50)
	f.pipeline.Resolve()

	system.NewMovementSystem(f.world, nil).Update(time.Second)
	if pos, _ := f.world.Position(h); pos.X != 100 {
		t.Errorf("dead hostile moved to %+v", pos)
	}
}

func TestSpawnSystemRespectsHeadroom(t *testing.T) {
	f := newFixture(t)
	f.player(10, 10)
	ctrl := f.controller(5, 3)
	area := system.SpawnArea{MinDistance: 20, MaxDistance: 40}
	spawn := system.NewSpawnSystem(f.world, ctrl, f.bus, rand.New(rand.NewPCG(1, 2)), area, 0)
	spawned := collect[event.ActorSpawned](f)

	var admitted []int
	for range 3 {
		spawn.Update(16 * time.Millisecond)
		admitted = append(admitted, spawn.Admitted())
	}
	if !reflect.DeepEqual(admitted, []int{3, 2, 0}) {
		t.Fatalf("admitted per pass = %v, want [3 2 0]", admitted)
	}
	if n := f.world.HostileCount(); n != 5 {
		t.Fatalf("live = %d, want 5", n)
	}

	f.dispatch()
	if len(*spawned) != 5 {
		t.Fatalf("ActorSpawned events = %d, want 5", len(*spawned))
	}
	for _, e := range *spawned {
		d := math.Hypot(float64(e.X-10), float64(e.Y-10))
		if d < 20-1e-3 || d > 40+1e-3 {
			t.Errorf("spawn %v at distance %.2f, outside [20,40]", e.ID, d)
		}
		if !f.world.Alive(e.ID) {
			t.Errorf("spawned id %v not alive", e.ID)
		}
	}
}

func TestSpawnSystemWithoutPlayer(t *testing.T) {
	f := newFixture(t)
	ctrl := f.controller(5, 3)
	spawn := system.NewSpawnSystem(f.world, ctrl, f.bus, rand.New(rand.NewPCG(1, 2)), system.SpawnArea{MaxDistance: 10}, 0)
	spawn.Update(time.Millisecond)
	if spawn.Admitted() != 0 || f.world.HostileCount() != 0 {
		t.Fatal("spawned without a player to spawn around")
	}
}

func TestIndexSystemCadence(t *testing.T) {
	f := newFixture(t)
	f.player(0, 0)
	f.hostile(1, 1)
	rebuilt := collect[event.IndexRebuilt](f)
	idx := system.NewIndexSystem(f.world, f.index, f.bus, 100*time.Millisecond, f.log)

	var fired []int
	for i := range 13 {
		before := f.index.Snapshot().Version()
		idx.Update(16 * time.Millisecond)
		if f.index.Snapshot().Version() != before {
			fired = append(fired, i)
		}
	}
	// First tick, then every 100ms of accumulated 16ms ticks.
	if !reflect.DeepEqual(fired, []int{0, 7}) {
		t.Fatalf("rebuilt on ticks %v, want [0 7]", fired)
	}
	f.dispatch()
	if len(*rebuilt) != 2 || (*rebuilt)[0].Points != 1 {
		t.Fatalf("IndexRebuilt events = %+v", *rebuilt)
	}
}

func TestContactSystemInterval(t *testing.T) {
	f := newFixture(t)
	p := f.player(0, 0)
	a := f.hostile(1, 0)
	b := f.hostile(0, 2)
	f.hostile(50, 50) // out of reach
	f.rebuild()

	contact := system.NewContactSystem(f.world, f.index, f.pipeline, 50*time.Millisecond)
	var sent []int
	for range 5 {
		contact.Update(16 * time.Millisecond)
		sent = append(sent, contact.Sent())
	}
	if !reflect.DeepEqual(sent, []int{2, 0, 0, 0, 2}) {
		t.Fatalf("sent per tick = %v", sent)
	}

	attackers := map[ecs.EntityID]bool{}
	for i := range f.pipeline.Pending() {
		ev := f.pipeline.Event(i)
		if ev.Target() != p || ev.Context.Kind != damage.KindContact || ev.Context.Amount != 20 {
			t.Errorf("event %d = %+v", i, *ev)
		}
		attackers[ev.Context.Attacker] = true
	}
	if !attackers[a] || !attackers[b] || len(attackers) != 2 {
		t.Errorf("attackers = %v", attackers)
	}
}

func TestContactSkipsRemovedHostiles(t *testing.T) {
	f := newFixture(t)
	f.player(0, 0)
	h := f.hostile(1, 0)
	f.rebuild()
	f.world.Destroy(h) // gone since the snapshot was built

	contact := system.NewContactSystem(f.world, f.index, f.pipeline, time.Second)
	contact.Update(time.Millisecond)
	if contact.Sent() != 0 || f.pipeline.Pending() != 0 {
		t.Fatal("contact sent for a removed hostile")
	}
}

func hitTargets(p *damage.Pipeline) []ecs.EntityID {
	out := make([]ecs.EntityID, 0, p.Pending())
	for i := range p.Pending() {
		out = append(out, p.Event(i).Target())
	}
	return out
}

func TestProjectileHitsParallelMatchesSequential(t *testing.T) {
	f := newFixture(t)
	pl := f.player(0, 0)
	for x := range 20 {
		for y := range 20 {
			f.hostile(float32(x*4), float32(y*4))
		}
	}
	spec := world.ProjectileSpec{Shooter: pl, Speed: 1, Damage: 7, Lifetime: time.Second}
	for i := range 100 {
		f.world.SpawnProjectile(spec, float32(i%40)*2, float32(i/40)*9, 1, 0)
	}
	f.rebuild()

	run := func(workers int) []ecs.EntityID {
		p := damage.NewPipeline(f.world.Targets(), f.tracker, f.log)
		sys := system.NewProjectileHitSystem(f.world, f.index, p, system.ProjectileHitConfig{
			HitRadius: 6,
			Workers:   workers,
		}, f.log)
		sys.Update(16 * time.Millisecond)
		if sys.Sent() != p.Pending() {
			t.Fatalf("Sent() = %d, pending = %d", sys.Sent(), p.Pending())
		}
		return hitTargets(p)
	}

	seq := run(1)
	if len(seq) == 0 {
		t.Fatal("no hits")
	}
	for _, w := range []int{2, 3, 8, 200} {
		if got := run(w); !reflect.DeepEqual(got, seq) {
			t.Fatalf("workers=%d: hit order differs from sequential", w)
		}
	}
}

func TestProjectileHitUsesTargetHurtRadius(t *testing.T) {
	f := newFixture(t)
	pl := f.player(-500, 0)
	grunt := f.hostile(10, 0)
	runt := f.world.SpawnHostile(f.table.Get("runt"), 15, 0)
	spec := world.ProjectileSpec{Shooter: pl, Speed: 1, Damage: 5, Lifetime: time.Second}
	f.world.SpawnProjectile(spec, 12, 0, 1, 0)
	f.rebuild()

	tests := []struct {
		name      string
		perTarget bool
		want      []ecs.EntityID
	}{
		{"shared radius", false, []ecs.EntityID{grunt, runt}},
		{"per target", true, []ecs.EntityID{grunt}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := damage.NewPipeline(f.world.Targets(), f.tracker, f.log)
			sys := system.NewProjectileHitSystem(f.world, f.index, p, system.ProjectileHitConfig{
				HitRadius: 6,
				PerTarget: tt.perTarget,
				Workers:   1,
			}, f.log)
			sys.Update(16 * time.Millisecond)
			got := hitTargets(p)
			slices.Sort(got)
			want := slices.Sorted(slices.Values(tt.want))
			if !reflect.DeepEqual(got, want) {
				t.Errorf("hit targets = %v, want %v", got, want)
			}
		})
	}
}

func TestProjectileDespawnOnHit(t *testing.T) {
	f := newFixture(t)
	pl := f.player(0, 0)
	a := f.hostile(10, 0)
	b := f.hostile(11, 0)
	spec := world.ProjectileSpec{Shooter: pl, Speed: 1, Damage: 5, Lifetime: time.Second}
	hitter := f.world.SpawnProjectile(spec, 10, 0, 1, 0)
	miss := f.world.SpawnProjectile(spec, -50, 0, 1, 0)
	f.rebuild()

	sys := system.NewProjectileHitSystem(f.world, f.index, f.pipeline, system.ProjectileHitConfig{
		HitRadius:    3,
		DespawnOnHit: true,
		Workers:      1,
	}, f.log)
	sys.Update(16 * time.Millisecond)

	// One projectile damages every hostile in range before it is removed.
	got := hitTargets(f.pipeline)
	if len(got) != 2 || !(got[0] == a && got[1] == b || got[0] == b && got[1] == a) {
		t.Fatalf("hit targets = %v, want %v and %v", got, a, b)
	}
	if p, _ := f.world.Projectile(hitter); p.Hits != 1 {
		t.Errorf("hits = %d, want 1", p.Hits)
	}
	f.world.FlushDestroyQueue()
	if f.world.Alive(hitter) {
		t.Error("projectile survived its hit")
	}
	if !f.world.Alive(miss) {
		t.Error("missing projectile was removed")
	}
}

func TestGunFiresAtNearestAndExpires(t *testing.T) {
	f := newFixture(t)
	f.player(0, 0)
	f.hostile(30, 0)
	f.hostile(-100, 0)
	f.rebuild()

	gun := system.NewGunSystem(f.world, f.index, rand.New(rand.NewPCG(3, 4)), system.GunConfig{
		Interval:  time.Second,
		PerShot:   3,
		Speed:     10,
		Lifetime:  50 * time.Millisecond,
		Damage:    5,
		AimRadius: 200,
	})
	gun.Update(16 * time.Millisecond)
	if gun.Fired() != 3 || f.world.ProjectileCount() != 3 {
		t.Fatalf("fired %d, live projectiles %d", gun.Fired(), f.world.ProjectileCount())
	}
	f.world.Move(time.Second)
	f.world.EachProjectile(func(id ecs.EntityID, pos *world.Position, _ *world.Projectile) {
		if pos.X != 10 || pos.Y != 0 {
			t.Errorf("projectile %v at %+v, want (10,0)", id, *pos)
		}
	})

	for range 4 {
		gun.Update(16 * time.Millisecond)
		f.world.FlushDestroyQueue()
	}
	if n := f.world.ProjectileCount(); n != 0 {
		t.Errorf("%d projectiles outlived their lifetime", n)
	}
	if gun.Fired() != 3 {
		t.Errorf("fired %d inside one interval, want 3", gun.Fired())
	}
}

func TestGunHoldsFireWithoutTarget(t *testing.T) {
	f := newFixture(t)
	f.player(0, 0)
	f.hostile(500, 0)
	f.rebuild()

	gun := system.NewGunSystem(f.world, f.index, rand.New(rand.NewPCG(3, 4)), system.GunConfig{
		Interval: time.Millisecond, PerShot: 1, Speed: 1, Lifetime: time.Second, Damage: 1, AimRadius: 100,
	})
	gun.Update(time.Millisecond)
	if gun.Fired() != 0 {
		t.Fatal("fired at a hostile outside aim range")
	}
}

func TestOutcomeObserverFlash(t *testing.T) {
	f := newFixture(t)
	f.player(0, 0)
	h := f.hostile(5, 0)
	obs := system.NewOutcomeObserver(f.world, f.bus, &f.clock)
	f.pipeline.AddObserver(obs)

	f.hit(h, 10)
	f.pipeline.Resolve()
	if !f.world.Flashing(h) {
		t.Fatal("hit hostile is not flashing")
	}

	cd := system.NewCooldownSystem(f.tracker, f.world)
	cd.Update(100 * time.Millisecond)
	if !f.world.Flashing(h) {
		t.Fatal("flash cleared before the cooldown ran out")
	}
	cd.Update(100 * time.Millisecond)
	if f.world.Flashing(h) {
		t.Fatal("flash outlived the cooldown")
	}
}

func TestOutcomeObserverGameOver(t *testing.T) {
	f := newFixture(t)
	p := f.player(0, 0)
	h := f.hostile(1, 0)
	obs := system.NewOutcomeObserver(f.world, f.bus, &f.clock)
	f.pipeline.AddObserver(obs)
	died := collect[event.ActorDied](f)
	over := collect[event.PlayerDied](f)

	f.clock.Advance(16 * time.Millisecond)
	f.pipeline.Send(p, damage.Context{Amount: 150, Kind: damage.KindContact, Attacker: h})
	f.pipeline.Resolve()

	if !obs.Over() || obs.Killer() != h {
		t.Fatalf("over=%v killer=%v", obs.Over(), obs.Killer())
	}
	f.dispatch()
	if len(*died) != 1 || (*died)[0].ID != p {
		t.Errorf("ActorDied = %+v", *died)
	}
	if len(*over) != 1 || (*over)[0].Tick != 1 || (*over)[0].Attacker != h {
		t.Errorf("PlayerDied = %+v", *over)
	}
}

func TestRegenHealsOncePerSecond(t *testing.T) {
	f := newFixture(t)
	p := f.player(0, 0)
	f.hit(p, 30)
	f.pipeline.Resolve()

	regen := system.NewRegenSystem(f.world, nil, f.log)
	for range 10 {
		regen.Update(100 * time.Millisecond)
	}
	if cur, _, _ := f.world.Health(p); cur != 75 {
		t.Fatalf("health = %v, want 75", cur)
	}
	if got := regen.Healed(); len(got) != 1 || got[0] != p {
		t.Errorf("healed = %v", got)
	}
}

func TestRegenUsesLuaAmount(t *testing.T) {
	f := newFixture(t)
	p := f.player(0, 0)
	f.hit(p, 30)
	f.pipeline.Resolve()

	lua, err := scripting.NewEngine("", f.log)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(lua.Close)
	if err := lua.LoadString(`function calc_regen_amount(ctx) return ctx.base * 2 end`); err != nil {
		t.Fatal(err)
	}

	regen := system.NewRegenSystem(f.world, lua, f.log)
	regen.Update(time.Second)
	if cur, _, _ := f.world.Health(p); cur != 80 {
		t.Fatalf("health = %v, want 80", cur)
	}
}

type recordSink struct {
	frames []frame.Frame
	err    error
}

func (r *recordSink) Record(f *frame.Frame) error {
	if r.err != nil {
		return r.err
	}
	c := *f
	c.Outcomes = append([]frame.Outcome(nil), f.Outcomes...)
	r.frames = append(r.frames, c)
	return nil
}

func TestOutputFrameAndSinks(t *testing.T) {
	f := newFixture(t)
	f.player(0, 0)
	a := f.hostile(3, 0)
	b := f.hostile(4, 0)
	ctrl := f.controller(10, 10)
	f.rebuild()

	good := &recordSink{}
	bad := &recordSink{err: errors.New("disk full")}
	out := system.NewOutputSystem(system.FrameSources{
		Clock:    &f.clock,
		World:    f.world,
		Index:    f.index,
		Pipeline: f.pipeline,
		Control:  ctrl,
	}, 1, f.log, bad, good)

	f.clock.Advance(16 * time.Millisecond)
	f.hit(a, 10)
	f.hit(b, 10)
	f.pipeline.Resolve()
	out.Update(16 * time.Millisecond)

	if out.Sinks() != 1 {
		t.Fatalf("sinks = %d, failing sink should be detached", out.Sinks())
	}
	if len(good.frames) != 1 {
		t.Fatalf("frames = %d", len(good.frames))
	}
	fr := good.frames[0]
	if fr.Tick != 1 || fr.Live != 2 || fr.PlayerHealth != 100 || fr.PlayerMax != 100 || fr.Index != f.index.Snapshot().Version() {
		t.Errorf("frame = %+v", fr)
	}
	if len(fr.Outcomes) != 1 || fr.Dropped != 1 || fr.Outcomes[0].Target != uint64(a) || !fr.Outcomes[0].Applied {
		t.Errorf("outcomes = %+v dropped=%d", fr.Outcomes, fr.Dropped)
	}
}

func TestCleanupSweepsDeadAndFlushes(t *testing.T) {
	f := newFixture(t)
	pl := f.player(0, 0)
	ctrl := f.controller(10, 10)
	ctrl.SpawnBatch([]population.Vec2{{X: 1}, {X: 2}})
	ids := append([]ecs.EntityID(nil), ctrl.Spawned()...)
	shot := f.world.SpawnProjectile(world.ProjectileSpec{Shooter: pl, Speed: 1, Lifetime: time.Second}, 0, 0, 1, 0)
	f.world.MarkForDestruction(shot)
	f.hit(ids[0], 50)
	f.pipeline.Resolve()
	removed := collect[event.ActorRemoved](f)

	system.NewCleanupSystem(f.world, ctrl, f.bus, f.log).Update(16 * time.Millisecond)

	if f.world.Alive(ids[0]) || !f.world.Alive(ids[1]) {
		t.Fatalf("alive after sweep: %v=%v %v=%v", ids[0], f.world.Alive(ids[0]), ids[1], f.world.Alive(ids[1]))
	}
	if f.world.Alive(shot) {
		t.Error("queued projectile not flushed")
	}
	if f.tracker.Len() != 0 {
		t.Errorf("tracker holds %d timers for removed actors", f.tracker.Len())
	}
	f.dispatch()
	if len(*removed) != 1 || (*removed)[0].ID != ids[0] {
		t.Errorf("ActorRemoved = %+v", *removed)
	}
}

func TestEventDispatchDeliversPreviousTick(t *testing.T) {
	f := newFixture(t)
	got := collect[event.ActorRemoved](f)
	dispatch := system.NewEventDispatchSystem(f.bus)

	event.Emit(f.bus, event.ActorRemoved{ID: 7})
	if len(*got) != 0 {
		t.Fatal("event delivered during emission")
	}
	dispatch.Update(0)
	if len(*got) != 1 {
		t.Fatalf("delivered %d events, want 1", len(*got))
	}
	dispatch.Update(0)
	if len(*got) != 1 {
		t.Fatal("event delivered twice")
	}
}

func TestClockAdvance(t *testing.T) {
	var c system.Clock
	c.Advance(16 * time.Millisecond)
	c.Advance(16 * time.Millisecond)
	if c.Tick != 2 || c.Elapsed != 32*time.Millisecond {
		t.Fatalf("clock = %+v", c)
	}
}
