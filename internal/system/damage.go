package system

import (
	"time"

	"github.com/hordecore/server/internal/core/ecs"
	"github.com/hordecore/server/internal/core/event"
	coresys "github.com/hordecore/server/internal/core/system"
	"github.com/hordecore/server/internal/damage"
	"github.com/hordecore/server/internal/world"
)

// DamageBeforeSystem runs the pipeline's Before hooks. Phase 5 (DamageBefore).
type DamageBeforeSystem struct{ pipeline *damage.Pipeline }

// DamageApplySystem resolves queued events against health and cooldowns.
// Phase 6 (DamageApply).
type DamageApplySystem struct{ pipeline *damage.Pipeline }

// DamageAfterSystem publishes outcomes to the pipeline's observers and
// resets the queue. Phase 7 (DamageAfter).
type DamageAfterSystem struct{ pipeline *damage.Pipeline }

func NewDamageSystems(p *damage.Pipeline) (*DamageBeforeSystem, *DamageApplySystem, *DamageAfterSystem) {
	return &DamageBeforeSystem{p}, &DamageApplySystem{p}, &DamageAfterSystem{p}
}

func (s *DamageBeforeSystem) Phase() coresys.Phase  { return coresys.PhaseDamageBefore }
func (s *DamageBeforeSystem) Update(_ time.Duration) { s.pipeline.Before() }

func (s *DamageApplySystem) Phase() coresys.Phase  { return coresys.PhaseDamageApply }
func (s *DamageApplySystem) Update(_ time.Duration) { s.pipeline.Apply() }

func (s *DamageAfterSystem) Phase() coresys.Phase  { return coresys.PhaseDamageAfter }
func (s *DamageAfterSystem) Update(_ time.Duration) { s.pipeline.After() }

// OutcomeObserver turns resolved outcomes into presentation state and
// events: the damage flash, death notices and the game-over latch. It
// never touches health or cooldowns.
type OutcomeObserver struct {
	world *world.State
	bus   *event.Bus
	clock *Clock

	over   bool
	killer ecs.EntityID
}

func NewOutcomeObserver(ws *world.State, bus *event.Bus, clock *Clock) *OutcomeObserver {
	return &OutcomeObserver{world: ws, bus: bus, clock: clock}
}

func (o *OutcomeObserver) Observe(out damage.Outcome) {
	if !out.Applied {
		return
	}
	if _, _, hasCooldown := o.world.Targets().Cooldown(out.Target); hasCooldown {
		o.world.SetFlash(out.Target)
	}
	if !out.Killed {
		return
	}

	pos, _ := o.world.Position(out.Target)
	event.Emit(o.bus, event.ActorDied{ID: out.Target, Attacker: out.Context.Attacker, X: pos.X, Y: pos.Y})
	if out.Target == o.world.Player() && !o.over {
		o.over = true
		o.killer = out.Context.Attacker
		event.Emit(o.bus, event.PlayerDied{ID: out.Target, Attacker: out.Context.Attacker, Tick: o.clock.Tick})
	}
}

// Over reports whether the player has died.
func (o *OutcomeObserver) Over() bool { return o.over }

// Killer returns the attacker of the killing blow, zero if unattributed.
func (o *OutcomeObserver) Killer() ecs.EntityID { return o.killer }
