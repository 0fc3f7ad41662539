package system

import (
	"time"

	"github.com/hordecore/server/internal/core/ecs"
	coresys "github.com/hordecore/server/internal/core/system"
	"github.com/hordecore/server/internal/damage"
	"github.com/hordecore/server/internal/scripting"
	"github.com/hordecore/server/internal/world"
	"go.uber.org/zap"
)

// RegenSystem heals living actors by their template's regen_per_second,
// once per second of simulated time. Dead actors do not regenerate; the
// sweep removes them first. Phase 8 (PostUpdate).
//
// The per-step amount may be overridden by Lua calc_regen_amount.
type RegenSystem struct {
	world    *world.State
	lua      *scripting.Engine // nil = template amounts
	interval *coresys.Interval
	log      *zap.Logger
	healed   []ecs.EntityID
}

func NewRegenSystem(ws *world.State, lua *scripting.Engine, log *zap.Logger) *RegenSystem {
	return &RegenSystem{
		world:    ws,
		lua:      lua,
		interval: coresys.NewInterval(time.Second, false),
		log:      log,
	}
}

func (s *RegenSystem) Phase() coresys.Phase { return coresys.PhasePostUpdate }

func (s *RegenSystem) Update(dt time.Duration) {
	if !s.interval.Tick(dt) {
		return
	}
	type step struct {
		id     ecs.EntityID
		amount float32
	}
	var steps []step
	s.world.EachLiving(func(id ecs.EntityID, h *damage.Health, a *world.Actor) {
		base := a.Template.RegenPerSecond
		if base <= 0 || !h.Alive() || h.Current() >= h.Max() {
			return
		}
		amount := base
		if s.lua != nil {
			amount = s.lua.CalcRegenAmount(scripting.RegenContext{
				Kind:    a.Kind.String(),
				Current: h.Current(),
				Max:     h.Max(),
				Base:    base,
			})
		}
		steps = append(steps, step{id, amount})
	})

	s.healed = s.healed[:0]
	for _, st := range steps {
		if err := s.world.Heal(st.id, st.amount); err != nil {
			s.log.Warn("regen rejected", zap.Uint64("actor", uint64(st.id)), zap.Error(err))
			continue
		}
		s.healed = append(s.healed, st.id)
	}
}

// Healed returns the actors healed by the most recent regen step.
func (s *RegenSystem) Healed() []ecs.EntityID { return s.healed }
