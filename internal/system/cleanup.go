package system

import (
	"time"

	"github.com/hordecore/server/internal/core/event"
	coresys "github.com/hordecore/server/internal/core/system"
	"github.com/hordecore/server/internal/population"
	"github.com/hordecore/server/internal/world"
	"go.uber.org/zap"
)

// CleanupSystem sweeps dead hostiles and flushes the deferred destruction
// queue at tick end. Phase 10 (Cleanup).
type CleanupSystem struct {
	world *world.State
	ctrl  *population.Controller
	bus   *event.Bus
	log   *zap.Logger
}

func NewCleanupSystem(ws *world.State, ctrl *population.Controller, bus *event.Bus, log *zap.Logger) *CleanupSystem {
	return &CleanupSystem{world: ws, ctrl: ctrl, bus: bus, log: log}
}

func (s *CleanupSystem) Phase() coresys.Phase { return coresys.PhaseCleanup }

func (s *CleanupSystem) Update(_ time.Duration) {
	swept := s.ctrl.SweepDead()
	for _, id := range s.ctrl.Swept() {
		event.Emit(s.bus, event.ActorRemoved{ID: id})
	}
	flushed := s.world.FlushDestroyQueue()
	if swept > 0 || flushed > 0 {
		s.log.Debug("cleanup",
			zap.Int("swept", swept),
			zap.Int("destroyed", flushed),
			zap.Int("live", s.ctrl.Live()),
		)
	}
}
