package system

import (
	"time"

	"github.com/hordecore/server/internal/core/event"
	coresys "github.com/hordecore/server/internal/core/system"
)

// EventDispatchSystem swaps the event bus buffers and delivers last tick's
// events to their handlers. Phase 0 (Input).
type EventDispatchSystem struct {
	bus *event.Bus
}

func NewEventDispatchSystem(bus *event.Bus) *EventDispatchSystem {
	return &EventDispatchSystem{bus: bus}
}

func (s *EventDispatchSystem) Phase() coresys.Phase { return coresys.PhaseInput }

func (s *EventDispatchSystem) Update(_ time.Duration) {
	s.bus.SwapBuffers()
	s.bus.DispatchAll()
}
