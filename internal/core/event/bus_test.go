package event

import (
	"testing"

	"github.com/hordecore/server/internal/core/ecs"
)

func TestBusDeliversNextTick(t *testing.T) {
	b := NewBus()
	var got []ecs.EntityID
	Subscribe(b, func(ev ActorRemoved) { got = append(got, ev.ID) })

	Emit(b, ActorRemoved{ID: 1})
	Emit(b, ActorRemoved{ID: 2})
	b.DispatchAll()
	if len(got) != 0 {
		t.Fatalf("events delivered in the emitting tick: %v", got)
	}

	b.SwapBuffers()
	b.DispatchAll()
	if len(got) != 2 || got[0] != 1 || got[1] != 2 {
		t.Errorf("got %v, want [1 2]", got)
	}

	b.SwapBuffers()
	b.DispatchAll()
	if len(got) != 2 {
		t.Errorf("events redelivered: %v", got)
	}
}

func TestBusDispatchFollowsFirstEmitOrder(t *testing.T) {
	b := NewBus()
	var log []string
	Subscribe(b, func(ActorSpawned) { log = append(log, "spawned") })
	Subscribe(b, func(ActorDied) { log = append(log, "died") })

	Emit(b, ActorDied{ID: 3})
	Emit(b, ActorSpawned{ID: 4})
	if Pending[ActorDied](b) != 1 {
		t.Errorf("Pending = %d, want 1", Pending[ActorDied](b))
	}
	b.SwapBuffers()
	b.DispatchAll()

	if len(log) != 2 || log[0] != "died" || log[1] != "spawned" {
		t.Errorf("dispatch order = %v, want [died spawned]", log)
	}
}
