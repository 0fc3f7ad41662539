package event

import (
	"time"

	"github.com/hordecore/server/internal/core/ecs"
)

// ActorSpawned is emitted when the population controller admits an actor.
type ActorSpawned struct {
	ID   ecs.EntityID
	X, Y float32
}

// ActorDied is emitted when an applied damage event brings health to zero.
// The actor is still present until the end-of-tick sweep.
type ActorDied struct {
	ID       ecs.EntityID
	Attacker ecs.EntityID
	X, Y     float32
}

// ActorRemoved is emitted by the dead sweep once the id has been invalidated.
type ActorRemoved struct {
	ID ecs.EntityID
}

// IndexRebuilt is emitted after a new spatial snapshot is published.
type IndexRebuilt struct {
	Version uint64
	Points  int
	Took    time.Duration
}

// PlayerDied ends the run.
type PlayerDied struct {
	ID       ecs.EntityID
	Attacker ecs.EntityID
	Tick     uint64
}
