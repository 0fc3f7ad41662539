package system

import (
	"math"
	"time"

	"github.com/hordecore/server/internal/core/ecs"
	coresys "github.com/hordecore/server/internal/core/system"
	"github.com/hordecore/server/internal/world"
)

// MoveInput supplies the player's desired direction each tick. The vector
// need not be normalised; (0, 0) means stand still.
type MoveInput interface {
	Direction() (dx, dy float32)
}

// MoveFunc adapts a function to MoveInput.
type MoveFunc func() (dx, dy float32)

func (f MoveFunc) Direction() (float32, float32) { return f() }

// MovementSystem steers the player from input, turns every living hostile
// toward the player and integrates all velocities. Phase 1 (Move).
type MovementSystem struct {
	world *world.State
	input MoveInput
}

func NewMovementSystem(ws *world.State, input MoveInput) *MovementSystem {
	return &MovementSystem{world: ws, input: input}
}

func (s *MovementSystem) Phase() coresys.Phase { return coresys.PhaseMove }

func (s *MovementSystem) Update(dt time.Duration) {
	player := s.world.Player()
	target, hasPlayer := s.world.Position(player)

	if hasPlayer {
		var dx, dy float32
		if s.input != nil {
			dx, dy = s.input.Direction()
		}
		if a, ok := s.world.Actor(player); ok {
			vx, vy := unit(dx, dy)
			s.world.SetVelocity(player, world.Velocity{X: vx * a.Template.Speed, Y: vy * a.Template.Speed})
		}
	}

	s.world.EachHostile(func(id ecs.EntityID, pos *world.Position, a *world.Actor) {
		var v world.Velocity
		if hasPlayer {
			if cur, _, _ := s.world.Health(id); cur > 0 {
				ux, uy := unit(target.X-pos.X, target.Y-pos.Y)
				v = world.Velocity{X: ux * a.Template.Speed, Y: uy * a.Template.Speed}
			}
		}
		s.world.SetVelocity(id, v)
	})

	s.world.Move(dt)
}

func unit(x, y float32) (float32, float32) {
	l := float32(math.Sqrt(float64(x*x + y*y)))
	if l == 0 {
		return 0, 0
	}
	return x / l, y / l
}
