// Package damage turns proximity facts into cancellable damage events and
// resolves them against health and cooldowns in a fixed phase order:
// Send, Before, Apply, After.
package damage

import (
	"errors"
	"fmt"
	"math"

	"github.com/hordecore/server/internal/core/ecs"
)

// ErrInvalidAmount is returned for damage or heal amounts that are not
// finite and positive.
var ErrInvalidAmount = errors.New("invalid amount")

// Kind tags where damage came from.
type Kind uint32

const (
	KindProjectile Kind = iota
	KindContact
	KindScript
)

func (k Kind) String() string {
	switch k {
	case KindProjectile:
		return "projectile"
	case KindContact:
		return "contact"
	case KindScript:
		return "script"
	default:
		return fmt.Sprintf("kind(%d)", uint32(k))
	}
}

// Context is the immutable payload of a damage event. A zero Attacker means
// the damage has no attributable source.
type Context struct {
	Amount   float32
	Kind     Kind
	Attacker ecs.EntityID
}

// NewContext validates amount at the producer boundary. The pipeline itself
// trusts whatever context it is given.
func NewContext(amount float32, kind Kind, attacker ecs.EntityID) (Context, error) {
	if !validAmount(amount) {
		return Context{}, fmt.Errorf("damage %v (%s): %w", amount, kind, ErrInvalidAmount)
	}
	return Context{Amount: amount, Kind: kind, Attacker: attacker}, nil
}

// validAmount reports whether amount is positive and finite.
func validAmount(amount float32) bool {
	return amount > 0 && !math.IsInf(float64(amount), 1)
}

// HasAttacker reports whether the context names a source actor.
func (c Context) HasAttacker() bool { return !c.Attacker.IsZero() }
