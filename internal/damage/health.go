package damage

import "fmt"

// Health is an actor's hit points. 0 <= current <= max holds after every
// operation. Damage is subtracted only by Pipeline.Apply; Heal is the one
// other way to change current.
type Health struct {
	max     float32
	current float32
}

// NewHealth returns full health. max must be positive; templates are
// validated before any actor is built from them.
func NewHealth(max float32) Health {
	if !(max > 0) {
		panic(fmt.Sprintf("damage: health max must be > 0, got %v", max))
	}
	return Health{max: max, current: max}
}

// NewHealthAt returns health with current clamped into [0, max].
func NewHealthAt(current, max float32) Health {
	h := NewHealth(max)
	h.set(current)
	return h
}

func (h Health) Current() float32 { return h.current }
func (h Health) Max() float32     { return h.max }
func (h Health) Alive() bool      { return h.current > 0 }

// Fraction returns current/max, for bars.
func (h Health) Fraction() float32 { return h.current / h.max }

// take subtracts amount and reports whether this call dropped health to 0.
func (h *Health) take(amount float32) bool {
	wasAlive := h.current > 0
	h.set(h.current - amount)
	return wasAlive && h.current == 0
}

// Heal adds amount, clamped to max. Negative or NaN amounts are rejected.
func (h *Health) Heal(amount float32) error {
	if !(amount >= 0) {
		return fmt.Errorf("heal %v: %w", amount, ErrInvalidAmount)
	}
	h.set(h.current + amount)
	return nil
}

func (h *Health) set(v float32) {
	switch {
	case v != v: // NaN leaves health unchanged
	case v <= 0:
		h.current = 0
	case v > h.max:
		h.current = h.max
	default:
		h.current = v
	}
}
