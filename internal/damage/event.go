package damage

//go:generate go tool mockgen -source=event.go -destination=mocks/mock_event.go -package=mocks

import "github.com/hordecore/server/internal/core/ecs"

// Reason explains an event's resolution.
type Reason uint8

const (
	ReasonApplied   Reason = iota
	ReasonCancelled        // vetoed by a Before hook
	ReasonNoTarget         // target has no health record (removed or never spawned)
	ReasonDead             // target health already 0
	ReasonCooldown         // target still recovering from an earlier hit
	reasonCount
)

var reasonNames = [reasonCount]string{"applied", "cancelled", "no-target", "dead", "cooldown"}

func (r Reason) String() string {
	if r >= reasonCount {
		return "unknown"
	}
	return reasonNames[r]
}

// Event is one damage intent in the pipeline queue. The apply flag starts
// true and can only ever be cleared.
type Event struct {
	Context Context

	target ecs.EntityID
	apply  bool
	reason Reason
	killed bool
}

// Target is fixed at Send; hooks may rescale or cancel but never retarget.
func (e *Event) Target() ecs.EntityID { return e.target }
func (e *Event) Applying() bool { return e.apply }
func (e *Event) Reason() Reason { return e.reason }

// Cancel vetoes the event. Cancelling an already cancelled event keeps the
// first reason.
func (e *Event) Cancel(reason Reason) {
	if !e.apply {
		return
	}
	if reason == ReasonApplied {
		reason = ReasonCancelled
	}
	e.apply = false
	e.reason = reason
}

// Rescale replaces the event's context with one carrying amount. Only
// meaningful before Apply; an amount that is not positive and finite
// cancels the event.
func (e *Event) Rescale(amount float32) {
	if !e.apply {
		return
	}
	if !validAmount(amount) {
		e.Cancel(ReasonCancelled)
		return
	}
	ctx := e.Context
	ctx.Amount = amount
	e.Context = ctx
}

// Outcome is the resolved, read-only view of an event published in After.
type Outcome struct {
	Target  ecs.EntityID
	Context Context
	Applied bool
	Reason  Reason
	// Killed is set on the single applied outcome that took health to 0.
	Killed bool
	// Health is the target's current health after resolution, 0 when the
	// target has no health record.
	Health float32
}

// BeforeHook observes an event ahead of resolution and may cancel or rescale it.
type BeforeHook interface {
	Before(ev *Event)
}

// BeforeFunc adapts a function to BeforeHook.
type BeforeFunc func(ev *Event)

func (f BeforeFunc) Before(ev *Event) { f(ev) }

// Observer receives every resolved outcome during After. Observers must not
// mutate health or cooldowns.
type Observer interface {
	Observe(o Outcome)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(o Outcome)

func (f ObserverFunc) Observe(o Outcome) { f(o) }
