package damage

import (
	"time"

	"github.com/hordecore/server/internal/cooldown"
	"github.com/hordecore/server/internal/core/ecs"
	"go.uber.org/zap"
)

// Targets resolves the per-actor records the Apply phase needs.
type Targets interface {
	// Health returns the actor's live health record, or false when the id
	// is stale or the actor has no health (projectiles).
	Health(id ecs.EntityID) (*Health, bool)
	// Cooldown returns the actor's cooldown channel and duration, or false
	// when the actor takes damage without a cooldown.
	Cooldown(id ecs.EntityID) (cooldown.Channel, time.Duration, bool)
}

type stage uint8

const (
	stageSend stage = iota
	stageBefore
	stageApplied
)

// Pipeline is the per-tick damage event queue. Events live in an arena
// slice addressed by index; the arena is reset after After and keeps its
// capacity, so steady-state ticks do not allocate.
//
// Phase methods must be called once per tick in order: Send (any number of
// times), Before, Apply, After. Events sent after Apply in the same tick are
// held back and join the next tick's queue, so an event is never evaluated
// by Apply twice and never skips it.
type Pipeline struct {
	targets   Targets
	cooldowns *cooldown.Tracker
	hooks     []BeforeHook
	observers []Observer

	queue    []Event
	late     []Event
	outcomes []Outcome
	stage    stage

	log *zap.Logger
}

func NewPipeline(targets Targets, cooldowns *cooldown.Tracker, log *zap.Logger) *Pipeline {
	return &Pipeline{
		targets:   targets,
		cooldowns: cooldowns,
		queue:     make([]Event, 0, 1024),
		outcomes:  make([]Outcome, 0, 1024),
		log:       log,
	}
}

// AddBeforeHook registers a Before-phase hook. Hooks run in registration order.
func (p *Pipeline) AddBeforeHook(h BeforeHook) {
	p.hooks = append(p.hooks, h)
}

// AddObserver registers an After-phase observer.
func (p *Pipeline) AddObserver(o Observer) {
	p.observers = append(p.observers, o)
}

// Send appends a damage intent and returns its queue position.
func (p *Pipeline) Send(target ecs.EntityID, ctx Context) int {
	ev := Event{Context: ctx, target: target, apply: true}
	if p.stage == stageApplied {
		p.late = append(p.late, ev)
		return -1
	}
	p.queue = append(p.queue, ev)
	return len(p.queue) - 1
}

// Pending returns the number of queued events for this tick.
func (p *Pipeline) Pending() int { return len(p.queue) }

// Event returns the queued event at i for inspection.
func (p *Pipeline) Event(i int) *Event { return &p.queue[i] }

// Before runs the registered hooks over every event that is still applying.
// With no hooks it is a pass-through.
func (p *Pipeline) Before() {
	p.stage = stageBefore
	for _, h := range p.hooks {
		for i := range p.queue {
			ev := &p.queue[i]
			if !ev.apply {
				continue
			}
			h.Before(ev)
		}
	}
}

// Apply resolves events in queue order against health and cooldowns.
func (p *Pipeline) Apply() {
	p.stage = stageApplied
	for i := range p.queue {
		ev := &p.queue[i]
		if !ev.apply {
			continue
		}

		health, ok := p.targets.Health(ev.target)
		if !ok {
			ev.Cancel(ReasonNoTarget)
			continue
		}
		if !health.Alive() {
			ev.Cancel(ReasonDead)
			continue
		}

		ch, d, hasCooldown := p.targets.Cooldown(ev.target)
		if hasCooldown && !p.cooldowns.IsReady(ev.target, ch) {
			ev.Cancel(ReasonCooldown)
			continue
		}

		ev.killed = health.take(ev.Context.Amount)
		if hasCooldown {
			p.cooldowns.MarkApplied(ev.target, ch, d)
		}
	}
}

// After publishes one outcome per event to the observers, in queue order,
// then resets the queue for the next tick.
func (p *Pipeline) After() {
	p.outcomes = p.outcomes[:0]
	applied := 0
	for i := range p.queue {
		ev := &p.queue[i]
		o := Outcome{
			Target:  ev.target,
			Context: ev.Context,
			Applied: ev.apply,
			Reason:  ev.reason,
			Killed:  ev.killed,
		}
		if h, ok := p.targets.Health(ev.target); ok {
			o.Health = h.Current()
		}
		if o.Applied {
			applied++
		}
		p.outcomes = append(p.outcomes, o)
	}

	for _, obs := range p.observers {
		for _, o := range p.outcomes {
			obs.Observe(o)
		}
	}

	if len(p.queue) > 0 {
		p.log.Debug("damage resolved",
			zap.Int("events", len(p.queue)),
			zap.Int("applied", applied),
			zap.Int("rejected", len(p.queue)-applied),
		)
	}

	p.queue = p.queue[:0]
	if len(p.late) > 0 {
		p.queue = append(p.queue, p.late...)
		p.late = p.late[:0]
	}
	p.stage = stageSend
}

// Resolve runs Before, Apply and After back to back.
func (p *Pipeline) Resolve() {
	p.Before()
	p.Apply()
	p.After()
}

// Outcomes returns the outcomes published by the most recent After. The
// slice is reused by the next After; callers that keep it must copy.
func (p *Pipeline) Outcomes() []Outcome { return p.outcomes }
