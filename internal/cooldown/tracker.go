// Package cooldown gates how often an actor may receive applied damage.
package cooldown

import (
	"time"

	"github.com/hordecore/server/internal/core/ecs"
)

// Channel is an independent cooldown track. Actors normally use only
// ChannelDamage, which gates contact and projectile damage alike.
type Channel uint8

const (
	ChannelDamage Channel = iota
)

// State of one actor-channel timer.
type State uint8

const (
	Idle State = iota
	Active
)

func (s State) String() string {
	if s == Active {
		return "active"
	}
	return "idle"
}

type key struct {
	id ecs.EntityID
	ch Channel
}

type timer struct {
	key       key
	remaining time.Duration
}

// Tracker holds lazily created countdown timers. Timers live in a dense
// slice so Tick visits them in a deterministic order. Not safe for
// concurrent use; the damage pipeline is its only writer.
type Tracker struct {
	index    map[key]int
	timers   []timer
	channels int // highest channel used + 1
}

func NewTracker() *Tracker {
	return &Tracker{
		index:  make(map[key]int, 1024),
		timers: make([]timer, 0, 1024),
	}
}

// IsReady reports whether id may receive damage on ch. It has no side
// effects: several candidate events may ask before one of them applies.
func (t *Tracker) IsReady(id ecs.EntityID, ch Channel) bool {
	i, ok := t.index[key{id, ch}]
	if !ok {
		return true
	}
	return t.timers[i].remaining <= 0
}

// MarkApplied resets the timer for id/ch to d, creating it on first use.
func (t *Tracker) MarkApplied(id ecs.EntityID, ch Channel, d time.Duration) {
	k := key{id, ch}
	if i, ok := t.index[k]; ok {
		t.timers[i].remaining = d
		return
	}
	t.index[k] = len(t.timers)
	t.timers = append(t.timers, timer{key: k, remaining: d})
	if int(ch) >= t.channels {
		t.channels = int(ch) + 1
	}
}

// Tick advances every active timer by dt. onIdle, when non-nil, is called
// once for each timer that finishes during this tick.
func (t *Tracker) Tick(dt time.Duration, onIdle func(ecs.EntityID, Channel)) {
	for i := range t.timers {
		tm := &t.timers[i]
		if tm.remaining <= 0 {
			continue
		}
		tm.remaining -= dt
		if tm.remaining <= 0 {
			tm.remaining = 0
			if onIdle != nil {
				onIdle(tm.key.id, tm.key.ch)
			}
		}
	}
}

// State returns the timer state and remaining time for id/ch. Actors that
// never took damage on ch are Idle.
func (t *Tracker) State(id ecs.EntityID, ch Channel) (State, time.Duration) {
	i, ok := t.index[key{id, ch}]
	if !ok || t.timers[i].remaining <= 0 {
		return Idle, 0
	}
	return Active, t.timers[i].remaining
}

// Len returns the number of timers ever created and not yet removed.
func (t *Tracker) Len() int { return len(t.timers) }

// Remove drops every channel of id. Registered with the ECS registry so a
// destroyed actor loses its timers.
func (t *Tracker) Remove(id ecs.EntityID) {
	for ch := 0; ch < t.channels; ch++ {
		if i, ok := t.index[key{id, Channel(ch)}]; ok {
			t.removeAt(i)
		}
	}
}

func (t *Tracker) removeAt(i int) {
	last := len(t.timers) - 1
	delete(t.index, t.timers[i].key)
	if i != last {
		t.timers[i] = t.timers[last]
		t.index[t.timers[i].key] = i
	}
	t.timers = t.timers[:last]
}
