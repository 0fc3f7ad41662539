// Package population bounds the live actor count and reaps dead actors in one
// deferred pass per tick.
package population

import (
	"math"
	"time"

	"github.com/hordecore/server/internal/core/ecs"
	"go.uber.org/zap"
)

// Vec2 is a requested spawn position.
type Vec2 struct {
	X, Y float32
}

// Population is the set of actors the controller admits and reaps.
type Population interface {
	// Live returns the current live count, dead-but-unswept actors included.
	Live() int
	// Spawn builds one complete actor at (x, y).
	Spawn(x, y float32) ecs.EntityID
	// EachDead visits every actor whose health is 0.
	EachDead(fn func(ecs.EntityID))
	// Remove invalidates id immediately.
	Remove(id ecs.EntityID)
}

// Caps are the admission limits.
type Caps struct {
	MaxLive int
	PerPass int
}

// PerPassFromRate converts a per-second spawn rate into a per-pass cap for
// passes that run every interval. Fractional results round up so a positive
// rate never yields a zero cap.
func PerPassFromRate(perSecond float64, interval time.Duration) int {
	if perSecond <= 0 || interval <= 0 {
		return 0
	}
	n := math.Ceil(perSecond * interval.Seconds())
	if n > math.MaxInt32 {
		return math.MaxInt32
	}
	return int(n)
}

// Admit returns min(requested, MaxLive-live, PerPass), never negative.
func Admit(live, requested int, caps Caps) int {
	n := requested
	if headroom := caps.MaxLive - live; headroom < n {
		n = headroom
	}
	if caps.PerPass < n {
		n = caps.PerPass
	}
	if n < 0 {
		return 0
	}
	return n
}

// Controller is the single writer of population admission and removal.
// SpawnBatch runs early in the tick, SweepDead once at the end.
type Controller struct {
	pop  Population
	caps Caps
	dead []ecs.EntityID
	born []ecs.EntityID
	log  *zap.Logger

	spawned uint64
	swept   uint64
	peak    int
}

func NewController(pop Population, caps Caps, log *zap.Logger) *Controller {
	return &Controller{
		pop:  pop,
		caps: caps,
		dead: make([]ecs.EntityID, 0, 256),
		born: make([]ecs.EntityID, 0, 256),
		log:  log,
	}
}

func (c *Controller) Caps() Caps { return c.caps }
func (c *Controller) Live() int  { return c.pop.Live() }

// Headroom returns how many actors could be admitted ignoring the per-pass cap.
func (c *Controller) Headroom() int {
	if h := c.caps.MaxLive - c.pop.Live(); h > 0 {
		return h
	}
	return 0
}

// SpawnBatch admits positions front to back up to the caps and returns how
// many actors were created. Excess requests are dropped silently.
func (c *Controller) SpawnBatch(positions []Vec2) int {
	live := c.pop.Live()
	n := Admit(live, len(positions), c.caps)
	c.born = c.born[:0]
	for _, p := range positions[:n] {
		c.born = append(c.born, c.pop.Spawn(p.X, p.Y))
	}
	c.spawned += uint64(n)
	if live+n > c.peak {
		c.peak = live + n
	}
	if n < len(positions) {
		c.log.Debug("spawn batch truncated",
			zap.Int("requested", len(positions)),
			zap.Int("admitted", n),
			zap.Int("live", live),
			zap.Int("max_live", c.caps.MaxLive),
		)
	}
	return n
}

// SweepDead removes every actor whose health is 0 and returns how many
// were removed. Dead ids are collected before any removal so the visit is
// not disturbed by store compaction.
func (c *Controller) SweepDead() int {
	c.dead = c.dead[:0]
	c.pop.EachDead(func(id ecs.EntityID) {
		c.dead = append(c.dead, id)
	})
	for _, id := range c.dead {
		c.pop.Remove(id)
	}
	c.swept += uint64(len(c.dead))
	return len(c.dead)
}

// Spawned returns the ids admitted by the most recent SpawnBatch. The slice
// is reused by the next batch.
func (c *Controller) Spawned() []ecs.EntityID { return c.born }

// Swept returns the ids removed by the most recent SweepDead. The slice is
// reused by the next sweep.
func (c *Controller) Swept() []ecs.EntityID { return c.dead }

// Totals returns cumulative admissions, removals and the peak live count.
func (c *Controller) Totals() (spawned, swept uint64, peak int) {
	return c.spawned, c.swept, c.peak
}
