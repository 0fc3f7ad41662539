package system

import "time"

// Phase defines execution ordering within a single tick.
type Phase int

const (
	PhaseInput        Phase = iota // 0: dispatch last tick's events
	PhaseMove                      // 1: integrate positions
	PhaseSpawn                     // 2: population admission, projectile spawn/expiry
	PhaseIndex                     // 3: periodic spatial index rebuild
	PhaseDamageSend                // 4: cooldown tick + proximity producers append events
	PhaseDamageBefore              // 5: modifiers/shields may cancel or rescale
	PhaseDamageApply               // 6: health and cooldown writes
	PhaseDamageAfter               // 7: read-only outcome observers
	PhasePostUpdate                // 8: regen
	PhaseOutput                    // 9: overlay feed, replay
	PhaseCleanup                   // 10: sweep dead, destroy queued entities
)

var phaseNames = [...]string{
	"input", "move", "spawn", "index", "damage-send", "damage-before",
	"damage-apply", "damage-after", "post-update", "output", "cleanup",
}

func (p Phase) String() string {
	if p < 0 || int(p) >= len(phaseNames) {
		return "unknown"
	}
	return phaseNames[p]
}

// System is the interface every ECS system implements.
type System interface {
	Phase() Phase
	Update(dt time.Duration)
}

// Interval fires once every Every of accumulated simulated time. The first
// Tick fires immediately when FireFirst is set. Leftover time carries over
// so the long-run rate matches Every regardless of the tick size.
type Interval struct {
	Every     time.Duration
	FireFirst bool

	acc     time.Duration
	started bool
}

func NewInterval(every time.Duration, fireFirst bool) *Interval {
	return &Interval{Every: every, FireFirst: fireFirst}
}

func (iv *Interval) Tick(dt time.Duration) bool {
	if !iv.started {
		iv.started = true
		if iv.FireFirst {
			return true
		}
	}
	if iv.Every <= 0 {
		return true
	}
	iv.acc += dt
	if iv.acc < iv.Every {
		return false
	}
	iv.acc -= iv.Every
	if iv.acc >= iv.Every {
		// a long stall fires once, not once per missed interval
		iv.acc = 0
	}
	return true
}

// Reset forgets accumulated time.
func (iv *Interval) Reset() {
	iv.acc = 0
	iv.started = false
}
