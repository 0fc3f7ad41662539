package sim

import (
	"time"

	"github.com/hordecore/server/internal/damage"
)

// Summary is the end-of-run record.
type Summary struct {
	Seed       uint64
	StartedAt  time.Time
	EndedAt    time.Time
	Ticks      uint64
	Simulated  time.Duration
	Spawned    uint64
	Swept      uint64
	PeakLive   int
	Applied    uint64
	Killed     uint64
	Damage     float64
	GameOver   bool
	Rejections map[string]uint64
}

var rejectionReasons = []damage.Reason{
	damage.ReasonCancelled,
	damage.ReasonNoTarget,
	damage.ReasonDead,
	damage.ReasonCooldown,
}

// Summary reports the run so far.
func (s *Sim) Summary(ended time.Time) Summary {
	spawned, swept, peak := s.ctrl.Totals()
	out := Summary{
		Seed:       s.seed,
		StartedAt:  s.started,
		EndedAt:    ended,
		Ticks:      s.clock.Tick,
		Simulated:  s.clock.Elapsed,
		Spawned:    spawned,
		Swept:      swept,
		PeakLive:   peak,
		Applied:    s.stats.Applied,
		Killed:     s.stats.Killed,
		Damage:     s.stats.Damage,
		GameOver:   s.Over(),
		Rejections: make(map[string]uint64, len(rejectionReasons)),
	}
	for _, r := range rejectionReasons {
		if n := s.stats.Rejected(r); n > 0 {
			out.Rejections[r.String()] = n
		}
	}
	return out
}
