package system

import "time"

// Clock is the simulation's tick counter. The sim advances it before each
// tick; systems only read it.
type Clock struct {
	Tick    uint64
	Elapsed time.Duration
}

// Advance starts a new tick of length dt.
func (c *Clock) Advance(dt time.Duration) {
	c.Tick++
	c.Elapsed += dt
}
