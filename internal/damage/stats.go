package damage

// Stats is an Observer that keeps cumulative resolution counters.
type Stats struct {
	Applied  uint64
	Killed   uint64
	Damage   float64
	rejected [reasonCount]uint64
}

func (s *Stats) Observe(o Outcome) {
	if o.Applied {
		s.Applied++
		s.Damage += float64(o.Context.Amount)
		if o.Killed {
			s.Killed++
		}
		return
	}
	if o.Reason < reasonCount {
		s.rejected[o.Reason]++
	}
}

// Rejected returns the number of events rejected for reason.
func (s *Stats) Rejected(reason Reason) uint64 {
	if reason >= reasonCount {
		return 0
	}
	return s.rejected[reason]
}

// RejectedTotal sums rejections over every reason.
func (s *Stats) RejectedTotal() uint64 {
	var n uint64
	for _, v := range s.rejected {
		n += v
	}
	return n
}
