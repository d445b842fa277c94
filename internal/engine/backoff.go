package engine

import "time"

// Backoff is the adaptive polling policy shared by both channels: reset to
// base when a poll found work, multiply by factor (capped at ceiling) when it
// found nothing. Pure and deterministic.
type Backoff struct {
	Base    time.Duration
	Factor  float64
	Ceiling time.Duration
}

// NewBackoff builds a policy with the ceiling expressed as a multiple of base.
func NewBackoff(base time.Duration, factor float64, ceilingMultiple int) Backoff {
	if factor <= 1 {
		factor = 1.5
	}
	if ceilingMultiple < 1 {
		ceilingMultiple = 8
	}
	return Backoff{
		Base:    base,
		Factor:  factor,
		Ceiling: base * time.Duration(ceilingMultiple),
	}
}

// Next maps the current interval to the next one.
func (b Backoff) Next(current time.Duration, found bool) time.Duration {
	if found {
		return b.Base
	}
	next := time.Duration(float64(current) * b.Factor)
	if next > b.Ceiling {
		return b.Ceiling
	}
	return next
}

// ChannelState tracks one poll channel's adaptive interval and the time of
// its last completed check. Mutated only by the scheduler.
type ChannelState struct {
	Name      string
	Interval  time.Duration
	LastCheck time.Time
}

// Due reports whether enough time has elapsed for another poll.
func (s *ChannelState) Due(now time.Time) bool {
	return now.Sub(s.LastCheck) >= s.Interval
}

// NextCheck is the earliest instant the channel becomes due again.
func (s *ChannelState) NextCheck() time.Time {
	return s.LastCheck.Add(s.Interval)
}

// Update applies the policy after a completed poll.
func (s *ChannelState) Update(b Backoff, found bool, checkedAt time.Time) {
	s.Interval = b.Next(s.Interval, found)
	s.LastCheck = checkedAt
}
