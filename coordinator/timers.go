package coordinator

import "time"

// Periodic is a rate-limiting gate: Poll answers true at most once per
// interval. It rate-limits the coordinator's progress logs.
type Periodic struct {
	clock    Clock
	interval time.Duration
	last     time.Time
}

func NewPeriodic(clock Clock, interval time.Duration) *Periodic {
	return &Periodic{
		clock:    clock,
		interval: interval,
		last:     clock.Now(),
	}
}

// Poll reports whether the interval elapsed since the last trigger, and if
// so re-arms.
func (p *Periodic) Poll() bool {
	now := p.clock.Now()
	if now.Sub(p.last) >= p.interval {
		p.last = now
		return true
	}
	return false
}

// Reset re-arms the gate from now.
func (p *Periodic) Reset() {
	p.last = p.clock.Now()
}

// Deadline is a one-shot countdown. It starts disarmed; Restart arms it and
// HasExpired observes it on the next handler entry.
type Deadline struct {
	clock  Clock
	expiry time.Time
	armed  bool
}

func NewDeadline(clock Clock) *Deadline {
	return &Deadline{clock: clock}
}

// Restart arms the countdown d from now.
func (d *Deadline) Restart(duration time.Duration) {
	d.expiry = d.clock.Now().Add(duration)
	d.armed = true
}

// HasExpired reports whether an armed countdown has run out.
func (d *Deadline) HasExpired() bool {
	return d.armed && !d.clock.Now().Before(d.expiry)
}
