package coordinator

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestPeriodicPolls(t *testing.T) {
	clock := newFakeClock()
	periodic := NewPeriodic(clock, time.Second)

	assert.False(t, periodic.Poll())

	clock.Advance(999 * time.Millisecond)
	assert.False(t, periodic.Poll())

	clock.Advance(time.Millisecond)
	assert.True(t, periodic.Poll())
	// re-armed, answers at most once per interval
	assert.False(t, periodic.Poll())

	clock.Advance(2 * time.Second)
	assert.True(t, periodic.Poll())
}

func TestPeriodicReset(t *testing.T) {
	clock := newFakeClock()
	periodic := NewPeriodic(clock, time.Second)

	clock.Advance(900 * time.Millisecond)
	periodic.Reset()

	clock.Advance(900 * time.Millisecond)
	assert.False(t, periodic.Poll())

	clock.Advance(100 * time.Millisecond)
	assert.True(t, periodic.Poll())
}

func TestDeadlineStartsDisarmed(t *testing.T) {
	clock := newFakeClock()
	deadline := NewDeadline(clock)

	assert.False(t, deadline.HasExpired())
	clock.Advance(time.Hour)
	assert.False(t, deadline.HasExpired())
}

func TestDeadlineExpires(t *testing.T) {
	clock := newFakeClock()
	deadline := NewDeadline(clock)

	deadline.Restart(30 * time.Second)
	assert.False(t, deadline.HasExpired())

	clock.Advance(30 * time.Second)
	assert.True(t, deadline.HasExpired())

	// restarting re-arms from now
	deadline.Restart(time.Second)
	assert.False(t, deadline.HasExpired())
	clock.Advance(time.Second)
	assert.True(t, deadline.HasExpired())
}
