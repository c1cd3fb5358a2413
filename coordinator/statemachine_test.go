package coordinator

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStateMachineStepAndPrevious(t *testing.T) {
	sm := NewStateMachine("test", StateReload)

	var seen []State
	sm.RegisterHandler(StateReload, func(current, previous State) State {
		seen = append(seen, previous)
		return StateReset
	})
	sm.RegisterHandler(StateReset, func(current, previous State) State {
		seen = append(seen, previous)
		return StateReset
	})

	sm.Step()
	require.Equal(t, StateReset, sm.State())
	require.Equal(t, StateReload, sm.PreviousState())

	sm.Step()
	sm.Step()

	// the handler observes the state before the last transition, so it can
	// detect re-entry
	assert.Equal(t, []State{StateReload, StateReload, StateReset}, seen)
}

func TestStateMachineDelayIsPerIteration(t *testing.T) {
	sm := NewStateMachine("test", StateReload)
	sm.RegisterHandler(StateReload, func(current, previous State) State {
		sm.Delay(42 * time.Millisecond)
		return StateReset
	})
	sm.RegisterHandler(StateReset, func(current, previous State) State {
		return StateReload
	})

	assert.Equal(t, 42*time.Millisecond, sm.Step())
	// the next handler requested nothing, the delay does not stick
	assert.Equal(t, time.Duration(0), sm.Step())
}

func TestStateMachineOnStateChange(t *testing.T) {
	sm := NewStateMachine("test", StateReload)
	sm.RegisterHandler(StateReload, func(current, previous State) State {
		return StateReset
	})
	sm.RegisterHandler(StateReset, func(current, previous State) State {
		return StateReset
	})

	var changes int
	sm.OnStateChange(func(current, previous State) {
		changes++
	})

	sm.Step() // Reload -> Reset
	sm.Step() // Reset -> Reset, no change
	sm.Step()

	assert.Equal(t, 1, changes)
}

func TestStateMachineRunStopsBetweenStates(t *testing.T) {
	sm := NewStateMachine("test", StateReload)

	steps := 0
	ctx, cancel := context.WithCancel(context.Background())
	sm.RegisterHandler(StateReload, func(current, previous State) State {
		steps++
		if steps >= 3 {
			cancel()
		}
		sm.Delay(time.Millisecond)
		return StateReload
	})

	done := make(chan struct{})
	go func() {
		sm.Run(ctx)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("state machine did not stop")
	}
	assert.GreaterOrEqual(t, steps, 3)
}
