package coordinator

import (
	"context"
	"sync"
	"time"

	"ledgerd/logx"
)

// HandlerFunc computes the next state from the current one. previous is the
// state the machine was in before the last transition so handlers can detect
// re-entry.
type HandlerFunc func(current, previous State) State

// StateMachine is a single-threaded cooperative driver. Handlers run to
// completion, return the next state, and may request a delay before the next
// iteration; the driver never preempts a handler and only observes the stop
// signal between states.
type StateMachine struct {
	name string

	mu       sync.Mutex
	current  State
	previous State
	delay    time.Duration

	handlers map[State]HandlerFunc
	onEnter  func(state State)
	onChange func(current, previous State)
}

func NewStateMachine(name string, initial State) *StateMachine {
	return &StateMachine{
		name:     name,
		current:  initial,
		previous: initial,
		handlers: make(map[State]HandlerFunc),
	}
}

// RegisterHandler binds a state to its handler.
func (m *StateMachine) RegisterHandler(state State, handler HandlerFunc) {
	m.handlers[state] = handler
}

// OnEnter installs a hook invoked before every handler run.
func (m *StateMachine) OnEnter(fn func(state State)) {
	m.onEnter = fn
}

// OnStateChange installs a hook invoked after every transition to a
// different state.
func (m *StateMachine) OnStateChange(fn func(current, previous State)) {
	m.onChange = fn
}

// Delay requests a pause before the next iteration. Meant to be called from
// inside a handler.
func (m *StateMachine) Delay(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.delay = d
}

// State returns the current state.
func (m *StateMachine) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current
}

// PreviousState returns the state before the last transition.
func (m *StateMachine) PreviousState() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.previous
}

// Step runs one handler and returns the delay requested for the next
// iteration.
func (m *StateMachine) Step() time.Duration {
	m.mu.Lock()
	current, previous := m.current, m.previous
	m.delay = 0
	m.mu.Unlock()

	handler, ok := m.handlers[current]
	if !ok {
		logx.Error("STATEMACHINE", m.name, ": no handler for state ", current.String())
		return time.Second
	}

	if m.onEnter != nil {
		m.onEnter(current)
	}
	next := handler(current, previous)

	m.mu.Lock()
	m.previous = current
	m.current = next
	delay := m.delay
	m.mu.Unlock()

	if next != current && m.onChange != nil {
		m.onChange(next, current)
	}
	return delay
}

// Run drives the machine until the context is cancelled. Cancellation is
// observed between states only.
func (m *StateMachine) Run(ctx context.Context) {
	logx.Info("STATEMACHINE", m.name, " starting in state ", m.State().String())
	for {
		if ctx.Err() != nil {
			logx.Info("STATEMACHINE", m.name, " stopped in state ", m.State().String())
			return
		}
		delay := m.Step()
		if delay <= 0 {
			continue
		}
		select {
		case <-ctx.Done():
		case <-time.After(delay):
		}
	}
}
