package coordinator

import (
	"ledgerd/execution"
	"ledgerd/logx"
)

// ExecStatus is the coordinator's simplified view of the execution engine.
type ExecStatus int

const (
	ExecStatusIdle ExecStatus = iota
	ExecStatusRunning
	ExecStatusStalled
	ExecStatusError
)

func (s ExecStatus) String() string {
	switch s {
	case ExecStatusIdle:
		return "Idle"
	case ExecStatusRunning:
		return "Running"
	case ExecStatusStalled:
		return "Stalled"
	default:
		return "Error"
	}
}

// mapEngineState folds the raw engine states into the coordinator view.
func mapEngineState(state execution.State) ExecStatus {
	switch state {
	case execution.StateIdle:
		return ExecStatusIdle
	case execution.StateActive:
		return ExecStatusRunning
	case execution.StateTransactionsUnavailable:
		return ExecStatusStalled
	default:
		logx.Warn("COORDINATOR", "Execution in error state: ", state.String())
		return ExecStatusError
	}
}
