package coordinator

// State is the tag of one coordinator phase. The machine starts in
// StateReload and loops forever; there is no terminal state.
type State int

const (
	StateReload State = iota
	StateSynchronising
	StateSynchronised
	StatePreExecValidation
	StateWaitForTransactions
	StateSynergeticExecution
	StateScheduleBlockExecution
	StateWaitForExecution
	StatePostExecValidation
	StateNewSynergeticExecution
	StatePackNewBlock
	StateExecuteNewBlock
	StateWaitForNewBlockExecution
	StateProofSearch
	StateTransmitBlock
	StateReset
)

func (s State) String() string {
	switch s {
	case StateReload:
		return "Reloading State"
	case StateSynchronising:
		return "Synchronising"
	case StateSynchronised:
		return "Synchronised"
	case StatePreExecValidation:
		return "Pre Block Execution Validation"
	case StateWaitForTransactions:
		return "Waiting for Transactions"
	case StateSynergeticExecution:
		return "Synergetic Execution"
	case StateScheduleBlockExecution:
		return "Schedule Block Execution"
	case StateWaitForExecution:
		return "Waiting for Block Execution"
	case StatePostExecValidation:
		return "Post Block Execution Validation"
	case StateNewSynergeticExecution:
		return "New Synergetic Execution"
	case StatePackNewBlock:
		return "Pack New Block"
	case StateExecuteNewBlock:
		return "Execute New Block"
	case StateWaitForNewBlockExecution:
		return "Waiting for New Block Execution"
	case StateProofSearch:
		return "Searching for Proof"
	case StateTransmitBlock:
		return "Transmitting Block"
	case StateReset:
		return "Reset"
	default:
		return "Unknown"
	}
}
