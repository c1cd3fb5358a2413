package execution

import (
	"runtime/debug"
	"sync"

	"github.com/holiman/uint256"

	"ledgerd/block"
	"ledgerd/logx"
	"ledgerd/monitoring"
	"ledgerd/statestore"
	"ledgerd/transaction"
	"ledgerd/types"
)

// TxIndex is the slice of the storage layer the engine reads transaction
// content from.
type TxIndex interface {
	GetTransaction(digest types.Hash) *transaction.Transaction
}

// LaneEngine executes block bodies against the state store. Execution runs
// on its own goroutine; callers poll GetState. Transactions whose content is
// missing from the index stall the run with StateTransactionsUnavailable.
type LaneEngine struct {
	mu            sync.Mutex
	state         State
	aborted       bool
	lastProcessed types.Hash

	store *statestore.Store
	index TxIndex
}

func NewLaneEngine(store *statestore.Store, index TxIndex) *LaneEngine {
	return &LaneEngine{
		state:         StateIdle,
		lastProcessed: types.GenesisHash,
		store:         store,
		index:         index,
	}
}

// Execute schedules a block body for execution.
func (e *LaneEngine) Execute(body *block.Body) ScheduleStatus {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.state == StateActive {
		return ScheduleStatusAlreadyRunning
	}
	if body == nil {
		return ScheduleStatusUnschedulable
	}

	e.state = StateActive
	e.aborted = false

	go func() {
		defer func() {
			if r := recover(); r != nil {
				monitoring.IncreasePanicCount()
				logx.Error("EXEC", "Panic while executing block: ", r, string(debug.Stack()))
				e.setState(StateFailed)
			}
		}()
		e.run(body)
	}()

	return ScheduleStatusScheduled
}

// GetState returns the engine lifecycle state.
func (e *LaneEngine) GetState() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// Abort stops the current run between transactions.
func (e *LaneEngine) Abort() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state == StateActive {
		e.aborted = true
	}
}

// SetLastProcessedBlock overrides the engine's record of the last executed
// block. The coordinator uses this after reverts and after proof search
// closes a minted block whose digest was unknown at schedule time.
func (e *LaneEngine) SetLastProcessedBlock(hash types.Hash) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.lastProcessed = hash
}

// LastProcessedBlock returns the digest of the last executed block.
func (e *LaneEngine) LastProcessedBlock() types.Hash {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.lastProcessed
}

func (e *LaneEngine) setState(state State) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.state = state
}

func (e *LaneEngine) run(body *block.Body) {
	// resolve all content up front so a missing transaction stalls the run
	// before any state mutates
	var txs []*transaction.Transaction
	for _, slice := range body.Slices {
		for _, layout := range slice.Transactions {
			tx := e.index.GetTransaction(layout.Digest)
			if tx == nil {
				logx.Warn("EXEC", "Transaction unavailable: ", layout.Digest.Short())
				e.setState(StateTransactionsUnavailable)
				return
			}
			txs = append(txs, tx)
		}
	}

	for _, tx := range txs {
		e.mu.Lock()
		if e.aborted {
			e.state = StateAborted
			e.mu.Unlock()
			return
		}
		e.mu.Unlock()

		e.applyTransfer(tx)
	}

	e.mu.Lock()
	e.lastProcessed = body.Hash
	e.state = StateIdle
	e.mu.Unlock()
}

// applyTransfer applies a single value transfer. Invalid transfers are
// skipped, never fatal, so every honest node derives the same state.
func (e *LaneEngine) applyTransfer(tx *transaction.Transaction) {
	digest := tx.Digest()

	sender, ok := e.store.GetAccount(tx.Sender)
	if !ok {
		logx.Debug("EXEC", "Skipping tx ", digest.Short(), ": unknown sender")
		return
	}
	if tx.Nonce != sender.Nonce {
		logx.Debug("EXEC", "Skipping tx ", digest.Short(), ": nonce mismatch")
		return
	}
	amount := tx.Amount
	if amount == nil {
		amount = uint256.NewInt(0)
	}
	if sender.Balance.Lt(amount) {
		logx.Debug("EXEC", "Skipping tx ", digest.Short(), ": insufficient balance")
		return
	}

	recipient, ok := e.store.GetAccount(tx.Recipient)
	if !ok {
		recipient = &types.Account{Address: tx.Recipient, Balance: uint256.NewInt(0)}
	}

	sender.Balance = new(uint256.Int).Sub(sender.Balance, amount)
	sender.Nonce++
	recipient.Balance = new(uint256.Int).Add(recipient.Balance, amount)

	e.store.PutAccount(sender)
	e.store.PutAccount(recipient)
}
