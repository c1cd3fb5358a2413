package coordinator

import (
	"context"
	"crypto/ed25519"
	"sync"
	"sync/atomic"
	"time"

	"ledgerd/block"
	"ledgerd/chain"
	"ledgerd/execution"
	"ledgerd/interfaces"
	"ledgerd/logx"
	"ledgerd/monitoring"
	"ledgerd/synergetic"
	"ledgerd/transaction"
	"ledgerd/types"
	"ledgerd/utils"
)

const (
	txSyncNotifyInterval     = 1 * time.Second
	execNotifyInterval       = 500 * time.Millisecond
	notifyInterval           = 10 * time.Second
	waitBeforeAskingInterval = 30 * time.Second
	waitForTxTimeoutInterval = 30 * time.Second

	thresholdForFastSyncing  = 100
	defaultPathAncestorLimit = 1000
	defaultProofSearchBudget = 100

	syncErrorDelay   = 500 * time.Millisecond
	revertErrorDelay = 5 * time.Second
	idleDelay        = 100 * time.Millisecond
	txWaitDelay      = 200 * time.Millisecond
	execPollDelay    = 20 * time.Millisecond
)

// Config carries the coordinator tunables. A zero path-to-ancestor limit,
// fast-sync threshold, proof search budget or transaction wait interval falls
// back to the defaults above; the other fields are used as given.
type Config struct {
	MinerAddress    string
	Signer          ed25519.PrivateKey
	BlockPeriod     time.Duration
	BlockDifficulty uint8
	NumLanes        uint64
	NumSlices       uint64
	Mining          bool

	PathToAncestorLimit uint64
	FastSyncThreshold   int
	ProofSearchBudget   uint64

	WaitBeforeAskingForMissingTxs time.Duration
	WaitForTxTimeout              time.Duration
}

func (c *Config) applyDefaults() {
	if c.PathToAncestorLimit == 0 {
		c.PathToAncestorLimit = defaultPathAncestorLimit
	}
	if c.FastSyncThreshold == 0 {
		c.FastSyncThreshold = thresholdForFastSyncing
	}
	if c.ProofSearchBudget == 0 {
		c.ProofSearchBudget = defaultProofSearchBudget
	}
	if c.WaitBeforeAskingForMissingTxs == 0 {
		c.WaitBeforeAskingForMissingTxs = waitBeforeAskingInterval
	}
	if c.WaitForTxTimeout == 0 {
		c.WaitForTxTimeout = waitForTxTimeoutInterval
	}
}

// Deps wires the collaborators. Stake, DAG and Synergetic are optional;
// Clock defaults to the system clock.
type Deps struct {
	Chain      MainChain
	State      StateStore
	Engine     ExecutionEngine
	TxIndex    TransactionIndex
	Packer     BlockPacker
	Sink       interfaces.BlockSink
	Status     StatusCache
	Stake      StakeOracle
	DAG        DAG
	Synergetic SynergeticExecMgr
	Miner      ProofMiner
	Clock      Clock
}

// BlockCoordinator drives the node through chain reconciliation,
// transaction synchronization, speculative execution, state commitment and
// block production. All handlers run on the single driver goroutine; errors
// never cross a handler boundary, they map to a reset transition.
type BlockCoordinator struct {
	cfg Config

	mainChain  MainChain
	stateStore StateStore
	engine     ExecutionEngine
	txIndex    TransactionIndex
	packer     BlockPacker
	sink       interfaces.BlockSink
	status     StatusCache
	stake      StakeOracle
	dag        DAG
	synExecMgr SynergeticExecMgr
	miner      ProofMiner
	clock      Clock

	sm *StateMachine

	currentBlock *block.Block
	nextBlock    *block.Block
	pendingTxs   transaction.DigestSet
	ancestorPath []*block.Block

	askedForMissingTxs bool
	waitBeforeAsking   *Deadline
	waitForTxTimeout   *Deadline

	txWaitPeriodic   *Periodic
	execWaitPeriodic *Periodic
	syncingPeriodic  *Periodic
	printPeriodic    *Periodic

	lastExecuted  *LastExecutedBlock
	miningEnabled atomic.Bool

	mu            sync.Mutex
	nextBlockTime time.Time
	lastCommitAt  time.Time
}

// New constructs the coordinator and registers its handler table.
func New(cfg Config, deps Deps) *BlockCoordinator {
	cfg.applyDefaults()
	clock := deps.Clock
	if clock == nil {
		clock = SystemClock()
	}

	bc := &BlockCoordinator{
		cfg:        cfg,
		mainChain:  deps.Chain,
		stateStore: deps.State,
		engine:     deps.Engine,
		txIndex:    deps.TxIndex,
		packer:     deps.Packer,
		sink:       deps.Sink,
		status:     deps.Status,
		stake:      deps.Stake,
		dag:        deps.DAG,
		synExecMgr: deps.Synergetic,
		miner:      deps.Miner,
		clock:      clock,

		sm: NewStateMachine("BlockCoordinator", StateReload),

		waitBeforeAsking: NewDeadline(clock),
		waitForTxTimeout: NewDeadline(clock),

		txWaitPeriodic:   NewPeriodic(clock, txSyncNotifyInterval),
		execWaitPeriodic: NewPeriodic(clock, execNotifyInterval),
		syncingPeriodic:  NewPeriodic(clock, notifyInterval),
		printPeriodic:    NewPeriodic(clock, notifyInterval),

		lastExecuted: NewLastExecutedBlock(types.GenesisHash),
	}
	bc.miningEnabled.Store(true)

	bc.sm.RegisterHandler(StateReload, bc.onReloadState)
	bc.sm.RegisterHandler(StateSynchronising, bc.onSynchronising)
	bc.sm.RegisterHandler(StateSynchronised, bc.onSynchronised)

	bc.sm.RegisterHandler(StatePreExecValidation, bc.onPreExecBlockValidation)
	bc.sm.RegisterHandler(StateWaitForTransactions, bc.onWaitForTransactions)
	bc.sm.RegisterHandler(StateSynergeticExecution, bc.onSynergeticExecution)
	bc.sm.RegisterHandler(StateScheduleBlockExecution, bc.onScheduleBlockExecution)
	bc.sm.RegisterHandler(StateWaitForExecution, bc.onWaitForExecution)
	bc.sm.RegisterHandler(StatePostExecValidation, bc.onPostExecBlockValidation)

	bc.sm.RegisterHandler(StateNewSynergeticExecution, bc.onNewSynergeticExecution)
	bc.sm.RegisterHandler(StatePackNewBlock, bc.onPackNewBlock)
	bc.sm.RegisterHandler(StateExecuteNewBlock, bc.onExecuteNewBlock)
	bc.sm.RegisterHandler(StateWaitForNewBlockExecution, bc.onWaitForNewBlockExecution)
	bc.sm.RegisterHandler(StateProofSearch, bc.onProofSearch)

	bc.sm.RegisterHandler(StateTransmitBlock, bc.onTransmitBlock)
	bc.sm.RegisterHandler(StateReset, bc.onReset)

	bc.sm.OnEnter(func(state State) {
		monitoring.IncStateVisit(state.String())
	})
	bc.sm.OnStateChange(func(current, previous State) {
		if bc.printPeriodic.Poll() {
			logx.Info("COORDINATOR", "Current state: ", current.String(),
				" (previous: ", previous.String(), ")")
		}
	})

	return bc
}

// Run drives the coordinator until the context is cancelled.
func (bc *BlockCoordinator) Run(ctx context.Context) {
	bc.sm.Run(ctx)
}

// Step runs a single state handler; tests drive the machine with it. It
// returns the new state and the delay the handler requested.
func (bc *BlockCoordinator) Step() (State, time.Duration) {
	delay := bc.sm.Step()
	return bc.sm.State(), delay
}

// State returns the current coordinator state.
func (bc *BlockCoordinator) State() State {
	return bc.sm.State()
}

// LastExecutedBlock returns the digest of the last successfully executed
// block.
func (bc *BlockCoordinator) LastExecutedBlock() types.Hash {
	return bc.lastExecuted.Get()
}

// SetMiningEnabled toggles block production at runtime. The configured
// mining flag still has to be on.
func (bc *BlockCoordinator) SetMiningEnabled(enabled bool) {
	bc.miningEnabled.Store(enabled)
}

// TriggerBlockGeneration forces the block interval to expire so the next
// synchronised entry may mint immediately.
func (bc *BlockCoordinator) TriggerBlockGeneration() {
	if bc.cfg.Mining {
		bc.mu.Lock()
		bc.nextBlockTime = bc.clock.Now()
		bc.mu.Unlock()
	}
}

// Reset hard-resets the node back to genesis.
func (bc *BlockCoordinator) Reset() {
	bc.lastExecuted.Set(types.GenesisHash)
	bc.engine.SetLastProcessedBlock(types.GenesisHash)
	bc.mainChain.Reset()
}

func (bc *BlockCoordinator) onReloadState(State, State) State {
	// first time in the state, look up the heaviest block to recover from
	if bc.currentBlock == nil {
		bc.currentBlock = bc.mainChain.GetHeaviestBlock()
	}
	if bc.currentBlock == nil {
		logx.Error("COORDINATOR", "No heaviest block available during reload")
		return StateReset
	}

	if !bc.currentBlock.IsGenesis() {
		revertOK := bc.stateStore.RevertToHash(bc.currentBlock.Body.MerkleRoot, bc.currentBlock.Body.Number)
		dagOK := bc.dag == nil || bc.dag.RevertToEpoch(bc.currentBlock.Body.Number)

		if revertOK && dagOK {
			bc.engine.SetLastProcessedBlock(bc.currentBlock.Body.Hash)
			bc.lastExecuted.Set(bc.currentBlock.Body.Hash)
			logx.Info("COORDINATOR", "Recovered state up to block ", bc.currentBlock.Body.Number)
		}
	}

	return StateReset
}

func (bc *BlockCoordinator) onSynchronising(State, State) State {
	// ensure that we have a current block that we are executing
	if bc.currentBlock == nil {
		bc.currentBlock = bc.mainChain.GetHeaviestBlock()
	}
	if bc.currentBlock == nil || bc.currentBlock.Body.Hash.IsZero() {
		logx.Error("COORDINATOR", "Invalid heaviest block, empty block hash")
		bc.sm.Delay(syncErrorDelay)
		return StateReset
	}

	extraDebug := bc.syncingPeriodic.Poll()

	currentHash := bc.currentBlock.Body.Hash
	previousHash := bc.currentBlock.Body.PrevHash
	lastProcessed := bc.engine.LastProcessedBlock()

	if currentHash == lastProcessed {
		// the coordinator has caught up with the chain of blocks
		return StateSynchronised
	}

	if lastProcessed == types.GenesisHash {
		// start up - walk back to the first unexecuted block
		if previousHash == types.GenesisHash {
			return StatePreExecValidation
		}

		previousBlock := bc.mainChain.GetBlock(previousHash)
		if previousBlock == nil {
			logx.Warn("COORDINATOR", "Unable to lookup previous block: ", currentHash.Short())
			return StateReset
		}
		bc.currentBlock = previousBlock
		return StateSynchronising
	}

	// normal case - at least one block has been processed, reconcile the
	// executed prefix with the heaviest tip
	if len(bc.ancestorPath) == 0 {
		path, err := bc.mainChain.GetPathToCommonAncestor(
			currentHash, lastProcessed, bc.cfg.PathToAncestorLimit, chain.ReturnLeastRecent)
		if err != nil {
			logx.Warn("COORDINATOR", "Unable to lookup common ancestor for block ", currentHash.Short(), ": ", err)
			return StateReset
		}
		bc.ancestorPath = path
	}

	if len(bc.ancestorPath) < 2 {
		logx.Warn("COORDINATOR", "Expected at least two blocks from common ancestor")
		bc.ancestorPath = nil
		return StateReset
	}

	commonParent := bc.ancestorPath[len(bc.ancestorPath)-1]
	nextBlock := bc.ancestorPath[len(bc.ancestorPath)-2]

	if extraDebug {
		logx.Info("COORDINATOR", "Synchronising of chain in progress. ",
			utils.Percent(nextBlock.Body.Number, bc.currentBlock.Body.Number),
			"% (block ", nextBlock.Body.Number, " of ", bc.currentBlock.Body.Number, ")")
	}

	// the common parent should always have been processed, but check
	if !bc.stateStore.HashExists(commonParent.Body.MerkleRoot, commonParent.Body.Number) {
		logx.Error("COORDINATOR", "Ancestor state missing for block ", currentHash.Short(),
			" number ", commonParent.Body.Number)

		bc.engine.SetLastProcessedBlock(types.GenesisHash)
		if !bc.stateStore.RevertToHash(types.GenesisStateRoot, 0) {
			logx.Error("COORDINATOR", "Unable to revert back to genesis")
		}
		if bc.dag != nil && !bc.dag.RevertToEpoch(0) {
			logx.Error("COORDINATOR", "Unable to revert DAG back to genesis")
		}

		// allow the network to catch up and keep the logs quiet
		bc.sm.Delay(revertErrorDelay)
		return StateReset
	}

	if !bc.stateStore.RevertToHash(commonParent.Body.MerkleRoot, commonParent.Body.Number) {
		logx.Error("COORDINATOR", "Unable to restore state for block ", currentHash.Short())
		bc.sm.Delay(revertErrorDelay)
		return StateReset
	}

	if bc.dag != nil && !bc.dag.RevertToEpoch(commonParent.Body.Number) {
		logx.Error("COORDINATOR", "Failed to revert DAG to block ", commonParent.Body.Number)
		bc.sm.Delay(revertErrorDelay)
		return StateReset
	}

	bc.currentBlock = nextBlock
	bc.ancestorPath = bc.ancestorPath[:len(bc.ancestorPath)-1]

	// small residuals fall back to per-step lookup
	if len(bc.ancestorPath) < bc.cfg.FastSyncThreshold {
		bc.ancestorPath = nil
	}

	return StatePreExecValidation
}

func (bc *BlockCoordinator) onSynchronised(_, previous State) State {
	// ensure the sync progress log stays quiet once caught up
	bc.syncingPeriodic.Reset()

	if bc.mainChain.GetHeaviestBlockHash() != bc.currentBlock.Body.Hash {
		// the chain has moved on, re-evaluate
		return StateReset
	}

	if bc.cfg.Mining && bc.miningEnabled.Load() && !bc.clock.Now().Before(bc.getNextBlockTime()) {
		if bc.stake != nil && !bc.stake.ShouldGenerateBlock(bc.currentBlock, bc.cfg.MinerAddress) {
			bc.sm.Delay(idleDelay)
			return StateSynchronised
		}

		next := &block.Block{}
		next.Body.PrevHash = bc.currentBlock.Body.Hash
		next.Body.Number = bc.currentBlock.Body.Number + 1
		next.Body.Miner = bc.cfg.MinerAddress
		next.Weight = 1
		if bc.stake != nil {
			next.Weight = bc.stake.GetBlockGenerationWeight(bc.currentBlock, bc.cfg.MinerAddress)
		}
		if bc.dag != nil {
			next.Body.DAGEpoch = bc.dag.CreateEpoch(next.Body.Number)
		}
		next.Proof.Target = bc.cfg.BlockDifficulty

		bc.nextBlock = next
		// discard the current block, we are making a new one
		bc.currentBlock = nil

		return StateNewSynergeticExecution
	}

	if previous == StateSynchronising {
		logx.Info("COORDINATOR", "Chain sync complete on ", bc.currentBlock.Body.Hash.Short(),
			" (block: ", bc.currentBlock.Body.Number,
			" prev: ", bc.currentBlock.Body.PrevHash.Short(), ")")
	} else {
		bc.sm.Delay(idleDelay)
	}

	return StateSynchronised
}

func (bc *BlockCoordinator) onPreExecBlockValidation(State, State) State {
	isGenesis := bc.currentBlock.IsGenesis()

	fail := func(reason string) State {
		logx.Warn("COORDINATOR", "Block validation failed: ", reason,
			" (", bc.currentBlock.Body.Hash.Short(), ")")
		bc.removeBlock(bc.currentBlock.Body.Hash)
		return StateReset
	}

	if !isGenesis {
		previous := bc.mainChain.GetBlock(bc.currentBlock.Body.PrevHash)
		if previous == nil {
			return fail("no previous block in chain")
		}

		if bc.stake != nil {
			if !bc.stake.ValidMinerForBlock(previous, bc.currentBlock.Body.Miner) {
				return fail("block signed by miner deemed invalid by the staking mechanism")
			}
			if bc.currentBlock.Weight != bc.stake.GetBlockGenerationWeight(previous, bc.currentBlock.Body.Miner) {
				return fail("incorrect stake weight found for block")
			}
		}

		if previous.Body.Number+1 != bc.currentBlock.Body.Number {
			return fail("block number mismatch")
		}
		if bc.cfg.NumLanes != bc.currentBlock.NumLanes() {
			return fail("lane count mismatch")
		}
		if bc.cfg.NumSlices != uint64(len(bc.currentBlock.Body.Slices)) {
			return fail("slice count mismatch")
		}
	}

	if bc.currentBlock.Body.PrevHash.IsZero() {
		return fail("previous block hash unset")
	}

	// all work the block certifies is identified and queued up front; any
	// failure here is fatal to the block
	if !isGenesis && bc.synExecMgr != nil {
		previous := bc.mainChain.GetBlock(bc.currentBlock.Body.PrevHash)
		if bc.synExecMgr.PrepareWorkQueue(bc.currentBlock, previous) != synergetic.StatusSuccess {
			return fail("block certifies work that possibly is malicious")
		}
	}

	bc.txWaitPeriodic.Reset()

	return StateWaitForTransactions
}

func (bc *BlockCoordinator) onWaitForTransactions(current, previous State) State {
	if previous == current {
		if bc.askedForMissingTxs {
			if bc.waitForTxTimeout.HasExpired() {
				// the transactions never arrived, assume the block is
				// invalid and discard it
				logx.Warn("COORDINATOR", "Timed out waiting for transactions of block ",
					bc.currentBlock.Body.Hash.Short())
				bc.removeBlock(bc.currentBlock.Body.Hash)
				return StateReset
			}
		} else if bc.waitBeforeAsking.HasExpired() {
			if bc.pendingTxs != nil {
				bc.txIndex.IssueCallForMissingTxs(bc.pendingTxs)
			}
			bc.askedForMissingTxs = true
			bc.waitForTxTimeout.Restart(bc.cfg.WaitForTxTimeout)
		}
	} else {
		// only just started waiting, arm the countdown to asking peers
		bc.waitBeforeAsking.Restart(bc.cfg.WaitBeforeAskingForMissingTxs)
		bc.askedForMissingTxs = false
	}

	dagIsReady := true
	if bc.dag != nil {
		dagIsReady = bc.dag.SatisfyEpoch(bc.currentBlock.Body.DAGEpoch)
	}

	// build the digest cache on first pass
	if bc.pendingTxs == nil {
		bc.pendingTxs = transaction.NewDigestSet(bc.currentBlock.TxDigests()...)
	}

	// drop every digest the storage layer now holds
	bc.pendingTxs.Filter(func(digest types.Hash) bool {
		return !bc.txIndex.HasTransaction(digest)
	})

	if bc.pendingTxs.Empty() && dagIsReady {
		logx.Debug("COORDINATOR", "All transactions have been synchronised")
		bc.pendingTxs = nil
		return StateSynergeticExecution
	}

	if bc.txWaitPeriodic.Poll() {
		logx.Info("COORDINATOR", "Waiting for ", bc.pendingTxs.Len(), " transactions to sync")
	}
	if !dagIsReady {
		logx.Info("COORDINATOR", "Waiting for DAG to sync")
	}

	bc.sm.Delay(txWaitDelay)
	return StateWaitForTransactions
}

func (bc *BlockCoordinator) onSynergeticExecution(State, State) State {
	if !bc.currentBlock.IsGenesis() && bc.synExecMgr != nil {
		previous := bc.mainChain.GetBlock(bc.currentBlock.Body.PrevHash)
		if previous == nil {
			logx.Warn("COORDINATOR", "Failed to lookup previous block")
			return StateReset
		}

		status := bc.synExecMgr.PrepareWorkQueue(bc.currentBlock, previous)
		if status != synergetic.StatusSuccess {
			logx.Warn("COORDINATOR", "Error preparing synergetic work queue: ", status.String())
			return StateReset
		}

		if !bc.synExecMgr.ValidateWorkAndUpdateState(bc.currentBlock.Body.Number, bc.cfg.NumLanes) {
			logx.Warn("COORDINATOR", "Work did not execute (", bc.currentBlock.Body.Hash.Short(), ")")
			bc.removeBlock(bc.currentBlock.Body.Hash)
			return StateReset
		}
	}

	return StateScheduleBlockExecution
}

func (bc *BlockCoordinator) onScheduleBlockExecution(State, State) State {
	if bc.scheduleBlock(bc.currentBlock, "current") {
		bc.execWaitPeriodic.Reset()
		return StateWaitForExecution
	}
	return StateReset
}

func (bc *BlockCoordinator) onWaitForExecution(State, State) State {
	switch mapEngineState(bc.engine.GetState()) {
	case ExecStatusIdle:
		return StatePostExecValidation

	case ExecStatusRunning:
		if bc.execWaitPeriodic.Poll() {
			logx.Info("COORDINATOR", "Waiting for execution to complete for block: ",
				bc.currentBlock.Body.Hash.Short())
		}
		bc.sm.Delay(execPollDelay)
		return StateWaitForExecution

	default:
		return StateReset
	}
}

func (bc *BlockCoordinator) onPostExecBlockValidation(State, State) State {
	stateHash := bc.stateStore.CurrentHash()

	invalidBlock := false
	if !bc.currentBlock.IsGenesis() && stateHash != bc.currentBlock.Body.MerkleRoot {
		logx.Warn("COORDINATOR", "Block validation failed: Merkle hash mismatch (block: ",
			bc.currentBlock.Body.Hash.Short(),
			" expected: ", bc.currentBlock.Body.MerkleRoot.Short(),
			" actual: ", stateHash.Short(), ")")
		invalidBlock = true
	}

	if invalidBlock {
		// restore back to the previous block, or to genesis when even that
		// fails
		revertSuccessful := false
		previous := bc.mainChain.GetBlock(bc.currentBlock.Body.PrevHash)
		if previous != nil {
			dagOK := bc.dag == nil || bc.dag.RevertToEpoch(previous.Body.Number)
			if dagOK && bc.stateStore.RevertToHash(previous.Body.MerkleRoot, previous.Body.Number) {
				bc.engine.SetLastProcessedBlock(previous.Body.Hash)
				revertSuccessful = true
			}
		}

		if !revertSuccessful {
			if bc.dag != nil {
				bc.dag.RevertToEpoch(0)
			}
			bc.stateStore.RevertToHash(types.GenesisStateRoot, 0)
			bc.engine.SetLastProcessedBlock(types.GenesisHash)
		}

		bc.removeBlock(bc.currentBlock.Body.Hash)
		return StateReset
	}

	bc.updateTxStatus(bc.currentBlock)

	if err := bc.stateStore.Commit(bc.currentBlock.Body.Number); err != nil {
		logx.Error("COORDINATOR", "Failed to commit state for block ",
			bc.currentBlock.Body.Number, ": ", err)
	}
	if bc.dag != nil {
		bc.dag.CommitEpoch(bc.currentBlock.Body.DAGEpoch)
	}

	bc.lastExecuted.Set(bc.currentBlock.Body.Hash)
	bc.recordCommit(bc.currentBlock.Body.Number)

	return StateReset
}

func (bc *BlockCoordinator) onNewSynergeticExecution(State, State) State {
	if bc.synExecMgr != nil && bc.dag != nil {
		previous := bc.mainChain.GetBlock(bc.nextBlock.Body.PrevHash)
		if previous == nil {
			logx.Warn("COORDINATOR", "Failed to lookup parent of minted block")
			return StateReset
		}

		status := bc.synExecMgr.PrepareWorkQueue(bc.nextBlock, previous)
		if status != synergetic.StatusSuccess {
			logx.Warn("COORDINATOR", "Error preparing synergetic work queue: ", status.String())
			return StateReset
		}

		if !bc.synExecMgr.ValidateWorkAndUpdateState(bc.nextBlock.Body.Number, bc.cfg.NumLanes) {
			logx.Warn("COORDINATOR", "Failed to validate work queue")
			return StateReset
		}
	}

	return StatePackNewBlock
}

func (bc *BlockCoordinator) onPackNewBlock(State, State) State {
	err := bc.packer.GenerateBlock(bc.nextBlock, bc.cfg.NumLanes, bc.cfg.NumSlices, bc.mainChain)
	if err != nil {
		logx.Error("COORDINATOR", "Error generated performing block packing: ", err)
		return StateReset
	}

	bc.updateNextBlockTime()
	return StateExecuteNewBlock
}

func (bc *BlockCoordinator) onExecuteNewBlock(State, State) State {
	if bc.scheduleBlock(bc.nextBlock, "next") {
		bc.execWaitPeriodic.Reset()
		return StateWaitForNewBlockExecution
	}
	return StateReset
}

func (bc *BlockCoordinator) onWaitForNewBlockExecution(State, State) State {
	switch mapEngineState(bc.engine.GetState()) {
	case ExecStatusIdle:
		// capture the state this block generates
		bc.nextBlock.Body.MerkleRoot = bc.stateStore.CurrentHash()

		if err := bc.stateStore.Commit(bc.nextBlock.Body.Number); err != nil {
			logx.Error("COORDINATOR", "Failed to commit state for minted block: ", err)
		}
		if bc.dag != nil {
			bc.dag.CommitEpoch(bc.nextBlock.Body.DAGEpoch)
		}

		return StateProofSearch

	case ExecStatusRunning:
		if bc.execWaitPeriodic.Poll() {
			logx.Warn("COORDINATOR", "Waiting for new block execution (following: ",
				bc.nextBlock.Body.PrevHash.Short(), ")")
		}
		bc.sm.Delay(execPollDelay)
		return StateWaitForNewBlockExecution

	default:
		return StateReset
	}
}

func (bc *BlockCoordinator) onProofSearch(State, State) State {
	if !bc.miner.Mine(bc.nextBlock, bc.cfg.ProofSearchBudget) {
		return StateProofSearch
	}

	bc.nextBlock.UpdateDigest()
	if bc.cfg.Signer != nil {
		bc.nextBlock.Sign(bc.cfg.Signer)
	}

	// the engine is unaware of the digest of the block it just executed
	// because the merkle hash was unknown at schedule time
	bc.engine.SetLastProcessedBlock(bc.nextBlock.Body.Hash)

	return StateTransmitBlock
}

func (bc *BlockCoordinator) onTransmitBlock(State, State) State {
	status, err := bc.mainChain.AddBlock(bc.nextBlock)
	if err != nil {
		logx.Warn("COORDINATOR", "Error transmitting verified block: ", err)
		return StateReset
	}

	if status == chain.BlockAdded {
		logx.Info("COORDINATOR", "Broadcasting new block: ", bc.nextBlock.Body.Hash.Short(),
			" txs: ", bc.nextBlock.TransactionCount(),
			" number: ", bc.nextBlock.Body.Number)

		bc.updateTxStatus(bc.nextBlock)
		bc.lastExecuted.Set(bc.nextBlock.Body.Hash)
		bc.recordCommit(bc.nextBlock.Body.Number)
		bc.sink.OnBlock(bc.nextBlock)
	}

	return StateReset
}

func (bc *BlockCoordinator) onReset(State, State) State {
	// trigger stake updates at the end of the block lifecycle
	if bc.stake != nil {
		if bc.nextBlock != nil {
			bc.stake.UpdateCurrentBlock(bc.nextBlock)
		} else if bc.currentBlock != nil {
			bc.stake.UpdateCurrentBlock(bc.currentBlock)
		}
	}

	bc.currentBlock = nil
	bc.nextBlock = nil
	bc.pendingTxs = nil
	bc.ancestorPath = nil
	bc.askedForMissingTxs = false

	bc.updateNextBlockTime()

	return StateSynchronising
}

func (bc *BlockCoordinator) scheduleBlock(b *block.Block, which string) bool {
	if b == nil {
		logx.Error("COORDINATOR", "Unable to execute empty ", which, " block")
		return false
	}

	status := bc.engine.Execute(&b.Body)
	if status != execution.ScheduleStatusScheduled {
		logx.Error("COORDINATOR", "Execution engine unable to schedule block. Status: ", status.String())
		return false
	}
	return true
}

func (bc *BlockCoordinator) removeBlock(hash types.Hash) {
	if err := bc.mainChain.RemoveBlock(hash); err != nil {
		logx.Error("COORDINATOR", "Failed to remove block ", hash.Short(), ": ", err)
		return
	}
	monitoring.IncreaseRemovedBlockCount()
}

func (bc *BlockCoordinator) updateTxStatus(b *block.Block) {
	digests := b.TxDigests()
	for _, digest := range digests {
		bc.status.Update(digest, transaction.StatusExecuted)
	}
	monitoring.AddExecutedTxCount(len(digests))
}

func (bc *BlockCoordinator) recordCommit(blockNumber uint64) {
	monitoring.SetBlockHeight(blockNumber)

	bc.mu.Lock()
	now := bc.clock.Now()
	if !bc.lastCommitAt.IsZero() {
		monitoring.RecordBlockInterval(now.Sub(bc.lastCommitAt))
	}
	bc.lastCommitAt = now
	bc.mu.Unlock()
}

func (bc *BlockCoordinator) updateNextBlockTime() {
	bc.mu.Lock()
	bc.nextBlockTime = bc.clock.Now().Add(bc.cfg.BlockPeriod)
	bc.mu.Unlock()
}

func (bc *BlockCoordinator) getNextBlockTime() time.Time {
	bc.mu.Lock()
	defer bc.mu.Unlock()
	return bc.nextBlockTime
}
