package coordinator

import (
	"ledgerd/block"
	"ledgerd/chain"
	"ledgerd/execution"
	"ledgerd/packer"
	"ledgerd/synergetic"
	"ledgerd/transaction"
	"ledgerd/types"
)

// MainChain is the block graph the coordinator reconciles against.
type MainChain interface {
	GetHeaviestBlock() *block.Block
	GetHeaviestBlockHash() types.Hash
	GetBlock(hash types.Hash) *block.Block
	AddBlock(b *block.Block) (chain.BlockStatus, error)
	RemoveBlock(hash types.Hash) error
	GetPathToCommonAncestor(tip, target types.Hash, limit uint64, behaviour chain.BehaviourWhenLimit) ([]*block.Block, error)
	Reset()
}

// StateStore is the Merkle-versioned state the coordinator commits and
// reverts.
type StateStore interface {
	CurrentHash() types.Hash
	LastCommitHash() types.Hash
	HashExists(root types.Hash, number uint64) bool
	RevertToHash(root types.Hash, number uint64) bool
	Commit(number uint64) error
}

// ExecutionEngine runs block bodies and tracks the last executed digest.
type ExecutionEngine interface {
	Execute(body *block.Body) execution.ScheduleStatus
	GetState() execution.State
	SetLastProcessedBlock(hash types.Hash)
	LastProcessedBlock() types.Hash
}

// TransactionIndex is the slice of the storage layer that answers digest
// availability and solicits missing content from peers.
type TransactionIndex interface {
	HasTransaction(digest types.Hash) bool
	IssueCallForMissingTxs(set transaction.DigestSet)
}

// BlockPacker fills a minted block with transactions.
type BlockPacker interface {
	GenerateBlock(next *block.Block, numLanes, numSlices uint64, view packer.ChainView) error
}

// StatusCache records transaction lifecycle updates.
type StatusCache interface {
	Update(digest types.Hash, status transaction.Status)
}

// StakeOracle gates and weighs block production. Optional.
type StakeOracle interface {
	ShouldGenerateBlock(previous *block.Block, miner string) bool
	ValidMinerForBlock(previous *block.Block, miner string) bool
	GetBlockGenerationWeight(previous *block.Block, miner string) uint64
	UpdateCurrentBlock(b *block.Block)
}

// SynergeticExecMgr validates the off-chain work a block certifies.
// Optional.
type SynergeticExecMgr interface {
	PrepareWorkQueue(current, previous *block.Block) synergetic.Status
	ValidateWorkAndUpdateState(blockNumber, numLanes uint64) bool
}

// DAG manages per-block epochs of off-chain data. Optional.
type DAG interface {
	CurrentEpoch() uint64
	CreateEpoch(blockNumber uint64) uint64
	SatisfyEpoch(handle uint64) bool
	RevertToEpoch(blockNumber uint64) bool
	CommitEpoch(handle uint64)
}

// ProofMiner searches for a block proof within a bounded attempt budget.
type ProofMiner interface {
	Mine(b *block.Block, budget uint64) bool
}
