package coordinator

import (
	"sync"

	"ledgerd/types"
)

// LastExecutedBlock publishes the digest of the last successfully executed
// block to other node subsystems. It only advances on successful commits.
type LastExecutedBlock struct {
	mu   sync.RWMutex
	hash types.Hash
}

func NewLastExecutedBlock(initial types.Hash) *LastExecutedBlock {
	return &LastExecutedBlock{hash: initial}
}

func (l *LastExecutedBlock) Get() types.Hash {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.hash
}

func (l *LastExecutedBlock) Set(hash types.Hash) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.hash = hash
}
