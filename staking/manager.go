package staking

import (
	"crypto/sha256"
	"encoding/binary"
	"sync"

	"ledgerd/block"
	"ledgerd/logx"
	"ledgerd/types"
)

// generationFactor widens each staker's lottery window so block production
// does not stall when few validators are online.
const generationFactor = 2

// Manager is the stake oracle. Permission, validity and weight all derive
// from (previous block, miner identity, stake table) alone, so every honest
// node computes the same answers.
type Manager struct {
	mu     sync.RWMutex
	stakes map[string]uint64
	total  uint64

	currentHash   types.Hash
	currentNumber uint64
}

// NewManager builds the oracle from the genesis stake table.
func NewManager(stakes map[string]uint64) *Manager {
	m := &Manager{stakes: make(map[string]uint64, len(stakes))}
	for addr, amount := range stakes {
		m.stakes[addr] = amount
		m.total += amount
	}
	return m
}

// lottery folds the previous block and the miner identity into a uniform
// 64-bit draw.
func (m *Manager) lottery(previous *block.Block, miner string) uint64 {
	h := sha256.New()
	h.Write(previous.Body.Hash[:])
	num := make([]byte, 8)
	binary.BigEndian.PutUint64(num, previous.Body.Number+1)
	h.Write(num)
	h.Write([]byte(miner))
	return binary.BigEndian.Uint64(h.Sum(nil)[:8])
}

// ShouldGenerateBlock reports whether the miner may build on the previous
// block.
func (m *Manager) ShouldGenerateBlock(previous *block.Block, miner string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()

	stake := m.stakes[miner]
	if stake == 0 || m.total == 0 {
		return false
	}
	window := stake * generationFactor
	if window > m.total {
		window = m.total
	}
	return m.lottery(previous, miner)%m.total < window
}

// ValidMinerForBlock checks the producing identity of a received block
// against the same lottery.
func (m *Manager) ValidMinerForBlock(previous *block.Block, miner string) bool {
	return m.ShouldGenerateBlock(previous, miner)
}

// GetBlockGenerationWeight returns the consensus weight the miner's block
// carries on top of the previous block.
func (m *Manager) GetBlockGenerationWeight(previous *block.Block, miner string) uint64 {
	m.mu.RLock()
	defer m.mu.RUnlock()

	stake := m.stakes[miner]
	if stake == 0 {
		return 0
	}
	return 1 + m.lottery(previous, miner)%stake
}

// UpdateCurrentBlock records the block that just finished its lifecycle.
func (m *Manager) UpdateCurrentBlock(b *block.Block) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if b.Body.Number >= m.currentNumber {
		m.currentHash = b.Body.Hash
		m.currentNumber = b.Body.Number
		logx.Debug("STAKING", "Stake view advanced to block ", b.Body.Number)
	}
}

// Stake returns the registered stake for an address.
func (m *Manager) Stake(addr string) uint64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.stakes[addr]
}

// TotalStake returns the sum of all registered stakes.
func (m *Manager) TotalStake() uint64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.total
}
