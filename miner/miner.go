package miner

import (
	"math/bits"

	"ledgerd/block"
	"ledgerd/types"
)

// ProofMiner searches for a nonce whose proof hash clears the block's
// difficulty target. Each Mine call spends at most the given attempt budget
// so callers can slice the search cooperatively.
type ProofMiner struct{}

func New() *ProofMiner {
	return &ProofMiner{}
}

// Mine advances the nonce by up to budget attempts. On success the winning
// nonce is stored in the block's proof; on failure the nonce survives so the
// next call resumes where this one stopped.
func (m *ProofMiner) Mine(b *block.Block, budget uint64) bool {
	nonce := b.Proof.Nonce
	for i := uint64(0); i < budget; i++ {
		hash := b.ProofHash(nonce)
		if leadingZeroBits(hash) >= int(b.Proof.Target) {
			b.Proof.Nonce = nonce
			return true
		}
		nonce++
	}
	b.Proof.Nonce = nonce
	return false
}

func leadingZeroBits(h types.Hash) int {
	count := 0
	for _, b := range h {
		if b == 0 {
			count += 8
			continue
		}
		count += bits.LeadingZeros8(b)
		break
	}
	return count
}
