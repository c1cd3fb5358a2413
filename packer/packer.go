package packer

import (
	"encoding/binary"
	"fmt"
	"math/bits"

	"ledgerd/block"
	"ledgerd/logx"
	"ledgerd/transaction"
	"ledgerd/types"
)

// ChainView is the read-only slice of the main chain the packer consults.
type ChainView interface {
	GetBlock(hash types.Hash) *block.Block
}

// TxSource supplies packable transactions; the mempool implements it.
type TxSource interface {
	PullBatch(max int) []*transaction.Transaction
}

// Packer fills a freshly minted block with transactions from the source.
type Packer struct {
	source    TxSource
	batchSize int
}

func New(source TxSource, batchSize int) *Packer {
	return &Packer{source: source, batchSize: batchSize}
}

// GenerateBlock lays out up to one batch of transactions across the block's
// slices and lanes.
func (p *Packer) GenerateBlock(next *block.Block, numLanes, numSlices uint64, view ChainView) error {
	if numSlices == 0 {
		return fmt.Errorf("slice count must be positive")
	}
	if numLanes == 0 || numLanes&(numLanes-1) != 0 {
		return fmt.Errorf("lane count %d is not a power of two", numLanes)
	}
	if view.GetBlock(next.Body.PrevHash) == nil {
		return fmt.Errorf("previous block %s not in chain", next.Body.PrevHash.Short())
	}

	slices := make([]block.Slice, numSlices)
	txs := p.source.PullBatch(p.batchSize)
	for i, tx := range txs {
		digest := tx.Digest()
		layout := block.TxLayout{
			Digest: digest,
			Lane:   uint32(binary.BigEndian.Uint64(digest[:8]) % numLanes),
		}
		slice := &slices[uint64(i)%numSlices]
		slice.Transactions = append(slice.Transactions, layout)
	}

	next.Body.Slices = slices
	next.Body.Log2NumLanes = uint8(bits.TrailingZeros64(numLanes))

	logx.Info("PACKER", "Packed ", len(txs), " transactions into block ", next.Body.Number)
	return nil
}
