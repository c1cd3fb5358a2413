package packer

import (
	"testing"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ledgerd/block"
	"ledgerd/transaction"
	"ledgerd/types"
)

type stubSource struct {
	txs []*transaction.Transaction
}

func (s *stubSource) PullBatch(max int) []*transaction.Transaction {
	if len(s.txs) > max {
		return s.txs[:max]
	}
	return s.txs
}

type stubView struct {
	known map[types.Hash]*block.Block
}

func (v *stubView) GetBlock(hash types.Hash) *block.Block {
	return v.known[hash]
}

func makeTxs(count int) []*transaction.Transaction {
	txs := make([]*transaction.Transaction, count)
	for i := range txs {
		txs[i] = &transaction.Transaction{
			Sender:    "sender",
			Recipient: "recipient",
			Amount:    uint256.NewInt(1),
			Nonce:     uint64(i),
		}
	}
	return txs
}

func mintedOn(parent *block.Block) *block.Block {
	next := &block.Block{}
	next.Body.PrevHash = parent.Body.Hash
	next.Body.Number = parent.Body.Number + 1
	return next
}

func TestGenerateBlockLaysOutSlices(t *testing.T) {
	genesis := block.Genesis()
	view := &stubView{known: map[types.Hash]*block.Block{genesis.Body.Hash: genesis}}
	p := New(&stubSource{txs: makeTxs(10)}, 100)

	next := mintedOn(genesis)
	require.NoError(t, p.GenerateBlock(next, 4, 2, view))

	assert.Equal(t, uint8(2), next.Body.Log2NumLanes)
	require.Len(t, next.Body.Slices, 2)
	assert.Equal(t, 10, next.TransactionCount())

	for _, slice := range next.Body.Slices {
		for _, layout := range slice.Transactions {
			assert.Less(t, layout.Lane, uint32(4))
			assert.False(t, layout.Digest.IsZero())
		}
	}
}

func TestGenerateBlockEmptyPool(t *testing.T) {
	genesis := block.Genesis()
	view := &stubView{known: map[types.Hash]*block.Block{genesis.Body.Hash: genesis}}
	p := New(&stubSource{}, 100)

	next := mintedOn(genesis)
	require.NoError(t, p.GenerateBlock(next, 4, 3, view))

	// the slice layout exists even with nothing to pack
	assert.Len(t, next.Body.Slices, 3)
	assert.Equal(t, 0, next.TransactionCount())
}

func TestGenerateBlockValidatesConfiguration(t *testing.T) {
	genesis := block.Genesis()
	view := &stubView{known: map[types.Hash]*block.Block{genesis.Body.Hash: genesis}}
	p := New(&stubSource{}, 100)

	assert.Error(t, p.GenerateBlock(mintedOn(genesis), 3, 2, view), "lanes not a power of two")
	assert.Error(t, p.GenerateBlock(mintedOn(genesis), 0, 2, view), "zero lanes")
	assert.Error(t, p.GenerateBlock(mintedOn(genesis), 4, 0, view), "zero slices")
}

func TestGenerateBlockRequiresKnownParent(t *testing.T) {
	view := &stubView{known: map[types.Hash]*block.Block{}}
	p := New(&stubSource{}, 100)

	orphan := &block.Block{}
	orphan.Body.PrevHash = types.HashBytes([]byte("unknown"))
	orphan.Body.Number = 9

	assert.Error(t, p.GenerateBlock(orphan, 4, 2, view))
}
