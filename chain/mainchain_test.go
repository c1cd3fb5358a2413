package chain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ledgerd/block"
	"ledgerd/db"
	"ledgerd/types"
)

func newTestChain(t *testing.T) *MainChain {
	t.Helper()
	c, err := NewMainChain(db.NewMemoryProvider())
	require.NoError(t, err)
	return c
}

func testBlock(prev *block.Block, label string, weight uint64) *block.Block {
	b := &block.Block{}
	b.Body.PrevHash = prev.Body.Hash
	b.Body.Number = prev.Body.Number + 1
	b.Body.Hash = types.HashBytes([]byte(label))
	b.Weight = weight
	return b
}

func TestGenesisIsInitialHeaviest(t *testing.T) {
	c := newTestChain(t)

	assert.Equal(t, types.GenesisHash, c.GetHeaviestBlockHash())
	require.NotNil(t, c.GetHeaviestBlock())
	assert.Equal(t, uint64(0), c.GetHeaviestBlock().Body.Number)
}

func TestAddBlockStatuses(t *testing.T) {
	c := newTestChain(t)

	b1 := testBlock(block.Genesis(), "b1", 1)
	status, err := c.AddBlock(b1)
	require.NoError(t, err)
	assert.Equal(t, BlockAdded, status)

	status, err = c.AddBlock(b1)
	require.NoError(t, err)
	assert.Equal(t, BlockAlreadyPresent, status)

	orphan := &block.Block{}
	orphan.Body.PrevHash = types.HashBytes([]byte("nowhere"))
	orphan.Body.Number = 5
	orphan.Body.Hash = types.HashBytes([]byte("orphan"))
	status, err = c.AddBlock(orphan)
	require.NoError(t, err)
	assert.Equal(t, BlockRejected, status)

	hashless := &block.Block{}
	hashless.Body.PrevHash = b1.Body.Hash
	hashless.Body.Number = 2
	status, err = c.AddBlock(hashless)
	require.NoError(t, err)
	assert.Equal(t, BlockRejected, status)

	wrongNumber := testBlock(b1, "wrong", 1)
	wrongNumber.Body.Number = 7
	status, err = c.AddBlock(wrongNumber)
	require.NoError(t, err)
	assert.Equal(t, BlockRejected, status)
}

func TestHeaviestTipByAccumulatedWeight(t *testing.T) {
	c := newTestChain(t)

	// a long light chain
	b1 := testBlock(block.Genesis(), "b1", 1)
	b2 := testBlock(b1, "b2", 1)
	b3 := testBlock(b2, "b3", 1)
	for _, b := range []*block.Block{b1, b2, b3} {
		status, err := c.AddBlock(b)
		require.NoError(t, err)
		require.Equal(t, BlockAdded, status)
	}
	assert.Equal(t, b3.Body.Hash, c.GetHeaviestBlockHash())

	// a short heavy fork wins
	c2 := testBlock(b1, "c2", 100)
	status, err := c.AddBlock(c2)
	require.NoError(t, err)
	require.Equal(t, BlockAdded, status)
	assert.Equal(t, c2.Body.Hash, c.GetHeaviestBlockHash())
}

func TestRemoveBlockPurgesSubtree(t *testing.T) {
	c := newTestChain(t)

	b1 := testBlock(block.Genesis(), "b1", 1)
	b2 := testBlock(b1, "b2", 1)
	b3 := testBlock(b2, "b3", 1)
	for _, b := range []*block.Block{b1, b2, b3} {
		_, err := c.AddBlock(b)
		require.NoError(t, err)
	}

	require.NoError(t, c.RemoveBlock(b2.Body.Hash))

	assert.Nil(t, c.GetBlock(b2.Body.Hash))
	assert.Nil(t, c.GetBlock(b3.Body.Hash))
	assert.NotNil(t, c.GetBlock(b1.Body.Hash))

	// the parent becomes a tip again
	assert.Equal(t, b1.Body.Hash, c.GetHeaviestBlockHash())

	// removing the genesis block is refused
	assert.Error(t, c.RemoveBlock(types.GenesisHash))
}

func TestPathToCommonAncestor(t *testing.T) {
	c := newTestChain(t)

	a1 := testBlock(block.Genesis(), "a1", 1)
	b2 := testBlock(a1, "b2", 1)
	b3 := testBlock(b2, "b3", 1)
	c2 := testBlock(a1, "c2", 5)
	c3 := testBlock(c2, "c3", 5)
	for _, b := range []*block.Block{a1, b2, b3, c2, c3} {
		_, err := c.AddBlock(b)
		require.NoError(t, err)
	}

	path, err := c.GetPathToCommonAncestor(c3.Body.Hash, b3.Body.Hash, 0, ReturnLeastRecent)
	require.NoError(t, err)

	// ordered tip first, common ancestor last
	require.Len(t, path, 3)
	assert.Equal(t, c3.Body.Hash, path[0].Body.Hash)
	assert.Equal(t, c2.Body.Hash, path[1].Body.Hash)
	assert.Equal(t, a1.Body.Hash, path[2].Body.Hash)
}

func TestPathToCommonAncestorLimit(t *testing.T) {
	c := newTestChain(t)

	prev := block.Genesis()
	var blocks []*block.Block
	for i := 0; i < 6; i++ {
		b := testBlock(prev, string(rune('a'+i)), 1)
		_, err := c.AddBlock(b)
		require.NoError(t, err)
		blocks = append(blocks, b)
		prev = b
	}
	tip := blocks[5]

	// the least recent entries survive truncation so the walk still reaches
	// the common parent
	path, err := c.GetPathToCommonAncestor(tip.Body.Hash, types.GenesisHash, 3, ReturnLeastRecent)
	require.NoError(t, err)
	require.Len(t, path, 3)
	assert.Equal(t, blocks[1].Body.Hash, path[0].Body.Hash)
	assert.Equal(t, blocks[0].Body.Hash, path[1].Body.Hash)
	assert.Equal(t, types.GenesisHash, path[2].Body.Hash)

	path, err = c.GetPathToCommonAncestor(tip.Body.Hash, types.GenesisHash, 3, ReturnMostRecent)
	require.NoError(t, err)
	require.Len(t, path, 3)
	assert.Equal(t, tip.Body.Hash, path[0].Body.Hash)
}

func TestPathToCommonAncestorUnknownBlocks(t *testing.T) {
	c := newTestChain(t)

	_, err := c.GetPathToCommonAncestor(types.HashBytes([]byte("missing")), types.GenesisHash, 0, ReturnLeastRecent)
	assert.Error(t, err)
}

func TestChainReloadFromProvider(t *testing.T) {
	provider := db.NewMemoryProvider()

	c, err := NewMainChain(provider)
	require.NoError(t, err)

	b1 := testBlock(block.Genesis(), "b1", 1)
	b2 := testBlock(b1, "b2", 3)
	for _, b := range []*block.Block{b1, b2} {
		_, err := c.AddBlock(b)
		require.NoError(t, err)
	}

	// a fresh instance over the same provider sees the same chain
	reloaded, err := NewMainChain(provider)
	require.NoError(t, err)

	assert.Equal(t, b2.Body.Hash, reloaded.GetHeaviestBlockHash())
	require.NotNil(t, reloaded.GetBlock(b1.Body.Hash))
	assert.Equal(t, b1.Body.Number, reloaded.GetBlock(b1.Body.Hash).Body.Number)
}

func TestChainReset(t *testing.T) {
	c := newTestChain(t)

	b1 := testBlock(block.Genesis(), "b1", 1)
	_, err := c.AddBlock(b1)
	require.NoError(t, err)

	c.Reset()

	assert.Nil(t, c.GetBlock(b1.Body.Hash))
	assert.Equal(t, types.GenesisHash, c.GetHeaviestBlockHash())
}
