package block

import (
	"crypto/ed25519"
	"crypto/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ledgerd/types"
)

func sampleBlock() *Block {
	b := &Block{}
	b.Body.PrevHash = types.GenesisHash
	b.Body.Number = 1
	b.Body.Miner = "miner-1"
	b.Body.MerkleRoot = types.HashBytes([]byte("root"))
	b.Body.Log2NumLanes = 2
	b.Body.Slices = []Slice{
		{Transactions: []TxLayout{
			{Digest: types.HashBytes([]byte("t1")), Lane: 0},
			{Digest: types.HashBytes([]byte("t2")), Lane: 3},
		}},
		{},
	}
	b.Weight = 5
	b.Proof.Target = 8
	return b
}

func TestGenesisBlock(t *testing.T) {
	g := Genesis()

	assert.Equal(t, types.GenesisHash, g.Body.Hash)
	assert.Equal(t, types.GenesisHash, g.Body.PrevHash)
	assert.Equal(t, types.GenesisStateRoot, g.Body.MerkleRoot)
	assert.Equal(t, uint64(0), g.Body.Number)
	assert.True(t, g.IsGenesis())
}

func TestUpdateDigestIsDeterministic(t *testing.T) {
	b1 := sampleBlock()
	b2 := sampleBlock()
	b1.Proof.Nonce = 42
	b2.Proof.Nonce = 42

	b1.UpdateDigest()
	b2.UpdateDigest()

	require.False(t, b1.Body.Hash.IsZero())
	assert.Equal(t, b1.Body.Hash, b2.Body.Hash)

	// the digest covers the nonce
	b2.Proof.Nonce = 43
	b2.UpdateDigest()
	assert.NotEqual(t, b1.Body.Hash, b2.Body.Hash)

	// and the content
	b3 := sampleBlock()
	b3.Proof.Nonce = 42
	b3.Body.Number = 2
	b3.UpdateDigest()
	assert.NotEqual(t, b1.Body.Hash, b3.Body.Hash)
}

func TestTxDigestsPreserveSliceOrder(t *testing.T) {
	b := sampleBlock()

	digests := b.TxDigests()
	require.Len(t, digests, 2)
	assert.Equal(t, types.HashBytes([]byte("t1")), digests[0])
	assert.Equal(t, types.HashBytes([]byte("t2")), digests[1])
	assert.Equal(t, 2, b.TransactionCount())
}

func TestNumLanes(t *testing.T) {
	b := sampleBlock()
	assert.Equal(t, uint64(4), b.NumLanes())
}

func TestSignAndVerify(t *testing.T) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)

	b := sampleBlock()
	b.UpdateDigest()
	b.Sign(priv)

	assert.True(t, b.VerifySignature(pub))

	otherPub, _, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	assert.False(t, b.VerifySignature(otherPub))
}

func TestMarshalRoundTrip(t *testing.T) {
	b := sampleBlock()
	b.Proof.Nonce = 7
	b.UpdateDigest()

	raw, err := b.Marshal()
	require.NoError(t, err)

	decoded, err := Unmarshal(raw)
	require.NoError(t, err)

	assert.Equal(t, b.Body.Hash, decoded.Body.Hash)
	assert.Equal(t, b.Weight, decoded.Weight)
	assert.Equal(t, b.Proof, decoded.Proof)
	assert.Equal(t, b.TxDigests(), decoded.TxDigests())
}
