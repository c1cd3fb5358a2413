package block

import (
	"crypto/ed25519"
	"crypto/sha256"
	"encoding/binary"
	"encoding/json"

	"ledgerd/common"
	"ledgerd/types"
)

// TxLayout places a single transaction, addressed by digest, into a lane of
// a block slice. Transaction content lives in the storage layer.
type TxLayout struct {
	Digest types.Hash `json:"digest"`
	Lane   uint32     `json:"lane"`
}

// Slice is an ordered run of transaction layouts.
type Slice struct {
	Transactions []TxLayout `json:"transactions"`
}

// Proof carries the difficulty target (leading zero bits of the proof hash)
// and the nonce found by the proof search.
type Proof struct {
	Target uint8  `json:"target"`
	Nonce  uint64 `json:"nonce"`
}

// Body is the content of a block. Hash stays zero until the proof search
// closes the block.
type Body struct {
	PrevHash     types.Hash `json:"prev_hash"`
	Hash         types.Hash `json:"hash"`
	Number       uint64     `json:"number"`
	Miner        string     `json:"miner"`
	MerkleRoot   types.Hash `json:"merkle_root"`
	Slices       []Slice    `json:"slices"`
	Log2NumLanes uint8      `json:"log2_num_lanes"`
	DAGEpoch     uint64     `json:"dag_epoch,omitempty"`
}

// Block is a body plus its consensus weight and proof.
type Block struct {
	Body      Body   `json:"body"`
	Weight    uint64 `json:"weight"`
	Proof     Proof  `json:"proof"`
	Signature []byte `json:"signature,omitempty"`
}

// Genesis returns the well-known root block. Its digest doubles as the
// "nothing executed yet" sentinel reported by a fresh execution engine.
func Genesis() *Block {
	return &Block{
		Body: Body{
			PrevHash:   types.GenesisHash,
			Hash:       types.GenesisHash,
			Number:     0,
			MerkleRoot: types.GenesisStateRoot,
		},
	}
}

// IsGenesis reports whether the block sits directly on the chain root.
func (b *Block) IsGenesis() bool {
	return b.Body.PrevHash == types.GenesisHash
}

// NumLanes returns the lane count encoded by the lane exponent.
func (b *Block) NumLanes() uint64 {
	return 1 << b.Body.Log2NumLanes
}

// TxDigests returns the digests of every transaction in slice order.
func (b *Block) TxDigests() []types.Hash {
	var out []types.Hash
	for _, slice := range b.Body.Slices {
		for _, tx := range slice.Transactions {
			out = append(out, tx.Digest)
		}
	}
	return out
}

// TransactionCount returns the number of transactions across all slices.
func (b *Block) TransactionCount() int {
	count := 0
	for _, slice := range b.Body.Slices {
		count += len(slice.Transactions)
	}
	return count
}

// proofMaterial renders the digest preimage without the nonce. The proof
// search appends candidate nonces to this.
func (b *Block) proofMaterial() []byte {
	h := sha256.New()
	num := make([]byte, 8)

	h.Write(b.Body.PrevHash[:])
	binary.BigEndian.PutUint64(num, b.Body.Number)
	h.Write(num)
	h.Write([]byte(b.Body.Miner))
	h.Write(b.Body.MerkleRoot[:])
	h.Write([]byte{b.Body.Log2NumLanes})
	binary.BigEndian.PutUint64(num, b.Body.DAGEpoch)
	h.Write(num)
	binary.BigEndian.PutUint64(num, b.Weight)
	h.Write(num)
	for _, slice := range b.Body.Slices {
		for _, tx := range slice.Transactions {
			h.Write(tx.Digest[:])
			binary.BigEndian.PutUint32(num[:4], tx.Lane)
			h.Write(num[:4])
		}
	}
	return h.Sum(nil)
}

// ProofHash computes the proof hash for the given nonce.
func (b *Block) ProofHash(nonce uint64) types.Hash {
	num := make([]byte, 8)
	binary.BigEndian.PutUint64(num, nonce)
	return types.HashBytes(append(b.proofMaterial(), num...))
}

// UpdateDigest recomputes the block's content digest from the body and the
// closed proof.
func (b *Block) UpdateDigest() {
	b.Body.Hash = b.ProofHash(b.Proof.Nonce)
}

// Sign signs the block digest with the miner's key.
func (b *Block) Sign(privKey ed25519.PrivateKey) {
	b.Signature = ed25519.Sign(privKey, b.Body.Hash[:])
}

// VerifySignature checks the block signature against the given public key.
func (b *Block) VerifySignature(pubKey ed25519.PublicKey) bool {
	return ed25519.Verify(pubKey, b.Body.Hash[:], b.Signature)
}

// Marshal renders the block as JSON for persistence.
func (b *Block) Marshal() ([]byte, error) {
	return json.Marshal(b)
}

// Unmarshal parses a persisted block.
func Unmarshal(data []byte) (*Block, error) {
	var b Block
	if err := json.Unmarshal(data, &b); err != nil {
		return nil, err
	}
	return &b, nil
}

// MinerAddress converts an ed25519 public key into the base58 miner
// identity carried in block bodies.
func MinerAddress(pubKey ed25519.PublicKey) string {
	return common.EncodeBytesToBase58(pubKey)
}
