package transaction

import (
	"crypto/ed25519"
	"encoding/binary"
	"encoding/json"

	"github.com/holiman/uint256"

	"ledgerd/common"
	"ledgerd/types"
)

const (
	TxTypeTransfer = 0
)

// Transaction is a signed value transfer. The coordinator and the stores
// only ever address it by its content digest.
type Transaction struct {
	Type      int          `json:"type"`
	Sender    string       `json:"sender"`
	Recipient string       `json:"recipient"`
	Amount    *uint256.Int `json:"amount"`
	Nonce     uint64       `json:"nonce"`
	Timestamp uint64       `json:"timestamp"`
	TextData  string       `json:"text_data,omitempty"`
	Signature string       `json:"signature,omitempty"`
}

// Serialize renders the signable portion of the transaction. The signature
// field is excluded.
func (tx *Transaction) Serialize() []byte {
	buf := make([]byte, 0, 128)
	num := make([]byte, 8)

	buf = append(buf, byte(tx.Type))
	buf = append(buf, []byte(tx.Sender)...)
	buf = append(buf, []byte(tx.Recipient)...)
	if tx.Amount != nil {
		amount := tx.Amount.Bytes32()
		buf = append(buf, amount[:]...)
	}
	binary.BigEndian.PutUint64(num, tx.Nonce)
	buf = append(buf, num...)
	binary.BigEndian.PutUint64(num, tx.Timestamp)
	buf = append(buf, num...)
	buf = append(buf, []byte(tx.TextData)...)
	return buf
}

// Digest returns the content digest of the transaction.
func (tx *Transaction) Digest() types.Hash {
	return types.HashBytes(tx.Serialize())
}

// Sign signs the transaction and stores the base58 signature.
func (tx *Transaction) Sign(privKey ed25519.PrivateKey) {
	sig := ed25519.Sign(privKey, tx.Serialize())
	tx.Signature = common.EncodeBytesToBase58(sig)
}

// VerifySignature checks the stored signature against the given public key.
func (tx *Transaction) VerifySignature(pubKey ed25519.PublicKey) bool {
	sig, err := common.DecodeFromBase58(tx.Signature)
	if err != nil {
		return false
	}
	return ed25519.Verify(pubKey, tx.Serialize(), sig)
}

// Marshal renders the transaction as JSON for persistence.
func (tx *Transaction) Marshal() ([]byte, error) {
	return json.Marshal(tx)
}

// Unmarshal parses a persisted transaction.
func Unmarshal(data []byte) (*Transaction, error) {
	var tx Transaction
	if err := json.Unmarshal(data, &tx); err != nil {
		return nil, err
	}
	return &tx, nil
}
