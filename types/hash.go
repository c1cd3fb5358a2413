package types

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// HashSize is the length in bytes of every content digest and state root
// carried by the node.
const HashSize = 32

// Hash is an opaque 32-byte digest. Equality is byte equality.
type Hash [HashSize]byte

var (
	// GenesisHash is the content digest of the genesis block. The execution
	// engine reports it as its last-processed block until the first real
	// block has been executed.
	GenesisHash = Hash(sha256.Sum256([]byte("ledgerd.genesis.block")))

	// GenesisStateRoot is the state root registered for block number zero.
	GenesisStateRoot = Hash(sha256.Sum256([]byte("ledgerd.genesis.state")))
)

// HashBytes digests arbitrary bytes into a Hash.
func HashBytes(data []byte) Hash {
	return Hash(sha256.Sum256(data))
}

// IsZero reports whether the hash is the all-zero value, which marks a block
// whose proof has not yet closed it.
func (h Hash) IsZero() bool {
	return h == Hash{}
}

// Hex returns the lowercase hex encoding of the hash.
func (h Hash) Hex() string {
	return hex.EncodeToString(h[:])
}

// Short returns an abbreviated hex form used in log lines.
func (h Hash) Short() string {
	s := h.Hex()
	return s[:8]
}

func (h Hash) String() string {
	return "0x" + h.Hex()
}

// HashFromHex parses a 64-character hex string into a Hash.
func HashFromHex(s string) (Hash, error) {
	if len(s) >= 2 && s[:2] == "0x" {
		s = s[2:]
	}
	raw, err := hex.DecodeString(s)
	if err != nil {
		return Hash{}, fmt.Errorf("failed to decode hash hex: %w", err)
	}
	if len(raw) != HashSize {
		return Hash{}, fmt.Errorf("invalid hash length: %d", len(raw))
	}
	var h Hash
	copy(h[:], raw)
	return h, nil
}

// MarshalText implements encoding.TextMarshaler so hashes serialize as hex
// inside JSON documents persisted by the stores.
func (h Hash) MarshalText() ([]byte, error) {
	return []byte(h.Hex()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (h *Hash) UnmarshalText(text []byte) error {
	parsed, err := HashFromHex(string(text))
	if err != nil {
		return err
	}
	*h = parsed
	return nil
}
