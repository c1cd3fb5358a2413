package statestore

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"golang.org/x/crypto/blake2b"

	"ledgerd/db"
	"ledgerd/logx"
	"ledgerd/types"
)

const (
	snapshotKeyPrefix = "s:"
	lastCommitKey     = "meta:last_commit"
)

// snapshot is the persisted form of one committed state version.
type snapshot struct {
	Root     types.Hash       `json:"root"`
	Number   uint64           `json:"number"`
	Accounts []*types.Account `json:"accounts"`
}

// Store is the Merkle-versioned account state. The working state mutates in
// place; Commit freezes it under its root at a block number, and
// RevertToHash restores any previously committed version. It is safe for
// concurrent use.
type Store struct {
	mu       sync.Mutex
	provider db.DatabaseProvider

	accounts   map[string]*types.Account
	current    types.Hash
	dirty      bool
	lastCommit types.Hash
}

// New opens the store and registers the genesis account set as the state
// version for block number zero.
func New(provider db.DatabaseProvider, genesisAccounts []*types.Account) (*Store, error) {
	s := &Store{
		provider:   provider,
		accounts:   make(map[string]*types.Account, len(genesisAccounts)),
		current:    types.GenesisStateRoot,
		lastCommit: types.GenesisStateRoot,
	}
	for _, acct := range genesisAccounts {
		s.accounts[acct.Address] = acct.Clone()
	}

	if err := s.writeSnapshot(types.GenesisStateRoot, 0); err != nil {
		return nil, fmt.Errorf("failed to register genesis state: %w", err)
	}

	raw, err := provider.Get([]byte(lastCommitKey))
	if err != nil {
		return nil, fmt.Errorf("failed to load last commit root: %w", err)
	}
	if len(raw) == types.HashSize {
		copy(s.lastCommit[:], raw)
	}

	return s, nil
}

// CurrentHash returns the root of the working state.
func (s *Store) CurrentHash() types.Hash {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.currentRoot()
}

func (s *Store) currentRoot() types.Hash {
	if s.dirty {
		s.current = s.computeRoot()
		s.dirty = false
	}
	return s.current
}

// LastCommitHash returns the root recorded by the most recent Commit.
func (s *Store) LastCommitHash() types.Hash {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastCommit
}

// HashExists reports whether a state version was committed under the root at
// the given block number.
func (s *Store) HashExists(root types.Hash, number uint64) bool {
	exists, err := s.provider.Has(snapshotKey(root, number))
	if err != nil {
		logx.Error("STATESTORE", "Failed to probe snapshot: ", err)
		return false
	}
	return exists
}

// RevertToHash restores the working state to a committed version.
func (s *Store) RevertToHash(root types.Hash, number uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	raw, err := s.provider.Get(snapshotKey(root, number))
	if err != nil || raw == nil {
		logx.Warn("STATESTORE", "No snapshot for root ", root.Short(), " at ", number)
		return false
	}
	var snap snapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		logx.Error("STATESTORE", "Failed to decode snapshot: ", err)
		return false
	}

	s.accounts = make(map[string]*types.Account, len(snap.Accounts))
	for _, acct := range snap.Accounts {
		s.accounts[acct.Address] = acct.Clone()
	}
	s.current = root
	s.dirty = false
	return true
}

// Commit freezes the working state under its current root at the given
// block number.
func (s *Store) Commit(number uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	root := s.currentRoot()
	if err := s.writeSnapshot(root, number); err != nil {
		return err
	}

	s.lastCommit = root
	if err := s.provider.Put([]byte(lastCommitKey), root[:]); err != nil {
		return fmt.Errorf("failed to persist last commit root: %w", err)
	}
	return nil
}

// GetAccount returns a copy of the account, false when absent.
func (s *Store) GetAccount(addr string) (*types.Account, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	acct, ok := s.accounts[addr]
	if !ok {
		return nil, false
	}
	return acct.Clone(), true
}

// PutAccount writes the account into the working state.
func (s *Store) PutAccount(acct *types.Account) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.accounts[acct.Address] = acct.Clone()
	s.dirty = true
}

// AccountCount returns the size of the working account set.
func (s *Store) AccountCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.accounts)
}

func (s *Store) writeSnapshot(root types.Hash, number uint64) error {
	accounts := make([]*types.Account, 0, len(s.accounts))
	for _, acct := range s.accounts {
		accounts = append(accounts, acct.Clone())
	}
	sort.Slice(accounts, func(i, j int) bool {
		return accounts[i].Address < accounts[j].Address
	})

	raw, err := json.Marshal(snapshot{Root: root, Number: number, Accounts: accounts})
	if err != nil {
		return fmt.Errorf("failed to encode snapshot: %w", err)
	}
	if err := s.provider.Put(snapshotKey(root, number), raw); err != nil {
		return fmt.Errorf("failed to persist snapshot: %w", err)
	}
	return nil
}

// computeRoot folds the sorted account set into a blake2b-256 digest.
func (s *Store) computeRoot() types.Hash {
	addrs := make([]string, 0, len(s.accounts))
	for addr := range s.accounts {
		addrs = append(addrs, addr)
	}
	sort.Strings(addrs)

	h, _ := blake2b.New256(nil)
	num := make([]byte, 8)
	for _, addr := range addrs {
		acct := s.accounts[addr]
		h.Write([]byte(acct.Address))
		if acct.Balance != nil {
			balance := acct.Balance.Bytes32()
			h.Write(balance[:])
		}
		binary.BigEndian.PutUint64(num, acct.Nonce)
		h.Write(num)
	}

	var root types.Hash
	copy(root[:], h.Sum(nil))
	return root
}

func snapshotKey(root types.Hash, number uint64) []byte {
	key := make([]byte, 0, len(snapshotKeyPrefix)+types.HashSize+8)
	key = append(key, snapshotKeyPrefix...)
	key = append(key, root[:]...)
	num := make([]byte, 8)
	binary.BigEndian.PutUint64(num, number)
	return append(key, num...)
}
