package chain

import (
	"bytes"
	"errors"
	"fmt"
	"sort"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"

	"ledgerd/block"
	"ledgerd/db"
	"ledgerd/logx"
	"ledgerd/types"
)

const (
	blockKeyPrefix = "b:"

	blockCacheSize = 1024
)

var (
	ErrBlockNotFound    = errors.New("block not found in chain")
	ErrNoCommonAncestor = errors.New("no common ancestor between blocks")
)

// BlockStatus is the outcome of AddBlock.
type BlockStatus int

const (
	BlockAdded BlockStatus = iota
	BlockAlreadyPresent
	BlockRejected
)

func (s BlockStatus) String() string {
	switch s {
	case BlockAdded:
		return "added"
	case BlockAlreadyPresent:
		return "already present"
	default:
		return "rejected"
	}
}

// BehaviourWhenLimit selects which end of an over-long ancestor path is kept.
type BehaviourWhenLimit int

const (
	ReturnLeastRecent BehaviourWhenLimit = iota
	ReturnMostRecent
)

// node is the in-memory index entry for one block. Full block content lives
// in the database provider; nodes only carry what tip selection and ancestor
// walks need.
type node struct {
	hash        types.Hash
	prev        types.Hash
	number      uint64
	totalWeight uint64
	children    map[types.Hash]struct{}
}

// MainChain indexes the block graph, tracks its tips, and selects the
// heaviest one by accumulated weight. It is safe for concurrent use.
type MainChain struct {
	mu       sync.RWMutex
	provider db.DatabaseProvider
	cache    *lru.Cache[types.Hash, *block.Block]

	genesis  *block.Block
	nodes    map[types.Hash]*node
	tips     map[types.Hash]struct{}
	heaviest types.Hash
}

// NewMainChain opens the chain over the given provider, reloading any
// persisted blocks.
func NewMainChain(provider db.DatabaseProvider) (*MainChain, error) {
	cache, err := lru.New[types.Hash, *block.Block](blockCacheSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create block cache: %w", err)
	}

	c := &MainChain{
		provider: provider,
		cache:    cache,
		genesis:  block.Genesis(),
	}
	c.initIndex()

	if err := c.reload(); err != nil {
		return nil, fmt.Errorf("failed to reload chain: %w", err)
	}
	return c, nil
}

func (c *MainChain) initIndex() {
	g := c.genesis
	root := &node{
		hash:     g.Body.Hash,
		prev:     g.Body.PrevHash,
		number:   0,
		children: make(map[types.Hash]struct{}),
	}
	c.nodes = map[types.Hash]*node{g.Body.Hash: root}
	c.tips = map[types.Hash]struct{}{g.Body.Hash: {}}
	c.heaviest = g.Body.Hash
}

// reload rebuilds the index from persisted blocks, inserting in block number
// order so parents always precede children.
func (c *MainChain) reload() error {
	var stored []*block.Block
	err := c.provider.IteratePrefix([]byte(blockKeyPrefix), func(_, value []byte) bool {
		blk, err := block.Unmarshal(value)
		if err != nil {
			logx.Error("CHAIN", "Failed to decode persisted block: ", err)
			return true
		}
		stored = append(stored, blk)
		return true
	})
	if err != nil {
		return err
	}

	sort.Slice(stored, func(i, j int) bool {
		return stored[i].Body.Number < stored[j].Body.Number
	})
	for _, blk := range stored {
		if status, err := c.insert(blk, false); err != nil {
			return err
		} else if status == BlockRejected {
			logx.Warn("CHAIN", "Dropping persisted block with missing parent: ", blk.Body.Hash.Short())
		}
	}

	if len(stored) > 0 {
		logx.Info("CHAIN", "Reloaded ", len(stored), " blocks, heaviest ", c.heaviest.Short())
	}
	return nil
}

// AddBlock indexes and persists a block on top of its parent.
func (c *MainChain) AddBlock(b *block.Block) (BlockStatus, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.insert(b, true)
}

func (c *MainChain) insert(b *block.Block, persist bool) (BlockStatus, error) {
	if b == nil || b.Body.Hash.IsZero() {
		return BlockRejected, nil
	}
	if _, ok := c.nodes[b.Body.Hash]; ok {
		return BlockAlreadyPresent, nil
	}
	parent, ok := c.nodes[b.Body.PrevHash]
	if !ok {
		return BlockRejected, nil
	}
	if b.Body.Number != parent.number+1 {
		return BlockRejected, nil
	}

	n := &node{
		hash:   b.Body.Hash,
		prev:   b.Body.PrevHash,
		number: b.Body.Number,
		// every block contributes at least one unit so longer chains win
		// among weightless peers
		totalWeight: parent.totalWeight + b.Weight + 1,
		children:    make(map[types.Hash]struct{}),
	}

	if persist {
		raw, err := b.Marshal()
		if err != nil {
			return BlockRejected, fmt.Errorf("failed to encode block: %w", err)
		}
		if err := c.provider.Put(c.blockKey(b.Body.Hash), raw); err != nil {
			return BlockRejected, fmt.Errorf("failed to persist block: %w", err)
		}
	}

	c.nodes[n.hash] = n
	parent.children[n.hash] = struct{}{}
	delete(c.tips, parent.hash)
	c.tips[n.hash] = struct{}{}
	c.cache.Add(b.Body.Hash, b)
	c.updateHeaviest()

	return BlockAdded, nil
}

// RemoveBlock drops a block and every descendant from the index and the
// backing store.
func (c *MainChain) RemoveBlock(hash types.Hash) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	n, ok := c.nodes[hash]
	if !ok {
		return nil
	}
	if hash == c.genesis.Body.Hash {
		return fmt.Errorf("cannot remove genesis block")
	}

	// collect the subtree rooted at the block
	doomed := []*node{n}
	for i := 0; i < len(doomed); i++ {
		for child := range doomed[i].children {
			doomed = append(doomed, c.nodes[child])
		}
	}

	for _, d := range doomed {
		delete(c.nodes, d.hash)
		delete(c.tips, d.hash)
		c.cache.Remove(d.hash)
		if err := c.provider.Delete(c.blockKey(d.hash)); err != nil {
			logx.Error("CHAIN", "Failed to delete persisted block: ", err)
		}
	}

	if parent, ok := c.nodes[n.prev]; ok {
		delete(parent.children, hash)
		if len(parent.children) == 0 {
			c.tips[parent.hash] = struct{}{}
		}
	}

	c.updateHeaviest()
	return nil
}

// GetBlock returns the block with the given hash, nil when unknown.
func (c *MainChain) GetBlock(hash types.Hash) *block.Block {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.lookup(hash)
}

func (c *MainChain) lookup(hash types.Hash) *block.Block {
	if _, ok := c.nodes[hash]; !ok {
		return nil
	}
	if hash == c.genesis.Body.Hash {
		return c.genesis
	}
	if blk, ok := c.cache.Get(hash); ok {
		return blk
	}

	raw, err := c.provider.Get(c.blockKey(hash))
	if err != nil || raw == nil {
		logx.Error("CHAIN", "Failed to load indexed block ", hash.Short(), ": ", err)
		return nil
	}
	blk, err := block.Unmarshal(raw)
	if err != nil {
		logx.Error("CHAIN", "Failed to decode indexed block ", hash.Short(), ": ", err)
		return nil
	}
	c.cache.Add(hash, blk)
	return blk
}

// GetHeaviestBlock returns the block at the heaviest tip.
func (c *MainChain) GetHeaviestBlock() *block.Block {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.lookup(c.heaviest)
}

// GetHeaviestBlockHash returns the hash of the heaviest tip.
func (c *MainChain) GetHeaviestBlockHash() types.Hash {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.heaviest
}

// GetPathToCommonAncestor returns the blocks from tip down to the deepest
// block shared with target, ordered tip first and ancestor last. When the
// path exceeds limit, behaviour selects which end survives.
func (c *MainChain) GetPathToCommonAncestor(tip, target types.Hash, limit uint64, behaviour BehaviourWhenLimit) ([]*block.Block, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	a, ok := c.nodes[tip]
	if !ok {
		return nil, fmt.Errorf("%w: tip %s", ErrBlockNotFound, tip.Short())
	}
	b, ok := c.nodes[target]
	if !ok {
		return nil, fmt.Errorf("%w: target %s", ErrBlockNotFound, target.Short())
	}

	var path []*block.Block
	appendBlock := func(n *node) error {
		blk := c.lookup(n.hash)
		if blk == nil {
			return fmt.Errorf("%w: %s", ErrBlockNotFound, n.hash.Short())
		}
		path = append(path, blk)
		return nil
	}
	up := func(n *node) (*node, error) {
		parent, ok := c.nodes[n.prev]
		if !ok {
			return nil, fmt.Errorf("%w: parent of %s", ErrBlockNotFound, n.hash.Short())
		}
		return parent, nil
	}

	var err error
	for a.number > b.number {
		if err = appendBlock(a); err != nil {
			return nil, err
		}
		if a, err = up(a); err != nil {
			return nil, err
		}
	}
	for b.number > a.number {
		if b, err = up(b); err != nil {
			return nil, err
		}
	}
	for a.hash != b.hash {
		if a.number == 0 {
			return nil, ErrNoCommonAncestor
		}
		if err = appendBlock(a); err != nil {
			return nil, err
		}
		if a, err = up(a); err != nil {
			return nil, err
		}
		if b, err = up(b); err != nil {
			return nil, err
		}
	}
	if err = appendBlock(a); err != nil {
		return nil, err
	}

	if limit > 0 && uint64(len(path)) > limit {
		switch behaviour {
		case ReturnLeastRecent:
			path = path[uint64(len(path))-limit:]
		case ReturnMostRecent:
			path = path[:limit]
		}
	}

	return path, nil
}

// Reset drops every block except genesis.
func (c *MainChain) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()

	err := c.provider.IteratePrefix([]byte(blockKeyPrefix), func(key, _ []byte) bool {
		if err := c.provider.Delete(key); err != nil {
			logx.Error("CHAIN", "Failed to delete persisted block during reset: ", err)
		}
		return true
	})
	if err != nil {
		logx.Error("CHAIN", "Failed to iterate persisted blocks during reset: ", err)
	}

	c.cache.Purge()
	c.initIndex()
	logx.Info("CHAIN", "Chain reset to genesis")
}

// updateHeaviest rescans the tips. Ties break on the smaller hash so every
// node agrees on the same winner.
func (c *MainChain) updateHeaviest() {
	var best *node
	for tip := range c.tips {
		n := c.nodes[tip]
		if best == nil || n.totalWeight > best.totalWeight ||
			(n.totalWeight == best.totalWeight && bytes.Compare(n.hash[:], best.hash[:]) < 0) {
			best = n
		}
	}
	if best != nil {
		c.heaviest = best.hash
	}
}

func (c *MainChain) blockKey(hash types.Hash) []byte {
	return append([]byte(blockKeyPrefix), hash[:]...)
}
