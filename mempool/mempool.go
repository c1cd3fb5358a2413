package mempool

import (
	"errors"
	"sync"

	"ledgerd/interfaces"
	"ledgerd/logx"
	"ledgerd/monitoring"
	"ledgerd/transaction"
	"ledgerd/types"
)

var (
	ErrMempoolFull = errors.New("mempool is full")
	ErrTxExists    = errors.New("transaction already in mempool")
)

// Mempool is the local transaction index: it stores transaction content by
// digest, queues fresh transactions for the packer, and solicits missing
// content from peers through the configured fetcher.
type Mempool struct {
	mu      sync.RWMutex
	txs     map[types.Hash]*transaction.Transaction
	queue   []types.Hash
	fetcher interfaces.TxFetcher
	maxTxs  int
}

// New creates a mempool. fetcher may be nil on nodes without a transport.
func New(maxTxs int, fetcher interfaces.TxFetcher) *Mempool {
	return &Mempool{
		txs:     make(map[types.Hash]*transaction.Transaction),
		fetcher: fetcher,
		maxTxs:  maxTxs,
	}
}

// AddTransaction indexes a transaction and queues it for packing.
func (m *Mempool) AddTransaction(tx *transaction.Transaction) error {
	digest := tx.Digest()

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.txs[digest]; ok {
		return ErrTxExists
	}
	if m.maxTxs > 0 && len(m.txs) >= m.maxTxs {
		return ErrMempoolFull
	}

	m.txs[digest] = tx
	m.queue = append(m.queue, digest)
	monitoring.SetMempoolSize(len(m.txs))
	return nil
}

// HasTransaction reports whether the content for a digest is locally
// available.
func (m *Mempool) HasTransaction(digest types.Hash) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.txs[digest]
	return ok
}

// GetTransaction returns the indexed transaction, nil when absent.
func (m *Mempool) GetTransaction(digest types.Hash) *transaction.Transaction {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.txs[digest]
}

// IssueCallForMissingTxs asks peers for the content of every digest in the
// set. A node without a fetcher only logs.
func (m *Mempool) IssueCallForMissingTxs(set transaction.DigestSet) {
	digests := set.Digests()
	logx.Info("MEMPOOL", "Requesting ", len(digests), " missing transactions from peers")
	if m.fetcher != nil {
		m.fetcher.FetchTransactions(digests)
	}
}

// PullBatch removes up to max queued transactions for packing. The content
// stays indexed so the coordinator can execute the packed block.
func (m *Mempool) PullBatch(max int) []*transaction.Transaction {
	m.mu.Lock()
	defer m.mu.Unlock()

	var batch []*transaction.Transaction
	for len(m.queue) > 0 && len(batch) < max {
		digest := m.queue[0]
		m.queue = m.queue[1:]
		if tx, ok := m.txs[digest]; ok {
			batch = append(batch, tx)
		}
	}
	return batch
}

// Size returns the number of indexed transactions.
func (m *Mempool) Size() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.txs)
}
