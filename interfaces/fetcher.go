package interfaces

import "ledgerd/types"

// TxFetcher solicits transaction content from peers. Implementations must
// not block; delivery happens asynchronously through the mempool.
type TxFetcher interface {
	FetchTransactions(digests []types.Hash)
}
