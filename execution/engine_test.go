package execution

import (
	"testing"
	"time"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ledgerd/block"
	"ledgerd/db"
	"ledgerd/mempool"
	"ledgerd/statestore"
	"ledgerd/transaction"
	"ledgerd/types"
)

func newTestEngine(t *testing.T) (*LaneEngine, *statestore.Store, *mempool.Mempool) {
	t.Helper()

	store, err := statestore.New(db.NewMemoryProvider(), []*types.Account{
		{Address: "alice", Balance: uint256.NewInt(1000)},
		{Address: "bob", Balance: uint256.NewInt(0)},
	})
	require.NoError(t, err)

	pool := mempool.New(100, nil)
	return NewLaneEngine(store, pool), store, pool
}

func transfer(sender, recipient string, amount, nonce uint64) *transaction.Transaction {
	return &transaction.Transaction{
		Sender:    sender,
		Recipient: recipient,
		Amount:    uint256.NewInt(amount),
		Nonce:     nonce,
	}
}

func bodyWith(txs ...*transaction.Transaction) *block.Body {
	body := &block.Body{Hash: types.HashBytes([]byte("block"))}
	slice := block.Slice{}
	for _, tx := range txs {
		slice.Transactions = append(slice.Transactions, block.TxLayout{Digest: tx.Digest()})
	}
	body.Slices = []block.Slice{slice}
	return body
}

func waitForState(t *testing.T, engine *LaneEngine, want State) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if engine.GetState() == want {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("engine never reached state %s, currently %s", want, engine.GetState())
}

func TestEngineStartsIdleAtGenesis(t *testing.T) {
	engine, _, _ := newTestEngine(t)

	assert.Equal(t, StateIdle, engine.GetState())
	assert.Equal(t, types.GenesisHash, engine.LastProcessedBlock())
}

func TestEngineAppliesTransfers(t *testing.T) {
	engine, store, pool := newTestEngine(t)

	tx := transfer("alice", "bob", 300, 0)
	require.NoError(t, pool.AddTransaction(tx))
	body := bodyWith(tx)

	require.Equal(t, ScheduleStatusScheduled, engine.Execute(body))
	waitForState(t, engine, StateIdle)

	alice, _ := store.GetAccount("alice")
	bob, _ := store.GetAccount("bob")
	assert.Equal(t, uint64(700), alice.Balance.Uint64())
	assert.Equal(t, uint64(300), bob.Balance.Uint64())
	assert.Equal(t, uint64(1), alice.Nonce)
	assert.Equal(t, body.Hash, engine.LastProcessedBlock())
}

func TestEngineStallsOnMissingTransaction(t *testing.T) {
	engine, store, _ := newTestEngine(t)

	tx := transfer("alice", "bob", 300, 0)
	body := bodyWith(tx) // never added to the pool

	require.Equal(t, ScheduleStatusScheduled, engine.Execute(body))
	waitForState(t, engine, StateTransactionsUnavailable)

	// nothing was applied and the last processed digest did not move
	alice, _ := store.GetAccount("alice")
	assert.Equal(t, uint64(1000), alice.Balance.Uint64())
	assert.Equal(t, types.GenesisHash, engine.LastProcessedBlock())
}

func TestEngineSkipsInvalidTransfers(t *testing.T) {
	engine, store, pool := newTestEngine(t)

	overdraft := transfer("alice", "bob", 5000, 0)
	badNonce := transfer("alice", "bob", 10, 9)
	unknownSender := transfer("nobody", "bob", 10, 0)
	valid := transfer("alice", "bob", 10, 0)
	for _, tx := range []*transaction.Transaction{overdraft, badNonce, unknownSender, valid} {
		require.NoError(t, pool.AddTransaction(tx))
	}

	require.Equal(t, ScheduleStatusScheduled, engine.Execute(bodyWith(overdraft, badNonce, unknownSender, valid)))
	waitForState(t, engine, StateIdle)

	alice, _ := store.GetAccount("alice")
	bob, _ := store.GetAccount("bob")
	assert.Equal(t, uint64(990), alice.Balance.Uint64())
	assert.Equal(t, uint64(10), bob.Balance.Uint64())
}

func TestEngineRejectsDoubleSchedule(t *testing.T) {
	engine, _, _ := newTestEngine(t)

	engine.mu.Lock()
	engine.state = StateActive
	engine.mu.Unlock()

	assert.Equal(t, ScheduleStatusAlreadyRunning, engine.Execute(bodyWith()))
}

func TestEngineRejectsNilBody(t *testing.T) {
	engine, _, _ := newTestEngine(t)
	assert.Equal(t, ScheduleStatusUnschedulable, engine.Execute(nil))
}

func TestSetLastProcessedBlockOverrides(t *testing.T) {
	engine, _, _ := newTestEngine(t)

	digest := types.HashBytes([]byte("minted"))
	engine.SetLastProcessedBlock(digest)
	assert.Equal(t, digest, engine.LastProcessedBlock())
}
