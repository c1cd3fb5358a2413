package dag

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ledgerd/types"
)

func TestEpochLifecycle(t *testing.T) {
	m := NewManager()
	assert.Equal(t, uint64(0), m.CurrentEpoch())

	n1 := types.HashBytes([]byte("n1"))
	n2 := types.HashBytes([]byte("n2"))
	m.AddNode(n1)
	m.AddNode(n2)

	handle := m.CreateEpoch(1)
	require.Equal(t, uint64(1), handle)

	// both nodes already arrived, the epoch satisfies immediately
	assert.True(t, m.SatisfyEpoch(handle))

	m.CommitEpoch(handle)
	assert.Equal(t, uint64(1), m.CurrentEpoch())
}

func TestZeroHandleAlwaysSatisfies(t *testing.T) {
	m := NewManager()
	assert.True(t, m.SatisfyEpoch(0))
	m.CommitEpoch(0)
	assert.Equal(t, uint64(0), m.CurrentEpoch())
}

func TestUnknownEpochSatisfiesEmpty(t *testing.T) {
	m := NewManager()
	// an epoch received from a peer without local requirements
	assert.True(t, m.SatisfyEpoch(7))
}

func TestRevertDropsLaterEpochs(t *testing.T) {
	m := NewManager()

	m.AddNode(types.HashBytes([]byte("n1")))
	h1 := m.CreateEpoch(1)
	m.CommitEpoch(h1)

	m.AddNode(types.HashBytes([]byte("n2")))
	h2 := m.CreateEpoch(2)
	m.CommitEpoch(h2)
	require.Equal(t, uint64(2), m.CurrentEpoch())

	require.True(t, m.RevertToEpoch(1))
	assert.Equal(t, uint64(1), m.CurrentEpoch())

	// the dropped epoch is forgotten; re-satisfying it starts empty
	assert.True(t, m.SatisfyEpoch(2))
}

func TestPendingNodesDrainIntoOneEpoch(t *testing.T) {
	m := NewManager()

	m.AddNode(types.HashBytes([]byte("n1")))
	m.CreateEpoch(1)

	// the next epoch starts with no requirements
	handle := m.CreateEpoch(2)
	assert.True(t, m.SatisfyEpoch(handle))
}
