package events

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ledgerd/block"
	"ledgerd/types"
)

func sealed(label string) *block.Block {
	b := &block.Block{}
	b.Body.Hash = types.HashBytes([]byte(label))
	return b
}

func TestRouterFansOut(t *testing.T) {
	router := NewRouter()

	sub1 := router.Subscribe(4)
	sub2 := router.Subscribe(4)

	b := sealed("b1")
	router.OnBlock(b)

	require.Equal(t, b, <-sub1)
	require.Equal(t, b, <-sub2)
}

func TestRouterDropsWhenSubscriberIsFull(t *testing.T) {
	router := NewRouter()
	sub := router.Subscribe(1)

	router.OnBlock(sealed("b1"))
	// the second delivery drops instead of stalling the coordinator
	router.OnBlock(sealed("b2"))

	first := <-sub
	assert.Equal(t, types.HashBytes([]byte("b1")), first.Body.Hash)
	select {
	case unexpected := <-sub:
		t.Fatalf("expected drop, received %s", unexpected.Body.Hash)
	default:
	}
}
