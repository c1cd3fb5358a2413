package events

import (
	"sync"

	"ledgerd/block"
	"ledgerd/logx"
)

// Router fans sealed blocks out to subscribers. It implements the block
// sink; transports and relays subscribe to it.
type Router struct {
	mu   sync.RWMutex
	subs []chan *block.Block
}

func NewRouter() *Router {
	return &Router{}
}

// Subscribe returns a channel that receives every sealed block.
func (r *Router) Subscribe(buffer int) <-chan *block.Block {
	r.mu.Lock()
	defer r.mu.Unlock()

	ch := make(chan *block.Block, buffer)
	r.subs = append(r.subs, ch)
	return ch
}

// OnBlock delivers a sealed block to every subscriber. Slow subscribers drop
// rather than stall the coordinator.
func (r *Router) OnBlock(b *block.Block) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, ch := range r.subs {
		select {
		case ch <- b:
		default:
			logx.Warn("EVENTS", "Dropping block ", b.Body.Hash.Short(), " for slow subscriber")
		}
	}
}
