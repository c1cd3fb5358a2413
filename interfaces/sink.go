package interfaces

import "ledgerd/block"

// BlockSink receives fully formed blocks once the coordinator has sealed
// them. Transports and relays attach here.
type BlockSink interface {
	OnBlock(b *block.Block)
}
