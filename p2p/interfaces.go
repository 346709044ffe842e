package p2p

import "hypernovachain_go/blockchain"

// Broadcaster propagates committed blocks. Implementations must not block the
// caller on slow receivers.
type Broadcaster interface {
	BroadcastBlock(block *blockchain.Block)
}

// BlockMessage is the payload pushed to websocket subscribers
type BlockMessage struct {
	Type   string            `json:"type"`
	Height uint64            `json:"height"`
	Hash   string            `json:"hash"`
	Block  *blockchain.Block `json:"block"`
}

// MessageTypeBlock tags a BlockMessage carrying a committed block
const MessageTypeBlock = "block"
