package blockchain

// ChainReader is the read-only view of the ledger handed to consensus engines.
type ChainReader interface {
	GetLatestBlock() *Block
	GetBlockByHash(hash string) (*Block, bool)
	GetBlockByHeight(height uint64) (*Block, bool)
	GetHeight() uint64
	GetPendingTransactions() []*Transaction
}

// Consensus is a pluggable block production and acceptance policy.
// ValidateBlock must depend only on its arguments and the engine's
// configuration so that every node replaying it reaches the same verdict.
type Consensus interface {
	Initialize() error
	CreateBlock(chain ChainReader) (*Block, error)
	ValidateBlock(block *Block, chain ChainReader) error
	Name() string
}

// Storage is the durable persistence the ledger depends on. A call that
// returns nil is durable, and a StoreBlock is visible to a following
// GetBlock for the same hash.
type Storage interface {
	StoreBlock(block *Block) error
	// LoadBlocks returns every stored block ordered by height.
	LoadBlocks() ([]*Block, error)
	// GetBlock returns (nil, nil) when the hash is unknown.
	GetBlock(hash string) (*Block, error)
	StoreData(key string, value []byte) error
	// LoadData returns (nil, nil) when the key is unknown.
	LoadData(key string) ([]byte, error)
}
