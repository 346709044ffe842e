package blockchain

import "strings"

const (
	// BlockVersion is stamped into every header this node creates.
	BlockVersion uint32 = 1
	// MainShard is the only shard this node produces blocks for.
	MainShard uint32 = 0
	// DefaultDifficulty is carried in headers but not enforced by either engine.
	DefaultDifficulty uint64 = 1
	// HashLength is the length of a hex encoded SHA-256 digest.
	HashLength = 64
	// GenesisTimestamp pins block 0 so every node derives the same genesis hash.
	GenesisTimestamp int64 = 1735689600
)

// GenesisPrevHash is the prev_hash of block 0.
var GenesisPrevHash = strings.Repeat("0", HashLength)

// EmptyMerkleRoot is the merkle root of a block without transactions.
var EmptyMerkleRoot = strings.Repeat("0", HashLength)
