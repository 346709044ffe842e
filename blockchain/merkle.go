package blockchain

import (
	"crypto/sha256"
	"encoding/hex"
)

// CalculateMerkleRoot builds a binary SHA-256 tree over the transaction
// hashes. An odd node at any level is paired with itself.
func CalculateMerkleRoot(txs []*Transaction) string {
	if len(txs) == 0 {
		return EmptyMerkleRoot
	}

	level := make([][32]byte, len(txs))
	for i, tx := range txs {
		level[i] = tx.digest()
	}

	for len(level) > 1 {
		if len(level)%2 == 1 {
			level = append(level, level[len(level)-1])
		}
		next := make([][32]byte, 0, len(level)/2)
		for i := 0; i < len(level); i += 2 {
			var pair [64]byte
			copy(pair[:32], level[i][:])
			copy(pair[32:], level[i+1][:])
			next = append(next, sha256.Sum256(pair[:]))
		}
		level = next
	}

	return hex.EncodeToString(level[0][:])
}
