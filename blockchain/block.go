package blockchain

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"hypernovachain_go/security"
)

// BlockHeader is the hashed part of a block
type BlockHeader struct {
	Version    uint32 `json:"version"`
	PrevHash   string `json:"prevHash"`
	MerkleRoot string `json:"merkleRoot"`
	Timestamp  int64  `json:"timestamp"`
	Height     uint64 `json:"height"`
	Difficulty uint64 `json:"difficulty"`
	Nonce      uint64 `json:"nonce"`
	ShardID    uint32 `json:"shardId"`
}

/**
 * Block represents a single block in the blockchain.
 * Its identity is the hash of the header alone; transactions are bound in
 * through the merkle root. The validator signature, the validator address
 * and the consensus proof live outside the header.
 */
type Block struct {
	Header             BlockHeader         `json:"header"`
	Transactions       []*Transaction      `json:"transactions"`
	ValidatorSignature *security.Signature `json:"validatorSignature,omitempty"`
	Validator          string              `json:"validator,omitempty"` // Hex public key of the signer
	Proof              []byte              `json:"proof,omitempty"`     // Consensus specific, e.g. an oracle attestation
}

/**
 * NewBlock assembles an unsigned block on top of prevHash.
 *
 * Parameters:
 *   - prevHash: Hash of the parent header, GenesisPrevHash for block 0
 *   - height: Position of the block in the chain
 *   - txs: Transactions to include, in order
 *   - shardID: Shard the block belongs to
 */
func NewBlock(prevHash string, height uint64, txs []*Transaction, shardID uint32) *Block {
	if txs == nil {
		txs = []*Transaction{}
	}
	return &Block{
		Header: BlockHeader{
			Version:    BlockVersion,
			PrevHash:   prevHash,
			MerkleRoot: CalculateMerkleRoot(txs),
			Timestamp:  time.Now().Unix(),
			Height:     height,
			Difficulty: DefaultDifficulty,
			Nonce:      0,
			ShardID:    shardID,
		},
		Transactions: txs,
	}
}

// NewGenesisBlock creates block 0
func NewGenesisBlock() *Block {
	genesis := NewBlock(GenesisPrevHash, 0, nil, MainShard)
	genesis.Header.Timestamp = GenesisTimestamp
	return genesis
}

func (h *BlockHeader) digest() [32]byte {
	data, _ := json.Marshal(h)
	return sha256.Sum256(data)
}

// Hash returns the lowercase hex SHA-256 of the header
func (h *BlockHeader) Hash() string {
	d := h.digest()
	return hex.EncodeToString(d[:])
}

// Hash returns the block hash
func (b *Block) Hash() string {
	return b.Header.Hash()
}

// HashBytes returns the raw header digest, the message validators sign.
func (b *Block) HashBytes() []byte {
	d := b.Header.digest()
	return d[:]
}

// Sign signs the block hash with signer and records the signer's address.
// The header is untouched, so signing never changes the block hash.
func (b *Block) Sign(signer security.Signer) error {
	if signer == nil {
		return errors.New("signer cannot be nil")
	}
	sig, err := signer.Sign(b.HashBytes())
	if err != nil {
		return fmt.Errorf("failed to sign block hash: %w", err)
	}
	b.ValidatorSignature = &sig
	b.Validator = signer.Address()
	return nil
}

// VerifySignature checks the validator signature over the block hash.
func (b *Block) VerifySignature() (bool, error) {
	if b.ValidatorSignature == nil {
		return false, errors.New("block signature is empty")
	}
	if b.Validator == "" {
		return false, errors.New("block validator (public key) is empty")
	}
	return security.VerifyAddress(b.Validator, b.HashBytes(), *b.ValidatorSignature)
}

// AddProof attaches the consensus proof
func (b *Block) AddProof(proof []byte) {
	b.Proof = append([]byte(nil), proof...)
}

// VerifyMerkleRoot reports whether the header commits to the transactions
func (b *Block) VerifyMerkleRoot() bool {
	return b.Header.MerkleRoot == CalculateMerkleRoot(b.Transactions)
}

// TransactionHashes returns the hashes of the block's transactions in order
func (b *Block) TransactionHashes() []string {
	hashes := make([]string, len(b.Transactions))
	for i, tx := range b.Transactions {
		hashes[i] = tx.Hash()
	}
	return hashes
}

// Clone returns a deep copy
func (b *Block) Clone() *Block {
	c := &Block{
		Header:             b.Header,
		Transactions:       make([]*Transaction, len(b.Transactions)),
		ValidatorSignature: b.ValidatorSignature.Clone(),
		Validator:          b.Validator,
	}
	for i, tx := range b.Transactions {
		c.Transactions[i] = tx.Clone()
	}
	if b.Proof != nil {
		c.Proof = append([]byte(nil), b.Proof...)
	}
	return c
}
