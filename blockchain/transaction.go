package blockchain

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"hypernovachain_go/security"
	"hypernovachain_go/utils"
)

// TransactionType is the intent a transaction carries
type TransactionType string

const (
	TransferTx              TransactionType = "TRANSFER"
	ContractDeployTx        TransactionType = "CONTRACT_DEPLOY"
	ContractCallTx          TransactionType = "CONTRACT_CALL"
	ValidatorRegistrationTx TransactionType = "VALIDATOR_REGISTRATION"
	AIModelSubmissionTx     TransactionType = "AI_MODEL_SUBMISSION"
	GovernanceProposalTx    TransactionType = "GOVERNANCE_PROPOSAL"
	GovernanceVoteTx        TransactionType = "GOVERNANCE_VOTE"
)

// Valid reports whether t is a known transaction type
func (t TransactionType) Valid() bool {
	switch t {
	case TransferTx, ContractDeployTx, ContractCallTx, ValidatorRegistrationTx,
		AIModelSubmissionTx, GovernanceProposalTx, GovernanceVoteTx:
		return true
	}
	return false
}

// Transaction is a signed intent. From is the sender's address, the hex
// encoded public key its signature is checked against.
type Transaction struct {
	Type             TransactionType     `json:"txType"`
	From             string              `json:"from"`
	To               *string             `json:"to,omitempty"`
	Amount           *uint64             `json:"amount,omitempty"`
	Data             []byte              `json:"data,omitempty"`
	Fee              uint64              `json:"fee"`
	Nonce            uint64              `json:"nonce"`
	Timestamp        int64               `json:"timestamp"`
	Signature        *security.Signature `json:"signature,omitempty"`
	QuantumSignature []byte              `json:"quantumSignature,omitempty"`
}

// transactionContent is the hashed view of a transaction. Field order fixes
// the canonical encoding.
type transactionContent struct {
	Type      TransactionType `json:"txType"`
	From      string          `json:"from"`
	To        *string         `json:"to"`
	Amount    *uint64         `json:"amount"`
	Data      []byte          `json:"data"`
	Fee       uint64          `json:"fee"`
	Nonce     uint64          `json:"nonce"`
	Timestamp int64           `json:"timestamp"`
}

// TxOption sets an optional transaction field
type TxOption func(*Transaction)

// WithRecipient sets the recipient address
func WithRecipient(to string) TxOption {
	return func(tx *Transaction) {
		tx.To = &to
	}
}

// WithAmount sets the transferred amount
func WithAmount(amount uint64) TxOption {
	return func(tx *Transaction) {
		tx.Amount = &amount
	}
}

// WithData sets the opaque payload
func WithData(data []byte) TxOption {
	return func(tx *Transaction) {
		tx.Data = append([]byte(nil), data...)
	}
}

/**
 * NewTransaction creates an unsigned transaction stamped with the current time.
 *
 * Parameters:
 *   - txType: The intent of the transaction
 *   - from: Sender address (hex public key)
 *   - fee, nonce: Sender supplied fee and sequence number
 *   - opts: Optional recipient, amount and payload
 */
func NewTransaction(txType TransactionType, from string, fee, nonce uint64, opts ...TxOption) *Transaction {
	tx := &Transaction{
		Type:      txType,
		From:      from,
		Fee:       fee,
		Nonce:     nonce,
		Timestamp: time.Now().Unix(),
	}
	for _, opt := range opts {
		opt(tx)
	}
	return tx
}

// NewTransfer is NewTransaction for a plain value transfer
func NewTransfer(from, to string, amount, fee, nonce uint64) *Transaction {
	return NewTransaction(TransferTx, from, fee, nonce, WithRecipient(to), WithAmount(amount))
}

func (tx *Transaction) digest() [32]byte {
	// An empty payload does not survive the wire encoding, so it hashes as none.
	var payload []byte
	if len(tx.Data) > 0 {
		payload = tx.Data
	}
	content := transactionContent{
		Type:      tx.Type,
		From:      tx.From,
		To:        tx.To,
		Amount:    tx.Amount,
		Data:      payload,
		Fee:       tx.Fee,
		Nonce:     tx.Nonce,
		Timestamp: tx.Timestamp,
	}
	// Marshalling a struct of plain values cannot fail.
	data, _ := json.Marshal(content)
	return sha256.Sum256(data)
}

// Hash returns the canonical hash. Signatures are excluded.
func (tx *Transaction) Hash() string {
	d := tx.digest()
	return hex.EncodeToString(d[:])
}

// Sign attaches the primary signature
func (tx *Transaction) Sign(sig security.Signature) {
	tx.Signature = &sig
}

// SignWith signs the canonical hash with signer and attaches the result.
func (tx *Transaction) SignWith(signer security.Signer) error {
	if signer == nil {
		return errors.New("signer cannot be nil")
	}
	d := tx.digest()
	sig, err := signer.Sign(d[:])
	if err != nil {
		return fmt.Errorf("failed to sign transaction: %w", err)
	}
	tx.Sign(sig)
	return nil
}

// AddQuantumSignature attaches the secondary signature
func (tx *Transaction) AddQuantumSignature(sig []byte) {
	tx.QuantumSignature = append([]byte(nil), sig...)
}

// VerifySignature reports whether a primary signature is present and valid
// over the canonical hash for the sender's key and the claimed algorithm.
func (tx *Transaction) VerifySignature() bool {
	if tx.Signature == nil {
		return false
	}
	d := tx.digest()
	ok, err := security.VerifyAddress(tx.From, d[:], *tx.Signature)
	if err != nil {
		utils.LogDebug("Transaction %s signature not verifiable: %v", tx.Hash(), err)
		return false
	}
	return ok
}

// VerifyQuantumSignature checks the secondary signature against a Dilithium
// public key. The sender address only identifies the Ed25519 key, so the
// quantum key is supplied by the caller.
func (tx *Transaction) VerifyQuantumSignature(publicKey []byte) (bool, error) {
	if len(tx.QuantumSignature) == 0 {
		return false, nil
	}
	d := tx.digest()
	return security.Verify(publicKey, d[:], security.Signature{
		Bytes:     tx.QuantumSignature,
		Algorithm: security.QuantumResistant,
	})
}

// Clone returns a deep copy
func (tx *Transaction) Clone() *Transaction {
	c := *tx
	if tx.To != nil {
		to := *tx.To
		c.To = &to
	}
	if tx.Amount != nil {
		amount := *tx.Amount
		c.Amount = &amount
	}
	if tx.Data != nil {
		c.Data = append([]byte{}, tx.Data...)
	}
	c.Signature = tx.Signature.Clone()
	if tx.QuantumSignature != nil {
		c.QuantumSignature = append([]byte{}, tx.QuantumSignature...)
	}
	return &c
}

// GetID returns the transaction hash
func (tx *Transaction) GetID() string {
	return tx.Hash()
}
