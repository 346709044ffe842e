package consensus

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"hypernovachain_go/security"
)

// Attestation is an oracle's signed statement about one candidate block. It
// travels as the block proof.
type Attestation struct {
	RequestID  string              `json:"request_id"`
	BlockHash  string              `json:"block_hash"`
	ModelID    string              `json:"model_id"`
	Confidence float64             `json:"confidence"`
	Nonce      uint64              `json:"nonce"`
	ProofHash  string              `json:"proof_hash"`
	Timestamp  int64               `json:"timestamp"`
	OracleKey  string              `json:"oracle_key"` // Hex public key of the oracle
	Signature  *security.Signature `json:"signature,omitempty"`
}

// ComputeProofHash binds a nonce to a block hash
func ComputeProofHash(blockHash string, nonce uint64) string {
	sum := sha256.Sum256([]byte(blockHash + ":" + strconv.FormatUint(nonce, 10)))
	return hex.EncodeToString(sum[:])
}

// Digest is the message the oracle signs: the attestation without its signature.
func (a *Attestation) Digest() []byte {
	unsigned := *a
	unsigned.Signature = nil
	data, _ := json.Marshal(unsigned)
	sum := sha256.Sum256(data)
	return sum[:]
}

// SignWith signs the attestation and records the signer as the oracle key.
func (a *Attestation) SignWith(signer security.Signer) error {
	if signer == nil {
		return errors.New("signer cannot be nil")
	}
	a.OracleKey = signer.Address()
	sig, err := signer.Sign(a.Digest())
	if err != nil {
		return fmt.Errorf("failed to sign attestation: %w", err)
	}
	a.Signature = &sig
	return nil
}

// VerifySignature checks the oracle signature over Digest.
func (a *Attestation) VerifySignature() (bool, error) {
	if a.Signature == nil {
		return false, errors.New("attestation is not signed")
	}
	return security.VerifyAddress(a.OracleKey, a.Digest(), *a.Signature)
}

// Encode serializes the attestation for Block.Proof
func (a *Attestation) Encode() ([]byte, error) {
	return json.Marshal(a)
}

// DecodeAttestation parses a block proof
func DecodeAttestation(data []byte) (*Attestation, error) {
	var a Attestation
	if err := json.Unmarshal(data, &a); err != nil {
		return nil, fmt.Errorf("failed to decode attestation: %w", err)
	}
	return &a, nil
}
