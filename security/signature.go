package security

import (
	"crypto/ed25519"
	"encoding/hex"
	"errors"
	"fmt"
)

// SignatureType is the algorithm tag carried by every signature.
type SignatureType string

const (
	// Ed25519 is the mandatory algorithm.
	Ed25519 SignatureType = "ED25519"
	// QuantumResistant is backed by Dilithium mode3.
	QuantumResistant SignatureType = "QUANTUM_RESISTANT"
)

// ErrUnsupportedAlgorithm is returned when a signature claims an algorithm
// this node cannot check. It is not a verification failure.
var ErrUnsupportedAlgorithm = errors.New("signature algorithm not supported")

// Signature is an opaque signed payload plus the algorithm that produced it.
type Signature struct {
	Bytes     []byte        `json:"bytes"`
	Algorithm SignatureType `json:"algorithm"`
}

// Clone returns a deep copy of the signature.
func (s *Signature) Clone() *Signature {
	if s == nil {
		return nil
	}
	return &Signature{
		Bytes:     append([]byte(nil), s.Bytes...),
		Algorithm: s.Algorithm,
	}
}

// Verify checks sig over message for publicKey. A well-formed but wrong
// signature yields (false, nil); malformed keys and unknown algorithms yield
// an error.
func Verify(publicKey, message []byte, sig Signature) (bool, error) {
	switch sig.Algorithm {
	case Ed25519:
		if len(publicKey) != ed25519.PublicKeySize {
			return false, fmt.Errorf("invalid ed25519 public key length %d", len(publicKey))
		}
		if len(sig.Bytes) != ed25519.SignatureSize {
			return false, fmt.Errorf("invalid ed25519 signature length %d", len(sig.Bytes))
		}
		return ed25519.Verify(ed25519.PublicKey(publicKey), message, sig.Bytes), nil
	case QuantumResistant:
		return verifyDilithium(publicKey, message, sig.Bytes)
	default:
		return false, fmt.Errorf("%w: %q", ErrUnsupportedAlgorithm, sig.Algorithm)
	}
}

// VerifyAddress is Verify for a hex-encoded public key (an account address).
func VerifyAddress(address string, message []byte, sig Signature) (bool, error) {
	publicKey, err := hex.DecodeString(address)
	if err != nil {
		return false, fmt.Errorf("invalid address %q: %w", address, err)
	}
	return Verify(publicKey, message, sig)
}
