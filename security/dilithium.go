package security

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"

	"github.com/cloudflare/circl/sign/dilithium/mode3"
)

// DilithiumSigner produces QuantumResistant signatures.
type DilithiumSigner struct {
	privateKey *mode3.PrivateKey
	publicKey  *mode3.PublicKey
	packed     []byte
}

// NewDilithiumSigner generates a fresh Dilithium mode3 key pair.
func NewDilithiumSigner() (*DilithiumSigner, error) {
	publicKey, privateKey, err := mode3.GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("failed to generate dilithium key pair: %w", err)
	}
	return &DilithiumSigner{
		privateKey: privateKey,
		publicKey:  publicKey,
		packed:     publicKey.Bytes(),
	}, nil
}

// Sign signs data with the Dilithium private key.
func (s *DilithiumSigner) Sign(data []byte) (Signature, error) {
	sig := make([]byte, mode3.SignatureSize)
	mode3.SignTo(s.privateKey, data, sig)
	return Signature{Bytes: sig, Algorithm: QuantumResistant}, nil
}

// PublicKey returns the packed public key.
func (s *DilithiumSigner) PublicKey() []byte {
	return s.packed
}

// Address returns the hex-encoded packed public key.
func (s *DilithiumSigner) Address() string {
	return hex.EncodeToString(s.packed)
}

func verifyDilithium(publicKey, message, sig []byte) (bool, error) {
	if len(publicKey) != mode3.PublicKeySize {
		return false, fmt.Errorf("invalid dilithium public key length %d", len(publicKey))
	}
	if len(sig) != mode3.SignatureSize {
		return false, fmt.Errorf("invalid dilithium signature length %d", len(sig))
	}

	var pk mode3.PublicKey
	if err := pk.UnmarshalBinary(publicKey); err != nil {
		return false, fmt.Errorf("failed to decode dilithium public key: %w", err)
	}
	return mode3.Verify(&pk, message, sig), nil
}
