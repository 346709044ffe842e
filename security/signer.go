package security

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
)

// Signer defines an interface for signing data and accessing the public key.
type Signer interface {
	Sign(data []byte) (Signature, error)
	PublicKey() []byte // Returns the public key associated with the signer
	Address() string   // Lowercase hex of the public key
}

// Ed25519Signer signs with an in-memory Ed25519 key.
type Ed25519Signer struct {
	privateKey ed25519.PrivateKey
	publicKey  ed25519.PublicKey
	address    string
}

// NewEphemeralSigner generates a fresh Ed25519 key that is never persisted.
func NewEphemeralSigner() (*Ed25519Signer, error) {
	_, privateKey, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("failed to generate ed25519 key pair: %w", err)
	}
	return newEd25519Signer(privateKey), nil
}

// NewSignerFromSeed builds a deterministic Ed25519 signer from a 32 byte seed.
func NewSignerFromSeed(seed []byte) (*Ed25519Signer, error) {
	if len(seed) != ed25519.SeedSize {
		return nil, fmt.Errorf("invalid seed length %d, expected %d", len(seed), ed25519.SeedSize)
	}
	return newEd25519Signer(ed25519.NewKeyFromSeed(seed)), nil
}

func newEd25519Signer(privateKey ed25519.PrivateKey) *Ed25519Signer {
	publicKey := privateKey.Public().(ed25519.PublicKey)
	return &Ed25519Signer{
		privateKey: privateKey,
		publicKey:  publicKey,
		address:    hex.EncodeToString(publicKey),
	}
}

// Sign signs data with the Ed25519 private key.
func (s *Ed25519Signer) Sign(data []byte) (Signature, error) {
	if s.privateKey == nil {
		return Signature{}, errors.New("private key is not initialized")
	}
	return Signature{
		Bytes:     ed25519.Sign(s.privateKey, data),
		Algorithm: Ed25519,
	}, nil
}

// PublicKey returns the public key.
func (s *Ed25519Signer) PublicKey() []byte {
	return s.publicKey
}

// Address returns the hex-encoded public key.
func (s *Ed25519Signer) Address() string {
	return s.address
}
