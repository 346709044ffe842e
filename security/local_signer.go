package security

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/ed25519"
	"crypto/rand"
	"crypto/sha256"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"golang.org/x/crypto/pbkdf2"

	"hypernovachain_go/utils"
)

const (
	keyDirName  = "keys"
	keyFileName = "node_key.json"

	keyFileVersion = 1
	kdfName        = "pbkdf2-sha256"
	kdfIterations  = 4096
	kdfSaltSize    = 16
	kdfKeyBytes    = 32
)

// keyFile is the on-disk envelope of the node key. Only the Ed25519 seed is
// encrypted; the address lets a load detect a file swapped under the node.
type keyFile struct {
	Version    int    `json:"version"`
	Address    string `json:"address"`
	KDF        string `json:"kdf"`
	Iterations int    `json:"iterations"`
	Salt       []byte `json:"salt"`
	Nonce      []byte `json:"nonce"`
	Ciphertext []byte `json:"ciphertext"`
}

// LocalSigner is an Ed25519 signer whose key lives encrypted on disk.
type LocalSigner struct {
	*Ed25519Signer
	keyFilePath string
}

// NewLocalSigner loads the node key from <dataDir>/keys/node_key.json,
// creating it on first start.
func NewLocalSigner(dataDir string, passphrase string) (*LocalSigner, error) {
	if dataDir == "" {
		return nil, errors.New("dataDir cannot be empty")
	}
	if passphrase == "" {
		return nil, errors.New("passphrase cannot be empty")
	}

	path := filepath.Join(dataDir, keyDirName, keyFileName)
	signer, err := openKeyFile(path, passphrase)
	if errors.Is(err, os.ErrNotExist) {
		signer, err = createKeyFile(path, passphrase)
		if err == nil {
			utils.LogInfo("Generated new node key %s at %s", signer.Address(), path)
		}
	} else if err == nil {
		utils.LogInfo("Loaded node key %s from %s", signer.Address(), path)
	}
	if err != nil {
		return nil, err
	}

	return &LocalSigner{Ed25519Signer: signer, keyFilePath: path}, nil
}

// KeyFilePath returns where the encrypted key is stored.
func (ls *LocalSigner) KeyFilePath() string {
	return ls.keyFilePath
}

func sealer(passphrase string, salt []byte, iterations int) (cipher.AEAD, error) {
	key := pbkdf2.Key([]byte(passphrase), salt, iterations, kdfKeyBytes, sha256.New)
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create AES cipher: %w", err)
	}
	return cipher.NewGCM(block)
}

func createKeyFile(path, passphrase string) (*Ed25519Signer, error) {
	seed := make([]byte, ed25519.SeedSize)
	salt := make([]byte, kdfSaltSize)
	if _, err := rand.Read(seed); err != nil {
		return nil, fmt.Errorf("failed to generate key seed: %w", err)
	}
	if _, err := rand.Read(salt); err != nil {
		return nil, fmt.Errorf("failed to generate salt: %w", err)
	}
	signer, err := NewSignerFromSeed(seed)
	if err != nil {
		return nil, err
	}

	aead, err := sealer(passphrase, salt, kdfIterations)
	if err != nil {
		return nil, err
	}
	nonce := make([]byte, aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("failed to generate nonce: %w", err)
	}

	kf := keyFile{
		Version:    keyFileVersion,
		Address:    signer.Address(),
		KDF:        kdfName,
		Iterations: kdfIterations,
		Salt:       salt,
		Nonce:      nonce,
		// The address is bound as additional data.
		Ciphertext: aead.Seal(nil, nonce, seed, []byte(signer.Address())),
	}
	data, err := json.MarshalIndent(kf, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode key file: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("failed to create key directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return nil, fmt.Errorf("failed to write key file %s: %w", path, err)
	}
	return signer, nil
}

func openKeyFile(path, passphrase string) (*Ed25519Signer, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var kf keyFile
	if err := json.Unmarshal(data, &kf); err != nil {
		return nil, fmt.Errorf("key file %s is corrupt: %w", path, err)
	}
	if kf.Version != keyFileVersion || kf.KDF != kdfName {
		return nil, fmt.Errorf("unsupported key file version %d (%s)", kf.Version, kf.KDF)
	}

	aead, err := sealer(passphrase, kf.Salt, kf.Iterations)
	if err != nil {
		return nil, err
	}
	if len(kf.Nonce) != aead.NonceSize() {
		return nil, fmt.Errorf("key file %s has a malformed nonce", path)
	}
	seed, err := aead.Open(nil, kf.Nonce, kf.Ciphertext, []byte(kf.Address))
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt node key (check passphrase): %w", err)
	}

	signer, err := NewSignerFromSeed(seed)
	if err != nil {
		return nil, err
	}
	if signer.Address() != kf.Address {
		return nil, fmt.Errorf("key file %s does not match its recorded address", path)
	}
	return signer, nil
}
