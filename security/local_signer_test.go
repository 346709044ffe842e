package security

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hypernovachain_go/utils"
)

func TestMain(m *testing.M) {
	utils.InitLogger(false, true)
	os.Exit(m.Run())
}

func TestLocalSignerPersistsKey(t *testing.T) {
	dir := t.TempDir()

	first, err := NewLocalSigner(dir, "secret")
	require.NoError(t, err)
	assert.FileExists(t, filepath.Join(dir, "keys", "node_key.json"))
	assert.Equal(t, filepath.Join(dir, "keys", "node_key.json"), first.KeyFilePath())

	second, err := NewLocalSigner(dir, "secret")
	require.NoError(t, err)
	assert.Equal(t, first.Address(), second.Address())

	sig, err := second.Sign([]byte("payload"))
	require.NoError(t, err)
	ok, err := Verify(first.PublicKey(), []byte("payload"), sig)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestLocalSignerWrongPassphrase(t *testing.T) {
	dir := t.TempDir()
	_, err := NewLocalSigner(dir, "secret")
	require.NoError(t, err)

	_, err = NewLocalSigner(dir, "wrong")
	assert.Error(t, err)
}

func TestLocalSignerRejectsTamperedFile(t *testing.T) {
	dir := t.TempDir()
	signer, err := NewLocalSigner(dir, "secret")
	require.NoError(t, err)

	data, err := os.ReadFile(signer.KeyFilePath())
	require.NoError(t, err)
	var kf keyFile
	require.NoError(t, json.Unmarshal(data, &kf))
	assert.Equal(t, signer.Address(), kf.Address)
	assert.Equal(t, kdfIterations, kf.Iterations)

	// Rebinding the file to another address breaks decryption.
	other, err := NewEphemeralSigner()
	require.NoError(t, err)
	kf.Address = other.Address()
	data, err = json.Marshal(kf)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(signer.KeyFilePath(), data, 0o600))
	_, err = NewLocalSigner(dir, "secret")
	assert.Error(t, err)

	require.NoError(t, os.WriteFile(signer.KeyFilePath(), []byte("{not json"), 0o600))
	_, err = NewLocalSigner(dir, "secret")
	assert.Error(t, err)
}

func TestLocalSignerRequiresArguments(t *testing.T) {
	_, err := NewLocalSigner("", "secret")
	assert.Error(t, err)
	_, err = NewLocalSigner(t.TempDir(), "")
	assert.Error(t, err)
}
