package consensus

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseConsensusType(t *testing.T) {
	ct, err := ParseConsensusType(" poai ")
	require.NoError(t, err)
	assert.Equal(t, POAI, ct)

	ct, err = ParseConsensusType("DPOS")
	require.NoError(t, err)
	assert.Equal(t, DPOS, ct)

	_, err = ParseConsensusType("PBFT")
	assert.Error(t, err)
}

func TestNewConsensus(t *testing.T) {
	signer := newSigner(t)

	opts := DefaultOptions()
	opts.Storage = newStorage(t)
	opts.Signer = signer

	poai, err := NewConsensus(POAI, opts)
	require.NoError(t, err)
	assert.Equal(t, "POAI", poai.Name())
	assert.Contains(t, poai.(*ProofOfAI).GetRoster(), signer.Address(), "local oracle key is trusted")

	opts.Stakes = map[string]uint64{signer.Address(): 2000}
	dpos, err := NewConsensus(DPOS, opts)
	require.NoError(t, err)
	assert.Equal(t, "DPOS", dpos.Name())
	assert.True(t, dpos.(*DPoS).IsValidator(signer.Address()))
	_, isSigner := dpos.(BlockSigner)
	assert.True(t, isSigner)

	_, err = NewConsensus("PBFT", opts)
	assert.Error(t, err)

	opts.AttestationRule = "confidence >="
	_, err = NewConsensus(POAI, opts)
	assert.Error(t, err)
}

func TestNewConsensusHTTPOracle(t *testing.T) {
	opts := DefaultOptions()
	opts.OracleEndpoint = "http://127.0.0.1:1"
	opts.Roster = []string{"aa"}

	engine, err := NewConsensus(POAI, opts)
	require.NoError(t, err)
	assert.IsType(t, &HTTPOracle{}, engine.(*ProofOfAI).oracle)
	assert.Equal(t, []string{"aa"}, engine.(*ProofOfAI).GetRoster())
}
