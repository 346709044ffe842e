package consensus

import (
	"os"
	"testing"

	"github.com/stretchr/testify/require"

	"hypernovachain_go/blockchain"
	"hypernovachain_go/security"
	"hypernovachain_go/utils"
)

func TestMain(m *testing.M) {
	utils.InitLogger(false, true)
	os.Exit(m.Run())
}

func newSigner(t *testing.T) *security.Ed25519Signer {
	t.Helper()
	s, err := security.NewEphemeralSigner()
	require.NoError(t, err)
	return s
}

func newStorage(t *testing.T) *blockchain.LevelDBStorage {
	t.Helper()
	s, err := blockchain.NewLevelDBStorage(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func newLedger(t *testing.T, storage blockchain.Storage, engine blockchain.Consensus) *blockchain.Blockchain {
	t.Helper()
	bc, err := blockchain.InitializeBlockchain(storage, engine)
	require.NoError(t, err)
	return bc
}

func signedTx(t *testing.T, signer security.Signer, to string, amount, nonce uint64) *blockchain.Transaction {
	t.Helper()
	tx := blockchain.NewTransfer(signer.Address(), to, amount, 1, nonce)
	require.NoError(t, tx.SignWith(signer))
	return tx
}

// newLocalPoAI builds a Proof of AI engine around a local oracle with the
// given confidence.
func newLocalPoAI(t *testing.T, storage blockchain.Storage, confidence float64) (*ProofOfAI, *LocalOracle) {
	t.Helper()
	oracle, err := NewLocalOracle(newSigner(t), "test-model", confidence)
	require.NoError(t, err)
	engine, err := NewProofOfAI(oracle, storage, PoAIConfig{
		ConfidenceThreshold: DefaultConfidenceThreshold,
		Roster:              []string{oracle.Key()},
	})
	require.NoError(t, err)
	require.NoError(t, engine.Initialize())
	return engine, oracle
}
