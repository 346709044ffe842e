package cmd

import (
	"context"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hypernovachain_go/blockchain"
	"hypernovachain_go/config"
	"hypernovachain_go/consensus"
	"hypernovachain_go/security"
	"hypernovachain_go/utils"
)

func TestMain(m *testing.M) {
	utils.InitLogger(false, true)
	os.Exit(m.Run())
}

// validatorConfig returns a validator config whose own node key holds the
// only stake.
func validatorConfig(t *testing.T, dataDir string) *config.Config {
	t.Helper()
	key, err := security.NewLocalSigner(dataDir, "secret")
	require.NoError(t, err)

	return &config.Config{
		DataDir:       dataDir,
		Role:          config.RoleValidator,
		APIPort:       3002,
		KeyPassphrase: "secret",
		MaxPeers:      4,
		BlockInterval: time.Second,
		Consensus: config.ConsensusConfig{
			ConfidenceThreshold: consensus.DefaultConfidenceThreshold,
			MinStake:            1000,
			Stakes:              map[string]uint64{key.Address(): 5000},
		},
	}
}

func signedTx(t *testing.T, nonce uint64) *blockchain.Transaction {
	t.Helper()
	signer, err := security.NewEphemeralSigner()
	require.NoError(t, err)
	tx := blockchain.NewTransfer(signer.Address(), "bob", 1, 1, nonce)
	require.NoError(t, tx.SignWith(signer))
	return tx
}

func TestNewNodeValidator(t *testing.T) {
	dataDir := t.TempDir()
	cfg := validatorConfig(t, dataDir)

	node, err := NewNode(cfg)
	require.NoError(t, err)
	assert.Equal(t, string(consensus.DPOS), node.chain.GetConsensus().Name())
	require.NotNil(t, node.producer)
	assert.True(t, strings.HasPrefix(node.id, "node-"))

	require.NoError(t, node.chain.AddTransaction(signedTx(t, 0)))
	block, err := node.producer.ProduceBlock()
	require.NoError(t, err)
	require.NotNil(t, block)
	hash := block.Hash()
	node.Close()

	// The same data dir reopens the same key and chain.
	reopened, err := NewNode(cfg)
	require.NoError(t, err)
	defer reopened.Close()
	assert.Equal(t, uint64(1), reopened.chain.GetHeight())
	assert.Equal(t, hash, reopened.chain.GetLatestBlock().Hash())
}

func TestNewNodeFullUsesDefaultEngine(t *testing.T) {
	cfg := &config.Config{
		DataDir:       t.TempDir(),
		Role:          config.RoleFull,
		APIPort:       3002,
		KeyPassphrase: "secret",
		BlockInterval: time.Second,
		Consensus:     config.ConsensusConfig{ConfidenceThreshold: 0.5},
	}
	node, err := NewNode(cfg)
	require.NoError(t, err)
	defer node.Close()

	assert.Equal(t, string(config.DefaultConsensusType), node.chain.GetConsensus().Name())
	assert.Nil(t, node.producer)
	assert.Equal(t, uint64(0), node.chain.GetHeight())
}

func TestNewNodeExplicitProofOfAI(t *testing.T) {
	cfg := &config.Config{
		DataDir:       t.TempDir(),
		Role:          config.RoleValidator,
		APIPort:       3002,
		KeyPassphrase: "secret",
		BlockInterval: time.Second,
		Consensus: config.ConsensusConfig{
			Type:                string(consensus.POAI),
			ConfidenceThreshold: 0.5,
		},
	}
	node, err := NewNode(cfg)
	require.NoError(t, err)
	defer node.Close()

	assert.Equal(t, string(consensus.POAI), node.chain.GetConsensus().Name())
	require.NotNil(t, node.producer)

	require.NoError(t, node.chain.AddTransaction(signedTx(t, 0)))
	block, err := node.producer.ProduceBlock()
	require.NoError(t, err)
	require.NotNil(t, block)
	assert.Equal(t, uint64(1), node.chain.GetHeight())
}

func TestNewNodeWrongPassphrase(t *testing.T) {
	cfg := validatorConfig(t, t.TempDir())
	cfg.KeyPassphrase = "wrong"
	_, err := NewNode(cfg)
	assert.Error(t, err)
}

func TestJoinSeedsSyncsChain(t *testing.T) {
	seedDir := t.TempDir()
	seedCfg := validatorConfig(t, seedDir)
	seed, err := NewNode(seedCfg)
	require.NoError(t, err)
	defer seed.Close()

	for nonce := uint64(0); nonce < 2; nonce++ {
		require.NoError(t, seed.chain.AddTransaction(signedTx(t, nonce)))
		_, err := seed.producer.ProduceBlock()
		require.NoError(t, err)
	}

	srv := httptest.NewServer(seed.server.Router)
	defer srv.Close()

	// A full node with the default engine and the same stake table follows
	// the seed.
	cfg := &config.Config{
		DataDir:       t.TempDir(),
		Role:          config.RoleFull,
		APIPort:       3003,
		KeyPassphrase: "secret",
		MaxPeers:      4,
		BlockInterval: time.Second,
		SeedNodes:     []string{"bad address", strings.TrimPrefix(srv.URL, "http://")},
		Consensus: config.ConsensusConfig{
			ConfidenceThreshold: consensus.DefaultConfidenceThreshold,
			MinStake:            1000,
			Stakes:              seedCfg.Consensus.Stakes,
		},
	}
	follower, err := NewNode(cfg)
	require.NoError(t, err)
	defer follower.Close()

	follower.joinSeeds(context.Background())
	assert.Equal(t, 1, follower.nodeMgr.Count())
	assert.Equal(t, uint64(2), follower.chain.GetHeight())
	assert.Equal(t, seed.chain.GetLatestBlock().Hash(), follower.chain.GetLatestBlock().Hash())
}
