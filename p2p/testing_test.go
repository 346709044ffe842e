package p2p_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/stretchr/testify/require"

	"hypernovachain_go/blockchain"
	"hypernovachain_go/consensus"
	"hypernovachain_go/p2p"
	"hypernovachain_go/security"
	"hypernovachain_go/utils"
)

func TestMain(m *testing.M) {
	utils.InitLogger(false, true)
	os.Exit(m.Run())
}

// testNode is a DPoS ledger on a temporary LevelDB store whose node key is
// the only elected validator.
type testNode struct {
	chain   *blockchain.Blockchain
	engine  *consensus.DPoS
	signer  *security.Ed25519Signer
	nodeMgr *p2p.NodeManager
	hub     *p2p.BlockHub
	server  *p2p.Server
}

func newTestNode(t *testing.T, validator *security.Ed25519Signer, opts ...blockchain.Option) *testNode {
	t.Helper()
	storage, err := blockchain.NewLevelDBStorage(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { _ = storage.Close() })

	engine := consensus.NewDPoS(storage, consensus.DPoSConfig{
		MinStake: 1000,
		Stakes:   map[string]uint64{validator.Address(): 5000},
	})
	require.NoError(t, engine.Initialize())

	chain, err := blockchain.InitializeBlockchain(storage, engine, opts...)
	require.NoError(t, err)
	t.Cleanup(chain.Close)

	nodeMgr := p2p.NewNodeManager(2)
	hub := p2p.NewBlockHub()
	t.Cleanup(hub.Close)

	return &testNode{
		chain:   chain,
		engine:  engine,
		signer:  validator,
		nodeMgr: nodeMgr,
		hub:     hub,
		server:  p2p.NewServer("node-1", 0, chain, nodeMgr, hub),
	}
}

func newSigner(t *testing.T) *security.Ed25519Signer {
	t.Helper()
	s, err := security.NewEphemeralSigner()
	require.NoError(t, err)
	return s
}

func signedTx(t *testing.T, signer security.Signer, to string, amount, nonce uint64) *blockchain.Transaction {
	t.Helper()
	tx := blockchain.NewTransfer(signer.Address(), to, amount, 1, nonce)
	require.NoError(t, tx.SignWith(signer))
	return tx
}

// signedBlock builds the next block over the node's pending pool, signed by
// the node key.
func (n *testNode) signedBlock(t *testing.T) *blockchain.Block {
	t.Helper()
	block, err := n.engine.CreateBlock(n.chain)
	require.NoError(t, err)
	require.NoError(t, n.engine.SignBlock(block, n.signer))
	return block
}

func (n *testNode) do(t *testing.T, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if raw, ok := body.([]byte); ok {
			buf.Write(raw)
		} else {
			require.NoError(t, json.NewEncoder(&buf).Encode(body))
		}
	}
	req, err := http.NewRequest(method, path, &buf)
	require.NoError(t, err)
	rr := httptest.NewRecorder()
	n.server.Router.ServeHTTP(rr, req)
	return rr
}
