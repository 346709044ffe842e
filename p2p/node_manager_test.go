package p2p

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hypernovachain_go/blockchain"
)

func TestIsValidNodeAddress(t *testing.T) {
	cases := map[string]bool{
		"localhost:3000":   true,
		"10.0.0.1:65535":   true,
		"[::1]:8080":       true,
		"node.example:1":   true,
		"localhost":        false,
		":3000":            false,
		"localhost:":       false,
		"localhost:0":      false,
		"localhost:70000":  false,
		"localhost:abc":    false,
		"http://host:3000": false,
		"host:3000/block":  false,
	}
	for addr, want := range cases {
		assert.Equal(t, want, isValidNodeAddress(addr), addr)
	}
}

func TestNodeManagerCapacity(t *testing.T) {
	nm := NewNodeManager(2)
	require.NoError(t, nm.AddNode("a:1"))
	require.NoError(t, nm.AddNode("b:1"))

	err := nm.AddNode("c:1")
	require.Error(t, err)
	assert.True(t, blockchain.IsKind(err, blockchain.CapacityError))
	assert.Equal(t, 2, nm.Count())

	// Known peers can always be refreshed.
	require.NoError(t, nm.AddNode("a:1"))

	assert.True(t, nm.RemoveNode("a:1"))
	assert.False(t, nm.RemoveNode("a:1"))
	require.NoError(t, nm.AddNode("c:1"))
	assert.Equal(t, []string{"b:1", "c:1"}, nm.Addresses())
}

func TestNodeManagerUnbounded(t *testing.T) {
	nm := NewNodeManager(0)
	for _, addr := range []string{"a:1", "b:1", "c:1", "d:1"} {
		require.NoError(t, nm.AddNode(addr))
	}
	assert.Equal(t, 4, nm.Count())
	assert.Equal(t, 0, nm.MaxPeers())

	err := nm.AddNode("bogus")
	require.Error(t, err)
	assert.False(t, blockchain.IsKind(err, blockchain.CapacityError))
}

func TestPeerURL(t *testing.T) {
	assert.Equal(t, "http://10.0.0.1:3000/block", peerURL("10.0.0.1:3000", "/block"))
	assert.Equal(t, "https://peer.example/block", peerURL("https://peer.example/", "/block"))
}

func TestStatusForError(t *testing.T) {
	cases := []struct {
		kind blockchain.ErrorKind
		want int
	}{
		{blockchain.StructuralError, 409},
		{blockchain.SignatureError, 422},
		{blockchain.ConsensusPolicyError, 422},
		{blockchain.StorageError, 500},
		{blockchain.CapacityError, 503},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, statusForError(blockchain.NewError(c.kind, "x")), string(c.kind))
	}
	assert.Equal(t, 500, statusForError(assert.AnError))
}
