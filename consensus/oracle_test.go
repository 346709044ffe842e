package consensus

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hypernovachain_go/blockchain"
	"hypernovachain_go/security"
)

// oracleServer answers /attest like a remote model service.
func oracleServer(t *testing.T, signer security.Signer, confidence float64, tamper func(*Attestation)) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/attest" || r.Method != http.MethodPost {
			http.NotFound(w, r)
			return
		}
		var req attestRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		att := &Attestation{
			RequestID:  req.RequestID,
			BlockHash:  req.Header.Hash(),
			ModelID:    req.ModelID,
			Confidence: confidence,
			Nonce:      7,
			ProofHash:  ComputeProofHash(req.Header.Hash(), 7),
			Timestamp:  time.Now().Unix(),
		}
		if tamper != nil {
			tamper(att)
		}
		if err := att.SignWith(signer); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(att)
	}))
}

func TestHTTPOracleAttest(t *testing.T) {
	signer := newSigner(t)
	srv := oracleServer(t, signer, 0.8, nil)
	defer srv.Close()

	oracle := NewHTTPOracle(srv.URL+"/", "remote-model", time.Second)
	header := blockchain.NewGenesisBlock().Header

	att, err := oracle.Attest(context.Background(), header)
	require.NoError(t, err)
	assert.Equal(t, header.Hash(), att.BlockHash)
	assert.Equal(t, "remote-model", att.ModelID)
	assert.Equal(t, signer.Address(), att.OracleKey)
	ok, err := att.VerifySignature()
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestHTTPOracleRejectsMismatchedReply(t *testing.T) {
	signer := newSigner(t)
	srv := oracleServer(t, signer, 0.8, func(a *Attestation) { a.RequestID = "someone-else" })
	defer srv.Close()

	_, err := NewHTTPOracle(srv.URL, "", time.Second).Attest(context.Background(), blockchain.NewGenesisBlock().Header)
	assert.Error(t, err)

	srv2 := oracleServer(t, signer, 0.8, func(a *Attestation) { a.BlockHash = "other" })
	defer srv2.Close()
	_, err = NewHTTPOracle(srv2.URL, "", time.Second).Attest(context.Background(), blockchain.NewGenesisBlock().Header)
	assert.Error(t, err)
}

func TestHTTPOracleServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model offline", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	_, err := NewHTTPOracle(srv.URL, "", time.Second).Attest(context.Background(), blockchain.NewGenesisBlock().Header)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "503")
}

func TestLocalOracle(t *testing.T) {
	signer := newSigner(t)
	oracle, err := NewLocalOracle(signer, "", 0.95)
	require.NoError(t, err)
	assert.Equal(t, signer.Address(), oracle.Key())

	header := blockchain.NewGenesisBlock().Header
	att, err := oracle.Attest(context.Background(), header)
	require.NoError(t, err)
	assert.Equal(t, header.Hash(), att.BlockHash)
	assert.Equal(t, DefaultModelID, att.ModelID)
	assert.Equal(t, ComputeProofHash(att.BlockHash, att.Nonce), att.ProofHash)
	assert.NotEmpty(t, att.RequestID)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = oracle.Attest(ctx, header)
	assert.Error(t, err)

	_, err = NewLocalOracle(nil, "", 0.9)
	assert.Error(t, err)
}
