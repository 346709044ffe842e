package consensus

import (
	"context"
	"crypto/rand"
	"encoding/binary"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"

	"hypernovachain_go/blockchain"
	"hypernovachain_go/security"
	"hypernovachain_go/utils"
)

const (
	// DefaultOracleTimeout bounds a single attestation request
	DefaultOracleTimeout = 10 * time.Second
	// DefaultModelID names the model when none is configured
	DefaultModelID = "hypernova-validator-v1"
	// DefaultLocalConfidence is what LocalOracle reports
	DefaultLocalConfidence = 0.9
)

// Oracle attests to candidate blocks.
type Oracle interface {
	Attest(ctx context.Context, header blockchain.BlockHeader) (*Attestation, error)
}

// attestRequest is the body posted to <endpoint>/attest
type attestRequest struct {
	RequestID string                 `json:"request_id"`
	BlockHash string                 `json:"block_hash"`
	ModelID   string                 `json:"model_id"`
	Header    blockchain.BlockHeader `json:"header"`
}

// HTTPOracle requests attestations from a remote oracle service.
type HTTPOracle struct {
	client  *resty.Client
	modelID string
}

// NewHTTPOracle creates a client for the oracle at endpoint
func NewHTTPOracle(endpoint, modelID string, timeout time.Duration) *HTTPOracle {
	if modelID == "" {
		modelID = DefaultModelID
	}
	if timeout <= 0 {
		timeout = DefaultOracleTimeout
	}
	client := resty.New().
		SetBaseURL(strings.TrimRight(endpoint, "/")).
		SetTimeout(timeout).
		SetHeader("Content-Type", "application/json")
	return &HTTPOracle{client: client, modelID: modelID}
}

// Attest posts the header and checks the reply answers this request.
func (o *HTTPOracle) Attest(ctx context.Context, header blockchain.BlockHeader) (*Attestation, error) {
	req := attestRequest{
		RequestID: uuid.New().String(),
		BlockHash: header.Hash(),
		ModelID:   o.modelID,
		Header:    header,
	}

	var att Attestation
	resp, err := o.client.R().
		SetContext(ctx).
		SetBody(req).
		SetResult(&att).
		Post("/attest")
	if err != nil {
		AttestationRequests.WithLabelValues("http", "error").Inc()
		return nil, fmt.Errorf("oracle request failed: %w", err)
	}
	if resp.IsError() {
		AttestationRequests.WithLabelValues("http", "error").Inc()
		return nil, fmt.Errorf("oracle returned status %d: %s", resp.StatusCode(), resp.String())
	}
	if att.RequestID != req.RequestID {
		AttestationRequests.WithLabelValues("http", "error").Inc()
		return nil, fmt.Errorf("oracle answered request %q, expected %q", att.RequestID, req.RequestID)
	}
	if att.BlockHash != req.BlockHash {
		AttestationRequests.WithLabelValues("http", "error").Inc()
		return nil, fmt.Errorf("oracle attested block %s, expected %s", att.BlockHash, req.BlockHash)
	}

	AttestationRequests.WithLabelValues("http", "ok").Inc()
	utils.LogDebug("Oracle attested block %s with confidence %.4f", att.BlockHash, att.Confidence)
	return &att, nil
}

// LocalOracle attests in process with a fixed confidence. Used when no oracle
// endpoint is configured and in tests.
type LocalOracle struct {
	signer     security.Signer
	modelID    string
	confidence float64
}

// NewLocalOracle creates an in-process oracle signing with signer
func NewLocalOracle(signer security.Signer, modelID string, confidence float64) (*LocalOracle, error) {
	if signer == nil {
		return nil, errors.New("local oracle requires a signer")
	}
	if modelID == "" {
		modelID = DefaultModelID
	}
	return &LocalOracle{signer: signer, modelID: modelID, confidence: confidence}, nil
}

// Key returns the address attestations are signed with
func (o *LocalOracle) Key() string {
	return o.signer.Address()
}

// Attest produces a signed attestation for header
func (o *LocalOracle) Attest(ctx context.Context, header blockchain.BlockHeader) (*Attestation, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var buf [8]byte
	if _, err := rand.Read(buf[:]); err != nil {
		return nil, fmt.Errorf("failed to draw nonce: %w", err)
	}
	nonce := binary.BigEndian.Uint64(buf[:])
	blockHash := header.Hash()

	att := &Attestation{
		RequestID:  uuid.New().String(),
		BlockHash:  blockHash,
		ModelID:    o.modelID,
		Confidence: o.confidence,
		Nonce:      nonce,
		ProofHash:  ComputeProofHash(blockHash, nonce),
		Timestamp:  time.Now().Unix(),
	}
	if err := att.SignWith(o.signer); err != nil {
		AttestationRequests.WithLabelValues("local", "error").Inc()
		return nil, err
	}

	AttestationRequests.WithLabelValues("local", "ok").Inc()
	return att, nil
}
