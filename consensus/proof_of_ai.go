package consensus

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"hypernovachain_go/blockchain"
	"hypernovachain_go/utils"
)

// PoAIConfig configures ProofOfAI
type PoAIConfig struct {
	ConfidenceThreshold  float64
	AttestationRule      string
	Roster               []string // Trusted oracle keys seeded on first start
	MaxBlockTransactions int
	OracleTimeout        time.Duration
}

// ProofOfAI accepts a block when a trusted oracle attested to it with enough
// confidence.
type ProofOfAI struct {
	oracle        Oracle
	rule          *AttestationRule
	storage       blockchain.Storage
	seedRoster    []string
	roster        map[string]struct{}
	maxBlockTxs   int
	oracleTimeout time.Duration
	mutex         sync.RWMutex
	initialized   bool
}

// NewProofOfAI creates the engine. storage may be nil, in which case the
// roster lives in memory only.
func NewProofOfAI(oracle Oracle, storage blockchain.Storage, cfg PoAIConfig) (*ProofOfAI, error) {
	if oracle == nil {
		return nil, errors.New("proof of AI requires an oracle")
	}
	rule, err := NewAttestationRule(cfg.AttestationRule, cfg.ConfidenceThreshold)
	if err != nil {
		return nil, err
	}
	if cfg.OracleTimeout <= 0 {
		cfg.OracleTimeout = DefaultOracleTimeout
	}
	return &ProofOfAI{
		oracle:        oracle,
		rule:          rule,
		storage:       storage,
		seedRoster:    append([]string(nil), cfg.Roster...),
		roster:        make(map[string]struct{}),
		maxBlockTxs:   cfg.MaxBlockTransactions,
		oracleTimeout: cfg.OracleTimeout,
	}, nil
}

// Name returns the engine name
func (p *ProofOfAI) Name() string {
	return string(POAI)
}

// Initialize loads the stored roster and merges the configured seed into it.
func (p *ProofOfAI) Initialize() error {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	if p.initialized {
		return nil
	}

	stored, err := p.loadRoster()
	if err != nil {
		return err
	}
	changed := false
	for _, key := range stored {
		p.roster[key] = struct{}{}
	}
	for _, key := range p.seedRoster {
		if _, ok := p.roster[key]; !ok {
			p.roster[key] = struct{}{}
			changed = true
		}
	}
	if len(p.roster) == 0 {
		return errors.New("proof of AI roster is empty")
	}
	if changed {
		if err := p.saveRoster(); err != nil {
			return err
		}
	}

	p.initialized = true
	utils.LogInfo("Proof of AI initialized with %d trusted oracle keys, rule %q, threshold %.2f",
		len(p.roster), p.rule.Expression(), p.rule.Threshold())
	return nil
}

func (p *ProofOfAI) loadRoster() ([]string, error) {
	if p.storage == nil {
		return nil, nil
	}
	data, err := p.storage.LoadData(poaiRosterKey)
	if err != nil {
		return nil, fmt.Errorf("failed to load oracle roster: %w", err)
	}
	if data == nil {
		return nil, nil
	}
	var keys []string
	if err := json.Unmarshal(data, &keys); err != nil {
		return nil, fmt.Errorf("failed to decode oracle roster: %w", err)
	}
	return keys, nil
}

// saveRoster persists the roster. Caller holds the write lock.
func (p *ProofOfAI) saveRoster() error {
	if p.storage == nil {
		return nil
	}
	data, err := json.Marshal(p.sortedRoster())
	if err != nil {
		return fmt.Errorf("failed to encode oracle roster: %w", err)
	}
	if err := p.storage.StoreData(poaiRosterKey, data); err != nil {
		return fmt.Errorf("failed to persist oracle roster: %w", err)
	}
	return nil
}

func (p *ProofOfAI) sortedRoster() []string {
	keys := make([]string, 0, len(p.roster))
	for key := range p.roster {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

// AddOracleKey trusts another oracle key
func (p *ProofOfAI) AddOracleKey(key string) error {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	if _, ok := p.roster[key]; ok {
		return nil
	}
	p.roster[key] = struct{}{}
	if err := p.saveRoster(); err != nil {
		delete(p.roster, key)
		return err
	}
	return nil
}

// RemoveOracleKey stops trusting an oracle key
func (p *ProofOfAI) RemoveOracleKey(key string) error {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	if _, ok := p.roster[key]; !ok {
		return nil
	}
	delete(p.roster, key)
	if err := p.saveRoster(); err != nil {
		p.roster[key] = struct{}{}
		return err
	}
	return nil
}

// GetRoster returns the trusted oracle keys in sorted order
func (p *ProofOfAI) GetRoster() []string {
	p.mutex.RLock()
	defer p.mutex.RUnlock()
	return p.sortedRoster()
}

func (p *ProofOfAI) trusts(key string) bool {
	p.mutex.RLock()
	defer p.mutex.RUnlock()
	_, ok := p.roster[key]
	return ok
}

// CreateBlock builds a candidate on the tip and attaches an oracle attestation
func (p *ProofOfAI) CreateBlock(chain blockchain.ChainReader) (*blockchain.Block, error) {
	block, err := nextCandidate(chain, p.maxBlockTxs)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(context.Background(), p.oracleTimeout)
	defer cancel()

	att, err := p.oracle.Attest(ctx, block.Header)
	if err != nil {
		return nil, fmt.Errorf("failed to obtain attestation for block %d: %w", block.Header.Height, err)
	}
	if att.BlockHash != block.Hash() {
		return nil, fmt.Errorf("attestation is for block %s, expected %s", att.BlockHash, block.Hash())
	}

	proof, err := att.Encode()
	if err != nil {
		return nil, fmt.Errorf("failed to encode attestation: %w", err)
	}
	block.AddProof(proof)

	utils.LogDebug("Proof of AI created block %d with %d txs, confidence %.4f",
		block.Header.Height, len(block.Transactions), att.Confidence)
	return block, nil
}

// ValidateBlock requires a decodable attestation bound to this block, signed
// by a trusted oracle and accepted by the attestation rule.
func (p *ProofOfAI) ValidateBlock(block *blockchain.Block, chain blockchain.ChainReader) error {
	err := p.validate(block)
	if err != nil {
		BlockValidations.WithLabelValues(p.Name(), "rejected").Inc()
		return err
	}
	BlockValidations.WithLabelValues(p.Name(), "accepted").Inc()
	return nil
}

func (p *ProofOfAI) validate(block *blockchain.Block) error {
	hash := block.Hash()
	if len(block.Proof) == 0 {
		return blockchain.NewErrorf(blockchain.ConsensusPolicyError, "block %s carries no oracle attestation", hash)
	}

	att, err := DecodeAttestation(block.Proof)
	if err != nil {
		return blockchain.NewErrorf(blockchain.ConsensusPolicyError, "block %s proof is not an attestation", hash).Wrap(err)
	}
	if att.BlockHash != hash {
		return blockchain.NewErrorf(blockchain.ConsensusPolicyError, "attestation is for block %s, not %s", att.BlockHash, hash)
	}
	if att.ProofHash != ComputeProofHash(att.BlockHash, att.Nonce) {
		return blockchain.NewErrorf(blockchain.ConsensusPolicyError, "attestation proof hash mismatch for block %s", hash)
	}
	if !p.trusts(att.OracleKey) {
		return blockchain.NewErrorf(blockchain.ConsensusPolicyError, "attestation signed by untrusted oracle %s", att.OracleKey)
	}
	ok, err := att.VerifySignature()
	if err != nil {
		return blockchain.NewErrorf(blockchain.ConsensusPolicyError, "attestation signature for block %s not verifiable", hash).Wrap(err)
	}
	if !ok {
		return blockchain.NewErrorf(blockchain.ConsensusPolicyError, "attestation signature for block %s is invalid", hash)
	}

	accepted, err := p.rule.Accept(context.Background(), att)
	if err != nil {
		return blockchain.NewError(blockchain.ConsensusPolicyError, "attestation rule failed").Wrap(err)
	}
	if !accepted {
		return blockchain.NewErrorf(blockchain.ConsensusPolicyError,
			"attestation confidence %.4f rejected by rule %q (threshold %.2f)",
			att.Confidence, p.rule.Expression(), p.rule.Threshold())
	}
	return nil
}
