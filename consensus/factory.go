package consensus

import (
	"fmt"
	"strings"
	"time"

	"hypernovachain_go/blockchain"
	"hypernovachain_go/security"
)

// ConsensusType represents the type of consensus algorithm
type ConsensusType string

const (
	// POAI is the oracle-attested Proof of AI policy
	POAI ConsensusType = "POAI"
	// DPOS is the stake-weighted Delegated Proof of Stake policy
	DPOS ConsensusType = "DPOS"
)

// Storage keys for engine state
const (
	poaiRosterKey = "consensus/poai_roster"
	dposStakesKey = "consensus/dpos_stakes"
)

const (
	// DefaultValidatorCount caps the elected DPoS roster
	DefaultValidatorCount = 21
	// DefaultMinStake is the minimum stake to be elected
	DefaultMinStake uint64 = 1000
	// DefaultConfidenceThreshold is the minimum accepted oracle confidence
	DefaultConfidenceThreshold = 0.75
	// DefaultMaxBlockTransactions bounds CreateBlock
	DefaultMaxBlockTransactions = 100
)

// ParseConsensusType accepts POAI/DPOS in any case
func ParseConsensusType(s string) (ConsensusType, error) {
	switch ConsensusType(strings.ToUpper(strings.TrimSpace(s))) {
	case POAI:
		return POAI, nil
	case DPOS:
		return DPOS, nil
	default:
		return "", fmt.Errorf("unsupported consensus type: %s", s)
	}
}

// BlockSigner is implemented by engines whose blocks must carry a validator
// signature.
type BlockSigner interface {
	SignBlock(block *blockchain.Block, signer security.Signer) error
}

// Options configure NewConsensus. Zero values fall back to the defaults above.
type Options struct {
	Storage blockchain.Storage
	// Signer is the node key. The local oracle signs with it when no
	// endpoint is set.
	Signer security.Signer

	// Proof of AI
	Oracle              Oracle
	OracleEndpoint      string
	OracleTimeout       time.Duration
	ModelID             string
	ConfidenceThreshold float64
	AttestationRule     string
	Roster              []string

	// DPoS
	ValidatorCount int
	MinStake       uint64
	Stakes         map[string]uint64

	MaxBlockTransactions int
}

// DefaultOptions returns Options populated with defaults
func DefaultOptions() Options {
	return Options{
		ConfidenceThreshold:  DefaultConfidenceThreshold,
		ValidatorCount:       DefaultValidatorCount,
		MinStake:             DefaultMinStake,
		MaxBlockTransactions: DefaultMaxBlockTransactions,
		ModelID:              DefaultModelID,
		OracleTimeout:        DefaultOracleTimeout,
	}
}

// NewConsensus builds and initializes the engine of the given type
func NewConsensus(consensusType ConsensusType, opts Options) (blockchain.Consensus, error) {
	var engine blockchain.Consensus

	switch consensusType {
	case POAI:
		oracle := opts.Oracle
		roster := append([]string(nil), opts.Roster...)
		if oracle == nil {
			if opts.OracleEndpoint != "" {
				oracle = NewHTTPOracle(opts.OracleEndpoint, opts.ModelID, opts.OracleTimeout)
			} else {
				signer := opts.Signer
				if signer == nil {
					ephemeral, err := security.NewEphemeralSigner()
					if err != nil {
						return nil, fmt.Errorf("error creating local oracle key: %w", err)
					}
					signer = ephemeral
				}
				local, err := NewLocalOracle(signer, opts.ModelID, DefaultLocalConfidence)
				if err != nil {
					return nil, err
				}
				oracle = local
				roster = append(roster, local.Key())
			}
		}
		poai, err := NewProofOfAI(oracle, opts.Storage, PoAIConfig{
			ConfidenceThreshold:  opts.ConfidenceThreshold,
			AttestationRule:      opts.AttestationRule,
			Roster:               roster,
			MaxBlockTransactions: opts.MaxBlockTransactions,
			OracleTimeout:        opts.OracleTimeout,
		})
		if err != nil {
			return nil, fmt.Errorf("error creating POAI: %w", err)
		}
		engine = poai
	case DPOS:
		engine = NewDPoS(opts.Storage, DPoSConfig{
			ValidatorCount:       opts.ValidatorCount,
			MinStake:             opts.MinStake,
			Stakes:               opts.Stakes,
			MaxBlockTransactions: opts.MaxBlockTransactions,
		})
	default:
		return nil, fmt.Errorf("unsupported consensus type: %s", consensusType)
	}

	if err := engine.Initialize(); err != nil {
		return nil, fmt.Errorf("error initializing %s: %w", consensusType, err)
	}
	return engine, nil
}

// nextCandidate assembles an unsigned block on the tip with pending transactions.
func nextCandidate(chain blockchain.ChainReader, maxTxs int) (*blockchain.Block, error) {
	tip := chain.GetLatestBlock()
	if tip == nil {
		return nil, fmt.Errorf("cannot create a block on an uninitialized ledger")
	}
	txs := chain.GetPendingTransactions()
	if maxTxs > 0 && len(txs) > maxTxs {
		txs = txs[:maxTxs]
	}
	return blockchain.NewBlock(tip.Hash(), tip.Header.Height+1, txs, blockchain.MainShard), nil
}
