package p2p

import (
	"context"
	"fmt"
	"time"

	"hypernovachain_go/blockchain"
	"hypernovachain_go/consensus"
	"hypernovachain_go/security"
	"hypernovachain_go/utils"
)

// DefaultBlockInterval is the production period of a validator node
const DefaultBlockInterval = 5 * time.Second

/**
 * BlockProducer periodically asks the active consensus engine for a block
 * over the pending pool and commits it. Engines that require a validator
 * signature (consensus.BlockSigner) get the block signed with the node key.
 * Broadcasting is left to the ledger's commit subscribers.
 */
type BlockProducer struct {
	chain    *blockchain.Blockchain
	signer   security.Signer
	interval time.Duration
}

// NewBlockProducer creates a producer. interval <= 0 uses DefaultBlockInterval.
func NewBlockProducer(chain *blockchain.Blockchain, signer security.Signer, interval time.Duration) *BlockProducer {
	if interval <= 0 {
		interval = DefaultBlockInterval
	}
	return &BlockProducer{
		chain:    chain,
		signer:   signer,
		interval: interval,
	}
}

// ProduceBlock runs one production round. It returns (nil, nil) when there is
// nothing to include.
func (bp *BlockProducer) ProduceBlock() (*blockchain.Block, error) {
	if bp.chain.GetPendingCount() == 0 {
		BlocksProduced.WithLabelValues("skipped").Inc()
		return nil, nil
	}

	engine := bp.chain.GetConsensus()
	if engine == nil {
		BlocksProduced.WithLabelValues("failed").Inc()
		return nil, blockchain.NewError(blockchain.ConsensusPolicyError, "no consensus engine configured")
	}

	block, err := engine.CreateBlock(bp.chain)
	if err != nil {
		BlocksProduced.WithLabelValues("failed").Inc()
		return nil, fmt.Errorf("%s failed to create block: %w", engine.Name(), err)
	}

	if signing, ok := engine.(consensus.BlockSigner); ok {
		if bp.signer == nil {
			BlocksProduced.WithLabelValues("failed").Inc()
			return nil, fmt.Errorf("%s requires a validator key to sign blocks", engine.Name())
		}
		if err := signing.SignBlock(block, bp.signer); err != nil {
			BlocksProduced.WithLabelValues("failed").Inc()
			return nil, err
		}
	}

	if err := bp.chain.AddBlock(block); err != nil {
		BlocksProduced.WithLabelValues("failed").Inc()
		return nil, err
	}

	BlocksProduced.WithLabelValues("committed").Inc()
	utils.LogInfo("Produced block %d (%s) with %d txs", block.Header.Height, block.Hash(), len(block.Transactions))
	return block, nil
}

// Run produces blocks every interval until ctx is cancelled
func (bp *BlockProducer) Run(ctx context.Context) error {
	ticker := time.NewTicker(bp.interval)
	defer ticker.Stop()

	utils.LogInfo("Block producer started, interval %s", bp.interval)
	for {
		select {
		case <-ctx.Done():
			utils.LogInfo("Block producer stopped")
			return nil
		case <-ticker.C:
			if _, err := bp.ProduceBlock(); err != nil {
				// Not elected, or the oracle declined.
				if blockchain.IsKind(err, blockchain.ConsensusPolicyError) {
					utils.LogDebug("Skipped block production: %v", err)
					continue
				}
				utils.LogError("Block production failed: %v", err)
			}
		}
	}
}
