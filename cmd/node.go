package cmd

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"hypernovachain_go/blockchain"
	"hypernovachain_go/config"
	"hypernovachain_go/consensus"
	"hypernovachain_go/p2p"
	"hypernovachain_go/security"
	"hypernovachain_go/utils"
)

// Node wires the ledger to its storage, engine and transport
type Node struct {
	cfg      *config.Config
	id       string
	signer   *security.LocalSigner
	storage  *blockchain.LevelDBStorage
	chain    *blockchain.Blockchain
	nodeMgr  *p2p.NodeManager
	hub      *p2p.BlockHub
	relay    *p2p.PeerRelay
	server   *p2p.Server
	producer *p2p.BlockProducer
}

/**
 * NewNode opens the node key and the block store, builds the configured
 * consensus engine and loads the ledger. Commit subscribers forward every
 * committed block to websocket clients and to registered peers.
 */
func NewNode(cfg *config.Config) (*Node, error) {
	signer, err := security.NewLocalSigner(cfg.DataDir, cfg.KeyPassphrase)
	if err != nil {
		return nil, fmt.Errorf("error loading node key: %w", err)
	}

	storage, err := blockchain.NewLevelDBStorage(cfg.DataDir)
	if err != nil {
		return nil, fmt.Errorf("error opening block store: %w", err)
	}

	engineType, err := cfg.ConsensusType()
	if err != nil {
		storage.Close()
		return nil, err
	}
	opts := cfg.ConsensusOptions()
	opts.Storage = storage
	opts.Signer = signer
	engine, err := consensus.NewConsensus(engineType, opts)
	if err != nil {
		storage.Close()
		return nil, err
	}

	chain, err := blockchain.InitializeBlockchain(storage, engine, blockchain.WithMaxPending(cfg.MaxPending))
	if err != nil {
		storage.Close()
		return nil, err
	}

	id := nodeID(signer.Address(), cfg.APIPort)
	nodeMgr := p2p.NewNodeManager(cfg.MaxPeers)
	hub := p2p.NewBlockHub()
	relay := p2p.NewPeerRelay(nodeMgr, id, p2p.DefaultRelayTimeout)

	chain.Subscribe(hub.BroadcastBlock)
	chain.Subscribe(relay.BroadcastBlock)

	n := &Node{
		cfg:     cfg,
		id:      id,
		signer:  signer,
		storage: storage,
		chain:   chain,
		nodeMgr: nodeMgr,
		hub:     hub,
		relay:   relay,
		server:  p2p.NewServer(id, cfg.APIPort, chain, nodeMgr, hub),
	}
	if cfg.MaxBodyBytes > 0 {
		n.server.MaxBodyBytes = cfg.MaxBodyBytes
	}
	if cfg.Role == config.RoleValidator {
		n.producer = p2p.NewBlockProducer(chain, signer, cfg.BlockInterval)
	}
	return n, nil
}

func nodeID(address string, port int) string {
	if len(address) > 12 {
		address = address[:12]
	}
	return fmt.Sprintf("node-%s-%d", address, port)
}

// Run serves the API, joins the seed nodes and, on validators, produces
// blocks until ctx is cancelled.
func (n *Node) Run(ctx context.Context) error {
	engine := n.chain.GetConsensus()
	utils.PrintStartupMessage(n.id, n.cfg.APIPort, n.cfg.Role, engine.Name())
	utils.LogInfo("Node address %s, ledger height %d", n.signer.Address(), n.chain.GetHeight())

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return n.server.Start(gctx)
	})

	g.Go(func() error {
		n.joinSeeds(gctx)
		return nil
	})

	if n.producer != nil {
		g.Go(func() error {
			return n.producer.Run(gctx)
		})
	}

	return g.Wait()
}

// joinSeeds registers every seed node and catches up from the first one
// that answers.
func (n *Node) joinSeeds(ctx context.Context) {
	synced := false
	for _, seed := range n.cfg.SeedNodes {
		if err := n.nodeMgr.AddNode(seed); err != nil {
			utils.LogError("Error adding seed node %s: %v", seed, err)
			continue
		}
		if synced {
			continue
		}
		if _, err := n.relay.SyncFromPeer(ctx, seed, n.chain); err != nil {
			utils.LogError("Error syncing from seed %s: %v", seed, err)
			continue
		}
		synced = true
	}
}

// Close stops commit delivery and releases the relay, the websocket hub and
// the block store
func (n *Node) Close() {
	n.chain.Close()
	n.relay.Close()
	n.hub.Close()
	if err := n.storage.Close(); err != nil {
		utils.LogError("Error closing block store: %v", err)
	}
}
