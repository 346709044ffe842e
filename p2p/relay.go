package p2p

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"

	"hypernovachain_go/blockchain"
	"hypernovachain_go/utils"
)

const (
	// DefaultRelayTimeout bounds a single block delivery attempt
	DefaultRelayTimeout = 5 * time.Second
	relayRetryCount     = 2
	relayRetryWait      = 500 * time.Millisecond
	relayRetryMaxWait   = 2 * time.Second
)

/**
 * PeerRelay forwards committed blocks to every registered peer over HTTP
 * (POST /block). Deliveries run in the background with retry and backoff;
 * a peer answering 409 already has the block or is ahead of us.
 */
type PeerRelay struct {
	client  *resty.Client
	nodeMgr *NodeManager
	nodeID  string

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewPeerRelay creates a relay over nodeMgr's peers
func NewPeerRelay(nodeMgr *NodeManager, nodeID string, timeout time.Duration) *PeerRelay {
	if timeout <= 0 {
		timeout = DefaultRelayTimeout
	}
	client := resty.New().
		SetTimeout(timeout).
		SetHeader("Content-Type", "application/json").
		SetHeader("X-Node-ID", nodeID).
		SetRetryCount(relayRetryCount).
		SetRetryWaitTime(relayRetryWait).
		SetRetryMaxWaitTime(relayRetryMaxWait).
		AddRetryCondition(func(r *resty.Response, err error) bool {
			return err != nil || r.StatusCode() >= http.StatusInternalServerError
		})

	ctx, cancel := context.WithCancel(context.Background())
	return &PeerRelay{
		client:  client,
		nodeMgr: nodeMgr,
		nodeID:  nodeID,
		ctx:     ctx,
		cancel:  cancel,
	}
}

// BroadcastBlock delivers block to every known peer without waiting.
func (pr *PeerRelay) BroadcastBlock(block *blockchain.Block) {
	if block == nil {
		return
	}
	peers := pr.nodeMgr.Addresses()
	if len(peers) == 0 {
		return
	}
	utils.LogDebug("Relaying block %d to %d peers", block.Header.Height, len(peers))

	for _, peer := range peers {
		pr.wg.Add(1)
		go func(peer string) {
			defer pr.wg.Done()
			if err := pr.SendBlock(pr.ctx, peer, block); err != nil {
				utils.LogError("Failed to deliver block %d to %s: %v", block.Header.Height, peer, err)
			}
		}(peer)
	}
}

// SendBlock delivers block to a single peer and waits for the answer.
func (pr *PeerRelay) SendBlock(ctx context.Context, peer string, block *blockchain.Block) error {
	resp, err := pr.client.R().
		SetContext(ctx).
		SetBody(block).
		Post(peerURL(peer, "/block"))
	if err != nil {
		BlocksBroadcast.WithLabelValues("http", "failed").Inc()
		return fmt.Errorf("request to %s failed: %w", peer, err)
	}

	switch resp.StatusCode() {
	case http.StatusOK, http.StatusCreated:
		BlocksBroadcast.WithLabelValues("http", "delivered").Inc()
		utils.LogDebug("Block %d accepted by %s", block.Header.Height, peer)
		return nil
	case http.StatusConflict:
		BlocksBroadcast.WithLabelValues("http", "duplicate").Inc()
		utils.LogDebug("Peer %s already has block %d", peer, block.Header.Height)
		return nil
	default:
		BlocksBroadcast.WithLabelValues("http", "rejected").Inc()
		return fmt.Errorf("block rejected by %s: %s (HTTP %d)", peer, strings.TrimSpace(resp.String()), resp.StatusCode())
	}
}

/**
 * SyncFromPeer fetches peer's chain and offers every block above the local
 * tip to chain, in height order. It stops at the first rejected block and
 * returns how many blocks were committed.
 */
func (pr *PeerRelay) SyncFromPeer(ctx context.Context, peer string, chain *blockchain.Blockchain) (int, error) {
	var blocks []*blockchain.Block
	resp, err := pr.client.R().
		SetContext(ctx).
		SetResult(&blocks).
		Get(peerURL(peer, "/chain"))
	if err != nil {
		return 0, fmt.Errorf("chain request to %s failed: %w", peer, err)
	}
	if resp.IsError() {
		return 0, fmt.Errorf("peer %s returned status %d for /chain", peer, resp.StatusCode())
	}

	local := chain.GetHeight()
	added := 0
	for _, block := range blocks {
		if block == nil || block.Header.Height <= local {
			continue
		}
		if err := chain.AddBlock(block); err != nil {
			return added, fmt.Errorf("block %d from %s rejected: %w", block.Header.Height, peer, err)
		}
		added++
	}
	if added > 0 {
		utils.LogInfo("Synced %d blocks from %s, height now %d", added, peer, chain.GetHeight())
	}
	return added, nil
}

// Close cancels in-flight deliveries and waits for them to finish
func (pr *PeerRelay) Close() {
	pr.cancel()
	pr.wg.Wait()
}

func peerURL(peer, path string) string {
	if strings.HasPrefix(peer, "http://") || strings.HasPrefix(peer, "https://") {
		return strings.TrimRight(peer, "/") + path
	}
	return "http://" + peer + path
}
