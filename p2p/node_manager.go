package p2p

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"hypernovachain_go/blockchain"
	"hypernovachain_go/utils"
)

// NodeInfo is a known peer
type NodeInfo struct {
	Address  string `json:"address"`
	LastSeen int64  `json:"lastSeen"`
}

// NodeManager manages the bounded set of known peer nodes.
type NodeManager struct {
	nodes    map[string]NodeInfo // Key is node address ("host:port")
	maxPeers int
	mu       sync.RWMutex
}

// NewNodeManager creates a peer set holding at most maxPeers nodes. maxPeers
// <= 0 means unbounded.
func NewNodeManager(maxPeers int) *NodeManager {
	return &NodeManager{
		nodes:    make(map[string]NodeInfo),
		maxPeers: maxPeers,
	}
}

/**
 * AddNode registers a peer or refreshes its LastSeen timestamp.
 * A new peer beyond the configured limit is refused with a CAPACITY_ERROR;
 * refreshing a known peer always succeeds.
 */
func (nm *NodeManager) AddNode(address string) error {
	if !isValidNodeAddress(address) {
		PeerRegistrations.WithLabelValues("rejected_invalid").Inc()
		return fmt.Errorf("invalid node address format: %q", address)
	}

	nm.mu.Lock()
	defer nm.mu.Unlock()

	_, known := nm.nodes[address]
	if !known && nm.maxPeers > 0 && len(nm.nodes) >= nm.maxPeers {
		PeerRegistrations.WithLabelValues("rejected_capacity").Inc()
		return blockchain.NewErrorf(blockchain.CapacityError, "peer limit of %d reached, refusing %s", nm.maxPeers, address)
	}

	nm.nodes[address] = NodeInfo{
		Address:  address,
		LastSeen: time.Now().Unix(),
	}
	KnownPeersGauge.Set(float64(len(nm.nodes)))

	if known {
		PeerRegistrations.WithLabelValues("updated").Inc()
		utils.LogDebug("Node updated: %s", address)
	} else {
		PeerRegistrations.WithLabelValues("added").Inc()
		utils.LogInfo("Node registered: %s", address)
	}
	return nil
}

// RemoveNode forgets a peer. It reports whether the peer was known.
func (nm *NodeManager) RemoveNode(address string) bool {
	nm.mu.Lock()
	defer nm.mu.Unlock()

	if _, ok := nm.nodes[address]; !ok {
		return false
	}
	delete(nm.nodes, address)
	KnownPeersGauge.Set(float64(len(nm.nodes)))
	utils.LogInfo("Node removed: %s", address)
	return true
}

// GetActiveNodes returns all registered nodes ordered by address.
func (nm *NodeManager) GetActiveNodes() []NodeInfo {
	nm.mu.RLock()
	defer nm.mu.RUnlock()

	activeNodes := make([]NodeInfo, 0, len(nm.nodes))
	for _, nodeInfo := range nm.nodes {
		activeNodes = append(activeNodes, nodeInfo)
	}
	sort.Slice(activeNodes, func(i, j int) bool {
		return activeNodes[i].Address < activeNodes[j].Address
	})
	return activeNodes
}

// Addresses returns the registered peer addresses ordered by address.
func (nm *NodeManager) Addresses() []string {
	nodes := nm.GetActiveNodes()
	addrs := make([]string, len(nodes))
	for i, n := range nodes {
		addrs[i] = n.Address
	}
	return addrs
}

// Count returns the number of registered peers
func (nm *NodeManager) Count() int {
	nm.mu.RLock()
	defer nm.mu.RUnlock()
	return len(nm.nodes)
}

// MaxPeers returns the configured limit, 0 when unbounded
func (nm *NodeManager) MaxPeers() int {
	return nm.maxPeers
}

// isValidNodeAddress validates the "host:port" node address format
func isValidNodeAddress(addr string) bool {
	idx := strings.LastIndex(addr, ":")
	if idx <= 0 || idx == len(addr)-1 {
		return false
	}
	if strings.Contains(addr, "/") {
		return false
	}

	port, err := strconv.Atoi(addr[idx+1:])
	if err != nil {
		return false
	}
	return port > 0 && port <= 65535
}
