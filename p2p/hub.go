package p2p

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"hypernovachain_go/blockchain"
	"hypernovachain_go/utils"
)

const wsWriteTimeout = 5 * time.Second

/**
 * BlockHub pushes every committed block to websocket subscribers on
 * /ws/blocks. Subscribers are read-only; anything they send is discarded.
 */
type BlockHub struct {
	upgrader websocket.Upgrader
	clients  map[*websocket.Conn]struct{}
	mu       sync.Mutex // guards clients and serializes writes
	closed   bool
}

// NewBlockHub creates an empty hub
func NewBlockHub() *BlockHub {
	return &BlockHub{
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true // Block data is public
			},
		},
		clients: make(map[*websocket.Conn]struct{}),
	}
}

// ServeWS upgrades the request and keeps the subscriber registered until it
// disconnects.
func (h *BlockHub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		utils.LogError("[WS] Failed to upgrade connection for %s: %v", r.RemoteAddr, err)
		return
	}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		_ = conn.Close()
		return
	}
	h.clients[conn] = struct{}{}
	WebsocketClientsGauge.Set(float64(len(h.clients)))
	h.mu.Unlock()

	utils.LogInfo("[WS] Block subscriber connected: %s", r.RemoteAddr)
	defer h.drop(conn)

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				utils.LogError("[WS] Error reading from %s: %v", r.RemoteAddr, err)
			} else {
				utils.LogDebug("[WS] Subscriber %s disconnected", r.RemoteAddr)
			}
			return
		}
	}
}

func (h *BlockHub) drop(conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.removeLocked(conn)
}

func (h *BlockHub) removeLocked(conn *websocket.Conn) {
	if _, ok := h.clients[conn]; !ok {
		return
	}
	delete(h.clients, conn)
	_ = conn.Close()
	WebsocketClientsGauge.Set(float64(len(h.clients)))
}

// BroadcastBlock sends block to every subscriber. Subscribers that fail a
// write are dropped.
func (h *BlockHub) BroadcastBlock(block *blockchain.Block) {
	if block == nil {
		return
	}
	payload, err := json.Marshal(BlockMessage{
		Type:   MessageTypeBlock,
		Height: block.Header.Height,
		Hash:   block.Hash(),
		Block:  block,
	})
	if err != nil {
		utils.LogError("[WS] Error encoding block %d: %v", block.Header.Height, err)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if len(h.clients) == 0 {
		return
	}
	utils.LogDebug("[WS] Broadcasting block %d to %d subscribers", block.Header.Height, len(h.clients))
	for conn := range h.clients {
		_ = conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
		if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
			utils.LogError("[WS] Error writing to %s: %v", conn.RemoteAddr().String(), err)
			BlocksBroadcast.WithLabelValues("websocket", "failed").Inc()
			h.removeLocked(conn)
			continue
		}
		BlocksBroadcast.WithLabelValues("websocket", "delivered").Inc()
	}
}

// ClientCount returns the number of connected subscribers
func (h *BlockHub) ClientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Close disconnects every subscriber and refuses new ones
func (h *BlockHub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for conn := range h.clients {
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "node shutting down"),
			time.Now().Add(time.Second))
		h.removeLocked(conn)
	}
}
