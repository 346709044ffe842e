package p2p

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"hypernovachain_go/blockchain"
	"hypernovachain_go/utils"
)

const (
	shutdownTimeout = 5 * time.Second
	// DefaultMaxBodyBytes bounds a submitted transaction or block
	DefaultMaxBodyBytes int64 = 1 << 20
)

// Server represents the HTTP server for the ledger node
type Server struct {
	Router  *mux.Router
	Chain   *blockchain.Blockchain
	NodeMgr *NodeManager
	Hub     *BlockHub
	NodeID  string
	Port    int

	// MaxBodyBytes bounds POST /tx and POST /block bodies
	MaxBodyBytes int64
}

// NewServer creates a new server instance with its routes registered
func NewServer(nodeID string, port int, chain *blockchain.Blockchain, nodeMgr *NodeManager, hub *BlockHub) *Server {
	s := &Server{
		Router:  mux.NewRouter(),
		Chain:   chain,
		NodeMgr: nodeMgr,
		Hub:     hub,
		NodeID:  nodeID,
		Port:    port,

		MaxBodyBytes: DefaultMaxBodyBytes,
	}
	s.SetupRoutes()
	return s
}

// SetupRoutes configures the API routes
func (s *Server) SetupRoutes() {
	s.Router.HandleFunc("/ping", s.PingHandler).Methods("GET")
	s.Router.Handle("/metrics", promhttp.Handler()).Methods("GET")

	// Peer endpoints
	s.Router.HandleFunc("/nodes", RegisterNodeHandler(s.NodeMgr)).Methods("POST")
	s.Router.HandleFunc("/nodes/active", GetActiveNodesHandler(s.NodeMgr)).Methods("GET")

	// Submission endpoints
	s.Router.HandleFunc("/tx", s.TransactionHandler).Methods("POST")
	s.Router.HandleFunc("/block", s.AddBlockHandler).Methods("POST")

	// Queries
	s.Router.HandleFunc("/status", s.StatusHandler).Methods("GET")
	s.Router.HandleFunc("/chain", s.ChainHandler).Methods("GET")
	s.Router.HandleFunc("/block/height/{height:[0-9]+}", s.BlockByHeightHandler).Methods("GET")
	s.Router.HandleFunc("/block/{hash}", s.BlockByHashHandler).Methods("GET")
	s.Router.HandleFunc("/mempool", s.MempoolHandler).Methods("GET")
	s.Router.HandleFunc("/validators", s.ValidatorsHandler).Methods("GET")

	if s.Hub != nil {
		s.Router.HandleFunc("/ws/blocks", s.Hub.ServeWS)
	}
}

// Start serves HTTP until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", s.Port))
	if err != nil {
		return fmt.Errorf("failed to listen on port %d: %w", s.Port, err)
	}
	return s.Serve(ctx, ln)
}

// Serve is Start on an existing listener
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:      s.Router,
		WriteTimeout: 15 * time.Second,
		ReadTimeout:  15 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		utils.LogInfo("Server listening on %s", ln.Addr().String())
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		utils.LogInfo("Server shutting down")
		if s.Hub != nil {
			s.Hub.Close()
		}
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown failed: %w", err)
		}
		return nil
	}
}
