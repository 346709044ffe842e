package p2p

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"hypernovachain_go/blockchain"
	"hypernovachain_go/consensus"
	"hypernovachain_go/utils"
)

// RequestBodyForRegisterNode is used to parse the JSON request for registering a node.
type RequestBodyForRegisterNode struct {
	Address string `json:"address"`
}

// SubmissionResponse acknowledges an accepted transaction or block
type SubmissionResponse struct {
	Hash   string  `json:"hash"`
	Height *uint64 `json:"height,omitempty"`
}

// StatusResponse summarizes the node's ledger
type StatusResponse struct {
	NodeID     string `json:"nodeId"`
	Height     uint64 `json:"height"`
	Length     int    `json:"length"`
	LatestHash string `json:"latestHash"`
	Pending    int    `json:"pending"`
	Consensus  string `json:"consensus"`
	Peers      int    `json:"peers"`
}

// ValidatorsResponse lists the active engine's authorized signers
type ValidatorsResponse struct {
	Consensus  string                    `json:"consensus"`
	Validators []consensus.ValidatorInfo `json:"validators,omitempty"`
	Oracles    []string                  `json:"oracles,omitempty"`
}

/**
 * statusForError maps a ledger error kind to the HTTP status returned to
 * the submitter.
 */
func statusForError(err error) int {
	kind, ok := blockchain.KindOf(err)
	if !ok {
		return http.StatusInternalServerError
	}
	switch kind {
	case blockchain.StructuralError:
		return http.StatusConflict
	case blockchain.SignatureError, blockchain.ConsensusPolicyError:
		return http.StatusUnprocessableEntity
	case blockchain.CapacityError:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		utils.LogError("Error encoding response: %v", err)
	}
}

// RegisterNodeHandler returns an http.HandlerFunc for registering a new node.
func RegisterNodeHandler(nodeManager *NodeManager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var reqBody RequestBodyForRegisterNode
		if err := json.NewDecoder(r.Body).Decode(&reqBody); err != nil {
			http.Error(w, "Error decoding request body: "+err.Error(), http.StatusBadRequest)
			utils.LogError("RegisterNodeHandler: Error decoding request body: %v", err)
			return
		}

		if reqBody.Address == "" {
			http.Error(w, "Node address cannot be empty", http.StatusBadRequest)
			return
		}
		if !isValidNodeAddress(reqBody.Address) {
			http.Error(w, "Invalid node address format", http.StatusBadRequest)
			utils.LogError("RegisterNodeHandler: Invalid node address format: %s", reqBody.Address)
			return
		}

		if err := nodeManager.AddNode(reqBody.Address); err != nil {
			status := http.StatusInternalServerError
			if blockchain.IsKind(err, blockchain.CapacityError) {
				status = http.StatusServiceUnavailable
			}
			http.Error(w, "Error registering node: "+err.Error(), status)
			utils.LogError("RegisterNodeHandler: Error registering %s: %v", reqBody.Address, err)
			return
		}

		w.WriteHeader(http.StatusCreated)
		fmt.Fprintf(w, "Node %s registered successfully", reqBody.Address)
	}
}

// GetActiveNodesHandler returns an http.HandlerFunc for retrieving the list of active nodes.
func GetActiveNodesHandler(nodeManager *NodeManager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		activeNodes := nodeManager.GetActiveNodes()
		writeJSON(w, http.StatusOK, activeNodes)
		utils.LogDebug("GetActiveNodesHandler: Responded with %d active nodes.", len(activeNodes))
	}
}

// PingHandler responds to ping requests
func (s *Server) PingHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, "Node %s is alive", s.NodeID)
	utils.LogDebug("Received ping from %s", r.RemoteAddr)
}

// decodeBody decodes a JSON body of at most MaxBodyBytes into v
func (s *Server) decodeBody(w http.ResponseWriter, r *http.Request, v interface{}) error {
	limit := s.MaxBodyBytes
	if limit <= 0 {
		limit = DefaultMaxBodyBytes
	}
	return json.NewDecoder(http.MaxBytesReader(w, r.Body, limit)).Decode(v)
}

func statusForDecodeError(err error) int {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		return http.StatusRequestEntityTooLarge
	}
	return http.StatusBadRequest
}

// TransactionHandler submits a signed transaction to the pending pool
func (s *Server) TransactionHandler(w http.ResponseWriter, r *http.Request) {
	var tx blockchain.Transaction
	if err := s.decodeBody(w, r, &tx); err != nil {
		utils.LogError("Error decoding transaction: %v", err)
		status := statusForDecodeError(err)
		APIRequests.WithLabelValues("tx", strconv.Itoa(status)).Inc()
		http.Error(w, "Invalid transaction format: "+err.Error(), status)
		return
	}

	if err := s.Chain.AddTransaction(&tx); err != nil {
		status := statusForError(err)
		// A malformed or badly signed submission is a client error.
		if blockchain.IsKind(err, blockchain.SignatureError) || blockchain.IsKind(err, blockchain.StructuralError) {
			status = http.StatusBadRequest
		}
		APIRequests.WithLabelValues("tx", strconv.Itoa(status)).Inc()
		http.Error(w, err.Error(), status)
		return
	}

	APIRequests.WithLabelValues("tx", strconv.Itoa(http.StatusCreated)).Inc()
	writeJSON(w, http.StatusCreated, SubmissionResponse{Hash: tx.Hash()})
}

// AddBlockHandler offers a block received from a peer to the ledger
func (s *Server) AddBlockHandler(w http.ResponseWriter, r *http.Request) {
	var block blockchain.Block
	if err := s.decodeBody(w, r, &block); err != nil {
		utils.LogError("Error decoding block: %v", err)
		status := statusForDecodeError(err)
		APIRequests.WithLabelValues("block", strconv.Itoa(status)).Inc()
		http.Error(w, "Invalid block format: "+err.Error(), status)
		return
	}

	if peer := r.Header.Get("X-Node-ID"); peer != "" {
		utils.LogDebug("Received block %d from %s", block.Header.Height, peer)
	}

	if err := s.Chain.AddBlock(&block); err != nil {
		status := statusForError(err)
		APIRequests.WithLabelValues("block", strconv.Itoa(status)).Inc()
		http.Error(w, err.Error(), status)
		return
	}

	height := block.Header.Height
	APIRequests.WithLabelValues("block", strconv.Itoa(http.StatusCreated)).Inc()
	writeJSON(w, http.StatusCreated, SubmissionResponse{Hash: block.Hash(), Height: &height})
}

// StatusHandler reports the ledger tip and pool size
func (s *Server) StatusHandler(w http.ResponseWriter, r *http.Request) {
	status := StatusResponse{
		NodeID:  s.NodeID,
		Height:  s.Chain.GetHeight(),
		Length:  s.Chain.GetLength(),
		Pending: s.Chain.GetPendingCount(),
	}
	if latest := s.Chain.GetLatestBlock(); latest != nil {
		status.LatestHash = latest.Hash()
	}
	if engine := s.Chain.GetConsensus(); engine != nil {
		status.Consensus = engine.Name()
	}
	if s.NodeMgr != nil {
		status.Peers = s.NodeMgr.Count()
	}
	writeJSON(w, http.StatusOK, status)
}

// ChainHandler returns every committed block
func (s *Server) ChainHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.Chain.GetBlocks())
}

// BlockByHashHandler returns a committed block by hash
func (s *Server) BlockByHashHandler(w http.ResponseWriter, r *http.Request) {
	hash := mux.Vars(r)["hash"]
	block, ok := s.Chain.GetBlockByHash(hash)
	if !ok {
		http.Error(w, "Block not found: "+hash, http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, block)
}

// BlockByHeightHandler returns a committed block by height
func (s *Server) BlockByHeightHandler(w http.ResponseWriter, r *http.Request) {
	raw := mux.Vars(r)["height"]
	height, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		http.Error(w, "Invalid height: "+raw, http.StatusBadRequest)
		return
	}
	block, ok := s.Chain.GetBlockByHeight(height)
	if !ok {
		http.Error(w, fmt.Sprintf("No block at height %d", height), http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, block)
}

// MempoolHandler returns the pending transactions in submission order
func (s *Server) MempoolHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.Chain.GetPendingTransactions())
}

// ValidatorsHandler lists the elected DPoS validators or the trusted oracle
// keys, depending on the active engine.
func (s *Server) ValidatorsHandler(w http.ResponseWriter, r *http.Request) {
	engine := s.Chain.GetConsensus()
	if engine == nil {
		http.Error(w, "No consensus engine configured", http.StatusServiceUnavailable)
		return
	}

	resp := ValidatorsResponse{Consensus: engine.Name()}
	switch e := engine.(type) {
	case *consensus.DPoS:
		resp.Validators = e.GetValidatorInfos()
	case *consensus.ProofOfAI:
		resp.Oracles = e.GetRoster()
	}
	writeJSON(w, http.StatusOK, resp)
}
