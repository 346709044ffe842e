package blockchain

import (
	"errors"
	"sync"

	"hypernovachain_go/mempool"
	"hypernovachain_go/utils"
)

/**
 * Blockchain is the ledger: the committed block sequence, its hash index and
 * the pending transaction pool.
 *
 * Locking:
 *   - commitMutex serializes AddBlock and Initialize end to end.
 *   - stateMutex guards blocks and blockIndex as one unit; the tip is always
 *     the last block. It is held exclusively only while publishing.
 *   - the pending pool has its own lock.
 * Consensus engines receive the ledger as a ChainReader while commitMutex is
 * held but stateMutex is not, so their reads never deadlock.
 * Subscribers run on a single dispatch goroutine, never under commitMutex.
 */
type Blockchain struct {
	blocks      []*Block
	blockIndex  map[string]uint64
	stateMutex  sync.RWMutex
	commitMutex sync.Mutex

	consensus      Consensus
	consensusMutex sync.RWMutex

	storage Storage
	pending *mempool.Mempool[*Transaction]

	subscribers []func(*Block)
	subMutex    sync.RWMutex

	// committed blocks waiting for the dispatcher, in commit order
	queue      []*Block
	queueMutex sync.Mutex
	wake       chan struct{}
	done       chan struct{}
	startOnce  sync.Once
	closeOnce  sync.Once
}

// Option customizes a Blockchain
type Option func(*blockchainOptions)

type blockchainOptions struct {
	maxPending int
}

// WithMaxPending bounds the pending pool; 0 means unbounded.
func WithMaxPending(n int) Option {
	return func(o *blockchainOptions) {
		o.maxPending = n
	}
}

// NewBlockchain creates an uninitialized ledger. Call Initialize before use.
func NewBlockchain(storage Storage, consensus Consensus, opts ...Option) *Blockchain {
	o := blockchainOptions{}
	for _, opt := range opts {
		opt(&o)
	}
	return &Blockchain{
		blocks:     make([]*Block, 0),
		blockIndex: make(map[string]uint64),
		consensus:  consensus,
		storage:    storage,
		pending:    mempool.NewMempool[*Transaction](o.maxPending),
		wake:       make(chan struct{}, 1),
		done:       make(chan struct{}),
	}
}

// InitializeBlockchain creates a ledger and loads or seeds it from storage.
func InitializeBlockchain(storage Storage, consensus Consensus, opts ...Option) (*Blockchain, error) {
	bc := NewBlockchain(storage, consensus, opts...)
	if err := bc.Initialize(); err != nil {
		return nil, err
	}
	return bc, nil
}

/**
 * Initialize loads the persisted chain. On an empty store it creates,
 * persists and publishes the genesis block. Calling it on an initialized
 * ledger is a no-op.
 */
func (bc *Blockchain) Initialize() error {
	bc.commitMutex.Lock()
	defer bc.commitMutex.Unlock()

	if bc.GetLength() > 0 {
		return nil
	}

	stored, err := bc.storage.LoadBlocks()
	if err != nil {
		return NewError(StorageError, "failed to load blocks").Wrap(err)
	}

	if len(stored) == 0 {
		genesis := NewGenesisBlock()
		if err := bc.storage.StoreBlock(genesis); err != nil {
			return NewError(StorageError, "failed to persist genesis block").Wrap(err)
		}
		bc.publish(genesis)
		utils.LogInfo("Created genesis block %s", genesis.Hash())
		return nil
	}

	if err := verifyStoredChain(stored); err != nil {
		return err
	}

	bc.stateMutex.Lock()
	for _, block := range stored {
		bc.blockIndex[block.Hash()] = block.Header.Height
		bc.blocks = append(bc.blocks, block)
	}
	bc.stateMutex.Unlock()

	ChainHeight.Set(float64(stored[len(stored)-1].Header.Height))
	utils.LogInfo("Loaded %d blocks from storage, tip %s", len(stored), stored[len(stored)-1].Hash())
	return nil
}

func verifyStoredChain(blocks []*Block) error {
	var prevHash string
	for i, block := range blocks {
		if block.Header.Height != uint64(i) {
			return NewErrorf(StorageError, "stored block at position %d has height %d", i, block.Header.Height)
		}
		expectedPrev := GenesisPrevHash
		if i > 0 {
			expectedPrev = prevHash
		}
		if block.Header.PrevHash != expectedPrev {
			return NewErrorf(StorageError, "stored block %d does not link to its parent", i)
		}
		if !block.VerifyMerkleRoot() {
			return NewErrorf(StorageError, "stored block %d has an invalid merkle root", i)
		}
		prevHash = block.Hash()
	}
	return nil
}

// AddTransaction checks tx's type and signature and appends it to the
// pending pool.
func (bc *Blockchain) AddTransaction(tx *Transaction) error {
	if tx == nil {
		return NewError(StructuralError, "transaction is nil")
	}
	if !tx.Type.Valid() {
		TransactionsSubmitted.WithLabelValues("rejected").Inc()
		return NewErrorf(StructuralError, "transaction %s has unknown type %q", tx.Hash(), tx.Type)
	}
	if !tx.VerifySignature() {
		TransactionsSubmitted.WithLabelValues("rejected").Inc()
		return NewErrorf(SignatureError, "transaction %s has a missing or invalid signature", tx.Hash())
	}
	if err := bc.pending.AddItem(tx.Clone()); err != nil {
		TransactionsSubmitted.WithLabelValues("rejected").Inc()
		if errors.Is(err, mempool.ErrPoolFull) {
			return NewError(CapacityError, "pending pool is full").Wrap(err)
		}
		return NewError(CapacityError, "failed to queue transaction").Wrap(err)
	}

	TransactionsSubmitted.WithLabelValues("accepted").Inc()
	PendingTransactions.Set(float64(bc.pending.GetSize()))
	utils.LogDebug("Transaction %s added to pending pool", tx.Hash())
	return nil
}

/**
 * AddBlock runs the commit pipeline: structural checks, transaction
 * signatures, the active consensus policy, durable persistence and
 * publication. Any failure leaves the ledger unchanged.
 */
func (bc *Blockchain) AddBlock(block *Block) error {
	if block == nil {
		return bc.reject(NewError(StructuralError, "block is nil"))
	}

	bc.commitMutex.Lock()
	defer bc.commitMutex.Unlock()

	hash := block.Hash()
	tip := bc.tip()

	if tip == nil {
		if block.Header.Height != 0 {
			return bc.reject(NewErrorf(StructuralError, "first block must have height 0, got %d", block.Header.Height))
		}
	} else {
		if block.Header.Height != tip.Header.Height+1 {
			return bc.reject(NewErrorf(StructuralError, "block height %d does not follow tip height %d",
				block.Header.Height, tip.Header.Height))
		}
		if tipHash := tip.Hash(); block.Header.PrevHash != tipHash {
			return bc.reject(NewErrorf(StructuralError, "block prev_hash %s does not match tip %s",
				block.Header.PrevHash, tipHash))
		}
	}

	if !block.VerifyMerkleRoot() {
		return bc.reject(NewErrorf(StructuralError, "block %s merkle root does not match its transactions", hash))
	}

	for i, tx := range block.Transactions {
		if tx != nil && !tx.Type.Valid() {
			return bc.reject(NewErrorf(StructuralError, "transaction %d in block %s has unknown type %q", i, hash, tx.Type))
		}
	}

	for i, tx := range block.Transactions {
		if tx == nil || !tx.VerifySignature() {
			return bc.reject(NewErrorf(SignatureError, "transaction %d in block %s has a missing or invalid signature", i, hash))
		}
	}

	// Nothing can attest to genesis.
	if tip != nil {
		engine := bc.GetConsensus()
		if engine == nil {
			return bc.reject(NewError(ConsensusPolicyError, "no consensus engine configured"))
		}
		if err := engine.ValidateBlock(block, bc); err != nil {
			var le *LedgerError
			if !errors.As(err, &le) {
				err = NewErrorf(ConsensusPolicyError, "%s rejected block %s", engine.Name(), hash).Wrap(err)
			}
			return bc.reject(err)
		}
	}

	committed := block.Clone()
	if err := bc.storage.StoreBlock(committed); err != nil {
		return bc.reject(NewErrorf(StorageError, "failed to persist block %s", hash).Wrap(err))
	}

	bc.publish(committed)

	if removed := bc.pending.RemoveProcessedItems(committed.TransactionHashes()); removed > 0 {
		utils.LogDebug("Removed %d committed transactions from pending pool", removed)
	}
	PendingTransactions.Set(float64(bc.pending.GetSize()))

	utils.LogInfo("Block %d committed with hash %s (%d txs)", committed.Header.Height, hash, len(committed.Transactions))
	bc.notify(committed)
	return nil
}

func (bc *Blockchain) reject(err error) error {
	kind, ok := KindOf(err)
	if !ok {
		kind = "UNKNOWN"
	}
	BlocksRejected.WithLabelValues(string(kind)).Inc()
	utils.LogDebug("Block rejected: %v", err)
	return err
}

// publish appends block and indexes it in one critical section.
func (bc *Blockchain) publish(block *Block) {
	hash := block.Hash()

	bc.stateMutex.Lock()
	bc.blocks = append(bc.blocks, block)
	bc.blockIndex[hash] = block.Header.Height
	bc.stateMutex.Unlock()

	BlocksCommitted.Inc()
	ChainHeight.Set(float64(block.Header.Height))
}

func (bc *Blockchain) tip() *Block {
	bc.stateMutex.RLock()
	defer bc.stateMutex.RUnlock()

	if len(bc.blocks) == 0 {
		return nil
	}
	return bc.blocks[len(bc.blocks)-1]
}

/**
 * Subscribe registers fn to be called with every block committed from now
 * on. Calls happen in commit order on one dispatch goroutine, after AddBlock
 * has released the commit lock, so a slow subscriber delays other
 * subscribers but never a commit.
 */
func (bc *Blockchain) Subscribe(fn func(*Block)) {
	bc.subMutex.Lock()
	bc.subscribers = append(bc.subscribers, fn)
	bc.subMutex.Unlock()

	bc.startOnce.Do(func() {
		go bc.dispatch()
	})
}

// notify queues block for the subscribers. Caller holds commitMutex, which
// fixes the queue order.
func (bc *Blockchain) notify(block *Block) {
	select {
	case <-bc.done:
		return
	default:
	}

	bc.subMutex.RLock()
	hasSubscribers := len(bc.subscribers) > 0
	bc.subMutex.RUnlock()
	if !hasSubscribers {
		return
	}

	bc.queueMutex.Lock()
	bc.queue = append(bc.queue, block)
	bc.queueMutex.Unlock()

	select {
	case bc.wake <- struct{}{}:
	default:
	}
}

func (bc *Blockchain) dispatch() {
	for {
		select {
		case <-bc.done:
			return
		case <-bc.wake:
		}

		for {
			bc.queueMutex.Lock()
			batch := bc.queue
			bc.queue = nil
			bc.queueMutex.Unlock()
			if len(batch) == 0 {
				break
			}

			bc.subMutex.RLock()
			subs := make([]func(*Block), len(bc.subscribers))
			copy(subs, bc.subscribers)
			bc.subMutex.RUnlock()

			for _, block := range batch {
				for _, fn := range subs {
					fn(block.Clone())
				}
			}
		}
	}
}

// Close stops delivering blocks to subscribers. Blocks still queued are
// dropped. The ledger itself stays usable.
func (bc *Blockchain) Close() {
	bc.closeOnce.Do(func() {
		close(bc.done)
	})
}

// GetLatestBlock returns a copy of the tip, or nil on an empty ledger
func (bc *Blockchain) GetLatestBlock() *Block {
	tip := bc.tip()
	if tip == nil {
		return nil
	}
	return tip.Clone()
}

// GetBlockByHash returns a copy of the block with the given hash
func (bc *Blockchain) GetBlockByHash(hash string) (*Block, bool) {
	bc.stateMutex.RLock()
	defer bc.stateMutex.RUnlock()

	height, ok := bc.blockIndex[hash]
	if !ok {
		return nil, false
	}
	return bc.blocks[height].Clone(), true
}

// GetBlockByHeight returns a copy of the block at height
func (bc *Blockchain) GetBlockByHeight(height uint64) (*Block, bool) {
	bc.stateMutex.RLock()
	defer bc.stateMutex.RUnlock()

	if height >= uint64(len(bc.blocks)) {
		return nil, false
	}
	return bc.blocks[height].Clone(), true
}

// GetHeight returns the tip height, 0 on an empty ledger
func (bc *Blockchain) GetHeight() uint64 {
	tip := bc.tip()
	if tip == nil {
		return 0
	}
	return tip.Header.Height
}

// GetLength returns the number of committed blocks
func (bc *Blockchain) GetLength() int {
	bc.stateMutex.RLock()
	defer bc.stateMutex.RUnlock()

	return len(bc.blocks)
}

// GetBlocks returns copies of all committed blocks in order
func (bc *Blockchain) GetBlocks() []*Block {
	bc.stateMutex.RLock()
	defer bc.stateMutex.RUnlock()

	blocks := make([]*Block, len(bc.blocks))
	for i, block := range bc.blocks {
		blocks[i] = block.Clone()
	}
	return blocks
}

// GetPendingTransactions returns copies of the pending pool in submission order
func (bc *Blockchain) GetPendingTransactions() []*Transaction {
	items := bc.pending.GetAllItems()
	txs := make([]*Transaction, len(items))
	for i, tx := range items {
		txs[i] = tx.Clone()
	}
	return txs
}

// GetPendingCount returns the size of the pending pool
func (bc *Blockchain) GetPendingCount() int {
	return bc.pending.GetSize()
}

// SetConsensus swaps the active consensus engine
func (bc *Blockchain) SetConsensus(c Consensus) {
	bc.consensusMutex.Lock()
	defer bc.consensusMutex.Unlock()

	bc.consensus = c
}

// GetConsensus returns the active consensus engine
func (bc *Blockchain) GetConsensus() Consensus {
	bc.consensusMutex.RLock()
	defer bc.consensusMutex.RUnlock()

	return bc.consensus
}

// GetStorage returns the storage backing the ledger
func (bc *Blockchain) GetStorage() Storage {
	return bc.storage
}
