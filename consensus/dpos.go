package consensus

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"

	"hypernovachain_go/blockchain"
	"hypernovachain_go/security"
	"hypernovachain_go/utils"
)

// DPoSConfig configures DPoS
type DPoSConfig struct {
	ValidatorCount       int
	MinStake             uint64
	Stakes               map[string]uint64 // Seeded when storage holds no stake table
	MaxBlockTransactions int
}

// ValidatorInfo is an elected validator and its stake
type ValidatorInfo struct {
	Address string `json:"address"`
	Stake   uint64 `json:"stake"`
}

// DPoS implements the Delegated Proof of Stake consensus algorithm
type DPoS struct {
	validatorCount int
	minStake       uint64
	seedStakes     map[string]uint64
	stakes         map[string]uint64 // address -> stake
	validators     []string          // elected roster, best stake first
	storage        blockchain.Storage
	maxBlockTxs    int
	mutex          sync.RWMutex
	initialized    bool
}

// NewDPoS creates a new DPoS consensus instance. storage may be nil.
func NewDPoS(storage blockchain.Storage, cfg DPoSConfig) *DPoS {
	if cfg.ValidatorCount <= 0 {
		cfg.ValidatorCount = DefaultValidatorCount
	}
	seed := make(map[string]uint64, len(cfg.Stakes))
	for addr, stake := range cfg.Stakes {
		seed[addr] = stake
	}
	return &DPoS{
		validatorCount: cfg.ValidatorCount,
		minStake:       cfg.MinStake,
		seedStakes:     seed,
		stakes:         make(map[string]uint64),
		validators:     make([]string, 0),
		storage:        storage,
		maxBlockTxs:    cfg.MaxBlockTransactions,
	}
}

// Name returns the engine name
func (d *DPoS) Name() string {
	return string(DPOS)
}

// Initialize loads the stake table (or seeds it) and elects the roster
func (d *DPoS) Initialize() error {
	d.mutex.Lock()
	defer d.mutex.Unlock()

	if d.initialized {
		return nil
	}

	stored, found, err := d.loadStakes()
	if err != nil {
		return err
	}
	if found {
		d.stakes = stored
	} else {
		for addr, stake := range d.seedStakes {
			d.stakes[addr] = stake
		}
		if err := d.saveStakes(); err != nil {
			return err
		}
	}

	d.electLocked()
	d.initialized = true
	utils.LogInfo("DPoS consensus initialized. %d stakeholders, %d elected validators", len(d.stakes), len(d.validators))
	utils.LogDebug("Active validators: %v", d.validators)
	return nil
}

func (d *DPoS) loadStakes() (map[string]uint64, bool, error) {
	if d.storage == nil {
		return nil, false, nil
	}
	data, err := d.storage.LoadData(dposStakesKey)
	if err != nil {
		return nil, false, fmt.Errorf("failed to load stake table: %w", err)
	}
	if data == nil {
		return nil, false, nil
	}
	stakes := make(map[string]uint64)
	if err := json.Unmarshal(data, &stakes); err != nil {
		return nil, false, fmt.Errorf("failed to decode stake table: %w", err)
	}
	return stakes, true, nil
}

// saveStakes persists the stake table. Caller holds the write lock.
func (d *DPoS) saveStakes() error {
	if d.storage == nil {
		return nil
	}
	data, err := json.Marshal(d.stakes)
	if err != nil {
		return fmt.Errorf("failed to encode stake table: %w", err)
	}
	if err := d.storage.StoreData(dposStakesKey, data); err != nil {
		return fmt.Errorf("failed to persist stake table: %w", err)
	}
	return nil
}

// SetStake records the stake of address and re-elects the roster
func (d *DPoS) SetStake(address string, stake uint64) error {
	if address == "" {
		return errors.New("address cannot be empty")
	}

	d.mutex.Lock()
	defer d.mutex.Unlock()

	previous, had := d.stakes[address]
	d.stakes[address] = stake
	if err := d.saveStakes(); err != nil {
		if had {
			d.stakes[address] = previous
		} else {
			delete(d.stakes, address)
		}
		return err
	}
	d.electLocked()
	return nil
}

// RemoveStake drops address from the stake table and re-elects the roster
func (d *DPoS) RemoveStake(address string) error {
	d.mutex.Lock()
	defer d.mutex.Unlock()

	previous, had := d.stakes[address]
	if !had {
		return nil
	}
	delete(d.stakes, address)
	if err := d.saveStakes(); err != nil {
		d.stakes[address] = previous
		return err
	}
	d.electLocked()
	return nil
}

// GetStake returns the stake of address
func (d *DPoS) GetStake(address string) (uint64, bool) {
	d.mutex.RLock()
	defer d.mutex.RUnlock()
	stake, ok := d.stakes[address]
	return stake, ok
}

// UpdateValidators re-elects the roster and returns it
func (d *DPoS) UpdateValidators() []string {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	d.electLocked()
	return append([]string(nil), d.validators...)
}

// electLocked keeps addresses with stake >= minStake, orders them by stake
// descending then address ascending, and takes the first validatorCount.
func (d *DPoS) electLocked() {
	candidates := make([]ValidatorInfo, 0, len(d.stakes))
	for addr, stake := range d.stakes {
		if stake >= d.minStake {
			candidates = append(candidates, ValidatorInfo{Address: addr, Stake: stake})
		}
	}
	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].Stake != candidates[j].Stake {
			return candidates[i].Stake > candidates[j].Stake
		}
		return candidates[i].Address < candidates[j].Address
	})
	if len(candidates) > d.validatorCount {
		candidates = candidates[:d.validatorCount]
	}

	d.validators = make([]string, len(candidates))
	for i, c := range candidates {
		d.validators[i] = c.Address
	}
	ElectedValidators.Set(float64(len(d.validators)))
}

// GetValidators returns the elected roster, best stake first
func (d *DPoS) GetValidators() []string {
	d.mutex.RLock()
	defer d.mutex.RUnlock()
	return append([]string(nil), d.validators...)
}

// GetValidatorInfos returns the elected roster with stakes
func (d *DPoS) GetValidatorInfos() []ValidatorInfo {
	d.mutex.RLock()
	defer d.mutex.RUnlock()

	infos := make([]ValidatorInfo, len(d.validators))
	for i, addr := range d.validators {
		infos[i] = ValidatorInfo{Address: addr, Stake: d.stakes[addr]}
	}
	return infos
}

// IsValidator reports whether address is in the elected roster
func (d *DPoS) IsValidator(address string) bool {
	d.mutex.RLock()
	defer d.mutex.RUnlock()
	for _, v := range d.validators {
		if v == address {
			return true
		}
	}
	return false
}

// CreateBlock builds an unsigned candidate on the tip. It must be signed with
// SignBlock before it is offered to the ledger.
func (d *DPoS) CreateBlock(chain blockchain.ChainReader) (*blockchain.Block, error) {
	block, err := nextCandidate(chain, d.maxBlockTxs)
	if err != nil {
		return nil, err
	}
	utils.LogDebug("DPoS created candidate block %d with %d txs", block.Header.Height, len(block.Transactions))
	return block, nil
}

// SignBlock signs block with signer, which must be an elected validator.
func (d *DPoS) SignBlock(block *blockchain.Block, signer security.Signer) error {
	if signer == nil {
		return errors.New("signer cannot be nil")
	}
	if !d.IsValidator(signer.Address()) {
		return blockchain.NewErrorf(blockchain.ConsensusPolicyError, "%s is not an elected validator", signer.Address())
	}
	return block.Sign(signer)
}

// ValidateBlock requires a validator signature by an elected validator over
// the block hash.
func (d *DPoS) ValidateBlock(block *blockchain.Block, chain blockchain.ChainReader) error {
	err := d.validate(block)
	if err != nil {
		BlockValidations.WithLabelValues(d.Name(), "rejected").Inc()
		return err
	}
	BlockValidations.WithLabelValues(d.Name(), "accepted").Inc()
	return nil
}

func (d *DPoS) validate(block *blockchain.Block) error {
	hash := block.Hash()
	if block.ValidatorSignature == nil {
		return blockchain.NewErrorf(blockchain.ConsensusPolicyError, "block %s carries no validator signature", hash)
	}
	if block.Validator == "" {
		return blockchain.NewErrorf(blockchain.ConsensusPolicyError, "block %s names no validator", hash)
	}
	if !d.IsValidator(block.Validator) {
		return blockchain.NewErrorf(blockchain.ConsensusPolicyError, "block %s signed by %s, who is not an elected validator", hash, block.Validator)
	}
	ok, err := block.VerifySignature()
	if err != nil {
		return blockchain.NewErrorf(blockchain.SignatureError, "validator signature on block %s not verifiable", hash).Wrap(err)
	}
	if !ok {
		return blockchain.NewErrorf(blockchain.SignatureError, "validator signature on block %s is invalid", hash)
	}
	return nil
}
