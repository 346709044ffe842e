package blockchain

import (
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"sync"

	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/opt"
	"github.com/syndtr/goleveldb/leveldb/util"

	"hypernovachain_go/utils"
)

// Database keys prefixes
const (
	blockHashKeyPrefix  = "blockhash_"  // block JSON by hash
	blockIndexKeyPrefix = "blockindex_" // hash by zero padded height
	blockHeightKey      = "height"      // height of the highest stored block
	dataKeyPrefix       = "data_"       // opaque blobs
)

// LevelDBStorage persists blocks and opaque blobs in LevelDB
type LevelDBStorage struct {
	db        *leveldb.DB
	batchLock sync.Mutex
	path      string
}

// NewLevelDBStorage opens (or creates) the store under <dataDir>/blockchain
func NewLevelDBStorage(dataDir string) (*LevelDBStorage, error) {
	dbPath := filepath.Join(dataDir, "blockchain")

	options := &opt.Options{
		BlockCacheCapacity:  32 * 1024 * 1024,
		WriteBuffer:         16 * 1024 * 1024,
		CompactionTableSize: 2 * 1024 * 1024,
	}

	db, err := leveldb.OpenFile(dbPath, options)
	if err != nil {
		return nil, fmt.Errorf("failed to open blockchain database: %w", err)
	}

	utils.LogInfo("Blockchain database initialized at: %s", dbPath)

	return &LevelDBStorage{
		db:   db,
		path: dbPath,
	}, nil
}

// Path returns the database directory
func (s *LevelDBStorage) Path() string {
	return s.path
}

// Close closes the database connection
func (s *LevelDBStorage) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func indexKey(height uint64) []byte {
	return []byte(fmt.Sprintf("%s%020d", blockIndexKeyPrefix, height))
}

func hashKey(hash string) []byte {
	return []byte(blockHashKeyPrefix + hash)
}

// StoreBlock writes the block record, its height index entry and the stored
// height in one synced batch.
func (s *LevelDBStorage) StoreBlock(block *Block) error {
	blockData, err := json.Marshal(block)
	if err != nil {
		return fmt.Errorf("failed to marshal block: %w", err)
	}
	hash := block.Hash()

	batch := new(leveldb.Batch)
	batch.Put(hashKey(hash), blockData)
	batch.Put(indexKey(block.Header.Height), []byte(hash))

	s.batchLock.Lock()
	defer s.batchLock.Unlock()

	current, found, err := s.storedHeight()
	if err != nil {
		return err
	}
	if !found || block.Header.Height > current {
		batch.Put([]byte(blockHeightKey), []byte(fmt.Sprintf("%d", block.Header.Height)))
	}

	if err := s.db.Write(batch, &opt.WriteOptions{Sync: true}); err != nil {
		return fmt.Errorf("failed to save block to database: %w", err)
	}

	utils.LogDebug("Block %d saved to database with hash %s", block.Header.Height, hash)
	return nil
}

// LoadBlocks returns all stored blocks ordered by height
func (s *LevelDBStorage) LoadBlocks() ([]*Block, error) {
	blocks := make([]*Block, 0)

	iter := s.db.NewIterator(util.BytesPrefix([]byte(blockIndexKeyPrefix)), nil)
	defer iter.Release()

	for iter.Next() {
		hash := string(iter.Value())
		block, err := s.GetBlock(hash)
		if err != nil {
			return nil, err
		}
		if block == nil {
			return nil, fmt.Errorf("height index %s points at missing block %s", iter.Key(), hash)
		}
		blocks = append(blocks, block)
	}

	if err := iter.Error(); err != nil {
		return nil, fmt.Errorf("error iterating blocks: %w", err)
	}

	return blocks, nil
}

// GetBlock retrieves a block by its hash
func (s *LevelDBStorage) GetBlock(hash string) (*Block, error) {
	data, err := s.db.Get(hashKey(hash), nil)
	if err != nil {
		if errors.Is(err, leveldb.ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to retrieve block: %w", err)
	}

	var block Block
	if err := json.Unmarshal(data, &block); err != nil {
		return nil, fmt.Errorf("failed to unmarshal block %s: %w", hash, err)
	}
	return &block, nil
}

// GetBlockchainHeight returns the height of the highest stored block; found is
// false on an empty store.
func (s *LevelDBStorage) GetBlockchainHeight() (uint64, bool, error) {
	s.batchLock.Lock()
	defer s.batchLock.Unlock()
	return s.storedHeight()
}

func (s *LevelDBStorage) storedHeight() (uint64, bool, error) {
	data, err := s.db.Get([]byte(blockHeightKey), nil)
	if err != nil {
		if errors.Is(err, leveldb.ErrNotFound) {
			return 0, false, nil
		}
		return 0, false, fmt.Errorf("failed to retrieve blockchain height: %w", err)
	}

	var height uint64
	if _, err := fmt.Sscanf(string(data), "%d", &height); err != nil {
		return 0, false, fmt.Errorf("failed to parse blockchain height: %w", err)
	}
	return height, true, nil
}

// StoreData saves an opaque value
func (s *LevelDBStorage) StoreData(key string, value []byte) error {
	if err := s.db.Put([]byte(dataKeyPrefix+key), value, &opt.WriteOptions{Sync: true}); err != nil {
		return fmt.Errorf("failed to save data %s: %w", key, err)
	}
	return nil
}

// LoadData retrieves an opaque value
func (s *LevelDBStorage) LoadData(key string) ([]byte, error) {
	data, err := s.db.Get([]byte(dataKeyPrefix+key), nil)
	if err != nil {
		if errors.Is(err, leveldb.ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to retrieve data %s: %w", key, err)
	}
	return data, nil
}
