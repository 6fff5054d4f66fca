package storage

import (
	"encoding/json"
	"fmt"
	"math/big"

	"github.com/cockroachdb/pebble"
	"github.com/ethereum/go-ethereum/common"

	"github.com/tegro/tegrodex/pkg/dex"
)

// Store provides Pebble-based persistence for the fill ledger and the
// engine's admin configuration.
type Store struct {
	db *pebble.DB
}

// NewStore opens a Pebble database at the given path
func NewStore(dbPath string) (*Store, error) {
	opts := &pebble.Options{
		Cache:                    pebble.NewCache(128 << 20), // 128MB cache
		MemTableSize:             64 << 20,                   // 64MB memtable
		MaxConcurrentCompactions: func() int { return 3 },
		L0CompactionThreshold:    2,
		L0StopWritesThreshold:    12,
		LBaseMaxBytes:            64 << 20,
		MaxOpenFiles:             1000,
		BytesPerSync:             512 << 10,
	}

	db, err := pebble.Open(dbPath, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open pebble db at %s: %w", dbPath, err)
	}

	return &Store{db: db}, nil
}

// Close closes the database
func (s *Store) Close() error {
	return s.db.Close()
}

// LoadFills reads the whole fill ledger. Values are stored as the
// big-endian bytes of the filled quantity.
func (s *Store) LoadFills() (map[common.Hash]*big.Int, error) {
	prefix := fillPrefix()
	iter, err := s.db.NewIter(&pebble.IterOptions{
		LowerBound: prefix,
		UpperBound: keyUpperBound(prefix),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open fill iterator: %w", err)
	}
	defer iter.Close()

	fills := make(map[common.Hash]*big.Int)
	for iter.First(); iter.Valid(); iter.Next() {
		key := iter.Key()
		if len(key) != len(prefixFill)+common.HashLength {
			continue // skip malformed entries
		}
		var id common.Hash
		copy(id[:], key[len(prefixFill):])
		fills[id] = new(big.Int).SetBytes(iter.Value())
	}

	return fills, nil
}

// SaveFills writes the given fill totals in one synced batch, so the two
// legs of a settlement become durable together or not at all.
func (s *Store) SaveFills(entries map[common.Hash]*big.Int) error {
	batch := s.db.NewBatch()
	defer batch.Close()

	for id, filled := range entries {
		if err := batch.Set(fillKey(id), filled.Bytes(), nil); err != nil {
			return fmt.Errorf("failed to stage fill entry: %w", err)
		}
	}

	if err := batch.Commit(pebble.Sync); err != nil {
		return fmt.Errorf("failed to commit fill batch: %w", err)
	}
	return nil
}

// LoadEngineConfig returns the persisted admin config, or nil when the
// engine has never been initialized.
func (s *Store) LoadEngineConfig() (*dex.EngineConfig, error) {
	data, closer, err := s.db.Get([]byte(keyConfig))
	if err == pebble.ErrNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get engine config: %w", err)
	}
	defer closer.Close()

	var cfg dex.EngineConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal engine config: %w", err)
	}
	return &cfg, nil
}

// SaveEngineConfig persists the admin config.
func (s *Store) SaveEngineConfig(cfg *dex.EngineConfig) error {
	data, err := json.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal engine config: %w", err)
	}
	if err := s.db.Set([]byte(keyConfig), data, pebble.Sync); err != nil {
		return fmt.Errorf("failed to save engine config: %w", err)
	}
	return nil
}

var _ dex.FillStore = (*Store)(nil)
var _ dex.ConfigStore = (*Store)(nil)
