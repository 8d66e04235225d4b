// Copyright 2024, Offchain Labs, Inc.
// For license information, see https://github.com/OffchainLabs/nitro/blob/master/LICENSE.md

package blockstore

import (
	"errors"
	"fmt"
	"time"

	flag "github.com/spf13/pflag"
)

var ErrNotFound = errors.New("not found")

// KVStore is the raw key-value backend of a block store.
type KVStore interface {
	Get(key []byte) ([]byte, error)
	Put(key []byte, value []byte) error
	Close() error
	fmt.Stringer
}

const (
	EnginePebble = "pebble"
	EngineBadger = "badger"
)

type Config struct {
	Engine   string         `koanf:"engine"`
	DataDir  string         `koanf:"data-dir"`
	InMemory bool           `koanf:"in-memory"`
	Cache    BigCacheConfig `koanf:"cache"`
}

var DefaultConfig = Config{
	Engine:   EnginePebble,
	DataDir:  "mockchain",
	InMemory: false,
	Cache:    DefaultBigCacheConfig,
}

func ConfigAddOptions(prefix string, f *flag.FlagSet) {
	f.String(prefix+".engine", DefaultConfig.Engine, "backing database implementation to use ('pebble' or 'badger')")
	f.String(prefix+".data-dir", DefaultConfig.DataDir, "directory in which to store the block database")
	f.Bool(prefix+".in-memory", DefaultConfig.InMemory, "keep the block database in memory only")
	BigCacheConfigAddOptions(prefix+".cache", f)
}

type BigCacheConfig struct {
	Enable     bool          `koanf:"enable"`
	Expiration time.Duration `koanf:"expiration"`
}

var DefaultBigCacheConfig = BigCacheConfig{
	Enable:     false,
	Expiration: time.Hour,
}

func BigCacheConfigAddOptions(prefix string, f *flag.FlagSet) {
	f.Bool(prefix+".enable", DefaultBigCacheConfig.Enable, "enable local in-memory caching of stored blocks")
	f.Duration(prefix+".expiration", DefaultBigCacheConfig.Expiration, "expiration time for in-memory cached blocks")
}

// OpenKVStore opens the configured backend, wrapped in a read cache if enabled.
func OpenKVStore(config *Config) (KVStore, error) {
	var store KVStore
	var err error
	switch config.Engine {
	case EnginePebble:
		store, err = NewPebbleKVStore(config.DataDir, config.InMemory)
	case EngineBadger:
		store, err = NewBadgerKVStore(config.DataDir, config.InMemory)
	default:
		return nil, fmt.Errorf("unknown block store engine %q", config.Engine)
	}
	if err != nil {
		return nil, err
	}
	if config.Cache.Enable {
		cached, err := NewBigCacheKVStore(config.Cache, store)
		if err != nil {
			return nil, errors.Join(err, store.Close())
		}
		return cached, nil
	}
	return store, nil
}
