// Copyright 2022, Offchain Labs, Inc.
// For license information, see https://github.com/OffchainLabs/nitro/blob/master/LICENSE.md

package blockstore

import (
	"github.com/allegro/bigcache"
)

// BigCacheKVStore serves repeated reads from memory. Writes go through to the base store.
type BigCacheKVStore struct {
	base     KVStore
	bigCache *bigcache.BigCache
}

func NewBigCacheKVStore(config BigCacheConfig, base KVStore) (*BigCacheKVStore, error) {
	bigCache, err := bigcache.NewBigCache(bigcache.DefaultConfig(config.Expiration))
	if err != nil {
		return nil, err
	}
	return &BigCacheKVStore{base: base, bigCache: bigCache}, nil
}

func (s *BigCacheKVStore) Get(key []byte) ([]byte, error) {
	ret, err := s.bigCache.Get(string(key))
	if err == nil {
		return ret, nil
	}
	ret, err = s.base.Get(key)
	if err != nil {
		return nil, err
	}
	if err := s.bigCache.Set(string(key), ret); err != nil {
		return nil, err
	}
	return ret, nil
}

func (s *BigCacheKVStore) Put(key []byte, value []byte) error {
	if err := s.base.Put(key, value); err != nil {
		return err
	}
	return s.bigCache.Set(string(key), value)
}

func (s *BigCacheKVStore) Close() error {
	if err := s.bigCache.Close(); err != nil {
		return err
	}
	return s.base.Close()
}

func (s *BigCacheKVStore) String() string {
	return "BigCacheKVStore(" + s.base.String() + ")"
}
