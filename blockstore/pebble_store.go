// Copyright 2024, Offchain Labs, Inc.
// For license information, see https://github.com/OffchainLabs/nitro/blob/master/LICENSE.md

package blockstore

import (
	"errors"
	"fmt"

	"github.com/cockroachdb/pebble"
	"github.com/cockroachdb/pebble/vfs"
)

type PebbleKVStore struct {
	db      *pebble.DB
	dirPath string
}

func NewPebbleKVStore(dirPath string, inMemory bool) (*PebbleKVStore, error) {
	opts := &pebble.Options{}
	if inMemory {
		opts.FS = vfs.NewMem()
	}
	db, err := pebble.Open(dirPath, opts)
	if err != nil {
		return nil, fmt.Errorf("error opening pebble database at %s: %w", dirPath, err)
	}
	return &PebbleKVStore{db: db, dirPath: dirPath}, nil
}

func (s *PebbleKVStore) Get(key []byte) ([]byte, error) {
	value, closer, err := s.db.Get(key)
	if errors.Is(err, pebble.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	ret := append([]byte{}, value...)
	return ret, closer.Close()
}

func (s *PebbleKVStore) Put(key []byte, value []byte) error {
	return s.db.Set(key, value, pebble.Sync)
}

func (s *PebbleKVStore) Close() error {
	return s.db.Close()
}

func (s *PebbleKVStore) String() string {
	return "PebbleKVStore(" + s.dirPath + ")"
}
