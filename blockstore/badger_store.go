// Copyright 2022, Offchain Labs, Inc.
// For license information, see https://github.com/OffchainLabs/nitro/blob/master/LICENSE.md

package blockstore

import (
	"errors"
	"fmt"

	badger "github.com/dgraph-io/badger/v3"
)

type BadgerKVStore struct {
	db      *badger.DB
	dirPath string
}

func NewBadgerKVStore(dirPath string, inMemory bool) (*BadgerKVStore, error) {
	opts := badger.DefaultOptions(dirPath).WithLogger(nil)
	if inMemory {
		opts = badger.DefaultOptions("").WithInMemory(true).WithLogger(nil)
	}
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("error opening badger database at %s: %w", dirPath, err)
	}
	return &BadgerKVStore{db: db, dirPath: dirPath}, nil
}

func (s *BadgerKVStore) Get(key []byte) ([]byte, error) {
	var ret []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		if err != nil {
			return err
		}
		ret, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, ErrNotFound
	}
	return ret, err
}

func (s *BadgerKVStore) Put(key []byte, value []byte) error {
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.SetEntry(badger.NewEntry(key, value))
	})
}

func (s *BadgerKVStore) Close() error {
	return s.db.Close()
}

func (s *BadgerKVStore) String() string {
	return "BadgerKVStore(" + s.dirPath + ")"
}
