// Copyright 2024, Offchain Labs, Inc.
// For license information, see https://github.com/OffchainLabs/nitro/blob/master/LICENSE.md

// Package blockstore persists mock Espresso chains so derivation inputs can be rebuilt later.
package blockstore

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/log"
	"github.com/ethereum/go-ethereum/rlp"

	"github.com/offchainlabs/espresso-derivation/espresso"
	"github.com/offchainlabs/espresso-derivation/espresso/vid"
)

var (
	blockPrefix = []byte("b")
	metaKey     = []byte("meta")
	paramKey    = []byte("param")
)

// Block is everything needed to prove a slice of a block: its header, its full payload and the
// VID common data produced at dispersal.
type Block struct {
	Header    espresso.Header
	Payload   []byte
	VidCommon vid.Common
}

// Meta describes the chain a store holds.
type Meta struct {
	TreeHeight      uint32
	NumStorageNodes uint32
	NumBlocks       uint64
}

type BlockStore struct {
	kv KVStore
}

func New(kv KVStore) *BlockStore {
	return &BlockStore{kv: kv}
}

func Open(config *Config) (*BlockStore, error) {
	kv, err := OpenKVStore(config)
	if err != nil {
		return nil, err
	}
	log.Info("opened block store", "store", kv)
	return New(kv), nil
}

func blockKey(height uint64) []byte {
	return binary.BigEndian.AppendUint64(append([]byte{}, blockPrefix...), height)
}

func (s *BlockStore) Meta() (*Meta, error) {
	data, err := s.kv.Get(metaKey)
	if err != nil {
		return nil, err
	}
	var meta Meta
	if err := rlp.DecodeBytes(data, &meta); err != nil {
		return nil, fmt.Errorf("error decoding block store meta: %w", err)
	}
	return &meta, nil
}

func (s *BlockStore) PutMeta(meta *Meta) error {
	data, err := rlp.EncodeToBytes(meta)
	if err != nil {
		return err
	}
	return s.kv.Put(metaKey, data)
}

// AppendBlock stores block at the next height and bumps the block count. The block's header
// height must match.
func (s *BlockStore) AppendBlock(block *Block) error {
	meta, err := s.Meta()
	if err != nil {
		return err
	}
	if block.Header.Height != meta.NumBlocks {
		return fmt.Errorf("appending block at height %d to store with %d blocks", block.Header.Height, meta.NumBlocks)
	}
	data, err := rlp.EncodeToBytes(block)
	if err != nil {
		return err
	}
	if err := s.kv.Put(blockKey(meta.NumBlocks), data); err != nil {
		return err
	}
	meta.NumBlocks++
	return s.PutMeta(meta)
}

func (s *BlockStore) Block(height uint64) (*Block, error) {
	data, err := s.kv.Get(blockKey(height))
	if errors.Is(err, ErrNotFound) {
		return nil, fmt.Errorf("block %d: %w", height, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	var block Block
	if err := rlp.DecodeBytes(data, &block); err != nil {
		return nil, fmt.Errorf("error decoding block %d: %w", height, err)
	}
	return &block, nil
}

func (s *BlockStore) PutParam(param *vid.Param) error {
	return s.kv.Put(paramKey, param.Bytes())
}

func (s *BlockStore) Param() (*vid.Param, error) {
	data, err := s.kv.Get(paramKey)
	if err != nil {
		return nil, err
	}
	return vid.ParamFromBytes(data)
}

func (s *BlockStore) Close() error {
	return s.kv.Close()
}
