// Copyright 2024, Offchain Labs, Inc.
// For license information, see https://github.com/OffchainLabs/nitro/blob/master/LICENSE.md

package testhelpers

import (
	"encoding/binary"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// PseudoRandomDataSource is a Keccak counter stream. The same salt yields the same data on every
// run, so failures reproduce.
type PseudoRandomDataSource struct {
	salt    common.Hash
	counter uint64
}

// The testing.T parameter keeps the source out of non-test code.
func NewPseudoRandomDataSource(_ *testing.T, salt int) *PseudoRandomDataSource {
	return &PseudoRandomDataSource{
		salt: crypto.Keccak256Hash([]byte("pseudorandom"), binary.BigEndian.AppendUint64(nil, uint64(salt))),
	}
}

func (r *PseudoRandomDataSource) GetHash() common.Hash {
	r.counter++
	return crypto.Keccak256Hash(r.salt[:], binary.BigEndian.AppendUint64(nil, r.counter))
}

func (r *PseudoRandomDataSource) GetUint64() uint64 {
	return binary.BigEndian.Uint64(r.GetHash().Bytes()[:8])
}

func (r *PseudoRandomDataSource) GetUint32() uint32 {
	return uint32(r.GetUint64())
}

// GetRange returns a value in [min, max].
func (r *PseudoRandomDataSource) GetRange(min, max uint64) uint64 {
	return min + r.GetUint64()%(max-min+1)
}

func (r *PseudoRandomDataSource) GetData(size int) []byte {
	ret := make([]byte, 0, size+common.HashLength)
	for len(ret) < size {
		ret = append(ret, r.GetHash().Bytes()...)
	}
	return ret[:size]
}
