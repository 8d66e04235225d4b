// Copyright 2024, Offchain Labs, Inc.
// For license information, see https://github.com/OffchainLabs/nitro/blob/master/LICENSE.md

// Package commitment implements Espresso's committable hashing. An object commits to a Keccak-256
// hash over its tag followed by named fields, so two implementations only agree when tag, field
// names, field order and field encodings all match.
package commitment

import (
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"io"
	"unicode/utf8"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/holiman/uint256"
)

type Commitment [32]byte

func (c Commitment) Bytes() []byte {
	return c[:]
}

func (c Commitment) String() string {
	return "0x" + hex.EncodeToString(c[:])
}

type Committable interface {
	Commit() Commitment
}

// stringTerminator can never occur inside valid UTF-8, so it ends constant strings unambiguously.
var stringTerminator = []byte{0xC0, 0x7F}

type RawCommitmentBuilder struct {
	hasher crypto.KeccakState
}

func NewRawCommitmentBuilder(tag string) *RawCommitmentBuilder {
	b := &RawCommitmentBuilder{hasher: crypto.NewKeccakState()}
	return b.ConstantString(tag)
}

func (b *RawCommitmentBuilder) write(data []byte) *RawCommitmentBuilder {
	// KeccakState writes never fail
	_, _ = b.hasher.Write(data)
	return b
}

// ConstantString hashes s without a length prefix. Only pass strings fixed by the committed type,
// never data.
func (b *RawCommitmentBuilder) ConstantString(s string) *RawCommitmentBuilder {
	if !utf8.ValidString(s) {
		panic(fmt.Sprintf("commitment string is not valid UTF-8: %q", s))
	}
	_, _ = io.WriteString(b.hasher, s)
	return b.write(stringTerminator)
}

func (b *RawCommitmentBuilder) Field(name string, c Commitment) *RawCommitmentBuilder {
	return b.ConstantString(name).write(c[:])
}

// CommittableField hashes the commitment of a nested object.
func (b *RawCommitmentBuilder) CommittableField(name string, c Committable) *RawCommitmentBuilder {
	return b.Field(name, c.Commit())
}

// OptionalField writes a u64 flag so that a missing value and a zero value hash differently.
func (b *RawCommitmentBuilder) OptionalField(name string, c *Commitment) *RawCommitmentBuilder {
	b.ConstantString(name)
	if c == nil {
		return b.Uint64(0)
	}
	return b.Uint64(1).write(c[:])
}

func (b *RawCommitmentBuilder) Uint64Field(name string, n uint64) *RawCommitmentBuilder {
	return b.ConstantString(name).Uint64(n)
}

func (b *RawCommitmentBuilder) Uint64(n uint64) *RawCommitmentBuilder {
	return b.write(binary.LittleEndian.AppendUint64(nil, n))
}

func (b *RawCommitmentBuilder) Uint256Field(name string, n *uint256.Int) *RawCommitmentBuilder {
	return b.ConstantString(name).write(Uint256LittleEndian(n))
}

// Uint256LittleEndian is the 32 byte little endian form of n. nil encodes as zero.
func Uint256LittleEndian(n *uint256.Int) []byte {
	var out [32]byte
	if n == nil {
		return out[:]
	}
	be := n.Bytes32()
	for i := range be {
		out[31-i] = be[i]
	}
	return out[:]
}

// FixedSizeField hashes bytes without a length prefix. The length must be fixed by the type.
func (b *RawCommitmentBuilder) FixedSizeField(name string, data []byte) *RawCommitmentBuilder {
	return b.ConstantString(name).write(data)
}

func (b *RawCommitmentBuilder) FixedSizeBytes(data []byte) *RawCommitmentBuilder {
	return b.write(data)
}

func (b *RawCommitmentBuilder) VarSizeField(name string, data []byte) *RawCommitmentBuilder {
	return b.ConstantString(name).VarSizeBytes(data)
}

// VarSizeBytes prefixes data with its u64 length.
func (b *RawCommitmentBuilder) VarSizeBytes(data []byte) *RawCommitmentBuilder {
	return b.Uint64(uint64(len(data))).write(data)
}

func (b *RawCommitmentBuilder) Finalize() Commitment {
	var c Commitment
	copy(c[:], b.hasher.Sum(nil))
	return c
}
