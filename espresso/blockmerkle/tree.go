// Copyright 2024, Offchain Labs, Inc.
// For license information, see https://github.com/OffchainLabs/nitro/blob/master/LICENSE.md

// Package blockmerkle implements the block Merkle tree: an append-only, fixed-height binary
// Merkle tree whose leaves are Espresso block header commitments, indexed by block height.
package blockmerkle

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"golang.org/x/crypto/sha3"

	"github.com/offchainlabs/espresso-derivation/espresso/commitment"
)

const MaxHeight = 63

var (
	ErrTreeFull       = errors.New("block merkle tree is full")
	ErrMalformedProof = errors.New("malformed membership proof")
	ErrNotFound       = errors.New("leaf not found")
)

const (
	leafDomain     byte = 0
	internalDomain byte = 1
)

func leafDigest(elem commitment.Commitment) common.Hash {
	hasher := sha3.New256()
	hasher.Write([]byte{leafDomain})
	hasher.Write(elem[:])
	return common.BytesToHash(hasher.Sum(nil))
}

func internalDigest(left, right common.Hash) common.Hash {
	hasher := sha3.New256()
	hasher.Write([]byte{internalDomain})
	hasher.Write(left[:])
	hasher.Write(right[:])
	return common.BytesToHash(hasher.Sum(nil))
}

// Commitment summarizes a tree: its root digest, its fixed height and how many leaves it holds.
type Commitment struct {
	Root      common.Hash
	Height    uint32
	NumLeaves uint64
}

// Bytes is the canonical encoding: root || height (u32 LE) || num_leaves (u64 LE).
func (c Commitment) Bytes() []byte {
	buf := make([]byte, 0, common.HashLength+4+8)
	buf = append(buf, c.Root[:]...)
	buf = binary.LittleEndian.AppendUint32(buf, c.Height)
	buf = binary.LittleEndian.AppendUint64(buf, c.NumLeaves)
	return buf
}

func (c Commitment) String() string {
	return fmt.Sprintf("{root: %v, height: %d, leaves: %d}", c.Root, c.Height, c.NumLeaves)
}

type node interface {
	Hash() common.Hash
	Size() uint64
	Capacity() uint64
	Append(elem commitment.Commitment) node
	prove(pos uint64, siblings []common.Hash) (commitment.Commitment, []common.Hash)
}

type leafNode struct {
	elem commitment.Commitment
	hash common.Hash
}

func newLeaf(elem commitment.Commitment) node {
	return &leafNode{elem: elem, hash: leafDigest(elem)}
}

func (l *leafNode) Hash() common.Hash     { return l.hash }
func (l *leafNode) Size() uint64          { return 1 }
func (l *leafNode) Capacity() uint64      { return 1 }
func (l *leafNode) Append(commitment.Commitment) node {
	panic("append to a full leaf")
}

func (l *leafNode) prove(_ uint64, siblings []common.Hash) (commitment.Commitment, []common.Hash) {
	return l.elem, siblings
}

type emptyNode struct {
	capacity uint64
}

func (e *emptyNode) Hash() common.Hash { return common.Hash{} }
func (e *emptyNode) Size() uint64      { return 0 }
func (e *emptyNode) Capacity() uint64  { return e.capacity }

func (e *emptyNode) Append(elem commitment.Commitment) node {
	if e.capacity <= 1 {
		return newLeaf(elem)
	}
	halfSizeEmpty := &emptyNode{e.capacity / 2}
	return newInternal(halfSizeEmpty.Append(elem), halfSizeEmpty)
}

func (e *emptyNode) prove(uint64, []common.Hash) (commitment.Commitment, []common.Hash) {
	panic("proof requested for an empty subtree")
}

type internalNode struct {
	hash     common.Hash
	size     uint64
	capacity uint64
	left     node
	right    node
}

func newInternal(left, right node) node {
	return &internalNode{
		hash:     internalDigest(left.Hash(), right.Hash()),
		size:     left.Size() + right.Size(),
		capacity: left.Capacity() + right.Capacity(),
		left:     left,
		right:    right,
	}
}

func (n *internalNode) Hash() common.Hash { return n.hash }
func (n *internalNode) Size() uint64      { return n.size }
func (n *internalNode) Capacity() uint64  { return n.capacity }

func (n *internalNode) Append(elem commitment.Commitment) node {
	if 2*n.size < n.capacity {
		return newInternal(n.left.Append(elem), n.right)
	}
	return newInternal(n.left, n.right.Append(elem))
}

func (n *internalNode) prove(pos uint64, siblings []common.Hash) (commitment.Commitment, []common.Hash) {
	half := n.capacity / 2
	if pos < half {
		return n.left.prove(pos, append(siblings, n.right.Hash()))
	}
	return n.right.prove(pos-half, append(siblings, n.left.Hash()))
}

// Tree is the append-only block Merkle tree. Nodes are immutable, so pushing a leaf never
// invalidates a Tree value captured earlier, only the proofs taken against its old root.
type Tree struct {
	height uint32
	root   node
}

func NewTree(height uint32) (*Tree, error) {
	if height > MaxHeight {
		return nil, fmt.Errorf("block merkle tree height %d exceeds maximum %d", height, MaxHeight)
	}
	return &Tree{
		height: height,
		root:   &emptyNode{capacity: uint64(1) << height},
	}, nil
}

func (t *Tree) Height() uint32 {
	return t.height
}

func (t *Tree) NumLeaves() uint64 {
	return t.root.Size()
}

func (t *Tree) Push(elem commitment.Commitment) error {
	if t.root.Size() == t.root.Capacity() {
		return ErrTreeFull
	}
	t.root = t.root.Append(elem)
	return nil
}

func (t *Tree) Commitment() Commitment {
	return Commitment{
		Root:      t.root.Hash(),
		Height:    t.height,
		NumLeaves: t.root.Size(),
	}
}

// Lookup returns the leaf at pos together with a membership proof against the current root.
func (t *Tree) Lookup(pos uint64) (MembershipProof, error) {
	if pos >= t.root.Size() {
		return MembershipProof{}, fmt.Errorf("%w: position %d, tree holds %d leaves", ErrNotFound, pos, t.root.Size())
	}
	elem, topDown := t.root.prove(pos, make([]common.Hash, 0, t.height))
	path := make([]common.Hash, 0, len(topDown)+1)
	path = append(path, leafDigest(elem))
	for i := len(topDown) - 1; i >= 0; i-- {
		path = append(path, topDown[i])
	}
	return MembershipProof{
		Pos:  pos,
		Elem: elem,
		Path: path,
	}, nil
}
