// Copyright 2024, Offchain Labs, Inc.
// For license information, see https://github.com/OffchainLabs/nitro/blob/master/LICENSE.md

package blockmerkle

import (
	"encoding/binary"
	"errors"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/require"

	"github.com/offchainlabs/espresso-derivation/espresso/commitment"
)

func pseudorandomForTesting(x uint64) commitment.Commitment {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], x)
	return commitment.Commitment(crypto.Keccak256Hash(buf[:]))
}

func TestEmptyTree(t *testing.T) {
	tree, err := NewTree(32)
	require.NoError(t, err)
	comm := tree.Commitment()
	require.Equal(t, common.Hash{}, comm.Root)
	require.Equal(t, uint64(0), comm.NumLeaves)
	_, err = tree.Lookup(0)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestSmallTreeRoot(t *testing.T) {
	tree, err := NewTree(2)
	require.NoError(t, err)
	items := []commitment.Commitment{pseudorandomForTesting(0), pseudorandomForTesting(1), pseudorandomForTesting(2)}
	for _, item := range items {
		require.NoError(t, tree.Push(item))
	}
	expected := internalDigest(
		internalDigest(leafDigest(items[0]), leafDigest(items[1])),
		internalDigest(leafDigest(items[2]), common.Hash{}),
	)
	require.Equal(t, expected, tree.Commitment().Root)

	require.NoError(t, tree.Push(pseudorandomForTesting(3)))
	require.ErrorIs(t, tree.Push(pseudorandomForTesting(4)), ErrTreeFull)
}

func TestMembershipProofs(t *testing.T) {
	items := make([]commitment.Commitment, 13)
	for i := range items {
		items[i] = pseudorandomForTesting(uint64(i))
	}

	tree, err := NewTree(5)
	require.NoError(t, err)
	for i, item := range items {
		require.NoError(t, tree.Push(item))
		root := tree.Commitment()
		for j := 0; j <= i; j++ {
			proof, err := tree.Lookup(uint64(j))
			require.NoError(t, err)
			require.Equal(t, items[j], proof.Leaf())
			require.Len(t, proof.Path, int(root.Height)+1)
			ok, err := Verify(root, uint64(j), &proof)
			require.NoError(t, err)
			require.True(t, ok, "leaf %d of %d", j, i+1)
		}
	}
}

func TestProofRejectsWrongPosition(t *testing.T) {
	tree, err := NewTree(4)
	require.NoError(t, err)
	for i := uint64(0); i < 6; i++ {
		require.NoError(t, tree.Push(pseudorandomForTesting(i)))
	}
	proof, err := tree.Lookup(2)
	require.NoError(t, err)
	ok, err := Verify(tree.Commitment(), 3, &proof)
	require.NoError(t, err)
	require.False(t, ok)

	proof.Pos = 3
	ok, err = Verify(tree.Commitment(), 3, &proof)
	require.NoError(t, err)
	require.False(t, ok)

	// beyond the number of leaves
	proof, err = tree.Lookup(5)
	require.NoError(t, err)
	root := tree.Commitment()
	root.NumLeaves = 5
	ok, err = Verify(root, 5, &proof)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestProofBitFlips(t *testing.T) {
	tree, err := NewTree(6)
	require.NoError(t, err)
	for i := uint64(0); i < 20; i++ {
		require.NoError(t, tree.Push(pseudorandomForTesting(i)))
	}
	root := tree.Commitment()
	proof, err := tree.Lookup(11)
	require.NoError(t, err)

	for node := range proof.Path {
		for bit := 0; bit < 8*common.HashLength; bit++ {
			tampered := MembershipProof{
				Pos:  proof.Pos,
				Elem: proof.Elem,
				Path: append([]common.Hash(nil), proof.Path...),
			}
			tampered.Path[node][bit/8] ^= 1 << (bit % 8)
			ok, err := Verify(root, 11, &tampered)
			require.NoError(t, err)
			require.False(t, ok, "flip of bit %d in node %d accepted", bit, node)
		}
	}
}

func TestMalformedProofLength(t *testing.T) {
	tree, err := NewTree(3)
	require.NoError(t, err)
	require.NoError(t, tree.Push(pseudorandomForTesting(0)))
	proof, err := tree.Lookup(0)
	require.NoError(t, err)
	proof.Path = proof.Path[:len(proof.Path)-1]
	_, err = Verify(tree.Commitment(), 0, &proof)
	require.True(t, errors.Is(err, ErrMalformedProof))
}

func TestStaleProofAfterPush(t *testing.T) {
	tree, err := NewTree(8)
	require.NoError(t, err)
	require.NoError(t, tree.Push(pseudorandomForTesting(0)))
	stale, err := tree.Lookup(0)
	require.NoError(t, err)
	require.NoError(t, tree.Push(pseudorandomForTesting(1)))

	ok, err := Verify(tree.Commitment(), 0, &stale)
	require.NoError(t, err)
	require.False(t, ok)

	fresh, err := tree.Lookup(0)
	require.NoError(t, err)
	ok, err = Verify(tree.Commitment(), 0, &fresh)
	require.NoError(t, err)
	require.True(t, ok)
}

func TestCommitmentBytes(t *testing.T) {
	c := Commitment{Root: common.HexToHash("0x01"), Height: 2, NumLeaves: 3}
	enc := c.Bytes()
	require.Len(t, enc, 44)
	require.Equal(t, byte(1), enc[31])
	require.Equal(t, uint32(2), binary.LittleEndian.Uint32(enc[32:36]))
	require.Equal(t, uint64(3), binary.LittleEndian.Uint64(enc[36:44]))
}
