// Copyright 2024, Offchain Labs, Inc.
// For license information, see https://github.com/OffchainLabs/nitro/blob/master/LICENSE.md

package blockmerkle

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"

	"github.com/offchainlabs/espresso-derivation/espresso/commitment"
)

// MembershipProof proves that Elem is the leaf at Pos. Path[0] is the digest of the leaf itself
// and Path[1:] are the sibling digests from the bottom of the tree up, so a proof for a tree of
// height h has h+1 entries.
type MembershipProof struct {
	Pos  uint64
	Elem commitment.Commitment
	Path []common.Hash
}

// Leaf returns the element the proof claims is stored at its position.
func (p *MembershipProof) Leaf() commitment.Commitment {
	return p.Elem
}

// Verify checks proof against root at the given position. It does not know which element is
// expected at pos; callers compare proof.Leaf() with the commitment they trust.
func Verify(root Commitment, pos uint64, proof *MembershipProof) (bool, error) {
	if uint64(len(proof.Path)) != uint64(root.Height)+1 {
		return false, fmt.Errorf("%w: path length %d for tree height %d", ErrMalformedProof, len(proof.Path), root.Height)
	}
	if proof.Pos != pos || pos >= root.NumLeaves {
		return false, nil
	}
	hash := leafDigest(proof.Elem)
	if hash != proof.Path[0] {
		return false, nil
	}
	index := pos
	for _, sibling := range proof.Path[1:] {
		if index&1 == 0 {
			hash = internalDigest(hash, sibling)
		} else {
			hash = internalDigest(sibling, hash)
		}
		index >>= 1
	}
	if index != 0 {
		return false, nil
	}
	return hash == root.Root, nil
}
