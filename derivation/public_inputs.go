// Copyright 2024, Offchain Labs, Inc.
// For license information, see https://github.com/OffchainLabs/nitro/blob/master/LICENSE.md

package derivation

import (
	"crypto/sha256"

	"github.com/ethereum/go-ethereum/common"

	"github.com/offchainlabs/espresso-derivation/espresso"
	"github.com/offchainlabs/espresso-derivation/espresso/blockmerkle"
	"github.com/offchainlabs/espresso-derivation/espresso/vid"
)

// BlockSummary records which block supplied which slice of the rollup payload.
type BlockSummary struct {
	Range  Range
	Height uint64
}

// PublicInputs is the record committed to the output channel.
type PublicInputs struct {
	VerificationResult  bool
	RollupTxsCommit     common.Hash
	VidParamHash        common.Hash
	NamespaceID         espresso.NamespaceID
	BlockMerkleTreeComm blockmerkle.Commitment
	Blocks              []BlockSummary
}

// RollupTxsCommit is the commitment to the whole rollup payload.
func RollupTxsCommit(payload []byte) common.Hash {
	return sha256.Sum256(payload)
}

type PublicInputsBuilder struct {
	rollupTxsCommit common.Hash
	vidParamHash    common.Hash
	namespaceID     espresso.NamespaceID
	root            blockmerkle.Commitment
	blocks          []BlockSummary
	rejected        bool
}

func NewPublicInputsBuilder(payload []byte, param *vid.Param, namespaceID espresso.NamespaceID, root blockmerkle.Commitment) *PublicInputsBuilder {
	return &PublicInputsBuilder{
		rollupTxsCommit: RollupTxsCommit(payload),
		vidParamHash:    param.Hash(),
		namespaceID:     namespaceID,
		root:            root,
	}
}

func (b *PublicInputsBuilder) AddBlock(r Range, height uint64) {
	b.blocks = append(b.blocks, BlockSummary{Range: r, Height: height})
}

// Reject marks the run as failed. It cannot be undone.
func (b *PublicInputsBuilder) Reject() {
	b.rejected = true
}

func (b *PublicInputsBuilder) Build(includeBlocks bool) *PublicInputs {
	out := &PublicInputs{
		VerificationResult:  !b.rejected,
		RollupTxsCommit:     b.rollupTxsCommit,
		VidParamHash:        b.vidParamHash,
		NamespaceID:         b.namespaceID,
		BlockMerkleTreeComm: b.root,
	}
	if includeBlocks {
		out.Blocks = append([]BlockSummary{}, b.blocks...)
	}
	return out
}
