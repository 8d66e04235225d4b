// Copyright 2024, Offchain Labs, Inc.
// For license information, see https://github.com/OffchainLabs/nitro/blob/master/LICENSE.md

package espresso

import (
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"github.com/offchainlabs/espresso-derivation/espresso/blockmerkle"
	"github.com/offchainlabs/espresso-derivation/espresso/commitment"
	"github.com/offchainlabs/espresso-derivation/espresso/vid"
)

var ErrInvalidChainConfig = errors.New("chain config must be either a full value or a commitment")

// ChainConfig holds the global parameters of an Espresso chain.
type ChainConfig struct {
	ChainID      *uint256.Int
	MaxBlockSize uint64
	// Minimum fee in WEI per byte of payload.
	BaseFee *uint256.Int
	// Fee contract on L1. Optional so that fees can be toggled without deploying a contract.
	FeeContract  *common.Address `rlp:"nil"`
	FeeRecipient common.Address
}

func (c *ChainConfig) Commit() commitment.Commitment {
	b := commitment.NewRawCommitmentBuilder("CHAIN_CONFIG").
		Uint256Field("chain_id", c.ChainID).
		Uint64Field("max_block_size", c.MaxBlockSize).
		Uint256Field("base_fee", c.BaseFee).
		FixedSizeField("fee_recipient", c.FeeRecipient.Bytes())
	if c.FeeContract != nil {
		b.Uint64Field("fee_contract", 1).FixedSizeBytes(c.FeeContract.Bytes())
	} else {
		b.Uint64Field("fee_contract", 0)
	}
	return b.Finalize()
}

// ResolvableChainConfig carries either the full chain config or only its commitment. A value with
// neither set stands for the default chain config.
type ResolvableChainConfig struct {
	Full       *ChainConfig           `rlp:"nil"`
	Commitment *commitment.Commitment `rlp:"nil"`
}

func ResolvableFromChainConfig(config ChainConfig) ResolvableChainConfig {
	return ResolvableChainConfig{Full: &config}
}

func ResolvableFromCommitment(comm commitment.Commitment) ResolvableChainConfig {
	return ResolvableChainConfig{Commitment: &comm}
}

func (r *ResolvableChainConfig) Validate() error {
	if r.Full != nil && r.Commitment != nil {
		return ErrInvalidChainConfig
	}
	return nil
}

func (r *ResolvableChainConfig) Commit() commitment.Commitment {
	switch {
	case r.Full != nil:
		return r.Full.Commit()
	case r.Commitment != nil:
		return *r.Commitment
	default:
		return (&ChainConfig{}).Commit()
	}
}

// Resolve returns the full chain config, or nil if only the commitment is known.
func (r *ResolvableChainConfig) Resolve() *ChainConfig {
	if r.Full != nil {
		return r.Full
	}
	if r.Commitment != nil {
		return nil
	}
	return &ChainConfig{}
}

type L1BlockInfo struct {
	Number    uint64
	Timestamp *uint256.Int
	Hash      common.Hash
}

func (i *L1BlockInfo) Commit() commitment.Commitment {
	return commitment.NewRawCommitmentBuilder("L1BLOCK").
		Uint64Field("number", i.Number).
		ConstantString("timestamp").
		FixedSizeBytes(commitment.Uint256LittleEndian(i.Timestamp)).
		ConstantString("hash").
		FixedSizeBytes(i.Hash.Bytes()).
		Finalize()
}

// FeeInfo holds data related to builder fees.
type FeeInfo struct {
	Account common.Address
	Amount  *uint256.Int
}

func (f *FeeInfo) Commit() commitment.Commitment {
	return commitment.NewRawCommitmentBuilder("FEE_INFO").
		FixedSizeField("account", f.Account.Bytes()).
		Uint256Field("amount", f.Amount).
		Finalize()
}

// Header is the committed metadata of one Espresso block. Its commitment is the leaf stored in the
// block Merkle tree.
type Header struct {
	ChainConfig ResolvableChainConfig
	Height      uint64
	Timestamp   uint64
	L1Head      uint64
	L1Finalized *L1BlockInfo `rlp:"nil"`

	PayloadCommitment vid.Commitment
	BuilderCommitment [32]byte
	NsTable           NsTable
	// Block Merkle tree as of the parent of this block.
	BlockMerkleTreeRoot blockmerkle.Commitment
	// Serialized root of the fee Merkle tree. Opaque here.
	FeeMerkleTreeRoot []byte
	FeeInfo           FeeInfo
}

func (h *Header) Validate() error {
	if err := h.ChainConfig.Validate(); err != nil {
		return fmt.Errorf("header %d: %w", h.Height, err)
	}
	if err := h.NsTable.Validate(); err != nil {
		return fmt.Errorf("header %d: %w", h.Height, err)
	}
	return nil
}

// Commit computes the header commitment. The tag, field names and field order are part of the
// Espresso protocol and must not change.
func (h *Header) Commit() commitment.Commitment {
	var l1Finalized *commitment.Commitment
	if h.L1Finalized != nil {
		comm := h.L1Finalized.Commit()
		l1Finalized = &comm
	}
	return commitment.NewRawCommitmentBuilder("BLOCK").
		CommittableField("chain_config", &h.ChainConfig).
		Uint64Field("height", h.Height).
		Uint64Field("timestamp", h.Timestamp).
		Uint64Field("l1_head", h.L1Head).
		OptionalField("l1_finalized", l1Finalized).
		ConstantString("payload_commitment").
		FixedSizeBytes(h.PayloadCommitment[:]).
		ConstantString("builder_commitment").
		FixedSizeBytes(h.BuilderCommitment[:]).
		CommittableField("ns_table", h.NsTable).
		VarSizeField("block_merkle_tree_root", h.BlockMerkleTreeRoot.Bytes()).
		VarSizeField("fee_merkle_tree_root", h.FeeMerkleTreeRoot).
		CommittableField("fee_info", &h.FeeInfo).
		Finalize()
}
