// Copyright 2024, Offchain Labs, Inc.
// For license information, see https://github.com/OffchainLabs/nitro/blob/master/LICENSE.md

// Package mockchain produces Espresso blocks and derivation proofs for tests and tooling. Blocks
// carry real VID commitments and live in a real block Merkle tree; only the consensus around
// them is missing.
package mockchain

import (
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/log"

	"github.com/offchainlabs/espresso-derivation/blockstore"
	"github.com/offchainlabs/espresso-derivation/derivation"
	"github.com/offchainlabs/espresso-derivation/espresso"
	"github.com/offchainlabs/espresso-derivation/espresso/blockmerkle"
	"github.com/offchainlabs/espresso-derivation/espresso/vid"
)

var ErrNamespaceMissing = errors.New("namespace missing from block")

// NamespacePayload is the data one namespace contributes to a block.
type NamespacePayload struct {
	ID   espresso.NamespaceID
	Data []byte
}

type Chain struct {
	param  *vid.Param
	scheme *vid.Scheme
	tree   *blockmerkle.Tree
	blocks []*blockstore.Block
	store  *blockstore.BlockStore
}

func NewChain(param *vid.Param, numStorageNodes uint32, treeHeight uint32) (*Chain, error) {
	scheme, err := vid.NewScheme(numStorageNodes, param)
	if err != nil {
		return nil, err
	}
	tree, err := blockmerkle.NewTree(treeHeight)
	if err != nil {
		return nil, err
	}
	return &Chain{param: param, scheme: scheme, tree: tree}, nil
}

// Persist writes the chain so far to store and keeps appending future blocks to it.
func (c *Chain) Persist(store *blockstore.BlockStore) error {
	if err := store.PutParam(c.param); err != nil {
		return err
	}
	meta := &blockstore.Meta{
		TreeHeight:      c.tree.Height(),
		NumStorageNodes: c.scheme.NumStorageNodes(),
	}
	if err := store.PutMeta(meta); err != nil {
		return err
	}
	for _, block := range c.blocks {
		if err := store.AppendBlock(block); err != nil {
			return err
		}
	}
	c.store = store
	return nil
}

// LoadChain rebuilds a chain from a store written by Persist.
func LoadChain(store *blockstore.BlockStore) (*Chain, error) {
	meta, err := store.Meta()
	if err != nil {
		return nil, fmt.Errorf("error reading block store meta: %w", err)
	}
	param, err := store.Param()
	if err != nil {
		return nil, fmt.Errorf("error reading VID parameters: %w", err)
	}
	chain, err := NewChain(param, meta.NumStorageNodes, meta.TreeHeight)
	if err != nil {
		return nil, err
	}
	for height := uint64(0); height < meta.NumBlocks; height++ {
		block, err := store.Block(height)
		if err != nil {
			return nil, err
		}
		if block.Header.BlockMerkleTreeRoot != chain.tree.Commitment() {
			return nil, fmt.Errorf("stored block %d does not extend the rebuilt block tree", height)
		}
		if err := chain.tree.Push(block.Header.Commit()); err != nil {
			return nil, err
		}
		chain.blocks = append(chain.blocks, block)
	}
	chain.store = store
	log.Info("loaded mock chain", "blocks", meta.NumBlocks, "root", chain.tree.Commitment())
	return chain, nil
}

func (c *Chain) Param() *vid.Param {
	return c.param
}

func (c *Chain) Scheme() *vid.Scheme {
	return c.scheme
}

func (c *Chain) NumBlocks() uint64 {
	return uint64(len(c.blocks))
}

func (c *Chain) Root() blockmerkle.Commitment {
	return c.tree.Commitment()
}

func (c *Chain) Block(height uint64) (*blockstore.Block, error) {
	if height >= c.NumBlocks() {
		return nil, fmt.Errorf("block %d not in chain of %d blocks", height, c.NumBlocks())
	}
	return c.blocks[height], nil
}

// AppendBlock builds a block whose payload is the namespaces laid out in order, commits it and
// pushes its header into the block tree.
func (c *Chain) AppendBlock(namespaces []NamespacePayload) (*blockstore.Block, error) {
	var payload []byte
	entries := make([]espresso.NsTableEntry, len(namespaces))
	for i, ns := range namespaces {
		payload = append(payload, ns.Data...)
		entries[i] = espresso.NsTableEntry{ID: ns.ID, End: uint32(len(payload))}
	}
	dispersal, err := c.scheme.Disperse(payload)
	if err != nil {
		return nil, err
	}
	header := templateHeader(c.NumBlocks())
	header.PayloadCommitment = dispersal.Commit
	header.NsTable = espresso.NewNsTable(entries)
	header.BlockMerkleTreeRoot = c.tree.Commitment()
	header.BuilderCommitment = builderCommitment(payload)

	block := &blockstore.Block{
		Header:    header,
		Payload:   payload,
		VidCommon: dispersal.Common,
	}
	if err := c.tree.Push(header.Commit()); err != nil {
		return nil, err
	}
	c.blocks = append(c.blocks, block)
	if c.store != nil {
		if err := c.store.AppendBlock(block); err != nil {
			return nil, err
		}
	}
	log.Debug("appended mock block", "height", header.Height, "payloadLen", len(payload), "namespaces", len(namespaces))
	return block, nil
}

// DerivationProof proves the namespace slice of a block against the current root. Proofs taken
// before later pushes are stale and must be requested again.
func (c *Chain) DerivationProof(height uint64, namespace espresso.NamespaceID) (*derivation.BlockDerivationProof, []byte, error) {
	block, err := c.Block(height)
	if err != nil {
		return nil, nil, err
	}
	start, end, found, err := block.Header.NsTable.ScanForID(namespace)
	if err != nil {
		return nil, nil, err
	}
	if !found {
		return nil, nil, fmt.Errorf("%w: namespace %d in block %d", ErrNamespaceMissing, namespace, height)
	}
	nsProof, err := c.scheme.PayloadProof(block.Payload, uint64(start), uint64(end))
	if err != nil {
		return nil, nil, err
	}
	membership, err := c.tree.Lookup(height)
	if err != nil {
		return nil, nil, err
	}
	return &derivation.BlockDerivationProof{
		MembershipProof: membership,
		Header:          block.Header,
		VidCommon:       block.VidCommon,
		NsProof:         *nsProof,
	}, block.Payload[start:end], nil
}

// Inputs collects the namespace data of blocks [from, to) into a rollup payload with one proof
// per block. Blocks without the namespace are skipped.
func (c *Chain) Inputs(namespace espresso.NamespaceID, from, to uint64) (*derivation.Inputs, error) {
	if from > to || to > c.NumBlocks() {
		return nil, fmt.Errorf("block range [%d, %d) outside chain of %d blocks", from, to, c.NumBlocks())
	}
	inputs := &derivation.Inputs{
		VidParam:        c.param,
		NamespaceID:     namespace,
		AccumulatorRoot: c.Root(),
	}
	for height := from; height < to; height++ {
		proof, slice, err := c.DerivationProof(height, namespace)
		if errors.Is(err, ErrNamespaceMissing) {
			continue
		}
		if err != nil {
			return nil, err
		}
		start := uint64(len(inputs.Payload))
		inputs.Payload = append(inputs.Payload, slice...)
		inputs.Proofs = append(inputs.Proofs, derivation.RangedProof{
			Range: derivation.Range{Start: start, End: uint64(len(inputs.Payload))},
			Proof: *proof,
		})
	}
	return inputs, nil
}
