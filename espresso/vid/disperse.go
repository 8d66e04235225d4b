// Copyright 2024, Offchain Labs, Inc.
// For license information, see https://github.com/OffchainLabs/nitro/blob/master/LICENSE.md

package vid

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/consensys/gnark-crypto/ecc"
	"github.com/consensys/gnark-crypto/ecc/bn254"
	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
	"github.com/consensys/gnark-crypto/ecc/bn254/kzg"
	"github.com/wealdtech/go-merkletree"
)

// Share is what a single storage node holds: one evaluation per polynomial, an aggregated KZG
// opening of those evaluations and a Merkle path into the all-evaluations digest.
type Share struct {
	Index     uint32
	Evals     [][32]byte
	AggProof  [32]byte
	EvalsPath [][]byte
}

type Dispersal struct {
	Commit Commitment
	Common Common
	Shares []Share
}

func shareLeaf(index uint32, evals [][32]byte) []byte {
	leaf := make([]byte, 4, 4+32*len(evals))
	binary.BigEndian.PutUint32(leaf, index)
	for i := range evals {
		leaf = append(leaf, evals[i][:]...)
	}
	return leaf
}

// aggregatePoly computes sum_k r^k * p_k.
func aggregatePoly(polys [][]fr.Element, powers []fr.Element) []fr.Element {
	maxLen := 0
	for _, p := range polys {
		maxLen = max(maxLen, len(p))
	}
	agg := make([]fr.Element, maxLen)
	var term fr.Element
	for k, p := range polys {
		for j := range p {
			term.Mul(&p[j], &powers[k])
			agg[j].Add(&agg[j], &term)
		}
	}
	return agg
}

// Disperse commits to payload and computes the share of every storage node.
func (s *Scheme) Disperse(payload []byte) (*Dispersal, error) {
	if uint64(len(payload)) > math.MaxUint32 {
		return nil, fmt.Errorf("payload of %d bytes is too large", len(payload))
	}
	polys := s.polys(bytesToElems(payload))
	polyCommits := make([][32]byte, len(polys))
	for k, poly := range polys {
		comm, err := s.commitPoly(poly)
		if err != nil {
			return nil, fmt.Errorf("error committing to polynomial %d: %w", k, err)
		}
		polyCommits[k] = comm
	}

	shares := make([]Share, s.numStorageNodes)
	leaves := make([][]byte, s.numStorageNodes)
	for i := range shares {
		index := uint32(i)
		point := evalPoint(index)
		evals := make([][32]byte, len(polys))
		for k, poly := range polys {
			y := evalPoly(poly, &point)
			evals[k] = y.Bytes()
		}
		shares[i] = Share{Index: index, Evals: evals}
		leaves[i] = shareLeaf(index, evals)
	}
	tree, err := merkletree.New(leaves)
	if err != nil {
		return nil, fmt.Errorf("error building evaluations tree: %w", err)
	}
	for i := range shares {
		proof, err := tree.GenerateProof(leaves[i])
		if err != nil {
			return nil, fmt.Errorf("error proving evaluations of node %d: %w", i, err)
		}
		shares[i].EvalsPath = proof.Hashes
	}

	if len(polys) > 0 {
		agg := aggregatePoly(polys, challengePowers(aggregationChallenge(polyCommits), len(polys)))
		for i := range shares {
			if len(agg) == 1 {
				// a constant has a zero quotient, so every opening proof is the identity
				var identity bn254.G1Affine
				shares[i].AggProof = identity.Bytes()
				continue
			}
			opening, err := kzg.Open(agg, evalPoint(shares[i].Index), s.param.srs.Pk)
			if err != nil {
				return nil, fmt.Errorf("error opening aggregate polynomial for node %d: %w", i, err)
			}
			shares[i].AggProof = opening.H.Bytes()
		}
	}

	common := Common{
		PolyCommits:     polyCommits,
		AllEvalsDigest:  tree.Root(),
		PayloadByteLen:  uint32(len(payload)),
		NumStorageNodes: s.numStorageNodes,
	}
	return &Dispersal{
		Commit: common.Commitment(),
		Common: common,
		Shares: shares,
	}, nil
}

// Commit computes only the payload commitment.
func (s *Scheme) Commit(payload []byte) (Commitment, error) {
	dispersal, err := s.Disperse(payload)
	if err != nil {
		return Commitment{}, err
	}
	return dispersal.Commit, nil
}

// VerifyShare checks a storage node share against the common data. Malformed input is an error,
// a share that does not verify is reported as false.
func (s *Scheme) VerifyShare(share *Share, common *Common, commit Commitment) (bool, error) {
	if err := s.IsConsistent(commit, common); err != nil {
		return false, err
	}
	if share.Index >= common.NumStorageNodes {
		return false, fmt.Errorf("%w: share index %d out of range for %d storage nodes", ErrMalformedProof, share.Index, common.NumStorageNodes)
	}
	if len(share.Evals) != len(common.PolyCommits) {
		return false, fmt.Errorf("%w: share has %d evaluations for %d polynomials", ErrMalformedProof, len(share.Evals), len(common.PolyCommits))
	}
	evals, err := decodeElems(share.Evals)
	if err != nil {
		return false, err
	}
	proof := &merkletree.Proof{Hashes: share.EvalsPath, Index: uint64(share.Index)}
	ok, err := merkletree.VerifyProof(shareLeaf(share.Index, share.Evals), proof, common.AllEvalsDigest)
	if err != nil || !ok {
		return false, nil
	}
	if len(evals) == 0 {
		return true, nil
	}

	powers := challengePowers(aggregationChallenge(common.PolyCommits), len(evals))
	points := make([]bn254.G1Affine, len(common.PolyCommits))
	for k := range common.PolyCommits {
		if _, err := points[k].SetBytes(common.PolyCommits[k][:]); err != nil {
			return false, fmt.Errorf("%w: polynomial commitment %d: %v", ErrMalformedProof, k, err)
		}
	}
	var aggCommit bn254.G1Affine
	if _, err := aggCommit.MultiExp(points, powers, ecc.MultiExpConfig{}); err != nil {
		return false, err
	}
	var aggEval, term fr.Element
	for k := range evals {
		term.Mul(&evals[k], &powers[k])
		aggEval.Add(&aggEval, &term)
	}
	var h bn254.G1Affine
	if _, err := h.SetBytes(share.AggProof[:]); err != nil {
		return false, fmt.Errorf("%w: aggregate proof: %v", ErrMalformedProof, err)
	}
	opening := kzg.OpeningProof{H: h, ClaimedValue: aggEval}
	if err := kzg.Verify(&aggCommit, &opening, evalPoint(share.Index), s.param.srs.Vk); err != nil {
		return false, nil
	}
	return true, nil
}
