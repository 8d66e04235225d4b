// Copyright 2024, Offchain Labs, Inc.
// For license information, see https://github.com/OffchainLabs/nitro/blob/master/LICENSE.md

// Package vid implements the verifiable information dispersal scheme that backs Espresso payload
// commitments. A payload is packed into BN254 scalars, split into polynomials of
// RecoveryThreshold coefficients each and committed with KZG. Storage nodes receive evaluations
// of every polynomial plus an aggregated opening proof.
package vid

import (
	"errors"
	"fmt"
	"math/bits"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
	"github.com/consensys/gnark-crypto/ecc/bn254/kzg"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/offchainlabs/espresso-derivation/espresso/commitment"
)

var (
	ErrMalformedProof     = errors.New("malformed payload proof")
	ErrInvalidRange       = errors.New("invalid payload range")
	ErrInconsistentCommon = errors.New("common data does not match commitment")
)

// Commitment is the payload commitment stored in block headers.
type Commitment [32]byte

func (c Commitment) String() string {
	return commitment.Commitment(c).String()
}

// Common is the dispersal data every storage node and verifier needs alongside the commitment.
type Common struct {
	PolyCommits     [][32]byte
	AllEvalsDigest  []byte
	PayloadByteLen  uint32
	NumStorageNodes uint32
}

// Commitment binds every field of the common data.
func (c *Common) Commitment() Commitment {
	b := commitment.NewRawCommitmentBuilder("VID_COMMIT").
		Uint64Field("payload_byte_len", uint64(c.PayloadByteLen)).
		Uint64Field("num_storage_nodes", uint64(c.NumStorageNodes)).
		VarSizeField("all_evals_digest", c.AllEvalsDigest).
		Uint64Field("num_polys", uint64(len(c.PolyCommits)))
	for i := range c.PolyCommits {
		b.FixedSizeBytes(c.PolyCommits[i][:])
	}
	return Commitment(b.Finalize())
}

// NumStorageNodes reads the storage node count a dispersal was made for.
func NumStorageNodes(common *Common) uint32 {
	return common.NumStorageNodes
}

// RecoveryThreshold is the largest power of two not above numStorageNodes. It is both the number
// of shares needed to recover a payload and the coefficient count of each polynomial.
func RecoveryThreshold(numStorageNodes uint32) uint32 {
	if numStorageNodes == 0 {
		return 0
	}
	return 1 << (bits.Len32(numStorageNodes) - 1)
}

type Scheme struct {
	numStorageNodes   uint32
	recoveryThreshold uint32
	param             *Param
}

func NewScheme(numStorageNodes uint32, param *Param) (*Scheme, error) {
	if numStorageNodes == 0 {
		return nil, errors.New("scheme needs at least one storage node")
	}
	if param == nil {
		return nil, errors.New("scheme needs public parameters")
	}
	threshold := RecoveryThreshold(numStorageNodes)
	if uint64(threshold) > uint64(param.Degree()) {
		return nil, fmt.Errorf("recovery threshold %d exceeds parameter degree %d", threshold, param.Degree())
	}
	return &Scheme{
		numStorageNodes:   numStorageNodes,
		recoveryThreshold: threshold,
		param:             param,
	}, nil
}

func MustNewScheme(numStorageNodes uint32, param *Param) *Scheme {
	s, err := NewScheme(numStorageNodes, param)
	if err != nil {
		panic(err)
	}
	return s
}

func (s *Scheme) NumStorageNodes() uint32 {
	return s.numStorageNodes
}

func (s *Scheme) RecoveryThreshold() uint32 {
	return s.recoveryThreshold
}

func (s *Scheme) Param() *Param {
	return s.param
}

// IsConsistent checks that common belongs to commit and was produced for this scheme.
func (s *Scheme) IsConsistent(commit Commitment, common *Common) error {
	if common.Commitment() != commit {
		return ErrInconsistentCommon
	}
	if common.NumStorageNodes != s.numStorageNodes {
		return fmt.Errorf("%w: dispersed to %d storage nodes, scheme has %d", ErrInconsistentCommon, common.NumStorageNodes, s.numStorageNodes)
	}
	expectedPolys := divCeil(numElems(uint64(common.PayloadByteLen)), uint64(s.recoveryThreshold))
	if uint64(len(common.PolyCommits)) != expectedPolys {
		return fmt.Errorf("%w: %d polynomial commitments for %d payload bytes, expected %d", ErrInconsistentCommon, len(common.PolyCommits), common.PayloadByteLen, expectedPolys)
	}
	return nil
}

// polys splits elements into consecutive polynomials of recoveryThreshold coefficients. The last
// one may be shorter.
func (s *Scheme) polys(elems []fr.Element) [][]fr.Element {
	t := int(s.recoveryThreshold)
	polys := make([][]fr.Element, 0, (len(elems)+t-1)/t)
	for start := 0; start < len(elems); start += t {
		polys = append(polys, elems[start:min(start+t, len(elems))])
	}
	return polys
}

func (s *Scheme) commitPoly(poly []fr.Element) ([32]byte, error) {
	digest, err := kzg.Commit(poly, s.param.srs.Pk)
	if err != nil {
		return [32]byte{}, err
	}
	return digest.Bytes(), nil
}

// aggregationChallenge derives the scalar used to fold all polynomials into one for opening.
func aggregationChallenge(polyCommits [][32]byte) fr.Element {
	data := make([]byte, 0, 7+32*len(polyCommits))
	data = append(data, "VID_AGG"...)
	for i := range polyCommits {
		data = append(data, polyCommits[i][:]...)
	}
	var r fr.Element
	r.SetBytes(crypto.Keccak256(data))
	return r
}

func challengePowers(r fr.Element, n int) []fr.Element {
	powers := make([]fr.Element, n)
	if n == 0 {
		return powers
	}
	powers[0].SetOne()
	for i := 1; i < n; i++ {
		powers[i].Mul(&powers[i-1], &r)
	}
	return powers
}
