// Copyright 2024, Offchain Labs, Inc.
// For license information, see https://github.com/OffchainLabs/nitro/blob/master/LICENSE.md

package vid

import (
	"bytes"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"math/big"

	"github.com/consensys/gnark-crypto/ecc/bn254/kzg"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/rlp"
)

// Param is the public parameter set of the scheme: a KZG structured reference string over BN254.
// Its canonical serialization is fixed at construction so the fingerprint never drifts.
type Param struct {
	srs  *kzg.SRS
	raw  []byte
	hash common.Hash
}

func NewParamFromSRS(srs *kzg.SRS) (*Param, error) {
	if srs == nil || len(srs.Pk.G1) == 0 {
		return nil, errors.New("empty structured reference string")
	}
	var buf bytes.Buffer
	if _, err := srs.WriteTo(&buf); err != nil {
		return nil, fmt.Errorf("error serializing structured reference string: %w", err)
	}
	return &Param{
		srs:  srs,
		raw:  buf.Bytes(),
		hash: sha256.Sum256(buf.Bytes()),
	}, nil
}

// NewTestParam builds a reference string from a known secret. Anyone knowing the secret can
// forge openings, so this is only for tests and mock chains.
func NewTestParam(size uint64, secret *big.Int) (*Param, error) {
	srs, err := kzg.NewSRS(size, secret)
	if err != nil {
		return nil, fmt.Errorf("error creating test reference string of size %d: %w", size, err)
	}
	return NewParamFromSRS(srs)
}

func ParamFromBytes(data []byte) (*Param, error) {
	srs := new(kzg.SRS)
	if _, err := srs.ReadFrom(bytes.NewReader(data)); err != nil {
		return nil, fmt.Errorf("error decoding structured reference string: %w", err)
	}
	return NewParamFromSRS(srs)
}

// Bytes returns the canonical serialization. The returned slice must not be modified.
func (p *Param) Bytes() []byte {
	return p.raw
}

// Hash is the SHA-256 fingerprint of the canonical serialization.
func (p *Param) Hash() common.Hash {
	return p.hash
}

// Degree is the number of G1 powers, which bounds the recovery threshold.
func (p *Param) Degree() int {
	return len(p.srs.Pk.G1)
}

func (p *Param) EncodeRLP(w io.Writer) error {
	return rlp.Encode(w, p.raw)
}

func (p *Param) DecodeRLP(s *rlp.Stream) error {
	data, err := s.Bytes()
	if err != nil {
		return err
	}
	decoded, err := ParamFromBytes(data)
	if err != nil {
		return err
	}
	*p = *decoded
	return nil
}
