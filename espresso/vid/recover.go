// Copyright 2024, Offchain Labs, Inc.
// For license information, see https://github.com/OffchainLabs/nitro/blob/master/LICENSE.md

package vid

import (
	"fmt"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
)

// Recover rebuilds the payload from at least RecoveryThreshold shares with distinct indices. The
// shares are not verified here; callers should run VerifyShare first.
func (s *Scheme) Recover(shares []Share, common *Common) ([]byte, error) {
	t := int(s.recoveryThreshold)
	chosen := make([]*Share, 0, t)
	seen := make(map[uint32]bool)
	for i := range shares {
		if len(chosen) == t {
			break
		}
		share := &shares[i]
		if seen[share.Index] || share.Index >= common.NumStorageNodes {
			continue
		}
		if len(share.Evals) != len(common.PolyCommits) {
			return nil, fmt.Errorf("%w: share %d has %d evaluations for %d polynomials", ErrMalformedProof, share.Index, len(share.Evals), len(common.PolyCommits))
		}
		seen[share.Index] = true
		chosen = append(chosen, share)
	}
	if len(chosen) < t {
		return nil, fmt.Errorf("need %d distinct shares to recover, have %d", t, len(chosen))
	}

	xs := make([]fr.Element, t)
	for j, share := range chosen {
		xs[j] = evalPoint(share.Index)
	}
	basis := lagrangeBasis(xs)

	totalElems := int(numElems(uint64(common.PayloadByteLen)))
	elems := make([]fr.Element, 0, len(common.PolyCommits)*t)
	ys := make([][32]byte, t)
	var term fr.Element
	for k := range common.PolyCommits {
		for j, share := range chosen {
			ys[j] = share.Evals[k]
		}
		values, err := decodeElems(ys)
		if err != nil {
			return nil, err
		}
		coeffs := make([]fr.Element, t)
		for j := range values {
			for c := range coeffs {
				term.Mul(&values[j], &basis[j][c])
				coeffs[c].Add(&coeffs[c], &term)
			}
		}
		elems = append(elems, coeffs[:min(t, totalElems-k*t)]...)
	}
	return elemsToBytes(elems, uint64(common.PayloadByteLen))
}

// lagrangeBasis returns, for each point x_j, the coefficients of the polynomial that is one at x_j
// and zero at every other point.
func lagrangeBasis(xs []fr.Element) [][]fr.Element {
	n := len(xs)
	// master = prod (x - x_j), ascending coefficients
	master := make([]fr.Element, 1, n+1)
	master[0].SetOne()
	var tmp fr.Element
	for j := range xs {
		next := make([]fr.Element, len(master)+1)
		for i := range master {
			next[i+1].Add(&next[i+1], &master[i])
			tmp.Mul(&master[i], &xs[j])
			next[i].Sub(&next[i], &tmp)
		}
		master = next
	}

	basis := make([][]fr.Element, n)
	denoms := make([]fr.Element, n)
	for j := range xs {
		// synthetic division of master by (x - x_j)
		q := make([]fr.Element, n)
		q[n-1] = master[n]
		for i := n - 1; i >= 1; i-- {
			tmp.Mul(&xs[j], &q[i])
			q[i-1].Add(&master[i], &tmp)
		}
		basis[j] = q
		denoms[j] = evalPoly(q, &xs[j])
	}
	inverses := fr.BatchInvert(denoms)
	for j := range basis {
		for i := range basis[j] {
			basis[j][i].Mul(&basis[j][i], &inverses[j])
		}
	}
	return basis
}
