// Copyright 2024, Offchain Labs, Inc.
// For license information, see https://github.com/OffchainLabs/nitro/blob/master/LICENSE.md

package vid

import (
	"bytes"
	"fmt"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
	"github.com/ethereum/go-ethereum/log"
)

// NsProof proves that a byte range belongs to a committed payload. It carries the data needed to
// rebuild every polynomial the range touches: the scalars of those polynomials outside the range
// and the bytes that share a scalar with the range edges.
type NsProof struct {
	PrefixElems [][32]byte
	SuffixElems [][32]byte
	PrefixBytes []byte
	SuffixBytes []byte
}

func (p *NsProof) isEmpty() bool {
	return len(p.PrefixElems) == 0 && len(p.SuffixElems) == 0 && len(p.PrefixBytes) == 0 && len(p.SuffixBytes) == 0
}

// rangeSpan locates the byte range [start, end) in element and polynomial coordinates.
type rangeSpan struct {
	elemStart, elemEnd uint64
	polyStart, polyEnd uint64
	totalElems         uint64
	payloadLen         uint64
}

func (s *Scheme) span(start, end, payloadLen uint64) rangeSpan {
	t := uint64(s.recoveryThreshold)
	sp := rangeSpan{
		elemStart:  start / BytesPerElem,
		elemEnd:    divCeil(end, BytesPerElem),
		totalElems: numElems(payloadLen),
		payloadLen: payloadLen,
	}
	sp.polyStart = sp.elemStart / t
	sp.polyEnd = divCeil(sp.elemEnd, t)
	return sp
}

func (sp rangeSpan) prefixElemsLen(t uint64) uint64 {
	return sp.elemStart - sp.polyStart*t
}

func (sp rangeSpan) suffixElemsEnd(t uint64) uint64 {
	return min(sp.polyEnd*t, sp.totalElems)
}

func (sp rangeSpan) suffixBytesEnd() uint64 {
	return min(sp.elemEnd*BytesPerElem, sp.payloadLen)
}

func checkRange(start, end, payloadLen uint64) error {
	if start > end || end > payloadLen {
		return fmt.Errorf("%w: [%d, %d) in payload of %d bytes", ErrInvalidRange, start, end, payloadLen)
	}
	return nil
}

// PayloadProof builds a proof that payload[start:end] is part of the payload's commitment.
func (s *Scheme) PayloadProof(payload []byte, start, end uint64) (*NsProof, error) {
	payloadLen := uint64(len(payload))
	if err := checkRange(start, end, payloadLen); err != nil {
		return nil, err
	}
	if start == end {
		return &NsProof{}, nil
	}
	t := uint64(s.recoveryThreshold)
	sp := s.span(start, end, payloadLen)
	elems := bytesToElems(payload)
	return &NsProof{
		PrefixElems: encodeElems(elems[sp.polyStart*t : sp.elemStart]),
		SuffixElems: encodeElems(elems[sp.elemEnd:sp.suffixElemsEnd(t)]),
		PrefixBytes: bytes.Clone(payload[sp.elemStart*BytesPerElem : start]),
		SuffixBytes: bytes.Clone(payload[end:sp.suffixBytesEnd()]),
	}, nil
}

// VerifySubrange checks that slice is exactly payload[start:end] of the payload behind commit.
// Errors report malformed input; a well-formed proof that fails to verify returns false.
func (s *Scheme) VerifySubrange(slice []byte, start, end uint64, commit Commitment, common *Common, proof *NsProof) (bool, error) {
	if err := s.IsConsistent(commit, common); err != nil {
		log.Debug("common data rejected for payload proof", "commit", commit, "err", err)
		return false, nil
	}
	payloadLen := uint64(common.PayloadByteLen)
	if err := checkRange(start, end, payloadLen); err != nil {
		return false, err
	}
	if uint64(len(slice)) != end-start {
		return false, fmt.Errorf("%w: slice of %d bytes for range [%d, %d)", ErrInvalidRange, len(slice), start, end)
	}
	if start == end {
		if !proof.isEmpty() {
			return false, fmt.Errorf("%w: non-empty proof for empty range", ErrMalformedProof)
		}
		return true, nil
	}

	t := uint64(s.recoveryThreshold)
	sp := s.span(start, end, payloadLen)
	if uint64(len(proof.PrefixElems)) != sp.prefixElemsLen(t) ||
		uint64(len(proof.SuffixElems)) != sp.suffixElemsEnd(t)-sp.elemEnd ||
		uint64(len(proof.PrefixBytes)) != start-sp.elemStart*BytesPerElem ||
		uint64(len(proof.SuffixBytes)) != sp.suffixBytesEnd()-end {
		return false, fmt.Errorf("%w: proof shape does not match range [%d, %d)", ErrMalformedProof, start, end)
	}
	prefix, err := decodeElems(proof.PrefixElems)
	if err != nil {
		return false, err
	}
	suffix, err := decodeElems(proof.SuffixElems)
	if err != nil {
		return false, err
	}

	data := make([]byte, 0, len(proof.PrefixBytes)+len(slice)+len(proof.SuffixBytes))
	data = append(data, proof.PrefixBytes...)
	data = append(data, slice...)
	data = append(data, proof.SuffixBytes...)
	middle := bytesToElems(data)

	all := make([]fr.Element, 0, len(prefix)+len(middle)+len(suffix))
	all = append(all, prefix...)
	all = append(all, middle...)
	all = append(all, suffix...)

	for k, poly := range s.polys(all) {
		index := sp.polyStart + uint64(k)
		comm, err := s.commitPoly(poly)
		if err != nil {
			return false, fmt.Errorf("error committing to polynomial %d: %w", index, err)
		}
		if comm != common.PolyCommits[index] {
			return false, nil
		}
	}
	return true, nil
}
