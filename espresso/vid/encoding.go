// Copyright 2024, Offchain Labs, Inc.
// For license information, see https://github.com/OffchainLabs/nitro/blob/master/LICENSE.md

package vid

import (
	"fmt"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
)

// BytesPerElem is the number of payload bytes packed into one field element. 31 bytes always fit
// below the BN254 scalar modulus.
const BytesPerElem = 31

func numElems(byteLen uint64) uint64 {
	return (byteLen + BytesPerElem - 1) / BytesPerElem
}

func divCeil(a, b uint64) uint64 {
	return (a + b - 1) / b
}

// bytesToElems packs data big-endian into field elements, zero-padding the final chunk.
func bytesToElems(data []byte) []fr.Element {
	elems := make([]fr.Element, numElems(uint64(len(data))))
	var buf [32]byte
	for i := range elems {
		start := i * BytesPerElem
		end := min(start+BytesPerElem, len(data))
		buf = [32]byte{}
		copy(buf[1:], data[start:end])
		elems[i].SetBytes(buf[:])
	}
	return elems
}

// elemsToBytes reverses bytesToElems and truncates the result to byteLen.
func elemsToBytes(elems []fr.Element, byteLen uint64) ([]byte, error) {
	if uint64(len(elems))*BytesPerElem < byteLen {
		return nil, fmt.Errorf("%d elements cannot hold %d bytes", len(elems), byteLen)
	}
	out := make([]byte, 0, len(elems)*BytesPerElem)
	for i := range elems {
		b := elems[i].Bytes()
		if b[0] != 0 {
			return nil, fmt.Errorf("element %d does not encode payload bytes", i)
		}
		out = append(out, b[1:]...)
	}
	return out[:byteLen], nil
}

func encodeElems(elems []fr.Element) [][32]byte {
	out := make([][32]byte, len(elems))
	for i := range elems {
		out[i] = elems[i].Bytes()
	}
	return out
}

// decodeElems rejects any encoding that is not the canonical representative of its scalar.
func decodeElems(encoded [][32]byte) ([]fr.Element, error) {
	out := make([]fr.Element, len(encoded))
	for i := range encoded {
		out[i].SetBytes(encoded[i][:])
		if out[i].Bytes() != encoded[i] {
			return nil, fmt.Errorf("%w: element %d is not a canonical scalar", ErrMalformedProof, i)
		}
	}
	return out, nil
}

// evalPoly evaluates a polynomial in coefficient form with Horner's rule.
func evalPoly(coeffs []fr.Element, x *fr.Element) fr.Element {
	var res fr.Element
	for i := len(coeffs) - 1; i >= 0; i-- {
		res.Mul(&res, x)
		res.Add(&res, &coeffs[i])
	}
	return res
}

// evalPoint is the evaluation point assigned to storage node index.
func evalPoint(index uint32) fr.Element {
	return fr.NewElement(uint64(index) + 1)
}
