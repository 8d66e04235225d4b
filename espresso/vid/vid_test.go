// Copyright 2024, Offchain Labs, Inc.
// For license information, see https://github.com/OffchainLabs/nitro/blob/master/LICENSE.md

package vid

import (
	"bytes"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/rlp"
	"github.com/stretchr/testify/require"

	"github.com/offchainlabs/espresso-derivation/util/testhelpers"
)

func testParam(t *testing.T) *Param {
	t.Helper()
	param, err := NewTestParam(16, big.NewInt(0x5eed))
	require.NoError(t, err)
	return param
}

func testScheme(t *testing.T, numStorageNodes uint32) *Scheme {
	t.Helper()
	scheme, err := NewScheme(numStorageNodes, testParam(t))
	require.NoError(t, err)
	return scheme
}

func TestRecoveryThreshold(t *testing.T) {
	cases := map[uint32]uint32{0: 0, 1: 1, 2: 2, 3: 2, 4: 4, 6: 4, 8: 8, 9: 8, 100: 64}
	for nodes, expected := range cases {
		require.Equal(t, expected, RecoveryThreshold(nodes), "nodes %d", nodes)
	}
}

func TestNewSchemeRejectsBadInput(t *testing.T) {
	param := testParam(t)
	_, err := NewScheme(0, param)
	require.Error(t, err)
	_, err = NewScheme(4, nil)
	require.Error(t, err)
	// threshold 32 exceeds 16 powers
	_, err = NewScheme(40, param)
	require.Error(t, err)
	require.Panics(t, func() { MustNewScheme(0, param) })
}

func TestParamEncoding(t *testing.T) {
	param := testParam(t)
	decoded, err := ParamFromBytes(param.Bytes())
	require.NoError(t, err)
	require.Equal(t, param.Hash(), decoded.Hash())
	require.Equal(t, param.Degree(), decoded.Degree())

	encoded, err := rlp.EncodeToBytes(param)
	require.NoError(t, err)
	var fromRLP Param
	require.NoError(t, rlp.DecodeBytes(encoded, &fromRLP))
	require.Equal(t, param.Hash(), fromRLP.Hash())

	other, err := NewTestParam(16, big.NewInt(0xbad))
	require.NoError(t, err)
	require.NotEqual(t, param.Hash(), other.Hash())

	_, err = ParamFromBytes([]byte{1, 2, 3})
	require.Error(t, err)
}

func TestElementPacking(t *testing.T) {
	source := testhelpers.NewPseudoRandomDataSource(t, 7)
	for _, size := range []int{0, 1, 30, 31, 32, 62, 100} {
		data := source.GetData(size)
		elems := bytesToElems(data)
		require.Len(t, elems, int(numElems(uint64(size))))
		back, err := elemsToBytes(elems, uint64(size))
		require.NoError(t, err)
		require.Equal(t, data, back)
	}

	var nonCanonical [32]byte
	for i := range nonCanonical {
		nonCanonical[i] = 0xff
	}
	_, err := decodeElems([][32]byte{nonCanonical})
	require.ErrorIs(t, err, ErrMalformedProof)
}

func TestDisperseAndVerifyShares(t *testing.T) {
	scheme := testScheme(t, 6)
	payload := testhelpers.NewPseudoRandomDataSource(t, 1).GetData(1000)
	dispersal, err := scheme.Disperse(payload)
	require.NoError(t, err)
	require.Len(t, dispersal.Shares, 6)
	require.Equal(t, uint32(6), NumStorageNodes(&dispersal.Common))
	require.NoError(t, scheme.IsConsistent(dispersal.Commit, &dispersal.Common))

	commit, err := scheme.Commit(payload)
	require.NoError(t, err)
	require.Equal(t, dispersal.Commit, commit)

	for i := range dispersal.Shares {
		ok, err := scheme.VerifyShare(&dispersal.Shares[i], &dispersal.Common, dispersal.Commit)
		require.NoError(t, err)
		require.True(t, ok, "share %d", i)
	}

	tampered := dispersal.Shares[2]
	tampered.Evals = append([][32]byte{}, tampered.Evals...)
	tampered.Evals[0][31] ^= 1
	ok, err := scheme.VerifyShare(&tampered, &dispersal.Common, dispersal.Commit)
	if err == nil {
		require.False(t, ok)
	}

	swapped := dispersal.Shares[3]
	swapped.AggProof = dispersal.Shares[4].AggProof
	ok, err = scheme.VerifyShare(&swapped, &dispersal.Common, dispersal.Commit)
	require.NoError(t, err)
	require.False(t, ok)

	outOfRange := dispersal.Shares[0]
	outOfRange.Index = 6
	_, err = scheme.VerifyShare(&outOfRange, &dispersal.Common, dispersal.Commit)
	require.ErrorIs(t, err, ErrMalformedProof)
}

func TestDisperseConstantPolynomials(t *testing.T) {
	source := testhelpers.NewPseudoRandomDataSource(t, 3)
	cases := []struct {
		nodes uint32
		size  int
	}{{1, 1}, {1, 100}, {4, 31}, {6, 1}}
	for _, c := range cases {
		scheme := testScheme(t, c.nodes)
		payload := source.GetData(c.size)
		dispersal, err := scheme.Disperse(payload)
		require.NoError(t, err, "nodes %d size %d", c.nodes, c.size)
		for i := range dispersal.Shares {
			ok, err := scheme.VerifyShare(&dispersal.Shares[i], &dispersal.Common, dispersal.Commit)
			require.NoError(t, err)
			require.True(t, ok, "nodes %d size %d share %d", c.nodes, c.size, i)
		}

		tampered := dispersal.Shares[0]
		tampered.Evals = append([][32]byte{}, tampered.Evals...)
		tampered.Evals[0][31] ^= 1
		ok, err := scheme.VerifyShare(&tampered, &dispersal.Common, dispersal.Commit)
		if err == nil {
			require.False(t, ok)
		}

		recovered, err := scheme.Recover(dispersal.Shares, &dispersal.Common)
		require.NoError(t, err)
		require.Equal(t, payload, recovered)
	}
}

func TestRecover(t *testing.T) {
	scheme := testScheme(t, 6)
	payload := testhelpers.NewPseudoRandomDataSource(t, 2).GetData(777)
	dispersal, err := scheme.Disperse(payload)
	require.NoError(t, err)

	recovered, err := scheme.Recover(dispersal.Shares[2:], &dispersal.Common)
	require.NoError(t, err)
	require.Equal(t, payload, recovered)

	shares := []Share{dispersal.Shares[5], dispersal.Shares[0], dispersal.Shares[5], dispersal.Shares[3], dispersal.Shares[1]}
	recovered, err = scheme.Recover(shares, &dispersal.Common)
	require.NoError(t, err)
	require.Equal(t, payload, recovered)

	_, err = scheme.Recover(dispersal.Shares[:3], &dispersal.Common)
	require.Error(t, err)
}

func TestEmptyPayload(t *testing.T) {
	scheme := testScheme(t, 4)
	dispersal, err := scheme.Disperse(nil)
	require.NoError(t, err)
	require.Empty(t, dispersal.Common.PolyCommits)

	ok, err := scheme.VerifyShare(&dispersal.Shares[1], &dispersal.Common, dispersal.Commit)
	require.NoError(t, err)
	require.True(t, ok)

	proof, err := scheme.PayloadProof(nil, 0, 0)
	require.NoError(t, err)
	ok, err = scheme.VerifySubrange(nil, 0, 0, dispersal.Commit, &dispersal.Common, proof)
	require.NoError(t, err)
	require.True(t, ok)

	recovered, err := scheme.Recover(dispersal.Shares, &dispersal.Common)
	require.NoError(t, err)
	require.Empty(t, recovered)
}

func TestPayloadProofRanges(t *testing.T) {
	scheme := testScheme(t, 4)
	payload := testhelpers.NewPseudoRandomDataSource(t, 3).GetData(500)
	dispersal, err := scheme.Disperse(payload)
	require.NoError(t, err)

	ranges := [][2]uint64{
		{0, 0}, {0, 1}, {0, 31}, {0, 124}, {0, 500},
		{1, 2}, {30, 32}, {31, 62}, {100, 300}, {123, 125},
		{124, 248}, {250, 250}, {490, 500}, {499, 500}, {500, 500},
	}
	for _, r := range ranges {
		start, end := r[0], r[1]
		proof, err := scheme.PayloadProof(payload, start, end)
		require.NoError(t, err, "range %v", r)
		ok, err := scheme.VerifySubrange(payload[start:end], start, end, dispersal.Commit, &dispersal.Common, proof)
		require.NoError(t, err, "range %v", r)
		require.True(t, ok, "range %v", r)

		if start == end {
			continue
		}
		altered := bytes.Clone(payload[start:end])
		altered[len(altered)-1] ^= 0x80
		ok, err = scheme.VerifySubrange(altered, start, end, dispersal.Commit, &dispersal.Common, proof)
		require.NoError(t, err, "range %v", r)
		require.False(t, ok, "altered range %v verified", r)
	}
}

func TestVerifySubrangeRejections(t *testing.T) {
	scheme := testScheme(t, 4)
	source := testhelpers.NewPseudoRandomDataSource(t, 4)
	payload := source.GetData(300)
	dispersal, err := scheme.Disperse(payload)
	require.NoError(t, err)
	other, err := scheme.Disperse(source.GetData(300))
	require.NoError(t, err)

	proof, err := scheme.PayloadProof(payload, 40, 90)
	require.NoError(t, err)
	slice := payload[40:90]

	// proof against a different payload's commitment
	ok, err := scheme.VerifySubrange(slice, 40, 90, other.Commit, &other.Common, proof)
	require.NoError(t, err)
	require.False(t, ok)

	// common data that does not belong to the commitment
	ok, err = scheme.VerifySubrange(slice, 40, 90, other.Commit, &dispersal.Common, proof)
	require.NoError(t, err)
	require.False(t, ok)

	// shifted range with matching length
	ok, err = scheme.VerifySubrange(payload[41:91], 41, 91, dispersal.Commit, &dispersal.Common, proof)
	if err == nil {
		require.False(t, ok)
	}

	_, err = scheme.VerifySubrange(slice[1:], 40, 90, dispersal.Commit, &dispersal.Common, proof)
	require.ErrorIs(t, err, ErrInvalidRange)
	_, err = scheme.VerifySubrange(nil, 290, 301, dispersal.Commit, &dispersal.Common, proof)
	require.ErrorIs(t, err, ErrInvalidRange)

	short := *proof
	short.PrefixBytes = short.PrefixBytes[1:]
	_, err = scheme.VerifySubrange(slice, 40, 90, dispersal.Commit, &dispersal.Common, &short)
	require.ErrorIs(t, err, ErrMalformedProof)

	_, err = scheme.VerifySubrange(nil, 10, 10, dispersal.Commit, &dispersal.Common, proof)
	require.ErrorIs(t, err, ErrMalformedProof)

	_, err = scheme.PayloadProof(payload, 20, 10)
	require.ErrorIs(t, err, ErrInvalidRange)
	_, err = scheme.PayloadProof(payload, 0, 301)
	require.ErrorIs(t, err, ErrInvalidRange)
}

func TestSchemeMismatchIsInconsistent(t *testing.T) {
	param := testParam(t)
	four := MustNewScheme(4, param)
	eight := MustNewScheme(8, param)
	dispersal, err := four.Disperse([]byte("namespace data"))
	require.NoError(t, err)
	require.ErrorIs(t, eight.IsConsistent(dispersal.Commit, &dispersal.Common), ErrInconsistentCommon)

	modified := dispersal.Common
	modified.PayloadByteLen++
	require.ErrorIs(t, four.IsConsistent(dispersal.Commit, &modified), ErrInconsistentCommon)
}
