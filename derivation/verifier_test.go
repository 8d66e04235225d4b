// Copyright 2024, Offchain Labs, Inc.
// For license information, see https://github.com/OffchainLabs/nitro/blob/master/LICENSE.md

package derivation_test

import (
	"crypto/sha256"
	"errors"
	"log/slog"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"github.com/offchainlabs/espresso-derivation/derivation"
	"github.com/offchainlabs/espresso-derivation/derivation/mockchain"
	"github.com/offchainlabs/espresso-derivation/espresso"
	"github.com/offchainlabs/espresso-derivation/espresso/vid"
	"github.com/offchainlabs/espresso-derivation/util/testhelpers"
	"github.com/offchainlabs/espresso-derivation/util/testhelpers/env"
)

const testNamespace = espresso.NamespaceID(7)

func newTestChain(t *testing.T) *mockchain.Chain {
	t.Helper()
	param, err := mockchain.NewTestParam(16, 1)
	require.NoError(t, err)
	chain, err := mockchain.NewChain(param, 10, 32)
	require.NoError(t, err)
	return chain
}

func newTestVerifier(t *testing.T, policy string, summaries bool) *derivation.Verifier {
	t.Helper()
	config := derivation.DefaultConfig
	config.Policy = policy
	config.BlockSummaries = summaries
	verifier, err := derivation.NewVerifier(&config)
	require.NoError(t, err)
	return verifier
}

func appendBlocks(t *testing.T, chain *mockchain.Chain, source *testhelpers.PseudoRandomDataSource, nsLens ...int) {
	t.Helper()
	for _, nsLen := range nsLens {
		_, err := chain.AppendBlock([]mockchain.NamespacePayload{
			{ID: 1, Data: source.GetData(int(source.GetRange(1, 50)))},
			{ID: testNamespace, Data: source.GetData(nsLen)},
			{ID: 2, Data: source.GetData(int(source.GetRange(1, 50)))},
		})
		require.NoError(t, err)
	}
}

func verifyFailFast(t *testing.T, in *derivation.Inputs) error {
	t.Helper()
	pub, err := newTestVerifier(t, derivation.PolicyFailFast, false).Verify(in)
	if err != nil {
		require.Nil(t, pub)
	}
	return err
}

func TestSingleBlockScenario(t *testing.T) {
	chain := newTestChain(t)
	payload := testhelpers.NewPseudoRandomDataSource(t, 1).GetData(100)
	_, err := chain.AppendBlock([]mockchain.NamespacePayload{{ID: testNamespace, Data: payload}})
	require.NoError(t, err)

	in, err := chain.Inputs(testNamespace, 0, 1)
	require.NoError(t, err)
	require.Equal(t, payload, in.Payload)
	require.Len(t, in.Proofs, 1)
	require.Equal(t, derivation.Range{Start: 0, End: 100}, in.Proofs[0].Range)

	pub, err := newTestVerifier(t, derivation.PolicyFailFast, false).Verify(in)
	require.NoError(t, err)
	expected := &derivation.PublicInputs{
		VerificationResult:  true,
		RollupTxsCommit:     common.Hash(sha256.Sum256(payload)),
		VidParamHash:        chain.Param().Hash(),
		NamespaceID:         testNamespace,
		BlockMerkleTreeComm: chain.Root(),
	}
	if diff := cmp.Diff(expected, pub); diff != "" {
		t.Fatalf("unexpected public inputs (-want +got):\n%s", diff)
	}
}

func TestMultiBlockScenario(t *testing.T) {
	chain := newTestChain(t)
	source := testhelpers.NewPseudoRandomDataSource(t, 2)
	first := source.GetData(40)
	second := source.GetData(60)
	for _, data := range [][]byte{first, second} {
		_, err := chain.AppendBlock([]mockchain.NamespacePayload{{ID: testNamespace, Data: data}})
		require.NoError(t, err)
	}

	in, err := chain.Inputs(testNamespace, 0, 2)
	require.NoError(t, err)
	require.Equal(t, append(append([]byte{}, first...), second...), in.Payload)
	require.Equal(t, derivation.Range{Start: 0, End: 40}, in.Proofs[0].Range)
	require.Equal(t, derivation.Range{Start: 40, End: 100}, in.Proofs[1].Range)

	pub, err := newTestVerifier(t, derivation.PolicyFailFast, true).Verify(in)
	require.NoError(t, err)
	require.True(t, pub.VerificationResult)
	require.Equal(t, []derivation.BlockSummary{
		{Range: derivation.Range{Start: 0, End: 40}, Height: 0},
		{Range: derivation.Range{Start: 40, End: 100}, Height: 1},
	}, pub.Blocks)

	in.Proofs[1].Range = derivation.Range{Start: 30, End: 100}
	require.ErrorIs(t, verifyFailFast(t, in), derivation.ErrRangeGap)
}

func TestGeneratedChainVerifies(t *testing.T) {
	config := mockchain.DefaultConfig
	config.Seed = env.GetTestSeed(42)
	config.NumBlocks = uint64(env.GetTestMockBlocks(5))
	chain, gen, err := mockchain.Generate(&config, nil)
	require.NoError(t, err)

	in, err := chain.Inputs(gen.NamespaceID(), 0, chain.NumBlocks())
	require.NoError(t, err)
	require.Len(t, in.Proofs, int(config.NumBlocks))

	pub, err := newTestVerifier(t, derivation.PolicyFailFast, true).Verify(in)
	require.NoError(t, err)
	require.True(t, pub.VerificationResult)
	require.Len(t, pub.Blocks, int(config.NumBlocks))
	require.Equal(t, derivation.RollupTxsCommit(in.Payload), pub.RollupTxsCommit)
}

func coverageInputs(t *testing.T) *derivation.Inputs {
	t.Helper()
	chain := newTestChain(t)
	appendBlocks(t, chain, testhelpers.NewPseudoRandomDataSource(t, 3), 30, 45, 12, 70)
	in, err := chain.Inputs(testNamespace, 0, 4)
	require.NoError(t, err)
	require.NoError(t, verifyFailFast(t, in))
	return in
}

func withProofs(in *derivation.Inputs, proofs []derivation.RangedProof) *derivation.Inputs {
	modified := *in
	modified.Proofs = proofs
	return &modified
}

func requireCoverageError(t *testing.T, err error) {
	t.Helper()
	require.Error(t, err)
	if !errors.Is(err, derivation.ErrRangeGap) && !errors.Is(err, derivation.ErrIncompleteCoverage) {
		t.Fatalf("expected a coverage error, got %v", err)
	}
}

func TestCoverageCompleteness(t *testing.T) {
	in := coverageInputs(t)
	n := len(in.Proofs)

	for i := 0; i < n; i++ {
		proofs := append(append([]derivation.RangedProof{}, in.Proofs[:i]...), in.Proofs[i+1:]...)
		requireCoverageError(t, verifyFailFast(t, withProofs(in, proofs)))
	}

	for i := 0; i+1 < n; i++ {
		proofs := append([]derivation.RangedProof{}, in.Proofs...)
		proofs[i], proofs[i+1] = proofs[i+1], proofs[i]
		require.ErrorIs(t, verifyFailFast(t, withProofs(in, proofs)), derivation.ErrRangeGap)
	}

	for i := 0; i < n; i++ {
		for _, delta := range []int64{-1, 1} {
			proofs := append([]derivation.RangedProof{}, in.Proofs...)
			proofs[i].Range.End = uint64(int64(proofs[i].Range.End) + delta)
			requireCoverageError(t, verifyFailFast(t, withProofs(in, proofs)))

			proofs = append([]derivation.RangedProof{}, in.Proofs...)
			if proofs[i].Range.Start == 0 && delta < 0 {
				continue
			}
			proofs[i].Range.Start = uint64(int64(proofs[i].Range.Start) + delta)
			requireCoverageError(t, verifyFailFast(t, withProofs(in, proofs)))
		}
	}
}

func TestEmptyProofList(t *testing.T) {
	chain := newTestChain(t)
	in := &derivation.Inputs{VidParam: chain.Param(), NamespaceID: testNamespace, AccumulatorRoot: chain.Root()}
	pub, err := newTestVerifier(t, derivation.PolicyFailFast, false).Verify(in)
	require.NoError(t, err)
	require.True(t, pub.VerificationResult)
	require.Equal(t, common.Hash(sha256.Sum256(nil)), pub.RollupTxsCommit)

	in.Payload = []byte{1}
	require.ErrorIs(t, verifyFailFast(t, in), derivation.ErrIncompleteCoverage)
}

func TestMembershipBitFlips(t *testing.T) {
	chain := newTestChain(t)
	appendBlocks(t, chain, testhelpers.NewPseudoRandomDataSource(t, 4), 20, 20, 20)
	in, err := chain.Inputs(testNamespace, 0, 3)
	require.NoError(t, err)

	target := &in.Proofs[1].Proof.MembershipProof
	for j := range target.Path {
		for bit := 0; bit < 256; bit++ {
			target.Path[j][bit/8] ^= 1 << (bit % 8)
			require.ErrorIs(t, verifyFailFast(t, in), derivation.ErrInvalidMembership, "path %d bit %d", j, bit)
			target.Path[j][bit/8] ^= 1 << (bit % 8)
		}
	}
	require.NoError(t, verifyFailFast(t, in))

	target.Path = target.Path[:len(target.Path)-1]
	require.ErrorIs(t, verifyFailFast(t, in), derivation.ErrInvalidMembership)
}

func TestStaleMembershipProof(t *testing.T) {
	chain := newTestChain(t)
	source := testhelpers.NewPseudoRandomDataSource(t, 5)
	appendBlocks(t, chain, source, 25)
	stale, err := chain.Inputs(testNamespace, 0, 1)
	require.NoError(t, err)
	appendBlocks(t, chain, source, 25)

	fresh, err := chain.Inputs(testNamespace, 0, 1)
	require.NoError(t, err)
	stale.AccumulatorRoot = fresh.AccumulatorRoot
	require.ErrorIs(t, verifyFailFast(t, stale), derivation.ErrInvalidMembership)
	require.NoError(t, verifyFailFast(t, fresh))
}

func TestHeaderSubstitution(t *testing.T) {
	chain := newTestChain(t)
	appendBlocks(t, chain, testhelpers.NewPseudoRandomDataSource(t, 6), 33, 33)
	in, err := chain.Inputs(testNamespace, 0, 2)
	require.NoError(t, err)

	// second block header is a member of the same root, paired with the first leaf's proof
	in.Proofs[0].Proof.Header = in.Proofs[1].Proof.Header
	require.ErrorIs(t, verifyFailFast(t, in), derivation.ErrHeaderMismatch)
}

func TestNamespaceProofForOtherRange(t *testing.T) {
	chain := newTestChain(t)
	source := testhelpers.NewPseudoRandomDataSource(t, 7)
	block, err := chain.AppendBlock([]mockchain.NamespacePayload{
		{ID: 1, Data: source.GetData(50)},
		{ID: testNamespace, Data: source.GetData(50)},
		{ID: 2, Data: source.GetData(50)},
	})
	require.NoError(t, err)
	in, err := chain.Inputs(testNamespace, 0, 1)
	require.NoError(t, err)

	for _, other := range [][2]uint64{{0, 50}, {100, 150}, {49, 99}, {51, 101}} {
		proof, err := chain.Scheme().PayloadProof(block.Payload, other[0], other[1])
		require.NoError(t, err)
		modified := *in
		modified.Proofs = append([]derivation.RangedProof{}, in.Proofs...)
		modified.Proofs[0].Proof.NsProof = *proof
		require.ErrorIs(t, verifyFailFast(t, &modified), derivation.ErrNamespaceProofFailed, "range %v", other)
	}
}

func TestTamperedPayload(t *testing.T) {
	chain := newTestChain(t)
	appendBlocks(t, chain, testhelpers.NewPseudoRandomDataSource(t, 8), 64, 10)
	in, err := chain.Inputs(testNamespace, 0, 2)
	require.NoError(t, err)
	in.Payload[70] ^= 0x01
	require.ErrorIs(t, verifyFailFast(t, in), derivation.ErrNamespaceProofFailed)
}

func TestWrongCommonData(t *testing.T) {
	chain := newTestChain(t)
	appendBlocks(t, chain, testhelpers.NewPseudoRandomDataSource(t, 9), 40, 40)
	in, err := chain.Inputs(testNamespace, 0, 2)
	require.NoError(t, err)
	in.Proofs[0].Proof.VidCommon = in.Proofs[1].Proof.VidCommon
	require.ErrorIs(t, verifyFailFast(t, in), derivation.ErrNamespaceProofFailed)

	in, err = chain.Inputs(testNamespace, 0, 2)
	require.NoError(t, err)
	in.Proofs[1].Proof.VidCommon.NumStorageNodes = 0
	require.ErrorIs(t, verifyFailFast(t, in), derivation.ErrNamespaceProofFailed)
}

func TestNamespaceNotFound(t *testing.T) {
	chain := newTestChain(t)
	appendBlocks(t, chain, testhelpers.NewPseudoRandomDataSource(t, 10), 16)
	in, err := chain.Inputs(testNamespace, 0, 1)
	require.NoError(t, err)
	in.NamespaceID = 99
	require.ErrorIs(t, verifyFailFast(t, in), derivation.ErrNamespaceNotFound)
}

func TestRangeLengthMustMatchNamespace(t *testing.T) {
	chain := newTestChain(t)
	appendBlocks(t, chain, testhelpers.NewPseudoRandomDataSource(t, 11), 10)
	in, err := chain.Inputs(testNamespace, 0, 1)
	require.NoError(t, err)

	in.Payload = in.Payload[:9]
	in.Proofs[0].Range.End = 9
	require.ErrorIs(t, verifyFailFast(t, in), derivation.ErrNamespaceProofFailed)
}

func TestZeroLengthRange(t *testing.T) {
	chain := newTestChain(t)
	source := testhelpers.NewPseudoRandomDataSource(t, 12)
	_, err := chain.AppendBlock([]mockchain.NamespacePayload{
		{ID: 1, Data: source.GetData(20)},
		{ID: testNamespace, Data: nil},
		{ID: 2, Data: source.GetData(20)},
	})
	require.NoError(t, err)
	appendBlocks(t, chain, source, 15)

	in, err := chain.Inputs(testNamespace, 0, 2)
	require.NoError(t, err)
	require.Equal(t, derivation.Range{Start: 0, End: 0}, in.Proofs[0].Range)
	require.NoError(t, verifyFailFast(t, in))

	// a zero-length range still needs a valid membership proof
	in.Proofs[0].Proof.MembershipProof.Path[1][0] ^= 1
	require.ErrorIs(t, verifyFailFast(t, in), derivation.ErrInvalidMembership)
}

func TestMalformedInputIsFatal(t *testing.T) {
	chain := newTestChain(t)
	appendBlocks(t, chain, testhelpers.NewPseudoRandomDataSource(t, 13), 30, 30)

	for _, policy := range []string{derivation.PolicyFailFast, derivation.PolicyFailSoft} {
		verifier := newTestVerifier(t, policy, false)

		in, err := chain.Inputs(testNamespace, 0, 2)
		require.NoError(t, err)
		in.Proofs[1].Range = derivation.Range{Start: 30, End: 29}
		pub, err := verifier.Verify(in)
		require.ErrorIs(t, err, derivation.ErrMalformedInput)
		require.Nil(t, pub)

		in, err = chain.Inputs(testNamespace, 0, 2)
		require.NoError(t, err)
		in.VidParam = nil
		pub, err = verifier.Verify(in)
		require.ErrorIs(t, err, derivation.ErrMalformedInput)
		require.Nil(t, pub)
	}

	in, err := chain.Inputs(testNamespace, 0, 2)
	require.NoError(t, err)
	in.Proofs[0].Proof.Header.NsTable = espresso.NsTable{Bytes: []byte{1}}
	pub, err := newTestVerifier(t, derivation.PolicyFailSoft, false).Verify(in)
	require.ErrorIs(t, err, derivation.ErrMalformedInput)
	require.Nil(t, pub)
}

func TestInvalidHeaderIsMalformed(t *testing.T) {
	chain := newTestChain(t)
	appendBlocks(t, chain, testhelpers.NewPseudoRandomDataSource(t, 16), 30, 30)

	for _, policy := range []string{derivation.PolicyFailFast, derivation.PolicyFailSoft} {
		verifier := newTestVerifier(t, policy, false)

		in, err := chain.Inputs(testNamespace, 0, 2)
		require.NoError(t, err)
		header := &in.Proofs[1].Proof.Header
		require.NotNil(t, header.ChainConfig.Full)
		bogus := header.ChainConfig.Commit()
		header.ChainConfig.Commitment = &bogus
		pub, err := verifier.Verify(in)
		require.ErrorIs(t, err, derivation.ErrMalformedInput)
		require.ErrorIs(t, err, espresso.ErrInvalidChainConfig)
		require.Nil(t, pub)

		// trailing bytes after the announced entries
		in, err = chain.Inputs(testNamespace, 0, 2)
		require.NoError(t, err)
		table := &in.Proofs[0].Proof.Header.NsTable
		table.Bytes = append(append([]byte{}, table.Bytes...), 0)
		pub, err = verifier.Verify(in)
		require.ErrorIs(t, err, derivation.ErrMalformedInput)
		require.ErrorIs(t, err, espresso.ErrMalformedNsTable)
		require.Nil(t, pub)
	}
}

func TestFailSoftRecordsEveryFailure(t *testing.T) {
	logHandler := testhelpers.InitTestLog(t, slog.LevelWarn)
	chain := newTestChain(t)
	appendBlocks(t, chain, testhelpers.NewPseudoRandomDataSource(t, 14), 20, 20, 20)
	in, err := chain.Inputs(testNamespace, 0, 3)
	require.NoError(t, err)
	in.Proofs[0].Proof.MembershipProof.Path[2][5] ^= 1
	in.Payload[45] ^= 1

	pub, err := newTestVerifier(t, derivation.PolicyFailSoft, true).Verify(in)
	require.Error(t, err)
	require.ErrorIs(t, err, derivation.ErrInvalidMembership)
	require.ErrorIs(t, err, derivation.ErrNamespaceProofFailed)
	require.NotErrorIs(t, err, derivation.ErrRangeGap)
	require.NotNil(t, pub)
	require.False(t, pub.VerificationResult)
	require.Len(t, pub.Blocks, 3)
	require.Equal(t, derivation.RollupTxsCommit(in.Payload), pub.RollupTxsCommit)
	require.True(t, logHandler.WasLogged("derivation check failed"))

	// fail-fast stops at the first failure
	err = verifyFailFast(t, in)
	require.ErrorIs(t, err, derivation.ErrInvalidMembership)
	require.NotErrorIs(t, err, derivation.ErrNamespaceProofFailed)
}

func TestFailSoftAcceptsValidInputs(t *testing.T) {
	chain := newTestChain(t)
	appendBlocks(t, chain, testhelpers.NewPseudoRandomDataSource(t, 15), 5, 90)
	in, err := chain.Inputs(testNamespace, 0, 2)
	require.NoError(t, err)

	verifier := newTestVerifier(t, derivation.PolicyFailSoft, false)
	for i := 0; i < 2; i++ {
		pub, err := verifier.Verify(in)
		require.NoError(t, err)
		require.True(t, pub.VerificationResult)
		require.Empty(t, pub.Blocks)
	}
}

func TestSchemeParametersComeFromCommonData(t *testing.T) {
	param, err := mockchain.NewTestParam(16, 2)
	require.NoError(t, err)
	verifier := newTestVerifier(t, derivation.PolicyFailFast, false)
	for _, nodes := range []uint32{1, 3, 10, 16} {
		chain, err := mockchain.NewChain(param, nodes, 8)
		require.NoError(t, err)
		appendBlocks(t, chain, testhelpers.NewPseudoRandomDataSource(t, int(nodes)), 77, 3)
		in, err := chain.Inputs(testNamespace, 0, 2)
		require.NoError(t, err)
		require.Equal(t, nodes, vid.NumStorageNodes(&in.Proofs[0].Proof.VidCommon))
		_, err = verifier.Verify(in)
		require.NoError(t, err, "storage nodes %d", nodes)
	}
}
