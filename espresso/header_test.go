// Copyright 2024, Offchain Labs, Inc.
// For license information, see https://github.com/OffchainLabs/nitro/blob/master/LICENSE.md

package espresso

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"

	"github.com/offchainlabs/espresso-derivation/espresso/blockmerkle"
	"github.com/offchainlabs/espresso-derivation/espresso/commitment"
)

func sampleHeader() Header {
	return Header{
		ChainConfig: ResolvableFromChainConfig(ChainConfig{
			ChainID:      uint256.NewInt(888888888),
			MaxBlockSize: 30000000,
			BaseFee:      uint256.NewInt(0),
		}),
		Height:    69781,
		Timestamp: 1720789795,
		L1Head:    5113,
		L1Finalized: &L1BlockInfo{
			Number:    5088,
			Timestamp: uint256.NewInt(0x669129ec),
			Hash:      common.HexToHash("0xfc4249b13292d2617cc0dec8b0a9a666491d5fecdfe536c929207847364b2b60"),
		},
		NsTable: NewNsTable([]NsTableEntry{{ID: 29, End: 11}}),
		BlockMerkleTreeRoot: blockmerkle.Commitment{
			Root:      common.HexToHash("0x1234"),
			Height:    32,
			NumLeaves: 69781,
		},
		FeeMerkleTreeRoot: []byte{1, 2, 3},
		FeeInfo: FeeInfo{
			Account: common.HexToAddress("0x23618e81e3f5cdf7f54c3d65f7fbc0abf5b21e8f"),
			Amount:  uint256.NewInt(0),
		},
	}
}

func TestHeaderCommitmentIsDeterministic(t *testing.T) {
	a := sampleHeader()
	b := sampleHeader()
	require.Equal(t, a.Commit(), b.Commit())
}

func TestHeaderCommitmentBindsEveryField(t *testing.T) {
	base := sampleHeader()
	baseComm := base.Commit()

	mutations := map[string]func(h *Header){
		"chain_config":  func(h *Header) { h.ChainConfig.Full.MaxBlockSize++ },
		"height":        func(h *Header) { h.Height++ },
		"timestamp":     func(h *Header) { h.Timestamp++ },
		"l1_head":       func(h *Header) { h.L1Head++ },
		"l1_finalized":  func(h *Header) { h.L1Finalized = nil },
		"l1_number":     func(h *Header) { h.L1Finalized.Number++ },
		"payload":       func(h *Header) { h.PayloadCommitment[0] ^= 1 },
		"builder":       func(h *Header) { h.BuilderCommitment[31] ^= 1 },
		"ns_table":      func(h *Header) { h.NsTable = NewNsTable([]NsTableEntry{{ID: 29, End: 12}}) },
		"block_merkle":  func(h *Header) { h.BlockMerkleTreeRoot.NumLeaves++ },
		"fee_merkle":    func(h *Header) { h.FeeMerkleTreeRoot = append(h.FeeMerkleTreeRoot, 0) },
		"fee_account":   func(h *Header) { h.FeeInfo.Account[0] ^= 1 },
		"fee_amount":    func(h *Header) { h.FeeInfo.Amount = uint256.NewInt(1) },
		"fee_contract":  func(h *Header) { addr := common.Address{}; h.ChainConfig.Full.FeeContract = &addr },
		"base_fee":      func(h *Header) { h.ChainConfig.Full.BaseFee = uint256.NewInt(1) },
		"fee_recipient": func(h *Header) { h.ChainConfig.Full.FeeRecipient[19] = 1 },
	}
	for name, mutate := range mutations {
		h := sampleHeader()
		mutate(&h)
		require.NotEqual(t, baseComm, h.Commit(), "mutating %s did not change the commitment", name)
	}
}

func TestResolvableChainConfig(t *testing.T) {
	config := ChainConfig{ChainID: uint256.NewInt(1), MaxBlockSize: 10, BaseFee: uint256.NewInt(2)}
	full := ResolvableFromChainConfig(config)
	onlyComm := ResolvableFromCommitment(config.Commit())
	require.Equal(t, full.Commit(), onlyComm.Commit())
	require.NotNil(t, full.Resolve())
	require.Nil(t, onlyComm.Resolve())

	h1 := sampleHeader()
	h2 := sampleHeader()
	h2.ChainConfig = ResolvableFromCommitment(h1.ChainConfig.Commit())
	require.Equal(t, h1.Commit(), h2.Commit())

	both := ResolvableChainConfig{Full: &config, Commitment: &commitment.Commitment{}}
	require.ErrorIs(t, both.Validate(), ErrInvalidChainConfig)

	var unset ResolvableChainConfig
	require.NoError(t, unset.Validate())
	require.Equal(t, (&ChainConfig{}).Commit(), unset.Commit())
}

func TestFeeInfoCommitmentLayout(t *testing.T) {
	fee := FeeInfo{Account: common.HexToAddress("0x01"), Amount: uint256.NewInt(5)}
	expected := commitment.NewRawCommitmentBuilder("FEE_INFO").
		ConstantString("account").FixedSizeBytes(fee.Account.Bytes()).
		ConstantString("amount").FixedSizeBytes(commitment.Uint256LittleEndian(fee.Amount)).
		Finalize()
	require.Equal(t, expected, fee.Commit())
}

func TestHeaderValidate(t *testing.T) {
	h := sampleHeader()
	require.NoError(t, h.Validate())
	h.NsTable.Bytes = h.NsTable.Bytes[:3]
	require.ErrorIs(t, h.Validate(), ErrMalformedNsTable)
}
