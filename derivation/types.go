// Copyright 2024, Offchain Labs, Inc.
// For license information, see https://github.com/OffchainLabs/nitro/blob/master/LICENSE.md

package derivation

import (
	"fmt"

	"github.com/offchainlabs/espresso-derivation/espresso"
	"github.com/offchainlabs/espresso-derivation/espresso/blockmerkle"
	"github.com/offchainlabs/espresso-derivation/espresso/vid"
)

// Range is a half-open byte range [Start, End) of the rollup payload.
type Range struct {
	Start uint64
	End   uint64
}

func (r Range) Len() uint64 {
	return r.End - r.Start
}

func (r Range) String() string {
	return fmt.Sprintf("[%d, %d)", r.Start, r.End)
}

// BlockDerivationProof is the evidence that one slice of the rollup payload is the namespace
// data of a block committed in the block Merkle tree.
type BlockDerivationProof struct {
	MembershipProof blockmerkle.MembershipProof
	Header          espresso.Header
	VidCommon       vid.Common
	NsProof         vid.NsProof
}

type RangedProof struct {
	Range Range
	Proof BlockDerivationProof
}

// Inputs is everything a single verification run consumes, in the order it is read.
type Inputs struct {
	Payload         []byte
	VidParam        *vid.Param
	NamespaceID     espresso.NamespaceID
	AccumulatorRoot blockmerkle.Commitment
	Proofs          []RangedProof
}

// Validate rejects inputs that cannot be evaluated at all.
func (in *Inputs) Validate() error {
	if in.VidParam == nil {
		return fmt.Errorf("%w: missing VID parameters", ErrMalformedInput)
	}
	if in.AccumulatorRoot.Height > blockmerkle.MaxHeight {
		return fmt.Errorf("%w: accumulator height %d exceeds %d", ErrMalformedInput, in.AccumulatorRoot.Height, blockmerkle.MaxHeight)
	}
	for i := range in.Proofs {
		r := in.Proofs[i].Range
		if r.End < r.Start {
			return fmt.Errorf("%w: proof %d has range %v ending before it starts", ErrMalformedInput, i, r)
		}
		if err := in.Proofs[i].Proof.Header.Validate(); err != nil {
			return fmt.Errorf("%w: proof %d: %w", ErrMalformedInput, i, err)
		}
	}
	return nil
}
