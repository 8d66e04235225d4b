// Copyright 2024, Offchain Labs, Inc.
// For license information, see https://github.com/OffchainLabs/nitro/blob/master/LICENSE.md

package derivationio

import (
	"errors"
	"fmt"
	"io"

	"github.com/ethereum/go-ethereum/log"
	"github.com/ethereum/go-ethereum/rlp"

	"github.com/offchainlabs/espresso-derivation/derivation"
)

var ErrAlreadyCommitted = errors.New("public inputs already committed")

// OutputWriter is the output channel of a verification run. It accepts exactly one record.
type OutputWriter struct {
	w         io.Writer
	committed bool
}

func NewOutputWriter(w io.Writer) *OutputWriter {
	return &OutputWriter{w: w}
}

func (o *OutputWriter) CommitPublicInputs(pub *derivation.PublicInputs) error {
	if o.committed {
		return ErrAlreadyCommitted
	}
	if pub == nil {
		return errors.New("no public inputs to commit")
	}
	if err := rlp.Encode(o.w, pub); err != nil {
		return fmt.Errorf("error encoding public inputs: %w", err)
	}
	o.committed = true
	log.Info("committed public inputs", "result", pub.VerificationResult, "rollupTxsCommit", pub.RollupTxsCommit, "namespace", pub.NamespaceID)
	return nil
}

func ReadPublicInputs(r io.Reader) (*derivation.PublicInputs, error) {
	var pub derivation.PublicInputs
	if err := rlp.Decode(r, &pub); err != nil {
		return nil, fmt.Errorf("error decoding public inputs: %w", err)
	}
	return &pub, nil
}
