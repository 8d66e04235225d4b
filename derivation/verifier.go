// Copyright 2024, Offchain Labs, Inc.
// For license information, see https://github.com/OffchainLabs/nitro/blob/master/LICENSE.md

// Package derivation checks that a rollup payload is exactly the concatenation of namespace
// slices taken from Espresso blocks committed in a block Merkle tree.
package derivation

import (
	"errors"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/log"
	"github.com/ethereum/go-ethereum/metrics"

	"github.com/offchainlabs/espresso-derivation/espresso/blockmerkle"
	"github.com/offchainlabs/espresso-derivation/espresso/vid"
	"github.com/offchainlabs/espresso-derivation/util/containers"
)

var (
	ErrMalformedInput       = errors.New("malformed input")
	ErrInvalidMembership    = errors.New("block is not a member of the accumulator")
	ErrHeaderMismatch       = errors.New("header does not match accumulator leaf")
	ErrNamespaceNotFound    = errors.New("namespace not found in block")
	ErrNamespaceProofFailed = errors.New("namespace proof failed")
	ErrRangeGap             = errors.New("range does not start where the previous one ended")
	ErrIncompleteCoverage   = errors.New("ranges do not cover the payload")
)

var (
	verifyTimer             = metrics.NewRegisteredTimer("espresso/derivation/verify", nil)
	vidVerifyTimer          = metrics.NewRegisteredTimer("espresso/derivation/vid/verify", nil)
	blocksCounter           = metrics.NewRegisteredCounter("espresso/derivation/blocks", nil)
	failuresCounter         = metrics.NewRegisteredCounter("espresso/derivation/failures", nil)
	schemeCacheHitCounter   = metrics.NewRegisteredCounter("espresso/derivation/schemecache/hit", nil)
	schemeCacheMissCounter  = metrics.NewRegisteredCounter("espresso/derivation/schemecache/miss", nil)
	schemeCacheEvictCounter = metrics.NewRegisteredCounter("espresso/derivation/schemecache/evict", nil)
	schemeCacheSizeGauge    = metrics.NewRegisteredGauge("espresso/derivation/schemecache/size", nil)
)

type schemeKey struct {
	param           common.Hash
	numStorageNodes uint32
}

type Verifier struct {
	config  *Config
	schemes *containers.LruCache[schemeKey, *vid.Scheme]
}

func NewVerifier(config *Config) (*Verifier, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &Verifier{
		config:  config,
		schemes: containers.NewLruCacheWithOnEvict(config.SchemeCacheSize, func(schemeKey, *vid.Scheme) {
			schemeCacheEvictCounter.Inc(1)
		}),
	}, nil
}

func (v *Verifier) scheme(param *vid.Param, numStorageNodes uint32) (*vid.Scheme, error) {
	key := schemeKey{param: param.Hash(), numStorageNodes: numStorageNodes}
	scheme, hit, err := v.schemes.GetOrCreate(key, func() (*vid.Scheme, error) {
		return vid.NewScheme(numStorageNodes, param)
	})
	if hit {
		schemeCacheHitCounter.Inc(1)
	} else {
		schemeCacheMissCounter.Inc(1)
		schemeCacheSizeGauge.Update(int64(v.schemes.Len()))
	}
	return scheme, err
}

// failureSink collects per-block failures according to the policy. report returns false when
// verification must stop.
type failureSink struct {
	failSoft bool
	failures []error
}

func (s *failureSink) report(err error) bool {
	failuresCounter.Inc(1)
	s.failures = append(s.failures, err)
	if s.failSoft {
		log.Warn("derivation check failed", "err", err)
	}
	return s.failSoft
}

func (s *failureSink) err() error {
	if len(s.failures) == 0 {
		return nil
	}
	if len(s.failures) == 1 {
		return s.failures[0]
	}
	return errors.Join(s.failures...)
}

// Verify checks that the proofs, in the given order, cover the payload exactly and that each one
// proves its slice.
//
// With the fail-fast policy the first failure is returned and there is no output. With the
// fail-soft policy every check runs, and the output is returned with VerificationResult set to
// false together with the failures. Malformed input is fatal under both policies.
func (v *Verifier) Verify(in *Inputs) (*PublicInputs, error) {
	defer verifyTimer.UpdateSince(time.Now())
	if err := in.Validate(); err != nil {
		return nil, err
	}
	builder := NewPublicInputsBuilder(in.Payload, in.VidParam, in.NamespaceID, in.AccumulatorRoot)
	sink := &failureSink{failSoft: v.config.failSoft()}

	// Coverage is checked up front. A shrunk or grown range would otherwise fail the namespace
	// length check of its own proof before the gap at the next one is seen.
	for _, err := range checkCoverage(in.Proofs, uint64(len(in.Payload))) {
		if !sink.report(err) {
			return nil, err
		}
	}
	for i := range in.Proofs {
		ranged := &in.Proofs[i]
		cont, err := v.verifyBlock(in, i, ranged, sink)
		if err != nil {
			return nil, err
		}
		if !cont {
			return nil, sink.err()
		}
		blocksCounter.Inc(1)
		builder.AddBlock(ranged.Range, ranged.Proof.Header.Height)
	}

	if err := sink.err(); err != nil {
		builder.Reject()
		return builder.Build(v.config.BlockSummaries), err
	}
	log.Debug("derivation verified", "namespace", in.NamespaceID, "blocks", len(in.Proofs), "payloadLen", len(in.Payload))
	return builder.Build(v.config.BlockSummaries), nil
}

// checkCoverage requires every range to start where the previous one ended and the last one to
// end at the payload length. Zero-length ranges leave the expected start unchanged.
func checkCoverage(proofs []RangedProof, payloadLen uint64) []error {
	var errs []error
	expectedStart := uint64(0)
	for i := range proofs {
		r := proofs[i].Range
		if r.Start != expectedStart {
			errs = append(errs, fmt.Errorf("%w: proof %d starts at %d, expected %d", ErrRangeGap, i, r.Start, expectedStart))
		}
		if r.End > payloadLen {
			errs = append(errs, fmt.Errorf("%w: proof %d range %v exceeds payload of %d bytes", ErrIncompleteCoverage, i, r, payloadLen))
		}
		expectedStart = r.End
	}
	if expectedStart != payloadLen {
		errs = append(errs, fmt.Errorf("%w: ranges end at %d, payload has %d bytes", ErrIncompleteCoverage, expectedStart, payloadLen))
	}
	return errs
}

// verifyBlock runs the membership, header, namespace and VID checks of one proof in order. It
// returns false when the policy says to stop, and an error only for malformed input.
func (v *Verifier) verifyBlock(in *Inputs, index int, ranged *RangedProof, sink *failureSink) (bool, error) {
	r := ranged.Range
	proof := &ranged.Proof
	header := &proof.Header

	member, err := blockmerkle.Verify(in.AccumulatorRoot, proof.MembershipProof.Pos, &proof.MembershipProof)
	if err != nil {
		err = fmt.Errorf("%w: proof %d: %w", ErrInvalidMembership, index, err)
	} else if !member {
		err = fmt.Errorf("%w: proof %d at position %d", ErrInvalidMembership, index, proof.MembershipProof.Pos)
	}
	if err != nil && !sink.report(err) {
		return false, nil
	}

	if proof.MembershipProof.Elem != header.Commit() {
		err := fmt.Errorf("%w: proof %d header at height %d", ErrHeaderMismatch, index, header.Height)
		if !sink.report(err) {
			return false, nil
		}
	}

	nsStart, nsEnd, found, err := header.NsTable.ScanForID(in.NamespaceID)
	if err != nil {
		return false, fmt.Errorf("%w: proof %d: %w", ErrMalformedInput, index, err)
	}
	if !found {
		err := fmt.Errorf("%w: namespace %d in block %d", ErrNamespaceNotFound, in.NamespaceID, header.Height)
		return sink.report(err), nil
	}

	if uint64(nsEnd-nsStart) != r.Len() {
		err := fmt.Errorf("%w: proof %d range %v has %d bytes, namespace has %d", ErrNamespaceProofFailed, index, r, r.Len(), nsEnd-nsStart)
		return sink.report(err), nil
	}
	if r.End > uint64(len(in.Payload)) {
		// already reported by the coverage check
		return true, nil
	}
	if err := v.verifyNamespace(in, ranged, uint64(nsStart), uint64(nsEnd)); err != nil {
		return sink.report(fmt.Errorf("proof %d: %w", index, err)), nil
	}
	return true, nil
}

func (v *Verifier) verifyNamespace(in *Inputs, ranged *RangedProof, nsStart, nsEnd uint64) error {
	defer vidVerifyTimer.UpdateSince(time.Now())
	proof := &ranged.Proof
	// VidCommon is untrusted, so a node count no scheme can serve fails only this proof
	scheme, err := v.scheme(in.VidParam, vid.NumStorageNodes(&proof.VidCommon))
	if err != nil {
		return fmt.Errorf("%w: %w", ErrNamespaceProofFailed, err)
	}
	slice := in.Payload[ranged.Range.Start:ranged.Range.End]
	ok, err := scheme.VerifySubrange(slice, nsStart, nsEnd, proof.Header.PayloadCommitment, &proof.VidCommon, &proof.NsProof)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrNamespaceProofFailed, err)
	}
	if !ok {
		return fmt.Errorf("%w: block %d namespace range [%d, %d)", ErrNamespaceProofFailed, proof.Header.Height, nsStart, nsEnd)
	}
	return nil
}
