// Copyright 2024, Offchain Labs, Inc.
// For license information, see https://github.com/OffchainLabs/nitro/blob/master/LICENSE.md

// Package derivationio carries verifier inputs and outputs between a host and the verifier. An
// input stream is a header byte selecting the compression, followed by the RLP encoded fields of
// derivation.Inputs in a fixed order.
package derivationio

import (
	"bufio"
	"errors"
	"fmt"
	"io"

	"github.com/andybalholm/brotli"
	"github.com/ethereum/go-ethereum/log"
	"github.com/ethereum/go-ethereum/rlp"

	"github.com/offchainlabs/espresso-derivation/derivation"
	"github.com/offchainlabs/espresso-derivation/espresso"
	"github.com/offchainlabs/espresso-derivation/espresso/blockmerkle"
	"github.com/offchainlabs/espresso-derivation/espresso/vid"
)

const (
	RawHeaderByte    byte = 0x00
	BrotliHeaderByte byte = 0x01
)

// MaxInputSize bounds any single RLP value in an input stream.
const MaxInputSize = 1 << 30

var (
	ErrUnknownHeader = errors.New("unknown input stream header")
	ErrOutOfOrder    = errors.New("input field read out of order")
)

type field int

const (
	fieldPayload field = iota
	fieldVidParam
	fieldNamespaceID
	fieldAccumulatorRoot
	fieldBlockProofs
	fieldDone
)

func (f field) String() string {
	switch f {
	case fieldPayload:
		return "payload"
	case fieldVidParam:
		return "vid param"
	case fieldNamespaceID:
		return "namespace id"
	case fieldAccumulatorRoot:
		return "accumulator root"
	case fieldBlockProofs:
		return "block proofs"
	}
	return "end of input"
}

// InputReader reads the fields of an input stream. Each field can be read once and only in order.
type InputReader struct {
	stream *rlp.Stream
	next   field
}

func NewInputReader(r io.Reader) (*InputReader, error) {
	buffered := bufio.NewReader(r)
	header, err := buffered.ReadByte()
	if err != nil {
		return nil, fmt.Errorf("error reading input stream header: %w", err)
	}
	var body io.Reader
	switch header {
	case RawHeaderByte:
		body = buffered
	case BrotliHeaderByte:
		body = brotli.NewReader(buffered)
	default:
		return nil, fmt.Errorf("%w: 0x%02x", ErrUnknownHeader, header)
	}
	return &InputReader{stream: rlp.NewStream(body, MaxInputSize)}, nil
}

func (r *InputReader) read(f field, val interface{}) error {
	if r.next != f {
		return fmt.Errorf("%w: reading %v, next field is %v", ErrOutOfOrder, f, r.next)
	}
	if err := r.stream.Decode(val); err != nil {
		return fmt.Errorf("%w: decoding %v: %w", derivation.ErrMalformedInput, f, err)
	}
	r.next++
	return nil
}

func (r *InputReader) ReadPayload() ([]byte, error) {
	var payload []byte
	if err := r.read(fieldPayload, &payload); err != nil {
		return nil, err
	}
	return payload, nil
}

func (r *InputReader) ReadVidParam() (*vid.Param, error) {
	param := new(vid.Param)
	if err := r.read(fieldVidParam, param); err != nil {
		return nil, err
	}
	return param, nil
}

func (r *InputReader) ReadNamespaceID() (espresso.NamespaceID, error) {
	var id espresso.NamespaceID
	err := r.read(fieldNamespaceID, &id)
	return id, err
}

func (r *InputReader) ReadAccumulatorRoot() (blockmerkle.Commitment, error) {
	var root blockmerkle.Commitment
	err := r.read(fieldAccumulatorRoot, &root)
	return root, err
}

func (r *InputReader) ReadBlockProofs() ([]derivation.RangedProof, error) {
	var proofs []derivation.RangedProof
	if err := r.read(fieldBlockProofs, &proofs); err != nil {
		return nil, err
	}
	return proofs, nil
}

// ReadInputs reads every field of the stream in order.
func (r *InputReader) ReadInputs() (*derivation.Inputs, error) {
	var in derivation.Inputs
	var err error
	if in.Payload, err = r.ReadPayload(); err != nil {
		return nil, err
	}
	if in.VidParam, err = r.ReadVidParam(); err != nil {
		return nil, err
	}
	if in.NamespaceID, err = r.ReadNamespaceID(); err != nil {
		return nil, err
	}
	if in.AccumulatorRoot, err = r.ReadAccumulatorRoot(); err != nil {
		return nil, err
	}
	if in.Proofs, err = r.ReadBlockProofs(); err != nil {
		return nil, err
	}
	log.Debug("read derivation inputs", "payloadLen", len(in.Payload), "proofs", len(in.Proofs), "namespace", in.NamespaceID)
	return &in, nil
}

func ReadInputs(r io.Reader) (*derivation.Inputs, error) {
	reader, err := NewInputReader(r)
	if err != nil {
		return nil, err
	}
	return reader.ReadInputs()
}

// InputWriter produces an input stream. Close must be called to flush compressed output; it does
// not close the underlying writer.
type InputWriter struct {
	w          io.Writer
	compressor *brotli.Writer
	next       field
}

// NewInputWriter starts a stream. A negative compression level writes it uncompressed.
func NewInputWriter(w io.Writer, compressionLevel int) (*InputWriter, error) {
	if compressionLevel < 0 {
		if _, err := w.Write([]byte{RawHeaderByte}); err != nil {
			return nil, err
		}
		return &InputWriter{w: w}, nil
	}
	if _, err := w.Write([]byte{BrotliHeaderByte}); err != nil {
		return nil, err
	}
	compressor := brotli.NewWriterLevel(w, compressionLevel)
	return &InputWriter{w: compressor, compressor: compressor}, nil
}

func (w *InputWriter) write(f field, val interface{}) error {
	if w.next != f {
		return fmt.Errorf("%w: writing %v, next field is %v", ErrOutOfOrder, f, w.next)
	}
	if err := rlp.Encode(w.w, val); err != nil {
		return fmt.Errorf("error encoding %v: %w", f, err)
	}
	w.next++
	return nil
}

func (w *InputWriter) WritePayload(payload []byte) error {
	return w.write(fieldPayload, payload)
}

func (w *InputWriter) WriteVidParam(param *vid.Param) error {
	if param == nil {
		return errors.New("missing VID parameters")
	}
	return w.write(fieldVidParam, param)
}

func (w *InputWriter) WriteNamespaceID(id espresso.NamespaceID) error {
	return w.write(fieldNamespaceID, id)
}

func (w *InputWriter) WriteAccumulatorRoot(root blockmerkle.Commitment) error {
	return w.write(fieldAccumulatorRoot, &root)
}

func (w *InputWriter) WriteBlockProofs(proofs []derivation.RangedProof) error {
	return w.write(fieldBlockProofs, proofs)
}

func (w *InputWriter) WriteInputs(in *derivation.Inputs) error {
	if err := w.WritePayload(in.Payload); err != nil {
		return err
	}
	if err := w.WriteVidParam(in.VidParam); err != nil {
		return err
	}
	if err := w.WriteNamespaceID(in.NamespaceID); err != nil {
		return err
	}
	if err := w.WriteAccumulatorRoot(in.AccumulatorRoot); err != nil {
		return err
	}
	return w.WriteBlockProofs(in.Proofs)
}

func (w *InputWriter) Close() error {
	if w.next != fieldDone {
		log.Warn("closing incomplete derivation input stream", "next", w.next)
	}
	if w.compressor != nil {
		return w.compressor.Close()
	}
	return nil
}

// WriteInputs writes a complete stream for in.
func WriteInputs(w io.Writer, in *derivation.Inputs, compressionLevel int) error {
	writer, err := NewInputWriter(w, compressionLevel)
	if err != nil {
		return err
	}
	if err := writer.WriteInputs(in); err != nil {
		return errors.Join(err, writer.Close())
	}
	return writer.Close()
}
