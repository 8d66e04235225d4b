// Copyright 2024, Offchain Labs, Inc.
// For license information, see https://github.com/OffchainLabs/nitro/blob/master/LICENSE.md

package espresso

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/offchainlabs/espresso-derivation/espresso/commitment"
)

type NamespaceID = uint32

const (
	nsTableHeaderLen = 4
	nsTableEntryLen  = 8
)

var ErrMalformedNsTable = errors.New("malformed namespace table")

// NsTable maps namespaces to byte ranges of a block payload. The encoding is
//
//	[entry_count: u32 LE] [(namespace_id: u32 LE, end_offset: u32 LE)]*
//
// and each entry starts where the previous one ended.
type NsTable struct {
	Bytes []byte
}

type NsTableEntry struct {
	ID    NamespaceID
	Start uint32
	End   uint32
}

func (e NsTableEntry) Len() uint32 {
	return e.End - e.Start
}

// NewNsTable encodes a table from (id, end offset) pairs.
func NewNsTable(entries []NsTableEntry) NsTable {
	buf := make([]byte, 0, nsTableHeaderLen+nsTableEntryLen*len(entries))
	buf = binary.LittleEndian.AppendUint32(buf, uint32(len(entries)))
	for _, entry := range entries {
		buf = binary.LittleEndian.AppendUint32(buf, entry.ID)
		buf = binary.LittleEndian.AppendUint32(buf, entry.End)
	}
	return NsTable{Bytes: buf}
}

func (t NsTable) NumEntries() (uint32, error) {
	if len(t.Bytes) < nsTableHeaderLen {
		return 0, fmt.Errorf("%w: %d bytes is shorter than the header", ErrMalformedNsTable, len(t.Bytes))
	}
	return binary.LittleEndian.Uint32(t.Bytes[:nsTableHeaderLen]), nil
}

// Validate checks that the buffer holds exactly the entries its header announces and that the
// end offsets never decrease.
func (t NsTable) Validate() error {
	count, err := t.NumEntries()
	if err != nil {
		return err
	}
	expected := uint64(nsTableHeaderLen) + uint64(nsTableEntryLen)*uint64(count)
	if uint64(len(t.Bytes)) != expected {
		return fmt.Errorf("%w: %d entries need %d bytes, have %d", ErrMalformedNsTable, count, expected, len(t.Bytes))
	}
	var prevEnd uint32
	for i := uint32(0); i < count; i++ {
		entry := t.ReadUnchecked(i)
		if entry.End < prevEnd {
			return fmt.Errorf("%w: entry %d ends at %d before previous end %d", ErrMalformedNsTable, i, entry.End, prevEnd)
		}
		prevEnd = entry.End
	}
	return nil
}

// Read returns the entry at index, or false if index is out of bounds.
func (t NsTable) Read(index uint32) (NsTableEntry, bool, error) {
	count, err := t.NumEntries()
	if err != nil {
		return NsTableEntry{}, false, err
	}
	if index >= count {
		return NsTableEntry{}, false, nil
	}
	if uint64(len(t.Bytes)) < entryOffset(index)+nsTableEntryLen {
		return NsTableEntry{}, false, fmt.Errorf("%w: entry %d is truncated", ErrMalformedNsTable, index)
	}
	return t.ReadUnchecked(index), true, nil
}

// ReadUnchecked skips the bound check. The caller must know index < NumEntries() and that the
// buffer is long enough.
func (t NsTable) ReadUnchecked(index uint32) NsTableEntry {
	offset := entryOffset(index)
	entry := NsTableEntry{
		ID:  binary.LittleEndian.Uint32(t.Bytes[offset : offset+4]),
		End: binary.LittleEndian.Uint32(t.Bytes[offset+4 : offset+8]),
	}
	if index > 0 {
		entry.Start = binary.LittleEndian.Uint32(t.Bytes[offset-4 : offset])
	}
	return entry
}

// ScanForID walks the entries in order and returns the range of the first one with the given id.
func (t NsTable) ScanForID(id NamespaceID) (start uint32, end uint32, found bool, err error) {
	count, err := t.NumEntries()
	if err != nil {
		return 0, 0, false, err
	}
	for i := uint32(0); i < count; i++ {
		entry, ok, err := t.Read(i)
		if err != nil {
			return 0, 0, false, err
		}
		if ok && entry.ID == id {
			return entry.Start, entry.End, true, nil
		}
	}
	return 0, 0, false, nil
}

func (t NsTable) Commit() commitment.Commitment {
	return commitment.NewRawCommitmentBuilder("NSTABLE").
		VarSizeBytes(t.Bytes).
		Finalize()
}

func entryOffset(index uint32) uint64 {
	return nsTableHeaderLen + uint64(index)*nsTableEntryLen
}
