// Package reftable decodes and encodes the reference-table descriptor
// stored at type 255 for each archive group: per-entry CRC, optional
// Whirlpool digest, version, and delta-coded child-entry lists.
package reftable

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/openscape/cachefs/pkg/storeerr"
)

const (
	flagIdentifiers = 0x01
	flagWhirlpool   = 0x02

	minVersionedFormat = 6
)

// ChildEntry is one child of a reference-table entry.
type ChildEntry struct {
	Identifier *int32 // present iff the table's flagIdentifiers bit is set
}

// Entry is one archive group's descriptor.
type Entry struct {
	Identifier *int32
	CRC        int32
	Whirlpool  [64]byte
	Version    int32

	// ChildIDs preserves decode order; ChildIDs[i] indexes into Children.
	ChildIDs []int
	Children map[int]ChildEntry
}

// Table is a fully decoded reference table.
type Table struct {
	Format  uint8
	Version int32 // only meaningful when Format >= 6
	Flags   uint8

	// IDs preserves decode order, which callers must iterate in rather
	// than sorted id order.
	IDs     []int
	Entries map[int]Entry
}

func (t Table) hasIdentifiers() bool { return t.Flags&flagIdentifiers != 0 }
func (t Table) hasWhirlpool() bool   { return t.Flags&flagWhirlpool != 0 }

// Decode parses buf as a reference table.
func Decode(buf []byte) (Table, error) {
	r := bytes.NewReader(buf)
	var t Table

	format, err := r.ReadByte()
	if err != nil {
		return t, storeerr.InvalidData("reftable.Decode", fmt.Errorf("reading format: %w", err))
	}
	t.Format = format

	if t.Format >= minVersionedFormat {
		var version int32
		if err := binary.Read(r, binary.BigEndian, &version); err != nil {
			return t, storeerr.InvalidData("reftable.Decode", fmt.Errorf("reading version: %w", err))
		}
		t.Version = version
	}

	flags, err := r.ReadByte()
	if err != nil {
		return t, storeerr.InvalidData("reftable.Decode", fmt.Errorf("reading flags: %w", err))
	}
	t.Flags = flags

	var idsLen uint16
	if err := binary.Read(r, binary.BigEndian, &idsLen); err != nil {
		return t, storeerr.InvalidData("reftable.Decode", fmt.Errorf("reading ids_len: %w", err))
	}

	ids := make([]int, idsLen)
	running := 0
	for i := range ids {
		var delta int16
		if err := binary.Read(r, binary.BigEndian, &delta); err != nil {
			return t, storeerr.InvalidData("reftable.Decode", fmt.Errorf("reading id delta %d: %w", i, err))
		}
		running += int(delta)
		ids[i] = running
	}
	t.IDs = ids
	t.Entries = make(map[int]Entry, len(ids))

	entries := make([]Entry, len(ids))

	if t.hasIdentifiers() {
		for i := range ids {
			var ident int32
			if err := binary.Read(r, binary.BigEndian, &ident); err != nil {
				return t, storeerr.InvalidData("reftable.Decode", fmt.Errorf("reading identifier %d: %w", i, err))
			}
			v := ident
			entries[i].Identifier = &v
		}
	}

	for i := range ids {
		var crc int32
		if err := binary.Read(r, binary.BigEndian, &crc); err != nil {
			return t, storeerr.InvalidData("reftable.Decode", fmt.Errorf("reading crc %d: %w", i, err))
		}
		entries[i].CRC = crc
	}

	if t.hasWhirlpool() {
		for i := range ids {
			var wp [64]byte
			if _, err := r.Read(wp[:]); err != nil {
				return t, storeerr.InvalidData("reftable.Decode", fmt.Errorf("reading whirlpool %d: %w", i, err))
			}
			entries[i].Whirlpool = wp
		}
	}

	for i := range ids {
		var version int32
		if err := binary.Read(r, binary.BigEndian, &version); err != nil {
			return t, storeerr.InvalidData("reftable.Decode", fmt.Errorf("reading entry version %d: %w", i, err))
		}
		entries[i].Version = version
	}

	childCounts := make([]uint16, len(ids))
	for i := range ids {
		if err := binary.Read(r, binary.BigEndian, &childCounts[i]); err != nil {
			return t, storeerr.InvalidData("reftable.Decode", fmt.Errorf("reading child_count %d: %w", i, err))
		}
	}

	for i := range ids {
		count := childCounts[i]
		childIDs := make([]int, count)
		running := 0
		for c := 0; c < int(count); c++ {
			var delta int16
			if err := binary.Read(r, binary.BigEndian, &delta); err != nil {
				return t, storeerr.InvalidData("reftable.Decode", fmt.Errorf("reading child id delta %d/%d: %w", i, c, err))
			}
			running += int(delta)
			childIDs[c] = running
		}
		entries[i].ChildIDs = childIDs
		entries[i].Children = make(map[int]ChildEntry, count)
		for _, cid := range childIDs {
			entries[i].Children[cid] = ChildEntry{}
		}
	}

	if t.hasIdentifiers() {
		for i := range ids {
			for _, cid := range entries[i].ChildIDs {
				var ident int32
				if err := binary.Read(r, binary.BigEndian, &ident); err != nil {
					return t, storeerr.InvalidData("reftable.Decode", fmt.Errorf("reading child identifier: %w", err))
				}
				v := ident
				entries[i].Children[cid] = ChildEntry{Identifier: &v}
			}
		}
	}

	for i, id := range ids {
		t.Entries[id] = entries[i]
	}

	return t, nil
}

// Encode is the structural inverse of Decode, emitting ids, children and
// flag-gated fields in t.IDs order (not sorted order).
func Encode(t Table) ([]byte, error) {
	var buf bytes.Buffer

	buf.WriteByte(t.Format)
	if t.Format >= minVersionedFormat {
		if err := binary.Write(&buf, binary.BigEndian, t.Version); err != nil {
			return nil, err
		}
	}
	buf.WriteByte(t.Flags)

	if err := binary.Write(&buf, binary.BigEndian, uint16(len(t.IDs))); err != nil {
		return nil, err
	}

	prev := 0
	for _, id := range t.IDs {
		delta := int16(id - prev)
		if err := binary.Write(&buf, binary.BigEndian, delta); err != nil {
			return nil, err
		}
		prev = id
	}

	if t.hasIdentifiers() {
		for _, id := range t.IDs {
			e := t.Entries[id]
			var ident int32
			if e.Identifier != nil {
				ident = *e.Identifier
			}
			if err := binary.Write(&buf, binary.BigEndian, ident); err != nil {
				return nil, err
			}
		}
	}

	for _, id := range t.IDs {
		if err := binary.Write(&buf, binary.BigEndian, t.Entries[id].CRC); err != nil {
			return nil, err
		}
	}

	if t.hasWhirlpool() {
		for _, id := range t.IDs {
			wp := t.Entries[id].Whirlpool
			buf.Write(wp[:])
		}
	}

	for _, id := range t.IDs {
		if err := binary.Write(&buf, binary.BigEndian, t.Entries[id].Version); err != nil {
			return nil, err
		}
	}

	for _, id := range t.IDs {
		if err := binary.Write(&buf, binary.BigEndian, uint16(len(t.Entries[id].ChildIDs))); err != nil {
			return nil, err
		}
	}

	for _, id := range t.IDs {
		e := t.Entries[id]
		prev := 0
		for _, cid := range e.ChildIDs {
			delta := int16(cid - prev)
			if err := binary.Write(&buf, binary.BigEndian, delta); err != nil {
				return nil, err
			}
			prev = cid
		}
	}

	if t.hasIdentifiers() {
		for _, id := range t.IDs {
			e := t.Entries[id]
			for _, cid := range e.ChildIDs {
				child := e.Children[cid]
				var ident int32
				if child.Identifier != nil {
					ident = *child.Identifier
				}
				if err := binary.Write(&buf, binary.BigEndian, ident); err != nil {
					return nil, err
				}
			}
		}
	}

	return buf.Bytes(), nil
}
