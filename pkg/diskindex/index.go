// Package diskindex decodes and encodes the fixed 6-byte entries that make
// up a FileStore index file: the byte-size of an archive and the sector at
// which its chain begins.
package diskindex

import (
	"fmt"

	"github.com/openscape/cachefs/pkg/storeerr"
)

// Size is the on-disk size of one index entry.
const Size = 6

// Entry describes where one archive's data begins and how long it is.
type Entry struct {
	Size        uint32 // masked to 24 bits
	FirstSector uint32 // masked to 24 bits
}

// Decode parses exactly Size bytes into an Entry.
func Decode(buf []byte) (Entry, error) {
	var e Entry
	if len(buf) != Size {
		return e, storeerr.InvalidData("diskindex.Decode", fmt.Errorf("expected %d bytes, got %d", Size, len(buf)))
	}

	e.Size = (uint32(buf[0])<<16 | uint32(buf[1])<<8 | uint32(buf[2])) & 0x00FFFFFF
	e.FirstSector = (uint32(buf[3])<<16 | uint32(buf[4])<<8 | uint32(buf[5])) & 0x00FFFFFF
	return e, nil
}

// Encode is the structural inverse of Decode.
func (e Entry) Encode() []byte {
	buf := make([]byte, Size)

	size := e.Size & 0x00FFFFFF
	buf[0] = byte(size >> 16)
	buf[1] = byte(size >> 8)
	buf[2] = byte(size)

	first := e.FirstSector & 0x00FFFFFF
	buf[3] = byte(first >> 16)
	buf[4] = byte(first >> 8)
	buf[5] = byte(first)

	return buf
}

// Empty reports whether the entry describes a zero-length archive with no
// sector chain — the "no such file" case a reader past end-of-file is
// treated the same as.
func (e Entry) Empty() bool {
	return e.Size == 0 && e.FirstSector == 0
}
