// Package sector decodes and encodes the fixed 520-byte blocks that make up
// a FileStore data file: a small header identifying which archive chain the
// block belongs to, followed by a 512-byte payload.
package sector

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/openscape/cachefs/pkg/storeerr"
)

// Size is the on-disk size of one sector: 2+2+3+1 header bytes plus a
// 512-byte payload.
const Size = 520

// PayloadSize is the number of payload bytes carried by one sector.
const PayloadSize = 512

const headerSize = Size - PayloadSize

// Sector is one 520-byte block of a FileStore data file.
type Sector struct {
	ArchiveID  uint16
	ChunkIndex uint16
	NextSector uint32 // masked to 24 bits
	TypeID     uint8
	Payload    [PayloadSize]byte
}

// Decode parses exactly Size bytes into a Sector. Any other length is
// InvalidData.
func Decode(buf []byte) (Sector, error) {
	var s Sector
	if len(buf) != Size {
		return s, storeerr.InvalidData("sector.Decode", fmt.Errorf("expected %d bytes, got %d", Size, len(buf)))
	}

	s.ArchiveID = binary.BigEndian.Uint16(buf[0:2])
	s.ChunkIndex = binary.BigEndian.Uint16(buf[2:4])
	next := uint32(buf[4])<<16 | uint32(buf[5])<<8 | uint32(buf[6])
	s.NextSector = next & 0x00FFFFFF
	s.TypeID = buf[7]
	copy(s.Payload[:], buf[headerSize:])

	return s, nil
}

// Encode is the structural inverse of Decode.
func (s Sector) Encode() []byte {
	buf := make([]byte, 0, Size)
	w := bytes.NewBuffer(buf)

	binary.Write(w, binary.BigEndian, s.ArchiveID)
	binary.Write(w, binary.BigEndian, s.ChunkIndex)

	next := s.NextSector & 0x00FFFFFF
	w.WriteByte(byte(next >> 16))
	w.WriteByte(byte(next >> 8))
	w.WriteByte(byte(next))

	w.WriteByte(s.TypeID)
	w.Write(s.Payload[:])

	return w.Bytes()
}
