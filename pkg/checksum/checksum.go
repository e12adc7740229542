// Package checksum builds and encodes the per-type summary table (CRC-32,
// version, Whirlpool digest) that the update server hands out for the
// (255, 255) checksum request.
package checksum

import (
	"bytes"
	"hash/crc32"
	"math/big"

	"github.com/openscape/cachefs/pkg/container"
	"github.com/openscape/cachefs/pkg/reftable"
	"github.com/openscape/cachefs/pkg/storeerr"
	"github.com/openscape/cachefs/pkg/whirlpool"
)

// ArchiveReader is the slice of FileStore (or a cache sitting in front of
// one) that Build needs: reassembled raw archive bytes for a (type, file)
// pair.
type ArchiveReader interface {
	Read(typeID, fileID int) ([]byte, error)
}

// Entry is one payload type's summary.
type Entry struct {
	CRC       uint32
	Version   int32
	Whirlpool [64]byte
}

// Table is the in-memory, built-once-at-startup checksum table, indexed by
// payload type id.
type Table struct {
	Entries []Entry
}

// Build reads the type-255 meta index for every type in [0, typeCount) and
// assembles a Table. Absent or empty entries record a zero Entry rather
// than failing the whole build.
func Build(store ArchiveReader, typeCount int) (Table, error) {
	t := Table{Entries: make([]Entry, typeCount)}

	for typeID := 0; typeID < typeCount; typeID++ {
		raw, err := store.Read(255, typeID)
		if err != nil {
			if storeerr.Is(err, storeerr.KindNotFound) {
				continue // zero Entry
			}
			return Table{}, err
		}
		if len(raw) == 0 {
			continue
		}

		entry := Entry{
			CRC:       crc32.ChecksumIEEE(raw),
			Whirlpool: whirlpool.Sum512(raw),
		}

		c, err := container.Decode(raw, container.Key{})
		if err != nil {
			return Table{}, err
		}
		rt, err := reftable.Decode(c.Payload)
		if err != nil {
			return Table{}, err
		}
		entry.Version = rt.Version

		t.Entries[typeID] = entry
	}

	return t, nil
}

// EncodePlain produces the plain response form: u32 crc, u32 version per
// entry, no header, no Whirlpool, no signature.
func (t Table) EncodePlain() []byte {
	var buf bytes.Buffer
	for _, e := range t.Entries {
		writeU32(&buf, e.CRC)
		writeU32(&buf, uint32(e.Version))
	}
	return buf.Bytes()
}

// EncodeSigned produces the Whirlpool response form: u8 entry_count, then
// per entry u32 crc, u32 version, 64-byte whirlpool, followed by a trailer
// block 0x00 || whirlpool(all prior bytes), optionally RSA-signed via
// modpow(digest, privateExponent, modulus). Pass a nil privateExponent or
// modulus to skip signing and leave the trailer as the raw whirlpool
// digest. This mode is reserved for future use; the server's current
// checksum request uses EncodePlain.
func (t Table) EncodeSigned(privateExponent, modulus *big.Int) []byte {
	var buf bytes.Buffer
	buf.WriteByte(byte(len(t.Entries)))
	for _, e := range t.Entries {
		writeU32(&buf, e.CRC)
		writeU32(&buf, uint32(e.Version))
		buf.Write(e.Whirlpool[:])
	}

	digest := whirlpool.Sum512(buf.Bytes())

	trailer := make([]byte, 0, 1+64)
	trailer = append(trailer, 0x00)
	if privateExponent != nil && modulus != nil {
		signed := new(big.Int).Exp(new(big.Int).SetBytes(digest[:]), privateExponent, modulus)
		signedBytes := signed.Bytes()
		trailer = append(trailer, signedBytes...)
	} else {
		trailer = append(trailer, digest[:]...)
	}

	buf.Write(trailer)
	return buf.Bytes()
}

func writeU32(buf *bytes.Buffer, v uint32) {
	buf.WriteByte(byte(v >> 24))
	buf.WriteByte(byte(v >> 16))
	buf.WriteByte(byte(v >> 8))
	buf.WriteByte(byte(v))
}
