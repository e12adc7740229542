// Package container parses and emits the compression-and-version envelope
// that wraps every archive's raw bytes in the file store, applying XTEA
// deciphering over the header-adjacent byte range when an archive is keyed.
package container

import (
	"encoding/binary"
	"fmt"

	"github.com/openscape/cachefs/pkg/storeerr"
)

// Compression identifies which codec, if any, wraps a container's payload.
type Compression uint8

const (
	None  Compression = 0
	BZIP2 Compression = 1
	GZIP  Compression = 2
)

func (c Compression) String() string {
	switch c {
	case None:
		return "none"
	case BZIP2:
		return "bzip2"
	case GZIP:
		return "gzip"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(c))
	}
}

// NoVersion is the sentinel value for an absent trailing version.
const NoVersion int16 = -1

// Container is the decoded form of one archive's compression envelope.
type Container struct {
	Compression Compression
	Payload     []byte // always uncompressed
	Version     int16  // NoVersion if absent
}

const headerLen = 5 // u8 compression + u32 compressed_length

// Decode parses buf as a Container. key, if non-zero, is used to decipher
// the XTEA-protected header-adjacent byte range before interpreting the
// compression framing.
func Decode(buf []byte, key Key) (Container, error) {
	var c Container

	if len(buf) < headerLen {
		return c, storeerr.InvalidData("container.Decode", fmt.Errorf("buffer too short for header: %d bytes", len(buf)))
	}

	compression := Compression(buf[0])
	length := binary.BigEndian.Uint32(buf[1:5])

	encLen := int(length)
	if compression != None {
		encLen += 4
	}
	if err := decipherRange(buf, headerLen, encLen, key); err != nil {
		return c, storeerr.InvalidData("container.Decode", err)
	}

	pos := headerLen
	var uncompressedLen uint32
	if compression != None {
		if len(buf) < pos+4 {
			return c, storeerr.InvalidData("container.Decode", fmt.Errorf("buffer too short for uncompressed length"))
		}
		uncompressedLen = binary.BigEndian.Uint32(buf[pos : pos+4])
		pos += 4
	}

	if len(buf) < pos+int(length) {
		return c, storeerr.InvalidData("container.Decode", fmt.Errorf("buffer too short for payload: need %d more bytes", int(length)-(len(buf)-pos)))
	}
	raw := buf[pos : pos+int(length)]
	pos += int(length)

	switch compression {
	case None:
		c.Payload = append([]byte(nil), raw...)
	case BZIP2:
		out, err := bzip2Decompress(raw)
		if err != nil {
			return c, err
		}
		if uint32(len(out)) != uncompressedLen {
			return c, storeerr.InvalidData("container.Decode", fmt.Errorf("bzip2: decompressed length %d != expected %d", len(out), uncompressedLen))
		}
		c.Payload = out
	case GZIP:
		out, err := gzipDecompress(raw)
		if err != nil {
			return c, err
		}
		if uint32(len(out)) != uncompressedLen {
			return c, storeerr.InvalidData("container.Decode", fmt.Errorf("gzip: decompressed length %d != expected %d", len(out), uncompressedLen))
		}
		c.Payload = out
	default:
		return c, storeerr.InvalidData("container.Decode", fmt.Errorf("unknown compression code %d", compression))
	}
	c.Compression = compression

	if len(buf)-pos >= 2 {
		c.Version = int16(binary.BigEndian.Uint16(buf[pos : pos+2]))
	} else {
		c.Version = NoVersion
	}

	return c, nil
}

// Encode is the structural inverse of Decode: it compresses the payload
// (when requested), writes the framed envelope, enciphers the same
// header-adjacent byte range Decode would decipher, and appends the
// version trailer when present.
func Encode(c Container, key Key) ([]byte, error) {
	var compressed []byte
	var err error

	switch c.Compression {
	case None:
		compressed = c.Payload
	case BZIP2:
		compressed, err = bzip2Compress(c.Payload)
	case GZIP:
		compressed, err = gzipCompress(c.Payload)
	default:
		err = storeerr.InvalidData("container.Encode", fmt.Errorf("unknown compression code %d", c.Compression))
	}
	if err != nil {
		return nil, err
	}

	buf := make([]byte, 0, headerLen+4+len(compressed)+2)
	buf = append(buf, byte(c.Compression))
	var lenBuf [4]byte
	binary.BigEndian.PutUint32(lenBuf[:], uint32(len(compressed)))
	buf = append(buf, lenBuf[:]...)

	if c.Compression != None {
		var ulenBuf [4]byte
		binary.BigEndian.PutUint32(ulenBuf[:], uint32(len(c.Payload)))
		buf = append(buf, ulenBuf[:]...)
	}
	buf = append(buf, compressed...)

	encLen := len(compressed)
	if c.Compression != None {
		encLen += 4
	}
	if err := encipherRange(buf, headerLen, encLen, key); err != nil {
		return nil, storeerr.InvalidData("container.Encode", err)
	}

	if c.Version != NoVersion {
		var vBuf [2]byte
		binary.BigEndian.PutUint16(vBuf[:], uint16(c.Version))
		buf = append(buf, vBuf[:]...)
	}

	return buf, nil
}
