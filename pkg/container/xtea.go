package container

import (
	"encoding/binary"

	"golang.org/x/crypto/xtea"
)

// Key is a 128-bit XTEA key held as four 32-bit words, the way archive keys
// are distributed for this store: signed on the wire, interpreted as
// unsigned for arithmetic. A zero Key is the sentinel for "no encryption".
type Key [4]uint32

// IsZero reports whether k is the all-zero "no encryption" sentinel.
func (k Key) IsZero() bool {
	return k[0] == 0 && k[1] == 0 && k[2] == 0 && k[3] == 0
}

func (k Key) bytes() []byte {
	buf := make([]byte, 16)
	for i, word := range k {
		binary.BigEndian.PutUint32(buf[i*4:], word)
	}
	return buf
}

// decipherRange deciphers buf[offset:offset+length] in place, 8 bytes at a
// time. Trailing bytes that don't fill a full 8-byte block are left
// untouched, per spec.
func decipherRange(buf []byte, offset, length int, key Key) error {
	if key.IsZero() || length < 8 {
		return nil
	}

	c, err := xtea.NewCipher(key.bytes())
	if err != nil {
		return err
	}

	end := offset + length
	for pos := offset; pos+8 <= end; pos += 8 {
		c.Decrypt(buf[pos:pos+8], buf[pos:pos+8])
	}
	return nil
}

// encipherRange is the structural inverse of decipherRange, used by
// Encode.
func encipherRange(buf []byte, offset, length int, key Key) error {
	if key.IsZero() || length < 8 {
		return nil
	}

	c, err := xtea.NewCipher(key.bytes())
	if err != nil {
		return err
	}

	end := offset + length
	for pos := offset; pos+8 <= end; pos += 8 {
		c.Encrypt(buf[pos:pos+8], buf[pos:pos+8])
	}
	return nil
}
