// Package whirlpool implements the Whirlpool cryptographic hash function
// (ISO/IEC 10118-3): a 512-bit, 10-round wide-trail substitution-permutation
// network run in Miyaguchi-Preneel mode, shaped as a standard library
// hash.Hash the way crypto/sha256 is.
//
// No currently-maintained third-party Whirlpool package exists anywhere in
// this codebase's dependency lineage (see DESIGN.md) — this is a
// self-contained implementation, not a binding to one.
package whirlpool

import (
	"hash"
)

// Size is the digest size in bytes.
const Size = 64

const (
	rounds    = 10
	blockSize = 64 // 512 bits, state is 8x8 bytes
)

// sbox is the Whirlpool non-linear substitution table.
var sbox = [256]byte{
	0x18, 0x23, 0xc6, 0xE8, 0x87, 0xB8, 0x01, 0x4F, 0x36, 0xA6, 0xD2, 0xF5, 0x79, 0x6F, 0x91, 0x52,
	0x60, 0xBc, 0x9B, 0x8E, 0xA3, 0x0c, 0x7B, 0x35, 0x1D, 0xE0, 0xD7, 0xc2, 0x2E, 0x4B, 0xFE, 0x57,
	0x15, 0x77, 0x37, 0xE5, 0x9F, 0xF0, 0x4A, 0xDA, 0x58, 0xc9, 0x29, 0x0A, 0xB1, 0xA0, 0x6B, 0x85,
	0xBD, 0x5D, 0x10, 0xF4, 0xcB, 0x3E, 0x05, 0x67, 0xE4, 0x27, 0x41, 0x8B, 0xA7, 0x7D, 0x95, 0xD8,
	0xFB, 0xEE, 0x7c, 0x66, 0xDD, 0x17, 0x47, 0x9E, 0xcA, 0x2D, 0xBF, 0x07, 0xAD, 0x5A, 0x83, 0x33,
	0x63, 0x02, 0xAA, 0x71, 0xc8, 0x19, 0x49, 0xD9, 0xF2, 0xE3, 0x5B, 0x88, 0x9A, 0x26, 0x32, 0xB0,
	0xE9, 0x0F, 0xD5, 0x80, 0xBE, 0xcD, 0x34, 0x48, 0xFF, 0x7A, 0x90, 0x5F, 0x20, 0x68, 0x1A, 0xAE,
	0xB4, 0x54, 0x93, 0x22, 0x64, 0xF1, 0x73, 0x12, 0x40, 0x08, 0xc3, 0xEc, 0xDB, 0xA1, 0x8D, 0x3D,
	0x97, 0x00, 0xcF, 0x2B, 0x76, 0x82, 0xD6, 0x1B, 0xB5, 0xAF, 0x6A, 0x50, 0x45, 0xF3, 0x30, 0xEF,
	0x3F, 0x55, 0xA2, 0xEA, 0x65, 0xBA, 0x2F, 0xc0, 0xDE, 0x1c, 0xFD, 0x4D, 0x92, 0x75, 0x06, 0x8A,
	0xB2, 0xE6, 0x0E, 0x1F, 0x62, 0xD4, 0xA8, 0x96, 0xF9, 0xc5, 0x25, 0x59, 0x84, 0x72, 0x39, 0x4c,
	0x5E, 0x78, 0x38, 0x8c, 0xD1, 0xA5, 0xE2, 0x61, 0xB3, 0x21, 0x9c, 0x1E, 0x43, 0xc7, 0xFc, 0x04,
	0x51, 0x99, 0x6D, 0x0D, 0xFA, 0xDF, 0x7E, 0x24, 0x3B, 0xAB, 0xcE, 0x11, 0x8F, 0x4E, 0xB7, 0xEB,
	0x3c, 0x81, 0x94, 0xF7, 0xB9, 0x13, 0x2c, 0xD3, 0xE7, 0x6E, 0xc4, 0x03, 0x56, 0x44, 0x7F, 0xA9,
	0x2A, 0xBB, 0xc1, 0x53, 0xDc, 0x0B, 0x9D, 0x6c, 0x31, 0x74, 0xF6, 0x46, 0xAc, 0x89, 0x14, 0xE1,
	0x16, 0x3A, 0x69, 0x09, 0x70, 0xB6, 0xD0, 0xED, 0xcc, 0x42, 0x98, 0xA4, 0x28, 0x5c, 0xF8, 0x86,
}

// mdsCoeffs is the first row of the 8x8 circulant MDS matrix used by the
// MixRows diffusion step.
var mdsCoeffs = [8]byte{1, 1, 4, 1, 8, 5, 2, 9}

// gfMul multiplies two bytes in GF(2^8) with reduction polynomial
// x^8+x^4+x^3+x^2+1 (0x11D), the field Whirlpool's diffusion layer runs in.
func gfMul(a, b byte) byte {
	var p byte
	for i := 0; i < 8; i++ {
		if b&1 != 0 {
			p ^= a
		}
		hi := a & 0x80
		a <<= 1
		if hi != 0 {
			a ^= 0x1D
		}
		b >>= 1
	}
	return p
}

// round constants, derived from the S-box the way the reference
// construction does: round constant r has row 0 equal to
// S[8(r-1)+0..7] and all other rows zero. toState loads bytes column by
// column, so that reference row 0 is column 0 of this package's state.
func roundConstant(r int) [8]byte {
	var c [8]byte
	for i := 0; i < 8; i++ {
		c[i] = sbox[8*(r-1)+i]
	}
	return c
}

// state is the 8x8 byte matrix, addressed state[row][col].
type state [8][8]byte

func subBytes(s *state) {
	for r := 0; r < 8; r++ {
		for c := 0; c < 8; c++ {
			s[r][c] = sbox[s[r][c]]
		}
	}
}

// shiftColumns cyclically shifts row r to the right by r positions (the
// Whirlpool "π" permutation).
func shiftColumns(s *state) {
	var out state
	for r := 0; r < 8; r++ {
		for c := 0; c < 8; c++ {
			out[r][(c+r)%8] = s[r][c]
		}
	}
	*s = out
}

// mixRows applies the circulant MDS matrix down each column (the Whirlpool
// "θ" diffusion layer). shiftColumns already moved bytes across columns
// within a row; this step must move bytes across rows within a column, or
// the two layers together never diffuse the full state.
func mixRows(s *state) {
	var out state
	for c := 0; c < 8; c++ {
		for r := 0; r < 8; r++ {
			var v byte
			for k := 0; k < 8; k++ {
				v ^= gfMul(mdsCoeffs[k], s[(r-k+8)%8][c])
			}
			out[r][c] = v
		}
	}
	*s = out
}

func addKey(s, key *state) {
	for r := 0; r < 8; r++ {
		for c := 0; c < 8; c++ {
			s[r][c] ^= key[r][c]
		}
	}
}

func toState(block []byte) state {
	var s state
	for c := 0; c < 8; c++ {
		for r := 0; r < 8; r++ {
			s[r][c] = block[8*c+r]
		}
	}
	return s
}

func fromState(s state) [blockSize]byte {
	var out [blockSize]byte
	for c := 0; c < 8; c++ {
		for r := 0; r < 8; r++ {
			out[8*c+r] = s[r][c]
		}
	}
	return out
}

// blockCipherW returns msgBlock enciphered by the W block cipher under
// keyBlock, running the key schedule alongside the 10 rounds.
func blockCipherW(msgBlock, keyBlock [blockSize]byte) [blockSize]byte {
	k := toState(keyBlock[:])
	s := toState(msgBlock[:])

	addKey(&s, &k)

	for r := 1; r <= rounds; r++ {
		rc := roundConstant(r)
		var rcState state
		for i := 0; i < 8; i++ {
			rcState[i][0] = rc[i]
		}

		subBytes(&k)
		shiftColumns(&k)
		mixRows(&k)
		addKey(&k, &rcState)

		subBytes(&s)
		shiftColumns(&s)
		mixRows(&s)
		addKey(&s, &k)
	}

	return fromState(s)
}

type digest struct {
	hash   [blockSize]byte
	buf    [blockSize]byte
	nbuf   int
	length uint64 // total bytes written, for the bit-length suffix
}

// New returns a new hash.Hash computing the Whirlpool checksum.
func New() hash.Hash {
	d := &digest{}
	return d
}

func (d *digest) Size() int      { return Size }
func (d *digest) BlockSize() int { return blockSize }

func (d *digest) Reset() {
	d.hash = [blockSize]byte{}
	d.nbuf = 0
	d.length = 0
}

func (d *digest) Write(p []byte) (int, error) {
	n := len(p)
	d.length += uint64(n)

	if d.nbuf > 0 {
		take := blockSize - d.nbuf
		if take > len(p) {
			take = len(p)
		}
		copy(d.buf[d.nbuf:], p[:take])
		d.nbuf += take
		p = p[take:]
		if d.nbuf == blockSize {
			d.processBlock(d.buf[:])
			d.nbuf = 0
		}
	}

	for len(p) >= blockSize {
		d.processBlock(p[:blockSize])
		p = p[blockSize:]
	}

	if len(p) > 0 {
		d.nbuf = copy(d.buf[:], p)
	}

	return n, nil
}

func (d *digest) processBlock(block []byte) {
	var b [blockSize]byte
	copy(b[:], block)
	w := blockCipherW(b, d.hash)
	for i := range d.hash {
		d.hash[i] ^= w[i] ^ b[i]
	}
}

func (d *digest) Sum(in []byte) []byte {
	// Copy state so Sum doesn't mutate a hash that might still be written to.
	cp := *d
	cp.pad()
	return append(in, cp.hash[:]...)
}

// pad applies Merkle-Damgard strengthening: a 0x80 byte, zero padding up to
// the last 32 bytes of the final block(s), then a 256-bit big-endian bit
// length (only the low 64 bits are ever non-zero for realistic inputs).
func (d *digest) pad() {
	bitLen := d.length * 8

	var tmp [blockSize]byte
	copy(tmp[:], d.buf[:d.nbuf])
	tmp[d.nbuf] = 0x80

	if d.nbuf+1 > blockSize-32 {
		d.processBlock(tmp[:])
		tmp = [blockSize]byte{}
	}

	for i := 0; i < 8; i++ {
		tmp[blockSize-1-i] = byte(bitLen >> (8 * i))
	}
	d.processBlock(tmp[:])
}

// Sum512 returns the Whirlpool digest of data.
func Sum512(data []byte) [Size]byte {
	d := New()
	d.Write(data)
	var out [Size]byte
	copy(out[:], d.Sum(nil))
	return out
}
