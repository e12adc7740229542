package container

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRoundTripNoCompressionNoKey(t *testing.T) {
	payload := []byte("some archive bytes, not compressed")
	buf, err := Encode(Container{Compression: None, Payload: payload, Version: NoVersion}, Key{})
	require.NoError(t, err)

	got, err := Decode(buf, Key{})
	require.NoError(t, err)
	require.Equal(t, None, got.Compression)
	require.Equal(t, payload, got.Payload)
	require.Equal(t, NoVersion, got.Version)
}

func TestRoundTripWithVersion(t *testing.T) {
	payload := []byte("versioned payload")
	buf, err := Encode(Container{Compression: None, Payload: payload, Version: 42}, Key{})
	require.NoError(t, err)

	got, err := Decode(buf, Key{})
	require.NoError(t, err)
	require.EqualValues(t, 42, got.Version)
}

func TestRoundTripBzip2(t *testing.T) {
	payload := bytes.Repeat([]byte("the quick brown fox jumps over the lazy dog. "), 50)
	buf, err := Encode(Container{Compression: BZIP2, Payload: payload, Version: NoVersion}, Key{})
	require.NoError(t, err)

	got, err := Decode(buf, Key{})
	require.NoError(t, err)
	require.Equal(t, BZIP2, got.Compression)
	require.Equal(t, payload, got.Payload)
}

func TestRoundTripGzip(t *testing.T) {
	payload := bytes.Repeat([]byte("archive payload bytes"), 80)
	buf, err := Encode(Container{Compression: GZIP, Payload: payload, Version: 7}, Key{})
	require.NoError(t, err)

	got, err := Decode(buf, Key{})
	require.NoError(t, err)
	require.Equal(t, GZIP, got.Compression)
	require.Equal(t, payload, got.Payload)
	require.EqualValues(t, 7, got.Version)
}

func TestRoundTripWithXTEAKey(t *testing.T) {
	key := Key{0x12345678, 0x9ABCDEF0, 0x0FEDCBA9, 0x87654321}
	payload := []byte("secret archive payload that needs enciphering 12345678")

	buf, err := Encode(Container{Compression: None, Payload: payload, Version: NoVersion}, key)
	require.NoError(t, err)

	got, err := Decode(buf, key)
	require.NoError(t, err)
	require.Equal(t, payload, got.Payload)
}

func TestDecodeWrongKeyProducesGarbage(t *testing.T) {
	key := Key{1, 2, 3, 4}
	wrongKey := Key{5, 6, 7, 8}
	payload := []byte("this payload is at least two blocks long for xtea")

	buf, err := Encode(Container{Compression: None, Payload: payload, Version: NoVersion}, key)
	require.NoError(t, err)

	got, err := Decode(buf, wrongKey)
	require.NoError(t, err)
	require.NotEqual(t, payload, got.Payload)
}

func TestDecodeTooShort(t *testing.T) {
	_, err := Decode([]byte{0, 0, 0}, Key{})
	require.Error(t, err)
}

func TestDecodeUnknownCompression(t *testing.T) {
	buf := []byte{9, 0, 0, 0, 0}
	_, err := Decode(buf, Key{})
	require.Error(t, err)
}
