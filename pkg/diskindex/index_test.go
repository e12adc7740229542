package diskindex

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRoundTrip(t *testing.T) {
	e := Entry{Size: 0x00ABCDEF & 0xFFFFFF, FirstSector: 1234}
	buf := e.Encode()
	require.Len(t, buf, Size)

	got, err := Decode(buf)
	require.NoError(t, err)
	require.Equal(t, e, got)
}

func TestDecodeWrongLength(t *testing.T) {
	_, err := Decode(make([]byte, 5))
	require.Error(t, err)
}

func TestEmpty(t *testing.T) {
	require.True(t, Entry{}.Empty())
	require.False(t, Entry{Size: 1}.Empty())
}

func TestSizeMasking(t *testing.T) {
	e := Entry{Size: 0xFFABCDEF, FirstSector: 0xFF000001}
	buf := e.Encode()
	got, err := Decode(buf)
	require.NoError(t, err)
	require.EqualValues(t, 0x00ABCDEF, got.Size)
	require.EqualValues(t, 0x00000001, got.FirstSector)
}
