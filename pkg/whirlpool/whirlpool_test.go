package whirlpool

import (
	"bytes"
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/require"
)

// Known-answer vectors from the ISO/IEC 10118-3 / NESSIE Whirlpool test
// suite, so a structurally-broken-but-self-consistent implementation can't
// pass this file.
func TestKnownAnswerEmptyString(t *testing.T) {
	want, err := hex.DecodeString(
		"19FA61D75522A4669B44E39C1D2E1726C530232130D407F89AFEE0964997F7" +
			"A73E83BE698B288FEBCF88E3E03C4F0757EA8964E59B63D93708B138CC42A66EB3")
	require.NoError(t, err)

	got := Sum512(nil)
	require.Equal(t, want, got[:])
}

func TestKnownAnswerQuickBrownFox(t *testing.T) {
	want, err := hex.DecodeString(
		"B97DE512E91E3828B40D2B0FDCE9CEB3C4A71F9BEA8D88E75C4FA854DF36725" +
			"FD2B52EB6544EDCACD6F8BEDDFEA403CB55AE31F03AD62A5EF54E42EE82C3FB35")
	require.NoError(t, err)

	got := Sum512([]byte("The quick brown fox jumps over the lazy dog"))
	require.Equal(t, want, got[:])
}

func TestSumFixedLength(t *testing.T) {
	sum := Sum512([]byte("hello, cache"))
	require.Len(t, sum, Size)
}

func TestDeterministic(t *testing.T) {
	data := []byte("the quick brown fox jumps over the lazy dog")
	require.Equal(t, Sum512(data), Sum512(data))
}

func TestDifferentInputsDiffer(t *testing.T) {
	a := Sum512([]byte("archive-a"))
	b := Sum512([]byte("archive-b"))
	require.NotEqual(t, a, b)
}

func TestIncrementalWriteMatchesOneShot(t *testing.T) {
	data := bytes.Repeat([]byte{0x5A}, 1000)

	h := New()
	h.Write(data[:300])
	h.Write(data[300:700])
	h.Write(data[700:])
	incremental := h.Sum(nil)

	require.Equal(t, Sum512(data)[:], incremental)
}

func TestEmptyInput(t *testing.T) {
	sum := Sum512(nil)
	require.Len(t, sum, Size)
}

func TestBlockBoundarySizes(t *testing.T) {
	for _, n := range []int{0, 1, 31, 32, 63, 64, 65, 127, 128, 129} {
		data := bytes.Repeat([]byte{0x42}, n)
		sum := Sum512(data)
		require.Len(t, sum, Size, "n=%d", n)
	}
}
