package filestore

import (
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/openscape/cachefs/pkg/diskindex"
	"github.com/openscape/cachefs/pkg/sector"
	"github.com/openscape/cachefs/pkg/storeerr"
)

// buildStore writes a minimal, valid data/idx0/idx255 triple under dir,
// laying the archives' sector chains out back to back from sector 0.
func buildStore(t *testing.T, dir string, archives [][]byte) {
	t.Helper()

	var data []byte
	var entries []diskindex.Entry

	nextSectorNum := uint32(0)
	for _, payload := range archives {
		first := nextSectorNum
		remaining := len(payload)
		chunk := uint16(0)
		pos := 0
		for remaining > 0 {
			take := remaining
			if take > sector.PayloadSize {
				take = sector.PayloadSize
			}
			var buf [sector.PayloadSize]byte
			copy(buf[:], payload[pos:pos+take])

			isLast := remaining <= sector.PayloadSize
			next := nextSectorNum + 1
			if isLast {
				next = 0
			}

			s := sector.Sector{
				ArchiveID:  0,
				ChunkIndex: chunk,
				NextSector: next,
				TypeID:     0,
				Payload:    buf,
			}
			data = append(data, s.Encode()...)

			nextSectorNum++
			pos += take
			remaining -= take
			chunk++
		}
		entries = append(entries, diskindex.Entry{Size: uint32(len(payload)), FirstSector: first})
	}

	require.NoError(t, os.WriteFile(filepath.Join(dir, dataFileName), data, 0o644))

	var idxBuf []byte
	for _, e := range entries {
		idxBuf = append(idxBuf, e.Encode()...)
	}
	require.NoError(t, os.WriteFile(filepath.Join(dir, "main_file_cache.idx0"), idxBuf, 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, metaFileName), nil, 0o644))
}

func TestOpenAndReadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	archives := [][]byte{
		[]byte("short archive"),
		append([]byte{}, make([]byte, 1500)...), // spans 3 sectors
	}
	for i := range archives[1] {
		archives[1][i] = byte(i % 251)
	}
	buildStore(t, dir, archives)

	store, err := Open(dir)
	require.NoError(t, err)
	defer store.Close()

	require.Equal(t, 1, store.GetTypeCount())

	count, err := store.GetFileCount(0)
	require.NoError(t, err)
	require.Equal(t, 2, count)

	got0, err := store.Read(0, 0)
	require.NoError(t, err)
	require.Equal(t, archives[0], got0)

	got1, err := store.Read(0, 1)
	require.NoError(t, err)
	require.Equal(t, archives[1], got1)
}

func TestReadUnknownFileIsNotFound(t *testing.T) {
	dir := t.TempDir()
	buildStore(t, dir, [][]byte{[]byte("only one")})

	store, err := Open(dir)
	require.NoError(t, err)
	defer store.Close()

	_, err = store.Read(0, 99)
	require.True(t, storeerr.Is(err, storeerr.KindNotFound))
}

func TestOpenMissingDataFile(t *testing.T) {
	dir := t.TempDir()
	_, err := Open(dir)
	require.True(t, storeerr.Is(err, storeerr.KindNotFound))
}

func TestLockedReadMatchesDirectRead(t *testing.T) {
	dir := t.TempDir()
	buildStore(t, dir, [][]byte{[]byte("hello locked world")})

	store, err := Open(dir)
	require.NoError(t, err)
	defer store.Close()

	locked := NewLocked(store)

	var wg sync.WaitGroup
	results := make([][]byte, 20)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			got, err := locked.Read(0, 0)
			require.NoError(t, err)
			results[i] = got
		}(i)
	}
	wg.Wait()

	for _, got := range results {
		require.Equal(t, []byte("hello locked world"), got)
	}
}

func TestOpenSecondInstanceSucceedsReadOnly(t *testing.T) {
	dir := t.TempDir()
	buildStore(t, dir, [][]byte{[]byte("x")})

	first, err := Open(dir)
	require.NoError(t, err)
	defer first.Close()
	require.True(t, first.Exclusive())

	second, err := Open(dir)
	require.NoError(t, err)
	defer second.Close()
	require.False(t, second.Exclusive())

	got, err := second.Read(0, 0)
	require.NoError(t, err)
	require.Equal(t, []byte("x"), got)
}
