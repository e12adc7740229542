// Package filestore implements the on-disk sector-chained archive store:
// a data file of 520-byte sectors, one 6-byte index file per payload type,
// and a meta index (type 255) describing the reference-table archives.
package filestore

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/gofrs/flock"
	"github.com/rs/zerolog/log"

	"github.com/openscape/cachefs/pkg/diskindex"
	"github.com/openscape/cachefs/pkg/sector"
	"github.com/openscape/cachefs/pkg/storeerr"
)

const (
	dataFileName = "main_file_cache.dat2"
	metaFileName = "main_file_cache.idx255"
	idxFileFmt   = "main_file_cache.idx%d"
)

// FileStore owns the open data, meta, and per-type index file handles for
// its lifetime. Sector, Index, and Container are short-lived value objects
// decoded on demand from its Read method.
type FileStore struct {
	root string

	data *os.File
	meta *os.File
	idx  []*os.File // idx[t] is the index file for payload type t

	lock         *flock.Flock
	lockAcquired bool
}

// Open opens root's data and meta files, then enumerates idx0..idx254,
// stopping at the first gap. It attempts an advisory exclusive lock on a
// main_file_cache.dat2.lock file beside the data file (created if absent)
// for the store's lifetime, so a second process can't hold the same cache
// directory exclusively at the same time, but a failure to acquire
// that lock is only logged, not fatal: a read-only mirror of a live store,
// opened a second time alongside the writer that holds the lock, is a
// legitimate deployment. Call Exclusive to check whether the lock was held.
func Open(root string) (*FileStore, error) {
	dataPath := filepath.Join(root, dataFileName)
	data, err := os.Open(dataPath)
	if err != nil {
		return nil, storeerr.NotFound("filestore.Open", err)
	}

	metaPath := filepath.Join(root, metaFileName)
	meta, err := os.Open(metaPath)
	if err != nil {
		data.Close()
		return nil, storeerr.NotFound("filestore.Open", err)
	}

	lockPath := filepath.Join(root, dataFileName+".lock")
	lock := flock.New(lockPath)
	lockAcquired, err := lock.TryLock()
	if err != nil {
		log.Warn().Err(err).Str("root", root).Msg("filestore: advisory lock attempt failed, continuing read-only")
		lockAcquired = false
	} else if !lockAcquired {
		log.Warn().Str("root", root).Msg("filestore: cache directory already locked by another process, continuing read-only")
	}

	var idx []*os.File
	for t := 0; t < 255; t++ {
		path := filepath.Join(root, fmt.Sprintf(idxFileFmt, t))
		f, err := os.Open(path)
		if err != nil {
			break
		}
		idx = append(idx, f)
	}
	if len(idx) == 0 {
		for _, f := range idx {
			f.Close()
		}
		data.Close()
		meta.Close()
		if lockAcquired {
			lock.Unlock()
		}
		return nil, storeerr.NotFound("filestore.Open", fmt.Errorf("no index files found under %q", root))
	}

	return &FileStore{root: root, data: data, meta: meta, idx: idx, lock: lock, lockAcquired: lockAcquired}, nil
}

// Exclusive reports whether this FileStore holds the advisory exclusive
// lock on the data file's .lock file. A false result means another holder
// already had
// it at Open time, and this handle is serving as a read-only mirror.
func (fs *FileStore) Exclusive() bool {
	return fs.lockAcquired
}

// Close releases all file handles and, if held, the advisory lock.
func (fs *FileStore) Close() error {
	var firstErr error
	record := func(err error) {
		if err != nil && firstErr == nil {
			firstErr = err
		}
	}

	record(fs.data.Close())
	record(fs.meta.Close())
	for _, f := range fs.idx {
		record(f.Close())
	}
	if fs.lockAcquired {
		record(fs.lock.Unlock())
	}

	return firstErr
}

// GetTypeCount returns the number of payload-type index files (0..255).
func (fs *FileStore) GetTypeCount() int {
	return len(fs.idx)
}

// GetFileCount returns index_file_length / 6 for the given type. Type 255
// refers to the meta index.
func (fs *FileStore) GetFileCount(typeID int) (int, error) {
	f, err := fs.indexFile(typeID)
	if err != nil {
		return 0, err
	}
	info, err := f.Stat()
	if err != nil {
		return 0, storeerr.IO("filestore.GetFileCount", err)
	}
	return int(info.Size() / diskindex.Size), nil
}

func (fs *FileStore) indexFile(typeID int) (*os.File, error) {
	if typeID == 255 {
		return fs.meta, nil
	}
	if typeID < 0 || typeID >= len(fs.idx) {
		return nil, storeerr.NotFound("filestore.indexFile", fmt.Errorf("unknown type %d", typeID))
	}
	return fs.idx[typeID], nil
}

// Read reassembles the archive payload at (typeID, fileID) by walking its
// sector chain in the data file.
func (fs *FileStore) Read(typeID, fileID int) ([]byte, error) {
	idxFile, err := fs.indexFile(typeID)
	if err != nil {
		return nil, err
	}

	entryBuf := make([]byte, diskindex.Size)
	if _, err := idxFile.ReadAt(entryBuf, int64(fileID)*diskindex.Size); err != nil {
		return nil, storeerr.NotFound("filestore.Read", fmt.Errorf("(type=%d, file=%d): %w", typeID, fileID, err))
	}

	entry, err := diskindex.Decode(entryBuf)
	if err != nil {
		return nil, err
	}
	if entry.Empty() {
		return nil, storeerr.NotFound("filestore.Read", fmt.Errorf("(type=%d, file=%d) is empty", typeID, fileID))
	}

	out := make([]byte, entry.Size)
	written := 0
	nextSector := entry.FirstSector
	chunk := uint16(0)

	sectorBuf := make([]byte, sector.Size)
	for written < len(out) {
		if _, err := fs.data.ReadAt(sectorBuf, int64(nextSector)*sector.Size); err != nil {
			return nil, storeerr.NotFound("filestore.Read", fmt.Errorf("(type=%d, file=%d): sector %d: %w", typeID, fileID, nextSector, err))
		}

		s, err := sector.Decode(sectorBuf)
		if err != nil {
			return nil, err
		}
		if s.ChunkIndex != chunk {
			return nil, storeerr.InvalidData("filestore.Read", fmt.Errorf("(type=%d, file=%d): expected chunk %d, sector has %d", typeID, fileID, chunk, s.ChunkIndex))
		}

		remaining := len(out) - written
		if remaining >= sector.PayloadSize {
			copy(out[written:written+sector.PayloadSize], s.Payload[:])
			written += sector.PayloadSize
			if written < len(out) && s.NextSector == 0 {
				return nil, storeerr.InvalidData("filestore.Read", fmt.Errorf("(type=%d, file=%d): truncated sector chain", typeID, fileID))
			}
			nextSector = s.NextSector
		} else {
			copy(out[written:], s.Payload[:remaining])
			written += remaining
		}
		chunk++
	}

	return out, nil
}

// Locked wraps a FileStore with a single exclusive mutex held for the
// duration of one Read call, so concurrent dispatchers never interleave
// reads of the shared file handles. The lock must never be held across
// network I/O; Locked only guards the local Read.
type Locked struct {
	mu sync.Mutex
	fs *FileStore
}

// NewLocked wraps fs for safe concurrent use by multiple goroutines.
func NewLocked(fs *FileStore) *Locked {
	return &Locked{fs: fs}
}

// Read acquires the exclusive lock, performs one FileStore.Read, and
// releases it before returning.
func (l *Locked) Read(typeID, fileID int) ([]byte, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.fs.Read(typeID, fileID)
}
