// Package metrics tracks simple process-lifetime serving counters, logged
// periodically via zerolog rather than exported through an OpenTelemetry
// pipeline: this process runs one small server per host, and a handful of
// counters read from a log line is enough to operate it.
package metrics

import (
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// Counters accumulates serving statistics for one UpdateServer instance.
// All methods are safe for concurrent use.
type Counters struct {
	mu sync.RWMutex

	connectionsAccepted uint64
	connectionsRejected uint64
	handshakesOK         uint64
	handshakesOutOfDate  uint64
	filesServed          uint64
	checksumTableServed  uint64
	bytesServed          uint64
	cacheHits            uint64
	cacheMisses          uint64
	errors               uint64
}

// New returns a zeroed Counters.
func New() *Counters { return &Counters{} }

func (c *Counters) IncConnectionsAccepted() { c.inc(&c.connectionsAccepted) }
func (c *Counters) IncConnectionsRejected() { c.inc(&c.connectionsRejected) }
func (c *Counters) IncHandshakeOK()         { c.inc(&c.handshakesOK) }
func (c *Counters) IncHandshakeOutOfDate()  { c.inc(&c.handshakesOutOfDate) }
func (c *Counters) IncFilesServed()         { c.inc(&c.filesServed) }
func (c *Counters) IncChecksumTableServed() { c.inc(&c.checksumTableServed) }
func (c *Counters) IncCacheHit()            { c.inc(&c.cacheHits) }
func (c *Counters) IncCacheMiss()           { c.inc(&c.cacheMisses) }
func (c *Counters) IncErrors()              { c.inc(&c.errors) }

func (c *Counters) AddBytesServed(n uint64) {
	c.mu.Lock()
	c.bytesServed += n
	c.mu.Unlock()
}

func (c *Counters) inc(field *uint64) {
	c.mu.Lock()
	*field++
	c.mu.Unlock()
}

// Snapshot is a point-in-time copy of every counter, safe to log or
// compare in tests without holding Counters' lock.
type Snapshot struct {
	ConnectionsAccepted uint64
	ConnectionsRejected uint64
	HandshakesOK        uint64
	HandshakesOutOfDate uint64
	FilesServed         uint64
	ChecksumTableServed uint64
	BytesServed         uint64
	CacheHits           uint64
	CacheMisses         uint64
	Errors              uint64
}

// Snapshot returns a copy of the current counter values.
func (c *Counters) Snapshot() Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return Snapshot{
		ConnectionsAccepted: c.connectionsAccepted,
		ConnectionsRejected: c.connectionsRejected,
		HandshakesOK:        c.handshakesOK,
		HandshakesOutOfDate: c.handshakesOutOfDate,
		FilesServed:         c.filesServed,
		ChecksumTableServed: c.checksumTableServed,
		BytesServed:         c.bytesServed,
		CacheHits:           c.cacheHits,
		CacheMisses:         c.cacheMisses,
		Errors:              c.errors,
	}
}

// LogPeriodically logs a Snapshot every interval until stop is closed.
func (c *Counters) LogPeriodically(interval time.Duration, stop <-chan struct{}) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s := c.Snapshot()
			log.Info().
				Uint64("connections_accepted", s.ConnectionsAccepted).
				Uint64("connections_rejected", s.ConnectionsRejected).
				Uint64("handshakes_ok", s.HandshakesOK).
				Uint64("handshakes_out_of_date", s.HandshakesOutOfDate).
				Uint64("files_served", s.FilesServed).
				Uint64("checksum_table_served", s.ChecksumTableServed).
				Uint64("bytes_served", s.BytesServed).
				Uint64("cache_hits", s.CacheHits).
				Uint64("cache_misses", s.CacheMisses).
				Uint64("errors", s.Errors).
				Msg("serving stats")
		case <-stop:
			return
		}
	}
}
