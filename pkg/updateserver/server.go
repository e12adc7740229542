// Package updateserver implements the legacy client update protocol: a
// per-connection Handshake/Update state machine serving archive bytes out
// of a FileStore (through an in-front cache) over a plain TCP listener.
package updateserver

import (
	"bufio"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"net"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/openscape/cachefs/pkg/checksum"
	"github.com/openscape/cachefs/pkg/container"
	"github.com/openscape/cachefs/pkg/metrics"
	"github.com/openscape/cachefs/pkg/storeerr"
)

// ArchiveReader is the slice of Cache (or FileStore directly) the server
// needs to dispatch a request: reassembled archive bytes for (type, file).
type ArchiveReader interface {
	Read(typeID, fileID int) ([]byte, error)
}

// Server accepts connections and runs the update protocol state machine
// against an ArchiveReader and a pre-built checksum table.
type Server struct {
	reader           ArchiveReader
	acceptedVersions map[uint32]struct{}
	checksumPayload  []byte // pre-encoded Container bytes for the (255,255) response
	metrics          *metrics.Counters
}

// New builds a Server. acceptedVersions is the set of client build versions
// the handshake accepts; table is the checksum table built once at
// startup. metricsCounters may be nil.
func New(reader ArchiveReader, table checksum.Table, acceptedVersions []uint32, metricsCounters *metrics.Counters) (*Server, error) {
	if metricsCounters == nil {
		metricsCounters = metrics.New()
	}

	c, err := container.Encode(container.Container{
		Compression: container.None,
		Payload:     table.EncodePlain(),
		Version:     container.NoVersion,
	}, container.Key{})
	if err != nil {
		return nil, fmt.Errorf("updateserver.New: encoding checksum table: %w", err)
	}

	versions := make(map[uint32]struct{}, len(acceptedVersions))
	for _, v := range acceptedVersions {
		versions[v] = struct{}{}
	}

	return &Server{
		reader:           reader,
		acceptedVersions: versions,
		checksumPayload:  c,
		metrics:          metricsCounters,
	}, nil
}

// Serve accepts connections on ln until ctx is canceled or Accept fails.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	go func() {
		<-ctx.Done()
		ln.Close()
	}()

	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		s.metrics.IncConnectionsAccepted()
		go s.handleConn(conn)
	}
}

func (s *Server) handleConn(conn net.Conn) {
	connID := uuid.New()
	remote := conn.RemoteAddr().String()
	defer conn.Close()

	r := bufio.NewReader(conn)

	if err := s.handshake(conn, r, connID, remote); err != nil {
		if !errors.Is(err, io.EOF) {
			log.Warn().Str("conn_id", connID.String()).Str("remote", remote).Err(err).Msg("handshake failed")
		}
		s.metrics.IncErrors()
		return
	}

	if err := s.updateLoop(conn, r, connID, remote); err != nil {
		if !errors.Is(err, io.EOF) {
			log.Warn().Str("conn_id", connID.String()).Str("remote", remote).Err(err).Msg("update loop ended")
		}
	}
}

func (s *Server) handshake(conn net.Conn, r *bufio.Reader, connID uuid.UUID, remote string) error {
	svc, err := r.ReadByte()
	if err != nil {
		return err
	}
	if svc != serviceID {
		return storeerr.InvalidData("updateserver.handshake", fmt.Errorf("unexpected service id %d", svc))
	}

	var verBuf [4]byte
	if _, err := io.ReadFull(r, verBuf[:]); err != nil {
		return err
	}
	clientVersion := binary.BigEndian.Uint32(verBuf[:])

	if _, ok := s.acceptedVersions[clientVersion]; !ok {
		s.metrics.IncHandshakeOutOfDate()
		log.Info().Str("conn_id", connID.String()).Str("remote", remote).Uint32("client_version", clientVersion).Msg("handshake: client out of date")
		_, err := conn.Write([]byte{handshakeOutOfDate})
		if err != nil {
			return err
		}
		return fmt.Errorf("client version %d rejected", clientVersion)
	}

	s.metrics.IncHandshakeOK()
	_, err = conn.Write([]byte{handshakeAccept})
	return err
}

func (s *Server) updateLoop(conn net.Conn, r *bufio.Reader, connID uuid.UUID, remote string) error {
	for {
		var raw [4]byte
		peeked, err := r.Peek(4)
		if err != nil {
			return err
		}
		copy(raw[:], peeked)
		if _, err := r.Discard(4); err != nil {
			return err
		}

		frame := decodeRequestFrame(raw)
		if !frame.dispatchable() {
			continue
		}

		resp, err := s.dispatch(frame.typeID, frame.fileID, frame.highPriority())
		if err != nil {
			log.Warn().
				Str("conn_id", connID.String()).
				Str("remote", remote).
				Uint8("type_id", frame.typeID).
				Uint16("file_id", frame.fileID).
				Err(err).
				Msg("dispatch failed")
			s.metrics.IncErrors()
			return err
		}

		if _, err := conn.Write(resp); err != nil {
			return err
		}
		s.metrics.IncFilesServed()
		s.metrics.AddBytesServed(uint64(len(resp)))
	}
}

const checksumTypeID = 255
const checksumFileID = 255

func (s *Server) dispatch(typeID uint8, fileID uint16, highPriority bool) ([]byte, error) {
	var payload []byte

	if typeID == checksumTypeID && fileID == checksumFileID {
		s.metrics.IncChecksumTableServed()
		payload = s.checksumPayload
	} else {
		raw, err := s.reader.Read(int(typeID), int(fileID))
		if err != nil {
			return nil, err
		}
		if typeID != checksumTypeID && len(raw) >= 2 {
			raw = raw[:len(raw)-2]
		}
		payload = raw
	}

	return encodeResponse(typeID, fileID, highPriority, payload), nil
}
