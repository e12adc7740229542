package updateserver

import (
	"bytes"
	"encoding/binary"
)

const (
	opcodeNormal = 0
	opcodeHigh   = 1

	serviceID          = 15
	handshakeAccept    = 0
	handshakeOutOfDate = 6

	firstChunkSize = 508
	restChunkSize  = 511
	separatorByte  = 0xFF
)

// requestFrame is one decoded 4-byte Update-phase request: opcode, type_id,
// file_id. Unknown opcodes are still fully read (4 bytes) but carry no
// dispatchable request.
type requestFrame struct {
	opcode byte
	typeID uint8
	fileID uint16
}

func decodeRequestFrame(buf [4]byte) requestFrame {
	return requestFrame{
		opcode: buf[0],
		typeID: buf[1],
		fileID: binary.BigEndian.Uint16(buf[2:4]),
	}
}

func (f requestFrame) dispatchable() bool {
	return f.opcode == opcodeNormal || f.opcode == opcodeHigh
}

func (f requestFrame) highPriority() bool {
	return f.opcode == opcodeHigh
}

// encodeResponse frames payload the way §4.9 describes: a 4-byte header
// (type_id, file_id, compression byte, the last being payload's first byte
// with the high bit set for normal-priority requests), then payload split
// into a 508-byte first chunk and 511-byte chunks thereafter, each
// subsequent chunk preceded by a 0xFF separator byte.
func encodeResponse(typeID uint8, fileID uint16, highPriority bool, payload []byte) []byte {
	var out bytes.Buffer

	out.WriteByte(typeID)
	var fileBuf [2]byte
	binary.BigEndian.PutUint16(fileBuf[:], fileID)
	out.Write(fileBuf[:])

	var compByte byte
	body := payload
	if len(payload) > 0 {
		compByte = payload[0]
		body = payload[1:]
	}
	if !highPriority {
		compByte |= 0x80
	}
	out.WriteByte(compByte)

	chunkSize := firstChunkSize
	for {
		if len(body) <= chunkSize {
			out.Write(body)
			break
		}
		out.Write(body[:chunkSize])
		body = body[chunkSize:]
		out.WriteByte(separatorByte)
		chunkSize = restChunkSize
	}

	return out.Bytes()
}
