package protocol

import (
	"encoding/binary"
	"fmt"
)

// Encode serializes a packet into a single wire frame.
// Section sizes are validated against the protocol caps before any
// allocation happens.
func Encode(p *Packet) ([]byte, error) {
	if len(p.Meta) > MaxMetaSize {
		return nil, fmt.Errorf("metadata section too large: %d bytes (max %d)", len(p.Meta), MaxMetaSize)
	}
	if len(p.Binary) > MaxBinarySize {
		return nil, fmt.Errorf("binary section too large: %d bytes (max %d)", len(p.Binary), MaxBinarySize)
	}

	frame := make([]byte, HeaderSize+len(p.Meta)+len(p.Binary))
	binary.BigEndian.PutUint32(frame[0:4], Magic)
	binary.BigEndian.PutUint16(frame[4:6], Version)
	binary.BigEndian.PutUint16(frame[6:8], uint16(p.Type))
	binary.BigEndian.PutUint32(frame[8:12], p.Flags)
	binary.BigEndian.PutUint64(frame[12:20], p.RequestID)
	binary.BigEndian.PutUint32(frame[20:24], uint32(len(p.Meta)))
	binary.BigEndian.PutUint32(frame[24:28], uint32(len(p.Binary)))

	copy(frame[HeaderSize:], p.Meta)
	copy(frame[HeaderSize+len(p.Meta):], p.Binary)
	return frame, nil
}

// Decode attempts to parse one frame from the front of buf.
//
// Returns (nil, 0, nil) when buf does not yet hold a complete frame;
// the caller should read more bytes and retry. Returns a non-nil error
// on malformed headers (bad magic, unsupported version, section sizes
// over cap); such errors are fatal to the connection.
//
// The returned packet owns fresh copies of the meta and binary sections,
// so buf may be compacted or reused after the call.
func Decode(buf []byte) (*Packet, int, error) {
	if len(buf) < HeaderSize {
		return nil, 0, nil
	}

	magic := binary.BigEndian.Uint32(buf[0:4])
	if magic != Magic {
		return nil, 0, fmt.Errorf("bad magic: 0x%08X", magic)
	}
	version := binary.BigEndian.Uint16(buf[4:6])
	if version != Version {
		return nil, 0, fmt.Errorf("unsupported protocol version: %d", version)
	}

	metaLen := binary.BigEndian.Uint32(buf[20:24])
	binLen := binary.BigEndian.Uint32(buf[24:28])
	if metaLen > MaxMetaSize {
		return nil, 0, fmt.Errorf("metadata section too large: %d bytes (max %d)", metaLen, MaxMetaSize)
	}
	if binLen > MaxBinarySize {
		return nil, 0, fmt.Errorf("binary section too large: %d bytes (max %d)", binLen, MaxBinarySize)
	}

	total := HeaderSize + int(metaLen) + int(binLen)
	if len(buf) < total {
		return nil, 0, nil
	}

	p := &Packet{
		Type:      PacketType(binary.BigEndian.Uint16(buf[6:8])),
		Flags:     binary.BigEndian.Uint32(buf[8:12]),
		RequestID: binary.BigEndian.Uint64(buf[12:20]),
	}
	if metaLen > 0 {
		p.Meta = make([]byte, metaLen)
		copy(p.Meta, buf[HeaderSize:HeaderSize+int(metaLen)])
	}
	if binLen > 0 {
		p.Binary = make([]byte, binLen)
		copy(p.Binary, buf[HeaderSize+int(metaLen):total])
	}
	return p, total, nil
}
