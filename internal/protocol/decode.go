package protocol

import (
	"encoding/binary"
	"errors"
	"io"
)

// ReadMessage reads one complete message from r, following the
// extended-header indirection when present.
func ReadMessage(r io.Reader, limits Limits) (Message, error) {
	var fixed [HeaderSize]byte
	if _, err := io.ReadFull(r, fixed[:]); err != nil {
		if errors.Is(err, io.ErrUnexpectedEOF) {
			return Message{}, ErrShortHeader
		}
		return Message{}, err
	}

	h := Header{
		Command:     Command(binary.BigEndian.Uint16(fixed[0:2])),
		PayloadSize: uint32(binary.BigEndian.Uint16(fixed[2:4])),
		DataType:    binary.BigEndian.Uint16(fixed[4:6]),
		DataCount:   uint32(binary.BigEndian.Uint16(fixed[6:8])),
		Param1:      binary.BigEndian.Uint32(fixed[8:12]),
		Param2:      binary.BigEndian.Uint32(fixed[12:16]),
	}

	if h.PayloadSize == uint32(payloadSizeMarker) && h.DataCount == uint32(dataCountMarker) {
		var ext [ExtendedHeaderSize - HeaderSize]byte
		if _, err := io.ReadFull(r, ext[:]); err != nil {
			if errors.Is(err, io.ErrUnexpectedEOF) {
				return Message{}, ErrShortHeader
			}
			return Message{}, err
		}
		h.PayloadSize = binary.BigEndian.Uint32(ext[0:4])
		h.DataCount = binary.BigEndian.Uint32(ext[4:8])
	}

	if h.PayloadSize > limits.MaxPayloadBytes {
		return Message{}, ErrPayloadTooLarge
	}

	payload := make([]byte, h.PayloadSize)
	if h.PayloadSize > 0 {
		if _, err := io.ReadFull(r, payload); err != nil {
			return Message{}, err
		}
	}
	return Message{Header: h, Payload: payload}, nil
}

// DecodeHeader parses a standalone 16-byte header, as found in UDP
// search datagrams where several messages share one packet.
func DecodeHeader(b []byte) (Header, error) {
	if len(b) < HeaderSize {
		return Header{}, ErrShortHeader
	}
	return Header{
		Command:     Command(binary.BigEndian.Uint16(b[0:2])),
		PayloadSize: uint32(binary.BigEndian.Uint16(b[2:4])),
		DataType:    binary.BigEndian.Uint16(b[4:6]),
		DataCount:   uint32(binary.BigEndian.Uint16(b[6:8])),
		Param1:      binary.BigEndian.Uint32(b[8:12]),
		Param2:      binary.BigEndian.Uint32(b[12:16]),
	}, nil
}
