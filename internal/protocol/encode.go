package protocol

import (
	"encoding/binary"
	"io"
)

// EncodeHeader renders h in the standard or extended form depending on
// the payload size and element count.
func EncodeHeader(h Header) []byte {
	extended := h.PayloadSize >= uint32(payloadSizeMarker) || h.DataCount > 0xFFFF

	size := HeaderSize
	if extended {
		size = ExtendedHeaderSize
	}
	buf := make([]byte, size)
	binary.BigEndian.PutUint16(buf[0:2], uint16(h.Command))
	if extended {
		binary.BigEndian.PutUint16(buf[2:4], payloadSizeMarker)
		binary.BigEndian.PutUint16(buf[6:8], dataCountMarker)
		binary.BigEndian.PutUint32(buf[16:20], h.PayloadSize)
		binary.BigEndian.PutUint32(buf[20:24], h.DataCount)
	} else {
		binary.BigEndian.PutUint16(buf[2:4], uint16(h.PayloadSize))
		binary.BigEndian.PutUint16(buf[6:8], uint16(h.DataCount))
	}
	binary.BigEndian.PutUint16(buf[4:6], h.DataType)
	binary.BigEndian.PutUint32(buf[8:12], h.Param1)
	binary.BigEndian.PutUint32(buf[12:16], h.Param2)
	return buf
}

// WriteMessage writes one complete message to w. The header's payload
// size is forced to the actual payload length.
func WriteMessage(w io.Writer, msg Message, limits Limits) error {
	if uint64(len(msg.Payload)) > uint64(limits.MaxPayloadBytes) {
		return ErrPayloadTooLarge
	}
	h := msg.Header
	h.PayloadSize = uint32(len(msg.Payload))

	if _, err := w.Write(EncodeHeader(h)); err != nil {
		return err
	}
	if len(msg.Payload) == 0 {
		return nil
	}
	_, err := w.Write(msg.Payload)
	return err
}
