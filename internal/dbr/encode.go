package dbr

import (
	"encoding/binary"
	"fmt"

	"github.com/epicsgo/caserver/internal/protocol"
)

// epochOffsetSeconds re-bases Unix timestamps onto the protocol epoch
// (1990-01-01T00:00:00Z).
const epochOffsetSeconds = 631152000

// Encode serializes d's metadata and value into the payload layout for
// typ. Layout, in order: status and severity (categories above basic),
// the timestamp re-based to the 1990 epoch (time category only), the
// type-specific zero padding, the value bytes for up to count elements
// (count 0 means the native count), and trailing zeros up to the next
// multiple of 8. Returns the number of elements the value bytes cover
// together with the buffer.
//
// The control category and the graphics category for enum and string
// payloads are not implemented and fail with ErrBadType. A timestamp
// before the Unix epoch is a provider bug and panics rather than
// emitting wrong bytes.
func Encode(d Dbr, typ Type, count int) (int, []byte, error) {
	out := make([]byte, 0, 64)

	if typ.Category != CatBasic {
		status, severity := d.AlarmStatus()
		out = binary.BigEndian.AppendUint16(out, uint16(status))
		out = binary.BigEndian.AppendUint16(out, uint16(severity))
	}
	if typ.Category == CatTime {
		ts := d.Timestamp()
		unix := ts.Unix()
		if unix < 0 {
			panic(fmt.Sprintf("dbr: record timestamp %v predates the Unix epoch", ts))
		}
		out = binary.BigEndian.AppendUint32(out, uint32(int32(unix-epochOffsetSeconds)))
		out = binary.BigEndian.AppendUint32(out, uint32(ts.Nanosecond()))
	}
	if typ.Category == CatControl {
		return 0, nil, protocol.ErrBadType
	}
	if typ.Category == CatGraphics && (typ.Basic == BasicEnum || typ.Basic == BasicString) {
		return 0, nil, protocol.ErrBadType
	}

	if pad := typ.padding(); pad > 0 {
		out = append(out, make([]byte, pad)...)
	}

	converted, err := Convert(d, typ.Basic)
	if err != nil {
		return 0, nil, err
	}
	limit := count
	if count == 0 {
		limit = -1
	}
	n, value := encodeValue(converted.Value(), limit)
	out = append(out, value...)

	if rem := len(out) % 8; rem != 0 {
		out = append(out, make([]byte, 8-rem)...)
	}
	return n, out, nil
}
