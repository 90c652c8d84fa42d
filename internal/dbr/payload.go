package dbr

import (
	"encoding/binary"
	"math"

	"github.com/epicsgo/caserver/internal/protocol"
)

// Payload holds either one scalar or an ordered sequence of a numeric
// kind. The distinction matters for writes: replacing a scalar with an
// array is an error, while an array may accept a different length.
type Payload[T Number] struct {
	scalar bool
	one    T
	many   []T
}

// Scalar wraps a single value.
func Scalar[T Number](v T) Payload[T] {
	return Payload[T]{scalar: true, one: v}
}

// Array wraps a sequence of values. The slice is not copied; callers
// hand over ownership.
func Array[T Number](vs []T) Payload[T] {
	return Payload[T]{many: vs}
}

// IsScalar reports whether the payload wraps a single value rather
// than an array.
func (p Payload[T]) IsScalar() bool { return p.scalar }

// Elements returns the payload's elements as a fresh slice.
func (p Payload[T]) Elements() []T {
	if p.scalar {
		return []T{p.one}
	}
	out := make([]T, len(p.many))
	copy(out, p.many)
	return out
}

// Count is 1 for a scalar and the element count (possibly 0) for an
// array.
func (p Payload[T]) Count() int {
	if p.scalar {
		return 1
	}
	return len(p.many)
}

// bytes concatenates the big-endian representation of up to limit
// elements. A negative limit means all elements; a limit of 0 yields
// no bytes. Requesting more elements than available yields only the
// available ones.
func (p Payload[T]) bytes(limit int) []byte {
	n := p.Count()
	if limit >= 0 && limit < n {
		n = limit
	}
	out := make([]byte, 0, n*sizeOf[T]())
	if p.scalar {
		if n > 0 {
			out = appendBE(out, p.one)
		}
		return out
	}
	for _, v := range p.many[:n] {
		out = appendBE(out, v)
	}
	return out
}

// convertPayload casts every element to kind U using the checked cast;
// the first element that cannot be represented aborts the whole
// conversion. An empty array always converts.
func convertPayload[U, T Number](p Payload[T]) (Payload[U], error) {
	if p.scalar {
		v, ok := cast[U](p.one)
		if !ok {
			return Payload[U]{}, protocol.ErrNoConvert
		}
		return Scalar(v), nil
	}
	out := make([]U, len(p.many))
	for i, v := range p.many {
		u, ok := cast[U](v)
		if !ok {
			return Payload[U]{}, protocol.ErrNoConvert
		}
		out[i] = u
	}
	return Array(out), nil
}

func appendBE[T Number](b []byte, v T) []byte {
	switch x := any(v).(type) {
	case int8:
		return append(b, byte(x))
	case int16:
		return binary.BigEndian.AppendUint16(b, uint16(x))
	case int32:
		return binary.BigEndian.AppendUint32(b, uint32(x))
	case uint16:
		return binary.BigEndian.AppendUint16(b, x)
	case float32:
		return binary.BigEndian.AppendUint32(b, math.Float32bits(x))
	case float64:
		return binary.BigEndian.AppendUint64(b, math.Float64bits(x))
	}
	panic("dbr: element kind outside the closed set")
}

func sizeOf[T Number]() int {
	var zero T
	switch any(zero).(type) {
	case int8:
		return 1
	case int16, uint16:
		return 2
	case int32, float32:
		return 4
	default:
		return 8
	}
}
