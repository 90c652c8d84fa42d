package dbr

// Value is the value-only sum used for the final value-byte step of
// serialization, after metadata has been written.
type Value interface {
	Count() int
	// bytes encodes up to limit elements big-endian; negative means
	// all.
	bytes(limit int) []byte
}

// EnumValue is a bare enumerated index.
type EnumValue uint16

func (EnumValue) Count() int { return 1 }

func (v EnumValue) bytes(limit int) []byte {
	if limit == 0 {
		return nil
	}
	return []byte{byte(v >> 8), byte(v)}
}

// StringValue is a bare string value. Its byte encoding is
// unreachable: the conversion matrix rejects String as a target before
// the value-only projection can be encoded.
type StringValue string

func (StringValue) Count() int { return 1 }

func (StringValue) bytes(int) []byte {
	panic("dbr: string value byte encoding is unreachable")
}

// numericValue wraps a payload so the value-only sum stays closed.
type numericValue[T Number] struct {
	payload Payload[T]
}

func (v numericValue[T]) Count() int { return v.payload.Count() }

func (v numericValue[T]) bytes(limit int) []byte { return v.payload.bytes(limit) }

// encodeValue encodes up to max elements of v (negative max means the
// native count) and reports how many elements the bytes cover.
func encodeValue(v Value, max int) (int, []byte) {
	n := v.Count()
	if max >= 0 && max < n {
		n = max
	}
	return n, v.bytes(n)
}
