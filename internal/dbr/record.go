package dbr

import (
	"time"

	"github.com/epicsgo/caserver/internal/protocol"
)

// Dbr is the closed sum over record kinds. The dynamic type is always
// the value's native kind as produced by its provider; conversion
// yields a new Dbr and never mutates the source.
type Dbr interface {
	// Count is the native element count (1 for string and enum).
	Count() int
	// Value projects to the value-only form, dropping metadata.
	Value() Value
	// NativeType reports the active kind with the bare-value category.
	NativeType() Type
	// AlarmStatus returns the (status, severity) pair.
	AlarmStatus() (status, severity int16)
	// Timestamp is the record's last-update time.
	Timestamp() time.Time
}

// NumericRecord is the value-plus-metadata record for the numeric
// kinds.
type NumericRecord[T Number] struct {
	Status   int16
	Severity int16
	// Precision is only meaningful for the floating kinds; it is kept
	// on the shared record to avoid a near-duplicate type.
	Precision   *uint16
	Units       string
	Limits      LimitSet[T]
	Payload     Payload[T]
	LastUpdated time.Time
}

func (r *NumericRecord[T]) Count() int { return r.Payload.Count() }

func (r *NumericRecord[T]) Value() Value { return numericValue[T]{r.Payload} }

func (r *NumericRecord[T]) NativeType() Type { return NativeType(basicTypeFor[T]()) }

func (r *NumericRecord[T]) AlarmStatus() (int16, int16) { return r.Status, r.Severity }

func (r *NumericRecord[T]) Timestamp() time.Time { return r.LastUpdated }

// convertRecord converts the payload and limit set to kind U and
// copies status, severity, precision, units and timestamp verbatim.
func convertRecord[U, T Number](r *NumericRecord[T]) (*NumericRecord[U], error) {
	payload, err := convertPayload[U](r.Payload)
	if err != nil {
		return nil, err
	}
	limits, err := convertLimitSet[U](r.Limits)
	if err != nil {
		return nil, err
	}
	return &NumericRecord[U]{
		Status:      r.Status,
		Severity:    r.Severity,
		Precision:   clonePtr(r.Precision),
		Units:       r.Units,
		Limits:      limits,
		Payload:     payload,
		LastUpdated: r.LastUpdated,
	}, nil
}

// StringRecord is the record kind for string-valued PVs. It has no
// numeric conversion.
type StringRecord struct {
	Status      int16
	Severity    int16
	Text        string
	LastUpdated time.Time
}

func (r *StringRecord) Count() int { return 1 }

func (r *StringRecord) Value() Value { return StringValue(r.Text) }

func (r *StringRecord) NativeType() Type { return NativeType(BasicString) }

func (r *StringRecord) AlarmStatus() (int16, int16) { return r.Status, r.Severity }

func (r *StringRecord) Timestamp() time.Time { return r.LastUpdated }

// EnumRecord is the record kind for enumerated PVs: a 16-bit index
// into a label table.
type EnumRecord struct {
	Status      int16
	Severity    int16
	Labels      map[uint16]string
	Index       uint16
	LastUpdated time.Time
}

func (r *EnumRecord) Count() int { return 1 }

func (r *EnumRecord) Value() Value { return EnumValue(r.Index) }

func (r *EnumRecord) NativeType() Type { return NativeType(BasicEnum) }

func (r *EnumRecord) AlarmStatus() (int16, int16) { return r.Status, r.Severity }

func (r *EnumRecord) Timestamp() time.Time { return r.LastUpdated }

func (r *EnumRecord) clone() *EnumRecord {
	labels := make(map[uint16]string, len(r.Labels))
	for k, v := range r.Labels {
		labels[k] = v
	}
	out := *r
	out.Labels = labels
	return &out
}

// toNumeric checked-casts the enum index to T. An enumeration has no
// physical-units or limit semantics, so everything beyond status,
// severity and timestamp resets to defaults.
func toNumeric[T Number](r *EnumRecord) (*NumericRecord[T], error) {
	v, ok := cast[T](r.Index)
	if !ok {
		return nil, protocol.ErrNoConvert
	}
	return &NumericRecord[T]{
		Status:      r.Status,
		Severity:    r.Severity,
		Payload:     Scalar(v),
		LastUpdated: r.LastUpdated,
	}, nil
}

func basicTypeFor[T Number]() BasicType {
	var zero T
	switch any(zero).(type) {
	case int8:
		return BasicChar
	case int16:
		return BasicInt
	case int32:
		return BasicLong
	case float32:
		return BasicFloat
	case float64:
		return BasicDouble
	case uint16:
		return BasicEnum
	}
	panic("dbr: element kind outside the closed set")
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
