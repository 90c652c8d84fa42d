package dbr

import "github.com/epicsgo/caserver/internal/protocol"

// Convert produces a new record of the requested basic type. String is
// never available as a target; an enum target accepts only an enum
// source; numeric targets accept every numeric or enum source whose
// elements survive the checked cast. Identity conversions clone.
func Convert(d Dbr, target BasicType) (Dbr, error) {
	switch target {
	case BasicString:
		return nil, protocol.ErrUnavailInServ
	case BasicEnum:
		if e, ok := d.(*EnumRecord); ok {
			return e.clone(), nil
		}
		return nil, protocol.ErrNoConvert
	case BasicChar:
		return convertNumeric[int8](d)
	case BasicInt:
		return convertNumeric[int16](d)
	case BasicLong:
		return convertNumeric[int32](d)
	case BasicFloat:
		return convertNumeric[float32](d)
	case BasicDouble:
		return convertNumeric[float64](d)
	}
	return nil, protocol.ErrBadType
}

func convertNumeric[U Number](d Dbr) (Dbr, error) {
	switch src := d.(type) {
	case *NumericRecord[int8]:
		return wrap(convertRecord[U](src))
	case *NumericRecord[int16]:
		return wrap(convertRecord[U](src))
	case *NumericRecord[int32]:
		return wrap(convertRecord[U](src))
	case *NumericRecord[float32]:
		return wrap(convertRecord[U](src))
	case *NumericRecord[float64]:
		return wrap(convertRecord[U](src))
	case *EnumRecord:
		return wrap(toNumeric[U](src))
	case *StringRecord:
		return nil, protocol.ErrNoConvert
	}
	panic("dbr: record kind outside the closed set")
}

// wrap lifts a concrete conversion result into the sum without letting
// a typed nil escape into the interface.
func wrap[U Number](rec *NumericRecord[U], err error) (Dbr, error) {
	if err != nil {
		return nil, err
	}
	return rec, nil
}
