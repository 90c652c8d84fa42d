package server

import (
	"encoding/binary"
	"math"
	"strconv"

	"github.com/epicsgo/caserver/internal/dbr"
	"github.com/epicsgo/caserver/internal/protocol"
)

// stringElementSize is the fixed cell width for string payloads.
const stringElementSize = 40

// writeTokens decodes a client write payload into the string tokens the
// provider contract takes. Writes carry plain values, so only the basic
// category is accepted.
func writeTokens(code uint16, count uint32, payload []byte) ([]string, error) {
	typ, err := dbr.TypeFromCode(code)
	if err != nil {
		return nil, err
	}
	if typ.Category != dbr.CatBasic {
		return nil, protocol.ErrBadType
	}
	n := int(count)
	if n == 0 {
		n = 1
	}

	size := elementSize(typ.Basic)
	if len(payload) < n*size {
		return nil, protocol.ErrBadCount
	}

	tokens := make([]string, 0, n)
	for i := 0; i < n; i++ {
		cell := payload[i*size : (i+1)*size]
		tokens = append(tokens, formatElement(typ.Basic, cell))
	}
	return tokens, nil
}

func elementSize(b dbr.BasicType) int {
	switch b {
	case dbr.BasicString:
		return stringElementSize
	case dbr.BasicChar:
		return 1
	case dbr.BasicInt, dbr.BasicEnum:
		return 2
	case dbr.BasicFloat, dbr.BasicLong:
		return 4
	case dbr.BasicDouble:
		return 8
	default:
		panic("server: element size for unknown basic type")
	}
}

func formatElement(b dbr.BasicType, cell []byte) string {
	switch b {
	case dbr.BasicString:
		return cString(cell)
	case dbr.BasicChar:
		return strconv.FormatInt(int64(int8(cell[0])), 10)
	case dbr.BasicInt:
		return strconv.FormatInt(int64(int16(binary.BigEndian.Uint16(cell))), 10)
	case dbr.BasicEnum:
		return strconv.FormatUint(uint64(binary.BigEndian.Uint16(cell)), 10)
	case dbr.BasicLong:
		return strconv.FormatInt(int64(int32(binary.BigEndian.Uint32(cell))), 10)
	case dbr.BasicFloat:
		f := math.Float32frombits(binary.BigEndian.Uint32(cell))
		return strconv.FormatFloat(float64(f), 'g', -1, 32)
	case dbr.BasicDouble:
		f := math.Float64frombits(binary.BigEndian.Uint64(cell))
		return strconv.FormatFloat(f, 'g', -1, 64)
	default:
		panic("server: format for unknown basic type")
	}
}
