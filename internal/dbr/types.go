package dbr

import (
	"fmt"

	"github.com/epicsgo/caserver/internal/protocol"
)

// BasicType is the payload's intrinsic data kind, independent of
// metadata category. The numeric order is fixed by the protocol.
type BasicType uint16

const (
	BasicString BasicType = 0
	BasicInt    BasicType = 1
	BasicFloat  BasicType = 2
	BasicEnum   BasicType = 3
	BasicChar   BasicType = 4
	BasicLong   BasicType = 5
	BasicDouble BasicType = 6
)

const basicTypeCount = 7

func (b BasicType) String() string {
	switch b {
	case BasicString:
		return "STRING"
	case BasicInt:
		return "INT"
	case BasicFloat:
		return "FLOAT"
	case BasicEnum:
		return "ENUM"
	case BasicChar:
		return "CHAR"
	case BasicLong:
		return "LONG"
	case BasicDouble:
		return "DOUBLE"
	}
	return fmt.Sprintf("BasicType(%d)", uint16(b))
}

// Category is the metadata richness layered on a basic type.
type Category uint16

const (
	CatBasic    Category = 0
	CatStatus   Category = 1
	CatTime     Category = 2
	CatGraphics Category = 3
	CatControl  Category = 4
)

const categoryCount = 5

func (c Category) String() string {
	switch c {
	case CatBasic:
		return "BASIC"
	case CatStatus:
		return "STS"
	case CatTime:
		return "TIME"
	case CatGraphics:
		return "GR"
	case CatControl:
		return "CTRL"
	}
	return fmt.Sprintf("Category(%d)", uint16(c))
}

// Type is a (basic type, category) pair. Its wire code is
// category*7 + basic type, a bijection over codes 0..34.
type Type struct {
	Basic    BasicType
	Category Category
}

func (t Type) String() string {
	return fmt.Sprintf("DBR_%s_%s", t.Category, t.Basic)
}

// Code returns the numeric wire code for the pair.
func (t Type) Code() uint16 {
	return uint16(t.Category)*basicTypeCount + uint16(t.Basic)
}

// TypeFromCode decodes a wire code back into its (basic type,
// category) pair. Codes outside 0..34 are invalid.
func TypeFromCode(code uint16) (Type, error) {
	t := Type{
		Basic:    BasicType(code % basicTypeCount),
		Category: Category(code / basicTypeCount),
	}
	if t.Category >= categoryCount {
		return Type{}, protocol.ErrBadType
	}
	return t, nil
}

// NativeType wraps a basic type with the bare-value category.
func NativeType(b BasicType) Type {
	return Type{Basic: b, Category: CatBasic}
}

// paddingKey keys the metadata padding table.
type paddingKey struct {
	category Category
	basic    BasicType
}

// metadataPadding gives the zero bytes inserted between a payload's
// metadata and its value. This table is a protocol constant taken from
// the CA payload layout specification
// (https://docs.epics-controls.org/en/latest/internal/ca_protocol.html#payload-data-types);
// it must never be derived arithmetically. Unlisted pairs carry no
// padding.
var metadataPadding = map[paddingKey]int{
	{CatStatus, BasicChar}:    1,
	{CatStatus, BasicDouble}:  4,
	{CatTime, BasicInt}:       2,
	{CatTime, BasicEnum}:      2,
	{CatTime, BasicChar}:      3,
	{CatTime, BasicDouble}:    4,
	{CatGraphics, BasicFloat}: 2,
	{CatGraphics, BasicChar}:  1,
	{CatControl, BasicChar}:   1,
}

func (t Type) padding() int {
	return metadataPadding[paddingKey{t.Category, t.Basic}]
}
