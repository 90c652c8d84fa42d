package dbr

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/epicsgo/caserver/internal/protocol"
)

func TestScalarConversionRangeChecks(t *testing.T) {
	v := Scalar(int32(500))

	narrowed, err := convertPayload[int16](v)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x01, 0xF4}, narrowed.bytes(-1))

	_, err = convertPayload[int8](v)
	assert.ErrorIs(t, err, protocol.ErrNoConvert)

	assert.Equal(t, []byte{0x00, 0x00, 0x01, 0xF4}, v.bytes(-1))
}

func TestFloatTruncationTowardZero(t *testing.T) {
	conv, err := convertPayload[int32](Scalar(float32(455.9)))
	require.NoError(t, err)
	assert.Equal(t, []byte{0x00, 0x00, 0x01, 0xC7}, conv.bytes(5))

	conv2, err := convertPayload[int32](Scalar(float32(-455.9)))
	require.NoError(t, err)
	assert.Equal(t, 1, conv2.Count())
	assert.Equal(t, []byte{0xFF, 0xFF, 0xFE, 0x39}, conv2.bytes(-1))
}

func TestArrayConversionAbortsOnFirstFailure(t *testing.T) {
	_, err := convertPayload[int8](Array([]int32{1, 2, 500, 3}))
	assert.ErrorIs(t, err, protocol.ErrNoConvert)

	conv, err := convertPayload[int16](Array([]float32{500.23, 12.7}))
	require.NoError(t, err)
	assert.Equal(t, []byte{0x01, 0xF4, 0x00, 0x0C}, conv.bytes(-1))
}

func TestEmptyArrayAlwaysConverts(t *testing.T) {
	conv, err := convertPayload[int8](Array([]float64{}))
	require.NoError(t, err)
	assert.Equal(t, 0, conv.Count())
	assert.Empty(t, conv.bytes(-1))
}

func TestElementLimitEncoding(t *testing.T) {
	data := []float32{500.23, 12.7, -3.5}
	v := Array(data)
	assert.Equal(t, 3, v.Count())

	all := v.bytes(-1)
	assert.Len(t, all, 12)
	assert.Empty(t, v.bytes(0))
	assert.Equal(t, all[:4], v.bytes(1))
	assert.Equal(t, all[:8], v.bytes(2))
	// Requesting more than available yields only the available bytes.
	assert.Equal(t, all, v.bytes(10))
}

func TestScalarLimitZeroYieldsNothing(t *testing.T) {
	assert.Empty(t, Scalar(int32(42)).bytes(0))
	assert.Equal(t, []byte{0x00, 0x00, 0x00, 0x2A}, Scalar(int32(42)).bytes(1))
}

func TestDoubleAndCharEncoding(t *testing.T) {
	assert.Equal(t, []byte{0x7F}, Scalar(int8(127)).bytes(-1))
	assert.Equal(t, []byte{0x81}, Scalar(int8(-127)).bytes(-1))
	// 1.5 in IEEE 754 binary64.
	assert.Equal(t,
		[]byte{0x3F, 0xF8, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00},
		Scalar(float64(1.5)).bytes(-1))
}

func TestIntToFloatAndBackCasts(t *testing.T) {
	conv, err := convertPayload[float64](Scalar(int32(1 << 30)))
	require.NoError(t, err)
	assert.Equal(t, 1, conv.Count())

	// Double values beyond int32 range must not convert down.
	_, err = convertPayload[int32](Scalar(float64(1 << 40)))
	assert.ErrorIs(t, err, protocol.ErrNoConvert)

	// Finite doubles beyond the float32 range must not narrow.
	_, err = convertPayload[float32](Scalar(float64(1e300)))
	assert.ErrorIs(t, err, protocol.ErrNoConvert)

	conv32, err := convertPayload[float32](Scalar(float64(0.1)))
	require.NoError(t, err)
	assert.Equal(t, []byte{0x3D, 0xCC, 0xCC, 0xCD}, conv32.bytes(-1))
}
