package dbr

import "math"

// Number is the closed set of element kinds a record can hold. uint16
// appears only as the enumerated index type.
type Number interface {
	~int8 | ~int16 | ~int32 | ~uint16 | ~float32 | ~float64
}

// cast attempts a checked conversion of v to kind U. Integer targets
// truncate any fractional part toward zero and fail when the result is
// outside the target range (or the source is NaN). float64 targets
// always succeed; float32 targets fail when a finite source overflows
// the float32 range. Every kind in the closed set is exactly
// representable as float64, so routing through it loses nothing.
func cast[U, T Number](v T) (U, bool) {
	var zero U
	f := float64(v)
	switch any(zero).(type) {
	case int8:
		return truncToInt[U](f, math.MinInt8, math.MaxInt8)
	case int16:
		return truncToInt[U](f, math.MinInt16, math.MaxInt16)
	case int32:
		return truncToInt[U](f, math.MinInt32, math.MaxInt32)
	case uint16:
		return truncToInt[U](f, 0, math.MaxUint16)
	case float32:
		if !math.IsInf(f, 0) && (f > math.MaxFloat32 || f < -math.MaxFloat32) {
			return zero, false
		}
		return U(f), true
	case float64:
		return U(f), true
	}
	return zero, false
}

func truncToInt[U Number](f, lo, hi float64) (U, bool) {
	t := math.Trunc(f)
	if math.IsNaN(t) || t < lo || t > hi {
		var zero U
		return zero, false
	}
	return U(t), true
}
