package dbr

import "github.com/epicsgo/caserver/internal/protocol"

// Limits is an optional (upper, lower) bound pair. Absent bounds stay
// absent through conversion.
type Limits[T Number] struct {
	Upper *T
	Lower *T
}

// LimitSet carries the three bound pairs a numeric record exposes.
type LimitSet[T Number] struct {
	Display Limits[T]
	Warning Limits[T]
	Alarm   Limits[T]
}

func convertBound[U, T Number](b *T) (*U, error) {
	if b == nil {
		return nil, nil
	}
	v, ok := cast[U](*b)
	if !ok {
		return nil, protocol.ErrNoConvert
	}
	return &v, nil
}

func convertLimits[U, T Number](l Limits[T]) (Limits[U], error) {
	upper, err := convertBound[U](l.Upper)
	if err != nil {
		return Limits[U]{}, err
	}
	lower, err := convertBound[U](l.Lower)
	if err != nil {
		return Limits[U]{}, err
	}
	return Limits[U]{Upper: upper, Lower: lower}, nil
}

// convertLimitSet converts element-wise and fails on the first bound
// that cannot be represented in U.
func convertLimitSet[U, T Number](s LimitSet[T]) (LimitSet[U], error) {
	display, err := convertLimits[U](s.Display)
	if err != nil {
		return LimitSet[U]{}, err
	}
	warning, err := convertLimits[U](s.Warning)
	if err != nil {
		return LimitSet[U]{}, err
	}
	alarm, err := convertLimits[U](s.Alarm)
	if err != nil {
		return LimitSet[U]{}, err
	}
	return LimitSet[U]{Display: display, Warning: warning, Alarm: alarm}, nil
}
