package reslice

import (
	"math"

	"mrireslice/internal/models"
)

const (
	twoTo63 = 9223372036854775808.0  // 2^63
	twoTo64 = 18446744073709551616.0 // 2^64
)

// Cast narrows a float64 accumulation result to the value range of t.
// Integer targets round half to even and saturate at the type's limits;
// NaN becomes 0. Float targets saturate at ±MaxFloat32 / ±MaxFloat64 and
// keep NaN. The result is exactly representable in t except for the
// 64-bit integer limits, which Store handles.
func Cast(v float64, t models.ScalarType) float64 {
	lo, hi := t.Range()
	if t.IsInteger() {
		if math.IsNaN(v) {
			return 0
		}
		v = math.RoundToEven(v)
	} else if math.IsNaN(v) {
		return v
	}
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	if t == models.Float32 {
		return float64(float32(v))
	}
	return v
}

// Store casts v to the element type of s and writes it at index i
func Store(s models.Scalars, i int, v float64) {
	switch raw := s.Raw().(type) {
	case []int64:
		raw[i] = castInt64(v)
	case []uint64:
		raw[i] = castUint64(v)
	default:
		s.Set(i, Cast(v, s.Type()))
	}
}

func castInt64(v float64) int64 {
	switch {
	case math.IsNaN(v):
		return 0
	case v >= twoTo63:
		return math.MaxInt64
	case v <= -twoTo63:
		return math.MinInt64
	}
	return int64(math.RoundToEven(v))
}

func castUint64(v float64) uint64 {
	switch {
	case math.IsNaN(v), v <= 0:
		return 0
	case v >= twoTo64:
		return math.MaxUint64
	}
	return uint64(math.RoundToEven(v))
}
