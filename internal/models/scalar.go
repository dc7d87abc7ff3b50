package models

import (
	"fmt"
	"math"
	"strings"
)

// ScalarType identifies the numeric type of image samples
type ScalarType int

const (
	// SameAsInput is the sentinel for "use the input volume's scalar type"
	SameAsInput ScalarType = iota
	Bit
	Int8
	Uint8
	Int16
	Uint16
	Int32
	Uint32
	Int64
	Uint64
	Float32
	Float64
)

var scalarTypeNames = map[ScalarType]string{
	SameAsInput: "same",
	Bit:         "bit",
	Int8:        "int8",
	Uint8:       "uint8",
	Int16:       "int16",
	Uint16:      "uint16",
	Int32:       "int32",
	Uint32:      "uint32",
	Int64:       "int64",
	Uint64:      "uint64",
	Float32:     "float32",
	Float64:     "float64",
}

// String returns the lower-case name used in configuration files
func (t ScalarType) String() string {
	if name, ok := scalarTypeNames[t]; ok {
		return name
	}
	return fmt.Sprintf("ScalarType(%d)", int(t))
}

// ParseScalarType accepts the names produced by String as well as the
// common aliases "char", "unsigned_char", "short", "unsigned_short",
// "int", "unsigned_int", "long", "unsigned_long", "float" and "double".
func ParseScalarType(s string) (ScalarType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "same", "input", "same_as_input":
		return SameAsInput, nil
	case "bit":
		return Bit, nil
	case "int8", "char", "signed_char":
		return Int8, nil
	case "uint8", "unsigned_char", "byte":
		return Uint8, nil
	case "int16", "short":
		return Int16, nil
	case "uint16", "unsigned_short":
		return Uint16, nil
	case "int32", "int":
		return Int32, nil
	case "uint32", "unsigned_int":
		return Uint32, nil
	case "int64", "long", "long_long":
		return Int64, nil
	case "uint64", "unsigned_long", "unsigned_long_long":
		return Uint64, nil
	case "float32", "float":
		return Float32, nil
	case "float64", "double":
		return Float64, nil
	}
	return SameAsInput, fmt.Errorf("unknown scalar type %q", s)
}

// IsInteger reports whether t holds integral values
func (t ScalarType) IsInteger() bool {
	switch t {
	case Int8, Uint8, Int16, Uint16, Int32, Uint32, Int64, Uint64:
		return true
	}
	return false
}

// Size returns the storage size in bytes, or 0 for types without a byte layout
func (t ScalarType) Size() int {
	switch t {
	case Int8, Uint8:
		return 1
	case Int16, Uint16:
		return 2
	case Int32, Uint32, Float32:
		return 4
	case Int64, Uint64, Float64:
		return 8
	}
	return 0
}

// Range returns the representable value range of t.
// Float types report ±MaxFloat.
func (t ScalarType) Range() (lo, hi float64) {
	switch t {
	case Int8:
		return math.MinInt8, math.MaxInt8
	case Uint8:
		return 0, math.MaxUint8
	case Int16:
		return math.MinInt16, math.MaxInt16
	case Uint16:
		return 0, math.MaxUint16
	case Int32:
		return math.MinInt32, math.MaxInt32
	case Uint32:
		return 0, math.MaxUint32
	case Int64:
		return math.MinInt64, math.MaxInt64
	case Uint64:
		return 0, math.MaxUint64
	case Float32:
		return -math.MaxFloat32, math.MaxFloat32
	case Float64:
		return -math.MaxFloat64, math.MaxFloat64
	}
	return 0, 0
}

// Scalars is typed sample storage. Set stores v converted to the element
// type with a plain Go conversion, so callers are expected to hand in values
// that are already rounded and inside Range.
type Scalars interface {
	Type() ScalarType
	Len() int
	At(i int) float64
	Set(i int, v float64)
	// Raw returns the backing slice, e.g. []uint16 for Uint16
	Raw() any
}

type number interface {
	~int8 | ~uint8 | ~int16 | ~uint16 | ~int32 | ~uint32 | ~int64 | ~uint64 | ~float32 | ~float64
}

type scalarArray[T number] struct {
	typ  ScalarType
	data []T
}

func (a *scalarArray[T]) Type() ScalarType     { return a.typ }
func (a *scalarArray[T]) Len() int             { return len(a.data) }
func (a *scalarArray[T]) At(i int) float64     { return float64(a.data[i]) }
func (a *scalarArray[T]) Set(i int, v float64) { a.data[i] = T(v) }
func (a *scalarArray[T]) Raw() any             { return a.data }

// NewScalars allocates n zeroed samples of type t.
// It returns false for types that have no in-memory representation.
func NewScalars(t ScalarType, n int) (Scalars, bool) {
	switch t {
	case Int8:
		return &scalarArray[int8]{t, make([]int8, n)}, true
	case Uint8:
		return &scalarArray[uint8]{t, make([]uint8, n)}, true
	case Int16:
		return &scalarArray[int16]{t, make([]int16, n)}, true
	case Uint16:
		return &scalarArray[uint16]{t, make([]uint16, n)}, true
	case Int32:
		return &scalarArray[int32]{t, make([]int32, n)}, true
	case Uint32:
		return &scalarArray[uint32]{t, make([]uint32, n)}, true
	case Int64:
		return &scalarArray[int64]{t, make([]int64, n)}, true
	case Uint64:
		return &scalarArray[uint64]{t, make([]uint64, n)}, true
	case Float32:
		return &scalarArray[float32]{t, make([]float32, n)}, true
	case Float64:
		return &scalarArray[float64]{t, make([]float64, n)}, true
	}
	return nil, false
}
