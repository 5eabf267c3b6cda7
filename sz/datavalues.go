/*
   This file handles the element types of compressed grids and the conversion of
   little-endian raw data to and from typed slices.
*/

package sz

import (
	"encoding/binary"
	"fmt"
	"math"

	"golang.org/x/exp/constraints"
)

// DataType identifies the floating-point type of grid elements.
type DataType uint8

const (
	T_float32 DataType = iota + 8
	T_float64
)

var typeBytes = map[DataType]int{
	T_float32: 4,
	T_float64: 8,
}

// Bytes returns the number of bytes per element.
func (t DataType) Bytes() int {
	return typeBytes[t]
}

func (t DataType) String() string {
	switch t {
	case T_float32:
		return "float32"
	case T_float64:
		return "float64"
	default:
		return fmt.Sprintf("unknown data type %d", uint8(t))
	}
}

// ParseDataType returns the DataType for a name like "float32".
func ParseDataType(name string) (DataType, error) {
	switch name {
	case "float32", "f32", "":
		return T_float32, nil
	case "float64", "f64", "double":
		return T_float64, nil
	default:
		return 0, fmt.Errorf("unsupported data type %q", name)
	}
}

// DataTypeOf returns the DataType corresponding to the type parameter.
func DataTypeOf[T constraints.Float]() DataType {
	var v T
	switch any(v).(type) {
	case float64:
		return T_float64
	default:
		return T_float32
	}
}

// BytesToFloats converts little-endian raw data into a typed slice.
func BytesToFloats[T constraints.Float](b []byte) ([]T, error) {
	t := DataTypeOf[T]()
	nbytes := t.Bytes()
	if len(b)%nbytes != 0 {
		return nil, fmt.Errorf("%d bytes is not a multiple of %s size (%d bytes)", len(b), t, nbytes)
	}
	out := make([]T, len(b)/nbytes)
	for i := range out {
		pos := i * nbytes
		if t == T_float64 {
			out[i] = T(math.Float64frombits(binary.LittleEndian.Uint64(b[pos:])))
		} else {
			out[i] = T(math.Float32frombits(binary.LittleEndian.Uint32(b[pos:])))
		}
	}
	return out, nil
}

// FloatsToBytes converts a typed slice into little-endian raw data.
func FloatsToBytes[T constraints.Float](data []T) []byte {
	t := DataTypeOf[T]()
	nbytes := t.Bytes()
	b := make([]byte, len(data)*nbytes)
	for i, v := range data {
		pos := i * nbytes
		if t == T_float64 {
			binary.LittleEndian.PutUint64(b[pos:], math.Float64bits(float64(v)))
		} else {
			binary.LittleEndian.PutUint32(b[pos:], math.Float32bits(float32(v)))
		}
	}
	return b
}
