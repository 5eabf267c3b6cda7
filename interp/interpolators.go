package interp

import (
	"fmt"
	"os"

	"github.com/janelia-flyem/szinterp/sz"

	"golang.org/x/exp/constraints"
)

// Interpolator selects the prediction scheme of the 1-d kernel.
type Interpolator uint8

const (
	Linear Interpolator = iota
	Cubic
)

func (i Interpolator) String() string {
	switch i {
	case Linear:
		return "linear"
	case Cubic:
		return "cubic"
	default:
		return fmt.Sprintf("unknown interpolator %d", uint8(i))
	}
}

// ParseInterpolator returns the Interpolator for "linear" or "cubic".
func ParseInterpolator(name string) (Interpolator, error) {
	switch name {
	case "linear":
		return Linear, nil
	case "cubic", "":
		return Cubic, nil
	default:
		return Linear, fmt.Errorf("%w: unknown interpolator %q", ErrInvalidConfig, name)
	}
}

func interpLinear[T constraints.Float](a, b T) T {
	return (a + b) / 2
}

// interpLinear1 extrapolates from points at -3 and -1 strides.
func interpLinear1[T constraints.Float](a, b T) T {
	return -0.5*a + 1.5*b
}

// interpQuad1 predicts from points at -1, +1, +3 strides.
func interpQuad1[T constraints.Float](a, b, c T) T {
	return (3*a + 6*b - c) / 8
}

// interpQuad2 predicts from points at -3, -1, +1 strides.
func interpQuad2[T constraints.Float](a, b, c T) T {
	return (-a + 6*b + 3*c) / 8
}

// interpQuad3 predicts from points at -5, -3, -1 strides.
func interpQuad3[T constraints.Float](a, b, c T) T {
	return (3*a - 10*b + 15*c) / 8
}

func interpCubic[T constraints.Float](a, b, c, d T) T {
	return (-a + 9*b + 9*c - d) / 16
}

func interpCubicP[T constraints.Float](a, b, c, d T, p *cubicCoeffs[T]) T {
	return p.a*a + p.b*b + p.c*c + p.d*d
}

// DefaultCubicParamsFile is read for tuned cubic coefficients when no other
// file is configured.
const DefaultCubicParamsFile = "c_params.dat"

// CubicParams are the weights of the tunable cubic kernel applied to the points at
// -3, -1, +1, +3 strides.
type CubicParams struct {
	A, B, C, D float64
}

// DefaultCubicParams are the weights of the standard 4-point cubic interpolation.
var DefaultCubicParams = CubicParams{-1.0 / 16, 9.0 / 16, 9.0 / 16, -1.0 / 16}

func (p CubicParams) String() string {
	return fmt.Sprintf("(%g, %g, %g, %g)", p.A, p.B, p.C, p.D)
}

type cubicCoeffs[T constraints.Float] struct {
	a, b, c, d T
}

func toCoeffs[T constraints.Float](p CubicParams) cubicCoeffs[T] {
	return cubicCoeffs[T]{T(p.A), T(p.B), T(p.C), T(p.D)}
}

// ReadCubicParams reads exactly four little-endian values of the element type T.
func ReadCubicParams[T constraints.Float](filename string) (CubicParams, error) {
	b, err := os.ReadFile(filename)
	if err != nil {
		return CubicParams{}, err
	}
	values, err := sz.BytesToFloats[T](b)
	if err != nil {
		return CubicParams{}, err
	}
	if len(values) != 4 {
		return CubicParams{}, fmt.Errorf("%d values in %s, expected 4", len(values), filename)
	}
	return CubicParams{float64(values[0]), float64(values[1]), float64(values[2]), float64(values[3])}, nil
}

// WriteCubicParams stores tuned coefficients as four values of the element type T.
func WriteCubicParams[T constraints.Float](filename string, p CubicParams) error {
	values := []T{T(p.A), T(p.B), T(p.C), T(p.D)}
	return os.WriteFile(filename, sz.FloatsToBytes(values), 0644)
}

// LoadCubicParams returns the coefficients stored in filename, or DefaultCubicParams
// with a logged notice if they can't be read.
func LoadCubicParams[T constraints.Float](filename string) CubicParams {
	if filename == "" {
		filename = DefaultCubicParamsFile
	}
	p, err := ReadCubicParams[T](filename)
	if err != nil {
		sz.Warningf("Read cubic params failed, using defaults %s: %v\n", DefaultCubicParams, err)
		return DefaultCubicParams
	}
	sz.Debugf("Loaded cubic params %s from %s\n", p, filename)
	return p
}
