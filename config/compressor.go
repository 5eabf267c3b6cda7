package config

import (
	"fmt"
	"math"

	"github.com/janelia-flyem/szinterp/encoder"
	"github.com/janelia-flyem/szinterp/interp"
	"github.com/janelia-flyem/szinterp/lossless"
	"github.com/janelia-flyem/szinterp/quantizer"
	"github.com/janelia-flyem/szinterp/sz"

	"golang.org/x/exp/constraints"
)

// ValueRange returns the smallest and largest of the non-NaN values in data.
func ValueRange[T constraints.Float](data []T) (min, max float64) {
	min, max = math.Inf(1), math.Inf(-1)
	for _, v := range data {
		f := float64(v)
		if math.IsNaN(f) {
			continue
		}
		if f < min {
			min = f
		}
		if f > max {
			max = f
		}
	}
	return
}

// AbsErrorBound returns the absolute error bound to use for data.  In relative
// mode the configured bound is scaled by the value range of data.
func AbsErrorBound[T constraints.Float](c *Compression, data []T) float64 {
	if c.ErrorMode != RelativeMode {
		return c.ErrorBound
	}
	min, max := ValueRange(data)
	valueRange := max - min
	if !(valueRange > 0) || math.IsInf(valueRange, 0) {
		sz.Warningf("Value range [%g, %g] can't scale relative error bound, using %g as absolute bound\n",
			min, max, c.ErrorBound)
		return c.ErrorBound
	}
	eb := c.ErrorBound * valueRange
	sz.Debugf("Relative error bound %g over range %g gives absolute bound %g\n", c.ErrorBound, valueRange, eb)
	return eb
}

// NewCompressor returns a compressor for a grid of the given shape with its
// quantizer set to the absolute error bound eb.  When decompressing, the bound is
// read from the compressed stream and eb only needs to be positive.
func NewCompressor[T constraints.Float](c *Compression, dims []int, eb float64) (*interp.Compressor[T], error) {
	t, err := c.Type()
	if err != nil {
		return nil, err
	}
	if t != sz.DataTypeOf[T]() {
		return nil, fmt.Errorf("configured data type %s can't be used for %s values", t, sz.DataTypeOf[T]())
	}
	if !(eb > 0) {
		return nil, fmt.Errorf("%w: error bound %g must be positive", interp.ErrInvalidConfig, eb)
	}
	opts, err := c.Options(dims)
	if err != nil {
		return nil, err
	}
	e, err := encoder.New(c.Encoder)
	if err != nil {
		return nil, err
	}
	l, err := lossless.New(c.Lossless, c.Checksum)
	if err != nil {
		return nil, err
	}
	q := quantizer.NewLinear[T](eb, c.Radius)
	return interp.New[T](q, e, l, opts)
}
