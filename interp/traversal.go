package interp

import (
	"fmt"
	"math"

	"golang.org/x/exp/constraints"
)

// behavior determines what happens to each predicted point.
type behavior uint8

const (
	// predictOverwrite quantizes each point against its prediction and replaces it
	// with the reconstructed value.
	predictOverwrite behavior = iota

	// recoverValues rebuilds each point from its prediction and the next code.
	recoverValues
)

// traversal is the state of one compression or decompression pass over a grid.
// Both behaviors walk the grid through the same code so the order of codes is
// identical on both sides.
type traversal[T constraints.Float] struct {
	c    *Compressor[T]
	data []T
	pb   behavior

	codes     []int
	cursor    int
	predicted int
	err       error

	// largest |value - prediction| since the last reset, compression only
	maxErr float64
}

func (t *traversal[T]) process(idx int, pred T) {
	if t.c.trace != nil {
		t.c.trace(idx)
	}
	if t.pb == predictOverwrite {
		if r := math.Abs(float64(t.data[idx]) - float64(pred)); r > t.maxErr {
			t.maxErr = r
		}
		t.codes = append(t.codes, t.c.quantizer.QuantizeAndOverwrite(&t.data[idx], pred))
		return
	}
	if t.err != nil {
		return
	}
	if t.cursor >= len(t.codes) {
		t.err = fmt.Errorf("%w: ran out of codes after %d", ErrCodeCount, len(t.codes))
		return
	}
	v, err := t.c.quantizer.Recover(pred, t.codes[t.cursor])
	if err != nil {
		t.err = fmt.Errorf("recovering element %d from code %d: %w", idx, t.cursor, err)
		return
	}
	t.cursor++
	t.data[idx] = v
}
