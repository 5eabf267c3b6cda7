package interp

import "github.com/janelia-flyem/szinterp/sz"

// Coarse levels are quantized against a tighter bound so that finer levels predict
// from more accurate values.
const (
	relaxedLevel = 3
	relaxedRatio = 0.5
)

// run walks the resolution levels from the coarsest down to stride 1.  The seed
// point must already be processed.  The quantizer's error bound is restored to eb
// on return.
func (t *traversal[T]) run(eb float64, blockSize int) {
	c := t.c
	defer c.quantizer.SetEB(eb)
	for level := c.levels; level > 0; level-- {
		if level >= relaxedLevel {
			c.quantizer.SetEB(eb * relaxedRatio)
		} else {
			c.quantizer.SetEB(eb)
		}
		stride := 1 << (level - 1)
		span := blockSize * stride
		passErr := make([]float64, len(c.order))
		before := t.predicted

		blocks := sz.NewBlockRange(c.dims, span)
		for begin, ok := blocks.Next(); ok; begin, ok = blocks.Next() {
			end := c.dims.BlockEnd(begin, span)
			t.interpolateBlock(begin, end, stride, passErr)
			if t.err != nil {
				return
			}
		}
		if t.pb == predictOverwrite {
			sz.Debugf("Level %d (stride %d): %d points, max residual per axis pass %v\n",
				level, stride, t.predicted-before, passErr)
		}
	}
}
