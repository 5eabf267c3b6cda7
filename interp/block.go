package interp

import "github.com/janelia-flyem/szinterp/sz"

// interpolateBlock runs one 1-d pass per axis over the block [begin, end] at the
// given stride.  Axes are handled in the order selected by the direction id.  During
// the pass along order[p], axes earlier in the order have already been filled at
// single stride, while later ones are only known at double stride.  passErr receives
// the largest residual seen in each pass.
func (t *traversal[T]) interpolateBlock(begin, end []int, stride int, passErr []float64) {
	coord := make([]int, len(t.c.order))
	for p, axis := range t.c.order {
		t.maxErr = 0
		coord[axis] = begin[axis]
		t.sweep(p, 0, coord, begin, end, stride)
		if t.maxErr > passErr[p] {
			passErr[p] = t.maxErr
		}
		if t.err != nil {
			return
		}
	}
}

// sweep visits the coordinates of every axis other than order[pass], outermost
// axis first, and runs the kernel along order[pass] from each of them.
func (t *traversal[T]) sweep(pass, q int, coord, begin, end []int, stride int) {
	order := t.c.order
	if q == len(order) {
		axis := order[pass]
		off := t.c.offsets[axis]
		first := sz.Index(coord, t.c.offsets)
		t.predicted += t.interpolate1D(first, first+(end[axis]-begin[axis])*off, stride*off)
		return
	}
	if q == pass {
		t.sweep(pass, q+1, coord, begin, end, stride)
		return
	}
	axis := order[q]
	step := stride
	if q > pass {
		step = 2 * stride
	}
	var start int
	if begin[axis] != 0 {
		start = begin[axis] + step
	}
	for x := start; x <= end[axis]; x += step {
		coord[axis] = x
		t.sweep(pass, q+1, coord, begin, end, stride)
	}
	coord[axis] = begin[axis]
}
