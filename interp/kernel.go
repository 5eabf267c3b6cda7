package interp

// interpolate1D predicts the interior points of the strided run begin, begin+stride,
// ..., end whose endpoints already hold valid values, and returns the number of
// points predicted.  Odd positions are visited first, then an even-length run's
// last point.
func (t *traversal[T]) interpolate1D(begin, end, stride int) int {
	n := (end-begin)/stride + 1
	if n <= 1 {
		return 0
	}
	d := t.data
	stride3x := 3 * stride
	stride5x := 5 * stride

	if t.c.interpolator == Linear || n < 5 {
		for i := 1; i+1 < n; i += 2 {
			idx := begin + i*stride
			t.process(idx, interpLinear(d[idx-stride], d[idx+stride]))
		}
		if n%2 == 0 {
			idx := begin + (n-1)*stride
			if n < 4 {
				t.process(idx, d[idx-stride])
			} else {
				t.process(idx, interpLinear1(d[idx-stride3x], d[idx-stride]))
			}
		}
		return n / 2
	}

	i := 3
	for ; i+3 < n; i += 2 {
		idx := begin + i*stride
		if stride != 1 {
			t.process(idx, interpCubic(d[idx-stride3x], d[idx-stride], d[idx+stride], d[idx+stride3x]))
		} else {
			t.process(idx, interpCubicP(d[idx-stride3x], d[idx-stride], d[idx+stride], d[idx+stride3x], &t.c.cubic))
		}
	}
	idx := begin + stride
	t.process(idx, interpQuad1(d[idx-stride], d[idx+stride], d[idx+stride3x]))

	idx = begin + i*stride
	t.process(idx, interpQuad2(d[idx-stride3x], d[idx-stride], d[idx+stride]))

	if n%2 == 0 {
		idx = begin + (n-1)*stride
		t.process(idx, interpQuad3(d[idx-stride5x], d[idx-stride3x], d[idx-stride]))
	}
	return n / 2
}
