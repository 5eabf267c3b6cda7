package interp

import (
	"fmt"
	"io"
	"testing"

	"github.com/janelia-flyem/szinterp/encoder"
	"github.com/janelia-flyem/szinterp/lossless"
)

// recordingQuantizer leaves values untouched and remembers every prediction by the
// index the traversal reported for it.
type recordingQuantizer struct {
	eb    float64
	last  int
	preds map[int]float64

	// error bound in effect for each quantized index, and every SetEB call
	ebAt  map[int]float64
	setEB []float64
}

func (q *recordingQuantizer) QuantizeAndOverwrite(v *float64, pred float64) int {
	q.preds[q.last] = pred
	if q.ebAt != nil {
		q.ebAt[q.last] = q.eb
	}
	return 1
}

func (q *recordingQuantizer) SetEB(eb float64) {
	q.eb = eb
	q.setEB = append(q.setEB, eb)
}

func (q *recordingQuantizer) Recover(pred float64, code int) (float64, error) { return pred, nil }
func (q *recordingQuantizer) EB() float64                                     { return q.eb }
func (q *recordingQuantizer) Radius() int                                     { return 1 }
func (q *recordingQuantizer) Save(w io.Writer) error                          { return nil }
func (q *recordingQuantizer) Load(r io.Reader) error                          { return nil }
func (q *recordingQuantizer) PostCompress()                                   {}
func (q *recordingQuantizer) PostDecompress()                                 {}

func newKernelTraversal(t *testing.T, data []float64, interp Interpolator, params CubicParams) (*traversal[float64], *recordingQuantizer) {
	t.Helper()
	q := &recordingQuantizer{eb: 1, preds: make(map[int]float64)}
	opts := Options{Dims: []int{len(data)}, BlockSize: 2, Interpolator: interp, CubicParams: &params}
	c, err := New[float64](q, encoder.NewBypass(), lossless.Codec{}, opts)
	if err != nil {
		t.Fatal(err)
	}
	c.trace = func(idx int) { q.last = idx }
	return &traversal[float64]{c: c, data: data, pb: predictOverwrite}, q
}

func TestKernelCounts(t *testing.T) {
	for _, interp := range []Interpolator{Linear, Cubic} {
		for n := 1; n <= 16; n++ {
			for _, stride := range []int{1, 2, 3} {
				data := make([]float64, (n-1)*stride+1)
				tr, _ := newKernelTraversal(t, data, interp, DefaultCubicParams)
				got := tr.interpolate1D(0, (n-1)*stride, stride)
				expected := n / 2
				if got != expected {
					t.Errorf("%s n=%d stride %d: expected %d points, got %d", interp, n, stride, expected, got)
				}
				if len(tr.codes) != expected {
					t.Errorf("%s n=%d stride %d: expected %d codes, got %d", interp, n, stride, expected, len(tr.codes))
				}
			}
		}
	}
}

func TestKernelVisitOrder(t *testing.T) {
	tests := []struct {
		interp   Interpolator
		n        int
		expected []int
	}{
		{Linear, 2, []int{1}},
		{Linear, 6, []int{1, 3, 5}},
		{Linear, 8, []int{1, 3, 5, 7}},
		{Cubic, 4, []int{1, 3}},
		{Cubic, 5, []int{1, 3}},
		{Cubic, 8, []int{3, 1, 5, 7}},
		{Cubic, 9, []int{3, 5, 1, 7}},
		{Cubic, 12, []int{3, 5, 7, 1, 9, 11}},
	}
	for _, tc := range tests {
		data := make([]float64, tc.n)
		tr, _ := newKernelTraversal(t, data, tc.interp, DefaultCubicParams)
		var visited []int
		trace := tr.c.trace
		tr.c.trace = func(idx int) {
			visited = append(visited, idx)
			trace(idx)
		}
		tr.interpolate1D(0, tc.n-1, 1)
		if fmt.Sprint(visited) != fmt.Sprint(tc.expected) {
			t.Errorf("%s n=%d: expected visits %v, got %v", tc.interp, tc.n, tc.expected, visited)
		}
	}
}

func TestKernelPredictions(t *testing.T) {
	// quadratic data: cubic and quadratic forms are exact
	square := func(n int) []float64 {
		data := make([]float64, n)
		for i := range data {
			data[i] = float64(i * i)
		}
		return data
	}

	data := square(10)
	tr, q := newKernelTraversal(t, data, Cubic, DefaultCubicParams)
	tr.interpolate1D(0, 9, 1)
	for idx, pred := range q.preds {
		if pred != data[idx] {
			t.Errorf("cubic kernel predicted %g at %d, expected %g", pred, idx, data[idx])
		}
	}

	// custom coefficients only apply at unit stride
	nearest := CubicParams{0, 1, 0, 0}
	data = square(9)
	tr, q = newKernelTraversal(t, data, Cubic, nearest)
	tr.interpolate1D(0, 8, 1)
	if q.preds[3] != data[2] || q.preds[5] != data[4] {
		t.Errorf("expected tuned cubic to copy left neighbor, got %g at 3 and %g at 5", q.preds[3], q.preds[5])
	}
	data = square(17)
	tr, q = newKernelTraversal(t, data, Cubic, nearest)
	tr.interpolate1D(0, 16, 2)
	if q.preds[6] != data[6] {
		t.Errorf("expected standard cubic at stride 2, got %g at 6 instead of %g", q.preds[6], data[6])
	}

	// linear kernel: midpoint average and tails
	data = []float64{0, 10, 4, 20}
	tr, q = newKernelTraversal(t, data, Linear, DefaultCubicParams)
	tr.interpolate1D(0, 3, 1)
	if q.preds[1] != 2 {
		t.Errorf("expected linear prediction 2 at 1, got %g", q.preds[1])
	}
	if q.preds[3] != -0.5*0+1.5*4 {
		t.Errorf("expected extrapolated tail 6 at 3, got %g", q.preds[3])
	}
	data = []float64{7, 1}
	tr, q = newKernelTraversal(t, data, Linear, DefaultCubicParams)
	tr.interpolate1D(0, 1, 1)
	if q.preds[1] != 7 {
		t.Errorf("expected copied tail 7 at 1, got %g", q.preds[1])
	}
}

func TestDegenerateAxis(t *testing.T) {
	data := []float64{5}
	tr, _ := newKernelTraversal(t, data, Cubic, DefaultCubicParams)
	if n := tr.interpolate1D(0, 0, 1); n != 0 {
		t.Errorf("expected 0 points for a single-point run, got %d", n)
	}
	if len(tr.codes) != 0 {
		t.Errorf("expected no codes for a single-point run, got %d", len(tr.codes))
	}

	c := newTestCompressor[float64](t, 1e-3, Options{Dims: []int{1, 1, 9}, BlockSize: 4, Interpolator: Cubic})
	if _, err := c.Compress(smoothField[float64]([]int{1, 1, 9}, 4)); err != nil {
		t.Fatalf("compressing grid with unit axes: %v", err)
	}
	if c.NumPredicted() != 8 {
		t.Errorf("expected 8 predicted points, got %d", c.NumPredicted())
	}
}

func TestConstantField(t *testing.T) {
	dims := []int{9, 13, 6}
	data := make([]float64, 9*13*6)
	for i := range data {
		data[i] = 5
	}
	for _, interp := range []Interpolator{Linear, Cubic} {
		c := newTestCompressor[float64](t, 1e-3, Options{Dims: dims, BlockSize: 4, Interpolator: interp, Direction: 3})
		tr := &traversal[float64]{c: c, data: data, pb: predictOverwrite}
		tr.process(0, 0)
		tr.run(1e-3, c.blockSize)
		radius := c.quantizer.Radius()
		for i, code := range tr.codes[1:] {
			if code != radius {
				t.Fatalf("%s: code %d is %d, expected zero residual code %d", interp, i+1, code, radius)
			}
		}
		if c.quantizer.EB() != 1e-3 {
			t.Errorf("expected error bound restored to 1e-3 after traversal, got %g", c.quantizer.EB())
		}
	}
}
