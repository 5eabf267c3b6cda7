package interp

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"path/filepath"
	"testing"

	"github.com/janelia-flyem/szinterp/encoder"
	"github.com/janelia-flyem/szinterp/lossless"
	"github.com/janelia-flyem/szinterp/quantizer"
	"github.com/janelia-flyem/szinterp/sz"

	"golang.org/x/exp/constraints"
)

func newTestCompressor[T constraints.Float](t *testing.T, eb float64, opts Options) *Compressor[T] {
	t.Helper()
	if opts.CubicParams == nil && opts.CubicParamsFile == "" {
		p := DefaultCubicParams
		opts.CubicParams = &p
	}
	codec, err := lossless.New("zstd", "crc32")
	if err != nil {
		t.Fatal(err)
	}
	c, err := New[T](quantizer.NewLinear[T](eb, quantizer.DefaultRadius), encoder.NewHuffman(), codec, opts)
	if err != nil {
		t.Fatalf("couldn't create compressor for %v: %v", opts.Dims, err)
	}
	return c
}

// smoothField returns a sum of sinusoids along each axis plus a little noise.
func smoothField[T constraints.Float](dims []int, seed int64) []T {
	offsets := sz.Dims(dims).Offsets()
	rng := rand.New(rand.NewSource(seed))
	data := make([]T, sz.Dims(dims).NumElements())
	for i := range data {
		var v float64
		rem := i
		for axis, off := range offsets {
			x := rem / off
			rem %= off
			v += math.Sin(float64(x)*0.3 + float64(axis))
		}
		data[i] = T(10*v + rng.NormFloat64()*0.05)
	}
	return data
}

func checkBound[T constraints.Float](t *testing.T, orig, dec []T, eb float64) {
	t.Helper()
	if len(orig) != len(dec) {
		t.Fatalf("expected %d decompressed values, got %d", len(orig), len(dec))
	}
	for i := range orig {
		if diff := math.Abs(float64(orig[i]) - float64(dec[i])); diff > eb {
			t.Fatalf("element %d: original %g, decompressed %g, error %g > bound %g", i, orig[i], dec[i], diff, eb)
		}
	}
}

func roundTrip[T constraints.Float](t *testing.T, dims []int, eb float64, opts Options) {
	t.Helper()
	opts.Dims = dims
	orig := smoothField[T](dims, 7)
	data := make([]T, len(orig))
	copy(data, orig)

	c := newTestCompressor[T](t, eb, opts)
	b, err := c.Compress(data)
	if err != nil {
		t.Fatalf("compress %v: %v", dims, err)
	}
	n := sz.Dims(dims).NumElements()
	if c.NumCodes() != n {
		t.Errorf("expected %d codes for %v, got %d", n, dims, c.NumCodes())
	}
	if c.NumPredicted() != n-1 {
		t.Errorf("expected %d predicted points for %v, got %d", n-1, dims, c.NumPredicted())
	}
	checkBound(t, orig, data, eb)

	d := newTestCompressor[T](t, eb, opts)
	dec, err := d.Decompress(b)
	if err != nil {
		t.Fatalf("decompress %v: %v", dims, err)
	}
	checkBound(t, orig, dec, eb)
	for i := range dec {
		if dec[i] != data[i] {
			t.Fatalf("element %d: decompressed %g differs from compressor's reconstruction %g", i, dec[i], data[i])
		}
	}
}

var testShapes = [][]int{
	{1},
	{2},
	{100},
	{257},
	{4, 4},
	{33, 17},
	{1, 50},
	{9, 10, 11},
	{16, 1, 16},
	{5, 6, 7, 4},
	{3, 9, 2, 5},
}

func TestRoundTrip(t *testing.T) {
	for _, dims := range testShapes {
		for _, interp := range []Interpolator{Linear, Cubic} {
			for _, blockSize := range []int{2, 8, 32} {
				directions := sz.Factorial(len(dims))
				for direction := 0; direction < directions; direction += 1 + directions/3 {
					opts := Options{BlockSize: blockSize, Interpolator: interp, Direction: direction}
					t.Run(fmt.Sprintf("%s/%s/bs%d/dir%d", sz.Dims(dims), interp, blockSize, direction), func(t *testing.T) {
						roundTrip[float32](t, dims, 1e-2, opts)
						roundTrip[float64](t, dims, 1e-4, opts)
					})
				}
			}
		}
	}
}

func TestUnpredictableValues(t *testing.T) {
	dims := []int{20, 30}
	rng := rand.New(rand.NewSource(3))
	orig := make([]float64, 600)
	for i := range orig {
		orig[i] = rng.Float64() * 1e6
	}
	data := make([]float64, len(orig))
	copy(data, orig)

	codec := lossless.Codec{Compression: lossless.Snappy, Checksum: lossless.CRC32}
	opts := Options{Dims: dims, BlockSize: 4, Interpolator: Cubic, CubicParams: &DefaultCubicParams}
	q := quantizer.NewLinear[float64](1e-3, 16)
	c, err := New[float64](q, encoder.NewBypass(), codec, opts)
	if err != nil {
		t.Fatal(err)
	}
	b, err := c.Compress(data)
	if err != nil {
		t.Fatal(err)
	}
	if q.NumUnpredictable() != 0 {
		t.Errorf("expected unpredictable values to be released after compression")
	}
	d, err := New[float64](quantizer.NewLinear[float64](1e-3, 16), encoder.NewBypass(), codec, opts)
	if err != nil {
		t.Fatal(err)
	}
	dec, err := d.Decompress(b)
	if err != nil {
		t.Fatal(err)
	}
	checkBound(t, orig, dec, 1e-3)
}

func TestSinglePoint(t *testing.T) {
	c := newTestCompressor[float64](t, 0.1, Options{Dims: []int{1}, BlockSize: 2, Interpolator: Cubic})
	data := []float64{3.14159}
	b, err := c.Compress(data)
	if err != nil {
		t.Fatal(err)
	}
	if c.NumPredicted() != 0 || c.NumCodes() != 1 {
		t.Errorf("expected only the seed code, got %d codes and %d predicted", c.NumCodes(), c.NumPredicted())
	}
	dec, err := c.Decompress(b)
	if err != nil {
		t.Fatal(err)
	}
	if len(dec) != 1 || dec[0] != data[0] {
		t.Errorf("expected seed value %g back, got %v", data[0], dec)
	}
	if math.Abs(dec[0]-3.14159) > 0.1 {
		t.Errorf("seed value %g outside error bound", dec[0])
	}
}

func TestSmallGrid(t *testing.T) {
	opts := Options{Dims: []int{4, 4}, BlockSize: 2, Interpolator: Linear}
	orig := make([]float32, 16)
	for i := range orig {
		orig[i] = float32(i%4) + 0.37*float32(i/4*i/4)
	}
	data := make([]float32, 16)
	copy(data, orig)

	c := newTestCompressor[float32](t, 0.1, opts)
	var visited []int
	c.trace = func(idx int) { visited = append(visited, idx) }
	b, err := c.Compress(data)
	if err != nil {
		t.Fatal(err)
	}
	if c.NumPredicted() != 15 {
		t.Errorf("expected 15 predicted points, got %d", c.NumPredicted())
	}
	expected := []int{0, 8, 2, 10, 4, 6, 1, 5, 9, 3, 7, 11, 12, 14, 13, 15}
	if fmt.Sprint(visited) != fmt.Sprint(expected) {
		t.Errorf("expected traversal %v, got %v", expected, visited)
	}
	dec, err := newTestCompressor[float32](t, 0.1, opts).Decompress(b)
	if err != nil {
		t.Fatal(err)
	}
	checkBound(t, orig, dec, 0.1)
}

func TestTraversalOrder(t *testing.T) {
	for _, dims := range testShapes {
		n := sz.Dims(dims).NumElements()
		for direction := 0; direction < sz.Factorial(len(dims)); direction++ {
			for _, blockSize := range []int{2, 4, 16} {
				opts := Options{Dims: dims, BlockSize: blockSize, Interpolator: Cubic, Direction: direction}
				c := newTestCompressor[float64](t, 1e-3, opts)
				var compressOrder, decompressOrder []int
				c.trace = func(idx int) { compressOrder = append(compressOrder, idx) }
				b, err := c.Compress(smoothField[float64](dims, 1))
				if err != nil {
					t.Fatal(err)
				}
				c.trace = func(idx int) { decompressOrder = append(decompressOrder, idx) }
				if _, err := c.Decompress(b); err != nil {
					t.Fatal(err)
				}
				if len(compressOrder) != n {
					t.Fatalf("%v dir %d bs %d: expected %d visits, got %d", dims, direction, blockSize, n, len(compressOrder))
				}
				seen := make([]bool, n)
				for i, idx := range compressOrder {
					if seen[idx] {
						t.Fatalf("%v dir %d bs %d: element %d visited twice", dims, direction, blockSize, idx)
					}
					seen[idx] = true
					if decompressOrder[i] != idx {
						t.Fatalf("%v dir %d bs %d: visit %d is %d when compressing, %d when decompressing",
							dims, direction, blockSize, i, idx, decompressOrder[i])
					}
				}
			}
		}
	}
}

func TestDeterminism(t *testing.T) {
	opts := Options{Dims: []int{17, 23, 9}, BlockSize: 8, Interpolator: Cubic, Direction: 4}
	orig := smoothField[float32](opts.Dims, 11)
	var outputs [][]byte
	for i := 0; i < 2; i++ {
		data := make([]float32, len(orig))
		copy(data, orig)
		b, err := newTestCompressor[float32](t, 1e-3, opts).Compress(data)
		if err != nil {
			t.Fatal(err)
		}
		outputs = append(outputs, b)
	}
	if !bytes.Equal(outputs[0], outputs[1]) {
		t.Errorf("compressing the same input twice gave different output")
	}
}

func TestHeader(t *testing.T) {
	opts := Options{Dims: []int{12, 7, 5}, BlockSize: 6, Interpolator: Linear}
	c := newTestCompressor[float32](t, 0.25, opts)
	b, err := c.Compress(smoothField[float32](opts.Dims, 5))
	if err != nil {
		t.Fatal(err)
	}
	h, err := c.Header(b)
	if err != nil {
		t.Fatal(err)
	}
	if !h.Dims.Equals(sz.Dims{12, 7, 5}) {
		t.Errorf("expected header dims 12x7x5, got %s", h.Dims)
	}
	if h.BlockSize != 6 {
		t.Errorf("expected header block size 6, got %d", h.BlockSize)
	}
	if h.ErrorBound != 0.25 {
		t.Errorf("expected header error bound 0.25, got %g", h.ErrorBound)
	}
}

func TestDecompressUsesStoredBlockSize(t *testing.T) {
	dims := []int{40, 40}
	orig := smoothField[float64](dims, 9)
	data := make([]float64, len(orig))
	copy(data, orig)
	b, err := newTestCompressor[float64](t, 1e-3, Options{Dims: dims, BlockSize: 4, Interpolator: Cubic}).Compress(data)
	if err != nil {
		t.Fatal(err)
	}
	dec, err := newTestCompressor[float64](t, 1e-3, Options{Dims: dims, BlockSize: 16, Interpolator: Cubic}).Decompress(b)
	if err != nil {
		t.Fatal(err)
	}
	checkBound(t, orig, dec, 1e-3)
}

func TestMissingCubicParams(t *testing.T) {
	dir := t.TempDir()
	opts := Options{
		Dims:            []int{30, 31},
		BlockSize:       8,
		Interpolator:    Cubic,
		CubicParamsFile: filepath.Join(dir, "missing.dat"),
	}
	c := newTestCompressor[float64](t, 1e-3, opts)
	if c.CubicParams() != DefaultCubicParams {
		t.Errorf("expected default cubic params, got %s", c.CubicParams())
	}
	roundTrip[float64](t, opts.Dims, 1e-3, opts)

	// two float64 values
	bad := filepath.Join(dir, "bad.dat")
	if err := WriteCubicParams[float32](bad, CubicParams{1, 2, 3, 4}); err != nil {
		t.Fatal(err)
	}
	opts.CubicParamsFile = bad
	if p := newTestCompressor[float64](t, 1e-3, opts).CubicParams(); p != DefaultCubicParams {
		t.Errorf("expected default cubic params for a 2-value file, got %s", p)
	}
}

func TestCubicParamsFile(t *testing.T) {
	filename := filepath.Join(t.TempDir(), DefaultCubicParamsFile)
	tuned := CubicParams{-0.0625, 0.5, 0.625, -0.0625}
	if err := WriteCubicParams[float32](filename, tuned); err != nil {
		t.Fatal(err)
	}
	opts := Options{Dims: []int{64}, BlockSize: 32, Interpolator: Cubic, CubicParamsFile: filename}
	c := newTestCompressor[float32](t, 1e-3, opts)
	if c.CubicParams() != tuned {
		t.Errorf("expected cubic params %s, got %s", tuned, c.CubicParams())
	}
	roundTrip[float32](t, opts.Dims, 1e-3, opts)
}

func TestInvalidOptions(t *testing.T) {
	tests := []Options{
		{Dims: nil, BlockSize: 2},
		{Dims: []int{2, 2, 2, 2, 2}, BlockSize: 2},
		{Dims: []int{10, 0}, BlockSize: 2},
		{Dims: []int{10}, BlockSize: 3},
		{Dims: []int{10}, BlockSize: 0},
		{Dims: []int{10, 10}, BlockSize: 4, Direction: 2},
		{Dims: []int{10, 10, 10}, BlockSize: 4, Direction: -1},
		{Dims: []int{10}, BlockSize: 4, Interpolator: Interpolator(7)},
	}
	for _, opts := range tests {
		opts.CubicParams = &DefaultCubicParams
		_, err := New[float32](quantizer.NewLinear[float32](1, 0), encoder.NewBypass(), lossless.Codec{}, opts)
		if !errors.Is(err, ErrInvalidConfig) {
			t.Errorf("expected invalid config error for %+v, got %v", opts, err)
		}
	}
}

func TestCompressShapeMismatch(t *testing.T) {
	c := newTestCompressor[float64](t, 1e-3, Options{Dims: []int{4, 5}, BlockSize: 2})
	if _, err := c.Compress(make([]float64, 21)); !errors.Is(err, ErrShapeMismatch) {
		t.Errorf("expected shape mismatch for 21 values, got %v", err)
	}

	b, err := c.Compress(make([]float64, 20))
	if err != nil {
		t.Fatal(err)
	}
	d := newTestCompressor[float64](t, 1e-3, Options{Dims: []int{5, 4}, BlockSize: 2})
	if _, err := d.Decompress(b); !errors.Is(err, ErrShapeMismatch) {
		t.Errorf("expected shape mismatch decompressing 4x5 stream as 5x4, got %v", err)
	}
}

func TestCorruptedStream(t *testing.T) {
	dims := []int{20, 20}
	opts := Options{Dims: dims, BlockSize: 4, Interpolator: Linear, CubicParams: &DefaultCubicParams}
	newCompressor := func() *Compressor[float64] {
		c, err := New[float64](quantizer.NewLinear[float64](1e-3, 0), encoder.NewHuffman(), lossless.Codec{}, opts)
		if err != nil {
			t.Fatal(err)
		}
		return c
	}
	b, err := newCompressor().Compress(smoothField[float64](dims, 2))
	if err != nil {
		t.Fatal(err)
	}
	for _, cut := range []int{3, 12, 30, len(b) / 2, len(b) - 1} {
		if _, err := newCompressor().Decompress(b[:cut]); err == nil {
			t.Errorf("expected error decompressing stream truncated to %d of %d bytes", cut, len(b))
		}
	}

	// a code count short of the element count must fail
	var buf bytes.Buffer
	q := quantizer.NewLinear[float64](1e-3, 0)
	if err := writeHeader[float64](&buf, Header{1e-3, sz.Dims(dims), 4}); err != nil {
		t.Fatal(err)
	}
	if err := q.Save(&buf); err != nil {
		t.Fatal(err)
	}
	e := encoder.NewBypass()
	codes := make([]int, 399)
	for i := range codes {
		codes[i] = q.Radius()
	}
	if err := e.Encode(codes, &buf); err != nil {
		t.Fatal(err)
	}
	s, err := lossless.SerializeData(buf.Bytes(), lossless.Uncompressed, lossless.NoChecksum)
	if err != nil {
		t.Fatal(err)
	}
	c, err := New[float64](quantizer.NewLinear[float64](1e-3, 0), encoder.NewBypass(), lossless.Codec{}, opts)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := c.Decompress(s); err == nil {
		t.Errorf("expected error decompressing 399 codes for 400 elements")
	}
}

func TestCorruptedBitCount(t *testing.T) {
	dims := []int{8, 8}
	opts := Options{Dims: dims, BlockSize: 4, Interpolator: Linear, CubicParams: &DefaultCubicParams}
	for _, nbits := range []uint64{^uint64(0), 1 << 40} {
		var buf bytes.Buffer
		q := quantizer.NewLinear[float64](1e-3, 0)
		if err := writeHeader[float64](&buf, Header{1e-3, sz.Dims(dims), 4}); err != nil {
			t.Fatal(err)
		}
		if err := q.Save(&buf); err != nil {
			t.Fatal(err)
		}
		codes := make([]int, 64)
		for i := range codes {
			codes[i] = q.Radius() + i%3
		}
		h := encoder.NewHuffman()
		if err := h.PreprocessEncode(codes, 0); err != nil {
			t.Fatal(err)
		}
		if err := h.Save(&buf); err != nil {
			t.Fatal(err)
		}
		binary.Write(&buf, binary.LittleEndian, nbits)
		buf.Write([]byte{0x5a, 0xa5})
		s, err := lossless.SerializeData(buf.Bytes(), lossless.Uncompressed, lossless.NoChecksum)
		if err != nil {
			t.Fatal(err)
		}

		c, err := New[float64](quantizer.NewLinear[float64](1e-3, 0), encoder.NewHuffman(), lossless.Codec{}, opts)
		if err != nil {
			t.Fatal(err)
		}
		data, err := c.Decompress(s)
		if !errors.Is(err, encoder.ErrCorrupted) {
			t.Errorf("expected ErrCorrupted for stored bit count %d, got %v", nbits, err)
		}
		if data != nil {
			t.Errorf("expected no data returned for corrupted stream")
		}
	}
}
