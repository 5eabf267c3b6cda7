package interp

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/janelia-flyem/szinterp/sz"

	"golang.org/x/exp/constraints"
)

// Quantizer maps a value and its prediction to an integer code and back.
type Quantizer[T constraints.Float] interface {
	// QuantizeAndOverwrite returns the code for *v and replaces *v with the value
	// a decompressor will reconstruct.
	QuantizeAndOverwrite(v *T, pred T) int
	Recover(pred T, code int) (T, error)

	SetEB(eb float64)
	EB() float64
	Radius() int

	Save(w io.Writer) error
	Load(r io.Reader) error
	PostCompress()
	PostDecompress()
}

// Encoder serializes a sequence of quantization codes.
type Encoder interface {
	PreprocessEncode(codes []int, alphabetSize int) error
	Save(w io.Writer) error
	Encode(codes []int, w io.Writer) error
	PostprocessEncode()
	Load(r io.Reader) error
	Decode(r io.Reader, count int) ([]int, error)
	PostprocessDecode()
}

// Lossless is the final byte-stream compression stage.
type Lossless interface {
	Compress(data []byte) ([]byte, error)
	Decompress(data []byte) ([]byte, error)
}

// Options configure a Compressor.
type Options struct {
	// Dims is the grid shape, slowest-varying axis first.  1 to 4 axes.
	Dims []int

	// BlockSize is the block edge in units of the current stride.  Must be even.
	BlockSize int

	Interpolator Interpolator

	// Direction selects one of the N! axis orders, see sz.AxisOrders.
	Direction int

	// CubicParams, if non-nil, are used by the tunable cubic kernel.  Otherwise the
	// coefficients are read from CubicParamsFile, or DefaultCubicParamsFile if empty.
	CubicParams     *CubicParams
	CubicParamsFile string
}

// Header holds the fields stored ahead of the quantizer state in a compressed stream.
type Header struct {
	ErrorBound float64
	Dims       sz.Dims
	BlockSize  int
}

// Compressor is an error-bounded interpolation compressor for grids of T.  A
// Compressor is not safe for concurrent use.
type Compressor[T constraints.Float] struct {
	quantizer Quantizer[T]
	encoder   Encoder
	lossless  Lossless

	dims         sz.Dims
	offsets      []int
	levels       int
	blockSize    int
	interpolator Interpolator
	direction    int
	orders       [][]int
	order        []int
	params       CubicParams
	cubic        cubicCoeffs[T]

	numCodes     int
	numPredicted int

	// called with the linear index of every processed point, in order
	trace func(idx int)
}

// New returns a Compressor for the grid and settings in opts.
func New[T constraints.Float](q Quantizer[T], e Encoder, l Lossless, opts Options) (*Compressor[T], error) {
	if q == nil || e == nil || l == nil {
		return nil, fmt.Errorf("%w: quantizer, encoder and lossless stage are all required", ErrInvalidConfig)
	}
	if len(opts.Dims) < 1 || len(opts.Dims) > sz.MaxDims {
		return nil, fmt.Errorf("%w: %d dimensions, must be 1 to %d", ErrInvalidConfig, len(opts.Dims), sz.MaxDims)
	}
	dims, err := sz.NewDims(opts.Dims)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if opts.BlockSize <= 0 || opts.BlockSize%2 != 0 {
		return nil, fmt.Errorf("%w: block size %d must be a positive even number", ErrInvalidConfig, opts.BlockSize)
	}
	if opts.Interpolator != Linear && opts.Interpolator != Cubic {
		return nil, fmt.Errorf("%w: %s", ErrInvalidConfig, opts.Interpolator)
	}
	orders := sz.AxisOrders(dims.NumDims())
	if opts.Direction < 0 || opts.Direction >= len(orders) {
		return nil, fmt.Errorf("%w: direction %d outside [0, %d)", ErrInvalidConfig, opts.Direction, len(orders))
	}

	var params CubicParams
	if opts.CubicParams != nil {
		params = *opts.CubicParams
	} else {
		params = LoadCubicParams[T](opts.CubicParamsFile)
	}
	c := &Compressor[T]{
		quantizer:    q,
		encoder:      e,
		lossless:     l,
		dims:         dims,
		offsets:      dims.Offsets(),
		levels:       dims.Levels(),
		blockSize:    opts.BlockSize,
		interpolator: opts.Interpolator,
		direction:    opts.Direction,
		orders:       orders,
		order:        orders[opts.Direction],
		params:       params,
		cubic:        toCoeffs[T](params),
	}
	sz.Debugf("Interpolation compressor for %s %s grid: %d levels, block size %d, %s, axis order %v\n",
		dims, sz.DataTypeOf[T](), c.levels, c.blockSize, c.interpolator, c.order)
	return c, nil
}

// Dims returns the grid shape.
func (c *Compressor[T]) Dims() sz.Dims {
	return c.dims
}

// CubicParams returns the coefficients of the tunable cubic kernel in use.
func (c *Compressor[T]) CubicParams() CubicParams {
	return c.params
}

// NumCodes returns the number of codes, seed included, of the last Compress or
// Decompress.
func (c *Compressor[T]) NumCodes() int {
	return c.numCodes
}

// NumPredicted returns the number of points predicted by interpolation in the last
// Compress or Decompress, i.e., every point but the seed.
func (c *Compressor[T]) NumPredicted() int {
	return c.numPredicted
}

// Compress returns the compressed form of data, which must hold the grid in
// row-major order.  data is overwritten with the values a decompressor will
// reconstruct, so the caller must not treat it as the original afterwards.
func (c *Compressor[T]) Compress(data []T) ([]byte, error) {
	if len(data) != c.dims.NumElements() {
		return nil, fmt.Errorf("%w: %d values for %s grid", ErrShapeMismatch, len(data), c.dims)
	}
	eb := c.quantizer.EB()
	sz.Infof("Absolute error bound = %g\n", eb)

	timedLog := sz.NewTimeLog()
	t := &traversal[T]{
		c:     c,
		data:  data,
		pb:    predictOverwrite,
		codes: make([]int, 0, len(data)),
	}
	t.process(0, 0)
	t.run(eb, c.blockSize)

	c.numCodes = len(t.codes)
	c.numPredicted = t.predicted
	if len(t.codes) != len(data) {
		return nil, fmt.Errorf("%w: %d codes for %d elements", ErrCodeCount, len(t.codes), len(data))
	}
	timedLog.Debugf("Prediction & Quantization of %d elements", len(data))

	var buf bytes.Buffer
	buf.Grow(len(data) * sz.DataTypeOf[T]().Bytes() / 2)
	if err := writeHeader[T](&buf, Header{eb, c.dims, c.blockSize}); err != nil {
		return nil, err
	}
	if err := c.quantizer.Save(&buf); err != nil {
		return nil, fmt.Errorf("saving quantizer: %v", err)
	}
	c.quantizer.PostCompress()

	if err := c.encoder.PreprocessEncode(t.codes, 4*c.quantizer.Radius()); err != nil {
		return nil, fmt.Errorf("preparing encoder: %v", err)
	}
	if err := c.encoder.Save(&buf); err != nil {
		return nil, fmt.Errorf("saving encoder: %v", err)
	}
	if err := c.encoder.Encode(t.codes, &buf); err != nil {
		return nil, fmt.Errorf("encoding codes: %v", err)
	}
	c.encoder.PostprocessEncode()

	out, err := c.lossless.Compress(buf.Bytes())
	if err != nil {
		return nil, fmt.Errorf("lossless compression: %v", err)
	}
	sz.Debugf("Compressed %d elements into %d bytes (%d before lossless stage)\n", len(data), len(out), buf.Len())
	return out, nil
}

// Decompress reconstructs a grid compressed with the same settings.  It returns
// either the complete grid or an error.
func (c *Compressor[T]) Decompress(b []byte) ([]T, error) {
	raw, err := c.lossless.Decompress(b)
	if err != nil {
		return nil, fmt.Errorf("lossless decompression: %w", err)
	}
	r := bytes.NewReader(raw)
	h, err := readHeader[T](r, c.dims.NumDims())
	if err != nil {
		return nil, err
	}
	if !h.Dims.Equals(c.dims) {
		return nil, fmt.Errorf("%w: stream holds %s grid, expected %s", ErrShapeMismatch, h.Dims, c.dims)
	}
	if err := c.quantizer.Load(r); err != nil {
		return nil, fmt.Errorf("loading quantizer: %w", err)
	}
	if err := c.encoder.Load(r); err != nil {
		return nil, fmt.Errorf("loading encoder: %w", err)
	}
	n := c.dims.NumElements()
	codes, err := c.encoder.Decode(r, n)
	c.encoder.PostprocessDecode()
	if err != nil {
		return nil, fmt.Errorf("decoding codes: %w", err)
	}
	if len(codes) != n {
		return nil, fmt.Errorf("%w: %d codes for %d elements", ErrCodeCount, len(codes), n)
	}

	timedLog := sz.NewTimeLog()
	t := &traversal[T]{
		c:     c,
		data:  make([]T, n),
		pb:    recoverValues,
		codes: codes,
	}
	eb := c.quantizer.EB()
	t.process(0, 0)
	if t.err == nil {
		t.run(eb, h.BlockSize)
	}
	c.quantizer.PostDecompress()

	c.numCodes = t.cursor
	c.numPredicted = t.predicted
	if t.err != nil {
		return nil, t.err
	}
	if t.cursor != len(codes) {
		return nil, fmt.Errorf("%w: %d of %d codes consumed", ErrCodeCount, t.cursor, len(codes))
	}
	timedLog.Debugf("Interpolation Decompress of %d elements", n)
	return t.data, nil
}

// Header returns the header of a compressed stream.
func (c *Compressor[T]) Header(b []byte) (Header, error) {
	raw, err := c.lossless.Decompress(b)
	if err != nil {
		return Header{}, fmt.Errorf("lossless decompression: %w", err)
	}
	return readHeader[T](bytes.NewReader(raw), c.dims.NumDims())
}

// writeHeader writes [error bound as T][extents as uint64][block size as uint32].
func writeHeader[T constraints.Float](w io.Writer, h Header) error {
	extents := make([]uint64, len(h.Dims))
	for i, n := range h.Dims {
		extents[i] = uint64(n)
	}
	fields := []any{T(h.ErrorBound), extents, uint32(h.BlockSize)}
	for _, f := range fields {
		if err := binary.Write(w, binary.LittleEndian, f); err != nil {
			return fmt.Errorf("writing header: %v", err)
		}
	}
	return nil
}

func readHeader[T constraints.Float](r io.Reader, numDims int) (Header, error) {
	var eb T
	if err := binary.Read(r, binary.LittleEndian, &eb); err != nil {
		return Header{}, fmt.Errorf("%w: reading error bound: %v", ErrCorrupted, err)
	}
	extents := make([]uint64, numDims)
	if err := binary.Read(r, binary.LittleEndian, extents); err != nil {
		return Header{}, fmt.Errorf("%w: reading grid shape: %v", ErrCorrupted, err)
	}
	var blockSize uint32
	if err := binary.Read(r, binary.LittleEndian, &blockSize); err != nil {
		return Header{}, fmt.Errorf("%w: reading block size: %v", ErrCorrupted, err)
	}
	if blockSize == 0 || blockSize%2 != 0 {
		return Header{}, fmt.Errorf("%w: block size %d", ErrCorrupted, blockSize)
	}
	dims := make(sz.Dims, numDims)
	for i, n := range extents {
		if n == 0 || n > 1<<40 {
			return Header{}, fmt.Errorf("%w: extent %d along axis %d", ErrCorrupted, n, i)
		}
		dims[i] = int(n)
	}
	return Header{ErrorBound: float64(eb), Dims: dims, BlockSize: int(blockSize)}, nil
}
