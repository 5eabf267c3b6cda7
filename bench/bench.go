/*
	Package bench measures compression ratio, speed and accuracy of the
	interpolation compressor on raw grids.  Each round trip writes the compressed
	stream to a scratch file, reads it back and verifies the decompressed grid.
*/
package bench

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/DmitriyVTitov/size"
	"github.com/dustin/go-humanize"
	"github.com/twinj/uuid"
	"golang.org/x/exp/constraints"
	"golang.org/x/sync/errgroup"

	"github.com/janelia-flyem/szinterp/config"
	"github.com/janelia-flyem/szinterp/sz"
)

// Session holds the state of benchmarking one source grid.
type Session struct {
	// Source is the raw file the grid was read from.
	Source string

	// RelativeEB is the configured bound in relative mode, otherwise 0.
	RelativeEB float64

	// CompressionTime of the last round trip.
	CompressionTime time.Duration

	// Dir receives the scratch files.  Defaults to os.TempDir().
	Dir string

	// KeepOutput keeps the decompressed grid as <scratch name>.out.
	KeepOutput bool
}

// Result describes one round trip.
type Result struct {
	Name       string
	Dims       sz.Dims
	DataType   sz.DataType
	ErrorBound float64

	OriginalBytes   int
	CompressedBytes int
	Ratio           float64

	CompressTime   time.Duration
	DecompressTime time.Duration

	// WorkingBytes approximates the memory held by the compressor after compression.
	WorkingBytes int

	// OutputFile is the decompressed grid if the session keeps it.
	OutputFile string

	Stats Stats
}

func (r Result) String() string {
	return fmt.Sprintf("%s (%s %s, eb %g): %s -> %s, ratio %.2f, compress %s, decompress %s, compressor %s; %s",
		r.Name, r.Dims, r.DataType, r.ErrorBound,
		humanize.Bytes(uint64(r.OriginalBytes)), humanize.Bytes(uint64(r.CompressedBytes)), r.Ratio,
		r.CompressTime, r.DecompressTime, humanize.Bytes(uint64(r.WorkingBytes)), r.Stats)
}

// scratchName returns <source base>.<relative eb>.<random>.sz so concurrent
// sessions never share files.
func (s *Session) scratchName() string {
	base := filepath.Base(s.Source)
	if s.Source == "" {
		base = "grid"
	}
	return fmt.Sprintf("%s.%g.%x.sz", base, s.RelativeEB, uuid.NewV4().Bytes()[:4])
}

// Run compresses data, writes the stream to a scratch file, reads it back,
// decompresses it and verifies the result.  data is left unchanged.
func Run[T constraints.Float](s *Session, c *config.Compression, dims []int, data []T) (Result, error) {
	if c.ErrorMode == config.RelativeMode {
		s.RelativeEB = c.ErrorBound
	}
	eb := config.AbsErrorBound(c, data)
	r := Result{
		Name:          s.Source,
		Dims:          sz.Dims(dims),
		DataType:      sz.DataTypeOf[T](),
		ErrorBound:    eb,
		OriginalBytes: len(data) * sz.DataTypeOf[T]().Bytes(),
	}
	comp, err := config.NewCompressor[T](c, dims, eb)
	if err != nil {
		return r, err
	}
	work := make([]T, len(data))
	copy(work, data)

	start := time.Now()
	compressed, err := comp.Compress(work)
	if err != nil {
		return r, fmt.Errorf("compressing %s: %v", s.Source, err)
	}
	r.CompressTime = time.Since(start)
	s.CompressionTime = r.CompressTime
	r.CompressedBytes = len(compressed)
	if len(compressed) > 0 {
		r.Ratio = float64(r.OriginalBytes) / float64(len(compressed))
	}
	r.WorkingBytes = size.Of(comp)

	dir := s.Dir
	if dir == "" {
		dir = os.TempDir()
	}
	scratch := filepath.Join(dir, s.scratchName())
	if err := os.WriteFile(scratch, compressed, 0644); err != nil {
		return r, err
	}
	sz.Debugf("Compressed file = %s\n", scratch)
	stored, err := os.ReadFile(scratch)
	os.Remove(scratch)
	if err != nil {
		return r, err
	}

	decomp, err := config.NewCompressor[T](c, dims, eb)
	if err != nil {
		return r, err
	}
	start = time.Now()
	dec, err := decomp.Decompress(stored)
	if err != nil {
		return r, fmt.Errorf("decompressing %s: %v", s.Source, err)
	}
	r.DecompressTime = time.Since(start)

	if r.Stats, err = Verify(data, dec); err != nil {
		return r, err
	}
	if r.Stats.MaxAbsError > eb {
		return r, fmt.Errorf("%s: max error %g at element %d exceeds bound %g",
			s.Source, r.Stats.MaxAbsError, r.Stats.MaxErrorIndex, eb)
	}
	if s.KeepOutput {
		r.OutputFile = scratch + ".out"
		if err := os.WriteFile(r.OutputFile, sz.FloatsToBytes(dec), 0644); err != nil {
			return r, err
		}
		sz.Debugf("Decompressed file = %s\n", r.OutputFile)
	}
	return r, nil
}

// Job is a raw little-endian grid file to benchmark.
type Job struct {
	Filename string
	Dims     []int
}

// RunFiles benchmarks each job with at most parallel round trips at a time.  Each
// job gets its own Session and compressors.  Results are in job order.
func RunFiles(ctx context.Context, c *config.Compression, jobs []Job, parallel int, dir string) ([]Result, error) {
	t, err := c.Type()
	if err != nil {
		return nil, err
	}
	if parallel < 1 {
		parallel = 1
	}
	results := make([]Result, len(jobs))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(parallel)
	for i, job := range jobs {
		i, job := i, job
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			raw, err := os.ReadFile(job.Filename)
			if err != nil {
				return err
			}
			s := &Session{Source: job.Filename, Dir: dir}
			switch t {
			case sz.T_float64:
				results[i], err = runRaw[float64](s, c, job.Dims, raw)
			default:
				results[i], err = runRaw[float32](s, c, job.Dims, raw)
			}
			if err != nil {
				return err
			}
			sz.Infof("%s\n", results[i])
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

func runRaw[T constraints.Float](s *Session, c *config.Compression, dims []int, raw []byte) (Result, error) {
	data, err := sz.BytesToFloats[T](raw)
	if err != nil {
		return Result{}, fmt.Errorf("%s: %v", s.Source, err)
	}
	if len(data) != sz.Dims(dims).NumElements() {
		return Result{}, fmt.Errorf("%s holds %d values, expected %d for %s grid",
			s.Source, len(data), sz.Dims(dims).NumElements(), sz.Dims(dims))
	}
	return Run(s, c, dims, data)
}
