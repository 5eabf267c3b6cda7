// Command-line interface to the szinterp error-bounded interpolation compressor.
// Compresses raw little-endian float grids to files or blob archives,
// decompresses them, and benchmarks round trips.

package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"runtime"
	"runtime/pprof"
	"strings"
	"syscall"

	"github.com/dustin/go-humanize"
	"golang.org/x/exp/constraints"

	"github.com/janelia-flyem/szinterp/bench"
	"github.com/janelia-flyem/szinterp/config"
	"github.com/janelia-flyem/szinterp/storage"
	"github.com/janelia-flyem/szinterp/sz"
)

// Version of the szinterp tool.
const Version = "0.9.0"

var (
	// Display usage if true.
	showHelp = flag.Bool("help", false, "")

	// Run in verbose mode if true.
	runVerbose = flag.Bool("verbose", false, "")

	// TOML configuration file.  Defaults are used if unset.
	configFile = flag.String("config", "", "")

	// Profile CPU usage using standard gotest system.
	cpuprofile = flag.String("cpuprofile", "", "")

	// Profile memory usage using standard gotest system.
	memprofile = flag.String("memprofile", "", "")
)

const helpMessage = `
szinterp is an error-bounded lossy compressor for floating-point grids

Usage: szinterp [options] <command>

      -config     =string   TOML configuration file.
      -cpuprofile =string   Write CPU profile to this file.
      -memprofile =string   Write memory profile to this file on ctrl-C.
      -verbose    (flag)    Run in verbose mode.
  -h, -help       (flag)    Show help message

Commands:

	about
	help

	compress in=<raw file> dims=<AxBxC> [type=float32|float64] [eb=<bound>]
	         [out=<compressed file>] [store=<bucket ref> key=<name>]

	decompress store=<bucket ref> key=<name> out=<raw file>
	decompress in=<compressed file> dims=<AxBxC> [type=float32|float64] out=<raw file>

	bench dims=<AxBxC> [type=...] [eb=<bound>] [parallel=<n>] <raw file> ...

Raw files hold little-endian values in row-major order, last axis fastest.
Bucket refs are file:///<dir>, mem://, gs://<bucket>, s3://<bucket>[/<prefix>]
or vast://<endpoint>/<bucket>.  The error bound mode and the remaining
compression settings come from the [compression] section of the configuration.
`

var usage = func() {
	fmt.Print(helpMessage)
}

func main() {
	flag.BoolVar(showHelp, "h", false, "Show help message")
	flag.Usage = usage
	flag.Parse()

	if flag.NArg() >= 1 && strings.ToLower(flag.Args()[0]) == "help" {
		*showHelp = true
	}

	if *runVerbose {
		sz.SetLogMode(sz.DebugMode)
	}
	if *showHelp || flag.NArg() == 0 {
		flag.Usage()
		os.Exit(0)
	}

	if *cpuprofile != "" {
		f, err := os.Create(*cpuprofile)
		if err != nil {
			log.Fatal(err)
		}
		pprof.StartCPUProfile(f)
		defer pprof.StopCPUProfile()
	}

	conf := config.Default()
	if *configFile != "" {
		var err error
		if conf, err = config.Load(*configFile); err != nil {
			fmt.Fprintln(os.Stderr, err.Error())
			os.Exit(1)
		}
	}
	conf.Logging.SetLogger()
	defer sz.Shutdown()

	// Capture ctrl+c and other interrupts.  Then handle graceful shutdown.
	ctx, cancel := context.WithCancel(context.Background())
	stopSig := make(chan os.Signal, 1)
	go func() {
		for sig := range stopSig {
			log.Printf("Stop signal captured: %q.  Shutting down...\n", sig)
			if *memprofile != "" {
				log.Printf("Storing memory profiling to %s...\n", *memprofile)
				f, err := os.Create(*memprofile)
				if err != nil {
					log.Fatal(err)
				}
				pprof.WriteHeapProfile(f)
				f.Close()
			}
			cancel()
		}
	}()
	signal.Notify(stopSig, os.Interrupt, syscall.SIGTERM)

	command := sz.Command(flag.Args())
	if err := DoCommand(ctx, conf, command); err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		pprof.StopCPUProfile()
		sz.Shutdown()
		os.Exit(1)
	}
}

// DoCommand serves as a switchboard for commands.
func DoCommand(ctx context.Context, conf *config.Config, cmd sz.Command) error {
	if len(cmd) == 0 {
		return fmt.Errorf("Blank command!")
	}
	if err := applySettings(&conf.Compression, cmd); err != nil {
		return err
	}

	switch cmd.Name() {
	case "about":
		fmt.Printf("szinterp %s, archive format %s, %s %s/%s\n",
			Version, storage.FormatVersion, runtime.Version(), runtime.GOOS, runtime.GOARCH)
		return nil
	case "compress":
		return DoCompress(ctx, conf, cmd)
	case "decompress":
		return DoDecompress(ctx, conf, cmd)
	case "bench":
		return DoBench(ctx, conf, cmd)
	default:
		return fmt.Errorf("unknown command %q, try \"szinterp help\"", cmd.Name())
	}
}

// applySettings overrides configured compression settings with command-line ones.
func applySettings(c *config.Compression, cmd sz.Command) error {
	if t, found := cmd.Parameter(sz.KeyDataType); found {
		c.DataType = t
	}
	eb, found, err := cmd.FloatParameter(sz.KeyErrorBound)
	if err != nil {
		return err
	}
	if found {
		c.ErrorBound = eb
	}
	return c.Validate()
}

func requireDims(cmd sz.Command) (sz.Dims, error) {
	s, found := cmd.Parameter(sz.KeyDims)
	if !found {
		return nil, fmt.Errorf("%s command requires %s=<AxBxC> setting", cmd.Name(), sz.KeyDims)
	}
	dims, err := sz.StringToDims(s, "x")
	if err != nil {
		return nil, err
	}
	if dims.NumDims() > sz.MaxDims {
		return nil, fmt.Errorf("%d dimensions in %q, at most %d supported", dims.NumDims(), s, sz.MaxDims)
	}
	return dims, nil
}

func requireParameter(cmd sz.Command, key string) (string, error) {
	v, found := cmd.Parameter(key)
	if !found || v == "" {
		return "", fmt.Errorf("%s command requires %s=<value> setting", cmd.Name(), key)
	}
	return v, nil
}

// DoCompress performs the "compress" command.
func DoCompress(ctx context.Context, conf *config.Config, cmd sz.Command) error {
	input, err := requireParameter(cmd, sz.KeyInput)
	if err != nil {
		return err
	}
	dims, err := requireDims(cmd)
	if err != nil {
		return err
	}
	output, _ := cmd.Parameter(sz.KeyOutput)
	ref, _ := cmd.Parameter(sz.KeyStore)
	if ref == "" {
		ref = conf.Store.URL
	}
	key, _ := cmd.Parameter(sz.KeyName)
	if output == "" && (ref == "" || key == "") {
		return fmt.Errorf("compress command needs %s=<file> or %s=<ref> with %s=<name>", sz.KeyOutput, sz.KeyStore, sz.KeyName)
	}
	raw, err := os.ReadFile(input)
	if err != nil {
		return err
	}
	t, err := conf.Compression.Type()
	if err != nil {
		return err
	}
	var compressed []byte
	var eb float64
	switch t {
	case sz.T_float64:
		compressed, eb, err = compressRaw[float64](&conf.Compression, dims, raw)
	default:
		compressed, eb, err = compressRaw[float32](&conf.Compression, dims, raw)
	}
	if err != nil {
		return fmt.Errorf("compressing %s: %v", input, err)
	}
	fmt.Printf("Compressed %s %s grid from %s to %s (ratio %.2f)\n", dims, t,
		humanize.Bytes(uint64(len(raw))), humanize.Bytes(uint64(len(compressed))),
		float64(len(raw))/float64(len(compressed)))

	if output != "" {
		if err := os.WriteFile(output, compressed, 0644); err != nil {
			return err
		}
		fmt.Printf("Wrote %s\n", output)
	}
	if ref != "" && key != "" {
		archive, err := storage.Open(ctx, ref)
		if err != nil {
			return err
		}
		defer archive.Close()
		c := conf.Compression
		m := storage.Metadata{
			Dims:         dims,
			DataType:     t,
			ErrorBound:   eb,
			BlockSize:    c.BlockSize,
			Interpolator: c.Interpolator,
			Direction:    c.Direction,
			Encoder:      c.Encoder,
			Lossless:     c.Lossless,
			Checksum:     c.Checksum,
		}
		if err := archive.Put(ctx, key, compressed, m); err != nil {
			return err
		}
		fmt.Printf("Stored %q in %s\n", key, ref)
	}
	return nil
}

func compressRaw[T constraints.Float](c *config.Compression, dims sz.Dims, raw []byte) ([]byte, float64, error) {
	data, err := sz.BytesToFloats[T](raw)
	if err != nil {
		return nil, 0, err
	}
	if len(data) != dims.NumElements() {
		return nil, 0, fmt.Errorf("%d values for %s grid", len(data), dims)
	}
	eb := config.AbsErrorBound(c, data)
	comp, err := config.NewCompressor[T](c, dims, eb)
	if err != nil {
		return nil, 0, err
	}
	compressed, err := comp.Compress(data)
	return compressed, eb, err
}

// DoDecompress performs the "decompress" command.
func DoDecompress(ctx context.Context, conf *config.Config, cmd sz.Command) error {
	output, err := requireParameter(cmd, sz.KeyOutput)
	if err != nil {
		return err
	}
	c := conf.Compression
	var dims sz.Dims
	var compressed []byte
	if input, found := cmd.Parameter(sz.KeyInput); found {
		if dims, err = requireDims(cmd); err != nil {
			return err
		}
		if compressed, err = os.ReadFile(input); err != nil {
			return err
		}
	} else {
		ref, _ := cmd.Parameter(sz.KeyStore)
		if ref == "" {
			ref = conf.Store.URL
		}
		if ref == "" {
			return fmt.Errorf("decompress command needs %s=<file> or %s=<ref>", sz.KeyInput, sz.KeyStore)
		}
		key, err := requireParameter(cmd, sz.KeyName)
		if err != nil {
			return err
		}
		archive, err := storage.Open(ctx, ref)
		if err != nil {
			return err
		}
		defer archive.Close()
		var m storage.Metadata
		if compressed, m, err = archive.Get(ctx, key); err != nil {
			return err
		}
		dims = m.Dims
		c.DataType = m.DataType.String()
		c.BlockSize = m.BlockSize
		c.Interpolator = m.Interpolator
		c.Direction = m.Direction
		c.Encoder = m.Encoder
		c.Lossless = m.Lossless
		c.Checksum = m.Checksum
		c.ErrorBound, c.ErrorMode = m.ErrorBound, config.AbsoluteMode
		if err := c.Validate(); err != nil {
			return fmt.Errorf("archive %q has unusable metadata: %v", key, err)
		}
	}

	t, err := c.Type()
	if err != nil {
		return err
	}
	var raw []byte
	switch t {
	case sz.T_float64:
		raw, err = decompressRaw[float64](&c, dims, compressed)
	default:
		raw, err = decompressRaw[float32](&c, dims, compressed)
	}
	if err != nil {
		return err
	}
	if err := os.WriteFile(output, raw, 0644); err != nil {
		return err
	}
	fmt.Printf("Decompressed %s %s grid to %s (%s)\n", dims, t, output, humanize.Bytes(uint64(len(raw))))
	return nil
}

func decompressRaw[T constraints.Float](c *config.Compression, dims sz.Dims, compressed []byte) ([]byte, error) {
	comp, err := config.NewCompressor[T](c, dims, c.ErrorBound)
	if err != nil {
		return nil, err
	}
	data, err := comp.Decompress(compressed)
	if err != nil {
		return nil, err
	}
	return sz.FloatsToBytes(data), nil
}

// DoBench performs the "bench" command on every raw file argument.
func DoBench(ctx context.Context, conf *config.Config, cmd sz.Command) error {
	dims, err := requireDims(cmd)
	if err != nil {
		return err
	}
	files := cmd.Arguments()
	if len(files) == 0 {
		return fmt.Errorf("bench command must be followed by raw files")
	}
	parallel := conf.Bench.Parallel
	n, found, err := cmd.IntParameter(sz.KeyParallel)
	if err != nil {
		return err
	}
	if found {
		parallel = n
	}
	jobs := make([]bench.Job, len(files))
	for i, f := range files {
		jobs[i] = bench.Job{Filename: f, Dims: dims}
	}
	results, err := bench.RunFiles(ctx, &conf.Compression, jobs, parallel, "")
	if err != nil {
		return err
	}
	for _, r := range results {
		fmt.Println(r)
	}
	return nil
}
