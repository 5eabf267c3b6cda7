/*
	Package config reads the TOML configuration of szinterp and builds compressors
	from it.  A configuration file looks like:

		[compression]
		error_bound = 1e-4
		error_mode = "rel"      # "abs" or "rel" (fraction of the value range)
		block_size = 32
		interpolator = "cubic"  # "linear" or "cubic"
		direction = 0
		radius = 32768
		encoder = "huffman"     # "huffman", "arithmetic" or "bypass"
		lossless = "zstd"       # "none", "snappy", "lz4" or "zstd"
		checksum = "crc32"      # "none" or "crc32"
		cubic_params = "c_params.dat"
		data_type = "float32"

		[store]
		url = "file:///data/sz"

		[bench]
		parallel = 4

		[logging]
		logfile = "/demo/logs/szinterp.log"
		max_log_size = 500 # MB
		max_log_age = 30   # days

	Relative paths are taken relative to the configuration file's directory.
*/
package config

import (
	"fmt"
	"math"
	"path/filepath"

	"github.com/BurntSushi/toml"

	"github.com/janelia-flyem/szinterp/encoder"
	"github.com/janelia-flyem/szinterp/interp"
	"github.com/janelia-flyem/szinterp/lossless"
	"github.com/janelia-flyem/szinterp/quantizer"
	"github.com/janelia-flyem/szinterp/sz"
)

const (
	DefaultErrorBound   = 1e-3
	DefaultBlockSize    = 32
	DefaultInterpolator = "cubic"
	DefaultEncoder      = "huffman"
	DefaultLossless     = "zstd"
	DefaultChecksum     = "crc32"
	DefaultDataType     = "float32"
	DefaultParallel     = 4

	// MaxRadius keeps every code, up to twice the radius, within an int32.
	MaxRadius = math.MaxInt32 / 2
)

// Error bound modes.
const (
	AbsoluteMode = "abs"
	RelativeMode = "rel"
)

// Config is the parsed TOML configuration.
type Config struct {
	Compression Compression
	Store       StoreConfig
	Bench       BenchConfig
	Logging     sz.LogConfig

	location string
}

// Compression holds the settings of one compressor.
type Compression struct {
	ErrorBound   float64 `toml:"error_bound"`
	ErrorMode    string  `toml:"error_mode"`
	BlockSize    int     `toml:"block_size"`
	Interpolator string
	Direction    int
	Radius       int
	Encoder      string
	Lossless     string
	Checksum     string
	CubicParams  string `toml:"cubic_params"`
	DataType     string `toml:"data_type"`
}

// StoreConfig names the blob bucket used for archives, e.g., "file:///data/sz",
// "gs://my-bucket" or "mem://".
type StoreConfig struct {
	URL string
}

type BenchConfig struct {
	Parallel int
}

// Default returns a configuration with every setting at its default.
func Default() *Config {
	return &Config{
		Compression: Compression{
			ErrorBound:   DefaultErrorBound,
			ErrorMode:    AbsoluteMode,
			BlockSize:    DefaultBlockSize,
			Interpolator: DefaultInterpolator,
			Radius:       quantizer.DefaultRadius,
			Encoder:      DefaultEncoder,
			Lossless:     DefaultLossless,
			Checksum:     DefaultChecksum,
			DataType:     DefaultDataType,
		},
		Bench: BenchConfig{Parallel: DefaultParallel},
	}
}

// Load reads a TOML configuration file on top of the defaults.
func Load(filename string) (*Config, error) {
	if filename == "" {
		return nil, fmt.Errorf("no TOML configuration file provided")
	}
	c := Default()
	if _, err := toml.DecodeFile(filename, c); err != nil {
		return nil, fmt.Errorf("could not decode TOML config: %v", err)
	}
	c.location = filename
	if err := c.convertPathsToAbsolute(filename); err != nil {
		return nil, fmt.Errorf("could not convert relative paths to absolute paths in TOML config: %v", err)
	}
	if err := c.Compression.Validate(); err != nil {
		return nil, fmt.Errorf("bad [compression] settings in %s: %v", filename, err)
	}
	sz.Infof("tomlConfig: %+v\n", *c)
	return c, nil
}

// Location returns the file the configuration was loaded from, if any.
func (c *Config) Location() string {
	return c.location
}

// Some settings in the TOML can be given as relative paths.
// This function converts them in-place to absolute paths,
// assuming the given paths were relative to the TOML file's own directory.
func (c *Config) convertPathsToAbsolute(configPath string) error {
	var err error

	configDir := filepath.Dir(configPath)

	// [compression].cubic_params
	if c.Compression.CubicParams != "" {
		c.Compression.CubicParams, err = sz.ConvertToAbsolute(c.Compression.CubicParams, configDir)
		if err != nil {
			return fmt.Errorf("Error converting cubic_params setting to absolute path")
		}
	}

	// [logging].logfile
	if c.Logging.Logfile != "" {
		c.Logging.Logfile, err = sz.ConvertToAbsolute(c.Logging.Logfile, configDir)
		if err != nil {
			return fmt.Errorf("Error converting logfile setting to absolute path")
		}
	}
	return nil
}

// Validate checks that every setting names something known.
func (c *Compression) Validate() error {
	if !(c.ErrorBound > 0) {
		return fmt.Errorf("error bound %g must be positive", c.ErrorBound)
	}
	switch c.ErrorMode {
	case AbsoluteMode, "":
	case RelativeMode:
		if c.ErrorBound >= 1 {
			return fmt.Errorf("relative error bound %g must be below 1", c.ErrorBound)
		}
	default:
		return fmt.Errorf("unknown error mode %q, expected %q or %q", c.ErrorMode, AbsoluteMode, RelativeMode)
	}
	if c.BlockSize <= 0 || c.BlockSize%2 != 0 {
		return fmt.Errorf("block size %d must be a positive even number", c.BlockSize)
	}
	if _, err := interp.ParseInterpolator(c.Interpolator); err != nil {
		return err
	}
	if c.Direction < 0 {
		return fmt.Errorf("direction %d must not be negative", c.Direction)
	}
	if c.Radius < 0 || c.Radius > MaxRadius {
		return fmt.Errorf("radius %d must be in [0, %d]", c.Radius, MaxRadius)
	}
	if _, err := encoder.New(c.Encoder); err != nil {
		return err
	}
	if _, err := lossless.New(c.Lossless, c.Checksum); err != nil {
		return err
	}
	if _, err := c.Type(); err != nil {
		return err
	}
	return nil
}

// Type returns the element type of the data to compress.
func (c *Compression) Type() (sz.DataType, error) {
	if c.DataType == "" {
		return sz.ParseDataType(DefaultDataType)
	}
	return sz.ParseDataType(c.DataType)
}

// Options returns the interpolation settings for a grid of the given shape.
func (c *Compression) Options(dims []int) (interp.Options, error) {
	ip, err := interp.ParseInterpolator(c.Interpolator)
	if err != nil {
		return interp.Options{}, err
	}
	return interp.Options{
		Dims:            dims,
		BlockSize:       c.BlockSize,
		Interpolator:    ip,
		Direction:       c.Direction,
		CubicParamsFile: c.CubicParams,
	}, nil
}
