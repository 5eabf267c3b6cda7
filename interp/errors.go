package interp

import "errors"

var (
	// ErrInvalidConfig is returned for unusable compressor settings.
	ErrInvalidConfig = errors.New("invalid interpolation compressor configuration")

	// ErrShapeMismatch is returned when data or a compressed header doesn't match
	// the compressor's grid.
	ErrShapeMismatch = errors.New("grid shape mismatch")

	// ErrCodeCount is returned when the number of quantization codes doesn't equal
	// the number of grid elements.
	ErrCodeCount = errors.New("quantization code count mismatch")

	// ErrCorrupted is returned when the compressed header can't be read.
	ErrCorrupted = errors.New("corrupted compressed data")
)
