/*
	Package encoder serializes the sequence of quantization codes produced by the
	interpolation compressor.  Encoders keep the statistics gathered by
	PreprocessEncode as state that Save writes ahead of the encoded codes, so a
	decoder can Load it before calling Decode.
*/
package encoder

import (
	"errors"
	"fmt"
	"io"
)

// ErrCorrupted is returned when encoder state or an encoded stream is invalid.
var ErrCorrupted = errors.New("encoder: corrupted stream")

// Encoder is implemented by the entropy coders of this package.
type Encoder interface {
	// PreprocessEncode gathers statistics over the codes.  The alphabet size is a
	// capacity hint only.
	PreprocessEncode(codes []int, alphabetSize int) error

	// Save writes the state needed by a decoder.
	Save(w io.Writer) error

	// Encode writes the codes.
	Encode(codes []int, w io.Writer) error

	// PostprocessEncode releases encoding state.
	PostprocessEncode()

	// Load reads state written by Save.
	Load(r io.Reader) error

	// Decode reads count codes.
	Decode(r io.Reader, count int) ([]int, error)

	// PostprocessDecode releases decoding state.
	PostprocessDecode()
}

// New returns the encoder with the given name: "huffman", "arithmetic" or "bypass".
func New(name string) (Encoder, error) {
	switch name {
	case "huffman", "":
		return NewHuffman(), nil
	case "arithmetic":
		return NewArithmetic(), nil
	case "bypass", "none":
		return NewBypass(), nil
	default:
		return nil, fmt.Errorf("unknown encoder %q", name)
	}
}
