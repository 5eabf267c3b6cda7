package encoder

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"
)

// Bypass writes codes as fixed-width little-endian int32 values.
type Bypass struct{}

func NewBypass() *Bypass {
	return &Bypass{}
}

func (b *Bypass) PreprocessEncode(codes []int, alphabetSize int) error {
	for _, c := range codes {
		if c < math.MinInt32 || c > math.MaxInt32 {
			return fmt.Errorf("code %d does not fit in 32 bits", c)
		}
	}
	return nil
}

func (b *Bypass) Save(w io.Writer) error { return nil }

func (b *Bypass) Encode(codes []int, w io.Writer) error {
	if err := binary.Write(w, binary.LittleEndian, uint64(len(codes))); err != nil {
		return err
	}
	buf := make([]byte, 4*len(codes))
	for i, c := range codes {
		binary.LittleEndian.PutUint32(buf[4*i:], uint32(int32(c)))
	}
	_, err := w.Write(buf)
	return err
}

func (b *Bypass) PostprocessEncode() {}

func (b *Bypass) Load(r io.Reader) error { return nil }

// Decode returns the stored codes.  It fails unless exactly count were stored.
func (b *Bypass) Decode(r io.Reader, count int) ([]int, error) {
	var n uint64
	if err := binary.Read(r, binary.LittleEndian, &n); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupted, err)
	}
	if count < 0 || n != uint64(count) {
		return nil, fmt.Errorf("%w: %d codes stored, %d expected", ErrCorrupted, n, count)
	}
	codes := make([]int, 0, count)
	var word [4]byte
	for i := uint64(0); i < n; i++ {
		if _, err := io.ReadFull(r, word[:]); err != nil {
			return nil, fmt.Errorf("%w: code %d: %v", ErrCorrupted, i, err)
		}
		codes = append(codes, int(int32(binary.LittleEndian.Uint32(word[:]))))
	}
	return codes, nil
}

func (b *Bypass) PostprocessDecode() {}
